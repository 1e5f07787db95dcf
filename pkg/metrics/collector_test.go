package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/daniel-salmon/distlock/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreCollector(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Create("a"))
	require.NoError(t, s.Create("b"))
	_, err := s.Acquire("a", time.Minute)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(NewStoreCollector(s))

	expected := `
# HELP distlock_locks current number of locks in the store
# TYPE distlock_locks gauge
distlock_locks 2
# HELP distlock_locks_held current number of locks held with an unexpired lease
# TYPE distlock_locks_held gauge
distlock_locks_held 1
# HELP distlock_acquisitions_total successful lock acquisitions since start
# TYPE distlock_acquisitions_total counter
distlock_acquisitions_total 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"distlock_locks", "distlock_locks_held", "distlock_acquisitions_total")
	assert.NoError(t, err)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, Status(true))
	assert.Equal(t, StatusFailure, Status(false))
}
