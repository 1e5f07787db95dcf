package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLeaseSeconds(t *testing.T) {
	assert.Equal(t, int64(0), leaseSeconds(0))
	assert.Equal(t, int64(3), leaseSeconds(3*time.Second))
	assert.Equal(t, int64(1), leaseSeconds(100*time.Millisecond))
	assert.Equal(t, int64(2), leaseSeconds(1500*time.Millisecond))
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
