package types

import (
	"fmt"
	"math"
	"time"
)

// lease applied when a caller does not ask for one
const DefaultLease = 60 * time.Second

// largest lease in whole seconds that fits a time.Duration
const MaxLeaseSeconds = math.MaxInt64 / int64(time.Second)

// converts a wire lease in whole seconds to a duration
// zero selects fallback, negative or unrepresentable values are rejected
func LeaseFromSeconds(seconds int64, fallback time.Duration) (time.Duration, error) {
	switch {
	case seconds < 0:
		return 0, ErrInvalidLease
	case seconds == 0:
		return fallback, nil
	case seconds > MaxLeaseSeconds:
		return 0, fmt.Errorf("lease of %d seconds exceeds the maximum of %d: %w", seconds, MaxLeaseSeconds, ErrInvalidLease)
	default:
		return time.Duration(seconds) * time.Second, nil
	}
}
