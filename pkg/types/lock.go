package types

import "time"

// lock is a named, mutually exclusive lease
// clock is the fencing token: it is incremented exactly once per successful
// acquisition and never on release, so a holder that learned the current
// clock is the only one able to release
type Lock struct {
	Key       string    //lock identifier, immutable after creation
	Acquired  bool      //true while a holder has the lease (may lapse, see IsExpired)
	Clock     uint64    //fencing token
	ExpiresAt time.Time //meaningful only while Acquired
}

// returns a new, never acquired lock
func NewLock(key string) Lock {
	return Lock{Key: key}
}

// marks the lock held until now+lease and bumps the fencing token
// it performs no availability check, callers must check Available first
func (l *Lock) Acquire(now time.Time, lease time.Duration) {
	l.Acquired = true
	l.Clock++
	l.ExpiresAt = now.Add(lease)
}

// true once the lease deadline has been reached
func (l Lock) IsExpired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// true if nobody holds the lock or the holder's lease has lapsed
func (l Lock) Available(now time.Time) bool {
	return !l.Acquired || l.IsExpired(now)
}

// releases the lock if clock matches the current fencing token
// on mismatch the lock is left untouched
func (l *Lock) Release(clock uint64) error {
	if clock != l.Clock {
		return &UnreleasableError{Key: l.Key, Expected: l.Clock, Presented: clock}
	}
	l.Acquired = false
	return nil
}
