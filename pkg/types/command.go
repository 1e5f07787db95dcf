package types

import "time"

// type of store command
type CommandType uint

const (
	CommandTypeCreateLock CommandType = iota + 1
	CommandTypeAcquireLock
	CommandTypeReleaseLock
	CommandTypeDeleteLock
)

func (t CommandType) String() string {
	switch t {
	case CommandTypeCreateLock:
		return "create"
	case CommandTypeAcquireLock:
		return "acquire"
	case CommandTypeReleaseLock:
		return "release"
	case CommandTypeDeleteLock:
		return "delete"
	default:
		return "unknown"
	}
}

// interface all mutating store commands implement
type Command interface {
	Type() CommandType
}

// creates a new unacquired lock
type CreateLockCmd struct {
	Key string
}

func (c CreateLockCmd) Type() CommandType { return CommandTypeCreateLock }

// acquires a lock for Lease if it is available
type AcquireLockCmd struct {
	Key   string
	Lease time.Duration
}

func (c AcquireLockCmd) Type() CommandType { return CommandTypeAcquireLock }

// releases a lock held at Clock
type ReleaseLockCmd struct {
	Key   string
	Clock uint64
}

func (c ReleaseLockCmd) Type() CommandType { return CommandTypeReleaseLock }

// removes a lock entirely
type DeleteLockCmd struct {
	Key string
}

func (c DeleteLockCmd) Type() CommandType { return CommandTypeDeleteLock }
