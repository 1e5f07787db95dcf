// Package distlockv1 is the wire contract of the distlock gRPC service:
// request and response messages, the service descriptor and the codec
// that carries them.
package distlockv1

import (
	"encoding/json"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Empty is the response of calls that return nothing.
type Empty = emptypb.Empty

// Lock is the outbound snapshot of one lock.
type Lock struct {
	Key       string                 `json:"key"`
	Acquired  bool                   `json:"acquired"`
	Clock     uint64                 `json:"clock"`
	ExpiresAt *timestamppb.Timestamp `json:"expires_at,omitempty"`
}

func (x *Lock) GetKey() string {
	if x != nil {
		return x.Key
	}
	return ""
}

func (x *Lock) GetAcquired() bool {
	if x != nil {
		return x.Acquired
	}
	return false
}

func (x *Lock) GetClock() uint64 {
	if x != nil {
		return x.Clock
	}
	return 0
}

// GetExpiresAt returns the lease deadline, or the zero time if the lock was
// never acquired.
func (x *Lock) GetExpiresAt() time.Time {
	if x == nil || x.ExpiresAt == nil {
		return time.Time{}
	}
	return x.ExpiresAt.AsTime()
}

// lock JSON with expires_at in the protobuf JSON mapping (RFC 3339)
type lockJSON struct {
	Key       string          `json:"key"`
	Acquired  bool            `json:"acquired"`
	Clock     uint64          `json:"clock"`
	ExpiresAt json.RawMessage `json:"expires_at,omitempty"`
}

// value receiver so non-addressable Lock values encode the same way
func (x Lock) MarshalJSON() ([]byte, error) {
	out := lockJSON{Key: x.Key, Acquired: x.Acquired, Clock: x.Clock}
	if x.ExpiresAt != nil {
		ts, err := protojson.Marshal(x.ExpiresAt)
		if err != nil {
			return nil, err
		}
		out.ExpiresAt = ts
	}
	return json.Marshal(out)
}

func (x *Lock) UnmarshalJSON(data []byte) error {
	var in lockJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*x = Lock{Key: in.Key, Acquired: in.Acquired, Clock: in.Clock}
	if len(in.ExpiresAt) > 0 && string(in.ExpiresAt) != "null" {
		x.ExpiresAt = &timestamppb.Timestamp{}
		if err := protojson.Unmarshal(in.ExpiresAt, x.ExpiresAt); err != nil {
			return err
		}
	}
	return nil
}

// Timestamp converts t for the wire. The zero time is sent as no timestamp.
func Timestamp(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}

type CreateLockRequest struct {
	Key string `json:"key"`
}

type AcquireLockRequest struct {
	Key              string `json:"key"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

type ReleaseLockRequest struct {
	Key   string `json:"key"`
	Clock uint64 `json:"clock"`
}

type GetLockRequest struct {
	Key string `json:"key"`
}

type DeleteLockRequest struct {
	Key string `json:"key"`
}

type ListLocksResponse struct {
	Locks []*Lock `json:"locks"`
}
