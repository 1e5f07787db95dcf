package distlockv1

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/types/known/emptypb"
)

func TestCodecRegistered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)
	assert.Equal(t, CodecName, c.Name())
}

func TestCodecLock(t *testing.T) {
	c := codec{}
	expires := time.Date(2024, 1, 1, 0, 0, 3, 500, time.UTC)

	data, err := c.Marshal(&Lock{Key: "x", Acquired: true, Clock: 2, ExpiresAt: Timestamp(expires)})
	require.NoError(t, err)

	assert.JSONEq(t, `{"key":"x","acquired":true,"clock":2,"expires_at":"2024-01-01T00:00:03.000000500Z"}`, string(data))

	var got Lock
	require.NoError(t, c.Unmarshal(data, &got))
	assert.Equal(t, "x", got.GetKey())
	assert.True(t, got.GetAcquired())
	assert.Equal(t, uint64(2), got.GetClock())
	assert.True(t, expires.Equal(got.GetExpiresAt()))
}

func TestCodecEmpty(t *testing.T) {
	c := codec{}

	data, err := c.Marshal(&emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	require.NoError(t, c.Unmarshal(data, &emptypb.Empty{}))
}

func TestZeroTimestamp(t *testing.T) {
	assert.Nil(t, Timestamp(time.Time{}))

	var l *Lock
	assert.True(t, l.GetExpiresAt().IsZero())
	assert.True(t, (&Lock{}).GetExpiresAt().IsZero())
}

func TestCodecUnacquiredLock(t *testing.T) {
	c := codec{}

	data, err := c.Marshal(&ListLocksResponse{Locks: []*Lock{{Key: "a"}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"locks":[{"key":"a","acquired":false,"clock":0}]}`, string(data))

	var got ListLocksResponse
	require.NoError(t, c.Unmarshal(data, &got))
	require.Len(t, got.Locks, 1)
	assert.Nil(t, got.Locks[0].ExpiresAt)
}
