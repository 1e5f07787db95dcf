package client_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/daniel-salmon/distlock/pkg/client"
	tm "github.com/daniel-salmon/distlock/pkg/time"
)

// Run with: go test -bench=. -benchtime=10s ./pkg/client/

func BenchmarkSequential(b *testing.B) {
	c, _ := newTestEnv(b, tm.SystemClock{})
	ctx := context.Background()

	key := "bench-lock-sequential"
	if err := c.CreateLock(ctx, key); err != nil {
		b.Fatalf("Failed to create: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lock, err := c.AcquireLock(ctx, key, client.WithBlocking(false))
		if err != nil {
			b.Fatalf("Failed to acquire: %v", err)
		}
		if err := lock.Release(ctx); err != nil {
			b.Fatalf("Failed to release: %v", err)
		}
	}
}

// every goroutine works its own key, so this measures transport and store
// overhead without contention
func BenchmarkParallel(b *testing.B) {
	c, _ := newTestEnv(b, tm.SystemClock{})
	var next atomic.Int64

	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		key := fmt.Sprintf("bench-lock-%d", next.Add(1))
		if err := c.CreateLock(ctx, key); err != nil {
			b.Errorf("Failed to create: %v", err)
			return
		}

		for pb.Next() {
			lock, err := c.AcquireLock(ctx, key, client.WithBlocking(false))
			if err != nil {
				continue
			}
			_ = lock.Release(ctx)
		}
	})
}

// all goroutines fight over one key with blocking acquires
func BenchmarkContention(b *testing.B) {
	c, _ := newTestEnv(b, tm.SystemClock{})
	ctx := context.Background()

	key := "bench-lock-contention"
	if err := c.CreateLock(ctx, key); err != nil {
		b.Fatalf("Failed to create: %v", err)
	}

	b.SetParallelism(3)
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			lock, err := c.AcquireLock(ctx, key,
				client.WithLease(10*time.Second),
				client.WithHeartbeat(time.Millisecond),
			)
			if err != nil {
				continue
			}
			_ = lock.Release(ctx)
		}
	})
}
