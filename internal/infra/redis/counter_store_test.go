package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestCounterStoreIncrementsWithinWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	store := NewCounterStore(newClient(mr))
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, _, err := store.Incr(ctx, "submitAnswer:p1", time.Second)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if count != want {
			t.Fatalf("count = %d, want %d", count, want)
		}
	}

	// Independent keys count separately.
	count, _, err := store.Incr(ctx, "submitAnswer:p2", time.Second)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if count != 1 {
		t.Fatalf("p2 count = %d, want 1", count)
	}
}

func TestCounterStoreWindowExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	store := NewCounterStore(newClient(mr))
	ctx := context.Background()

	if _, _, err := store.Incr(ctx, "chat:p1", time.Second); err != nil {
		t.Fatalf("incr: %v", err)
	}
	if _, _, err := store.Incr(ctx, "chat:p1", time.Second); err != nil {
		t.Fatalf("incr: %v", err)
	}

	mr.FastForward(1100 * time.Millisecond)

	count, _, err := store.Incr(ctx, "chat:p1", time.Second)
	if err != nil {
		t.Fatalf("incr after expiry: %v", err)
	}
	if count != 1 {
		t.Fatalf("count after window expiry = %d, want 1", count)
	}
}

func TestCounterStoreResetAtTracksTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewCounterStore(newClient(mr))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }

	_, resetAt, err := store.Incr(context.Background(), "joinRoom:p1", time.Minute)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if !resetAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("resetAt = %s, want %s", resetAt, now.Add(time.Minute))
	}
}
