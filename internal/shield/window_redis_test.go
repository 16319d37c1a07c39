package shield

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestRedisWindowStore_AllowsUpToLimitThenDenies(t *testing.T) {
	mr, rdb := newTestRedis(t)
	clock := newFakeClock()
	s := NewRedisWindowStore(rdb, WithRedisPrefix("test:window:"), WithRedisClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := s.Hit(ctx, "strict:user-1", 3, 10*time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d: expected allowed", i+1)
		}
		clock.Advance(time.Second)
	}

	res, err := s.Hit(ctx, "strict:user-1", 3, 10*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Allowed {
		t.Fatalf("expected denial after limit")
	}
	if res.Count != 3 || res.Remaining != 0 {
		t.Fatalf("unexpected counters: %+v", res)
	}
	// oldest hit is 3s old; it expires 10m after it was recorded
	if want := 10*time.Minute - 3*time.Second; res.ResetIn != want {
		t.Fatalf("expected reset in %s, got %s", want, res.ResetIn)
	}

	if !mr.Exists("test:window:strict:user-1") {
		t.Fatalf("expected prefixed key to exist, keys=%v", mr.Keys())
	}
}

func TestRedisWindowStore_WindowSlides(t *testing.T) {
	_, rdb := newTestRedis(t)
	clock := newFakeClock()
	s := NewRedisWindowStore(rdb, WithRedisClock(clock.Now))
	ctx := context.Background()

	if res, _ := s.Hit(ctx, "lax:1.2.3.4", 1, time.Minute); !res.Allowed {
		t.Fatalf("expected first hit allowed")
	}
	clock.Advance(30 * time.Second)
	if res, _ := s.Hit(ctx, "lax:1.2.3.4", 1, time.Minute); res.Allowed {
		t.Fatalf("expected second hit denied")
	}
	clock.Advance(31 * time.Second)
	if res, _ := s.Hit(ctx, "lax:1.2.3.4", 1, time.Minute); !res.Allowed {
		t.Fatalf("expected hit allowed after the window slid")
	}
}

func TestRedisWindowStore_SetsExpiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisWindowStore(rdb, WithRedisPrefix("w"))

	if _, err := s.Hit(context.Background(), "k", 5, 90*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ttl := mr.TTL("w:k"); ttl <= 0 || ttl > 90*time.Second {
		t.Fatalf("expected ttl within window, got %s", ttl)
	}
}

func TestRedisWindowStore_PropagatesRedisErrors(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	s := NewRedisWindowStore(rdb)
	mr.Close()

	_, err = s.Hit(context.Background(), "k", 1, time.Minute)
	if err == nil || !strings.Contains(err.Error(), "sliding window script") {
		t.Fatalf("expected wrapped redis error, got %v", err)
	}
}
