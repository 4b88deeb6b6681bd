package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// storeCase pairs a Store with a probe for its raw key.
type storeCase struct {
	name   string
	store  Store
	exists func(key string) bool
}

func newStores(t *testing.T) []storeCase {
	t.Helper()
	mem := NewMemoryStore(time.Hour)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return []storeCase{
		{"memory", mem, mem.Exists},
		{"redis", NewRedisStore(client, time.Hour), func(key string) bool { return mr.Exists(keyPrefix + key) }},
	}
}

func TestJoinLeave(t *testing.T) {
	ctx := context.Background()
	for _, sc := range newStores(t) {
		t.Run(sc.name, func(t *testing.T) {
			for want := int64(1); want <= 3; want++ {
				got, err := sc.store.Join(ctx, "board-abc123")
				if err != nil {
					t.Fatalf("Join returned error: %v", err)
				}
				if got != want {
					t.Fatalf("Join #%d returned %d", want, got)
				}
			}

			n, _ := sc.store.Leave(ctx, "board-abc123")
			if n != 2 {
				t.Errorf("Expected 2 after leave, got %d", n)
			}
			sc.store.Leave(ctx, "board-abc123")
			n, _ = sc.store.Leave(ctx, "board-abc123")
			if n != 0 {
				t.Errorf("Expected 0 after last leave, got %d", n)
			}
			if sc.exists("board-abc123") {
				t.Error("Expected the key to be removed when the count reaches zero")
			}

			count, err := sc.store.Count(ctx, "board-abc123")
			if err != nil || count != 0 {
				t.Errorf("Expected missing key to read as 0, got %d (%v)", count, err)
			}
		})
	}
}

func TestLeaveMissingKey(t *testing.T) {
	ctx := context.Background()
	for _, sc := range newStores(t) {
		t.Run(sc.name, func(t *testing.T) {
			n, err := sc.store.Leave(ctx, "board-nobody")
			if err != nil || n != 0 {
				t.Errorf("Expected (0, nil), got (%d, %v)", n, err)
			}
			if sc.exists("board-nobody") {
				t.Error("Leave must not create a key")
			}
		})
	}
}

func TestConcurrentJoins(t *testing.T) {
	ctx := context.Background()
	for _, sc := range newStores(t) {
		t.Run(sc.name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := sc.store.Join(ctx, "board-busy01"); err != nil {
						t.Errorf("Join returned error: %v", err)
					}
				}()
			}
			wg.Wait()
			if n, _ := sc.store.Count(ctx, "board-busy01"); n != 20 {
				t.Errorf("Expected 20 after concurrent joins, got %d", n)
			}
		})
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(2 * time.Hour)
	s.now = func() time.Time { return now }

	s.Join(ctx, "k")
	now = now.Add(90 * time.Minute)
	s.Join(ctx, "k") // refreshes the TTL
	now = now.Add(90 * time.Minute)
	if n, _ := s.Count(ctx, "k"); n != 2 {
		t.Fatalf("Expected refreshed counter to survive, got %d", n)
	}
	now = now.Add(time.Hour)
	if n, _ := s.Count(ctx, "k"); n != 0 {
		t.Errorf("Expected abandoned counter to expire, got %d", n)
	}
}

func TestRedisStoreTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewRedisStore(client, 7200*time.Second)

	s.Join(ctx, "board-ttl001")
	if ttl := mr.TTL(keyPrefix + "board-ttl001"); ttl != 7200*time.Second {
		t.Errorf("Expected TTL 7200s, got %v", ttl)
	}
	mr.FastForward(7201 * time.Second)
	if n, _ := s.Count(ctx, "board-ttl001"); n != 0 {
		t.Errorf("Expected expired key to read 0, got %d", n)
	}
}
