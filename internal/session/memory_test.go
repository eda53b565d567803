package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/congo-pay/ussd_gateway/internal/telco"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestMemoryStoreGetOrCreate(t *testing.T) {
	clock := newTestClock()
	store := NewMemoryStore(5*time.Minute, clock.Now)
	ctx := context.Background()

	s, created, err := store.GetOrCreate(ctx, "sess-1", "08031234567", telco.MTN)
	if err != nil || !created {
		t.Fatalf("expected new session, got created=%v err=%v", created, err)
	}
	if s.Stage != StageMain || s.Authenticated() {
		t.Fatalf("new session must start unauthenticated at main, got %s", s.Stage)
	}

	again, created, err := store.GetOrCreate(ctx, "sess-1", "08031234567", telco.MTN)
	if err != nil || created {
		t.Fatalf("expected existing session, got created=%v err=%v", created, err)
	}
	if !again.CreatedAt.Equal(s.CreatedAt) {
		t.Fatal("expected same session to be returned")
	}
}

func TestMemoryStoreExpiresAfterIdleTimeout(t *testing.T) {
	clock := newTestClock()
	store := NewMemoryStore(5*time.Minute, clock.Now)
	ctx := context.Background()
	store.GetOrCreate(ctx, "sess-1", "08031234567", telco.MTN)

	clock.Advance(5 * time.Minute)
	if _, err := store.Get(ctx, "sess-1"); err != nil {
		t.Fatalf("exactly at the timeout the session is still live: %v", err)
	}

	clock.Advance(time.Second)
	if _, err := store.Get(ctx, "sess-1"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if err := store.Touch(ctx, "sess-1"); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected touch on expired session to fail, got %v", err)
	}
}

func TestMemoryStoreTouchExtendsLifetime(t *testing.T) {
	clock := newTestClock()
	store := NewMemoryStore(5*time.Minute, clock.Now)
	ctx := context.Background()
	store.GetOrCreate(ctx, "sess-1", "08031234567", telco.MTN)

	clock.Advance(4 * time.Minute)
	if err := store.Touch(ctx, "sess-1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	clock.Advance(4 * time.Minute)
	if _, err := store.Get(ctx, "sess-1"); err != nil {
		t.Fatalf("expected session alive after touch, got %v", err)
	}
}

func TestMemoryStoreSaveDoesNotResurrect(t *testing.T) {
	clock := newTestClock()
	store := NewMemoryStore(5*time.Minute, clock.Now)
	ctx := context.Background()
	s, _, _ := store.GetOrCreate(ctx, "sess-1", "08031234567", telco.MTN)

	if err := store.Remove(ctx, "sess-1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	s.Enter(StageLogin)
	if err := store.Save(ctx, s); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected save of removed session to fail, got %v", err)
	}
}

func TestMemoryStoreSweepAndSnapshot(t *testing.T) {
	clock := newTestClock()
	store := NewMemoryStore(5*time.Minute, clock.Now)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		store.GetOrCreate(ctx, fmt.Sprintf("old-%d", i), "08031234567", telco.MTN)
	}
	clock.Advance(6 * time.Minute)
	store.GetOrCreate(ctx, "fresh", "08051234567", telco.Glo)

	evicted, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if evicted != 10 {
		t.Fatalf("expected 10 evictions, got %d", evicted)
	}
	count, _ := store.Count(ctx)
	if count != 1 {
		t.Fatalf("expected 1 live session, got %d", count)
	}
	snap, _ := store.Snapshot(ctx)
	if len(snap) != 1 || snap[0].Provider != telco.Glo || snap[0].Stage != StageMain {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestMemoryStoreConcurrentSessions(t *testing.T) {
	store := NewMemoryStore(5*time.Minute, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("sess-%d", i)
			s, _, err := store.GetOrCreate(ctx, id, "08031234567", telco.MTN)
			if err != nil {
				t.Errorf("create %s: %v", id, err)
				return
			}
			s.Enter(StageSendMoney)
			if err := store.Save(ctx, s); err != nil {
				t.Errorf("save %s: %v", id, err)
			}
			if i%2 == 0 {
				store.Remove(ctx, id)
			}
		}(i)
	}
	wg.Wait()

	count, _ := store.Count(ctx)
	if count != 32 {
		t.Fatalf("expected 32 sessions, got %d", count)
	}
}
