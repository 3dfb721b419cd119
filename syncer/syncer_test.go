package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/LucaslFerrari/App-Inspecao/connectivity"
	"github.com/LucaslFerrari/App-Inspecao/dbopen"
	"github.com/LucaslFerrari/App-Inspecao/queue"
	_ "modernc.org/sqlite"
)

func newEngine(t *testing.T) (*Engine, *queue.Q, *connectivity.Monitor) {
	t.Helper()
	db := dbopen.OpenMemory(t)
	q := queue.New(db, queue.Options{})
	if err := q.EnsureTable(context.Background()); err != nil {
		t.Fatal(err)
	}
	mon := connectivity.NewMonitor()
	return New(q, mon), q, mon
}

func enqueue(t *testing.T, q *queue.Q, payloads ...string) []string {
	t.Helper()
	ids := make([]string, 0, len(payloads))
	for _, p := range payloads {
		id, err := q.Enqueue(context.Background(), []byte(p))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestDrain_EmptyQueueNoop(t *testing.T) {
	e, _, _ := newEngine(t)
	called := false
	res, err := e.Drain(context.Background(), func(ctx context.Context, it queue.Item) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if called {
		t.Fatal("submit called on empty queue")
	}
	if len(res.Sent) != 0 || len(res.Remaining) != 0 {
		t.Fatalf("result: %+v", res)
	}
}

func TestDrain_AllAccepted(t *testing.T) {
	ctx := context.Background()
	e, q, _ := newEngine(t)
	ids := enqueue(t, q, "a", "b", "c")

	var got []string
	res, err := e.Drain(ctx, func(ctx context.Context, it queue.Item) error {
		got = append(got, string(it.Payload))
		return nil
	})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(res.Sent) != 3 {
		t.Fatalf("sent %d, want 3", len(res.Sent))
	}
	for i, id := range ids {
		if res.Sent[i] != id {
			t.Fatalf("sent order: got %v, want %v", res.Sent, ids)
		}
	}
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("submit order: %v", got)
	}
	n, _ := q.Count(ctx)
	if n != 0 {
		t.Fatalf("queue not emptied: %d left", n)
	}
}

func TestDrain_FailureKeepsItemAndContinues(t *testing.T) {
	ctx := context.Background()
	e, q, _ := newEngine(t)
	ids := enqueue(t, q, "a", "b", "c")

	// Reject the middle item; the others must still go through.
	res, err := e.Drain(ctx, func(ctx context.Context, it queue.Item) error {
		if it.ID == ids[1] {
			return errors.New("validation rejected")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if len(res.Sent) != 2 {
		t.Fatalf("sent %d, want 2", len(res.Sent))
	}
	if len(res.Remaining) != 1 || res.Remaining[0].ID != ids[1] {
		t.Fatalf("remaining: %+v", res.Remaining)
	}
	items, _ := q.ListAll(ctx)
	if len(items) != 1 || items[0].ID != ids[1] {
		t.Fatalf("queue after drain: %+v", items)
	}
}

func TestDrain_StopsWhenOffline(t *testing.T) {
	ctx := context.Background()
	e, q, mon := newEngine(t)
	ids := enqueue(t, q, "a", "b", "c")

	attempts := 0
	res, err := e.Drain(ctx, func(ctx context.Context, it queue.Item) error {
		attempts++
		if it.ID == ids[0] {
			mon.SetOnline(false)
			return errors.New("connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (drain must halt on offline)", attempts)
	}
	if len(res.Sent) != 0 {
		t.Fatalf("sent: %v", res.Sent)
	}
	if len(res.Remaining) != 3 {
		t.Fatalf("remaining %d, want 3", len(res.Remaining))
	}
	n, _ := q.Count(ctx)
	if n != 3 {
		t.Fatalf("queue shrank while offline: %d", n)
	}
}

func TestDrain_Serialized(t *testing.T) {
	ctx := context.Background()
	e, q, _ := newEngine(t)
	enqueue(t, q, "a", "b")

	// Two concurrent drains: the submit func counts total invocations.
	// Serialization means each item is submitted exactly once.
	var mu sync.Mutex
	seen := map[string]int{}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Drain(ctx, func(ctx context.Context, it queue.Item) error {
				mu.Lock()
				seen[it.ID]++
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("Drain: %v", err)
			}
		}()
	}
	wg.Wait()

	for id, n := range seen {
		if n != 1 {
			t.Fatalf("item %s submitted %d times", id, n)
		}
	}
	if len(seen) != 2 {
		t.Fatalf("submitted %d distinct items, want 2", len(seen))
	}
}

func TestDrain_ContextCancelled(t *testing.T) {
	e, q, _ := newEngine(t)
	enqueue(t, q, "a", "b")

	ctx, cancel := context.WithCancel(context.Background())
	res, err := e.Drain(ctx, func(ctx context.Context, it queue.Item) error {
		cancel()
		return nil
	})
	if err != nil {
		t.Fatalf("Drain: %v", err)
	}
	// First item went through before the cancel took effect on the loop.
	if len(res.Sent) != 1 {
		t.Fatalf("sent: %v", res.Sent)
	}
	if len(res.Remaining) != 1 {
		t.Fatalf("remaining: %+v", res.Remaining)
	}
}
