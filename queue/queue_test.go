package queue

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LucaslFerrari/App-Inspecao/dbopen"
	_ "modernc.org/sqlite"
)

func newQ(t *testing.T) *Q {
	t.Helper()
	db := dbopen.OpenMemory(t)
	q := New(db, Options{})
	if err := q.EnsureTable(context.Background()); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	return q
}

func TestEnqueueListRemove(t *testing.T) {
	ctx := context.Background()
	q := newQ(t)

	id1, err := q.Enqueue(ctx, []byte(`{"n":1}`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	id2, err := q.Enqueue(ctx, []byte(`{"n":2}`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	items, err := q.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].ID != id1 || items[1].ID != id2 {
		t.Fatalf("order: got [%s %s], want [%s %s]", items[0].ID, items[1].ID, id1, id2)
	}
	if string(items[0].Payload) != `{"n":1}` {
		t.Fatalf("payload: %q", items[0].Payload)
	}

	removed, err := q.RemoveMany(ctx, []string{id1})
	if err != nil {
		t.Fatalf("RemoveMany: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	n, err := q.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}
}

func TestListAll_EmptyNonNil(t *testing.T) {
	q := newQ(t)
	items, err := q.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if items == nil {
		t.Fatal("ListAll returned nil slice for empty queue")
	}
	if len(items) != 0 {
		t.Fatalf("got %d items, want 0", len(items))
	}
}

func TestRemoveMany_MissingIDsTolerated(t *testing.T) {
	ctx := context.Background()
	q := newQ(t)

	id, err := q.Enqueue(ctx, []byte(`x`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Unknown ids delete nothing but do not fail; the known id still goes.
	removed, err := q.RemoveMany(ctx, []string{"no-such-id", id, "also-missing"})
	if err != nil {
		t.Fatalf("RemoveMany: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	n, _ := q.Count(ctx)
	if n != 0 {
		t.Fatalf("Count = %d, want 0", n)
	}
}

func TestRemoveMany_FailuresDoNotStopTheRest(t *testing.T) {
	ctx := context.Background()
	db := dbopen.OpenMemory(t)
	q := New(db, Options{})
	if err := q.EnsureTable(ctx); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := q.Enqueue(ctx, []byte(`x`))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	db.Close()

	// Every delete fails here; the point is that each id is still
	// attempted instead of aborting on the first error.
	removed, err := q.RemoveMany(ctx, ids)
	if removed != 0 {
		t.Fatalf("removed = %d on closed db", removed)
	}
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
	for _, id := range ids {
		if !strings.Contains(err.Error(), id) {
			t.Fatalf("id %s was not attempted: %v", id, err)
		}
	}
}

func TestRemoveMany_Idempotent(t *testing.T) {
	ctx := context.Background()
	q := newQ(t)

	id, _ := q.Enqueue(ctx, []byte(`x`))
	if _, err := q.RemoveMany(ctx, []string{id}); err != nil {
		t.Fatalf("first RemoveMany: %v", err)
	}
	removed, err := q.RemoveMany(ctx, []string{id})
	if err != nil {
		t.Fatalf("second RemoveMany: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
}

func TestOpen_BadPath(t *testing.T) {
	// A directory path is not a valid database file.
	dir := t.TempDir()
	_, err := Open(dir, Options{})
	if err == nil {
		t.Fatal("Open succeeded on a directory path")
	}
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("error not wrapped in ErrStorageUnavailable: %v", err)
	}
}

func TestOpen_Roundtrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fila", "pending.db")

	q, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := q.Enqueue(ctx, []byte(`persisted`))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen and verify the item survived.
	q2, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer q2.Close()
	items, err := q2.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(items) != 1 || items[0].ID != id {
		t.Fatalf("persisted items: %+v", items)
	}
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	q := newQ(t)
	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(ctx, []byte(`x`)); err != nil {
			t.Fatal(err)
		}
	}
	if err := q.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	n, _ := q.Count(ctx)
	if n != 0 {
		t.Fatalf("Count after purge = %d", n)
	}
}
