package submit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LucaslFerrari/App-Inspecao/connectivity"
	"github.com/LucaslFerrari/App-Inspecao/dbopen"
	"github.com/LucaslFerrari/App-Inspecao/draft"
	"github.com/LucaslFerrari/App-Inspecao/inspection"
	"github.com/LucaslFerrari/App-Inspecao/queue"
	"github.com/LucaslFerrari/App-Inspecao/syncer"
	_ "modernc.org/sqlite"
)

func newOrch(t *testing.T, baseURL string, cfg Config) (*Orchestrator, *queue.Q, *connectivity.Monitor, *sql.DB) {
	t.Helper()
	db := dbopen.OpenMemory(t)
	q := queue.New(db, queue.Options{})
	if err := q.EnsureTable(context.Background()); err != nil {
		t.Fatal(err)
	}
	mon := connectivity.NewMonitor()
	engine := syncer.New(q, mon)
	o := New(NewClient(baseURL), q, mon, engine, cfg)
	return o, q, mon, db
}

func okServer(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		fmt.Fprintf(w, `{"success":true,"id":%d}`, 100+n)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSave_Succeeded(t *testing.T) {
	var calls atomic.Int64
	srv := okServer(t, &calls)
	o, q, _, _ := newOrch(t, srv.URL, Config{})

	out := o.Save(context.Background(), inspection.Submission{Equip: "BC-219"})
	if out.State != Succeeded {
		t.Fatalf("state = %v, err = %v", out.State, out.Err)
	}
	if out.ServerID != 101 {
		t.Fatalf("server id = %d", out.ServerID)
	}
	n, _ := q.Count(context.Background())
	if n != 0 {
		t.Fatalf("queue = %d", n)
	}
}

func TestSave_OfflineQueuesWithoutSending(t *testing.T) {
	var calls atomic.Int64
	srv := okServer(t, &calls)
	o, q, mon, _ := newOrch(t, srv.URL, Config{})
	mon.SetOnline(false)

	out := o.Save(context.Background(), inspection.Submission{Equip: "BC-219"})
	if out.State != QueuedOffline {
		t.Fatalf("state = %v, err = %v", out.State, out.Err)
	}
	if out.LocalID == "" {
		t.Fatal("no local id")
	}
	if calls.Load() != 0 {
		t.Fatalf("server called %d times while offline", calls.Load())
	}
	n, _ := q.Count(context.Background())
	if n != 1 {
		t.Fatalf("queue = %d, want 1", n)
	}
}

func TestSave_TransportErrorQueuesAndFlipsOffline(t *testing.T) {
	// A server that is already closed: dial fails.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	o, q, mon, _ := newOrch(t, srv.URL, Config{})

	out := o.Save(context.Background(), inspection.Submission{Equip: "BC-219"})
	if out.State != QueuedOffline {
		t.Fatalf("state = %v, err = %v", out.State, out.Err)
	}
	if mon.Online() {
		t.Fatal("monitor should be offline after a transport failure")
	}
	n, _ := q.Count(context.Background())
	if n != 1 {
		t.Fatalf("queue = %d, want 1", n)
	}
}

func TestSave_ServerRejectionFailsWithoutQueueing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"evidencia sem 'pagina' ou 'secao'"}`)
	}))
	t.Cleanup(srv.Close)
	o, q, mon, _ := newOrch(t, srv.URL, Config{})

	out := o.Save(context.Background(), inspection.Submission{Equip: "BC-219"})
	if out.State != Failed {
		t.Fatalf("state = %v", out.State)
	}
	var serr *ServerError
	if !errors.As(out.Err, &serr) || serr.Status != http.StatusBadRequest {
		t.Fatalf("err = %v", out.Err)
	}
	if !mon.Online() {
		t.Fatal("a rejection is not a connectivity problem")
	}
	n, _ := q.Count(context.Background())
	if n != 0 {
		t.Fatalf("rejected payload was queued: %d", n)
	}
}

func TestSave_DeadlineAbortsWithoutQueueing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, `{"success":true,"id":1}`)
	}))
	t.Cleanup(srv.Close)
	o, q, _, _ := newOrch(t, srv.URL, Config{SubmitTimeout: 30 * time.Millisecond})

	out := o.Save(context.Background(), inspection.Submission{Equip: "BC-219"})
	if out.State != Failed {
		t.Fatalf("state = %v", out.State)
	}
	if !errors.Is(out.Err, ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", out.Err)
	}
	// The server may have committed; the payload must NOT be retried
	// automatically.
	n, _ := q.Count(context.Background())
	if n != 0 {
		t.Fatalf("aborted payload was queued: %d", n)
	}
}

func TestSave_SuccessDrainsBacklog(t *testing.T) {
	var calls atomic.Int64
	srv := okServer(t, &calls)
	o, q, _, _ := newOrch(t, srv.URL, Config{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := q.Enqueue(ctx, []byte(`{"equip":"queued"}`)); err != nil {
			t.Fatal(err)
		}
	}

	out := o.Save(ctx, inspection.Submission{Equip: "BC-219"})
	if out.State != Succeeded {
		t.Fatalf("state = %v, err = %v", out.State, out.Err)
	}
	if calls.Load() != 3 {
		t.Fatalf("server calls = %d, want 3 (save + 2 drained)", calls.Load())
	}
	n, _ := q.Count(ctx)
	if n != 0 {
		t.Fatalf("queue = %d after drain", n)
	}
}

func TestSave_GeolocationAttached(t *testing.T) {
	var got inspection.Submission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"success":true,"id":7}`)
	}))
	t.Cleanup(srv.Close)

	locate := func(ctx context.Context) (Position, error) {
		return Position{Lat: -20.15, Lng: -44.22, Accuracy: 12}, nil
	}
	o, _, _, _ := newOrch(t, srv.URL, Config{Locate: locate})

	out := o.Save(context.Background(), inspection.Submission{Equip: "BC-219"})
	if out.State != Succeeded {
		t.Fatalf("state = %v, err = %v", out.State, out.Err)
	}
	if got.Lat == nil || *got.Lat != -20.15 || got.Lng == nil || *got.Lng != -44.22 {
		t.Fatalf("coordinates not attached: %+v", got)
	}
}

func TestSave_GeolocationMissIsNotFatal(t *testing.T) {
	var got inspection.Submission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"success":true,"id":7}`)
	}))
	t.Cleanup(srv.Close)

	locate := func(ctx context.Context) (Position, error) {
		return Position{}, errors.New("no fix")
	}
	o, _, _, _ := newOrch(t, srv.URL, Config{Locate: locate})

	out := o.Save(context.Background(), inspection.Submission{Equip: "BC-219"})
	if out.State != Succeeded {
		t.Fatalf("state = %v, err = %v", out.State, out.Err)
	}
	if got.Lat != nil {
		t.Fatalf("lat should be absent, got %v", *got.Lat)
	}
}

func TestSave_QueueUnavailableSurfacesSendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // transport errors from here on
	o, _, _, db := newOrch(t, srv.URL, Config{})
	db.Close() // and the local queue is broken too

	out := o.Save(context.Background(), inspection.Submission{Equip: "BC-219"})
	if out.State != Failed {
		t.Fatalf("state = %v", out.State)
	}
	// The user should see why the send failed, not the queue's problem.
	if errors.Is(out.Err, queue.ErrStorageUnavailable) {
		t.Fatalf("storage error masked the send error: %v", out.Err)
	}
}

func TestSave_OfflineWithBrokenQueueFails(t *testing.T) {
	var calls atomic.Int64
	srv := okServer(t, &calls)
	o, _, mon, db := newOrch(t, srv.URL, Config{})
	mon.SetOnline(false)
	db.Close()

	out := o.Save(context.Background(), inspection.Submission{Equip: "BC-219"})
	if out.State != Failed {
		t.Fatalf("state = %v", out.State)
	}
	if !errors.Is(out.Err, queue.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", out.Err)
	}
}

func TestSaveDrafts_MergesAndClears(t *testing.T) {
	var got inspection.Submission
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		fmt.Fprint(w, `{"success":true,"id":9}`)
	}))
	t.Cleanup(srv.Close)
	o, _, _, _ := newOrch(t, srv.URL, Config{})

	drafts := draft.NewSet()
	drafts.Save("BC-219", draft.Pages{
		Rolos: []inspection.Rolo{{Baliza: "1", Critic: "2"}},
	})
	drafts.Save("BC-305", draft.Pages{
		Tambores: []inspection.Tambor{{Tambor: "acionamento", Critic: "1"}},
	})

	out := o.SaveDrafts(context.Background(), drafts,
		inspection.Submission{Equip: "BC-219", Inspetor: "Carlos"})
	if out.State != Succeeded {
		t.Fatalf("state = %v, err = %v", out.State, out.Err)
	}
	if len(got.Pagina1.MultiEquipRolos) != 1 || got.Pagina1.MultiEquipRolos[0].Equip != "BC-219" {
		t.Fatalf("pagina1 batches: %+v", got.Pagina1.MultiEquipRolos)
	}
	if len(got.Pagina4.MultiEquip) != 1 || got.Pagina4.MultiEquip[0].Equip != "BC-305" {
		t.Fatalf("pagina4 batches: %+v", got.Pagina4.MultiEquip)
	}
	if len(drafts.Codes()) != 0 {
		t.Fatalf("drafts survived a successful save: %v", drafts.Codes())
	}
}

func TestSaveDrafts_KeptWhenSaveFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"rejeitado"}`)
	}))
	t.Cleanup(srv.Close)
	o, _, _, _ := newOrch(t, srv.URL, Config{})

	drafts := draft.NewSet()
	drafts.Save("BC-219", draft.Pages{
		Rolos: []inspection.Rolo{{Baliza: "1", Critic: "2"}},
	})

	out := o.SaveDrafts(context.Background(), drafts, inspection.Submission{Equip: "BC-219"})
	if out.State != Failed {
		t.Fatalf("state = %v", out.State)
	}
	if len(drafts.Codes()) != 1 {
		t.Fatal("drafts must survive a failed save for retry")
	}
}

func TestSaveDrafts_ClearedWhenQueuedOffline(t *testing.T) {
	var calls atomic.Int64
	srv := okServer(t, &calls)
	o, q, mon, _ := newOrch(t, srv.URL, Config{})
	mon.SetOnline(false)

	drafts := draft.NewSet()
	drafts.Save("BC-219", draft.Pages{
		Rolos: []inspection.Rolo{{Baliza: "1", Critic: "2"}},
	})

	out := o.SaveDrafts(context.Background(), drafts, inspection.Submission{Equip: "BC-219"})
	if out.State != QueuedOffline {
		t.Fatalf("state = %v, err = %v", out.State, out.Err)
	}
	// The merged submission is durably queued; the session starts fresh.
	if len(drafts.Codes()) != 0 {
		t.Fatalf("drafts survived a queued save: %v", drafts.Codes())
	}
	n, _ := q.Count(context.Background())
	if n != 1 {
		t.Fatalf("queue = %d", n)
	}
}
