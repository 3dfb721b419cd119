package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDefaultOnline(t *testing.T) {
	m := NewMonitor()
	if !m.Online() {
		t.Fatal("monitor should start online (fail-open)")
	}
}

func TestSetOnline_TransitionsOnly(t *testing.T) {
	m := NewMonitor()
	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	// Same value: no event.
	m.SetOnline(true)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for no-op set: %+v", ev)
	default:
	}

	m.SetOnline(false)
	select {
	case ev := <-ch:
		if ev.Online {
			t.Fatal("expected offline event")
		}
	case <-time.After(time.Second):
		t.Fatal("no event after transition")
	}

	m.SetOnline(true)
	select {
	case ev := <-ch:
		if !ev.Online {
			t.Fatal("expected online event")
		}
	case <-time.After(time.Second):
		t.Fatal("no event after transition back online")
	}
}

func TestUnsubscribeCloses(t *testing.T) {
	m := NewMonitor()
	ch := m.Subscribe()
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
	// Double unsubscribe must not panic.
	m.Unsubscribe(ch)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	m := NewMonitor()
	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	// Fill the buffer, then force more transitions than the subscriber reads.
	m.SetOnline(false)
	m.SetOnline(true)
	m.SetOnline(false) // dropped, buffer full

	// The monitor itself must stay responsive.
	if m.Online() {
		t.Fatal("flag should be offline")
	}
}

func TestWatch_FlipsWithProbe(t *testing.T) {
	m := NewMonitor()
	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	reachable := make(chan bool, 10)
	probe := func(ctx context.Context) bool {
		select {
		case v := <-reachable:
			return v
		default:
			return true
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Watch(ctx, 5*time.Millisecond, probe)

	reachable <- false
	select {
	case ev := <-ch:
		if ev.Online {
			t.Fatal("expected offline event from failing probe")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch never reported offline")
	}

	reachable <- true
	select {
	case ev := <-ch:
		if !ev.Online {
			t.Fatal("expected online event from recovering probe")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch never reported recovery")
	}
}

func TestHTTPProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	probe := HTTPProbe(srv.URL)
	if !probe(context.Background()) {
		t.Fatal("probe should succeed against a live server")
	}

	srv.Close()
	if probe(context.Background()) {
		t.Fatal("probe should fail against a closed server")
	}
}
