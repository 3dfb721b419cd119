// Package connectivity tracks whether the sync server is reachable.
//
// The monitor holds a single online/offline flag and notifies subscribers on
// every transition. The flag starts true (fail-open): before the first probe
// completes the device assumes it is online and lets a real send attempt
// discover otherwise.
package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Event is delivered to subscribers on every online/offline transition.
type Event struct {
	Online bool
}

// Probe reports whether the server is currently reachable.
type Probe func(ctx context.Context) bool

// Monitor holds the connectivity state.
type Monitor struct {
	online atomic.Bool

	mu   sync.Mutex
	subs map[chan Event]struct{}

	logger *slog.Logger
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option { return func(m *Monitor) { m.logger = l } }

// NewMonitor creates a monitor that starts in the online state.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		subs:   make(map[chan Event]struct{}),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	m.online.Store(true)
	return m
}

// Online reports the current flag.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// SetOnline updates the flag. Subscribers are notified only on transitions;
// setting the same value twice is a no-op.
func (m *Monitor) SetOnline(online bool) {
	if m.online.Swap(online) == online {
		return
	}
	m.logger.Info("connectivity: state changed", "online", online)

	m.mu.Lock()
	defer m.mu.Unlock()
	for ch := range m.subs {
		// Non-blocking: a slow subscriber drops the event rather than
		// wedging the monitor. Channels are buffered one transition deep.
		select {
		case ch <- Event{Online: online}:
		default:
		}
	}
}

// Subscribe registers a buffered channel that receives transition events.
// Callers must Unsubscribe when done.
func (m *Monitor) Subscribe() chan Event {
	ch := make(chan Event, 1)
	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (m *Monitor) Unsubscribe(ch chan Event) {
	m.mu.Lock()
	if _, ok := m.subs[ch]; ok {
		delete(m.subs, ch)
		close(ch)
	}
	m.mu.Unlock()
}

// Watch polls the probe at the given interval and feeds SetOnline.
// It blocks until ctx is cancelled. Run it in a goroutine:
//
//	go mon.Watch(ctx, 15*time.Second, connectivity.HTTPProbe(healthURL))
func (m *Monitor) Watch(ctx context.Context, interval time.Duration, probe Probe) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("connectivity watcher started", "interval", interval)

	// Initial probe so the flag reflects reality before the first tick.
	m.SetOnline(probe(ctx))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("connectivity watcher stopped")
			return
		case <-ticker.C:
			m.SetOnline(probe(ctx))
		}
	}
}

// HTTPProbe returns a Probe that issues a HEAD request against url with a
// short per-attempt timeout. Any response, regardless of status, counts as
// reachable; only transport failure means offline.
func HTTPProbe(url string) Probe {
	client := &http.Client{Timeout: 5 * time.Second}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}
}
