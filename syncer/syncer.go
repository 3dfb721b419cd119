// Package syncer drains the durable local queue against the remote server.
//
// Drains are strictly serialized: a second caller blocks until the in-flight
// drain finishes, then runs against whatever is still queued. This makes the
// auto-drain on reconnect, the post-save opportunistic drain and the manual
// sync endpoint safe to fire concurrently without double-submitting.
package syncer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/LucaslFerrari/App-Inspecao/connectivity"
	"github.com/LucaslFerrari/App-Inspecao/queue"
)

// Submit sends one queued payload to the server. A nil return means the
// server accepted it and the item can be removed.
type Submit func(ctx context.Context, item queue.Item) error

// Result summarises one drain pass.
type Result struct {
	// Sent holds the ids accepted by the server and removed from the queue.
	Sent []string
	// Remaining holds the items still queued after the pass: failures, plus
	// everything skipped because the device went offline mid-drain.
	Remaining []queue.Item
}

// Engine coordinates drain passes over a queue.
type Engine struct {
	q   *queue.Q
	mon *connectivity.Monitor

	mu     sync.Mutex
	logger *slog.Logger
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// New creates an Engine over the queue and monitor.
func New(q *queue.Q, mon *connectivity.Monitor, opts ...Option) *Engine {
	e := &Engine{q: q, mon: mon, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Drain submits queued items oldest first, one at a time.
//
// A failed item stays queued and the pass moves on to the next one; queued
// submissions are independent, so one rejection must not strand the rest.
// The pass stops early only when the monitor reports offline — at that point
// every further attempt would fail the same way. Accepted ids are removed in
// a single batch at the end.
func (e *Engine) Drain(ctx context.Context, submit Submit) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	items, err := e.q.ListAll(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(items) == 0 {
		return Result{}, nil
	}

	e.logger.Info("syncer: drain started", "pending", len(items))

	var res Result
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			res.Remaining = append(res.Remaining, items[i:]...)
			break
		}
		if err := submit(ctx, it); err != nil {
			res.Remaining = append(res.Remaining, it)
			if !e.mon.Online() {
				e.logger.Warn("syncer: offline mid-drain, stopping",
					"sent", len(res.Sent), "remaining", len(items)-i)
				res.Remaining = append(res.Remaining, items[i+1:]...)
				break
			}
			e.logger.Warn("syncer: item rejected, continuing", "id", it.ID, "error", err)
			continue
		}
		res.Sent = append(res.Sent, it.ID)
	}

	if len(res.Sent) > 0 {
		// The server already accepted these; finish the removal even if the
		// caller's context died mid-drain, or they would be re-sent later.
		if _, err := e.q.RemoveMany(context.WithoutCancel(ctx), res.Sent); err != nil {
			return res, err
		}
	}

	e.logger.Info("syncer: drain finished",
		"sent", len(res.Sent), "remaining", len(res.Remaining))
	return res, nil
}
