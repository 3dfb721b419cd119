// Package submit decides what happens to a finished inspection: sent to the
// server, parked in the durable queue, or failed back to the user.
package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/LucaslFerrari/App-Inspecao/connectivity"
	"github.com/LucaslFerrari/App-Inspecao/draft"
	"github.com/LucaslFerrari/App-Inspecao/inspection"
	"github.com/LucaslFerrari/App-Inspecao/queue"
	"github.com/LucaslFerrari/App-Inspecao/syncer"
)

// State is the terminal state of one save attempt.
type State int

const (
	// Succeeded: the server committed the inspection.
	Succeeded State = iota
	// QueuedOffline: the submission is parked in the durable queue and
	// will be drained when connectivity returns.
	QueuedOffline
	// Failed: neither sent nor queued. Err carries the cause.
	Failed
)

func (s State) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case QueuedOffline:
		return "queued_offline"
	default:
		return "failed"
	}
}

// Outcome reports how a save attempt ended.
type Outcome struct {
	State    State
	ServerID int64  // set when Succeeded
	LocalID  string // set when QueuedOffline
	Err      error  // set when Failed
}

// Position is a device fix attached to submissions when available.
type Position struct {
	Lat      float64
	Lng      float64
	Accuracy float64
}

// Locator produces a device position. Implementations should honour the
// context deadline; the orchestrator budgets a few seconds and moves on
// without coordinates when the fix doesn't arrive.
type Locator func(ctx context.Context) (Position, error)

// Config configures an Orchestrator.
type Config struct {
	// SubmitTimeout bounds one remote save attempt, uploads included.
	// Default: 30s.
	SubmitTimeout time.Duration
	// LocateBudget bounds the best-effort geolocation fix. Default: 8s.
	LocateBudget time.Duration
	// Locate is optional; nil means submissions go out without coordinates.
	Locate Locator
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.SubmitTimeout <= 0 {
		c.SubmitTimeout = 30 * time.Second
	}
	if c.LocateBudget <= 0 {
		c.LocateBudget = 8 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Orchestrator runs the save flow: geolocate, send or queue, opportunistic
// drain after a confirmed save.
type Orchestrator struct {
	client *Client
	q      *queue.Q
	mon    *connectivity.Monitor
	engine *syncer.Engine
	cfg    Config
}

// New creates an Orchestrator.
func New(client *Client, q *queue.Q, mon *connectivity.Monitor, engine *syncer.Engine, cfg Config) *Orchestrator {
	cfg.defaults()
	return &Orchestrator{client: client, q: q, mon: mon, engine: engine, cfg: cfg}
}

// Save pushes one submission through the full flow and always returns a
// terminal Outcome.
func (o *Orchestrator) Save(ctx context.Context, sub inspection.Submission) Outcome {
	log := o.cfg.Logger

	if o.cfg.Locate != nil && sub.Lat == nil {
		lctx, cancel := context.WithTimeout(ctx, o.cfg.LocateBudget)
		pos, err := o.cfg.Locate(lctx)
		cancel()
		if err != nil {
			// Coordinates are nice to have; a fix miss never blocks the save.
			log.Warn("geolocation unavailable, saving without coordinates", "error", err)
		} else {
			sub.Lat, sub.Lng, sub.GPSAccuracy = &pos.Lat, &pos.Lng, &pos.Accuracy
		}
	}

	payload, err := json.Marshal(sub)
	if err != nil {
		return Outcome{State: Failed, Err: fmt.Errorf("encode submission: %w", err)}
	}

	if !o.mon.Online() {
		return o.enqueue(ctx, payload, nil)
	}

	sctx, cancel := context.WithTimeout(ctx, o.cfg.SubmitTimeout)
	defer cancel()

	id, err := o.client.Submit(sctx, payload)
	if err == nil {
		log.Info("inspection sent", "server_id", id)
		// A confirmed save proves the link works: drain whatever queued up
		// while we were offline.
		if _, derr := o.Drain(ctx); derr != nil {
			log.Warn("post-save drain failed", "error", derr)
		}
		return Outcome{State: Succeeded, ServerID: id}
	}

	switch {
	case isConnectivity(err):
		log.Warn("send failed, queueing offline", "error", err)
		o.mon.SetOnline(false)
		return o.enqueue(ctx, payload, err)
	case errors.Is(err, context.DeadlineExceeded) && sctx.Err() != nil && ctx.Err() == nil:
		// Our own submit deadline fired. The server may still have
		// committed; queueing would risk a duplicate.
		return Outcome{State: Failed, Err: fmt.Errorf("%w: %v", ErrAborted, err)}
	default:
		return Outcome{State: Failed, Err: err}
	}
}

// SaveDrafts folds the session's per-equipment drafts into the header as
// multi-equipment page batches and runs the save flow. The drafts are
// cleared once the submission is sent or safely queued; a Failed outcome
// keeps them so the session can retry.
func (o *Orchestrator) SaveDrafts(ctx context.Context, drafts *draft.Set, header inspection.Submission) Outcome {
	out := o.Save(ctx, drafts.MergeForSubmit(header))
	if out.State != Failed {
		drafts.Clear()
	}
	return out
}

// enqueue parks the payload in the durable queue. A queue that cannot even
// store the payload degrades to a plain failure, surfacing the send error
// that got us here when there is one.
func (o *Orchestrator) enqueue(ctx context.Context, payload []byte, sendErr error) Outcome {
	localID, err := o.q.Enqueue(ctx, payload)
	if err != nil {
		o.cfg.Logger.Error("offline queue unavailable", "error", err)
		if sendErr != nil {
			return Outcome{State: Failed, Err: sendErr}
		}
		return Outcome{State: Failed, Err: err}
	}
	return Outcome{State: QueuedOffline, LocalID: localID}
}

// Drain flushes the queue through the remote client, one submission per
// attempt with the configured submit timeout.
func (o *Orchestrator) Drain(ctx context.Context) (syncer.Result, error) {
	return o.engine.Drain(ctx, func(ctx context.Context, item queue.Item) error {
		sctx, cancel := context.WithTimeout(ctx, o.cfg.SubmitTimeout)
		defer cancel()
		_, err := o.client.Submit(sctx, item.Payload)
		if err != nil && isConnectivity(err) {
			o.mon.SetOnline(false)
		}
		return err
	})
}

// isConnectivity reports whether err looks like the network, not the
// payload: dial and DNS failures, resets, refused connections. Context
// deadlines are excluded — those are our own abort.
func isConnectivity(err error) bool {
	if err == nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var serr *ServerError
	if errors.As(err, &serr) {
		return false
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}
