// Entry point for the field-device agent — owns the durable offline queue,
// watches connectivity against the server and drains the backlog when the
// link comes back. Exposes a small local HTTP API for the capture UI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/LucaslFerrari/App-Inspecao/connectivity"
	"github.com/LucaslFerrari/App-Inspecao/draft"
	"github.com/LucaslFerrari/App-Inspecao/inspection"
	"github.com/LucaslFerrari/App-Inspecao/metrics"
	"github.com/LucaslFerrari/App-Inspecao/queue"
	"github.com/LucaslFerrari/App-Inspecao/submit"
	"github.com/LucaslFerrari/App-Inspecao/syncer"
)

// agentConfig is read from a YAML file; environment variables override
// individual fields. Field devices are easier to provision with a file.
type agentConfig struct {
	ServerURL     string        `yaml:"server_url"`
	QueuePath     string        `yaml:"queue_path"`
	ListenAddr    string        `yaml:"listen_addr"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
	SubmitTimeout time.Duration `yaml:"submit_timeout"`
}

func loadConfig() agentConfig {
	cfg := agentConfig{
		ServerURL:     "http://localhost:3000",
		QueuePath:     "data/fila.db",
		ListenAddr:    "127.0.0.1:7077",
		ProbeInterval: 15 * time.Second,
	}
	path := env("AGENT_CONFIG", "agent.yml")
	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			slog.Error("parse config", "path", path, "error", err)
			os.Exit(1)
		}
	}
	if v := os.Getenv("SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("QUEUE_PATH"); v != "" {
		cfg.QueuePath = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("PROBE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ProbeInterval = d
		}
	}
	return cfg
}

func main() {
	logLevel := env("LOG_LEVEL", "info")
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	q, err := queue.Open(cfg.QueuePath, queue.Options{Logger: logger})
	if err != nil {
		slog.Error("open queue", "error", err)
		os.Exit(1)
	}
	defer q.Close()
	if err := q.EnsureTable(ctx); err != nil {
		slog.Error("queue table", "error", err)
		os.Exit(1)
	}

	mon := connectivity.NewMonitor(connectivity.WithLogger(logger))
	engine := syncer.New(q, mon, syncer.WithLogger(logger))
	orch := submit.New(submit.NewClient(cfg.ServerURL), q, mon, engine, submit.Config{
		SubmitTimeout: cfg.SubmitTimeout,
		Logger:        logger,
	})

	go mon.Watch(ctx, cfg.ProbeInterval, connectivity.HTTPProbe(cfg.ServerURL+"/health"))

	updateBacklog := func() {
		if n, err := q.Count(ctx); err == nil {
			metrics.QueueBacklog.Set(float64(n))
		}
	}

	drain := func(reason string) {
		res, err := orch.Drain(ctx)
		switch {
		case err != nil:
			metrics.SyncDrains.WithLabelValues("error").Inc()
			slog.Warn("drain failed", "reason", reason, "error", err)
		case len(res.Remaining) > 0:
			metrics.SyncDrains.WithLabelValues("partial").Inc()
			slog.Info("drain partial", "reason", reason,
				"sent", len(res.Sent), "remaining", len(res.Remaining))
		default:
			metrics.SyncDrains.WithLabelValues("ok").Inc()
			if len(res.Sent) > 0 {
				slog.Info("drain complete", "reason", reason, "sent", len(res.Sent))
			}
		}
		updateBacklog()
	}

	// Anything left over from the last run goes out first.
	drain("startup")

	// Drain whenever the link comes back.
	events := mon.Subscribe()
	defer mon.Unsubscribe(events)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Online {
					drain("reconnected")
				}
			}
		}
	}()

	// One capture session's per-equipment drafts live here until /save
	// merges them into the submission.
	drafts := draft.NewSet()

	r := chi.NewRouter()

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		n, err := q.Count(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, map[string]any{"online": mon.Online(), "pending": n})
	})

	r.Post("/save", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 64<<20)
		var sub inspection.Submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			writeError(w, 400, err)
			return
		}
		out := orch.SaveDrafts(r.Context(), drafts, sub)
		updateBacklog()
		resp := map[string]any{"state": out.State.String()}
		switch out.State {
		case submit.Succeeded:
			resp["id"] = out.ServerID
			writeJSON(w, 200, resp)
		case submit.QueuedOffline:
			resp["local_id"] = out.LocalID
			writeJSON(w, 202, resp)
		default:
			resp["error"] = out.Err.Error()
			if errors.Is(out.Err, submit.ErrAborted) {
				writeJSON(w, 504, resp)
				return
			}
			writeJSON(w, 502, resp)
		}
	})

	r.Get("/drafts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{
			"active": drafts.Active(), "equips": drafts.Codes(),
		})
	})

	r.Put("/draft/{equip}", func(w http.ResponseWriter, r *http.Request) {
		var p draft.Pages
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, 400, err)
			return
		}
		drafts.Save(chi.URLParam(r, "equip"), p)
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	r.Get("/draft/{equip}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, drafts.Get(chi.URLParam(r, "equip")))
	})

	// The UI posts its working pages when the inspector changes equipment;
	// the outgoing draft is snapshotted and the stored draft of the new
	// equipment comes back.
	r.Post("/draft/switch", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Equip string      `json:"equip"`
			Pages draft.Pages `json:"pages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		writeJSON(w, 200, drafts.Switch(req.Equip, req.Pages))
	})

	r.Post("/sync", func(w http.ResponseWriter, r *http.Request) {
		res, err := orch.Drain(r.Context())
		updateBacklog()
		if err != nil {
			metrics.SyncDrains.WithLabelValues("error").Inc()
			writeError(w, 500, err)
			return
		}
		if len(res.Remaining) > 0 {
			metrics.SyncDrains.WithLabelValues("partial").Inc()
		} else {
			metrics.SyncDrains.WithLabelValues("ok").Inc()
		}
		writeJSON(w, 200, map[string]any{
			"enviadas": len(res.Sent), "pendentes": len(res.Remaining),
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	updateBacklog()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("agent starting", "addr", cfg.ListenAddr, "server", cfg.ServerURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("agent error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("agent stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
