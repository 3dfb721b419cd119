// Entry point for the inspection server — chi router, SQLite store,
// evidence storage, opportunity derivation, Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "modernc.org/sqlite"

	"github.com/LucaslFerrari/App-Inspecao/dbopen"
	"github.com/LucaslFerrari/App-Inspecao/inspection"
	"github.com/LucaslFerrari/App-Inspecao/metrics"
	"github.com/LucaslFerrari/App-Inspecao/storage"
)

func main() {
	port := env("PORT", "3000")
	dbPath := env("DB_PATH", "db/inspecao.db")
	uploadDir := env("UPLOAD_DIR", "uploads")
	storageDriver := env("STORAGE_DRIVER", "local")
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
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

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := dbopen.Open(dbPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("open db", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	st, err := storage.ForDriver(storageDriver, uploadDir)
	if err != nil {
		slog.Error("storage", "error", err)
		os.Exit(1)
	}

	store := inspection.New(db, inspection.Config{Storage: st, Logger: logger})
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("schema", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Evidence files are served straight off disk.
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))

	r.Post("/api/salvar-inspecao", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 64<<20)
		var sub inspection.Submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			metrics.InspectionsSaved.WithLabelValues("invalid").Inc()
			writeError(w, 400, err)
			return
		}
		start := time.Now()
		id, err := store.SaveInspection(r.Context(), sub)
		metrics.SaveDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			switch {
			case errors.Is(err, inspection.ErrValidation):
				metrics.InspectionsSaved.WithLabelValues("invalid").Inc()
				writeError(w, 400, err)
			default:
				metrics.InspectionsSaved.WithLabelValues("error").Inc()
				slog.Error("save inspection", "error", err)
				writeError(w, 500, err)
			}
			return
		}
		metrics.InspectionsSaved.WithLabelValues("ok").Inc()
		metrics.EvidenceStored.Add(float64(len(sub.Evidencias)))
		writeJSON(w, 200, map[string]any{"success": true, "id": id})
	})

	r.Post("/api/inspecoes/reprocessar-oportunidades", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			InspecaoIDs []int64 `json:"inspecao_ids"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, 400, err)
				return
			}
		}
		res, err := store.Reprocess(r.Context(), req.InspecaoIDs)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		metrics.OpportunitiesDerived.Add(float64(res.OportunidadesCriadas))
		writeJSON(w, 200, res)
	})

	r.Get("/api/inspecoes", func(w http.ResponseWriter, r *http.Request) {
		f := inspection.ListFilter{
			EmpresaID: queryInt64(r, "empresa_id", 0),
			DataDe:    r.URL.Query().Get("data_de"),
			DataAte:   r.URL.Query().Get("data_ate"),
			Equip:     r.URL.Query().Get("equip"),
			Area:      r.URL.Query().Get("area"),
			Inspetor:  r.URL.Query().Get("inspetor"),
			Page:      int(queryInt64(r, "page", 0)),
			PageSize:  int(queryInt64(r, "pageSize", 0)),
		}
		if v := queryInt64(r, "contrato_id", 0); v > 0 {
			f.ContratoID = &v
		}
		res, err := store.ListInspections(r.Context(), f)
		if err != nil {
			if errors.Is(err, inspection.ErrValidation) {
				writeError(w, 400, err)
				return
			}
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, res)
	})

	r.Get("/api/inspecoes/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, 400, err)
			return
		}
		sum, err := store.InspectionSummary(r.Context(), id)
		if err != nil {
			if errors.Is(err, inspection.ErrNotFound) {
				writeError(w, 404, err)
				return
			}
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, sum)
	})

	r.Get("/api/oportunidades/correia/{correiaID}", func(w http.ResponseWriter, r *http.Request) {
		correiaID, err := strconv.ParseInt(chi.URLParam(r, "correiaID"), 10, 64)
		if err != nil {
			writeError(w, 400, err)
			return
		}
		opps, err := store.OpportunitiesByBelt(r.Context(), correiaID)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, opps)
	})

	r.Patch("/api/oportunidades/status", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Updates []inspection.StatusUpdate `json:"updates"`
			IDs     []int64                   `json:"ids"`
			Status  any                       `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		updates := req.Updates
		// Legacy shape: a flat id list with a single status for all of them.
		if len(updates) == 0 && len(req.IDs) > 0 {
			for _, id := range req.IDs {
				updates = append(updates, inspection.StatusUpdate{ID: id, Status: req.Status})
			}
		}
		n, err := store.UpdateOpportunityStatuses(r.Context(), updates)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, map[string]any{"success": true, "atualizadas": n})
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port, "db", dbPath)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
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
	slog.Info("server stopped")
}

// --- Helpers ---

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

func queryInt64(r *http.Request, key string, def int64) int64 {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return def
	}
	return v
}
