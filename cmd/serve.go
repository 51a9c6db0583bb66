package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metspa/network-buddy-sub000/internal/model"
	"github.com/metspa/network-buddy-sub000/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enrichment HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		// Periodic cache sweep keeps the expired rows from piling up.
		sweeper := cron.New()
		if _, err := sweeper.AddFunc(cfg.Cache.SweepSchedule, func() {
			n, sweepErr := env.Cache.SweepExpired(ctx)
			if sweepErr != nil {
				zap.L().Warn("cache sweep failed", zap.Error(sweepErr))
				return
			}
			zap.L().Info("cache sweep complete", zap.Int("removed", n))
		}); err != nil {
			return eris.Wrap(err, "schedule cache sweep")
		}
		sweeper.Start()
		defer sweeper.Stop()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/records", handleCreateRecord(env))
		r.Get("/records", handleListRecords(env))
		r.Get("/records/{id}", handleGetRecord(env))
		r.Post("/records/{id}/enrich", handleEnrich(ctx, env))
		r.Get("/records/{id}/events", handleEvents(env))
		r.Get("/accounts/{id}/usage", handleUsage(env))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func handleCreateRecord(env *enrichEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var in struct {
			AccountID string `json:"account_id"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Company   string `json:"company"`
			JobTitle  string `json:"job_title"`
			Email     string `json:"email"`
			Phone     string `json:"phone"`
		}
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if in.AccountID == "" {
			writeError(w, http.StatusBadRequest, "account_id is required")
			return
		}

		rec := &model.Record{
			AccountID: in.AccountID,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Company:   in.Company,
			JobTitle:  in.JobTitle,
			Email:     in.Email,
			Phone:     in.Phone,
		}
		if err := env.Store.CreateRecord(req.Context(), rec); err != nil {
			zap.L().Error("create record failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "create failed")
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func handleListRecords(env *enrichEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		filter := store.RecordFilter{
			AccountID: q.Get("account_id"),
			Status:    model.RecordStatus(q.Get("status")),
		}
		filter.Limit, _ = strconv.Atoi(q.Get("limit"))
		filter.Offset, _ = strconv.Atoi(q.Get("offset"))

		recs, err := env.Store.ListRecords(req.Context(), filter)
		if err != nil {
			zap.L().Error("list records failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": recs})
	}
}

func handleGetRecord(env *enrichEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		rec, err := env.Store.GetRecord(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			zap.L().Error("get record failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// handleEnrich starts the attempt in the background and returns 202; the
// caller follows progress via the events stream or by polling the record.
// The attempt runs on the server's context so it outlives the request.
func handleEnrich(serverCtx context.Context, env *enrichEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")

		rec, err := env.Store.GetRecord(req.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}

		allowed, reason, err := env.Gate.CheckAllowed(req.Context(), rec.AccountID)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "usage check unavailable")
			return
		}
		if !allowed {
			writeError(w, http.StatusPaymentRequired, reason)
			return
		}

		go func() {
			if _, runErr := env.Orchestrator.Enrich(serverCtx, id); runErr != nil {
				zap.L().Error("enrichment failed",
					zap.String("record_id", id),
					zap.Error(runErr),
				)
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":    "accepted",
			"record_id": id,
		})
	}
}

// handleEvents streams progress for one record as server-sent events
// until the terminal event or client disconnect.
func handleEvents(env *enrichEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		id := chi.URLParam(req, "id")
		events, cancel := env.Orchestrator.Progress().Subscribe(id)
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-req.Context().Done():
				return
			case ev, open := <-events:
				if !open {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Phase, payload)
				flusher.Flush()
			}
		}
	}
}

func handleUsage(env *enrichEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		acct, err := env.Gate.Account(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			zap.L().Error("usage lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "usage lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, acct)
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
