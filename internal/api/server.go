// Package api exposes the read-only HTTP surface over persisted backtest
// and optimization results: jobs, runs, reports, trades and equity
// curves. There is no live trading or streaming surface.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/atlas-quant/futures-backtester/pkg/storage"
)

// Settings configures the HTTP server.
type Settings struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the read-only API server.
type Server struct {
	logger     *zap.Logger
	settings   Settings
	router     *mux.Router
	httpServer *http.Server
	store      *storage.Store
}

// NewServer builds a Server backed by store.
func NewServer(logger *zap.Logger, settings Settings, store *storage.Store) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{logger: logger, settings: settings, router: mux.NewRouter(), store: store}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/v1/runs/{id}/report", s.handleGetRun).Methods("GET")
	s.router.HandleFunc("/api/v1/runs/{id}/trades", s.handleGetRunTrades).Methods("GET")
	s.router.HandleFunc("/api/v1/runs/{id}/equity-curve", s.handleGetRunEquityCurve).Methods("GET")
	s.router.HandleFunc("/api/v1/jobs/{id}/reports", s.handleGetJobReports).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// Start blocks serving HTTP traffic until the server is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.settings.Host, s.settings.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"*"},
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
	}

	s.logger.Info("api: starting server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "time": time.Now().Unix()})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := s.store.GetReportForRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetRunTrades(w http.ResponseWriter, r *http.Request) {
	runID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	trades, err := s.store.GetTradesForRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleGetRunEquityCurve(w http.ResponseWriter, r *http.Request) {
	runID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	curve, err := s.store.GetEquityCurveForRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, curve)
}

func (s *Server) handleGetJobReports(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathInt64(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	reports, err := s.store.GetReportsForJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func pathInt64(r *http.Request, key string) (int64, error) {
	raw := mux.Vars(r)[key]
	return strconv.ParseInt(raw, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
