// Package http exposes the service's HTTP surface: health, readiness, and
// metrics endpoints plus the citizen report API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/airshedlabs/enviro-risk-service/internal/domain"
	"github.com/airshedlabs/enviro-risk-service/internal/reports"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the operational endpoints and the report API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	reports    *reports.Service
	readings   reports.ReadingProvider
}

// NewServer creates an HTTP server. svc and readings back the /api routes;
// /healthz, /readyz, and /metrics work without them.
func NewServer(addr string, ready ReadinessChecker, svc *reports.Service, readings reports.ReadingProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:   logger,
		reports:  svc,
		readings: readings,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/reports", s.handleSubmitReport)
	mux.HandleFunc("GET /api/reports", s.handleListReports)
	mux.HandleFunc("GET /api/reports/{id}", s.handleGetReport)
	mux.HandleFunc("POST /api/reports/{id}/vote", s.handleVote)
	mux.HandleFunc("POST /api/alerts/validations", s.handleAlertValidation)
	mux.HandleFunc("GET /api/statistics", s.handleStatistics)
	mux.HandleFunc("GET /api/trends/{location}", s.handleTrends)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var report domain.CitizenReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	submitted, err := s.reports.Submit(r.Context(), report)
	if err != nil {
		s.respondError(w, err, "submit report")
		return
	}
	writeJSON(w, http.StatusCreated, submitted)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := reports.ListFilter{
		Location: q.Get("location"),
		Status:   domain.ReportStatus(q.Get("status")),
		Type:     domain.ReportType(q.Get("type")),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	list, err := s.reports.List(r.Context(), filter)
	if err != nil {
		s.respondError(w, err, "list reports")
		return
	}
	if list == nil {
		list = []domain.CitizenReport{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}
	report, err := s.reports.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, err, "get report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	id, ok := reportID(w, r)
	if !ok {
		return
	}

	var body struct {
		Vote string `json:"vote"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Vote != "up" && body.Vote != "down" {
		writeError(w, http.StatusBadRequest, `vote must be "up" or "down"`)
		return
	}

	report, err := s.reports.Vote(r.Context(), id, body.Vote == "up")
	if err != nil {
		s.respondError(w, err, "vote")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAlertValidation(w http.ResponseWriter, r *http.Request) {
	var v domain.AlertValidation
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	stored, err := s.reports.SubmitAlertValidation(r.Context(), v)
	if err != nil {
		s.respondError(w, err, "alert validation")
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reports.Statistics(r.Context(), r.URL.Query().Get("location"))
	if err != nil {
		s.respondError(w, err, "statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleTrends computes pairwise factor correlations over the recent history
// window for one station.
func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	location := r.PathValue("location")

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 168 {
			writeError(w, http.StatusBadRequest, "hours must be between 1 and 168")
			return
		}
		hours = parsed
	}

	now := time.Now()
	window := s.readings.Window(location, now.Add(-time.Duration(hours)*time.Hour), now)

	trends, ok := domain.ComputeTrendCorrelations(window)
	if !ok {
		writeError(w, http.StatusNotFound, "not enough readings for trend analysis")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location_id":  location,
		"window_hours": hours,
		"correlations": trends,
	})
}

func reportID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "report id must be a positive integer")
		return 0, false
	}
	return id, true
}

// respondError maps service errors onto HTTP statuses.
func (s *Server) respondError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, domain.ErrInvalidReport):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, reports.ErrNotFound):
		writeError(w, http.StatusNotFound, "report not found")
	default:
		s.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
