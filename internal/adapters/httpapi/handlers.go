package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/alejandrodnm/polyedge/internal/domain"
)

const (
	defaultReportDays = 30
	defaultCycleLimit = 20
	maxCycleLimit     = 500
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, "database unhealthy", err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.now().UTC(),
	})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, newStatusResponse(s.deps.Engine.Status()))
}

func (s *Server) performance(w http.ResponseWriter, r *http.Request) {
	days := parseIntParam(r, "days", defaultReportDays)
	if days <= 0 {
		respondError(w, http.StatusBadRequest, "days must be positive", nil)
		return
	}
	since := domain.TradingDay(s.now()).AddDate(0, 0, -(days - 1))
	respondJSON(w, http.StatusOK, newPerformanceResponse(s.deps.Engine.Performance(since)))
}

func (s *Server) cycles(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		respondError(w, http.StatusNotFound, "cycle history not available", nil)
		return
	}
	limit := parseIntParam(r, "limit", defaultCycleLimit)
	if limit <= 0 || limit > maxCycleLimit {
		limit = defaultCycleLimit
	}
	rows, err := s.deps.Store.RecentCycles(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load cycles", err)
		return
	}
	out := make([]cycleResponse, 0, len(rows))
	for _, c := range rows {
		out = append(out, cycleResponse{
			ID:         c.ID,
			StartedAt:  c.StartedAt,
			DurationMs: c.Duration.Milliseconds(),
			Snapshots:  c.Snapshots,
			Approved:   c.Approved,
			Rejected:   c.Rejected,
			Failed:     c.Failed,
			Exits:      c.Exits,
			Gate:       c.Gate,
			DailyPnL:   c.DailyPnL.StringFixed(2),
			Error:      c.Err,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"cycles": out, "count": len(out)})
}

func parseIntParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("encoding response", "err", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		slog.Warn("http api error", "msg", message, "err", err)
	}
	respondJSON(w, status, errorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}

// finite sustituye +Inf por nil: JSON no tiene infinito.
func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}
