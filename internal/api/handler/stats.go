package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/anomalyzer/internal/analyzer"
	mw "github.com/kiranshivaraju/anomalyzer/internal/api/middleware"
	"github.com/kiranshivaraju/anomalyzer/internal/api/response"
)

const (
	defaultStatsWindow = 24 * time.Hour
	maxStatsWindow     = 90 * 24 * time.Hour
)

// StatsService defines the interface the stats handler depends on.
type StatsService interface {
	FalsePositiveRate(ctx context.Context, tenantID uuid.UUID, window time.Duration) (analyzer.FalsePositiveStats, error)
}

// NewFalsePositiveRateHandler returns an http.HandlerFunc for
// GET /api/v1/stats/false-positive-rate. The window query parameter is a
// Go duration ("1h", "24h", "168h"); defaults to 24h.
func NewFalsePositiveRateHandler(svc StatsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		window := defaultStatsWindow
		if v := r.URL.Query().Get("window"); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil || parsed <= 0 || parsed > maxStatsWindow {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"window must be a positive duration up to 2160h", nil)
				return
			}
			window = parsed
		}

		stats, err := svc.FalsePositiveRate(r.Context(), tenantID, window)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, map[string]any{
			"window":              window.String(),
			"flagged":             stats.Flagged,
			"total":               stats.Total,
			"false_positive_rate": stats.Rate,
		})
	}
}
