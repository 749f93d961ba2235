// Package handler contains the HTTP handlers for the Anomalyzer API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/anomalyzer/internal/analyzer"
	mw "github.com/kiranshivaraju/anomalyzer/internal/api/middleware"
	"github.com/kiranshivaraju/anomalyzer/internal/api/response"
	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

// requiredFields are the anomaly keys that must be present in the request
// body. Presence is checked on the raw JSON because zero is a legitimate
// value for the numeric fields.
var requiredFields = []string{
	"anomaly_id",
	"detected_at",
	"metric_name",
	"metric_type",
	"current_value",
	"baseline_value",
	"deviation_sigma",
	"deviation_percentage",
	"anomaly_type",
	"severity",
}

// Analyzer defines the interface the analyze handler depends on.
type Analyzer interface {
	AnalyzeAnomaly(ctx context.Context, tenantID uuid.UUID, anomaly *models.Anomaly) (*models.Analysis, error)
}

// NewAnalyzeHandler returns an http.HandlerFunc for POST /api/v1/analyses.
func NewAnalyzeHandler(svc Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		var missing []string
		for _, field := range requiredFields {
			if _, present := raw[field]; !present {
				missing = append(missing, field)
			}
		}
		if len(missing) > 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Missing required fields", map[string]any{"missing": missing})
			return
		}

		// Re-encode and decode into the typed model so field-level type
		// errors get reported instead of silently zeroing.
		buf, err := json.Marshal(raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		var anomaly models.Anomaly
		if err := json.Unmarshal(buf, &anomaly); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		if err := anomaly.Validate(); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		result, err := svc.AnalyzeAnomaly(r.Context(), tenantID, &anomaly)
		if err != nil {
			if errors.Is(err, analyzer.ErrNoExplanation) {
				response.Error(w, http.StatusInternalServerError, "NO_EXPLANATION",
					"The analysis produced no root-cause candidates", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.Created(w, result)
	}
}
