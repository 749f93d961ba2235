package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/kiranshivaraju/anomalyzer/internal/api/middleware"
	"github.com/kiranshivaraju/anomalyzer/internal/api/response"
	"github.com/kiranshivaraju/anomalyzer/internal/store"
	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

// NewGetAnalysisHandler returns an http.HandlerFunc for
// GET /api/v1/analyses/{analysisID}.
func NewGetAnalysisHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "analysisID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"analysisID must be a valid UUID", nil)
			return
		}

		analysis, err := s.GetAnalysis(r.Context(), id, tenantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Analysis not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, analysis)
	}
}

// NewListAnalysesHandler returns an http.HandlerFunc for GET /api/v1/analyses.
// Supported query parameters: anomaly_id, anomaly_type, severity, since
// (RFC3339), page, limit.
func NewListAnalysesHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		q := r.URL.Query()
		filter := store.AnalysisFilter{
			TenantID:  tenantID,
			AnomalyID: q.Get("anomaly_id"),
		}

		if v := q.Get("anomaly_type"); v != "" {
			t := models.AnomalyType(v)
			if !t.Valid() {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"anomaly_type must be one of stability, performance, cost, resource, unknown", nil)
				return
			}
			filter.AnomalyType = t
		}
		if v := q.Get("severity"); v != "" {
			sev := models.Severity(v)
			if !sev.Valid() {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"severity must be one of critical, high, medium, low, info", nil)
				return
			}
			filter.Severity = sev
		}
		if v := q.Get("since"); v != "" {
			since, err := time.Parse(time.RFC3339, v)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"since must be a valid RFC3339 timestamp", nil)
				return
			}
			filter.Since = since
		}
		if v := q.Get("page"); v != "" {
			page, err := strconv.Atoi(v)
			if err != nil || page < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"page must be a positive integer", nil)
				return
			}
			filter.Page = page
		}
		if v := q.Get("limit"); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil || limit < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"limit must be a positive integer", nil)
				return
			}
			filter.Limit = limit
		}

		analyses, total, err := s.ListAnalyses(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		page := filter.Page
		if page < 1 {
			page = 1
		}
		limit := filter.Limit
		if limit < 1 {
			limit = 20
		}

		response.Collection(w, analyses, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}
