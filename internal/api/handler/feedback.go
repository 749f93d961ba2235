package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/kiranshivaraju/anomalyzer/internal/api/middleware"
	"github.com/kiranshivaraju/anomalyzer/internal/api/response"
	"github.com/kiranshivaraju/anomalyzer/internal/store"
)

// FeedbackService defines the interface the feedback handler depends on.
type FeedbackService interface {
	MarkFalsePositive(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error
}

// NewFalsePositiveHandler returns an http.HandlerFunc for
// POST /api/v1/analyses/{analysisID}/false-positive. The operation is
// idempotent: flagging an already-flagged analysis succeeds.
func NewFalsePositiveHandler(svc FeedbackService) http.HandlerFunc {
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

		if err := svc.MarkFalsePositive(r.Context(), id, tenantID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Analysis not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, map[string]any{
			"id":                id,
			"is_false_positive": true,
		})
	}
}
