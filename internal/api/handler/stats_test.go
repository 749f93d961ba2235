package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/anomalyzer/internal/analyzer"
	mw "github.com/kiranshivaraju/anomalyzer/internal/api/middleware"
)

type mockStats struct {
	window time.Duration
	stats  analyzer.FalsePositiveStats
}

func (m *mockStats) FalsePositiveRate(_ context.Context, _ uuid.UUID, window time.Duration) (analyzer.FalsePositiveStats, error) {
	m.window = window
	return m.stats, nil
}

func statsReq(query string, tenantID uuid.UUID) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/stats/false-positive-rate"+query, nil)
	return r.WithContext(mw.SetTenantID(r.Context(), tenantID))
}

func TestFalsePositiveRateHandlerDefaultWindow(t *testing.T) {
	svc := &mockStats{stats: analyzer.FalsePositiveStats{Flagged: 3, Total: 12, Rate: 0.25}}
	h := NewFalsePositiveRateHandler(svc)
	rec := httptest.NewRecorder()

	h(rec, statsReq("", uuid.New()))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if svc.window != 24*time.Hour {
		t.Errorf("window = %v, want default 24h", svc.window)
	}

	var env struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data["false_positive_rate"] != 0.25 {
		t.Errorf("rate = %v, want 0.25", env.Data["false_positive_rate"])
	}
}

func TestFalsePositiveRateHandlerCustomWindow(t *testing.T) {
	svc := &mockStats{}
	h := NewFalsePositiveRateHandler(svc)
	rec := httptest.NewRecorder()

	h(rec, statsReq("?window=168h", uuid.New()))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if svc.window != 168*time.Hour {
		t.Errorf("window = %v, want 168h", svc.window)
	}
}

func TestFalsePositiveRateHandlerRejectsBadWindow(t *testing.T) {
	h := NewFalsePositiveRateHandler(&mockStats{})

	for _, q := range []string{"?window=yesterday", "?window=-1h", "?window=9000h"} {
		rec := httptest.NewRecorder()
		h(rec, statsReq(q, uuid.New()))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("window %q: status = %d, want 400", q, rec.Code)
		}
	}
}
