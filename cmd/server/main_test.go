package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/anomalyzer/internal/analyzer"
	"github.com/kiranshivaraju/anomalyzer/internal/cache"
	"github.com/kiranshivaraju/anomalyzer/internal/store"
	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

// ─── mock store ──────────────────────────────────────────────────────────────

type testStore struct {
	pingErr error
}

func (s *testStore) Ping(_ context.Context) error { return s.pingErr }
func (s *testStore) GetDefaultTenant(_ context.Context) (*models.Tenant, error) {
	return &models.Tenant{ID: uuid.New(), Name: "default"}, nil
}
func (s *testStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *testStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *testStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (s *testStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *testStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }
func (s *testStore) CreateAnalysis(_ context.Context, _ *models.Analysis) error     { return nil }
func (s *testStore) GetAnalysis(_ context.Context, _ uuid.UUID, _ uuid.UUID) (*models.Analysis, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) ListAnalyses(_ context.Context, _ store.AnalysisFilter) ([]*models.Analysis, int, error) {
	return nil, 0, nil
}
func (s *testStore) MarkFalsePositive(_ context.Context, _ uuid.UUID, _ uuid.UUID) error {
	return nil
}
func (s *testStore) FalsePositiveRate(_ context.Context, _ uuid.UUID, _ time.Time) (int, int, error) {
	return 1, 4, nil
}

var _ store.Store = (*testStore)(nil)

// ─── mock cache ──────────────────────────────────────────────────────────────

type testCache struct {
	pingErr error
}

func (c *testCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *testCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *testCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *testCache) Ping(_ context.Context) error                                     { return c.pingErr }
func (c *testCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

var _ cache.Cache = (*testCache)(nil)

func testService(s store.Store, c cache.Cache) *analyzer.Service {
	return analyzer.NewService(nil, nil, nil, nil, s, c, time.Second)
}

// ─── health handler tests ───────────────────────────────────────────────────

func TestHealthHandler_AllOK(t *testing.T) {
	s := &testStore{}
	c := &testCache{}
	h := healthHandler(s, c, testService(s, c), uuid.New())

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	services := data["services"].(map[string]any)
	assert.Equal(t, "ok", services["database"])
	assert.Equal(t, "ok", services["cache"])
	assert.InDelta(t, 0.25, data["false_positive_rate_24h"], 1e-9)
}

func TestHealthHandler_DatabaseDegraded(t *testing.T) {
	s := &testStore{pingErr: errors.New("connection refused")}
	c := &testCache{}
	h := healthHandler(s, c, testService(s, c), uuid.New())

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "DEGRADED", errObj["code"])
}

func TestHealthHandler_CacheDegraded(t *testing.T) {
	s := &testStore{}
	c := &testCache{pingErr: errors.New("redis down")}
	h := healthHandler(s, c, testService(s, c), uuid.New())

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthHandler_BothDegraded(t *testing.T) {
	s := &testStore{pingErr: errors.New("db down")}
	c := &testCache{pingErr: errors.New("redis down")}
	h := healthHandler(s, c, testService(s, c), uuid.New())

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// ─── run() config validation tests ──────────────────────────────────────────

func TestRun_FailsOnMissingConfig(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "HISTORY_BASE_URL", "CHANGES_BASE_URL", "AI_PROVIDER",
	} {
		t.Setenv(key, "")
	}

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnInvalidDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "not-a-valid-url")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("HISTORY_BASE_URL", "http://localhost:9101")
	t.Setenv("CHANGES_BASE_URL", "http://localhost:9102")
	t.Setenv("AI_PROVIDER", "ollama")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect database")
}

// ─── shutdown timeout constant test ─────────────────────────────────────────

func TestShutdownTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, shutdownTimeout)
}
