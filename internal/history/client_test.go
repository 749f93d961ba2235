package history

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// --- helpers ---

func historyServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(handler)
}

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	return NewHTTPClient(baseURL, "", "", 5*time.Second)
}

// --- HistoricalValues tests ---

func TestHistoricalValues_ValidResponse(t *testing.T) {
	start := time.Date(2026, 3, 3, 14, 30, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	ts := historyServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/metrics/history" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method: %s", r.Method)
		}

		q := r.URL.Query()
		if q.Get("metric") != "error_rate" {
			t.Errorf("unexpected metric: %s", q.Get("metric"))
		}
		if q.Get("start") != "1772548200" {
			t.Errorf("unexpected start: %s", q.Get("start"))
		}
		if q.Get("end") != "1773153000" {
			t.Errorf("unexpected end: %s", q.Get("end"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"timestamp":1772548200,"value":0.018},
			{"timestamp":1772634600,"value":0.022}
		]}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	points, err := c.HistoricalValues(context.Background(), "error_rate", start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Value != 0.018 {
		t.Errorf("unexpected value: %v", points[0].Value)
	}

	// Check Unix timestamp conversion to UTC
	expected := time.Unix(1772548200, 0).UTC()
	if !points[0].Timestamp.Equal(expected) {
		t.Errorf("expected timestamp %v, got %v", expected, points[0].Timestamp)
	}
}

func TestHistoricalValues_EmptyResult(t *testing.T) {
	ts := historyServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[]}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	points, err := c.HistoricalValues(context.Background(), "error_rate",
		time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("expected no error for empty result, got: %v", err)
	}
	if len(points) != 0 {
		t.Errorf("expected empty slice, got %d points", len(points))
	}
}

func TestHistoricalValues_500_QueryError(t *testing.T) {
	ts := historyServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal error"}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.HistoricalValues(context.Background(), "error_rate",
		time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if !errors.Is(err, ErrHistoryQueryError) {
		t.Errorf("expected ErrHistoryQueryError, got: %v", err)
	}
}

func TestHistoricalValues_ConnectionRefused(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	_, err := c.HistoricalValues(context.Background(), "error_rate",
		time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Fatal("expected error for connection refused")
	}
	if !errors.Is(err, ErrHistoryUnreachable) {
		t.Errorf("expected ErrHistoryUnreachable, got: %v", err)
	}
}

func TestHistoricalValues_Timeout(t *testing.T) {
	ts := historyServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	})
	defer ts.Close()

	c := NewHTTPClient(ts.URL, "", "", 100*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.HistoricalValues(ctx, "error_rate", time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Fatal("expected error for timeout")
	}
	if !errors.Is(err, ErrHistoryTimeout) {
		t.Errorf("expected ErrHistoryTimeout, got: %v", err)
	}
}

func TestHistoricalValues_MalformedBody(t *testing.T) {
	ts := historyServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.HistoricalValues(context.Background(), "error_rate",
		time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Fatal("expected error for malformed body")
	}
	if !strings.Contains(err.Error(), "decoding history response") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHistoricalValues_AuthHeaders(t *testing.T) {
	var capturedAuth string
	ts := historyServer(t, func(w http.ResponseWriter, r *http.Request) {
		capturedAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":[]}`))
	})
	defer ts.Close()

	c := NewHTTPClient(ts.URL, "user", "pass", 5*time.Second)
	c.HistoricalValues(context.Background(), "error_rate",
		time.Now().Add(-time.Hour), time.Now())

	user, pass, ok := parseBasicAuth(capturedAuth)
	if !ok || user != "user" || pass != "pass" {
		t.Errorf("expected basic auth user/pass, got %q", capturedAuth)
	}
}

// --- RelatedMetrics tests ---

func TestRelatedMetrics_Success(t *testing.T) {
	ts := historyServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/metrics/related" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("family") != "error" {
			t.Errorf("unexpected family: %s", r.URL.Query().Get("family"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"upstream_error_rate":0.8,"timeout_rate":-0.1}}`))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	deltas, err := c.RelatedMetrics(context.Background(), "error", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deltas) != 2 {
		t.Fatalf("expected 2 deltas, got %d", len(deltas))
	}
	if deltas["upstream_error_rate"] != 0.8 {
		t.Errorf("unexpected delta: %v", deltas["upstream_error_rate"])
	}
}

func TestRelatedMetrics_400_QueryError(t *testing.T) {
	ts := historyServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	_, err := c.RelatedMetrics(context.Background(), "bad", time.Now())
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !errors.Is(err, ErrHistoryQueryError) {
		t.Errorf("expected ErrHistoryQueryError, got: %v", err)
	}
}

// --- Ready tests ---

func TestReady_Success(t *testing.T) {
	ts := historyServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ready" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	if err := c.Ready(context.Background()); err != nil {
		t.Fatalf("expected nil, got: %v", err)
	}
}

func TestReady_NotReady(t *testing.T) {
	ts := historyServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer ts.Close()

	c := newTestClient(t, ts.URL)
	err := c.Ready(context.Background())
	if err == nil {
		t.Fatal("expected error for not ready")
	}
	if !errors.Is(err, ErrHistoryUnreachable) {
		t.Errorf("expected ErrHistoryUnreachable, got: %v", err)
	}
}

func TestReady_ConnectionRefused(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	err := c.Ready(context.Background())
	if err == nil {
		t.Fatal("expected error for connection refused")
	}
	if !errors.Is(err, ErrHistoryUnreachable) {
		t.Errorf("expected ErrHistoryUnreachable, got: %v", err)
	}
}

// --- helper to parse basic auth ---

func parseBasicAuth(auth string) (string, string, bool) {
	r := &http.Request{Header: http.Header{"Authorization": {auth}}}
	return r.BasicAuth()
}
