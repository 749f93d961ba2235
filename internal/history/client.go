// Package history queries the baseline-computation service for historical
// metric values and related-metric deltas.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kiranshivaraju/anomalyzer/pkg/models"
)

// Sentinel errors for history service failures.
var (
	ErrHistoryUnreachable = errors.New("history service unreachable")
	ErrHistoryQueryError  = errors.New("history service query error")
	ErrHistoryTimeout     = errors.New("history service query timeout")
)

// Client is the interface for querying the baseline/history service.
type Client interface {
	// HistoricalValues returns observations of a metric within [start, end].
	HistoricalValues(ctx context.Context, metric string, start, end time.Time) ([]models.MetricPoint, error)
	// RelatedMetrics returns current deltas (fraction of baseline) for
	// metrics in the same family, keyed by metric name.
	RelatedMetrics(ctx context.Context, family string, at time.Time) (map[string]float64, error)
	Ready(ctx context.Context) error
}

// HTTPClient implements Client against the history service's HTTP API.
type HTTPClient struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewHTTPClient creates a new history HTTP client.
func NewHTTPClient(baseURL, username, password string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:  baseURL,
		username: username,
		password: password,
		client:   &http.Client{Timeout: timeout},
	}
}

type pointsResponse struct {
	Data []struct {
		Timestamp int64   `json:"timestamp"`
		Value     float64 `json:"value"`
	} `json:"data"`
}

func (c *HTTPClient) HistoricalValues(ctx context.Context, metric string, start, end time.Time) ([]models.MetricPoint, error) {
	params := url.Values{
		"metric": {metric},
		"start":  {strconv.FormatInt(start.Unix(), 10)},
		"end":    {strconv.FormatInt(end.Unix(), 10)},
	}
	u := fmt.Sprintf("%s/api/v1/metrics/history?%s", c.baseURL, params.Encode())

	var decoded pointsResponse
	if err := c.getJSON(ctx, u, &decoded); err != nil {
		return nil, err
	}

	points := make([]models.MetricPoint, 0, len(decoded.Data))
	for _, p := range decoded.Data {
		points = append(points, models.MetricPoint{
			Timestamp: time.Unix(p.Timestamp, 0).UTC(),
			Value:     p.Value,
		})
	}
	return points, nil
}

type relatedResponse struct {
	Data map[string]float64 `json:"data"`
}

func (c *HTTPClient) RelatedMetrics(ctx context.Context, family string, at time.Time) (map[string]float64, error) {
	params := url.Values{
		"family": {family},
		"at":     {strconv.FormatInt(at.Unix(), 10)},
	}
	u := fmt.Sprintf("%s/api/v1/metrics/related?%s", c.baseURL, params.Encode())

	var decoded relatedResponse
	if err := c.getJSON(ctx, u, &decoded); err != nil {
		return nil, err
	}
	return decoded.Data, nil
}

func (c *HTTPClient) Ready(ctx context.Context) error {
	u := fmt.Sprintf("%s/ready", c.baseURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHistoryUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: history service not ready (status %d)", ErrHistoryUnreachable, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) getJSON(ctx context.Context, u string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrHistoryQueryError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding history response: %w", err)
	}
	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrHistoryTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrHistoryTimeout, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrHistoryUnreachable, err)
}

var _ Client = (*HTTPClient)(nil)
