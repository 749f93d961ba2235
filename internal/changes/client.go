// Package changes queries the change-event source for deployments, config
// changes, migrations, and scaling events.
package changes

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

// Sentinel errors for change-event source failures.
var (
	ErrChangesUnreachable = errors.New("change-event source unreachable")
	ErrChangesQueryError  = errors.New("change-event source query error")
	ErrChangesTimeout     = errors.New("change-event source query timeout")
)

// Client is the interface for querying change events.
type Client interface {
	// EventsInWindow returns change records with timestamps in [start, end],
	// ordered most recent first.
	EventsInWindow(ctx context.Context, start, end time.Time) ([]models.ChangeEvent, error)
}

// HTTPClient implements Client against the change source's HTTP API.
type HTTPClient struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewHTTPClient creates a new change-event HTTP client.
func NewHTTPClient(baseURL, username, password string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:  baseURL,
		username: username,
		password: password,
		client:   &http.Client{Timeout: timeout},
	}
}

type eventsResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Timestamp   int64  `json:"timestamp"`
		Component   string `json:"component"`
		ChangeType  string `json:"change_type"`
		Description string `json:"description"`
	} `json:"data"`
}

func (c *HTTPClient) EventsInWindow(ctx context.Context, start, end time.Time) ([]models.ChangeEvent, error) {
	params := url.Values{
		"start": {strconv.FormatInt(start.Unix(), 10)},
		"end":   {strconv.FormatInt(end.Unix(), 10)},
	}
	u := fmt.Sprintf("%s/api/v1/changes?%s", c.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if c.username != "" && c.password != "" {
		httpReq.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrChangesQueryError, resp.StatusCode)
	}

	var decoded eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding changes response: %w", err)
	}

	events := make([]models.ChangeEvent, 0, len(decoded.Data))
	for _, e := range decoded.Data {
		events = append(events, models.ChangeEvent{
			ID:          e.ID,
			Timestamp:   time.Unix(e.Timestamp, 0).UTC(),
			Component:   e.Component,
			ChangeType:  e.ChangeType,
			Description: e.Description,
		})
	}
	return events, nil
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrChangesTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrChangesTimeout, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrChangesUnreachable, err)
}

var _ Client = (*HTTPClient)(nil)
