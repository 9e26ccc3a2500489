// Package mmn talks to the trusted MMN proxy endpoint. The proxy holds the
// upstream API credentials; this client only ever sees {action, params}
// requests and {results: [...]} responses.
package mmn

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const queryPath = "/query"

// Sentinel errors for the proxy error taxonomy. Callers distinguish the
// user-visible "service misconfigured" state from transient rate limiting.
var (
	// ErrServiceUnavailable means the proxy has no valid upstream credential.
	ErrServiceUnavailable = errors.New("mmn: service unavailable")
	// ErrRateLimited means the upstream rate limit was hit; back off and
	// show cached data.
	ErrRateLimited = errors.New("mmn: rate limited")
)

// ReportsFetcher lists reports and fetches report detail entries.
type ReportsFetcher interface {
	ReportsByState(ctx context.Context, commodity, state string) ([]json.RawMessage, error)
	ReportDetails(ctx context.Context, reportID string, lastDays int) ([]json.RawMessage, error)
}

// Options parameterise the proxy client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client queries the MMN proxy.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a proxy client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "mmn_client").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

type queryRequest struct {
	Action    string `json:"action"`
	Commodity string `json:"commodity,omitempty"`
	State     string `json:"state,omitempty"`
	ReportID  string `json:"reportId,omitempty"`
	LastDays  int    `json:"lastDays,omitempty"`
}

type queryResponse struct {
	Results []json.RawMessage `json:"results"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ReportsByState lists the reports covering a commodity in a state.
func (c *Client) ReportsByState(ctx context.Context, commodity, state string) ([]json.RawMessage, error) {
	if commodity == "" {
		return nil, errors.New("commodity is required")
	}
	return c.query(ctx, queryRequest{
		Action:    "reportsByState",
		Commodity: commodity,
		State:     state,
	})
}

// ReportDetails fetches a report's entries over a trailing day window.
func (c *Client) ReportDetails(ctx context.Context, reportID string, lastDays int) ([]json.RawMessage, error) {
	if reportID == "" {
		return nil, errors.New("reportId is required")
	}
	return c.query(ctx, queryRequest{
		Action:   "reportDetails",
		ReportID: reportID,
		LastDays: lastDays,
	})
}

func (c *Client) query(ctx context.Context, reqPayload queryRequest) ([]json.RawMessage, error) {
	if c.baseURL == "" {
		return nil, errors.New("proxy base url not configured")
	}

	body, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + queryPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyHTTPError(resp.StatusCode, payloadBytes)
	}

	var queryRes queryResponse
	if err := json.Unmarshal(payloadBytes, &queryRes); err != nil {
		return nil, fmt.Errorf("decode proxy response: %w", err)
	}

	c.logger.Debug().
		Str("action", reqPayload.Action).
		Int("results", len(queryRes.Results)).
		Msg("proxy query completed")

	return queryRes.Results, nil
}

func classifyHTTPError(status int, payload []byte) error {
	switch status {
	case http.StatusUnauthorized, http.StatusServiceUnavailable:
		return fmt.Errorf("%w (http %d)", ErrServiceUnavailable, status)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w (http %d)", ErrRateLimited, status)
	}

	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("proxy error (%d): %s", status, apiErr.Message)
	}
	if len(payload) > 0 {
		return fmt.Errorf("proxy error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("proxy error (%d)", status)
}

var _ ReportsFetcher = (*Client)(nil)
