// internal/dex/api_client.go
package dex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rovshanmuradov/swap-router/internal/types"
	"go.uber.org/zap"
)

const (
	defaultRequestTimeout = 5 * time.Second
	maxErrorBody          = 512
)

// NewHTTPTransport returns a pooled client shared by venue APIs.
func NewHTTPTransport(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxConnsPerHost:     100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// HTTPError is a non-2xx venue response.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.Status, e.Body)
}

// APIClient is a JSON client bound to one venue's base URL.
type APIClient struct {
	venue   types.Venue
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewAPIClient создает JSON клиент для API площадки.
func NewAPIClient(venue types.Venue, baseURL string, client *http.Client, logger *zap.Logger) *APIClient {
	if client == nil {
		client = NewHTTPTransport(0)
	}
	return &APIClient{
		venue:   venue,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger.Named("api-client"),
	}
}

// GetJSON performs GET baseURL+path?query and decodes the body into out.
func (c *APIClient) GetJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return types.NewVenueError(c.venue, types.KindInvalidParams, op, fmt.Errorf("create request: %w", err))
	}
	return c.do(req, op, out)
}

// PostJSON performs POST baseURL+path with a JSON body.
func (c *APIClient) PostJSON(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return types.NewVenueError(c.venue, types.KindInvalidParams, op, fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return types.NewVenueError(c.venue, types.KindInvalidParams, op, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, op, out)
}

func (c *APIClient) do(req *http.Request, op string, out any) error {
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return types.NewVenueError(c.venue, types.KindUnavailable, op, fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	c.logger.Debug("api request completed",
		zap.String("venue", string(c.venue)),
		zap.String("op", op),
		zap.Duration("duration", time.Since(start)),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return types.NewVenueError(c.venue, KindForStatus(resp.StatusCode), op,
			&HTTPError{Status: resp.StatusCode, Body: string(body)})
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewVenueError(c.venue, types.KindUnavailable, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// KindForStatus maps an HTTP status to a venue error kind.
func KindForStatus(status int) types.ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return types.KindNoRoute
	case status == http.StatusTooManyRequests, status >= 500:
		return types.KindUnavailable
	case status >= 400:
		return types.KindInvalidParams
	default:
		return types.KindUnavailable
	}
}

// ResponseBody returns the body of a wrapped HTTPError, if any.
func ResponseBody(err error) (string, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Body, true
	}
	return "", false
}
