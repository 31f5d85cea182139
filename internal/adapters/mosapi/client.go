// Package mosapi is the parking data source backed by the mos_parking REST
// service.
package mosapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/parkfinder/internal/core/domain"
)

const (
	listPath   = "/api/v1/mos_parking/parking"
	nearPath   = "/api/v1/mos_parking/parking/near"
	searchPath = "/api/v1/mos_parking/parking/search"

	maxBodyBytes = 32 << 20
)

// Client talks to the mos_parking service. Records are returned undecoded.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for baseURL. A nil httpClient gets a client
// with timeout as its overall deadline.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// ListAll returns the full listing.
func (c *Client) ListAll(ctx context.Context) ([]json.RawMessage, error) {
	return c.get(ctx, "list", listPath, nil)
}

// ListNear returns up to limitCount records within radiusMeters of origin.
func (c *Client) ListNear(ctx context.Context, origin domain.GeoPoint, limitCount, radiusMeters uint32) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(origin.Lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(origin.Lng, 'f', -1, 64))
	q.Set("limit", strconv.FormatUint(uint64(limitCount), 10))
	q.Set("radius", strconv.FormatUint(uint64(radiusMeters), 10))
	return c.get(ctx, "near", nearPath, q)
}

// SearchByText runs the service's text search.
func (c *Client) SearchByText(ctx context.Context, text string) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("q", text)
	return c.get(ctx, "search", searchPath, q)
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values) ([]json.RawMessage, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Status: domain.StatusNetworkError, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	t0 := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.DebugContext(ctx, "mos_parking request failed", "op", op, "error", err)
		return nil, &domain.TransportError{Op: op, Status: domain.StatusNetworkError, Err: err}
	}
	defer resp.Body.Close()

	if status, failed := classify(resp.StatusCode); failed {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &domain.TransportError{Op: op, Status: status, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.TransportError{Op: op, Status: domain.StatusNetworkError, Err: fmt.Errorf("read body: %w", err)}
	}

	records, err := unwrap(body)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Status: domain.StatusServerError, Err: err}
	}
	slog.DebugContext(ctx, "mos_parking response", "op", op, "records", len(records), "duration_ms", time.Since(t0).Milliseconds())
	return records, nil
}

// classify maps an HTTP status to a status class.
func classify(code int) (domain.StatusClass, bool) {
	switch {
	case code >= 200 && code < 300:
		return "", false
	case code == http.StatusNotFound || code == http.StatusGone:
		return domain.StatusNotFound, true
	case code >= 500:
		return domain.StatusServerError, true
	default:
		// Other 4xx answers mean the service rejected a well-formed request.
		return domain.StatusServerError, true
	}
}

// envelopeKeys are the object keys the service has used for record lists.
var envelopeKeys = []string{"parkings", "data", "items", "results"}

// unwrap accepts a bare array or an object wrapping one.
func unwrap(body []byte) ([]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty response body")
	}

	if body[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		return records, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	for _, key := range envelopeKeys {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return []json.RawMessage{}, nil
		}
		var records []json.RawMessage
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return records, nil
	}
	return nil, errors.New("response has no record list")
}
