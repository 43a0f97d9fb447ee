package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/songvert/internal/shared"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// APIError is a non-2xx response from a catalog.
//
// A 404 unwraps to [shared.ErrTrackNotFound]; every other status unwraps to [shared.ErrAPIRequest].
type APIError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s API error: status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s API error: status %d: %s", e.Service, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return shared.ErrTrackNotFound
	}
	return shared.ErrAPIRequest
}

// apiClient performs JSON requests against one catalog's base URL.
//
// It holds no per-request state, so one instance is shared by every concurrent task.
type apiClient struct {
	service string
	baseURL string
	http    *http.Client
	header  func(h http.Header)
}

func newAPIClient(service, baseURL string, client *http.Client, header func(http.Header)) *apiClient {
	if client == nil {
		client = &http.Client{Timeout: shared.DefaultTimeout}
	}
	return &apiClient{service: service, baseURL: strings.TrimRight(baseURL, "/"), http: client, header: header}
}

// get issues a GET. path may be absolute (pagination links) or relative to the base URL.
func (c *apiClient) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		endpoint = c.baseURL + path
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

// post issues a POST with a JSON body.
func (c *apiClient) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *apiClient) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.header != nil {
		c.header(req.Header)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return fmt.Errorf("%w: %s request timed out: %w", shared.ErrAPIRequest, c.service, shared.ErrTimeout)
		}
		return fmt.Errorf("%w: %s request failed: %v", shared.ErrAPIRequest, c.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Service: c.service, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s response: %v", shared.ErrSchema, c.service, err)
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
