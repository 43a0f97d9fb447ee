package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/songvert/internal/shared"
	tu "github.com/desertthunder/songvert/internal/testing"
)

// newCatalogServer starts an httptest server backed by a mux; handlers see the server URL via srv.URL.
func newCatalogServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func TestAPIClient(t *testing.T) {
	t.Run("decodes JSON and sets headers", func(t *testing.T) {
		srv := newCatalogServer(t, map[string]http.HandlerFunc{
			"GET /thing": func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("X-Test") != "yes" {
					t.Errorf("expected X-Test header, got %q", r.Header.Get("X-Test"))
				}
				if r.URL.Query().Get("q") != "a b" {
					t.Errorf("expected query 'a b', got %q", r.URL.Query().Get("q"))
				}
				writeJSON(w, `{"name":"ok"}`)
			},
		})

		c := newAPIClient("test", srv.URL, srv.Client(), func(h http.Header) { h.Set("X-Test", "yes") })
		var out struct {
			Name string `json:"name"`
		}
		if err := c.get(context.Background(), "/thing", map[string][]string{"q": {"a b"}}, &out); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.Name != "ok" {
			t.Errorf("expected name ok, got %q", out.Name)
		}
	})

	t.Run("classifies status codes", func(t *testing.T) {
		tests := []struct {
			name   string
			status int
			want   error
		}{
			{"not found", http.StatusNotFound, shared.ErrTrackNotFound},
			{"server error", http.StatusInternalServerError, shared.ErrAPIRequest},
			{"unauthorized", http.StatusUnauthorized, shared.ErrAPIRequest},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				srv := newCatalogServer(t, map[string]http.HandlerFunc{
					"/": func(w http.ResponseWriter, r *http.Request) {
						http.Error(w, "nope", tt.status)
					},
				})

				err := newAPIClient("test", srv.URL, srv.Client(), nil).get(context.Background(), "/x", nil, nil)
				if !errors.Is(err, tt.want) {
					t.Fatalf("expected %v, got %v", tt.want, err)
				}

				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.StatusCode != tt.status {
					t.Errorf("expected APIError with status %d, got %v", tt.status, err)
				}
			})
		}
	})

	t.Run("malformed body is a schema error", func(t *testing.T) {
		srv := newCatalogServer(t, map[string]http.HandlerFunc{
			"/": func(w http.ResponseWriter, r *http.Request) { writeJSON(w, `{"name":`) },
		})

		var out map[string]any
		err := newAPIClient("test", srv.URL, srv.Client(), nil).get(context.Background(), "/", nil, &out)
		if !errors.Is(err, shared.ErrSchema) {
			t.Errorf("expected ErrSchema, got %v", err)
		}
	})

	t.Run("timeout is an API request error", func(t *testing.T) {
		srv := newCatalogServer(t, map[string]http.HandlerFunc{
			"/": func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(time.Second):
				}
			},
		})

		client := &http.Client{Timeout: 20 * time.Millisecond}
		err := newAPIClient("test", srv.URL, client, nil).get(context.Background(), "/", nil, nil)
		if !errors.Is(err, shared.ErrAPIRequest) || !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrAPIRequest and ErrTimeout, got %v", err)
		}
	})

	t.Run("transport failure is an API request error", func(t *testing.T) {
		client := tu.MockClient(nil, errors.New("connection refused"))
		err := newAPIClient("test", "http://catalog.test", client, nil).get(context.Background(), "/", nil, nil)
		if !errors.Is(err, shared.ErrAPIRequest) || errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrAPIRequest without ErrTimeout, got %v", err)
		}
	})

	t.Run("unreadable body is a schema error", func(t *testing.T) {
		resp := tu.Response(http.StatusOK, "")
		resp.Body = &tu.FCloser{}

		var out map[string]any
		err := newAPIClient("test", "http://catalog.test", tu.MockClient(resp, nil), nil).get(context.Background(), "/", nil, &out)
		if !errors.Is(err, shared.ErrSchema) {
			t.Errorf("expected ErrSchema, got %v", err)
		}
	})

	t.Run("error body is kept on APIError", func(t *testing.T) {
		client := tu.MockClient(tu.Response(http.StatusTooManyRequests, "  slow down  "), nil)
		err := newAPIClient("test", "http://catalog.test", client, nil).get(context.Background(), "/", nil, nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Body != "slow down" {
			t.Errorf("expected trimmed body on APIError, got %v", err)
		}
	})
}
