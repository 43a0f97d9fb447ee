package shared

import (
	"net/http"
	"time"
)

// DefaultTimeout applies when no per-call timeout is configured.
const DefaultTimeout = 15 * time.Second

// NewHTTPClient returns the client shared by every connector and download.
//
// The client holds no per-request state, so one instance is safe for all concurrent tasks.
// Timeout bounds each call; a hung request fails only its own task.
func NewHTTPClient(cfg HTTPConfig) *http.Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16

	var rt http.RoundTripper = transport
	if cfg.UserAgent != "" {
		rt = &userAgentTransport{base: transport, agent: cfg.UserAgent}
	}
	return &http.Client{Timeout: timeout, Transport: rt}
}

type userAgentTransport struct {
	base  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.agent)
	}
	return t.base.RoundTrip(req)
}
