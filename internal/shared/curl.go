package shared

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRe = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	curlCookieRe = regexp.MustCompile(`-b\s+'([^']+)'|-b\s+"([^"]+)"`)
)

// RequestHeaders holds headers lifted from a browser "Copy as cURL" export.
//
// YouTube Music accepts anonymous search requests, but a captured header set pins the region,
// language and consent cookies the web client would send.
type RequestHeaders struct {
	Headers map[string]string
	Cookie  string
}

// ReadCurlFile reads a file containing a single cURL command and extracts its headers.
func ReadCurlFile(path string) (*RequestHeaders, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}
	return ParseCurlCommand(content)
}

// ParseCurlCommand extracts -H headers and the cookie (-b or a Cookie header) from a cURL command.
func ParseCurlCommand(data []byte) (*RequestHeaders, error) {
	cmd := strings.ReplaceAll(string(data), "\\\n", " ")
	cmd = strings.ReplaceAll(cmd, "\\", "")

	rh := &RequestHeaders{Headers: make(map[string]string)}
	for _, m := range curlHeaderRe.FindAllStringSubmatch(cmd, -1) {
		key, value, ok := strings.Cut(firstGroup(m), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if strings.EqualFold(key, "cookie") {
			if rh.Cookie == "" {
				rh.Cookie = value
			}
			continue
		}
		rh.Headers[key] = value
	}

	if m := curlCookieRe.FindStringSubmatch(cmd); m != nil {
		rh.Cookie = firstGroup(m)
	}

	if len(rh.Headers) == 0 && rh.Cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}
	return rh, nil
}

// Apply copies the captured headers onto h. Headers already present on h are left alone.
func (rh *RequestHeaders) Apply(h http.Header) {
	if rh == nil {
		return
	}
	for k, v := range rh.Headers {
		if h.Get(k) == "" {
			h.Set(k, v)
		}
	}
	if rh.Cookie != "" && h.Get("Cookie") == "" {
		h.Set("Cookie", rh.Cookie)
	}
}

func firstGroup(m []string) string {
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}
