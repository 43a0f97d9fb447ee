package services

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/desertthunder/songvert/internal/shared"
	"golang.org/x/oauth2"
)

// SpotifyWebPlayerURL is the page scraped for anonymous session tokens.
const SpotifyWebPlayerURL = "https://open.spotify.com/"

var sessionPattern = regexp.MustCompile(`\{"accessToken":.*?\}`)

// SpotifySession is the anonymous token the public web player embeds in its landing page.
type SpotifySession struct {
	AccessToken                      string `json:"accessToken"`
	AccessTokenExpirationTimestampMs int64  `json:"accessTokenExpirationTimestampMs"`
	IsAnonymous                      bool   `json:"isAnonymous"`
	ClientID                         string `json:"clientId"`
}

// Expiry converts the millisecond timestamp; zero means unknown.
func (s SpotifySession) Expiry() time.Time {
	if s.AccessTokenExpirationTimestampMs <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.AccessTokenExpirationTimestampMs)
}

// ParseSpotifySession extracts the session from web player HTML.
//
// The session JSON lives in script#session; older pages inline it in another script, so the whole
// document is searched as a fallback.
func ParseSpotifySession(doc *goquery.Document) (*SpotifySession, error) {
	raw := strings.TrimSpace(doc.Find("script#session").First().Text())
	if raw == "" {
		html, err := doc.Html()
		if err != nil {
			return nil, fmt.Errorf("%w: spotify web player: %v", shared.ErrSchema, err)
		}
		raw = sessionPattern.FindString(html)
	}
	if raw == "" {
		return nil, fmt.Errorf("%w: spotify web player has no session", shared.ErrSchema)
	}

	var session SpotifySession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("%w: spotify session: %v", shared.ErrSchema, err)
	}
	if session.AccessToken == "" {
		return nil, fmt.Errorf("%w: spotify session has no access token", shared.ErrMissingCredentials)
	}
	return &session, nil
}

// FetchSpotifySession loads pageURL (the web player when empty) and parses its session.
func FetchSpotifySession(ctx context.Context, client *http.Client, pageURL string) (*SpotifySession, error) {
	if pageURL == "" {
		pageURL = SpotifyWebPlayerURL
	}
	if client == nil {
		client = &http.Client{Timeout: shared.DefaultTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: spotify web player: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Service: "spotify", StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: spotify web player: %v", shared.ErrSchema, err)
	}
	return ParseSpotifySession(doc)
}

type sessionTokenSource struct {
	client  *http.Client
	pageURL string
}

func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	session, err := FetchSpotifySession(context.Background(), s.client, s.pageURL)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: session.AccessToken, TokenType: "Bearer", Expiry: session.Expiry()}, nil
}

// SpotifySessionTokenSource scrapes a new session whenever the cached one expires.
func SpotifySessionTokenSource(client *http.Client, pageURL string) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &sessionTokenSource{client: client, pageURL: pageURL})
}
