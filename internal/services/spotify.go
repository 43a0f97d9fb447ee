// Spotify Web API connector and source loader
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/songvert/internal/matching"
	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/shared"
	"golang.org/x/oauth2"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
	EAN  string `json:"ean"`
	UPC  string `json:"upc"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ExternalURLs externalURLs `json:"external_urls"`
}

// SpotifyAlbum represents a Spotify album as embedded in track objects.
type SpotifyAlbum struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	AlbumType            string          `json:"album_type"`
	Artists              []SpotifyArtist `json:"artists"`
	ReleaseDate          string          `json:"release_date"`
	ReleaseDatePrecision string          `json:"release_date_precision"`
	TotalTracks          int             `json:"total_tracks"`
	Images               []SpotifyImage  `json:"images"`
	ExternalIDs          *externalIDs    `json:"external_ids,omitempty"`
	ExternalURLs         externalURLs    `json:"external_urls"`
}

// spotifyFullAlbum is the album endpoint response, which adds the first page of simplified tracks.
type spotifyFullAlbum struct {
	SpotifyAlbum
	Tracks *spotifyPage[SpotifyTrack] `json:"tracks"`
}

// SpotifyTrack represents a full Spotify track object.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        *SpotifyAlbum   `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	DiscNumber   int             `json:"disc_number"`
	TrackNumber  int             `json:"track_number"`
	ExternalIDs  externalIDs     `json:"external_ids"`
	ExternalURLs externalURLs    `json:"external_urls"`
	PreviewURL   *string         `json:"preview_url"`
	IsLocal      bool            `json:"is_local"`
}

func (t *SpotifyTrack) RecordID() string { return t.ID }

func (t *SpotifyTrack) Candidate() matching.Candidate {
	c := matching.Candidate{Name: t.Name, DurationMS: t.DurationMS}
	if len(t.Artists) > 0 {
		c.Artist = t.Artists[0].Name
	}
	if t.Album != nil {
		c.Album = t.Album.Name
	}
	return c
}

type spotifyPage[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

// SpotifyPlaylistItem is one entry of a playlist. Track is nil for removed or unavailable items.
type SpotifyPlaylistItem struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPlaylist represents a Spotify playlist with its first page of items.
type SpotifyPlaylist struct {
	ID          string                           `json:"id"`
	Name        string                           `json:"name"`
	Description string                           `json:"description"`
	Tracks      spotifyPage[SpotifyPlaylistItem] `json:"tracks"`
}

type spotifySearchResponse struct {
	Tracks *spotifyPage[SpotifyTrack] `json:"tracks"`
}

// SpotifyService implements [Connector] and [Loader] for the Spotify Web API.
//
// The bearer token is an opaque input attached by an [oauth2.TokenSource]: either a static token or a
// scraped web player session.
type SpotifyService struct {
	api    *apiClient
	policy MatchPolicy
}

// SpotifyOption customizes a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithSpotifyBaseURL points the service at another API root; used by tests.
func WithSpotifyBaseURL(u string) SpotifyOption {
	return func(s *SpotifyService) { s.api.baseURL = strings.TrimRight(u, "/") }
}

// WithSpotifyPolicy overrides the default fuzzy 3.0 policy.
func WithSpotifyPolicy(p MatchPolicy) SpotifyOption {
	return func(s *SpotifyService) { s.policy = p }
}

// NewSpotifyService creates a Spotify connector authenticated with token.
func NewSpotifyService(token string, base *http.Client, opts ...SpotifyOption) (*SpotifyService, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: spotify token", shared.ErrMissingCredentials)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return NewSpotifyServiceWithTokenSource(ts, base, opts...), nil
}

// NewSpotifyServiceWithTokenSource creates a Spotify connector that asks ts for a token per request.
func NewSpotifyServiceWithTokenSource(ts oauth2.TokenSource, base *http.Client, opts ...SpotifyOption) *SpotifyService {
	if base == nil {
		base = &http.Client{Timeout: shared.DefaultTimeout}
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = base.Timeout

	s := &SpotifyService{
		api:    newAPIClient("spotify", spotifyBaseURL, client, nil),
		policy: MatchPolicy{Scorer: matching.NewScorer(matching.Fuzzy, matching.JaroWinkler), Threshold: 3.0},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SpotifyService) Name() string               { return "Spotify" }
func (s *SpotifyService) Source() models.Source      { return models.SourceSpotify }
func (s *SpotifyService) Policy() MatchPolicy        { return s.policy }
func (s *SpotifyService) Capabilities() Capabilities { return Capabilities{IdentifierLookup: true} }

// Query uses Spotify's field filters. The year filter is left out when the year is unknown.
func (s *SpotifyService) Query(track *models.Track) string {
	parts := []string{"track:" + track.Name}
	if a := track.PrimaryArtist(); a != "" {
		parts = append(parts, "artist:"+a)
	}
	if track.Album != "" {
		parts = append(parts, "album:"+track.Album)
	}
	if track.ReleaseYear > 0 {
		parts = append(parts, "year:"+strconv.Itoa(track.ReleaseYear))
	}
	return strings.Join(parts, " ")
}

func (s *SpotifyService) search(ctx context.Context, q string) ([]RawRecord, error) {
	params := url.Values{"type": {"track"}, "limit": {"10"}, "q": {q}}

	var resp spotifySearchResponse
	if err := s.api.get(ctx, "/search", params, &resp); err != nil {
		return nil, err
	}
	if resp.Tracks == nil {
		return nil, fmt.Errorf("%w: spotify search response has no tracks", shared.ErrSchema)
	}

	records := make([]RawRecord, 0, len(resp.Tracks.Items))
	for i := range resp.Tracks.Items {
		records = append(records, &resp.Tracks.Items[i])
	}
	return records, nil
}

// LookupByIdentifier searches with the isrc: filter.
func (s *SpotifyService) LookupByIdentifier(ctx context.Context, isrc string) ([]RawRecord, error) {
	records, err := s.search(ctx, "isrc:"+isrc)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: spotify has no track with ISRC %s", shared.ErrTrackNotFound, isrc)
	}
	return records, nil
}

// Search runs a free-text track search.
func (s *SpotifyService) Search(ctx context.Context, query string) ([]RawRecord, error) {
	return s.search(ctx, query)
}

// FetchFullRecord is a no-op: search returns full track objects.
func (s *SpotifyService) FetchFullRecord(_ context.Context, rec RawRecord) (RawRecord, error) {
	return rec, nil
}

// ParseToCanonical converts a full track object.
func (s *SpotifyService) ParseToCanonical(rec RawRecord) (*models.Track, error) {
	t, err := recordAs[*SpotifyTrack]("spotify", rec)
	if err != nil {
		return nil, err
	}

	switch {
	case t.ID == "":
		return nil, fmt.Errorf("%w: spotify track is missing id", shared.ErrSchema)
	case t.Name == "":
		return nil, fmt.Errorf("%w: spotify track %s is missing name", shared.ErrSchema, t.ID)
	case len(t.Artists) == 0:
		return nil, fmt.Errorf("%w: spotify track %s has no artists", shared.ErrSchema, t.ID)
	case t.Album == nil:
		return nil, fmt.Errorf("%w: spotify track %s has no album", shared.ErrSchema, t.ID)
	}

	year, month, day, err := parseReleaseDate(t.Album.ReleaseDate)
	if err != nil {
		return nil, fmt.Errorf("%w: spotify track %s: %v", shared.ErrSchema, t.ID, err)
	}

	artists := make([]models.Artist, 0, len(t.Artists))
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, models.Artist{ID: a.ID, Name: a.Name, URL: strPtr(a.ExternalURLs.Spotify)})
		names = append(names, a.Name)
	}

	album := models.Album{
		ID:          t.Album.ID,
		Name:        t.Album.Name,
		URL:         strPtr(t.Album.ExternalURLs.Spotify),
		TotalTracks: intPtr(t.Album.TotalTracks),
	}
	if ids := t.Album.ExternalIDs; ids != nil {
		album.EAN, album.UPC = strPtr(ids.EAN), strPtr(ids.UPC)
	}

	trackURL := t.ExternalURLs.Spotify
	if trackURL == "" {
		trackURL = "https://open.spotify.com/track/" + t.ID
	}

	track := &models.Track{
		Name:          t.Name,
		Album:         t.Album.Name,
		DiskNumber:    t.DiscNumber,
		TrackNumber:   t.TrackNumber,
		Artists:       names,
		ReleaseYear:   year,
		ReleaseMonth:  month,
		ReleaseDay:    day,
		IsExplicit:    t.Explicit,
		DurationMS:    t.DurationMS,
		ISRC:          strPtr(t.ExternalIDs.ISRC),
		SourceService: models.SourceSpotify,
	}
	track.Services.Spotify = &models.SpotifyMatch{
		ID:           t.ID,
		Name:         t.Name,
		URL:          trackURL,
		Artists:      artists,
		Album:        album,
		DurationMS:   t.DurationMS,
		Image:        largestImage(t.Album.Images),
		AudioPreview: t.PreviewURL,
	}
	return track, nil
}

// LoadTrack fetches a single track by ID.
func (s *SpotifyService) LoadTrack(ctx context.Context, id string) (*models.Track, error) {
	var t SpotifyTrack
	if err := s.api.get(ctx, "/tracks/"+url.PathEscape(id), nil, &t); err != nil {
		return nil, err
	}
	return s.ParseToCanonical(&t)
}

// LoadPlaylist fetches a playlist and follows its pagination links.
//
// Unavailable items and local files are dropped since they have no catalog metadata.
func (s *SpotifyService) LoadPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	var sp SpotifyPlaylist
	if err := s.api.get(ctx, "/playlists/"+url.PathEscape(id), nil, &sp); err != nil {
		if shared.IsNotFound(err) {
			return nil, fmt.Errorf("%w: spotify playlist %s", shared.ErrPlaylistNotFound, id)
		}
		return nil, err
	}

	playlist := &models.Playlist{
		Name:          sp.Name,
		ID:            sp.ID,
		Kind:          models.KindPlaylist,
		Description:   strPtr(sp.Description),
		SourceService: models.SourceSpotify,
		Tracks:        []models.Track{},
	}

	page := sp.Tracks
	for {
		for _, item := range page.Items {
			if item.Track == nil || item.Track.IsLocal || (item.Track.Type != "" && item.Track.Type != "track") {
				continue
			}
			track, err := s.ParseToCanonical(item.Track)
			if err != nil {
				return nil, err
			}
			playlist.Tracks = append(playlist.Tracks, *track)
		}

		if page.Next == nil || *page.Next == "" {
			break
		}
		next := *page.Next
		page = spotifyPage[SpotifyPlaylistItem]{}
		if err := s.api.get(ctx, next, nil, &page); err != nil {
			return nil, err
		}
	}
	return playlist, nil
}

// LoadAlbum fetches an album, then its full track objects in batches of 50 for ISRCs.
func (s *SpotifyService) LoadAlbum(ctx context.Context, id string) (*models.Playlist, error) {
	var album spotifyFullAlbum
	if err := s.api.get(ctx, "/albums/"+url.PathEscape(id), nil, &album); err != nil {
		if shared.IsNotFound(err) {
			return nil, fmt.Errorf("%w: spotify album %s", shared.ErrPlaylistNotFound, id)
		}
		return nil, err
	}
	if album.Tracks == nil {
		return nil, fmt.Errorf("%w: spotify album %s has no tracks", shared.ErrSchema, id)
	}

	var ids []string
	page := *album.Tracks
	for {
		for _, t := range page.Items {
			ids = append(ids, t.ID)
		}
		if page.Next == nil || *page.Next == "" {
			break
		}
		next := *page.Next
		page = spotifyPage[SpotifyTrack]{}
		if err := s.api.get(ctx, next, nil, &page); err != nil {
			return nil, err
		}
	}

	year, month, day, err := parseReleaseDate(album.ReleaseDate)
	if err != nil {
		return nil, fmt.Errorf("%w: spotify album %s: %v", shared.ErrSchema, id, err)
	}

	playlist := &models.Playlist{
		Name:          album.Name,
		ID:            album.ID,
		Kind:          models.KindAlbum,
		SourceService: models.SourceSpotify,
		ReleaseYear:   year,
		ReleaseMonth:  month,
		ReleaseDay:    day,
		Tracks:        make([]models.Track, 0, len(ids)),
	}

	for start := 0; start < len(ids); start += 50 {
		end := min(start+50, len(ids))
		var resp struct {
			Tracks []*SpotifyTrack `json:"tracks"`
		}
		if err := s.api.get(ctx, "/tracks", url.Values{"ids": {strings.Join(ids[start:end], ",")}}, &resp); err != nil {
			return nil, err
		}
		for _, t := range resp.Tracks {
			if t == nil {
				continue
			}
			track, err := s.ParseToCanonical(t)
			if err != nil {
				return nil, err
			}
			playlist.Tracks = append(playlist.Tracks, *track)
		}
	}
	return playlist, nil
}

func largestImage(images []SpotifyImage) *string {
	best := -1
	for i, img := range images {
		if best < 0 || img.Width > images[best].Width {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return strPtr(images[best].URL)
}

// parseReleaseDate splits YYYY, YYYY-MM or YYYY-MM-DD. Month and day are nil when absent.
func parseReleaseDate(date string) (year int, month, day *int, err error) {
	if date == "" {
		return 0, nil, nil, nil
	}

	parts := strings.Split(date, "-")
	values := make([]int, len(parts))
	for i, p := range parts {
		if values[i], err = strconv.Atoi(p); err != nil {
			return 0, nil, nil, fmt.Errorf("malformed release date %q", date)
		}
	}

	year = values[0]
	if len(values) > 1 {
		month = &values[1]
	}
	if len(values) > 2 {
		day = &values[2]
	}
	return year, month, day, nil
}
