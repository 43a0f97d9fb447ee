// Bandcamp connector using the public autocomplete and mobile tralbum endpoints
package services

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/songvert/internal/matching"
	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/shared"
)

const (
	bandcampBaseURL  = "https://bandcamp.com/api"
	bandcampImageURL = "https://f4.bcbits.com/img"
	bandcampEmbedURL = "https://bandcamp.com/EmbeddedPlayer/album="
)

type bandcampSearchRequest struct {
	SearchText   string `json:"search_text"`
	SearchFilter string `json:"search_filter"`
	FullPage     bool   `json:"full_page"`
	FanID        *int64 `json:"fan_id"`
}

type bandcampSearchResponse struct {
	Auto *struct {
		Results []BandcampSearchResult `json:"results"`
	} `json:"auto"`
}

// BandcampSearchResult is one autocomplete hit. Search results never carry a duration.
type BandcampSearchResult struct {
	Type        string  `json:"type"`
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	BandID      int64   `json:"band_id"`
	BandName    string  `json:"band_name"`
	AlbumID     *int64  `json:"album_id"`
	AlbumName   *string `json:"album_name"`
	ArtID       *int64  `json:"art_id"`
	Img         *string `json:"img"`
	ItemURLRoot string  `json:"item_url_root"`
	ItemURLPath string  `json:"item_url_path"`
}

func (r *BandcampSearchResult) RecordID() string { return strconv.FormatInt(r.ID, 10) }

// Candidate treats a hit without an album as a single named after itself.
func (r *BandcampSearchResult) Candidate() matching.Candidate {
	album := r.Name
	if r.AlbumName != nil && *r.AlbumName != "" {
		album = *r.AlbumName
	}
	return matching.Candidate{Name: r.Name, Artist: r.BandName, Album: album}
}

type bandcampTralbumRequest struct {
	TralbumID   int64  `json:"tralbum_id"`
	BandID      int64  `json:"band_id"`
	TralbumType string `json:"tralbum_type"`
}

type bandcampStreamingURL struct {
	MP3128 string `json:"mp3-128"`
}

type bandcampBand struct {
	BandID int64  `json:"band_id"`
	Name   string `json:"name"`
}

// BandcampTralbumTrack is a track entry of a tralbum; duration is in seconds.
type BandcampTralbumTrack struct {
	TrackID      int64                 `json:"track_id"`
	Title        string                `json:"title"`
	TrackNum     *int                  `json:"track_num"`
	StreamingURL *bandcampStreamingURL `json:"streaming_url"`
	Duration     float64               `json:"duration"`
	AlbumTitle   *string               `json:"album_title"`
	BandName     string                `json:"band_name"`
	AlbumID      *int64                `json:"album_id"`
	IsStreamable bool                  `json:"is_streamable"`
}

// BandcampTralbum is the mobile tralbum_details response for a single track.
type BandcampTralbum struct {
	ID            int64                  `json:"id"`
	Type          string                 `json:"type"`
	Title         string                 `json:"title"`
	BandcampURL   string                 `json:"bandcamp_url"`
	ArtID         *int64                 `json:"art_id"`
	Band          *bandcampBand          `json:"band"`
	TralbumArtist string                 `json:"tralbum_artist"`
	Tracks        []BandcampTralbumTrack `json:"tracks"`
	AlbumID       *int64                 `json:"album_id"`
	AlbumTitle    *string                `json:"album_title"`
	ReleaseDate   int64                  `json:"release_date"`
}

func (t *BandcampTralbum) RecordID() string { return strconv.FormatInt(t.ID, 10) }

func (t *BandcampTralbum) Candidate() matching.Candidate {
	c := matching.Candidate{Name: t.Title, Album: t.albumName()}
	if t.Band != nil {
		c.Artist = t.Band.Name
	}
	if len(t.Tracks) > 0 {
		c.DurationMS = int(t.Tracks[0].Duration * 1000)
	}
	return c
}

func (t *BandcampTralbum) albumName() string {
	if t.AlbumTitle != nil && *t.AlbumTitle != "" {
		return *t.AlbumTitle
	}
	return t.Title
}

// BandcampService implements [Connector] for Bandcamp. It needs no credentials.
type BandcampService struct {
	api    *apiClient
	policy MatchPolicy
}

// BandcampOption customizes a [BandcampService].
type BandcampOption func(*BandcampService)

// WithBandcampBaseURL points the service at another API root; used by tests.
func WithBandcampBaseURL(u string) BandcampOption {
	return func(s *BandcampService) { s.api.baseURL = strings.TrimRight(u, "/") }
}

// WithBandcampPolicy overrides the default exact-mode policy.
func WithBandcampPolicy(p MatchPolicy) BandcampOption {
	return func(s *BandcampService) { s.policy = p }
}

// NewBandcampService creates a Bandcamp connector.
//
// The default policy is exact scoring at 2.0: search hits have no duration, so at most three of the
// four points are reachable.
func NewBandcampService(client *http.Client, opts ...BandcampOption) *BandcampService {
	s := &BandcampService{
		api:    newAPIClient("bandcamp", bandcampBaseURL, client, nil),
		policy: MatchPolicy{Scorer: matching.NewScorer(matching.Exact, nil), Threshold: 2.0},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BandcampService) Name() string          { return "Bandcamp" }
func (s *BandcampService) Source() models.Source { return models.SourceBandcamp }
func (s *BandcampService) Policy() MatchPolicy   { return s.policy }

func (s *BandcampService) Capabilities() Capabilities {
	return Capabilities{NeedsFullRecord: true}
}

// Query joins name, artist and album with commas, which the autocomplete ranks best.
func (s *BandcampService) Query(track *models.Track) string {
	return fmt.Sprintf("%s, %s, %s", track.Name, track.PrimaryArtist(), track.Album)
}

// LookupByIdentifier is unsupported: Bandcamp does not index ISRCs.
func (s *BandcampService) LookupByIdentifier(context.Context, string) ([]RawRecord, error) {
	return nil, fmt.Errorf("%w: bandcamp identifier lookup", shared.ErrUnsupported)
}

// Search posts to the autocomplete endpoint filtered to tracks.
func (s *BandcampService) Search(ctx context.Context, query string) ([]RawRecord, error) {
	body := bandcampSearchRequest{SearchText: query, SearchFilter: "t"}

	var resp bandcampSearchResponse
	if err := s.api.post(ctx, "/bcsearch_public_api/1/autocomplete_elastic", body, &resp); err != nil {
		return nil, err
	}
	if resp.Auto == nil {
		return nil, fmt.Errorf("%w: bandcamp search response has no auto section", shared.ErrSchema)
	}

	records := make([]RawRecord, 0, len(resp.Auto.Results))
	for i := range resp.Auto.Results {
		if t := resp.Auto.Results[i].Type; t != "" && t != "t" {
			continue
		}
		records = append(records, &resp.Auto.Results[i])
	}
	return records, nil
}

// FetchFullRecord retrieves tralbum details, which add the duration and streaming URL.
func (s *BandcampService) FetchFullRecord(ctx context.Context, rec RawRecord) (RawRecord, error) {
	if full, ok := rec.(*BandcampTralbum); ok {
		return full, nil
	}
	hit, err := recordAs[*BandcampSearchResult]("bandcamp", rec)
	if err != nil {
		return nil, err
	}
	return s.tralbum(ctx, hit.ID, hit.BandID)
}

func (s *BandcampService) tralbum(ctx context.Context, trackID, bandID int64) (*BandcampTralbum, error) {
	body := bandcampTralbumRequest{TralbumID: trackID, BandID: bandID, TralbumType: "t"}

	var tralbum BandcampTralbum
	if err := s.api.post(ctx, "/mobile/25/tralbum_details", body, &tralbum); err != nil {
		return nil, err
	}
	return &tralbum, nil
}

// ParseToCanonical converts tralbum details for a single track.
func (s *BandcampService) ParseToCanonical(rec RawRecord) (*models.Track, error) {
	t, err := recordAs[*BandcampTralbum]("bandcamp", rec)
	if err != nil {
		return nil, err
	}

	switch {
	case len(t.Tracks) == 0:
		return nil, fmt.Errorf("%w: bandcamp tralbum %d has no tracks", shared.ErrSchema, t.ID)
	case t.Band == nil:
		return nil, fmt.Errorf("%w: bandcamp tralbum %d has no band", shared.ErrSchema, t.ID)
	case t.BandcampURL == "":
		return nil, fmt.Errorf("%w: bandcamp tralbum %d has no url", shared.ErrSchema, t.ID)
	}

	entry := t.Tracks[0]
	durationMS := int(entry.Duration * 1000)

	artist := models.Artist{
		ID:   strconv.FormatInt(t.Band.BandID, 10),
		Name: t.Band.Name,
		URL:  strPtr(bandcampArtistURL(t.BandcampURL)),
	}
	album := models.Album{ID: strconv.FormatInt(t.ID, 10), Name: t.albumName()}
	if t.AlbumID != nil {
		album.ID = strconv.FormatInt(*t.AlbumID, 10)
		album.URL = strPtr(bandcampEmbedURL + album.ID)
	}

	match := &models.BandcampMatch{
		ID:         strconv.FormatInt(entry.TrackID, 10),
		Name:       entry.Title,
		URL:        t.BandcampURL,
		Artists:    []models.Artist{artist},
		Album:      album,
		DurationMS: durationMS,
	}
	if t.ArtID != nil {
		match.Image = strPtr(fmt.Sprintf("%s/a%d_0.jpg", bandcampImageURL, *t.ArtID))
	}
	if entry.StreamingURL != nil && entry.StreamingURL.MP3128 != "" {
		match.StreamingURL = strPtr(entry.StreamingURL.MP3128)
	}

	track := &models.Track{
		Name:          entry.Title,
		Album:         t.albumName(),
		Artists:       []string{t.Band.Name},
		DurationMS:    durationMS,
		SourceService: models.SourceBandcamp,
	}
	if entry.TrackNum != nil {
		track.TrackNumber = *entry.TrackNum
	}
	if t.ReleaseDate > 0 {
		released := time.Unix(t.ReleaseDate, 0).UTC()
		month, day := int(released.Month()), released.Day()
		track.ReleaseYear, track.ReleaseMonth, track.ReleaseDay = released.Year(), &month, &day
	}
	track.Services.Bandcamp = match
	return track, nil
}

// bandcampArtistURL keeps scheme and host of a track URL: https://artist.bandcamp.com
func bandcampArtistURL(trackURL string) string {
	parts := strings.SplitN(trackURL, "/", 4)
	if len(parts) < 3 {
		return ""
	}
	return strings.Join(parts[:3], "/")
}
