// Apple Music catalog connector and source loader
//
// Response types based on https://developer.apple.com/documentation/applemusicapi
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
)

const (
	appleMusicBaseURL = "https://api.music.apple.com"
	appleMusicSiteURL = "https://music.apple.com"

	appleArtworkTemplate = "{w}x{h}bb.jpg"
	appleArtworkSize     = "352x352bb.webp"

	// catalog/songs accepts at most 300 ids per request
	appleMaxIDs = 300
)

type appleArtwork struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type applePreview struct {
	URL string `json:"url"`
}

type appleSongAttributes struct {
	Name             string         `json:"name"`
	AlbumName        string         `json:"albumName"`
	ArtistName       string         `json:"artistName"`
	ComposerName     *string        `json:"composerName"`
	Artwork          appleArtwork   `json:"artwork"`
	ContentRating    *string        `json:"contentRating"`
	DiscNumber       *int           `json:"discNumber"`
	TrackNumber      *int           `json:"trackNumber"`
	DurationInMillis int            `json:"durationInMillis"`
	GenreNames       []string       `json:"genreNames"`
	ISRC             *string        `json:"isrc"`
	Previews         []applePreview `json:"previews"`
	ReleaseDate      *string        `json:"releaseDate"`
	URL              string         `json:"url"`
}

type appleAlbumAttributes struct {
	Name        string       `json:"name"`
	ArtistName  string       `json:"artistName"`
	Artwork     appleArtwork `json:"artwork"`
	ReleaseDate *string      `json:"releaseDate"`
	TrackCount  int          `json:"trackCount"`
	UPC         *string      `json:"upc"`
	URL         string       `json:"url"`
}

type appleArtistAttributes struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type appleResource[A any] struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Href       string `json:"href"`
	Attributes *A     `json:"attributes"`
}

type appleRelationship[T any] struct {
	Href string  `json:"href"`
	Next *string `json:"next"`
	Data []T     `json:"data"`
}

type appleSongRelationships struct {
	Albums  *appleRelationship[appleResource[appleAlbumAttributes]]  `json:"albums"`
	Artists *appleRelationship[appleResource[appleArtistAttributes]] `json:"artists"`
}

// AppleMusicSong is a catalog song resource. Search results omit Relationships.
type AppleMusicSong struct {
	ID            string                  `json:"id"`
	Type          string                  `json:"type"`
	Href          string                  `json:"href"`
	Attributes    *appleSongAttributes    `json:"attributes"`
	Relationships *appleSongRelationships `json:"relationships"`
}

func (s *AppleMusicSong) RecordID() string { return s.ID }

func (s *AppleMusicSong) Candidate() matching.Candidate {
	if s.Attributes == nil {
		return matching.Candidate{}
	}
	a := s.Attributes
	return matching.Candidate{Name: a.Name, Artist: a.ArtistName, Album: a.AlbumName, DurationMS: a.DurationInMillis}
}

type appleTrackList struct {
	Tracks *appleRelationship[AppleMusicSong] `json:"tracks"`
}

type appleDescription struct {
	Standard string `json:"standard"`
}

type appleContainerAttributes struct {
	Name        string            `json:"name"`
	ReleaseDate *string           `json:"releaseDate"`
	Description *appleDescription `json:"description"`
}

// appleContainer is a playlist or album with its track relationship.
type appleContainer struct {
	ID            string                    `json:"id"`
	Attributes    *appleContainerAttributes `json:"attributes"`
	Relationships *appleTrackList           `json:"relationships"`
}

type appleDataResponse[T any] struct {
	Data []T `json:"data"`
}

type appleSearchResponse struct {
	Results struct {
		Songs *appleRelationship[AppleMusicSong] `json:"songs"`
	} `json:"results"`
}

// AppleMusicService implements [Connector] and [Loader] for the Apple Music catalog.
type AppleMusicService struct {
	api        *apiClient
	storefront string
	policy     MatchPolicy
}

// AppleMusicOption customizes an [AppleMusicService].
type AppleMusicOption func(*AppleMusicService)

// WithAppleMusicBaseURL points the service at another API host; used by tests.
func WithAppleMusicBaseURL(u string) AppleMusicOption {
	return func(s *AppleMusicService) { s.api.baseURL = strings.TrimRight(u, "/") }
}

// WithAppleMusicPolicy overrides the default fuzzy 3.0 policy.
func WithAppleMusicPolicy(p MatchPolicy) AppleMusicOption {
	return func(s *AppleMusicService) { s.policy = p }
}

// NewAppleMusicService creates an Apple Music connector. Every request carries the bearer token and
// the music.apple.com Origin header the catalog expects from web clients.
func NewAppleMusicService(token, storefront string, client *http.Client, opts ...AppleMusicOption) (*AppleMusicService, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: apple music token", shared.ErrMissingCredentials)
	}
	if storefront == "" {
		storefront = "us"
	}

	header := func(h http.Header) {
		h.Set("Authorization", "Bearer "+token)
		h.Set("Origin", appleMusicSiteURL)
	}
	s := &AppleMusicService{
		api:        newAPIClient("apple music", appleMusicBaseURL, client, header),
		storefront: strings.ToLower(storefront),
		policy:     MatchPolicy{Scorer: matching.NewScorer(matching.Fuzzy, matching.JaroWinkler), Threshold: 3.0},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *AppleMusicService) Name() string          { return "Apple Music" }
func (s *AppleMusicService) Source() models.Source { return models.SourceAppleMusic }
func (s *AppleMusicService) Policy() MatchPolicy   { return s.policy }

func (s *AppleMusicService) Capabilities() Capabilities {
	return Capabilities{IdentifierLookup: true, NeedsFullRecord: true}
}

func (s *AppleMusicService) catalog(path string) string {
	return "/v1/catalog/" + s.storefront + path
}

var appleTermCleaner = strings.NewReplacer("'", "", ",", "")

// Query builds the catalog search term. Apostrophes and commas break the term parser, so they are dropped.
func (s *AppleMusicService) Query(track *models.Track) string {
	term := fmt.Sprintf("song:%s artist:%s album:%s year:%d", track.Name, track.PrimaryArtist(), track.Album, track.ReleaseYear)
	return appleTermCleaner.Replace(term)
}

// LookupByIdentifier filters the song catalog by ISRC with albums and artists included.
func (s *AppleMusicService) LookupByIdentifier(ctx context.Context, isrc string) ([]RawRecord, error) {
	params := url.Values{"filter[isrc]": {isrc}, "include": {"albums,artists"}}

	var resp appleDataResponse[AppleMusicSong]
	if err := s.api.get(ctx, s.catalog("/songs"), params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: apple music has no song with ISRC %s", shared.ErrTrackNotFound, isrc)
	}
	return songRecords(resp.Data), nil
}

// Search queries the catalog for songs.
func (s *AppleMusicService) Search(ctx context.Context, query string) ([]RawRecord, error) {
	params := url.Values{"types": {"songs"}, "term": {query}}

	var resp appleSearchResponse
	if err := s.api.get(ctx, s.catalog("/search"), params, &resp); err != nil {
		return nil, err
	}
	if resp.Results.Songs == nil {
		return []RawRecord{}, nil
	}
	return songRecords(resp.Results.Songs.Data), nil
}

// FetchFullRecord retrieves the song with its album and artist relationships.
func (s *AppleMusicService) FetchFullRecord(ctx context.Context, rec RawRecord) (RawRecord, error) {
	if song, ok := rec.(*AppleMusicSong); ok && song.Relationships != nil {
		return song, nil
	}
	return s.song(ctx, rec.RecordID())
}

func (s *AppleMusicService) song(ctx context.Context, id string) (*AppleMusicSong, error) {
	params := url.Values{"include": {"artists,albums"}}

	var resp appleDataResponse[AppleMusicSong]
	if err := s.api.get(ctx, s.catalog("/songs/"+url.PathEscape(id)), params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: apple music song %s", shared.ErrTrackNotFound, id)
	}
	return &resp.Data[0], nil
}

// ParseToCanonical converts a song that carries album and artist relationships.
func (s *AppleMusicService) ParseToCanonical(rec RawRecord) (*models.Track, error) {
	song, err := recordAs[*AppleMusicSong]("apple music", rec)
	if err != nil {
		return nil, err
	}

	schemaErr := func(what string) error {
		return fmt.Errorf("%w: apple music song %s: %s", shared.ErrSchema, song.ID, what)
	}

	attrs := song.Attributes
	switch {
	case attrs == nil:
		return nil, schemaErr("no attributes")
	case song.Relationships == nil:
		return nil, schemaErr("no relationships")
	case song.Relationships.Albums == nil || len(song.Relationships.Albums.Data) == 0:
		return nil, schemaErr("no album")
	case song.Relationships.Albums.Data[0].Attributes == nil:
		return nil, schemaErr("no album attributes")
	case song.Relationships.Artists == nil || len(song.Relationships.Artists.Data) == 0:
		return nil, schemaErr("no artists")
	case attrs.ReleaseDate == nil:
		return nil, schemaErr("no release date")
	case attrs.DiscNumber == nil:
		return nil, schemaErr("no disc number")
	case attrs.TrackNumber == nil:
		return nil, schemaErr("no track number")
	}

	artists := make([]models.Artist, 0, len(song.Relationships.Artists.Data))
	names := make([]string, 0, len(song.Relationships.Artists.Data))
	for _, a := range song.Relationships.Artists.Data {
		if a.Attributes == nil {
			return nil, schemaErr("no artist attributes")
		}
		artists = append(artists, models.Artist{ID: a.ID, Name: a.Attributes.Name, URL: strPtr(a.Attributes.URL)})
		names = append(names, a.Attributes.Name)
	}

	year, month, day, err := parseReleaseDate(*attrs.ReleaseDate)
	if err != nil {
		return nil, schemaErr(err.Error())
	}

	albumRes := song.Relationships.Albums.Data[0]
	album := models.Album{
		ID:          albumRes.ID,
		Name:        albumRes.Attributes.Name,
		URL:         strPtr(albumRes.Attributes.URL),
		TotalTracks: intPtr(albumRes.Attributes.TrackCount),
		UPC:         albumRes.Attributes.UPC,
	}

	match := &models.AppleMusicMatch{
		ID:         song.ID,
		Name:       attrs.Name,
		URL:        attrs.URL,
		Artists:    artists,
		Album:      album,
		DurationMS: attrs.DurationInMillis,
		Composer:   attrs.ComposerName,
		Genres:     attrs.GenreNames,
	}
	if art := attrs.Artwork.URL; art != "" {
		match.Image = strPtr(strings.Replace(art, appleArtworkTemplate, appleArtworkSize, 1))
		match.ImageNoSuffix = strPtr(strings.Replace(art, appleArtworkTemplate, "", 1))
	}
	if len(attrs.Previews) > 0 {
		match.AudioPreview = strPtr(attrs.Previews[0].URL)
	}

	track := &models.Track{
		Name:          attrs.Name,
		Album:         attrs.AlbumName,
		DiskNumber:    *attrs.DiscNumber,
		TrackNumber:   *attrs.TrackNumber,
		Artists:       names,
		ReleaseYear:   year,
		ReleaseMonth:  month,
		ReleaseDay:    day,
		IsExplicit:    attrs.ContentRating != nil && *attrs.ContentRating == "explicit",
		DurationMS:    attrs.DurationInMillis,
		ISRC:          attrs.ISRC,
		SourceService: models.SourceAppleMusic,
	}
	track.Services.AppleMusic = match
	return track, nil
}

// LoadTrack fetches a song by catalog ID.
func (s *AppleMusicService) LoadTrack(ctx context.Context, id string) (*models.Track, error) {
	song, err := s.song(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.ParseToCanonical(song)
}

// LoadPlaylist fetches a catalog playlist.
func (s *AppleMusicService) LoadPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	return s.loadContainer(ctx, "/playlists/", id, models.KindPlaylist)
}

// LoadAlbum fetches a catalog album.
func (s *AppleMusicService) LoadAlbum(ctx context.Context, id string) (*models.Playlist, error) {
	return s.loadContainer(ctx, "/albums/", id, models.KindAlbum)
}

// loadContainer pages through the container's tracks, then hydrates them in batches so each song
// carries its album and artist relationships.
func (s *AppleMusicService) loadContainer(ctx context.Context, kindPath, id string, kind models.Kind) (*models.Playlist, error) {
	var resp appleDataResponse[appleContainer]
	if err := s.api.get(ctx, s.catalog(kindPath+url.PathEscape(id)), url.Values{"include": {"tracks"}}, &resp); err != nil {
		if shared.IsNotFound(err) {
			return nil, fmt.Errorf("%w: apple music %s %s", shared.ErrPlaylistNotFound, kind, id)
		}
		return nil, err
	}
	if len(resp.Data) == 0 || resp.Data[0].Attributes == nil {
		return nil, fmt.Errorf("%w: apple music %s %s", shared.ErrPlaylistNotFound, kind, id)
	}

	container := resp.Data[0]
	playlist := &models.Playlist{
		Name:          container.Attributes.Name,
		ID:            container.ID,
		Kind:          kind,
		SourceService: models.SourceAppleMusic,
		Tracks:        []models.Track{},
	}
	if d := container.Attributes.Description; d != nil {
		playlist.Description = strPtr(d.Standard)
	}
	if rd := container.Attributes.ReleaseDate; rd != nil {
		y, m, d, err := parseReleaseDate(*rd)
		if err != nil {
			return nil, fmt.Errorf("%w: apple music %s %s: %v", shared.ErrSchema, kind, id, err)
		}
		playlist.ReleaseYear, playlist.ReleaseMonth, playlist.ReleaseDay = y, m, d
	}

	if container.Relationships == nil || container.Relationships.Tracks == nil {
		return playlist, nil
	}

	var ids []string
	page := container.Relationships.Tracks
	for {
		for _, song := range page.Data {
			if song.Type == "" || song.Type == "songs" {
				ids = append(ids, song.ID)
			}
		}
		if page.Next == nil || *page.Next == "" {
			break
		}
		next := &appleRelationship[AppleMusicSong]{}
		if err := s.api.get(ctx, *page.Next, nil, next); err != nil {
			return nil, err
		}
		page = next
	}

	for start := 0; start < len(ids); start += appleMaxIDs {
		end := min(start+appleMaxIDs, len(ids))
		params := url.Values{"ids": {strings.Join(ids[start:end], ",")}, "include": {"albums,artists"}}

		var songs appleDataResponse[AppleMusicSong]
		if err := s.api.get(ctx, s.catalog("/songs"), params, &songs); err != nil {
			return nil, err
		}
		for i := range songs.Data {
			track, err := s.ParseToCanonical(&songs.Data[i])
			if err != nil {
				return nil, err
			}
			playlist.Tracks = append(playlist.Tracks, *track)
		}
	}
	return playlist, nil
}

func songRecords(songs []AppleMusicSong) []RawRecord {
	records := make([]RawRecord, 0, len(songs))
	for i := range songs {
		records = append(records, &songs[i])
	}
	return records
}

// appleIDFromURL pulls the song id out of a music.apple.com album URL (?i=<song>) when present.
func appleIDFromURL(u *url.URL) (string, bool) {
	if id := u.Query().Get("i"); id != "" {
		if _, err := strconv.ParseUint(id, 10, 64); err == nil {
			return id, true
		}
	}
	return "", false
}
