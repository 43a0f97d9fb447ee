// YouTube Music connector backed by the youtubei search endpoint used by the web client.
//
// The search response is a tree of renderers. The best hit is either the top-result card
// (musicCardShelfRenderer) or a row of the "Songs" shelf (musicShelfRenderer); both carry title,
// artist, album and duration as lists of text runs.
package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/songvert/internal/matching"
	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/shared"
)

const (
	youtubeBaseURL       = "https://music.youtube.com/youtubei/v1"
	youtubeWatchURL      = "https://music.youtube.com/watch?v="
	youtubeChannelURL    = "https://music.youtube.com/channel/"
	youtubeBrowseURL     = "https://music.youtube.com/browse/"
	youtubeClientName    = "WEB_REMIX"
	youtubeArtistPage    = "MUSIC_PAGE_TYPE_ARTIST"
	youtubeAlbumPage     = "MUSIC_PAGE_TYPE_ALBUM"
	youtubeSongsShelf    = "Songs"
	youtubeVideoSubtitle = "Video"
)

type youtubeClient struct {
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
	HL            string `json:"hl,omitempty"`
}

type youtubeContext struct {
	Client youtubeClient `json:"client"`
}

type youtubeSearchRequest struct {
	Context youtubeContext `json:"context"`
	Query   string         `json:"query"`
}

type youtubeBrowseConfig struct {
	BrowseEndpointContextMusicConfig struct {
		PageType string `json:"pageType"`
	} `json:"browseEndpointContextMusicConfig"`
}

type youtubeEndpoint struct {
	WatchEndpoint *struct {
		VideoID string `json:"videoId"`
	} `json:"watchEndpoint"`
	BrowseEndpoint *struct {
		BrowseID                              string              `json:"browseId"`
		BrowseEndpointContextSupportedConfigs youtubeBrowseConfig `json:"browseEndpointContextSupportedConfigs"`
	} `json:"browseEndpoint"`
}

type youtubeRun struct {
	Text               string           `json:"text"`
	NavigationEndpoint *youtubeEndpoint `json:"navigationEndpoint"`
}

func (r youtubeRun) pageType() string {
	if r.NavigationEndpoint == nil || r.NavigationEndpoint.BrowseEndpoint == nil {
		return ""
	}
	return r.NavigationEndpoint.BrowseEndpoint.BrowseEndpointContextSupportedConfigs.BrowseEndpointContextMusicConfig.PageType
}

func (r youtubeRun) browseID() string {
	if r.NavigationEndpoint == nil || r.NavigationEndpoint.BrowseEndpoint == nil {
		return ""
	}
	return r.NavigationEndpoint.BrowseEndpoint.BrowseID
}

func (r youtubeRun) videoID() string {
	if r.NavigationEndpoint == nil || r.NavigationEndpoint.WatchEndpoint == nil {
		return ""
	}
	return r.NavigationEndpoint.WatchEndpoint.VideoID
}

type youtubeText struct {
	Runs []youtubeRun `json:"runs"`
}

// YouTubeImage is one rendition of a thumbnail.
type YouTubeImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type youtubeThumbnail struct {
	MusicThumbnailRenderer *struct {
		Thumbnail struct {
			Thumbnails []YouTubeImage `json:"thumbnails"`
		} `json:"thumbnail"`
	} `json:"musicThumbnailRenderer"`
}

func (t *youtubeThumbnail) images() []YouTubeImage {
	if t == nil || t.MusicThumbnailRenderer == nil {
		return nil
	}
	return t.MusicThumbnailRenderer.Thumbnail.Thumbnails
}

type youtubeCardShelf struct {
	Title     youtubeText       `json:"title"`
	Subtitle  youtubeText       `json:"subtitle"`
	Thumbnail *youtubeThumbnail `json:"thumbnail"`
}

type youtubeFlexColumn struct {
	MusicResponsiveListItemFlexColumnRenderer struct {
		Text youtubeText `json:"text"`
	} `json:"musicResponsiveListItemFlexColumnRenderer"`
}

type youtubeListItem struct {
	FlexColumns      []youtubeFlexColumn `json:"flexColumns"`
	Thumbnail        *youtubeThumbnail   `json:"thumbnail"`
	PlaylistItemData *struct {
		VideoID string `json:"videoId"`
	} `json:"playlistItemData"`
}

type youtubeShelf struct {
	Title    youtubeText `json:"title"`
	Contents []struct {
		MusicResponsiveListItemRenderer *youtubeListItem `json:"musicResponsiveListItemRenderer"`
	} `json:"contents"`
}

type youtubeSection struct {
	MusicCardShelfRenderer *youtubeCardShelf `json:"musicCardShelfRenderer"`
	MusicShelfRenderer     *youtubeShelf     `json:"musicShelfRenderer"`
}

type youtubeSearchResponse struct {
	Contents *struct {
		TabbedSearchResultsRenderer *struct {
			Tabs []struct {
				TabRenderer struct {
					Content *struct {
						SectionListRenderer *struct {
							Contents []youtubeSection `json:"contents"`
						} `json:"sectionListRenderer"`
					} `json:"content"`
				} `json:"tabRenderer"`
			} `json:"tabs"`
		} `json:"tabbedSearchResultsRenderer"`
	} `json:"contents"`
}

func (r *youtubeSearchResponse) sections() ([]youtubeSection, error) {
	if r.Contents == nil || r.Contents.TabbedSearchResultsRenderer == nil {
		return nil, fmt.Errorf("%w: youtube search response has no tabbed results", shared.ErrSchema)
	}

	tabs := r.Contents.TabbedSearchResultsRenderer.Tabs
	if len(tabs) == 0 || tabs[0].TabRenderer.Content == nil || tabs[0].TabRenderer.Content.SectionListRenderer == nil {
		return nil, nil
	}
	return tabs[0].TabRenderer.Content.SectionListRenderer.Contents, nil
}

type youtubeRef struct {
	ID   string
	Name string
}

// YouTubeSong is a song or music video extracted from search results.
type YouTubeSong struct {
	VideoID    string
	Title      string
	Artists    []youtubeRef
	Album      *youtubeRef
	DurationMS int
	Thumbnails []YouTubeImage
	IsVideo    bool
}

func (s *YouTubeSong) RecordID() string { return s.VideoID }

func (s *YouTubeSong) Candidate() matching.Candidate {
	c := matching.Candidate{Name: s.Title, DurationMS: s.DurationMS}
	if len(s.Artists) > 0 {
		c.Artist = s.Artists[0].Name
	}
	if s.Album != nil {
		c.Album = s.Album.Name
	}
	return c
}

// classifyRuns sorts subtitle runs into artists, album and duration.
//
// Separators carry no navigation and are ignored. Plain-text runs before the album and duration are
// artists without a channel page. Card subtitles lead with the result type, which labeled skips.
func classifyRuns(song *YouTubeSong, runs []youtubeRun, labeled bool) {
	for i, run := range runs {
		text := strings.TrimSpace(run.Text)
		if text == "" || text == "•" || text == "&" || text == "," {
			continue
		}

		switch run.pageType() {
		case youtubeArtistPage:
			song.Artists = append(song.Artists, youtubeRef{ID: run.browseID(), Name: text})
			continue
		case youtubeAlbumPage:
			song.Album = &youtubeRef{ID: run.browseID(), Name: text}
			continue
		}

		if ms, err := shared.ParseDuration(text); err == nil {
			song.DurationMS = ms
			continue
		}
		if labeled && i == 0 && run.NavigationEndpoint == nil {
			if text == youtubeVideoSubtitle {
				song.IsVideo = true
			}
			continue
		}
		if run.NavigationEndpoint == nil && song.Album == nil && song.DurationMS == 0 && !isViewCount(text) {
			song.Artists = append(song.Artists, youtubeRef{Name: text})
		}
	}
}

func isViewCount(text string) bool {
	return strings.HasSuffix(text, " views") || strings.HasSuffix(text, " plays")
}

// songFromCard reads the top-result card. Cards for artists, albums or playlists yield nil.
func songFromCard(card *youtubeCardShelf) *YouTubeSong {
	if len(card.Title.Runs) == 0 {
		return nil
	}
	title := card.Title.Runs[0]
	if title.videoID() == "" {
		return nil
	}

	song := &YouTubeSong{VideoID: title.videoID(), Title: title.Text, Thumbnails: card.Thumbnail.images()}
	classifyRuns(song, card.Subtitle.Runs, true)
	return song
}

// songFromRow reads one row of the Songs shelf: title in the first column, metadata in the second.
func songFromRow(row *youtubeListItem) *YouTubeSong {
	if len(row.FlexColumns) < 2 {
		return nil
	}
	titleRuns := row.FlexColumns[0].MusicResponsiveListItemFlexColumnRenderer.Text.Runs
	if len(titleRuns) == 0 {
		return nil
	}

	song := &YouTubeSong{Title: titleRuns[0].Text, VideoID: titleRuns[0].videoID(), Thumbnails: row.Thumbnail.images()}
	if song.VideoID == "" && row.PlaylistItemData != nil {
		song.VideoID = row.PlaylistItemData.VideoID
	}
	if song.VideoID == "" {
		return nil
	}

	classifyRuns(song, row.FlexColumns[1].MusicResponsiveListItemFlexColumnRenderer.Text.Runs, false)
	return song
}

// YouTubeService implements [Connector] for YouTube Music.
type YouTubeService struct {
	api           *apiClient
	clientVersion string
	policy        MatchPolicy
}

// YouTubeOption customizes a [YouTubeService].
type YouTubeOption func(*YouTubeService)

// WithYouTubeBaseURL points the service at another youtubei root; used by tests.
func WithYouTubeBaseURL(u string) YouTubeOption {
	return func(s *YouTubeService) { s.api.baseURL = strings.TrimRight(u, "/") }
}

// WithYouTubePolicy overrides the default fuzzy policy.
func WithYouTubePolicy(p MatchPolicy) YouTubeOption {
	return func(s *YouTubeService) { s.policy = p }
}

// WithYouTubeHeaders attaches browser headers captured from a "Copy as cURL" export.
func WithYouTubeHeaders(rh *shared.RequestHeaders) YouTubeOption {
	return func(s *YouTubeService) {
		s.api.header = func(h http.Header) {
			h.Set("Origin", "https://music.youtube.com")
			rh.Apply(h)
		}
	}
}

// NewYouTubeService creates a YouTube Music connector that identifies as the given web client version.
func NewYouTubeService(client *http.Client, clientVersion string, opts ...YouTubeOption) *YouTubeService {
	s := &YouTubeService{
		api: newAPIClient("youtube", youtubeBaseURL, client, func(h http.Header) {
			h.Set("Origin", "https://music.youtube.com")
		}),
		clientVersion: clientVersion,
		policy:        MatchPolicy{Scorer: matching.NewScorer(matching.Fuzzy, matching.JaroWinkler), Threshold: 3.0},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *YouTubeService) Name() string          { return "YouTube Music" }
func (s *YouTubeService) Source() models.Source { return models.SourceYouTube }
func (s *YouTubeService) Policy() MatchPolicy   { return s.policy }

func (s *YouTubeService) Capabilities() Capabilities { return Capabilities{} }

// Query is "name artist album"; the web client accepts no field operators.
func (s *YouTubeService) Query(track *models.Track) string {
	return strings.Join(strings.Fields(fmt.Sprintf("%s %s %s", track.Name, track.PrimaryArtist(), track.Album)), " ")
}

func (s *YouTubeService) LookupByIdentifier(context.Context, string) ([]RawRecord, error) {
	return nil, fmt.Errorf("%w: youtube identifier lookup", shared.ErrUnsupported)
}

// Search returns the top-result card first, when it is a song or video, followed by Songs shelf rows.
func (s *YouTubeService) Search(ctx context.Context, query string) ([]RawRecord, error) {
	body := youtubeSearchRequest{
		Context: youtubeContext{Client: youtubeClient{ClientName: youtubeClientName, ClientVersion: s.clientVersion, HL: "en"}},
		Query:   query,
	}

	var resp youtubeSearchResponse
	if err := s.api.post(ctx, "/search?prettyPrint=false", body, &resp); err != nil {
		return nil, err
	}
	sections, err := resp.sections()
	if err != nil {
		return nil, err
	}

	var records []RawRecord
	seen := make(map[string]bool)
	add := func(song *YouTubeSong) {
		if song == nil || seen[song.VideoID] {
			return
		}
		seen[song.VideoID] = true
		records = append(records, song)
	}

	for _, sec := range sections {
		if sec.MusicCardShelfRenderer != nil {
			add(songFromCard(sec.MusicCardShelfRenderer))
		}
	}
	for _, sec := range sections {
		shelf := sec.MusicShelfRenderer
		if shelf == nil || len(shelf.Title.Runs) == 0 || shelf.Title.Runs[0].Text != youtubeSongsShelf {
			continue
		}
		for _, item := range shelf.Contents {
			if item.MusicResponsiveListItemRenderer != nil {
				add(songFromRow(item.MusicResponsiveListItemRenderer))
			}
		}
	}
	return records, nil
}

// FetchFullRecord returns rec unchanged: search rows already carry every parsed field.
func (s *YouTubeService) FetchFullRecord(_ context.Context, rec RawRecord) (RawRecord, error) {
	return rec, nil
}

func (s *YouTubeService) ParseToCanonical(rec RawRecord) (*models.Track, error) {
	song, err := recordAs[*YouTubeSong]("youtube", rec)
	if err != nil {
		return nil, err
	}
	if song.VideoID == "" || song.Title == "" || len(song.Artists) == 0 {
		return nil, fmt.Errorf("%w: youtube result %q lacks id, title or artist", shared.ErrSchema, song.VideoID)
	}

	url := youtubeWatchURL + song.VideoID
	artists := make([]models.Artist, 0, len(song.Artists))
	names := make([]string, 0, len(song.Artists))
	for _, a := range song.Artists {
		artist := models.Artist{ID: a.ID, Name: a.Name}
		if a.ID != "" {
			artist.URL = strPtr(youtubeChannelURL + a.ID)
		}
		artists = append(artists, artist)
		names = append(names, a.Name)
	}

	match := &models.YouTubeMatch{
		ID:         song.VideoID,
		Name:       song.Title,
		URL:        url,
		Artists:    artists,
		DurationMS: song.DurationMS,
		Image:      strPtr(largestThumbnail(song.Thumbnails)),
	}
	track := &models.Track{
		Name:          song.Title,
		Artists:       names,
		DurationMS:    song.DurationMS,
		SourceService: models.SourceYouTube,
	}
	if song.Album != nil {
		match.Album = models.Album{ID: song.Album.ID, Name: song.Album.Name}
		if song.Album.ID != "" {
			match.Album.URL = strPtr(youtubeBrowseURL + song.Album.ID)
		}
		track.Album = song.Album.Name
	}
	if song.IsVideo {
		match.MusicVideo = strPtr(url)
	}
	track.Services.YouTube = match
	return track, nil
}

func largestThumbnail(images []YouTubeImage) string {
	best := -1
	for i, img := range images {
		if best < 0 || img.Width*img.Height > images[best].Width*images[best].Height {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return images[best].URL
}
