package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/shared"
)

func appleSongJSON(id, name string, withRelationships bool) string {
	rel := ""
	if withRelationships {
		rel = `, "relationships": {
			"albums": {"data": [{"id": "alb1", "type": "albums", "attributes": {"name": "Album", "trackCount": 12, "upc": "0001", "url": "https://music.apple.com/us/album/alb1"}}]},
			"artists": {"data": [{"id": "art1", "type": "artists", "attributes": {"name": "Artist", "url": "https://music.apple.com/us/artist/art1"}}]}
		}`
	}
	return fmt.Sprintf(`{
		"id": %[1]q, "type": "songs",
		"attributes": {
			"name": %[2]q, "albumName": "Album", "artistName": "Artist", "composerName": "Writer",
			"artwork": {"url": "https://is1.mzstatic.com/image/thumb/x/{w}x{h}bb.jpg", "width": 3000, "height": 3000},
			"contentRating": "explicit", "discNumber": 1, "trackNumber": 4, "durationInMillis": 180000,
			"genreNames": ["Pop", "Music"], "isrc": "ISRC-%[1]s",
			"previews": [{"url": "https://audio/preview.m4a"}],
			"releaseDate": "2021-02-03", "url": "https://music.apple.com/us/album/album/alb1?i=%[1]s"
		}%[3]s
	}`, id, name, rel)
}

func newTestAppleMusic(t *testing.T, srvURL string) *AppleMusicService {
	t.Helper()
	svc, err := NewAppleMusicService("dev-token", "GB", nil, WithAppleMusicBaseURL(srvURL))
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func checkAppleHeaders(t *testing.T, r *http.Request) {
	t.Helper()
	if got := r.Header.Get("Authorization"); got != "Bearer dev-token" {
		t.Errorf("expected bearer token, got %q", got)
	}
	if got := r.Header.Get("Origin"); got != "https://music.apple.com" {
		t.Errorf("expected Origin header, got %q", got)
	}
}

func TestAppleMusicService(t *testing.T) {
	t.Run("requires a token", func(t *testing.T) {
		if _, err := NewAppleMusicService("", "us", nil); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Query strips apostrophes and commas", func(t *testing.T) {
		svc := newTestAppleMusic(t, "http://unused")
		track := &models.Track{Name: "Don't Stop", Artists: []string{"Earth, Wind"}, Album: "Hits", ReleaseYear: 1979}

		want := "song:Dont Stop artist:Earth Wind album:Hits year:1979"
		if got := svc.Query(track); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("LookupByIdentifier filters by ISRC in the storefront", func(t *testing.T) {
		srv := newCatalogServer(t, map[string]http.HandlerFunc{
			"GET /v1/catalog/gb/songs": func(w http.ResponseWriter, r *http.Request) {
				checkAppleHeaders(t, r)
				if got := r.URL.Query().Get("include"); got != "albums,artists" {
					t.Errorf("expected include albums,artists, got %q", got)
				}
				if r.URL.Query().Get("filter[isrc]") == "HIT" {
					writeJSON(w, `{"data": [`+appleSongJSON("1", "Song", true)+`, `+appleSongJSON("2", "Song", true)+`]}`)
					return
				}
				writeJSON(w, `{"data": []}`)
			},
		})
		svc := newTestAppleMusic(t, srv.URL)

		records, err := svc.LookupByIdentifier(context.Background(), "HIT")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}

		if _, err := svc.LookupByIdentifier(context.Background(), "MISS"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("Search then FetchFullRecord", func(t *testing.T) {
		srv := newCatalogServer(t, map[string]http.HandlerFunc{
			"GET /v1/catalog/gb/search": func(w http.ResponseWriter, r *http.Request) {
				checkAppleHeaders(t, r)
				if r.URL.Query().Get("types") != "songs" {
					t.Errorf("expected types=songs, got %q", r.URL.Query().Get("types"))
				}
				if r.URL.Query().Get("term") == "nothing" {
					writeJSON(w, `{"results": {}}`)
					return
				}
				writeJSON(w, `{"results": {"songs": {"data": [`+appleSongJSON("7", "Song", false)+`]}}}`)
			},
			"GET /v1/catalog/gb/songs/7": func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("include"); got != "artists,albums" {
					t.Errorf("expected include artists,albums, got %q", got)
				}
				writeJSON(w, `{"data": [`+appleSongJSON("7", "Song", true)+`]}`)
			},
		})
		svc := newTestAppleMusic(t, srv.URL)

		records, err := svc.Search(context.Background(), "song:Song")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(records))
		}
		if c := records[0].Candidate(); c.Artist != "Artist" || c.DurationMS != 180000 {
			t.Errorf("unexpected candidate %+v", c)
		}

		if _, err := svc.ParseToCanonical(records[0]); !errors.Is(err, shared.ErrSchema) {
			t.Errorf("expected search result to lack relationships, got %v", err)
		}

		full, err := svc.FetchFullRecord(context.Background(), records[0])
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		track, err := svc.ParseToCanonical(full)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		m := track.Services.AppleMusic
		if m == nil {
			t.Fatal("expected apple music projection")
		}
		if m.Image == nil || !strings.HasSuffix(*m.Image, "/352x352bb.webp") {
			t.Errorf("unexpected image %v", m.Image)
		}
		if m.ImageNoSuffix == nil || !strings.HasSuffix(*m.ImageNoSuffix, "/x/") {
			t.Errorf("unexpected image without suffix %v", m.ImageNoSuffix)
		}
		if m.Composer == nil || *m.Composer != "Writer" || len(m.Genres) != 2 {
			t.Errorf("unexpected composer/genres %+v", m)
		}
		if m.Album.TotalTracks == nil || *m.Album.TotalTracks != 12 {
			t.Errorf("unexpected album %+v", m.Album)
		}
		if !track.IsExplicit || track.TrackNumber != 4 || track.ReleaseYear != 2021 {
			t.Errorf("unexpected track %+v", track)
		}

		empty, err := svc.Search(context.Background(), "nothing")
		if err != nil || len(empty) != 0 {
			t.Errorf("expected empty result, got %v, %v", empty, err)
		}
	})

	t.Run("ParseToCanonical requires numbering and release date", func(t *testing.T) {
		svc := newTestAppleMusic(t, "http://unused")

		var song AppleMusicSong
		if err := json.Unmarshal([]byte(appleSongJSON("1", "Song", true)), &song); err != nil {
			t.Fatalf("bad fixture: %v", err)
		}
		song.Attributes.ReleaseDate = nil

		if _, err := svc.ParseToCanonical(&song); !errors.Is(err, shared.ErrSchema) {
			t.Errorf("expected ErrSchema, got %v", err)
		}
	})

	t.Run("LoadAlbum pages tracks and hydrates them", func(t *testing.T) {
		srv := newCatalogServer(t, map[string]http.HandlerFunc{
			"GET /v1/catalog/gb/albums/alb1": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, `{"data": [{"id": "alb1", "attributes": {"name": "Album", "releaseDate": "2021-02-03"},
					"relationships": {"tracks": {"data": [{"id": "1", "type": "songs"}, {"id": "mv", "type": "music-videos"}],
					"next": "/v1/catalog/gb/albums/alb1/tracks?offset=2"}}}]}`)
			},
			"GET /v1/catalog/gb/albums/alb1/tracks": func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, `{"data": [{"id": "2", "type": "songs"}]}`)
			},
			"GET /v1/catalog/gb/songs": func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("ids"); got != "1,2" {
					t.Errorf("expected ids 1,2, got %q", got)
				}
				writeJSON(w, `{"data": [`+appleSongJSON("1", "One", true)+`, `+appleSongJSON("2", "Two", true)+`]}`)
			},
		})

		album, err := newTestAppleMusic(t, srv.URL).LoadAlbum(context.Background(), "alb1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if album.Kind != models.KindAlbum || album.ReleaseYear != 2021 {
			t.Errorf("unexpected album %+v", album)
		}
		if len(album.Tracks) != 2 || album.Tracks[0].Name != "One" || album.Tracks[1].Name != "Two" {
			t.Errorf("unexpected tracks %+v", album.Tracks)
		}
	})

	t.Run("LoadPlaylist not found", func(t *testing.T) {
		srv := newCatalogServer(t, map[string]http.HandlerFunc{
			"/": func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
		})

		_, err := newTestAppleMusic(t, srv.URL).LoadPlaylist(context.Background(), "pl.x")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})
}
