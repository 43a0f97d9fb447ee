package models

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/desertthunder/songvert/internal/shared"
)

func ptr[T any](v T) *T { return &v }

func fixtureTrack() Track {
	return Track{
		Name:          "Duchess for Nothing",
		Album:         "Genius Fatigue",
		DiskNumber:    1,
		TrackNumber:   1,
		Artists:       []string{"Tunabunny"},
		ReleaseYear:   2013,
		ReleaseMonth:  ptr(4),
		ReleaseDay:    ptr(9),
		IsExplicit:    false,
		DurationMS:    138026,
		ISRC:          ptr("USZUD1215001"),
		SourceService: SourceSpotify,
		Services: Services{
			Spotify: &SpotifyMatch{
				ID:         "4Yx6Vx3AGlHuDUfv8xwQ8p",
				Name:       "Duchess for Nothing",
				URL:        "https://open.spotify.com/track/4Yx6Vx3AGlHuDUfv8xwQ8p",
				Artists:    []Artist{{ID: "a1", Name: "Tunabunny", URL: ptr("https://open.spotify.com/artist/a1")}},
				Album:      Album{ID: "al1", Name: "Genius Fatigue", TotalTracks: ptr(10)},
				DurationMS: 138026,
				Image:      ptr("https://i.scdn.co/image/abc"),
			},
			AppleMusic: &AppleMusicMatch{
				ID:            "1613600188",
				Name:          "Duchess for Nothing",
				URL:           "https://music.apple.com/us/album/duchess-for-nothing/1613600183?i=1613600188",
				Artists:       []Artist{{ID: "10", Name: "Tunabunny"}},
				Album:         Album{ID: "1613600183", Name: "Genius Fatigue", UPC: ptr("0123"), EAN: ptr("456")},
				DurationMS:    138027,
				Composer:      ptr("Brigette Herron"),
				Image:         ptr("https://is1-ssl.mzstatic.com/image/thumb/x/352x352bb.webp"),
				ImageNoSuffix: ptr("https://is1-ssl.mzstatic.com/image/thumb/x"),
				Genres:        []string{"Alternative", "Music"},
			},
			Bandcamp: &BandcampMatch{
				ID:           "123",
				Name:         "Duchess for Nothing",
				URL:          "https://tunabunny.bandcamp.com/track/duchess-for-nothing",
				Artists:      []Artist{{ID: "9", Name: "Tunabunny"}},
				Album:        Album{ID: "77", Name: "Genius Fatigue"},
				DurationMS:   138000,
				StreamingURL: ptr("https://t4.bcbits.com/stream/abc"),
			},
			YouTube: &YouTubeMatch{
				ID:         "dQw4w9WgXcQ",
				Name:       "Duchess for Nothing",
				URL:        "https://music.youtube.com/watch?v=dQw4w9WgXcQ",
				Artists:    []Artist{{ID: "UC1", Name: "Tunabunny"}},
				Album:      Album{ID: "MPRE1", Name: "Genius Fatigue"},
				DurationMS: 138000,
				MusicVideo: ptr("https://www.youtube.com/watch?v=dQw4w9WgXcQ"),
			},
		},
	}
}

func TestTrackRoundTrip(t *testing.T) {
	t.Run("track", func(t *testing.T) {
		track := fixtureTrack()
		path := filepath.Join(t.TempDir(), "track.json")

		if err := WriteTrackFile(path, &track); err != nil {
			t.Fatalf("WriteTrackFile() error = %v", err)
		}
		got, err := ReadTrackFile(path)
		if err != nil {
			t.Fatalf("ReadTrackFile() error = %v", err)
		}
		if !reflect.DeepEqual(*got, track) {
			t.Errorf("round trip mismatch:\n got: %+v\nwant: %+v", *got, track)
		}
	})

	t.Run("playlist", func(t *testing.T) {
		second := fixtureTrack()
		second.Name = "Airplane"
		second.ISRC = nil
		second.ReleaseMonth = nil
		second.Services = Services{}

		playlist := &Playlist{
			Name:          "Genius Fatigue",
			ID:            "al1",
			Kind:          KindAlbum,
			Description:   ptr("2013 LP"),
			SourceService: SourceSpotify,
			ReleaseYear:   2013,
			ReleaseMonth:  ptr(4),
			Tracks:        []Track{fixtureTrack(), second},
		}
		path := filepath.Join(t.TempDir(), "nested", "playlist.json")

		if err := WritePlaylistFile(path, playlist); err != nil {
			t.Fatalf("WritePlaylistFile() error = %v", err)
		}
		got, err := ReadPlaylistFile(path)
		if err != nil {
			t.Fatalf("ReadPlaylistFile() error = %v", err)
		}
		if !reflect.DeepEqual(got, playlist) {
			t.Errorf("round trip mismatch:\n got: %+v\nwant: %+v", got, playlist)
		}
		if got.Tracks[0].Name != "Duchess for Nothing" || got.Tracks[1].Name != "Airplane" {
			t.Error("track order not preserved")
		}
	})

	t.Run("json uses service keys", func(t *testing.T) {
		track := fixtureTrack()
		data, err := shared.MarshalJSON(&track)
		if err != nil {
			t.Fatal(err)
		}

		var raw map[string]any
		if err := shared.UnmarshalJSON(data, &raw); err != nil {
			t.Fatal(err)
		}
		if raw["source_service"] != "spotify" {
			t.Errorf("source_service = %v", raw["source_service"])
		}
		if raw["isrc"] != "USZUD1215001" {
			t.Errorf("isrc = %v", raw["isrc"])
		}
		services, ok := raw["services"].(map[string]any)
		if !ok {
			t.Fatalf("services = %T", raw["services"])
		}
		for _, key := range []string{"spotify", "apple_music", "bandcamp", "youtube"} {
			if _, ok := services[key]; !ok {
				t.Errorf("services missing %s", key)
			}
		}
	})

	t.Run("empty genres stay empty", func(t *testing.T) {
		track := fixtureTrack()
		track.Services.AppleMusic.Genres = []string{}
		path := filepath.Join(t.TempDir(), "track.json")

		if err := WriteTrackFile(path, &track); err != nil {
			t.Fatal(err)
		}
		got, err := ReadTrackFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if g := got.Services.AppleMusic.Genres; g == nil || len(g) != 0 {
			t.Errorf("expected empty non-nil genres, got %#v", g)
		}
	})

	t.Run("track file written as a one-track playlist", func(t *testing.T) {
		track := fixtureTrack()
		path := filepath.Join(t.TempDir(), "single.json")
		if err := WritePlaylistFile(path, Single(track)); err != nil {
			t.Fatal(err)
		}

		got, err := ReadTrackFile(path)
		if err != nil {
			t.Fatalf("ReadTrackFile() error = %v", err)
		}
		if !reflect.DeepEqual(*got, track) {
			t.Errorf("round trip mismatch:\n got: %+v\nwant: %+v", *got, track)
		}
	})

	t.Run("track file rejects playlists and incomplete tracks", func(t *testing.T) {
		dir := t.TempDir()
		two := filepath.Join(dir, "two.json")
		if err := WritePlaylistFile(two, &Playlist{Name: "Mix", Tracks: []Track{fixtureTrack(), fixtureTrack()}}); err != nil {
			t.Fatal(err)
		}
		empty := filepath.Join(dir, "empty.json")
		if err := WritePlaylistFile(empty, &Playlist{Name: "Mix", Tracks: []Track{}}); err != nil {
			t.Fatal(err)
		}
		noArtists := fixtureTrack()
		noArtists.Artists = nil
		bare := filepath.Join(dir, "bare.json")
		if err := WriteTrackFile(bare, &noArtists); err != nil {
			t.Fatal(err)
		}

		for _, path := range []string{two, empty, bare} {
			if _, err := ReadTrackFile(path); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("%s: expected ErrInvalidInput, got %v", filepath.Base(path), err)
			}
		}
	})

	t.Run("missing tracks array", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		if err := writeJSONFile(path, map[string]string{"name": "x"}); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadPlaylistFile(path); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestTrackValidate(t *testing.T) {
	tc := []struct {
		name    string
		mutate  func(*Track)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Track) {}},
		{name: "zero artists", mutate: func(tr *Track) { tr.Artists = nil }, wantErr: true},
		{name: "blank artist", mutate: func(tr *Track) { tr.Artists = []string{""} }, wantErr: true},
		{name: "missing name", mutate: func(tr *Track) { tr.Name = "" }, wantErr: true},
		{name: "negative duration", mutate: func(tr *Track) { tr.DurationMS = -1 }, wantErr: true},
		{name: "bad month", mutate: func(tr *Track) { tr.ReleaseMonth = ptr(13) }, wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			track := fixtureTrack()
			tt.mutate(&track)
			err := track.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestServices(t *testing.T) {
	t.Run("Merge copies one slot", func(t *testing.T) {
		full := fixtureTrack().Services
		var s Services
		s.Merge(SourceBandcamp, full)

		if !s.Has(SourceBandcamp) {
			t.Error("bandcamp slot should be set")
		}
		for _, src := range []Source{SourceSpotify, SourceAppleMusic, SourceYouTube} {
			if s.Has(src) {
				t.Errorf("%s slot should be untouched", src)
			}
		}

		s.Clear(SourceBandcamp)
		if s.Has(SourceBandcamp) {
			t.Error("Clear should empty the slot")
		}
	})

	t.Run("ImageURL", func(t *testing.T) {
		s := fixtureTrack().Services
		if got, ok := s.ImageURL(SourceAppleMusic); !ok || got != "https://is1-ssl.mzstatic.com/image/thumb/x/352x352bb.jpg" {
			t.Errorf("apple music image = %q, %v", got, ok)
		}
		if got, ok := s.ImageURL(SourceSpotify); !ok || got != "https://i.scdn.co/image/abc" {
			t.Errorf("spotify image = %q, %v", got, ok)
		}
		if _, ok := s.ImageURL(SourceBandcamp); ok {
			t.Error("bandcamp fixture has no image")
		}
	})

	t.Run("Ref", func(t *testing.T) {
		s := fixtureTrack().Services
		id, url, ok := s.Ref(SourceYouTube)
		if !ok || id != "dQw4w9WgXcQ" || url != "https://music.youtube.com/watch?v=dQw4w9WgXcQ" {
			t.Errorf("Ref(youtube) = %q %q %v", id, url, ok)
		}
		if _, _, ok := (&Services{}).Ref(SourceSpotify); ok {
			t.Error("empty services should have no ref")
		}
	})
}

func TestSource(t *testing.T) {
	tc := map[string]Source{
		"spotify":       SourceSpotify,
		"Apple Music":   SourceAppleMusic,
		"apple-music":   SourceAppleMusic,
		"bandcamp":      SourceBandcamp,
		"youtube_music": SourceYouTube,
		"unknown":       SourceUnknown,
	}
	for in, want := range tc {
		got, err := ParseSource(in)
		if err != nil || got != want {
			t.Errorf("ParseSource(%q) = %v, %v; want %v", in, got, err, want)
		}
	}

	if _, err := ParseSource("tidal"); err == nil {
		t.Error("expected error for unsupported service")
	}

	var s Source
	if err := s.UnmarshalText([]byte("apple_music")); err != nil || s != SourceAppleMusic {
		t.Errorf("UnmarshalText() = %v, %v", s, err)
	}
	if text, _ := SourceBandcamp.MarshalText(); string(text) != "bandcamp" {
		t.Errorf("MarshalText() = %s", text)
	}
	if SourceYouTube.Label() != "YouTube Music" {
		t.Errorf("Label() = %s", SourceYouTube.Label())
	}
}

func TestRun(t *testing.T) {
	p := &Playlist{Name: "Mix", ID: "p1", Kind: KindPlaylist, SourceService: SourceSpotify, Tracks: []Track{fixtureTrack()}}
	run := NewRun(p, []Source{SourceAppleMusic})

	if run.Total != 1 || run.Name != "Mix" {
		t.Errorf("unexpected run: %+v", run)
	}
	if err := run.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	run.Matched = 2
	if err := run.Validate(); err == nil {
		t.Error("expected counter overflow to fail validation")
	}

	run.Matched = 1
	run.Targets = nil
	if err := run.Validate(); err == nil {
		t.Error("expected missing targets to fail validation")
	}
}
