package tasks

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/desertthunder/songvert/internal/matching"
	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/services"
	"github.com/desertthunder/songvert/internal/shared"
)

func duchess() *models.Track {
	return &models.Track{
		Name:          "Duchess for Nothing",
		Artists:       []string{"Tunabunny"},
		Album:         "Genius Fatigue",
		DurationMS:    138026,
		ISRC:          strPtr("USZUD1215001"),
		SourceService: models.SourceSpotify,
	}
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	resolver := NewResolver(nil)

	t.Run("identifier lookup bypasses text search", func(t *testing.T) {
		conn := newMockConnector(models.SourceAppleMusic)
		conn.byISRC["USZUD1215001"] = []services.RawRecord{record("isrc-hit", "Duchess For Nothing", "Tunabunny", "Genius Fatigue", 138000)}
		conn.search["Duchess for Nothing"] = []services.RawRecord{record("search-hit", "Duchess for Nothing", "Tunabunny", "Genius Fatigue", 138026)}

		track := duchess()
		res, err := resolver.Resolve(ctx, track, conn)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Path != PathIdentifier || res.RecordID != "isrc-hit" {
			t.Errorf("expected identifier hit, got %+v", res)
		}
		if conn.searches.Load() != 0 {
			t.Errorf("expected no text search, got %d", conn.searches.Load())
		}
		if track.Services.AppleMusic == nil || track.Services.AppleMusic.ID != "isrc-hit" {
			t.Errorf("expected apple music slot to be filled, got %+v", track.Services.AppleMusic)
		}
	})

	t.Run("multiple identifier hits pick the album match", func(t *testing.T) {
		conn := newMockConnector(models.SourceSpotify)
		conn.byISRC["USZUD1215001"] = []services.RawRecord{
			record("compilation", "Duchess for Nothing", "Tunabunny", "Best of 2012", 138026),
			record("original", "Duchess for Nothing", "Tunabunny", "genius fatigue", 138026),
		}

		res, err := resolver.Resolve(ctx, duchess(), conn)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.RecordID != "original" {
			t.Errorf("expected album match, got %s", res.RecordID)
		}
	})

	t.Run("multiple identifier hits without album match take the first", func(t *testing.T) {
		conn := newMockConnector(models.SourceSpotify)
		conn.byISRC["USZUD1215001"] = []services.RawRecord{
			record("first", "Duchess for Nothing", "Tunabunny", "A", 1),
			record("second", "Duchess for Nothing", "Tunabunny", "B", 1),
		}

		res, err := resolver.Resolve(ctx, duchess(), conn)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.RecordID != "first" {
			t.Errorf("expected first hit, got %s", res.RecordID)
		}
	})

	t.Run("without ISRC falls through to fuzzy search", func(t *testing.T) {
		conn := newMockConnector(models.SourceAppleMusic)
		conn.search["Duchess for Nothing"] = []services.RawRecord{
			record("wrong", "Nothing Duchess", "Someone", "Other", 90000),
			record("right", "Duchess for Nothing", "TunaBunny", "Genius Fatigue", 139500),
		}

		track := duchess()
		track.ISRC = nil
		res, err := resolver.Resolve(ctx, track, conn)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.RecordID != "right" || res.Path != PathSearch {
			t.Errorf("expected search hit 'right', got %+v", res)
		}
		if res.Score < 3.0 {
			t.Errorf("expected score >= 3.0, got %v", res.Score)
		}
		if conn.lookups.Load() != 0 {
			t.Errorf("expected no identifier lookup, got %d", conn.lookups.Load())
		}
	})

	t.Run("failed identifier lookup falls back to search", func(t *testing.T) {
		conn := newMockConnector(models.SourceSpotify)
		conn.lookupErr["USZUD1215001"] = shared.ErrAPIRequest
		conn.search["Duchess for Nothing"] = []services.RawRecord{record("s", "Duchess for Nothing", "Tunabunny", "Genius Fatigue", 138026)}

		res, err := resolver.Resolve(ctx, duchess(), conn)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Path != PathSearch || conn.lookups.Load() != 1 {
			t.Errorf("expected search after one lookup, got %+v", res)
		}
	})

	t.Run("low scores are a no match", func(t *testing.T) {
		conn := newMockConnector(models.SourceYouTube)
		conn.caps = services.Capabilities{}
		conn.search["Duchess for Nothing"] = []services.RawRecord{
			record("a", "Completely Different", "Band", "Record", 300000),
			record("b", "Duchess", "Other Artist", "Compilation", 10000),
		}

		track := duchess()
		_, err := resolver.Resolve(ctx, track, conn)
		if !errors.Is(err, shared.ErrNoMatch) {
			t.Fatalf("expected ErrNoMatch, got %v", err)
		}

		var me *MatchError
		if !errors.As(err, &me) || me.Candidates != 2 || me.BestScore >= 3.0 {
			t.Errorf("unexpected match error %+v", me)
		}
		if track.Services.YouTube != nil {
			t.Error("expected slot to stay empty")
		}
	})

	t.Run("empty search is a no match", func(t *testing.T) {
		conn := newMockConnector(models.SourceYouTube)
		_, err := resolver.Resolve(ctx, &models.Track{Name: "x", Artists: []string{"y"}}, conn)
		if !IsNoMatch(err) {
			t.Errorf("expected no match, got %v", err)
		}
	})

	t.Run("search errors are returned as is", func(t *testing.T) {
		conn := newMockConnector(models.SourceYouTube)
		conn.searchErr["x"] = shared.ErrAPIRequest
		_, err := resolver.Resolve(ctx, &models.Track{Name: "x", Artists: []string{"y"}}, conn)
		if !errors.Is(err, shared.ErrAPIRequest) || IsNoMatch(err) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("invalid track fails before any call", func(t *testing.T) {
		conn := newMockConnector(models.SourceSpotify)
		track := duchess()
		track.Artists = nil

		_, err := resolver.Resolve(ctx, track, conn)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if conn.lookups.Load()+conn.searches.Load() != 0 {
			t.Error("expected no connector calls")
		}
	})

	t.Run("full record is fetched only when needed", func(t *testing.T) {
		conn := newMockConnector(models.SourceBandcamp)
		conn.caps = services.Capabilities{NeedsFullRecord: true}
		conn.search["Duchess for Nothing"] = []services.RawRecord{record("s", "Duchess for Nothing", "Tunabunny", "Genius Fatigue", 138026)}

		if _, err := resolver.Resolve(ctx, duchess(), conn); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if conn.fetches.Load() != 1 {
			t.Errorf("expected one fetch, got %d", conn.fetches.Load())
		}

		conn.fetchErr = shared.ErrAPIRequest
		if _, err := resolver.Resolve(ctx, duchess(), conn); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected fetch error, got %v", err)
		}
	})

	t.Run("threshold boundary", func(t *testing.T) {
		half := func(a, b string) float64 { return 0.5 }
		track := &models.Track{Name: "n", Artists: []string{"a"}, Album: "b", DurationMS: 1000}
		// three halves plus the duration point
		const exactScore = 2.5

		tests := []struct {
			name      string
			threshold float64
			accepted  bool
		}{
			{"at threshold", exactScore, true},
			{"epsilon above score", math.Nextafter(exactScore, 3), false},
			{"below score", 2.0, true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				conn := newMockConnector(models.SourceSpotify)
				conn.caps = services.Capabilities{}
				conn.policy = services.MatchPolicy{Scorer: matching.NewScorer(matching.Fuzzy, half), Threshold: tt.threshold}
				conn.search["n"] = []services.RawRecord{record("c", "x", "y", "z", 1000)}

				res, err := resolver.Resolve(ctx, track, conn)
				if tt.accepted && (err != nil || res.Score != exactScore) {
					t.Errorf("expected acceptance at %v, got %v, %v", exactScore, res, err)
				}
				if !tt.accepted && !IsNoMatch(err) {
					t.Errorf("expected no match, got %v", err)
				}
			})
		}
	})

	t.Run("bandcamp single without album", func(t *testing.T) {
		conn := newMockConnector(models.SourceBandcamp)
		conn.caps = services.Capabilities{}
		conn.policy = services.MatchPolicy{Scorer: matching.NewScorer(matching.Exact, nil), Threshold: 2.0}
		conn.search["Lonely Single"] = []services.RawRecord{
			&services.BandcampSearchResult{ID: 1, Name: "Lonely Single", BandName: "Band"},
		}

		track := &models.Track{Name: "Lonely Single", Album: "Lonely Single", Artists: []string{"Band"}, DurationMS: 200000}
		res, err := resolver.Resolve(ctx, track, conn)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Candidate.Album != "Lonely Single" || res.Score != 3 {
			t.Errorf("expected album fallback to score 3, got %+v", res)
		}
	})

	t.Run("scoring is deterministic", func(t *testing.T) {
		scorer := matching.NewScorer(matching.Fuzzy, nil)
		c := matching.Candidate{Name: "Duchess For Nothing", Artist: "TunaBunny", Album: "Genius Fatigue (Deluxe)", DurationMS: 140000}
		if a, b := scorer.Score(duchess(), c), scorer.Score(duchess(), c); a != b {
			t.Errorf("expected equal scores, got %v and %v", a, b)
		}
	})
}
