package tasks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desertthunder/songvert/internal/matching"
	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/services"
	"github.com/desertthunder/songvert/internal/shared"
)

type mockRecord struct {
	id   string
	cand matching.Candidate
}

func (r *mockRecord) RecordID() string              { return r.id }
func (r *mockRecord) Candidate() matching.Candidate { return r.cand }

func record(id, name, artist, album string, durationMS int) *mockRecord {
	return &mockRecord{id: id, cand: matching.Candidate{Name: name, Artist: artist, Album: album, DurationMS: durationMS}}
}

// mockConnector answers lookups from maps and counts every call. Query returns the track name, so
// search behavior can be keyed per track.
type mockConnector struct {
	source models.Source
	caps   services.Capabilities
	policy services.MatchPolicy

	byISRC    map[string][]services.RawRecord
	lookupErr map[string]error
	search    map[string][]services.RawRecord
	searchErr map[string]error
	delay     func(query string) time.Duration
	fetchErr  error

	lookups  atomic.Int64
	searches atomic.Int64
	fetches  atomic.Int64
}

func newMockConnector(src models.Source) *mockConnector {
	return &mockConnector{
		source:    src,
		caps:      services.Capabilities{IdentifierLookup: true},
		policy:    services.MatchPolicy{Scorer: matching.NewScorer(matching.Fuzzy, matching.JaroWinkler), Threshold: 3.0},
		byISRC:    map[string][]services.RawRecord{},
		lookupErr: map[string]error{},
		search:    map[string][]services.RawRecord{},
		searchErr: map[string]error{},
	}
}

func (m *mockConnector) Name() string                        { return "mock " + m.source.String() }
func (m *mockConnector) Source() models.Source               { return m.source }
func (m *mockConnector) Capabilities() services.Capabilities { return m.caps }
func (m *mockConnector) Policy() services.MatchPolicy        { return m.policy }
func (m *mockConnector) Query(track *models.Track) string    { return track.Name }

func (m *mockConnector) LookupByIdentifier(_ context.Context, isrc string) ([]services.RawRecord, error) {
	m.lookups.Add(1)
	if err := m.lookupErr[isrc]; err != nil {
		return nil, err
	}
	records := m.byISRC[isrc]
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: isrc %s", shared.ErrTrackNotFound, isrc)
	}
	return records, nil
}

func (m *mockConnector) Search(ctx context.Context, query string) ([]services.RawRecord, error) {
	m.searches.Add(1)
	if m.delay != nil {
		select {
		case <-time.After(m.delay(query)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := m.searchErr[query]; err != nil {
		return nil, err
	}
	return m.search[query], nil
}

func (m *mockConnector) FetchFullRecord(_ context.Context, rec services.RawRecord) (services.RawRecord, error) {
	m.fetches.Add(1)
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return rec, nil
}

func (m *mockConnector) ParseToCanonical(rec services.RawRecord) (*models.Track, error) {
	c := rec.Candidate()
	track := &models.Track{Name: c.Name, Album: c.Album, Artists: []string{c.Artist}, DurationMS: c.DurationMS, SourceService: m.source}
	setSlot(&track.Services, m.source, rec.RecordID())
	return track, nil
}

func setSlot(s *models.Services, src models.Source, id string) {
	url := "https://example.test/" + src.String() + "/" + id
	switch src {
	case models.SourceSpotify:
		s.Spotify = &models.SpotifyMatch{ID: id, URL: url}
	case models.SourceAppleMusic:
		s.AppleMusic = &models.AppleMusicMatch{ID: id, URL: url}
	case models.SourceBandcamp:
		s.Bandcamp = &models.BandcampMatch{ID: id, URL: url}
	case models.SourceYouTube:
		s.YouTube = &models.YouTubeMatch{ID: id, URL: url}
	}
}

type mockRecorder struct {
	mu       sync.Mutex
	runs     []*models.Run
	outcomes []models.Outcome
	err      error
}

func (m *mockRecorder) Create(run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	run.SetID(fmt.Sprintf("run-%d", len(m.runs)+1))
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockRecorder) AddOutcomes(_ string, outcomes []models.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcomes...)
	return nil
}

type mockMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *mockMetrics) ObserveResolution(service models.Source, status string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	m.counts[service.String()+"/"+status]++
}

func strPtr(s string) *string { return &s }
