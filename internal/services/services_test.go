package services

import (
	"errors"
	"reflect"
	"testing"

	"github.com/desertthunder/songvert/internal/matching"
	"github.com/desertthunder/songvert/internal/shared"
)

func sameMetric(a, b matching.Metric) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func TestPolicyFromConfig(t *testing.T) {
	exact := MatchPolicy{Scorer: matching.NewScorer(matching.Exact, matching.Levenshtein), Threshold: 2.0}

	tests := []struct {
		name      string
		cfg       shared.MatchConfig
		mode      matching.Mode
		metric    matching.Metric
		threshold float64
	}{
		{"empty section keeps defaults", shared.MatchConfig{}, matching.Exact, matching.Levenshtein, 2.0},
		{"threshold only keeps scorer", shared.MatchConfig{Threshold: 2.5}, matching.Exact, matching.Levenshtein, 2.5},
		{"metric only", shared.MatchConfig{Metric: "jaro-winkler"}, matching.Exact, matching.JaroWinkler, 2.0},
		{"mode only", shared.MatchConfig{Mode: "fuzzy"}, matching.Fuzzy, matching.Levenshtein, 2.0},
		{"full section", shared.MatchConfig{Mode: "fuzzy", Metric: "jaro-winkler", Threshold: 3.5}, matching.Fuzzy, matching.JaroWinkler, 3.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PolicyFromConfig(tt.cfg, exact)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Scorer.Mode != tt.mode {
				t.Errorf("mode = %v, want %v", got.Scorer.Mode, tt.mode)
			}
			if !sameMetric(got.Scorer.Metric, tt.metric) {
				t.Error("unexpected metric")
			}
			if got.Threshold != tt.threshold {
				t.Errorf("threshold = %v, want %v", got.Threshold, tt.threshold)
			}
		})
	}

	t.Run("invalid values", func(t *testing.T) {
		for _, cfg := range []shared.MatchConfig{{Mode: "loose"}, {Metric: "cosine"}} {
			got, err := PolicyFromConfig(cfg, exact)
			if !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("%+v: expected ErrInvalidConfig, got %v", cfg, err)
			}
			if got.Scorer.Mode != matching.Exact || got.Threshold != 2.0 {
				t.Errorf("%+v: expected defaults on error, got %+v", cfg, got)
			}
		}
	})

	t.Run("bandcamp keeps exact scoring when only threshold is tuned", func(t *testing.T) {
		def := NewBandcampService(nil).Policy()
		got, err := PolicyFromConfig(shared.MatchConfig{Threshold: 2.5}, def)
		if err != nil {
			t.Fatal(err)
		}
		if got.Scorer.Mode != matching.Exact || got.Threshold != 2.5 {
			t.Errorf("unexpected policy %+v", got)
		}
	})
}
