package matching

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/desertthunder/songvert/internal/models"
	"github.com/gosimple/unidecode"
	"github.com/xrash/smetrics"
)

// ToleranceMS is the largest duration difference that still earns the duration point.
const ToleranceMS = 3000

// MaxScore is the highest score either mode can produce.
const MaxScore = 4.0

// Mode selects the scoring formula.
type Mode int

const (
	Fuzzy Mode = iota
	Exact
)

func (m Mode) String() string {
	if m == Exact {
		return "exact"
	}
	return "fuzzy"
}

// ParseMode maps a config value to a [Mode].
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fuzzy":
		return Fuzzy, nil
	case "exact":
		return Exact, nil
	default:
		return Fuzzy, fmt.Errorf("unknown scoring mode %q", s)
	}
}

// Metric is a normalized string similarity in 0.0..1.0.
type Metric func(a, b string) float64

// JaroWinkler is the default fuzzy metric.
func JaroWinkler(a, b string) float64 {
	if a == b {
		return 1
	}
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}

// Levenshtein turns edit distance into a ratio: 1 - distance/len(longer).
func Levenshtein(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// ParseMetric maps a config value to a [Metric].
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jaro-winkler", "jarowinkler":
		return JaroWinkler, nil
	case "levenshtein":
		return Levenshtein, nil
	default:
		return nil, fmt.Errorf("unknown similarity metric %q", s)
	}
}

// Candidate holds the four fields of a catalog record that take part in scoring.
type Candidate struct {
	Name       string
	Artist     string
	Album      string
	DurationMS int
}

// Scorer computes match scores in a fixed [Mode].
type Scorer struct {
	Mode   Mode
	Metric Metric
}

// NewScorer returns a scorer. A nil metric falls back to [JaroWinkler].
func NewScorer(mode Mode, metric Metric) Scorer {
	if metric == nil {
		metric = JaroWinkler
	}
	return Scorer{Mode: mode, Metric: metric}
}

// Score rates candidate c against reference track ref.
func (s Scorer) Score(ref *models.Track, c Candidate) float64 {
	var score float64

	if s.Mode == Exact {
		score += equalFold(ref.Name, c.Name)
		score += equalFold(ref.Album, c.Album)
		if len(ref.Artists) > 0 {
			score += equalFold(ref.Artists[0], c.Artist)
		}
	} else {
		metric := s.Metric
		if metric == nil {
			metric = JaroWinkler
		}
		score += metric(Normalize(ref.Name), Normalize(c.Name))
		score += metric(Normalize(ref.Album), Normalize(c.Album))
		if len(ref.Artists) > 0 {
			score += metric(Normalize(ref.Artists[0]), Normalize(c.Artist))
		}
	}

	if WithinTolerance(ref.DurationMS, c.DurationMS) {
		score++
	}
	return score
}

// Accepts reports whether score meets threshold. A score exactly at the threshold is accepted.
func Accepts(score, threshold float64) bool {
	return score >= threshold
}

// WithinTolerance reports whether two durations differ by at most [ToleranceMS].
func WithinTolerance(a, b int) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= ToleranceMS
}

func equalFold(a, b string) float64 {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) {
		return 1
	}
	return 0
}

var (
	featuring  = regexp.MustCompile(`\s*[\(\[](?:feat\.?|ft\.?|featuring|with)\s[^\)\]]*[\)\]]`)
	featSuffix = regexp.MustCompile(`\s+(?:feat\.?|ft\.?|featuring)\s.*$`)
	quotes     = strings.NewReplacer("‘", "'", "’", "'", "‚", "'", "‛", "'", "`", "'", "´", "'",
		"“", `"`, "”", `"`, "„", `"`, "″", `"`)
)

// Normalize lower-cases s, folds diacritics and quote variants, and drops featured-artist credits.
func Normalize(s string) string {
	s = quotes.Replace(s)
	s = strings.ToLower(unidecode.Unidecode(s))
	s = featuring.ReplaceAllString(s, "")
	s = featSuffix.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
