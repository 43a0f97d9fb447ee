package shared

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNormalizeTrackKey(t *testing.T) {
	tc := []struct {
		name   string
		title  string
		artist string
		want   string
	}{
		{name: "basic normalization", title: "Song Title", artist: "Artist Name", want: "song title|artist name"},
		{name: "extra whitespace", title: "  Song   Title  ", artist: "  Artist   Name  ", want: "song title|artist name"},
		{name: "mixed case", title: "SoNg TiTlE", artist: "ArTiSt NaMe", want: "song title|artist name"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTrackKey(tt.title, tt.artist); got != tt.want {
				t.Errorf("NormalizeTrackKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	t.Run("FormatDuration", func(t *testing.T) {
		tc := map[int]string{
			0:       "0:00",
			138026:  "2:18",
			3723000: "1:02:03",
		}
		for ms, want := range tc {
			if got := FormatDuration(ms); got != want {
				t.Errorf("FormatDuration(%d) = %s, want %s", ms, got, want)
			}
		}
	})

	t.Run("ParseDuration", func(t *testing.T) {
		tc := []struct {
			in      string
			want    int
			wantErr bool
		}{
			{in: "2:18", want: 138000},
			{in: "1:02:03", want: 3723000},
			{in: " 0:05 ", want: 5000},
			{in: "abc", wantErr: true},
			{in: "12", wantErr: true},
			{in: "1:2:3:4", wantErr: true},
		}
		for _, tt := range tc {
			got, err := ParseDuration(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
				continue
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("ParseDuration(%q) should wrap ErrInvalidInput", tt.in)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %d, want %d", tt.in, got, tt.want)
			}
		}
	})
}

func TestJSONCodec(t *testing.T) {
	type payload struct {
		Name  string  `json:"name"`
		Image *string `json:"image,omitempty"`
	}

	data, err := MarshalJSON(payload{Name: "Genius Fatigue"})
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if strings.Contains(string(data), "image") {
		t.Errorf("omitempty field should be dropped: %s", data)
	}

	var got payload
	if err := UnmarshalJSON(data, &got); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if got.Name != "Genius Fatigue" {
		t.Errorf("Name = %q", got.Name)
	}

	var decoded payload
	if err := DecodeJSON(bytes.NewReader(data), &decoded); err != nil || decoded.Name != got.Name {
		t.Errorf("DecodeJSON() = %+v, %v", decoded, err)
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)
	SetLogLevel(logger, ParseLogLevel("warn"))

	WithLogger(logger, "service", "bandcamp").Info("hidden")
	WithLogger(logger, "service", "bandcamp").Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "service=bandcamp") {
		t.Errorf("expected warn entry with service key: %s", out)
	}

	if got := ParseLogLevel("bogus"); got != log.InfoLevel {
		t.Errorf("ParseLogLevel(bogus) = %v, want info", got)
	}
}
