package models

import (
	"fmt"
	"strings"
)

// Source tags the service a [Track] or [Playlist] canonically originated from.
type Source int

const (
	SourceUnknown Source = iota
	SourceSpotify
	SourceAppleMusic
	SourceBandcamp
	SourceYouTube
)

var sourceNames = map[Source]string{
	SourceSpotify:    "spotify",
	SourceAppleMusic: "apple_music",
	SourceBandcamp:   "bandcamp",
	SourceYouTube:    "youtube",
}

// AllSources lists every supported service in artwork preference order.
func AllSources() []Source {
	return []Source{SourceAppleMusic, SourceSpotify, SourceBandcamp, SourceYouTube}
}

// String returns the snake_case key used in JSON and configuration.
func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return "unknown"
}

// Label returns a human readable service name.
func (s Source) Label() string {
	switch s {
	case SourceSpotify:
		return "Spotify"
	case SourceAppleMusic:
		return "Apple Music"
	case SourceBandcamp:
		return "Bandcamp"
	case SourceYouTube:
		return "YouTube Music"
	default:
		return "Unknown"
	}
}

// ParseSource accepts the snake_case key as well as a few common spellings.
func ParseSource(s string) (Source, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	switch key {
	case "spotify":
		return SourceSpotify, nil
	case "apple_music", "applemusic", "apple":
		return SourceAppleMusic, nil
	case "bandcamp":
		return SourceBandcamp, nil
	case "youtube", "youtube_music", "ytmusic":
		return SourceYouTube, nil
	case "unknown", "":
		return SourceUnknown, nil
	default:
		return SourceUnknown, fmt.Errorf("unknown service %q", s)
	}
}

// MarshalText implements [encoding.TextMarshaler]. Unrecognized values encode as "unknown".
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (s *Source) UnmarshalText(text []byte) error {
	parsed, err := ParseSource(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
