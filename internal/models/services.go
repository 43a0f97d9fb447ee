package models

import "strings"

// Services holds one optional match projection per supported service.
//
// Each slot is written by at most one resolver task, so concurrent resolutions against different
// services never touch the same field.
type Services struct {
	Spotify    *SpotifyMatch    `json:"spotify,omitempty"`
	AppleMusic *AppleMusicMatch `json:"apple_music,omitempty"`
	Bandcamp   *BandcampMatch   `json:"bandcamp,omitempty"`
	YouTube    *YouTubeMatch    `json:"youtube,omitempty"`
}

// SpotifyMatch is the Spotify projection of a matched track.
type SpotifyMatch struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	URL          string   `json:"url"`
	Artists      []Artist `json:"artists"`
	Album        Album    `json:"album"`
	DurationMS   int      `json:"duration_ms"`
	Image        *string  `json:"image,omitempty"`
	AudioPreview *string  `json:"audio_preview,omitempty"`
}

// AppleMusicMatch is the Apple Music projection of a matched track.
//
// Image is the 352x352 webp rendition; ImageNoSuffix is the artwork template without the size suffix.
type AppleMusicMatch struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	URL           string   `json:"url"`
	Artists       []Artist `json:"artists"`
	Album         Album    `json:"album"`
	DurationMS    int      `json:"duration_ms"`
	Composer      *string  `json:"composer,omitempty"`
	Image         *string  `json:"image,omitempty"`
	ImageNoSuffix *string  `json:"image_no_suffix,omitempty"`
	Genres        []string `json:"genres"`
	AudioPreview  *string  `json:"audio_preview,omitempty"`
}

// BandcampMatch is the Bandcamp projection of a matched track.
//
// StreamingURL is a directly fetchable mp3 stream and is the preferred download source.
type BandcampMatch struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	URL          string   `json:"url"`
	Artists      []Artist `json:"artists"`
	Album        Album    `json:"album"`
	DurationMS   int      `json:"duration_ms"`
	Image        *string  `json:"image,omitempty"`
	StreamingURL *string  `json:"streaming_url,omitempty"`
}

// YouTubeMatch is the YouTube Music projection of a matched track.
type YouTubeMatch struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMS int      `json:"duration_ms"`
	Image      *string  `json:"image,omitempty"`
	MusicVideo *string  `json:"music_video,omitempty"`
}

// Has reports whether the slot for s is populated.
func (s *Services) Has(src Source) bool {
	switch src {
	case SourceSpotify:
		return s.Spotify != nil
	case SourceAppleMusic:
		return s.AppleMusic != nil
	case SourceBandcamp:
		return s.Bandcamp != nil
	case SourceYouTube:
		return s.YouTube != nil
	}
	return false
}

// Merge copies exactly the slot for src from other. Other slots are left untouched.
func (s *Services) Merge(src Source, other Services) {
	switch src {
	case SourceSpotify:
		s.Spotify = other.Spotify
	case SourceAppleMusic:
		s.AppleMusic = other.AppleMusic
	case SourceBandcamp:
		s.Bandcamp = other.Bandcamp
	case SourceYouTube:
		s.YouTube = other.YouTube
	}
}

// Clear empties the slot for src.
func (s *Services) Clear(src Source) {
	s.Merge(src, Services{})
}

// Ref returns the id and url stored in the slot for src.
func (s *Services) Ref(src Source) (id, url string, ok bool) {
	switch src {
	case SourceSpotify:
		if m := s.Spotify; m != nil {
			return m.ID, m.URL, true
		}
	case SourceAppleMusic:
		if m := s.AppleMusic; m != nil {
			return m.ID, m.URL, true
		}
	case SourceBandcamp:
		if m := s.Bandcamp; m != nil {
			return m.ID, m.URL, true
		}
	case SourceYouTube:
		if m := s.YouTube; m != nil {
			return m.ID, m.URL, true
		}
	}
	return "", "", false
}

// ImageURL returns the artwork URL for src, if that slot has one.
//
// Apple Music's webp rendition is swapped for the jpg variant of the same size.
func (s *Services) ImageURL(src Source) (string, bool) {
	var img *string
	switch src {
	case SourceSpotify:
		if s.Spotify != nil {
			img = s.Spotify.Image
		}
	case SourceAppleMusic:
		if s.AppleMusic != nil {
			img = s.AppleMusic.Image
		}
	case SourceBandcamp:
		if s.Bandcamp != nil {
			img = s.Bandcamp.Image
		}
	case SourceYouTube:
		if s.YouTube != nil {
			img = s.YouTube.Image
		}
	}
	if img == nil || *img == "" {
		return "", false
	}
	if src == SourceAppleMusic {
		return strings.Replace(*img, ".webp", ".jpg", 1), true
	}
	return *img, true
}
