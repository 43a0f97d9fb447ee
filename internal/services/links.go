package services

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/shared"
)

// Link identifies an entity behind a share URL.
type Link struct {
	Source models.Source
	Kind   models.Kind
	ID     string
}

// ParseLink recognizes share URLs of every supported service, plus spotify: URIs.
//
// Apple Music album URLs carrying ?i=<song> are song links. Bandcamp and YouTube links are
// recognized but only Spotify and Apple Music entities can be loaded.
func ParseLink(raw string) (Link, error) {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, "spotify:"); ok {
		kind, id, found := strings.Cut(rest, ":")
		if !found || id == "" {
			return Link{}, fmt.Errorf("%w: spotify uri %q", shared.ErrInvalidInput, raw)
		}
		return linkOf(models.SourceSpotify, kind, id, raw)
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Link{}, fmt.Errorf("%w: not a url: %q", shared.ErrInvalidInput, raw)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })

	switch {
	case host == "open.spotify.com":
		// Localized links carry an intl-xx prefix.
		if len(segments) > 0 && strings.HasPrefix(segments[0], "intl-") {
			segments = segments[1:]
		}
		if len(segments) < 2 {
			break
		}
		return linkOf(models.SourceSpotify, segments[0], segments[1], raw)

	case host == "music.apple.com":
		// /{storefront}/{kind}/{slug}/{id} or /{storefront}/{kind}/{id}
		if len(segments) < 3 {
			break
		}
		kind, id := segments[1], segments[len(segments)-1]
		if kind == "album" {
			if song, ok := appleIDFromURL(u); ok {
				return Link{Source: models.SourceAppleMusic, Kind: models.KindTrack, ID: song}, nil
			}
		}
		return linkOf(models.SourceAppleMusic, kind, id, raw)

	case strings.HasSuffix(host, ".bandcamp.com"):
		if len(segments) < 2 {
			break
		}
		return linkOf(models.SourceBandcamp, segments[0], u.Scheme+"://"+u.Host+path.Join("/", segments[0], segments[1]), raw)

	case host == "music.youtube.com" || host == "youtube.com" || host == "m.youtube.com":
		if id := u.Query().Get("v"); id != "" {
			return Link{Source: models.SourceYouTube, Kind: models.KindTrack, ID: id}, nil
		}
		if id := u.Query().Get("list"); id != "" {
			return Link{Source: models.SourceYouTube, Kind: models.KindPlaylist, ID: id}, nil
		}

	case host == "youtu.be":
		if len(segments) == 1 {
			return Link{Source: models.SourceYouTube, Kind: models.KindTrack, ID: segments[0]}, nil
		}
	}
	return Link{}, fmt.Errorf("%w: unrecognized link %q", shared.ErrUnsupported, raw)
}

func linkOf(src models.Source, kind, id, raw string) (Link, error) {
	var k models.Kind
	switch kind {
	case "track", "song":
		k = models.KindTrack
	case "album":
		k = models.KindAlbum
	case "playlist":
		k = models.KindPlaylist
	default:
		return Link{}, fmt.Errorf("%w: %s link kind %q in %q", shared.ErrUnsupported, src.Label(), kind, raw)
	}
	return Link{Source: src, Kind: k, ID: id}, nil
}
