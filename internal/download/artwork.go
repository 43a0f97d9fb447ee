package download

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/shared"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

const (
	DefaultArtworkSize = 600
	artworkQuality     = 90
	maxArtworkBytes    = 20 << 20
)

// Artwork fetches cover art for a track from the first service slot that has an image.
//
// Slots are tried in [models.AllSources] order. Apple Music requests carry its bearer token.
type Artwork struct {
	client     *http.Client
	appleToken string
	size       int
}

// NewArtwork creates an artwork fetcher producing JPEGs no larger than size on either side.
func NewArtwork(client *http.Client, appleToken string, size int) *Artwork {
	if client == nil {
		client = http.DefaultClient
	}
	if size <= 0 {
		size = DefaultArtworkSize
	}
	return &Artwork{client: client, appleToken: appleToken, size: size}
}

// Fetch returns the normalized JPEG and the service it came from.
func (a *Artwork) Fetch(ctx context.Context, track *models.Track) ([]byte, models.Source, error) {
	var lastErr error
	for _, src := range models.AllSources() {
		u, ok := track.Services.ImageURL(src)
		if !ok {
			continue
		}

		raw, err := a.get(ctx, src, u)
		if err == nil {
			var img []byte
			if img, err = a.normalize(raw); err == nil {
				return img, src, nil
			}
		}
		lastErr = fmt.Errorf("%s artwork: %w", src.Label(), err)
	}

	if lastErr == nil {
		return nil, models.SourceUnknown, fmt.Errorf("%w: no artwork for %q", shared.ErrTrackNotFound, track.Name)
	}
	return nil, models.SourceUnknown, lastErr
}

func (a *Artwork) get(ctx context.Context, src models.Source, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if src == models.SourceAppleMusic && a.appleToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.appleToken)
		req.Header.Set("Origin", "https://music.apple.com")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxArtworkBytes))
}

// normalize decodes jpeg, png or webp data, shrinks it to fit the configured size and re-encodes JPEG.
func (a *Artwork) normalize(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > a.size || b.Dy() > a.size {
		img = resize.Thumbnail(uint(a.size), uint(a.size), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: artworkQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode artwork: %w", err)
	}
	return buf.Bytes(), nil
}
