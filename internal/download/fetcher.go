package download

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/desertthunder/songvert/internal/shared"
	"github.com/lrstanley/go-ytdlp"
)

// Fetcher downloads the audio behind a page URL into dest. The extension of dest selects the
// audio container.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL, dest string) error
}

// YtDlp runs the external yt-dlp binary.
type YtDlp struct {
	binary string
}

// NewYtDlp returns a [Fetcher] using the yt-dlp binary at path, or the one on $PATH when path is empty.
func NewYtDlp(path string) *YtDlp {
	return &YtDlp{binary: path}
}

func (y *YtDlp) Fetch(ctx context.Context, pageURL, dest string) error {
	ext := filepath.Ext(dest)
	format := strings.TrimPrefix(ext, ".")
	if format == "" {
		return fmt.Errorf("%w: no audio format in %s", shared.ErrInvalidArgument, dest)
	}

	cmd := ytdlp.New().
		ExtractAudio().
		AudioFormat(format).
		Format("bestaudio/best").
		NoPlaylist().
		NoProgress().
		Quiet().
		Output(strings.TrimSuffix(dest, ext) + ".%(ext)s")
	if y.binary != "" {
		cmd.SetExecutable(y.binary)
	}

	if _, err := cmd.Run(ctx, pageURL); err != nil {
		return fmt.Errorf("%w: yt-dlp %s: %v", shared.ErrDownload, pageURL, err)
	}
	return nil
}
