package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/shared"
	"github.com/dhowden/tag"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"
	"github.com/zhaarey/go-mp4tag"
)

// ArtworkSource supplies cover art for a track.
type ArtworkSource interface {
	Fetch(ctx context.Context, track *models.Track) ([]byte, models.Source, error)
}

// Tagger writes track metadata into MP3, FLAC and M4A files.
//
// Files that already carry a picture keep it unless overwrite is set. Their text fields are
// rewritten either way.
type Tagger struct {
	artwork   ArtworkSource
	overwrite bool
	logger    *log.Logger
}

// NewTagger creates a tagger. A nil artwork source writes text fields only.
func NewTagger(artwork ArtworkSource, overwrite bool, logger *log.Logger) *Tagger {
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &Tagger{artwork: artwork, overwrite: overwrite, logger: logger}
}

// metadata is the subset of a track that is written into files.
type metadata struct {
	title, album, artist string
	year, trackNumber    int
	isrc                 string
	picture              []byte
}

// Tag embeds track's metadata into the file at path, picking the container by extension.
func (t *Tagger) Tag(ctx context.Context, path string, track *models.Track) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".mp3" && ext != ".flac" && ext != ".m4a" {
		return fmt.Errorf("%w: unsupported container %q", shared.ErrTag, ext)
	}

	md := metadata{
		title:       track.Name,
		album:       track.Album,
		artist:      track.PrimaryArtist(),
		year:        track.ReleaseYear,
		trackNumber: track.TrackNumber,
	}
	if track.HasISRC() {
		md.isrc = *track.ISRC
	}

	logger := t.logger.With("file", filepath.Base(path))
	if t.overwrite || !hasPicture(path) {
		md.picture = t.fetchArtwork(ctx, track, logger)
	} else {
		logger.Debug("keeping existing artwork")
	}

	var err error
	switch ext {
	case ".mp3":
		err = writeID3(path, md)
	case ".flac":
		err = writeFLAC(path, md)
	case ".m4a":
		err = writeMP4(path, md)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrTag, filepath.Base(path), err)
	}
	return nil
}

func (t *Tagger) fetchArtwork(ctx context.Context, track *models.Track, logger *log.Logger) []byte {
	if t.artwork == nil {
		return nil
	}
	img, src, err := t.artwork.Fetch(ctx, track)
	if err != nil {
		logger.Warn("tagging without artwork", "err", err)
		return nil
	}
	logger.Debug("fetched artwork", "service", src.String(), "bytes", len(img))
	return img
}

// hasPicture reports whether the file already embeds a picture. Unreadable or untagged files have none.
func hasPicture(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return false
	}
	return m.Picture() != nil
}

func writeID3(path string, md metadata) error {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("failed to open MP3 file for tagging: %w", err)
	}
	defer t.Close()

	t.SetDefaultEncoding(id3v2.EncodingUTF8)
	t.SetTitle(md.title)
	t.SetAlbum(md.album)
	t.SetArtist(md.artist)
	if md.year > 0 {
		t.SetYear(strconv.Itoa(md.year))
	}
	if md.trackNumber > 0 {
		t.AddTextFrame(t.CommonID("Track number/Position in set"), id3v2.EncodingUTF8, strconv.Itoa(md.trackNumber))
	}
	if md.isrc != "" {
		t.AddTextFrame(t.CommonID("ISRC"), id3v2.EncodingUTF8, md.isrc)
	}

	if md.picture != nil {
		t.DeleteFrames(t.CommonID("Attached picture"))
		t.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/jpeg",
			PictureType: id3v2.PTFrontCover,
			Description: "cover art",
			Picture:     md.picture,
		})
	}

	if err := t.Save(); err != nil {
		return fmt.Errorf("failed to save MP3 tags: %w", err)
	}
	return nil
}

func writeFLAC(path string, md metadata) error {
	f, err := goflac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("failed to parse FLAC file: %w", err)
	}

	comments := flacvorbis.New()
	commentIndex := -1
	for i, meta := range f.Meta {
		if meta.Type == goflac.VorbisComment {
			if comments, err = flacvorbis.ParseFromMetaDataBlock(*meta); err != nil {
				return fmt.Errorf("failed to parse Vorbis comment: %w", err)
			}
			commentIndex = i
			break
		}
	}

	setVorbis(comments, flacvorbis.FIELD_TITLE, md.title)
	setVorbis(comments, flacvorbis.FIELD_ALBUM, md.album)
	setVorbis(comments, flacvorbis.FIELD_ARTIST, md.artist)
	if md.year > 0 {
		setVorbis(comments, flacvorbis.FIELD_DATE, strconv.Itoa(md.year))
	}
	if md.trackNumber > 0 {
		setVorbis(comments, flacvorbis.FIELD_TRACKNUMBER, strconv.Itoa(md.trackNumber))
	}
	if md.isrc != "" {
		setVorbis(comments, flacvorbis.FIELD_ISRC, md.isrc)
	}

	block := comments.Marshal()
	if commentIndex >= 0 {
		f.Meta[commentIndex] = &block
	} else {
		f.Meta = append(f.Meta, &block)
	}

	if md.picture != nil {
		pic, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "cover art", md.picture, "image/jpeg")
		if err != nil {
			return fmt.Errorf("failed to build FLAC picture: %w", err)
		}
		kept := f.Meta[:0]
		for _, meta := range f.Meta {
			if meta.Type != goflac.Picture {
				kept = append(kept, meta)
			}
		}
		picBlock := pic.Marshal()
		f.Meta = append(kept, &picBlock)
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("failed to save FLAC file: %w", err)
	}
	return nil
}

// setVorbis replaces every existing value of field.
func setVorbis(c *flacvorbis.MetaDataBlockVorbisComment, field, value string) {
	prefix := strings.ToUpper(field) + "="
	kept := c.Comments[:0]
	for _, cm := range c.Comments {
		if !strings.HasPrefix(strings.ToUpper(cm), prefix) {
			kept = append(kept, cm)
		}
	}
	c.Comments = kept
	if value != "" {
		c.Add(field, value)
	}
}

func writeMP4(path string, md metadata) error {
	mp4, err := mp4tag.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open M4A file for tagging: %w", err)
	}
	defer mp4.Close()

	tags := &mp4tag.MP4Tags{
		Title:       md.title,
		Album:       md.album,
		Artist:      md.artist,
		AlbumArtist: md.artist,
		TrackNumber: int16(md.trackNumber),
	}
	if md.year > 0 {
		tags.Date = strconv.Itoa(md.year)
	}
	if md.isrc != "" {
		tags.Custom = map[string]string{"ISRC": md.isrc}
	}
	if md.picture != nil {
		tags.Pictures = []*mp4tag.MP4Picture{{Format: mp4tag.ImageTypeJPEG, Data: md.picture}}
	}

	if err := mp4.Write(tags, []string{}); err != nil {
		return fmt.Errorf("failed to save M4A tags: %w", err)
	}
	return nil
}
