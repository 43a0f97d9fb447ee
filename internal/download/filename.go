package download

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/desertthunder/songvert/internal/models"
	"github.com/gosimple/slug"
)

const maxNameRunes = 180

var illegal = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "'", "<", "_", ">", "_", "|", "_",
)

// FileName builds "<n>. <artist> - <name>.<ext>" with characters that are unsafe on common
// filesystems replaced. Names without a single letter or digit fall back to a slug.
func FileName(position int, track *models.Track, ext string) string {
	base := track.Name
	if a := track.PrimaryArtist(); a != "" {
		base = a + " - " + track.Name
	}

	name := legalize(base)
	if strings.IndexFunc(name, isWordRune) < 0 {
		name = slug.Make(base)
	}
	if name == "" {
		name = "track"
	}
	return fmt.Sprintf("%d. %s.%s", position, name, strings.TrimPrefix(ext, "."))
}

func legalize(s string) string {
	s = illegal.Replace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxNameRunes {
		s = string(r[:maxNameRunes])
	}
	return strings.Trim(s, " .")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
