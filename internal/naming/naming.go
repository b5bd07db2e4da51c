package naming

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	badChars    = regexp.MustCompile(`[\\/*?:"<>|,!']`)
	multiDots   = regexp.MustCompile(`\.+`)
	edgeNonWord = regexp.MustCompile(`^[\W.]+|[\W.]+$`)
)

// Sanitize turns a display title into a dot-separated, filesystem-safe
// name: "Mr. Writer's Return!" -> "Mr.Writers.Return".
func Sanitize(s string) string {
	s = badChars.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, " ", ".")
	s = multiDots.ReplaceAllString(s, ".")
	s = edgeNonWord.ReplaceAllString(s, "")
	return s
}

// Values fills the template placeholders for one output name.
type Values struct {
	Title        string
	Year         string
	Season       int
	Episode      int
	EpisodeTitle string
	Quality      string
	Tag          string
	AudioLang    string
}

// Render substitutes {placeholder} markers in tpl. Season and episode are
// zero-padded to two digits. Unknown markers are left untouched.
func Render(tpl string, v Values) string {
	audio := v.AudioLang
	if audio == "" {
		audio = "unk"
	}
	r := strings.NewReplacer(
		"{title}", v.Title,
		"{year}", v.Year,
		"{season}", fmt.Sprintf("%02d", v.Season),
		"{episode}", fmt.Sprintf("%02d", v.Episode),
		"{episode_title}", v.EpisodeTitle,
		"{quality}", v.Quality,
		"{tag}", v.Tag,
		"{lang_aud}", audio,
	)
	return r.Replace(tpl)
}

// QualityLabel reduces a rendition resolution to the usual height label:
// "1920x1080" -> "1080p". Anything unparseable passes through unchanged.
func QualityLabel(resolution string) string {
	if idx := strings.Index(resolution, "x"); idx >= 0 {
		return resolution[idx+1:] + "p"
	}
	return resolution
}
