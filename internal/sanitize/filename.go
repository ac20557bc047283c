// Package sanitize turns remote titles into safe, bounded local filenames.
package sanitize

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// MaxLength is the maximum length in bytes of a sanitized filename,
	// extension included.
	MaxLength = 255
	// Placeholder replaces names that sanitize to nothing.
	Placeholder = "untitled"
	// Separator replaces whitespace runs and characters with no ASCII form.
	Separator = '_'

	maxExtLen = 10
	illegal   = `<>:"/\|?*`
)

// Overrides applied before the generic transliteration table.
var transliterations = map[rune]string{
	'ß': "ss", 'ẞ': "SS",
	'æ': "ae", 'Æ': "AE",
	'œ': "oe", 'Œ': "OE",
	'ø': "o", 'Ø': "O",
	'ł': "l", 'Ł': "L",
	'đ': "d", 'Đ': "D",
	'ð': "d", 'Ð': "D",
	'þ': "th", 'Þ': "TH",
	'ı': "i", 'ħ': "h", 'Ħ': "H",
	'‘': "'", '’': "'", '“': "", '”': "",
	'–': "-", '—': "-",
}

var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Filename normalizes raw into an ASCII filename: diacritics are stripped,
// other scripts are transliterated to their ASCII spelling, the characters <>:"/\|?* and control characters are
// removed, whitespace and underscore runs collapse into a single '_', and
// leading or trailing separators and dots are trimmed. The result is at most
// MaxLength bytes; truncation only shortens the name and never the final
// extension. A name that sanitizes to nothing becomes Placeholder, keeping
// its extension if it had one.
//
// Filename is pure and idempotent.
func Filename(raw string) string {
	name, ext := splitExt(collapse(transliterate(raw)))
	name = strings.TrimLeft(name, "._")
	if ext == "" {
		name = strings.TrimRight(name, "._")
	}
	if len(name)+len(ext) > MaxLength {
		name = strings.TrimRight(name[:MaxLength-len(ext)], "._")
	}
	if name == "" {
		name = Placeholder
	}
	return name + ext
}

// Stem returns Filename(raw) without its extension.
func Stem(raw string) string {
	name, _ := splitExt(Filename(raw))
	return name
}

// WithExtension sanitizes the stem of raw and gives it the extension ext
// (without dot), keeping the combined name within MaxLength.
func WithExtension(raw, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return Stem(raw)
	}
	return Filename(Stem(raw) + "." + ext)
}

func transliterate(s string) string {
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
			continue
		}
		if repl, ok := transliterations[r]; ok {
			b.WriteString(repl)
			continue
		}
		if repl := unidecode.Unidecode(string(r)); repl != "" {
			b.WriteString(repl)
			continue
		}
		// No ASCII form: keep the word boundary.
		b.WriteRune(' ')
	}
	return b.String()
}

func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range s {
		switch {
		case r == Separator || unicode.IsSpace(r):
			pending = true
		case unicode.IsControl(r) || strings.ContainsRune(illegal, r):
		default:
			if pending && b.Len() > 0 {
				b.WriteRune(Separator)
			}
			pending = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitExt splits a trailing ".ext" made of 1 to maxExtLen ASCII letters or
// digits. Anything else is treated as part of the name.
func splitExt(s string) (string, string) {
	i := strings.LastIndexByte(s, '.')
	if i < 0 || i == len(s)-1 || len(s)-i-1 > maxExtLen {
		return s, ""
	}
	for _, r := range s[i+1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return s, ""
		}
	}
	return s[:i], s[i:]
}
