package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Slugify derives the canonical key for a tag name. Letters and digits are
// kept (diacritics are stripped), whitespace and hyphens separate words,
// and every other rune is dropped. Words are lowercased and joined with
// single hyphens.
//
//	Slugify("Rock & Roll") == "rock-roll"
//	Slugify("70's Music")  == "70s-music"
//	Slugify("R&B / Soul")  == "rb-soul"
func Slugify(name string) string {
	var sb strings.Builder
	pending := false

	for _, r := range norm.NFKD.String(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pending && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			pending = false
			sb.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r) || r == '-':
			pending = true
		}
	}

	return sb.String()
}
