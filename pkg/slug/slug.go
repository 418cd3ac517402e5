// Package slug builds URL-friendly identifiers from display names.
package slug

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// letters that do not decompose into a base letter plus marks.
var folds = strings.NewReplacer(
	"ı", "i",
	"ß", "ss",
	"æ", "ae",
	"ø", "o",
	"đ", "d",
	"ł", "l",
)

// Generate creates a URL-friendly slug from the given name. Accented
// letters are folded to ASCII.
//
// Examples:
//   - "Kadın Giyim" → "kadin-giyim"
//   - "Çocuk Ürünleri" → "cocuk-urunleri"
//   - "Straße & Café" → "strasse-cafe"
func Generate(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}

	s := folds.Replace(strings.ToLower(folded))
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// WithID prefixes the slug with id, so links stay unique when two names
// slug the same way: "42-desk-lamp".
func WithID(id int64, name string) string {
	s := strconv.FormatInt(id, 10)
	if g := Generate(name); g != "" {
		s += "-" + g
	}
	return s
}
