// Package fuzzy normalizes titles and artist names so that catalog metadata
// written in different house styles can be compared for equality.
package fuzzy

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	featRegex       = regexp.MustCompile(`(?i)\s*[\(\[]\s*(?:feat\.?|ft\.?|featuring)\s+[^\)\]]*[\)\]]`)
	leadingZeros    = regexp.MustCompile(`^0+`)
)

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// NormalizeTitle folds case, strips accents and replaces punctuation such as
// hyphens and parentheses with single spaces, so "Song (Live)" and
// "Song - Live" compare equal. It is idempotent.
func (n *Normalizer) NormalizeTitle(title string) string {
	return n.basicNormalize(title)
}

// TitlesEqual compares two titles after normalization. Empty titles never match.
func (n *Normalizer) TitlesEqual(a, b string) bool {
	na, nb := n.NormalizeTitle(a), n.NormalizeTitle(b)
	return na != "" && na == nb
}

// NormalizeArtist normalizes like NormalizeTitle and spells "&" as "and", so
// "Simon & Garfunkel" and "Simon and Garfunkel" compare equal.
func (n *Normalizer) NormalizeArtist(artist string) string {
	return n.basicNormalize(strings.ReplaceAll(artist, "&", " and "))
}

// SearchTerm prepares a title for a catalog search query. Featured-artist
// suffixes are dropped since catalogs disagree on where they belong.
func (n *Normalizer) SearchTerm(title string) string {
	title = featRegex.ReplaceAllString(title, " ")
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(title, " "))
}

func (n *Normalizer) basicNormalize(text string) string {
	text = norm.NFKD.String(text)

	var result strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			result.WriteRune(r)
		}
	}
	text = strings.ToLower(result.String())

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// BarcodesEqual compares UPC/EAN codes, treating a 12-digit UPC-A and its
// 13-digit EAN form (leading zero) as the same code.
func BarcodesEqual(a, b string) bool {
	a = leadingZeros.ReplaceAllString(strings.TrimSpace(a), "")
	b = leadingZeros.ReplaceAllString(strings.TrimSpace(b), "")
	return a != "" && a == b
}

// WithinTolerance reports whether two known durations differ by at most tolerance.
// Zero durations are unknown and never match.
func WithinTolerance(d1, d2, tolerance time.Duration) bool {
	if d1 <= 0 || d2 <= 0 {
		return false
	}
	diff := d1 - d2
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
