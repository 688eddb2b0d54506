package tenant

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRun  = regexp.MustCompile(`\s+`)
	disallowedChar = regexp.MustCompile(`[^a-z0-9_-]`)
	hyphenRun      = regexp.MustCompile(`-{2,}`)
)

// Slugify は店舗名から公開メニューURL用のスラッグを生成する。
// 例: "Café  Rouge!" → "cafe-rouge"
func Slugify(displayName string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		displayName,
	)
	if err != nil {
		folded = displayName
	}

	s := strings.ToLower(strings.TrimSpace(folded))
	s = whitespaceRun.ReplaceAllString(s, "-")
	s = disallowedChar.ReplaceAllString(s, "")
	s = hyphenRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
