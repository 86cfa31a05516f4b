package render

import (
	"net/url"
	"regexp"
	"strings"
)

// Separator is the folding character normalized page names use between words.
const Separator = "_"

var (
	specialRe   = regexp.MustCompile("[?#%:;@&=+$,!'()*\\[\\]{}<>\"|\\\\/^~`]")
	foldRe      = regexp.MustCompile(`[\s-]+`)
	separatorRe = regexp.MustCompile(regexp.QuoteMeta(Separator) + "+")
)

// NormalizeName maps a page name onto the file name the external renderer
// uses for its output document: URL-decode, strip special characters, fold
// whitespace and hyphen runs into a single separator, lowercase.
func NormalizeName(name string) string {
	if decoded, err := url.QueryUnescape(name); err == nil {
		name = decoded
	}
	name = specialRe.ReplaceAllString(name, "")
	name = foldRe.ReplaceAllString(strings.TrimSpace(name), Separator)
	name = separatorRe.ReplaceAllString(name, Separator)
	return strings.ToLower(name)
}

// StripSeparators removes every folding separator, used for the fallback
// match when exact normalized names disagree about word boundaries.
func StripSeparators(normalized string) string {
	return strings.ReplaceAll(normalized, Separator, "")
}
