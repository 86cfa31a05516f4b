package render

import "strings"

// Match pairs a parsed page name with its rendered document.
type Match struct {
	PageName string
	Document *Document
}

// MatchResult reports matched pages and the pages that had to be skipped.
type MatchResult struct {
	Matches []Match
	// Skipped maps page name to the reason no document could be matched.
	Skipped map[string]string
}

// MatchDocuments resolves each parsed page to its rendered document. The
// primary rule is an exact normalized-name match. When that fails and the
// normalized name contains the folding separator, a fallback comparison with
// separators removed is attempted; the fallback is only accepted when it
// resolves to exactly one candidate, since separator removal can collapse
// distinct names.
func MatchDocuments(pageNames []string, docs []*Document) *MatchResult {
	result := &MatchResult{Skipped: map[string]string{}}

	exact := make(map[string][]*Document, len(docs))
	stripped := make(map[string][]*Document, len(docs))
	for _, doc := range docs {
		normalized := NormalizeName(doc.Name)
		exact[normalized] = append(exact[normalized], doc)
		stripped[StripSeparators(normalized)] = append(stripped[StripSeparators(normalized)], doc)
	}

	for _, page := range pageNames {
		normalized := NormalizeName(page)

		if candidates := exact[normalized]; len(candidates) == 1 {
			result.Matches = append(result.Matches, Match{PageName: page, Document: candidates[0]})
			continue
		} else if len(candidates) > 1 {
			result.Skipped[page] = "multiple rendered documents share the normalized name " + normalized
			continue
		}

		if strings.Contains(normalized, Separator) {
			key := StripSeparators(normalized)
			switch candidates := stripped[key]; len(candidates) {
			case 1:
				result.Matches = append(result.Matches, Match{PageName: page, Document: candidates[0]})
				continue
			case 0:
				// fall through to skip
			default:
				result.Skipped[page] = "separator-stripped fallback is ambiguous for " + key
				continue
			}
		}

		result.Skipped[page] = "no rendered document matches " + normalized
	}

	return result
}
