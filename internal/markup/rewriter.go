// Package markup rewrites note-taking inline syntax inside rendered HTML into
// link and semantic markup: page references, block references, task markers,
// priority cookies, and hashtags. The rewriter only touches text nodes and is
// best effort by design; malformed occurrences pass through as literal text
// and no input ever produces an error.
package markup

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/goliatone/go-slug"
	"github.com/google/uuid"
)

// Rewriter rewrites inline syntax for one workspace.
type Rewriter struct {
	workspaceID uuid.UUID
	pageName    string
	links       *Links
}

// New builds a Rewriter scoped to a workspace and the page being rendered,
// resolving link targets against the default route layout.
func New(workspaceID uuid.UUID, pageName string) *Rewriter {
	return NewWithLinks(workspaceID, pageName, nil)
}

// NewWithLinks builds a Rewriter that resolves link targets through the
// supplied resolver. A nil resolver falls back to the default routes.
func NewWithLinks(workspaceID uuid.UUID, pageName string, links *Links) *Rewriter {
	if links == nil {
		links = NewLinks(nil, "")
	}
	return &Rewriter{workspaceID: workspaceID, pageName: pageName, links: links}
}

var (
	pageRefRe  = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)
	blockRefRe = regexp.MustCompile(`\(\(([0-9a-f-]{36})\)\)`)
	taskRe     = regexp.MustCompile(`\b(TODO|DOING|DONE|LATER|NOW)\b`)
	priorityRe = regexp.MustCompile(`\[#([ABC])\]`)
	hashtagRe  = regexp.MustCompile(`(^|[\s>])#([\p{L}\p{N}][\p{L}\p{N}_-]*)`)
)

// skip tags whose text content must never be rewritten: existing links would
// double-rewrite and code spans carry literal text.
var skipTags = map[string]bool{"a": true, "code": true, "pre": true}

// Rewrite transforms the supplied HTML fragment. Markup emitted by the
// rewriter itself is never rescanned, so generated link targets cannot be
// rewritten a second time.
func (r *Rewriter) Rewrite(input string) string {
	var out strings.Builder
	out.Grow(len(input))

	depth := 0
	rest := input
	for rest != "" {
		lt := strings.IndexByte(rest, '<')
		if lt == -1 {
			r.writeText(&out, rest, depth)
			break
		}

		if lt > 0 {
			r.writeText(&out, rest[:lt], depth)
			rest = rest[lt:]
		}

		gt := strings.IndexByte(rest, '>')
		if gt == -1 {
			// Dangling bracket: emit literally, nothing left to scan.
			out.WriteString(rest)
			break
		}

		tag := rest[:gt+1]
		out.WriteString(tag)
		name, closing := tagName(tag)
		if skipTags[name] && !strings.HasSuffix(tag, "/>") {
			if closing {
				if depth > 0 {
					depth--
				}
			} else {
				depth++
			}
		}
		rest = rest[gt+1:]
	}

	return out.String()
}

// writeText rewrites one text node. Inside skip tags the text is copied
// verbatim.
func (r *Rewriter) writeText(out *strings.Builder, text string, depth int) {
	if depth > 0 {
		out.WriteString(text)
		return
	}

	for text != "" {
		loc, kind := earliestMatch(text)
		if loc == nil {
			out.WriteString(text)
			return
		}
		out.WriteString(text[:loc[0]])
		match := text[loc[0]:loc[1]]
		r.emit(out, kind, match)
		text = text[loc[1]:]
	}
}

type matchKind int

const (
	matchPageRef matchKind = iota
	matchBlockRef
	matchTask
	matchPriority
	matchHashtag
)

// earliestMatch finds the leftmost occurrence among all inline patterns. Ties
// favor the earlier pattern in declaration order, which keeps `[[...]]` ahead
// of hashtags that could match inside it.
func earliestMatch(text string) ([]int, matchKind) {
	patterns := []struct {
		re   *regexp.Regexp
		kind matchKind
	}{
		{pageRefRe, matchPageRef},
		{blockRefRe, matchBlockRef},
		{taskRe, matchTask},
		{priorityRe, matchPriority},
		{hashtagRe, matchHashtag},
	}

	var best []int
	kind := matchPageRef
	for _, p := range patterns {
		loc := p.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if best == nil || loc[0] < best[0] {
			best = loc
			kind = p.kind
		}
	}
	return best, kind
}

func (r *Rewriter) emit(out *strings.Builder, kind matchKind, match string) {
	switch kind {
	case matchPageRef:
		name := strings.TrimSpace(match[2 : len(match)-2])
		if name == "" {
			out.WriteString(match)
			return
		}
		out.WriteString(fmt.Sprintf(
			`<a class="page-ref" href="%s" data-page-name="%s">%s</a>`,
			html.EscapeString(r.pagePath(name)),
			html.EscapeString(name),
			html.EscapeString(name),
		))
	case matchBlockRef:
		id := match[2 : len(match)-2]
		if _, err := uuid.Parse(id); err != nil {
			out.WriteString(match)
			return
		}
		out.WriteString(fmt.Sprintf(
			`<a class="block-ref" href="#%s" data-block-id="%s">%s</a>`,
			id, id, html.EscapeString(match),
		))
	case matchTask:
		checked := ""
		if match == "DONE" {
			checked = " checked"
		}
		out.WriteString(fmt.Sprintf(
			`<input type="checkbox" disabled%s><span class="task-marker %s">%s</span>`,
			checked, strings.ToLower(match), match,
		))
	case matchPriority:
		level := match[2 : len(match)-1]
		out.WriteString(fmt.Sprintf(
			`<span class="priority priority-%s" data-priority="%s">#%s</span>`,
			strings.ToLower(level), level, level,
		))
	case matchHashtag:
		// The leading capture keeps the whitespace/boundary byte literal.
		boundary := ""
		tag := match
		if tag[0] != '#' {
			boundary = tag[:1]
			tag = tag[1:]
		}
		tag = strings.TrimPrefix(tag, "#")
		out.WriteString(boundary)
		out.WriteString(fmt.Sprintf(
			`<a class="tag" href="%s" data-tag="%s">#%s</a>`,
			html.EscapeString(r.tagPath(tag)),
			html.EscapeString(tag),
			html.EscapeString(tag),
		))
	}
}

// pagePath and tagPath resolve through the route layout. Rewrite never
// errors, so a misconfigured custom layout degrades to the default path shape
// instead of emitting dead links.
func (r *Rewriter) pagePath(name string) string {
	normalized := slugOf(name)
	target, err := r.links.PageURL(r.workspaceID, normalized)
	if err != nil {
		return "/" + r.workspaceID.String() + "/" + normalized
	}
	return target
}

func (r *Rewriter) tagPath(tag string) string {
	target, err := r.links.TagURL(r.workspaceID, tag)
	if err != nil {
		return "/" + r.workspaceID.String() + "/tags/" + strings.ToLower(tag)
	}
	return target
}

func slugOf(name string) string {
	normalized, err := slug.Normalize(name)
	if err != nil || normalized == "" {
		normalized = strings.ToLower(strings.Join(strings.Fields(name), "-"))
	}
	return normalized
}

// tagName extracts the element name from a raw tag and whether it closes.
func tagName(tag string) (string, bool) {
	inner := strings.TrimSuffix(strings.TrimPrefix(tag, "<"), ">")
	closing := strings.HasPrefix(inner, "/")
	inner = strings.TrimPrefix(inner, "/")
	for i, c := range inner {
		if c == ' ' || c == '\t' || c == '\n' || c == '/' {
			inner = inner[:i]
			break
		}
	}
	return strings.ToLower(inner), closing
}
