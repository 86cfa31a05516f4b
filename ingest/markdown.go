package ingest

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// newMarkdown builds the goldmark engine used for block content. Raw HTML is
// allowed through: block text comes from the workspace owner's own repository.
func newMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Linkify,
			extension.TaskList,
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
		),
	)
}

// renderBlock converts one block's markdown content to an HTML fragment. A
// single-paragraph block is unwrapped so fragments compose inline in the
// rendered outline.
func renderBlock(md goldmark.Markdown, content string) (string, error) {
	var buf strings.Builder
	if err := md.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("ingest: render block markdown: %w", err)
	}
	out := strings.TrimSpace(buf.String())

	if strings.HasPrefix(out, "<p>") && strings.HasSuffix(out, "</p>") {
		inner := out[len("<p>") : len(out)-len("</p>")]
		if !strings.Contains(inner, "<p>") {
			out = inner
		}
	}
	return out, nil
}
