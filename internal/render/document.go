package render

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Document is one rendered HTML page produced by the external tool, keyed by
// the normalized file name it was written under.
type Document struct {
	// Name is the output file base name without extension, already in the
	// renderer's normalized form.
	Name string
	Path string
	// Title, Tags, and Properties are extracted from the document head and
	// merged into the page node during ingestion.
	Title      string
	Tags       []string
	Properties map[string]string
}

var (
	titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	h1Re    = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	metaRe  = regexp.MustCompile(`(?is)<meta\s+name="([^"]+)"\s+content="([^"]*)"[^>]*>`)
	stripRe = regexp.MustCompile(`(?s)<[^>]*>`)
)

// LoadDocuments scans an output directory for rendered HTML documents. The
// renderer writes one file per page; anything that is not an HTML file is
// ignored.
func LoadDocuments(dir string) ([]*Document, error) {
	var docs []*Document

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".html" && ext != ".htm" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("render: read document %s: %w", path, err)
		}

		doc := parseDocument(path, string(data))
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("render: scan output dir %s: %w", dir, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func parseDocument(path, html string) *Document {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	doc := &Document{
		Name:       name,
		Path:       path,
		Properties: map[string]string{},
	}

	if m := titleRe.FindStringSubmatch(html); m != nil {
		doc.Title = cleanText(m[1])
	} else if m := h1Re.FindStringSubmatch(html); m != nil {
		doc.Title = cleanText(m[1])
	}

	for _, m := range metaRe.FindAllStringSubmatch(html, -1) {
		key := strings.ToLower(strings.TrimSpace(m[1]))
		value := strings.TrimSpace(m[2])
		switch key {
		case "tags", "keywords":
			for _, tag := range strings.Split(value, ",") {
				if trimmed := strings.TrimSpace(tag); trimmed != "" {
					doc.Tags = append(doc.Tags, trimmed)
				}
			}
		default:
			if strings.HasPrefix(key, "x-") || strings.HasPrefix(key, "page-") {
				doc.Properties[strings.TrimPrefix(strings.TrimPrefix(key, "x-"), "page-")] = value
			}
		}
	}

	return doc
}

func cleanText(s string) string {
	return strings.TrimSpace(stripRe.ReplaceAllString(s, ""))
}
