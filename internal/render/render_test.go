package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Project Notes", "project_notes"},
		{"Changelog 07-09", "changelog_07_09"},
		{"What's New?", "whats_new"},
		{"a%20b", "a_b"},
		{"Mixed  --  Runs", "mixed_runs"},
		{"UPPER", "upper"},
	}

	for _, tc := range cases {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMatchDocumentsExact(t *testing.T) {
	docs := []*Document{{Name: "project_notes"}, {Name: "home"}}

	result := MatchDocuments([]string{"Project Notes", "Home"}, docs)

	if len(result.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %d (skipped %#v)", len(result.Matches), result.Skipped)
	}
	if result.Matches[0].Document.Name != "project_notes" {
		t.Fatalf("wrong document matched: %q", result.Matches[0].Document.Name)
	}
}

func TestMatchDocumentsFallbackUnambiguous(t *testing.T) {
	docs := []*Document{{Name: "changelog0709"}}

	result := MatchDocuments([]string{"Changelog 07-09"}, docs)

	if len(result.Matches) != 1 {
		t.Fatalf("expected fallback match, skipped %#v", result.Skipped)
	}
	if result.Matches[0].Document.Name != "changelog0709" {
		t.Fatalf("wrong fallback document: %q", result.Matches[0].Document.Name)
	}
}

func TestMatchDocumentsFallbackAmbiguousSkips(t *testing.T) {
	docs := []*Document{{Name: "changelog0709"}, {Name: "change_log0709"}}

	result := MatchDocuments([]string{"Changelog 07-09"}, docs)

	if len(result.Matches) != 0 {
		t.Fatalf("ambiguous fallback must skip, got %#v", result.Matches)
	}
	if _, ok := result.Skipped["Changelog 07-09"]; !ok {
		t.Fatalf("expected skip reason recorded, got %#v", result.Skipped)
	}
}

func TestMatchDocumentsMissSkips(t *testing.T) {
	result := MatchDocuments([]string{"Orphan"}, nil)

	if len(result.Matches) != 0 {
		t.Fatalf("expected no matches, got %#v", result.Matches)
	}
	if reason := result.Skipped["Orphan"]; !strings.Contains(reason, "no rendered document") {
		t.Fatalf("expected miss reason, got %q", reason)
	}
}

func TestLoadDocumentsExtractsMetadata(t *testing.T) {
	dir := t.TempDir()
	html := `<html><head><title>Project Notes</title>` +
		`<meta name="tags" content="work, notes">` +
		`<meta name="x-icon" content="book"></head><body></body></html>`
	if err := os.WriteFile(filepath.Join(dir, "project_notes.html"), []byte(html), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignore.css"), []byte("body{}"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	docs, err := LoadDocuments(dir)
	if err != nil {
		t.Fatalf("LoadDocuments: %v", err)
	}

	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	doc := docs[0]
	if doc.Name != "project_notes" {
		t.Fatalf("unexpected name %q", doc.Name)
	}
	if doc.Title != "Project Notes" {
		t.Fatalf("unexpected title %q", doc.Title)
	}
	if len(doc.Tags) != 2 || doc.Tags[0] != "work" {
		t.Fatalf("unexpected tags %#v", doc.Tags)
	}
	if doc.Properties["icon"] != "book" {
		t.Fatalf("unexpected properties %#v", doc.Properties)
	}
}

func TestErrorLineDetection(t *testing.T) {
	if _, bad := errorLine("exported 10 pages\nall good"); bad {
		t.Fatal("clean diagnostics flagged as error")
	}
	line, bad := errorLine("exporting\nERROR: template not found\n")
	if !bad {
		t.Fatal("expected error line detected")
	}
	if !strings.Contains(line, "template not found") {
		t.Fatalf("unexpected error line %q", line)
	}
}

func TestBoundedBufferCapsOutput(t *testing.T) {
	buf := newBoundedBuffer(8)
	n, err := buf.Write([]byte("0123456789abcdef"))
	if err != nil || n != 16 {
		t.Fatalf("write: n=%d err=%v", n, err)
	}
	if got := buf.String(); got != "01234567" {
		t.Fatalf("expected capped output, got %q", got)
	}
}
