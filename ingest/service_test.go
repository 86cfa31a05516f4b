package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/notepress/notepress/graph"
	"github.com/notepress/notepress/internal/identity"
	"github.com/notepress/notepress/pkg/interfaces"
)

type fakeNodeStore struct {
	replaced []*graph.Node
	depths   map[uuid.UUID]int
}

func (f *fakeNodeStore) ReplaceWorkspace(_ context.Context, _ uuid.UUID, nodes []*graph.Node) error {
	f.replaced = nodes
	return nil
}

func (f *fakeNodeStore) UpdateDepths(_ context.Context, _ uuid.UUID, depths map[uuid.UUID]int) error {
	f.depths = depths
	return nil
}

func (f *fakeNodeStore) NodesByIDs(context.Context, uuid.UUID, []uuid.UUID) ([]*graph.Node, error) {
	return nil, nil
}

func (f *fakeNodeStore) ChildrenOf(context.Context, uuid.UUID, []uuid.UUID) ([]*graph.Node, error) {
	return nil, nil
}

func (f *fakeNodeStore) PageByName(context.Context, uuid.UUID, string) (*graph.Node, error) {
	return nil, &graph.NotFoundError{Resource: "page"}
}

func (f *fakeNodeStore) ListPages(context.Context, uuid.UUID) ([]*graph.Node, error) {
	return nil, nil
}

// fakeRenderer writes one HTML document per configured page name.
type fakeRenderer struct {
	docs map[string]string
	err  error
}

func (f *fakeRenderer) Run(_ context.Context, _, outputDir string) error {
	if f.err != nil {
		return f.err
	}
	for name, html := range f.docs {
		if err := os.WriteFile(filepath.Join(outputDir, name+".html"), []byte(html), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type fakeCache struct {
	entries map[interfaces.BlockCacheKey]string
}

func (f *fakeCache) GetMany(context.Context, []interfaces.BlockCacheKey) (map[interfaces.BlockCacheKey]string, error) {
	return nil, nil
}

func (f *fakeCache) SetMany(_ context.Context, entries map[interfaces.BlockCacheKey]string) error {
	f.entries = entries
	return nil
}

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for path, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRunAssemblesGraph(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"pages/Test Page.md": "tags:: demo\n- first block\n\t- nested block\n- second block\n",
	})

	store := &fakeNodeStore{}
	cache := &fakeCache{}
	svc, err := New(Config{
		Nodes:    store,
		Renderer: &fakeRenderer{docs: map[string]string{"test_page": "<html><head><title>Test Page</title></head></html>"}},
		Cache:    cache,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	workspaceID := uuid.New()
	result, err := svc.Run(context.Background(), workspaceID, repo, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Pages != 1 || result.Blocks != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}

	if len(store.replaced) != 4 {
		t.Fatalf("expected 4 nodes persisted, got %d", len(store.replaced))
	}

	page := store.replaced[0]
	if !page.IsPage() {
		t.Fatal("first node must be the page")
	}
	if page.ID != identity.PageUUID(workspaceID, "Test Page") {
		t.Fatal("page id not deterministic")
	}
	if page.Title != "Test Page" {
		t.Fatalf("unexpected title %q", page.Title)
	}
	if len(page.Metadata.Tags) != 1 || page.Metadata.Tags[0] != "demo" {
		t.Fatalf("unexpected tags %v", page.Metadata.Tags)
	}
	if page.HTML != nil {
		t.Fatal("page node must carry no html")
	}

	byID := map[uuid.UUID]*graph.Node{}
	for _, node := range store.replaced {
		byID[node.ID] = node
	}
	for _, node := range store.replaced[1:] {
		if node.ParentID == nil {
			t.Fatalf("block %s has no parent", node.ID)
		}
		if _, ok := byID[*node.ParentID]; !ok {
			t.Fatalf("block %s parent does not resolve", node.ID)
		}
		if node.HTML == nil || *node.HTML == "" {
			t.Fatalf("block %s has no html", node.ID)
		}
	}

	// first block depth 0, nested depth 1.
	first := store.replaced[1]
	nested := store.replaced[2]
	if store.depths[first.ID] != 0 {
		t.Fatalf("expected top-level block depth 0, got %d", store.depths[first.ID])
	}
	if store.depths[nested.ID] != 1 {
		t.Fatalf("expected nested block depth 1, got %d", store.depths[nested.ID])
	}
	if *nested.ParentID != first.ID {
		t.Fatal("nested block must parent to first block")
	}

	if len(cache.entries) != 3 {
		t.Fatalf("expected 3 cached block fragments, got %d", len(cache.entries))
	}
}

func TestRunRendererFailureAborts(t *testing.T) {
	repo := writeRepo(t, map[string]string{"pages/A.md": "- block\n"})

	store := &fakeNodeStore{}
	svc, err := New(Config{Nodes: store, Renderer: &fakeRenderer{err: errors.New("boom")}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := svc.Run(context.Background(), uuid.New(), repo, nil); err == nil {
		t.Fatal("expected renderer failure to abort the run")
	}
	if store.replaced != nil {
		t.Fatal("no nodes must be persisted after renderer failure")
	}
}

func TestRunMatchMissSkipsPage(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"pages/Kept.md":    "- kept block\n",
		"pages/Dropped.md": "- dropped block\n",
	})

	var lines []string
	store := &fakeNodeStore{}
	svc, err := New(Config{
		Nodes:    store,
		Renderer: &fakeRenderer{docs: map[string]string{"kept": "<html></html>"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := svc.Run(context.Background(), uuid.New(), repo, func(format string, args ...any) {
		lines = append(lines, format)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Pages != 1 {
		t.Fatalf("expected 1 ingested page, got %d", result.Pages)
	}
	if _, ok := result.Skipped["Dropped"]; !ok {
		t.Fatalf("expected Dropped to be skipped, got %v", result.Skipped)
	}
	for _, node := range store.replaced {
		if node.PageName == "Dropped" {
			t.Fatal("skipped page must not be persisted")
		}
	}

	var skipLogged bool
	for _, line := range lines {
		if strings.Contains(line, "skipping page") {
			skipLogged = true
		}
	}
	if !skipLogged {
		t.Fatal("skip must appear in the progress log")
	}
}

func TestRunPropertyOnlyPage(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"pages/Meta.md": "title:: Custom Title\ntype:: index\n",
	})

	store := &fakeNodeStore{}
	svc, err := New(Config{
		Nodes:    store,
		Renderer: &fakeRenderer{docs: map[string]string{"meta": "<html></html>"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := svc.Run(context.Background(), uuid.New(), repo, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Pages != 1 || result.Blocks != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(store.replaced) != 1 {
		t.Fatalf("expected only the page node, got %d", len(store.replaced))
	}
	page := store.replaced[0]
	if page.Title != "Custom Title" {
		t.Fatalf("title property must win when the document has none, got %q", page.Title)
	}
	if page.Metadata.Properties["type"] != "index" {
		t.Fatalf("page properties must persist, got %v", page.Metadata.Properties)
	}
}

func TestRunExplicitBlockIDsAreStable(t *testing.T) {
	blockID := "11111111-2222-4333-8444-555555555555"
	repo := writeRepo(t, map[string]string{
		"pages/Ids.md": "- anchored block\n  id:: " + blockID + "\n",
	})

	store := &fakeNodeStore{}
	svc, err := New(Config{
		Nodes:    store,
		Renderer: &fakeRenderer{docs: map[string]string{"ids": "<html></html>"}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := svc.Run(context.Background(), uuid.New(), repo, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.replaced) != 2 {
		t.Fatalf("expected page + block, got %d nodes", len(store.replaced))
	}
	if store.replaced[1].ID != uuid.MustParse(blockID) {
		t.Fatalf("explicit uuid id must be used directly, got %s", store.replaced[1].ID)
	}
}

func TestPageNameFromFile(t *testing.T) {
	cases := map[string]string{
		"Test Page.md":    "Test Page",
		"a%2Fb.md":        "a/b",
		"changelog_07.md": "changelog_07",
		"What%3F.md":      "What?",
	}
	for file, want := range cases {
		if got := pageNameFromFile(file); got != want {
			t.Errorf("pageNameFromFile(%q) = %q, want %q", file, got, want)
		}
	}
}
