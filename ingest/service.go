// Package ingest implements the graph assembler: it merges parsed outline
// forests with rendered documents and persists the resulting node graph for a
// workspace in one full-replace pass.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-slug"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"github.com/notepress/notepress/graph"
	"github.com/notepress/notepress/internal/identity"
	"github.com/notepress/notepress/internal/markup"
	"github.com/notepress/notepress/internal/outline"
	"github.com/notepress/notepress/internal/render"
	"github.com/notepress/notepress/pkg/interfaces"
)

var (
	ErrNodesRequired    = errors.New("ingest: node store is required")
	ErrRendererRequired = errors.New("ingest: renderer is required")
)

// Renderer produces one HTML document per page from a content directory.
// Satisfied by render.Runner.
type Renderer interface {
	Run(ctx context.Context, inputDir, outputDir string) error
}

// ProgressFunc receives human-readable progress lines during a run. The sync
// orchestrator feeds these into the deployment build log.
type ProgressFunc func(format string, args ...any)

// Config carries the assembler dependencies. Blobs and Cache are optional
// collaborators; when absent asset rewriting and cache warming are skipped.
// Links controls the URL layout of rewritten references and defaults to the
// markup package's route layout.
type Config struct {
	Nodes    graph.NodeStore
	Renderer Renderer
	Blobs    interfaces.BlobStore
	Cache    interfaces.BlockCache
	Links    *markup.Links
	Logger   interfaces.Logger
}

// Service assembles and persists a workspace's content graph.
type Service struct {
	nodes    graph.NodeStore
	renderer Renderer
	blobs    interfaces.BlobStore
	cache    interfaces.BlockCache
	links    *markup.Links
	logger   interfaces.Logger
	md       goldmark.Markdown
}

// New builds the assembler.
func New(cfg Config) (*Service, error) {
	if cfg.Nodes == nil {
		return nil, ErrNodesRequired
	}
	if cfg.Renderer == nil {
		return nil, ErrRendererRequired
	}
	return &Service{
		nodes:    cfg.Nodes,
		renderer: cfg.Renderer,
		blobs:    cfg.Blobs,
		cache:    cfg.Cache,
		links:    cfg.Links,
		logger:   cfg.Logger,
		md:       newMarkdown(),
	}, nil
}

// Result summarises one assembly run.
type Result struct {
	Pages  int
	Blocks int
	// Skipped maps page name to the reason it was dropped.
	Skipped map[string]string
}

// Run ingests the repository checkout at repoDir into the workspace graph:
// parse every markdown file, render the whole directory through the external
// tool, match pages to documents, assemble nodes, and replace the workspace's
// persisted set in one transaction. A renderer failure aborts the run; a
// per-page match miss only drops that page.
func (s *Service) Run(ctx context.Context, workspaceID uuid.UUID, repoDir string, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(string, ...any) {}
	}

	pages, err := s.loadPages(repoDir)
	if err != nil {
		return nil, err
	}
	progress("parsed %d markdown pages", len(pages))

	outputDir, err := os.MkdirTemp("", "notepress-render-")
	if err != nil {
		return nil, fmt.Errorf("ingest: create render output dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	if err := s.renderer.Run(ctx, repoDir, outputDir); err != nil {
		return nil, fmt.Errorf("ingest: renderer: %w", err)
	}

	docs, err := render.LoadDocuments(outputDir)
	if err != nil {
		return nil, err
	}
	progress("renderer produced %d documents", len(docs))

	names := make([]string, 0, len(pages))
	for _, page := range pages {
		names = append(names, page.Name)
	}
	matched := render.MatchDocuments(names, docs)
	for page, reason := range matched.Skipped {
		progress("skipping page %q: %s", page, reason)
		if s.logger != nil {
			s.logger.Warn("ingest.page_skipped", "page", page, "reason", reason)
		}
	}

	byName := make(map[string]*outline.PageFile, len(pages))
	for _, page := range pages {
		byName[page.Name] = page
	}

	result := &Result{Skipped: matched.Skipped}
	var nodes []*graph.Node
	cacheEntries := map[interfaces.BlockCacheKey]string{}

	for _, match := range matched.Matches {
		page := byName[match.PageName]
		pageNodes, err := s.assemblePage(ctx, workspaceID, repoDir, page, match.Document, progress)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, pageNodes...)
		result.Pages++
		result.Blocks += len(pageNodes) - 1

		for _, node := range pageNodes {
			if node.HTML != nil {
				cacheEntries[interfaces.BlockCacheKey{WorkspaceID: workspaceID, BlockID: node.ID}] = *node.HTML
			}
		}
	}

	if err := s.nodes.ReplaceWorkspace(ctx, workspaceID, nodes); err != nil {
		return nil, fmt.Errorf("ingest: persist workspace graph: %w", err)
	}
	progress("persisted %d nodes (%d pages, %d blocks)", len(nodes), result.Pages, result.Blocks)

	depths := computeDepths(nodes)
	if err := s.nodes.UpdateDepths(ctx, workspaceID, depths); err != nil {
		return nil, fmt.Errorf("ingest: persist depths: %w", err)
	}

	if s.cache != nil && len(cacheEntries) > 0 {
		if err := s.cache.SetMany(ctx, cacheEntries); err != nil {
			// Cache warming is opportunistic; the persisted column serves misses.
			progress("cache warm failed: %v", err)
			if s.logger != nil {
				s.logger.Warn("ingest.cache_warm_failed", "error", err)
			}
		}
	}

	return result, nil
}

// assemblePage emits the page node plus one node per block, in
// hierarchy-preserving order with parents ahead of their children.
func (s *Service) assemblePage(ctx context.Context, workspaceID uuid.UUID, repoDir string, page *outline.PageFile, doc *render.Document, progress ProgressFunc) ([]*graph.Node, error) {
	pageID := identity.PageUUID(workspaceID, page.Name)
	pageSlug := slugify(page.Name)

	pageNode := &graph.Node{
		ID:          pageID,
		WorkspaceID: workspaceID,
		PageName:    page.Name,
		Slug:        pageSlug,
		Title:       pageTitle(page, doc),
		Metadata: graph.Metadata{
			Tags:       pageTags(page, doc),
			Properties: pageProperties(page, doc),
		},
	}
	nodes := []*graph.Node{pageNode}

	rewriter := markup.NewWithLinks(workspaceID, page.Name, s.links)
	ids := map[*outline.Block]uuid.UUID{}

	for _, flat := range outline.Flatten(page.Blocks) {
		parentID := pageID
		if flat.Parent != nil {
			parentID = ids[flat.Parent]
		}

		var blockID uuid.UUID
		if flat.Block.ID != "" {
			blockID = identity.BlockUUID(workspaceID, flat.Block.ID)
		} else {
			blockID = identity.SyntheticBlockUUID(parentID, flat.Order, flat.Block.Content)
		}
		ids[flat.Block] = blockID

		fragment, err := renderBlock(s.md, flat.Block.Content)
		if err != nil {
			return nil, err
		}
		fragment = rewriter.Rewrite(fragment)
		fragment = rewriteAssets(ctx, s.blobs, workspaceID, repoDir, fragment, progress)

		parent := parentID
		nodes = append(nodes, &graph.Node{
			ID:          blockID,
			WorkspaceID: workspaceID,
			ParentID:    &parent,
			Order:       flat.Order,
			PageName:    page.Name,
			Slug:        pageSlug,
			HTML:        &fragment,
			Metadata:    graph.Metadata{Properties: flat.Block.Properties},
		})
	}

	return nodes, nil
}

// loadPages parses every markdown file in the checkout, skipping dot
// directories and the note tool's own config directory.
func (s *Service) loadPages(repoDir string) ([]*outline.PageFile, error) {
	var pages []*outline.PageFile

	err := filepath.WalkDir(repoDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			name := entry.Name()
			if path != repoDir && (strings.HasPrefix(name, ".") || name == "logseq") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.ToLower(filepath.Ext(entry.Name())) != ".md" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("ingest: read %s: %w", path, err)
		}

		page, err := outline.ParseFile(pageNameFromFile(entry.Name()), string(data))
		if err != nil {
			return fmt.Errorf("ingest: parse %s: %w", path, err)
		}
		pages = append(pages, page)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: scan checkout %s: %w", repoDir, err)
	}
	return pages, nil
}

// pageNameFromFile recovers the page name from its file name. Note tools
// percent-encode characters that are not filesystem safe.
func pageNameFromFile(base string) string {
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if decoded, err := url.PathUnescape(name); err == nil {
		return decoded
	}
	return name
}

// computeDepths walks each block's parent chain in memory. A block whose
// parent is a page has depth 0; otherwise depth is the parent's depth plus one.
func computeDepths(nodes []*graph.Node) map[uuid.UUID]int {
	byID := make(map[uuid.UUID]*graph.Node, len(nodes))
	for _, node := range nodes {
		byID[node.ID] = node
	}

	depths := map[uuid.UUID]int{}
	var depthOf func(node *graph.Node) int
	depthOf = func(node *graph.Node) int {
		if node.IsPage() {
			return -1
		}
		if d, ok := depths[node.ID]; ok {
			return d
		}
		parent, ok := byID[*node.ParentID]
		if !ok {
			depths[node.ID] = 0
			return 0
		}
		d := depthOf(parent) + 1
		depths[node.ID] = d
		return d
	}
	for _, node := range nodes {
		if !node.IsPage() {
			node.Depth = depthOf(node)
		}
	}
	return depths
}

func pageTitle(page *outline.PageFile, doc *render.Document) string {
	if doc.Title != "" {
		return doc.Title
	}
	if title := strings.TrimSpace(page.Properties["title"]); title != "" {
		return title
	}
	return page.Name
}

func pageTags(page *outline.PageFile, doc *render.Document) []string {
	seen := map[string]bool{}
	var tags []string
	add := func(tag string) {
		trimmed := strings.TrimSpace(tag)
		key := strings.ToLower(trimmed)
		if trimmed == "" || seen[key] {
			return
		}
		seen[key] = true
		tags = append(tags, trimmed)
	}
	for _, tag := range doc.Tags {
		add(tag)
	}
	for _, tag := range strings.Split(page.Properties["tags"], ",") {
		add(tag)
	}
	return tags
}

// pageProperties merges renderer metadata with parsed source properties; the
// source wins on conflicts since it is what the author actually wrote.
func pageProperties(page *outline.PageFile, doc *render.Document) map[string]string {
	merged := make(map[string]string, len(doc.Properties)+len(page.Properties))
	for k, v := range doc.Properties {
		merged[k] = v
	}
	for k, v := range page.Properties {
		merged[k] = v
	}
	return merged
}

func slugify(name string) string {
	normalized, err := slug.Normalize(name)
	if err != nil || normalized == "" {
		return strings.ToLower(strings.Join(strings.Fields(name), "-"))
	}
	return normalized
}
