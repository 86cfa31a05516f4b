package graph

import (
	"context"

	"github.com/google/uuid"

	"github.com/notepress/notepress/pkg/interfaces"
)

// TreeService reconstructs nested block trees from the persisted flat graph
// for rendering. Block HTML is served through the fast cache when one is
// wired, falling back to the persisted column on a miss.
type TreeService struct {
	nodes  NodeStore
	cache  interfaces.BlockCache
	logger interfaces.Logger
	opts   []TreeOption
}

// TreeServiceConfig carries the service dependencies.
type TreeServiceConfig struct {
	Nodes    NodeStore
	Cache    interfaces.BlockCache
	Logger   interfaces.Logger
	MaxDepth int
}

// NewTreeService builds a TreeService.
func NewTreeService(cfg TreeServiceConfig) *TreeService {
	svc := &TreeService{
		nodes:  cfg.Nodes,
		cache:  cfg.Cache,
		logger: cfg.Logger,
	}
	if cfg.MaxDepth > 0 {
		svc.opts = append(svc.opts, WithMaxDepth(cfg.MaxDepth))
	}
	return svc
}

// PageTree resolves the page node for (workspace, page name) and materialises
// its full nested block tree.
func (s *TreeService) PageTree(ctx context.Context, workspaceID uuid.UUID, pageName string) (*Tree, error) {
	page, err := s.nodes.PageByName(ctx, workspaceID, pageName)
	if err != nil {
		return nil, err
	}
	return s.NodeTree(ctx, workspaceID, page.ID)
}

// NodeTree materialises the nested tree rooted at the given node id.
func (s *TreeService) NodeTree(ctx context.Context, workspaceID uuid.UUID, rootID uuid.UUID) (*Tree, error) {
	tree, err := BuildTree(ctx, rootID, s.childrenOf(workspaceID), s.opts...)
	if err != nil {
		return nil, err
	}

	for _, cycle := range tree.Cycles {
		if s.logger != nil {
			s.logger.Warn("graph.cycle_detected",
				"workspace_id", workspaceID.String(),
				"parent_id", cycle.ParentID.String(),
				"child_id", cycle.ChildID.String(),
			)
		}
	}

	if s.cache != nil {
		s.fillFromCache(ctx, workspaceID, tree)
	}
	return tree, nil
}

// childrenOf adapts the node store's batched reads to the traversal contract.
func (s *TreeService) childrenOf(workspaceID uuid.UUID) ChildrenFunc {
	return func(ctx context.Context, ids []uuid.UUID) ([]*Node, map[uuid.UUID][]uuid.UUID, error) {
		nodes, err := s.nodes.NodesByIDs(ctx, workspaceID, ids)
		if err != nil {
			return nil, nil, err
		}
		children, err := s.nodes.ChildrenOf(ctx, workspaceID, ids)
		if err != nil {
			return nil, nil, err
		}

		declared := map[uuid.UUID][]uuid.UUID{}
		for _, child := range children {
			if child.ParentID == nil {
				continue
			}
			declared[*child.ParentID] = append(declared[*child.ParentID], child.ID)
		}
		return nodes, declared, nil
	}
}

// fillFromCache swaps block HTML for cached copies in one batched read and
// backfills misses so subsequent views hit the cache. Cache failures only log;
// the persisted column remains authoritative.
func (s *TreeService) fillFromCache(ctx context.Context, workspaceID uuid.UUID, tree *Tree) {
	var blocks []*TreeNode
	var walk func(tn *TreeNode)
	walk = func(tn *TreeNode) {
		if !tn.Node.IsPage() && tn.Node.HTML != nil {
			blocks = append(blocks, tn)
		}
		for _, child := range tn.Children {
			walk(child)
		}
	}
	walk(tree.Root)
	if len(blocks) == 0 {
		return
	}

	keys := make([]interfaces.BlockCacheKey, 0, len(blocks))
	for _, tn := range blocks {
		keys = append(keys, interfaces.BlockCacheKey{WorkspaceID: workspaceID, BlockID: tn.Node.ID})
	}

	cached, err := s.cache.GetMany(ctx, keys)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("graph.cache_read_failed", "error", err)
		}
		return
	}

	misses := map[interfaces.BlockCacheKey]string{}
	for _, tn := range blocks {
		key := interfaces.BlockCacheKey{WorkspaceID: workspaceID, BlockID: tn.Node.ID}
		if html, ok := cached[key]; ok {
			value := html
			tn.Node.HTML = &value
			continue
		}
		misses[key] = *tn.Node.HTML
	}

	if len(misses) > 0 {
		if err := s.cache.SetMany(ctx, misses); err != nil && s.logger != nil {
			s.logger.Warn("graph.cache_write_failed", "error", err)
		}
	}
}
