package graph

import (
	"context"
	"fmt"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BunNodeStore implements NodeStore over bun. Bulk operations (full replace,
// depth updates, batched reads) go straight through the bun DB; single-record
// access reuses the generic repository with optional read caching.
type BunNodeStore struct {
	db   *bun.DB
	repo repository.Repository[*Node]
}

// NewBunNodeStore creates a node store without read caching.
func NewBunNodeStore(db *bun.DB) *BunNodeStore {
	return NewBunNodeStoreWithCache(db, nil, nil)
}

// NewBunNodeStoreWithCache creates a node store with a caching layer applied
// to the generic repository reads.
func NewBunNodeStoreWithCache(db *bun.DB, cacheService cache.CacheService, serializer cache.KeySerializer) *BunNodeStore {
	base := NewNodeRepository(db)
	if cacheService != nil && serializer != nil {
		base = repositorycache.New(base, cacheService, serializer)
	}
	return &BunNodeStore{db: db, repo: base}
}

// ReplaceWorkspace deletes the workspace's previous node set and inserts the
// new one inside a single transaction. The full replace is deliberate: sync
// correctness over incremental diffing.
func (s *BunNodeStore) ReplaceWorkspace(ctx context.Context, workspaceID uuid.UUID, nodes []*Node) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*Node)(nil)).
			Where("workspace_id = ?", workspaceID).
			Exec(ctx); err != nil {
			return fmt.Errorf("graph: delete workspace nodes: %w", err)
		}

		if len(nodes) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&nodes).Exec(ctx); err != nil {
			return fmt.Errorf("graph: insert workspace nodes: %w", err)
		}
		return nil
	})
}

// UpdateDepths persists recomputed depths for the workspace in one statement
// batch per distinct depth value.
func (s *BunNodeStore) UpdateDepths(ctx context.Context, workspaceID uuid.UUID, depths map[uuid.UUID]int) error {
	if len(depths) == 0 {
		return nil
	}

	byDepth := map[int][]uuid.UUID{}
	for id, depth := range depths {
		byDepth[depth] = append(byDepth[depth], id)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for depth, ids := range byDepth {
			if _, err := tx.NewUpdate().
				Model((*Node)(nil)).
				Set("depth = ?", depth).
				Where("workspace_id = ?", workspaceID).
				Where("id IN (?)", bun.In(ids)).
				Exec(ctx); err != nil {
				return fmt.Errorf("graph: update depths: %w", err)
			}
		}
		return nil
	})
}

// NodesByIDs fetches node records for the given ids in one query.
func (s *BunNodeStore) NodesByIDs(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID) ([]*Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var nodes []*Node
	err := s.db.NewSelect().
		Model(&nodes).
		Where("workspace_id = ?", workspaceID).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: nodes by ids: %w", err)
	}
	return nodes, nil
}

// ChildrenOf fetches all direct children of the given parents in one query,
// ordered by sibling position.
func (s *BunNodeStore) ChildrenOf(ctx context.Context, workspaceID uuid.UUID, parentIDs []uuid.UUID) ([]*Node, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var nodes []*Node
	err := s.db.NewSelect().
		Model(&nodes).
		Where("workspace_id = ?", workspaceID).
		Where("parent_id IN (?)", bun.In(parentIDs)).
		OrderExpr("parent_id ASC, position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: children of: %w", err)
	}
	return nodes, nil
}

// PageByName resolves the page node addressed by (workspace, page name).
func (s *BunNodeStore) PageByName(ctx context.Context, workspaceID uuid.UUID, pageName string) (*Node, error) {
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.workspace_id = ?", workspaceID)
		}),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.page_name = ?", pageName).
				Where("?TableAlias.parent_id IS NULL")
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, mapRepositoryError(err, "page", pageName)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Resource: "page", Key: pageName}
	}
	return records[0], nil
}

// ListPages returns every page node in the workspace, ordered by name.
func (s *BunNodeStore) ListPages(ctx context.Context, workspaceID uuid.UUID) ([]*Node, error) {
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.workspace_id = ?", workspaceID).
				Where("?TableAlias.parent_id IS NULL").
				OrderExpr("?TableAlias.page_name ASC")
		}),
	)
	if err != nil {
		return nil, mapRepositoryError(err, "pages", workspaceID.String())
	}
	return records, nil
}

func mapRepositoryError(err error, resource, key string) error {
	if err == nil {
		return nil
	}
	if errors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return &NotFoundError{Resource: resource, Key: key}
	}
	return fmt.Errorf("graph: %s repository error: %w", resource, err)
}
