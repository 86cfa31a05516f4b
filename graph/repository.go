package graph

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NodeStore is the persistence contract the assembler and traversal services
// depend on. Reads are batched by design: the traversal engine issues one
// lookup per BFS level, not one per node.
type NodeStore interface {
	ReplaceWorkspace(ctx context.Context, workspaceID uuid.UUID, nodes []*Node) error
	UpdateDepths(ctx context.Context, workspaceID uuid.UUID, depths map[uuid.UUID]int) error
	NodesByIDs(ctx context.Context, workspaceID uuid.UUID, ids []uuid.UUID) ([]*Node, error)
	ChildrenOf(ctx context.Context, workspaceID uuid.UUID, parentIDs []uuid.UUID) ([]*Node, error)
	PageByName(ctx context.Context, workspaceID uuid.UUID, pageName string) (*Node, error)
	ListPages(ctx context.Context, workspaceID uuid.UUID) ([]*Node, error)
}

// NewNodeRepository creates the generic bun-backed repository for Node rows.
func NewNodeRepository(db *bun.DB) repository.Repository[*Node] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Node]{
		NewRecord:          func() *Node { return &Node{} },
		GetID:              func(n *Node) uuid.UUID { return n.ID },
		SetID:              func(n *Node, id uuid.UUID) { n.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(n *Node) string { return n.ID.String() },
	})
}
