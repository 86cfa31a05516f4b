package graph

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Node is the unified persisted representation of a page or a block. Pages
// have no parent and a nil HTML body; blocks reference a parent node and carry
// their rendered markup.
type Node struct {
	bun.BaseModel `bun:"table:nodes,alias:n"`

	ID          uuid.UUID  `bun:",pk,type:uuid"                      json:"id"`
	WorkspaceID uuid.UUID  `bun:"workspace_id,notnull,type:uuid"     json:"workspace_id"`
	ParentID    *uuid.UUID `bun:"parent_id,type:uuid,nullzero"       json:"parent_id,omitempty"`
	Order       int        `bun:"position,notnull"                   json:"order"`
	PageName    string     `bun:"page_name,notnull"                  json:"page_name"`
	Slug        string     `bun:"slug,notnull"                       json:"slug"`
	Title       string     `bun:"title,notnull,default:''"           json:"title"`
	HTML        *string    `bun:"html"                               json:"html,omitempty"`
	Metadata    Metadata   `bun:"metadata,type:jsonb"                json:"metadata"`
	Depth       int        `bun:"depth,notnull,default:0"            json:"depth"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// IsPage reports whether the node is a page root.
func (n *Node) IsPage() bool {
	return n != nil && n.ParentID == nil
}

// Metadata carries a node's tags and free-form properties as one JSON column.
type Metadata struct {
	Tags       []string          `json:"tags,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}
