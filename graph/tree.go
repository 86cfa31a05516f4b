package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// DefaultMaxDepth caps traversal even if cycle detection were to fail;
// outlines deeper than this are treated as corrupted.
const DefaultMaxDepth = 64

// ChildrenFunc performs one batched lookup: given a frontier of node ids it
// returns the matching node records plus the declared child ids of each. The
// traversal engine issues one call per BFS level, which is what turns O(N)
// sequential round-trips into O(depth) batched ones.
type ChildrenFunc func(ctx context.Context, ids []uuid.UUID) ([]*Node, map[uuid.UUID][]uuid.UUID, error)

// TreeNode is one node of the reassembled nested tree.
type TreeNode struct {
	Node     *Node
	Children []*TreeNode
}

// Cycle records a parent/child reference that pointed back into the visited
// set. Cycles are diagnostic only; traversal breaks them defensively and the
// reference is represented as a childless leaf.
type Cycle struct {
	ParentID uuid.UUID
	ChildID  uuid.UUID
}

// Tree is the result of one traversal.
type Tree struct {
	Root   *TreeNode
	Cycles []Cycle
	// Levels is the number of batched lookups performed.
	Levels int
}

// TreeOption customises traversal behaviour.
type TreeOption func(*treeConfig)

type treeConfig struct {
	maxDepth int
}

// WithMaxDepth overrides the traversal depth ceiling.
func WithMaxDepth(depth int) TreeOption {
	return func(c *treeConfig) {
		if depth > 0 {
			c.maxDepth = depth
		}
	}
}

// BuildTree materialises the nested tree rooted at rootID via batched
// breadth-first search. Parent pointers are treated as a possibly-cyclic
// graph: an explicit visited set breaks cycles and a hard depth ceiling
// aborts traversal even if cycle detection were to fail.
func BuildTree(ctx context.Context, rootID uuid.UUID, childrenOf ChildrenFunc, opts ...TreeOption) (*Tree, error) {
	cfg := treeConfig{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&cfg)
	}

	visited := map[uuid.UUID]bool{}
	collected := map[uuid.UUID]*Node{}
	declared := map[uuid.UUID][]uuid.UUID{}
	var cycles []Cycle

	frontier := []uuid.UUID{rootID}
	levels := 0

	for len(frontier) > 0 {
		next := frontier[:0]
		for _, id := range frontier {
			if !visited[id] {
				next = append(next, id)
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}

		if levels >= cfg.maxDepth {
			return nil, fmt.Errorf("%w: %d levels", ErrDepthExceeded, levels)
		}
		levels++

		for _, id := range frontier {
			visited[id] = true
		}

		nodes, children, err := childrenOf(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("graph: traversal level %d: %w", levels, err)
		}
		for _, node := range nodes {
			collected[node.ID] = node
		}

		var union []uuid.UUID
		seen := map[uuid.UUID]bool{}
		for parentID, childIDs := range children {
			declared[parentID] = childIDs
			for _, childID := range childIDs {
				if visited[childID] {
					cycles = append(cycles, Cycle{ParentID: parentID, ChildID: childID})
					continue
				}
				if !seen[childID] {
					seen[childID] = true
					union = append(union, childID)
				}
			}
		}
		frontier = union
	}

	rootNode, ok := collected[rootID]
	if !ok {
		return nil, &NotFoundError{Resource: "node", Key: rootID.String()}
	}

	tree := &Tree{Cycles: cycles, Levels: levels}
	tree.Root = assemble(rootNode, collected, declared, map[uuid.UUID]bool{rootID: true})
	return tree, nil
}

// assemble rebuilds the nested structure from the collected flat records,
// ordering siblings by their persisted position. The building set guards
// reassembly against the same cyclic references traversal already skipped.
func assemble(node *Node, collected map[uuid.UUID]*Node, declared map[uuid.UUID][]uuid.UUID, building map[uuid.UUID]bool) *TreeNode {
	tn := &TreeNode{Node: node}

	childIDs := declared[node.ID]
	children := make([]*Node, 0, len(childIDs))
	for _, id := range childIDs {
		child, ok := collected[id]
		if !ok {
			continue
		}
		children = append(children, child)
	}
	sort.SliceStable(children, func(i, j int) bool { return children[i].Order < children[j].Order })

	for _, child := range children {
		if building[child.ID] {
			// Cyclic reference: keep the node visible as a childless leaf
			// instead of re-descending.
			tn.Children = append(tn.Children, &TreeNode{Node: child})
			continue
		}
		building[child.ID] = true
		tn.Children = append(tn.Children, assemble(child, collected, declared, building))
	}
	return tn
}
