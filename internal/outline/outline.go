// Package outline parses note-taking markdown files into hierarchical block
// trees. A file is a forest of bullet blocks plus a page-level property map;
// nesting is expressed through indentation and `key:: value` lines attach
// properties to the page or to the current block.
package outline

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/adrg/frontmatter"
)

// Block is one outline bullet with its continuation lines, properties, and
// nested children. ID is the explicit `id::` property when present; blocks
// without one are assigned a synthetic identifier downstream.
type Block struct {
	ID         string
	Content    string
	Properties map[string]string
	Children   []*Block
}

// PageFile is the parse result for a single markdown file.
type PageFile struct {
	Name       string
	Properties map[string]string
	Blocks     []*Block
}

// FlatBlock is one entry of a hierarchy-preserving flattening: the block, its
// parent (nil for roots), and its index among its siblings.
type FlatBlock struct {
	Block  *Block
	Parent *Block
	Order  int
}

var (
	propertyRe = regexp.MustCompile(`^\s*([A-Za-z0-9_./-]+)::\s*(.*)$`)
	bulletRe   = regexp.MustCompile(`^([\t ]*)-(?:\s(.*))?$`)
)

// ParseFile parses raw file text into page properties and an ordered block
// forest. The grammar is line oriented:
//
//   - `key:: value` before any bullet is a page property; after a bullet it
//     attaches to the current block, with `id` captured as the explicit id.
//   - a `-` bullet preceded only by whitespace opens a block; its indent is
//     tab count plus space count halved.
//   - any other non-blank line extends the current block's content.
//
// Files may also open with a YAML frontmatter fence; its scalar entries merge
// into the page property map.
func ParseFile(name, text string) (*PageFile, error) {
	page := &PageFile{
		Name:       name,
		Properties: map[string]string{},
	}

	body, fmProps := splitFrontmatter(text)
	for k, v := range fmProps {
		page.Properties[k] = v
	}

	type stackEntry struct {
		block  *Block
		indent int
	}
	var stack []stackEntry

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimRight(line, "\r")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}

		if m := bulletRe.FindStringSubmatch(trimmed); m != nil {
			indent := indentWidth(m[1])
			block := &Block{
				Content:    strings.TrimSpace(m[2]),
				Properties: map[string]string{},
			}

			for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
				stack = stack[:len(stack)-1]
			}
			if len(stack) == 0 {
				page.Blocks = append(page.Blocks, block)
			} else {
				parent := stack[len(stack)-1].block
				parent.Children = append(parent.Children, block)
			}
			stack = append(stack, stackEntry{block: block, indent: indent})
			continue
		}

		if m := propertyRe.FindStringSubmatch(trimmed); m != nil {
			key, value := m[1], strings.TrimSpace(m[2])
			if len(stack) == 0 {
				page.Properties[key] = value
				continue
			}
			current := stack[len(stack)-1].block
			if key == "id" {
				current.ID = value
				continue
			}
			current.Properties[key] = value
			continue
		}

		if len(stack) > 0 {
			current := stack[len(stack)-1].block
			continuation := strings.TrimSpace(trimmed)
			if current.Content == "" {
				current.Content = continuation
			} else {
				current.Content += "\n" + continuation
			}
		}
		// Loose text before the first bullet is ignored: the format only
		// recognizes properties and blocks at page level.
	}

	return page, nil
}

// Flatten walks the forest depth-first and emits one entry per block, parents
// before children, siblings in source order.
func Flatten(blocks []*Block) []FlatBlock {
	var out []FlatBlock
	var walk func(parent *Block, siblings []*Block)
	walk = func(parent *Block, siblings []*Block) {
		for i, block := range siblings {
			out = append(out, FlatBlock{Block: block, Parent: parent, Order: i})
			walk(block, block.Children)
		}
	}
	walk(nil, blocks)
	return out
}

// indentWidth computes nesting depth for a bullet prefix: each tab counts as
// one level, every two spaces count as one.
func indentWidth(prefix string) int {
	tabs := strings.Count(prefix, "\t")
	spaces := strings.Count(prefix, " ")
	return tabs + spaces/2
}

func splitFrontmatter(text string) (string, map[string]string) {
	if !strings.HasPrefix(text, "---") {
		return text, nil
	}

	var raw map[string]any
	rest, err := frontmatter.Parse(bytes.NewReader([]byte(text)), &raw)
	if err != nil {
		return text, nil
	}

	props := make(map[string]string, len(raw))
	for k, v := range raw {
		switch value := v.(type) {
		case string:
			props[k] = value
		case []any:
			parts := make([]string, 0, len(value))
			for _, item := range value {
				if s, ok := item.(string); ok {
					parts = append(parts, s)
				}
			}
			props[k] = strings.Join(parts, ", ")
		default:
			props[k] = stringify(v)
		}
	}
	return string(rest), props
}

func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case bool:
		if value {
			return "true"
		}
		return "false"
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
