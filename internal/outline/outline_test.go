package outline

import (
	"testing"
)

func TestParseFileNestedBlocks(t *testing.T) {
	input := "- Parent block\n\t- Child block\n\t  id:: abc-123\n"

	page, err := ParseFile("Test Page", input)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	if len(page.Blocks) != 1 {
		t.Fatalf("expected 1 root block, got %d", len(page.Blocks))
	}
	parent := page.Blocks[0]
	if parent.Content != "Parent block" {
		t.Fatalf("parent content mismatch: %q", parent.Content)
	}
	if len(parent.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(parent.Children))
	}
	child := parent.Children[0]
	if child.Content != "Child block" {
		t.Fatalf("child content mismatch: %q", child.Content)
	}
	if child.ID != "abc-123" {
		t.Fatalf("expected explicit id abc-123, got %q", child.ID)
	}
}

func TestParseFilePropertyOnlyPage(t *testing.T) {
	page, err := ParseFile("Props", "tags:: foo, bar\n")
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	if len(page.Blocks) != 0 {
		t.Fatalf("expected no blocks, got %d", len(page.Blocks))
	}
	if page.Properties["tags"] != "foo, bar" {
		t.Fatalf("expected tags property, got %#v", page.Properties)
	}
}

func TestParseFileSiblingAndDeeperNesting(t *testing.T) {
	input := "- a\n  - a1\n    - a1x\n  - a2\n- b\n"

	page, err := ParseFile("Nesting", input)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	if len(page.Blocks) != 2 {
		t.Fatalf("expected 2 roots, got %d", len(page.Blocks))
	}
	a, b := page.Blocks[0], page.Blocks[1]
	if a.Content != "a" || b.Content != "b" {
		t.Fatalf("root contents mismatch: %q %q", a.Content, b.Content)
	}
	if len(a.Children) != 2 {
		t.Fatalf("expected a to have 2 children, got %d", len(a.Children))
	}
	if a.Children[0].Content != "a1" || a.Children[1].Content != "a2" {
		t.Fatalf("a children mismatch: %q %q", a.Children[0].Content, a.Children[1].Content)
	}
	if len(a.Children[0].Children) != 1 || a.Children[0].Children[0].Content != "a1x" {
		t.Fatalf("expected a1 to contain a1x, got %#v", a.Children[0].Children)
	}
	if len(b.Children) != 0 {
		t.Fatalf("expected b to have no children, got %d", len(b.Children))
	}
}

func TestParseFileMultilineContentAndBlockProperties(t *testing.T) {
	input := "title:: My Page\n- first line\n  second line\n  color:: blue\n"

	page, err := ParseFile("Multi", input)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	if page.Properties["title"] != "My Page" {
		t.Fatalf("expected page title property, got %#v", page.Properties)
	}
	if len(page.Blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(page.Blocks))
	}
	block := page.Blocks[0]
	if block.Content != "first line\nsecond line" {
		t.Fatalf("content continuation mismatch: %q", block.Content)
	}
	if block.Properties["color"] != "blue" {
		t.Fatalf("expected block property color=blue, got %#v", block.Properties)
	}
}

func TestParseFileFrontmatterProperties(t *testing.T) {
	input := "---\ntitle: Landing\ntags:\n  - docs\n  - intro\n---\n- welcome\n"

	page, err := ParseFile("Landing", input)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	if page.Properties["title"] != "Landing" {
		t.Fatalf("expected frontmatter title, got %#v", page.Properties)
	}
	if page.Properties["tags"] != "docs, intro" {
		t.Fatalf("expected joined tags, got %q", page.Properties["tags"])
	}
	if len(page.Blocks) != 1 || page.Blocks[0].Content != "welcome" {
		t.Fatalf("expected body block after frontmatter, got %#v", page.Blocks)
	}
}

func TestFlattenPreservesHierarchyOrder(t *testing.T) {
	input := "- a\n  - a1\n  - a2\n- b\n"
	page, err := ParseFile("Flat", input)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	flat := Flatten(page.Blocks)
	if len(flat) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(flat))
	}

	wantContent := []string{"a", "a1", "a2", "b"}
	wantOrder := []int{0, 0, 1, 1}
	for i, entry := range flat {
		if entry.Block.Content != wantContent[i] {
			t.Fatalf("entry %d content: want %q got %q", i, wantContent[i], entry.Block.Content)
		}
		if entry.Order != wantOrder[i] {
			t.Fatalf("entry %d order: want %d got %d", i, wantOrder[i], entry.Order)
		}
	}
	if flat[1].Parent != flat[0].Block || flat[2].Parent != flat[0].Block {
		t.Fatal("expected a1/a2 to report a as parent")
	}
	if flat[0].Parent != nil || flat[3].Parent != nil {
		t.Fatal("expected roots to have nil parent")
	}
}
