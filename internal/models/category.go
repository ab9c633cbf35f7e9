package models

import "errors"

// Category is a node in the shared spending-category hierarchy.
// Categories are maintained by administrators and read by every user.
type Category struct {
	Base
	Name        string  `gorm:"not null" json:"name"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Color       string  `json:"color"`
	ParentID    *string `gorm:"type:uuid;index" json:"parent_id,omitempty"`

	// Relationships
	Parent *Category `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
}

var (
	// ErrUnknownCategory is returned when an ID is not part of the tree.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrCategoryCycle is returned when a parent chain loops back on itself.
	ErrCategoryCycle = errors.New("category parent chain contains a cycle")
)

// CategoryTree is an in-memory view of the category hierarchy.
// All walks are iterative and guarded against malformed (cyclic) data.
type CategoryTree struct {
	nodes    map[string]*Category
	children map[string][]string
}

// NewCategoryTree indexes the given categories.
func NewCategoryTree(categories []Category) *CategoryTree {
	t := &CategoryTree{
		nodes:    make(map[string]*Category, len(categories)),
		children: make(map[string][]string),
	}
	for i := range categories {
		c := &categories[i]
		t.nodes[c.ID] = c
	}
	for _, c := range t.nodes {
		if c.ParentID != nil {
			t.children[*c.ParentID] = append(t.children[*c.ParentID], c.ID)
		}
	}
	return t
}

// Get returns the category with the given ID, or nil.
func (t *CategoryTree) Get(id string) *Category {
	return t.nodes[id]
}

// Root walks parent links up to the top-level ancestor of id.
func (t *CategoryTree) Root(id string) (*Category, error) {
	cur, ok := t.nodes[id]
	if !ok {
		return nil, ErrUnknownCategory
	}
	seen := map[string]struct{}{cur.ID: {}}
	for cur.ParentID != nil {
		parent, ok := t.nodes[*cur.ParentID]
		if !ok {
			// Dangling parent: treat the last known node as the root.
			return cur, nil
		}
		if _, dup := seen[parent.ID]; dup {
			return nil, ErrCategoryCycle
		}
		seen[parent.ID] = struct{}{}
		cur = parent
	}
	return cur, nil
}

// Lineage returns id followed by its ancestors, nearest first. The last element
// is the root.
func (t *CategoryTree) Lineage(id string) ([]string, error) {
	cur, ok := t.nodes[id]
	if !ok {
		return nil, ErrUnknownCategory
	}
	lineage := []string{cur.ID}
	seen := map[string]struct{}{cur.ID: {}}
	for cur.ParentID != nil {
		parent, ok := t.nodes[*cur.ParentID]
		if !ok {
			break
		}
		if _, dup := seen[parent.ID]; dup {
			return nil, ErrCategoryCycle
		}
		seen[parent.ID] = struct{}{}
		lineage = append(lineage, parent.ID)
		cur = parent
	}
	return lineage, nil
}

// Subtree returns id and every descendant of id, breadth first.
func (t *CategoryTree) Subtree(id string) []string {
	if _, ok := t.nodes[id]; !ok {
		return nil
	}
	seen := map[string]struct{}{id: {}}
	out := []string{id}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range t.children[cur] {
			if _, dup := seen[child]; dup {
				continue
			}
			seen[child] = struct{}{}
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// Roots returns every top-level category.
func (t *CategoryTree) Roots() []*Category {
	var roots []*Category
	for _, c := range t.nodes {
		if c.ParentID == nil {
			roots = append(roots, c)
		}
	}
	return roots
}

// WouldCycle reports whether making parentID the parent of id would create a loop.
func (t *CategoryTree) WouldCycle(id, parentID string) bool {
	if id == parentID {
		return true
	}
	seen := map[string]struct{}{}
	cur, ok := t.nodes[parentID]
	for ok {
		if cur.ID == id {
			return true
		}
		if _, dup := seen[cur.ID]; dup {
			return true
		}
		seen[cur.ID] = struct{}{}
		if cur.ParentID == nil {
			return false
		}
		cur, ok = t.nodes[*cur.ParentID]
	}
	return false
}
