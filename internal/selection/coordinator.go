// Package selection owns the single selected process shared by the table,
// tree and graph views.
package selection

import (
	"sync"

	"github.com/iamgilwell/proctopo/internal/topology"
	"github.com/iamgilwell/proctopo/internal/view"
)

// Highlight is the selection resolved against the current projections.
// Found is false when nothing is selected or the pid is not in the forest.
type Highlight struct {
	PID        int      `json:"pid,omitempty" yaml:"pid,omitempty"`
	Selected   bool     `json:"selected" yaml:"selected"`
	Found      bool     `json:"found" yaml:"found"`
	Chain      []int    `json:"chain,omitempty" yaml:"chain,omitempty"`
	EdgeIDs    []string `json:"edge_ids,omitempty" yaml:"edge_ids,omitempty"`
	TableIndex *int     `json:"table_index,omitempty" yaml:"table_index,omitempty"`
	TreeIndex  *int     `json:"tree_index,omitempty" yaml:"tree_index,omitempty"`
}

// Coordinator holds the selection and the projections it resolves against.
// It never triggers fetches or rebuilds itself.
type Coordinator struct {
	mu       sync.RWMutex
	selected int
	has      bool
	forest   *topology.Forest
	views    *view.Set
}

// New returns a coordinator with no selection over an empty forest.
func New() *Coordinator {
	f := topology.Empty()
	views, _ := view.Project(f, nil)
	return &Coordinator{forest: f, views: views}
}

// Select records pid. A pid missing from the forest is accepted and resolves
// to a highlight with Found false. It reports whether the selection changed.
func (c *Coordinator) Select(pid int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := !c.has || c.selected != pid
	c.selected, c.has = pid, true
	return changed
}

// Clear unsets the selection and reports whether one was set.
func (c *Coordinator) Clear() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	was := c.has
	c.selected, c.has = 0, false
	return was
}

// Selected returns the selected pid.
func (c *Coordinator) Selected() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected, c.has
}

// AncestorChain returns root -> ... -> pid, or nil for an unknown pid.
func (c *Coordinator) AncestorChain(pid int) []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.forest.Ancestors(pid)
}

// IndexInTableView returns the row position of pid.
func (c *Coordinator) IndexInTableView(pid int) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.views.Table.IndexOf(pid)
}

// IndexInTreeView returns the pre-order position of pid in the tree.
func (c *Coordinator) IndexInTreeView(pid int) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.views.Tree.IndexOf(pid)
}

// Highlight resolves the current selection.
func (c *Coordinator) Highlight() Highlight {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.has {
		return Highlight{}
	}
	h := Highlight{PID: c.selected, Selected: true}
	if !c.forest.Has(c.selected) {
		return h
	}
	h.Found = true
	h.Chain = c.forest.Ancestors(c.selected)
	h.EdgeIDs = c.views.Graph.EdgeIDsAlong(h.Chain)
	if i, ok := c.views.Table.IndexOf(c.selected); ok {
		h.TableIndex = &i
	}
	if i, ok := c.views.Tree.IndexOf(c.selected); ok {
		h.TreeIndex = &i
	}
	return h
}

// Reconcile swaps in a new forest and projections. A selection whose pid is
// gone from the new forest is cleared; the return value reports that.
func (c *Coordinator) Reconcile(f *topology.Forest, views *view.Set) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forest, c.views = f, views
	if c.has && !f.Has(c.selected) {
		c.selected, c.has = 0, false
		return true
	}
	return false
}
