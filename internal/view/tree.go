package view

import (
	"strconv"

	"github.com/iamgilwell/proctopo/internal/ordering"
	"github.com/iamgilwell/proctopo/internal/topology"
)

// treeKeys is the fixed sibling order of the tree, independent of the table.
var treeKeys = []ordering.Key{
	{Field: ordering.FieldPID, Direction: ordering.Asc},
	{Field: ordering.FieldName, Direction: ordering.Asc},
}

// TreeItem is one line of the flattened tree.
type TreeItem struct {
	Index int `json:"index" yaml:"index"`
	PID   int `json:"pid" yaml:"pid"`
	Depth int `json:"depth" yaml:"depth"`
	// Ancestors are the pids above the item, root first.
	Ancestors   []int  `json:"ancestors" yaml:"ancestors"`
	Name        string `json:"name" yaml:"name"`
	Placeholder bool   `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	CycleBroken bool   `json:"cycle_broken,omitempty" yaml:"cycle_broken,omitempty"`
	HasSocket   bool   `json:"has_socket" yaml:"has_socket"`
	ChildCount  int    `json:"child_count" yaml:"child_count"`
}

type sibling struct {
	pid  int
	name string
}

func (s sibling) SortValue(f ordering.Field) string {
	switch f {
	case ordering.FieldPID:
		return strconv.Itoa(s.pid)
	case ordering.FieldName:
		return s.name
	}
	return ""
}

// Tree is the depth-first pre-order flattening of the forest. Items are
// derived on demand from the sorted roots and children; only subtree sizes
// are precomputed so that At and IndexOf avoid a full walk.
type Tree struct {
	forest   *topology.Forest
	roots    []int
	children map[int][]int
	size     map[int]int
	count    int
}

// NewTree sorts roots and every child list by pid then name.
func NewTree(f *topology.Forest) *Tree {
	t := &Tree{
		forest:   f,
		children: make(map[int][]int, f.Len()),
		size:     make(map[int]int, f.Len()),
	}
	t.roots = t.sorted(f.Roots())
	for _, pid := range f.PIDs() {
		if kids := f.ChildrenOf(pid); len(kids) > 0 {
			t.children[pid] = t.sorted(kids)
		}
	}
	for _, r := range t.roots {
		t.count += t.measure(r)
	}
	return t
}

func (t *Tree) sorted(pids []int) []int {
	sibs := make([]sibling, len(pids))
	for i, pid := range pids {
		n, _ := t.forest.Node(pid)
		sibs[i] = sibling{pid: pid, name: n.Record.Name}
	}
	mustSort(sibs, treeKeys)
	out := make([]int, len(sibs))
	for i, s := range sibs {
		out[i] = s.pid
	}
	return out
}

// mustSort sorts with keys fixed at compile time; an error there is a bug.
func mustSort[T ordering.Sortable](items []T, keys []ordering.Key) {
	if err := ordering.Sort(items, keys); err != nil {
		panic("view: " + err.Error())
	}
}

// measure fills subtree sizes bottom-up without recursion.
func (t *Tree) measure(root int) int {
	type frame struct {
		pid  int
		done bool
	}
	stack := []frame{{pid: root}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.done {
			n := 1
			for _, c := range t.children[top.pid] {
				n += t.size[c]
			}
			t.size[top.pid] = n
			continue
		}
		stack = append(stack, frame{pid: top.pid, done: true})
		for _, c := range t.children[top.pid] {
			stack = append(stack, frame{pid: c})
		}
	}
	return t.size[root]
}

// Len returns the number of flattened items, placeholders included.
func (t *Tree) Len() int { return t.count }

// Roots returns the sorted roots.
func (t *Tree) Roots() []int { return t.roots }

// Children returns the sorted children of pid.
func (t *Tree) Children(pid int) []int { return t.children[pid] }

// At returns the item at flattened index i.
func (t *Tree) At(i int) (TreeItem, bool) {
	if i < 0 || i >= t.count {
		return TreeItem{}, false
	}
	var ancestors []int
	siblings := t.roots
	rest := i
	for {
		next := 0
		for _, pid := range siblings {
			if sz := t.size[pid]; rest >= sz {
				rest -= sz
				continue
			}
			next = pid
			break
		}
		if next == 0 {
			return TreeItem{}, false
		}
		if rest == 0 {
			return t.item(i, next, ancestors), true
		}
		rest--
		ancestors = append(ancestors, next)
		siblings = t.children[next]
	}
}

// IndexOf returns the flattened position of pid. It reproduces the pre-order
// enumeration by summing the sizes of earlier siblings along the ancestor
// chain.
func (t *Tree) IndexOf(pid int) (int, bool) {
	chain := t.forest.Ancestors(pid)
	if len(chain) == 0 {
		return 0, false
	}
	idx := 0
	siblings := t.roots
	for depth, a := range chain {
		found := false
		for _, s := range siblings {
			if s == a {
				found = true
				break
			}
			idx += t.size[s]
		}
		if !found {
			return 0, false
		}
		if depth < len(chain)-1 {
			idx++
			siblings = t.children[a]
		}
	}
	return idx, true
}

// Walk visits items in pre-order starting at index offset until fn returns
// false.
func (t *Tree) Walk(offset int, fn func(TreeItem) bool) {
	if offset < 0 {
		offset = 0
	}
	type frame struct {
		pid       int
		ancestors []int
	}
	var stack []frame
	for i := len(t.roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{pid: t.roots[i]})
	}
	idx := 0
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if idx+t.size[top.pid] <= offset {
			idx += t.size[top.pid]
			continue
		}
		if idx >= offset && !fn(t.item(idx, top.pid, top.ancestors)) {
			return
		}
		idx++
		kids := t.children[top.pid]
		if len(kids) == 0 {
			continue
		}
		next := make([]int, len(top.ancestors)+1)
		copy(next, top.ancestors)
		next[len(top.ancestors)] = top.pid
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{pid: kids[i], ancestors: next})
		}
	}
}

// Items returns up to limit items starting at offset. A limit <= 0 means all.
func (t *Tree) Items(offset, limit int) []TreeItem {
	var out []TreeItem
	t.Walk(offset, func(it TreeItem) bool {
		out = append(out, it)
		return limit <= 0 || len(out) < limit
	})
	return out
}

func (t *Tree) item(index, pid int, ancestors []int) TreeItem {
	n, _ := t.forest.Node(pid)
	return TreeItem{
		Index:       index,
		PID:         pid,
		Depth:       len(ancestors),
		Ancestors:   append([]int{}, ancestors...),
		Name:        n.Record.Name,
		Placeholder: n.Placeholder,
		CycleBroken: n.CycleBroken,
		HasSocket:   n.HasSocket(),
		ChildCount:  len(t.children[pid]),
	}
}
