// Package topology rebuilds the parent/child hierarchy of a flat process
// list into a forest. Nodes live in an arena keyed by pid; a node's parent
// is stored as a pid, never as a pointer.
package topology

import (
	"errors"
	"fmt"

	"github.com/iamgilwell/proctopo/internal/query"
)

var (
	// ErrDuplicateProcessID aborts a build when two records share a pid.
	ErrDuplicateProcessID = errors.New("duplicate process id")
	// ErrInvalidProcessID aborts a build when a record has a pid <= 0.
	ErrInvalidProcessID = errors.New("invalid process id")
)

// DuplicateProcessIDError names the offending pid.
type DuplicateProcessIDError struct {
	PID int
}

func (e *DuplicateProcessIDError) Error() string {
	return fmt.Sprintf("%v: %d", ErrDuplicateProcessID, e.PID)
}

func (e *DuplicateProcessIDError) Unwrap() error {
	return ErrDuplicateProcessID
}

// Node is one process in the forest, or a placeholder for a parent pid that
// no record carries.
type Node struct {
	PID    int
	Record query.ProcessRecord
	// Parent is the pid of the attached parent, 0 for roots.
	Parent      int
	Children    []int
	Placeholder bool
	// CycleBroken marks a record detached from its parent to break a cycle.
	CycleBroken bool
	// Socket is the first socket, in fetch order, owned by the process.
	Socket      *query.SocketRecord
	SocketCount int
}

// HasSocket reports whether the process owns at least one socket.
func (n *Node) HasSocket() bool {
	return n.SocketCount > 0
}

// IsRoot reports whether the node has no attached parent.
func (n *Node) IsRoot() bool {
	return n.Parent == 0
}

// Forest is an immutable set of disjoint rooted trees.
type Forest struct {
	nodes        map[int]*Node
	roots        []int
	order        []int
	placeholders int
	cyclesBroken int
}

// Stats summarizes a build.
type Stats struct {
	Nodes        int
	Placeholders int
	CyclesBroken int
}

// Empty returns a forest with no nodes.
func Empty() *Forest {
	return &Forest{nodes: make(map[int]*Node)}
}

// Node returns the node for pid, real or placeholder.
func (f *Forest) Node(pid int) (*Node, bool) {
	n, ok := f.nodes[pid]
	return n, ok
}

// Has reports whether pid is a key in the forest.
func (f *Forest) Has(pid int) bool {
	_, ok := f.nodes[pid]
	return ok
}

// Roots returns root pids in build order.
func (f *Forest) Roots() []int {
	return f.roots
}

// Len returns the number of nodes including placeholders.
func (f *Forest) Len() int {
	return len(f.nodes)
}

// PIDs returns every node pid: real records in input order, then
// placeholders in the order they were first referenced.
func (f *Forest) PIDs() []int {
	return f.order
}

// Stats returns node, placeholder and broken-cycle counts.
func (f *Forest) Stats() Stats {
	return Stats{Nodes: len(f.nodes), Placeholders: f.placeholders, CyclesBroken: f.cyclesBroken}
}

// ChildrenOf returns the direct children of pid.
func (f *Forest) ChildrenOf(pid int) []int {
	if n, ok := f.nodes[pid]; ok {
		return n.Children
	}
	return nil
}

// ParentOf returns the attached parent of pid, 0 for roots and unknown pids.
func (f *Forest) ParentOf(pid int) int {
	if n, ok := f.nodes[pid]; ok {
		return n.Parent
	}
	return 0
}

// Descendants returns all descendants of pid, breadth first.
func (f *Forest) Descendants(pid int) []int {
	var result []int
	queue := append([]int(nil), f.ChildrenOf(pid)...)
	visited := map[int]bool{pid: true}

	for len(queue) > 0 {
		child := queue[0]
		queue = queue[1:]
		if visited[child] {
			continue
		}
		visited[child] = true
		result = append(result, child)
		queue = append(queue, f.ChildrenOf(child)...)
	}
	return result
}

// Ancestors returns the chain root -> ... -> pid. The walk is bounded by the
// node count, so it terminates even on a corrupted parent chain. Unknown pids
// yield nil.
func (f *Forest) Ancestors(pid int) []int {
	if !f.Has(pid) {
		return nil
	}
	chain := []int{pid}
	seen := map[int]bool{pid: true}
	cur := pid
	for i := 0; i < len(f.nodes); i++ {
		parent := f.ParentOf(cur)
		if parent == 0 || seen[parent] || !f.Has(parent) {
			break
		}
		seen[parent] = true
		chain = append(chain, parent)
		cur = parent
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Depth returns the number of ancestors above pid.
func (f *Forest) Depth(pid int) int {
	if chain := f.Ancestors(pid); len(chain) > 0 {
		return len(chain) - 1
	}
	return 0
}
