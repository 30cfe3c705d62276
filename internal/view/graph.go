package view

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/iamgilwell/proctopo/internal/topology"
)

// Category groups graph nodes by socket ownership.
type Category string

const (
	CategoryHasSocket Category = "has-socket"
	CategoryNoSocket  Category = "no-socket"
)

// Color returns the node fill color for the category.
func (c Category) Color() string {
	if c == CategoryHasSocket {
		return "#f4a261"
	}
	return "#1f77b4"
}

// GraphNode is one process or placeholder in the node-link graph.
type GraphNode struct {
	ID          string   `json:"id" yaml:"id"`
	PID         int      `json:"pid" yaml:"pid"`
	Label       string   `json:"label" yaml:"label"`
	Info        string   `json:"info" yaml:"info"`
	Category    Category `json:"category" yaml:"category"`
	Color       string   `json:"color" yaml:"color"`
	Placeholder bool     `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
}

// GraphEdge links a parent to one child.
type GraphEdge struct {
	ID     string `json:"id" yaml:"id"`
	Source int    `json:"source" yaml:"source"`
	Target int    `json:"target" yaml:"target"`
}

// EdgeID returns the identifier of the parent -> child edge.
func EdgeID(parent, child int) string {
	return strconv.Itoa(parent) + "-" + strconv.Itoa(child)
}

// Graph holds one node per forest node and one edge per attached child.
type Graph struct {
	Nodes []GraphNode `json:"nodes" yaml:"nodes"`
	Edges []GraphEdge `json:"edges" yaml:"edges"`

	nodeIndex map[int]int
	edgeIndex map[string]int
}

// NewGraph projects f. Nodes are ordered by pid; edges by child pid.
func NewGraph(f *topology.Forest) *Graph {
	pids := slices.Clone(f.PIDs())
	slices.Sort(pids)

	g := &Graph{
		Nodes:     make([]GraphNode, 0, len(pids)),
		Edges:     make([]GraphEdge, 0, len(pids)),
		nodeIndex: make(map[int]int, len(pids)),
		edgeIndex: make(map[string]int, len(pids)),
	}
	for _, pid := range pids {
		n, _ := f.Node(pid)
		cat := CategoryNoSocket
		if n.HasSocket() {
			cat = CategoryHasSocket
		}
		g.nodeIndex[pid] = len(g.Nodes)
		g.Nodes = append(g.Nodes, GraphNode{
			ID:          strconv.Itoa(pid),
			PID:         pid,
			Label:       strconv.Itoa(pid),
			Info:        NodeInfo(n),
			Category:    cat,
			Color:       cat.Color(),
			Placeholder: n.Placeholder,
		})
	}
	for _, pid := range pids {
		if parent := f.ParentOf(pid); parent != 0 {
			id := EdgeID(parent, pid)
			g.edgeIndex[id] = len(g.Edges)
			g.Edges = append(g.Edges, GraphEdge{ID: id, Source: parent, Target: pid})
		}
	}
	return g
}

// Node returns the graph node for pid.
func (g *Graph) Node(pid int) (GraphNode, bool) {
	i, ok := g.nodeIndex[pid]
	if !ok {
		return GraphNode{}, false
	}
	return g.Nodes[i], true
}

// HasEdge reports whether an edge with id exists.
func (g *Graph) HasEdge(id string) bool {
	_, ok := g.edgeIndex[id]
	return ok
}

// EdgeIDsAlong returns the ids of the edges joining consecutive pids of a
// root-first chain.
func (g *Graph) EdgeIDsAlong(chain []int) []string {
	var ids []string
	for i := 1; i < len(chain); i++ {
		if id := EdgeID(chain[i-1], chain[i]); g.HasEdge(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// NodeInfo renders the multi-line detail label of a node, skipping absent
// parts.
func NodeInfo(n *topology.Node) string {
	if n.Placeholder {
		return fmt.Sprintf("(unknown)\npid: %d", n.PID)
	}
	r := n.Record
	lines := []string{r.Name, fmt.Sprintf("pid: %d", r.PID)}
	if r.HasParent() {
		lines = append(lines, fmt.Sprintf("ppid: %d", r.ParentPID))
	}
	if r.MemoryBytes != nil {
		lines = append(lines, "mem: "+FormatMemory(r.MemoryBytes))
	}
	if s := n.Socket; s != nil {
		lines = append(lines, fmt.Sprintf("local: %s:%d", s.LocalAddr, s.LocalPort))
		if s.RemoteAddr != "" {
			lines = append(lines, fmt.Sprintf("remote: %s:%d", s.RemoteAddr, s.RemotePort))
		}
	}
	return strings.Join(lines, "\n")
}
