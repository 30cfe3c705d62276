package view

import (
	"github.com/iamgilwell/proctopo/internal/ordering"
	"github.com/iamgilwell/proctopo/internal/topology"
)

// Set is the three projections of one forest.
type Set struct {
	Table *Table
	Tree  *Tree
	Graph *Graph
}

// Project builds all three views. It fails only on an invalid sort key, in
// which case nothing is returned.
func Project(f *topology.Forest, keys []ordering.Key) (*Set, error) {
	if f == nil {
		f = topology.Empty()
	}
	table, err := NewTable(f, keys)
	if err != nil {
		return nil, err
	}
	return &Set{Table: table, Tree: NewTree(f), Graph: NewGraph(f)}, nil
}

// Resort returns a copy of s with the table re-sorted by keys. Tree and
// graph are shared since they do not depend on the sort order.
func (s *Set) Resort(f *topology.Forest, keys []ordering.Key) (*Set, error) {
	table, err := NewTable(f, keys)
	if err != nil {
		return nil, err
	}
	return &Set{Table: table, Tree: s.Tree, Graph: s.Graph}, nil
}
