// Package view projects a topology forest into the three read-only view
// models: a sorted flat table, an index-addressable tree and a node/edge
// graph. Projections are rebuilt from scratch and never mutated.
package view

import (
	"strconv"

	"github.com/iamgilwell/proctopo/internal/ordering"
	"github.com/iamgilwell/proctopo/internal/query"
	"github.com/iamgilwell/proctopo/internal/topology"
)

// tableTieBreak is appended after the active keys so equal rows still get a
// deterministic order.
var tableTieBreak = []ordering.Key{
	{Field: ordering.FieldParentPID, Direction: ordering.Asc},
	{Field: ordering.FieldPID, Direction: ordering.Asc},
	{Field: ordering.FieldName, Direction: ordering.Asc},
}

// TableRow is one process in the flat table.
type TableRow struct {
	PID            int            `json:"pid" yaml:"pid"`
	ParentPID      int            `json:"ppid,omitempty" yaml:"ppid,omitempty"`
	Name           string         `json:"name" yaml:"name"`
	ExecutablePath string         `json:"exe,omitempty" yaml:"exe,omitempty"`
	MemoryBytes    *uint64        `json:"memory,omitempty" yaml:"memory,omitempty"`
	UptimeSeconds  *uint64        `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	CPUPercent     float64        `json:"cpu_usage" yaml:"cpu_usage"`
	Protocol       query.Protocol `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	LocalAddr      string         `json:"local_addr,omitempty" yaml:"local_addr,omitempty"`
	LocalPort      int            `json:"local_port,omitempty" yaml:"local_port,omitempty"`
	RemoteAddr     string         `json:"remote_addr,omitempty" yaml:"remote_addr,omitempty"`
	RemotePort     int            `json:"remote_port,omitempty" yaml:"remote_port,omitempty"`
	State          string         `json:"state,omitempty" yaml:"state,omitempty"`
	HasSocket      bool           `json:"has_socket" yaml:"has_socket"`
}

func newTableRow(n *topology.Node) TableRow {
	r := n.Record
	row := TableRow{
		PID:            r.PID,
		ParentPID:      r.ParentPID,
		Name:           r.Name,
		ExecutablePath: r.ExecutablePath,
		MemoryBytes:    r.MemoryBytes,
		UptimeSeconds:  r.UptimeSeconds,
		CPUPercent:     r.CPUPercent,
		HasSocket:      n.HasSocket(),
	}
	if s := n.Socket; s != nil {
		row.Protocol = s.Protocol
		row.LocalAddr = s.LocalAddr
		row.LocalPort = s.LocalPort
		row.RemoteAddr = s.RemoteAddr
		row.RemotePort = s.RemotePort
		row.State = s.State
	}
	return row
}

// SortValue implements ordering.Sortable. Absent values are "".
func (r TableRow) SortValue(f ordering.Field) string {
	switch f {
	case ordering.FieldPID:
		return strconv.Itoa(r.PID)
	case ordering.FieldParentPID:
		if r.ParentPID > 0 {
			return strconv.Itoa(r.ParentPID)
		}
	case ordering.FieldName:
		return r.Name
	case ordering.FieldAddr:
		return r.LocalAddr
	case ordering.FieldPort:
		if r.HasSocket {
			return strconv.Itoa(r.LocalPort)
		}
	case ordering.FieldMemory:
		if r.MemoryBytes != nil {
			return strconv.FormatUint(*r.MemoryBytes, 10)
		}
	case ordering.FieldUptime:
		if r.UptimeSeconds != nil {
			return strconv.FormatUint(*r.UptimeSeconds, 10)
		}
	}
	return ""
}

// Table is the flat, sorted list of every real process. Placeholders are
// tree and graph structure only and never appear as rows.
type Table struct {
	rows  []TableRow
	index map[int]int
	keys  []ordering.Key
}

// NewTable sorts every real node of f by keys followed by the fixed
// tie-break chain.
func NewTable(f *topology.Forest, keys []ordering.Key) (*Table, error) {
	if err := ordering.Validate(keys); err != nil {
		return nil, err
	}

	rows := make([]TableRow, 0, f.Len())
	for _, pid := range f.PIDs() {
		n, _ := f.Node(pid)
		if n.Placeholder {
			continue
		}
		rows = append(rows, newTableRow(n))
	}

	chain := make([]ordering.Key, 0, len(keys)+len(tableTieBreak))
	chain = append(chain, keys...)
	chain = append(chain, tableTieBreak...)
	if err := ordering.Sort(rows, chain); err != nil {
		return nil, err
	}

	t := &Table{rows: rows, index: make(map[int]int, len(rows)), keys: append([]ordering.Key(nil), keys...)}
	for i, r := range rows {
		t.index[r.PID] = i
	}
	return t, nil
}

// Len returns the row count.
func (t *Table) Len() int { return len(t.rows) }

// At returns row i.
func (t *Table) At(i int) TableRow { return t.rows[i] }

// Rows returns all rows in display order. Callers must not modify the slice.
func (t *Table) Rows() []TableRow { return t.rows }

// Keys returns the active sort keys the table was built with.
func (t *Table) Keys() []ordering.Key { return t.keys }

// IndexOf returns the row position of pid.
func (t *Table) IndexOf(pid int) (int, bool) {
	i, ok := t.index[pid]
	return i, ok
}
