package view

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamgilwell/proctopo/internal/ordering"
	"github.com/iamgilwell/proctopo/internal/query"
	"github.com/iamgilwell/proctopo/internal/topology"
)

func scenarioForest(t *testing.T, sockets []query.SocketRecord) *topology.Forest {
	t.Helper()
	f, err := topology.Build([]query.ProcessRecord{
		{PID: 1},
		{PID: 2, ParentPID: 1},
		{PID: 3, ParentPID: 1},
		{PID: 4, ParentPID: 99},
	}, sockets)
	require.NoError(t, err)
	return f
}

func tablePIDs(tb *Table) []int {
	out := make([]int, tb.Len())
	for i, r := range tb.Rows() {
		out[i] = r.PID
	}
	return out
}

// preorder is an independent recursive flattening used as a reference.
func preorder(tr *Tree) []int {
	var out []int
	var visit func(pid int)
	visit = func(pid int) {
		out = append(out, pid)
		for _, c := range tr.Children(pid) {
			visit(c)
		}
	}
	for _, r := range tr.Roots() {
		visit(r)
	}
	return out
}

func TestTableScenario(t *testing.T) {
	f := scenarioForest(t, nil)
	tb, err := NewTable(f, []ordering.Key{{Field: ordering.FieldName, Direction: ordering.Asc}})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4}, tablePIDs(tb))
	_, ok := tb.IndexOf(99)
	assert.False(t, ok, "placeholders are not table rows")
}

func TestTableSortKeys(t *testing.T) {
	f, err := topology.Build([]query.ProcessRecord{
		{PID: 10, Name: "zsh", MemoryBytes: query.Uint64(300)},
		{PID: 2, Name: "Bash", MemoryBytes: query.Uint64(4000)},
		{PID: 7, Name: "bash"},
		{PID: 30, Name: "init", MemoryBytes: query.Uint64(25)},
	}, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		keys []string
		want []int
	}{
		{"memory asc absent first", []string{"memory"}, []int{7, 30, 10, 2}},
		{"memory desc absent last", []string{"memory:desc"}, []int{2, 10, 30, 7}},
		{"name then tie-break pid", []string{"name"}, []int{2, 7, 30, 10}},
		{"pid natural", []string{"pid"}, []int{2, 7, 10, 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := ordering.ParseKeys(tt.keys)
			require.NoError(t, err)
			tb, err := NewTable(f, keys)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tablePIDs(tb))
		})
	}
}

func TestTableRejectsUnknownKey(t *testing.T) {
	_, err := NewTable(topology.Empty(), []ordering.Key{{Field: "cpu", Direction: ordering.Asc}})
	assert.ErrorIs(t, err, ordering.ErrUnsupportedSortKey)
}

func TestTreeScenario(t *testing.T) {
	tr := NewTree(scenarioForest(t, nil))

	assert.Equal(t, 5, tr.Len())
	assert.Equal(t, []int{1, 2, 3, 99, 4}, preorder(tr))

	it, ok := tr.At(4)
	require.True(t, ok)
	assert.Equal(t, 4, it.PID)
	assert.Equal(t, 1, it.Depth)
	assert.Equal(t, []int{99}, it.Ancestors)

	it, _ = tr.At(3)
	assert.True(t, it.Placeholder)

	_, ok = tr.At(5)
	assert.False(t, ok)
}

func TestTreeIndexFidelity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 25; round++ {
		n := 1 + rng.Intn(60)
		perm := rng.Perm(n)
		records := make([]query.ProcessRecord, n)
		for i := range records {
			pid := perm[i] + 1
			ppid := 0
			switch rng.Intn(4) {
			case 0:
			case 1:
				ppid = 1000 + rng.Intn(3) // missing parent
			default:
				ppid = rng.Intn(n) + 1 // may form cycles
			}
			records[i] = query.ProcessRecord{PID: pid, ParentPID: ppid}
		}

		f, err := topology.Build(records, nil)
		require.NoError(t, err)
		tr := NewTree(f)
		ref := preorder(tr)
		require.Len(t, ref, tr.Len())

		for i, pid := range ref {
			idx, ok := tr.IndexOf(pid)
			require.True(t, ok)
			assert.Equal(t, i, idx, "round %d pid %d", round, pid)

			it, ok := tr.At(i)
			require.True(t, ok)
			assert.Equal(t, pid, it.PID)
		}

		var walked []int
		tr.Walk(0, func(it TreeItem) bool {
			walked = append(walked, it.PID)
			return true
		})
		assert.Equal(t, ref, walked)
	}
}

func TestTreeSiblingKeys(t *testing.T) {
	require.NoError(t, ordering.Validate(treeKeys))
	assert.Panics(t, func() {
		mustSort([]sibling{{pid: 2}, {pid: 1}}, []ordering.Key{{Field: "bogus", Direction: ordering.Asc}})
	})

	sibs := []sibling{{pid: 10, name: "b"}, {pid: 9, name: "a"}}
	mustSort(sibs, treeKeys)
	assert.Equal(t, 9, sibs[0].pid)
}

func TestTreeItemsWindow(t *testing.T) {
	tr := NewTree(scenarioForest(t, nil))

	items := tr.Items(2, 2)
	require.Len(t, items, 2)
	assert.Equal(t, 3, items[0].PID)
	assert.Equal(t, 2, items[0].Index)
	assert.Equal(t, 99, items[1].PID)
	assert.Equal(t, 0, items[1].Depth)

	assert.Len(t, tr.Items(0, 0), 5)
	assert.Empty(t, tr.Items(10, 3))
}

func TestGraphScenario(t *testing.T) {
	f := scenarioForest(t, []query.SocketRecord{{PIDs: []int{2}, LocalAddr: "127.0.0.1", LocalPort: 8080}})
	g := NewGraph(f)

	require.Len(t, g.Nodes, 5)
	for _, n := range g.Nodes {
		want := CategoryNoSocket
		if n.PID == 2 {
			want = CategoryHasSocket
		}
		assert.Equal(t, want, n.Category, "pid %d", n.PID)
	}
	n2, _ := g.Node(2)
	assert.Equal(t, "#f4a261", n2.Color)
	assert.Contains(t, n2.Info, "local: 127.0.0.1:8080")

	ids := make(map[string]bool)
	for _, e := range g.Edges {
		assert.False(t, ids[e.ID], "duplicate edge %s", e.ID)
		ids[e.ID] = true
	}
	assert.ElementsMatch(t, []string{"1-2", "1-3", "99-4"}, keys(ids))
	assert.Equal(t, []string{"99-4"}, g.EdgeIDsAlong([]int{99, 4}))
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestProjectEmpty(t *testing.T) {
	s, err := Project(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, s.Table.Len())
	assert.Zero(t, s.Tree.Len())
	assert.Empty(t, s.Graph.Nodes)
	assert.Empty(t, s.Graph.Edges)
}

func TestNodeInfo(t *testing.T) {
	f, err := topology.Build([]query.ProcessRecord{
		{PID: 5, ParentPID: 1, Name: "nginx", MemoryBytes: query.Uint64(1234567)},
	}, nil)
	require.NoError(t, err)
	n, _ := f.Node(5)
	assert.Equal(t, "nginx\npid: 5\nppid: 1\nmem: 1,234,567", NodeInfo(n))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", FormatMemory(nil))
	assert.Equal(t, "1,024", FormatMemory(query.Uint64(1024)))
	assert.Equal(t, "", FormatUptime(nil))
	assert.Equal(t, "01:01:05", FormatUptime(query.Uint64(3665)))
}
