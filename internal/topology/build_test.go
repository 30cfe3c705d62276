package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamgilwell/proctopo/internal/query"
)

func rec(pid, ppid int) query.ProcessRecord {
	return query.ProcessRecord{PID: pid, ParentPID: ppid}
}

// occurrences counts every pid reachable from the roots.
func occurrences(f *Forest) map[int]int {
	seen := make(map[int]int)
	var walk func(pid int)
	walk = func(pid int) {
		seen[pid]++
		for _, c := range f.ChildrenOf(pid) {
			walk(c)
		}
	}
	for _, r := range f.Roots() {
		walk(r)
	}
	return seen
}

func TestBuildScenario(t *testing.T) {
	f, err := Build([]query.ProcessRecord{rec(1, 0), rec(2, 1), rec(3, 1), rec(4, 99)}, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 99}, f.Roots())
	assert.Equal(t, []int{2, 3}, f.ChildrenOf(1))
	assert.Equal(t, []int{4}, f.ChildrenOf(99))

	ph, ok := f.Node(99)
	require.True(t, ok)
	assert.True(t, ph.Placeholder)
	assert.Equal(t, Stats{Nodes: 5, Placeholders: 1}, f.Stats())
}

func TestBuildUniqueness(t *testing.T) {
	tests := []struct {
		name    string
		records []query.ProcessRecord
	}{
		{"empty", nil},
		{"flat", []query.ProcessRecord{rec(1, 0), rec(2, 0), rec(3, 0)}},
		{"chain", []query.ProcessRecord{rec(3, 2), rec(2, 1), rec(1, 0)}},
		{"shared missing parent", []query.ProcessRecord{rec(5, 40), rec(6, 40), rec(7, 41)}},
		{"two cycle", []query.ProcessRecord{rec(10, 11), rec(11, 10)}},
		{"self parent", []query.ProcessRecord{rec(7, 7), rec(8, 7)}},
		{"cycle with tail", []query.ProcessRecord{rec(20, 21), rec(21, 22), rec(22, 20), rec(23, 21), rec(1, 0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Build(tt.records, nil)
			require.NoError(t, err)

			seen := occurrences(f)
			assert.Len(t, seen, f.Len())
			for pid, n := range seen {
				assert.Equal(t, 1, n, "pid %d", pid)
			}
			for _, r := range tt.records {
				assert.Contains(t, seen, r.PID, "record %d dropped", r.PID)
			}
		})
	}
}

func TestBuildSinglePlaceholderPerMissingParent(t *testing.T) {
	f, err := Build([]query.ProcessRecord{rec(5, 40), rec(6, 40), rec(7, 41)}, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{40, 41}, f.Roots())
	assert.Equal(t, []int{5, 6}, f.ChildrenOf(40))
	assert.Equal(t, 2, f.Stats().Placeholders)
}

func TestBuildBreaksCycle(t *testing.T) {
	f, err := Build([]query.ProcessRecord{rec(10, 11), rec(11, 10)}, nil)
	require.NoError(t, err)

	require.Len(t, f.Roots(), 1)
	root, _ := f.Node(f.Roots()[0])
	assert.True(t, root.CycleBroken)
	assert.True(t, root.IsRoot())
	assert.Equal(t, 1, f.Stats().CyclesBroken)
	assert.Equal(t, 2, f.Len())
}

func TestBuildCycleKeepsTailAttached(t *testing.T) {
	f, err := Build([]query.ProcessRecord{rec(23, 21), rec(20, 21), rec(21, 22), rec(22, 20)}, nil)
	require.NoError(t, err)

	// 23 hangs off the cycle and keeps its real parent.
	assert.Equal(t, 21, f.ParentOf(23))
	assert.Len(t, f.Roots(), 1)
}

func TestBuildRejectsBadInput(t *testing.T) {
	_, err := Build([]query.ProcessRecord{rec(1, 0), rec(2, 1), rec(1, 0)}, nil)
	assert.ErrorIs(t, err, ErrDuplicateProcessID)
	var dup *DuplicateProcessIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, 1, dup.PID)

	_, err = Build([]query.ProcessRecord{rec(0, 0)}, nil)
	assert.ErrorIs(t, err, ErrInvalidProcessID)
}

func TestBuildAssociatesFirstSocket(t *testing.T) {
	sockets := []query.SocketRecord{
		{PIDs: []int{2}, LocalPort: 8080},
		{PIDs: []int{2, 3}, LocalPort: 9090},
		{PIDs: []int{99}, LocalPort: 1},
	}
	f, err := Build([]query.ProcessRecord{rec(1, 0), rec(2, 1), rec(3, 1), rec(4, 99)}, sockets)
	require.NoError(t, err)

	n2, _ := f.Node(2)
	require.NotNil(t, n2.Socket)
	assert.Equal(t, 8080, n2.Socket.LocalPort)
	assert.Equal(t, 2, n2.SocketCount)

	n3, _ := f.Node(3)
	assert.Equal(t, 9090, n3.Socket.LocalPort)

	n1, _ := f.Node(1)
	assert.False(t, n1.HasSocket())

	ph, _ := f.Node(99)
	assert.False(t, ph.HasSocket())
}

func TestAncestorsAndDescendants(t *testing.T) {
	f, err := Build([]query.ProcessRecord{rec(1, 0), rec(2, 1), rec(3, 2), rec(4, 3), rec(5, 1)}, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4}, f.Ancestors(4))
	assert.Equal(t, []int{1}, f.Ancestors(1))
	assert.Nil(t, f.Ancestors(42))
	assert.Equal(t, 3, f.Depth(4))
	assert.ElementsMatch(t, []int{2, 5, 3, 4}, f.Descendants(1))
	assert.Empty(t, f.Descendants(4))
}

func TestEmptyForest(t *testing.T) {
	f := Empty()
	assert.Zero(t, f.Len())
	assert.Empty(t, f.Roots())
	assert.False(t, f.Has(1))
}
