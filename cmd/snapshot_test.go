package cmd

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/iamgilwell/proctopo/internal/engine"
	"github.com/iamgilwell/proctopo/internal/ordering"
	"github.com/iamgilwell/proctopo/internal/query"
	"github.com/iamgilwell/proctopo/internal/view"
)

func loadedSnapshot(t *testing.T) *engine.Snapshot {
	t.Helper()
	eng, err := engine.New([]ordering.Key{{Field: ordering.FieldPID, Direction: ordering.Asc}}, nil, nil)
	require.NoError(t, err)

	eng.BeginRefresh(1)
	require.NoError(t, eng.ApplyRefresh(1, query.Result{
		Processes: []query.ProcessRecord{
			{PID: 1, Name: "init"},
			{PID: 2, ParentPID: 1, Name: "server"},
			{PID: 3, ParentPID: 1, Name: "sh"},
			{PID: 4, ParentPID: 99, Name: "orphan"},
		},
		Sockets:   []query.SocketRecord{{PIDs: []int{2}, LocalAddr: "127.0.0.1", LocalPort: 8080}},
		FetchedAt: time.Now(),
	}))
	return eng.Snapshot()
}

func TestRenderSnapshotText(t *testing.T) {
	snap := loadedSnapshot(t)

	tests := []struct {
		name     string
		view     string
		contains []string
	}{
		{"table", "table", []string{"PID", "server", "127.0.0.1", "8080"}},
		{"tree", "tree", []string{"1 init\n  2 server\n  3 sh\n99 (unknown)\n  4 orphan\n"}},
		{"graph", "graph", []string{"node 2 [has-socket] 2", "node 99 [no-socket] 99", "edge 99-4 99 -> 4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, renderSnapshot(&buf, snap, tt.view, "text"))
			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestRenderSnapshotJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderSnapshot(&buf, loadedSnapshot(t), "table", "json"))

	var rows []view.TableRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	pids := make([]int, len(rows))
	for i, r := range rows {
		pids[i] = r.PID
	}
	assert.Equal(t, []int{1, 2, 3, 4}, pids)
}

func TestRenderSnapshotYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderSnapshot(&buf, loadedSnapshot(t), "tree", "yaml"))

	var items []view.TreeItem
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &items))
	require.Len(t, items, 5)
	assert.Equal(t, 99, items[3].PID)
	assert.True(t, items[3].Placeholder)
}

func TestRenderSnapshotRejectsUnknown(t *testing.T) {
	snap := loadedSnapshot(t)
	var buf bytes.Buffer
	assert.Error(t, renderSnapshot(&buf, snap, "pie", "text"))
	assert.Error(t, renderSnapshot(&buf, snap, "table", "xml"))
}
