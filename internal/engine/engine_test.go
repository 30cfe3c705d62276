package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamgilwell/proctopo/internal/ordering"
	"github.com/iamgilwell/proctopo/internal/query"
	"github.com/iamgilwell/proctopo/internal/refresh"
	"github.com/iamgilwell/proctopo/internal/topology"
)

var byName = []ordering.Key{{Field: ordering.FieldName, Direction: ordering.Asc}}

func scenario() query.Result {
	return query.Result{
		Processes: []query.ProcessRecord{
			{PID: 1},
			{PID: 2, ParentPID: 1, ExecutablePath: "/usr/bin/server"},
			{PID: 3, ParentPID: 1},
			{PID: 4, ParentPID: 99},
		},
		Sockets:   []query.SocketRecord{{PIDs: []int{2}, LocalPort: 8080}},
		FetchedAt: time.Now(),
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []EventType
}

func (l *eventLog) record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev.Type)
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]EventType(nil), l.events...)
}

func newEngine(t *testing.T) (*Engine, *eventLog) {
	t.Helper()
	e, err := New(byName, nil, nil)
	require.NoError(t, err)
	log := &eventLog{}
	e.OnChange(log.record)
	return e, log
}

func tablePIDs(s *Snapshot) []int {
	var out []int
	for _, r := range s.Views.Table.Rows() {
		out = append(out, r.PID)
	}
	return out
}

func TestApplyScenario(t *testing.T) {
	e, log := newEngine(t)
	assert.False(t, e.Snapshot().Ready())

	e.BeginRefresh(1)
	assert.True(t, e.Snapshot().Stale)
	require.NoError(t, e.ApplyRefresh(1, scenario()))

	s := e.Snapshot()
	assert.True(t, s.Ready())
	assert.Equal(t, uint64(1), s.Generation)
	assert.Equal(t, []int{1, 99}, s.Forest.Roots())
	assert.Equal(t, []int{1, 2, 3, 4}, tablePIDs(s))

	n2, _ := s.Views.Graph.Node(2)
	assert.Equal(t, "has-socket", string(n2.Category))
	n3, _ := s.Views.Graph.Node(3)
	assert.Equal(t, "no-socket", string(n3.Category))

	assert.Equal(t, []EventType{EventRefreshStarted, EventRefreshApplied}, log.types())
}

func TestFailedRefreshKeepsViews(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.ApplyRefresh(1, scenario()))
	before := e.Snapshot()

	e.BeginRefresh(2)
	e.FailRefresh(2, &query.QueryError{Op: "listSockets", Err: errors.New("boom")})

	after := e.Snapshot()
	assert.Same(t, before.Views, after.Views)
	assert.Same(t, before.Forest, after.Forest)
	assert.False(t, after.Stale)
	assert.ErrorIs(t, after.LastError, query.ErrQueryFailure)
	assert.Equal(t, uint64(1), after.Generation)
}

func TestDuplicatePIDRejected(t *testing.T) {
	e, log := newEngine(t)
	require.NoError(t, e.ApplyRefresh(1, scenario()))
	before := e.Snapshot()

	bad := scenario()
	bad.Processes = append(bad.Processes, query.ProcessRecord{PID: 3})
	err := e.ApplyRefresh(2, bad)
	assert.ErrorIs(t, err, topology.ErrDuplicateProcessID)

	after := e.Snapshot()
	assert.Same(t, before.Forest, after.Forest)
	assert.ErrorIs(t, after.LastError, topology.ErrDuplicateProcessID)
	assert.Contains(t, log.types(), EventRefreshFailed)
}

func TestListenersSeeEveryEvent(t *testing.T) {
	e, log := newEngine(t)

	var late eventLog
	var once sync.Once
	e.OnChange(func(ev Event) {
		// Registering from inside a listener must not deadlock; the new
		// listener only sees later emits.
		once.Do(func() { e.OnChange(late.record) })
	})

	e.Select(1)
	e.Clear()

	assert.Equal(t, []EventType{EventSelection, EventSelection}, log.types())
	assert.Equal(t, []EventType{EventSelection}, late.types())
}

func TestRefreshClearsSelection(t *testing.T) {
	e, log := newEngine(t)
	require.NoError(t, e.ApplyRefresh(1, scenario()))

	h := e.Select(3)
	assert.True(t, h.Found)

	e.BeginRefresh(2)
	_, ok := e.SelectedProcess()
	assert.False(t, ok)
	assert.False(t, e.Highlight().Selected)
	assert.Contains(t, log.types(), EventSelection)
}

func TestSelectionDuringFetch(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.ApplyRefresh(1, scenario()))

	e.BeginRefresh(2)
	// Resolves against the last completed fetch.
	h := e.Select(2)
	assert.True(t, h.Found)

	require.NoError(t, e.ApplyRefresh(2, scenario()))
	assert.Equal(t, 2, e.Highlight().PID)

	e.BeginRefresh(3)
	e.Select(4)
	next := scenario()
	next.Processes = next.Processes[:3]
	require.NoError(t, e.ApplyRefresh(3, next))
	assert.False(t, e.Highlight().Selected, "vanished pid is cleared")
}

func TestSelectedProcess(t *testing.T) {
	e, _ := newEngine(t)
	require.NoError(t, e.ApplyRefresh(1, scenario()))

	e.Select(2)
	rec, ok := e.SelectedProcess()
	require.True(t, ok)
	assert.Equal(t, "/usr/bin/server", rec.ExecutablePath)

	e.Select(99)
	_, ok = e.SelectedProcess()
	assert.False(t, ok, "placeholders have no record to export")

	e.Clear()
	_, ok = e.SelectedProcess()
	assert.False(t, ok)
}

func TestSetSortOrder(t *testing.T) {
	e, log := newEngine(t)
	require.NoError(t, e.ApplyRefresh(1, scenario()))

	require.NoError(t, e.SetSortOrder([]ordering.Key{{Field: ordering.FieldPID, Direction: ordering.Desc}}))
	s := e.Snapshot()
	assert.Equal(t, []int{4, 3, 2, 1}, tablePIDs(s))
	assert.Equal(t, "pid:desc", s.Order[0].String())
	assert.Contains(t, log.types(), EventSortOrder)

	err := e.SetSortOrder([]ordering.Key{{Field: "cpu", Direction: ordering.Asc}})
	assert.ErrorIs(t, err, ordering.ErrUnsupportedSortKey)
	assert.Same(t, s, e.Snapshot())

	e.Select(1)
	i := e.Highlight().TableIndex
	require.NotNil(t, i)
	assert.Equal(t, 3, *i)
}

func TestNewRejectsBadOrder(t *testing.T) {
	_, err := New([]ordering.Key{{Field: "bogus", Direction: ordering.Asc}}, nil, nil)
	assert.ErrorIs(t, err, ordering.ErrUnsupportedSortKey)
}

type staticService struct {
	res query.Result
}

func (s staticService) ListProcesses(context.Context) ([]query.ProcessRecord, error) {
	return s.res.Processes, nil
}

func (s staticService) ListSockets(context.Context) ([]query.SocketRecord, error) {
	return s.res.Sockets, nil
}

func TestEngineWithController(t *testing.T) {
	e, _ := newEngine(t)
	c := refresh.New(staticService{res: scenario()}, e, refresh.Options{Timeout: time.Second})

	select {
	case o := <-c.Refresh(context.Background()):
		require.NoError(t, o.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("refresh timed out")
	}

	s := e.Snapshot()
	assert.True(t, s.Ready())
	assert.Equal(t, 5, s.Views.Tree.Len())
	assert.Len(t, s.Views.Graph.Edges, 3)
}
