// Package engine owns the canonical record set, its forest and projections,
// the sort order and the selection. All mutation goes through a small set of
// entry points serialized by one lock; readers get immutable snapshots.
package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/iamgilwell/proctopo/internal/metrics"
	"github.com/iamgilwell/proctopo/internal/notification"
	"github.com/iamgilwell/proctopo/internal/ordering"
	"github.com/iamgilwell/proctopo/internal/query"
	"github.com/iamgilwell/proctopo/internal/selection"
	"github.com/iamgilwell/proctopo/internal/topology"
	"github.com/iamgilwell/proctopo/internal/view"
)

// Snapshot is one consistent state. It is never modified once published.
type Snapshot struct {
	Generation uint64
	FetchedAt  time.Time
	Records    []query.ProcessRecord
	Sockets    []query.SocketRecord
	Forest     *topology.Forest
	Views      *view.Set
	Order      []ordering.Key
	// Stale is set while a fetch is in flight; consumers show a loading
	// state instead of the views.
	Stale bool
	// Loaded is set once any fetch has been applied.
	Loaded    bool
	LastError error
}

// Ready reports whether the views may be shown as current.
func (s *Snapshot) Ready() bool {
	return s.Loaded && !s.Stale
}

// Engine is the process topology synchronization engine.
type Engine struct {
	mu   sync.Mutex
	snap *Snapshot
	sel  *selection.Coordinator

	lmu       sync.RWMutex
	listeners []func(Event)

	log   *slog.Logger
	audit *notification.Auditor
}

// New creates an engine with an empty forest and the given table order.
func New(order []ordering.Key, log *slog.Logger, audit *notification.Auditor) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}
	f := topology.Empty()
	views, err := view.Project(f, order)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		sel:   selection.New(),
		log:   log,
		audit: audit,
		snap: &Snapshot{
			Forest: f,
			Views:  views,
			Order:  append([]ordering.Key(nil), order...),
		},
	}
	e.sel.Reconcile(f, views)
	return e, nil
}

// OnChange registers fn for every subsequent event. Listeners run after the
// engine lock is released, on the goroutine that caused the change.
func (e *Engine) OnChange(fn func(Event)) {
	e.lmu.Lock()
	defer e.lmu.Unlock()
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) emit(events ...Event) {
	e.lmu.RLock()
	listeners := slices.Clone(e.listeners)
	e.lmu.RUnlock()
	for _, ev := range events {
		for _, fn := range listeners {
			fn(ev)
		}
	}
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snap
}

// publish swaps in a copy of the current snapshot modified by fn. Callers
// hold e.mu.
func (e *Engine) publish(fn func(s *Snapshot)) {
	next := *e.snap
	fn(&next)
	e.snap = &next
}

// Select records pid as the selection and returns its highlight. Unknown
// pids are accepted and resolve with Found false.
func (e *Engine) Select(pid int) selection.Highlight {
	e.mu.Lock()
	changed := e.sel.Select(pid)
	h := e.sel.Highlight()
	e.mu.Unlock()

	if changed {
		metrics.SelectionChanges.Inc()
		e.audit.LogSelection(pid, fmt.Sprintf("found=%t", h.Found))
		e.log.Debug("selection changed", "pid", pid, "found", h.Found)
		e.emit(selectionEvent(h))
	}
	return h
}

// Clear unsets the selection.
func (e *Engine) Clear() {
	e.mu.Lock()
	was := e.sel.Clear()
	e.mu.Unlock()

	if was {
		e.selectionCleared("cleared")
	}
}

func (e *Engine) selectionCleared(reason string) {
	metrics.SelectionChanges.Inc()
	e.audit.LogSelection(0, reason)
	e.log.Debug("selection cleared", "reason", reason)
	e.emit(selectionEvent(selection.Highlight{}))
}

// Highlight resolves the current selection against the current views.
func (e *Engine) Highlight() selection.Highlight {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel.Highlight()
}

// SelectedProcess returns the record of the selected process. Placeholders
// and unknown pids yield false.
func (e *Engine) SelectedProcess() (query.ProcessRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pid, ok := e.sel.Selected()
	if !ok {
		return query.ProcessRecord{}, false
	}
	n, ok := e.snap.Forest.Node(pid)
	if !ok || n.Placeholder {
		return query.ProcessRecord{}, false
	}
	return n.Record, true
}

// SetSortOrder re-sorts the table. An invalid key is rejected and nothing
// changes.
func (e *Engine) SetSortOrder(keys []ordering.Key) error {
	e.mu.Lock()
	views, err := e.snap.Views.Resort(e.snap.Forest, keys)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	order := append([]ordering.Key(nil), keys...)
	e.publish(func(s *Snapshot) {
		s.Views = views
		s.Order = order
	})
	e.sel.Reconcile(e.snap.Forest, views)
	e.mu.Unlock()

	names := make([]string, len(order))
	for i, k := range order {
		names[i] = k.String()
	}
	e.audit.LogSortOrder(names)
	e.log.Debug("sort order changed", "keys", names)
	e.emit(Event{Type: EventSortOrder, Order: names, Time: time.Now()})
	return nil
}

// BeginRefresh clears the selection and marks the views stale.
func (e *Engine) BeginRefresh(gen uint64) {
	e.mu.Lock()
	cleared := e.sel.Clear()
	e.publish(func(s *Snapshot) { s.Stale = true })
	e.mu.Unlock()

	if cleared {
		e.selectionCleared("refresh")
	}
	e.emit(Event{Type: EventRefreshStarted, Generation: gen, Time: time.Now()})
}

// ApplyRefresh rebuilds the forest and projections from res and swaps them
// in. On a build error the previous state is kept and the error recorded.
func (e *Engine) ApplyRefresh(gen uint64, res query.Result) error {
	forest, err := topology.Build(res.Processes, res.Sockets)
	if err != nil {
		e.FailRefresh(gen, err)
		return err
	}

	e.mu.Lock()
	views, err := view.Project(forest, e.snap.Order)
	if err != nil {
		e.mu.Unlock()
		e.FailRefresh(gen, err)
		return err
	}
	e.publish(func(s *Snapshot) {
		s.Generation = gen
		s.FetchedAt = res.FetchedAt
		s.Records = res.Processes
		s.Sockets = res.Sockets
		s.Forest = forest
		s.Views = views
		s.Stale = false
		s.Loaded = true
		s.LastError = nil
	})
	cleared := e.sel.Reconcile(forest, views)
	e.mu.Unlock()

	stats := forest.Stats()
	metrics.ObserveForest(stats)
	e.audit.LogRefresh(notification.EventRefreshApplied, gen,
		fmt.Sprintf("processes=%d sockets=%d placeholders=%d cycles_broken=%d",
			len(res.Processes), len(res.Sockets), stats.Placeholders, stats.CyclesBroken))
	if cleared {
		e.selectionCleared("vanished")
	}
	e.emit(Event{Type: EventRefreshApplied, Generation: gen, Time: time.Now()})
	return nil
}

// FailRefresh keeps the previous projections and records err for display.
func (e *Engine) FailRefresh(gen uint64, err error) {
	e.mu.Lock()
	e.publish(func(s *Snapshot) {
		s.Stale = false
		s.LastError = err
	})
	e.mu.Unlock()

	e.audit.LogRefresh(notification.EventRefreshFailed, gen, err.Error())
	e.log.Warn("keeping previous views after failed refresh", "generation", gen, "error", err)
	e.emit(Event{Type: EventRefreshFailed, Generation: gen, Err: err.Error(), Time: time.Now()})
}

// DiscardRefresh notes a superseded result that was dropped unapplied.
func (e *Engine) DiscardRefresh(gen uint64) {
	e.audit.LogRefresh(notification.EventRefreshDiscarded, gen, "superseded")
}
