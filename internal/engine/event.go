package engine

import (
	"time"

	"github.com/iamgilwell/proctopo/internal/selection"
)

// EventType names a state change.
type EventType string

const (
	EventRefreshStarted EventType = "refresh_started"
	EventRefreshApplied EventType = "refresh_applied"
	EventRefreshFailed  EventType = "refresh_failed"
	EventSelection      EventType = "selection"
	EventSortOrder      EventType = "sort_order"
)

// Event is delivered to OnChange listeners and streamed to websocket
// clients.
type Event struct {
	Type       EventType            `json:"type"`
	Time       time.Time            `json:"time"`
	Generation uint64               `json:"generation,omitempty"`
	Err        string               `json:"error,omitempty"`
	Highlight  *selection.Highlight `json:"highlight,omitempty"`
	Order      []string             `json:"order,omitempty"`
}

func selectionEvent(h selection.Highlight) Event {
	return Event{Type: EventSelection, Highlight: &h, Time: time.Now()}
}
