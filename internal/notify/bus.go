// Package notify carries the "refresh" signal from any publisher (UI key,
// HTTP request, trigger file, ticker) to its subscribers.
package notify

import (
	"log/slog"
	"sync"

	"github.com/iamgilwell/proctopo/internal/metrics"
)

// CmdRefresh is the only command the engine acts on.
const CmdRefresh = "Refresh"

// Publisher sources, used as metric labels.
const (
	SourceUI     = "ui"
	SourceHTTP   = "http"
	SourceFile   = "file"
	SourceTicker = "ticker"
	SourceStart  = "start"
	SourceCLI    = "cli"
)

// Notification is one signal. It carries no payload beyond the command tag.
type Notification struct {
	Cmd    string `json:"cmd"`
	Source string `json:"-"`
}

// Refresh returns a refresh notification from source.
func Refresh(source string) Notification {
	return Notification{Cmd: CmdRefresh, Source: source}
}

// Bus fans notifications out to subscribers. Each subscriber has a buffer
// of one; a notification for a subscriber that already has one pending is
// dropped, since refresh signals coalesce anyway.
type Bus struct {
	mu   sync.Mutex
	subs map[uint64]chan Notification
	next uint64
	log  *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{subs: make(map[uint64]chan Notification), log: log}
}

// Publish delivers n to every subscriber and returns how many received it.
func (b *Bus) Publish(n Notification) int {
	source := n.Source
	if source == "" {
		source = "unknown"
	}
	metrics.Notifications.WithLabelValues(source).Inc()

	b.mu.Lock()
	defer b.mu.Unlock()
	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- n:
			delivered++
		default:
		}
	}
	b.log.Debug("notification published", "cmd", n.Cmd, "source", source, "delivered", delivered)
	return delivered
}

// Subscribe registers a subscriber. The returned function unsubscribes and
// closes the channel; calling it more than once is safe.
func (b *Bus) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, 1)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
