package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Ticker publishes a refresh every interval until ctx is done.
type Ticker struct {
	bus      *Bus
	interval time.Duration
}

// NewTicker creates a periodic publisher.
func NewTicker(bus *Bus, interval time.Duration) *Ticker {
	return &Ticker{bus: bus, interval: interval}
}

// Start runs the loop. It returns ctx.Err() on cancellation.
func (t *Ticker) Start(ctx context.Context) error {
	if t.interval <= 0 {
		return fmt.Errorf("ticker interval must be positive, got %s", t.interval)
	}
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.bus.Publish(Refresh(SourceTicker))
		}
	}
}

const flagsWorthRefreshingFor = fsnotify.Create | fsnotify.Write | fsnotify.Chmod

// FileTrigger publishes a refresh whenever a trigger file is created or
// touched. The parent directory is watched so the file may come and go.
type FileTrigger struct {
	bus     *Bus
	path    string
	log     *slog.Logger
	watcher *fsnotify.Watcher
}

// NewFileTrigger starts watching the directory that holds path.
func NewFileTrigger(bus *Bus, path string, log *slog.Logger) (*FileTrigger, error) {
	if log == nil {
		log = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve trigger file: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create trigger dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &FileTrigger{bus: bus, path: abs, log: log, watcher: watcher}, nil
}

// Path returns the absolute trigger file path.
func (f *FileTrigger) Path() string { return f.path }

// Start forwards matching events until ctx is done or the watcher closes.
func (f *FileTrigger) Start(ctx context.Context) error {
	defer f.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-f.watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != f.path || event.Op&flagsWorthRefreshingFor == 0 {
				continue
			}
			f.log.Debug("trigger file changed", "path", event.Name, "op", event.Op.String())
			f.bus.Publish(Refresh(SourceFile))
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return nil
			}
			f.log.Warn("trigger watcher error", "error", err)
		}
	}
}
