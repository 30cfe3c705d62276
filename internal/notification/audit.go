package notification

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Audit events.
const (
	EventRefreshApplied   = "refresh_applied"
	EventRefreshFailed    = "refresh_failed"
	EventRefreshDiscarded = "refresh_discarded"
	EventSelection        = "selection"
	EventSortOrder        = "sort_order"
)

// AuditEntry is a single audit log entry.
type AuditEntry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Event      string    `json:"event"`
	Generation uint64    `json:"generation,omitempty"`
	PID        int       `json:"pid,omitempty"`
	Details    string    `json:"details,omitempty"`
}

// Auditor writes an append-only audit trail as JSON lines. An auditor
// without a file discards everything.
type Auditor struct {
	mu   sync.Mutex
	file *os.File
}

// NewAuditor creates a new auditor.
func NewAuditor(filePath string) (*Auditor, error) {
	if filePath == "" {
		return &Auditor{}, nil
	}

	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening audit file: %w", err)
	}

	return &Auditor{file: f}, nil
}

// Close closes the audit file.
func (a *Auditor) Close() {
	if a == nil || a.file == nil {
		return
	}
	a.file.Close()
}

// LogRefresh records the end of one refresh generation.
func (a *Auditor) LogRefresh(event string, gen uint64, details string) {
	a.log(AuditEntry{Event: event, Generation: gen, Details: details})
}

// LogSelection records a selection change; pid 0 means cleared.
func (a *Auditor) LogSelection(pid int, details string) {
	a.log(AuditEntry{Event: EventSelection, PID: pid, Details: details})
}

// LogSortOrder records a new table sort order.
func (a *Auditor) LogSortOrder(keys []string) {
	a.log(AuditEntry{Event: EventSortOrder, Details: strings.Join(keys, ",")})
}

// LogEvent records a general event.
func (a *Auditor) LogEvent(event, details string) {
	a.log(AuditEntry{Event: event, Details: details})
}

func (a *Auditor) log(entry AuditEntry) {
	if a == nil || a.file == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.Timestamp = time.Now()

	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	a.file.Write(append(data, '\n'))
}

// ReadAudit parses an audit file, skipping malformed lines.
func ReadAudit(filePath string) ([]AuditEntry, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []AuditEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}
