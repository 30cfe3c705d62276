package notification

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleHandler(t *testing.T) {
	tests := []struct {
		name  string
		color bool
		level slog.Level
		log   func(*slog.Logger)
		want  string
	}{
		{
			name: "plain with attrs",
			log:  func(l *slog.Logger) { l.Info("refresh applied", "generation", 3) },
			want: "[INFO] refresh applied generation=3\n",
		},
		{
			name:  "colored warning",
			color: true,
			log:   func(l *slog.Logger) { l.Warn("slow") },
			want:  colorYellow + "[WARN]" + colorReset + " slow\n",
		},
		{
			name: "debug filtered",
			log:  func(l *slog.Logger) { l.Debug("hidden") },
			want: "",
		},
		{
			name:  "group and with",
			level: slog.LevelDebug,
			log:   func(l *slog.Logger) { l.With("pid", 7).WithGroup("sel").Debug("picked", "found", true) },
			want:  "[DEBUG] picked pid=7 sel.found=true\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(slog.New(newConsoleHandler(&buf, tt.level, tt.color)))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proctopo.log")
	l, err := NewLogger(path, false, false, false)
	require.NoError(t, err)

	l.Info("started", "pid", 42)
	l.Debug("not written")
	l.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=started pid=42")
	assert.NotContains(t, string(data), "not written")
}

func TestAuditorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	a, err := NewAuditor(path)
	require.NoError(t, err)

	a.LogRefresh(EventRefreshApplied, 4, "processes=10")
	a.LogSelection(12, "found")
	a.LogSortOrder([]string{"memory:desc", "name:asc"})
	a.Close()

	entries, err := ReadAudit(path)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, EventRefreshApplied, entries[0].Event)
	assert.Equal(t, uint64(4), entries[0].Generation)
	assert.Equal(t, 12, entries[1].PID)
	assert.Equal(t, "memory:desc,name:asc", entries[2].Details)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestNilAuditorIsNoop(t *testing.T) {
	var a *Auditor
	a.LogEvent("x", "y")
	a.Close()

	empty, err := NewAuditor("")
	require.NoError(t, err)
	empty.LogSelection(1, "")
}
