package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/iamgilwell/proctopo/internal/engine"
	"github.com/iamgilwell/proctopo/internal/notification"
	"github.com/iamgilwell/proctopo/internal/refresh"
)

// Dashboard is the top status bar.
type Dashboard struct {
	app  *App
	view *tview.TextView
}

// NewDashboard creates the dashboard widget.
func NewDashboard(app *App) *Dashboard {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBorder(true).
		SetTitle(" proctopo - process topology ").
		SetBorderPadding(0, 0, 1, 1)

	return &Dashboard{app: app, view: tv}
}

// Update refreshes the dashboard display.
func (d *Dashboard) Update(snap *engine.Snapshot) {
	d.view.SetText(dashboardText(snap, d.app.refreshState(), time.Since(d.app.startTime)))
}

func dashboardText(snap *engine.Snapshot, state refresh.State, runtime time.Duration) string {
	status := "[green]" + state.String()
	if snap.Stale {
		status = "[yellow]loading"
	}

	fetched := "never"
	if snap.Loaded {
		fetched = notification.FormatTimestamp(snap.FetchedAt)
	}

	order := make([]string, len(snap.Order))
	for i, k := range snap.Order {
		order[i] = k.String()
	}

	stats := snap.Forest.Stats()
	text := fmt.Sprintf(
		" [yellow]Runtime:[white] %s | [yellow]State:[white] %s[white] | [yellow]Gen:[white] %d | [yellow]Fetched:[white] %s | "+
			"[yellow]Procs:[white] %d | [yellow]Sockets:[white] %d | [yellow]Placeholders:[white] %d | [yellow]Sort:[white] %s",
		runtime.Truncate(time.Second), status, snap.Generation, fetched,
		len(snap.Records), len(snap.Sockets), stats.Placeholders, strings.Join(order, ","),
	)
	if stats.CyclesBroken > 0 {
		text += fmt.Sprintf(" | [yellow]Cycles:[white] %d", stats.CyclesBroken)
	}
	if snap.LastError != nil {
		text += " | [red]Error:[white] " + tview.Escape(snap.LastError.Error())
	}
	return text
}
