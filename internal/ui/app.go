package ui

import (
	"context"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iamgilwell/proctopo/internal/engine"
	"github.com/iamgilwell/proctopo/internal/notify"
	"github.com/iamgilwell/proctopo/internal/refresh"
)

// App is the main TUI application: a sorted process table and the process
// tree side by side, with the graph detail of the selection below. All three
// follow the engine's single selection.
type App struct {
	tapp  *tview.Application
	eng   *engine.Engine
	bus   *notify.Bus
	state func() refresh.State
	log   *slog.Logger

	dashboard    *Dashboard
	processTable *ProcessTable
	processTree  *ProcessTree
	graphPanel   *GraphPanel
	focusables   []tview.Primitive
	focus        int

	startTime time.Time
	cancel    context.CancelFunc
}

// NewApp creates the TUI application. state may be nil.
func NewApp(eng *engine.Engine, bus *notify.Bus, state func() refresh.State, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	app := &App{
		tapp:      tview.NewApplication(),
		eng:       eng,
		bus:       bus,
		state:     state,
		log:       log,
		startTime: time.Now(),
	}

	app.dashboard = NewDashboard(app)
	app.processTable = NewProcessTable(app)
	app.processTree = NewProcessTree(app)
	app.graphPanel = NewGraphPanel(app)
	app.focusables = []tview.Primitive{app.processTable.table, app.processTree.table}

	return app
}

// Run starts the TUI and blocks until the user quits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	defer a.cancel()

	views := tview.NewFlex().
		AddItem(a.processTable.table, 0, 3, true).
		AddItem(a.processTree.table, 0, 2, false)

	mainFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.dashboard.view, 3, 0, false).
		AddItem(views, 0, 3, true).
		AddItem(a.graphPanel.view, 10, 0, false).
		AddItem(a.createFooter(), 1, 0, false)

	a.tapp.SetRoot(mainFlex, true)
	setupKeybindings(a)

	// Events may fire on the tview goroutine itself (Enter, Esc), so the
	// redraw is queued from a separate goroutine.
	a.eng.OnChange(func(ev engine.Event) {
		go a.tapp.QueueUpdateDraw(func() { a.render(ev) })
	})
	a.render(engine.Event{})

	go func() {
		<-ctx.Done()
		a.tapp.Stop()
	}()

	return a.tapp.Run()
}

func (a *App) createFooter() *tview.TextView {
	footer := tview.NewTextView().
		SetDynamicColors(true).
		SetText(" [yellow]F5[white]:Refresh [yellow]F6[white]:Sort field [yellow]F7[white]:Sort dir [yellow]Enter[white]:Select [yellow]Esc[white]:Clear [yellow]Tab[white]:Switch pane [yellow]q[white]:Quit")
	footer.SetBackgroundColor(tcell.ColorDarkSlateGray)
	return footer
}

// render redraws every pane from the current snapshot. It runs on the tview
// goroutine.
func (a *App) render(ev engine.Event) {
	snap := a.eng.Snapshot()
	h := a.eng.Highlight()

	a.dashboard.Update(snap)
	if !snap.Ready() {
		a.processTable.ShowLoading(snap)
		a.processTree.ShowLoading(snap)
		a.graphPanel.Update(snap, h)
		return
	}

	switch ev.Type {
	case engine.EventSelection:
	default:
		a.processTable.Update(snap)
		a.processTree.Update(snap)
	}
	a.processTable.Highlight(h)
	a.processTree.Highlight(h)
	a.graphPanel.Update(snap, h)
}

func (a *App) cycleFocus() {
	a.focus = (a.focus + 1) % len(a.focusables)
	a.tapp.SetFocus(a.focusables[a.focus])
}

func (a *App) stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.tapp.Stop()
}
