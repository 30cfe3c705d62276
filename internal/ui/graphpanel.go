package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rivo/tview"

	"github.com/iamgilwell/proctopo/internal/engine"
	"github.com/iamgilwell/proctopo/internal/notification"
	"github.com/iamgilwell/proctopo/internal/selection"
	"github.com/iamgilwell/proctopo/internal/view"
)

// GraphPanel shows the graph node of the selection: its info label, the
// highlighted edge path and its place in the forest.
type GraphPanel struct {
	app  *App
	view *tview.TextView
}

// NewGraphPanel creates the graph detail panel.
func NewGraphPanel(app *App) *GraphPanel {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)

	tv.SetBorder(true).
		SetTitle(" Graph ").
		SetBorderPadding(0, 0, 1, 1)

	return &GraphPanel{app: app, view: tv}
}

// Update redraws the panel for the selection h.
func (gp *GraphPanel) Update(snap *engine.Snapshot, h selection.Highlight) {
	gp.view.Clear()
	if !snap.Loaded {
		gp.view.SetText("[gray]Waiting for the first refresh…")
		return
	}

	g := snap.Views.Graph
	sockets := 0
	for _, n := range g.Nodes {
		if n.Category == view.CategoryHasSocket {
			sockets++
		}
	}
	fmt.Fprintf(gp.view, "[yellow]Nodes:[white] %d  [yellow]Edges:[white] %d  [#f4a261]has-socket:[white] %d  [#1f77b4]no-socket:[white] %d\n",
		len(g.Nodes), len(g.Edges), sockets, len(g.Nodes)-sockets)

	switch {
	case !h.Selected:
		fmt.Fprint(gp.view, "[gray]Nothing selected. Press Enter on a row.")
		return
	case !h.Found:
		fmt.Fprintf(gp.view, "[red]PID %d is not in the current forest.", h.PID)
		return
	}

	node, _ := g.Node(h.PID)
	fmt.Fprintf(gp.view, "[%s]%s[white]\n", node.Color, tview.Escape(node.Info))
	fmt.Fprintf(gp.view, "[yellow]Path:[white] %s\n", chainText(h.Chain))
	if len(h.EdgeIDs) > 0 {
		fmt.Fprintf(gp.view, "[yellow]Edges:[white] %s\n", strings.Join(h.EdgeIDs, ", "))
	}
	fmt.Fprintf(gp.view, "[yellow]Children:[white] %d  [yellow]Descendants:[white] %d\n",
		len(snap.Forest.ChildrenOf(h.PID)), len(snap.Forest.Descendants(h.PID)))
}

// Message shows a one-off status line.
func (gp *GraphPanel) Message(text string) {
	gp.view.SetText(fmt.Sprintf("[white]%s %s", notification.FormatTimestamp(gp.app.now()), text))
}

func chainText(chain []int) string {
	parts := make([]string, len(chain))
	for i, pid := range chain {
		parts[i] = strconv.Itoa(pid)
	}
	return strings.Join(parts, " → ")
}
