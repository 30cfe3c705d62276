package ui

import (
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iamgilwell/proctopo/internal/engine"
	"github.com/iamgilwell/proctopo/internal/selection"
	"github.com/iamgilwell/proctopo/internal/view"
)

// ProcessTree displays the forest in depth-first pre-order, one item per
// row, indented by depth.
type ProcessTree struct {
	app   *App
	table *tview.Table
	items []view.TreeItem
}

// NewProcessTree creates the tree pane.
func NewProcessTree(app *App) *ProcessTree {
	table := tview.NewTable().SetSelectable(true, false)
	table.SetBorder(true).
		SetTitle(" Tree ").
		SetBorderPadding(0, 0, 1, 0)

	pt := &ProcessTree{app: app, table: table}
	table.SetSelectedFunc(func(row, _ int) {
		if row >= 0 && row < len(pt.items) {
			app.eng.Select(pt.items[row].PID)
		}
	})
	return pt
}

// ShowLoading replaces the tree with a loading marker.
func (pt *ProcessTree) ShowLoading(_ *engine.Snapshot) {
	pt.table.Clear()
	pt.items = nil
	pt.table.SetCell(0, 0, tview.NewTableCell("Loading…").
		SetTextColor(tcell.ColorGray).
		SetSelectable(false))
}

// Update rebuilds the rows from the snapshot's tree view.
func (pt *ProcessTree) Update(snap *engine.Snapshot) {
	pt.table.Clear()
	tree := snap.Views.Tree
	pt.items = make([]view.TreeItem, 0, tree.Len())

	tree.Walk(0, func(it view.TreeItem) bool {
		pt.items = append(pt.items, it)
		pt.table.SetCell(it.Index, 0, tview.NewTableCell(treeLabel(it)).
			SetTextColor(treeColor(it)).
			SetExpansion(1))
		return true
	})
}

// Highlight moves the cursor to the selected item and marks its ancestors.
func (pt *ProcessTree) Highlight(h selection.Highlight) {
	for row, color := range highlightColors(pt.items, h.Chain) {
		if cell := pt.table.GetCell(row, 0); cell != nil {
			cell.SetTextColor(color)
		}
	}
	if h.TreeIndex != nil {
		pt.table.Select(*h.TreeIndex, 0)
	}
}

// highlightColors returns one color per item: yellow on the selected chain,
// the item's own color elsewhere.
func highlightColors(items []view.TreeItem, chain []int) []tcell.Color {
	onChain := make(map[int]bool, len(chain))
	for _, pid := range chain {
		onChain[pid] = true
	}
	colors := make([]tcell.Color, len(items))
	for i, it := range items {
		colors[i] = treeColor(it)
		if onChain[it.PID] {
			colors[i] = tcell.ColorYellow
		}
	}
	return colors
}

// treeLabel renders an item with one guide column per ancestor.
func treeLabel(it view.TreeItem) string {
	var b strings.Builder
	for i := 0; i < it.Depth; i++ {
		b.WriteString("│ ")
	}
	if it.ChildCount > 0 {
		b.WriteString("▾ ")
	} else {
		b.WriteString("· ")
	}
	b.WriteString(strconv.Itoa(it.PID))
	switch {
	case it.Placeholder:
		b.WriteString(" (unknown parent)")
	case it.Name != "":
		b.WriteString(" " + it.Name)
	}
	if it.CycleBroken {
		b.WriteString(" ↺")
	}
	return b.String()
}

func treeColor(it view.TreeItem) tcell.Color {
	switch {
	case it.Placeholder:
		return tcell.ColorGray
	case it.HasSocket:
		return tcell.ColorOrange
	default:
		return tcell.ColorWhite
	}
}
