package ui

import (
	"fmt"
	"strconv"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iamgilwell/proctopo/internal/engine"
	"github.com/iamgilwell/proctopo/internal/ordering"
	"github.com/iamgilwell/proctopo/internal/selection"
	"github.com/iamgilwell/proctopo/internal/view"
)

type column struct {
	title string
	field ordering.Field
}

var tableColumns = []column{
	{"PID", ordering.FieldPID},
	{"PPID", ordering.FieldParentPID},
	{"NAME", ordering.FieldName},
	{"LOCAL", ordering.FieldAddr},
	{"PORT", ordering.FieldPort},
	{"REMOTE", ""},
	{"MEM", ordering.FieldMemory},
	{"UPTIME", ordering.FieldUptime},
	{"CPU%", ""},
	{"EXE", ""},
}

// ProcessTable displays the sorted flat table.
type ProcessTable struct {
	app   *App
	table *tview.Table
}

// NewProcessTable creates the process table.
func NewProcessTable(app *App) *ProcessTable {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0).
		SetSeparator(tview.Borders.Vertical)

	table.SetBorder(true).
		SetTitle(" Processes ").
		SetBorderPadding(0, 0, 0, 0)

	pt := &ProcessTable{app: app, table: table}
	table.SetSelectedFunc(func(row, _ int) {
		if pid := pt.SelectedPID(); pid > 0 {
			app.eng.Select(pid)
		}
	})

	pt.setHeaders(nil)
	return pt
}

func (pt *ProcessTable) setHeaders(order []ordering.Key) {
	for i, col := range tableColumns {
		title := col.title
		if len(order) > 0 && col.field != "" && order[0].Field == col.field {
			title += sortArrow(order[0].Direction)
		}
		cell := tview.NewTableCell(title).
			SetTextColor(tcell.ColorYellow).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false).
			SetExpansion(1)
		pt.table.SetCell(0, i, cell)
	}
}

func sortArrow(d ordering.Direction) string {
	if d == ordering.Desc {
		return " ▼"
	}
	return " ▲"
}

func (pt *ProcessTable) clearRows() {
	for r := pt.table.GetRowCount() - 1; r >= 1; r-- {
		pt.table.RemoveRow(r)
	}
}

// ShowLoading replaces the rows with a loading marker.
func (pt *ProcessTable) ShowLoading(snap *engine.Snapshot) {
	pt.setHeaders(snap.Order)
	pt.clearRows()
	pt.table.SetCell(1, 0, tview.NewTableCell("Loading…").
		SetTextColor(tcell.ColorGray).
		SetSelectable(false))
}

// Update redraws the rows from the snapshot's table view.
func (pt *ProcessTable) Update(snap *engine.Snapshot) {
	pt.setHeaders(snap.Order)
	pt.clearRows()

	for i, r := range snap.Views.Table.Rows() {
		row := i + 1 // skip header

		nameColor := tcell.ColorWhite
		if r.HasSocket {
			nameColor = tcell.ColorOrange
		}

		cpuColor := tcell.ColorWhite
		if r.CPUPercent > 50 {
			cpuColor = tcell.ColorRed
		} else if r.CPUPercent > 20 {
			cpuColor = tcell.ColorYellow
		}

		pt.table.SetCell(row, 0, tview.NewTableCell(strconv.Itoa(r.PID)).SetTextColor(tcell.ColorWhite))
		pt.table.SetCell(row, 1, tview.NewTableCell(optionalInt(r.ParentPID)).SetTextColor(tcell.ColorGray))
		pt.table.SetCell(row, 2, tview.NewTableCell(truncate(r.Name, 25)).SetTextColor(nameColor))
		pt.table.SetCell(row, 3, tview.NewTableCell(r.LocalAddr).SetTextColor(tcell.ColorWhite))
		pt.table.SetCell(row, 4, tview.NewTableCell(socketPort(r)).SetTextColor(tcell.ColorWhite))
		pt.table.SetCell(row, 5, tview.NewTableCell(remote(r)).SetTextColor(tcell.ColorWhite))
		pt.table.SetCell(row, 6, tview.NewTableCell(view.FormatMemory(r.MemoryBytes)).SetTextColor(tcell.ColorWhite))
		pt.table.SetCell(row, 7, tview.NewTableCell(view.FormatUptime(r.UptimeSeconds)).SetTextColor(tcell.ColorWhite))
		pt.table.SetCell(row, 8, tview.NewTableCell(fmt.Sprintf("%.1f", r.CPUPercent)).SetTextColor(cpuColor))
		pt.table.SetCell(row, 9, tview.NewTableCell(truncate(r.ExecutablePath, 50)).SetTextColor(tcell.ColorGray))
	}
}

// Highlight moves the cursor to the selected row, if it has one.
func (pt *ProcessTable) Highlight(h selection.Highlight) {
	if h.TableIndex != nil {
		pt.table.Select(*h.TableIndex+1, 0)
	}
}

// SelectedPID returns the PID of the row under the cursor.
func (pt *ProcessTable) SelectedPID() int {
	row, _ := pt.table.GetSelection()
	if row < 1 {
		return -1
	}
	cell := pt.table.GetCell(row, 0)
	if cell == nil {
		return -1
	}
	pid, err := strconv.Atoi(cell.Text)
	if err != nil {
		return -1
	}
	return pid
}

func optionalInt(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func socketPort(r view.TableRow) string {
	if !r.HasSocket {
		return ""
	}
	return strconv.Itoa(r.LocalPort)
}

func remote(r view.TableRow) string {
	if r.RemoteAddr == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.RemoteAddr, r.RemotePort)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
