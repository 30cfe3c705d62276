package ui

import (
	"fmt"
	"slices"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/iamgilwell/proctopo/internal/notify"
	"github.com/iamgilwell/proctopo/internal/ordering"
	"github.com/iamgilwell/proctopo/internal/refresh"
)

func setupKeybindings(app *App) {
	app.tapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF5:
			app.bus.Publish(notify.Refresh(notify.SourceUI))
			return nil

		case tcell.KeyF6:
			app.setSort(nextSortField(app.eng.Snapshot().Order))
			return nil

		case tcell.KeyF7:
			app.setSort(flipSortDirection(app.eng.Snapshot().Order))
			return nil

		case tcell.KeyEscape:
			app.eng.Clear()
			return nil

		case tcell.KeyTab:
			app.cycleFocus()
			return nil

		case tcell.KeyF10:
			app.stop()
			return nil

		case tcell.KeyRune:
			switch event.Rune() {
			case 'q', 'Q':
				app.stop()
				return nil
			}
		}

		return event
	})
}

func (a *App) setSort(keys []ordering.Key) {
	if err := a.eng.SetSortOrder(keys); err != nil {
		a.graphPanel.Message(fmt.Sprintf("[red]Sort rejected: %v", err))
		return
	}
	a.graphPanel.Message(fmt.Sprintf("[yellow]Sorting by: %s", keys[0]))
}

func (a *App) refreshState() refresh.State {
	if a.state == nil {
		return refresh.Idle
	}
	return a.state()
}

func (a *App) now() time.Time { return time.Now() }

// nextSortField moves the primary key to the next field, keeping its
// direction. Secondary keys are dropped.
func nextSortField(order []ordering.Key) []ordering.Key {
	if len(order) == 0 {
		return []ordering.Key{{Field: ordering.Fields[0], Direction: ordering.Asc}}
	}
	i := slices.Index(ordering.Fields, order[0].Field)
	next := ordering.Fields[(i+1)%len(ordering.Fields)]
	return []ordering.Key{{Field: next, Direction: order[0].Direction}}
}

// flipSortDirection reverses the primary key and keeps the rest.
func flipSortDirection(order []ordering.Key) []ordering.Key {
	if len(order) == 0 {
		return []ordering.Key{{Field: ordering.Fields[0], Direction: ordering.Desc}}
	}
	out := slices.Clone(order)
	if out[0].Direction == ordering.Desc {
		out[0].Direction = ordering.Asc
	} else {
		out[0].Direction = ordering.Desc
	}
	return out
}
