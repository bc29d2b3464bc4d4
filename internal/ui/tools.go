package ui

import (
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"ShapeBoard/internal/state"
)

// shapeTile is a palette entry that can be dragged onto the board.
type shapeTile struct {
	widget.BaseWidget
	Kind   state.ShapeKind
	OnDrop func(kind state.ShapeKind, abs fyne.Position)

	last     fyne.Position
	dragging bool
}

var _ fyne.Draggable = (*shapeTile)(nil)

func newShapeTile(kind state.ShapeKind, drop func(state.ShapeKind, fyne.Position)) *shapeTile {
	t := &shapeTile{Kind: kind, OnDrop: drop}
	t.ExtendBaseWidget(t)
	return t
}

func (t *shapeTile) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(container.NewCenter(shapeIcon(t.Kind, state.ShapeSize)))
}

func (t *shapeTile) Dragged(ev *fyne.DragEvent) {
	t.dragging = true
	t.last = ev.AbsolutePosition
}

func (t *shapeTile) DragEnd() {
	if !t.dragging {
		return
	}
	t.dragging = false
	if t.OnDrop != nil {
		t.OnDrop(t.Kind, t.last)
	}
}

// kindLabel is the palette caption for a kind.
func kindLabel(k state.ShapeKind) string {
	s := string(k)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// NewPalette builds the tool column. Dropping a tile calls board.DropAt.
func NewPalette(board *Board) fyne.CanvasObject {
	heading := widget.NewLabelWithStyle("Tools", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})

	items := []fyne.CanvasObject{heading}
	for _, k := range state.AllKinds() {
		tile := newShapeTile(k, func(kind state.ShapeKind, abs fyne.Position) {
			board.DropAt(kind, abs)
		})
		caption := widget.NewLabelWithStyle(kindLabel(k), fyne.TextAlignCenter, fyne.TextStyle{})
		items = append(items, container.NewVBox(tile, caption))
	}
	return container.NewPadded(container.NewVBox(items...))
}
