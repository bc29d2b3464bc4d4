package ui

import (
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"ShapeBoard/internal/state"
)

// DropOffset is subtracted from both axes of a drop point so the shape lands
// roughly centred under the pointer.
const DropOffset = 40

// Board is the canvas surface. It renders the store's shapes in insertion
// order, adds a shape where a palette tile is dropped and removes the shape
// under a double tap. Dragging the empty surface pans the view.
type Board struct {
	widget.BaseWidget

	store *state.Store

	mu         sync.RWMutex
	drawing    state.Drawing
	panX, panY float32

	unsubscribe func()
}

var _ fyne.Widget = (*Board)(nil)
var _ fyne.DoubleTappable = (*Board)(nil)
var _ fyne.Draggable = (*Board)(nil)

// NewBoard creates a board showing store and following its changes.
func NewBoard(store *state.Store) *Board {
	b := &Board{store: store, drawing: store.Snapshot()}
	b.ExtendBaseWidget(b)
	b.unsubscribe = store.Subscribe(func(d state.Drawing) {
		fyne.Do(func() { b.show(d) })
	})
	return b
}

func (b *Board) show(d state.Drawing) {
	b.mu.Lock()
	b.drawing = d
	b.mu.Unlock()
	b.Refresh()
}

// Close stops following the store.
func (b *Board) Close() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
}

// toCanvas converts a board-local position to drawing coordinates.
func (b *Board) toCanvas(pos fyne.Position) (float64, float64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return float64(pos.X - b.panX), float64(pos.Y - b.panY)
}

// Drop adds a shape of kind for a drop at the board-local position.
func (b *Board) Drop(kind state.ShapeKind, pos fyne.Position) state.ShapeInstance {
	x, y := b.toCanvas(pos)
	return b.store.AddShape(kind, x-DropOffset, y-DropOffset)
}

// DropAt is Drop for an absolute window position. Drops outside the board
// are ignored.
func (b *Board) DropAt(kind state.ShapeKind, abs fyne.Position) bool {
	origin := fyne.CurrentApp().Driver().AbsolutePositionForObject(b)
	local := abs.Subtract(origin)
	size := b.Size()
	if local.X < 0 || local.Y < 0 || local.X > size.Width || local.Y > size.Height {
		return false
	}
	b.Drop(kind, local)
	return true
}

// DoubleTapped removes the topmost shape under the pointer.
func (b *Board) DoubleTapped(ev *fyne.PointEvent) {
	x, y := b.toCanvas(ev.Position)
	b.mu.RLock()
	hit, ok := b.drawing.ShapeAt(x, y)
	b.mu.RUnlock()
	if ok {
		b.store.RemoveShape(hit.ID)
	}
}

func (b *Board) Dragged(ev *fyne.DragEvent) {
	b.mu.Lock()
	b.panX += ev.Dragged.DX
	b.panY += ev.Dragged.DY
	b.mu.Unlock()
	b.Refresh()
}

func (b *Board) DragEnd() {}

// ResetView scrolls back to the drawing origin.
func (b *Board) ResetView() {
	b.mu.Lock()
	b.panX, b.panY = 0, 0
	b.mu.Unlock()
	b.Refresh()
}

func (b *Board) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(theme.Color(theme.ColorNameInputBackground))
	bg.StrokeColor = theme.Color(theme.ColorNameInputBorder)
	bg.StrokeWidth = 2
	bg.CornerRadius = 8

	placeholder := canvas.NewText("Canvas", theme.Color(theme.ColorNamePlaceHolder))
	placeholder.TextSize = 18
	placeholder.TextStyle = fyne.TextStyle{Bold: true}
	placeholder.Alignment = fyne.TextAlignCenter

	r := &boardRenderer{board: b, background: bg, placeholder: placeholder}
	r.Refresh()
	return r
}

type boardRenderer struct {
	board       *Board
	background  *canvas.Rectangle
	placeholder *canvas.Text
	shapes      []fyne.CanvasObject
	positions   []fyne.Position
}

func (r *boardRenderer) Objects() []fyne.CanvasObject {
	objects := make([]fyne.CanvasObject, 0, len(r.shapes)+2)
	objects = append(objects, r.background, r.placeholder)
	return append(objects, r.shapes...)
}

func (r *boardRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)
	r.placeholder.Resize(fyne.NewSize(size.Width, r.placeholder.MinSize().Height))
	r.placeholder.Move(fyne.NewPos(0, (size.Height-r.placeholder.MinSize().Height)/2))
	for i, obj := range r.shapes {
		obj.Resize(fyne.NewSquareSize(state.ShapeSize))
		obj.Move(r.positions[i])
	}
}

func (r *boardRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Refresh rebuilds the shape objects from the board's current drawing.
func (r *boardRenderer) Refresh() {
	b := r.board
	b.mu.RLock()
	objects := b.drawing.Objects
	panX, panY := b.panX, b.panY
	b.mu.RUnlock()

	r.shapes = r.shapes[:0]
	r.positions = r.positions[:0]
	for _, o := range objects {
		r.shapes = append(r.shapes, newShapeObject(o.Kind))
		r.positions = append(r.positions, fyne.NewPos(float32(o.X)+panX, float32(o.Y)+panY))
	}
	r.placeholder.Hidden = len(objects) > 0
	r.background.FillColor = theme.Color(theme.ColorNameInputBackground)

	r.Layout(b.Size())
	canvas.Refresh(b)
}

func (r *boardRenderer) Destroy() {}

// shapeCount reports how many shapes the board currently shows.
func (b *Board) shapeCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.drawing.Objects)
}
