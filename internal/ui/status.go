package ui

import (
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"ShapeBoard/internal/state"
)

// StatusBar shows one count per shape kind and the latest message.
type StatusBar struct {
	counts  map[state.ShapeKind]*widget.Label
	message *widget.Label
	content fyne.CanvasObject

	unsubscribe func()
}

// NewStatusBar creates a status bar following store.
func NewStatusBar(store *state.Store) *StatusBar {
	s := &StatusBar{
		counts:  make(map[state.ShapeKind]*widget.Label, 3),
		message: widget.NewLabel("Ready"),
	}

	items := make([]fyne.CanvasObject, 0, 8)
	for _, k := range state.AllKinds() {
		l := widget.NewLabel("0")
		s.counts[k] = l
		items = append(items, container.NewHBox(shapeIcon(k, 24), l))
	}
	items = append(items, layout.NewSpacer(), s.message)
	s.content = container.NewHBox(items...)

	s.update(store.CountsByKind())
	s.unsubscribe = store.Subscribe(func(d state.Drawing) {
		counts := d.Counts()
		fyne.Do(func() { s.update(counts) })
	})
	return s
}

func (s *StatusBar) update(counts map[state.ShapeKind]int) {
	for k, l := range s.counts {
		l.SetText(strconv.Itoa(counts[k]))
	}
}

// SetMessage replaces the message on the right.
func (s *StatusBar) SetMessage(text string) { s.message.SetText(text) }

// Message returns the current message.
func (s *StatusBar) Message() string { return s.message.Text }

// Count returns the displayed count for kind.
func (s *StatusBar) Count(kind state.ShapeKind) string { return s.counts[kind].Text }

// Content returns the bar's canvas object.
func (s *StatusBar) Content() fyne.CanvasObject { return s.content }

// Close stops following the store.
func (s *StatusBar) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
