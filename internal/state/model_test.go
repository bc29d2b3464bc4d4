package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseShapeKind(t *testing.T) {
	for _, k := range AllKinds() {
		got, err := ParseShapeKind(string(k))
		assert.NoError(t, err)
		assert.Equal(t, k, got)
	}
	for _, bad := range []string{"", "hexagon", "Circle"} {
		_, err := ParseShapeKind(bad)
		assert.Error(t, err, bad)
	}
}

func TestBounds(t *testing.T) {
	_, ok := NewDrawing().Bounds()
	assert.False(t, ok)

	d := Drawing{Objects: []ShapeInstance{
		{ID: "a", Kind: Circle, X: -10, Y: 20},
		{ID: "b", Kind: Square, X: 100, Y: 0},
	}}
	b, ok := d.Bounds()
	assert.True(t, ok)
	assert.Equal(t, Rect{X: -10, Y: 0, Width: 158, Height: 68}, b)
}

func TestShapeAtReturnsTopmost(t *testing.T) {
	d := Drawing{Objects: []ShapeInstance{
		{ID: "below", Kind: Circle, X: 0, Y: 0},
		{ID: "above", Kind: Square, X: 20, Y: 20},
	}}

	s, ok := d.ShapeAt(30, 30)
	assert.True(t, ok)
	assert.Equal(t, "above", s.ID)

	s, ok = d.ShapeAt(5, 5)
	assert.True(t, ok)
	assert.Equal(t, "below", s.ID)

	_, ok = d.ShapeAt(500, 500)
	assert.False(t, ok)
}

func TestRectOverlaps(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	assert.True(t, a.Overlaps(Rect{X: 5, Y: 5, Width: 10, Height: 10}))
	assert.False(t, a.Overlaps(Rect{X: 11, Y: 0, Width: 5, Height: 5}))
}
