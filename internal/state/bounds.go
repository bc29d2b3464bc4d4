package state

// ShapeSize is the edge length, in canvas pixels, of every rendered shape.
const ShapeSize = 48

// Rect is an axis-aligned area on the canvas.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Contains reports whether the point lies inside r, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Overlaps reports whether r and o share any point.
func (r Rect) Overlaps(o Rect) bool {
	return !(r.X+r.Width < o.X || o.X+o.Width < r.X ||
		r.Y+r.Height < o.Y || o.Y+o.Height < r.Y)
}

// Union returns the smallest rect that covers both r and o.
func (r Rect) Union(o Rect) Rect {
	minX, minY := min(r.X, o.X), min(r.Y, o.Y)
	maxX := max(r.X+r.Width, o.X+o.Width)
	maxY := max(r.Y+r.Height, o.Y+o.Height)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Frame returns the area the shape occupies when rendered.
func (s ShapeInstance) Frame() Rect {
	return Rect{X: s.X, Y: s.Y, Width: ShapeSize, Height: ShapeSize}
}

// Bounds returns the area covered by all shapes, and false for an empty
// drawing.
func (d Drawing) Bounds() (Rect, bool) {
	if len(d.Objects) == 0 {
		return Rect{}, false
	}
	b := d.Objects[0].Frame()
	for _, o := range d.Objects[1:] {
		b = b.Union(o.Frame())
	}
	return b, true
}

// ShapeAt returns the topmost shape whose frame contains the point.
func (d Drawing) ShapeAt(x, y float64) (ShapeInstance, bool) {
	for i := len(d.Objects) - 1; i >= 0; i-- {
		if d.Objects[i].Frame().Contains(x, y) {
			return d.Objects[i], true
		}
	}
	return ShapeInstance{}, false
}
