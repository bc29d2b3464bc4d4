package state

import "fmt"

// DefaultTitle is the title of a fresh drawing.
const DefaultTitle = "Painting Title"

// ShapeKind is one of the shapes offered by the palette.
type ShapeKind string

const (
	Circle   ShapeKind = "circle"
	Square   ShapeKind = "square"
	Triangle ShapeKind = "triangle"
)

// AllKinds returns every shape kind in palette order.
func AllKinds() []ShapeKind {
	return []ShapeKind{Circle, Square, Triangle}
}

// Valid reports whether k belongs to the closed set of shape kinds.
func (k ShapeKind) Valid() bool {
	switch k {
	case Circle, Square, Triangle:
		return true
	}
	return false
}

// ParseShapeKind converts a wire tag into a ShapeKind.
func ParseShapeKind(s string) (ShapeKind, error) {
	k := ShapeKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown shape kind %q", s)
	}
	return k, nil
}

// ShapeInstance is one placed shape. X and Y are canvas-local and may be
// negative or lie past the visible area.
type ShapeInstance struct {
	ID   string    `json:"id"`
	Kind ShapeKind `json:"type"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
}

// Drawing is the exportable unit of state. Objects are in insertion order,
// which is also the render order.
type Drawing struct {
	Title   string          `json:"title"`
	Objects []ShapeInstance `json:"objects"`
}

// NewDrawing returns an empty drawing with the default title.
func NewDrawing() Drawing {
	return Drawing{Title: DefaultTitle, Objects: []ShapeInstance{}}
}

// Clone returns a copy that shares no memory with d.
func (d Drawing) Clone() Drawing {
	objs := make([]ShapeInstance, len(d.Objects))
	copy(objs, d.Objects)
	return Drawing{Title: d.Title, Objects: objs}
}

// Counts tallies objects per kind. Every kind is present, absent ones as zero.
func (d Drawing) Counts() map[ShapeKind]int {
	counts := make(map[ShapeKind]int, 3)
	for _, k := range AllKinds() {
		counts[k] = 0
	}
	for _, o := range d.Objects {
		counts[o.Kind]++
	}
	return counts
}
