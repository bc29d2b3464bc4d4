package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"

	"ShapeBoard/internal/export"
	"ShapeBoard/internal/state"
)

// newShapeObject returns a canvas object drawing kind in its palette color.
// The caller sizes and positions it.
func newShapeObject(kind state.ShapeKind) fyne.CanvasObject {
	c := export.ShapeColor(kind)
	switch kind {
	case state.Circle:
		return canvas.NewCircle(c)
	case state.Square:
		return canvas.NewRectangle(c)
	case state.Triangle:
		return canvas.NewRasterWithPixels(func(x, y, w, h int) color.Color {
			if insideTriangle(float32(x)+0.5, float32(y)+0.5, float32(w), float32(h)) {
				return c
			}
			return color.Transparent
		})
	}
	return canvas.NewRectangle(color.Transparent)
}

// insideTriangle reports whether the point lies in the upward triangle
// inscribed in a w by h box: apex at the top centre, base along the bottom.
func insideTriangle(px, py, w, h float32) bool {
	if w <= 0 || h <= 0 || py < 0 || py > h {
		return false
	}
	half := py / h * w / 2
	return px >= w/2-half && px <= w/2+half
}

// shapeIcon is a fixed-size shape used by the palette and the status bar.
func shapeIcon(kind state.ShapeKind, size float32) fyne.CanvasObject {
	return container.NewGridWrap(fyne.NewSquareSize(size), newShapeObject(kind))
}
