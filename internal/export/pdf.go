// Package export renders drawings to PDF.
package export

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"ShapeBoard/internal/document"
	"ShapeBoard/internal/state"
)

// Page geometry in mm, A4 landscape.
const (
	pageWidth  = 297.0
	pageHeight = 210.0
	margin     = 15.0
	headerH    = 20.0
	footerH    = 15.0

	// pxToMM is the scale used when the drawing fits the page unshrunk.
	pxToMM = 1.0 / 3
)

// ShapeColor is the fill used for a kind on screen and on paper.
func ShapeColor(k state.ShapeKind) color.NRGBA {
	switch k {
	case state.Circle:
		return color.NRGBA{R: 13, G: 162, B: 231, A: 255}
	case state.Square:
		return color.NRGBA{R: 0, G: 184, B: 67, A: 255}
	case state.Triangle:
		return color.NRGBA{R: 249, G: 116, B: 21, A: 255}
	}
	return color.NRGBA{A: 255}
}

// area is the part of the page shapes are drawn in.
var area = state.Rect{
	X:      margin,
	Y:      margin + headerH,
	Width:  pageWidth - 2*margin,
	Height: pageHeight - 2*margin - headerH - footerH,
}

// transform maps canvas pixels to page millimetres.
type transform struct {
	scale   float64
	originX float64
	originY float64
}

func (t transform) point(x, y float64) (float64, float64) {
	return area.X + (x-t.originX)*t.scale, area.Y + (y-t.originY)*t.scale
}

// fit places the drawing's bounds at the top-left of the drawing area,
// shrinking it when it would not fit at pxToMM.
func fit(d state.Drawing) transform {
	b, ok := d.Bounds()
	if !ok {
		return transform{scale: pxToMM}
	}
	scale := pxToMM
	if w := b.Width * scale; w > area.Width {
		scale = area.Width / b.Width
	}
	if h := b.Height * scale; h > area.Height {
		scale = area.Height / b.Height
	}
	return transform{scale: scale, originX: b.X, originY: b.Y}
}

// WritePDF renders d as a one-page PDF to w.
func WritePDF(w io.Writer, d state.Drawing) error {
	p := gofpdf.New("L", "mm", "A4", "")
	tr := p.UnicodeTranslatorFromDescriptor("")
	p.SetTitle(d.Title, true)
	p.SetCreator("ShapeBoard", true)
	p.SetMargins(margin, margin, margin)
	p.SetAutoPageBreak(false, 0)
	p.AddPage()

	p.SetFont("Helvetica", "B", 18)
	p.CellFormat(area.Width, headerH-5, tr(d.Title), "", 1, "L", false, 0, "")

	p.SetDrawColor(0, 0, 0)
	p.SetLineWidth(0.3)
	t := fit(d)
	size := state.ShapeSize * t.scale
	for _, s := range d.Objects {
		c := ShapeColor(s.Kind)
		p.SetFillColor(int(c.R), int(c.G), int(c.B))
		x, y := t.point(s.X, s.Y)
		switch s.Kind {
		case state.Circle:
			p.Circle(x+size/2, y+size/2, size/2, "FD")
		case state.Square:
			p.Rect(x, y, size, size, "FD")
		case state.Triangle:
			p.Polygon([]gofpdf.PointType{
				{X: x + size/2, Y: y},
				{X: x + size, Y: y + size},
				{X: x, Y: y + size},
			}, "FD")
		}
	}

	p.SetFont("Helvetica", "", 11)
	p.SetXY(margin, pageHeight-margin-footerH/2)
	p.CellFormat(area.Width, footerH/2, footer(d), "T", 0, "L", false, 0, "")

	if err := p.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func footer(d state.Drawing) string {
	counts := d.Counts()
	parts := make([]string, 0, len(counts))
	for _, k := range state.AllKinds() {
		parts = append(parts, fmt.Sprintf("%s: %d", k, counts[k]))
	}
	return strings.Join(parts, "    ")
}

// ExportPDF writes d to path.
func ExportPDF(path string, d state.Drawing) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return WritePDF(f, d)
}

// FileName derives a PDF file name from the drawing title.
func FileName(title string) string {
	return strings.TrimSuffix(document.FileName(title), ".json") + ".pdf"
}
