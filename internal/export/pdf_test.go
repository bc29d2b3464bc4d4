package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShapeBoard/internal/state"
)

func sample() state.Drawing {
	return state.Drawing{
		Title: "Garden plan",
		Objects: []state.ShapeInstance{
			{ID: "c", Kind: state.Circle, X: 0, Y: 0},
			{ID: "s", Kind: state.Square, X: 100, Y: 40},
			{ID: "t", Kind: state.Triangle, X: -20, Y: 200},
		},
	}
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, sample()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, buf.String(), "%%EOF")
}

func TestWritePDFEmptyDrawing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, state.NewDrawing()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestExportPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName("Garden plan"))
	require.NoError(t, ExportPDF(path, sample()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, "Garden_plan.pdf", info.Name())
	assert.Greater(t, info.Size(), int64(100))
}

func TestFitKeepsShapesOnPage(t *testing.T) {
	tests := []struct {
		name string
		d    state.Drawing
	}{
		{"small", sample()},
		{"wide", state.Drawing{Objects: []state.ShapeInstance{
			{Kind: state.Circle, X: -5000, Y: 0},
			{Kind: state.Square, X: 5000, Y: 10},
		}}},
		{"tall", state.Drawing{Objects: []state.ShapeInstance{
			{Kind: state.Triangle, X: 0, Y: -3000},
			{Kind: state.Triangle, X: 0, Y: 3000},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := fit(tt.d)
			size := state.ShapeSize * tr.scale
			for _, s := range tt.d.Objects {
				x, y := tr.point(s.X, s.Y)
				assert.GreaterOrEqual(t, x, area.X-1e-9)
				assert.GreaterOrEqual(t, y, area.Y-1e-9)
				assert.LessOrEqual(t, x+size, area.X+area.Width+1e-9)
				assert.LessOrEqual(t, y+size, area.Y+area.Height+1e-9)
			}
		})
	}
}

func TestFitDoesNotEnlarge(t *testing.T) {
	tr := fit(state.Drawing{Objects: []state.ShapeInstance{{Kind: state.Circle, X: 10, Y: 10}}})
	assert.InDelta(t, pxToMM, tr.scale, 1e-9)
}

func TestFooter(t *testing.T) {
	assert.Equal(t, "circle: 1    square: 1    triangle: 1", footer(sample()))
}
