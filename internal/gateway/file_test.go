package gateway

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShapeBoard/internal/errors"
	"ShapeBoard/internal/state"
)

func sampleStore() *state.Store {
	s := state.NewStore(nil)
	s.SetTitle("Blue Period")
	s.AddShape(state.Circle, 10, 10)
	s.AddShape(state.Square, 50, 50)
	return s
}

func TestFileGatewayExportImport(t *testing.T) {
	dir := t.TempDir()
	g := NewFileGateway(dir, nil)
	g.now = func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) }

	src := sampleStore()
	path, err := g.ExportToFile(src.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Blue_Period.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timestamp": "2026-10-19T08:00:00Z"`)

	dst := state.NewStore(nil)
	applied, err := Import(context.Background(), g, dst)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, src.Snapshot(), dst.Snapshot())
}

func TestFileGatewayPullWithoutSource(t *testing.T) {
	g := NewFileGateway(t.TempDir(), nil)
	_, err := g.Pull(context.Background())
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestFileGatewayPullMissingFile(t *testing.T) {
	g := NewFileGateway(t.TempDir(), nil)
	g.SetSource(filepath.Join(t.TempDir(), "gone.json"))
	_, err := g.Pull(context.Background())
	assert.True(t, errors.Is(err, errors.CodeTransportFailure))
}

func TestFailedImportLeavesStoreUntouched(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"title": "x"}`), 0o644))

	g := NewFileGateway(dir, nil)
	g.SetSource(bad)

	s := sampleStore()
	before := s.Snapshot()
	applied, err := Import(context.Background(), g, s)
	assert.False(t, applied)
	assert.True(t, errors.Is(err, errors.CodeInvalidFormat))
	assert.Equal(t, before, s.Snapshot())
}

func TestImportFromFileErrors(t *testing.T) {
	g := NewFileGateway(t.TempDir(), nil)

	_, err := g.ImportFromFile([]byte(`{not json`))
	assert.True(t, errors.Is(err, errors.CodeParseFailure))

	_, err = g.ImportFromFile([]byte(`{"title": "x"}`))
	assert.True(t, errors.Is(err, errors.CodeInvalidFormat))
}

func TestWriteToReadFrom(t *testing.T) {
	g := NewFileGateway(t.TempDir(), nil)
	d := sampleStore().Snapshot()

	var buf bytes.Buffer
	require.NoError(t, g.WriteTo(&buf, d))
	got, err := g.ReadFrom(&buf)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestExportCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	g := NewFileGateway(dir, nil)
	require.NoError(t, g.Push(context.Background(), state.NewDrawing()))
	_, err := os.Stat(filepath.Join(dir, "Painting_Title.json"))
	assert.NoError(t, err)
}
