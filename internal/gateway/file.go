package gateway

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"ShapeBoard/internal/document"
	"ShapeBoard/internal/errors"
	"ShapeBoard/internal/state"
)

// FileGateway stores drawings as JSON documents in a directory. Push writes
// <dir>/<sanitized-title>.json; Pull reads the configured source file, or the
// file written by the most recent Push.
type FileGateway struct {
	dir    string
	now    func() time.Time
	logger *log.Logger

	mu     sync.Mutex
	source string
}

// NewFileGateway creates a gateway rooted at dir. The directory is created on
// first export.
func NewFileGateway(dir string, logger *log.Logger) *FileGateway {
	if logger == nil {
		logger = log.Default()
	}
	return &FileGateway{dir: dir, now: time.Now, logger: logger.WithPrefix("file")}
}

// SetSource selects the file Pull reads.
func (g *FileGateway) SetSource(path string) {
	g.mu.Lock()
	g.source = path
	g.mu.Unlock()
}

// Source returns the file Pull reads.
func (g *FileGateway) Source() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.source
}

// Push implements Gateway.
func (g *FileGateway) Push(_ context.Context, d state.Drawing) error {
	_, err := g.ExportToFile(d)
	return err
}

// Pull implements Gateway.
func (g *FileGateway) Pull(_ context.Context) (state.Drawing, error) {
	path := g.Source()
	if path == "" {
		return state.Drawing{}, errors.New(errors.CodeNotFound, "no drawing file selected")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return state.Drawing{}, errors.Wrap(errors.CodeTransportFailure, err, "read %s", path)
	}
	return g.ImportFromFile(data)
}

// ExportToFile writes d to the export directory and returns the file path.
func (g *FileGateway) ExportToFile(d state.Drawing) (path string, err error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", errors.Wrap(errors.CodeTransportFailure, err, "create export dir")
	}
	path = filepath.Join(g.dir, document.FileName(d.Title))

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(errors.CodeTransportFailure, err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(errors.CodeTransportFailure, cerr, "close %s", path)
		}
	}()

	if err := g.WriteTo(f, d); err != nil {
		return "", err
	}

	g.SetSource(path)
	g.logger.Info("drawing exported", "path", path, "objects", len(d.Objects))
	return path, nil
}

// ImportFromFile decodes file contents into a drawing.
func (g *FileGateway) ImportFromFile(contents []byte) (state.Drawing, error) {
	d, err := document.Decode(contents)
	if err != nil {
		g.logger.Warn("import rejected", "err", err)
		return state.Drawing{}, err
	}
	return d, nil
}

// WriteTo encodes d into w, stamped with the current time.
func (g *FileGateway) WriteTo(w io.Writer, d state.Drawing) error {
	data, err := document.Encode(d, g.now())
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return errors.Wrap(errors.CodeTransportFailure, err, "write drawing")
	}
	return nil
}

// ReadFrom reads and decodes a whole document from r.
func (g *FileGateway) ReadFrom(r io.Reader) (state.Drawing, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return state.Drawing{}, errors.Wrap(errors.CodeTransportFailure, err, "read drawing")
	}
	return g.ImportFromFile(data)
}

var _ Gateway = (*FileGateway)(nil)
