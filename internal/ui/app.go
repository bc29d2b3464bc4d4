// Package ui is the ShapeBoard desktop window: a title header with
// export and import actions, the drawing board, the shape palette and a
// status bar with live counts.
package ui

import (
	"context"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/charmbracelet/log"

	"ShapeBoard/internal/api"
	"ShapeBoard/internal/config"
	"ShapeBoard/internal/document"
	"ShapeBoard/internal/errors"
	"ShapeBoard/internal/export"
	"ShapeBoard/internal/gateway"
	shapenet "ShapeBoard/internal/net"
	"ShapeBoard/internal/session"
	"ShapeBoard/internal/state"
)

// AppID identifies the application's preferences store.
const AppID = "io.shapeboard.desktop"

const discoveryTimeout = 3 * time.Second

// Messages shown in the status bar.
const (
	msgExported = "Canvas exported successfully!"
	msgImported = "Canvas imported successfully!"
	msgNoServer = "No drawing server found"
)

// App wires the store, the gateway for the configured mode and the widgets.
type App struct {
	fyne   fyne.App
	window fyne.Window
	cfg    config.Config
	logger *log.Logger

	store  *state.Store
	files  *gateway.FileGateway
	prefs  session.Store
	board  *Board
	status *StatusBar
	title  *widget.Entry
	auth   *widget.Button

	mu     sync.Mutex
	remote *gateway.APIClient
	watch  context.CancelFunc

	// dirty is set by local edits and cleared after a sync.
	dirty atomic.Bool
}

// Run opens the window and blocks until it is closed.
func Run(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	a := New(app.NewWithID(AppID), cfg, logger)
	defer a.Close()

	stop := context.AfterFunc(ctx, func() {
		fyne.Do(a.window.Close)
	})
	defer stop()

	a.Start(ctx)
	a.window.ShowAndRun()
	return nil
}

// New builds the window for fa without showing it.
func New(fa fyne.App, cfg config.Config, logger *log.Logger) *App {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithPrefix("ui")

	a := &App{
		fyne:   fa,
		cfg:    cfg,
		logger: logger,
		store:  state.NewStore(logger),
		files:  gateway.NewFileGateway(cfg.Client.ExportDir, logger),
		prefs:  session.NewPrefsStore(fa.Preferences()),
	}
	if cfg.Mode == config.ModeAPI && cfg.Client.APIURL != "" {
		a.remote = a.newAPIClient(cfg.Client.APIURL)
	}

	a.board = NewBoard(a.store)
	a.status = NewStatusBar(a.store)
	a.store.Subscribe(func(state.Drawing) { a.dirty.Store(true) })

	a.title = widget.NewEntry()
	a.title.SetPlaceHolder("Enter painting title...")
	a.title.SetText(a.store.Snapshot().Title)
	a.title.OnChanged = a.store.SetTitle
	a.store.Subscribe(func(d state.Drawing) {
		fyne.Do(func() {
			if a.title.Text != d.Title {
				a.title.SetText(d.Title)
			}
		})
	})

	a.window = fa.NewWindow("ShapeBoard")
	a.window.Resize(fyne.NewSize(1024, 768))
	a.window.SetContent(container.NewBorder(
		a.header(),
		a.status.Content(),
		nil,
		NewPalette(a.board),
		container.NewScroll(a.board),
	))
	return a
}

func (a *App) header() fyne.CanvasObject {
	actions := []fyne.CanvasObject{
		widget.NewButtonWithIcon("Export", theme.DownloadIcon(), a.onExport),
		widget.NewButtonWithIcon("Import", theme.UploadIcon(), a.onImport),
		widget.NewButtonWithIcon("Export PDF", theme.DocumentPrintIcon(), a.onExportPDF),
	}
	if a.cfg.Mode == config.ModeAPI {
		a.auth = widget.NewButtonWithIcon("", theme.AccountIcon(), a.onAuth)
		a.refreshAuth()
		actions = append(actions, a.auth)
	}

	titleBox := container.New(layout.NewGridWrapLayout(fyne.NewSize(420, a.title.MinSize().Height)), a.title)
	return container.NewPadded(container.NewHBox(titleBox, layout.NewSpacer(), container.NewHBox(actions...)))
}

// Start begins background work: server discovery when no API URL is
// configured, and the change feed when a session is already stored.
func (a *App) Start(ctx context.Context) {
	if a.cfg.Mode != config.ModeAPI {
		return
	}
	if a.client() == nil {
		go a.discover(ctx)
		return
	}
	if a.prefs.Token() != "" {
		a.startWatch()
	}
}

// Close stops background work.
func (a *App) Close() {
	a.stopWatch()
	a.board.Close()
	a.status.Close()
}

func (a *App) newAPIClient(baseURL string) *gateway.APIClient {
	return gateway.NewAPIClient(baseURL, a.prefs,
		gateway.WithHTTPClient(newHTTPClient(a.cfg.Client.Timeout.Duration)),
		gateway.WithLogger(a.logger),
	)
}

func (a *App) client() *gateway.APIClient {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remote
}

func (a *App) discover(ctx context.Context) {
	fyne.Do(func() { a.status.SetMessage("Searching for a drawing server...") })
	addrs, err := shapenet.Browse(ctx, discoveryTimeout)
	if err != nil || len(addrs) == 0 {
		a.logger.Warn("discovery found nothing", "err", err)
		fyne.Do(func() { a.status.SetMessage(msgNoServer) })
		return
	}

	url := "http://" + addrs[0]
	a.logger.Info("discovered server", "url", url)
	a.mu.Lock()
	a.remote = a.newAPIClient(url)
	a.mu.Unlock()

	fyne.Do(func() { a.status.SetMessage("Connected to " + url) })
	if a.prefs.Token() != "" {
		a.startWatch()
	}
}

func (a *App) setStatus(text string) {
	a.status.SetMessage(text)
}

func (a *App) showError(err error) {
	a.logger.Error("operation failed", "err", err)
	a.setStatus(errors.Message(err))
}

func (a *App) onExport() {
	if a.cfg.Mode == config.ModeAPI {
		a.exportRemoteAsync()
		return
	}

	d := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil {
			a.showError(err)
			return
		}
		if w == nil {
			return
		}
		a.exportTo(w)
	}, a.window)
	d.SetFileName(document.FileName(a.store.Snapshot().Title))
	d.SetFilter(storage.NewExtensionFileFilter([]string{".json"}))
	a.setDialogLocation(d)
	d.Show()
}

// exportTo writes the current drawing to w and closes it.
func (a *App) exportTo(w io.WriteCloser) {
	err := a.files.WriteTo(w, a.store.Snapshot())
	if cerr := w.Close(); err == nil && cerr != nil {
		err = errors.Wrap(errors.CodeTransportFailure, cerr, "close export file")
	}
	if err != nil {
		a.showError(err)
		return
	}
	a.dirty.Store(false)
	a.setStatus(msgExported)
}

func (a *App) onImport() {
	if a.cfg.Mode == config.ModeAPI {
		a.importRemoteAsync()
		return
	}

	d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
		if err != nil {
			a.showError(err)
			return
		}
		if r == nil {
			return
		}
		a.importFrom(r)
	}, a.window)
	d.SetFilter(storage.NewExtensionFileFilter([]string{".json"}))
	a.setDialogLocation(d)
	d.Show()
}

// importFrom replaces the drawing with the document read from r and closes
// it. A failed import leaves the drawing untouched.
func (a *App) importFrom(r io.ReadCloser) {
	ticket := a.store.BeginImport()
	d, err := a.files.ReadFrom(r)
	r.Close()
	if err != nil {
		a.showError(err)
		return
	}
	if a.store.CommitImport(ticket, d) {
		a.dirty.Store(false)
		a.setStatus(msgImported)
	}
}

func (a *App) onExportPDF() {
	d := dialog.NewFileSave(func(w fyne.URIWriteCloser, err error) {
		if err != nil {
			a.showError(err)
			return
		}
		if w == nil {
			return
		}
		defer w.Close()
		if err := export.WritePDF(w, a.store.Snapshot()); err != nil {
			a.showError(err)
			return
		}
		a.setStatus("PDF exported to " + w.URI().Name())
	}, a.window)
	d.SetFileName(export.FileName(a.store.Snapshot().Title))
	d.SetFilter(storage.NewExtensionFileFilter([]string{".pdf"}))
	a.setDialogLocation(d)
	d.Show()
}

func (a *App) setDialogLocation(d *dialog.FileDialog) {
	dir := a.cfg.Client.ExportDir
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		a.logger.Warn("export dir unavailable", "dir", dir, "err", err)
		return
	}
	if loc, err := storage.ListerForURI(storage.NewFileURI(dir)); err == nil {
		d.SetLocation(loc)
	}
}

// requireClient returns the API client, or reports why there is none.
func (a *App) requireClient() (*gateway.APIClient, bool) {
	c := a.client()
	if c == nil {
		a.setStatus(msgNoServer)
		return nil, false
	}
	if !c.SignedIn() {
		a.showSignIn()
		return nil, false
	}
	return c, true
}

func (a *App) exportRemoteAsync() {
	c, ok := a.requireClient()
	if !ok {
		return
	}
	snapshot := a.store.Snapshot()
	a.setStatus("Saving...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Client.Timeout.Duration)
		defer cancel()
		err := c.Push(ctx, snapshot)
		fyne.Do(func() { a.finishExport(err) })
	}()
}

func (a *App) finishExport(err error) {
	if err != nil {
		a.handleRemoteError(err)
		return
	}
	a.dirty.Store(false)
	a.setStatus(msgExported)
}

func (a *App) importRemoteAsync() {
	c, ok := a.requireClient()
	if !ok {
		return
	}
	ticket := a.store.BeginImport()
	a.setStatus("Loading...")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Client.Timeout.Duration)
		defer cancel()
		d, err := c.Pull(ctx)
		fyne.Do(func() { a.finishImport(ticket, d, err) })
	}()
}

func (a *App) finishImport(ticket uint64, d state.Drawing, err error) {
	if err != nil {
		a.handleRemoteError(err)
		return
	}
	if !a.store.CommitImport(ticket, d) {
		a.logger.Debug("discarded stale import", "ticket", ticket)
		return
	}
	a.dirty.Store(false)
	a.setStatus(msgImported)
}

func (a *App) handleRemoteError(err error) {
	a.showError(err)
	if errors.Is(err, errors.CodeUnauthorized) {
		a.stopWatch()
		a.prefs.Clear()
		a.refreshAuth()
	}
}

// onRemoteChange reacts to another client saving the drawing. Local edits
// that have not been synced are never overwritten.
func (a *App) onRemoteChange() {
	if a.dirty.Load() {
		a.setStatus("Drawing changed on another device; Import to load it")
		return
	}
	a.importRemoteAsync()
}

func (a *App) startWatch() {
	c := a.client()
	if c == nil || !c.SignedIn() {
		return
	}
	url, err := c.EventsURL()
	if err != nil {
		a.logger.Warn("no events url", "err", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	if a.watch != nil {
		a.watch()
	}
	a.watch = cancel
	a.mu.Unlock()

	go func() {
		err := shapenet.Watch(ctx, url, c.Token(), func(ev api.Event) {
			a.logger.Debug("remote change", "type", ev.Type, "at", ev.UpdatedAt)
			fyne.Do(a.onRemoteChange)
		})
		if err != nil && ctx.Err() == nil {
			a.logger.Warn("change feed closed", "err", err)
		}
	}()
}

func (a *App) stopWatch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.watch != nil {
		a.watch()
		a.watch = nil
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = gateway.DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}
