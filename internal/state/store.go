package state

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Store owns the live drawing. All mutation goes through its methods, which
// serialize on a single mutex; subscribers are notified after the lock is
// released with a snapshot of the new state. Snapshots reach subscribers in
// mutation order, and one that is superseded before delivery is skipped.
type Store struct {
	mu      sync.RWMutex
	drawing Drawing
	clock   Clock

	// Import tickets: issued counts BeginImport calls, committed is the
	// highest ticket applied so far.
	issued    uint64
	committed uint64

	// seq numbers mutations; it is guarded by mu.
	seq uint64

	subMu  sync.Mutex
	subs   map[int]func(Drawing)
	nextID int

	notifyMu   sync.Mutex
	pending    *versioned
	delivered  uint64
	delivering bool

	logger *log.Logger
}

type versioned struct {
	seq uint64
	d   Drawing
}

// NewStore creates a store holding an empty drawing. A nil logger falls back
// to log.Default().
func NewStore(logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		drawing: NewDrawing(),
		subs:    make(map[int]func(Drawing)),
		logger:  logger.WithPrefix("store"),
	}
}

// AddShape appends a new shape with a freshly minted id and returns it.
func (s *Store) AddShape(kind ShapeKind, x, y float64) ShapeInstance {
	s.mu.Lock()
	shape := ShapeInstance{ID: s.clock.nextID(kind), Kind: kind, X: x, Y: y}
	s.drawing.Objects = append(s.drawing.Objects, shape)
	snap := s.stamp()
	s.mu.Unlock()

	s.logger.Debug("shape added", "id", shape.ID, "x", x, "y", y)
	s.notify(snap)
	return shape
}

// RemoveShape removes the first shape with the given id. Unknown ids are
// ignored.
func (s *Store) RemoveShape(id string) {
	s.mu.Lock()
	idx := -1
	for i, o := range s.drawing.Objects {
		if o.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	objs := make([]ShapeInstance, 0, len(s.drawing.Objects)-1)
	objs = append(objs, s.drawing.Objects[:idx]...)
	objs = append(objs, s.drawing.Objects[idx+1:]...)
	s.drawing.Objects = objs
	snap := s.stamp()
	s.mu.Unlock()

	s.logger.Debug("shape removed", "id", id)
	s.notify(snap)
}

// SetDrawing replaces title and objects in one step.
func (s *Store) SetDrawing(title string, objects []ShapeInstance) {
	s.mu.Lock()
	s.replace(title, objects)
	snap := s.stamp()
	s.mu.Unlock()

	s.logger.Debug("drawing replaced", "title", title, "objects", len(objects))
	s.notify(snap)
}

// SetTitle changes only the title.
func (s *Store) SetTitle(title string) {
	s.mu.Lock()
	if s.drawing.Title == title {
		s.mu.Unlock()
		return
	}
	s.drawing.Title = title
	snap := s.stamp()
	s.mu.Unlock()
	s.notify(snap)
}

// CountsByKind reports how many shapes of each kind the drawing holds.
func (s *Store) CountsByKind() map[ShapeKind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drawing.Counts()
}

// Snapshot returns a copy of the current drawing.
func (s *Store) Snapshot() Drawing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drawing.Clone()
}

// BeginImport issues a ticket for an import that is about to start.
func (s *Store) BeginImport() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// CommitImport replaces the drawing with d unless an import holding a later
// ticket has already been committed. It reports whether d was applied.
func (s *Store) CommitImport(ticket uint64, d Drawing) bool {
	s.mu.Lock()
	if ticket <= s.committed {
		s.mu.Unlock()
		s.logger.Warn("stale import discarded", "ticket", ticket, "committed", s.committed)
		return false
	}
	s.committed = ticket
	s.replace(d.Title, d.Objects)
	snap := s.stamp()
	s.mu.Unlock()

	s.logger.Info("drawing imported", "title", d.Title, "objects", len(d.Objects))
	s.notify(snap)
	return true
}

// Subscribe registers fn to run after every mutation. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn func(Drawing)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// stamp numbers the current state and returns its snapshot. mu must be held.
func (s *Store) stamp() versioned {
	s.seq++
	return versioned{seq: s.seq, d: s.drawing.Clone()}
}

// replace must be called with mu held.
func (s *Store) replace(title string, objects []ShapeInstance) {
	objs := make([]ShapeInstance, len(objects))
	copy(objs, objects)
	s.drawing = Drawing{Title: title, Objects: objs}
}

func (s *Store) notify(v versioned) {
	s.notifyMu.Lock()
	if v.seq <= s.delivered || (s.pending != nil && v.seq <= s.pending.seq) {
		s.notifyMu.Unlock()
		return
	}
	s.pending = &v
	if s.delivering {
		// the goroutine already delivering picks it up
		s.notifyMu.Unlock()
		return
	}
	s.delivering = true
	for s.pending != nil {
		next := s.pending
		s.pending = nil
		s.delivered = next.seq
		s.notifyMu.Unlock()
		s.deliver(next.d)
		s.notifyMu.Lock()
	}
	s.delivering = false
	s.notifyMu.Unlock()
}

func (s *Store) deliver(d Drawing) {
	s.subMu.Lock()
	fns := make([]func(Drawing), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(d.Clone())
	}
}
