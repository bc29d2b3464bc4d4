// Package gateway moves drawings in and out of the application, either as
// JSON files on disk or through the remote drawing API.
//
// The two transports satisfy the same Gateway interface and are chosen once
// at start-up; a session never mixes them. Every call is fire-once: nothing
// is retried, and a failed Pull leaves the caller's drawing untouched because
// results are only returned, never applied here.
package gateway

import (
	"context"

	"ShapeBoard/internal/state"
)

// Gateway persists and retrieves a drawing.
type Gateway interface {
	// Push persists d.
	Push(ctx context.Context, d state.Drawing) error
	// Pull retrieves the last persisted drawing.
	Pull(ctx context.Context) (state.Drawing, error)
}

// Import pulls a drawing through g and commits it to store under an import
// ticket, so an older import finishing late cannot overwrite a newer one.
// It reports whether the drawing was applied.
func Import(ctx context.Context, g Gateway, store *state.Store) (bool, error) {
	ticket := store.BeginImport()
	d, err := g.Pull(ctx)
	if err != nil {
		return false, err
	}
	return store.CommitImport(ticket, d), nil
}

// Export pushes a snapshot of store through g.
func Export(ctx context.Context, g Gateway, store *state.Store) error {
	return g.Push(ctx, store.Snapshot())
}
