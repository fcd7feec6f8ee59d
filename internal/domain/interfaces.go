package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the game core depends on them.

// SaveStore abstracts persistent snapshot storage.
type SaveStore interface {
	// Save persists the snapshot as the current save.
	Save(ctx context.Context, data SaveData) error

	// Load returns the current save, or ErrNoSave when nothing is stored.
	Load(ctx context.Context) (*SaveData, error)

	// Clear removes the current save.
	Clear(ctx context.Context) error
}
