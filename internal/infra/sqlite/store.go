package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/idle-bit/idlebit/internal/domain"
	"github.com/idle-bit/idlebit/internal/infra/savefile"
)

// DefaultHistoryLimit is how many previous saves are kept.
const DefaultHistoryLimit = 20

// Store implements domain.SaveStore. Every save replaces the current slot
// and appends a history row; history beyond the limit is pruned.
type Store struct {
	db    *DB
	limit int
	now   func() time.Time
}

var _ domain.SaveStore = (*Store)(nil)

// NewStore creates a save store keeping up to historyLimit previous saves.
// A non-positive limit uses DefaultHistoryLimit.
func NewStore(db *DB, historyLimit int) *Store {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Store{db: db, limit: historyLimit, now: time.Now}
}

// HistoryEntry describes one saved snapshot.
type HistoryEntry struct {
	ID        string
	Version   int
	TotalBits float64
	Digest    string
	SavedAt   time.Time
}

// ─── Save Operations ────────────────────────────────────────────────────────

// Save persists data as the current save and records it in the history.
func (s *Store) Save(ctx context.Context, data domain.SaveData) error {
	blob, digest, err := savefile.Pack(data)
	if err != nil {
		return err
	}
	savedAt := s.now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO save_slot (slot, version, blob, digest, saved_at)
		VALUES (0, ?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			version  = excluded.version,
			blob     = excluded.blob,
			digest   = excluded.digest,
			saved_at = excluded.saved_at
	`, data.Version, blob, digest, savedAt); err != nil {
		return fmt.Errorf("save slot: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO save_history (id, version, blob, digest, total_bits, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), data.Version, blob, digest, totalBits(data), savedAt); err != nil {
		return fmt.Errorf("save history: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM save_history WHERE rowid NOT IN (
			SELECT rowid FROM save_history ORDER BY rowid DESC LIMIT ?
		)
	`, s.limit); err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return tx.Commit()
}

// Load returns the current save, or domain.ErrNoSave.
func (s *Store) Load(ctx context.Context) (*domain.SaveData, error) {
	var blob []byte
	var digest string
	err := s.db.db.QueryRowContext(ctx, `
		SELECT blob, digest FROM save_slot WHERE slot = 0
	`).Scan(&blob, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoSave
	}
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	data, err := savefile.Unpack(blob, digest)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

// Clear removes the current save. History is kept.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.db.ExecContext(ctx, `DELETE FROM save_slot`)
	return err
}

// ─── History Operations ─────────────────────────────────────────────────────

// History returns up to limit saves, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = s.limit
	}
	rows, err := s.db.db.QueryContext(ctx, `
		SELECT id, version, total_bits, digest, saved_at
		FROM save_history ORDER BY rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var savedStr string
		if err := rows.Scan(&e.ID, &e.Version, &e.TotalBits, &e.Digest, &savedStr); err != nil {
			return nil, err
		}
		e.SavedAt, _ = time.Parse(time.RFC3339Nano, savedStr)
		result = append(result, e)
	}
	return result, rows.Err()
}

// LoadHistory returns the snapshot stored under a history id, or domain.ErrNoSave.
func (s *Store) LoadHistory(ctx context.Context, id string) (*domain.SaveData, error) {
	var blob []byte
	var digest string
	err := s.db.db.QueryRowContext(ctx, `
		SELECT blob, digest FROM save_history WHERE id = ?
	`, id).Scan(&blob, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("history %s: %w", id, domain.ErrNoSave)
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	data, err := savefile.Unpack(blob, digest)
	if err != nil {
		return nil, err
	}
	return &data, nil
}

func totalBits(data domain.SaveData) float64 {
	var total float64
	for _, d := range data.Disks {
		total += d.Bits
	}
	if data.Cloud != nil {
		total += data.Cloud.Bits
	}
	return math.Floor(total)
}
