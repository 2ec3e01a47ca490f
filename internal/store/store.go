// Package store is the durable, encrypted, per-profile repository of
// committed genotype data. Metadata lives in sqlite; the raw import and the
// genotype record set are encrypted blobs on disk, made visible atomically
// with the sqlite commit that references them.
package store

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/variantlab/genotype-cli/internal/model"
)

// Store implements the genotype repository over modernc.org/sqlite.
type Store struct {
	db      *sql.DB
	blobDir string

	mu       sync.Mutex
	inflight map[string]*ImportTx

	snapMu sync.RWMutex
	snaps  map[string]*snapshot
}

// snapshot is a decrypted genotype set cached per profile, keyed by the
// import that produced it so a replace invalidates it.
type snapshot struct {
	importID string
	records  []model.GenotypeRecord
	byRSID   map[string]int
}

// New opens the store database at the given path and configures WAL mode.
// Encrypted blobs are written under blobDir.
func New(dsn, blobDir string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "store: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	if err := os.MkdirAll(blobDir, 0o700); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "store: create blob dir")
	}
	return &Store{
		db:       db,
		blobDir:  blobDir,
		inflight: make(map[string]*ImportTx),
		snaps:    make(map[string]*snapshot),
	}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS profiles (
	id           TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	notes        TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS imports (
	id             TEXT PRIMARY KEY,
	profile_id     TEXT NOT NULL UNIQUE REFERENCES profiles(id),
	source         TEXT NOT NULL,
	file_sha256    TEXT NOT NULL,
	imported_at    DATETIME NOT NULL,
	parser_version TEXT NOT NULL,
	record_count   INTEGER NOT NULL,
	qc             TEXT NOT NULL,
	raw_path       TEXT NOT NULL,
	genotype_path  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_imports_profile_id ON imports(profile_id);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "store: migrate")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateProfile registers a new profile namespace.
func (s *Store) CreateProfile(ctx context.Context, displayName, notes string) (*model.Profile, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, display_name, notes, created_at) VALUES (?, ?, ?, ?)`,
		id, displayName, notes, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: insert profile")
	}
	return &model.Profile{ID: id, DisplayName: displayName, Notes: notes, CreatedAt: now}, nil
}

func (s *Store) GetProfile(ctx context.Context, profileID string) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, COALESCE(notes, ''), created_at FROM profiles WHERE id = ?`,
		profileID,
	)
	var p model.Profile
	err := row.Scan(&p.ID, &p.DisplayName, &p.Notes, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("store: profile not found: %s", profileID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan profile")
	}
	return &p, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, display_name, COALESCE(notes, ''), created_at FROM profiles ORDER BY created_at`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: list profiles")
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.Notes, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan profile")
		}
		profiles = append(profiles, p)
	}
	return profiles, eris.Wrap(rows.Err(), "store: list profiles iterate")
}

// DeleteProfile removes a profile and every artifact committed for it.
func (s *Store) DeleteProfile(ctx context.Context, profileID string) error {
	paths, err := s.blobPaths(ctx, profileID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin delete profile")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM imports WHERE profile_id = ?`, profileID); err != nil {
		return eris.Wrap(err, "store: delete imports")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, profileID); err != nil {
		return eris.Wrap(err, "store: delete profile")
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "store: commit delete profile")
	}

	s.dropSnapshot(profileID)
	for _, p := range paths {
		_ = os.Remove(p)
	}
	return nil
}

func (s *Store) blobPaths(ctx context.Context, profileID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT raw_path, genotype_path FROM imports WHERE profile_id = ?`, profileID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: query blob paths")
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var raw, geno string
		if err := rows.Scan(&raw, &geno); err != nil {
			return nil, eris.Wrap(err, "store: scan blob paths")
		}
		paths = append(paths, raw, geno)
	}
	return paths, eris.Wrap(rows.Err(), "store: blob paths iterate")
}

func (s *Store) dropSnapshot(profileID string) {
	s.snapMu.Lock()
	delete(s.snaps, profileID)
	s.snapMu.Unlock()
}
