// Package clinvar turns a large clinical-variant reference dump into a
// compact, versioned lookup cache bounded to the rsIDs the user actually
// carries. Builds write a fresh version and atomically swap a current-version
// pointer; readers of the prior version are never disturbed.
package clinvar

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/variantlab/genotype-cli/internal/model"
)

// Cache is the durable keyed store backing ClinVar lookups.
type Cache struct {
	db *sql.DB
}

// VersionInfo describes one built cache version.
type VersionInfo struct {
	ID         string    `json:"id"`
	BuiltAt    time.Time `json:"built_at"`
	Kept       int64     `json:"kept"`
	Skipped    int64     `json:"skipped"`
	SourceName string    `json:"source_name"`
}

// Open opens (creating if needed) the cache artifact at the given path.
func Open(dsn string) (*Cache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "clinvar: open cache")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "clinvar: exec %s", pragma)
		}
	}
	return &Cache{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS versions (
	id          TEXT PRIMARY KEY,
	built_at    DATETIME NOT NULL,
	kept        INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	source_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS current_version (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	version_id TEXT NOT NULL REFERENCES versions(id)
);

CREATE TABLE IF NOT EXISTS variants (
	version_id            TEXT NOT NULL,
	rsid                  TEXT NOT NULL,
	clinical_significance TEXT NOT NULL,
	review_status         TEXT NOT NULL,
	last_evaluated        TEXT,
	conflicts             INTEGER NOT NULL,
	PRIMARY KEY (version_id, rsid)
);
`

func (c *Cache) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "clinvar: migrate")
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Current returns metadata for the version readers currently resolve, or
// ErrNoCacheBuilt.
func (c *Cache) Current(ctx context.Context) (*VersionInfo, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT v.id, v.built_at, v.kept, v.skipped, v.source_name
		 FROM versions v JOIN current_version c ON c.version_id = v.id`,
	)
	var info VersionInfo
	err := row.Scan(&info.ID, &info.BuiltAt, &info.Kept, &info.Skipped, &info.SourceName)
	if err == sql.ErrNoRows {
		return nil, model.ErrNoCacheBuilt
	}
	if err != nil {
		return nil, eris.Wrap(err, "clinvar: scan current version")
	}
	return &info, nil
}

// Lookup returns the annotation for one rsID from the current cache version,
// nil when the rsID has no entry, ErrNoCacheBuilt when no build has run.
func (c *Cache) Lookup(ctx context.Context, rsid string) (*model.ClinVarVariant, error) {
	info, err := c.Current(ctx)
	if err != nil {
		return nil, err
	}

	row := c.db.QueryRowContext(ctx,
		`SELECT rsid, clinical_significance, review_status, COALESCE(last_evaluated, ''), conflicts
		 FROM variants WHERE version_id = ? AND rsid = ?`,
		info.ID, rsid,
	)
	var v model.ClinVarVariant
	var conflicts int
	err = row.Scan(&v.RSID, &v.ClinicalSignificance, &v.ReviewStatus, &v.LastEvaluated, &conflicts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "clinvar: scan variant")
	}
	v.Conflicts = conflicts != 0
	return &v, nil
}

// LookupAll returns annotations for every supplied rsID that has an entry in
// the current cache version.
func (c *Cache) LookupAll(ctx context.Context, rsids map[string]struct{}) (map[string]model.ClinVarVariant, error) {
	info, err := c.Current(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.ClinVarVariant)
	for rsid := range rsids {
		row := c.db.QueryRowContext(ctx,
			`SELECT rsid, clinical_significance, review_status, COALESCE(last_evaluated, ''), conflicts
			 FROM variants WHERE version_id = ? AND rsid = ?`,
			info.ID, rsid,
		)
		var v model.ClinVarVariant
		var conflicts int
		err := row.Scan(&v.RSID, &v.ClinicalSignificance, &v.ReviewStatus, &v.LastEvaluated, &conflicts)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, eris.Wrap(err, "clinvar: scan variant")
		}
		v.Conflicts = conflicts != 0
		out[rsid] = v
	}
	return out, nil
}

func (c *Cache) insertBatch(ctx context.Context, versionID string, batch []model.ClinVarVariant) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "clinvar: begin batch")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO variants
			(version_id, rsid, clinical_significance, review_status, last_evaluated, conflicts)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "clinvar: prepare insert")
	}
	defer stmt.Close()

	for _, v := range batch {
		conflicts := 0
		if v.Conflicts {
			conflicts = 1
		}
		if _, err := stmt.ExecContext(ctx, versionID, v.RSID, v.ClinicalSignificance,
			v.ReviewStatus, v.LastEvaluated, conflicts); err != nil {
			return eris.Wrapf(err, "clinvar: insert %s", v.RSID)
		}
	}
	return eris.Wrap(tx.Commit(), "clinvar: commit batch")
}

// finalize records the version row and swaps the current-version pointer in
// one transaction. This is the only write readers can observe.
func (c *Cache) finalize(ctx context.Context, info VersionInfo) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "clinvar: begin finalize")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO versions (id, built_at, kept, skipped, source_name) VALUES (?, ?, ?, ?, ?)`,
		info.ID, info.BuiltAt, info.Kept, info.Skipped, info.SourceName,
	); err != nil {
		return eris.Wrap(err, "clinvar: insert version")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO current_version (id, version_id) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET version_id = excluded.version_id`,
		info.ID,
	); err != nil {
		return eris.Wrap(err, "clinvar: swap current version")
	}
	return eris.Wrap(tx.Commit(), "clinvar: commit finalize")
}

// dropVersion removes rows of an abandoned build.
func (c *Cache) dropVersion(versionID string) {
	_, _ = c.db.Exec(`DELETE FROM variants WHERE version_id = ?`, versionID)
}

func newVersionID() string {
	return uuid.New().String()
}
