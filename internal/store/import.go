package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/variantlab/genotype-cli/internal/cryptobox"
	"github.com/variantlab/genotype-cli/internal/model"
)

// ImportTx is one pending import transaction. It owns all uncommitted state;
// nothing it holds is visible to readers before Commit returns nil.
type ImportTx struct {
	ID        string
	ProfileID string
	StartedAt time.Time

	done bool
}

// CommitInput carries everything a commit makes visible atomically.
type CommitInput struct {
	Records       []model.GenotypeRecord
	QC            model.QCReport
	EncryptedRaw  *cryptobox.Blob
	Passphrase    []byte
	Source        string
	FileSHA256    string
	ParserVersion string

	// Replace supersedes a prior committed import for the profile. Without
	// it, committing over existing data fails with ErrProfileHasData: the
	// destructive path is never the default.
	Replace bool
}

// Begin opens an import transaction for a profile. A second transaction for
// the same profile is rejected while the first is in flight; transactions
// for different profiles are independent.
func (s *Store) Begin(ctx context.Context, profileID string) (*ImportTx, error) {
	if _, err := s.GetProfile(ctx, profileID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[profileID]; busy {
		return nil, model.ErrImportInFlight
	}
	tx := &ImportTx{
		ID:        uuid.New().String(),
		ProfileID: profileID,
		StartedAt: time.Now().UTC(),
	}
	s.inflight[profileID] = tx
	return tx, nil
}

// Discard releases a transaction without committing. Always safe; prior
// committed state is untouched. Idempotent.
func (s *Store) Discard(tx *ImportTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.done {
		return
	}
	tx.done = true
	delete(s.inflight, tx.ProfileID)
}

// Commit makes the record set, QC report, encrypted raw blob and the
// last-import pointer visible together, or not at all. The record set is
// gob-encoded and encrypted before anything touches disk; on any failure
// every partial artifact is removed and the prior commit stays intact.
func (s *Store) Commit(ctx context.Context, tx *ImportTx, in CommitInput) (*model.ImportSummary, error) {
	s.mu.Lock()
	if tx.done {
		s.mu.Unlock()
		return nil, eris.New("store: transaction already finished")
	}
	s.mu.Unlock()
	defer s.Discard(tx)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(in.Records); err != nil {
		return nil, &model.StorageError{Op: "encode records", Err: err}
	}
	genoBlob, err := cryptobox.Encrypt(buf.Bytes(), in.Passphrase)
	if err != nil {
		return nil, &model.StorageError{Op: "encrypt records", Err: err}
	}

	qcJSON, err := json.Marshal(in.QC)
	if err != nil {
		return nil, &model.StorageError{Op: "encode qc", Err: err}
	}

	rawPath := filepath.Join(s.blobDir, tx.ID+".raw")
	genoPath := filepath.Join(s.blobDir, tx.ID+".genotypes")

	cleanup := func() {
		_ = os.Remove(rawPath)
		_ = os.Remove(genoPath)
	}

	if err := os.WriteFile(rawPath, in.EncryptedRaw.Marshal(), 0o600); err != nil {
		cleanup()
		return nil, &model.StorageError{Op: "write raw blob", Err: err}
	}
	if err := os.WriteFile(genoPath, genoBlob.Marshal(), 0o600); err != nil {
		cleanup()
		return nil, &model.StorageError{Op: "write genotype blob", Err: err}
	}

	now := time.Now().UTC()

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		cleanup()
		return nil, &model.StorageError{Op: "begin", Err: err}
	}
	defer dbTx.Rollback()

	var priorRaw, priorGeno string
	err = dbTx.QueryRowContext(ctx,
		`SELECT raw_path, genotype_path FROM imports WHERE profile_id = ?`, tx.ProfileID,
	).Scan(&priorRaw, &priorGeno)
	switch {
	case err == sql.ErrNoRows:
		// first import for this profile
	case err != nil:
		cleanup()
		return nil, &model.StorageError{Op: "query prior import", Err: err}
	case !in.Replace:
		cleanup()
		return nil, model.ErrProfileHasData
	default:
		if _, err := dbTx.ExecContext(ctx,
			`DELETE FROM imports WHERE profile_id = ?`, tx.ProfileID,
		); err != nil {
			cleanup()
			return nil, &model.StorageError{Op: "delete prior import", Err: err}
		}
	}

	_, err = dbTx.ExecContext(ctx,
		`INSERT INTO imports
			(id, profile_id, source, file_sha256, imported_at, parser_version, record_count, qc, raw_path, genotype_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.ProfileID, in.Source, in.FileSHA256, now, in.ParserVersion,
		len(in.Records), string(qcJSON), rawPath, genoPath,
	)
	if err != nil {
		cleanup()
		return nil, &model.StorageError{Op: "insert import", Err: err}
	}

	if err := dbTx.Commit(); err != nil {
		cleanup()
		return nil, &model.StorageError{Op: "commit", Err: err}
	}

	s.dropSnapshot(tx.ProfileID)
	if priorRaw != "" {
		// Superseded blobs are unreachable once the pointer row is gone.
		if err := os.Remove(priorRaw); err != nil && !os.IsNotExist(err) {
			zap.L().Warn("failed to remove superseded raw blob", zap.String("path", priorRaw), zap.Error(err))
		}
		if err := os.Remove(priorGeno); err != nil && !os.IsNotExist(err) {
			zap.L().Warn("failed to remove superseded genotype blob", zap.String("path", priorGeno), zap.Error(err))
		}
	}

	return &model.ImportSummary{
		ImportID:      tx.ID,
		ProfileID:     tx.ProfileID,
		Source:        in.Source,
		FileSHA256:    in.FileSHA256,
		ImportedAt:    now,
		ParserVersion: in.ParserVersion,
		RecordCount:   len(in.Records),
		QC:            in.QC,
		State:         model.StateCompleted,
	}, nil
}

// LatestImport returns the committed import metadata for a profile, or
// ErrNoGenotypeData.
func (s *Store) LatestImport(ctx context.Context, profileID string) (*model.ImportSummary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, profile_id, source, file_sha256, imported_at, parser_version, record_count, qc
		 FROM imports WHERE profile_id = ?`,
		profileID,
	)

	var sum model.ImportSummary
	var qcJSON string
	err := row.Scan(&sum.ImportID, &sum.ProfileID, &sum.Source, &sum.FileSHA256,
		&sum.ImportedAt, &sum.ParserVersion, &sum.RecordCount, &qcJSON)
	if err == sql.ErrNoRows {
		return nil, model.ErrNoGenotypeData
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan import")
	}
	if err := json.Unmarshal([]byte(qcJSON), &sum.QC); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal qc")
	}
	sum.State = model.StateCompleted
	return &sum, nil
}

// QCReport returns the immutable QC report attached to the committed import.
func (s *Store) QCReport(ctx context.Context, profileID string) (*model.QCReport, error) {
	sum, err := s.LatestImport(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return &sum.QC, nil
}

// Query returns the committed record for one rsID, or nil when absent.
func (s *Store) Query(ctx context.Context, profileID, rsid string, passphrase []byte) (*model.GenotypeRecord, error) {
	snap, err := s.loadSnapshot(ctx, profileID, passphrase)
	if err != nil {
		return nil, err
	}
	idx, ok := snap.byRSID[rsid]
	if !ok {
		return nil, nil
	}
	rec := snap.records[idx]
	return &rec, nil
}

// All returns every committed record for a profile in stored order.
func (s *Store) All(ctx context.Context, profileID string, passphrase []byte) ([]model.GenotypeRecord, error) {
	snap, err := s.loadSnapshot(ctx, profileID, passphrase)
	if err != nil {
		return nil, err
	}
	out := make([]model.GenotypeRecord, len(snap.records))
	copy(out, snap.records)
	return out, nil
}

// RSIDs returns the set of committed rsIDs for a profile.
func (s *Store) RSIDs(ctx context.Context, profileID string, passphrase []byte) (map[string]struct{}, error) {
	snap, err := s.loadSnapshot(ctx, profileID, passphrase)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(snap.byRSID))
	for rsid := range snap.byRSID {
		set[rsid] = struct{}{}
	}
	return set, nil
}

// loadSnapshot decrypts and caches the committed genotype set. The cache is
// keyed by import id, so a replaced import is never served stale.
func (s *Store) loadSnapshot(ctx context.Context, profileID string, passphrase []byte) (*snapshot, error) {
	sum, err := s.LatestImport(ctx, profileID)
	if err != nil {
		return nil, err
	}

	s.snapMu.RLock()
	snap, ok := s.snaps[profileID]
	s.snapMu.RUnlock()
	if ok && snap.importID == sum.ImportID {
		return snap, nil
	}

	var genoPath string
	err = s.db.QueryRowContext(ctx,
		`SELECT genotype_path FROM imports WHERE id = ?`, sum.ImportID,
	).Scan(&genoPath)
	if err != nil {
		return nil, eris.Wrap(err, "store: query genotype path")
	}

	data, err := os.ReadFile(genoPath)
	if err != nil {
		return nil, eris.Wrap(err, "store: read genotype blob")
	}
	blob, err := cryptobox.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	plaintext, err := cryptobox.Decrypt(blob, passphrase)
	if err != nil {
		return nil, err
	}

	var records []model.GenotypeRecord
	if err := gob.NewDecoder(bytes.NewReader(plaintext)).Decode(&records); err != nil {
		return nil, eris.Wrap(err, "store: decode records")
	}

	byRSID := make(map[string]int, len(records))
	for i, rec := range records {
		byRSID[rec.RSID] = i
	}
	snap = &snapshot{importID: sum.ImportID, records: records, byRSID: byRSID}

	s.snapMu.Lock()
	s.snaps[profileID] = snap
	s.snapMu.Unlock()
	return snap, nil
}

// RawBlob returns the encrypted raw import for a profile, decrypted.
func (s *Store) RawBlob(ctx context.Context, profileID string, passphrase []byte) ([]byte, error) {
	sum, err := s.LatestImport(ctx, profileID)
	if err != nil {
		return nil, err
	}
	var rawPath string
	err = s.db.QueryRowContext(ctx,
		`SELECT raw_path FROM imports WHERE id = ?`, sum.ImportID,
	).Scan(&rawPath)
	if err != nil {
		return nil, eris.Wrap(err, "store: query raw path")
	}
	data, err := os.ReadFile(rawPath)
	if err != nil {
		return nil, eris.Wrap(err, "store: read raw blob")
	}
	blob, err := cryptobox.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return cryptobox.Decrypt(blob, passphrase)
}
