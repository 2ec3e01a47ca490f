// Package importer coordinates one cancellable, atomic import transaction:
// a pipelined parse/QC pass over the raw export, encryption of the original
// bytes, and an all-or-nothing commit into the genotype store.
package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/variantlab/genotype-cli/internal/cryptobox"
	"github.com/variantlab/genotype-cli/internal/ingest"
	"github.com/variantlab/genotype-cli/internal/model"
	"github.com/variantlab/genotype-cli/internal/qc"
	"github.com/variantlab/genotype-cli/internal/store"
)

const defaultBatchSize = 1000

// Request describes one import.
type Request struct {
	ProfileID  string
	Path       string
	Member     string // archive member selection; required when ambiguous
	Format     ingest.Format
	Passphrase []byte
	Replace    bool
}

// Result is the terminal outcome of an import transaction. Summary is set
// only when State is Completed.
type Result struct {
	State   model.ImportState
	Summary *model.ImportSummary
	Err     error
}

// Orchestrator drives import transactions. Per-profile serialization is
// enforced by store.Begin; orchestrators for different profiles run freely
// in parallel.
type Orchestrator struct {
	store     *store.Store
	batchSize int
}

func New(st *store.Store, batchSize int) *Orchestrator {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Orchestrator{store: st, batchSize: batchSize}
}

// Run executes the state machine Pending → Parsing → QC → Encrypting →
// Committing → Completed. Cancellation is cooperative and checked at
// row-batch boundaries during the parse/QC pass; once Committing begins the
// transaction runs to Completed or Failed regardless of the context. A
// Cancelled or Failed run leaves the store exactly as it was.
func (o *Orchestrator) Run(ctx context.Context, req Request) Result {
	log := zap.L().With(
		zap.String("component", "importer"),
		zap.String("profile", req.ProfileID),
		zap.String("file", filepath.Base(req.Path)),
	)

	state := model.StatePending

	tx, err := o.store.Begin(ctx, req.ProfileID)
	if err != nil {
		return Result{State: state, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			o.store.Discard(tx)
		}
	}()

	src, err := ingest.Open(req.Path, req.Member)
	if err != nil {
		// An ambiguous archive leaves the transaction Pending: the caller
		// owns the member choice.
		var ambiguous *model.AmbiguousSourceError
		if errors.As(err, &ambiguous) {
			return Result{State: model.StatePending, Err: err}
		}
		return Result{State: model.StateFailed, Err: err}
	}
	defer src.Close()

	state = model.StateParsing
	log.Info("import started", zap.String("state", string(state)))

	records, report, err := o.parseAndAnalyze(ctx, src, req.Format)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			log.Info("import cancelled during parse")
			return Result{State: model.StateCancelled, Err: err}
		}
		return Result{State: model.StateFailed, Err: err}
	}
	state = model.StateQC
	log.Info("parse pass complete",
		zap.Int("total_rows", report.TotalRows),
		zap.Int("malformed_rows", report.MalformedRows),
		zap.Int("duplicate_rows", report.DuplicateRows),
		zap.Float64("call_rate", report.CallRate),
	)

	// Last effective cancellation point: durable writes have not begun.
	if err := ctx.Err(); err != nil {
		return Result{State: model.StateCancelled, Err: err}
	}

	state = model.StateEncrypting
	rawBytes, err := os.ReadFile(req.Path)
	if err != nil {
		return Result{State: model.StateFailed, Err: eris.Wrap(err, "importer: read raw file")}
	}
	hash := sha256.Sum256(rawBytes)

	encryptedRaw, err := cryptobox.Encrypt(rawBytes, req.Passphrase)
	if err != nil {
		return Result{State: model.StateFailed, Err: err}
	}

	state = model.StateCommitting
	// Commit is a non-cancellable critical section; a caller deadline
	// expiring here must not tear a half-written transaction.
	summary, err := o.store.Commit(context.WithoutCancel(ctx), tx, store.CommitInput{
		Records:       records,
		QC:            *report,
		EncryptedRaw:  encryptedRaw,
		Passphrase:    req.Passphrase,
		Source:        filepath.Base(req.Path),
		FileSHA256:    hex.EncodeToString(hash[:]),
		ParserVersion: ingest.ParserVersion,
		Replace:       req.Replace,
	})
	if err != nil {
		log.Error("commit failed", zap.Error(err))
		return Result{State: model.StateFailed, Err: err}
	}
	committed = true

	log.Info("import complete",
		zap.String("import_id", summary.ImportID),
		zap.Int("records", summary.RecordCount),
	)
	return Result{State: model.StateCompleted, Summary: summary}
}

// parseAndAnalyze is the single pipelined pass shared by parsing and QC.
// The cancellation flag is checked once per batch, bounding cancellation
// latency to one batch rather than one row.
func (o *Orchestrator) parseAndAnalyze(ctx context.Context, src io.Reader, format ingest.Format) ([]model.GenotypeRecord, *model.QCReport, error) {
	reader := ingest.NewReader(src, format)
	analyzer := qc.NewAnalyzer()

	var records []model.GenotypeRecord
	inBatch := 0

	for {
		row, ok := reader.Next()
		if !ok {
			break
		}
		if analyzer.Observe(row) {
			records = append(records, *row.Record)
		}

		inBatch++
		if inBatch >= o.batchSize {
			inBatch = 0
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
	}
	if err := reader.Err(); err != nil {
		return nil, nil, err
	}

	report := analyzer.Report()
	return records, &report, nil
}
