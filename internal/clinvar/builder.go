package clinvar

import (
	"bufio"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/variantlab/genotype-cli/internal/model"
)

const buildBatchSize = 1000

// BuildResult summarizes one cache build.
type BuildResult struct {
	VersionID string
	Kept      int64
	Skipped   int64
}

// OpenDump opens a reference dump, transparently ungzipping *.gz files.
func OpenDump(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "clinvar: open dump %s", path)
	}
	if strings.EqualFold(filepath.Ext(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, &model.CacheBuildError{Reason: "dump is not valid gzip", Err: err}
		}
		return &gzipDump{gz: gz, f: f}, nil
	}
	return f, nil
}

type gzipDump struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipDump) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipDump) Close() error {
	err := g.gz.Close()
	if cerr := g.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Build streams a tab-delimited reference dump into a fresh cache version,
// retaining only rows whose rsID is in relevant. Unknown or extra columns
// are ignored; rows failing required-field validation are counted as skipped
// and never abort the pass. On success the current-version pointer is
// swapped atomically; on failure or cancellation the prior version stays
// live and the partial build is dropped.
func (c *Cache) Build(ctx context.Context, r io.Reader, sourceName string, relevant map[string]struct{}) (*BuildResult, error) {
	log := zap.L().With(zap.String("component", "clinvar-build"), zap.String("source", sourceName))

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	cols, err := readHeader(sc)
	if err != nil {
		return nil, err
	}

	versionID := newVersionID()
	var kept, skipped, scanned int64
	batch := make([]model.ClinVarVariant, 0, buildBatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.insertBatch(ctx, versionID, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	fail := func(err error) (*BuildResult, error) {
		c.dropVersion(versionID)
		return nil, err
	}

	for sc.Scan() {
		scanned++
		if scanned%buildBatchSize == 0 {
			select {
			case <-ctx.Done():
				return fail(ctx.Err())
			default:
			}
		}

		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		variant, ok := parseDumpRow(line, cols)
		if !ok {
			skipped++
			continue
		}
		if _, want := relevant[variant.RSID]; !want {
			continue
		}

		batch = append(batch, variant)
		kept++
		if len(batch) >= buildBatchSize {
			if err := flush(); err != nil {
				return fail(err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fail(&model.CacheBuildError{Reason: "reading dump", Err: err})
	}
	if err := flush(); err != nil {
		return fail(err)
	}

	info := VersionInfo{
		ID:         versionID,
		BuiltAt:    time.Now().UTC(),
		Kept:       kept,
		Skipped:    skipped,
		SourceName: sourceName,
	}
	if err := c.finalize(ctx, info); err != nil {
		return fail(err)
	}

	log.Info("cache build complete",
		zap.String("version", versionID),
		zap.Int64("rows_scanned", scanned),
		zap.Int64("kept", kept),
		zap.Int64("skipped", skipped),
	)
	return &BuildResult{VersionID: versionID, Kept: kept, Skipped: skipped}, nil
}

// ScanDump is the slow path used when no cache has been built: a single
// linear scan of the dump collecting annotations for the requested rsIDs.
func ScanDump(ctx context.Context, r io.Reader, rsids map[string]struct{}) (map[string]model.ClinVarVariant, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	cols, err := readHeader(sc)
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.ClinVarVariant)
	var scanned int64
	for sc.Scan() {
		scanned++
		if scanned%buildBatchSize == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		variant, ok := parseDumpRow(line, cols)
		if !ok {
			continue
		}
		if _, want := rsids[variant.RSID]; want {
			out[variant.RSID] = variant
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &model.CacheBuildError{Reason: "reading dump", Err: err}
	}
	return out, nil
}

// readHeader consumes lines until the tab-delimited header row and maps its
// column names. Leading comment lines are tolerated; some dump releases
// prefix the header row itself with "#", so a comment line that resolves the
// required columns is taken as the header.
func readHeader(sc *bufio.Scanner) (map[string]int, error) {
	for sc.Scan() {
		raw := sc.Text()
		comment := strings.HasPrefix(raw, "#")
		line := strings.TrimPrefix(raw, "#")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := mapColumns(strings.Split(line, "\t"))
		var missing string
		for _, required := range []string{"rsid", "clinical_significance", "review_status"} {
			if _, ok := resolveColumn(cols, required); !ok {
				missing = required
				break
			}
		}
		if missing == "" {
			return cols, nil
		}
		if comment {
			continue
		}
		return nil, &model.CacheBuildError{
			Reason: "dump header is missing required column " + missing,
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &model.CacheBuildError{Reason: "reading dump header", Err: err}
	}
	return nil, &model.CacheBuildError{Reason: "dump is empty"}
}

// mapColumns builds a case-insensitive column name to index map.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

// columnAliases tolerates naming drift across reference dump releases.
var columnAliases = map[string][]string{
	"rsid":                  {"rsid", "rs# (dbsnp)", "rs_id", "rs"},
	"clinical_significance": {"clinical_significance", "clinicalsignificance", "clnsig"},
	"review_status":         {"review_status", "reviewstatus", "clnrevstat"},
	"last_evaluated":        {"last_evaluated", "lastevaluated"},
	"conflicted":            {"conflicted", "conflict_flag", "conflicts"},
}

func resolveColumn(cols map[string]int, name string) (int, bool) {
	for _, alias := range columnAliases[name] {
		if idx, ok := cols[alias]; ok {
			return idx, true
		}
	}
	return 0, false
}

func getCol(fields []string, cols map[string]int, name string) string {
	idx, ok := resolveColumn(cols, name)
	if !ok || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

// parseDumpRow validates one data row. Returns ok=false when a required
// field is missing or unusable.
func parseDumpRow(line string, cols map[string]int) (model.ClinVarVariant, bool) {
	fields := strings.Split(line, "\t")

	rsid := normalizeRSID(getCol(fields, cols, "rsid"))
	sig := getCol(fields, cols, "clinical_significance")
	review := getCol(fields, cols, "review_status")
	if rsid == "" || sig == "" || review == "" {
		return model.ClinVarVariant{}, false
	}

	return model.ClinVarVariant{
		RSID:                 rsid,
		ClinicalSignificance: sig,
		ReviewStatus:         review,
		LastEvaluated:        getCol(fields, cols, "last_evaluated"),
		Conflicts:            isConflicted(getCol(fields, cols, "conflicted"), sig),
	}, true
}

// normalizeRSID accepts both "rs12345" and the bare numeric form some dump
// releases use, returning the rs-prefixed form. Anything non-numeric without
// the prefix is rejected.
func normalizeRSID(raw string) string {
	if raw == "" || raw == "-1" || raw == "-" {
		return ""
	}
	if strings.HasPrefix(raw, "rs") {
		return raw
	}
	for _, ch := range raw {
		if ch < '0' || ch > '9' {
			return ""
		}
	}
	return "rs" + raw
}

func isConflicted(flag, significance string) bool {
	switch strings.ToLower(flag) {
	case "1", "true", "yes", "y":
		return true
	}
	return strings.Contains(strings.ToLower(significance), "conflicting")
}
