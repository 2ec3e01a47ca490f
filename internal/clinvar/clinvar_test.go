package clinvar

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/variantlab/genotype-cli/internal/model"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.Migrate(context.Background()))
	return c
}

const testDump = "# ClinVar variant summary extract\n" +
	"rsid\tclinical_significance\treview_status\tlast_evaluated\tconflicted\textra_column\n" +
	"rs671\tdrug response\tcriteria provided, multiple submitters\t2024-01-15\t0\tignored\n" +
	"rs4988235\tbenign\treviewed by expert panel\t2023-06-01\t0\tignored\n" +
	"rs429358\trisk factor\tcriteria provided, single submitter\t\t1\tignored\n" +
	"rs111\tConflicting interpretations of pathogenicity\tcriteria provided\t2022-03-10\t0\tignored\n" +
	"-1\tbenign\tno assertion\t\t0\tmissing rsid\n" +
	"rs222\t\tno assertion\t\t0\tmissing significance\n"

func relevantSet(rsids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(rsids))
	for _, r := range rsids {
		set[r] = struct{}{}
	}
	return set
}

func TestBuildBoundsToRelevantSet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	result, err := c.Build(ctx, strings.NewReader(testDump), "dump.tsv",
		relevantSet("rs671", "rs4988235"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Kept)
	// The malformed rows count as skipped even though they are irrelevant.
	assert.Equal(t, int64(2), result.Skipped)

	v, err := c.Lookup(ctx, "rs671")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "drug response", v.ClinicalSignificance)
	assert.Equal(t, "criteria provided, multiple submitters", v.ReviewStatus)
	assert.Equal(t, "2024-01-15", v.LastEvaluated)
	assert.False(t, v.Conflicts)

	// rs429358 was in the dump but outside the relevant set.
	v, err = c.Lookup(ctx, "rs429358")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestBuildConflictDetection(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.Build(ctx, strings.NewReader(testDump), "dump.tsv",
		relevantSet("rs429358", "rs111"))
	require.NoError(t, err)

	// Explicit conflict flag.
	v, err := c.Lookup(ctx, "rs429358")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, v.Conflicts)

	// Conflict inferred from the significance text.
	v, err = c.Lookup(ctx, "rs111")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, v.Conflicts)
}

func TestBuildHeaderAliases(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	dump := "RS# (dbSNP)\tClinicalSignificance\tReviewStatus\n" +
		"671\tdrug response\tcriteria provided\n"
	result, err := c.Build(ctx, strings.NewReader(dump), "variant_summary.txt",
		relevantSet("rs671"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Kept)

	// Bare numeric rsIDs normalize to the rs-prefixed form.
	v, err := c.Lookup(ctx, "rs671")
	require.NoError(t, err)
	require.NotNil(t, v)
}

func TestBuildMissingRequiredColumn(t *testing.T) {
	c := newTestCache(t)
	dump := "rsid\tlast_evaluated\nrs671\t2024-01-01\n"
	_, err := c.Build(context.Background(), strings.NewReader(dump), "bad.tsv",
		relevantSet("rs671"))
	var buildErr *model.CacheBuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, buildErr.Reason, "clinical_significance")
}

func TestBuildEmptyDump(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Build(context.Background(), strings.NewReader(""), "empty.tsv", relevantSet())
	var buildErr *model.CacheBuildError
	require.ErrorAs(t, err, &buildErr)
}

func TestLookupBeforeAnyBuild(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.Lookup(ctx, "rs671")
	assert.ErrorIs(t, err, model.ErrNoCacheBuilt)

	_, err = c.Current(ctx)
	assert.ErrorIs(t, err, model.ErrNoCacheBuilt)
}

func TestRebuildSwapsVersionAtomically(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	first, err := c.Build(ctx, strings.NewReader(testDump), "v1.tsv", relevantSet("rs671"))
	require.NoError(t, err)

	// Second build with a different relevant set supersedes the first.
	second, err := c.Build(ctx, strings.NewReader(testDump), "v2.tsv", relevantSet("rs4988235"))
	require.NoError(t, err)
	assert.NotEqual(t, first.VersionID, second.VersionID)

	info, err := c.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.VersionID, info.ID)
	assert.Equal(t, "v2.tsv", info.SourceName)

	// Lookups resolve against the new version only.
	v, err := c.Lookup(ctx, "rs671")
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = c.Lookup(ctx, "rs4988235")
	require.NoError(t, err)
	require.NotNil(t, v)
}

func TestBuildCancellationKeepsPriorVersion(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	prior, err := c.Build(ctx, strings.NewReader(testDump), "v1.tsv", relevantSet("rs671"))
	require.NoError(t, err)

	// A dump long enough to hit the periodic cancellation check.
	var sb strings.Builder
	sb.WriteString("rsid\tclinical_significance\treview_status\n")
	for i := 0; i < 5000; i++ {
		sb.WriteString("rs4988235\tbenign\tcriteria provided\n")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.Build(cancelled, strings.NewReader(sb.String()), "v2.tsv", relevantSet("rs4988235"))
	require.ErrorIs(t, err, context.Canceled)

	// The prior version is still current and still serves lookups.
	info, err := c.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, prior.VersionID, info.ID)
	v, err := c.Lookup(ctx, "rs671")
	require.NoError(t, err)
	require.NotNil(t, v)
}

func TestLookupAll(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.Build(ctx, strings.NewReader(testDump), "dump.tsv",
		relevantSet("rs671", "rs4988235", "rs111"))
	require.NoError(t, err)

	out, err := c.LookupAll(ctx, relevantSet("rs671", "rs4988235", "rs000"))
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Contains(t, out, "rs671")
	assert.Contains(t, out, "rs4988235")
}

func TestScanDump(t *testing.T) {
	out, err := ScanDump(context.Background(), strings.NewReader(testDump),
		relevantSet("rs671", "rs000"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "drug response", out["rs671"].ClinicalSignificance)
}

func TestOpenDumpGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.tsv.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(testDump))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	rc, err := OpenDump(path)
	require.NoError(t, err)
	defer rc.Close()

	out, err := ScanDump(context.Background(), rc, relevantSet("rs4988235"))
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestOpenDumpBadGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.tsv.gz")
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0o644))

	_, err := OpenDump(path)
	var buildErr *model.CacheBuildError
	require.ErrorAs(t, err, &buildErr)
}

func TestNormalizeRSID(t *testing.T) {
	assert.Equal(t, "rs671", normalizeRSID("rs671"))
	assert.Equal(t, "rs671", normalizeRSID("671"))
	assert.Equal(t, "", normalizeRSID("-1"))
	assert.Equal(t, "", normalizeRSID(""))
	assert.Equal(t, "", normalizeRSID("abc"))
}
