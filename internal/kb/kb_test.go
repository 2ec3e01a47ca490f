package kb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/variantlab/genotype-cli/internal/model"
)

func TestLoadEmbedded(t *testing.T) {
	kb, err := LoadEmbedded()
	require.NoError(t, err)
	assert.NotEmpty(t, kb.Version)
	require.NotEmpty(t, kb.Modules)

	// Manifest order is evaluation order; the flush-response module leads.
	assert.Equal(t, "aldh2-alcohol-flush", kb.Modules[0].ID)

	rsids := kb.RSIDs()
	assert.Contains(t, rsids, "rs671")
	assert.Contains(t, rsids, "rs4988235")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"),
		[]byte("version: \"test.1\"\nmodules:\n  - demo.yaml\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modules", "demo.yaml"),
		[]byte("id: demo\ngene: DEMO\nrsid: rs1\ngenotypes:\n  AA: \"demo interpretation\"\nevidence_grade: C\nlimitations: \"demo only\"\n"), 0o644))

	kb, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "test.1", kb.Version)
	require.Len(t, kb.Modules, 1)
	assert.Equal(t, "rs1", kb.Modules[0].RSID)
}

func TestLoadDirRejectsInvalidModule(t *testing.T) {
	cases := []struct {
		name   string
		module string
	}{
		{"missing id", "gene: X\nrsid: rs1\ngenotypes:\n  AA: \"x\"\nevidence_grade: A\n"},
		{"missing rsid", "id: x\ngene: X\ngenotypes:\n  AA: \"x\"\nevidence_grade: A\n"},
		{"no genotype rules", "id: x\ngene: X\nrsid: rs1\nevidence_grade: A\n"},
		{"bad grade", "id: x\ngene: X\nrsid: rs1\ngenotypes:\n  AA: \"x\"\nevidence_grade: Z\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.MkdirAll(filepath.Join(dir, "modules"), 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"),
				[]byte("version: \"test\"\nmodules:\n  - bad.yaml\n"), 0o644))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "modules", "bad.yaml"),
				[]byte(tc.module), 0o644))

			_, err := LoadDir(dir)
			assert.Error(t, err)
		})
	}
}

func genotypeView(records ...model.GenotypeRecord) map[string]model.GenotypeRecord {
	m := make(map[string]model.GenotypeRecord, len(records))
	for _, rec := range records {
		m[rec.RSID] = rec
	}
	return m
}

func TestEvaluateMatch(t *testing.T) {
	kb, err := LoadEmbedded()
	require.NoError(t, err)

	view := genotypeView(model.GenotypeRecord{RSID: "rs671", Chromosome: "12", Position: 112241766, Genotype: "AG"})
	results := Evaluate(view, kb.Modules)
	require.Len(t, results, len(kb.Modules))

	r := results[0]
	assert.Equal(t, "aldh2-alcohol-flush", r.ModuleID)
	assert.Equal(t, "AG", r.ObservedGenotype)
	require.NotNil(t, r.Interpretation)
	assert.Equal(t, "reduced enzyme activity", *r.Interpretation)
	assert.Equal(t, model.GradeB, r.EvidenceGrade)
	assert.NotEmpty(t, r.Limitations)
}

func TestEvaluateAlleleOrderInsensitive(t *testing.T) {
	mod := model.KnowledgeModule{
		ID: "demo", Gene: "D", RSID: "rs1",
		Genotypes:     map[string]string{"AG": "het"},
		EvidenceGrade: model.GradeC,
	}

	// "GA" in the data hits the "AG" rule.
	view := genotypeView(model.GenotypeRecord{RSID: "rs1", Genotype: model.CanonicalGenotype("GA")})
	results := Evaluate(view, []model.KnowledgeModule{mod})
	require.NotNil(t, results[0].Interpretation)
	assert.Equal(t, "het", *results[0].Interpretation)
}

func TestEvaluateMarkerAbsent(t *testing.T) {
	kb, err := LoadEmbedded()
	require.NoError(t, err)

	results := Evaluate(genotypeView(), kb.Modules)
	require.Len(t, results, len(kb.Modules))
	for _, r := range results {
		assert.Nil(t, r.Interpretation, r.ModuleID)
		assert.Contains(t, r.Limitations, "no genotype call available")
		assert.Empty(t, r.ObservedGenotype)
	}
}

func TestEvaluateNoCall(t *testing.T) {
	mod := model.KnowledgeModule{
		ID: "demo", Gene: "D", RSID: "rs1",
		Genotypes:     map[string]string{"AA": "x"},
		EvidenceGrade: model.GradeA,
		Limitations:   "base limitation.",
	}
	view := genotypeView(model.GenotypeRecord{RSID: "rs1", Genotype: ""})

	results := Evaluate(view, []model.KnowledgeModule{mod})
	r := results[0]
	assert.Nil(t, r.Interpretation)
	assert.Contains(t, r.Limitations, "base limitation.")
	assert.Contains(t, r.Limitations, "no genotype call available")
}

func TestEvaluateUncuratedGenotype(t *testing.T) {
	mod := model.KnowledgeModule{
		ID: "demo", Gene: "D", RSID: "rs1",
		Genotypes:     map[string]string{"AA": "x", "AG": "y"},
		EvidenceGrade: model.GradeA,
	}
	view := genotypeView(model.GenotypeRecord{RSID: "rs1", Genotype: "GG"})

	results := Evaluate(view, []model.KnowledgeModule{mod})
	r := results[0]
	assert.Nil(t, r.Interpretation)
	assert.Equal(t, "GG", r.ObservedGenotype)
	assert.Contains(t, r.Limitations, "no curated interpretation")
}

func TestEvaluateDeterministicOrder(t *testing.T) {
	kb, err := LoadEmbedded()
	require.NoError(t, err)
	view := genotypeView(
		model.GenotypeRecord{RSID: "rs671", Genotype: "GG"},
		model.GenotypeRecord{RSID: "rs4988235", Genotype: "AA"},
	)

	first := Evaluate(view, kb.Modules)
	second := Evaluate(view, kb.Modules)
	require.Equal(t, first, second)
	for i, mod := range kb.Modules {
		assert.Equal(t, mod.ID, first[i].ModuleID)
	}
}
