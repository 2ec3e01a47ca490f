package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChromosome(t *testing.T) {
	cases := []struct {
		in   string
		want Chromosome
		ok   bool
	}{
		{"1", Chromosome("1"), true},
		{"22", Chromosome("22"), true},
		{"X", ChrX, true},
		{"x", ChrX, true},
		{"23", ChrX, true},
		{"Y", ChrY, true},
		{"24", ChrY, true},
		{"MT", ChrMT, true},
		{"M", ChrMT, true},
		{"25", ChrMT, true},
		{"chr7", Chromosome("7"), true},
		{"chrX", ChrX, true},
		{" 12 ", Chromosome("12"), true},
		{"0", ChrUnknown, false},
		{"26", ChrUnknown, false},
		{"banana", ChrUnknown, false},
		{"", ChrUnknown, false},
	}
	for _, tc := range cases {
		got, ok := ParseChromosome(tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
	}
}

func TestCanonicalGenotype(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"AG", "AG"},
		{"GA", "AG"},
		{"ag", "AG"},
		{"TT", "TT"},
		{"", ""},
		{"-", ""},
		{"--", ""},
		{"0", ""},
		{"00", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanonicalGenotype(tc.in), "input %q", tc.in)
	}
}

func TestGenotypeRecordPredicates(t *testing.T) {
	assert.True(t, GenotypeRecord{Genotype: ""}.IsNoCall())
	assert.False(t, GenotypeRecord{Genotype: "AG"}.IsNoCall())
	assert.True(t, GenotypeRecord{Genotype: "AG"}.IsHeterozygous())
	assert.False(t, GenotypeRecord{Genotype: "AA"}.IsHeterozygous())
	assert.False(t, GenotypeRecord{Genotype: ""}.IsHeterozygous())
}

func TestImportStateTerminal(t *testing.T) {
	for _, s := range []ImportState{StateCompleted, StateCancelled, StateFailed} {
		assert.True(t, s.Terminal(), string(s))
	}
	for _, s := range []ImportState{StatePending, StateParsing, StateQC, StateEncrypting, StateCommitting} {
		assert.False(t, s.Terminal(), string(s))
	}
}
