package model

import (
	"sort"
	"strings"
)

// Chromosome identifies the chromosome a marker sits on.
type Chromosome string

const (
	ChrX       Chromosome = "X"
	ChrY       Chromosome = "Y"
	ChrMT      Chromosome = "MT"
	ChrUnknown Chromosome = "unknown"
)

var autosomes = func() map[string]Chromosome {
	m := make(map[string]Chromosome, 22)
	for _, c := range []string{
		"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11",
		"12", "13", "14", "15", "16", "17", "18", "19", "20", "21", "22",
	} {
		m[c] = Chromosome(c)
	}
	return m
}()

// ParseChromosome normalizes a raw chromosome token. Numeric aliases for the
// sex and mitochondrial chromosomes (23/24/25) and the "chr" prefix are
// accepted; anything else is unrecognized.
func ParseChromosome(raw string) (Chromosome, bool) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	v = strings.TrimPrefix(v, "CHR")
	if c, ok := autosomes[v]; ok {
		return c, true
	}
	switch v {
	case "X", "23":
		return ChrX, true
	case "Y", "24":
		return ChrY, true
	case "MT", "M", "25":
		return ChrMT, true
	}
	return ChrUnknown, false
}

// GenotypeRecord is one validated marker call. Genotype holds the canonical
// (allele-sorted) pair, or the empty string for a no-call.
type GenotypeRecord struct {
	RSID       string     `json:"rsid"`
	Chromosome Chromosome `json:"chromosome"`
	Position   uint64     `json:"position"`
	Genotype   string     `json:"genotype"`
}

// IsNoCall reports whether the instrument produced no determinable genotype
// at this position.
func (r GenotypeRecord) IsNoCall() bool {
	return r.Genotype == ""
}

// IsHeterozygous reports whether the two called alleles differ.
func (r GenotypeRecord) IsHeterozygous() bool {
	return len(r.Genotype) == 2 && r.Genotype[0] != r.Genotype[1]
}

// CanonicalGenotype sorts a genotype string allele-wise so that unordered
// pairs compare equal ("GA" and "AG" both canonicalize to "AG"). No-call
// markers ("", "--", "00") canonicalize to the empty string.
func CanonicalGenotype(genotype string) string {
	cleaned := strings.ToUpper(strings.ReplaceAll(genotype, " ", ""))
	switch cleaned {
	case "", "-", "--", "0", "00":
		return ""
	}
	alleles := strings.Split(cleaned, "")
	sort.Strings(alleles)
	return strings.Join(alleles, "")
}
