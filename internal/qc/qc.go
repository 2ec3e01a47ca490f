// Package qc accumulates quality metrics over a single parse pass. The
// analyzer shares the pass with the ingestor: every row is observed exactly
// once, and the file is never read twice.
package qc

import (
	"github.com/variantlab/genotype-cli/internal/ingest"
	"github.com/variantlab/genotype-cli/internal/model"
)

// GRCh37 pseudoautosomal regions on X. Heterozygous calls inside these
// intervals are expected even in a male-pattern genome and are excluded
// from the consistency test.
const (
	par1Start = 60001
	par1End   = 2699520
	par2Start = 154931044
	par2End   = 155260560
)

// hetXTolerance is the fraction of non-PAR X calls allowed to be
// heterozygous before a male-pattern genome is flagged inconsistent. SNP
// chips miscall a small number of positions, so zero tolerance would flag
// nearly every real file.
const hetXTolerance = 0.05

// Analyzer accumulates a QCReport over one stream of rows. Not safe for
// concurrent use; each import transaction owns exactly one.
type Analyzer struct {
	total     int
	malformed int
	dups      int
	noCalls   int
	kept      int

	seen map[string]struct{}

	xNonPAR    int
	xHetNonPAR int
	yCalls     int
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{seen: make(map[string]struct{})}
}

// Observe consumes one row and reports whether the caller should retain its
// record: true only for the first valid occurrence of an rsID. Later
// duplicates are counted and discarded; first valid occurrence wins.
func (a *Analyzer) Observe(row ingest.Row) bool {
	a.total++

	if row.Err != nil {
		a.malformed++
		return false
	}

	rec := row.Record
	if _, dup := a.seen[rec.RSID]; dup {
		a.dups++
		return false
	}
	a.seen[rec.RSID] = struct{}{}

	if rec.IsNoCall() {
		a.noCalls++
		return true
	}
	a.kept++

	switch rec.Chromosome {
	case model.ChrX:
		if !inPAR(rec.Position) {
			a.xNonPAR++
			if rec.IsHeterozygous() {
				a.xHetNonPAR++
			}
		}
	case model.ChrY:
		a.yCalls++
	}
	return true
}

// Report computes the final QCReport. Deterministic: byte-identical input
// yields an identical report.
func (a *Analyzer) Report() model.QCReport {
	callRate := 0.0
	if a.total > 0 {
		callRate = float64(a.kept) / float64(a.total)
	}
	return model.QCReport{
		TotalRows:     a.total,
		MalformedRows: a.malformed,
		DuplicateRows: a.dups,
		NoCalls:       a.noCalls,
		CallRate:      callRate,
		XYConsistency: a.xyConsistency(),
	}
}

// xyConsistency classifies the X/Y call pattern. Y calls present implies a
// male-pattern genome, which should show (almost) no heterozygous X calls
// outside the pseudoautosomal regions. No Y calls with X calls present is
// the female pattern and is consistent by construction. No X/Y data at all
// is indeterminate.
func (a *Analyzer) xyConsistency() model.XYConsistency {
	if a.yCalls == 0 && a.xNonPAR == 0 {
		return model.XYIndeterminate
	}
	if a.yCalls > 0 {
		if a.xNonPAR > 0 && float64(a.xHetNonPAR) > hetXTolerance*float64(a.xNonPAR) {
			return model.XYInconsistent
		}
		return model.XYConsistent
	}
	return model.XYConsistent
}

func inPAR(pos uint64) bool {
	return (pos >= par1Start && pos <= par1End) || (pos >= par2Start && pos <= par2End)
}
