package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/variantlab/genotype-cli/internal/model"
)

// ParserVersion is recorded on every import so stored data can be traced
// back to the parsing rules that produced it.
const ParserVersion = "1.0"

// Format declares the column layout of a raw export. The caller declares it;
// the ingestor never sniffs beyond comment headers.
type Format int

const (
	// FormatTabular4 is the four-column layout: rsid, chromosome,
	// position, two-character genotype.
	FormatTabular4 Format = iota
	// FormatTabular5 is the five-column layout with the genotype split
	// into two allele columns.
	FormatTabular5
)

// ParseFormat resolves a format name from the CLI surface.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "tabular4", "4col":
		return FormatTabular4, nil
	case "tabular5", "5col":
		return FormatTabular5, nil
	}
	return 0, eris.Errorf("ingest: unknown format %q", name)
}

// Row is one physical line of a raw export: either a parsed record or a
// row-level error. Exactly one field is set.
type Row struct {
	Record *model.GenotypeRecord
	Err    *model.RowError
}

// Reader lazily yields one Row per physical data line of a raw export.
// Comment lines and blank lines are skipped without counting. A Reader is
// single-use: restarting means opening the source again.
type Reader struct {
	sc     *bufio.Scanner
	format Format
	line   int
	err    error
}

// NewReader wraps an already-opened byte stream. The stream must be the
// extracted member when the source was an archive.
func NewReader(r io.Reader, format Format) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{sc: sc, format: format}
}

// Next returns the next row. The second result is false once the stream is
// exhausted; check Err afterwards for stream-level failures.
func (r *Reader) Next() (Row, bool) {
	for r.sc.Scan() {
		r.line++
		line := strings.TrimRight(r.sc.Text(), "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return r.parseLine(line), true
	}
	r.err = r.sc.Err()
	return Row{}, false
}

// Err reports a stream-level read failure, distinct from row-level errors.
func (r *Reader) Err() error {
	return eris.Wrap(r.err, "ingest: read")
}

func (r *Reader) malformed(reason string) Row {
	return Row{Err: &model.RowError{Line: r.line, Reason: reason}}
}

func (r *Reader) parseLine(line string) Row {
	fields := strings.Fields(line)

	var rsid, chromRaw, posRaw, allele1, allele2 string
	switch r.format {
	case FormatTabular4:
		if len(fields) != 4 {
			return r.malformed(fmt.Sprintf("expected 4 fields, got %d", len(fields)))
		}
		rsid, chromRaw, posRaw = fields[0], fields[1], fields[2]
		genotype := fields[3]
		switch {
		case len(genotype) == 2:
			allele1, allele2 = genotype[:1], genotype[1:]
		case genotype == "-" || genotype == "0":
			// Single-character no-call marker.
			allele1, allele2 = genotype, genotype
		default:
			return r.malformed(fmt.Sprintf("genotype %q is not a 2-character call or no-call marker", genotype))
		}
	case FormatTabular5:
		if len(fields) != 5 {
			return r.malformed(fmt.Sprintf("expected 5 fields, got %d", len(fields)))
		}
		rsid, chromRaw, posRaw, allele1, allele2 = fields[0], fields[1], fields[2], fields[3], fields[4]
	default:
		return r.malformed("unknown format")
	}

	pos, err := strconv.ParseUint(posRaw, 10, 64)
	if err != nil {
		return r.malformed(fmt.Sprintf("position %q is not numeric", posRaw))
	}

	chrom, ok := model.ParseChromosome(chromRaw)
	if !ok {
		return r.malformed(fmt.Sprintf("unrecognized chromosome %q", chromRaw))
	}

	a1 := strings.ToUpper(allele1)
	a2 := strings.ToUpper(allele2)
	if !validAllele(a1) || !validAllele(a2) {
		return r.malformed(fmt.Sprintf("invalid allele pair %q%q", allele1, allele2))
	}

	genotype := ""
	if !noCallAllele(a1) && !noCallAllele(a2) {
		genotype = model.CanonicalGenotype(a1 + a2)
	}

	return Row{Record: &model.GenotypeRecord{
		RSID:       rsid,
		Chromosome: chrom,
		Position:   pos,
		Genotype:   genotype,
	}}
}

func validAllele(a string) bool {
	switch a {
	case "A", "C", "G", "T", "0", "-":
		return true
	}
	return false
}

func noCallAllele(a string) bool {
	return a == "0" || a == "-"
}
