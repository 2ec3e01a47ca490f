package model

// XYConsistency classifies whether observed X/Y chromosome calls follow an
// internally consistent pattern. It is a data-integrity signal only, never a
// sex-inference claim; presentation caveats belong to the reporting layer.
type XYConsistency string

const (
	XYConsistent    XYConsistency = "consistent"
	XYInconsistent  XYConsistency = "inconsistent"
	XYIndeterminate XYConsistency = "indeterminate"
)

// QCReport summarizes one parse pass over a raw export. It is computed once
// per import transaction and never recomputed after commit.
type QCReport struct {
	TotalRows     int           `json:"total_rows"`
	MalformedRows int           `json:"malformed_rows"`
	DuplicateRows int           `json:"duplicate_rows"`
	NoCalls       int           `json:"no_calls"`
	CallRate      float64       `json:"call_rate"`
	XYConsistency XYConsistency `json:"xy_consistency"`
}
