package model

import "time"

// ImportState tracks an import transaction through its lifecycle. Cancelled
// and Failed are reachable from any non-terminal state; cancellation is not
// honored once Committing has begun.
type ImportState string

const (
	StatePending    ImportState = "pending"
	StateParsing    ImportState = "parsing"
	StateQC         ImportState = "qc"
	StateEncrypting ImportState = "encrypting"
	StateCommitting ImportState = "committing"
	StateCompleted  ImportState = "completed"
	StateCancelled  ImportState = "cancelled"
	StateFailed     ImportState = "failed"
)

// Terminal reports whether the state admits no further transitions.
func (s ImportState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Profile is one person's dataset namespace.
type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ImportSummary describes one committed import.
type ImportSummary struct {
	ImportID      string      `json:"import_id"`
	ProfileID     string      `json:"profile_id"`
	Source        string      `json:"source"`
	FileSHA256    string      `json:"file_sha256"`
	ImportedAt    time.Time   `json:"imported_at"`
	ParserVersion string      `json:"parser_version"`
	RecordCount   int         `json:"record_count"`
	QC            QCReport    `json:"qc"`
	State         ImportState `json:"state"`
}
