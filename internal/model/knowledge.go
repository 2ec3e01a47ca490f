package model

// EvidenceGrade is a coarse confidence label for a curated interpretation.
type EvidenceGrade string

const (
	GradeA            EvidenceGrade = "A"
	GradeB            EvidenceGrade = "B"
	GradeC            EvidenceGrade = "C"
	GradeD            EvidenceGrade = "D"
	GradeInsufficient EvidenceGrade = "insufficient"
)

// KnowledgeModule is one curated, versioned rule mapping genotypes at a
// single marker to interpretations. Read-only reference data.
type KnowledgeModule struct {
	ID            string            `yaml:"id" json:"id"`
	Gene          string            `yaml:"gene" json:"gene"`
	RSID          string            `yaml:"rsid" json:"rsid"`
	Genotypes     map[string]string `yaml:"genotypes" json:"genotypes"`
	EvidenceGrade EvidenceGrade     `yaml:"evidence_grade" json:"evidence_grade"`
	Limitations   string            `yaml:"limitations" json:"limitations"`
	References    []string          `yaml:"references" json:"references"`
}

// InsightResult is the outcome of evaluating one module against a genotype
// set. Derived data: recomputable at any time, never a source of truth.
// Interpretation is nil when the marker is absent or a no-call.
type InsightResult struct {
	ModuleID         string        `json:"module_id"`
	Gene             string        `json:"gene"`
	RSID             string        `json:"rsid"`
	ObservedGenotype string        `json:"observed_genotype,omitempty"`
	Interpretation   *string       `json:"interpretation"`
	EvidenceGrade    EvidenceGrade `json:"evidence_grade"`
	Limitations      string        `json:"limitations"`
	References       []string      `json:"references,omitempty"`
}
