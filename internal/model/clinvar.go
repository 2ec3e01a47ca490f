package model

// ClinVarVariant is one clinical annotation sourced from a reference dump.
// Lookup results are always filtered to rsIDs present in the user's own
// genotype; the cache never holds annotations without a matching marker set.
type ClinVarVariant struct {
	RSID                 string `json:"rsid"`
	ClinicalSignificance string `json:"clinical_significance"`
	ReviewStatus         string `json:"review_status"`
	LastEvaluated        string `json:"last_evaluated,omitempty"`
	Conflicts            bool   `json:"conflicts"`
}
