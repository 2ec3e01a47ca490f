package kb

import (
	"fmt"

	"github.com/variantlab/genotype-cli/internal/model"
)

// Evaluate matches every module against a genotype view. Pure and
// deterministic: output order follows module declaration order and output
// length always equals the module count. A module whose marker is absent or
// a no-call still yields a result, with a nil interpretation and a
// missing-data limitation; modules are never omitted silently.
func Evaluate(genotypes map[string]model.GenotypeRecord, modules []model.KnowledgeModule) []model.InsightResult {
	results := make([]model.InsightResult, 0, len(modules))
	for _, mod := range modules {
		results = append(results, evaluateModule(genotypes, mod))
	}
	return results
}

func evaluateModule(genotypes map[string]model.GenotypeRecord, mod model.KnowledgeModule) model.InsightResult {
	result := model.InsightResult{
		ModuleID:      mod.ID,
		Gene:          mod.Gene,
		RSID:          mod.RSID,
		EvidenceGrade: mod.EvidenceGrade,
		Limitations:   mod.Limitations,
		References:    mod.References,
	}

	rec, present := genotypes[mod.RSID]
	if !present || rec.IsNoCall() {
		result.Limitations = appendLimitation(mod.Limitations,
			fmt.Sprintf("no genotype call available for %s in this dataset", mod.RSID))
		return result
	}

	observed := model.CanonicalGenotype(rec.Genotype)
	result.ObservedGenotype = observed

	// Rules are matched allele-set-wise: "AG" and "GA" hit the same rule.
	for ruleGenotype, interpretation := range mod.Genotypes {
		if model.CanonicalGenotype(ruleGenotype) == observed {
			v := interpretation
			result.Interpretation = &v
			return result
		}
	}

	result.Limitations = appendLimitation(mod.Limitations,
		fmt.Sprintf("observed genotype %s has no curated interpretation", observed))
	return result
}

func appendLimitation(base, note string) string {
	if base == "" {
		return note
	}
	return base + " " + note
}
