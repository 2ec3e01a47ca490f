// Package query is the read surface exposed to the UI/report layer:
// insight listings, single-variant lookups and QC reports over the
// committed store. Reads only ever observe committed snapshots.
package query

import (
	"context"
	"errors"

	"github.com/variantlab/genotype-cli/internal/clinvar"
	"github.com/variantlab/genotype-cli/internal/kb"
	"github.com/variantlab/genotype-cli/internal/model"
	"github.com/variantlab/genotype-cli/internal/store"
)

// Service answers read-only queries. Safe for concurrent use and for use
// concurrently with imports of other profiles.
type Service struct {
	store *store.Store
	cache *clinvar.Cache // nil when no cache artifact is configured
	kb    *kb.KnowledgeBase
}

func NewService(st *store.Store, cache *clinvar.Cache, knowledge *kb.KnowledgeBase) *Service {
	return &Service{store: st, cache: cache, kb: knowledge}
}

// VariantDetail is everything known about one rsID for one profile.
type VariantDetail struct {
	Genotype *model.GenotypeRecord `json:"genotype,omitempty"`
	ClinVar  *model.ClinVarVariant `json:"clinvar,omitempty"`
	Insight  *model.InsightResult  `json:"insight,omitempty"`
}

// ListInsights evaluates every knowledge module against the profile's
// committed genotype. Output length always equals the module count.
func (s *Service) ListInsights(ctx context.Context, profileID string, passphrase []byte) ([]model.InsightResult, error) {
	records, err := s.store.All(ctx, profileID, passphrase)
	if err != nil {
		return nil, err
	}
	return kb.Evaluate(indexByRSID(records), s.kb.Modules), nil
}

// LookupVariant returns the genotype record, clinical annotation and insight
// for one rsID. Clinical annotations are only returned for markers the
// profile actually carries; absent genotype means absent annotation.
func (s *Service) LookupVariant(ctx context.Context, profileID, rsid string, passphrase []byte) (*VariantDetail, error) {
	detail := &VariantDetail{}

	rec, err := s.store.Query(ctx, profileID, rsid, passphrase)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return detail, nil
	}
	detail.Genotype = rec

	if s.cache != nil {
		variant, err := s.cache.Lookup(ctx, rsid)
		if err != nil && !errors.Is(err, model.ErrNoCacheBuilt) {
			return nil, err
		}
		detail.ClinVar = variant
	}

	for _, mod := range s.kb.Modules {
		if mod.RSID != rsid {
			continue
		}
		results := kb.Evaluate(map[string]model.GenotypeRecord{rsid: *rec}, []model.KnowledgeModule{mod})
		detail.Insight = &results[0]
		break
	}
	return detail, nil
}

// GetQCReport returns the immutable QC report attached to the committed
// import.
func (s *Service) GetQCReport(ctx context.Context, profileID string) (*model.QCReport, error) {
	return s.store.QCReport(ctx, profileID)
}

// ClinVarMatches returns every clinical annotation for markers the profile
// carries, bounded to the profile's own genotype footprint.
func (s *Service) ClinVarMatches(ctx context.Context, profileID string, passphrase []byte) (map[string]model.ClinVarVariant, error) {
	if s.cache == nil {
		return nil, model.ErrNoCacheBuilt
	}
	rsids, err := s.store.RSIDs(ctx, profileID, passphrase)
	if err != nil {
		return nil, err
	}
	return s.cache.LookupAll(ctx, rsids)
}

func indexByRSID(records []model.GenotypeRecord) map[string]model.GenotypeRecord {
	m := make(map[string]model.GenotypeRecord, len(records))
	for _, rec := range records {
		m[rec.RSID] = rec
	}
	return m
}
