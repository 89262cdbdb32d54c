// Package search implements the ranked catalog lookup behind the
// prescribing autocomplete. Ranking is a weighted tier scheme, not an IR
// relevance formula: the weights are separated by orders of magnitude so
// a specialty match always beats a custom entry, which always beats raw
// usage volume.
package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/medikit/prescriptor-api/catalog"
	"github.com/medikit/prescriptor-api/interfaces"
	"github.com/medikit/prescriptor-api/metrics"
	"github.com/medikit/prescriptor-api/normalizer"
	"github.com/medikit/prescriptor-api/store"
)

const (
	minQueryLen   = 2
	candidatePool = 50
	maxResults    = 20

	specialtyWeight = 1000
	customWeight    = 500
)

// Compile-time check to ensure Service implements Searcher
var _ interfaces.Searcher = (*Service)(nil)

// Service runs ranked searches over the local catalog.
type Service struct {
	store *store.Store
}

// NewService creates a search service over the given store.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// Medications returns up to 20 catalog medications ranked for the query.
// The optional specialty boosts entries associated with it.
func (s *Service) Medications(query, specialty string) ([]catalog.Medication, error) {
	terms := queryTerms(query)
	if terms == nil {
		return []catalog.Medication{}, nil
	}
	metrics.SearchQueriesTotal.WithLabelValues("medications").Inc()

	var candidates []catalog.Medication
	err := s.store.View(func(tx *store.Tx) error {
		for _, id := range tx.MedicationIDsByKeywordPrefix(terms, candidatePool) {
			m, err := tx.MedicationByID(id)
			if err != nil {
				return err
			}
			if m != nil {
				candidates = append(candidates, *m)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(terms) > 1 {
		candidates = filterMedications(candidates, terms)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return medicationScore(candidates[i], specialty) > medicationScore(candidates[j], specialty)
	})

	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	return candidates, nil
}

// Diagnoses returns up to 20 catalog diagnoses ranked for the query.
func (s *Service) Diagnoses(query, specialty string) ([]catalog.Diagnosis, error) {
	terms := queryTerms(query)
	if terms == nil {
		return []catalog.Diagnosis{}, nil
	}
	metrics.SearchQueriesTotal.WithLabelValues("diagnoses").Inc()

	var candidates []catalog.Diagnosis
	err := s.store.View(func(tx *store.Tx) error {
		for _, code := range tx.DiagnosisCodesByKeywordPrefix(terms, candidatePool) {
			d, err := tx.DiagnosisByCode(code)
			if err != nil {
				return err
			}
			if d != nil {
				candidates = append(candidates, *d)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(terms) > 1 {
		candidates = filterDiagnoses(candidates, terms)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return diagnosisScore(candidates[i], specialty) > diagnosisScore(candidates[j], specialty)
	})

	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	return candidates, nil
}

// queryTerms normalizes the query and returns nil for queries too short
// to search (silently treated as empty, not as an error). The length
// gate counts runes, not bytes: a lone accented character is still a
// one-character query.
func queryTerms(query string) []string {
	if utf8.RuneCountInString(strings.TrimSpace(query)) < minQueryLen {
		return nil
	}
	terms := normalizer.Tokenize(query)
	if len(terms) == 0 {
		return nil
	}
	return terms
}

// filterMedications enforces AND semantics for multi-term queries: the
// index matches any term by prefix, so candidates missing one of the
// terms entirely must be dropped here.
func filterMedications(candidates []catalog.Medication, terms []string) []catalog.Medication {
	filtered := candidates[:0]
	for _, m := range candidates {
		if containsAllTerms(strings.Join(m.Keywords, " "), terms) {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

func filterDiagnoses(candidates []catalog.Diagnosis, terms []string) []catalog.Diagnosis {
	filtered := candidates[:0]
	for _, d := range candidates {
		if containsAllTerms(strings.Join(d.Keywords, " "), terms) {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

func containsAllTerms(joined string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(joined, term) {
			return false
		}
	}
	return true
}

func medicationScore(m catalog.Medication, specialty string) int {
	score := 0
	if m.HasSpecialty(specialty) {
		score += specialtyWeight
	}
	if m.IsCustom {
		score += customWeight
	}
	score += m.UsageCount
	return score
}

func diagnosisScore(d catalog.Diagnosis, specialty string) int {
	score := 0
	if d.HasSpecialty(specialty) {
		score += specialtyWeight
	}
	if d.IsCustom() {
		score += customWeight
	}
	return score
}
