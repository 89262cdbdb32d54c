// Package learning implements the treatment learning engine: it observes
// which medication protocols the physician prescribes for each diagnosis,
// deduplicates them by content signature and serves them back as ranked
// suggestions during prescribing.
package learning

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/medikit/prescriptor-api/catalog"
	"github.com/medikit/prescriptor-api/interfaces"
	"github.com/medikit/prescriptor-api/logging"
	"github.com/medikit/prescriptor-api/metrics"
	"github.com/medikit/prescriptor-api/store"
)

// maxSuggestions bounds the list served to the prescribing flow.
const maxSuggestions = 5

// Compile-time check to ensure Engine implements Learner
var _ interfaces.Learner = (*Engine)(nil)

// Engine learns and serves treatment protocols. The whole learn sequence
// (diagnosis resolution, signature lookup, upsert) runs in one store
// transaction, so two concurrent learns of the same protocol cannot both
// insert: bbolt serializes the writers.
type Engine struct {
	store *store.Store
	now   func() time.Time
}

// NewEngine creates a learning engine over the given store.
func NewEngine(st *store.Store) *Engine {
	return &Engine{store: st, now: time.Now}
}

// Learn records one prescribing event. diagnosisKey may be a stable
// catalog code, an exact diagnosis name or uncontrolled free text; free
// text with no catalog match creates a CUST- diagnosis entry on the fly.
// An empty key or medication list is a silent no-op, not an error.
func (e *Engine) Learn(diagnosisKey string, medications []catalog.MedicationLine, instructions, specialty string) error {
	if diagnosisKey == "" || len(medications) == 0 {
		metrics.LearnOperationsTotal.WithLabelValues("noop").Inc()
		return nil
	}

	now := e.now()
	signature := catalog.Signature(medications)
	var result string

	err := e.store.Update(func(tx *store.Tx) error {
		resolvedCode, err := e.resolveDiagnosis(tx, diagnosisKey, specialty, now)
		if err != nil {
			return err
		}

		existing, err := findBySignature(tx, resolvedCode, signature, specialty)
		if err != nil {
			return err
		}

		if existing != nil {
			existing.UsageCount++
			existing.LastUsedAt = now
			// Never downgrade existing notes to blank
			if instructions != "" {
				existing.GeneralInstructions = instructions
			}
			result = "reinforced"
			return tx.PutTreatment(*existing)
		}

		result = "created"
		return tx.PutTreatment(catalog.Treatment{
			ID:                  uuid.NewString(),
			DiagnosisCode:       resolvedCode,
			Name:                catalog.DisplayName(signature),
			Signature:           signature,
			Medications:         medications,
			GeneralInstructions: instructions,
			Specialty:           specialty,
			UsageCount:          1,
			LastUsedAt:          now,
		})
	})
	if err != nil {
		return fmt.Errorf("failed to learn treatment: %w", err)
	}

	metrics.LearnOperationsTotal.WithLabelValues(result).Inc()
	logging.Debug("Treatment learned", "signature", signature, "result", result)
	return nil
}

// resolveDiagnosis maps the caller's key to a stable catalog code:
// exact code match first, then exact name match, then auto-creation.
// All subsequent steps use the resolved code, never the raw input.
func (e *Engine) resolveDiagnosis(tx *store.Tx, key, specialty string, now time.Time) (string, error) {
	byCode, err := tx.DiagnosisByCode(key)
	if err != nil {
		return "", err
	}
	if byCode != nil {
		return byCode.Code, nil
	}

	byName, err := tx.DiagnosisByName(key)
	if err != nil {
		return "", err
	}
	if byName != nil {
		return byName.Code, nil
	}

	created := catalog.NewCustomDiagnosis(key, specialty, now)
	if err := tx.PutDiagnosis(created); err != nil {
		return "", err
	}

	logging.Info("Auto-created diagnosis from free text", "code", created.Code, "name", created.Name)
	return created.Code, nil
}

// findBySignature looks for a protocol of the diagnosis whose own
// recomputed signature and specialty both match. The stored signature is
// not trusted: recomputing from the stored medication lines keeps records
// written before a signature rule change comparable.
func findBySignature(tx *store.Tx, code, signature, specialty string) (*catalog.Treatment, error) {
	treatments, err := tx.TreatmentsByDiagnosis(code)
	if err != nil {
		return nil, err
	}

	for i := range treatments {
		t := &treatments[i]
		if catalog.Signature(t.Medications) == signature && t.Specialty == specialty {
			return t, nil
		}
	}
	return nil, nil
}

// Suggestions returns up to five protocols for an already-resolved
// diagnosis code, ranked in two tiers: protocols matching the caller's
// specialty exactly come first, then higher usage wins within each tier.
// No free-text resolution happens here; callers pass the stable code.
func (e *Engine) Suggestions(diagnosisCode, specialty string) ([]catalog.Treatment, error) {
	if diagnosisCode == "" {
		return []catalog.Treatment{}, nil
	}

	var treatments []catalog.Treatment
	err := e.store.View(func(tx *store.Tx) error {
		var err error
		treatments, err = tx.TreatmentsByDiagnosis(diagnosisCode)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestions for %s: %w", diagnosisCode, err)
	}

	sort.SliceStable(treatments, func(i, j int) bool {
		iMatch := treatments[i].Specialty == specialty
		jMatch := treatments[j].Specialty == specialty
		if iMatch != jMatch {
			return iMatch
		}
		return treatments[i].UsageCount > treatments[j].UsageCount
	})

	if len(treatments) > maxSuggestions {
		treatments = treatments[:maxSuggestions]
	}
	return treatments, nil
}

// Forget removes a learned protocol by id, for explicit user cleanup.
func (e *Engine) Forget(id string) error {
	return e.store.Update(func(tx *store.Tx) error {
		return tx.DeleteTreatment(id)
	})
}
