package catalogsync

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medikit/prescriptor-api/catalog"
	"github.com/medikit/prescriptor-api/interfaces"
	"github.com/medikit/prescriptor-api/logging"
	"github.com/medikit/prescriptor-api/metrics"
	"github.com/medikit/prescriptor-api/normalizer"
	"github.com/medikit/prescriptor-api/store"
	"github.com/medikit/prescriptor-api/validation"
)

// Compile-time check to ensure Engine implements Syncer
var _ interfaces.Syncer = (*Engine)(nil)

// Engine merges fetched snapshots into the store. Each entity syncs in
// one read-write transaction, so a crash mid-loop never leaves a partial
// catalog. Fetch and parse failures are logged and absorbed; store
// failures propagate to the caller.
type Engine struct {
	store   *store.Store
	fetcher interfaces.Fetcher
}

// NewEngine creates a sync engine with injected dependencies.
func NewEngine(st *store.Store, fetcher interfaces.Fetcher) *Engine {
	return &Engine{store: st, fetcher: fetcher}
}

// SyncMedications merges the medications snapshot. Existing entries
// flagged IsCustom are skipped so user edits survive every sync; other
// existing entries get their catalog-sourced fields overwritten in place,
// keeping local usage statistics.
func (e *Engine) SyncMedications() error {
	_, err := e.syncMedications()
	return err
}

// syncMedications reports whether a snapshot was actually applied, so
// SyncAll can tell an absorbed fetch failure from a landed sync.
func (e *Engine) syncMedications() (bool, error) {
	incoming, err := e.fetcher.FetchMedications()
	if err != nil {
		logging.Warn("Medication snapshot fetch failed, keeping local catalog", "error", err)
		metrics.SyncFailuresTotal.WithLabelValues("medications", "fetch").Inc()
		return false, nil
	}

	report := validation.ReportMedications(incoming)
	if report.HasIssues() {
		logging.Warn("Medication snapshot quality issues",
			"nameless", report.NamelessMedications,
			"duplicate_names", report.DuplicateMedications,
		)
	}

	var inserted, updated, skipped int
	start := time.Now()

	err = e.store.Update(func(tx *store.Tx) error {
		for _, in := range incoming {
			if normalizer.Normalize(in.Name) == "" {
				// No usable match key, nothing to reconcile against
				continue
			}

			existing, err := tx.MedicationByName(in.Name)
			if err != nil {
				return err
			}

			if existing != nil {
				if existing.IsCustom {
					skipped++
					continue
				}
				merged := mergeMedication(*existing, in)
				if err := tx.PutMedication(merged); err != nil {
					return err
				}
				updated++
				continue
			}

			in.ID = orNewID(in.ID)
			in.IsCustom = false
			in.UsageCount = 0
			in.LastUsedAt = nil
			in.RefreshKeywords()
			if err := tx.PutMedication(in); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		metrics.SyncFailuresTotal.WithLabelValues("medications", "store").Inc()
		return false, fmt.Errorf("medication sync failed: %w", err)
	}

	metrics.SyncRecordsTotal.WithLabelValues("medications", "inserted").Add(float64(inserted))
	metrics.SyncRecordsTotal.WithLabelValues("medications", "updated").Add(float64(updated))
	metrics.SyncRecordsTotal.WithLabelValues("medications", "skipped").Add(float64(skipped))

	logging.Info("Medication sync completed",
		"inserted", inserted,
		"updated", updated,
		"skipped_custom", skipped,
		"duration", time.Since(start).String(),
	)
	return true, nil
}

// mergeMedication overwrites catalog-sourced fields of existing with the
// snapshot record while preserving local identity and usage statistics.
func mergeMedication(existing, in catalog.Medication) catalog.Medication {
	existing.Name = in.Name
	existing.GenericName = in.GenericName
	existing.Presentation = in.Presentation
	existing.Form = in.Form
	existing.Concentration = in.Concentration
	existing.DefaultDose = in.DefaultDose
	existing.DefaultFrequency = in.DefaultFrequency
	existing.DefaultDuration = in.DefaultDuration
	existing.Specialties = in.Specialties
	existing.RefreshKeywords()
	return existing
}

// SyncDiagnoses merges the diagnoses snapshot. Diagnoses have no custom
// protection flag: catalog-sourced fields are always overwritten in place
// and keywords recomputed.
func (e *Engine) SyncDiagnoses() error {
	_, err := e.syncDiagnoses()
	return err
}

func (e *Engine) syncDiagnoses() (bool, error) {
	incoming, err := e.fetcher.FetchDiagnoses()
	if err != nil {
		logging.Warn("Diagnosis snapshot fetch failed, keeping local catalog", "error", err)
		metrics.SyncFailuresTotal.WithLabelValues("diagnoses", "fetch").Inc()
		return false, nil
	}

	report := validation.ReportDiagnoses(incoming)
	if report.HasIssues() {
		logging.Warn("Diagnosis snapshot quality issues",
			"codeless", report.CodelessDiagnoses,
			"duplicate_codes", report.DuplicateDiagnoses,
		)
	}

	var inserted, updated int
	start := time.Now()

	err = e.store.Update(func(tx *store.Tx) error {
		for _, in := range incoming {
			if in.Code == "" {
				continue
			}

			existing, err := tx.DiagnosisByCode(in.Code)
			if err != nil {
				return err
			}
			if existing != nil {
				updated++
			} else {
				inserted++
			}

			in.RefreshKeywords()
			if err := tx.PutDiagnosis(in); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.SyncFailuresTotal.WithLabelValues("diagnoses", "store").Inc()
		return false, fmt.Errorf("diagnosis sync failed: %w", err)
	}

	metrics.SyncRecordsTotal.WithLabelValues("diagnoses", "inserted").Add(float64(inserted))
	metrics.SyncRecordsTotal.WithLabelValues("diagnoses", "updated").Add(float64(updated))

	logging.Info("Diagnosis sync completed",
		"inserted", inserted,
		"updated", updated,
		"duration", time.Since(start).String(),
	)
	return true, nil
}

// SyncTreatments bootstraps starter protocols into an empty learning
// collection. Once any learned data exists the sync is a no-op: this is a
// one-time seed, never a merge that could clobber accumulated learning.
func (e *Engine) SyncTreatments() error {
	_, err := e.syncTreatments()
	return err
}

func (e *Engine) syncTreatments() (bool, error) {
	alreadySeeded := false
	err := e.store.View(func(tx *store.Tx) error {
		alreadySeeded = tx.CountTreatments() > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("treatment sync failed: %w", err)
	}
	if alreadySeeded {
		logging.Debug("Treatment collection not empty, skipping starter sync")
		return false, nil
	}

	incoming, err := e.fetcher.FetchTreatments()
	if err != nil {
		logging.Warn("Treatment snapshot fetch failed, skipping bootstrap", "error", err)
		metrics.SyncFailuresTotal.WithLabelValues("treatments", "fetch").Inc()
		return false, nil
	}

	now := time.Now()
	var inserted int

	err = e.store.Update(func(tx *store.Tx) error {
		// Guard again inside the transaction: a learn() racing the
		// bootstrap must not be overwritten
		if tx.CountTreatments() > 0 {
			return nil
		}

		for _, in := range incoming {
			if in.DiagnosisCode == "" || len(in.Medications) == 0 {
				continue
			}

			in.ID = orNewID(in.ID)
			in.Signature = catalog.Signature(in.Medications)
			if in.Name == "" {
				in.Name = catalog.DisplayName(in.Signature)
			}
			if in.UsageCount < 1 {
				in.UsageCount = 1
			}
			in.LastUsedAt = now

			if err := tx.PutTreatment(in); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		metrics.SyncFailuresTotal.WithLabelValues("treatments", "store").Inc()
		return false, fmt.Errorf("treatment sync failed: %w", err)
	}

	metrics.SyncRecordsTotal.WithLabelValues("treatments", "inserted").Add(float64(inserted))
	logging.Info("Starter treatments seeded", "inserted", inserted)
	return true, nil
}

// SyncAll runs the three entity syncs concurrently. Each touches a
// disjoint set of collections, so they are independent failure domains;
// one failing never aborts the others. Only store-level errors surface.
// The last-synced time advances only when at least one snapshot actually
// landed: absorbed fetch failures must stay visible to the staleness
// monitor and the health checker.
func (e *Engine) SyncAll() error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	anyApplied := false

	syncs := map[string]func() (bool, error){
		"medications": e.syncMedications,
		"diagnoses":   e.syncDiagnoses,
		"treatments":  e.syncTreatments,
	}

	for name, fn := range syncs {
		wg.Add(1)
		go func(name string, fn func() (bool, error)) {
			defer wg.Done()
			applied, err := fn()
			mu.Lock()
			if applied {
				anyApplied = true
			}
			if err != nil {
				logging.Error("Catalog sync failed", "entity", name, "error", err)
				errs = append(errs, err)
			}
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if !anyApplied {
		logging.Warn("No catalog snapshot applied, keeping previous sync time")
		return nil
	}

	return e.store.Update(func(tx *store.Tx) error {
		return tx.SetLastSyncedAt(time.Now())
	})
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
