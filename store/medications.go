package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/medikit/prescriptor-api/catalog"
)

// PutMedication inserts or replaces a medication and keeps the name and
// keyword indexes in sync. The entry must carry an ID.
func (tx *Tx) PutMedication(m catalog.Medication) error {
	if m.ID == "" {
		return fmt.Errorf("medication %q has no id", m.Name)
	}

	b := tx.btx.Bucket(bucketMedications)
	names := tx.btx.Bucket(bucketMedicationNames)
	kws := tx.btx.Bucket(bucketMedicationKw)

	// Drop stale index entries from a previous version of the record
	if raw := b.Get([]byte(m.ID)); raw != nil {
		var old catalog.Medication
		if err := json.Unmarshal(raw, &old); err == nil {
			if err := names.Delete([]byte(old.MatchKey())); err != nil {
				return err
			}
			for _, kw := range old.Keywords {
				if err := kws.Delete(indexKey(kw, old.ID)); err != nil {
					return err
				}
			}
		}
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal medication %s: %w", m.ID, err)
	}
	if err := b.Put([]byte(m.ID), raw); err != nil {
		return err
	}
	if err := names.Put([]byte(m.MatchKey()), []byte(m.ID)); err != nil {
		return err
	}
	for _, kw := range m.Keywords {
		if err := kws.Put(indexKey(kw, m.ID), []byte(m.ID)); err != nil {
			return err
		}
	}

	return nil
}

// MedicationByID returns the medication with the given id, or nil if absent.
func (tx *Tx) MedicationByID(id string) (*catalog.Medication, error) {
	raw := tx.btx.Bucket(bucketMedications).Get([]byte(id))
	if raw == nil {
		return nil, nil
	}

	var m catalog.Medication
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("corrupt medication record %s: %w", id, err)
	}
	return &m, nil
}

// MedicationByName looks up a medication by its normalized name match key.
func (tx *Tx) MedicationByName(name string) (*catalog.Medication, error) {
	key := (&catalog.Medication{Name: name}).MatchKey()
	id := tx.btx.Bucket(bucketMedicationNames).Get([]byte(key))
	if id == nil {
		return nil, nil
	}
	return tx.MedicationByID(string(id))
}

// Medications returns every medication in store iteration order.
func (tx *Tx) Medications() ([]catalog.Medication, error) {
	var out []catalog.Medication
	err := tx.btx.Bucket(bucketMedications).ForEach(func(_, raw []byte) error {
		var m catalog.Medication
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("corrupt medication record: %w", err)
		}
		out = append(out, m)
		return nil
	})
	return out, err
}

// CountMedications returns the number of medication records.
func (tx *Tx) CountMedications() int {
	return tx.btx.Bucket(bucketMedications).Stats().KeyN
}

// MedicationIDsByKeywordPrefix collects ids of medications having at least
// one keyword starting with any of the given terms (OR semantics), capped
// at limit distinct ids.
func (tx *Tx) MedicationIDsByKeywordPrefix(terms []string, limit int) []string {
	kws := tx.btx.Bucket(bucketMedicationKw)
	seen := make(map[string]struct{})
	var ids []string

	for _, term := range terms {
		ids = append(ids, scanPrefix(kws, term, seen, limit)...)
	}

	return ids
}

// TouchMedication increments the usage counter of a medication and stamps
// its last use. Missing ids are ignored: a prescription can reference
// medications that were typed free-hand and never entered the catalog.
func (tx *Tx) TouchMedication(id string, now time.Time) error {
	m, err := tx.MedicationByID(id)
	if err != nil {
		return err
	}
	if m == nil {
		return nil
	}

	m.UsageCount++
	m.LastUsedAt = &now
	return tx.PutMedication(*m)
}
