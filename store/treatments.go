package store

import (
	"encoding/json"
	"fmt"

	"github.com/medikit/prescriptor-api/catalog"
)

// PutTreatment inserts or replaces a learned treatment and keeps the
// diagnosis foreign-key index in sync.
func (tx *Tx) PutTreatment(t catalog.Treatment) error {
	if t.ID == "" {
		return fmt.Errorf("treatment for %s has no id", t.DiagnosisCode)
	}
	if t.DiagnosisCode == "" {
		return fmt.Errorf("treatment %s has no diagnosis code", t.ID)
	}

	b := tx.btx.Bucket(bucketTreatments)
	byDx := tx.btx.Bucket(bucketTreatmentsByDx)

	if raw := b.Get([]byte(t.ID)); raw != nil {
		var old catalog.Treatment
		if err := json.Unmarshal(raw, &old); err == nil && old.DiagnosisCode != t.DiagnosisCode {
			if err := byDx.Delete(indexKey(old.DiagnosisCode, old.ID)); err != nil {
				return err
			}
		}
	}

	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal treatment %s: %w", t.ID, err)
	}
	if err := b.Put([]byte(t.ID), raw); err != nil {
		return err
	}
	return byDx.Put(indexKey(t.DiagnosisCode, t.ID), []byte(t.ID))
}

// TreatmentByID returns the treatment with the given id, or nil.
func (tx *Tx) TreatmentByID(id string) (*catalog.Treatment, error) {
	raw := tx.btx.Bucket(bucketTreatments).Get([]byte(id))
	if raw == nil {
		return nil, nil
	}

	var t catalog.Treatment
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("corrupt treatment record %s: %w", id, err)
	}
	return &t, nil
}

// TreatmentsByDiagnosis returns every learned treatment for the given
// diagnosis code, in index order.
func (tx *Tx) TreatmentsByDiagnosis(code string) ([]catalog.Treatment, error) {
	byDx := tx.btx.Bucket(bucketTreatmentsByDx)
	seen := make(map[string]struct{})
	ids := scanPrefix(byDx, code, seen, 0)

	out := make([]catalog.Treatment, 0, len(ids))
	for _, id := range ids {
		t, err := tx.TreatmentByID(id)
		if err != nil {
			return nil, err
		}
		if t != nil && t.DiagnosisCode == code {
			out = append(out, *t)
		}
	}
	return out, nil
}

// Treatments returns every learned treatment.
func (tx *Tx) Treatments() ([]catalog.Treatment, error) {
	var out []catalog.Treatment
	err := tx.btx.Bucket(bucketTreatments).ForEach(func(_, raw []byte) error {
		var t catalog.Treatment
		if err := json.Unmarshal(raw, &t); err != nil {
			return fmt.Errorf("corrupt treatment record: %w", err)
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

// CountTreatments returns the number of learned treatment records.
func (tx *Tx) CountTreatments() int {
	return tx.btx.Bucket(bucketTreatments).Stats().KeyN
}

// DeleteTreatment removes a learned treatment and its index entry.
// Deleting a missing id is a no-op.
func (tx *Tx) DeleteTreatment(id string) error {
	t, err := tx.TreatmentByID(id)
	if err != nil || t == nil {
		return err
	}

	if err := tx.btx.Bucket(bucketTreatmentsByDx).Delete(indexKey(t.DiagnosisCode, t.ID)); err != nil {
		return err
	}
	return tx.btx.Bucket(bucketTreatments).Delete([]byte(id))
}
