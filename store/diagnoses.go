package store

import (
	"encoding/json"
	"fmt"

	"github.com/medikit/prescriptor-api/catalog"
)

// PutDiagnosis inserts or replaces a diagnosis (keyed by its stable code)
// and keeps the name and keyword indexes in sync.
func (tx *Tx) PutDiagnosis(d catalog.Diagnosis) error {
	if d.Code == "" {
		return fmt.Errorf("diagnosis %q has no code", d.Name)
	}

	b := tx.btx.Bucket(bucketDiagnoses)
	names := tx.btx.Bucket(bucketDiagnosisNames)
	kws := tx.btx.Bucket(bucketDiagnosisKw)

	if raw := b.Get([]byte(d.Code)); raw != nil {
		var old catalog.Diagnosis
		if err := json.Unmarshal(raw, &old); err == nil {
			if err := names.Delete([]byte(old.Name)); err != nil {
				return err
			}
			for _, kw := range old.Keywords {
				if err := kws.Delete(indexKey(kw, old.Code)); err != nil {
					return err
				}
			}
		}
	}

	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnosis %s: %w", d.Code, err)
	}
	if err := b.Put([]byte(d.Code), raw); err != nil {
		return err
	}
	if err := names.Put([]byte(d.Name), []byte(d.Code)); err != nil {
		return err
	}
	for _, kw := range d.Keywords {
		if err := kws.Put(indexKey(kw, d.Code), []byte(d.Code)); err != nil {
			return err
		}
	}

	return nil
}

// DiagnosisByCode returns the diagnosis with the given stable code, or nil.
func (tx *Tx) DiagnosisByCode(code string) (*catalog.Diagnosis, error) {
	raw := tx.btx.Bucket(bucketDiagnoses).Get([]byte(code))
	if raw == nil {
		return nil, nil
	}

	var d catalog.Diagnosis
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("corrupt diagnosis record %s: %w", code, err)
	}
	return &d, nil
}

// DiagnosisByName looks up a diagnosis by its exact (verbatim) name.
func (tx *Tx) DiagnosisByName(name string) (*catalog.Diagnosis, error) {
	code := tx.btx.Bucket(bucketDiagnosisNames).Get([]byte(name))
	if code == nil {
		return nil, nil
	}
	return tx.DiagnosisByCode(string(code))
}

// Diagnoses returns every diagnosis in store iteration order.
func (tx *Tx) Diagnoses() ([]catalog.Diagnosis, error) {
	var out []catalog.Diagnosis
	err := tx.btx.Bucket(bucketDiagnoses).ForEach(func(_, raw []byte) error {
		var d catalog.Diagnosis
		if err := json.Unmarshal(raw, &d); err != nil {
			return fmt.Errorf("corrupt diagnosis record: %w", err)
		}
		out = append(out, d)
		return nil
	})
	return out, err
}

// CountDiagnoses returns the number of diagnosis records.
func (tx *Tx) CountDiagnoses() int {
	return tx.btx.Bucket(bucketDiagnoses).Stats().KeyN
}

// DiagnosisCodesByKeywordPrefix collects codes of diagnoses having at
// least one keyword starting with any of the given terms, capped at limit
// distinct codes.
func (tx *Tx) DiagnosisCodesByKeywordPrefix(terms []string, limit int) []string {
	kws := tx.btx.Bucket(bucketDiagnosisKw)
	seen := make(map[string]struct{})
	var codes []string

	for _, term := range terms {
		codes = append(codes, scanPrefix(kws, term, seen, limit)...)
	}

	return codes
}
