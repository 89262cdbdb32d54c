package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/medikit/prescriptor-api/catalog"
)

// Meta keys.
var (
	metaLastSyncedAt  = []byte("last_synced_at")
	metaFinanceConfig = []byte("finance_config")
	counterRxNumber   = []byte("prescription_number")
)

// PutPatient inserts or replaces a patient record.
func (tx *Tx) PutPatient(p catalog.Patient) error {
	if p.ID == "" {
		return fmt.Errorf("patient %q has no id", p.Name)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal patient %s: %w", p.ID, err)
	}
	return tx.btx.Bucket(bucketPatients).Put([]byte(p.ID), raw)
}

// PatientByID returns the patient with the given id, or nil.
func (tx *Tx) PatientByID(id string) (*catalog.Patient, error) {
	raw := tx.btx.Bucket(bucketPatients).Get([]byte(id))
	if raw == nil {
		return nil, nil
	}
	var p catalog.Patient
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("corrupt patient record %s: %w", id, err)
	}
	return &p, nil
}

// Patients returns every patient record.
func (tx *Tx) Patients() ([]catalog.Patient, error) {
	var out []catalog.Patient
	err := tx.btx.Bucket(bucketPatients).ForEach(func(_, raw []byte) error {
		var p catalog.Patient
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("corrupt patient record: %w", err)
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

// DeletePatient removes a patient record.
func (tx *Tx) DeletePatient(id string) error {
	return tx.btx.Bucket(bucketPatients).Delete([]byte(id))
}

// PutPrescription inserts or replaces a prescription record.
func (tx *Tx) PutPrescription(p catalog.Prescription) error {
	if p.ID == "" {
		return fmt.Errorf("prescription has no id")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal prescription %s: %w", p.ID, err)
	}
	return tx.btx.Bucket(bucketPrescriptions).Put([]byte(p.ID), raw)
}

// PrescriptionByID returns the prescription with the given id, or nil.
func (tx *Tx) PrescriptionByID(id string) (*catalog.Prescription, error) {
	raw := tx.btx.Bucket(bucketPrescriptions).Get([]byte(id))
	if raw == nil {
		return nil, nil
	}
	var p catalog.Prescription
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("corrupt prescription record %s: %w", id, err)
	}
	return &p, nil
}

// Prescriptions returns every prescription record.
func (tx *Tx) Prescriptions() ([]catalog.Prescription, error) {
	var out []catalog.Prescription
	err := tx.btx.Bucket(bucketPrescriptions).ForEach(func(_, raw []byte) error {
		var p catalog.Prescription
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("corrupt prescription record: %w", err)
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

// DeletePrescription removes a prescription record.
func (tx *Tx) DeletePrescription(id string) error {
	return tx.btx.Bucket(bucketPrescriptions).Delete([]byte(id))
}

// NextPrescriptionNumber increments and returns the consecutive
// prescription number. The counter lives in the same transaction as the
// insert that consumes it, so the series has no gaps and no duplicates.
func (tx *Tx) NextPrescriptionNumber() (int64, error) {
	b := tx.btx.Bucket(bucketCounters)

	var current int64
	if raw := b.Get(counterRxNumber); raw != nil {
		current = int64(binary.BigEndian.Uint64(raw))
	}
	current++

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(current))
	if err := b.Put(counterRxNumber, buf); err != nil {
		return 0, err
	}
	return current, nil
}

// SetLastSyncedAt records the completion time of the last catalog sync.
func (tx *Tx) SetLastSyncedAt(t time.Time) error {
	raw, err := t.MarshalText()
	if err != nil {
		return err
	}
	return tx.btx.Bucket(bucketMeta).Put(metaLastSyncedAt, raw)
}

// LastSyncedAt returns the completion time of the last catalog sync, or
// the zero time if no sync has run yet.
func (tx *Tx) LastSyncedAt() time.Time {
	raw := tx.btx.Bucket(bucketMeta).Get(metaLastSyncedAt)
	if raw == nil {
		return time.Time{}
	}
	var t time.Time
	if err := t.UnmarshalText(raw); err != nil {
		return time.Time{}
	}
	return t
}

// PutFinanceConfig stores the billing configuration.
func (tx *Tx) PutFinanceConfig(cfg catalog.FinanceConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal finance config: %w", err)
	}
	return tx.btx.Bucket(bucketMeta).Put(metaFinanceConfig, raw)
}

// FinanceConfig returns the billing configuration, or nil if unset.
func (tx *Tx) FinanceConfig() (*catalog.FinanceConfig, error) {
	raw := tx.btx.Bucket(bucketMeta).Get(metaFinanceConfig)
	if raw == nil {
		return nil, nil
	}
	var cfg catalog.FinanceConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("corrupt finance config: %w", err)
	}
	return &cfg, nil
}
