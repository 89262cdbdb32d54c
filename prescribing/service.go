// Package prescribing implements prescription and patient CRUD on top of
// the local store, wires the consecutive numbering series and closes the
// learning feedback loop after each save.
package prescribing

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/medikit/prescriptor-api/catalog"
	"github.com/medikit/prescriptor-api/interfaces"
	"github.com/medikit/prescriptor-api/logging"
	"github.com/medikit/prescriptor-api/store"
)

// Service persists prescriptions and patients.
type Service struct {
	store   *store.Store
	learner interfaces.Learner
	now     func() time.Time
}

// NewService creates a prescribing service. The learner receives every
// saved prescription; pass nil to disable learning (tests do).
func NewService(st *store.Store, learner interfaces.Learner) *Service {
	return &Service{store: st, learner: learner, now: time.Now}
}

// CreatePrescription assigns an id, the next consecutive number and the
// issue timestamp, stores the prescription and bumps the usage counter of
// every catalog medication it references. The insert, the numbering and
// the usage bumps commit in one transaction. Learning runs after the
// commit: a failed learn loses that one reinforcement but never the
// prescription.
func (s *Service) CreatePrescription(p catalog.Prescription) (catalog.Prescription, error) {
	if len(p.Medications) == 0 {
		return catalog.Prescription{}, fmt.Errorf("prescription needs at least one medication")
	}
	if p.DiagnosisText == "" {
		return catalog.Prescription{}, fmt.Errorf("prescription needs a diagnosis")
	}

	p.ID = uuid.NewString()
	if p.IssuedAt.IsZero() {
		p.IssuedAt = s.now()
	}

	err := s.store.Update(func(tx *store.Tx) error {
		number, err := tx.NextPrescriptionNumber()
		if err != nil {
			return err
		}
		p.Number = number

		if p.Fee == 0 {
			if cfg, err := tx.FinanceConfig(); err == nil && cfg != nil {
				p.Fee = cfg.ConsultationFee
			}
		}

		if err := tx.PutPrescription(p); err != nil {
			return err
		}

		for _, line := range p.Medications {
			m, err := tx.MedicationByName(line.Name)
			if err != nil {
				return err
			}
			if m != nil {
				if err := tx.TouchMedication(m.ID, p.IssuedAt); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return catalog.Prescription{}, fmt.Errorf("failed to save prescription: %w", err)
	}

	if s.learner != nil {
		if err := s.learner.Learn(p.DiagnosisText, p.Medications, p.GeneralInstructions, p.Specialty); err != nil {
			logging.Warn("Failed to learn from prescription", "prescription", p.ID, "error", err)
		}
	}

	return p, nil
}

// Prescription returns one prescription by id, or nil if absent.
func (s *Service) Prescription(id string) (*catalog.Prescription, error) {
	var p *catalog.Prescription
	err := s.store.View(func(tx *store.Tx) error {
		var err error
		p, err = tx.PrescriptionByID(id)
		return err
	})
	return p, err
}

// Prescriptions returns all prescriptions, newest number first.
func (s *Service) Prescriptions() ([]catalog.Prescription, error) {
	var out []catalog.Prescription
	err := s.store.View(func(tx *store.Tx) error {
		var err error
		out, err = tx.Prescriptions()
		return err
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, nil
}

// DeletePrescription removes a prescription by id.
func (s *Service) DeletePrescription(id string) error {
	return s.store.Update(func(tx *store.Tx) error {
		return tx.DeletePrescription(id)
	})
}

// SavePatient inserts or updates a patient, assigning an id and creation
// time on first save.
func (s *Service) SavePatient(p catalog.Patient) (catalog.Patient, error) {
	if p.Name == "" {
		return catalog.Patient{}, fmt.Errorf("patient needs a name")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}

	err := s.store.Update(func(tx *store.Tx) error {
		return tx.PutPatient(p)
	})
	if err != nil {
		return catalog.Patient{}, fmt.Errorf("failed to save patient: %w", err)
	}
	return p, nil
}

// Patient returns one patient by id, or nil if absent.
func (s *Service) Patient(id string) (*catalog.Patient, error) {
	var p *catalog.Patient
	err := s.store.View(func(tx *store.Tx) error {
		var err error
		p, err = tx.PatientByID(id)
		return err
	})
	return p, err
}

// Patients returns all patients sorted by name.
func (s *Service) Patients() ([]catalog.Patient, error) {
	var out []catalog.Patient
	err := s.store.View(func(tx *store.Tx) error {
		var err error
		out, err = tx.Patients()
		return err
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeletePatient removes a patient by id.
func (s *Service) DeletePatient(id string) error {
	return s.store.Update(func(tx *store.Tx) error {
		return tx.DeletePatient(id)
	})
}
