package catalog

import "time"

// Patient is a minimal demographic record kept in the local database.
type Patient struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	DocumentID string    `json:"documentId,omitempty"`
	BirthDate  string    `json:"birthDate,omitempty"`
	Sex        string    `json:"sex,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Allergies  string    `json:"allergies,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// FinanceConfig holds the practice's billing defaults.
type FinanceConfig struct {
	ConsultationFee float64 `json:"consultationFee"`
	Currency        string  `json:"currency"`
	TaxRate         float64 `json:"taxRate,omitempty"`
}

// Prescription is an issued prescription. Number is a consecutive series
// assigned at creation time; Medications are denormalized snapshots, the
// same shape the learning engine consumes.
type Prescription struct {
	ID                  string           `json:"id"`
	Number              int64            `json:"number"`
	PatientID           string           `json:"patientId,omitempty"`
	DiagnosisText       string           `json:"diagnosisText"`
	Medications         []MedicationLine `json:"medications"`
	GeneralInstructions string           `json:"generalInstructions,omitempty"`
	Specialty           string           `json:"specialty,omitempty"`
	Fee                 float64          `json:"fee,omitempty"`
	IssuedAt            time.Time        `json:"issuedAt"`
}
