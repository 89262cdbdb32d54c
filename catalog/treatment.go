package catalog

import (
	"sort"
	"strings"
	"time"
)

// MedicationLine is a denormalized snapshot of one medication as it was
// prescribed. It is captured at learn time and stays immutable afterwards:
// later edits to the medication catalog never rewrite history.
type MedicationLine struct {
	Name          string `json:"name"`
	GenericName   string `json:"genericName,omitempty"`
	Presentation  string `json:"presentation,omitempty"`
	Form          string `json:"form,omitempty"`
	Concentration string `json:"concentration,omitempty"`
	Dose          string `json:"dose"`
	Frequency     string `json:"frequency"`
	Duration      string `json:"duration"`
	Route         string `json:"route,omitempty"`
	Quantity      string `json:"quantityToDispense,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// Treatment is a learned protocol: a medication combination the physician
// has prescribed for a diagnosis, reinforced each time it is repeated.
// At most one record exists per (DiagnosisCode, Signature, Specialty).
type Treatment struct {
	ID                  string           `json:"id"`
	DiagnosisCode       string           `json:"diagnosisCode"`
	Name                string           `json:"name"`
	Signature           string           `json:"signature"`
	Medications         []MedicationLine `json:"medications"`
	GeneralInstructions string           `json:"generalInstructions,omitempty"`
	Specialty           string           `json:"specialty,omitempty"`
	UsageCount          int              `json:"usageCount"`
	LastUsedAt          time.Time        `json:"lastUsedAt"`
}

// Signature derives the order-independent content fingerprint of a
// medication list: the generic name of each line (falling back to the brand
// name), sorted and joined. Two protocols with the same drugs in any order
// collide to the same signature.
func Signature(lines []MedicationLine) string {
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		name := line.GenericName
		if name == "" {
			name = line.Name
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, " + ")
}

// DisplayName builds a human-readable protocol name from a signature,
// truncated so long combinations stay usable as a label.
func DisplayName(signature string) string {
	const maxLen = 80
	runes := []rune(signature)
	if len(runes) <= maxLen {
		return signature
	}
	return string(runes[:maxLen]) + "…"
}
