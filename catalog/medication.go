// Package catalog defines the entities stored in the local prescription
// database: the medication and diagnosis reference catalogs, learned
// treatments, patients and prescriptions.
package catalog

import (
	"time"

	"github.com/medikit/prescriptor-api/normalizer"
)

// Medication is a catalog entry available for autocomplete during
// prescribing. Entries flagged IsCustom were authored by the user and are
// never overwritten by a catalog sync.
type Medication struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	GenericName      string     `json:"genericName,omitempty"`
	Presentation     string     `json:"presentation,omitempty"`
	Form             string     `json:"pharmaceuticalForm,omitempty"`
	Concentration    string     `json:"concentration,omitempty"`
	DefaultDose      string     `json:"defaultDose,omitempty"`
	DefaultFrequency string     `json:"defaultFrequency,omitempty"`
	DefaultDuration  string     `json:"defaultDuration,omitempty"`
	Keywords         []string   `json:"keywords"`
	IsCustom         bool       `json:"isCustom"`
	UsageCount       int        `json:"usageCount"`
	LastUsedAt       *time.Time `json:"lastUsedAt,omitempty"`
	Specialties      []string   `json:"specialties,omitempty"`
}

// RefreshKeywords recomputes the derived keyword set from the entry's
// name, generic name and presentation. Must be called whenever any of
// those fields change.
func (m *Medication) RefreshKeywords() {
	m.Keywords = normalizer.UniqueTokens(m.Name, m.GenericName, m.Presentation)
}

// MatchKey is the normalized name used to reconcile a snapshot record
// against the local catalog.
func (m *Medication) MatchKey() string {
	return normalizer.Normalize(m.Name)
}

// HasSpecialty reports whether the entry is associated with the given
// specialty. Comparison is exact, matching the rest of the ranking rules.
func (m *Medication) HasSpecialty(specialty string) bool {
	if specialty == "" {
		return false
	}
	for _, s := range m.Specialties {
		if s == specialty {
			return true
		}
	}
	return false
}
