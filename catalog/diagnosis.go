package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/medikit/prescriptor-api/normalizer"
)

// CustomCodePrefix marks diagnosis entries created on the fly from free
// text, as opposed to entries coming from the external catalog snapshot.
const CustomCodePrefix = "CUST-"

// Diagnosis is a catalog entry identified by a stable external code
// (ICD-style) or by a synthetic CUST- code when auto-created.
type Diagnosis struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Specialties []string `json:"specialties,omitempty"`
	Synonyms    []string `json:"synonyms,omitempty"`
	Keywords    []string `json:"keywords"`
}

// RefreshKeywords recomputes the derived keyword set from name, synonyms
// and code. Must be called whenever any of those fields change.
func (d *Diagnosis) RefreshKeywords() {
	texts := make([]string, 0, len(d.Synonyms)+2)
	texts = append(texts, d.Name)
	texts = append(texts, d.Synonyms...)
	texts = append(texts, d.Code)
	d.Keywords = normalizer.UniqueTokens(texts...)
}

// IsCustom reports whether the entry was auto-created from free text.
func (d *Diagnosis) IsCustom() bool {
	return strings.HasPrefix(d.Code, CustomCodePrefix)
}

// HasSpecialty reports whether the entry is associated with the given
// specialty (exact comparison).
func (d *Diagnosis) HasSpecialty(specialty string) bool {
	if specialty == "" {
		return false
	}
	for _, s := range d.Specialties {
		if s == specialty {
			return true
		}
	}
	return false
}

// NewCustomDiagnosis builds an entry for an unmapped free-text diagnosis.
// The synthetic code uses the last six digits of the current epoch millis,
// which is unique enough for a single-practice local database.
func NewCustomDiagnosis(name, specialty string, now time.Time) Diagnosis {
	millis := now.UnixMilli()
	suffix := fmt.Sprintf("%06d", millis%1000000)

	if specialty == "" {
		specialty = "General"
	}

	d := Diagnosis{
		Code:        CustomCodePrefix + suffix,
		Name:        name,
		Specialties: []string{specialty},
	}
	d.RefreshKeywords()
	return d
}
