// Package validation provides input and snapshot validation for the
// prescriber API.
package validation

import (
	"fmt"
	"strings"

	"github.com/medikit/prescriptor-api/catalog"
	"github.com/medikit/prescriptor-api/normalizer"
)

// Dangerous substrings rejected in user-supplied search input. Plain
// substring checks are faster than a regex here and the list is short.
var dangerousPatterns = []string{
	"<script", "</script>", "javascript:", "onload=", "onerror=",
	"eval(", "expression(", "../", "..\\", "${", "$(",
}

// ValidateInput rejects user input that is empty, absurdly long or
// carries an injection-looking payload.
func ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if len(input) > 200 {
		return fmt.Errorf("input too long: %d characters", len(input))
	}

	lower := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("input contains disallowed sequence")
		}
	}

	return nil
}

// SnapshotReport summarizes quality issues found in a catalog snapshot.
// Issues are logged by the sync engine, not fatal: the sync is best-effort
// and malformed-but-keyable records still flow through.
type SnapshotReport struct {
	MedicationCount      int
	DiagnosisCount       int
	NamelessMedications  int
	CodelessDiagnoses    int
	DuplicateMedications []string
	DuplicateDiagnoses   []string
}

// HasIssues reports whether anything in the snapshot deserves a warning.
func (r *SnapshotReport) HasIssues() bool {
	return r.NamelessMedications > 0 || r.CodelessDiagnoses > 0 ||
		len(r.DuplicateMedications) > 0 || len(r.DuplicateDiagnoses) > 0
}

// ReportMedications scans a medications snapshot for records without a
// usable match key and for colliding normalized names.
func ReportMedications(meds []catalog.Medication) *SnapshotReport {
	report := &SnapshotReport{MedicationCount: len(meds)}

	seen := make(map[string]int)
	for _, m := range meds {
		key := normalizer.Normalize(m.Name)
		if key == "" {
			report.NamelessMedications++
			continue
		}
		seen[key]++
	}
	for key, count := range seen {
		if count > 1 {
			report.DuplicateMedications = append(report.DuplicateMedications, key)
		}
	}

	return report
}

// ReportDiagnoses scans a diagnoses snapshot for records without a stable
// code and for duplicate codes.
func ReportDiagnoses(dxs []catalog.Diagnosis) *SnapshotReport {
	report := &SnapshotReport{DiagnosisCount: len(dxs)}

	seen := make(map[string]int)
	for _, d := range dxs {
		if strings.TrimSpace(d.Code) == "" {
			report.CodelessDiagnoses++
			continue
		}
		seen[d.Code]++
	}
	for code, count := range seen {
		if count > 1 {
			report.DuplicateDiagnoses = append(report.DuplicateDiagnoses, code)
		}
	}

	return report
}
