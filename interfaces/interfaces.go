// Package interfaces defines the core abstractions of the prescriber API
// to improve testability and separation of concerns.
package interfaces

import (
	"time"

	"github.com/medikit/prescriptor-api/catalog"
)

// Fetcher retrieves catalog snapshots from the external snapshot host.
// Implementations return the decoded records; transport details stay here.
type Fetcher interface {
	FetchMedications() ([]catalog.Medication, error)
	FetchDiagnoses() ([]catalog.Diagnosis, error)
	FetchTreatments() ([]catalog.Treatment, error)
}

// Syncer reconciles external catalog snapshots into the local store
// without destroying user customizations or learned data.
type Syncer interface {
	SyncMedications() error
	SyncDiagnoses() error
	SyncTreatments() error
	SyncAll() error
}

// Learner is the treatment learning engine contract: Learn reinforces a
// protocol after a prescription is saved, Suggestions serves the ranked
// protocols for a resolved diagnosis code, Forget drops a learned
// protocol.
type Learner interface {
	Learn(diagnosisKey string, medications []catalog.MedicationLine, instructions, specialty string) error
	Suggestions(diagnosisCode, specialty string) ([]catalog.Treatment, error)
	Forget(id string) error
}

// Searcher is the ranked catalog lookup used by autocomplete.
type Searcher interface {
	Medications(query, specialty string) ([]catalog.Medication, error)
	Diagnoses(query, specialty string) ([]catalog.Diagnosis, error)
}

// Scheduler manages the periodic catalog sync and staleness monitoring.
type Scheduler interface {
	Start() error
	Stop()
}

// HealthChecker reports store and catalog health for the /health endpoint.
type HealthChecker interface {
	HealthCheck() (status string, data map[string]any, httpStatus int)
	CalculateNextSync() time.Time
}
