// Package health provides health checking functionality for the prescriber API.
package health

import (
	"math"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/medikit/prescriptor-api/interfaces"
	"github.com/medikit/prescriptor-api/store"
)

// Checker implements the interfaces.HealthChecker interface over the
// local store.
type Checker struct {
	store   *store.Store
	syncing *atomic.Bool
	syncAt  string
}

var _ interfaces.HealthChecker = (*Checker)(nil)

// NewChecker creates a health checker. syncing is the scheduler's
// in-progress flag; syncAt is the daily sync time in HH:MM form.
func NewChecker(st *store.Store, syncing *atomic.Bool, syncAt string) *Checker {
	return &Checker{store: st, syncing: syncing, syncAt: syncAt}
}

// HealthCheck returns HTTP-specific health data. The catalog is local, so
// snapshot staleness only degrades the service; an empty medication
// catalog makes it unhealthy because suggestions and search cannot work.
func (h *Checker) HealthCheck() (status string, data map[string]any, httpStatus int) {
	var medications, diagnoses, treatments int
	var lastSync time.Time

	h.store.View(func(tx *store.Tx) error {
		medications = tx.CountMedications()
		diagnoses = tx.CountDiagnoses()
		treatments = tx.CountTreatments()
		lastSync = tx.LastSyncedAt()
		return nil
	})

	isSyncing := h.syncing != nil && h.syncing.Load()
	syncAge := time.Since(lastSync)

	switch {
	case medications == 0 || diagnoses == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case lastSync.IsZero():
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case syncAge > 72*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case isSyncing && syncAge > 26*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"medications":      medications,
		"diagnoses":        diagnoses,
		"treatments":       treatments,
		"is_syncing":       isSyncing,
		"next_sync":        h.CalculateNextSync().Format(time.RFC3339),
		"store_size_bytes": h.store.Size(),
	}
	if lastSync.IsZero() {
		data["last_sync"] = "never"
	} else {
		data["last_sync"] = lastSync.Format(time.RFC3339)
		data["sync_age_hours"] = math.Round(syncAge.Hours()*10) / 10
	}

	return status, data, httpStatus
}

// CalculateNextSync returns the next scheduled catalog sync time.
// SYNC_AT may list several daily times separated by ";"; the earliest
// upcoming one wins. Unparseable values fall back to 03:00.
func (h *Checker) CalculateNextSync() time.Time {
	now := time.Now()

	var next time.Time
	for _, part := range strings.Split(h.syncAt, ";") {
		t, err := time.Parse("15:04", strings.TrimSpace(part))
		if err != nil {
			continue
		}
		candidate := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
		if !now.Before(candidate) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		if next.IsZero() || candidate.Before(next) {
			next = candidate
		}
	}
	if !next.IsZero() {
		return next
	}

	next = time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
