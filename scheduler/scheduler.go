// Package scheduler runs the periodic catalog sync and staleness
// monitoring for the prescriber API. It performs the initial sync at
// startup, re-syncs daily at the configured time and warns when the
// local snapshot grows stale.
package scheduler

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/medikit/prescriptor-api/interfaces"
	"github.com/medikit/prescriptor-api/logging"
	"github.com/medikit/prescriptor-api/store"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler coordinates catalog syncs using dependency injection.
type Scheduler struct {
	store     *store.Store
	syncer    interfaces.Syncer
	scheduler *gocron.Scheduler
	syncAt    string
	syncing   atomic.Bool
	stopMon   chan struct{}
}

// NewScheduler creates a scheduler that runs the syncer daily at syncAt
// (HH:MM, or HH:MM;HH:MM for twice daily).
func NewScheduler(st *store.Store, syncer interfaces.Syncer, syncAt string) *Scheduler {
	return &Scheduler{
		store:     st,
		syncer:    syncer,
		scheduler: gocron.NewScheduler(time.Local),
		syncAt:    syncAt,
		stopMon:   make(chan struct{}),
	}
}

// Syncing exposes the in-progress flag for health checks.
func (s *Scheduler) Syncing() *atomic.Bool {
	return &s.syncing
}

// Start performs the initial sync and schedules the daily ones. A failed
// initial sync is not fatal: the catalog already on disk keeps serving.
func (s *Scheduler) Start() error {
	if err := s.runSync(); err != nil {
		logging.Warn("Initial catalog sync failed, serving local data", "error", err)
	}

	_, err := s.scheduler.Every(1).Days().At(s.syncAt).Do(func() {
		if err := s.runSync(); err != nil {
			logging.Error("Scheduled catalog sync failed", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule catalog sync", "error", err)
		return fmt.Errorf("failed to schedule catalog sync: %w", err)
	}

	s.scheduler.StartAsync()
	s.startStalenessMonitoring()

	return nil
}

// Stop stops the scheduler and the staleness monitor.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	close(s.stopMon)
}

// runSync performs one full catalog sync.
func (s *Scheduler) runSync() error {
	// Prevent concurrent syncs
	if !s.syncing.CompareAndSwap(false, true) {
		logging.Info("Catalog sync already in progress, skipping...")
		return nil
	}
	defer s.syncing.Store(false)

	logging.Info("Starting catalog sync", "at", time.Now().Format(time.RFC3339))
	start := time.Now()

	if err := s.syncer.SyncAll(); err != nil {
		return fmt.Errorf("catalog sync failed: %w", err)
	}

	var medications, diagnoses, treatments int
	s.store.View(func(tx *store.Tx) error {
		medications = tx.CountMedications()
		diagnoses = tx.CountDiagnoses()
		treatments = tx.CountTreatments()
		return nil
	})

	logging.Info("Catalog sync completed",
		"duration", time.Since(start).String(),
		"medications", medications,
		"diagnoses", diagnoses,
		"treatments", treatments,
	)

	return nil
}

// startStalenessMonitoring warns hourly when the snapshot is overdue.
func (s *Scheduler) startStalenessMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopMon:
				return
			case <-ticker.C:
				var lastSync time.Time
				s.store.View(func(tx *store.Tx) error {
					lastSync = tx.LastSyncedAt()
					return nil
				})
				if lastSync.IsZero() {
					logging.Warn("Catalog has never been synced")
				} else if time.Since(lastSync) > 25*time.Hour {
					logging.Warn("Catalog hasn't been synced in over 25 hours",
						"last_sync", lastSync.Format(time.RFC3339))
				}
			}
		}
	}()
}
