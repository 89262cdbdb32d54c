package scheduler

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/medikit/prescriptor-api/logging"
	"github.com/medikit/prescriptor-api/store"
)

type fakeSyncer struct {
	mu    sync.Mutex
	calls int
	block chan struct{}
	err   error
}

func (f *fakeSyncer) SyncMedications() error { return nil }
func (f *fakeSyncer) SyncDiagnoses() error   { return nil }
func (f *fakeSyncer) SyncTreatments() error  { return nil }

func (f *fakeSyncer) SyncAll() error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return f.err
}

func (f *fakeSyncer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestScheduler(t *testing.T, syncer *fakeSyncer) *Scheduler {
	t.Helper()
	logging.InitLogger("")

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewScheduler(s, syncer, "03:00")
}

func TestRunSyncInvokesSyncer(t *testing.T) {
	syncer := &fakeSyncer{}
	sched := newTestScheduler(t, syncer)

	if err := sched.runSync(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if syncer.callCount() != 1 {
		t.Errorf("syncer called %d times, want 1", syncer.callCount())
	}
	if sched.Syncing().Load() {
		t.Error("syncing flag still set after completion")
	}
}

func TestRunSyncPropagatesFailure(t *testing.T) {
	syncer := &fakeSyncer{err: errors.New("snapshot host unreachable")}
	sched := newTestScheduler(t, syncer)

	if err := sched.runSync(); err == nil {
		t.Error("expected error from failed sync")
	}
	if sched.Syncing().Load() {
		t.Error("syncing flag still set after failure")
	}
}

func TestRunSyncSkipsWhenAlreadyInProgress(t *testing.T) {
	block := make(chan struct{})
	syncer := &fakeSyncer{block: block}
	sched := newTestScheduler(t, syncer)

	done := make(chan error, 1)
	go func() { done <- sched.runSync() }()

	// Wait for the first sync to claim the flag.
	deadline := time.After(2 * time.Second)
	for !sched.Syncing().Load() {
		select {
		case <-deadline:
			t.Fatal("first sync never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if err := sched.runSync(); err != nil {
		t.Errorf("overlapping sync should be a silent skip: %v", err)
	}
	if syncer.callCount() != 1 {
		t.Errorf("syncer called %d times, want 1 (second run skipped)", syncer.callCount())
	}

	close(block)
	if err := <-done; err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
}

func TestStartFailedInitialSyncIsNotFatal(t *testing.T) {
	syncer := &fakeSyncer{err: errors.New("snapshot host unreachable")}
	sched := newTestScheduler(t, syncer)

	if err := sched.Start(); err != nil {
		t.Fatalf("failed initial sync should not prevent startup: %v", err)
	}
	sched.Stop()

	if syncer.callCount() != 1 {
		t.Errorf("syncer called %d times, want 1", syncer.callCount())
	}
}
