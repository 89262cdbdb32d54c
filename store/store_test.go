package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/medikit/prescriptor-api/catalog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return s
}

func putMedication(t *testing.T, s *Store, m catalog.Medication) {
	t.Helper()
	m.RefreshKeywords()
	if err := s.Update(func(tx *Tx) error { return tx.PutMedication(m) }); err != nil {
		t.Fatalf("failed to put medication: %v", err)
	}
}

func TestMedicationRoundTrip(t *testing.T) {
	s := openTestStore(t)

	putMedication(t, s, catalog.Medication{
		ID:          "med-1",
		Name:        "Amoxicilina 500mg",
		GenericName: "amoxicilina",
		IsCustom:    true,
	})

	err := s.View(func(tx *Tx) error {
		m, err := tx.MedicationByID("med-1")
		if err != nil {
			return err
		}
		if m == nil {
			t.Fatal("medication not found by id")
		}
		if !m.IsCustom {
			t.Error("IsCustom flag lost in round trip")
		}

		byName, err := tx.MedicationByName("AMOXICILINA 500MG")
		if err != nil {
			return err
		}
		if byName == nil || byName.ID != "med-1" {
			t.Error("name lookup should be case and accent insensitive")
		}

		if got := tx.CountMedications(); got != 1 {
			t.Errorf("CountMedications = %d, want 1", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMedicationKeywordIndexMaintenance(t *testing.T) {
	s := openTestStore(t)

	putMedication(t, s, catalog.Medication{ID: "med-1", Name: "Loratadina 10mg"})

	// Rename: old keywords must stop matching, new ones must match
	putMedication(t, s, catalog.Medication{ID: "med-1", Name: "Cetirizina 10mg"})

	err := s.View(func(tx *Tx) error {
		if ids := tx.MedicationIDsByKeywordPrefix([]string{"lorata"}, 50); len(ids) != 0 {
			t.Errorf("stale keyword index entry survived rename: %v", ids)
		}
		if ids := tx.MedicationIDsByKeywordPrefix([]string{"cetiri"}, 50); len(ids) != 1 {
			t.Errorf("new keyword not indexed, got %v", ids)
		}
		if old, _ := tx.MedicationByName("Loratadina 10mg"); old != nil {
			t.Error("stale name index entry survived rename")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestKeywordPrefixPoolLimit(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 60; i++ {
		putMedication(t, s, catalog.Medication{
			ID:   fmt.Sprintf("med-%02d", i),
			Name: "paracetamol variante",
		})
	}

	s.View(func(tx *Tx) error {
		ids := tx.MedicationIDsByKeywordPrefix([]string{"paracetamol"}, 50)
		if len(ids) > 50 {
			t.Errorf("candidate pool exceeded limit: %d", len(ids))
		}
		return nil
	})
}

func TestTouchMedication(t *testing.T) {
	s := openTestStore(t)
	putMedication(t, s, catalog.Medication{ID: "med-1", Name: "Ibuprofeno"})

	now := time.Now()
	for i := 0; i < 3; i++ {
		if err := s.Update(func(tx *Tx) error { return tx.TouchMedication("med-1", now) }); err != nil {
			t.Fatal(err)
		}
	}
	// Unknown ids are ignored
	if err := s.Update(func(tx *Tx) error { return tx.TouchMedication("missing", now) }); err != nil {
		t.Fatalf("touching a missing medication should not fail: %v", err)
	}

	s.View(func(tx *Tx) error {
		m, _ := tx.MedicationByID("med-1")
		if m.UsageCount != 3 {
			t.Errorf("UsageCount = %d, want 3", m.UsageCount)
		}
		if m.LastUsedAt == nil {
			t.Error("LastUsedAt not stamped")
		}
		return nil
	})
}

func TestDiagnosisIndexes(t *testing.T) {
	s := openTestStore(t)

	d := catalog.Diagnosis{Code: "J02.0", Name: "Faringitis Estreptocócica", Synonyms: []string{"Amigdalitis"}}
	d.RefreshKeywords()
	if err := s.Update(func(tx *Tx) error { return tx.PutDiagnosis(d) }); err != nil {
		t.Fatal(err)
	}

	s.View(func(tx *Tx) error {
		byCode, _ := tx.DiagnosisByCode("J02.0")
		if byCode == nil {
			t.Fatal("diagnosis not found by code")
		}
		byName, _ := tx.DiagnosisByName("Faringitis Estreptocócica")
		if byName == nil || byName.Code != "J02.0" {
			t.Error("diagnosis not found by exact name")
		}
		if codes := tx.DiagnosisCodesByKeywordPrefix([]string{"amigda"}, 50); len(codes) != 1 {
			t.Errorf("synonym keyword not indexed, got %v", codes)
		}
		return nil
	})
}

func TestTreatmentsByDiagnosisDoesNotLeakPrefixNeighbors(t *testing.T) {
	s := openTestStore(t)

	put := func(id, code string) {
		err := s.Update(func(tx *Tx) error {
			return tx.PutTreatment(catalog.Treatment{
				ID:            id,
				DiagnosisCode: code,
				Medications:   []catalog.MedicationLine{{Name: "X", Dose: "1"}},
				UsageCount:    1,
				LastUsedAt:    time.Now(),
			})
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	put("t1", "J02")
	put("t2", "J02.0")
	put("t3", "J02")

	s.View(func(tx *Tx) error {
		ts, err := tx.TreatmentsByDiagnosis("J02")
		if err != nil {
			return err
		}
		if len(ts) != 2 {
			t.Errorf("expected exactly the two J02 treatments, got %d", len(ts))
		}
		for _, tr := range ts {
			if tr.DiagnosisCode != "J02" {
				t.Errorf("leaked treatment for %s", tr.DiagnosisCode)
			}
		}
		return nil
	})
}

func TestDeleteTreatment(t *testing.T) {
	s := openTestStore(t)

	tr := catalog.Treatment{ID: "t1", DiagnosisCode: "J02", UsageCount: 1, LastUsedAt: time.Now()}
	if err := s.Update(func(tx *Tx) error { return tx.PutTreatment(tr) }); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(func(tx *Tx) error { return tx.DeleteTreatment("t1") }); err != nil {
		t.Fatal(err)
	}

	s.View(func(tx *Tx) error {
		if got := tx.CountTreatments(); got != 0 {
			t.Errorf("CountTreatments = %d after delete", got)
		}
		ts, _ := tx.TreatmentsByDiagnosis("J02")
		if len(ts) != 0 {
			t.Error("index entry survived delete")
		}
		return nil
	})

	// Deleting a missing id is a no-op
	if err := s.Update(func(tx *Tx) error { return tx.DeleteTreatment("missing") }); err != nil {
		t.Errorf("deleting missing treatment should not fail: %v", err)
	}
}

func TestConsecutiveNumbering(t *testing.T) {
	s := openTestStore(t)

	for want := int64(1); want <= 5; want++ {
		var got int64
		err := s.Update(func(tx *Tx) error {
			n, err := tx.NextPrescriptionNumber()
			got = n
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("prescription number = %d, want %d", got, want)
		}
	}
}

func TestMetaRoundTrip(t *testing.T) {
	s := openTestStore(t)

	s.View(func(tx *Tx) error {
		if !tx.LastSyncedAt().IsZero() {
			t.Error("LastSyncedAt should start at zero")
		}
		cfg, _ := tx.FinanceConfig()
		if cfg != nil {
			t.Error("FinanceConfig should start unset")
		}
		return nil
	})

	now := time.Now().Truncate(time.Second)
	err := s.Update(func(tx *Tx) error {
		if err := tx.SetLastSyncedAt(now); err != nil {
			return err
		}
		return tx.PutFinanceConfig(catalog.FinanceConfig{ConsultationFee: 350, Currency: "MXN"})
	})
	if err != nil {
		t.Fatal(err)
	}

	s.View(func(tx *Tx) error {
		if !tx.LastSyncedAt().Equal(now) {
			t.Errorf("LastSyncedAt = %v, want %v", tx.LastSyncedAt(), now)
		}
		cfg, err := tx.FinanceConfig()
		if err != nil {
			return err
		}
		if cfg == nil || cfg.ConsultationFee != 350 || cfg.Currency != "MXN" {
			t.Errorf("unexpected finance config: %+v", cfg)
		}
		return nil
	})
}
