package search

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/medikit/prescriptor-api/catalog"
	"github.com/medikit/prescriptor-api/logging"
	"github.com/medikit/prescriptor-api/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	logging.InitLogger("")

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewService(s), s
}

func putMedication(t *testing.T, s *store.Store, m catalog.Medication) {
	t.Helper()
	m.RefreshKeywords()
	if err := s.Update(func(tx *store.Tx) error { return tx.PutMedication(m) }); err != nil {
		t.Fatal(err)
	}
}

func TestShortQueriesReturnEmpty(t *testing.T) {
	svc, s := newTestService(t)
	putMedication(t, s, catalog.Medication{ID: "m1", Name: "Amoxicilina"})

	for _, query := range []string{"", "a", " a ", "  "} {
		results, err := svc.Medications(query, "")
		if err != nil {
			t.Fatalf("query %q errored: %v", query, err)
		}
		if len(results) != 0 {
			t.Errorf("query %q should return no results, got %d", query, len(results))
		}
	}
}

func TestQueryLengthGateCountsRunes(t *testing.T) {
	svc, s := newTestService(t)
	putMedication(t, s, catalog.Medication{ID: "m1", Name: "Época tabletas"})

	// "é" is two bytes but one character, still below the minimum
	results, err := svc.Medications("é", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("one-character accented query should return no results, got %d", len(results))
	}

	results, err = svc.Medications("ép", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("two-character accented query found %d results, want 1", len(results))
	}
}

func TestPrefixAndAccentInsensitiveMatch(t *testing.T) {
	svc, s := newTestService(t)
	putMedication(t, s, catalog.Medication{ID: "m1", Name: "Ibuprofeno 400mg"})

	results, err := svc.Medications("ibup", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("prefix query found %d results, want 1", len(results))
	}

	results, err = svc.Medications("IBUPROFENO", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("case-insensitive query found %d results", len(results))
	}
}

func TestMultiTermQueriesRequireAllTerms(t *testing.T) {
	svc, s := newTestService(t)
	putMedication(t, s, catalog.Medication{ID: "m1", Name: "Amoxicilina 500mg suspensión"})
	putMedication(t, s, catalog.Medication{ID: "m2", Name: "Amoxicilina 875mg tabletas"})

	results, err := svc.Medications("amoxicilina suspension", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "m1" {
		t.Errorf("AND filter failed, got %d results", len(results))
	}
}

func TestRankingTiers(t *testing.T) {
	svc, s := newTestService(t)

	// Heavy usage, but neither custom nor specialty-matched
	putMedication(t, s, catalog.Medication{ID: "popular", Name: "Salbutamol inhalador", UsageCount: 400})
	// Custom beats any usage count
	putMedication(t, s, catalog.Medication{ID: "custom", Name: "Salbutamol solución", IsCustom: true})
	// Specialty match beats custom
	putMedication(t, s, catalog.Medication{ID: "specialty", Name: "Salbutamol nebulizar", Specialties: []string{"Neumología"}})

	results, err := svc.Medications("salbutamol", "Neumología")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	wantOrder := []string{"specialty", "custom", "popular"}
	for i, want := range wantOrder {
		if results[i].ID != want {
			t.Errorf("rank %d = %s, want %s", i, results[i].ID, want)
		}
	}
}

func TestSpecialtyComparisonIsExact(t *testing.T) {
	svc, s := newTestService(t)
	putMedication(t, s, catalog.Medication{ID: "m1", Name: "Salbutamol", Specialties: []string{"Neumología"}})
	putMedication(t, s, catalog.Medication{ID: "m2", Name: "Salbutamol forte", UsageCount: 10})

	// Case mismatch: the specialty tier must not apply
	results, err := svc.Medications("salbutamol", "neumología")
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ID != "m2" {
		t.Error("specialty match should be exact string equality, boost applied on case mismatch")
	}
}

func TestResultCap(t *testing.T) {
	svc, s := newTestService(t)
	for i := 0; i < 30; i++ {
		putMedication(t, s, catalog.Medication{ID: fmt.Sprintf("m%02d", i), Name: fmt.Sprintf("Paracetamol variante %d", i)})
	}

	results, err := svc.Medications("paracetamol", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) > 20 {
		t.Errorf("search returned %d results, cap is 20", len(results))
	}
}

func TestDiagnosisSearchRanksCustomFirst(t *testing.T) {
	svc, s := newTestService(t)

	put := func(d catalog.Diagnosis) {
		d.RefreshKeywords()
		if err := s.Update(func(tx *store.Tx) error { return tx.PutDiagnosis(d) }); err != nil {
			t.Fatal(err)
		}
	}
	put(catalog.Diagnosis{Code: "J02.0", Name: "Faringitis Estreptocócica"})
	put(catalog.Diagnosis{Code: "CUST-123456", Name: "Faringitis recurrente del paciente X"})

	results, err := svc.Diagnoses("faringitis", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Code != "CUST-123456" {
		t.Errorf("custom diagnosis should rank first, got %s", results[0].Code)
	}
}
