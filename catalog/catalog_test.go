package catalog

import (
	"math/rand"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestSignatureOrderInvariance(t *testing.T) {
	lines := []MedicationLine{
		{Name: "Clavulin", GenericName: "Amoxicilina + Ácido Clavulánico", Dose: "875mg"},
		{Name: "Ibuprofeno", Dose: "400mg"},
		{Name: "Omeprazol", GenericName: "Omeprazol", Dose: "20mg"},
	}

	want := Signature(lines)

	for i := 0; i < 10; i++ {
		perm := make([]MedicationLine, len(lines))
		copy(perm, lines)
		rand.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })

		if got := Signature(perm); got != want {
			t.Fatalf("signature not order-invariant: got %q, want %q", got, want)
		}
	}
}

func TestSignaturePrefersGenericName(t *testing.T) {
	brandOnly := []MedicationLine{{Name: "Clavulin"}}
	withGeneric := []MedicationLine{{Name: "Clavulin", GenericName: "amoxicilina"}}

	if got := Signature(brandOnly); got != "Clavulin" {
		t.Errorf("expected brand name fallback, got %q", got)
	}
	if got := Signature(withGeneric); got != "amoxicilina" {
		t.Errorf("expected generic name, got %q", got)
	}
}

func TestSignatureJoinsSorted(t *testing.T) {
	lines := []MedicationLine{
		{Name: "Zinc"},
		{Name: "Amoxicilina"},
	}
	if got := Signature(lines); got != "Amoxicilina + Zinc" {
		t.Errorf("Signature = %q, want %q", got, "Amoxicilina + Zinc")
	}
}

func TestNewCustomDiagnosis(t *testing.T) {
	now := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	d := NewCustomDiagnosis("Cuadro Viral Inespecífico", "Pediatría", now)

	if !strings.HasPrefix(d.Code, CustomCodePrefix) {
		t.Errorf("code %q should start with %q", d.Code, CustomCodePrefix)
	}
	if len(d.Code) != len(CustomCodePrefix)+6 {
		t.Errorf("code %q should carry a six digit suffix", d.Code)
	}
	if d.Name != "Cuadro Viral Inespecífico" {
		t.Errorf("name must be kept verbatim, got %q", d.Name)
	}
	if len(d.Specialties) != 1 || d.Specialties[0] != "Pediatría" {
		t.Errorf("unexpected specialties: %v", d.Specialties)
	}
	if !d.IsCustom() {
		t.Error("auto-created diagnosis should report IsCustom")
	}
	if len(d.Keywords) == 0 {
		t.Error("keywords should be derived at creation")
	}
}

func TestNewCustomDiagnosisDefaultsSpecialty(t *testing.T) {
	d := NewCustomDiagnosis("Algo Raro", "", time.Now())
	if len(d.Specialties) != 1 || d.Specialties[0] != "General" {
		t.Errorf("expected General fallback, got %v", d.Specialties)
	}
}

func TestRefreshKeywords(t *testing.T) {
	d := Diagnosis{
		Code:     "J02.0",
		Name:     "Faringitis Estreptocócica",
		Synonyms: []string{"Amigdalitis bacteriana"},
	}
	d.RefreshKeywords()

	want := map[string]bool{"faringitis": true, "estreptococica": true, "amigdalitis": true, "bacteriana": true, "j020": true}
	for _, kw := range d.Keywords {
		delete(want, kw)
	}
	if len(want) != 0 {
		t.Errorf("missing keywords %v in %v", want, d.Keywords)
	}

	m := Medication{Name: "Amoxicilina 500mg", GenericName: "amoxicilina"}
	m.RefreshKeywords()
	found := false
	for _, kw := range m.Keywords {
		if kw == "amoxicilina" {
			found = true
		}
	}
	if !found {
		t.Errorf("medication keywords should contain the name tokens, got %v", m.Keywords)
	}
}

func TestDisplayNameTruncates(t *testing.T) {
	long := strings.Repeat("abcdefghij", 20)
	got := DisplayName(long)
	if len([]rune(got)) > 81 {
		t.Errorf("display name too long: %d runes", len([]rune(got)))
	}
	if DisplayName("corto") != "corto" {
		t.Error("short names must pass through unchanged")
	}
}

func TestDisplayNameTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("á", 100)
	got := DisplayName(long)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated display name is not valid UTF-8: %q", got)
	}
	if want := strings.Repeat("á", 80) + "…"; got != want {
		t.Errorf("DisplayName = %q, want %q", got, want)
	}
}
