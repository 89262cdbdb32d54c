// Package handlers provides HTTP request handlers for the prescriber API
// endpoints. It includes handlers for catalog search, treatment
// suggestions, prescription and patient management, billing and health
// checks, with input validation and consistent JSON error responses.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medikit/prescriptor-api/catalog"
	"github.com/medikit/prescriptor-api/finance"
	"github.com/medikit/prescriptor-api/interfaces"
	"github.com/medikit/prescriptor-api/logging"
	"github.com/medikit/prescriptor-api/prescribing"
	"github.com/medikit/prescriptor-api/validation"
)

// RespondWithJSON writes a JSON response.
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}

// RespondWithError writes a JSON error response.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]interface{}{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	})
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// SearchMedications serves ranked medication autocomplete results.
func SearchMedications(searcher interfaces.Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if err := validation.ValidateInput(query); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		results, err := searcher.Medications(query, r.URL.Query().Get("specialty"))
		if err != nil {
			logging.Error("Medication search failed", "query", query, "error", err)
			RespondWithError(w, http.StatusInternalServerError, "Search failed")
			return
		}
		if results == nil {
			results = []catalog.Medication{}
		}

		RespondWithJSON(w, http.StatusOK, results)
	}
}

// SearchDiagnoses serves ranked diagnosis autocomplete results.
func SearchDiagnoses(searcher interfaces.Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if err := validation.ValidateInput(query); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		results, err := searcher.Diagnoses(query, r.URL.Query().Get("specialty"))
		if err != nil {
			logging.Error("Diagnosis search failed", "query", query, "error", err)
			RespondWithError(w, http.StatusInternalServerError, "Search failed")
			return
		}
		if results == nil {
			results = []catalog.Diagnosis{}
		}

		RespondWithJSON(w, http.StatusOK, results)
	}
}

// SuggestTreatments serves learned treatment protocols for a diagnosis.
func SuggestTreatments(learner interfaces.Learner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if err := validation.ValidateInput(code); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		suggestions, err := learner.Suggestions(code, r.URL.Query().Get("specialty"))
		if err != nil {
			logging.Error("Suggestion lookup failed", "code", code, "error", err)
			RespondWithError(w, http.StatusInternalServerError, "Suggestion lookup failed")
			return
		}
		if suggestions == nil {
			suggestions = []catalog.Treatment{}
		}

		RespondWithJSON(w, http.StatusOK, suggestions)
	}
}

// LearnRequest is the body of a direct learn call. The usual path runs
// through prescription creation; this endpoint lets the client replay
// reinforcements it queued while offline.
type LearnRequest struct {
	Diagnosis           string                   `json:"diagnosis"`
	Medications         []catalog.MedicationLine `json:"medications"`
	GeneralInstructions string                   `json:"generalInstructions,omitempty"`
	Specialty           string                   `json:"specialty,omitempty"`
}

// LearnTreatment reinforces a treatment protocol directly.
func LearnTreatment(learner interfaces.Learner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LearnRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if err := learner.Learn(req.Diagnosis, req.Medications, req.GeneralInstructions, req.Specialty); err != nil {
			logging.Error("Learn failed", "diagnosis", req.Diagnosis, "error", err)
			RespondWithError(w, http.StatusInternalServerError, "Learn failed")
			return
		}

		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "learned"})
	}
}

// ForgetTreatment drops a learned treatment protocol.
func ForgetTreatment(learner interfaces.Learner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := learner.Forget(chi.URLParam(r, "id")); err != nil {
			RespondWithError(w, http.StatusInternalServerError, "Failed to delete treatment")
			return
		}
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// CreatePrescription saves a prescription and reinforces the learned
// treatment behind it.
func CreatePrescription(svc *prescribing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p catalog.Prescription
		if !decodeBody(w, r, &p) {
			return
		}

		saved, err := svc.CreatePrescription(p)
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		RespondWithJSON(w, http.StatusCreated, saved)
	}
}

// ListPrescriptions returns all prescriptions, newest first.
func ListPrescriptions(svc *prescribing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Prescriptions()
		if err != nil {
			logging.Error("Failed to list prescriptions", "error", err)
			RespondWithError(w, http.StatusInternalServerError, "Failed to list prescriptions")
			return
		}
		if list == nil {
			list = []catalog.Prescription{}
		}

		RespondWithJSON(w, http.StatusOK, list)
	}
}

// GetPrescription returns one prescription by id.
func GetPrescription(svc *prescribing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Prescription(chi.URLParam(r, "id"))
		if err != nil {
			RespondWithError(w, http.StatusInternalServerError, "Failed to load prescription")
			return
		}
		if p == nil {
			RespondWithError(w, http.StatusNotFound, "Prescription not found")
			return
		}

		RespondWithJSON(w, http.StatusOK, p)
	}
}

// DeletePrescription removes a prescription by id.
func DeletePrescription(svc *prescribing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeletePrescription(chi.URLParam(r, "id")); err != nil {
			RespondWithError(w, http.StatusInternalServerError, "Failed to delete prescription")
			return
		}
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// SavePatient inserts or updates a patient.
func SavePatient(svc *prescribing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p catalog.Patient
		if !decodeBody(w, r, &p) {
			return
		}
		if err := validation.ValidateInput(p.Name); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		saved, err := svc.SavePatient(p)
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		RespondWithJSON(w, http.StatusCreated, saved)
	}
}

// ListPatients returns all patients sorted by name.
func ListPatients(svc *prescribing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Patients()
		if err != nil {
			logging.Error("Failed to list patients", "error", err)
			RespondWithError(w, http.StatusInternalServerError, "Failed to list patients")
			return
		}
		if list == nil {
			list = []catalog.Patient{}
		}

		RespondWithJSON(w, http.StatusOK, list)
	}
}

// GetPatient returns one patient by id.
func GetPatient(svc *prescribing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Patient(chi.URLParam(r, "id"))
		if err != nil {
			RespondWithError(w, http.StatusInternalServerError, "Failed to load patient")
			return
		}
		if p == nil {
			RespondWithError(w, http.StatusNotFound, "Patient not found")
			return
		}

		RespondWithJSON(w, http.StatusOK, p)
	}
}

// DeletePatient removes a patient by id.
func DeletePatient(svc *prescribing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeletePatient(chi.URLParam(r, "id")); err != nil {
			RespondWithError(w, http.StatusInternalServerError, "Failed to delete patient")
			return
		}
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// GetFinanceConfig returns the billing configuration.
func GetFinanceConfig(svc *finance.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := svc.Config()
		if err != nil {
			RespondWithError(w, http.StatusInternalServerError, "Failed to load billing configuration")
			return
		}
		RespondWithJSON(w, http.StatusOK, cfg)
	}
}

// PutFinanceConfig stores the billing configuration.
func PutFinanceConfig(svc *finance.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg catalog.FinanceConfig
		if !decodeBody(w, r, &cfg) {
			return
		}
		if err := svc.SetConfig(cfg); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		RespondWithJSON(w, http.StatusOK, cfg)
	}
}

// GetFinanceSummary aggregates prescriptions over a period. from and to
// are RFC 3339 dates; both are optional.
func GetFinanceSummary(svc *finance.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, ok := parseDateParam(w, r, "from")
		if !ok {
			return
		}
		to, ok := parseDateParam(w, r, "to")
		if !ok {
			return
		}

		sum, err := svc.Summarize(from, to)
		if err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}

		RespondWithJSON(w, http.StatusOK, sum)
	}
}

func parseDateParam(w http.ResponseWriter, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, raw); err != nil {
			RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %q date", name))
			return time.Time{}, false
		}
	}
	return t, true
}

// SyncCatalog triggers an immediate catalog sync.
func SyncCatalog(syncer interfaces.Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := syncer.SyncAll(); err != nil {
			logging.Error("Manual catalog sync failed", "error", err)
			RespondWithError(w, http.StatusBadGateway, "Catalog sync failed")
			return
		}
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "synced"})
	}
}

// HealthCheck returns server health information.
func HealthCheck(checker interfaces.HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, data, httpStatus := checker.HealthCheck()
		RespondWithJSON(w, httpStatus, map[string]interface{}{
			"status": status,
			"data":   data,
		})
	}
}
