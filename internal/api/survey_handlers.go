package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clinicdesk/clinic-scheduling/internal/survey"
)

func surveyEligibilityHandler(svc *survey.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		visitID, ok := parseIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_visit_id", "id must be a positive integer")
			return
		}

		el, err := svc.Eligible(r.Context(), visitID)
		if err != nil {
			handleSurveyError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, el)
	}
}

// submitRatingSurveyHandler serves both the named and the anonymous rating
// routes; the anonymous variant never stores patient identity.
func submitRatingSurveyHandler(svc *survey.Service, anonymous bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitRatingSurveyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		sv, err := svc.SubmitRating(r.Context(), survey.RatingSubmission{
			VisitID:    req.VisitID,
			PatientID:  req.PatientID,
			NationalID: req.NationalID,
			Anonymous:  anonymous,
			Rating:     req.Rating,
			Answers:    req.Answers,
			Notes:      req.Notes,
		})
		if err != nil {
			handleSurveyError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, sv)
	}
}

func submitGeneralSurveyHandler(svc *survey.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitGeneralSurveyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		sv, err := svc.SubmitGeneral(r.Context(), survey.GeneralSubmission{
			PatientID:  req.PatientID,
			NationalID: req.NationalID,
			Answers:    req.Answers,
			Notes:      req.Notes,
		})
		if err != nil {
			handleSurveyError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, sv)
	}
}

func getSurveyHandler(svc *survey.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sv, err := svc.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleSurveyError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, sv)
	}
}

func listSurveysHandler(svc *survey.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if raw := r.URL.Query().Get("patient_id"); raw != "" {
			patientID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be an integer")
				return
			}

			surveys, err := svc.ListByPatient(r.Context(), patientID)
			if err != nil {
				handleSurveyError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, surveys)
			return
		}

		surveys, err := svc.List(r.Context())
		if err != nil {
			handleSurveyError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, surveys)
	}
}

func getVisitSurveyHandler(svc *survey.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		visitID, ok := parseIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_visit_id", "id must be a positive integer")
			return
		}

		sv, err := svc.GetByVisit(r.Context(), visitID)
		if err != nil {
			handleSurveyError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, sv)
	}
}

func updateSurveyHandler(svc *survey.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req UpdateSurveyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := svc.Update(r.Context(), id, survey.SurveyPatch{
			Answers: req.Answers,
			Notes:   req.Notes,
		}); err != nil {
			handleSurveyError(w, err)
			return
		}

		sv, err := svc.Get(r.Context(), id)
		if err != nil {
			handleSurveyError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, sv)
	}
}

func deleteSurveyHandler(svc *survey.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			handleSurveyError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func practitionerRatingHandler(svc *survey.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a positive integer")
			return
		}

		rating, err := svc.DoctorRating(r.Context(), doctorID)
		if err != nil {
			handleSurveyError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, rating)
	}
}
