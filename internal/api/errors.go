package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clinicdesk/clinic-scheduling/internal/identity"
	redisclient "github.com/clinicdesk/clinic-scheduling/internal/redis"
	"github.com/clinicdesk/clinic-scheduling/internal/scheduling"
	"github.com/clinicdesk/clinic-scheduling/internal/survey"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func handleSchedulingError(w http.ResponseWriter, err error) {
	var transition *scheduling.InvalidTransitionError
	switch {
	case errors.Is(err, scheduling.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, scheduling.ErrVisitNotFound):
		writeError(w, http.StatusNotFound, "visit_not_found", err.Error())
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "practitioner_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, "invalid_interval", err.Error())
	case errors.Is(err, scheduling.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, scheduling.ErrSlotInPast):
		writeError(w, http.StatusUnprocessableEntity, "slot_in_past", err.Error())
	case errors.Is(err, scheduling.ErrSlotOverlap):
		writeError(w, http.StatusConflict, "slot_overlap", err.Error())
	case errors.Is(err, scheduling.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, scheduling.ErrSlotBooked):
		writeError(w, http.StatusConflict, "slot_booked", err.Error())
	case errors.Is(err, scheduling.ErrDoctorBusy):
		writeError(w, http.StatusConflict, "practitioner_busy", err.Error())
	case errors.Is(err, scheduling.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleSurveyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, survey.ErrSurveyNotFound):
		writeError(w, http.StatusNotFound, "survey_not_found", err.Error())
	case errors.Is(err, survey.ErrVisitNotFound):
		writeError(w, http.StatusNotFound, "visit_not_found", err.Error())
	case errors.Is(err, survey.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalid_survey_id", err.Error())
	case errors.Is(err, survey.ErrRatingOutOfRange):
		writeError(w, http.StatusBadRequest, "rating_out_of_range", err.Error())
	case errors.Is(err, survey.ErrVisitNotCompleted):
		writeError(w, http.StatusConflict, "visit_not_completed", err.Error())
	case errors.Is(err, survey.ErrVisitAlreadyRated):
		writeError(w, http.StatusConflict, "visit_already_rated", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleIdentityError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, identity.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_token", err.Error())
	case errors.Is(err, identity.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, identity.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "practitioner_not_found", err.Error())
	case errors.Is(err, identity.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, identity.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, identity.ErrNationalIDTaken):
		writeError(w, http.StatusConflict, "national_id_taken", err.Error())
	case errors.Is(err, identity.ErrDoctorHasVisits):
		writeError(w, http.StatusConflict, "practitioner_has_visits", err.Error())
	case errors.Is(err, identity.ErrInvalidRole),
		errors.Is(err, identity.ErrNationalIDRequired),
		errors.Is(err, identity.ErrSpecialtyRequired):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
