package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicdesk/clinic-scheduling/internal/scheduling"
)

func parseIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// Slots

func createSlotHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slot, err := svc.CreateSlot(r.Context(), req.PractitionerID, req.Start, req.End)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponse(*slot))
	}
}

func createSlotsBatchHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotsBatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.DurationMinutes <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration_minutes must be positive")
			return
		}

		duration := time.Duration(req.DurationMinutes) * time.Minute
		slots, err := svc.CreateSlotsBatch(r.Context(), req.PractitionerID, req.From, req.To, duration)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := SlotsBatchResponse{Created: len(slots), Slots: make([]SlotResponse, 0, len(slots))}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, toSlotResponse(s))
		}

		writeJSON(w, http.StatusCreated, resp)
	}
}

// listSlotsHandler serves the booking calendar. By default only available
// future slots come back; only_available=false widens the answer to a
// practitioner's whole calendar and therefore requires the practitioner
// filter.
func listSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var doctorID *int64
		if raw := q.Get("practitioner"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner must be an integer")
				return
			}
			doctorID = &id
		}

		var (
			slots []scheduling.SlotDetail
			err   error
		)
		if q.Get("only_available") == "false" {
			if doctorID == nil {
				writeError(w, http.StatusBadRequest, "missing_practitioner", "only_available=false requires a practitioner filter")
				return
			}
			slots, err = svc.ListDoctorSlots(r.Context(), *doctorID)
		} else {
			slots, err = svc.ListAvailableSlots(r.Context(), doctorID)
		}
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, toSlotDetailResponse(s))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func deleteSlotHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a positive integer")
			return
		}

		if err := svc.DeleteSlot(r.Context(), id); err != nil {
			handleSchedulingError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func setSlotAvailabilityHandler(svc *scheduling.Service, available bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a positive integer")
			return
		}

		var err error
		if available {
			err = svc.MarkSlotAvailable(r.Context(), id)
		} else {
			err = svc.MarkSlotUnavailable(r.Context(), id)
		}
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// Visits

func reserveVisitHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReserveVisitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		visit, err := svc.ReserveVisit(r.Context(), req.PatientID, req.SlotID)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toVisitDetailResponse(*visit))
	}
}

func createVisitHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateVisitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		visit, err := svc.CreateVisit(r.Context(), req.PatientID, req.PractitionerID, req.ScheduledAt)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toVisitDetailResponse(*visit))
	}
}

func getVisitHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_visit_id", "id must be a positive integer")
			return
		}

		visit, err := svc.GetVisit(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toVisitDetailResponse(*visit))
	}
}

func listVisitsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter scheduling.VisitFilter

		q := r.URL.Query()
		if raw := q.Get("patient"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient must be an integer")
				return
			}
			filter.PatientID = &id
		}
		if raw := q.Get("practitioner"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner must be an integer")
				return
			}
			filter.DoctorID = &id
		}
		if raw := q.Get("status"); raw != "" {
			status := scheduling.VisitStatus(raw)
			if !status.Valid() {
				writeError(w, http.StatusBadRequest, "invalid_status", "unrecognized visit status")
				return
			}
			filter.Status = &status
		}

		visits, err := svc.ListVisits(r.Context(), filter)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := make([]VisitResponse, 0, len(visits))
		for _, v := range visits {
			resp = append(resp, toVisitDetailResponse(v))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// listPendingVisitsHandler returns the visits awaiting one practitioner's
// decision.
func listPendingVisitsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("practitioner")
		doctorID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || doctorID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "practitioner must be a positive integer")
			return
		}

		visits, err := svc.ListPendingByDoctor(r.Context(), doctorID)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		resp := make([]VisitResponse, 0, len(visits))
		for _, v := range visits {
			resp = append(resp, toVisitDetailResponse(v))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// visitTransitionHandler serves the lifecycle actions, which all share the
// "parse id, run transition, return visit" shape.
func visitTransitionHandler(transition func(*http.Request, int64) (*scheduling.Visit, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_visit_id", "id must be a positive integer")
			return
		}

		visit, err := transition(r, id)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toVisitResponse(*visit))
	}
}

func acceptVisitHandler(svc *scheduling.Service) http.HandlerFunc {
	return visitTransitionHandler(func(r *http.Request, id int64) (*scheduling.Visit, error) {
		return svc.AcceptVisit(r.Context(), id)
	})
}

func rejectVisitHandler(svc *scheduling.Service) http.HandlerFunc {
	return visitTransitionHandler(func(r *http.Request, id int64) (*scheduling.Visit, error) {
		return svc.RejectVisit(r.Context(), id)
	})
}

func completeVisitHandler(svc *scheduling.Service) http.HandlerFunc {
	return visitTransitionHandler(func(r *http.Request, id int64) (*scheduling.Visit, error) {
		return svc.CompleteVisit(r.Context(), id)
	})
}

func cancelVisitHandler(svc *scheduling.Service) http.HandlerFunc {
	return visitTransitionHandler(func(r *http.Request, id int64) (*scheduling.Visit, error) {
		return svc.CancelVisit(r.Context(), id)
	})
}

func updateVisitHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_visit_id", "id must be a positive integer")
			return
		}

		var req UpdateVisitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patch := scheduling.VisitPatch{
			ScheduledAt: req.ScheduledAt,
			DoctorID:    req.PractitionerID,
		}
		if req.Status != nil {
			status := scheduling.VisitStatus(*req.Status)
			patch.Status = &status
		}

		if err := svc.UpdateVisit(r.Context(), id, patch); err != nil {
			handleSchedulingError(w, err)
			return
		}

		visit, err := svc.GetVisit(r.Context(), id)
		if err != nil {
			handleSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toVisitDetailResponse(*visit))
	}
}

func deleteVisitHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_visit_id", "id must be a positive integer")
			return
		}

		if err := svc.DeleteVisit(r.Context(), id); err != nil {
			handleSchedulingError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
