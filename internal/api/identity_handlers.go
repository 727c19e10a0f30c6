package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicdesk/clinic-scheduling/internal/identity"
)

func toAuthResponse(res *identity.AuthResult) AuthResponse {
	return AuthResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		Email:     res.User.Email,
		FirstName: res.User.FirstName,
		LastName:  res.User.LastName,
		Role:      string(res.User.Role),
	}
}

func registerHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
			return
		}

		res, err := svc.Register(r.Context(), identity.RegisterInput{
			Email:      req.Email,
			Password:   req.Password,
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			Role:       identity.Role(req.Role),
			NationalID: req.NationalID,
			Specialty:  req.Specialty,
		})
		if err != nil {
			handleIdentityError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAuthResponse(res))
	}
}

func loginHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		res, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			handleIdentityError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAuthResponse(res))
	}
}

func meHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := GetPrincipal(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_token", "authentication required")
			return
		}

		acc, err := svc.Account(r.Context(), principal.UserID)
		if err != nil {
			handleIdentityError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toUserResponse(*acc))
	}
}

// Admin user management

func parseUserIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

func listUsersHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := svc.ListAccounts(r.Context())
		if err != nil {
			handleIdentityError(w, err)
			return
		}

		resp := make([]UserResponse, 0, len(accounts))
		for _, acc := range accounts {
			resp = append(resp, toUserResponse(acc))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func createUserHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
			return
		}

		acc, err := svc.CreateUserByAdmin(r.Context(), identity.RegisterInput{
			Email:      req.Email,
			Password:   req.Password,
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			Role:       identity.Role(req.Role),
			NationalID: req.NationalID,
			Specialty:  req.Specialty,
		})
		if err != nil {
			handleIdentityError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toUserResponse(*acc))
	}
}

func getUserHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUserIDParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "id must be a valid UUID")
			return
		}

		acc, err := svc.Account(r.Context(), id)
		if err != nil {
			handleIdentityError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toUserResponse(*acc))
	}
}

func updateUserHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUserIDParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "id must be a valid UUID")
			return
		}

		var req UpdateUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := svc.UpdateUser(r.Context(), id, identity.UserPatch{
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		}); err != nil {
			handleIdentityError(w, err)
			return
		}

		acc, err := svc.Account(r.Context(), id)
		if err != nil {
			handleIdentityError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toUserResponse(*acc))
	}
}

func changeRoleHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUserIDParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "id must be a valid UUID")
			return
		}

		var req ChangeRoleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := svc.ChangeRole(r.Context(), id, identity.Role(req.Role), req.NationalID, req.Specialty); err != nil {
			handleIdentityError(w, err)
			return
		}

		acc, err := svc.Account(r.Context(), id)
		if err != nil {
			handleIdentityError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toUserResponse(*acc))
	}
}

func deleteUserHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUserIDParam(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_user_id", "id must be a valid UUID")
			return
		}

		if err := svc.DeleteUser(r.Context(), id); err != nil {
			handleIdentityError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// Practitioner directory

func listPractitionersHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := svc.ListDoctors(r.Context())
		if err != nil {
			handleIdentityError(w, err)
			return
		}

		resp := make([]PractitionerResponse, 0, len(doctors))
		for _, d := range doctors {
			resp = append(resp, toPractitionerResponse(d))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getPractitionerHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a positive integer")
			return
		}

		doctor, err := svc.GetDoctor(r.Context(), id)
		if err != nil {
			handleIdentityError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPractitionerResponse(*doctor))
	}
}

func createPractitionerHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePractitionerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.FirstName == "" || req.LastName == "" || req.Specialty == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "first_name, last_name and specialty are required")
			return
		}

		doctor, err := svc.CreateDoctor(r.Context(), req.FirstName, req.LastName, req.Specialty)
		if err != nil {
			handleIdentityError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPractitionerResponse(*doctor))
	}
}

func updatePractitionerHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a positive integer")
			return
		}

		var req UpdatePractitionerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := svc.UpdateDoctor(r.Context(), id, identity.DoctorPatch{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Specialty: req.Specialty,
		}); err != nil {
			handleIdentityError(w, err)
			return
		}

		doctor, err := svc.GetDoctor(r.Context(), id)
		if err != nil {
			handleIdentityError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPractitionerResponse(*doctor))
	}
}

func deletePractitionerHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_practitioner_id", "id must be a positive integer")
			return
		}

		if err := svc.DeleteDoctor(r.Context(), id); err != nil {
			handleIdentityError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// Patient directory

func listPatientsHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patients, err := svc.ListPatients(r.Context())
		if err != nil {
			handleIdentityError(w, err)
			return
		}

		resp := make([]PatientResponse, 0, len(patients))
		for _, p := range patients {
			resp = append(resp, toPatientResponse(p))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getPatientHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a positive integer")
			return
		}

		patient, err := svc.GetPatient(r.Context(), id)
		if err != nil {
			handleIdentityError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPatientResponse(*patient))
	}
}

func createPatientHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.FirstName == "" || req.LastName == "" || req.NationalID == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "first_name, last_name and national_id are required")
			return
		}

		patient, err := svc.CreatePatient(r.Context(), req.FirstName, req.LastName, req.NationalID)
		if err != nil {
			handleIdentityError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPatientResponse(*patient))
	}
}

func updatePatientHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a positive integer")
			return
		}

		var req UpdatePatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if err := svc.UpdatePatient(r.Context(), id, identity.PatientPatch{
			FirstName: req.FirstName,
			LastName:  req.LastName,
		}); err != nil {
			handleIdentityError(w, err)
			return
		}

		patient, err := svc.GetPatient(r.Context(), id)
		if err != nil {
			handleIdentityError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPatientResponse(*patient))
	}
}

func deletePatientHandler(svc *identity.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "id must be a positive integer")
			return
		}

		if err := svc.DeletePatient(r.Context(), id); err != nil {
			handleIdentityError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
