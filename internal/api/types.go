package api

import (
	"time"

	"github.com/clinicdesk/clinic-scheduling/internal/identity"
	"github.com/clinicdesk/clinic-scheduling/internal/scheduling"
	"github.com/clinicdesk/clinic-scheduling/internal/survey"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Slots

type CreateSlotRequest struct {
	PractitionerID int64     `json:"practitioner_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
}

type CreateSlotsBatchRequest struct {
	PractitionerID  int64     `json:"practitioner_id"`
	From            time.Time `json:"from"`
	To              time.Time `json:"to"`
	DurationMinutes int       `json:"duration_minutes"`
}

type SlotResponse struct {
	ID                    int64     `json:"id"`
	PractitionerID        int64     `json:"practitioner_id"`
	Start                 time.Time `json:"start"`
	End                   time.Time `json:"end"`
	Available             bool      `json:"available"`
	PractitionerName      string    `json:"practitioner_name,omitempty"`
	PractitionerSpecialty string    `json:"practitioner_specialty,omitempty"`
}

type SlotsBatchResponse struct {
	Created int            `json:"created"`
	Slots   []SlotResponse `json:"slots"`
}

func toSlotResponse(s scheduling.Slot) SlotResponse {
	return SlotResponse{
		ID:             s.ID,
		PractitionerID: s.DoctorID,
		Start:          s.StartTime,
		End:            s.EndTime,
		Available:      s.Available,
	}
}

func toSlotDetailResponse(d scheduling.SlotDetail) SlotResponse {
	resp := toSlotResponse(d.Slot)
	resp.PractitionerName = d.DoctorFirstName + " " + d.DoctorLastName
	resp.PractitionerSpecialty = d.DoctorSpecialty
	return resp
}

// Visits

type CreateVisitRequest struct {
	ScheduledAt    time.Time `json:"scheduled_at"`
	PatientID      int64     `json:"patient_id"`
	PractitionerID int64     `json:"practitioner_id"`
}

type ReserveVisitRequest struct {
	SlotID    int64 `json:"slot_id"`
	PatientID int64 `json:"patient_id"`
}

type UpdateVisitRequest struct {
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	Status         *string    `json:"status,omitempty"`
	PractitionerID *int64     `json:"practitioner_id,omitempty"`
}

type VisitResponse struct {
	ID                    int64     `json:"id"`
	ScheduledAt           time.Time `json:"scheduled_at"`
	Status                string    `json:"status"`
	PatientID             int64     `json:"patient_id"`
	PatientName           string    `json:"patient_name,omitempty"`
	PractitionerID        int64     `json:"practitioner_id"`
	PractitionerName      string    `json:"practitioner_name,omitempty"`
	PractitionerSpecialty string    `json:"practitioner_specialty,omitempty"`
}

func toVisitResponse(v scheduling.Visit) VisitResponse {
	return VisitResponse{
		ID:             v.ID,
		ScheduledAt:    v.ScheduledAt,
		Status:         string(v.Status),
		PatientID:      v.PatientID,
		PractitionerID: v.DoctorID,
	}
}

func toVisitDetailResponse(d scheduling.VisitDetail) VisitResponse {
	resp := toVisitResponse(d.Visit)
	resp.PatientName = d.PatientFirstName + " " + d.PatientLastName
	resp.PractitionerName = d.DoctorFirstName + " " + d.DoctorLastName
	resp.PractitionerSpecialty = d.DoctorSpecialty
	return resp
}

// Surveys

type SubmitGeneralSurveyRequest struct {
	PatientID  *int64          `json:"patient_id,omitempty"`
	NationalID *string         `json:"national_id,omitempty"`
	Answers    []survey.Answer `json:"answers,omitempty"`
	Notes      *string         `json:"notes,omitempty"`
}

type SubmitRatingSurveyRequest struct {
	VisitID    int64           `json:"visit_id"`
	PatientID  *int64          `json:"patient_id,omitempty"`
	NationalID *string         `json:"national_id,omitempty"`
	Rating     int             `json:"rating"`
	Answers    []survey.Answer `json:"answers,omitempty"`
	Notes      *string         `json:"notes,omitempty"`
}

type UpdateSurveyRequest struct {
	Answers *[]survey.Answer `json:"answers,omitempty"`
	Notes   *string          `json:"notes,omitempty"`
}

// Auth and users

type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Role       string `json:"role"`
	NationalID string `json:"national_id,omitempty"`
	Specialty  string `json:"specialty,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
}

type UserResponse struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	PatientID      *int64    `json:"patient_id,omitempty"`
	NationalID     *string   `json:"national_id,omitempty"`
	PractitionerID *int64    `json:"practitioner_id,omitempty"`
	Specialty      *string   `json:"specialty,omitempty"`
}

func toUserResponse(acc identity.Account) UserResponse {
	resp := UserResponse{
		ID:        acc.ID.String(),
		Email:     acc.Email,
		FirstName: acc.FirstName,
		LastName:  acc.LastName,
		Role:      string(acc.Role),
		CreatedAt: acc.CreatedAt,
	}
	if acc.Patient != nil {
		resp.PatientID = &acc.Patient.ID
		resp.NationalID = &acc.Patient.NationalID
	}
	if acc.Doctor != nil {
		resp.PractitionerID = &acc.Doctor.ID
		resp.Specialty = &acc.Doctor.Specialty
	}
	return resp
}

type UpdateUserRequest struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

type ChangeRoleRequest struct {
	Role       string `json:"role"`
	NationalID string `json:"national_id,omitempty"`
	Specialty  string `json:"specialty,omitempty"`
}

type CreatePractitionerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Specialty string `json:"specialty"`
}

type UpdatePractitionerRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Specialty *string `json:"specialty,omitempty"`
}

type PractitionerResponse struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Specialty string `json:"specialty"`
}

func toPractitionerResponse(d identity.Doctor) PractitionerResponse {
	return PractitionerResponse{
		ID:        d.ID,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Specialty: d.Specialty,
	}
}

type CreatePatientRequest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	NationalID string `json:"national_id"`
}

type UpdatePatientRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

type PatientResponse struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	NationalID string `json:"national_id"`
}

func toPatientResponse(p identity.Patient) PatientResponse {
	return PatientResponse{
		ID:         p.ID,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		NationalID: p.NationalID,
	}
}
