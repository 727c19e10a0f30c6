package scheduling

import (
	"time"
)

type VisitStatus string

const (
	// VisitScheduled is the initial status of administratively created visits.
	VisitScheduled VisitStatus = "scheduled"
	// VisitPending is the initial status of visits created through slot reservation.
	VisitPending   VisitStatus = "pending"
	VisitAccepted  VisitStatus = "accepted"
	VisitCompleted VisitStatus = "completed"
	VisitRejected  VisitStatus = "rejected"
	VisitCancelled VisitStatus = "cancelled"
)

// Valid reports whether s is one of the recognized statuses.
func (s VisitStatus) Valid() bool {
	switch s {
	case VisitScheduled, VisitPending, VisitAccepted, VisitCompleted, VisitRejected, VisitCancelled:
		return true
	}
	return false
}

// Terminal reports whether a visit in status s admits no further transitions.
func (s VisitStatus) Terminal() bool {
	switch s {
	case VisitCompleted, VisitRejected, VisitCancelled:
		return true
	}
	return false
}

// Slot is a bookable time window owned by one doctor. Available flips to
// false when a visit is reserved against it and back to true if that visit
// is rejected.
type Slot struct {
	ID        int64
	DoctorID  int64
	StartTime time.Time
	EndTime   time.Time
	Available bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Visit struct {
	ID          int64
	ScheduledAt time.Time
	Status      VisitStatus
	PatientID   int64
	DoctorID    int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SlotDetail carries the doctor's display fields alongside the slot.
type SlotDetail struct {
	Slot
	DoctorFirstName string
	DoctorLastName  string
	DoctorSpecialty string
}

// VisitDetail carries both participants' display fields alongside the visit.
type VisitDetail struct {
	Visit
	PatientFirstName string
	PatientLastName  string
	DoctorFirstName  string
	DoctorLastName   string
	DoctorSpecialty  string
}

// VisitPatch is an administrative partial update. Present fields win over
// stored values, absent fields leave them untouched.
type VisitPatch struct {
	ScheduledAt *time.Time
	Status      *VisitStatus
	DoctorID    *int64
}

// VisitFilter narrows visit listings. Nil fields do not filter.
type VisitFilter struct {
	PatientID *int64
	DoctorID  *int64
	Status    *VisitStatus
}
