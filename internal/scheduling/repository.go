package scheduling

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSlotNotFound    = errors.New("slot not found")
	ErrVisitNotFound   = errors.New("visit not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// InTx runs fn against a repository bound to one transaction. Returning
	// an error rolls the whole transaction back.
	InTx(ctx context.Context, fn func(Repository) error) error

	DoctorExists(ctx context.Context, id int64) (bool, error)
	PatientExists(ctx context.Context, id int64) (bool, error)

	CreateSlot(ctx context.Context, slot *Slot) error
	GetSlotByID(ctx context.Context, id int64) (*Slot, error)
	HasOverlappingSlot(ctx context.Context, doctorID int64, start, end time.Time) (bool, error)
	ListAvailableSlots(ctx context.Context, doctorID *int64, after time.Time) ([]SlotDetail, error)
	ListDoctorSlots(ctx context.Context, doctorID int64) ([]SlotDetail, error)
	// SetSlotAvailability flips the availability flag unconditionally and
	// reports whether the slot existed.
	SetSlotAvailability(ctx context.Context, id int64, available bool) (bool, error)
	// ClaimSlot marks an available slot unavailable; false means the slot
	// was already taken (or gone) at transaction time.
	ClaimSlot(ctx context.Context, id int64) (bool, error)
	// ReleaseSlotByTime re-opens the slot matching a rejected visit's
	// doctor and start instant, if it still exists.
	ReleaseSlotByTime(ctx context.Context, doctorID int64, start time.Time) error
	DeleteSlot(ctx context.Context, id int64) error

	CreateVisit(ctx context.Context, visit *Visit) error
	GetVisitByID(ctx context.Context, id int64) (*Visit, error)
	GetVisitDetail(ctx context.Context, id int64) (*VisitDetail, error)
	ListVisits(ctx context.Context, filter VisitFilter) ([]VisitDetail, error)
	// UpdateVisitStatus transitions from→to in one statement; ErrVisitNotFound
	// means the visit is gone or no longer in the expected status.
	UpdateVisitStatus(ctx context.Context, id int64, from, to VisitStatus) (*Visit, error)
	UpdateVisit(ctx context.Context, id int64, patch VisitPatch) error
	DeleteVisit(ctx context.Context, id int64) error
	// DoctorBusyAt reports whether the doctor already has a live visit at
	// the given instant. Cancelled and rejected visits do not count.
	DoctorBusyAt(ctx context.Context, doctorID int64, at time.Time) (bool, error)
}
