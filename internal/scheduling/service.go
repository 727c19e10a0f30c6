package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	redisclient "github.com/clinicdesk/clinic-scheduling/internal/redis"
)

var (
	ErrInvalidInterval = errors.New("slot start must be before slot end")
	ErrSlotOverlap     = errors.New("slot overlaps an existing slot of the same doctor")
	ErrSlotUnavailable = errors.New("slot is already reserved")
	ErrSlotInPast      = errors.New("slot start is in the past")
	ErrSlotBooked      = errors.New("slot has a reservation and cannot be deleted")
	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")
	ErrDoctorBusy      = errors.New("doctor already has a visit at this instant")
	ErrInvalidStatus   = errors.New("unrecognized visit status")
)

// InvalidTransitionError reports a lifecycle move the state machine forbids.
type InvalidTransitionError struct {
	From VisitStatus
	To   VisitStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition visit from %q to %q", e.From, e.To)
}

// Service owns the visit state machine and the slot availability that moves
// with it. Reservation and rejection touch both records inside one
// transaction so visit status and slot availability cannot drift apart.
type Service struct {
	repo   Repository
	locker redisclient.Locker
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		logger: logger,
		now:    time.Now,
	}
}

// CreateSlot opens a single bookable window for a doctor. The interval must
// not overlap any of the doctor's existing slots.
func (s *Service) CreateSlot(ctx context.Context, doctorID int64, start, end time.Time) (*Slot, error) {
	if !start.Before(end) {
		return nil, ErrInvalidInterval
	}

	exists, err := s.repo.DoctorExists(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("check doctor: %w", err)
	}
	if !exists {
		return nil, ErrDoctorNotFound
	}

	var slot *Slot
	err = s.repo.InTx(ctx, func(r Repository) error {
		overlap, err := r.HasOverlappingSlot(ctx, doctorID, start, end)
		if err != nil {
			return fmt.Errorf("check overlap: %w", err)
		}
		if overlap {
			return ErrSlotOverlap
		}

		slot = &Slot{
			DoctorID:  doctorID,
			StartTime: start,
			EndTime:   end,
			Available: true,
		}
		return r.CreateSlot(ctx, slot)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("slot created",
		zap.Int64("slot_id", slot.ID),
		zap.Int64("doctor_id", doctorID),
		zap.Time("start", start),
	)

	return slot, nil
}

// CreateSlotsBatch slices [from, to) into consecutive windows of the given
// duration. Windows colliding with existing slots are skipped, the rest are
// created; only the created ones are returned.
func (s *Service) CreateSlotsBatch(ctx context.Context, doctorID int64, from, to time.Time, duration time.Duration) ([]Slot, error) {
	if duration <= 0 || !from.Before(to) {
		return nil, ErrInvalidInterval
	}

	exists, err := s.repo.DoctorExists(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("check doctor: %w", err)
	}
	if !exists {
		return nil, ErrDoctorNotFound
	}

	var created []Slot
	err = s.repo.InTx(ctx, func(r Repository) error {
		for cur := from; !cur.Add(duration).After(to); cur = cur.Add(duration) {
			end := cur.Add(duration)

			overlap, err := r.HasOverlappingSlot(ctx, doctorID, cur, end)
			if err != nil {
				return fmt.Errorf("check overlap: %w", err)
			}
			if overlap {
				continue
			}

			slot := Slot{
				DoctorID:  doctorID,
				StartTime: cur,
				EndTime:   end,
				Available: true,
			}
			if err := r.CreateSlot(ctx, &slot); err != nil {
				return fmt.Errorf("create slot: %w", err)
			}
			created = append(created, slot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("slot batch created",
		zap.Int64("doctor_id", doctorID),
		zap.Int("count", len(created)),
	)

	return created, nil
}

// DeleteSlot removes a slot that is still available. A reserved slot backs a
// live visit and stays.
func (s *Service) DeleteSlot(ctx context.Context, id int64) error {
	slot, err := s.repo.GetSlotByID(ctx, id)
	if err != nil {
		return err
	}
	if !slot.Available {
		return ErrSlotBooked
	}

	return s.repo.DeleteSlot(ctx, id)
}

// MarkSlotUnavailable and MarkSlotAvailable are idempotent flips of the
// availability flag.
func (s *Service) MarkSlotUnavailable(ctx context.Context, id int64) error {
	return s.setAvailability(ctx, id, false)
}

func (s *Service) MarkSlotAvailable(ctx context.Context, id int64) error {
	return s.setAvailability(ctx, id, true)
}

func (s *Service) setAvailability(ctx context.Context, id int64, available bool) error {
	found, err := s.repo.SetSlotAvailability(ctx, id, available)
	if err != nil {
		return fmt.Errorf("set slot availability: %w", err)
	}
	if !found {
		return ErrSlotNotFound
	}
	return nil
}

// ListAvailableSlots returns bookable future slots ascending by start,
// optionally narrowed to one doctor.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID *int64) ([]SlotDetail, error) {
	return s.repo.ListAvailableSlots(ctx, doctorID, s.now())
}

// ListDoctorSlots returns every slot of one doctor regardless of
// availability, for the doctor's own calendar view.
func (s *Service) ListDoctorSlots(ctx context.Context, doctorID int64) ([]SlotDetail, error) {
	return s.repo.ListDoctorSlots(ctx, doctorID)
}

// CreateVisit is the administrative creation path: the visit starts out
// Scheduled and no slot is involved, but the doctor must be free at that
// instant.
func (s *Service) CreateVisit(ctx context.Context, patientID, doctorID int64, at time.Time) (*VisitDetail, error) {
	ok, err := s.repo.PatientExists(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("check patient: %w", err)
	}
	if !ok {
		return nil, ErrPatientNotFound
	}

	ok, err = s.repo.DoctorExists(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("check doctor: %w", err)
	}
	if !ok {
		return nil, ErrDoctorNotFound
	}

	busy, err := s.repo.DoctorBusyAt(ctx, doctorID, at)
	if err != nil {
		return nil, fmt.Errorf("check doctor schedule: %w", err)
	}
	if busy {
		return nil, ErrDoctorBusy
	}

	visit := &Visit{
		ScheduledAt: at,
		Status:      VisitScheduled,
		PatientID:   patientID,
		DoctorID:    doctorID,
	}
	if err := s.repo.CreateVisit(ctx, visit); err != nil {
		return nil, fmt.Errorf("create visit: %w", err)
	}

	s.logger.Info("visit created",
		zap.Int64("visit_id", visit.ID),
		zap.Int64("patient_id", patientID),
		zap.Int64("doctor_id", doctorID),
	)

	return s.repo.GetVisitDetail(ctx, visit.ID)
}

// ReserveVisit books an available future slot for a patient. The slot flips
// to unavailable and the visit starts out Pending, both inside one
// transaction; the availability flag is re-checked at transaction time so
// two concurrent reservations resolve to exactly one winner. The Redis lock
// in front only short-circuits the obvious races.
func (s *Service) ReserveVisit(ctx context.Context, patientID, slotID int64) (*VisitDetail, error) {
	ok, err := s.repo.PatientExists(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("check patient: %w", err)
	}
	if !ok {
		return nil, ErrPatientNotFound
	}

	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if !slot.Available {
		return nil, ErrSlotUnavailable
	}
	if !slot.StartTime.After(s.now()) {
		return nil, ErrSlotInPast
	}

	var visit *Visit

	err = s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(r Repository) error {
			claimed, err := r.ClaimSlot(lockCtx, slotID)
			if err != nil {
				return fmt.Errorf("claim slot: %w", err)
			}
			if !claimed {
				return ErrSlotUnavailable
			}

			visit = &Visit{
				ScheduledAt: slot.StartTime,
				Status:      VisitPending,
				PatientID:   patientID,
				DoctorID:    slot.DoctorID,
			}
			if err := r.CreateVisit(lockCtx, visit); err != nil {
				return fmt.Errorf("create pending visit: %w", err)
			}

			return nil
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.logger.Info("slot reserved",
		zap.Int64("visit_id", visit.ID),
		zap.Int64("slot_id", slotID),
		zap.Int64("patient_id", patientID),
	)

	return s.repo.GetVisitDetail(ctx, visit.ID)
}

// AcceptVisit moves a pending visit to Accepted.
func (s *Service) AcceptVisit(ctx context.Context, id int64) (*Visit, error) {
	return s.transition(ctx, id, VisitPending, VisitAccepted)
}

// CompleteVisit moves an accepted visit to Completed, the terminal status
// that makes the visit surveyable.
func (s *Service) CompleteVisit(ctx context.Context, id int64) (*Visit, error) {
	return s.transition(ctx, id, VisitAccepted, VisitCompleted)
}

func (s *Service) transition(ctx context.Context, id int64, from, to VisitStatus) (*Visit, error) {
	visit, err := s.repo.GetVisitByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if visit.Status != from {
		return nil, &InvalidTransitionError{From: visit.Status, To: to}
	}

	updated, err := s.repo.UpdateVisitStatus(ctx, id, from, to)
	if err != nil {
		if errors.Is(err, ErrVisitNotFound) {
			// lost the race: someone else moved it first
			return nil, &InvalidTransitionError{From: visit.Status, To: to}
		}
		return nil, fmt.Errorf("update visit status: %w", err)
	}

	s.logger.Info("visit transitioned",
		zap.Int64("visit_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	return updated, nil
}

// RejectVisit moves a pending visit to Rejected and re-opens the slot it was
// reserved against, in one transaction.
func (s *Service) RejectVisit(ctx context.Context, id int64) (*Visit, error) {
	visit, err := s.repo.GetVisitByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if visit.Status != VisitPending {
		return nil, &InvalidTransitionError{From: visit.Status, To: VisitRejected}
	}

	var updated *Visit
	err = s.repo.InTx(ctx, func(r Repository) error {
		updated, err = r.UpdateVisitStatus(ctx, id, VisitPending, VisitRejected)
		if err != nil {
			if errors.Is(err, ErrVisitNotFound) {
				return &InvalidTransitionError{From: visit.Status, To: VisitRejected}
			}
			return fmt.Errorf("update visit status: %w", err)
		}

		if err := r.ReleaseSlotByTime(ctx, visit.DoctorID, visit.ScheduledAt); err != nil {
			return fmt.Errorf("release slot: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("visit rejected",
		zap.Int64("visit_id", id),
		zap.Int64("doctor_id", visit.DoctorID),
	)

	return updated, nil
}

// CancelVisit cancels any visit that has not reached a terminal status. The
// slot, if any, stays closed.
func (s *Service) CancelVisit(ctx context.Context, id int64) (*Visit, error) {
	visit, err := s.repo.GetVisitByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if visit.Status.Terminal() {
		return nil, &InvalidTransitionError{From: visit.Status, To: VisitCancelled}
	}

	updated, err := s.repo.UpdateVisitStatus(ctx, id, visit.Status, VisitCancelled)
	if err != nil {
		if errors.Is(err, ErrVisitNotFound) {
			return nil, &InvalidTransitionError{From: visit.Status, To: VisitCancelled}
		}
		return nil, fmt.Errorf("update visit status: %w", err)
	}

	s.logger.Info("visit cancelled", zap.Int64("visit_id", id))

	return updated, nil
}

func (s *Service) GetVisit(ctx context.Context, id int64) (*VisitDetail, error) {
	return s.repo.GetVisitDetail(ctx, id)
}

func (s *Service) ListVisits(ctx context.Context, filter VisitFilter) ([]VisitDetail, error) {
	return s.repo.ListVisits(ctx, filter)
}

// ListPendingByDoctor returns the visits awaiting the doctor's decision.
func (s *Service) ListPendingByDoctor(ctx context.Context, doctorID int64) ([]VisitDetail, error) {
	pending := VisitPending
	return s.repo.ListVisits(ctx, VisitFilter{DoctorID: &doctorID, Status: &pending})
}

// UpdateVisit is the administrative patch: present fields replace stored
// ones. Status must come from the recognized set and a new doctor must
// exist.
func (s *Service) UpdateVisit(ctx context.Context, id int64, patch VisitPatch) error {
	if patch.Status != nil && !patch.Status.Valid() {
		return ErrInvalidStatus
	}

	if patch.DoctorID != nil {
		ok, err := s.repo.DoctorExists(ctx, *patch.DoctorID)
		if err != nil {
			return fmt.Errorf("check doctor: %w", err)
		}
		if !ok {
			return ErrDoctorNotFound
		}
	}

	if err := s.repo.UpdateVisit(ctx, id, patch); err != nil {
		return err
	}

	s.logger.Info("visit updated", zap.Int64("visit_id", id))
	return nil
}

// DeleteVisit removes the record outright, administrative use only.
func (s *Service) DeleteVisit(ctx context.Context, id int64) error {
	if err := s.repo.DeleteVisit(ctx, id); err != nil {
		return err
	}

	s.logger.Info("visit deleted", zap.Int64("visit_id", id))
	return nil
}
