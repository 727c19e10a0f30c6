package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so every query
// method works inside and outside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db   Querier
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: pool, pool: pool}
}

func (r *PgRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&PgRepository{db: tx, pool: r.pool})
	})
}

const uniqueViolation = "23505"

// doctorInstantIndex backs the one-live-visit-per-(doctor, instant)
// invariant; busy-checks run first, the index catches whatever races past
// them.
const doctorInstantIndex = "idx_visits_doctor_instant"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

// Helpers

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.StartTime,
		&s.EndTime,
		&s.Available,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit

	err := row.Scan(
		&v.ID,
		&v.ScheduledAt,
		&v.Status,
		&v.PatientID,
		&v.DoctorID,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVisitNotFound
		}
		return nil, err
	}

	return &v, nil
}

func scanVisitDetail(row pgx.Row) (*VisitDetail, error) {
	var d VisitDetail

	err := row.Scan(
		&d.ID,
		&d.ScheduledAt,
		&d.Status,
		&d.PatientID,
		&d.DoctorID,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.PatientFirstName,
		&d.PatientLastName,
		&d.DoctorFirstName,
		&d.DoctorLastName,
		&d.DoctorSpecialty,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVisitNotFound
		}
		return nil, err
	}

	return &d, nil
}

// Interface methods

func (r *PgRepository) DoctorExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *PgRepository) PatientExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *PgRepository) CreateSlot(ctx context.Context, slot *Slot) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO doctor_slots (doctor_id, start_time, end_time, available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, created_at, updated_at
	`, slot.DoctorID, slot.StartTime, slot.EndTime, slot.Available)

	return row.Scan(&slot.ID, &slot.CreatedAt, &slot.UpdatedAt)
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id int64) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, doctor_id, start_time, end_time, available, created_at, updated_at
		FROM doctor_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) HasOverlappingSlot(ctx context.Context, doctorID int64, start, end time.Time) (bool, error) {
	// half-open intervals: [start, end) overlaps [s, e) iff start < e AND end > s
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM doctor_slots
			WHERE doctor_id = $1 AND $2 < end_time AND $3 > start_time
		)
	`, doctorID, start, end).Scan(&exists)
	return exists, err
}

func (r *PgRepository) ListAvailableSlots(ctx context.Context, doctorID *int64, after time.Time) ([]SlotDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.doctor_id, s.start_time, s.end_time, s.available, s.created_at, s.updated_at,
		       d.first_name, d.last_name, d.specialty
		FROM doctor_slots s
		JOIN doctors d ON d.id = s.doctor_id
		WHERE s.available
		  AND s.start_time > $1
		  AND ($2::bigint IS NULL OR s.doctor_id = $2)
		ORDER BY s.start_time
	`, after, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlotDetails(rows)
}

func (r *PgRepository) ListDoctorSlots(ctx context.Context, doctorID int64) ([]SlotDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.doctor_id, s.start_time, s.end_time, s.available, s.created_at, s.updated_at,
		       d.first_name, d.last_name, d.specialty
		FROM doctor_slots s
		JOIN doctors d ON d.id = s.doctor_id
		WHERE s.doctor_id = $1
		ORDER BY s.start_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSlotDetails(rows)
}

func collectSlotDetails(rows pgx.Rows) ([]SlotDetail, error) {
	var result []SlotDetail
	for rows.Next() {
		var d SlotDetail
		err := rows.Scan(
			&d.ID,
			&d.DoctorID,
			&d.StartTime,
			&d.EndTime,
			&d.Available,
			&d.CreatedAt,
			&d.UpdatedAt,
			&d.DoctorFirstName,
			&d.DoctorLastName,
			&d.DoctorSpecialty,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) SetSlotAvailability(ctx context.Context, id int64, available bool) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE doctor_slots
		SET available = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, available)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRepository) ClaimSlot(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE doctor_slots
		SET available = false,
		    updated_at = now()
		WHERE id = $1
		  AND available
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRepository) ReleaseSlotByTime(ctx context.Context, doctorID int64, start time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE doctor_slots
		SET available = true,
		    updated_at = now()
		WHERE doctor_id = $1
		  AND start_time = $2
	`, doctorID, start)
	return err
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM doctor_slots WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) CreateVisit(ctx context.Context, visit *Visit) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO visits (scheduled_at, status, patient_id, doctor_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, created_at, updated_at
	`, visit.ScheduledAt, visit.Status, visit.PatientID, visit.DoctorID)

	if err := row.Scan(&visit.ID, &visit.CreatedAt, &visit.UpdatedAt); err != nil {
		if isUniqueViolation(err, doctorInstantIndex) {
			return ErrDoctorBusy
		}
		return err
	}
	return nil
}

func (r *PgRepository) GetVisitByID(ctx context.Context, id int64) (*Visit, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, scheduled_at, status, patient_id, doctor_id, created_at, updated_at
		FROM visits
		WHERE id = $1
	`, id)
	return scanVisit(row)
}

func (r *PgRepository) GetVisitDetail(ctx context.Context, id int64) (*VisitDetail, error) {
	row := r.db.QueryRow(ctx, `
		SELECT v.id, v.scheduled_at, v.status, v.patient_id, v.doctor_id, v.created_at, v.updated_at,
		       p.first_name, p.last_name,
		       d.first_name, d.last_name, d.specialty
		FROM visits v
		JOIN patients p ON p.id = v.patient_id
		JOIN doctors d ON d.id = v.doctor_id
		WHERE v.id = $1
	`, id)
	return scanVisitDetail(row)
}

func (r *PgRepository) ListVisits(ctx context.Context, filter VisitFilter) ([]VisitDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT v.id, v.scheduled_at, v.status, v.patient_id, v.doctor_id, v.created_at, v.updated_at,
		       p.first_name, p.last_name,
		       d.first_name, d.last_name, d.specialty
		FROM visits v
		JOIN patients p ON p.id = v.patient_id
		JOIN doctors d ON d.id = v.doctor_id
		WHERE ($1::bigint IS NULL OR v.patient_id = $1)
		  AND ($2::bigint IS NULL OR v.doctor_id = $2)
		  AND ($3::text IS NULL OR v.status = $3)
		ORDER BY v.scheduled_at
	`, filter.PatientID, filter.DoctorID, filter.Status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []VisitDetail
	for rows.Next() {
		d, err := scanVisitDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) UpdateVisitStatus(ctx context.Context, id int64, from, to VisitStatus) (*Visit, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE visits
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, scheduled_at, status, patient_id, doctor_id, created_at, updated_at
	`, id, to, from)

	return scanVisit(row)
}

func (r *PgRepository) UpdateVisit(ctx context.Context, id int64, patch VisitPatch) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE visits
		SET scheduled_at = COALESCE($2, scheduled_at),
		    status = COALESCE($3, status),
		    doctor_id = COALESCE($4, doctor_id),
		    updated_at = now()
		WHERE id = $1
	`, id, patch.ScheduledAt, patch.Status, patch.DoctorID)
	if err != nil {
		if isUniqueViolation(err, doctorInstantIndex) {
			return ErrDoctorBusy
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVisitNotFound
	}
	return nil
}

func (r *PgRepository) DeleteVisit(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM visits WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVisitNotFound
	}
	return nil
}

func (r *PgRepository) DoctorBusyAt(ctx context.Context, doctorID int64, at time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM visits
			WHERE doctor_id = $1
			  AND scheduled_at = $2
			  AND status NOT IN ('cancelled', 'rejected')
		)
	`, doctorID, at).Scan(&exists)
	return exists, err
}
