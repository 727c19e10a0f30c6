package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx.
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

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

// Helpers

func scanUser(row pgx.Row) (*User, error) {
	var u User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &u, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.FirstName,
		&d.LastName,
		&d.Specialty,
		&d.UserID,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.NationalID,
		&p.UserID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

// Users

func (r *PgRepository) CreateUser(ctx context.Context, user *User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING created_at, updated_at
	`, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName, user.Role)

	err := row.Scan(&user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err, "users_email_key") {
		return ErrEmailTaken
	}
	return err
}

func (r *PgRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, email, password_hash, first_name, last_name, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *PgRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, email, password_hash, first_name, last_name, role, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
	return scanUser(row)
}

func (r *PgRepository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name, u.role, u.created_at, u.updated_at,
		       p.id, p.national_id,
		       d.id, d.specialty
		FROM users u
		LEFT JOIN patients p ON p.user_id = u.id
		LEFT JOIN doctors d ON d.user_id = u.id
		ORDER BY u.last_name, u.first_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Account
	for rows.Next() {
		var (
			acc        Account
			patientID  *int64
			nationalID *string
			doctorID   *int64
			specialty  *string
		)
		err := rows.Scan(
			&acc.ID,
			&acc.Email,
			&acc.PasswordHash,
			&acc.FirstName,
			&acc.LastName,
			&acc.Role,
			&acc.CreatedAt,
			&acc.UpdatedAt,
			&patientID,
			&nationalID,
			&doctorID,
			&specialty,
		)
		if err != nil {
			return nil, err
		}

		if patientID != nil {
			acc.Patient = &Patient{ID: *patientID, NationalID: *nationalID, UserID: &acc.User.ID}
		}
		if doctorID != nil {
			acc.Doctor = &Doctor{ID: *doctorID, Specialty: *specialty, UserID: &acc.User.ID}
		}
		result = append(result, acc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	user, err := r.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	acc := &Account{User: *user}

	row := r.db.QueryRow(ctx, `
		SELECT id, first_name, last_name, national_id, user_id, created_at, updated_at
		FROM patients
		WHERE user_id = $1
	`, id)
	patient, err := scanPatient(row)
	if err != nil && !errors.Is(err, ErrPatientNotFound) {
		return nil, err
	}
	acc.Patient = patient

	row = r.db.QueryRow(ctx, `
		SELECT id, first_name, last_name, specialty, user_id, created_at, updated_at
		FROM doctors
		WHERE user_id = $1
	`, id)
	doctor, err := scanDoctor(row)
	if err != nil && !errors.Is(err, ErrDoctorNotFound) {
		return nil, err
	}
	acc.Doctor = doctor

	return acc, nil
}

func (r *PgRepository) UpdateUser(ctx context.Context, id uuid.UUID, patch UserPatch) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET email = COALESCE($2, email),
		    first_name = COALESCE($3, first_name),
		    last_name = COALESCE($4, last_name),
		    updated_at = now()
		WHERE id = $1
	`, id, patch.Email, patch.FirstName, patch.LastName)
	if isUniqueViolation(err, "users_email_key") {
		return ErrEmailTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PgRepository) SetUserRole(ctx context.Context, id uuid.UUID, role Role) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET role = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PgRepository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Doctors

func (r *PgRepository) CreateDoctor(ctx context.Context, doctor *Doctor) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO doctors (first_name, last_name, specialty, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, created_at, updated_at
	`, doctor.FirstName, doctor.LastName, doctor.Specialty, doctor.UserID)

	return row.Scan(&doctor.ID, &doctor.CreatedAt, &doctor.UpdatedAt)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, first_name, last_name, specialty, user_id, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, first_name, last_name, specialty, user_id, created_at, updated_at
		FROM doctors
		ORDER BY last_name, first_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
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

func (r *PgRepository) UpdateDoctor(ctx context.Context, id int64, patch DoctorPatch) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE doctors
		SET first_name = COALESCE($2, first_name),
		    last_name = COALESCE($3, last_name),
		    specialty = COALESCE($4, specialty),
		    updated_at = now()
		WHERE id = $1
	`, id, patch.FirstName, patch.LastName, patch.Specialty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *PgRepository) DeleteDoctor(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *PgRepository) DoctorHasVisits(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM visits WHERE doctor_id = $1)`, id).Scan(&exists)
	return exists, err
}

// Patients

func (r *PgRepository) CreatePatient(ctx context.Context, patient *Patient) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO patients (first_name, last_name, national_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, created_at, updated_at
	`, patient.FirstName, patient.LastName, patient.NationalID, patient.UserID)

	err := row.Scan(&patient.ID, &patient.CreatedAt, &patient.UpdatedAt)
	if isUniqueViolation(err, "patients_national_id_key") {
		return ErrNationalIDTaken
	}
	return err
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id int64) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, first_name, last_name, national_id, user_id, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, first_name, last_name, national_id, user_id, created_at, updated_at
		FROM patients
		ORDER BY last_name, first_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) UpdatePatient(ctx context.Context, id int64, patch PatientPatch) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE patients
		SET first_name = COALESCE($2, first_name),
		    last_name = COALESCE($3, last_name),
		    updated_at = now()
		WHERE id = $1
	`, id, patch.FirstName, patch.LastName)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *PgRepository) DeletePatient(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}
