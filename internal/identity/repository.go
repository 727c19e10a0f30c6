package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrEmailTaken      = errors.New("email is already registered")
	ErrNationalIDTaken = errors.New("national id is already registered")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	InTx(ctx context.Context, fn func(Repository) error) error

	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	UpdateUser(ctx context.Context, id uuid.UUID, patch UserPatch) error
	SetUserRole(ctx context.Context, id uuid.UUID, role Role) error
	DeleteUser(ctx context.Context, id uuid.UUID) error

	CreateDoctor(ctx context.Context, doctor *Doctor) error
	GetDoctorByID(ctx context.Context, id int64) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	UpdateDoctor(ctx context.Context, id int64, patch DoctorPatch) error
	DeleteDoctor(ctx context.Context, id int64) error
	DoctorHasVisits(ctx context.Context, id int64) (bool, error)

	CreatePatient(ctx context.Context, patient *Patient) error
	GetPatientByID(ctx context.Context, id int64) (*Patient, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	UpdatePatient(ctx context.Context, id int64, patch PatientPatch) error
	DeletePatient(ctx context.Context, id int64) error
}
