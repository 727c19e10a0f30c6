package identity

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Doctor and Patient are the clinic-facing profiles. Either may exist
// without a login (legacy records), hence the optional user link.
type Doctor struct {
	ID        int64
	FirstName string
	LastName  string
	Specialty string
	UserID    *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID         int64
	FirstName  string
	LastName   string
	NationalID string
	UserID     *uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Account is a user together with whichever profile their role links to.
type Account struct {
	User
	Doctor  *Doctor
	Patient *Patient
}

// Patches: present fields replace stored values, absent fields are kept.

type UserPatch struct {
	Email     *string
	FirstName *string
	LastName  *string
}

type DoctorPatch struct {
	FirstName *string
	LastName  *string
	Specialty *string
}

type PatientPatch struct {
	FirstName *string
	LastName  *string
}
