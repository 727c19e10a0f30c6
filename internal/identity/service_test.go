package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeIdentityRepo struct {
	users         map[uuid.UUID]*User
	doctors       map[int64]*Doctor
	patients      map[int64]*Patient
	doctorVisits  map[int64]bool
	nextDoctorID  int64
	nextPatientID int64
}

func newFakeIdentityRepo() *fakeIdentityRepo {
	return &fakeIdentityRepo{
		users:        map[uuid.UUID]*User{},
		doctors:      map[int64]*Doctor{},
		patients:     map[int64]*Patient{},
		doctorVisits: map[int64]bool{},
	}
}

func (f *fakeIdentityRepo) InTx(ctx context.Context, fn func(Repository) error) error {
	return fn(f)
}

func (f *fakeIdentityRepo) CreateUser(ctx context.Context, user *User) error {
	for _, u := range f.users {
		if u.Email == user.Email {
			return ErrEmailTaken
		}
	}
	user.ID = uuid.New()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeIdentityRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (f *fakeIdentityRepo) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	for _, user := range f.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeIdentityRepo) ListAccounts(ctx context.Context) ([]Account, error) {
	var out []Account
	for id := range f.users {
		acc, err := f.GetAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *acc)
	}
	return out, nil
}

func (f *fakeIdentityRepo) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	user, err := f.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	acc := &Account{User: *user}
	for _, d := range f.doctors {
		if d.UserID != nil && *d.UserID == id {
			cp := *d
			acc.Doctor = &cp
		}
	}
	for _, p := range f.patients {
		if p.UserID != nil && *p.UserID == id {
			cp := *p
			acc.Patient = &cp
		}
	}
	return acc, nil
}

func (f *fakeIdentityRepo) UpdateUser(ctx context.Context, id uuid.UUID, patch UserPatch) error {
	user, ok := f.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	return nil
}

func (f *fakeIdentityRepo) SetUserRole(ctx context.Context, id uuid.UUID, role Role) error {
	user, ok := f.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.Role = role
	return nil
}

func (f *fakeIdentityRepo) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeIdentityRepo) CreateDoctor(ctx context.Context, doctor *Doctor) error {
	f.nextDoctorID++
	doctor.ID = f.nextDoctorID
	cp := *doctor
	f.doctors[doctor.ID] = &cp
	return nil
}

func (f *fakeIdentityRepo) GetDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	doctor, ok := f.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *doctor
	return &cp, nil
}

func (f *fakeIdentityRepo) ListDoctors(ctx context.Context) ([]Doctor, error) {
	var out []Doctor
	for _, d := range f.doctors {
		out = append(out, *d)
	}
	return out, nil
}

func (f *fakeIdentityRepo) UpdateDoctor(ctx context.Context, id int64, patch DoctorPatch) error {
	doctor, ok := f.doctors[id]
	if !ok {
		return ErrDoctorNotFound
	}
	if patch.FirstName != nil {
		doctor.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		doctor.LastName = *patch.LastName
	}
	if patch.Specialty != nil {
		doctor.Specialty = *patch.Specialty
	}
	return nil
}

func (f *fakeIdentityRepo) DeleteDoctor(ctx context.Context, id int64) error {
	if _, ok := f.doctors[id]; !ok {
		return ErrDoctorNotFound
	}
	delete(f.doctors, id)
	return nil
}

func (f *fakeIdentityRepo) DoctorHasVisits(ctx context.Context, id int64) (bool, error) {
	return f.doctorVisits[id], nil
}

func (f *fakeIdentityRepo) CreatePatient(ctx context.Context, patient *Patient) error {
	for _, p := range f.patients {
		if p.NationalID == patient.NationalID {
			return ErrNationalIDTaken
		}
	}
	f.nextPatientID++
	patient.ID = f.nextPatientID
	cp := *patient
	f.patients[patient.ID] = &cp
	return nil
}

func (f *fakeIdentityRepo) GetPatientByID(ctx context.Context, id int64) (*Patient, error) {
	patient, ok := f.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *patient
	return &cp, nil
}

func (f *fakeIdentityRepo) ListPatients(ctx context.Context) ([]Patient, error) {
	var out []Patient
	for _, p := range f.patients {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeIdentityRepo) UpdatePatient(ctx context.Context, id int64, patch PatientPatch) error {
	patient, ok := f.patients[id]
	if !ok {
		return ErrPatientNotFound
	}
	if patch.FirstName != nil {
		patient.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		patient.LastName = *patch.LastName
	}
	return nil
}

func (f *fakeIdentityRepo) DeletePatient(ctx context.Context, id int64) error {
	if _, ok := f.patients[id]; !ok {
		return ErrPatientNotFound
	}
	delete(f.patients, id)
	return nil
}

func newTestService(repo Repository) *Service {
	return NewService(repo, zap.NewNop(), "test-secret", time.Hour)
}

func patientInput(email string) RegisterInput {
	return RegisterInput{
		Email:      email,
		Password:   "s3cret-pass",
		FirstName:  "Maria",
		LastName:   "Wis",
		Role:       RolePatient,
		NationalID: "90010112345",
	}
}

func TestRegisterPatientCreatesProfile(t *testing.T) {
	repo := newFakeIdentityRepo()
	svc := newTestService(repo)

	res, err := svc.Register(context.Background(), patientInput("maria@example.com"))
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.Equal(t, RolePatient, res.User.Role)
	assert.NotEqual(t, "s3cret-pass", res.User.PasswordHash, "password must be hashed")

	acc, err := svc.Account(context.Background(), res.User.ID)
	require.NoError(t, err)
	require.NotNil(t, acc.Patient)
	assert.Equal(t, "90010112345", acc.Patient.NationalID)
	assert.Nil(t, acc.Doctor)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(newFakeIdentityRepo())
	ctx := context.Background()

	in := patientInput("a@example.com")
	in.Role = Role("nurse")
	_, err := svc.Register(ctx, in)
	assert.ErrorIs(t, err, ErrInvalidRole)

	in = patientInput("a@example.com")
	in.NationalID = ""
	_, err = svc.Register(ctx, in)
	assert.ErrorIs(t, err, ErrNationalIDRequired)

	_, err = svc.Register(ctx, RegisterInput{
		Email: "d@example.com", Password: "x", Role: RoleDoctor,
	})
	assert.ErrorIs(t, err, ErrSpecialtyRequired)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(newFakeIdentityRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, patientInput("maria@example.com"))
	require.NoError(t, err)

	in := patientInput("maria@example.com")
	in.NationalID = "90010154321"
	_, err = svc.Register(ctx, in)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	svc := newTestService(newFakeIdentityRepo())
	ctx := context.Background()

	_, err := svc.Register(ctx, patientInput("maria@example.com"))
	require.NoError(t, err)

	res, err := svc.Login(ctx, "maria@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	_, err = svc.Login(ctx, "maria@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenRoundtrip(t *testing.T) {
	svc := newTestService(newFakeIdentityRepo())

	res, err := svc.Register(context.Background(), patientInput("maria@example.com"))
	require.NoError(t, err)

	claims, err := svc.VerifyToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID.String(), claims.Subject)
	assert.Equal(t, "maria@example.com", claims.Email)
	assert.Equal(t, string(RolePatient), claims.Role)

	_, err = svc.VerifyToken(res.Token + "tampered")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewService(newFakeIdentityRepo(), zap.NewNop(), "other-secret", time.Hour)
	_, err = other.VerifyToken(res.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestChangeRoleCreatesMissingProfile(t *testing.T) {
	repo := newFakeIdentityRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	res, err := svc.Register(ctx, patientInput("maria@example.com"))
	require.NoError(t, err)

	// promoting to doctor needs a specialty
	err = svc.ChangeRole(ctx, res.User.ID, RoleDoctor, "", "")
	assert.ErrorIs(t, err, ErrSpecialtyRequired)

	err = svc.ChangeRole(ctx, res.User.ID, RoleDoctor, "", "Cardiology")
	require.NoError(t, err)

	acc, err := svc.Account(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, RoleDoctor, acc.Role)
	require.NotNil(t, acc.Doctor)
	assert.Equal(t, "Cardiology", acc.Doctor.Specialty)
	assert.NotNil(t, acc.Patient, "old profile stays, visits may reference it")

	// switching back reuses the existing patient profile
	err = svc.ChangeRole(ctx, res.User.ID, RolePatient, "", "")
	require.NoError(t, err)

	acc, err = svc.Account(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, RolePatient, acc.Role)
}

func TestDeleteDoctorWithVisits(t *testing.T) {
	repo := newFakeIdentityRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	doctor, err := svc.CreateDoctor(ctx, "Anna", "Nowak", "Dermatology")
	require.NoError(t, err)

	repo.doctorVisits[doctor.ID] = true
	assert.ErrorIs(t, svc.DeleteDoctor(ctx, doctor.ID), ErrDoctorHasVisits)

	repo.doctorVisits[doctor.ID] = false
	assert.NoError(t, svc.DeleteDoctor(ctx, doctor.ID))
}
