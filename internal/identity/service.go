package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidRole        = errors.New("unrecognized role")
	ErrNationalIDRequired = errors.New("national id is required for patients")
	ErrSpecialtyRequired  = errors.New("specialty is required for doctors")
	ErrDoctorHasVisits    = errors.New("doctor still has visits and cannot be deleted")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Claims is the JWT payload carried by every authenticated request.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type RegisterInput struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	Role       Role
	NationalID string // patients
	Specialty  string // doctors
}

type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

type Service struct {
	repo      Repository
	logger    *zap.Logger
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewService(repo Repository, logger *zap.Logger, jwtSecret string, tokenTTL time.Duration) *Service {
	return &Service{
		repo:      repo,
		logger:    logger,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// Register creates the login and its role profile in one transaction, so a
// patient account never exists without its patient record.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if !in.Role.Valid() {
		return nil, ErrInvalidRole
	}
	if in.Role == RolePatient && in.NationalID == "" {
		return nil, ErrNationalIDRequired
	}
	if in.Role == RoleDoctor && in.Specialty == "" {
		return nil, ErrSpecialtyRequired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         in.Role,
	}

	err = s.repo.InTx(ctx, func(r Repository) error {
		if err := r.CreateUser(ctx, user); err != nil {
			return err
		}
		return createProfile(ctx, r, user, in.NationalID, in.Specialty)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)),
	)

	return s.issueToken(user)
}

func createProfile(ctx context.Context, r Repository, user *User, nationalID, specialty string) error {
	switch user.Role {
	case RolePatient:
		return r.CreatePatient(ctx, &Patient{
			FirstName:  user.FirstName,
			LastName:   user.LastName,
			NationalID: nationalID,
			UserID:     &user.ID,
		})
	case RoleDoctor:
		return r.CreateDoctor(ctx, &Doctor{
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Specialty: specialty,
			UserID:    &user.ID,
		})
	}
	return nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(user)
}

func (s *Service) issueToken(user *User) (*AuthResult, error) {
	expiresAt := time.Now().Add(s.tokenTTL)

	claims := Claims{
		Email: user.Email,
		Role:  string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// VerifyToken parses and validates an access token.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *Service) Account(ctx context.Context, userID uuid.UUID) (*Account, error) {
	return s.repo.GetAccount(ctx, userID)
}

// Admin user management

func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}

// CreateUserByAdmin registers a user without logging them in.
func (s *Service) CreateUserByAdmin(ctx context.Context, in RegisterInput) (*Account, error) {
	result, err := s.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.repo.GetAccount(ctx, result.User.ID)
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, patch UserPatch) error {
	return s.repo.UpdateUser(ctx, id, patch)
}

// ChangeRole switches the user's role and creates the missing profile row.
// The previous profile is kept: visits and surveys may still reference it.
func (s *Service) ChangeRole(ctx context.Context, id uuid.UUID, role Role, nationalID, specialty string) error {
	if !role.Valid() {
		return ErrInvalidRole
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == role {
		return nil
	}

	err = s.repo.InTx(ctx, func(r Repository) error {
		if err := r.SetUserRole(ctx, id, role); err != nil {
			return err
		}

		acc, err := r.GetAccount(ctx, id)
		if err != nil {
			return err
		}

		switch role {
		case RolePatient:
			if acc.Patient != nil {
				return nil
			}
			if nationalID == "" {
				return ErrNationalIDRequired
			}
		case RoleDoctor:
			if acc.Doctor != nil {
				return nil
			}
			if specialty == "" {
				return ErrSpecialtyRequired
			}
		default:
			return nil
		}

		user.Role = role
		return createProfile(ctx, r, user, nationalID, specialty)
	})
	if err != nil {
		return err
	}

	s.logger.Info("user role changed",
		zap.String("user_id", id.String()),
		zap.String("role", string(role)),
	)
	return nil
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteUser(ctx, id)
}

// Doctor and patient directories

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	return s.repo.ListDoctors(ctx)
}

func (s *Service) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	return s.repo.GetDoctorByID(ctx, id)
}

func (s *Service) CreateDoctor(ctx context.Context, firstName, lastName, specialty string) (*Doctor, error) {
	doctor := &Doctor{FirstName: firstName, LastName: lastName, Specialty: specialty}
	if err := s.repo.CreateDoctor(ctx, doctor); err != nil {
		return nil, err
	}
	return doctor, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, id int64, patch DoctorPatch) error {
	return s.repo.UpdateDoctor(ctx, id, patch)
}

func (s *Service) DeleteDoctor(ctx context.Context, id int64) error {
	hasVisits, err := s.repo.DoctorHasVisits(ctx, id)
	if err != nil {
		return fmt.Errorf("check doctor visits: %w", err)
	}
	if hasVisits {
		return ErrDoctorHasVisits
	}
	return s.repo.DeleteDoctor(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context) ([]Patient, error) {
	return s.repo.ListPatients(ctx)
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	return s.repo.GetPatientByID(ctx, id)
}

func (s *Service) CreatePatient(ctx context.Context, firstName, lastName, nationalID string) (*Patient, error) {
	patient := &Patient{FirstName: firstName, LastName: lastName, NationalID: nationalID}
	if err := s.repo.CreatePatient(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) UpdatePatient(ctx context.Context, id int64, patch PatientPatch) error {
	return s.repo.UpdatePatient(ctx, id, patch)
}

func (s *Service) DeletePatient(ctx context.Context, id int64) error {
	return s.repo.DeletePatient(ctx, id)
}
