package survey

import (
	"context"
	"errors"
)

var (
	ErrSurveyNotFound = errors.New("survey not found")
	ErrInvalidID      = errors.New("survey id is not a valid object id")
)

// Repository contains all document-store interactions needed by the service.
type Repository interface {
	Insert(ctx context.Context, sv *Survey) error
	GetByID(ctx context.Context, id string) (*Survey, error)
	GetByVisitID(ctx context.Context, visitID int64) (*Survey, error)
	ListAll(ctx context.Context) ([]Survey, error)
	ListByPatient(ctx context.Context, patientID int64) ([]Survey, error)
	ListRatedByDoctor(ctx context.Context, doctorID int64) ([]Survey, error)
	Replace(ctx context.Context, sv *Survey) error
	Delete(ctx context.Context, id string) error
	// NextSurveyNo hands out the next human-facing sequence number.
	NextSurveyNo(ctx context.Context) (int64, error)
}
