package survey

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

var (
	ErrVisitNotFound     = errors.New("visit not found")
	ErrVisitNotCompleted = errors.New("only completed visits can be rated")
	ErrVisitAlreadyRated = errors.New("visit already has a survey")
	ErrRatingOutOfRange  = errors.New("rating must be between 1 and 5")
)

// Visit is the slice of visit state the gate needs: who was seen by whom,
// when, and whether the visit actually happened.
type Visit struct {
	ID          int64
	DoctorID    int64
	DoctorName  string
	ScheduledAt time.Time
	Completed   bool
}

// VisitSource resolves visit ids against the store of record. It must
// return ErrVisitNotFound for unknown ids.
type VisitSource interface {
	VisitByID(ctx context.Context, id int64) (*Visit, error)
}

// RatingSubmission is one post-visit rating. Anonymous submissions drop the
// patient fields before the document is stored.
type RatingSubmission struct {
	VisitID    int64
	PatientID  *int64
	NationalID *string
	Anonymous  bool
	Rating     int
	Answers    []Answer
	Notes      *string
}

// GeneralSubmission is a free-form survey not tied to any visit.
type GeneralSubmission struct {
	PatientID  *int64
	NationalID *string
	Answers    []Answer
	Notes      *string
}

type Service struct {
	repo   Repository
	visits VisitSource
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, visits VisitSource, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		visits: visits,
		logger: logger,
		now:    time.Now,
	}
}

// Eligible reports whether a survey may still be submitted for the visit:
// the visit exists, is completed, and has no survey yet.
func (s *Service) Eligible(ctx context.Context, visitID int64) (*Eligibility, error) {
	visit, err := s.visits.VisitByID(ctx, visitID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByVisitID(ctx, visitID)
	if err != nil && !errors.Is(err, ErrSurveyNotFound) {
		return nil, fmt.Errorf("look up survey: %w", err)
	}

	el := &Eligibility{VisitID: visitID}
	if existing != nil {
		el.Rated = true
		el.Rating = existing.Rating
	}
	el.Eligible = visit.Completed && existing == nil

	return el, nil
}

// SubmitRating stores a post-visit rating survey. One survey per visit; the
// visit must be completed; rating stays within [1, 5].
func (s *Service) SubmitRating(ctx context.Context, in RatingSubmission) (*Survey, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, ErrRatingOutOfRange
	}

	visit, err := s.visits.VisitByID(ctx, in.VisitID)
	if err != nil {
		return nil, err
	}
	if !visit.Completed {
		return nil, ErrVisitNotCompleted
	}

	_, err = s.repo.GetByVisitID(ctx, in.VisitID)
	if err == nil {
		return nil, ErrVisitAlreadyRated
	}
	if !errors.Is(err, ErrSurveyNotFound) {
		return nil, fmt.Errorf("look up survey: %w", err)
	}

	no, err := s.repo.NextSurveyNo(ctx)
	if err != nil {
		return nil, fmt.Errorf("next survey number: %w", err)
	}

	now := s.now()
	rating := in.Rating
	visitID := in.VisitID
	doctorID := visit.DoctorID

	sv := &Survey{
		SurveyNo:    no,
		VisitID:     &visitID,
		DoctorID:    &doctorID,
		Anonymous:   in.Anonymous,
		CompletedAt: now,
		Type:        TypeVisitRating,
		Rating:      &rating,
		Answers:     in.Answers,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if sv.Answers == nil {
		sv.Answers = []Answer{}
	}

	if in.Anonymous {
		// no patient identity on the document; keep enough context for
		// the clinic to read the feedback
		doctorName := visit.DoctorName
		visitDate := visit.ScheduledAt
		sv.DoctorName = &doctorName
		sv.VisitDate = &visitDate
	} else {
		sv.PatientID = in.PatientID
		sv.NationalID = in.NationalID
	}

	if err := s.repo.Insert(ctx, sv); err != nil {
		return nil, err
	}

	s.logger.Info("visit rated",
		zap.Int64("visit_id", in.VisitID),
		zap.Int("rating", in.Rating),
		zap.Bool("anonymous", in.Anonymous),
	)

	return sv, nil
}

// SubmitGeneral stores a survey with no visit reference.
func (s *Service) SubmitGeneral(ctx context.Context, in GeneralSubmission) (*Survey, error) {
	no, err := s.repo.NextSurveyNo(ctx)
	if err != nil {
		return nil, fmt.Errorf("next survey number: %w", err)
	}

	now := s.now()
	sv := &Survey{
		SurveyNo:    no,
		PatientID:   in.PatientID,
		NationalID:  in.NationalID,
		CompletedAt: now,
		Type:        TypeGeneral,
		Answers:     in.Answers,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if sv.Answers == nil {
		sv.Answers = []Answer{}
	}

	if err := s.repo.Insert(ctx, sv); err != nil {
		return nil, err
	}

	return sv, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Survey, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByVisit(ctx context.Context, visitID int64) (*Survey, error) {
	return s.repo.GetByVisitID(ctx, visitID)
}

func (s *Service) List(ctx context.Context) ([]Survey, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]Survey, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// Update patches the editable fields of a survey.
func (s *Service) Update(ctx context.Context, id string, patch SurveyPatch) error {
	sv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if patch.Answers != nil {
		sv.Answers = *patch.Answers
	}
	if patch.Notes != nil {
		sv.Notes = patch.Notes
	}
	sv.UpdatedAt = s.now()

	return s.repo.Replace(ctx, sv)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// DoctorRating aggregates every rated survey referencing the doctor's
// visits. The mean is rounded to two decimals; no ratings means zero.
func (s *Service) DoctorRating(ctx context.Context, doctorID int64) (*DoctorRating, error) {
	surveys, err := s.repo.ListRatedByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	result := &DoctorRating{
		DoctorID: doctorID,
		Count:    len(surveys),
		Surveys:  surveys,
	}
	if result.Surveys == nil {
		result.Surveys = []Survey{}
	}

	if len(surveys) > 0 {
		var sum int
		for _, sv := range surveys {
			if sv.Rating != nil {
				sum += *sv.Rating
			}
		}
		avg := float64(sum) / float64(len(surveys))
		result.AverageRating = math.Round(avg*100) / 100
	}

	return result, nil
}
