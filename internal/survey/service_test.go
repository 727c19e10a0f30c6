package survey

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeSurveyRepo struct {
	docs map[string]*Survey
}

func newFakeSurveyRepo() *fakeSurveyRepo {
	return &fakeSurveyRepo{docs: map[string]*Survey{}}
}

func (f *fakeSurveyRepo) Insert(ctx context.Context, sv *Survey) error {
	sv.ID = primitive.NewObjectID()
	cp := *sv
	f.docs[sv.ID.Hex()] = &cp
	return nil
}

func (f *fakeSurveyRepo) GetByID(ctx context.Context, id string) (*Survey, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, ErrInvalidID
	}
	sv, ok := f.docs[id]
	if !ok {
		return nil, ErrSurveyNotFound
	}
	cp := *sv
	return &cp, nil
}

func (f *fakeSurveyRepo) GetByVisitID(ctx context.Context, visitID int64) (*Survey, error) {
	for _, sv := range f.docs {
		if sv.VisitID != nil && *sv.VisitID == visitID {
			cp := *sv
			return &cp, nil
		}
	}
	return nil, ErrSurveyNotFound
}

func (f *fakeSurveyRepo) ListAll(ctx context.Context) ([]Survey, error) {
	var out []Survey
	for _, sv := range f.docs {
		out = append(out, *sv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	return out, nil
}

func (f *fakeSurveyRepo) ListByPatient(ctx context.Context, patientID int64) ([]Survey, error) {
	var out []Survey
	for _, sv := range f.docs {
		if sv.PatientID != nil && *sv.PatientID == patientID {
			out = append(out, *sv)
		}
	}
	return out, nil
}

func (f *fakeSurveyRepo) ListRatedByDoctor(ctx context.Context, doctorID int64) ([]Survey, error) {
	var out []Survey
	for _, sv := range f.docs {
		if sv.Type == TypeVisitRating && sv.DoctorID != nil && *sv.DoctorID == doctorID {
			out = append(out, *sv)
		}
	}
	return out, nil
}

func (f *fakeSurveyRepo) Replace(ctx context.Context, sv *Survey) error {
	if _, ok := f.docs[sv.ID.Hex()]; !ok {
		return ErrSurveyNotFound
	}
	cp := *sv
	f.docs[sv.ID.Hex()] = &cp
	return nil
}

func (f *fakeSurveyRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.docs[id]; !ok {
		return ErrSurveyNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeSurveyRepo) NextSurveyNo(ctx context.Context) (int64, error) {
	var max int64
	for _, sv := range f.docs {
		if sv.SurveyNo > max {
			max = sv.SurveyNo
		}
	}
	return max + 1, nil
}

type fakeVisits struct {
	visits map[int64]*Visit
}

func (f *fakeVisits) VisitByID(ctx context.Context, id int64) (*Visit, error) {
	visit, ok := f.visits[id]
	if !ok {
		return nil, ErrVisitNotFound
	}
	cp := *visit
	return &cp, nil
}

func newTestService(repo *fakeSurveyRepo) (*Service, *fakeVisits) {
	visits := &fakeVisits{visits: map[int64]*Visit{
		1: {ID: 1, DoctorID: 7, DoctorName: "Anna Nowak", ScheduledAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), Completed: true},
		2: {ID: 2, DoctorID: 7, ScheduledAt: time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), Completed: false},
		3: {ID: 3, DoctorID: 8, DoctorName: "Jan Kowalski", ScheduledAt: time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC), Completed: true},
	}}
	return NewService(repo, visits, zap.NewNop()), visits
}

func ptr[T any](v T) *T { return &v }

func TestEligible(t *testing.T) {
	svc, _ := newTestService(newFakeSurveyRepo())
	ctx := context.Background()

	el, err := svc.Eligible(ctx, 1)
	require.NoError(t, err)
	assert.True(t, el.Eligible)
	assert.False(t, el.Rated)

	// not completed yet
	el, err = svc.Eligible(ctx, 2)
	require.NoError(t, err)
	assert.False(t, el.Eligible)

	_, err = svc.Eligible(ctx, 99)
	assert.ErrorIs(t, err, ErrVisitNotFound)
}

func TestSubmitRating(t *testing.T) {
	repo := newFakeSurveyRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	sv, err := svc.SubmitRating(ctx, RatingSubmission{
		VisitID:    1,
		PatientID:  ptr(int64(10)),
		NationalID: ptr("90010112345"),
		Rating:     5,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), sv.SurveyNo)
	assert.Equal(t, TypeVisitRating, sv.Type)
	require.NotNil(t, sv.Rating)
	assert.Equal(t, 5, *sv.Rating)
	require.NotNil(t, sv.PatientID)
	assert.Equal(t, int64(10), *sv.PatientID)
	require.NotNil(t, sv.DoctorID)
	assert.Equal(t, int64(7), *sv.DoctorID)
	assert.Nil(t, sv.DoctorName, "attributed survey keeps identity, not denormalized names")

	// eligibility flips once the survey exists
	el, err := svc.Eligible(ctx, 1)
	require.NoError(t, err)
	assert.False(t, el.Eligible)
	assert.True(t, el.Rated)
	require.NotNil(t, el.Rating)
	assert.Equal(t, 5, *el.Rating)
}

func TestSubmitRatingAnonymousDropsIdentity(t *testing.T) {
	svc, visits := newTestService(newFakeSurveyRepo())

	sv, err := svc.SubmitRating(context.Background(), RatingSubmission{
		VisitID:    1,
		PatientID:  ptr(int64(10)),
		NationalID: ptr("90010112345"),
		Anonymous:  true,
		Rating:     4,
	})
	require.NoError(t, err)

	assert.True(t, sv.Anonymous)
	assert.Nil(t, sv.PatientID)
	assert.Nil(t, sv.NationalID)
	require.NotNil(t, sv.DoctorName)
	assert.Equal(t, "Anna Nowak", *sv.DoctorName)
	require.NotNil(t, sv.VisitDate)
	assert.True(t, sv.VisitDate.Equal(visits.visits[1].ScheduledAt))
}

func TestSubmitRatingGuards(t *testing.T) {
	svc, _ := newTestService(newFakeSurveyRepo())
	ctx := context.Background()

	_, err := svc.SubmitRating(ctx, RatingSubmission{VisitID: 1, Rating: 0})
	assert.ErrorIs(t, err, ErrRatingOutOfRange)

	_, err = svc.SubmitRating(ctx, RatingSubmission{VisitID: 1, Rating: 6})
	assert.ErrorIs(t, err, ErrRatingOutOfRange)

	_, err = svc.SubmitRating(ctx, RatingSubmission{VisitID: 2, Rating: 3})
	assert.ErrorIs(t, err, ErrVisitNotCompleted)

	_, err = svc.SubmitRating(ctx, RatingSubmission{VisitID: 99, Rating: 3})
	assert.ErrorIs(t, err, ErrVisitNotFound)
}

func TestSubmitRatingOncePerVisit(t *testing.T) {
	svc, _ := newTestService(newFakeSurveyRepo())
	ctx := context.Background()

	_, err := svc.SubmitRating(ctx, RatingSubmission{VisitID: 1, Rating: 4})
	require.NoError(t, err)

	_, err = svc.SubmitRating(ctx, RatingSubmission{VisitID: 1, Rating: 2})
	assert.ErrorIs(t, err, ErrVisitAlreadyRated)
}

func TestSubmitGeneral(t *testing.T) {
	svc, _ := newTestService(newFakeSurveyRepo())

	sv, err := svc.SubmitGeneral(context.Background(), GeneralSubmission{
		PatientID: ptr(int64(10)),
		Answers:   []Answer{{Question: "How was the front desk?", Answer: "Friendly"}},
		Notes:     ptr("longer waiting time than usual"),
	})
	require.NoError(t, err)

	assert.Equal(t, TypeGeneral, sv.Type)
	assert.Nil(t, sv.VisitID)
	assert.Nil(t, sv.Rating)
	assert.Len(t, sv.Answers, 1)
}

func TestSurveyNoIncrements(t *testing.T) {
	svc, _ := newTestService(newFakeSurveyRepo())
	ctx := context.Background()

	first, err := svc.SubmitGeneral(ctx, GeneralSubmission{})
	require.NoError(t, err)
	second, err := svc.SubmitRating(ctx, RatingSubmission{VisitID: 1, Rating: 3})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.SurveyNo)
	assert.Equal(t, int64(2), second.SurveyNo)
}

func TestUpdateSurvey(t *testing.T) {
	svc, _ := newTestService(newFakeSurveyRepo())
	ctx := context.Background()

	sv, err := svc.SubmitGeneral(ctx, GeneralSubmission{Notes: ptr("initial")})
	require.NoError(t, err)

	err = svc.Update(ctx, sv.ID.Hex(), SurveyPatch{
		Answers: &[]Answer{{Question: "Anything else?", Answer: "No"}},
	})
	require.NoError(t, err)

	updated, err := svc.Get(ctx, sv.ID.Hex())
	require.NoError(t, err)
	assert.Len(t, updated.Answers, 1)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "initial", *updated.Notes, "absent patch fields stay")

	err = svc.Update(ctx, primitive.NewObjectID().Hex(), SurveyPatch{})
	assert.ErrorIs(t, err, ErrSurveyNotFound)
}

func TestDoctorRating(t *testing.T) {
	repo := newFakeSurveyRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	for i, rating := range []int{5, 3, 4} {
		visitID := int64(100 + i)
		doctorID := int64(7)
		require.NoError(t, repo.Insert(ctx, &Survey{
			SurveyNo: int64(i + 1),
			VisitID:  &visitID,
			DoctorID: &doctorID,
			Type:     TypeVisitRating,
			Rating:   &rating,
		}))
	}

	result, err := svc.DoctorRating(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)
	assert.Equal(t, 4.0, result.AverageRating)
	assert.Len(t, result.Surveys, 3)
}

func TestDoctorRatingRounding(t *testing.T) {
	repo := newFakeSurveyRepo()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	for i, rating := range []int{5, 4, 4} {
		visitID := int64(100 + i)
		doctorID := int64(8)
		require.NoError(t, repo.Insert(ctx, &Survey{
			VisitID:  &visitID,
			DoctorID: &doctorID,
			Type:     TypeVisitRating,
			Rating:   &rating,
		}))
	}

	result, err := svc.DoctorRating(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, 4.33, result.AverageRating)
}

func TestDoctorRatingEmpty(t *testing.T) {
	svc, _ := newTestService(newFakeSurveyRepo())

	result, err := svc.DoctorRating(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)
	assert.Equal(t, 0.0, result.AverageRating)
	assert.NotNil(t, result.Surveys)
	assert.Empty(t, result.Surveys)
}
