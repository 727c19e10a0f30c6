package survey

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TypeGeneral     = "general"
	TypeVisitRating = "visit_rating"
)

// Answer is one (question, answer, category) triple of a survey form.
type Answer struct {
	Question string  `bson:"question" json:"question"`
	Answer   string  `bson:"answer" json:"answer"`
	Category *string `bson:"category,omitempty" json:"category,omitempty"`
}

// Survey is a patient feedback document. Visit-rating surveys weakly
// reference a visit; anonymous ones keep no patient identity and instead
// denormalize the doctor's name and visit date onto the document.
type Survey struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SurveyNo    int64              `bson:"survey_no" json:"survey_no"`
	PatientID   *int64             `bson:"patient_id,omitempty" json:"patient_id,omitempty"`
	VisitID     *int64             `bson:"visit_id,omitempty" json:"visit_id,omitempty"`
	DoctorID    *int64             `bson:"doctor_id,omitempty" json:"practitioner_id,omitempty"`
	DoctorName  *string            `bson:"doctor_name,omitempty" json:"practitioner_name,omitempty"`
	NationalID  *string            `bson:"national_id,omitempty" json:"national_id,omitempty"`
	Anonymous   bool               `bson:"anonymous" json:"anonymous"`
	CompletedAt time.Time          `bson:"completed_at" json:"completed_at"`
	VisitDate   *time.Time         `bson:"visit_date,omitempty" json:"visit_date,omitempty"`
	Type        string             `bson:"type" json:"type"`
	Rating      *int               `bson:"rating,omitempty" json:"rating,omitempty"`
	Answers     []Answer           `bson:"answers" json:"answers"`
	Notes       *string            `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// SurveyPatch updates the editable parts of a general survey.
type SurveyPatch struct {
	Answers *[]Answer
	Notes   *string
}

// Eligibility answers "may this visit still be rated".
type Eligibility struct {
	VisitID  int64 `json:"visit_id"`
	Eligible bool  `json:"eligible"`
	Rated    bool  `json:"rated"`
	Rating   *int  `json:"rating,omitempty"`
}

// DoctorRating aggregates all rated surveys of one doctor's visits.
type DoctorRating struct {
	DoctorID      int64    `json:"practitioner_id"`
	AverageRating float64  `json:"average_rating"`
	Count         int      `json:"count"`
	Surveys       []Survey `json:"surveys"`
}
