package survey

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "surveys"

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(collectionName)}
}

// EnsureIndexes creates the query indexes the handlers lean on. They are for
// lookup speed only; the one-survey-per-visit rule is enforced by the
// service before insert.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "patient_id", Value: 1}}},
		{Keys: bson.D{{Key: "visit_id", Value: 1}}},
		{Keys: bson.D{{Key: "type", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create survey indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) Insert(ctx context.Context, sv *Survey) error {
	result, err := r.coll.InsertOne(ctx, sv)
	if err != nil {
		return fmt.Errorf("insert survey: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		sv.ID = oid
	}
	return nil
}

func (r *MongoRepository) GetByID(ctx context.Context, id string) (*Survey, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	var sv Survey
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&sv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSurveyNotFound
		}
		return nil, err
	}

	return &sv, nil
}

func (r *MongoRepository) GetByVisitID(ctx context.Context, visitID int64) (*Survey, error) {
	var sv Survey
	err := r.coll.FindOne(ctx, bson.M{"visit_id": visitID}).Decode(&sv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSurveyNotFound
		}
		return nil, err
	}

	return &sv, nil
}

func (r *MongoRepository) ListAll(ctx context.Context) ([]Survey, error) {
	return r.list(ctx, bson.M{})
}

func (r *MongoRepository) ListByPatient(ctx context.Context, patientID int64) ([]Survey, error) {
	return r.list(ctx, bson.M{"patient_id": patientID})
}

func (r *MongoRepository) ListRatedByDoctor(ctx context.Context, doctorID int64) ([]Survey, error) {
	return r.list(ctx, bson.M{
		"doctor_id": doctorID,
		"rating":    bson.M{"$ne": nil},
	})
}

func (r *MongoRepository) list(ctx context.Context, filter bson.M) ([]Survey, error) {
	opts := options.Find().SetSort(bson.D{{Key: "completed_at", Value: -1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find surveys: %w", err)
	}
	defer cursor.Close(ctx)

	var result []Survey
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("decode surveys: %w", err)
	}

	return result, nil
}

func (r *MongoRepository) Replace(ctx context.Context, sv *Survey) error {
	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": sv.ID}, sv)
	if err != nil {
		return fmt.Errorf("replace survey: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrSurveyNotFound
	}
	return nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}

	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete survey: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrSurveyNotFound
	}
	return nil
}

func (r *MongoRepository) NextSurveyNo(ctx context.Context) (int64, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "survey_no", Value: -1}}).
		SetProjection(bson.M{"survey_no": 1})

	var doc struct {
		SurveyNo int64 `bson:"survey_no"`
	}
	err := r.coll.FindOne(ctx, bson.M{}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 1, nil
		}
		return 0, err
	}

	return doc.SurveyNo + 1, nil
}
