// internal/app/store/students/studentstore.go
package studentstore

import (
	"context"
	"strings"
	"time"

	"github.com/maestranote/maestranote/internal/app/system/apperr"
	"github.com/maestranote/maestranote/internal/app/system/tenantscope"
	"github.com/maestranote/maestranote/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("student")}
}

// Create inserts a new student with the tenant stamped from context and an
// empty enrollment mirror. Enrollments only change through the roster store.
func (s *Store) Create(ctx context.Context, tenantID string, st models.Student) (models.Student, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return models.Student{}, err
	}
	if strings.TrimSpace(st.FullName) == "" {
		return models.Student{}, apperr.Invalid("fullName", "required")
	}

	now := time.Now().UTC()
	st.ID = primitive.NewObjectID()
	st.TenantID = tenantID
	st.FullNameCI = text.Fold(st.FullName)
	st.Enrollments = models.StudentEnrollments{OrchestraIDs: []primitive.ObjectID{}}
	st.IsActive = true
	st.CreatedAt = now
	st.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, st); err != nil {
		return models.Student{}, apperr.Storage(err)
	}
	return st, nil
}

func (s *Store) GetByID(ctx context.Context, tenantID string, id primitive.ObjectID) (models.Student, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return models.Student{}, err
	}
	var st models.Student
	err := s.c.FindOne(ctx, tenantscope.ByID(id, tenantID)).Decode(&st)
	if err == mongo.ErrNoDocuments {
		return models.Student{}, apperr.ErrEntityNotFound
	}
	if err != nil {
		return models.Student{}, apperr.Storage(err)
	}
	return st, nil
}

// List returns the tenant's active students sorted by folded name.
func (s *Store) List(ctx context.Context, tenantID string) ([]models.Student, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return nil, err
	}
	cur, err := s.c.Find(ctx,
		tenantscope.Filter(bson.M{"isActive": true}, tenantID),
		options.Find().SetSort(bson.D{{Key: "fullName_ci", Value: 1}}))
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer cur.Close(ctx)

	var out []models.Student
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Storage(err)
	}
	return out, nil
}

// UpdateInfo changes descriptive fields. The enrollment mirror is
// deliberately not writable here.
func (s *Store) UpdateInfo(ctx context.Context, tenantID string, id primitive.ObjectID, fullName, instrument string) (models.Student, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return models.Student{}, err
	}
	if strings.TrimSpace(fullName) == "" {
		return models.Student{}, apperr.Invalid("fullName", "required")
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var st models.Student
	err := s.c.FindOneAndUpdate(ctx,
		tenantscope.ByID(id, tenantID),
		bson.M{"$set": bson.M{
			"fullName":    fullName,
			"fullName_ci": text.Fold(fullName),
			"instrument":  instrument,
			"updatedAt":   time.Now().UTC(),
		}},
		opts).Decode(&st)
	if err == mongo.ErrNoDocuments {
		return models.Student{}, apperr.ErrEntityNotFound
	}
	if err != nil {
		return models.Student{}, apperr.Storage(err)
	}
	return st, nil
}

// Deactivate soft-deletes a student. Cascade cleanup of rosters and
// attendance lists runs after this returns.
func (s *Store) Deactivate(ctx context.Context, tenantID string, id primitive.ObjectID) error {
	if err := tenantscope.Require(tenantID); err != nil {
		return err
	}
	res, err := s.c.UpdateOne(ctx,
		tenantscope.ByID(id, tenantID),
		bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return apperr.Storage(err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrEntityNotFound
	}
	return nil
}
