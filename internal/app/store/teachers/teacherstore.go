// internal/app/store/teachers/teacherstore.go
package teacherstore

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
	return &Store{c: db.Collection("teacher")}
}

// Create inserts a new teacher with an empty conducting mirror. The mirror
// only changes through the roster store's conductor reassignment and
// cascade cleanup.
func (s *Store) Create(ctx context.Context, tenantID string, t models.Teacher) (models.Teacher, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return models.Teacher{}, err
	}
	if strings.TrimSpace(t.FullName) == "" {
		return models.Teacher{}, apperr.Invalid("fullName", "required")
	}

	now := time.Now().UTC()
	t.ID = primitive.NewObjectID()
	t.TenantID = tenantID
	t.FullNameCI = text.Fold(t.FullName)
	t.Conducting = models.TeacherConducting{OrchestraIDs: []primitive.ObjectID{}}
	t.IsActive = true
	t.CreatedAt = now
	t.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return models.Teacher{}, apperr.Storage(err)
	}
	return t, nil
}

func (s *Store) GetByID(ctx context.Context, tenantID string, id primitive.ObjectID) (models.Teacher, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return models.Teacher{}, err
	}
	var t models.Teacher
	err := s.c.FindOne(ctx, tenantscope.ByID(id, tenantID)).Decode(&t)
	if err == mongo.ErrNoDocuments {
		return models.Teacher{}, apperr.ErrEntityNotFound
	}
	if err != nil {
		return models.Teacher{}, apperr.Storage(err)
	}
	return t, nil
}

func (s *Store) List(ctx context.Context, tenantID string) ([]models.Teacher, error) {
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

	var out []models.Teacher
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Storage(err)
	}
	return out, nil
}

// Deactivate soft-deletes a teacher; cascade cleanup clears conductor
// references afterward.
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
