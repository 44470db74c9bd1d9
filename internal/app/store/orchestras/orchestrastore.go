// internal/app/store/orchestras/orchestrastore.go
package orchestrastore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/maestranote/maestranote/internal/app/system/apperr"
	"github.com/maestranote/maestranote/internal/app/system/authz"
	"github.com/maestranote/maestranote/internal/app/system/tenantscope"
	"github.com/maestranote/maestranote/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateOrchestraName = errors.New("an orchestra with this name already exists for this tenant")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("orchestra")}
}

// Create inserts a new orchestra. The tenant id is stamped here, from the
// authenticated context, exactly once; updates never accept it from client
// input. Membership and rehearsal arrays start empty and are only ever
// mutated by the roster and rehearsal stores.
func (s *Store) Create(ctx context.Context, tenantID string, o models.Orchestra) (models.Orchestra, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return models.Orchestra{}, err
	}
	if strings.TrimSpace(o.Name) == "" {
		return models.Orchestra{}, apperr.Invalid("name", "required")
	}

	now := time.Now().UTC()
	o.ID = primitive.NewObjectID()
	o.TenantID = tenantID
	o.NameCI = text.Fold(o.Name)
	o.JoinCode = uuid.NewString()
	o.MemberIDs = []primitive.ObjectID{}
	o.RehearsalIDs = []primitive.ObjectID{}
	o.IsActive = true
	o.CreatedAt = now
	o.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, o); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Orchestra{}, ErrDuplicateOrchestraName
		}
		return models.Orchestra{}, apperr.Storage(err)
	}
	return o, nil
}

// GetByID returns one orchestra within the tenant scope.
func (s *Store) GetByID(ctx context.Context, tenantID string, id primitive.ObjectID) (models.Orchestra, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return models.Orchestra{}, err
	}
	var o models.Orchestra
	err := s.c.FindOne(ctx, tenantscope.ByID(id, tenantID)).Decode(&o)
	if err == mongo.ErrNoDocuments {
		return models.Orchestra{}, apperr.ErrEntityNotFound
	}
	if err != nil {
		return models.Orchestra{}, apperr.Storage(err)
	}
	return o, nil
}

// List returns the tenant's orchestras, active ones only unless
// includeInactive is set.
func (s *Store) List(ctx context.Context, tenantID string, includeInactive bool) ([]models.Orchestra, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return nil, err
	}
	filter := bson.M{}
	if !includeInactive {
		filter["isActive"] = true
	}
	cur, err := s.c.Find(ctx,
		tenantscope.Filter(filter, tenantID),
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}}))
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer cur.Close(ctx)

	var out []models.Orchestra
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Storage(err)
	}
	return out, nil
}

// UpdateInfo changes the descriptive fields of an orchestra. It must never
// touch memberIds, rehearsalIds, or conductorId: relationship edges are
// created and destroyed only through the dedicated roster operations, and a
// whole-document update here would silently clobber them.
func (s *Store) UpdateInfo(ctx context.Context, tenantID string, id primitive.ObjectID, name string, caller authz.Caller) (models.Orchestra, error) {
	o, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return models.Orchestra{}, err
	}
	if !authz.CanEditOrchestra(caller, o.ConductorID) {
		return models.Orchestra{}, apperr.ErrNotAuthorized
	}
	if strings.TrimSpace(name) == "" {
		return models.Orchestra{}, apperr.Invalid("name", "required")
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = s.c.FindOneAndUpdate(ctx,
		tenantscope.ByID(id, tenantID),
		bson.M{"$set": bson.M{
			"name":      name,
			"name_ci":   text.Fold(name),
			"updatedAt": time.Now().UTC(),
		}},
		opts).Decode(&o)
	if err == mongo.ErrNoDocuments {
		return models.Orchestra{}, apperr.ErrEntityNotFound
	}
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Orchestra{}, ErrDuplicateOrchestraName
		}
		return models.Orchestra{}, apperr.Storage(err)
	}
	return o, nil
}

// Deactivate soft-deletes an orchestra. The caller runs cascade cleanup
// after this returns; a cascade failure never reverses the deactivation.
func (s *Store) Deactivate(ctx context.Context, tenantID string, id primitive.ObjectID, caller authz.Caller) error {
	o, err := s.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !authz.CanEditOrchestra(caller, o.ConductorID) {
		return apperr.ErrNotAuthorized
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

// RosterEntry is one member row of DetailWithMembers.
type RosterEntry struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	FullName   string             `bson:"fullName" json:"full_name"`
	Instrument string             `bson:"instrument,omitempty" json:"instrument,omitempty"`
}

// ConductorEntry is the conductor row of DetailWithMembers.
type ConductorEntry struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	FullName string             `bson:"fullName" json:"full_name"`
}

// Detail is an orchestra joined with its member and conductor details.
type Detail struct {
	models.Orchestra `bson:",inline"`
	Members          []RosterEntry    `bson:"members" json:"members"`
	Conductor        []ConductorEntry `bson:"conductor" json:"conductor,omitempty"`
}

// DetailWithMembers resolves the orchestra together with member and
// conductor details in one aggregation. The $lookup sub-pipelines carry the
// tenant clause: a join scoped only at the outer stage would still read
// foreign-tenant documents from the joined collections.
func (s *Store) DetailWithMembers(ctx context.Context, tenantID string, id primitive.ObjectID) (Detail, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return Detail{}, err
	}

	pipeline := []bson.M{
		tenantscope.Match(bson.M{"_id": id}, tenantID),
		tenantscope.LookupIn("student", "memberIds", "_id", "members", tenantID),
		tenantscope.Lookup("teacher", "conductorId", "_id", "conductor", tenantID),
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return Detail{}, apperr.Storage(err)
	}
	defer cur.Close(ctx)

	var rows []Detail
	if err := cur.All(ctx, &rows); err != nil {
		return Detail{}, apperr.Storage(err)
	}
	if len(rows) == 0 {
		return Detail{}, apperr.ErrEntityNotFound
	}
	return rows[0], nil
}
