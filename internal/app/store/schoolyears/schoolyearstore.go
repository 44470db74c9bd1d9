// internal/app/store/schoolyears/schoolyearstore.go
package schoolyearstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/maestranote/maestranote/internal/app/system/apperr"
	"github.com/maestranote/maestranote/internal/app/system/tenantscope"
	"github.com/maestranote/maestranote/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store owns the school-year lifecycle of each tenant: which year is
// current, how a default year is synthesized, and how a new year rolls over
// from a prior one.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("school_year")}
}

// Academic years run from Aug 20 to Aug 1 of the following calendar year.
const (
	startMonth = time.August
	startDay   = 20
	endMonth   = time.August
	endDay     = 1
)

// DefaultYear builds the synthesized year for a tenant that has none,
// named from the calendar year of now.
func DefaultYear(tenantID string, now time.Time) models.SchoolYear {
	y := now.UTC().Year()
	return models.SchoolYear{
		TenantID:  tenantID,
		Name:      fmt.Sprintf("%d-%d", y, y+1),
		StartDate: time.Date(y, startMonth, startDay, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(y+1, endMonth, endDay, 0, 0, 0, 0, time.UTC),
		IsCurrent: true,
		IsActive:  true,
	}
}

// GetCurrent returns the tenant's current school year, synthesizing and
// persisting the default year when none is marked current.
//
// The upsert races safely: the partial unique index on (tenantId,
// isCurrent=true) makes the second concurrent insert fail with a duplicate
// key, and that loser simply re-reads the winner's document. Exactly one
// year ends up current either way.
func (s *Store) GetCurrent(ctx context.Context, tenantID string) (models.SchoolYear, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return models.SchoolYear{}, err
	}

	now := time.Now().UTC()
	def := DefaultYear(tenantID, now)

	filter := tenantscope.Filter(bson.M{"isCurrent": true}, tenantID)
	// tenantId and isCurrent come from the filter's equality clauses on
	// insert; repeating them under $setOnInsert is an update conflict.
	insert := bson.M{
		"_id":       primitive.NewObjectID(),
		"name":      def.Name,
		"startDate": def.StartDate,
		"endDate":   def.EndDate,
		"isActive":  true,
		"createdAt": now,
		"updatedAt": now,
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var year models.SchoolYear
	err := s.c.FindOneAndUpdate(ctx, filter, bson.M{"$setOnInsert": insert}, opts).Decode(&year)
	if err == nil {
		return year, nil
	}
	if wafflemongo.IsDup(err) {
		if rerr := s.c.FindOne(ctx, filter).Decode(&year); rerr == nil {
			return year, nil
		} else if rerr == mongo.ErrNoDocuments {
			return models.SchoolYear{}, apperr.ErrEntityNotFound
		} else {
			return models.SchoolYear{}, apperr.Storage(rerr)
		}
	}
	return models.SchoolYear{}, apperr.Storage(err)
}

// GetByID returns one school year within the tenant scope.
func (s *Store) GetByID(ctx context.Context, tenantID string, id primitive.ObjectID) (models.SchoolYear, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return models.SchoolYear{}, err
	}
	var year models.SchoolYear
	err := s.c.FindOne(ctx, tenantscope.ByID(id, tenantID)).Decode(&year)
	if err == mongo.ErrNoDocuments {
		return models.SchoolYear{}, apperr.ErrEntityNotFound
	}
	if err != nil {
		return models.SchoolYear{}, apperr.Storage(err)
	}
	return year, nil
}

// List returns the tenant's school years, newest first.
func (s *Store) List(ctx context.Context, tenantID string) ([]models.SchoolYear, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return nil, err
	}
	cur, err := s.c.Find(ctx,
		tenantscope.Filter(bson.M{}, tenantID),
		options.Find().SetSort(bson.D{{Key: "startDate", Value: -1}}))
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer cur.Close(ctx)

	var years []models.SchoolYear
	if err := cur.All(ctx, &years); err != nil {
		return nil, apperr.Storage(err)
	}
	return years, nil
}

// Create validates and inserts a school year. When the new year is marked
// current, every other year of the tenant is unset first; the unset-then-
// insert pair is not atomic, but the partial unique index rejects a second
// current year if another writer slips in between.
func (s *Store) Create(ctx context.Context, tenantID string, year models.SchoolYear) (models.SchoolYear, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return models.SchoolYear{}, err
	}
	if err := validate(year); err != nil {
		return models.SchoolYear{}, err
	}

	now := time.Now().UTC()
	year.ID = primitive.NewObjectID()
	year.TenantID = tenantID
	year.IsActive = true
	year.CreatedAt = now
	year.UpdatedAt = now

	if year.IsCurrent {
		if err := s.unsetCurrent(ctx, tenantID, primitive.NilObjectID); err != nil {
			return models.SchoolYear{}, err
		}
	}

	if _, err := s.c.InsertOne(ctx, year); err != nil {
		if wafflemongo.IsDup(err) {
			return models.SchoolYear{}, apperr.Invalid("isCurrent", "another school year is already current")
		}
		return models.SchoolYear{}, apperr.Storage(err)
	}
	return year, nil
}

// Update changes name and dates of an existing year. The current flag is
// not writable here; SetCurrent is the only path that moves it.
func (s *Store) Update(ctx context.Context, tenantID string, id primitive.ObjectID, name string, start, end time.Time) (models.SchoolYear, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return models.SchoolYear{}, err
	}
	if err := validate(models.SchoolYear{Name: name, StartDate: start, EndDate: end}); err != nil {
		return models.SchoolYear{}, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var year models.SchoolYear
	err := s.c.FindOneAndUpdate(ctx,
		tenantscope.ByID(id, tenantID),
		bson.M{"$set": bson.M{
			"name":      name,
			"startDate": start.UTC(),
			"endDate":   end.UTC(),
			"updatedAt": time.Now().UTC(),
		}},
		opts).Decode(&year)
	if err == mongo.ErrNoDocuments {
		return models.SchoolYear{}, apperr.ErrEntityNotFound
	}
	if err != nil {
		return models.SchoolYear{}, apperr.Storage(err)
	}
	return year, nil
}

// SetCurrent makes yearID the tenant's single current year: verify the
// target resolves in the tenant, unset every other year, then set the
// target. The window between unset and set can observe zero current years,
// never two.
func (s *Store) SetCurrent(ctx context.Context, tenantID string, yearID primitive.ObjectID) (models.SchoolYear, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return models.SchoolYear{}, err
	}

	if err := s.c.FindOne(ctx, tenantscope.ByID(yearID, tenantID)).Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.SchoolYear{}, apperr.ErrEntityNotFound
		}
		return models.SchoolYear{}, apperr.Storage(err)
	}

	if err := s.unsetCurrent(ctx, tenantID, yearID); err != nil {
		return models.SchoolYear{}, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var year models.SchoolYear
	err := s.c.FindOneAndUpdate(ctx,
		tenantscope.ByID(yearID, tenantID),
		bson.M{"$set": bson.M{"isCurrent": true, "updatedAt": time.Now().UTC()}},
		opts).Decode(&year)
	if err == mongo.ErrNoDocuments {
		return models.SchoolYear{}, apperr.ErrEntityNotFound
	}
	if err != nil {
		return models.SchoolYear{}, apperr.Storage(err)
	}
	return year, nil
}

// Rollover creates the year following prevYearID: it starts the day after
// the previous year ends and runs through the following Aug 1, and becomes
// the current year via the same Create path.
func (s *Store) Rollover(ctx context.Context, tenantID string, prevYearID primitive.ObjectID) (models.SchoolYear, error) {
	prev, err := s.GetByID(ctx, tenantID, prevYearID)
	if err != nil {
		return models.SchoolYear{}, err
	}

	start := prev.EndDate.UTC().AddDate(0, 0, 1)
	end := time.Date(start.Year()+1, endMonth, endDay, 0, 0, 0, 0, time.UTC)
	next := models.SchoolYear{
		Name:      fmt.Sprintf("%d-%d", start.Year(), start.Year()+1),
		StartDate: start,
		EndDate:   end,
		IsCurrent: true,
	}
	return s.Create(ctx, tenantID, next)
}

func (s *Store) unsetCurrent(ctx context.Context, tenantID string, except primitive.ObjectID) error {
	filter := tenantscope.Filter(bson.M{"isCurrent": true}, tenantID)
	if !except.IsZero() {
		filter["_id"] = bson.M{"$ne": except}
	}
	_, err := s.c.UpdateMany(ctx, filter,
		bson.M{"$set": bson.M{"isCurrent": false, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return apperr.Storage(err)
	}
	return nil
}

func validate(y models.SchoolYear) error {
	if strings.TrimSpace(y.Name) == "" {
		return apperr.Invalid("name", "required")
	}
	if y.StartDate.IsZero() {
		return apperr.Invalid("startDate", "required")
	}
	if y.EndDate.IsZero() {
		return apperr.Invalid("endDate", "required")
	}
	if !y.EndDate.After(y.StartDate) {
		return apperr.Invalid("endDate", "must be after startDate")
	}
	return nil
}
