// internal/app/store/rehearsals/rehearsalstore.go
package rehearsalstore

import (
	"context"
	"time"

	"github.com/maestranote/maestranote/internal/app/system/apperr"
	"github.com/maestranote/maestranote/internal/app/system/tenantscope"
	"github.com/maestranote/maestranote/internal/app/system/txn"
	schoolyearstore "github.com/maestranote/maestranote/internal/app/store/schoolyears"
	"github.com/maestranote/maestranote/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Store owns rehearsal documents, their attendance lists, and the
// per-student attendance event log behind them. It also maintains the
// orchestra's rehearsalIds bookkeeping array.
type Store struct {
	c          *mongo.Collection
	orchestras *mongo.Collection
	attendance *mongo.Collection
	client     *mongo.Client
	cap        txn.Capability
	years      *schoolyearstore.Store
	log        *zap.Logger
}

func New(db *mongo.Database, client *mongo.Client, cap txn.Capability, years *schoolyearstore.Store, log *zap.Logger) *Store {
	return &Store{
		c:          db.Collection("rehearsal"),
		orchestras: db.Collection("orchestra"),
		attendance: db.Collection("activity_attendance"),
		client:     client,
		cap:        cap,
		years:      years,
		log:        log,
	}
}

// cleanup is one named secondary write trailing a rehearsal delete.
type cleanup struct {
	name string
	fn   func(context.Context) error
}

// deleteRun executes a primary delete and its cleanups, in one session
// transaction when the deployment supports it. A transaction failure (other
// than capability) downgrades to the sequential path, where the primary
// error propagates and cleanup failures are logged for the reconciliation
// sweep.
func (s *Store) deleteRun(ctx context.Context, op, tenantID string, primary func(context.Context) error, cleanups []cleanup) error {
	if s.cap == txn.Supported {
		err := txn.WithSession(ctx, s.client, func(sc mongo.SessionContext) error {
			if err := primary(sc); err != nil {
				return err
			}
			for _, cl := range cleanups {
				if err := cl.fn(sc); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			return nil
		}
		s.log.Warn("rehearsal delete transaction failed, retrying sequentially",
			zap.String("op", op),
			zap.String("tenant_id", tenantID),
			zap.Error(err))
	}

	if err := primary(ctx); err != nil {
		return err
	}
	for _, cl := range cleanups {
		if err := cl.fn(ctx); err != nil {
			s.log.Warn("rehearsal cleanup failed; reconciliation will retry",
				zap.String("op", op),
				zap.String("step", cl.name),
				zap.String("tenant_id", tenantID),
				zap.Error(err))
		}
	}
	return nil
}

// Create inserts a rehearsal for an orchestra. A rehearsal without an
// explicit school year is attached to the tenant's current year, which the
// lifecycle synthesizes if the tenant has none yet.
func (s *Store) Create(ctx context.Context, tenantID string, r models.Rehearsal) (models.Rehearsal, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return models.Rehearsal{}, err
	}
	if r.GroupID.IsZero() {
		return models.Rehearsal{}, apperr.Invalid("groupId", "required")
	}
	if r.Date.IsZero() {
		return models.Rehearsal{}, apperr.Invalid("date", "required")
	}
	if r.EndHour != 0 && r.EndHour < r.StartHour {
		return models.Rehearsal{}, apperr.Invalid("endHour", "must not be before startHour")
	}

	// The orchestra must resolve in this tenant before anything is written.
	if err := s.orchestras.FindOne(ctx, tenantscope.ByID(r.GroupID, tenantID)).Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Rehearsal{}, apperr.ErrEntityNotFound
		}
		return models.Rehearsal{}, apperr.Storage(err)
	}

	if r.SchoolYearID.IsZero() {
		year, err := s.years.GetCurrent(ctx, tenantID)
		if err != nil {
			return models.Rehearsal{}, err
		}
		r.SchoolYearID = year.ID
	}

	now := time.Now().UTC()
	r.ID = primitive.NewObjectID()
	r.TenantID = tenantID
	r.Attendance = models.Attendance{
		Present: []primitive.ObjectID{},
		Absent:  []primitive.ObjectID{},
	}
	r.CreatedAt = now
	r.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, r); err != nil {
		return models.Rehearsal{}, apperr.Storage(err)
	}

	if _, err := s.orchestras.UpdateOne(ctx,
		tenantscope.ByID(r.GroupID, tenantID),
		bson.M{"$addToSet": bson.M{"rehearsalIds": r.ID}}); err != nil {
		s.log.Warn("rehearsal bookkeeping update failed; reconciliation will retry",
			zap.String("tenant_id", tenantID),
			zap.String("rehearsal_id", r.ID.Hex()),
			zap.Error(err))
	}
	return r, nil
}

// BulkCreate inserts many rehearsals for one orchestra in a single
// unordered InsertMany and records them all on the orchestra's bookkeeping
// array in one update.
func (s *Store) BulkCreate(ctx context.Context, tenantID string, groupID primitive.ObjectID, dates []time.Time, location string, startHour, endHour int) ([]models.Rehearsal, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return nil, err
	}
	if len(dates) == 0 {
		return nil, apperr.Invalid("dates", "required")
	}

	if err := s.orchestras.FindOne(ctx, tenantscope.ByID(groupID, tenantID)).Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.ErrEntityNotFound
		}
		return nil, apperr.Storage(err)
	}

	year, err := s.years.GetCurrent(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rehearsals := make([]models.Rehearsal, 0, len(dates))
	docs := make([]interface{}, 0, len(dates))
	ids := make([]primitive.ObjectID, 0, len(dates))
	for _, d := range dates {
		r := models.Rehearsal{
			ID:           primitive.NewObjectID(),
			TenantID:     tenantID,
			GroupID:      groupID,
			SchoolYearID: year.ID,
			Date:         d.UTC(),
			Location:     location,
			StartHour:    startHour,
			EndHour:      endHour,
			Attendance: models.Attendance{
				Present: []primitive.ObjectID{},
				Absent:  []primitive.ObjectID{},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		rehearsals = append(rehearsals, r)
		docs = append(docs, r)
		ids = append(ids, r.ID)
	}

	// ordered:false so all inserts are attempted even if one fails.
	if _, err := s.c.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil {
		return nil, apperr.Storage(err)
	}

	if _, err := s.orchestras.UpdateOne(ctx,
		tenantscope.ByID(groupID, tenantID),
		bson.M{"$addToSet": bson.M{"rehearsalIds": bson.M{"$each": ids}}}); err != nil {
		s.log.Warn("bulk rehearsal bookkeeping update failed; reconciliation will retry",
			zap.String("tenant_id", tenantID),
			zap.String("orchestra_id", groupID.Hex()),
			zap.Error(err))
	}
	return rehearsals, nil
}

func (s *Store) GetByID(ctx context.Context, tenantID string, id primitive.ObjectID) (models.Rehearsal, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return models.Rehearsal{}, err
	}
	var r models.Rehearsal
	err := s.c.FindOne(ctx, tenantscope.ByID(id, tenantID)).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return models.Rehearsal{}, apperr.ErrEntityNotFound
	}
	if err != nil {
		return models.Rehearsal{}, apperr.Storage(err)
	}
	return r, nil
}

// ListByOrchestra returns an orchestra's rehearsals in date order.
func (s *Store) ListByOrchestra(ctx context.Context, tenantID string, groupID primitive.ObjectID) ([]models.Rehearsal, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return nil, err
	}
	cur, err := s.c.Find(ctx,
		tenantscope.Filter(bson.M{"groupId": groupID}, tenantID),
		options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, apperr.Storage(err)
	}
	defer cur.Close(ctx)

	var out []models.Rehearsal
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Storage(err)
	}
	return out, nil
}

// MarkAttendance puts a student in exactly one of the present/absent lists
// and appends the matching attendance event. Marking the same status twice
// is a no-op thanks to set semantics.
func (s *Store) MarkAttendance(ctx context.Context, tenantID string, rehearsalID, studentID primitive.ObjectID, present bool, recordedBy primitive.ObjectID) error {
	if err := tenantscope.Require(tenantID); err != nil {
		return err
	}

	addTo, pullFrom, status := "attendance.present", "attendance.absent", "present"
	if !present {
		addTo, pullFrom, status = "attendance.absent", "attendance.present", "absent"
	}

	res, err := s.c.UpdateOne(ctx,
		tenantscope.ByID(rehearsalID, tenantID),
		bson.M{
			"$addToSet": bson.M{addTo: studentID},
			"$pull":     bson.M{pullFrom: studentID},
			"$set":      bson.M{"updatedAt": time.Now().UTC()},
		})
	if err != nil {
		return apperr.Storage(err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrEntityNotFound
	}

	// Event log is secondary bookkeeping: an upsert failure is logged and
	// left for reconciliation, not surfaced as a failed attendance mark.
	_, err = s.attendance.UpdateOne(ctx,
		tenantscope.Filter(bson.M{"rehearsalId": rehearsalID, "studentId": studentID}, tenantID),
		bson.M{"$set": bson.M{
			"status":     status,
			"recordedAt": time.Now().UTC(),
			"recordedBy": recordedBy,
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		s.log.Warn("attendance event upsert failed",
			zap.String("tenant_id", tenantID),
			zap.String("rehearsal_id", rehearsalID.Hex()),
			zap.String("student_id", studentID.Hex()),
			zap.Error(err))
	}
	return nil
}

// Delete hard-deletes one rehearsal, its attendance events, and its entry
// in the orchestra's bookkeeping array. Deleting an already-absent
// rehearsal reports zero deletions and succeeds.
func (s *Store) Delete(ctx context.Context, tenantID string, id primitive.ObjectID) (int64, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return 0, err
	}

	var r models.Rehearsal
	err := s.c.FindOne(ctx, tenantscope.ByID(id, tenantID)).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.Storage(err)
	}

	var deleted int64
	err = s.deleteRun(ctx, "delete_rehearsal", tenantID,
		func(c context.Context) error {
			res, err := s.c.DeleteOne(c, tenantscope.ByID(id, tenantID))
			if err != nil {
				return err
			}
			deleted = res.DeletedCount
			return nil
		},
		[]cleanup{
			{"delete_attendance_events", func(c context.Context) error {
				_, err := s.attendance.DeleteMany(c,
					tenantscope.Filter(bson.M{"rehearsalId": id}, tenantID))
				return err
			}},
			{"pull_rehearsal_bookkeeping", func(c context.Context) error {
				_, err := s.orchestras.UpdateOne(c,
					tenantscope.ByID(r.GroupID, tenantID),
					bson.M{"$pull": bson.M{"rehearsalIds": id}})
				return err
			}},
		})
	if err != nil {
		return 0, apperr.Storage(err)
	}
	return deleted, nil
}

// DeleteByOrchestra hard-deletes every rehearsal of one orchestra along
// with their attendance events, and empties the orchestra's bookkeeping
// array. An orchestra with no rehearsals reports zero deletions.
func (s *Store) DeleteByOrchestra(ctx context.Context, tenantID string, groupID primitive.ObjectID) (int64, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return 0, err
	}

	cur, err := s.c.Find(ctx,
		tenantscope.Filter(bson.M{"groupId": groupID}, tenantID),
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, apperr.Storage(err)
	}
	var stubs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &stubs); err != nil {
		return 0, apperr.Storage(err)
	}
	if len(stubs) == 0 {
		return 0, nil
	}
	ids := make([]primitive.ObjectID, 0, len(stubs))
	for _, st := range stubs {
		ids = append(ids, st.ID)
	}

	var deleted int64
	err = s.deleteRun(ctx, "delete_by_orchestra", tenantID,
		func(c context.Context) error {
			res, err := s.c.DeleteMany(c,
				tenantscope.Filter(bson.M{"_id": bson.M{"$in": ids}}, tenantID))
			if err != nil {
				return err
			}
			deleted = res.DeletedCount
			return nil
		},
		[]cleanup{
			{"delete_attendance_events", func(c context.Context) error {
				_, err := s.attendance.DeleteMany(c,
					tenantscope.Filter(bson.M{"rehearsalId": bson.M{"$in": ids}}, tenantID))
				return err
			}},
			{"pull_rehearsal_bookkeeping", func(c context.Context) error {
				_, err := s.orchestras.UpdateOne(c,
					tenantscope.ByID(groupID, tenantID),
					bson.M{"$pull": bson.M{"rehearsalIds": bson.M{"$in": ids}}})
				return err
			}},
		})
	if err != nil {
		return 0, apperr.Storage(err)
	}
	return deleted, nil
}
