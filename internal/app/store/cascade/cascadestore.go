// internal/app/store/cascade/cascadestore.go
package cascadestore

import (
	"context"
	"time"

	"github.com/maestranote/maestranote/internal/app/system/apperr"
	"github.com/maestranote/maestranote/internal/app/system/tenantscope"
	"github.com/maestranote/maestranote/internal/app/system/txn"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Store propagates entity removals into every collection holding a
// denormalized pointer to the removed entity.
//
// Unlike the roster store's paired dual writes, cascade steps are pull
// propagation from one canonical removal event: each pull is independently
// idempotent and safe to retry, so there is no compensation here. A failed
// step is logged and does not roll back the primary state change; the
// reconciliation sweep picks up whatever was left behind.
type Store struct {
	db     *mongo.Database
	client *mongo.Client
	cap    txn.Capability
	log    *zap.Logger
}

func New(db *mongo.Database, client *mongo.Client, cap txn.Capability, log *zap.Logger) *Store {
	return &Store{db: db, client: client, cap: cap, log: log}
}

// step is one named cascade write. Steps run against a session context when
// transactions are available and a plain context otherwise.
type step struct {
	name string
	fn   func(context.Context) error
}

// run executes the steps, transactionally when the deployment supports it.
// A transaction failure (other than capability) downgrades to the
// sequential path so cleanup is still attempted; sequential step failures
// are logged and skipped.
func (s *Store) run(ctx context.Context, op, tenantID string, steps []step) {
	if s.cap == txn.Supported {
		err := txn.WithSession(ctx, s.client, func(sc mongo.SessionContext) error {
			for _, st := range steps {
				if err := st.fn(sc); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			return
		}
		s.log.Warn("cascade transaction failed, retrying sequentially",
			zap.String("op", op),
			zap.String("tenant_id", tenantID),
			zap.Error(err))
	}

	for _, st := range steps {
		if err := st.fn(ctx); err != nil {
			s.log.Warn("cascade step failed; reconciliation will retry",
				zap.String("op", op),
				zap.String("step", st.name),
				zap.String("tenant_id", tenantID),
				zap.Error(err))
		}
	}
}

// OrchestraRemoved strips orchestraID from every teacher's conducting
// mirror and every student's enrollment mirror, deletes the orchestra's
// rehearsals and their attendance events, and clears the orchestra's
// rehearsal bookkeeping. The orchestra document itself was already
// deactivated by the caller and is not touched beyond that bookkeeping.
func (s *Store) OrchestraRemoved(ctx context.Context, tenantID string, orchestraID primitive.ObjectID) error {
	if err := tenantscope.Require(tenantID); err != nil {
		return err
	}

	rehearsalIDs, err := s.rehearsalIDs(ctx, tenantID, orchestraID)
	if err != nil {
		s.log.Warn("cascade: listing rehearsals failed, attendance cleanup deferred to reconciliation",
			zap.String("tenant_id", tenantID),
			zap.String("orchestra_id", orchestraID.Hex()),
			zap.Error(err))
	}

	s.run(ctx, "orchestra_removed", tenantID, []step{
		{"pull_teacher_conducting", func(c context.Context) error {
			_, err := s.db.Collection("teacher").UpdateMany(c,
				tenantscope.Filter(bson.M{}, tenantID),
				bson.M{"$pull": bson.M{"conducting.orchestraIds": orchestraID}})
			return err
		}},
		{"pull_student_enrollments", func(c context.Context) error {
			_, err := s.db.Collection("student").UpdateMany(c,
				tenantscope.Filter(bson.M{}, tenantID),
				bson.M{"$pull": bson.M{"enrollments.orchestraIds": orchestraID}})
			return err
		}},
		{"delete_rehearsals", func(c context.Context) error {
			_, err := s.db.Collection("rehearsal").DeleteMany(c,
				tenantscope.Filter(bson.M{"groupId": orchestraID}, tenantID))
			return err
		}},
		{"delete_attendance", func(c context.Context) error {
			if len(rehearsalIDs) == 0 {
				return nil
			}
			_, err := s.db.Collection("activity_attendance").DeleteMany(c,
				tenantscope.Filter(bson.M{"rehearsalId": bson.M{"$in": rehearsalIDs}}, tenantID))
			return err
		}},
		{"clear_rehearsal_bookkeeping", func(c context.Context) error {
			_, err := s.db.Collection("orchestra").UpdateOne(c,
				tenantscope.ByID(orchestraID, tenantID),
				bson.M{"$set": bson.M{"rehearsalIds": []primitive.ObjectID{}, "updatedAt": time.Now().UTC()}})
			return err
		}},
	})
	return nil
}

// StudentDeactivated pulls the student out of every orchestra roster,
// every rehearsal attendance list, and deletes their attendance events.
func (s *Store) StudentDeactivated(ctx context.Context, tenantID string, studentID primitive.ObjectID) error {
	if err := tenantscope.Require(tenantID); err != nil {
		return err
	}

	s.run(ctx, "student_deactivated", tenantID, []step{
		{"pull_orchestra_members", func(c context.Context) error {
			_, err := s.db.Collection("orchestra").UpdateMany(c,
				tenantscope.Filter(bson.M{}, tenantID),
				bson.M{"$pull": bson.M{"memberIds": studentID}})
			return err
		}},
		{"pull_rehearsal_attendance", func(c context.Context) error {
			_, err := s.db.Collection("rehearsal").UpdateMany(c,
				tenantscope.Filter(bson.M{}, tenantID),
				bson.M{"$pull": bson.M{
					"attendance.present": studentID,
					"attendance.absent":  studentID,
				}})
			return err
		}},
		{"delete_attendance_events", func(c context.Context) error {
			_, err := s.db.Collection("activity_attendance").DeleteMany(c,
				tenantscope.Filter(bson.M{"studentId": studentID}, tenantID))
			return err
		}},
	})
	return nil
}

// TeacherDeactivated clears conductorId on every orchestra the teacher was
// conducting within the tenant.
func (s *Store) TeacherDeactivated(ctx context.Context, tenantID string, teacherID primitive.ObjectID) error {
	if err := tenantscope.Require(tenantID); err != nil {
		return err
	}

	s.run(ctx, "teacher_deactivated", tenantID, []step{
		{"unset_orchestra_conductor", func(c context.Context) error {
			_, err := s.db.Collection("orchestra").UpdateMany(c,
				tenantscope.Filter(bson.M{"conductorId": teacherID}, tenantID),
				bson.M{"$unset": bson.M{"conductorId": ""}})
			return err
		}},
	})
	return nil
}

// ReconcileOrchestraRefs re-runs the cleanup writes any logged cascade or
// delete failure may have left behind: mirror entries for inactive
// orchestras, attendance events and bookkeeping entries for deleted
// rehearsals, and conducting mirror entries that no longer match the
// orchestra's conductor. Every write is a no-op when the data is already
// clean, so the sweep can run after any logged failure, or on a schedule,
// without coordination. It returns the number of documents repaired.
func (s *Store) ReconcileOrchestraRefs(ctx context.Context, tenantID string) (int, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return 0, err
	}

	cleaned := 0

	n, err := s.reconcileInactiveOrchestras(ctx, tenantID)
	if err != nil {
		return cleaned, err
	}
	cleaned += n

	n, err = s.reconcileDeletedRehearsals(ctx, tenantID)
	if err != nil {
		return cleaned, err
	}
	cleaned += n

	n, err = s.reconcileConductorMirrors(ctx, tenantID)
	if err != nil {
		return cleaned, err
	}
	cleaned += n

	return cleaned, nil
}

// reconcileInactiveOrchestras re-runs the teacher and student mirror pulls
// for every inactive orchestra in the tenant.
func (s *Store) reconcileInactiveOrchestras(ctx context.Context, tenantID string) (int, error) {
	ids, err := s.orchestraIDs(ctx, tenantID, false)
	if err != nil {
		return 0, apperr.Storage(err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pull := bson.M{"$in": ids}
	cleaned := 0
	res, err := s.db.Collection("teacher").UpdateMany(ctx,
		tenantscope.Filter(bson.M{"conducting.orchestraIds": pull}, tenantID),
		bson.M{"$pull": bson.M{"conducting.orchestraIds": pull}})
	if err != nil {
		return cleaned, apperr.Storage(err)
	}
	cleaned += int(res.ModifiedCount)

	res, err = s.db.Collection("student").UpdateMany(ctx,
		tenantscope.Filter(bson.M{"enrollments.orchestraIds": pull}, tenantID),
		bson.M{"$pull": bson.M{"enrollments.orchestraIds": pull}})
	if err != nil {
		return cleaned, apperr.Storage(err)
	}
	cleaned += int(res.ModifiedCount)
	return cleaned, nil
}

// reconcileDeletedRehearsals deletes attendance events whose rehearsal is
// gone and pulls stale entries from every orchestra's rehearsal
// bookkeeping array.
func (s *Store) reconcileDeletedRehearsals(ctx context.Context, tenantID string) (int, error) {
	cur, err := s.db.Collection("rehearsal").Find(ctx,
		tenantscope.Filter(bson.M{}, tenantID),
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, apperr.Storage(err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, apperr.Storage(err)
	}
	live := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		live = append(live, r.ID)
	}

	cleaned := 0
	del, err := s.db.Collection("activity_attendance").DeleteMany(ctx,
		tenantscope.Filter(bson.M{"rehearsalId": bson.M{"$nin": live}}, tenantID))
	if err != nil {
		return cleaned, apperr.Storage(err)
	}
	cleaned += int(del.DeletedCount)

	res, err := s.db.Collection("orchestra").UpdateMany(ctx,
		tenantscope.Filter(bson.M{}, tenantID),
		bson.M{"$pull": bson.M{"rehearsalIds": bson.M{"$nin": live}}})
	if err != nil {
		return cleaned, apperr.Storage(err)
	}
	cleaned += int(res.ModifiedCount)
	return cleaned, nil
}

// reconcileConductorMirrors pulls an active orchestra out of the
// conducting mirror of every teacher who is not its conductor, repairing a
// failed old-conductor cleanup in a past reassignment.
func (s *Store) reconcileConductorMirrors(ctx context.Context, tenantID string) (int, error) {
	cur, err := s.db.Collection("orchestra").Find(ctx,
		tenantscope.Filter(bson.M{"isActive": true}, tenantID),
		options.Find().SetProjection(bson.M{"_id": 1, "conductorId": 1}))
	if err != nil {
		return 0, apperr.Storage(err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID          primitive.ObjectID `bson:"_id"`
		ConductorID primitive.ObjectID `bson:"conductorId"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, apperr.Storage(err)
	}

	cleaned := 0
	for _, r := range rows {
		res, err := s.db.Collection("teacher").UpdateMany(ctx,
			tenantscope.Filter(bson.M{
				"_id":                     bson.M{"$ne": r.ConductorID},
				"conducting.orchestraIds": r.ID,
			}, tenantID),
			bson.M{"$pull": bson.M{"conducting.orchestraIds": r.ID}})
		if err != nil {
			return cleaned, apperr.Storage(err)
		}
		cleaned += int(res.ModifiedCount)
	}
	return cleaned, nil
}

func (s *Store) orchestraIDs(ctx context.Context, tenantID string, active bool) ([]primitive.ObjectID, error) {
	cur, err := s.db.Collection("orchestra").Find(ctx,
		tenantscope.Filter(bson.M{"isActive": active}, tenantID),
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (s *Store) rehearsalIDs(ctx context.Context, tenantID string, orchestraID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.db.Collection("rehearsal").Find(ctx,
		tenantscope.Filter(bson.M{"groupId": orchestraID}, tenantID),
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}
