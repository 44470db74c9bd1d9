// internal/app/store/roster/rosterstore.go
package rosterstore

// Terminology: relationship sides
//   - Authoritative side: Orchestra.memberIds (and Orchestra.conductorId).
//     Written first; treated as the source of truth.
//   - Mirror side: Student.enrollments.orchestraIds and
//     Teacher.conducting.orchestraIds. Written second; compensated on
//     failure so a one-sided edge is never reported as success.

import (
	"context"
	"fmt"
	"time"

	"github.com/maestranote/maestranote/internal/app/system/apperr"
	"github.com/maestranote/maestranote/internal/app/system/authz"
	"github.com/maestranote/maestranote/internal/app/system/tenantscope"
	"github.com/maestranote/maestranote/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Store maintains the bidirectional orchestra<->student and
// orchestra<->teacher relationships across their collections. All edge
// mutations in the system go through here; nothing else writes the mirror
// arrays.
type Store struct {
	orchestras *mongo.Collection
	students   *mongo.Collection
	teachers   *mongo.Collection
	log        *zap.Logger
}

func New(db *mongo.Database, log *zap.Logger) *Store {
	return &Store{
		orchestras: db.Collection("orchestra"),
		students:   db.Collection("student"),
		teachers:   db.Collection("teacher"),
		log:        log,
	}
}

// loadForEdit fetches the orchestra within the tenant scope and checks the
// caller's privilege on that exact record. Both checks happen before the
// first write so authorization failures never leave partial state.
func (s *Store) loadForEdit(ctx context.Context, tenantID string, orchestraID primitive.ObjectID, caller authz.Caller) (models.Orchestra, error) {
	if err := tenantscope.Require(tenantID); err != nil {
		return models.Orchestra{}, err
	}
	var orch models.Orchestra
	err := s.orchestras.FindOne(ctx, tenantscope.ByID(orchestraID, tenantID)).Decode(&orch)
	if err == mongo.ErrNoDocuments {
		return models.Orchestra{}, apperr.ErrEntityNotFound
	}
	if err != nil {
		return models.Orchestra{}, apperr.Storage(err)
	}
	if !authz.CanEditOrchestra(caller, orch.ConductorID) {
		return models.Orchestra{}, apperr.ErrNotAuthorized
	}
	return orch, nil
}

// AddMember adds the (orchestra, student) edge.
//
// Write order is fixed: authoritative side first, mirror second. If the
// mirror write fails, the authoritative write is compensated, so a crash or
// error can only ever leave the detectable "orchestra updated, student not
// yet" window, which the next successful add resolves. $addToSet keeps the
// whole operation idempotent: re-adding a present member modifies nothing
// and still succeeds.
func (s *Store) AddMember(ctx context.Context, tenantID string, orchestraID, studentID primitive.ObjectID, caller authz.Caller) error {
	if _, err := s.loadForEdit(ctx, tenantID, orchestraID, caller); err != nil {
		return err
	}

	now := time.Now().UTC()

	res, err := s.orchestras.UpdateOne(ctx,
		tenantscope.ByID(orchestraID, tenantID),
		bson.M{
			"$addToSet": bson.M{"memberIds": studentID},
			"$set":      bson.M{"updatedAt": now},
		})
	if err != nil {
		return apperr.Storage(err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrEntityNotFound
	}
	added := res.ModifiedCount > 0

	mres, merr := s.students.UpdateOne(ctx,
		tenantscope.ByID(studentID, tenantID),
		bson.M{
			"$addToSet": bson.M{"enrollments.orchestraIds": orchestraID},
			"$set":      bson.M{"updatedAt": now},
		})
	if merr == nil && mres.MatchedCount == 0 {
		merr = apperr.ErrEntityNotFound
	}
	if merr == nil {
		return nil
	}

	// Mirror write failed: undo the authoritative write, but only if this
	// call actually created it. A pre-existing membership is not ours to
	// remove.
	if added {
		if cerr := s.pullMember(ctx, tenantID, orchestraID, studentID); cerr != nil {
			s.log.Error("member add rollback failed, one-sided edge persists",
				zap.String("data_integrity", "one_sided_edge"),
				zap.String("tenant_id", tenantID),
				zap.String("orchestra_id", orchestraID.Hex()),
				zap.String("student_id", studentID.Hex()),
				zap.NamedError("mirror_error", merr),
				zap.NamedError("rollback_error", cerr))
			return fmt.Errorf("%w: mirror: %v, rollback: %v", apperr.ErrSyncRollback, merr, cerr)
		}
	}
	return apperr.Storage(merr)
}

// RemoveMember removes the (orchestra, student) edge: pull from the
// authoritative side first, mirror second, and re-add on mirror failure to
// restore the prior state. Removing an absent member matches zero documents
// on both sides and succeeds.
func (s *Store) RemoveMember(ctx context.Context, tenantID string, orchestraID, studentID primitive.ObjectID, caller authz.Caller) error {
	if _, err := s.loadForEdit(ctx, tenantID, orchestraID, caller); err != nil {
		return err
	}

	now := time.Now().UTC()

	res, err := s.orchestras.UpdateOne(ctx,
		tenantscope.ByID(orchestraID, tenantID),
		bson.M{
			"$pull": bson.M{"memberIds": studentID},
			"$set":  bson.M{"updatedAt": now},
		})
	if err != nil {
		return apperr.Storage(err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrEntityNotFound
	}
	removed := res.ModifiedCount > 0

	mres, merr := s.students.UpdateOne(ctx,
		tenantscope.ByID(studentID, tenantID),
		bson.M{
			"$pull": bson.M{"enrollments.orchestraIds": orchestraID},
			"$set":  bson.M{"updatedAt": now},
		})
	if merr == nil && mres.MatchedCount == 0 && removed {
		// The authoritative side listed a student that does not resolve in
		// this tenant. Restore and surface it rather than leaving the two
		// sides silently diverged.
		merr = apperr.ErrEntityNotFound
	}
	if merr == nil {
		return nil
	}

	if removed {
		if cerr := s.addMemberBack(ctx, tenantID, orchestraID, studentID); cerr != nil {
			s.log.Error("member remove rollback failed, one-sided edge persists",
				zap.String("data_integrity", "one_sided_edge"),
				zap.String("tenant_id", tenantID),
				zap.String("orchestra_id", orchestraID.Hex()),
				zap.String("student_id", studentID.Hex()),
				zap.NamedError("mirror_error", merr),
				zap.NamedError("rollback_error", cerr))
			return fmt.Errorf("%w: mirror: %v, rollback: %v", apperr.ErrSyncRollback, merr, cerr)
		}
	}
	return apperr.Storage(merr)
}

// SetConductor reassigns conductorId and keeps both teachers' conducting
// mirrors in step. The new-teacher mirror is the paired dual write and is
// compensated on failure; the pull from the previous teacher is cascade
// cleanup: idempotent, logged on failure, retried by the reconciliation
// sweep rather than rolled back.
//
// A zero newTeacherID clears the podium.
func (s *Store) SetConductor(ctx context.Context, tenantID string, orchestraID, newTeacherID primitive.ObjectID, caller authz.Caller) error {
	orch, err := s.loadForEdit(ctx, tenantID, orchestraID, caller)
	if err != nil {
		return err
	}
	if orch.ConductorID == newTeacherID {
		return nil
	}

	now := time.Now().UTC()

	update := bson.M{"$set": bson.M{"conductorId": newTeacherID, "updatedAt": now}}
	if newTeacherID.IsZero() {
		update = bson.M{"$unset": bson.M{"conductorId": ""}, "$set": bson.M{"updatedAt": now}}
	}
	res, err := s.orchestras.UpdateOne(ctx, tenantscope.ByID(orchestraID, tenantID), update)
	if err != nil {
		return apperr.Storage(err)
	}
	if res.MatchedCount == 0 {
		return apperr.ErrEntityNotFound
	}

	if !newTeacherID.IsZero() {
		mres, merr := s.teachers.UpdateOne(ctx,
			tenantscope.ByID(newTeacherID, tenantID),
			bson.M{
				"$addToSet": bson.M{"conducting.orchestraIds": orchestraID},
				"$set":      bson.M{"updatedAt": now},
			})
		if merr == nil && mres.MatchedCount == 0 {
			merr = apperr.ErrEntityNotFound
		}
		if merr != nil {
			if cerr := s.restoreConductor(ctx, tenantID, orchestraID, orch.ConductorID); cerr != nil {
				s.log.Error("conductor reassignment rollback failed",
					zap.String("data_integrity", "one_sided_edge"),
					zap.String("tenant_id", tenantID),
					zap.String("orchestra_id", orchestraID.Hex()),
					zap.String("teacher_id", newTeacherID.Hex()),
					zap.NamedError("mirror_error", merr),
					zap.NamedError("rollback_error", cerr))
				return fmt.Errorf("%w: mirror: %v, rollback: %v", apperr.ErrSyncRollback, merr, cerr)
			}
			return apperr.Storage(merr)
		}
	}

	if !orch.ConductorID.IsZero() {
		_, perr := s.teachers.UpdateOne(ctx,
			tenantscope.ByID(orch.ConductorID, tenantID),
			bson.M{
				"$pull": bson.M{"conducting.orchestraIds": orchestraID},
				"$set":  bson.M{"updatedAt": now},
			})
		if perr != nil {
			s.log.Warn("previous conductor mirror cleanup failed; reconciliation will retry",
				zap.String("tenant_id", tenantID),
				zap.String("orchestra_id", orchestraID.Hex()),
				zap.String("teacher_id", orch.ConductorID.Hex()),
				zap.Error(perr))
		}
	}
	return nil
}

func (s *Store) pullMember(ctx context.Context, tenantID string, orchestraID, studentID primitive.ObjectID) error {
	_, err := s.orchestras.UpdateOne(ctx,
		tenantscope.ByID(orchestraID, tenantID),
		bson.M{"$pull": bson.M{"memberIds": studentID}})
	return err
}

func (s *Store) addMemberBack(ctx context.Context, tenantID string, orchestraID, studentID primitive.ObjectID) error {
	_, err := s.orchestras.UpdateOne(ctx,
		tenantscope.ByID(orchestraID, tenantID),
		bson.M{"$addToSet": bson.M{"memberIds": studentID}})
	return err
}

func (s *Store) restoreConductor(ctx context.Context, tenantID string, orchestraID, prev primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{"conductorId": prev}}
	if prev.IsZero() {
		update = bson.M{"$unset": bson.M{"conductorId": ""}}
	}
	_, err := s.orchestras.UpdateOne(ctx, tenantscope.ByID(orchestraID, tenantID), update)
	return err
}
