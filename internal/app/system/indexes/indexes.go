// internal/app/system/indexes/indexes.go

// Package indexes creates the indexes the stores depend on. EnsureAll runs
// at startup; every ensure step is idempotent, and problems are aggregated
// so startup can fail fast with the full picture.
package indexes

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// EnsureAll reconciles indexes for every tenant-scoped collection.
//
// The partial unique index on school_year is load-bearing: it is what makes
// concurrent default-year creation collapse to a single isCurrent=true
// document per tenant.
func EnsureAll(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	var problems []string

	steps := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"orchestra", ensureOrchestras},
		{"student", ensureStudents},
		{"teacher", ensureTeachers},
		{"rehearsal", ensureRehearsals},
		{"school_year", ensureSchoolYears},
		{"activity_attendance", ensureActivityAttendance},
	}
	for _, s := range steps {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
			continue
		}
		log.Debug("indexes ensured", zap.String("collection", s.name))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func create(ctx context.Context, db *mongo.Database, coll string, models []mongo.IndexModel) error {
	_, err := db.Collection(coll).Indexes().CreateMany(ctx, models)
	return err
}

func ensureOrchestras(ctx context.Context, db *mongo.Database) error {
	return create(ctx, db, "orchestra", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("tenant_name_ci_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "isActive", Value: 1}},
			Options: options.Index().SetName("tenant_active"),
		},
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "memberIds", Value: 1}},
			Options: options.Index().SetName("tenant_members"),
		},
	})
}

func ensureStudents(ctx context.Context, db *mongo.Database) error {
	return create(ctx, db, "student", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "enrollments.orchestraIds", Value: 1}},
			Options: options.Index().SetName("tenant_enrollments"),
		},
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "isActive", Value: 1}},
			Options: options.Index().SetName("tenant_active"),
		},
	})
}

func ensureTeachers(ctx context.Context, db *mongo.Database) error {
	return create(ctx, db, "teacher", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "conducting.orchestraIds", Value: 1}},
			Options: options.Index().SetName("tenant_conducting"),
		},
	})
}

func ensureRehearsals(ctx context.Context, db *mongo.Database) error {
	return create(ctx, db, "rehearsal", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "groupId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetName("tenant_group_date"),
		},
	})
}

func ensureSchoolYears(ctx context.Context, db *mongo.Database) error {
	return create(ctx, db, "school_year", []mongo.IndexModel{
		{
			// At most one current year per tenant, enforced server-side.
			Keys: bson.D{{Key: "tenantId", Value: 1}},
			Options: options.Index().
				SetName("tenant_current_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"isCurrent": true}),
		},
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "startDate", Value: -1}},
			Options: options.Index().SetName("tenant_start"),
		},
	})
}

func ensureActivityAttendance(ctx context.Context, db *mongo.Database) error {
	return create(ctx, db, "activity_attendance", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "rehearsalId", Value: 1}},
			Options: options.Index().SetName("tenant_rehearsal"),
		},
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "studentId", Value: 1}},
			Options: options.Index().SetName("tenant_student"),
		},
	})
}
