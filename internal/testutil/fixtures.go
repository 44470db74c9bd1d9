package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/maestranote/maestranote/internal/app/system/authz"
	"github.com/maestranote/maestranote/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
// Repeated calls accumulate parameters on the same route context.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// AdminCaller returns a caller with tenant-admin privileges.
func AdminCaller(tenantID string) authz.Caller {
	return authz.Caller{
		ID:       primitive.NewObjectID(),
		TenantID: tenantID,
		IsAdmin:  true,
		Roles:    []authz.Role{authz.RoleAdmin},
	}
}

// ConductorCaller returns a caller holding the conductor role with the
// given identity.
func ConductorCaller(tenantID string, teacherID primitive.ObjectID) authz.Caller {
	return authz.Caller{
		ID:       teacherID,
		TenantID: tenantID,
		Roles:    []authz.Role{authz.RoleConductor},
	}
}

// StudentCaller returns a caller holding only the student role.
func StudentCaller(tenantID string, studentID primitive.ObjectID) authz.Caller {
	return authz.Caller{
		ID:       studentID,
		TenantID: tenantID,
		Roles:    []authz.Role{authz.RoleStudent},
	}
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateOrchestra inserts an active orchestra with empty roster and
// rehearsal lists.
func (f *Fixtures) CreateOrchestra(ctx context.Context, tenantID, name string) models.Orchestra {
	f.t.Helper()

	now := time.Now().UTC()
	o := models.Orchestra{
		ID:           primitive.NewObjectID(),
		TenantID:     tenantID,
		Name:         name,
		NameCI:       text.Fold(name),
		JoinCode:     primitive.NewObjectID().Hex(),
		MemberIDs:    []primitive.ObjectID{},
		RehearsalIDs: []primitive.ObjectID{},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := f.db.Collection("orchestra").InsertOne(ctx, o); err != nil {
		f.t.Fatalf("failed to create test orchestra: %v", err)
	}
	return o
}

// CreateOrchestraWithConductor inserts an orchestra whose podium is held by
// the given teacher, and adds the matching conducting mirror entry.
func (f *Fixtures) CreateOrchestraWithConductor(ctx context.Context, tenantID, name string, teacherID primitive.ObjectID) models.Orchestra {
	f.t.Helper()

	o := f.CreateOrchestra(ctx, tenantID, name)
	o.ConductorID = teacherID

	if _, err := f.db.Collection("orchestra").UpdateByID(ctx, o.ID,
		bson.M{"$set": bson.M{"conductorId": teacherID}}); err != nil {
		f.t.Fatalf("failed to set test conductor: %v", err)
	}
	if _, err := f.db.Collection("teacher").UpdateByID(ctx, teacherID,
		bson.M{"$addToSet": bson.M{"conducting.orchestraIds": o.ID}}); err != nil {
		f.t.Fatalf("failed to mirror test conductor: %v", err)
	}
	return o
}

// CreateStudent inserts an active student with no enrollments.
func (f *Fixtures) CreateStudent(ctx context.Context, tenantID, fullName string) models.Student {
	f.t.Helper()

	now := time.Now().UTC()
	s := models.Student{
		ID:         primitive.NewObjectID(),
		TenantID:   tenantID,
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Enrollments: models.StudentEnrollments{
			OrchestraIDs: []primitive.ObjectID{},
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("student").InsertOne(ctx, s); err != nil {
		f.t.Fatalf("failed to create test student: %v", err)
	}
	return s
}

// CreateTeacher inserts an active teacher with no conducting entries.
func (f *Fixtures) CreateTeacher(ctx context.Context, tenantID, fullName string) models.Teacher {
	f.t.Helper()

	now := time.Now().UTC()
	tch := models.Teacher{
		ID:         primitive.NewObjectID(),
		TenantID:   tenantID,
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Conducting: models.TeacherConducting{
			OrchestraIDs: []primitive.ObjectID{},
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("teacher").InsertOne(ctx, tch); err != nil {
		f.t.Fatalf("failed to create test teacher: %v", err)
	}
	return tch
}

// CreateSchoolYear inserts a school year document as given.
func (f *Fixtures) CreateSchoolYear(ctx context.Context, tenantID, name string, start, end time.Time, current bool) models.SchoolYear {
	f.t.Helper()

	now := time.Now().UTC()
	y := models.SchoolYear{
		ID:        primitive.NewObjectID(),
		TenantID:  tenantID,
		Name:      name,
		StartDate: start,
		EndDate:   end,
		IsCurrent: current,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("school_year").InsertOne(ctx, y); err != nil {
		f.t.Fatalf("failed to create test school year: %v", err)
	}
	return y
}

// CreateRehearsal inserts a rehearsal for the given orchestra and updates
// the orchestra's rehearsalIds bookkeeping list.
func (f *Fixtures) CreateRehearsal(ctx context.Context, tenantID string, orchestraID primitive.ObjectID, date time.Time) models.Rehearsal {
	f.t.Helper()

	now := time.Now().UTC()
	r := models.Rehearsal{
		ID:       primitive.NewObjectID(),
		TenantID: tenantID,
		GroupID:  orchestraID,
		Date:     date,
		Attendance: models.Attendance{
			Present: []primitive.ObjectID{},
			Absent:  []primitive.ObjectID{},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("rehearsal").InsertOne(ctx, r); err != nil {
		f.t.Fatalf("failed to create test rehearsal: %v", err)
	}
	if _, err := f.db.Collection("orchestra").UpdateByID(ctx, orchestraID,
		bson.M{"$addToSet": bson.M{"rehearsalIds": r.ID}}); err != nil {
		f.t.Fatalf("failed to track test rehearsal: %v", err)
	}
	return r
}
