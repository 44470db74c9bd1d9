package orchestrastore_test

import (
	"errors"
	"testing"

	orchestrastore "github.com/maestranote/maestranote/internal/app/store/orchestras"
	rosterstore "github.com/maestranote/maestranote/internal/app/store/roster"
	"github.com/maestranote/maestranote/internal/app/system/apperr"
	"github.com/maestranote/maestranote/internal/app/system/indexes"
	"github.com/maestranote/maestranote/internal/domain/models"
	"github.com/maestranote/maestranote/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const tenant = "conservatory-a"

func newTestStore(t *testing.T) (*orchestrastore.Store, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	return orchestrastore.New(db), db
}

func TestStore_Create(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	o, err := store.Create(ctx, tenant, models.Orchestra{Name: "Symphonic Winds"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if o.ID.IsZero() {
		t.Error("Create did not assign an id")
	}
	if o.TenantID != tenant {
		t.Errorf("TenantID: got %q, want %q", o.TenantID, tenant)
	}
	if o.JoinCode == "" {
		t.Error("Create did not assign a join code")
	}
	if o.MemberIDs == nil || o.RehearsalIDs == nil {
		t.Error("edge arrays must be initialized empty, not nil")
	}
	if !o.IsActive {
		t.Error("new orchestra must be active")
	}
}

func TestStore_Create_DuplicateName(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, tenant, models.Orchestra{Name: "Symphonic Winds"}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}

	// Case-folded duplicate within the same tenant is rejected.
	_, err := store.Create(ctx, tenant, models.Orchestra{Name: "SYMPHONIC WINDS"})
	if !errors.Is(err, orchestrastore.ErrDuplicateOrchestraName) {
		t.Fatalf("expected ErrDuplicateOrchestraName, got %v", err)
	}

	// The same name in another tenant is fine.
	if _, err := store.Create(ctx, "conservatory-b", models.Orchestra{Name: "Symphonic Winds"}); err != nil {
		t.Fatalf("Create in other tenant failed: %v", err)
	}
}

func TestStore_Create_EmptyName(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Create(ctx, tenant, models.Orchestra{Name: "   "})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStore_List_TenantScopedAndActiveOnly(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	active, err := store.Create(ctx, tenant, models.Orchestra{Name: "Symphonic Winds"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	inactive, err := store.Create(ctx, tenant, models.Orchestra{Name: "Chamber Strings"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Create(ctx, "conservatory-b", models.Orchestra{Name: "Other Tenant Band"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Deactivate(ctx, tenant, inactive.ID, testutil.AdminCaller(tenant)); err != nil {
		t.Fatalf("Deactivate failed: %v", err)
	}

	out, err := store.List(ctx, tenant, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(out) != 1 || out[0].ID != active.ID {
		t.Errorf("List(active): got %d orchestras, want only the active one", len(out))
	}

	out, err = store.List(ctx, tenant, true)
	if err != nil {
		t.Fatalf("List(includeInactive) failed: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("List(all): got %d orchestras, want 2", len(out))
	}
}

func TestStore_UpdateInfo_RequiresPrivilege(t *testing.T) {
	store, db := newTestStore(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	conductor := fixtures.CreateTeacher(ctx, tenant, "Maria Silva")
	orch := fixtures.CreateOrchestraWithConductor(ctx, tenant, "Chamber Strings", conductor.ID)

	// Assigned conductor can rename.
	got, err := store.UpdateInfo(ctx, tenant, orch.ID, "Chamber Orchestra",
		testutil.ConductorCaller(tenant, conductor.ID))
	if err != nil {
		t.Fatalf("UpdateInfo by conductor failed: %v", err)
	}
	if got.Name != "Chamber Orchestra" {
		t.Errorf("Name: got %q, want %q", got.Name, "Chamber Orchestra")
	}

	// A student cannot.
	student := fixtures.CreateStudent(ctx, tenant, "Ana Petrova")
	_, err = store.UpdateInfo(ctx, tenant, orch.ID, "Renamed Again",
		testutil.StudentCaller(tenant, student.ID))
	if !errors.Is(err, apperr.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestStore_UpdateInfo_PreservesEdges(t *testing.T) {
	store, db := newTestStore(t)
	roster := rosterstore.New(db, zap.NewNop())
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	orch, err := store.Create(ctx, tenant, models.Orchestra{Name: "Symphonic Winds"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	student := fixtures.CreateStudent(ctx, tenant, "Ana Petrova")
	admin := testutil.AdminCaller(tenant)
	if err := roster.AddMember(ctx, tenant, orch.ID, student.ID, admin); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}

	got, err := store.UpdateInfo(ctx, tenant, orch.ID, "Wind Ensemble", admin)
	if err != nil {
		t.Fatalf("UpdateInfo failed: %v", err)
	}
	if !got.HasMember(student.ID) {
		t.Error("UpdateInfo clobbered memberIds")
	}
}

func TestStore_DetailWithMembers(t *testing.T) {
	store, db := newTestStore(t)
	roster := rosterstore.New(db, zap.NewNop())
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	orch, err := store.Create(ctx, tenant, models.Orchestra{Name: "Symphonic Winds"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	student := fixtures.CreateStudent(ctx, tenant, "Ana Petrova")
	if err := roster.AddMember(ctx, tenant, orch.ID, student.ID, testutil.AdminCaller(tenant)); err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	conductor := fixtures.CreateTeacher(ctx, tenant, "Maria Silva")
	if err := roster.SetConductor(ctx, tenant, orch.ID, conductor.ID, testutil.AdminCaller(tenant)); err != nil {
		t.Fatalf("SetConductor failed: %v", err)
	}

	detail, err := store.DetailWithMembers(ctx, tenant, orch.ID)
	if err != nil {
		t.Fatalf("DetailWithMembers failed: %v", err)
	}
	if detail.Name != "Symphonic Winds" {
		t.Errorf("Name: got %q, want %q", detail.Name, "Symphonic Winds")
	}
	if len(detail.Members) != 1 {
		t.Fatalf("Members: got %d, want 1", len(detail.Members))
	}
	if detail.Members[0].FullName != "Ana Petrova" {
		t.Errorf("member name: got %q, want %q", detail.Members[0].FullName, "Ana Petrova")
	}
	if len(detail.Conductor) != 1 || detail.Conductor[0].FullName != "Maria Silva" {
		t.Errorf("conductor join: got %+v, want Maria Silva", detail.Conductor)
	}
}

func TestStore_DetailWithMembers_NotFound(t *testing.T) {
	store, db := newTestStore(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	orch := fixtures.CreateOrchestra(ctx, "conservatory-b", "Foreign Band")

	_, err := store.DetailWithMembers(ctx, tenant, orch.ID)
	if !errors.Is(err, apperr.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound across tenants, got %v", err)
	}
}
