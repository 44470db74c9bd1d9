package orchestras_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/maestranote/maestranote/internal/app/features/orchestras"
	cascadestore "github.com/maestranote/maestranote/internal/app/store/cascade"
	orchestrastore "github.com/maestranote/maestranote/internal/app/store/orchestras"
	rosterstore "github.com/maestranote/maestranote/internal/app/store/roster"
	"github.com/maestranote/maestranote/internal/app/system/authz"
	"github.com/maestranote/maestranote/internal/app/system/txn"
	"github.com/maestranote/maestranote/internal/domain/models"
	"github.com/maestranote/maestranote/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const tenant = "conservatory-a"

func newTestHandler(t *testing.T) (*orchestras.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	h := orchestras.NewHandler(
		orchestrastore.New(db),
		rosterstore.New(db, zap.NewNop()),
		cascadestore.New(db, db.Client(), txn.Unsupported, zap.NewNop()),
		zap.NewNop(),
	)
	return h, testutil.NewFixtures(t, db)
}

// asAdmin stamps the caller-contract headers onto a request.
func asAdmin(r *http.Request, tenantID string) *http.Request {
	c := testutil.AdminCaller(tenantID)
	r.Header.Set(authz.HeaderTenantID, tenantID)
	r.Header.Set(authz.HeaderCallerID, c.ID.Hex())
	r.Header.Set(authz.HeaderAdmin, "true")
	r.Header.Set(authz.HeaderRoles, "admin")
	return r
}

func TestHandleCreate(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest("POST", "/orchestras", strings.NewReader(`{"name":"Symphonic Winds"}`))
	req = asAdmin(req, tenant)
	rec := httptest.NewRecorder()

	h.HandleCreate(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (body: %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var o models.Orchestra
	if err := json.NewDecoder(rec.Body).Decode(&o); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if o.Name != "Symphonic Winds" {
		t.Errorf("Name: got %q", o.Name)
	}
	if o.TenantID != tenant {
		t.Errorf("TenantID: got %q, want %q", o.TenantID, tenant)
	}
}

func TestHandleCreate_RequiresAdmin(t *testing.T) {
	h, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	student := fixtures.CreateStudent(ctx, tenant, "Ana Petrova")

	req := httptest.NewRequest("POST", "/orchestras", strings.NewReader(`{"name":"Symphonic Winds"}`))
	req.Header.Set(authz.HeaderTenantID, tenant)
	req.Header.Set(authz.HeaderCallerID, student.ID.Hex())
	req.Header.Set(authz.HeaderRoles, "student")
	rec := httptest.NewRecorder()

	h.HandleCreate(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestHandleCreate_MissingTenant(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest("POST", "/orchestras", strings.NewReader(`{"name":"X"}`))
	req.Header.Set(authz.HeaderAdmin, "true")
	rec := httptest.NewRecorder()

	h.HandleCreate(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleGet(t *testing.T) {
	h, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	orch := fixtures.CreateOrchestra(ctx, tenant, "Symphonic Winds")

	req := httptest.NewRequest("GET", "/orchestras/"+orch.ID.Hex(), nil)
	req = asAdmin(req, tenant)
	req = testutil.WithChiURLParam(req, "id", orch.ID.Hex())
	rec := httptest.NewRecorder()

	h.HandleGet(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestHandleGet_WrongTenant(t *testing.T) {
	h, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	orch := fixtures.CreateOrchestra(ctx, "conservatory-b", "Foreign Band")

	req := httptest.NewRequest("GET", "/orchestras/"+orch.ID.Hex(), nil)
	req = asAdmin(req, tenant)
	req = testutil.WithChiURLParam(req, "id", orch.ID.Hex())
	rec := httptest.NewRecorder()

	h.HandleGet(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleGet_MalformedID(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest("GET", "/orchestras/not-an-id", nil)
	req = asAdmin(req, tenant)
	req = testutil.WithChiURLParam(req, "id", "not-an-id")
	rec := httptest.NewRecorder()

	h.HandleGet(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleAddMember(t *testing.T) {
	h, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	orch := fixtures.CreateOrchestra(ctx, tenant, "Symphonic Winds")
	student := fixtures.CreateStudent(ctx, tenant, "Ana Petrova")

	req := httptest.NewRequest("POST", "/orchestras/"+orch.ID.Hex()+"/members/"+student.ID.Hex(), nil)
	req = asAdmin(req, tenant)
	req = testutil.WithChiURLParam(req, "id", orch.ID.Hex())
	req = testutil.WithChiURLParam(req, "studentID", student.ID.Hex())
	rec := httptest.NewRecorder()

	h.HandleAddMember(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var gotStudent models.Student
	err := fixtures.DB().Collection("student").FindOne(ctx, bson.M{"_id": student.ID}).Decode(&gotStudent)
	if err != nil {
		t.Fatalf("FindOne student failed: %v", err)
	}
	if !gotStudent.EnrolledIn(orch.ID) {
		t.Error("mirror enrollment missing after add via handler")
	}
}

func TestHandleDeactivate_RunsCascade(t *testing.T) {
	h, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	orch := fixtures.CreateOrchestra(ctx, tenant, "Symphonic Winds")
	student := fixtures.CreateStudent(ctx, tenant, "Ana Petrova")

	addReq := httptest.NewRequest("POST", "/orchestras/"+orch.ID.Hex()+"/members/"+student.ID.Hex(), nil)
	addReq = asAdmin(addReq, tenant)
	addReq = testutil.WithChiURLParam(addReq, "id", orch.ID.Hex())
	addReq = testutil.WithChiURLParam(addReq, "studentID", student.ID.Hex())
	h.HandleAddMember(httptest.NewRecorder(), addReq)

	req := httptest.NewRequest("DELETE", "/orchestras/"+orch.ID.Hex(), nil)
	req = asAdmin(req, tenant)
	req = testutil.WithChiURLParam(req, "id", orch.ID.Hex())
	rec := httptest.NewRecorder()

	h.HandleDeactivate(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var gotOrch models.Orchestra
	if err := fixtures.DB().Collection("orchestra").FindOne(ctx, bson.M{"_id": orch.ID}).Decode(&gotOrch); err != nil {
		t.Fatalf("FindOne orchestra failed: %v", err)
	}
	if gotOrch.IsActive {
		t.Error("orchestra still active after deactivation")
	}

	var gotStudent models.Student
	if err := fixtures.DB().Collection("student").FindOne(ctx, bson.M{"_id": student.ID}).Decode(&gotStudent); err != nil {
		t.Fatalf("FindOne student failed: %v", err)
	}
	if gotStudent.EnrolledIn(orch.ID) {
		t.Error("enrollment mirror survived deactivation cascade")
	}
}
