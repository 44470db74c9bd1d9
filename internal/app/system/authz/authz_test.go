package authz_test

import (
	"net/http/httptest"
	"testing"

	"github.com/maestranote/maestranote/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		want authz.Role
		ok   bool
	}{
		{"admin", authz.RoleAdmin, true},
		{"CONDUCTOR", authz.RoleConductor, true},
		{"  teacher  ", authz.RoleTeacher, true},
		{"student", authz.RoleStudent, true},
		{"principal", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := authz.ParseRole(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseRole(%q): got (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCanEditOrchestra(t *testing.T) {
	conductorID := primitive.NewObjectID()
	otherID := primitive.NewObjectID()

	cases := []struct {
		name        string
		caller      authz.Caller
		conductorID primitive.ObjectID
		want        bool
	}{
		{
			"admin always",
			authz.Caller{ID: otherID, IsAdmin: true},
			conductorID, true,
		},
		{
			"admin on unassigned podium",
			authz.Caller{ID: otherID, IsAdmin: true},
			primitive.NilObjectID, true,
		},
		{
			"assigned conductor",
			authz.Caller{ID: conductorID, Roles: []authz.Role{authz.RoleConductor}},
			conductorID, true,
		},
		{
			"conductor of a different orchestra",
			authz.Caller{ID: otherID, Roles: []authz.Role{authz.RoleConductor}},
			conductorID, false,
		},
		{
			"conductor role, no conductor assigned",
			authz.Caller{ID: conductorID, Roles: []authz.Role{authz.RoleConductor}},
			primitive.NilObjectID, false,
		},
		{
			"matching id without conductor role",
			authz.Caller{ID: conductorID, Roles: []authz.Role{authz.RoleTeacher}},
			conductorID, false,
		},
		{
			"student",
			authz.Caller{ID: otherID, Roles: []authz.Role{authz.RoleStudent}},
			conductorID, false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := authz.CanEditOrchestra(tc.caller, tc.conductorID); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFromRequest(t *testing.T) {
	id := primitive.NewObjectID()

	req := httptest.NewRequest("GET", "/orchestras", nil)
	req.Header.Set(authz.HeaderTenantID, " conservatory-a ")
	req.Header.Set(authz.HeaderCallerID, id.Hex())
	req.Header.Set(authz.HeaderRoles, "conductor, teacher, bogus")
	req.Header.Set(authz.HeaderAdmin, "TRUE")

	c := authz.FromRequest(req)
	if c.TenantID != "conservatory-a" {
		t.Errorf("TenantID: got %q", c.TenantID)
	}
	if c.ID != id {
		t.Errorf("ID: got %s, want %s", c.ID.Hex(), id.Hex())
	}
	if !c.IsAdmin {
		t.Error("IsAdmin: got false")
	}
	if len(c.Roles) != 2 || !c.HasRole(authz.RoleConductor) || !c.HasRole(authz.RoleTeacher) {
		t.Errorf("Roles: got %v", c.Roles)
	}
}

func TestFromRequest_MalformedCallerID(t *testing.T) {
	req := httptest.NewRequest("GET", "/orchestras", nil)
	req.Header.Set(authz.HeaderTenantID, "conservatory-a")
	req.Header.Set(authz.HeaderCallerID, "not-an-objectid")

	c := authz.FromRequest(req)
	if !c.ID.IsZero() {
		t.Errorf("expected zero caller id, got %s", c.ID.Hex())
	}
}
