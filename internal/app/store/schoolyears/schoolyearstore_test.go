package schoolyearstore_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	schoolyearstore "github.com/maestranote/maestranote/internal/app/store/schoolyears"
	"github.com/maestranote/maestranote/internal/app/system/apperr"
	"github.com/maestranote/maestranote/internal/app/system/indexes"
	"github.com/maestranote/maestranote/internal/domain/models"
	"github.com/maestranote/maestranote/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const tenant = "conservatory-a"

// newTestStore sets up a store with the real index set, since the
// single-current-year guarantee depends on the partial unique index.
func newTestStore(t *testing.T) (*schoolyearstore.Store, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	return schoolyearstore.New(db), db
}

func TestDefaultYear(t *testing.T) {
	now := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)
	y := schoolyearstore.DefaultYear(tenant, now)

	if y.Name != "2026-2027" {
		t.Errorf("Name: got %q, want %q", y.Name, "2026-2027")
	}
	want := time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC)
	if !y.StartDate.Equal(want) {
		t.Errorf("StartDate: got %v, want %v", y.StartDate, want)
	}
	want = time.Date(2027, time.August, 1, 0, 0, 0, 0, time.UTC)
	if !y.EndDate.Equal(want) {
		t.Errorf("EndDate: got %v, want %v", y.EndDate, want)
	}
	if !y.IsCurrent || !y.IsActive {
		t.Error("default year must be current and active")
	}
}

func TestStore_GetCurrent_SynthesizesDefault(t *testing.T) {
	store, db := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	year, err := store.GetCurrent(ctx, tenant)
	if err != nil {
		t.Fatalf("GetCurrent failed: %v", err)
	}
	if !year.IsCurrent {
		t.Error("synthesized year is not current")
	}
	if year.TenantID != tenant {
		t.Errorf("TenantID: got %q, want %q", year.TenantID, tenant)
	}

	count, err := db.Collection("school_year").CountDocuments(ctx, bson.M{"tenantId": tenant})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 persisted year, got %d", count)
	}

	// A second call returns the same document rather than inserting again.
	again, err := store.GetCurrent(ctx, tenant)
	if err != nil {
		t.Fatalf("second GetCurrent failed: %v", err)
	}
	if again.ID != year.ID {
		t.Errorf("second GetCurrent returned a different year: %s vs %s", again.ID.Hex(), year.ID.Hex())
	}
}

func TestStore_GetCurrent_Concurrent(t *testing.T) {
	store, db := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.GetCurrent(ctx, tenant)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("GetCurrent #%d failed: %v", i, err)
		}
	}

	count, err := db.Collection("school_year").CountDocuments(ctx,
		bson.M{"tenantId": tenant, "isCurrent": true})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 current year, got %d", count)
	}
}

func TestStore_GetCurrent_PerTenant(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a, err := store.GetCurrent(ctx, "conservatory-a")
	if err != nil {
		t.Fatalf("GetCurrent(a) failed: %v", err)
	}
	b, err := store.GetCurrent(ctx, "conservatory-b")
	if err != nil {
		t.Fatalf("GetCurrent(b) failed: %v", err)
	}
	if a.ID == b.ID {
		t.Error("tenants share a school year document")
	}
}

func TestStore_Create_SecondCurrentUnsetsFirst(t *testing.T) {
	store, db := newTestStore(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	first := fixtures.CreateSchoolYear(ctx, tenant, "2025-2026",
		time.Date(2025, time.August, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC), true)

	next := schoolyearstore.DefaultYear(tenant, time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC))
	created, err := store.Create(ctx, tenant, next)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !created.IsCurrent {
		t.Error("created year is not current")
	}

	got, err := store.GetByID(ctx, tenant, first.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.IsCurrent {
		t.Error("previous current year was not unset")
	}
}

func TestStore_Create_Validation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cases := []struct {
		name string
		year func() (n string, start, end time.Time)
	}{
		{"empty name", func() (string, time.Time, time.Time) {
			return "", time.Now(), time.Now().AddDate(1, 0, 0)
		}},
		{"zero start", func() (string, time.Time, time.Time) {
			return "2026-2027", time.Time{}, time.Now()
		}},
		{"zero end", func() (string, time.Time, time.Time) {
			return "2026-2027", time.Now(), time.Time{}
		}},
		{"end before start", func() (string, time.Time, time.Time) {
			return "2026-2027", time.Now(), time.Now().AddDate(-1, 0, 0)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			name, start, end := tc.year()
			_, err := store.Create(ctx, tenant, models.SchoolYear{
				Name:      name,
				StartDate: start,
				EndDate:   end,
			})
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestStore_SetCurrent(t *testing.T) {
	store, db := newTestStore(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	first := fixtures.CreateSchoolYear(ctx, tenant, "2025-2026",
		time.Date(2025, time.August, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC), true)
	second := fixtures.CreateSchoolYear(ctx, tenant, "2026-2027",
		time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2027, time.August, 1, 0, 0, 0, 0, time.UTC), false)

	got, err := store.SetCurrent(ctx, tenant, second.ID)
	if err != nil {
		t.Fatalf("SetCurrent failed: %v", err)
	}
	if !got.IsCurrent {
		t.Error("target year is not current after SetCurrent")
	}

	count, err := db.Collection("school_year").CountDocuments(ctx,
		bson.M{"tenantId": tenant, "isCurrent": true})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 current year, got %d", count)
	}

	old, err := store.GetByID(ctx, tenant, first.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if old.IsCurrent {
		t.Error("previous current year still marked current")
	}
}

func TestStore_SetCurrent_UnknownYear(t *testing.T) {
	store, db := newTestStore(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// A year belonging to another tenant must not be reachable.
	foreign := fixtures.CreateSchoolYear(ctx, "conservatory-b", "2026-2027",
		time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2027, time.August, 1, 0, 0, 0, 0, time.UTC), true)

	_, err := store.SetCurrent(ctx, tenant, foreign.ID)
	if !errors.Is(err, apperr.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestStore_Rollover(t *testing.T) {
	store, db := newTestStore(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	prev := fixtures.CreateSchoolYear(ctx, tenant, "2025-2026",
		time.Date(2025, time.August, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC), true)

	next, err := store.Rollover(ctx, tenant, prev.ID)
	if err != nil {
		t.Fatalf("Rollover failed: %v", err)
	}

	wantStart := time.Date(2026, time.August, 2, 0, 0, 0, 0, time.UTC)
	if !next.StartDate.Equal(wantStart) {
		t.Errorf("StartDate: got %v, want %v", next.StartDate, wantStart)
	}
	wantEnd := time.Date(2027, time.August, 1, 0, 0, 0, 0, time.UTC)
	if !next.EndDate.Equal(wantEnd) {
		t.Errorf("EndDate: got %v, want %v", next.EndDate, wantEnd)
	}
	if next.Name != "2026-2027" {
		t.Errorf("Name: got %q, want %q", next.Name, "2026-2027")
	}
	if !next.IsCurrent {
		t.Error("rolled-over year is not current")
	}

	old, err := store.GetByID(ctx, tenant, prev.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if old.IsCurrent {
		t.Error("previous year still current after rollover")
	}

	count, err := db.Collection("school_year").CountDocuments(ctx,
		bson.M{"tenantId": tenant, "isCurrent": true})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 current year, got %d", count)
	}
}

func TestStore_Update_DoesNotTouchCurrent(t *testing.T) {
	store, db := newTestStore(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	year := fixtures.CreateSchoolYear(ctx, tenant, "2025-2026",
		time.Date(2025, time.August, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC), true)

	got, err := store.Update(ctx, tenant, year.ID, "2025/26",
		year.StartDate, year.EndDate.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Name != "2025/26" {
		t.Errorf("Name: got %q, want %q", got.Name, "2025/26")
	}
	if !got.IsCurrent {
		t.Error("Update cleared the current flag")
	}
}
