package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ordertrail/potrack/internal/blob"
	"github.com/ordertrail/potrack/internal/entity"
	"go.uber.org/zap"
)

func newFileStore(t *testing.T, dir string) *Store {
	t.Helper()
	blobs, err := blob.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return NewStore(blobs, zap.NewNop())
}

func samplePO(id string) *entity.PurchaseOrder {
	return &entity.PurchaseOrder{
		ID:     id,
		Party:  "SHARMA TRADERS",
		Status: entity.POStatusPending,
		Items: []entity.MaterialLine{
			{Material: "CEMENT", Quantity: 100, Rate: 350, TaxRatePercent: 5},
		},
		DispatchedQty: map[string]float64{"CEMENT": 0},
		CreatedAt:     time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func sampleDispatch(id, poID string, day time.Time) *entity.Dispatch {
	return &entity.Dispatch{
		ID:            id,
		POID:          poID,
		VehicleNumber: "MH12AB1234",
		Items:         []entity.DispatchItem{{Material: "CEMENT", Quantity: 10}},
		DispatchedAt:  day,
		CreatedAt:     day,
		UpdatedAt:     day,
	}
}

func TestNextPOID(t *testing.T) {
	s := newFileStore(t, t.TempDir())
	ctx := context.Background()

	if id := s.NextPOID(); id != "1" {
		t.Errorf("empty store NextPOID = %q, want 1", id)
	}

	s.InsertPO(ctx, samplePO("1"))
	s.InsertPO(ctx, samplePO("7"))
	if id := s.NextPOID(); id != "8" {
		t.Errorf("NextPOID = %q, want 8", id)
	}
}

func TestInsertAndSaveSemantics(t *testing.T) {
	s := newFileStore(t, t.TempDir())
	ctx := context.Background()

	po := samplePO("1")
	if err := s.InsertPO(ctx, po); err != nil {
		t.Fatalf("InsertPO failed: %v", err)
	}
	if err := s.InsertPO(ctx, po); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate insert: err = %v, want ErrExists", err)
	}

	po.Status = entity.POStatusPartial
	if err := s.SavePO(ctx, po); err != nil {
		t.Fatalf("SavePO failed: %v", err)
	}
	if err := s.SavePO(ctx, samplePO("9")); !errors.Is(err, ErrNotFound) {
		t.Errorf("save missing: err = %v, want ErrNotFound", err)
	}

	if got := s.FindPO("1"); got == nil || got.Status != entity.POStatusPartial {
		t.Errorf("FindPO = %+v", got)
	}
	if got := s.FindPO("9"); got != nil {
		t.Errorf("absent id returned %+v, want nil", got)
	}
}

func TestFindReturnsCopies(t *testing.T) {
	s := newFileStore(t, t.TempDir())
	ctx := context.Background()

	s.InsertPO(ctx, samplePO("1"))
	got := s.FindPO("1")
	got.DispatchedQty["CEMENT"] = 999
	got.Items[0].Quantity = 1

	again := s.FindPO("1")
	if again.DispatchedQty["CEMENT"] != 0 || again.Items[0].Quantity != 100 {
		t.Errorf("mutating a returned PO leaked into the store: %+v", again)
	}
}

func TestDispatchOrdering(t *testing.T) {
	s := newFileStore(t, t.TempDir())
	ctx := context.Background()

	s.InsertPO(ctx, samplePO("1"))
	d1 := sampleDispatch("D20260810-aaaa", "1", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC))
	d2 := sampleDispatch("D20260812-bbbb", "1", time.Date(2026, 8, 12, 0, 0, 0, 0, time.UTC))
	s.InsertDispatch(ctx, d1)
	s.InsertDispatch(ctx, d2)

	got := s.FindDispatchesByPO("1")
	if len(got) != 2 || got[0].ID != d2.ID {
		t.Errorf("dispatches not sorted by date desc: %v, %v", got[0].ID, got[1].ID)
	}
}

// TestRoundTrip persists a full ledger and reloads it through a fresh store.
func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := newFileStore(t, dir)
	ctx := context.Background()

	po := samplePO("1")
	po.DispatchedQty["CEMENT"] = 10
	po.Status = entity.POStatusPartial
	s.InsertPO(ctx, po)
	s.InsertDispatch(ctx, sampleDispatch("D20260810-aaaa", "1", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)))
	s.EnsureMaterial(ctx, "putty")
	s.SetDateFilter(ctx, "2026-08-01", "2026-08-31")

	reloaded := newFileStore(t, dir)
	reloaded.Load(ctx)

	gotPO := reloaded.FindPO("1")
	if gotPO == nil {
		t.Fatal("PO lost in round trip")
	}
	want := s.FindPO("1")
	if gotPO.Status != want.Status ||
		!reflect.DeepEqual(gotPO.Items, want.Items) ||
		!reflect.DeepEqual(gotPO.DispatchedQty, want.DispatchedQty) ||
		!gotPO.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("PO mismatch after reload:\n got %+v\nwant %+v", gotPO, want)
	}

	gotD := reloaded.FindDispatch("D20260810-aaaa")
	if gotD == nil {
		t.Fatal("dispatch lost in round trip")
	}
	wantD := s.FindDispatch("D20260810-aaaa")
	if gotD.POID != wantD.POID ||
		!reflect.DeepEqual(gotD.Items, wantD.Items) ||
		!gotD.DispatchedAt.Equal(wantD.DispatchedAt) {
		t.Errorf("dispatch mismatch after reload: %+v", gotD)
	}

	materials := reloaded.Materials()
	found := false
	for _, m := range materials {
		if m == "PUTTY" {
			found = true
		}
	}
	if !found {
		t.Errorf("materials lost in round trip: %v", materials)
	}

	from, to := reloaded.DateFilter()
	if from != "2026-08-01" || to != "2026-08-31" {
		t.Errorf("date filter lost: %q, %q", from, to)
	}
}

// TestLoadCorruptSnapshot verifies startup survives malformed blobs.
func TestLoadCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "purchase_orders.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "materials.json"), []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := newFileStore(t, dir)
	s.Load(context.Background())

	if got := len(s.ListPOs()); got != 0 {
		t.Errorf("POs from corrupt snapshot = %d, want 0", got)
	}
	// an empty materials blob falls back to the bundled defaults
	if got := len(s.Materials()); got != len(entity.DefaultMaterials) {
		t.Errorf("materials = %d, want %d defaults", got, len(entity.DefaultMaterials))
	}
}

func TestEnsureMaterial(t *testing.T) {
	s := newFileStore(t, t.TempDir())
	ctx := context.Background()

	before := len(s.Materials())
	s.EnsureMaterial(ctx, "  putty ")
	s.EnsureMaterial(ctx, "PUTTY")
	s.EnsureMaterial(ctx, "")

	materials := s.Materials()
	if len(materials) != before+1 {
		t.Errorf("materials = %d, want %d", len(materials), before+1)
	}
	if materials[len(materials)-1] != "PUTTY" {
		t.Errorf("appended material = %q, want PUTTY", materials[len(materials)-1])
	}
}
