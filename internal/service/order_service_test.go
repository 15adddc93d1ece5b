package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ordertrail/potrack/internal/entity"
	"github.com/ordertrail/potrack/internal/testutil"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T) *OrderService {
	t.Helper()
	return NewOrderService(testutil.SetupStore(t), zap.NewNop())
}

func samplePORequest() *CreatePORequest {
	return &CreatePORequest{
		Party:       "Sharma Traders",
		Site:        "site a",
		Destination: "pune",
		Salesman:    "ramesh",
		Items: []POItemInput{
			{Material: "cement ", Quantity: 100, Rate: 350, TaxRatePercent: 5},
			{Material: "Gypsum", Quantity: 10, Rate: 200, TaxRatePercent: 18},
		},
	}
}

func mustDispatch(t *testing.T, s *OrderService, poID string, items []DispatchItemInput) *entity.Dispatch {
	t.Helper()
	d, err := s.AddDispatch(context.Background(), &CreateDispatchRequest{
		POID:          poID,
		VehicleNumber: "MH12AB1234",
		DriverContact: "9876543210",
		DispatchedAt:  time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		Items:         items,
	})
	if err != nil {
		t.Fatalf("AddDispatch failed: %v", err)
	}
	return d
}

func TestCreatePO(t *testing.T) {
	s := newTestEngine(t)

	po, err := s.CreatePO(context.Background(), samplePORequest())
	if err != nil {
		t.Fatalf("CreatePO failed: %v", err)
	}

	if po.ID != "1" {
		t.Errorf("first PO id = %q, want \"1\"", po.ID)
	}
	if po.Status != entity.POStatusPending {
		t.Errorf("status = %q, want pending", po.Status)
	}
	if po.Party != "SHARMA TRADERS" {
		t.Errorf("party not normalized: %q", po.Party)
	}
	if po.Items[0].Material != "CEMENT" {
		t.Errorf("material not canonicalized: %q", po.Items[0].Material)
	}
	// 100*350*1.05 + 10*200*1.18 = 36750 + 2360
	if Round2(po.TotalAmount) != 39110 {
		t.Errorf("total = %v, want 39110", po.TotalAmount)
	}
	if q, ok := po.DispatchedQty["CEMENT"]; !ok || q != 0 {
		t.Errorf("dispatched counter for CEMENT = %v, %v; want 0 present", q, ok)
	}

	// material list extended with previously unseen names only
	materials := s.Materials()
	for _, m := range materials {
		if m == "cement " {
			t.Errorf("material list holds non-canonical name %q", m)
		}
	}
}

func TestCreatePOValidation(t *testing.T) {
	s := newTestEngine(t)
	ctx := context.Background()

	cases := []struct {
		name string
		mut  func(r *CreatePORequest)
	}{
		{"no items", func(r *CreatePORequest) { r.Items = nil }},
		{"empty party", func(r *CreatePORequest) { r.Party = "  " }},
		{"blank material", func(r *CreatePORequest) { r.Items[0].Material = "   " }},
		{"zero quantity", func(r *CreatePORequest) { r.Items[0].Quantity = 0 }},
		{"negative rate", func(r *CreatePORequest) { r.Items[0].Rate = -1 }},
		{"bad tax slab", func(r *CreatePORequest) { r.Items[0].TaxRatePercent = 7 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := samplePORequest()
			tc.mut(req)
			if _, err := s.CreatePO(ctx, req); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestPOIDsMonotonic(t *testing.T) {
	s := newTestEngine(t)
	ctx := context.Background()

	first, _ := s.CreatePO(ctx, samplePORequest())
	second, _ := s.CreatePO(ctx, samplePORequest())
	if first.ID != "1" || second.ID != "2" {
		t.Fatalf("ids = %q, %q; want 1, 2", first.ID, second.ID)
	}

	// cancelled ids are never reused
	if _, err := s.CancelPO(ctx, second.ID); err != nil {
		t.Fatalf("CancelPO failed: %v", err)
	}
	third, _ := s.CreatePO(ctx, samplePORequest())
	if third.ID != "3" {
		t.Errorf("id after cancel = %q, want 3", third.ID)
	}
}

func TestUpdatePOQuantityGuard(t *testing.T) {
	s := newTestEngine(t)
	ctx := context.Background()

	po, _ := s.CreatePO(ctx, samplePORequest())
	mustDispatch(t, s, po.ID, []DispatchItemInput{{Material: "CEMENT", Quantity: 40}})

	// reducing below dispatched fails
	req := &UpdatePORequest{
		Party: po.Party,
		Items: []POItemInput{
			{Material: "CEMENT", Quantity: 30, Rate: 350, TaxRatePercent: 5},
			{Material: "GYPSUM", Quantity: 10, Rate: 200, TaxRatePercent: 18},
		},
	}
	if _, err := s.UpdatePO(ctx, po.ID, req); !errors.Is(err, ErrQuantityViolation) {
		t.Errorf("reduce below dispatched: err = %v, want ErrQuantityViolation", err)
	}

	// removing a dispatched material fails
	req.Items = []POItemInput{{Material: "GYPSUM", Quantity: 10, Rate: 200, TaxRatePercent: 18}}
	if _, err := s.UpdatePO(ctx, po.ID, req); !errors.Is(err, ErrQuantityViolation) {
		t.Errorf("remove dispatched material: err = %v, want ErrQuantityViolation", err)
	}

	// exactly the dispatched quantity is allowed and completes the line
	req.Items = []POItemInput{
		{Material: "CEMENT", Quantity: 40, Rate: 350, TaxRatePercent: 5},
		{Material: "GYPSUM", Quantity: 10, Rate: 200, TaxRatePercent: 18},
	}
	updated, err := s.UpdatePO(ctx, po.ID, req)
	if err != nil {
		t.Fatalf("UpdatePO at dispatched qty failed: %v", err)
	}
	if updated.Status != entity.POStatusPartial {
		t.Errorf("status = %q, want partial (gypsum still open)", updated.Status)
	}
}

func TestUpdatePOCancelledRejected(t *testing.T) {
	s := newTestEngine(t)
	ctx := context.Background()

	po, _ := s.CreatePO(ctx, samplePORequest())
	s.CancelPO(ctx, po.ID)

	req := &UpdatePORequest{Party: "X", Items: []POItemInput{{Material: "CEMENT", Quantity: 5, Rate: 1, TaxRatePercent: 0}}}
	if _, err := s.UpdatePO(ctx, po.ID, req); !errors.Is(err, ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

func TestCancelPO(t *testing.T) {
	s := newTestEngine(t)
	ctx := context.Background()

	if _, err := s.CancelPO(ctx, "99"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cancel missing: err = %v, want ErrNotFound", err)
	}

	po, _ := s.CreatePO(ctx, samplePORequest())

	// completing then cancelling is allowed
	mustDispatch(t, s, po.ID, []DispatchItemInput{
		{Material: "CEMENT", Quantity: 100},
		{Material: "GYPSUM", Quantity: 10},
	})
	got, _ := s.GetPO(po.ID)
	if got.Status != entity.POStatusCompleted {
		t.Fatalf("status = %q, want completed", got.Status)
	}

	cancelled, err := s.CancelPO(ctx, po.ID)
	if err != nil {
		t.Fatalf("CancelPO from completed failed: %v", err)
	}
	if cancelled.Status != entity.POStatusCancelled {
		t.Errorf("status = %q, want cancelled", cancelled.Status)
	}

	if _, err := s.CancelPO(ctx, po.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("double cancel: err = %v, want ErrInvalidState", err)
	}
}

func TestRevisePO(t *testing.T) {
	s := newTestEngine(t)
	ctx := context.Background()

	po, _ := s.CreatePO(ctx, samplePORequest())
	mustDispatch(t, s, po.ID, []DispatchItemInput{{Material: "TILES", Quantity: 5}})

	// revise requires a cancelled source
	if _, err := s.RevisePO(ctx, po.ID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("revise active PO: err = %v, want ErrInvalidState", err)
	}

	s.CancelPO(ctx, po.ID)
	revised, err := s.RevisePO(ctx, po.ID)
	if err != nil {
		t.Fatalf("RevisePO failed: %v", err)
	}

	if revised.ID == po.ID {
		t.Errorf("revised PO reused id %q", po.ID)
	}
	if revised.Status != entity.POStatusPending {
		t.Errorf("revised status = %q, want pending", revised.Status)
	}
	if len(revised.Items) != len(po.Items) {
		t.Errorf("revised items = %d, want %d", len(revised.Items), len(po.Items))
	}
	for m, q := range revised.DispatchedQty {
		if q != 0 {
			t.Errorf("revised counter %s = %v, want 0", m, q)
		}
	}

	// source untouched
	src, _ := s.GetPO(po.ID)
	if src.Status != entity.POStatusCancelled {
		t.Errorf("source status = %q, want cancelled", src.Status)
	}
	if src.DispatchedQty["TILES"] != 5 {
		t.Errorf("source TILES counter = %v, want 5", src.DispatchedQty["TILES"])
	}
}

func TestListPOsFilters(t *testing.T) {
	s := newTestEngine(t)
	ctx := context.Background()

	s.CreatePO(ctx, samplePORequest())
	other := samplePORequest()
	other.Party = "Verma Build"
	other.Items = []POItemInput{{Material: "STEEL", Quantity: 1, Rate: 100, TaxRatePercent: 18}}
	s.CreatePO(ctx, other)

	if got := len(s.ListPOs(map[string]string{})); got != 2 {
		t.Fatalf("unfiltered = %d, want 2", got)
	}
	if got := len(s.ListPOs(map[string]string{"party": "verma build"})); got != 1 {
		t.Errorf("party filter = %d, want 1", got)
	}
	if got := len(s.ListPOs(map[string]string{"search": "steel"})); got != 1 {
		t.Errorf("search filter = %d, want 1", got)
	}
	if got := len(s.ListPOs(map[string]string{"status": entity.POStatusCompleted})); got != 0 {
		t.Errorf("status filter = %d, want 0", got)
	}
}
