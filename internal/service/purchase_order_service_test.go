package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ims/internal/model"
	"ims/internal/workflow"

	"github.com/shopspring/decimal"
)

func TestCreateOrderRequiresApprovedRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.createRequest(t)
	_, err := f.orders.Create(ctx, f.storekeeper.ID.String(), CreatePurchaseOrderDTO{
		PurchaseRequestID: pending.ID,
		VendorID:          f.vendor.ID.String(),
	})
	if !errors.Is(err, ErrRequestNotApproved) {
		t.Fatalf("expected pending request to be refused, got %v", err)
	}

	rejected := f.createRequest(t)
	f.decide(t, f.hod, rejected.ID, DecisionDTO{Decision: "reject", Comment: "no"})
	_, err = f.orders.Create(ctx, f.storekeeper.ID.String(), CreatePurchaseOrderDTO{
		PurchaseRequestID: rejected.ID,
		VendorID:          f.vendor.ID.String(),
	})
	if !errors.Is(err, ErrRequestNotApproved) {
		t.Fatalf("expected rejected request to be refused, got %v", err)
	}
}

func TestCreateOrderDefaultsToApprovedItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pr := f.approvedRequest(t)

	po, err := f.orders.Create(ctx, f.storekeeper.ID.String(), CreatePurchaseOrderDTO{
		PurchaseRequestID: pr.ID,
		VendorID:          f.vendor.ID.String(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if !strings.HasPrefix(po.OrderNo, "PO-") {
		t.Errorf("unexpected order number %s", po.OrderNo)
	}
	if po.OrderStatus != model.OrderStatusPending || po.PaymentStatus != model.PaymentStatusUnpaid {
		t.Errorf("unexpected initial statuses %s/%s", po.OrderStatus, po.PaymentStatus)
	}
	if len(po.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(po.Items))
	}
	if !po.TotalAmount.Equal(decimal.NewFromInt(350)) {
		t.Errorf("expected total 350, got %s", po.TotalAmount)
	}
	if po.RequestNo != pr.RequestNo {
		t.Errorf("expected request number %s, got %s", pr.RequestNo, po.RequestNo)
	}

	// Everything is ordered now.
	_, err = f.orders.Create(ctx, f.storekeeper.ID.String(), CreatePurchaseOrderDTO{
		PurchaseRequestID: pr.ID,
		VendorID:          f.vendor.ID.String(),
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected nothing left to order, got %v", err)
	}

	// Cancelling releases the quantities.
	f.setOrderStatus(t, po.ID, model.OrderStatusCancelled)
	if _, err := f.orders.Create(ctx, f.storekeeper.ID.String(), CreatePurchaseOrderDTO{
		PurchaseRequestID: pr.ID,
		VendorID:          f.vendor.ID.String(),
	}); err != nil {
		t.Fatalf("expected cancelled quantities to be orderable again: %v", err)
	}
}

func TestCreateOrderCapsQuantities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pr := f.approvedRequest(t)

	var chair string
	for _, it := range pr.Items {
		if it.Name == "Chair" {
			chair = it.ID
		}
	}

	line := func(qty int) []PurchaseOrderItemInput {
		return []PurchaseOrderItemInput{{PurchaseRequestItemID: chair, Quantity: qty, UnitPrice: decimal.NewFromInt(90)}}
	}

	po, err := f.orders.Create(ctx, f.storekeeper.ID.String(), CreatePurchaseOrderDTO{
		PurchaseRequestID: pr.ID,
		VendorID:          f.vendor.ID.String(),
		Items:             line(2),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if po.Items[0].Name != "Chair" || po.Items[0].CategoryID == nil {
		t.Errorf("expected name and category to default from the request item")
	}
	if !po.TotalAmount.Equal(decimal.NewFromInt(180)) {
		t.Errorf("expected total 180, got %s", po.TotalAmount)
	}

	_, err = f.orders.Create(ctx, f.storekeeper.ID.String(), CreatePurchaseOrderDTO{
		PurchaseRequestID: pr.ID,
		VendorID:          f.vendor.ID.String(),
		Items:             line(2),
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected over-ordering to be refused, got %v", err)
	}

	if _, err := f.orders.Create(ctx, f.storekeeper.ID.String(), CreatePurchaseOrderDTO{
		PurchaseRequestID: pr.ID,
		VendorID:          f.vendor.ID.String(),
		Items:             line(1),
	}); err != nil {
		t.Fatalf("expected the last chair to be orderable: %v", err)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	pr := f.approvedRequest(t)

	inactive := model.Vendor{Name: "Gone Ltd", IsActive: true}
	mustCreate(t, f.db, &inactive)
	if err := f.db.Model(&inactive).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	testCases := []struct {
		name string
		req  CreatePurchaseOrderDTO
	}{
		{"inactive vendor", CreatePurchaseOrderDTO{PurchaseRequestID: pr.ID, VendorID: inactive.ID.String()}},
		{"unknown vendor", CreatePurchaseOrderDTO{PurchaseRequestID: pr.ID, VendorID: f.category.ID.String()}},
		{"unknown request", CreatePurchaseOrderDTO{PurchaseRequestID: f.category.ID.String(), VendorID: f.vendor.ID.String()}},
		{"negative price", CreatePurchaseOrderDTO{PurchaseRequestID: pr.ID, VendorID: f.vendor.ID.String(), Items: []PurchaseOrderItemInput{
			{Name: "Cable", Quantity: 1, UnitPrice: decimal.NewFromInt(-5)},
		}}},
		{"ad-hoc line without name", CreatePurchaseOrderDTO{PurchaseRequestID: pr.ID, VendorID: f.vendor.ID.String(), Items: []PurchaseOrderItemInput{
			{Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
		}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.orders.Create(context.Background(), f.storekeeper.ID.String(), tc.req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestUpdateOrderStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pr := f.approvedRequest(t)
	po, err := f.orders.Create(ctx, f.storekeeper.ID.String(), CreatePurchaseOrderDTO{PurchaseRequestID: pr.ID, VendorID: f.vendor.ID.String()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	update := func(status string) error {
		_, err := f.orders.Update(ctx, f.storekeeper.ID.String(), po.ID, UpdatePurchaseOrderDTO{OrderStatus: &status})
		return err
	}

	err = update(model.OrderStatusReceived)
	if !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Fatalf("expected Pending->Received to be refused, got %v", err)
	}
	if err.Error() != "cannot mark Pending order as Received" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if err := update("Shipped"); !errors.Is(err, workflow.ErrInvalidStatus) {
		t.Errorf("expected invalid status, got %v", err)
	}

	placed := f.setOrderStatus(t, po.ID, model.OrderStatusPlaced)
	if placed.PlacedAt == nil {
		t.Error("expected placed_at to be stamped")
	}
	if err := update(model.OrderStatusPlaced); err != nil {
		t.Errorf("expected same-status update to be a no-op, got %v", err)
	}
	received := f.setOrderStatus(t, po.ID, model.OrderStatusReceived)
	if received.ReceivedAt == nil {
		t.Error("expected received_at to be stamped")
	}
	if err := update(model.OrderStatusCancelled); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("expected Received to be terminal, got %v", err)
	}

	// Cancelling an order does not touch its request.
	got, err := f.requests.Get(ctx, pr.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if got.ApprovalStatus != model.RequestStatusApproved {
		t.Errorf("request status changed to %s", got.ApprovalStatus)
	}
}

func TestUpdateOrderPaymentAndNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po := f.receivedOrder(t)

	paid, note := model.PaymentStatusPaid, "invoice 42"
	got, err := f.orders.Update(ctx, f.storekeeper.ID.String(), po.ID, UpdatePurchaseOrderDTO{PaymentStatus: &paid, Note: &note})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.PaymentStatus != paid || got.Note != note {
		t.Errorf("expected payment %s and note %q, got %s and %q", paid, note, got.PaymentStatus, got.Note)
	}

	bogus := "Refunded"
	if _, err := f.orders.Update(ctx, f.storekeeper.ID.String(), po.ID, UpdatePurchaseOrderDTO{PaymentStatus: &bogus}); !errors.Is(err, workflow.ErrInvalidStatus) {
		t.Errorf("expected invalid payment status, got %v", err)
	}
}

func TestDeleteOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pr := f.approvedRequest(t)
	po, err := f.orders.Create(ctx, f.storekeeper.ID.String(), CreatePurchaseOrderDTO{PurchaseRequestID: pr.ID, VendorID: f.vendor.ID.String()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.setOrderStatus(t, po.ID, model.OrderStatusPlaced)
	if err := f.orders.Delete(ctx, f.admin.ID.String(), po.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected placed order to be kept, got %v", err)
	}

	f.setOrderStatus(t, po.ID, model.OrderStatusCancelled)
	if err := f.orders.Delete(ctx, f.admin.ID.String(), po.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.orders.Get(ctx, po.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	received := f.receivedOrder(t)

	orders, total, err := f.orders.List(ctx, PurchaseOrderFilter{OrderStatus: model.OrderStatusReceived, Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || orders[0].ID != received.ID {
		t.Errorf("expected the received order, got %d rows", total)
	}

	if _, _, err := f.orders.List(ctx, PurchaseOrderFilter{OrderStatus: "Lost"}); !errors.Is(err, workflow.ErrInvalidStatus) {
		t.Errorf("expected invalid status, got %v", err)
	}
}

func TestCreateOrderFromPartiallyApprovedRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pr := f.createRequest(t)
	approve := DecisionDTO{Decision: "approve"}
	f.decide(t, f.hod, pr.ID, approve)
	f.decide(t, f.principal, pr.ID, approve)

	var desk string
	for _, it := range pr.Items {
		if it.Name == "Desk" {
			desk = it.ID
		}
	}
	pr = f.decide(t, f.admin, pr.ID, DecisionDTO{Decision: "approve", RejectedItemIDs: []string{desk}})
	if pr.ApprovalStatus != model.RequestStatusPartiallyApproved {
		t.Fatalf("expected Partially Approved, got %s", pr.ApprovalStatus)
	}

	_, err := f.orders.Create(ctx, f.storekeeper.ID.String(), CreatePurchaseOrderDTO{
		PurchaseRequestID: pr.ID,
		VendorID:          f.vendor.ID.String(),
		Items:             []PurchaseOrderItemInput{{PurchaseRequestItemID: desk, Quantity: 1, UnitPrice: decimal.NewFromInt(50)}},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected rejected line to be refused, got %v", err)
	}

	po, err := f.orders.Create(ctx, f.storekeeper.ID.String(), CreatePurchaseOrderDTO{
		PurchaseRequestID: pr.ID,
		VendorID:          f.vendor.ID.String(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(po.Items) != 1 {
		t.Fatalf("expected only the approved line, got %d", len(po.Items))
	}
	if po.Items[0].Name != "Chair" || po.Items[0].Quantity != 3 {
		t.Errorf("unexpected line %s x%d", po.Items[0].Name, po.Items[0].Quantity)
	}
	if !po.TotalAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("expected total 300, got %s", po.TotalAmount)
	}
}
