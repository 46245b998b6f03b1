package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"ims/internal/model"
	"ims/internal/workflow"

	"github.com/xuri/excelize/v2"
)

func orderLine(t *testing.T, po *PurchaseOrderResponse, name string) PurchaseOrderItemResponse {
	t.Helper()
	for _, it := range po.Items {
		if it.Name == name {
			return it
		}
	}
	t.Fatalf("order %s has no line %s", po.OrderNo, name)
	return PurchaseOrderItemResponse{}
}

func TestBulkCreateRequiresReceivedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pr := f.approvedRequest(t)
	po, err := f.orders.Create(ctx, f.storekeeper.ID.String(), CreatePurchaseOrderDTO{PurchaseRequestID: pr.ID, VendorID: f.vendor.ID.String()})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	for _, status := range []string{"", model.OrderStatusPlaced} {
		if status != "" {
			f.setOrderStatus(t, po.ID, status)
		}
		_, err := f.stock.BulkCreate(ctx, f.storekeeper.ID.String(), BulkCreateStockDTO{PurchaseOrderID: po.ID})
		if !errors.Is(err, ErrOrderNotReceived) {
			t.Fatalf("expected stock to be refused, got %v", err)
		}
	}

	f.setOrderStatus(t, po.ID, model.OrderStatusCancelled)
	if _, err := f.stock.BulkCreate(ctx, f.storekeeper.ID.String(), BulkCreateStockDTO{PurchaseOrderID: po.ID}); !errors.Is(err, ErrOrderNotReceived) {
		t.Fatalf("expected cancelled order to be refused, got %v", err)
	}
}

func TestBulkCreateOneRowPerUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po := f.receivedOrder(t)
	chair := orderLine(t, po, "Chair")

	items, err := f.stock.BulkCreate(ctx, f.storekeeper.ID.String(), BulkCreateStockDTO{
		PurchaseOrderID: po.ID,
		LocationID:      f.location.ID.String(),
		Items:           []BulkStockLine{{PurchaseOrderItemID: chair.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("bulk create: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 units, got %d", len(items))
	}
	for i, it := range items {
		wantTag := fmt.Sprintf("%s-%03d", po.OrderNo, i+1)
		if it.AssetTag != wantTag {
			t.Errorf("unit %d: expected tag %s, got %s", i, wantTag, it.AssetTag)
		}
		if it.PurchaseOrderItemID != chair.ID || it.Status != model.StockStatusInStock {
			t.Errorf("unit %d: unexpected line %s status %s", i, it.PurchaseOrderItemID, it.Status)
		}
		if it.LocationID == nil || *it.LocationID != f.location.ID {
			t.Errorf("unit %d: expected location to be set", i)
		}
	}

	// Two chairs would exceed the one left.
	_, err = f.stock.BulkCreate(ctx, f.storekeeper.ID.String(), BulkCreateStockDTO{
		PurchaseOrderID: po.ID,
		Items:           []BulkStockLine{{PurchaseOrderItemID: chair.ID, Quantity: 2}},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected over-receipt to be refused, got %v", err)
	}

	// Omitting items receives whatever is left: one chair and one desk.
	rest, err := f.stock.BulkCreate(ctx, f.storekeeper.ID.String(), BulkCreateStockDTO{PurchaseOrderID: po.ID})
	if err != nil {
		t.Fatalf("bulk create rest: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("expected 2 remaining units, got %d", len(rest))
	}
	if rest[0].AssetTag != po.OrderNo+"-003" || rest[1].AssetTag != po.OrderNo+"-004" {
		t.Errorf("expected numbering to continue, got %s and %s", rest[0].AssetTag, rest[1].AssetTag)
	}

	if _, err := f.stock.BulkCreate(ctx, f.storekeeper.ID.String(), BulkCreateStockDTO{PurchaseOrderID: po.ID}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected a fully received order to refuse more stock, got %v", err)
	}

	_, total, err := f.stock.List(ctx, StockFilter{PurchaseOrderID: po.ID, Page: 1, Limit: 50})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 4 {
		t.Errorf("expected 4 units in stock, got %d", total)
	}
}

func TestBulkCreateRejectsForeignLine(t *testing.T) {
	f := newFixture(t)
	first := f.receivedOrder(t)
	second := f.receivedOrder(t)

	_, err := f.stock.BulkCreate(context.Background(), f.storekeeper.ID.String(), BulkCreateStockDTO{
		PurchaseOrderID: first.ID,
		Items:           []BulkStockLine{{PurchaseOrderItemID: second.Items[0].ID, Quantity: 1}},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected a line from another order to be refused, got %v", err)
	}
}

func TestUpdateStockAnyStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po := f.receivedOrder(t)
	items, err := f.stock.BulkCreate(ctx, f.storekeeper.ID.String(), BulkCreateStockDTO{PurchaseOrderID: po.ID})
	if err != nil {
		t.Fatalf("bulk create: %v", err)
	}
	unit := items[0]

	for _, status := range []string{model.StockStatusTrash, model.StockStatusInService, model.StockStatusInStock, model.StockStatusAllocated} {
		status := status
		got, err := f.stock.Update(ctx, f.storekeeper.ID.String(), unit.ID, UpdateStockItemDTO{Status: &status})
		if err != nil {
			t.Fatalf("set %s: %v", status, err)
		}
		if got.Status != status {
			t.Errorf("expected %s, got %s", status, got.Status)
		}
	}

	bogus := "Broken"
	if _, err := f.stock.Update(ctx, f.storekeeper.ID.String(), unit.ID, UpdateStockItemDTO{Status: &bogus}); !errors.Is(err, workflow.ErrInvalidStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}

	loc := f.location.ID.String()
	remarks := "moved to lab"
	got, err := f.stock.Update(ctx, f.storekeeper.ID.String(), unit.ID, UpdateStockItemDTO{LocationID: &loc, Remarks: &remarks})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if got.LocationID == nil || *got.LocationID != f.location.ID || got.Remarks != remarks {
		t.Errorf("expected location and remarks to be saved")
	}

	history, err := f.stock.History(ctx, unit.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	// receipt + 4 status changes + 1 move
	if len(history) != 6 {
		t.Fatalf("expected 6 movements, got %d", len(history))
	}
	if history[0].FromStatus != "" || history[0].ToStatus != model.StockStatusInStock {
		t.Errorf("expected the receipt first, got %+v", history[0])
	}
}

func TestExportStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po := f.receivedOrder(t)
	if _, err := f.stock.BulkCreate(ctx, f.storekeeper.ID.String(), BulkCreateStockDTO{PurchaseOrderID: po.ID, LocationID: f.location.ID.String()}); err != nil {
		t.Fatalf("bulk create: %v", err)
	}

	data, err := f.stock.Export(ctx, StockFilter{PurchaseOrderID: po.ID})
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer book.Close()

	rows, err := book.GetRows("Stock")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected header and 4 units, got %d rows", len(rows))
	}
	if rows[0][0] != "Asset Tag" {
		t.Errorf("unexpected header %v", rows[0])
	}
	if rows[1][0] != po.OrderNo+"-001" || rows[1][2] != f.category.Name || rows[1][4] != f.location.Name {
		t.Errorf("unexpected first row %v", rows[1])
	}
}
