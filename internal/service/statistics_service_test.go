package service

import (
	"context"
	"testing"
	"time"

	"ims/internal/model"

	"github.com/shopspring/decimal"
)

func TestGetStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createRequest(t)
	po := f.receivedOrder(t)
	items, err := f.stock.BulkCreate(ctx, f.storekeeper.ID.String(), BulkCreateStockDTO{PurchaseOrderID: po.ID})
	if err != nil {
		t.Fatalf("bulk create: %v", err)
	}
	trash := model.StockStatusTrash
	if _, err := f.stock.Update(ctx, f.storekeeper.ID.String(), items[0].ID, UpdateStockItemDTO{Status: &trash}); err != nil {
		t.Fatalf("trash: %v", err)
	}

	now := time.Now()
	stats, err := f.stats.GetStatistics(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}

	if stats.RequestsByStatus[model.RequestStatusPending] != 1 || stats.RequestsByStatus[model.RequestStatusApproved] != 1 {
		t.Errorf("unexpected request counts %v", stats.RequestsByStatus)
	}
	if stats.OrdersByStatus[model.OrderStatusReceived] != 1 {
		t.Errorf("unexpected order counts %v", stats.OrdersByStatus)
	}
	if stats.StockByStatus[model.StockStatusInStock] != 3 || stats.StockByStatus[model.StockStatusTrash] != 1 {
		t.Errorf("unexpected stock counts %v", stats.StockByStatus)
	}
	if !stats.ReceivedOrderValue.Equal(decimal.NewFromInt(350)) {
		t.Errorf("expected received value 350, got %s", stats.ReceivedOrderValue)
	}
	if len(stats.TopCategories) != 1 || stats.TopCategories[0].Units != 3 {
		t.Errorf("expected 3 non-trashed furniture units, got %+v", stats.TopCategories)
	}

	past, err := f.stats.GetStatistics(ctx, now.AddDate(-1, 0, 0), now.AddDate(-1, 0, 1))
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if len(past.RequestsByStatus) != 0 || !past.ReceivedOrderValue.IsZero() {
		t.Errorf("expected an empty window, got %+v", past)
	}
}
