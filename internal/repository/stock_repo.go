package repository

import (
	"context"

	"ims/internal/model"
	"ims/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockFilter narrows stock item listings
type StockFilter struct {
	Status          string
	CategoryID      *uuid.UUID
	LocationID      *uuid.UUID
	PurchaseOrderID *uuid.UUID
	Search          string
	Page            int
	Limit           int
}

type StockRepository interface {
	CreateBatch(ctx context.Context, items []model.StockItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.StockItem, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.StockItem, error)
	List(ctx context.Context, filter StockFilter) ([]model.StockItem, int64, error)
	Update(ctx context.Context, item *model.StockItem) error
	// CountByOrderItem returns how many stock rows exist per order item of an order.
	CountByOrderItem(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error)
	CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	CreateMovements(ctx context.Context, movements []model.StockMovement) error
	ListMovements(ctx context.Context, stockItemID uuid.UUID) ([]model.StockMovement, error)
}

type stockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) StockRepository {
	return &stockRepository{db: db}
}

func (r *stockRepository) CreateBatch(ctx context.Context, items []model.StockItem) error {
	if len(items) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Omit("PurchaseOrderItem", "Category", "Location").CreateInBatches(items, 200).Error
}

func (r *stockRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.StockItem, error) {
	var item model.StockItem
	if err := GetDB(ctx, r.db).Preload("Category").Preload("Location").First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *stockRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.StockItem, error) {
	var item model.StockItem
	if err := forUpdate(GetDB(ctx, r.db)).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *stockRepository) List(ctx context.Context, filter StockFilter) ([]model.StockItem, int64, error) {
	var items []model.StockItem
	var total int64

	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.CategoryID != nil {
			q = q.Where("category_id = ?", *filter.CategoryID)
		}
		if filter.LocationID != nil {
			q = q.Where("location_id = ?", *filter.LocationID)
		}
		if filter.PurchaseOrderID != nil {
			q = q.Where("purchase_order_id = ?", *filter.PurchaseOrderID)
		}
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			q = q.Where("LOWER(name) LIKE LOWER(?) OR LOWER(asset_tag) LIKE LOWER(?)", like, like)
		}
		return q
	}

	if err := db.Model(&model.StockItem{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Scopes(scope).
		Preload("Category").
		Preload("Location").
		Order("asset_tag asc").
		Scopes(pagination.Scope(filter.Page, filter.Limit)).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *stockRepository) Update(ctx context.Context, item *model.StockItem) error {
	return GetDB(ctx, r.db).Model(&model.StockItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
		"status":      item.Status,
		"location_id": item.LocationID,
		"remarks":     item.Remarks,
	}).Error
}

func (r *stockRepository) CountByOrderItem(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error) {
	var rows []struct {
		PurchaseOrderItemID uuid.UUID
		Units               int
	}
	if err := GetDB(ctx, r.db).Model(&model.StockItem{}).
		Select("purchase_order_item_id, COUNT(*) AS units").
		Where("purchase_order_id = ?", orderID).
		Group("purchase_order_item_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		out[row.PurchaseOrderItemID] = row.Units
	}
	return out, nil
}

func (r *stockRepository) CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.StockItem{}).Where("purchase_order_id = ?", orderID).Count(&n).Error
	return n, err
}

func (r *stockRepository) CreateMovements(ctx context.Context, movements []model.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).CreateInBatches(movements, 200).Error
}

func (r *stockRepository) ListMovements(ctx context.Context, stockItemID uuid.UUID) ([]model.StockMovement, error) {
	var movements []model.StockMovement
	err := GetDB(ctx, r.db).Where("stock_item_id = ?", stockItemID).Order("created_at asc").Find(&movements).Error
	return movements, err
}
