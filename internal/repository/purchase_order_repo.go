package repository

import (
	"context"
	"time"

	"ims/internal/model"
	"ims/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseOrderFilter narrows purchase order listings
type PurchaseOrderFilter struct {
	OrderStatus       string
	PaymentStatus     string
	VendorID          *uuid.UUID
	PurchaseRequestID *uuid.UUID
	Search            string
	Page              int
	Limit             int
}

type PurchaseOrderRepository interface {
	Create(ctx context.Context, order *model.PurchaseOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error)
	List(ctx context.Context, filter PurchaseOrderFilter) ([]model.PurchaseOrder, int64, error)
	Update(ctx context.Context, order *model.PurchaseOrder) error
	Delete(ctx context.Context, id uuid.UUID) error
	NextOrderNo(ctx context.Context, day time.Time) (string, error)
	// OrderedQuantities sums quantities already ordered per request item
	// across orders that are not Cancelled.
	OrderedQuantities(ctx context.Context, requestID uuid.UUID) (map[uuid.UUID]int, error)
}

type purchaseOrderRepository struct {
	db *gorm.DB
}

func NewPurchaseOrderRepository(db *gorm.DB) PurchaseOrderRepository {
	return &purchaseOrderRepository{db: db}
}

func (r *purchaseOrderRepository) Create(ctx context.Context, order *model.PurchaseOrder) error {
	return GetDB(ctx, r.db).Omit("PurchaseRequest", "Vendor").Create(order).Error
}

func (r *purchaseOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	var order model.PurchaseOrder
	if err := GetDB(ctx, r.db).
		Preload("Vendor").
		Preload("PurchaseRequest").
		Preload("Items").
		Preload("Items.Category").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *purchaseOrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseOrder, error) {
	var order model.PurchaseOrder
	if err := forUpdate(GetDB(ctx, r.db)).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *purchaseOrderRepository) List(ctx context.Context, filter PurchaseOrderFilter) ([]model.PurchaseOrder, int64, error) {
	var orders []model.PurchaseOrder
	var total int64

	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		if filter.OrderStatus != "" {
			q = q.Where("order_status = ?", filter.OrderStatus)
		}
		if filter.PaymentStatus != "" {
			q = q.Where("payment_status = ?", filter.PaymentStatus)
		}
		if filter.VendorID != nil {
			q = q.Where("vendor_id = ?", *filter.VendorID)
		}
		if filter.PurchaseRequestID != nil {
			q = q.Where("purchase_request_id = ?", *filter.PurchaseRequestID)
		}
		if filter.Search != "" {
			q = q.Where("LOWER(order_no) LIKE LOWER(?)", "%"+filter.Search+"%")
		}
		return q
	}

	if err := db.Model(&model.PurchaseOrder{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Scopes(scope).
		Preload("Vendor").
		Preload("Items").
		Order("created_at DESC").
		Scopes(pagination.Scope(filter.Page, filter.Limit)).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *purchaseOrderRepository) Update(ctx context.Context, order *model.PurchaseOrder) error {
	return GetDB(ctx, r.db).Model(&model.PurchaseOrder{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"order_status":      order.OrderStatus,
		"payment_status":    order.PaymentStatus,
		"expected_delivery": order.ExpectedDelivery,
		"placed_at":         order.PlacedAt,
		"received_at":       order.ReceivedAt,
		"cancelled_at":      order.CancelledAt,
		"note":              order.Note,
	}).Error
}

func (r *purchaseOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("purchase_order_id = ?", id).Delete(&model.PurchaseOrderItem{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.PurchaseOrder{}).Error
}

func (r *purchaseOrderRepository) NextOrderNo(ctx context.Context, day time.Time) (string, error) {
	return nextDocumentNo(GetDB(ctx, r.db), "purchase_orders", "order_no", "PO-"+day.Format("20060102")+"-")
}

func (r *purchaseOrderRepository) OrderedQuantities(ctx context.Context, requestID uuid.UUID) (map[uuid.UUID]int, error) {
	var rows []struct {
		PurchaseRequestItemID uuid.UUID
		Quantity              int
	}
	if err := GetDB(ctx, r.db).Table("purchase_order_items").
		Select("purchase_order_items.purchase_request_item_id, SUM(purchase_order_items.quantity) AS quantity").
		Joins("JOIN purchase_orders ON purchase_orders.id = purchase_order_items.purchase_order_id").
		Where("purchase_orders.purchase_request_id = ? AND purchase_orders.order_status <> ?", requestID, model.OrderStatusCancelled).
		Where("purchase_order_items.purchase_request_item_id IS NOT NULL").
		Group("purchase_order_items.purchase_request_item_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		out[row.PurchaseRequestItemID] = row.Quantity
	}
	return out, nil
}
