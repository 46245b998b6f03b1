package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ims/internal/model"
	"ims/internal/notify"
	"ims/internal/repository"
	"ims/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

// PurchaseOrderItemInput is one order line. When PurchaseRequestItemID is
// set, name and category default to the request item's.
type PurchaseOrderItemInput struct {
	PurchaseRequestItemID string          `json:"purchase_request_item_id"`
	Name                  string          `json:"name"`
	CategoryID            string          `json:"category_id"`
	Quantity              int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
}

type CreatePurchaseOrderDTO struct {
	PurchaseRequestID string                   `json:"purchase_request_id" binding:"required"`
	VendorID          string                   `json:"vendor_id" binding:"required"`
	ExpectedDelivery  *time.Time               `json:"expected_delivery"`
	Note              string                   `json:"note"`
	Items             []PurchaseOrderItemInput `json:"items" binding:"omitempty,dive"`
}

type UpdatePurchaseOrderDTO struct {
	OrderStatus      *string    `json:"order_status"`
	PaymentStatus    *string    `json:"payment_status"`
	ExpectedDelivery *time.Time `json:"expected_delivery"`
	Note             *string    `json:"note"`
}

type PurchaseOrderFilter struct {
	OrderStatus       string
	PaymentStatus     string
	VendorID          string
	PurchaseRequestID string
	Search            string
	Page              int
	Limit             int
}

type PurchaseOrderItemResponse struct {
	ID                    string          `json:"id"`
	PurchaseRequestItemID *uuid.UUID      `json:"purchase_request_item_id"`
	Name                  string          `json:"name"`
	CategoryID            *uuid.UUID      `json:"category_id"`
	CategoryName          string          `json:"category_name,omitempty"`
	Quantity              int             `json:"quantity"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
	LineTotal             decimal.Decimal `json:"line_total"`
}

type PurchaseOrderResponse struct {
	ID                string                      `json:"id"`
	OrderNo           string                      `json:"order_no"`
	PurchaseRequestID string                      `json:"purchase_request_id"`
	RequestNo         string                      `json:"request_no,omitempty"`
	VendorID          string                      `json:"vendor_id"`
	VendorName        string                      `json:"vendor_name,omitempty"`
	OrderStatus       string                      `json:"order_status"`
	PaymentStatus     string                      `json:"payment_status"`
	TotalAmount       decimal.Decimal             `json:"total_amount"`
	ExpectedDelivery  *string                     `json:"expected_delivery"`
	PlacedAt          *string                     `json:"placed_at"`
	ReceivedAt        *string                     `json:"received_at"`
	CancelledAt       *string                     `json:"cancelled_at"`
	Note              string                      `json:"note"`
	CreatedBy         *uuid.UUID                  `json:"created_by"`
	Items             []PurchaseOrderItemResponse `json:"items"`
	CreatedAt         string                      `json:"created_at"`
}

// --- Interface ---

type PurchaseOrderService interface {
	Create(ctx context.Context, actorID string, req CreatePurchaseOrderDTO) (*PurchaseOrderResponse, error)
	Get(ctx context.Context, id string) (*PurchaseOrderResponse, error)
	List(ctx context.Context, filter PurchaseOrderFilter) ([]PurchaseOrderResponse, int64, error)
	Update(ctx context.Context, actorID, id string, req UpdatePurchaseOrderDTO) (*PurchaseOrderResponse, error)
	Delete(ctx context.Context, actorID, id string) error
}

type purchaseOrderService struct {
	repo       repository.PurchaseOrderRepository
	requests   repository.PurchaseRequestRepository
	stock      repository.StockRepository
	vendors    repository.MasterRepository[model.Vendor]
	categories repository.MasterRepository[model.Category]
	audit      AuditService
	txManager  repository.TransactionManager
	publisher  notify.Publisher
}

func NewPurchaseOrderService(
	repo repository.PurchaseOrderRepository,
	requests repository.PurchaseRequestRepository,
	stock repository.StockRepository,
	vendors repository.MasterRepository[model.Vendor],
	categories repository.MasterRepository[model.Category],
	audit AuditService,
	txManager repository.TransactionManager,
	publisher notify.Publisher,
) PurchaseOrderService {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &purchaseOrderService{
		repo:       repo,
		requests:   requests,
		stock:      stock,
		vendors:    vendors,
		categories: categories,
		audit:      audit,
		txManager:  txManager,
		publisher:  publisher,
	}
}

// --- Implementation ---

// Create places a new order against an Approved purchase request. Lines that
// reference request items may not exceed the approved quantity still
// unordered across the request's other non-cancelled orders.
func (s *purchaseOrderService) Create(ctx context.Context, actorID string, req CreatePurchaseOrderDTO) (*PurchaseOrderResponse, error) {
	requestID, err := parseID("purchase_request_id", req.PurchaseRequestID)
	if err != nil {
		return nil, err
	}
	vendorID, err := parseID("vendor_id", req.VendorID)
	if err != nil {
		return nil, err
	}
	createdBy, err := parseOptionalID("user id", actorID)
	if err != nil {
		return nil, err
	}

	vendor, err := s.vendors.FindByID(ctx, vendorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidf("vendor does not exist")
		}
		return nil, fmt.Errorf("failed to load vendor: %w", err)
	}
	if !vendor.IsActive {
		return nil, invalidf("vendor %s is inactive", vendor.Name)
	}

	order := &model.PurchaseOrder{
		PurchaseRequestID: requestID,
		VendorID:          vendor.ID,
		OrderStatus:       model.OrderStatusPending,
		PaymentStatus:     model.PaymentStatusUnpaid,
		ExpectedDelivery:  req.ExpectedDelivery,
		Note:              req.Note,
		CreatedBy:         createdBy,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		pr, err := s.requests.FindByIDForUpdate(txCtx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invalidf("purchase request does not exist")
			}
			return fmt.Errorf("failed to load purchase request: %w", err)
		}
		if !pr.Orderable() {
			return fmt.Errorf("%w: %s is %s", ErrRequestNotApproved, pr.RequestNo, pr.ApprovalStatus)
		}

		ordered, err := s.repo.OrderedQuantities(txCtx, pr.ID)
		if err != nil {
			return fmt.Errorf("failed to sum ordered quantities: %w", err)
		}

		items, err := s.buildItems(txCtx, pr, ordered, req.Items)
		if err != nil {
			return err
		}
		order.Items = items
		order.TotalAmount = TotalAmount(items)

		if order.OrderNo, err = s.repo.NextOrderNo(txCtx, time.Now()); err != nil {
			return err
		}
		if err := s.repo.Create(txCtx, order); err != nil {
			return fmt.Errorf("failed to create purchase order: %w", err)
		}

		return s.audit.Record(txCtx, createdBy, model.ActionCreatePurchaseOrder, order.ID.String(), order.OrderNo, map[string]interface{}{
			"request_no":   pr.RequestNo,
			"vendor":       vendor.Name,
			"items":        len(order.Items),
			"total_amount": order.TotalAmount.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, notify.NewEvent(notify.EventOrderCreated, order.ID.String(), map[string]interface{}{
		"order_no":            order.OrderNo,
		"purchase_request_id": order.PurchaseRequestID,
	}))

	return s.Get(ctx, order.ID.String())
}

// TotalAmount sums quantity times unit price over items.
func TotalAmount(items []model.PurchaseOrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (s *purchaseOrderService) buildItems(ctx context.Context, pr *model.PurchaseRequest, ordered map[uuid.UUID]int, inputs []PurchaseOrderItemInput) ([]model.PurchaseOrderItem, error) {
	requestItems := make(map[uuid.UUID]model.PurchaseRequestItem, len(pr.Items))
	for _, it := range pr.Items {
		requestItems[it.ID] = it
	}

	// Without explicit lines, order every approved item that is not ordered yet.
	if len(inputs) == 0 {
		var items []model.PurchaseOrderItem
		for _, it := range pr.Items {
			if it.ItemStatus == model.ItemStatusRejected {
				continue
			}
			remaining := it.Quantity - ordered[it.ID]
			if remaining <= 0 {
				continue
			}
			id := it.ID
			items = append(items, model.PurchaseOrderItem{
				PurchaseRequestItemID: &id,
				Name:                  it.Name,
				CategoryID:            it.CategoryID,
				Quantity:              remaining,
				UnitPrice:             it.EstimatedUnitCost,
			})
		}
		if len(items) == 0 {
			return nil, invalidf("every approved item of %s is already ordered", pr.RequestNo)
		}
		return items, nil
	}

	items := make([]model.PurchaseOrderItem, 0, len(inputs))
	claimed := make(map[uuid.UUID]int)
	for i, in := range inputs {
		if in.UnitPrice.IsNegative() {
			return nil, invalidf("items[%d]: unit_price must not be negative", i)
		}
		if in.Quantity <= 0 {
			return nil, invalidf("items[%d]: quantity must be positive", i)
		}
		categoryID, err := parseOptionalID(fmt.Sprintf("items[%d].category_id", i), in.CategoryID)
		if err != nil {
			return nil, err
		}
		line := model.PurchaseOrderItem{
			Name:       in.Name,
			CategoryID: categoryID,
			Quantity:   in.Quantity,
			UnitPrice:  in.UnitPrice,
		}

		requestItemID, err := parseOptionalID(fmt.Sprintf("items[%d].purchase_request_item_id", i), in.PurchaseRequestItemID)
		if err != nil {
			return nil, err
		}
		if requestItemID != nil {
			ri, ok := requestItems[*requestItemID]
			if !ok {
				return nil, invalidf("items[%d]: item does not belong to %s", i, pr.RequestNo)
			}
			if ri.ItemStatus == model.ItemStatusRejected {
				return nil, invalidf("items[%d]: %s was rejected", i, ri.Name)
			}
			claimed[ri.ID] += in.Quantity
			if remaining := ri.Quantity - ordered[ri.ID]; claimed[ri.ID] > remaining {
				return nil, invalidf("items[%d]: only %d unit(s) of %s left to order", i, remaining, ri.Name)
			}
			line.PurchaseRequestItemID = requestItemID
			if line.Name == "" {
				line.Name = ri.Name
			}
			if line.CategoryID == nil {
				line.CategoryID = ri.CategoryID
			}
		}

		if line.Name == "" {
			return nil, invalidf("items[%d]: name is required", i)
		}
		if categoryID != nil {
			if ok, err := s.categories.Exists(ctx, *categoryID); err != nil {
				return nil, fmt.Errorf("failed to load category: %w", err)
			} else if !ok {
				return nil, invalidf("items[%d]: category does not exist", i)
			}
		}
		items = append(items, line)
	}
	return items, nil
}

func (s *purchaseOrderService) Get(ctx context.Context, id string) (*PurchaseOrderResponse, error) {
	orderID, err := parseID("purchase order id", id)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, loadErr("purchase order", err)
	}
	res := toPurchaseOrderResponse(*order)
	return &res, nil
}

func (s *purchaseOrderService) List(ctx context.Context, filter PurchaseOrderFilter) ([]PurchaseOrderResponse, int64, error) {
	if filter.OrderStatus != "" {
		if err := workflow.Orders.CheckStatus(filter.OrderStatus); err != nil {
			return nil, 0, err
		}
	}
	if filter.PaymentStatus != "" {
		if err := workflow.Payments.CheckStatus(filter.PaymentStatus); err != nil {
			return nil, 0, err
		}
	}
	vendorID, err := parseOptionalID("vendor_id", filter.VendorID)
	if err != nil {
		return nil, 0, err
	}
	requestID, err := parseOptionalID("purchase_request_id", filter.PurchaseRequestID)
	if err != nil {
		return nil, 0, err
	}

	orders, total, err := s.repo.List(ctx, repository.PurchaseOrderFilter{
		OrderStatus:       filter.OrderStatus,
		PaymentStatus:     filter.PaymentStatus,
		VendorID:          vendorID,
		PurchaseRequestID: requestID,
		Search:            filter.Search,
		Page:              filter.Page,
		Limit:             filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list purchase orders: %w", err)
	}

	result := make([]PurchaseOrderResponse, 0, len(orders))
	for _, o := range orders {
		result = append(result, toPurchaseOrderResponse(o))
	}
	return result, total, nil
}

// Update changes an order's status, payment status, note or expected
// delivery. Status changes go through the order state machine and stamp the
// matching timestamp.
func (s *purchaseOrderService) Update(ctx context.Context, actorID, id string, req UpdatePurchaseOrderDTO) (*PurchaseOrderResponse, error) {
	orderID, err := parseID("purchase order id", id)
	if err != nil {
		return nil, err
	}
	userID, err := parseOptionalID("user id", actorID)
	if err != nil {
		return nil, err
	}

	var (
		order         *model.PurchaseOrder
		fromStatus    string
		statusChanged bool
	)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, err = s.repo.FindByIDForUpdate(txCtx, orderID)
		if err != nil {
			return loadErr("purchase order", err)
		}
		fromStatus = order.OrderStatus
		now := time.Now()

		if req.OrderStatus != nil {
			if statusChanged, err = workflow.Orders.Transition(order.OrderStatus, *req.OrderStatus); err != nil {
				return err
			}
			if statusChanged {
				order.OrderStatus = *req.OrderStatus
				switch order.OrderStatus {
				case model.OrderStatusPlaced:
					order.PlacedAt = &now
				case model.OrderStatusReceived:
					order.ReceivedAt = &now
				case model.OrderStatusCancelled:
					order.CancelledAt = &now
				}
			}
		}
		if req.PaymentStatus != nil {
			if err := workflow.Payments.CheckStatus(*req.PaymentStatus); err != nil {
				return err
			}
			order.PaymentStatus = *req.PaymentStatus
		}
		if req.ExpectedDelivery != nil {
			order.ExpectedDelivery = req.ExpectedDelivery
		}
		if req.Note != nil {
			order.Note = *req.Note
		}

		if err := s.repo.Update(txCtx, order); err != nil {
			return fmt.Errorf("failed to update purchase order: %w", err)
		}

		if statusChanged {
			return s.audit.Record(txCtx, userID, model.ActionChangeOrderStatus, order.ID.String(), order.OrderNo, map[string]interface{}{
				"from": fromStatus,
				"to":   order.OrderStatus,
			})
		}
		return s.audit.Record(txCtx, userID, model.ActionUpdatePurchaseOrder, order.ID.String(), order.OrderNo, map[string]interface{}{
			"payment_status": order.PaymentStatus,
		})
	})
	if err != nil {
		return nil, err
	}

	if statusChanged {
		s.publisher.Publish(ctx, notify.NewEvent(notify.EventOrderStatusChanged, order.ID.String(), map[string]interface{}{
			"order_no": order.OrderNo,
			"from":     fromStatus,
			"to":       order.OrderStatus,
		}))
	}

	return s.Get(ctx, order.ID.String())
}

// Delete removes a Pending or Cancelled order that has no stock.
func (s *purchaseOrderService) Delete(ctx context.Context, actorID, id string) error {
	orderID, err := parseID("purchase order id", id)
	if err != nil {
		return err
	}
	userID, err := parseOptionalID("user id", actorID)
	if err != nil {
		return err
	}

	var orderNo string
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.repo.FindByIDForUpdate(txCtx, orderID)
		if err != nil {
			return loadErr("purchase order", err)
		}
		if order.OrderStatus != model.OrderStatusPending && order.OrderStatus != model.OrderStatusCancelled {
			return invalidf("cannot delete a %s purchase order", order.OrderStatus)
		}
		if n, err := s.stock.CountByOrder(txCtx, order.ID); err != nil {
			return fmt.Errorf("failed to count stock items: %w", err)
		} else if n > 0 {
			return invalidf("purchase order has %d stock item(s)", n)
		}

		if err := s.repo.Delete(txCtx, order.ID); err != nil {
			return fmt.Errorf("failed to delete purchase order: %w", err)
		}
		orderNo = order.OrderNo
		return s.audit.Record(txCtx, userID, model.ActionDeletePurchaseOrder, order.ID.String(), order.OrderNo, nil)
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(ctx, notify.NewEvent(notify.EventOrderDeleted, orderID.String(), map[string]interface{}{"order_no": orderNo}))
	return nil
}

// --- Helpers ---

func toPurchaseOrderResponse(o model.PurchaseOrder) PurchaseOrderResponse {
	res := PurchaseOrderResponse{
		ID:                o.ID.String(),
		OrderNo:           o.OrderNo,
		PurchaseRequestID: o.PurchaseRequestID.String(),
		VendorID:          o.VendorID.String(),
		OrderStatus:       o.OrderStatus,
		PaymentStatus:     o.PaymentStatus,
		TotalAmount:       o.TotalAmount,
		ExpectedDelivery:  formatTime(o.ExpectedDelivery),
		PlacedAt:          formatTime(o.PlacedAt),
		ReceivedAt:        formatTime(o.ReceivedAt),
		CancelledAt:       formatTime(o.CancelledAt),
		Note:              o.Note,
		CreatedBy:         o.CreatedBy,
		Items:             make([]PurchaseOrderItemResponse, 0, len(o.Items)),
		CreatedAt:         o.CreatedAt.Format(timeLayout),
	}
	if o.PurchaseRequest != nil {
		res.RequestNo = o.PurchaseRequest.RequestNo
	}
	if o.Vendor != nil {
		res.VendorName = o.Vendor.Name
	}
	for _, it := range o.Items {
		item := PurchaseOrderItemResponse{
			ID:                    it.ID.String(),
			PurchaseRequestItemID: it.PurchaseRequestItemID,
			Name:                  it.Name,
			CategoryID:            it.CategoryID,
			Quantity:              it.Quantity,
			UnitPrice:             it.UnitPrice,
			LineTotal:             it.LineTotal(),
		}
		if it.Category != nil {
			item.CategoryName = it.Category.Name
		}
		res.Items = append(res.Items, item)
	}
	return res
}
