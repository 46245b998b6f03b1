package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"ims/internal/model"
	"ims/internal/notify"
	"ims/internal/repository"
	"ims/internal/workflow"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// --- DTOs ---

type BulkStockLine struct {
	PurchaseOrderItemID string `json:"purchase_order_item_id" binding:"required"`
	Quantity            int    `json:"quantity" binding:"required,gt=0"`
}

// BulkCreateStockDTO receives units of a Received order into stock. When
// Items is empty every unit not yet in stock is received.
type BulkCreateStockDTO struct {
	PurchaseOrderID string          `json:"purchase_order_id" binding:"required"`
	LocationID      string          `json:"location_id"`
	Remarks         string          `json:"remarks"`
	Items           []BulkStockLine `json:"items" binding:"omitempty,dive"`
}

type UpdateStockItemDTO struct {
	Status     *string `json:"status"`
	LocationID *string `json:"location_id"`
	Remarks    *string `json:"remarks"`
	Note       string  `json:"note"`
}

type StockFilter struct {
	Status          string
	CategoryID      string
	LocationID      string
	PurchaseOrderID string
	Search          string
	Page            int
	Limit           int
}

type StockItemResponse struct {
	ID                  string     `json:"id"`
	AssetTag            string     `json:"asset_tag"`
	Name                string     `json:"name"`
	PurchaseOrderID     string     `json:"purchase_order_id"`
	PurchaseOrderItemID string     `json:"purchase_order_item_id"`
	CategoryID          *uuid.UUID `json:"category_id"`
	CategoryName        string     `json:"category_name,omitempty"`
	Status              string     `json:"status"`
	LocationID          *uuid.UUID `json:"location_id"`
	LocationName        string     `json:"location_name,omitempty"`
	Remarks             string     `json:"remarks"`
	CreatedAt           string     `json:"created_at"`
}

type StockMovementResponse struct {
	FromStatus     string     `json:"from_status"`
	ToStatus       string     `json:"to_status"`
	FromLocationID *uuid.UUID `json:"from_location_id"`
	ToLocationID   *uuid.UUID `json:"to_location_id"`
	ChangedBy      *uuid.UUID `json:"changed_by"`
	Note           string     `json:"note"`
	CreatedAt      string     `json:"created_at"`
}

// --- Interface ---

type StockService interface {
	BulkCreate(ctx context.Context, actorID string, req BulkCreateStockDTO) ([]StockItemResponse, error)
	Get(ctx context.Context, id string) (*StockItemResponse, error)
	List(ctx context.Context, filter StockFilter) ([]StockItemResponse, int64, error)
	Update(ctx context.Context, actorID, id string, req UpdateStockItemDTO) (*StockItemResponse, error)
	History(ctx context.Context, id string) ([]StockMovementResponse, error)
	Export(ctx context.Context, filter StockFilter) ([]byte, error)
}

type stockService struct {
	repo      repository.StockRepository
	orders    repository.PurchaseOrderRepository
	locations repository.MasterRepository[model.Location]
	audit     AuditService
	txManager repository.TransactionManager
	publisher notify.Publisher
}

func NewStockService(
	repo repository.StockRepository,
	orders repository.PurchaseOrderRepository,
	locations repository.MasterRepository[model.Location],
	audit AuditService,
	txManager repository.TransactionManager,
	publisher notify.Publisher,
) StockService {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	return &stockService{
		repo:      repo,
		orders:    orders,
		locations: locations,
		audit:     audit,
		txManager: txManager,
		publisher: publisher,
	}
}

// --- Implementation ---

// BulkCreate writes one stock row per physical unit. The total number of
// rows for an order item never exceeds its ordered quantity.
func (s *stockService) BulkCreate(ctx context.Context, actorID string, req BulkCreateStockDTO) ([]StockItemResponse, error) {
	orderID, err := parseID("purchase_order_id", req.PurchaseOrderID)
	if err != nil {
		return nil, err
	}
	userID, err := parseOptionalID("user id", actorID)
	if err != nil {
		return nil, err
	}
	locationID, err := s.checkLocation(ctx, req.LocationID)
	if err != nil {
		return nil, err
	}

	var (
		order *model.PurchaseOrder
		items []model.StockItem
	)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, err = s.orders.FindByIDForUpdate(txCtx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invalidf("purchase order does not exist")
			}
			return fmt.Errorf("failed to load purchase order: %w", err)
		}
		if order.OrderStatus != model.OrderStatusReceived {
			return fmt.Errorf("%w: %s is %s", ErrOrderNotReceived, order.OrderNo, order.OrderStatus)
		}

		inStock, err := s.repo.CountByOrderItem(txCtx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to count stock items: %w", err)
		}
		units, err := unitsToReceive(order, inStock, req.Items)
		if err != nil {
			return err
		}

		existing := 0
		for _, n := range inStock {
			existing += n
		}

		seq := existing
		for _, line := range order.Items {
			for i := 0; i < units[line.ID]; i++ {
				seq++
				items = append(items, model.StockItem{
					AssetTag:            fmt.Sprintf("%s-%03d", order.OrderNo, seq),
					Name:                line.Name,
					PurchaseOrderID:     order.ID,
					PurchaseOrderItemID: line.ID,
					CategoryID:          line.CategoryID,
					Status:              model.StockStatusInStock,
					LocationID:          locationID,
					Remarks:             req.Remarks,
				})
			}
		}
		if err := s.repo.CreateBatch(txCtx, items); err != nil {
			return fmt.Errorf("failed to create stock items: %w", err)
		}

		movements := make([]model.StockMovement, 0, len(items))
		for _, it := range items {
			movements = append(movements, model.StockMovement{
				StockItemID:  it.ID,
				ToStatus:     it.Status,
				ToLocationID: it.LocationID,
				ChangedBy:    userID,
				Note:         "received from " + order.OrderNo,
			})
		}
		if err := s.repo.CreateMovements(txCtx, movements); err != nil {
			return fmt.Errorf("failed to record stock movements: %w", err)
		}

		return s.audit.Record(txCtx, userID, model.ActionBulkCreateStock, order.ID.String(), order.OrderNo, map[string]interface{}{
			"units":       len(items),
			"first_tag":   items[0].AssetTag,
			"last_tag":    items[len(items)-1].AssetTag,
			"location_id": locationID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, notify.NewEvent(notify.EventStockReceived, order.ID.String(), map[string]interface{}{
		"order_no": order.OrderNo,
		"units":    len(items),
	}))

	result := make([]StockItemResponse, 0, len(items))
	for _, it := range items {
		result = append(result, toStockItemResponse(it))
	}
	return result, nil
}

// unitsToReceive resolves how many units of each order item to receive.
func unitsToReceive(order *model.PurchaseOrder, inStock map[uuid.UUID]int, lines []BulkStockLine) (map[uuid.UUID]int, error) {
	remaining := make(map[uuid.UUID]int, len(order.Items))
	for _, it := range order.Items {
		remaining[it.ID] = it.Quantity - inStock[it.ID]
	}

	units := make(map[uuid.UUID]int)
	total := 0
	if len(lines) == 0 {
		for id, n := range remaining {
			if n > 0 {
				units[id] = n
				total += n
			}
		}
		if total == 0 {
			return nil, invalidf("every unit of %s is already in stock", order.OrderNo)
		}
		return units, nil
	}

	for i, line := range lines {
		itemID, err := parseID(fmt.Sprintf("items[%d].purchase_order_item_id", i), line.PurchaseOrderItemID)
		if err != nil {
			return nil, err
		}
		left, ok := remaining[itemID]
		if !ok {
			return nil, invalidf("items[%d]: item does not belong to %s", i, order.OrderNo)
		}
		if line.Quantity <= 0 {
			return nil, invalidf("items[%d]: quantity must be positive", i)
		}
		units[itemID] += line.Quantity
		if units[itemID] > left {
			return nil, invalidf("items[%d]: only %d unit(s) left to receive", i, left)
		}
		total += line.Quantity
	}
	return units, nil
}

func (s *stockService) checkLocation(ctx context.Context, raw string) (*uuid.UUID, error) {
	locationID, err := parseOptionalID("location_id", raw)
	if err != nil || locationID == nil {
		return nil, err
	}
	ok, err := s.locations.Exists(ctx, *locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load location: %w", err)
	}
	if !ok {
		return nil, invalidf("location does not exist")
	}
	return locationID, nil
}

func (s *stockService) Get(ctx context.Context, id string) (*StockItemResponse, error) {
	itemID, err := parseID("stock item id", id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return nil, loadErr("stock item", err)
	}
	res := toStockItemResponse(*item)
	return &res, nil
}

func (s *stockService) repoFilter(filter StockFilter) (repository.StockFilter, error) {
	if filter.Status != "" {
		if err := workflow.Stock.CheckStatus(filter.Status); err != nil {
			return repository.StockFilter{}, err
		}
	}
	categoryID, err := parseOptionalID("category_id", filter.CategoryID)
	if err != nil {
		return repository.StockFilter{}, err
	}
	locationID, err := parseOptionalID("location_id", filter.LocationID)
	if err != nil {
		return repository.StockFilter{}, err
	}
	orderID, err := parseOptionalID("purchase_order_id", filter.PurchaseOrderID)
	if err != nil {
		return repository.StockFilter{}, err
	}
	return repository.StockFilter{
		Status:          filter.Status,
		CategoryID:      categoryID,
		LocationID:      locationID,
		PurchaseOrderID: orderID,
		Search:          filter.Search,
		Page:            filter.Page,
		Limit:           filter.Limit,
	}, nil
}

func (s *stockService) List(ctx context.Context, filter StockFilter) ([]StockItemResponse, int64, error) {
	f, err := s.repoFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list stock items: %w", err)
	}

	result := make([]StockItemResponse, 0, len(items))
	for _, it := range items {
		result = append(result, toStockItemResponse(it))
	}
	return result, total, nil
}

// Update sets status, location or remarks. Any status in the stock domain
// may be set directly. Status and location changes are recorded as a
// movement.
func (s *stockService) Update(ctx context.Context, actorID, id string, req UpdateStockItemDTO) (*StockItemResponse, error) {
	itemID, err := parseID("stock item id", id)
	if err != nil {
		return nil, err
	}
	userID, err := parseOptionalID("user id", actorID)
	if err != nil {
		return nil, err
	}
	var locationID *uuid.UUID
	if req.LocationID != nil {
		if locationID, err = s.checkLocation(ctx, *req.LocationID); err != nil {
			return nil, err
		}
	}

	var (
		item  *model.StockItem
		moved bool
	)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		item, err = s.repo.FindByIDForUpdate(txCtx, itemID)
		if err != nil {
			return loadErr("stock item", err)
		}
		movement := model.StockMovement{
			StockItemID:    item.ID,
			FromStatus:     item.Status,
			ToStatus:       item.Status,
			FromLocationID: item.LocationID,
			ToLocationID:   item.LocationID,
			ChangedBy:      userID,
			Note:           req.Note,
		}

		if req.Status != nil {
			changed, err := workflow.Stock.Transition(item.Status, *req.Status)
			if err != nil {
				return err
			}
			if changed {
				item.Status = *req.Status
				movement.ToStatus = item.Status
				moved = true
			}
		}
		if req.LocationID != nil && !sameLocation(item.LocationID, locationID) {
			item.LocationID = locationID
			movement.ToLocationID = locationID
			moved = true
		}
		if req.Remarks != nil {
			item.Remarks = *req.Remarks
		}

		if err := s.repo.Update(txCtx, item); err != nil {
			return fmt.Errorf("failed to update stock item: %w", err)
		}
		if moved {
			if err := s.repo.CreateMovements(txCtx, []model.StockMovement{movement}); err != nil {
				return fmt.Errorf("failed to record stock movement: %w", err)
			}
		}

		return s.audit.Record(txCtx, userID, model.ActionUpdateStockItem, item.ID.String(), item.AssetTag, map[string]interface{}{
			"from_status": movement.FromStatus,
			"to_status":   movement.ToStatus,
		})
	})
	if err != nil {
		return nil, err
	}

	if moved {
		s.publisher.Publish(ctx, notify.NewEvent(notify.EventStockUpdated, item.ID.String(), map[string]interface{}{
			"asset_tag": item.AssetTag,
			"status":    item.Status,
		}))
	}

	return s.Get(ctx, item.ID.String())
}

func sameLocation(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *stockService) History(ctx context.Context, id string) ([]StockMovementResponse, error) {
	itemID, err := parseID("stock item id", id)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByID(ctx, itemID); err != nil {
		return nil, loadErr("stock item", err)
	}
	movements, err := s.repo.ListMovements(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}

	result := make([]StockMovementResponse, 0, len(movements))
	for _, m := range movements {
		result = append(result, StockMovementResponse{
			FromStatus:     m.FromStatus,
			ToStatus:       m.ToStatus,
			FromLocationID: m.FromLocationID,
			ToLocationID:   m.ToLocationID,
			ChangedBy:      m.ChangedBy,
			Note:           m.Note,
			CreatedAt:      m.CreatedAt.Format(timeLayout),
		})
	}
	return result, nil
}

var exportHeader = []interface{}{"Asset Tag", "Name", "Category", "Status", "Location", "Remarks", "Received At"}

// Export renders every stock item matching filter as an XLSX workbook,
// ignoring pagination.
func (s *stockService) Export(ctx context.Context, filter StockFilter) ([]byte, error) {
	f, err := s.repoFilter(filter)
	if err != nil {
		return nil, err
	}
	f.Page, f.Limit = 1, 0
	items, _, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock items: %w", err)
	}

	book := excelize.NewFile()
	defer book.Close()

	const sheet = "Stock"
	if err := book.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := book.SetSheetRow(sheet, "A1", &exportHeader); err != nil {
		return nil, err
	}
	for i, it := range items {
		row := []interface{}{it.AssetTag, it.Name, "", it.Status, "", it.Remarks, it.CreatedAt.Format("2006-01-02")}
		if it.Category != nil {
			row[2] = it.Category.Name
		}
		if it.Location != nil {
			row[4] = it.Location.Name
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := book.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// --- Helpers ---

func toStockItemResponse(it model.StockItem) StockItemResponse {
	res := StockItemResponse{
		ID:                  it.ID.String(),
		AssetTag:            it.AssetTag,
		Name:                it.Name,
		PurchaseOrderID:     it.PurchaseOrderID.String(),
		PurchaseOrderItemID: it.PurchaseOrderItemID.String(),
		CategoryID:          it.CategoryID,
		Status:              it.Status,
		LocationID:          it.LocationID,
		Remarks:             it.Remarks,
		CreatedAt:           it.CreatedAt.Format(timeLayout),
	}
	if it.Category != nil {
		res.CategoryName = it.Category.Name
	}
	if it.Location != nil {
		res.LocationName = it.Location.Name
	}
	return res
}
