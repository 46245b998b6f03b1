package repository

import (
	"context"
	"time"

	"ims/internal/model"
	"ims/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseRequestFilter narrows purchase request listings
type PurchaseRequestFilter struct {
	Status       string
	DepartmentID *uuid.UUID
	CollegeID    *uuid.UUID
	RequesterID  *uuid.UUID
	// AwaitingRole lists only Pending requests whose current stage needs this role.
	AwaitingRole string
	Search       string
	Page         int
	Limit        int
}

type PurchaseRequestRepository interface {
	Create(ctx context.Context, req *model.PurchaseRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error)
	List(ctx context.Context, filter PurchaseRequestFilter) ([]model.PurchaseRequest, int64, error)
	SaveDecision(ctx context.Context, req *model.PurchaseRequest, stage *model.ApprovalStage) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListStalePending(ctx context.Context, before time.Time) ([]model.PurchaseRequest, error)
	NextRequestNo(ctx context.Context, day time.Time) (string, error)
	CountOrders(ctx context.Context, id uuid.UUID) (int64, error)
}

type purchaseRequestRepository struct {
	db *gorm.DB
}

func NewPurchaseRequestRepository(db *gorm.DB) PurchaseRequestRepository {
	return &purchaseRequestRepository{db: db}
}

func (r *purchaseRequestRepository) Create(ctx context.Context, req *model.PurchaseRequest) error {
	return GetDB(ctx, r.db).Omit("Requester", "Approver", "Department").Create(req).Error
}

func withRequestRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Requester").
		Preload("Approver").
		Preload("Department").
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("name asc") }).
		Preload("Items.Category").
		Preload("Items.Vendor").
		Preload("Stages", func(q *gorm.DB) *gorm.DB { return q.Order("sequence asc") }).
		Preload("Stages.Actor")
}

func (r *purchaseRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	var req model.PurchaseRequest
	if err := withRequestRelations(GetDB(ctx, r.db)).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// FindByIDForUpdate locks the request row for the rest of the transaction
// and loads its items and stages.
func (r *purchaseRequestRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.PurchaseRequest, error) {
	var req model.PurchaseRequest
	db := GetDB(ctx, r.db)
	if err := forUpdate(db).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("name asc") }).
		Preload("Stages", func(q *gorm.DB) *gorm.DB { return q.Order("sequence asc") }).
		First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *purchaseRequestRepository) List(ctx context.Context, filter PurchaseRequestFilter) ([]model.PurchaseRequest, int64, error) {
	var requests []model.PurchaseRequest
	var total int64

	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("purchase_requests.approval_status = ?", filter.Status)
		}
		if filter.DepartmentID != nil {
			q = q.Where("purchase_requests.department_id = ?", *filter.DepartmentID)
		}
		if filter.CollegeID != nil {
			q = q.Where("purchase_requests.college_id = ?", *filter.CollegeID)
		}
		if filter.RequesterID != nil {
			q = q.Where("purchase_requests.requester_id = ?", *filter.RequesterID)
		}
		if filter.AwaitingRole != "" {
			q = q.Where("purchase_requests.approval_status = ?", model.RequestStatusPending).
				Where("EXISTS (SELECT 1 FROM approval_stages s WHERE s.purchase_request_id = purchase_requests.id AND s.sequence = purchase_requests.current_stage AND s.status = ? AND s.role = ?)",
					model.StageStatusPending, filter.AwaitingRole)
		}
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			q = q.Where("LOWER(purchase_requests.title) LIKE LOWER(?) OR LOWER(purchase_requests.request_no) LIKE LOWER(?)", like, like)
		}
		return q
	}

	if err := db.Model(&model.PurchaseRequest{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := db.Scopes(scope).
		Preload("Requester").
		Preload("Department").
		Preload("Items").
		Preload("Stages", func(q *gorm.DB) *gorm.DB { return q.Order("sequence asc") }).
		Order("purchase_requests.created_at DESC").
		Scopes(pagination.Scope(filter.Page, filter.Limit)).
		Find(&requests).Error; err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// SaveDecision persists the request header, the acted stage, any stages
// skipped by a rejection and the item statuses.
func (r *purchaseRequestRepository) SaveDecision(ctx context.Context, req *model.PurchaseRequest, stage *model.ApprovalStage) error {
	db := GetDB(ctx, r.db)

	if err := db.Model(&model.PurchaseRequest{}).Where("id = ?", req.ID).Updates(map[string]interface{}{
		"approval_status":  req.ApprovalStatus,
		"current_stage":    req.CurrentStage,
		"rejection_reason": req.RejectionReason,
		"decided_at":       req.DecidedAt,
	}).Error; err != nil {
		return err
	}

	if err := db.Model(&model.ApprovalStage{}).Where("id = ?", stage.ID).Updates(map[string]interface{}{
		"status":   stage.Status,
		"acted_by": stage.ActedBy,
		"acted_at": stage.ActedAt,
		"comment":  stage.Comment,
	}).Error; err != nil {
		return err
	}

	for _, s := range req.Stages {
		if s.ID == stage.ID || s.Status != model.StageStatusSkipped {
			continue
		}
		if err := db.Model(&model.ApprovalStage{}).Where("id = ?", s.ID).Update("status", s.Status).Error; err != nil {
			return err
		}
	}

	for _, it := range req.Items {
		if err := db.Model(&model.PurchaseRequestItem{}).Where("id = ?", it.ID).Update("item_status", it.ItemStatus).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *purchaseRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.PurchaseRequest{}).Error
}

// ListStalePending returns Pending requests whose current stage has been
// waiting since before the cutoff.
func (r *purchaseRequestRepository) ListStalePending(ctx context.Context, before time.Time) ([]model.PurchaseRequest, error) {
	var requests []model.PurchaseRequest
	err := GetDB(ctx, r.db).
		Preload("Stages", func(q *gorm.DB) *gorm.DB { return q.Order("sequence asc") }).
		Where("approval_status = ?", model.RequestStatusPending).
		Where("updated_at < ?", before).
		Order("updated_at asc").
		Find(&requests).Error
	return requests, err
}

func (r *purchaseRequestRepository) NextRequestNo(ctx context.Context, day time.Time) (string, error) {
	return nextDocumentNo(GetDB(ctx, r.db), "purchase_requests", "request_no", "PR-"+day.Format("20060102")+"-")
}

func (r *purchaseRequestRepository) CountOrders(ctx context.Context, id uuid.UUID) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.PurchaseOrder{}).Where("purchase_request_id = ?", id).Count(&n).Error
	return n, err
}
