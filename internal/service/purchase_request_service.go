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

type PurchaseRequestItemInput struct {
	Name              string          `json:"name" binding:"required"`
	Specification     string          `json:"specification"`
	CategoryID        string          `json:"category_id"`
	VendorID          string          `json:"vendor_id"`
	Quantity          int             `json:"quantity" binding:"required,gt=0"`
	EstimatedUnitCost decimal.Decimal `json:"estimated_unit_cost"`
}

type CreatePurchaseRequestDTO struct {
	Title         string                     `json:"title" binding:"required"`
	Justification string                     `json:"justification"`
	DepartmentID  string                     `json:"department_id"`
	ApproverID    string                     `json:"approver_id"`
	Items         []PurchaseRequestItemInput `json:"items" binding:"required,min=1,dive"`
}

type DecisionDTO struct {
	Decision        string   `json:"decision" binding:"required,oneof=approve reject"`
	Comment         string   `json:"comment"`
	RejectedItemIDs []string `json:"rejected_item_ids"`
}

type PurchaseRequestFilter struct {
	Status       string
	DepartmentID string
	RequesterID  string
	AwaitingRole string
	Search       string
	Page         int
	Limit        int
}

type PurchaseRequestItemResponse struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Specification     string          `json:"specification"`
	CategoryID        *uuid.UUID      `json:"category_id"`
	CategoryName      string          `json:"category_name,omitempty"`
	VendorID          *uuid.UUID      `json:"vendor_id"`
	VendorName        string          `json:"vendor_name,omitempty"`
	Quantity          int             `json:"quantity"`
	EstimatedUnitCost decimal.Decimal `json:"estimated_unit_cost"`
	EstimatedCost     decimal.Decimal `json:"estimated_cost"`
	ItemStatus        string          `json:"item_status"`
}

type ApprovalStageResponse struct {
	Sequence   int        `json:"sequence"`
	Role       string     `json:"role"`
	AssigneeID *uuid.UUID `json:"assignee_id"`
	Status     string     `json:"status"`
	ActedBy    *uuid.UUID `json:"acted_by"`
	ActorName  string     `json:"actor_name,omitempty"`
	ActedAt    *string    `json:"acted_at"`
	Comment    string     `json:"comment"`
}

type PurchaseRequestResponse struct {
	ID                 string                        `json:"id"`
	RequestNo          string                        `json:"request_no"`
	Title              string                        `json:"title"`
	Justification      string                        `json:"justification"`
	RequesterID        string                        `json:"requester_id"`
	RequesterName      string                        `json:"requester_name"`
	ApproverID         *uuid.UUID                    `json:"approver_id"`
	ApproverName       string                        `json:"approver_name,omitempty"`
	CollegeID          *uuid.UUID                    `json:"college_id"`
	DepartmentID       *uuid.UUID                    `json:"department_id"`
	DepartmentName     string                        `json:"department_name,omitempty"`
	ApprovalStatus     string                        `json:"approval_status"`
	CurrentStage       int                           `json:"current_stage"`
	TotalEstimatedCost decimal.Decimal               `json:"total_estimated_cost"`
	RejectionReason    string                        `json:"rejection_reason,omitempty"`
	DecidedAt          *string                       `json:"decided_at"`
	Items              []PurchaseRequestItemResponse `json:"items"`
	Stages             []ApprovalStageResponse       `json:"stages"`
	CreatedAt          string                        `json:"created_at"`
}

// StaleRequest is a pending request whose current stage has waited too long
type StaleRequest struct {
	ID           uuid.UUID  `json:"id"`
	RequestNo    string     `json:"request_no"`
	Title        string     `json:"title"`
	StageRole    string     `json:"stage_role"`
	AssigneeID   *uuid.UUID `json:"assignee_id,omitempty"`
	WaitingSince time.Time  `json:"waiting_since"`
}

// --- Interface ---

type PurchaseRequestService interface {
	Create(ctx context.Context, requesterID string, req CreatePurchaseRequestDTO) (*PurchaseRequestResponse, error)
	Get(ctx context.Context, id string) (*PurchaseRequestResponse, error)
	List(ctx context.Context, filter PurchaseRequestFilter) ([]PurchaseRequestResponse, int64, error)
	Decide(ctx context.Context, actorID, id string, req DecisionDTO) (*PurchaseRequestResponse, error)
	Delete(ctx context.Context, actorID, id string) error
	ListStalePending(ctx context.Context, olderThan time.Duration) ([]StaleRequest, error)
}

type purchaseRequestService struct {
	repo        repository.PurchaseRequestRepository
	users       repository.UserRepository
	departments repository.MasterRepository[model.Department]
	categories  repository.MasterRepository[model.Category]
	vendors     repository.MasterRepository[model.Vendor]
	audit       AuditService
	txManager   repository.TransactionManager
	publisher   notify.Publisher
	chain       workflow.Chain
}

func NewPurchaseRequestService(
	repo repository.PurchaseRequestRepository,
	users repository.UserRepository,
	departments repository.MasterRepository[model.Department],
	categories repository.MasterRepository[model.Category],
	vendors repository.MasterRepository[model.Vendor],
	audit AuditService,
	txManager repository.TransactionManager,
	publisher notify.Publisher,
	chain workflow.Chain,
) PurchaseRequestService {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if len(chain) == 0 {
		chain = workflow.DefaultChain
	}
	return &purchaseRequestService{
		repo:        repo,
		users:       users,
		departments: departments,
		categories:  categories,
		vendors:     vendors,
		audit:       audit,
		txManager:   txManager,
		publisher:   publisher,
		chain:       chain,
	}
}

// --- Implementation ---

func (s *purchaseRequestService) Create(ctx context.Context, requesterID string, req CreatePurchaseRequestDTO) (*PurchaseRequestResponse, error) {
	userID, err := parseID("requester id", requesterID)
	if err != nil {
		return nil, err
	}
	requester, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, loadErr("requester", err)
	}

	// Department defaults to the requester's own; the college follows the department.
	departmentID := requester.DepartmentID
	if req.DepartmentID != "" {
		if departmentID, err = parseOptionalID("department_id", req.DepartmentID); err != nil {
			return nil, err
		}
	}
	collegeID := requester.CollegeID
	if departmentID != nil {
		dept, err := s.departments.FindByID(ctx, *departmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, invalidf("department does not exist")
			}
			return nil, fmt.Errorf("failed to load department: %w", err)
		}
		collegeID = &dept.CollegeID
	}
	if departmentID == nil && s.chain.Needs(model.ScopeDepartment) {
		return nil, invalidf("department_id is required")
	}
	if collegeID == nil && s.chain.Needs(model.ScopeCollege) {
		return nil, invalidf("college is required: set department_id")
	}

	approverID, err := s.checkApprover(ctx, req.ApproverID, collegeID, departmentID)
	if err != nil {
		return nil, err
	}

	items := make([]model.PurchaseRequestItem, 0, len(req.Items))
	for i, in := range req.Items {
		item, err := s.buildItem(ctx, i, in)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	pr := &model.PurchaseRequest{
		Title:              req.Title,
		Justification:      req.Justification,
		RequesterID:        requester.ID,
		ApproverID:         approverID,
		CollegeID:          collegeID,
		DepartmentID:       departmentID,
		ApprovalStatus:     model.RequestStatusPending,
		CurrentStage:       1,
		TotalEstimatedCost: TotalEstimatedCost(items),
		Items:              items,
		Stages:             s.chain.NewStages(approverID),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		no, err := s.repo.NextRequestNo(txCtx, time.Now())
		if err != nil {
			return err
		}
		pr.RequestNo = no

		if err := s.repo.Create(txCtx, pr); err != nil {
			return fmt.Errorf("failed to create purchase request: %w", err)
		}

		return s.audit.Record(txCtx, &requester.ID, model.ActionCreatePurchaseRequest, pr.ID.String(), pr.RequestNo, map[string]interface{}{
			"title":                pr.Title,
			"items":                len(pr.Items),
			"total_estimated_cost": pr.TotalEstimatedCost.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, notify.NewEvent(notify.EventRequestCreated, pr.ID.String(), map[string]interface{}{
		"request_no": pr.RequestNo,
		"stage_role": pr.Stages[0].Role,
	}))

	return s.Get(ctx, pr.ID.String())
}

// TotalEstimatedCost sums quantity times estimated unit cost over items.
func TotalEstimatedCost(items []model.PurchaseRequestItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.EstimatedCost())
	}
	return total
}

func (s *purchaseRequestService) checkApprover(ctx context.Context, raw string, collegeID, departmentID *uuid.UUID) (*uuid.UUID, error) {
	approverID, err := parseOptionalID("approver_id", raw)
	if err != nil || approverID == nil {
		return nil, err
	}
	approver, err := s.users.GetByID(ctx, *approverID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidf("approver does not exist")
		}
		return nil, fmt.Errorf("failed to load approver: %w", err)
	}

	candidate := &model.PurchaseRequest{CollegeID: collegeID, DepartmentID: departmentID}
	first := s.chain.NewStages(nil)[0]
	actor := workflow.Actor{ID: approver.ID, Role: approver.Role, CollegeID: approver.CollegeID, DepartmentID: approver.DepartmentID}
	if err := workflow.Authorize(candidate, &first, actor); err != nil {
		return nil, invalidf("approver cannot act on the first approval stage (%s)", first.Role)
	}
	return approverID, nil
}

func (s *purchaseRequestService) buildItem(ctx context.Context, idx int, in PurchaseRequestItemInput) (model.PurchaseRequestItem, error) {
	if in.EstimatedUnitCost.IsNegative() {
		return model.PurchaseRequestItem{}, invalidf("items[%d]: estimated_unit_cost must not be negative", idx)
	}
	categoryID, err := parseOptionalID(fmt.Sprintf("items[%d].category_id", idx), in.CategoryID)
	if err != nil {
		return model.PurchaseRequestItem{}, err
	}
	if categoryID != nil {
		if ok, err := s.categories.Exists(ctx, *categoryID); err != nil {
			return model.PurchaseRequestItem{}, fmt.Errorf("failed to load category: %w", err)
		} else if !ok {
			return model.PurchaseRequestItem{}, invalidf("items[%d]: category does not exist", idx)
		}
	}
	vendorID, err := parseOptionalID(fmt.Sprintf("items[%d].vendor_id", idx), in.VendorID)
	if err != nil {
		return model.PurchaseRequestItem{}, err
	}
	if vendorID != nil {
		if ok, err := s.vendors.Exists(ctx, *vendorID); err != nil {
			return model.PurchaseRequestItem{}, fmt.Errorf("failed to load vendor: %w", err)
		} else if !ok {
			return model.PurchaseRequestItem{}, invalidf("items[%d]: vendor does not exist", idx)
		}
	}

	return model.PurchaseRequestItem{
		Name:              in.Name,
		Specification:     in.Specification,
		CategoryID:        categoryID,
		VendorID:          vendorID,
		Quantity:          in.Quantity,
		EstimatedUnitCost: in.EstimatedUnitCost,
		ItemStatus:        model.ItemStatusPending,
	}, nil
}

func (s *purchaseRequestService) Get(ctx context.Context, id string) (*PurchaseRequestResponse, error) {
	reqID, err := parseID("purchase request id", id)
	if err != nil {
		return nil, err
	}
	pr, err := s.repo.FindByID(ctx, reqID)
	if err != nil {
		return nil, loadErr("purchase request", err)
	}
	res := toPurchaseRequestResponse(*pr)
	return &res, nil
}

func (s *purchaseRequestService) List(ctx context.Context, filter PurchaseRequestFilter) ([]PurchaseRequestResponse, int64, error) {
	if filter.Status != "" {
		if err := workflow.Requests.CheckStatus(filter.Status); err != nil {
			return nil, 0, err
		}
	}
	departmentID, err := parseOptionalID("department_id", filter.DepartmentID)
	if err != nil {
		return nil, 0, err
	}
	requesterID, err := parseOptionalID("requester_id", filter.RequesterID)
	if err != nil {
		return nil, 0, err
	}

	requests, total, err := s.repo.List(ctx, repository.PurchaseRequestFilter{
		Status:       filter.Status,
		DepartmentID: departmentID,
		RequesterID:  requesterID,
		AwaitingRole: filter.AwaitingRole,
		Search:       filter.Search,
		Page:         filter.Page,
		Limit:        filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list purchase requests: %w", err)
	}

	result := make([]PurchaseRequestResponse, 0, len(requests))
	for _, pr := range requests {
		result = append(result, toPurchaseRequestResponse(pr))
	}
	return result, total, nil
}

// Decide applies an approver's decision to the current stage. The acting
// user's role and affiliation are read from the database.
func (s *purchaseRequestService) Decide(ctx context.Context, actorID, id string, req DecisionDTO) (*PurchaseRequestResponse, error) {
	reqID, err := parseID("purchase request id", id)
	if err != nil {
		return nil, err
	}
	userID, err := parseID("user id", actorID)
	if err != nil {
		return nil, err
	}
	rejected := make([]uuid.UUID, 0, len(req.RejectedItemIDs))
	for _, raw := range req.RejectedItemIDs {
		itemID, err := parseID("rejected_item_ids", raw)
		if err != nil {
			return nil, err
		}
		rejected = append(rejected, itemID)
	}

	var (
		pr      *model.PurchaseRequest
		outcome workflow.Outcome
	)
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.GetByID(txCtx, userID)
		if err != nil {
			return loadErr("user", err)
		}

		pr, err = s.repo.FindByIDForUpdate(txCtx, reqID)
		if err != nil {
			return loadErr("purchase request", err)
		}

		actor := workflow.Actor{ID: user.ID, Role: user.Role, CollegeID: user.CollegeID, DepartmentID: user.DepartmentID}
		outcome, err = workflow.Apply(pr, actor, workflow.Decision(req.Decision), req.Comment, rejected, time.Now())
		if err != nil {
			return err
		}

		if err := s.repo.SaveDecision(txCtx, pr, outcome.Stage); err != nil {
			return fmt.Errorf("failed to save decision: %w", err)
		}

		action := model.ActionApproveStage
		if outcome.Stage.Status == model.StageStatusRejected {
			action = model.ActionRejectStage
		}
		if err := s.audit.Record(txCtx, &user.ID, action, pr.ID.String(), pr.RequestNo, map[string]interface{}{
			"stage":   outcome.Stage.Sequence,
			"role":    outcome.Stage.Role,
			"comment": outcome.Stage.Comment,
		}); err != nil {
			return err
		}

		if outcome.Final {
			return s.audit.Record(txCtx, &user.ID, model.ActionFinalizeRequest, pr.ID.String(), pr.RequestNo, map[string]interface{}{
				"approval_status":   pr.ApprovalStatus,
				"rejected_item_ids": req.RejectedItemIDs,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome.Final {
		s.publisher.Publish(ctx, notify.NewEvent(notify.EventRequestDecided, pr.ID.String(), map[string]interface{}{
			"request_no":      pr.RequestNo,
			"approval_status": pr.ApprovalStatus,
		}))
	} else {
		s.publisher.Publish(ctx, notify.NewEvent(notify.EventStageApproved, pr.ID.String(), map[string]interface{}{
			"request_no":    pr.RequestNo,
			"current_stage": pr.CurrentStage,
		}))
	}

	return s.Get(ctx, pr.ID.String())
}

// Delete withdraws a pending request. Only its requester or an admin may do so.
func (s *purchaseRequestService) Delete(ctx context.Context, actorID, id string) error {
	reqID, err := parseID("purchase request id", id)
	if err != nil {
		return err
	}
	userID, err := parseID("user id", actorID)
	if err != nil {
		return err
	}

	var requestNo string
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.users.GetByID(txCtx, userID)
		if err != nil {
			return loadErr("user", err)
		}
		pr, err := s.repo.FindByIDForUpdate(txCtx, reqID)
		if err != nil {
			return loadErr("purchase request", err)
		}
		if pr.RequesterID != user.ID && user.Role != model.RoleAdmin {
			return fmt.Errorf("%w: only the requester or an admin can delete a purchase request", ErrForbidden)
		}
		if pr.ApprovalStatus != model.RequestStatusPending {
			return invalidf("cannot delete a %s purchase request", pr.ApprovalStatus)
		}
		if n, err := s.repo.CountOrders(txCtx, pr.ID); err != nil {
			return fmt.Errorf("failed to count purchase orders: %w", err)
		} else if n > 0 {
			return invalidf("purchase request has %d purchase order(s)", n)
		}

		if err := s.repo.Delete(txCtx, pr.ID); err != nil {
			return fmt.Errorf("failed to delete purchase request: %w", err)
		}
		requestNo = pr.RequestNo
		return s.audit.Record(txCtx, &user.ID, model.ActionDeletePurchaseRequest, pr.ID.String(), pr.RequestNo, nil)
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(ctx, notify.NewEvent(notify.EventRequestDeleted, reqID.String(), map[string]interface{}{"request_no": requestNo}))
	return nil
}

func (s *purchaseRequestService) ListStalePending(ctx context.Context, olderThan time.Duration) ([]StaleRequest, error) {
	requests, err := s.repo.ListStalePending(ctx, time.Now().Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("failed to list stale purchase requests: %w", err)
	}

	out := make([]StaleRequest, 0, len(requests))
	for i := range requests {
		pr := &requests[i]
		idx, err := workflow.CurrentStage(pr)
		if err != nil {
			continue
		}
		stage := pr.Stages[idx]
		out = append(out, StaleRequest{
			ID:           pr.ID,
			RequestNo:    pr.RequestNo,
			Title:        pr.Title,
			StageRole:    stage.Role,
			AssigneeID:   stage.AssigneeID,
			WaitingSince: pr.UpdatedAt,
		})
	}
	return out, nil
}

// --- Helpers ---

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeLayout)
	return &s
}

func toPurchaseRequestResponse(pr model.PurchaseRequest) PurchaseRequestResponse {
	res := PurchaseRequestResponse{
		ID:                 pr.ID.String(),
		RequestNo:          pr.RequestNo,
		Title:              pr.Title,
		Justification:      pr.Justification,
		RequesterID:        pr.RequesterID.String(),
		ApproverID:         pr.ApproverID,
		CollegeID:          pr.CollegeID,
		DepartmentID:       pr.DepartmentID,
		ApprovalStatus:     pr.ApprovalStatus,
		CurrentStage:       pr.CurrentStage,
		TotalEstimatedCost: pr.TotalEstimatedCost,
		RejectionReason:    pr.RejectionReason,
		DecidedAt:          formatTime(pr.DecidedAt),
		Items:              make([]PurchaseRequestItemResponse, 0, len(pr.Items)),
		Stages:             make([]ApprovalStageResponse, 0, len(pr.Stages)),
		CreatedAt:          pr.CreatedAt.Format(timeLayout),
	}
	if pr.Requester != nil {
		res.RequesterName = pr.Requester.Username
	}
	if pr.Approver != nil {
		res.ApproverName = pr.Approver.Username
	}
	if pr.Department != nil {
		res.DepartmentName = pr.Department.Name
	}

	for _, it := range pr.Items {
		item := PurchaseRequestItemResponse{
			ID:                it.ID.String(),
			Name:              it.Name,
			Specification:     it.Specification,
			CategoryID:        it.CategoryID,
			VendorID:          it.VendorID,
			Quantity:          it.Quantity,
			EstimatedUnitCost: it.EstimatedUnitCost,
			EstimatedCost:     it.EstimatedCost(),
			ItemStatus:        it.ItemStatus,
		}
		if it.Category != nil {
			item.CategoryName = it.Category.Name
		}
		if it.Vendor != nil {
			item.VendorName = it.Vendor.Name
		}
		res.Items = append(res.Items, item)
	}

	for _, st := range pr.Stages {
		stage := ApprovalStageResponse{
			Sequence:   st.Sequence,
			Role:       st.Role,
			AssigneeID: st.AssigneeID,
			Status:     st.Status,
			ActedBy:    st.ActedBy,
			ActedAt:    formatTime(st.ActedAt),
			Comment:    st.Comment,
		}
		if st.Actor != nil {
			stage.ActorName = st.Actor.Username
		}
		res.Stages = append(res.Stages, stage)
	}
	return res
}
