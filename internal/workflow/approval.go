package workflow

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"ims/internal/model"

	"github.com/google/uuid"
)

var (
	ErrStageForbidden  = errors.New("not allowed to act on this approval stage")
	ErrRequestDecided  = errors.New("purchase request is already decided")
	ErrNoPendingStage  = errors.New("purchase request has no pending approval stage")
	ErrInvalidDecision = errors.New("invalid approval decision")
)

// Decision is what an approver does with the current stage.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Actor is the verified user acting on a stage, read from the database.
type Actor struct {
	ID           uuid.UUID
	Role         string
	CollegeID    *uuid.UUID
	DepartmentID *uuid.UUID
}

// Chain is an ordered list of approver roles, first stage first.
type Chain []string

// DefaultChain is used when nothing is configured.
var DefaultChain = Chain{model.RoleHOD, model.RolePrincipal, model.RoleAdmin}

// Needs reports whether some stage of c is scoped to scope, meaning a
// request must carry that unit to ever be decided.
func (c Chain) Needs(scope model.RoleScope) bool {
	for _, role := range c {
		if model.ScopeOf(role) == scope {
			return true
		}
	}
	return false
}

// NewStages builds the pending stages for a new request. The designated
// approver, when given, is assigned to the first stage.
func (c Chain) NewStages(firstAssignee *uuid.UUID) []model.ApprovalStage {
	stages := make([]model.ApprovalStage, 0, len(c))
	for i, role := range c {
		stage := model.ApprovalStage{
			Sequence: i + 1,
			Role:     role,
			Status:   model.StageStatusPending,
		}
		if i == 0 && firstAssignee != nil {
			id := *firstAssignee
			stage.AssigneeID = &id
		}
		stages = append(stages, stage)
	}
	return stages
}

// CurrentStage returns the index in req.Stages of the lowest-sequence
// pending stage.
func CurrentStage(req *model.PurchaseRequest) (int, error) {
	idx := -1
	for i := range req.Stages {
		if req.Stages[i].Status != model.StageStatusPending {
			continue
		}
		if idx == -1 || req.Stages[i].Sequence < req.Stages[idx].Sequence {
			idx = i
		}
	}
	if idx == -1 {
		return -1, ErrNoPendingStage
	}
	return idx, nil
}

// Authorize checks that actor may act on stage of req.
func Authorize(req *model.PurchaseRequest, stage *model.ApprovalStage, actor Actor) error {
	if actor.Role != stage.Role {
		return fmt.Errorf("%w: stage %d requires role %s", ErrStageForbidden, stage.Sequence, stage.Role)
	}
	if stage.AssigneeID != nil && *stage.AssigneeID != actor.ID {
		return fmt.Errorf("%w: stage %d is assigned to another user", ErrStageForbidden, stage.Sequence)
	}
	switch model.ScopeOf(stage.Role) {
	case model.ScopeDepartment:
		if !sameID(req.DepartmentID, actor.DepartmentID) {
			return fmt.Errorf("%w: head of another department", ErrStageForbidden)
		}
	case model.ScopeCollege:
		if !sameID(req.CollegeID, actor.CollegeID) {
			return fmt.Errorf("%w: principal of another college", ErrStageForbidden)
		}
	}
	return nil
}

func sameID(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a == *b
}

// Outcome describes what Apply changed.
type Outcome struct {
	Stage *model.ApprovalStage
	// Final is set when the request left Pending.
	Final bool
}

// Apply records actor's decision on the current stage of req, mutating the
// request, its stages and its items in place. rejectedItems is only
// accepted when approving the final stage.
func Apply(req *model.PurchaseRequest, actor Actor, decision Decision, comment string, rejectedItems []uuid.UUID, now time.Time) (Outcome, error) {
	if req.ApprovalStatus != model.RequestStatusPending {
		return Outcome{}, fmt.Errorf("%w: %s", ErrRequestDecided, req.ApprovalStatus)
	}

	idx, err := CurrentStage(req)
	if err != nil {
		return Outcome{}, err
	}
	stage := &req.Stages[idx]
	if err := Authorize(req, stage, actor); err != nil {
		return Outcome{}, err
	}

	last := isLastStage(req.Stages, stage.Sequence)

	switch decision {
	case DecisionApprove:
		if len(rejectedItems) > 0 && !last {
			return Outcome{}, fmt.Errorf("%w: items can only be rejected at the final stage", ErrInvalidDecision)
		}
		rejected, err := itemSet(req.Items, rejectedItems)
		if err != nil {
			return Outcome{}, err
		}
		if len(req.Items) > 0 && len(rejected) == len(req.Items) {
			if comment == "" {
				comment = "all items rejected"
			}
			return reject(req, idx, actor, comment, now)
		}

		markStage(stage, model.StageStatusApproved, actor, comment, now)
		if !last {
			req.CurrentStage = nextPendingSequence(req.Stages)
			return Outcome{Stage: stage}, nil
		}

		final := model.RequestStatusApproved
		if len(rejected) > 0 {
			final = model.RequestStatusPartiallyApproved
		}
		if _, err := Requests.Transition(req.ApprovalStatus, final); err != nil {
			return Outcome{}, err
		}
		for i := range req.Items {
			if rejected[req.Items[i].ID] {
				req.Items[i].ItemStatus = model.ItemStatusRejected
			} else {
				req.Items[i].ItemStatus = model.ItemStatusApproved
			}
		}
		req.ApprovalStatus = final
		req.DecidedAt = &now
		return Outcome{Stage: stage, Final: true}, nil

	case DecisionReject:
		if len(rejectedItems) > 0 {
			return Outcome{}, fmt.Errorf("%w: rejected_item_ids only apply to approvals", ErrInvalidDecision)
		}
		if comment == "" {
			return Outcome{}, fmt.Errorf("%w: a reason is required to reject", ErrInvalidDecision)
		}
		return reject(req, idx, actor, comment, now)

	default:
		return Outcome{}, fmt.Errorf("%w: unknown decision %q", ErrInvalidDecision, decision)
	}
}

func reject(req *model.PurchaseRequest, idx int, actor Actor, reason string, now time.Time) (Outcome, error) {
	if _, err := Requests.Transition(req.ApprovalStatus, model.RequestStatusRejected); err != nil {
		return Outcome{}, err
	}
	stage := &req.Stages[idx]
	markStage(stage, model.StageStatusRejected, actor, reason, now)
	for i := range req.Stages {
		if req.Stages[i].Status == model.StageStatusPending {
			req.Stages[i].Status = model.StageStatusSkipped
		}
	}
	for i := range req.Items {
		req.Items[i].ItemStatus = model.ItemStatusRejected
	}
	req.ApprovalStatus = model.RequestStatusRejected
	req.RejectionReason = reason
	req.DecidedAt = &now
	return Outcome{Stage: stage, Final: true}, nil
}

func markStage(stage *model.ApprovalStage, status string, actor Actor, comment string, now time.Time) {
	actedBy := actor.ID
	stage.Status = status
	stage.ActedBy = &actedBy
	stage.ActedAt = &now
	stage.Comment = comment
}

func isLastStage(stages []model.ApprovalStage, sequence int) bool {
	for _, s := range stages {
		if s.Sequence > sequence {
			return false
		}
	}
	return true
}

func nextPendingSequence(stages []model.ApprovalStage) int {
	seqs := make([]int, 0, len(stages))
	for _, s := range stages {
		if s.Status == model.StageStatusPending {
			seqs = append(seqs, s.Sequence)
		}
	}
	if len(seqs) == 0 {
		return 0
	}
	sort.Ints(seqs)
	return seqs[0]
}

func itemSet(items []model.PurchaseRequestItem, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	known := make(map[uuid.UUID]bool, len(items))
	for _, it := range items {
		known[it.ID] = true
	}
	out := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !known[id] {
			return nil, fmt.Errorf("%w: item %s does not belong to this request", ErrInvalidDecision, id)
		}
		out[id] = true
	}
	return out, nil
}
