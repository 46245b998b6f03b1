package workflow

import (
	"errors"
	"testing"
	"time"

	"ims/internal/model"

	"github.com/google/uuid"
)

type fixture struct {
	college, dept uuid.UUID
	hod           Actor
	principal     Actor
	admin         Actor
	req           *model.PurchaseRequest
}

func newFixture(assignee *uuid.UUID) *fixture {
	college := uuid.New()
	dept := uuid.New()
	f := &fixture{
		college:   college,
		dept:      dept,
		hod:       Actor{ID: uuid.New(), Role: model.RoleHOD, CollegeID: &college, DepartmentID: &dept},
		principal: Actor{ID: uuid.New(), Role: model.RolePrincipal, CollegeID: &college},
		admin:     Actor{ID: uuid.New(), Role: model.RoleAdmin},
	}
	f.req = &model.PurchaseRequest{
		ApprovalStatus: model.RequestStatusPending,
		CurrentStage:   1,
		CollegeID:      &college,
		DepartmentID:   &dept,
		Items: []model.PurchaseRequestItem{
			{ID: uuid.New(), Name: "Projector", Quantity: 3, ItemStatus: model.ItemStatusPending},
			{ID: uuid.New(), Name: "Cable", Quantity: 1, ItemStatus: model.ItemStatusPending},
		},
		Stages: DefaultChain.NewStages(assignee),
	}
	return f
}

func TestNewStages(t *testing.T) {
	assignee := uuid.New()
	stages := DefaultChain.NewStages(&assignee)
	if len(stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(stages))
	}
	for i, want := range []string{model.RoleHOD, model.RolePrincipal, model.RoleAdmin} {
		if stages[i].Role != want || stages[i].Sequence != i+1 || stages[i].Status != model.StageStatusPending {
			t.Errorf("stage %d: unexpected %+v", i, stages[i])
		}
	}
	if stages[0].AssigneeID == nil || *stages[0].AssigneeID != assignee {
		t.Error("first stage should carry the designated approver")
	}
	if stages[1].AssigneeID != nil {
		t.Error("later stages are unassigned")
	}
}

func TestFullChainApproves(t *testing.T) {
	f := newFixture(nil)
	now := time.Now()

	for i, actor := range []Actor{f.hod, f.principal, f.admin} {
		out, err := Apply(f.req, actor, DecisionApprove, "ok", nil, now)
		if err != nil {
			t.Fatalf("stage %d: %v", i+1, err)
		}
		if out.Stage.Status != model.StageStatusApproved {
			t.Errorf("stage %d: expected Approved, got %s", i+1, out.Stage.Status)
		}
		if i < 2 {
			if out.Final || f.req.ApprovalStatus != model.RequestStatusPending {
				t.Fatalf("stage %d: request should still be pending", i+1)
			}
			if f.req.CurrentStage != i+2 {
				t.Errorf("expected current stage %d, got %d", i+2, f.req.CurrentStage)
			}
		}
	}

	if f.req.ApprovalStatus != model.RequestStatusApproved {
		t.Fatalf("expected Approved, got %s", f.req.ApprovalStatus)
	}
	if f.req.DecidedAt == nil {
		t.Error("decided_at should be stamped")
	}
	for _, it := range f.req.Items {
		if it.ItemStatus != model.ItemStatusApproved {
			t.Errorf("item %s: expected Approved, got %s", it.Name, it.ItemStatus)
		}
	}
}

func TestOutOfOrderStageIsForbidden(t *testing.T) {
	f := newFixture(nil)
	_, err := Apply(f.req, f.principal, DecisionApprove, "", nil, time.Now())
	if !errors.Is(err, ErrStageForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if f.req.Stages[0].Status != model.StageStatusPending {
		t.Error("stage must not change on a forbidden action")
	}
}

func TestAuthorizeScope(t *testing.T) {
	otherDept := uuid.New()
	otherCollege := uuid.New()

	testCases := []struct {
		name   string
		setup  func(f *fixture) Actor
		wantOK bool
	}{
		{"hod of the department", func(f *fixture) Actor { return f.hod }, true},
		{"hod of another department", func(f *fixture) Actor {
			a := f.hod
			a.DepartmentID = &otherDept
			return a
		}, false},
		{"hod without department", func(f *fixture) Actor {
			a := f.hod
			a.DepartmentID = nil
			return a
		}, false},
		{"staff cannot approve", func(f *fixture) Actor {
			a := f.hod
			a.Role = model.RoleStaff
			return a
		}, false},
		{"principal of another college at principal stage", func(f *fixture) Actor {
			f.req.Stages[0].Status = model.StageStatusApproved
			a := f.principal
			a.CollegeID = &otherCollege
			return a
		}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(nil)
			actor := tc.setup(f)
			idx, err := CurrentStage(f.req)
			if err != nil {
				t.Fatalf("current stage: %v", err)
			}
			err = Authorize(f.req, &f.req.Stages[idx], actor)
			if tc.wantOK && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.wantOK && !errors.Is(err, ErrStageForbidden) {
				t.Fatalf("expected forbidden, got %v", err)
			}
		})
	}
}

func TestAssigneeOnly(t *testing.T) {
	assignee := uuid.New()
	f := newFixture(&assignee)

	if _, err := Apply(f.req, f.hod, DecisionApprove, "", nil, time.Now()); !errors.Is(err, ErrStageForbidden) {
		t.Fatalf("expected forbidden for non-assignee, got %v", err)
	}

	designated := f.hod
	designated.ID = assignee
	if _, err := Apply(f.req, designated, DecisionApprove, "", nil, time.Now()); err != nil {
		t.Fatalf("assignee should be able to approve: %v", err)
	}
}

func TestRejectSkipsRemainingStages(t *testing.T) {
	f := newFixture(nil)
	now := time.Now()
	if _, err := Apply(f.req, f.hod, DecisionApprove, "", nil, now); err != nil {
		t.Fatalf("hod approve: %v", err)
	}

	out, err := Apply(f.req, f.principal, DecisionReject, "over budget", nil, now)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if !out.Final || f.req.ApprovalStatus != model.RequestStatusRejected {
		t.Fatalf("expected Rejected, got %s", f.req.ApprovalStatus)
	}
	if f.req.RejectionReason != "over budget" {
		t.Errorf("unexpected reason %q", f.req.RejectionReason)
	}
	want := []string{model.StageStatusApproved, model.StageStatusRejected, model.StageStatusSkipped}
	for i, s := range f.req.Stages {
		if s.Status != want[i] {
			t.Errorf("stage %d: expected %s, got %s", i+1, want[i], s.Status)
		}
	}

	if _, err := Apply(f.req, f.admin, DecisionApprove, "", nil, now); !errors.Is(err, ErrRequestDecided) {
		t.Errorf("expected decided error, got %v", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(nil)
	if _, err := Apply(f.req, f.hod, DecisionReject, "", nil, time.Now()); !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("expected invalid decision, got %v", err)
	}
}

func TestPartialApproval(t *testing.T) {
	f := newFixture(nil)
	now := time.Now()
	for _, a := range []Actor{f.hod, f.principal} {
		if _, err := Apply(f.req, a, DecisionApprove, "", nil, now); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}

	cable := f.req.Items[1].ID
	if _, err := Apply(f.req, f.admin, DecisionApprove, "no cable", []uuid.UUID{cable}, now); err != nil {
		t.Fatalf("final approve: %v", err)
	}
	if f.req.ApprovalStatus != model.RequestStatusPartiallyApproved {
		t.Fatalf("expected Partially Approved, got %s", f.req.ApprovalStatus)
	}
	if f.req.Items[0].ItemStatus != model.ItemStatusApproved || f.req.Items[1].ItemStatus != model.ItemStatusRejected {
		t.Errorf("unexpected item statuses: %s, %s", f.req.Items[0].ItemStatus, f.req.Items[1].ItemStatus)
	}
}

func TestRejectingEveryItemRejectsRequest(t *testing.T) {
	f := newFixture(nil)
	f.req.Stages = Chain{model.RoleAdmin}.NewStages(nil)

	all := []uuid.UUID{f.req.Items[0].ID, f.req.Items[1].ID}
	if _, err := Apply(f.req, f.admin, DecisionApprove, "", all, time.Now()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if f.req.ApprovalStatus != model.RequestStatusRejected {
		t.Fatalf("expected Rejected, got %s", f.req.ApprovalStatus)
	}
	if f.req.Stages[0].Status != model.StageStatusRejected {
		t.Errorf("expected stage Rejected, got %s", f.req.Stages[0].Status)
	}
}

func TestItemRejectionOnlyAtFinalStage(t *testing.T) {
	f := newFixture(nil)
	_, err := Apply(f.req, f.hod, DecisionApprove, "", []uuid.UUID{f.req.Items[0].ID}, time.Now())
	if !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("expected invalid decision, got %v", err)
	}
}

func TestUnknownItemRejected(t *testing.T) {
	f := newFixture(nil)
	f.req.Stages = Chain{model.RoleAdmin}.NewStages(nil)
	_, err := Apply(f.req, f.admin, DecisionApprove, "", []uuid.UUID{uuid.New()}, time.Now())
	if !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("expected invalid decision, got %v", err)
	}
}

func TestChainNeeds(t *testing.T) {
	testCases := []struct {
		chain         Chain
		dept, college bool
	}{
		{DefaultChain, true, true},
		{Chain{model.RolePrincipal, model.RoleAdmin}, false, true},
		{Chain{model.RoleAdmin}, false, false},
	}

	for _, tc := range testCases {
		if got := tc.chain.Needs(model.ScopeDepartment); got != tc.dept {
			t.Errorf("%v: department expected %v, got %v", tc.chain, tc.dept, got)
		}
		if got := tc.chain.Needs(model.ScopeCollege); got != tc.college {
			t.Errorf("%v: college expected %v, got %v", tc.chain, tc.college, got)
		}
	}
}
