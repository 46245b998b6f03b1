package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Purchase request approval statuses
const (
	RequestStatusPending           = "Pending"
	RequestStatusApproved          = "Approved"
	RequestStatusRejected          = "Rejected"
	RequestStatusPartiallyApproved = "Partially Approved"
)

// Request item statuses, set when the final stage decides
const (
	ItemStatusPending  = "Pending"
	ItemStatusApproved = "Approved"
	ItemStatusRejected = "Rejected"
)

// Approval stage statuses
const (
	StageStatusPending  = "Pending"
	StageStatusApproved = "Approved"
	StageStatusRejected = "Rejected"
	StageStatusSkipped  = "Skipped"
)

// PurchaseRequest is raised by an institution member asking for items.
// It moves through an ordered chain of ApprovalStages before it can be ordered.
type PurchaseRequest struct {
	ID                 uuid.UUID             `gorm:"type:uuid;primaryKey" json:"id"`
	RequestNo          string                `gorm:"type:varchar(30);uniqueIndex;not null" json:"request_no"`
	Title              string                `gorm:"type:varchar(255);not null" json:"title"`
	Justification      string                `gorm:"type:text" json:"justification"`
	RequesterID        uuid.UUID             `gorm:"type:uuid;not null;index" json:"requester_id"`
	Requester          *User                 `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	ApproverID         *uuid.UUID            `gorm:"type:uuid;index" json:"approver_id"` // designated first-stage approver
	Approver           *User                 `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	CollegeID          *uuid.UUID            `gorm:"type:uuid;index" json:"college_id"`
	DepartmentID       *uuid.UUID            `gorm:"type:uuid;index" json:"department_id"`
	Department         *Department           `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`
	ApprovalStatus     string                `gorm:"type:varchar(30);not null;default:'Pending';index" json:"approval_status"`
	CurrentStage       int                   `gorm:"not null;default:1" json:"current_stage"`
	TotalEstimatedCost decimal.Decimal       `gorm:"type:decimal(18,2);not null;default:0" json:"total_estimated_cost"`
	RejectionReason    string                `gorm:"type:text" json:"rejection_reason"`
	DecidedAt          *time.Time            `json:"decided_at"`
	Items              []PurchaseRequestItem `gorm:"foreignKey:PurchaseRequestID;constraint:OnDelete:CASCADE" json:"items"`
	Stages             []ApprovalStage       `gorm:"foreignKey:PurchaseRequestID;constraint:OnDelete:CASCADE" json:"stages"`
	CreatedAt          time.Time             `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
	DeletedAt          gorm.DeletedAt        `gorm:"index" json:"-"`
}

// Orderable reports whether purchase orders may be raised against r.
// Rejected items of a partially approved request stay out of its orders.
func (r *PurchaseRequest) Orderable() bool {
	return r.ApprovalStatus == RequestStatusApproved || r.ApprovalStatus == RequestStatusPartiallyApproved
}

// PurchaseRequestItem is a line of a purchase request
type PurchaseRequestItem struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PurchaseRequestID uuid.UUID       `gorm:"type:uuid;not null;index" json:"purchase_request_id"`
	Name              string          `gorm:"type:varchar(255);not null" json:"name"`
	Specification     string          `gorm:"type:text" json:"specification"`
	CategoryID        *uuid.UUID      `gorm:"type:uuid;index" json:"category_id"`
	Category          *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	VendorID          *uuid.UUID      `gorm:"type:uuid;index" json:"vendor_id"`
	Vendor            *Vendor         `gorm:"foreignKey:VendorID" json:"vendor,omitempty"`
	Quantity          int             `gorm:"type:int;not null" json:"quantity"`
	EstimatedUnitCost decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"estimated_unit_cost"`
	ItemStatus        string          `gorm:"type:varchar(20);not null;default:'Pending'" json:"item_status"`
}

// EstimatedCost is quantity times the estimated unit cost
func (i PurchaseRequestItem) EstimatedCost() decimal.Decimal {
	return i.EstimatedUnitCost.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ApprovalStage is one sign-off in a request's ordered approval chain
type ApprovalStage struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PurchaseRequestID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_stage_request_sequence" json:"purchase_request_id"`
	Sequence          int        `gorm:"not null;uniqueIndex:idx_stage_request_sequence" json:"sequence"`
	Role              string     `gorm:"type:varchar(50);not null" json:"role"`
	AssigneeID        *uuid.UUID `gorm:"type:uuid;index" json:"assignee_id"`
	Status            string     `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status"`
	ActedBy           *uuid.UUID `gorm:"type:uuid" json:"acted_by"`
	Actor             *User      `gorm:"foreignKey:ActedBy" json:"actor,omitempty"`
	ActedAt           *time.Time `json:"acted_at"`
	Comment           string     `gorm:"type:text" json:"comment"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
