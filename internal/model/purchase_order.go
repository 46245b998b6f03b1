package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order statuses
const (
	OrderStatusPending   = "Pending"
	OrderStatusPlaced    = "Placed"
	OrderStatusReceived  = "Received"
	OrderStatusCancelled = "Cancelled"
)

// Payment statuses
const (
	PaymentStatusUnpaid  = "Unpaid"
	PaymentStatusPaid    = "Paid"
	PaymentStatusPartial = "Partial"
)

// PurchaseOrder is placed with a vendor for (part of) an approved purchase request
type PurchaseOrder struct {
	ID                uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	OrderNo           string              `gorm:"type:varchar(30);uniqueIndex;not null" json:"order_no"`
	PurchaseRequestID uuid.UUID           `gorm:"type:uuid;not null;index" json:"purchase_request_id"`
	PurchaseRequest   *PurchaseRequest    `gorm:"foreignKey:PurchaseRequestID" json:"purchase_request,omitempty"`
	VendorID          uuid.UUID           `gorm:"type:uuid;not null;index" json:"vendor_id"`
	Vendor            *Vendor             `gorm:"foreignKey:VendorID" json:"vendor,omitempty"`
	OrderStatus       string              `gorm:"type:varchar(20);not null;default:'Pending';index" json:"order_status"`
	PaymentStatus     string              `gorm:"type:varchar(20);not null;default:'Unpaid';index" json:"payment_status"`
	TotalAmount       decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0" json:"total_amount"`
	ExpectedDelivery  *time.Time          `json:"expected_delivery"`
	PlacedAt          *time.Time          `json:"placed_at"`
	ReceivedAt        *time.Time          `json:"received_at"`
	CancelledAt       *time.Time          `json:"cancelled_at"`
	Note              string              `gorm:"type:text" json:"note"`
	CreatedBy         *uuid.UUID          `gorm:"type:uuid" json:"created_by"`
	Items             []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt         time.Time           `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// PurchaseOrderItem is a line of a purchase order
type PurchaseOrderItem struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PurchaseOrderID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"purchase_order_id"`
	PurchaseRequestItemID *uuid.UUID      `gorm:"type:uuid;index" json:"purchase_request_item_id"`
	Name                  string          `gorm:"type:varchar(255);not null" json:"name"`
	CategoryID            *uuid.UUID      `gorm:"type:uuid;index" json:"category_id"`
	Category              *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Quantity              int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice             decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
}

// LineTotal is quantity times unit price
func (i PurchaseOrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
