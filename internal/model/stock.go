package model

import (
	"time"

	"github.com/google/uuid"
)

// Stock item statuses
const (
	StockStatusInStock   = "In Stock"
	StockStatusAllocated = "Allocated"
	StockStatusInService = "In Service"
	StockStatusTrash     = "Trash"
)

// StockItem is one physical unit received against a purchase order item
type StockItem struct {
	ID                  uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	AssetTag            string             `gorm:"type:varchar(50);uniqueIndex;not null" json:"asset_tag"`
	Name                string             `gorm:"type:varchar(255);not null" json:"name"`
	PurchaseOrderID     uuid.UUID          `gorm:"type:uuid;not null;index" json:"purchase_order_id"`
	PurchaseOrderItemID uuid.UUID          `gorm:"type:uuid;not null;index" json:"purchase_order_item_id"`
	PurchaseOrderItem   *PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderItemID" json:"-"`
	CategoryID          *uuid.UUID         `gorm:"type:uuid;index" json:"category_id"`
	Category            *Category          `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Status              string             `gorm:"type:varchar(20);not null;default:'In Stock';index" json:"status"`
	LocationID          *uuid.UUID         `gorm:"type:uuid;index" json:"location_id"`
	Location            *Location          `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	Remarks             string             `gorm:"type:text" json:"remarks"`
	CreatedAt           time.Time          `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// StockMovement records a status or location change of a stock item
type StockMovement struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StockItemID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"stock_item_id"`
	FromStatus     string     `gorm:"type:varchar(20)" json:"from_status"` // empty for the initial receipt
	ToStatus       string     `gorm:"type:varchar(20);not null" json:"to_status"`
	FromLocationID *uuid.UUID `gorm:"type:uuid" json:"from_location_id"`
	ToLocationID   *uuid.UUID `gorm:"type:uuid" json:"to_location_id"`
	ChangedBy      *uuid.UUID `gorm:"type:uuid" json:"changed_by"`
	Note           string     `gorm:"type:text" json:"note"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
}
