package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreatePurchaseRequest = "CREATE_PURCHASE_REQUEST"
	ActionDeletePurchaseRequest = "DELETE_PURCHASE_REQUEST"
	ActionApproveStage          = "APPROVE_STAGE"
	ActionRejectStage           = "REJECT_STAGE"
	ActionFinalizeRequest       = "FINALIZE_PURCHASE_REQUEST"

	ActionCreatePurchaseOrder = "CREATE_PURCHASE_ORDER"
	ActionUpdatePurchaseOrder = "UPDATE_PURCHASE_ORDER"
	ActionChangeOrderStatus   = "CHANGE_ORDER_STATUS"
	ActionDeletePurchaseOrder = "DELETE_PURCHASE_ORDER"

	ActionBulkCreateStock = "BULK_CREATE_STOCK"
	ActionUpdateStockItem = "UPDATE_STOCK_ITEM"

	ActionCreateMasterData = "CREATE_MASTER_DATA"
	ActionUpdateMasterData = "UPDATE_MASTER_DATA"
	ActionDeleteMasterData = "DELETE_MASTER_DATA"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // Nullable for scheduled jobs
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
