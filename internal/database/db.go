package database

import (
	"fmt"
	"reflect"

	"ims/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         NewGormLogger(log),
	})
	if err != nil {
		return nil, err
	}

	if err := RegisterCallbacks(db); err != nil {
		return nil, err
	}

	// Auto-migrate core models
	if err := Migrate(db); err != nil {
		log.Warn("failed to auto-migrate models", zap.Error(err))
	}

	return db, nil
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.College{},
		&model.Department{},
		&model.Location{},
		&model.Category{},
		&model.Vendor{},
		&model.User{},
		&model.RefreshToken{},
		&model.Role{},
		&model.Permission{},
		&model.AuditLog{},
		&model.PurchaseRequest{},
		&model.PurchaseRequestItem{},
		&model.ApprovalStage{},
		&model.PurchaseOrder{},
		&model.PurchaseOrderItem{},
		&model.StockItem{},
		&model.StockMovement{},
	)
}

// RegisterCallbacks installs the create hook that assigns a random UUID to
// rows whose primary key is still zero, for every dialect.
func RegisterCallbacks(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("ims:assign_uuid", assignUUID); err != nil {
		return fmt.Errorf("register uuid callback: %w", err)
	}
	return nil
}

var uuidType = reflect.TypeOf(uuid.UUID{})

func assignUUID(tx *gorm.DB) {
	if tx.Statement.Schema == nil {
		return
	}
	field := tx.Statement.Schema.LookUpField("ID")
	if field == nil || field.FieldType != uuidType {
		return
	}

	rv := tx.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			setZeroID(tx, field, rv.Index(i))
		}
	case reflect.Struct:
		setZeroID(tx, field, rv)
	}
}

func setZeroID(tx *gorm.DB, field *schema.Field, rv reflect.Value) {
	rv = reflect.Indirect(rv)
	if rv.Kind() != reflect.Struct {
		return
	}
	if _, zero := field.ValueOf(tx.Statement.Context, rv); zero {
		if err := field.Set(tx.Statement.Context, rv, uuid.New()); err != nil {
			_ = tx.AddError(err)
		}
	}
}
