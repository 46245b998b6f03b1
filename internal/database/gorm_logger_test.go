package database

import (
	"context"
	"errors"
	"testing"

	"ims/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: NewGormLogger(zap.New(core)),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&model.Category{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logs.TakeAll()

	var cat model.Category
	if err := db.First(&cat, "id = ?", uuid.New()).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if n := logs.Len(); n != 0 {
		t.Fatalf("expected no log entries for a missing row, got %d", n)
	}

	var n int64
	if err := db.Table("no_such_table").Count(&n).Error; err == nil {
		t.Fatal("expected query on a missing table to fail")
	}
	failed := logs.FilterMessage("query failed").All()
	if len(failed) != 1 {
		t.Fatalf("expected one failed query entry, got %d", len(failed))
	}
	if failed[0].Level != zapcore.ErrorLevel {
		t.Errorf("expected error level, got %s", failed[0].Level)
	}
	if _, ok := failed[0].ContextMap()["sql"]; !ok {
		t.Error("expected sql field on failed query")
	}
}

func TestGormLoggerSilent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core)).LogMode(logger.Silent)

	ctx := context.Background()
	l.Warn(ctx, "slow %s", "thing")
	l.Error(ctx, "broken %d", 1)
	if logs.Len() != 0 {
		t.Fatalf("expected silent mode to drop entries, got %d", logs.Len())
	}
}
