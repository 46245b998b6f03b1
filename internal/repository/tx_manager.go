package repository

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type contextKey string

const txKey contextKey = "gorm_tx"

// TransactionManager manages database transactions via context injection.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type transactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &transactionManager{db: db}
}

func (t *transactionManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(*gorm.DB); ok {
		// Already inside a transaction, join it.
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey, tx)
		return fn(txCtx)
	})
}

// GetDB extracts the transaction DB from context if present, otherwise returns root DB.
func GetDB(ctx context.Context, rootDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return rootDB.WithContext(ctx)
}

func isPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// forUpdate row-locks the selected rows where the dialect supports it.
func forUpdate(db *gorm.DB) *gorm.DB {
	if isPostgres(db) {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

// nextDocumentNo returns prefix followed by a five digit sequence one past the
// highest number issued under prefix. On PostgreSQL the prefix is guarded by a
// transaction-scoped advisory lock, so callers must run inside RunInTx.
func nextDocumentNo(db *gorm.DB, table, column, prefix string) (string, error) {
	if isPostgres(db) {
		if err := db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix).Error; err != nil {
			return "", fmt.Errorf("failed to lock %s sequence: %w", table, err)
		}
	}

	var last []string
	if err := db.Table(table).
		Where(column+" LIKE ?", prefix+"%").
		Order(column+" DESC").
		Limit(1).
		Pluck(column, &last).Error; err != nil {
		return "", fmt.Errorf("failed to read %s sequence: %w", table, err)
	}

	next := 1
	if len(last) == 1 && len(last[0]) > len(prefix) {
		n, err := strconv.Atoi(last[0][len(prefix):])
		if err != nil {
			return "", fmt.Errorf("malformed document number %q: %w", last[0], err)
		}
		next = n + 1
	}
	return fmt.Sprintf("%s%05d", prefix, next), nil
}
