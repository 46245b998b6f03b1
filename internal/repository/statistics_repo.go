package repository

import (
	"context"
	"fmt"
	"time"

	"ims/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StatisticsRepository interface {
	CountByStatus(ctx context.Context, table, column string, start, end time.Time) (map[string]int64, error)
	ReceivedOrderValue(ctx context.Context, start, end time.Time) (decimal.Decimal, error)
	TopCategories(ctx context.Context, limit int) ([]model.CategoryCount, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

// CountByStatus groups rows of table created within [start, end] by column.
func (r *statisticsRepository) CountByStatus(ctx context.Context, table, column string, start, end time.Time) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	q := GetDB(ctx, r.db).Table(table).
		Select(column+" AS status, COUNT(*) AS total").
		Where("created_at >= ? AND created_at <= ?", start, end)
	if table == "purchase_requests" {
		q = q.Where("deleted_at IS NULL")
	}
	if err := q.Group(column).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count %s by %s: %w", table, column, err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

func (r *statisticsRepository) ReceivedOrderValue(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	var result struct {
		Value decimal.Decimal
	}
	if err := GetDB(ctx, r.db).Table("purchase_orders").
		Select("COALESCE(SUM(total_amount), 0) AS value").
		Where("order_status = ? AND received_at >= ? AND received_at <= ?", model.OrderStatusReceived, start, end).
		Scan(&result).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum received orders: %w", err)
	}
	return result.Value, nil
}

func (r *statisticsRepository) TopCategories(ctx context.Context, limit int) ([]model.CategoryCount, error) {
	var rankings []model.CategoryCount
	if err := GetDB(ctx, r.db).Table("stock_items").
		Select("categories.id AS category_id, categories.name AS category_name, COUNT(stock_items.id) AS units").
		Joins("JOIN categories ON categories.id = stock_items.category_id").
		Where("stock_items.status <> ?", model.StockStatusTrash).
		Group("categories.id, categories.name").
		Order("units DESC").
		Limit(limit).
		Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to query top categories: %w", err)
	}
	return rankings, nil
}
