package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatisticsResponse aggregates workflow counts and spend for the dashboard
type StatisticsResponse struct {
	RequestsByStatus   map[string]int64 `json:"requests_by_status"`
	OrdersByStatus     map[string]int64 `json:"orders_by_status"`
	StockByStatus      map[string]int64 `json:"stock_by_status"`
	ReceivedOrderValue decimal.Decimal  `json:"received_order_value"`
	TopCategories      []CategoryCount  `json:"top_categories"`
	TimeRangeStartDate time.Time        `json:"time_range_start_date"`
	TimeRangeEndDate   time.Time        `json:"time_range_end_date"`
}

// CategoryCount ranks categories by the number of stock units held
type CategoryCount struct {
	CategoryID   string `json:"category_id"`
	CategoryName string `json:"category_name"`
	Units        int64  `json:"units"`
}
