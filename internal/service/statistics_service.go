package service

import (
	"context"
	"time"

	"ims/internal/model"
	"ims/internal/repository"
)

type StatisticsService interface {
	GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.StatisticsResponse, error)
}

type statisticsService struct {
	repo repository.StatisticsRepository
}

func NewStatisticsService(repo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{repo: repo}
}

// GetStatistics aggregates workflow counts for records created within the
// time bracket, plus the value of orders received in it.
func (s *statisticsService) GetStatistics(ctx context.Context, startDate, endDate time.Time) (model.StatisticsResponse, error) {
	var response model.StatisticsResponse
	response.TimeRangeStartDate = startDate
	response.TimeRangeEndDate = endDate

	var err error
	if response.RequestsByStatus, err = s.repo.CountByStatus(ctx, "purchase_requests", "approval_status", startDate, endDate); err != nil {
		return response, err
	}
	if response.OrdersByStatus, err = s.repo.CountByStatus(ctx, "purchase_orders", "order_status", startDate, endDate); err != nil {
		return response, err
	}
	if response.StockByStatus, err = s.repo.CountByStatus(ctx, "stock_items", "status", startDate, endDate); err != nil {
		return response, err
	}

	if response.ReceivedOrderValue, err = s.repo.ReceivedOrderValue(ctx, startDate, endDate); err != nil {
		return response, err
	}

	// Top stocked categories, ignoring trashed units
	if response.TopCategories, err = s.repo.TopCategories(ctx, 5); err != nil {
		return response, err
	}
	if response.TopCategories == nil {
		response.TopCategories = []model.CategoryCount{}
	}

	return response, nil
}
