package service

import (
	"context"
	"fmt"

	"ims/internal/model"
	"ims/internal/repository"

	"github.com/google/uuid"
)

type CategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type VendorRequest struct {
	Name          string `json:"name" binding:"required"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email" binding:"omitempty,email"`
	GSTIN         string `json:"gstin" binding:"omitempty,len=15"`
	Address       string `json:"address"`
	IsActive      *bool  `json:"is_active"`
}

// CatalogService manages the categories and vendors referenced by request
// and order items.
type CatalogService interface {
	ListCategories(ctx context.Context, q ListQuery) ([]model.Category, int64, error)
	GetCategory(ctx context.Context, id string) (*model.Category, error)
	CreateCategory(ctx context.Context, actorID *uuid.UUID, req CategoryRequest) (*model.Category, error)
	UpdateCategory(ctx context.Context, actorID *uuid.UUID, id string, req CategoryRequest) (*model.Category, error)
	DeleteCategory(ctx context.Context, actorID *uuid.UUID, id string) error

	ListVendors(ctx context.Context, q ListQuery, activeOnly bool) ([]model.Vendor, int64, error)
	GetVendor(ctx context.Context, id string) (*model.Vendor, error)
	CreateVendor(ctx context.Context, actorID *uuid.UUID, req VendorRequest) (*model.Vendor, error)
	UpdateVendor(ctx context.Context, actorID *uuid.UUID, id string, req VendorRequest) (*model.Vendor, error)
	DeleteVendor(ctx context.Context, actorID *uuid.UUID, id string) error
}

type catalogService struct {
	categories repository.MasterRepository[model.Category]
	vendors    repository.MasterRepository[model.Vendor]
	audit      AuditService
	txManager  repository.TransactionManager
}

func NewCatalogService(
	categories repository.MasterRepository[model.Category],
	vendors repository.MasterRepository[model.Vendor],
	audit AuditService,
	txManager repository.TransactionManager,
) CatalogService {
	return &catalogService{categories: categories, vendors: vendors, audit: audit, txManager: txManager}
}

// --- Categories ---

func (s *catalogService) ListCategories(ctx context.Context, q ListQuery) ([]model.Category, int64, error) {
	return s.categories.List(ctx, repository.MasterFilter{Search: q.Search, Page: q.Page, Limit: q.Limit})
}

func (s *catalogService) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	catID, err := parseID("category id", id)
	if err != nil {
		return nil, err
	}
	cat, err := s.categories.FindByID(ctx, catID)
	if err != nil {
		return nil, loadErr("category", err)
	}
	return cat, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, actorID *uuid.UUID, req CategoryRequest) (*model.Category, error) {
	cat := &model.Category{Name: req.Name, Description: req.Description}
	err := writeMaster(ctx, s.txManager, s.audit, actorID, model.ActionCreateMasterData, "category", &cat.ID, cat.Name, func(txCtx context.Context) error {
		return s.categories.Create(txCtx, cat)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return cat, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, actorID *uuid.UUID, id string, req CategoryRequest) (*model.Category, error) {
	cat, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	cat.Name = req.Name
	cat.Description = req.Description
	err = writeMaster(ctx, s.txManager, s.audit, actorID, model.ActionUpdateMasterData, "category", &cat.ID, cat.Name, func(txCtx context.Context) error {
		return s.categories.Update(txCtx, cat)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	return cat, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, actorID *uuid.UUID, id string) error {
	cat, err := s.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	return writeMaster(ctx, s.txManager, s.audit, actorID, model.ActionDeleteMasterData, "category", &cat.ID, cat.Name, func(txCtx context.Context) error {
		return s.categories.Delete(txCtx, cat.ID)
	})
}

// --- Vendors ---

func (s *catalogService) ListVendors(ctx context.Context, q ListQuery, activeOnly bool) ([]model.Vendor, int64, error) {
	filter := repository.MasterFilter{Search: q.Search, Page: q.Page, Limit: q.Limit}
	if activeOnly {
		filter.Equals = map[string]interface{}{"is_active": true}
	}
	return s.vendors.List(ctx, filter)
}

func (s *catalogService) GetVendor(ctx context.Context, id string) (*model.Vendor, error) {
	vendorID, err := parseID("vendor id", id)
	if err != nil {
		return nil, err
	}
	vendor, err := s.vendors.FindByID(ctx, vendorID)
	if err != nil {
		return nil, loadErr("vendor", err)
	}
	return vendor, nil
}

func applyVendor(v *model.Vendor, req VendorRequest) {
	v.Name = req.Name
	v.ContactPerson = req.ContactPerson
	v.Phone = req.Phone
	v.Email = req.Email
	v.GSTIN = req.GSTIN
	v.Address = req.Address
	if req.IsActive != nil {
		v.IsActive = *req.IsActive
	}
}

func (s *catalogService) CreateVendor(ctx context.Context, actorID *uuid.UUID, req VendorRequest) (*model.Vendor, error) {
	vendor := &model.Vendor{IsActive: true}
	applyVendor(vendor, req)
	inactive := !vendor.IsActive

	err := writeMaster(ctx, s.txManager, s.audit, actorID, model.ActionCreateMasterData, "vendor", &vendor.ID, vendor.Name, func(txCtx context.Context) error {
		if err := s.vendors.Create(txCtx, vendor); err != nil {
			return err
		}
		if inactive {
			// is_active defaults to true on insert
			vendor.IsActive = false
			return s.vendors.Update(txCtx, vendor)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vendor: %w", err)
	}
	return vendor, nil
}

func (s *catalogService) UpdateVendor(ctx context.Context, actorID *uuid.UUID, id string, req VendorRequest) (*model.Vendor, error) {
	vendor, err := s.GetVendor(ctx, id)
	if err != nil {
		return nil, err
	}
	applyVendor(vendor, req)
	err = writeMaster(ctx, s.txManager, s.audit, actorID, model.ActionUpdateMasterData, "vendor", &vendor.ID, vendor.Name, func(txCtx context.Context) error {
		return s.vendors.Update(txCtx, vendor)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update vendor: %w", err)
	}
	return vendor, nil
}

func (s *catalogService) DeleteVendor(ctx context.Context, actorID *uuid.UUID, id string) error {
	vendor, err := s.GetVendor(ctx, id)
	if err != nil {
		return err
	}
	return writeMaster(ctx, s.txManager, s.audit, actorID, model.ActionDeleteMasterData, "vendor", &vendor.ID, vendor.Name, func(txCtx context.Context) error {
		return s.vendors.Delete(txCtx, vendor.ID)
	})
}
