package service

import (
	"context"
	"errors"
	"fmt"

	"ims/internal/model"
	"ims/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CollegeRequest struct {
	Code     string `json:"code" binding:"required,max=30"`
	Name     string `json:"name" binding:"required"`
	Address  string `json:"address"`
	IsActive *bool  `json:"is_active"`
}

type DepartmentRequest struct {
	CollegeID string `json:"college_id" binding:"required"`
	Code      string `json:"code" binding:"required,max=30"`
	Name      string `json:"name" binding:"required"`
}

type LocationRequest struct {
	CollegeID    string `json:"college_id" binding:"required"`
	DepartmentID string `json:"department_id"`
	Name         string `json:"name" binding:"required"`
	Building     string `json:"building"`
	Room         string `json:"room"`
}

// ListQuery is the common filter of master data listings
type ListQuery struct {
	Search       string
	CollegeID    string
	DepartmentID string
	Page         int
	Limit        int
}

// OrganizationService manages colleges, their departments and locations
type OrganizationService interface {
	ListColleges(ctx context.Context, q ListQuery) ([]model.College, int64, error)
	GetCollege(ctx context.Context, id string) (*model.College, error)
	CreateCollege(ctx context.Context, actorID *uuid.UUID, req CollegeRequest) (*model.College, error)
	UpdateCollege(ctx context.Context, actorID *uuid.UUID, id string, req CollegeRequest) (*model.College, error)
	DeleteCollege(ctx context.Context, actorID *uuid.UUID, id string) error

	ListDepartments(ctx context.Context, q ListQuery) ([]model.Department, int64, error)
	GetDepartment(ctx context.Context, id string) (*model.Department, error)
	CreateDepartment(ctx context.Context, actorID *uuid.UUID, req DepartmentRequest) (*model.Department, error)
	UpdateDepartment(ctx context.Context, actorID *uuid.UUID, id string, req DepartmentRequest) (*model.Department, error)
	DeleteDepartment(ctx context.Context, actorID *uuid.UUID, id string) error

	ListLocations(ctx context.Context, q ListQuery) ([]model.Location, int64, error)
	GetLocation(ctx context.Context, id string) (*model.Location, error)
	CreateLocation(ctx context.Context, actorID *uuid.UUID, req LocationRequest) (*model.Location, error)
	UpdateLocation(ctx context.Context, actorID *uuid.UUID, id string, req LocationRequest) (*model.Location, error)
	DeleteLocation(ctx context.Context, actorID *uuid.UUID, id string) error
}

type organizationService struct {
	colleges    repository.MasterRepository[model.College]
	departments repository.MasterRepository[model.Department]
	locations   repository.MasterRepository[model.Location]
	audit       AuditService
	txManager   repository.TransactionManager
}

func NewOrganizationService(
	colleges repository.MasterRepository[model.College],
	departments repository.MasterRepository[model.Department],
	locations repository.MasterRepository[model.Location],
	audit AuditService,
	txManager repository.TransactionManager,
) OrganizationService {
	return &organizationService{
		colleges:    colleges,
		departments: departments,
		locations:   locations,
		audit:       audit,
		txManager:   txManager,
	}
}

// writeMaster runs a master data write and its audit row in one transaction.
// id is read after write so generated keys are recorded.
func writeMaster(ctx context.Context, tx repository.TransactionManager, audit AuditService, actorID *uuid.UUID, action, kind string, id *uuid.UUID, name string, write func(txCtx context.Context) error) error {
	return tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := write(txCtx); err != nil {
			return err
		}
		return audit.Record(txCtx, actorID, action, id.String(), kind+":"+name, map[string]interface{}{"kind": kind})
	})
}

// --- Colleges ---

func (s *organizationService) ListColleges(ctx context.Context, q ListQuery) ([]model.College, int64, error) {
	return s.colleges.List(ctx, repository.MasterFilter{Search: q.Search, Page: q.Page, Limit: q.Limit})
}

func (s *organizationService) GetCollege(ctx context.Context, id string) (*model.College, error) {
	collegeID, err := parseID("college id", id)
	if err != nil {
		return nil, err
	}
	college, err := s.colleges.FindByID(ctx, collegeID)
	if err != nil {
		return nil, loadErr("college", err)
	}
	return college, nil
}

func (s *organizationService) CreateCollege(ctx context.Context, actorID *uuid.UUID, req CollegeRequest) (*model.College, error) {
	college := &model.College{Code: req.Code, Name: req.Name, Address: req.Address, IsActive: true}
	err := writeMaster(ctx, s.txManager, s.audit, actorID, model.ActionCreateMasterData, "college", &college.ID, college.Name, func(txCtx context.Context) error {
		if err := s.colleges.Create(txCtx, college); err != nil {
			return fmt.Errorf("failed to create college: %w", err)
		}
		if req.IsActive != nil && !*req.IsActive {
			college.IsActive = false
			return s.colleges.Update(txCtx, college)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return college, nil
}

func (s *organizationService) UpdateCollege(ctx context.Context, actorID *uuid.UUID, id string, req CollegeRequest) (*model.College, error) {
	college, err := s.GetCollege(ctx, id)
	if err != nil {
		return nil, err
	}
	college.Code = req.Code
	college.Name = req.Name
	college.Address = req.Address
	if req.IsActive != nil {
		college.IsActive = *req.IsActive
	}
	college.Departments = nil

	err = writeMaster(ctx, s.txManager, s.audit, actorID, model.ActionUpdateMasterData, "college", &college.ID, college.Name, func(txCtx context.Context) error {
		return s.colleges.Update(txCtx, college)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update college: %w", err)
	}
	return college, nil
}

func (s *organizationService) DeleteCollege(ctx context.Context, actorID *uuid.UUID, id string) error {
	college, err := s.GetCollege(ctx, id)
	if err != nil {
		return err
	}
	_, n, err := s.departments.List(ctx, repository.MasterFilter{Equals: map[string]interface{}{"college_id": college.ID}, Page: 1, Limit: 1})
	if err != nil {
		return fmt.Errorf("failed to count departments: %w", err)
	}
	if n > 0 {
		return invalidf("college still has %d department(s)", n)
	}

	return writeMaster(ctx, s.txManager, s.audit, actorID, model.ActionDeleteMasterData, "college", &college.ID, college.Name, func(txCtx context.Context) error {
		return s.colleges.Delete(txCtx, college.ID)
	})
}

// --- Departments ---

func (s *organizationService) ListDepartments(ctx context.Context, q ListQuery) ([]model.Department, int64, error) {
	filter := repository.MasterFilter{Search: q.Search, Page: q.Page, Limit: q.Limit, Equals: map[string]interface{}{}}
	if q.CollegeID != "" {
		collegeID, err := parseID("college_id", q.CollegeID)
		if err != nil {
			return nil, 0, err
		}
		filter.Equals["college_id"] = collegeID
	}
	return s.departments.List(ctx, filter)
}

func (s *organizationService) GetDepartment(ctx context.Context, id string) (*model.Department, error) {
	deptID, err := parseID("department id", id)
	if err != nil {
		return nil, err
	}
	dept, err := s.departments.FindByID(ctx, deptID)
	if err != nil {
		return nil, loadErr("department", err)
	}
	return dept, nil
}

func (s *organizationService) requireCollege(ctx context.Context, raw string) (uuid.UUID, error) {
	collegeID, err := parseID("college_id", raw)
	if err != nil {
		return uuid.Nil, err
	}
	ok, err := s.colleges.Exists(ctx, collegeID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load college: %w", err)
	}
	if !ok {
		return uuid.Nil, invalidf("college does not exist")
	}
	return collegeID, nil
}

func (s *organizationService) CreateDepartment(ctx context.Context, actorID *uuid.UUID, req DepartmentRequest) (*model.Department, error) {
	collegeID, err := s.requireCollege(ctx, req.CollegeID)
	if err != nil {
		return nil, err
	}
	dept := &model.Department{CollegeID: collegeID, Code: req.Code, Name: req.Name}
	err = writeMaster(ctx, s.txManager, s.audit, actorID, model.ActionCreateMasterData, "department", &dept.ID, dept.Name, func(txCtx context.Context) error {
		return s.departments.Create(txCtx, dept)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create department: %w", err)
	}
	return s.departments.FindByID(ctx, dept.ID)
}

func (s *organizationService) UpdateDepartment(ctx context.Context, actorID *uuid.UUID, id string, req DepartmentRequest) (*model.Department, error) {
	dept, err := s.GetDepartment(ctx, id)
	if err != nil {
		return nil, err
	}
	collegeID, err := s.requireCollege(ctx, req.CollegeID)
	if err != nil {
		return nil, err
	}
	dept.CollegeID = collegeID
	dept.Code = req.Code
	dept.Name = req.Name
	dept.College = nil

	err = writeMaster(ctx, s.txManager, s.audit, actorID, model.ActionUpdateMasterData, "department", &dept.ID, dept.Name, func(txCtx context.Context) error {
		return s.departments.Update(txCtx, dept)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update department: %w", err)
	}
	return s.departments.FindByID(ctx, dept.ID)
}

func (s *organizationService) DeleteDepartment(ctx context.Context, actorID *uuid.UUID, id string) error {
	dept, err := s.GetDepartment(ctx, id)
	if err != nil {
		return err
	}
	return writeMaster(ctx, s.txManager, s.audit, actorID, model.ActionDeleteMasterData, "department", &dept.ID, dept.Name, func(txCtx context.Context) error {
		return s.departments.Delete(txCtx, dept.ID)
	})
}

// --- Locations ---

func (s *organizationService) ListLocations(ctx context.Context, q ListQuery) ([]model.Location, int64, error) {
	filter := repository.MasterFilter{Search: q.Search, Page: q.Page, Limit: q.Limit, Equals: map[string]interface{}{}}
	if q.CollegeID != "" {
		collegeID, err := parseID("college_id", q.CollegeID)
		if err != nil {
			return nil, 0, err
		}
		filter.Equals["college_id"] = collegeID
	}
	if q.DepartmentID != "" {
		deptID, err := parseID("department_id", q.DepartmentID)
		if err != nil {
			return nil, 0, err
		}
		filter.Equals["department_id"] = deptID
	}
	return s.locations.List(ctx, filter)
}

func (s *organizationService) GetLocation(ctx context.Context, id string) (*model.Location, error) {
	locID, err := parseID("location id", id)
	if err != nil {
		return nil, err
	}
	loc, err := s.locations.FindByID(ctx, locID)
	if err != nil {
		return nil, loadErr("location", err)
	}
	return loc, nil
}

func (s *organizationService) resolveLocation(ctx context.Context, req LocationRequest, loc *model.Location) error {
	collegeID, err := s.requireCollege(ctx, req.CollegeID)
	if err != nil {
		return err
	}
	deptID, err := parseOptionalID("department_id", req.DepartmentID)
	if err != nil {
		return err
	}
	if deptID != nil {
		dept, err := s.departments.FindByID(ctx, *deptID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invalidf("department does not exist")
			}
			return fmt.Errorf("failed to load department: %w", err)
		}
		if dept.CollegeID != collegeID {
			return invalidf("department belongs to another college")
		}
	}

	loc.CollegeID = collegeID
	loc.DepartmentID = deptID
	loc.Name = req.Name
	loc.Building = req.Building
	loc.Room = req.Room
	loc.College, loc.Department = nil, nil
	return nil
}

func (s *organizationService) CreateLocation(ctx context.Context, actorID *uuid.UUID, req LocationRequest) (*model.Location, error) {
	loc := &model.Location{}
	if err := s.resolveLocation(ctx, req, loc); err != nil {
		return nil, err
	}
	err := writeMaster(ctx, s.txManager, s.audit, actorID, model.ActionCreateMasterData, "location", &loc.ID, loc.Name, func(txCtx context.Context) error {
		return s.locations.Create(txCtx, loc)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}
	return s.locations.FindByID(ctx, loc.ID)
}

func (s *organizationService) UpdateLocation(ctx context.Context, actorID *uuid.UUID, id string, req LocationRequest) (*model.Location, error) {
	loc, err := s.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.resolveLocation(ctx, req, loc); err != nil {
		return nil, err
	}
	err = writeMaster(ctx, s.txManager, s.audit, actorID, model.ActionUpdateMasterData, "location", &loc.ID, loc.Name, func(txCtx context.Context) error {
		return s.locations.Update(txCtx, loc)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update location: %w", err)
	}
	return s.locations.FindByID(ctx, loc.ID)
}

func (s *organizationService) DeleteLocation(ctx context.Context, actorID *uuid.UUID, id string) error {
	loc, err := s.GetLocation(ctx, id)
	if err != nil {
		return err
	}
	return writeMaster(ctx, s.txManager, s.audit, actorID, model.ActionDeleteMasterData, "location", &loc.ID, loc.Name, func(txCtx context.Context) error {
		return s.locations.Delete(txCtx, loc.ID)
	})
}
