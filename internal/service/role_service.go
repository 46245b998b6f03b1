package service

import (
	"context"
	"errors"
	"fmt"

	"ims/internal/model"
	"ims/internal/repository"

	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"` // permission codes
}

type UpdateRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateRolePermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"required"`
}

type RoleResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	IsSystem    bool                 `json:"is_system"`
	Permissions []PermissionResponse `json:"permissions"`
	CreatedAt   string               `json:"created_at"`
}

type PermissionResponse struct {
	ID    string `json:"id"`
	Code  string `json:"code"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

// --- Interface ---

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, id string) error
	ListPermissions(ctx context.Context) ([]PermissionResponse, error)
	UpdateRolePermissions(ctx context.Context, roleID string, req UpdateRolePermissionsRequest) (*RoleResponse, error)
	SeedDefaultRolesAndPermissions(ctx context.Context) error
}

type roleService struct {
	repo      repository.RoleRepository
	txManager repository.TransactionManager
	// onChange is told which role's permissions changed so caches can drop it.
	onChange func(roleName string)
}

func NewRoleService(repo repository.RoleRepository, txManager repository.TransactionManager, onChange func(roleName string)) RoleService {
	if onChange == nil {
		onChange = func(string) {}
	}
	return &roleService{repo: repo, txManager: txManager, onChange: onChange}
}

// DefaultPermissions is the permission catalogue seeded on startup.
var DefaultPermissions = []model.Permission{
	{Code: "dashboard.read", Name: "View dashboard statistics", Group: "dashboard"},
	{Code: "masters.read", Name: "View colleges, departments, locations, categories and vendors", Group: "masters"},
	{Code: "masters.write", Name: "Manage master data", Group: "masters"},
	{Code: "requests.read", Name: "View purchase requests", Group: "requests"},
	{Code: "requests.write", Name: "Raise and withdraw purchase requests", Group: "requests"},
	{Code: "requests.approve", Name: "Approve or reject purchase requests", Group: "requests"},
	{Code: "orders.read", Name: "View purchase orders", Group: "orders"},
	{Code: "orders.write", Name: "Manage purchase orders", Group: "orders"},
	{Code: "stock.read", Name: "View stock", Group: "stock"},
	{Code: "stock.write", Name: "Receive and move stock", Group: "stock"},
	{Code: "users.read", Name: "View users", Group: "users"},
	{Code: "users.write", Name: "Manage users", Group: "users"},
	{Code: "users.delete", Name: "Delete users", Group: "users"},
	{Code: "audit.read", Name: "View activity history", Group: "audit"},
	{Code: "roles.manage", Name: "Manage roles and permissions", Group: "roles"},
}

// DefaultRoles maps each built-in role to its description and permission codes.
var DefaultRoles = map[string]struct {
	Description string
	PermCodes   []string
}{
	model.RoleAdmin: {
		Description: "Administrator, full access and final approval",
		PermCodes: []string{
			"dashboard.read", "masters.read", "masters.write",
			"requests.read", "requests.write", "requests.approve",
			"orders.read", "orders.write",
			"stock.read", "stock.write",
			"users.read", "users.write", "users.delete",
			"audit.read", "roles.manage",
		},
	},
	model.RolePrincipal: {
		Description: "Principal, approves requests of the college",
		PermCodes: []string{
			"dashboard.read", "masters.read",
			"requests.read", "requests.write", "requests.approve",
			"orders.read", "stock.read",
			"users.read", "audit.read",
		},
	},
	model.RoleHOD: {
		Description: "Head of department, first-level approval",
		PermCodes: []string{
			"dashboard.read", "masters.read",
			"requests.read", "requests.write", "requests.approve",
			"orders.read", "stock.read",
		},
	},
	model.RoleStorekeeper: {
		Description: "Store keeper, places orders and receives stock",
		PermCodes: []string{
			"dashboard.read", "masters.read", "masters.write",
			"requests.read",
			"orders.read", "orders.write",
			"stock.read", "stock.write",
		},
	},
	model.RoleStaff: {
		Description: "Staff member, raises purchase requests",
		PermCodes: []string{
			"masters.read",
			"requests.read", "requests.write",
			"stock.read",
		},
	},
}

// --- Implementation ---

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	roleID, err := parseID("role id", id)
	if err != nil {
		return nil, err
	}

	role, err := s.repo.FindByID(ctx, roleID)
	if err != nil {
		return nil, loadErr("role", err)
	}

	resp := toRoleResponse(*role)
	return &resp, nil
}

func (s *roleService) CreateRole(ctx context.Context, req CreateRoleRequest) (*RoleResponse, error) {
	if _, err := s.repo.FindByName(ctx, req.Name); err == nil {
		return nil, invalidf("role %q already exists", req.Name)
	}

	role := model.Role{
		Name:        req.Name,
		Description: req.Description,
		IsSystem:    false,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, &role); err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}
		if err := s.repo.ReplacePermissions(txCtx, &role, req.Permissions); err != nil {
			return fmt.Errorf("failed to assign permissions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetRole(ctx, role.ID.String())
}

func (s *roleService) UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*RoleResponse, error) {
	roleID, err := parseID("role id", id)
	if err != nil {
		return nil, err
	}

	role, err := s.repo.FindByID(ctx, roleID)
	if err != nil {
		return nil, loadErr("role", err)
	}

	if role.IsSystem && req.Name != role.Name {
		return nil, invalidf("cannot rename system role '%s'", role.Name)
	}

	oldName := role.Name
	role.Name = req.Name
	role.Description = req.Description

	if err := s.repo.Update(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	s.onChange(oldName)

	return s.GetRole(ctx, id)
}

func (s *roleService) DeleteRole(ctx context.Context, id string) error {
	roleID, err := parseID("role id", id)
	if err != nil {
		return err
	}

	role, err := s.repo.FindByID(ctx, roleID)
	if err != nil {
		return loadErr("role", err)
	}

	if role.IsSystem {
		return invalidf("cannot delete system role '%s'", role.Name)
	}

	inUse, err := s.repo.CountUsers(ctx, role.Name)
	if err != nil {
		return fmt.Errorf("failed to count role users: %w", err)
	}
	if inUse > 0 {
		return invalidf("role '%s' is assigned to %d user(s)", role.Name, inUse)
	}

	if err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		return s.repo.Delete(txCtx, roleID)
	}); err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	s.onChange(role.Name)

	return nil
}

func (s *roleService) ListPermissions(ctx context.Context) ([]PermissionResponse, error) {
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}

	res := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		res = append(res, toPermissionResponse(p))
	}
	return res, nil
}

func (s *roleService) UpdateRolePermissions(ctx context.Context, roleID string, req UpdateRolePermissionsRequest) (*RoleResponse, error) {
	id, err := parseID("role id", roleID)
	if err != nil {
		return nil, err
	}

	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, loadErr("role", err)
	}

	known := make(map[string]bool)
	perms, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch permissions: %w", err)
	}
	for _, p := range perms {
		known[p.Code] = true
	}
	for _, code := range req.Permissions {
		if !known[code] {
			return nil, invalidf("unknown permission %q", code)
		}
	}

	if err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		return s.repo.ReplacePermissions(txCtx, role, req.Permissions)
	}); err != nil {
		return nil, fmt.Errorf("failed to update permissions: %w", err)
	}
	s.onChange(role.Name)

	return s.GetRole(ctx, roleID)
}

// SeedDefaultRolesAndPermissions creates the default permissions and roles if not already present
func (s *roleService) SeedDefaultRolesAndPermissions(ctx context.Context) error {
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for i := range DefaultPermissions {
			p := DefaultPermissions[i]
			if err := s.repo.UpsertPermission(txCtx, &p); err != nil {
				return fmt.Errorf("failed to seed permission '%s': %w", p.Code, err)
			}
		}

		for roleName, def := range DefaultRoles {
			role, err := s.repo.FindByName(txCtx, roleName)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				role = &model.Role{
					Name:        roleName,
					Description: def.Description,
					IsSystem:    true,
				}
				if err := s.repo.Create(txCtx, role); err != nil {
					return fmt.Errorf("failed to seed role '%s': %w", roleName, err)
				}
			} else if err != nil {
				return fmt.Errorf("failed to load role '%s': %w", roleName, err)
			}

			if err := s.repo.ReplacePermissions(txCtx, role, def.PermCodes); err != nil {
				return fmt.Errorf("failed to assign permissions to role '%s': %w", roleName, err)
			}
			s.onChange(roleName)
		}
		return nil
	})
}

// --- Helpers ---

func toRoleResponse(r model.Role) RoleResponse {
	perms := make([]PermissionResponse, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		perms = append(perms, toPermissionResponse(p))
	}

	return RoleResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		IsSystem:    r.IsSystem,
		Permissions: perms,
		CreatedAt:   r.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func toPermissionResponse(p model.Permission) PermissionResponse {
	return PermissionResponse{
		ID:    p.ID.String(),
		Code:  p.Code,
		Name:  p.Name,
		Group: p.Group,
	}
}
