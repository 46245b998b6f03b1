package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ims/internal/model"
	"ims/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username     string `json:"username" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Phone        string `json:"phone"`
	Password     string `json:"password" binding:"required,min=6"`
	Role         string `json:"role" binding:"required"`
	CollegeID    string `json:"college_id"`
	DepartmentID string `json:"department_id"`
}

type UpdateUserRequest struct {
	Username     string  `json:"username"`
	Email        string  `json:"email" binding:"omitempty,email"`
	Phone        string  `json:"phone"`
	Role         string  `json:"role"`
	Password     string  `json:"password" binding:"omitempty,min=6"`
	CollegeID    *string `json:"college_id"`
	DepartmentID *string `json:"department_id"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type UserFilter struct {
	Role         string
	CollegeID    string
	DepartmentID string
	Search       string
	Page         int
	Limit        int
}

// AuthTokens is returned by login and refresh
type AuthTokens struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    int64         `json:"expires_in"`
	User         *UserResponse `json:"user"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID             uuid.UUID  `json:"id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	Role           string     `json:"role"`
	CollegeID      *uuid.UUID `json:"college_id"`
	CollegeName    string     `json:"college_name,omitempty"`
	DepartmentID   *uuid.UUID `json:"department_id"`
	DepartmentName string     `json:"department_name,omitempty"`
	Permissions    []string   `json:"permissions,omitempty"`
	CreatedAt      string     `json:"created_at"`
	UpdatedAt      string     `json:"updated_at"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*AuthTokens, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, id string) (*UserResponse, error)
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, id string) error
}

type userService struct {
	repo        repository.UserRepository
	roles       repository.RoleRepository
	colleges    repository.MasterRepository[model.College]
	departments repository.MasterRepository[model.Department]
	txManager   repository.TransactionManager
	tokens      TokenConfig
}

// NewUserService returns a new instance of UserService
func NewUserService(
	repo repository.UserRepository,
	roles repository.RoleRepository,
	colleges repository.MasterRepository[model.College],
	departments repository.MasterRepository[model.Department],
	txManager repository.TransactionManager,
	tokens TokenConfig,
) UserService {
	return &userService{
		repo:        repo,
		roles:       roles,
		colleges:    colleges,
		departments: departments,
		txManager:   txManager,
		tokens:      tokens,
	}
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	res := &UserResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Phone:        user.Phone,
		Role:         user.Role,
		CollegeID:    user.CollegeID,
		DepartmentID: user.DepartmentID,
		CreatedAt:    user.CreatedAt.Format(timeLayout),
		UpdatedAt:    user.UpdatedAt.Format(timeLayout),
	}
	if user.College != nil {
		res.CollegeName = user.College.Name
	}
	if user.Department != nil {
		res.DepartmentName = user.Department.Name
	}
	return res
}

// checkAffiliation validates the role exists and that the college and
// department the user is attached to are consistent with it.
func (s *userService) checkAffiliation(ctx context.Context, role string, collegeID, departmentID *uuid.UUID) error {
	if _, err := s.roles.FindByName(ctx, role); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalidf("unknown role %q", role)
		}
		return fmt.Errorf("failed to load role: %w", err)
	}

	if collegeID != nil {
		ok, err := s.colleges.Exists(ctx, *collegeID)
		if err != nil {
			return fmt.Errorf("failed to load college: %w", err)
		}
		if !ok {
			return invalidf("college does not exist")
		}
	}
	if departmentID != nil {
		dept, err := s.departments.FindByID(ctx, *departmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return invalidf("department does not exist")
			}
			return fmt.Errorf("failed to load department: %w", err)
		}
		if collegeID == nil || dept.CollegeID != *collegeID {
			return invalidf("department must belong to the user's college")
		}
	}

	switch model.ScopeOf(role) {
	case model.ScopeDepartment:
		if departmentID == nil {
			return invalidf("a head of department must be assigned to a department")
		}
	case model.ScopeCollege:
		if collegeID == nil {
			return invalidf("a principal must be assigned to a college")
		}
	}
	return nil
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	collegeID, err := parseOptionalID("college_id", req.CollegeID)
	if err != nil {
		return nil, err
	}
	departmentID, err := parseOptionalID("department_id", req.DepartmentID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAffiliation(ctx, req.Role, collegeID, departmentID); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	// Double check username/email uniqueness via repo directly
	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, invalidf("username already exists")
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, invalidf("email already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     req.Username,
		Email:        email,
		Phone:        req.Phone,
		Password:     string(hashedPassword),
		Role:         req.Role,
		CollegeID:    collegeID,
		DepartmentID: departmentID,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.GetUserByID(ctx, user.ID.String())
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*AuthTokens, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token: the presented token is consumed and a
// new access/refresh pair is issued.
func (s *userService) Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}

	var tokens *AuthTokens
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		stored, err := s.repo.GetRefreshToken(txCtx, refreshToken)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return fmt.Errorf("failed to load refresh token: %w", err)
		}
		if err := s.repo.DeleteRefreshToken(txCtx, refreshToken); err != nil {
			return fmt.Errorf("failed to revoke refresh token: %w", err)
		}
		if time.Now().After(stored.ExpiresAt) {
			return ErrInvalidToken
		}

		user, err := s.repo.GetByID(txCtx, stored.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidToken
			}
			return fmt.Errorf("failed to load user: %w", err)
		}

		tokens, err = s.issueTokens(txCtx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.repo.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (s *userService) issueTokens(ctx context.Context, user *model.User) (*AuthTokens, error) {
	access, err := NewAccessToken(s.tokens.Secret, user.ID, user.Role, s.tokens.AccessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateRefreshToken(ctx, &model.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: time.Now().Add(s.tokens.RefreshTTL),
	}); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &AuthTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.AccessTTL.Seconds()),
		User:         mapToResponse(user),
	}, nil
}

// Me returns the signed-in user with the permission codes of their role.
func (s *userService) Me(ctx context.Context, id string) (*UserResponse, error) {
	res, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	codes, err := s.roles.PermissionCodes(ctx, res.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}
	res.Permissions = codes
	return res, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	userID, err := parseID("user id", id)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, loadErr("user", err)
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, filter UserFilter) ([]UserResponse, int64, error) {
	collegeID, err := parseOptionalID("college_id", filter.CollegeID)
	if err != nil {
		return nil, 0, err
	}
	departmentID, err := parseOptionalID("department_id", filter.DepartmentID)
	if err != nil {
		return nil, 0, err
	}

	users, total, err := s.repo.List(ctx, repository.UserFilter{
		Role:         filter.Role,
		CollegeID:    collegeID,
		DepartmentID: departmentID,
		Search:       filter.Search,
		Page:         filter.Page,
		Limit:        filter.Limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}

	return responses, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error) {
	userID, err := parseID("user id", id)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, loadErr("user", err)
	}

	if req.Role != "" {
		user.Role = req.Role
	}
	if req.CollegeID != nil {
		if user.CollegeID, err = parseOptionalID("college_id", *req.CollegeID); err != nil {
			return nil, err
		}
	}
	if req.DepartmentID != nil {
		if user.DepartmentID, err = parseOptionalID("department_id", *req.DepartmentID); err != nil {
			return nil, err
		}
	}
	if err := s.checkAffiliation(ctx, user.Role, user.CollegeID, user.DepartmentID); err != nil {
		return nil, err
	}

	if req.Username != "" && req.Username != user.Username {
		if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
			return nil, invalidf("username already exists")
		}
		user.Username = req.Username
	}

	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != user.Email {
		if _, err := s.repo.GetByEmail(ctx, email); err == nil {
			return nil, invalidf("email already exists")
		}
		user.Email = email
	}

	if req.Phone != "" {
		user.Phone = req.Phone
	}

	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = string(hashed)
	}

	user.College, user.Department = nil, nil
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

func (s *userService) DeleteUser(ctx context.Context, id string) error {
	userID, err := parseID("user id", id)
	if err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return loadErr("user", err)
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.DeleteRefreshTokensByUser(txCtx, userID); err != nil {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}
		if err := s.repo.Delete(txCtx, userID); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return nil
	})
}
