package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/trivsel-api/internal/models"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateUserRequest represents payload for creating staff accounts.
type CreateUserRequest struct {
	Email    string           `json:"email" validate:"required,email"`
	FullName string           `json:"full_name" validate:"required"`
	Role     models.StaffRole `json:"role" validate:"required,oneof=mentor fact_team admin analyst"`
	Active   bool             `json:"active"`
	Password string           `json:"password" validate:"required,min=8"`
}

// UpdateUserRequest payload for updating staff accounts.
type UpdateUserRequest struct {
	FullName string           `json:"full_name" validate:"required"`
	Role     models.StaffRole `json:"role" validate:"required,oneof=mentor fact_team admin analyst"`
	Active   *bool            `json:"active"`
}

// UserService handles staff account management workflows.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated staff users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	pagination := &models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}

	return users, pagination, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create adds a new staff account.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actorID string, meta models.LoginRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(req.Email),
		FullName:     req.FullName,
		Role:         req.Role,
		Active:       req.Active,
		PasswordHash: string(passwordHash),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	detail, _ := json.Marshal(map[string]interface{}{"email": user.Email, "role": user.Role})
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionUserCreate,
		Resource:   "users",
		ResourceID: &user.ID,
		Detail:     detail,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record user create audit log", zap.Error(err))
	}

	return user, nil
}

// Update modifies the staff account attributes.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actorID string, meta models.LoginRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	previousRole := user.Role
	previousActive := user.Active

	user.FullName = req.FullName
	user.Role = req.Role
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	detail, _ := json.Marshal(map[string]interface{}{
		"previous_role":   previousRole,
		"previous_active": previousActive,
		"role":            user.Role,
		"active":          user.Active,
	})
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionUserUpdate,
		Resource:   "users",
		ResourceID: &user.ID,
		Detail:     detail,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record user update audit log", zap.Error(err))
	}

	return user, nil
}

// Delete performs a soft delete (inactive) on a staff account.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, meta models.LoginRequest) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	detail, _ := json.Marshal(map[string]interface{}{"previous_active": user.Active, "active": false})
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionUserDelete,
		Resource:   "users",
		ResourceID: &user.ID,
		Detail:     detail,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record user delete audit log", zap.Error(err))
	}

	return nil
}
