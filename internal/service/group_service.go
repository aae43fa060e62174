package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/trivsel-api/internal/models"
	appErrors "github.com/noah-isme/trivsel-api/pkg/errors"
)

type groupRepository interface {
	List(ctx context.Context) ([]models.GroupDetail, error)
	FindByID(ctx context.Context, id string) (*models.Group, error)
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
	Delete(ctx context.Context, id string) error
	AddMember(ctx context.Context, groupID, studentID string) error
	RemoveMember(ctx context.Context, groupID, studentID string) (bool, error)
	ListMembers(ctx context.Context, groupID string) ([]models.Student, error)
}

type groupStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// GroupRequest carries create and update payloads for groups.
type GroupRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=1000"`
}

// GroupService manages named student groupings used for dashboard filtering.
type GroupService struct {
	repo      groupRepository
	students  groupStudentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService constructs the group service.
func NewGroupService(repo groupRepository, students groupStudentReader, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{repo: repo, students: students, validator: validate, logger: logger}
}

// List returns all groups with member counts.
func (s *GroupService) List(ctx context.Context) ([]models.GroupDetail, error) {
	groups, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, nil
}

// Get returns one group.
func (s *GroupService) Get(ctx context.Context, id string) (*models.Group, error) {
	return s.load(ctx, id)
}

// Create registers a new group.
func (s *GroupService) Create(ctx context.Context, req GroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	group := &models.Group{Name: req.Name, Description: req.Description}
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}
	s.logger.Sugar().Infow("group created", "group_id", group.ID, "name", group.Name)
	return group, nil
}

// Update renames a group or changes its description.
func (s *GroupService) Update(ctx context.Context, id string, req GroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	group, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	group.Name = req.Name
	group.Description = req.Description
	if err := s.repo.Update(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update group")
	}
	return group, nil
}

// Delete removes a group and its memberships. Students themselves are
// untouched.
func (s *GroupService) Delete(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete group")
	}
	return nil
}

// AddMember puts a student into a group. Adding twice is a no-op.
func (s *GroupService) AddMember(ctx context.Context, groupID, studentID string) error {
	if _, err := s.load(ctx, groupID); err != nil {
		return err
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.AddMember(ctx, groupID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add member")
	}
	return nil
}

// RemoveMember takes a student out of a group.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, studentID string) error {
	if _, err := s.load(ctx, groupID); err != nil {
		return err
	}
	removed, err := s.repo.RemoveMember(ctx, groupID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove member")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "student is not a member of this group")
	}
	return nil
}

// Members lists the students in a group.
func (s *GroupService) Members(ctx context.Context, groupID string) ([]models.Student, error) {
	if _, err := s.load(ctx, groupID); err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}
	return members, nil
}

func (s *GroupService) load(ctx context.Context, id string) (*models.Group, error) {
	group, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return group, nil
}
