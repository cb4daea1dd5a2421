package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/klaslab/school-api/internal/models"
	appErrors "github.com/klaslab/school-api/pkg/errors"
)

type departmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Department, error)
	NameExists(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, dept *models.Department) error
	Update(ctx context.Context, dept *models.Department) error
	Deactivate(ctx context.Context, id string) error
	CountActiveCourses(ctx context.Context, departmentID string) (int, error)
	List(ctx context.Context, filter models.DepartmentFilter) ([]models.DepartmentDetail, int, error)
}

type departmentUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateDepartmentRequest carries the department creation payload.
type CreateDepartmentRequest struct {
	Name               string  `json:"name" validate:"required,max=100"`
	Description        string  `json:"description" validate:"max=500"`
	HeadOfDepartmentID *string `json:"head_of_department_id"`
}

// UpdateDepartmentRequest carries editable department fields.
type UpdateDepartmentRequest struct {
	Name               *string `json:"name" validate:"omitempty,max=100"`
	Description        *string `json:"description" validate:"omitempty,max=500"`
	HeadOfDepartmentID *string `json:"head_of_department_id"`
}

// DepartmentService provides the admin department CRUD use cases.
type DepartmentService struct {
	repo      departmentRepository
	users     departmentUserLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDepartmentService constructs a DepartmentService instance.
func NewDepartmentService(repo departmentRepository, users departmentUserLookup, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DepartmentService{repo: repo, users: users, validator: validate, logger: logger}
}

// Create adds a department. Active department names are unique,
// case-insensitively.
func (s *DepartmentService) Create(ctx context.Context, req CreateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}

	taken, err := s.repo.NameExists(ctx, req.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department name")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "department name is already in use")
	}

	if req.HeadOfDepartmentID != nil {
		if err := s.requireTeacher(ctx, *req.HeadOfDepartmentID); err != nil {
			return nil, err
		}
	}

	dept := &models.Department{
		Name:               req.Name,
		Description:        req.Description,
		HeadOfDepartmentID: req.HeadOfDepartmentID,
		Active:             true,
	}
	if err := s.repo.Create(ctx, dept); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "department name is already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	return dept, nil
}

// Get returns one department by id.
func (s *DepartmentService) Get(ctx context.Context, id string) (*models.Department, error) {
	dept, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return dept, nil
}

// Update applies edits to a department.
func (s *DepartmentService) Update(ctx context.Context, id string, req UpdateDepartmentRequest) (*models.Department, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}

	dept, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != dept.Name {
		taken, err := s.repo.NameExists(ctx, *req.Name, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department name")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "department name is already in use")
		}
		dept.Name = *req.Name
	}
	if req.Description != nil {
		dept.Description = *req.Description
	}
	if req.HeadOfDepartmentID != nil {
		if *req.HeadOfDepartmentID != "" {
			if err := s.requireTeacher(ctx, *req.HeadOfDepartmentID); err != nil {
				return nil, err
			}
			dept.HeadOfDepartmentID = req.HeadOfDepartmentID
		} else {
			dept.HeadOfDepartmentID = nil
		}
	}

	if err := s.repo.Update(ctx, dept); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "department name is already in use")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department")
	}
	return dept, nil
}

// Deactivate soft-deletes a department. Refused while active courses
// still reference it.
func (s *DepartmentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.repo.CountActiveCourses(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count department courses")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrInvalidOperation, "department still has active courses")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate department")
	}
	return nil
}

// List returns active departments with pagination metadata.
func (s *DepartmentService) List(ctx context.Context, filter models.DepartmentFilter) ([]models.DepartmentDetail, *models.Pagination, error) {
	departments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	page, pageSize := models.NormalizePage(filter.Page, filter.PageSize)
	return departments, models.NewPagination(page, pageSize, total), nil
}

func (s *DepartmentService) requireTeacher(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "head of department not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load head of department")
	}
	if user.Role != models.RoleTeacher || !user.Active {
		return appErrors.Clone(appErrors.ErrValidation, "head of department must be an active teacher")
	}
	return nil
}
