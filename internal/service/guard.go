package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/klaslab/school-api/internal/models"
	appErrors "github.com/klaslab/school-api/pkg/errors"
)

type classOwnershipRepository interface {
	FindOwnedByTeacher(ctx context.Context, classID, teacherID string, activeOnly bool) (*models.Class, error)
	IsStudentEnrolled(ctx context.Context, classID, studentID string) (bool, error)
}

type enrollmentChecker interface {
	IsStudentEnrolled(ctx context.Context, classID, studentID string) (bool, error)
}

// requireOwnedClass loads the class only when the teacher owns it. A
// class that does not exist and a class owned by someone else both come
// back as NotFound, so callers cannot probe for foreign class ids.
func requireOwnedClass(ctx context.Context, repo classOwnershipRepository, classID, teacherID string, activeOnly bool) (*models.Class, error) {
	class, err := repo.FindOwnedByTeacher(ctx, classID, teacherID, activeOnly)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// requireEnrolled verifies the student belongs to the class. Missing
// classes and classes the student is not enrolled in are
// indistinguishable to the caller.
func requireEnrolled(ctx context.Context, repo enrollmentChecker, classID, studentID string) error {
	enrolled, err := repo.IsStudentEnrolled(ctx, classID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	return nil
}
