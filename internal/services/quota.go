package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/taskwell/taskwell/internal/models"
	apperrors "github.com/taskwell/taskwell/pkg/errors"
)

// QuotaChecker evaluates per-user resource limits. A nil limit on the user
// record means unrestricted.
type QuotaChecker struct {
	db *gorm.DB
}

// NewQuotaChecker constructs a QuotaChecker.
func NewQuotaChecker(db *gorm.DB) (*QuotaChecker, error) {
	if db == nil {
		return nil, errors.New("quota checker: db is required")
	}
	return &QuotaChecker{db: db}, nil
}

// WithTx returns a checker whose counts read through the given handle.
// Callers holding a row lock pass their transaction so the quota check
// and the guarded mutation commit against the same snapshot.
func (q *QuotaChecker) WithTx(tx *gorm.DB) *QuotaChecker {
	if tx == nil {
		return q
	}
	return &QuotaChecker{db: tx}
}

// CheckProjectOwnership verifies the user can own one more project of the
// given privacy class. excludeProjectID discounts a project the user already
// owns, for privacy flips and ownership transfers of an existing project.
func (q *QuotaChecker) CheckProjectOwnership(ctx context.Context, user *models.User, isPrivate bool, excludeProjectID string) error {
	ctx = ensureContext(ctx)
	if user == nil {
		return errors.New("quota checker: user is required")
	}

	limit := user.MaxPublicProjects
	if isPrivate {
		limit = user.MaxPrivateProjects
	}
	if limit == nil {
		return nil
	}

	query := q.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("owner_id = ? AND is_private = ?", user.ID, isPrivate)
	if excludeProjectID != "" {
		query = query.Where("id <> ?", excludeProjectID)
	}

	var owned int64
	if err := query.Count(&owned).Error; err != nil {
		return fmt.Errorf("quota checker: count owned projects: %w", err)
	}

	if owned >= int64(*limit) {
		if isPrivate {
			return apperrors.NewQuotaExceeded("You can't have more private projects")
		}
		return apperrors.NewQuotaExceeded("You can't have more public projects")
	}
	return nil
}

// CheckProjectMemberships verifies the project's membership count fits the
// user's per-project membership limit for the project's privacy class. Used
// when the user becomes (or stays) the project owner.
func (q *QuotaChecker) CheckProjectMemberships(ctx context.Context, user *models.User, project *models.Project) error {
	ctx = ensureContext(ctx)
	if user == nil {
		return errors.New("quota checker: user is required")
	}
	if project == nil {
		return errors.New("quota checker: project is required")
	}

	limit := user.MaxMembershipsPublicProjects
	if project.IsPrivate {
		limit = user.MaxMembershipsPrivateProjects
	}
	if limit == nil {
		return nil
	}

	var members int64
	if err := q.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("project_id = ?", project.ID).
		Count(&members).Error; err != nil {
		return fmt.Errorf("quota checker: count memberships: %w", err)
	}

	if members > int64(*limit) {
		if project.IsPrivate {
			return apperrors.NewQuotaExceeded("This project reaches your current limit of memberships for private projects")
		}
		return apperrors.NewQuotaExceeded("This project reaches your current limit of memberships for public projects")
	}
	return nil
}
