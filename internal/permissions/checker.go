package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/taskwell/taskwell/internal/models"
)

// Permission slugs understood by the project permission model.
const (
	ViewProject   = "view_project"
	ModifyProject = "modify_project"
	AdminProject  = "admin_project"
)

// AnonPermissions is the permission set granted to anonymous visitors of a
// public project. It is merged into the project's permission lists when the
// project is made public.
var AnonPermissions = []string{
	ViewProject,
	"view_userstories",
	"view_tasks",
	"view_issues",
}

// AllPermissions is the full permission set granted to the owner role of a
// new project.
var AllPermissions = []string{
	ViewProject,
	ModifyProject,
	AdminProject,
	"view_userstories",
	"add_userstories",
	"modify_userstories",
	"delete_userstories",
	"view_tasks",
	"add_tasks",
	"modify_tasks",
	"delete_tasks",
	"view_issues",
	"add_issues",
	"modify_issues",
	"delete_issues",
}

// Checker evaluates project-scoped permissions. Members derive permissions
// from their role plus the admin flag; non-members fall back to the
// project's public permission set, anonymous callers to the anonymous set.
type Checker struct {
	db *gorm.DB
}

// NewChecker constructs a permission checker backed by the provided database.
func NewChecker(db *gorm.DB) (*Checker, error) {
	if db == nil {
		return nil, errors.New("permission checker: db is required")
	}
	return &Checker{db: db}, nil
}

// Check determines whether the user holds the permission on the project.
// An empty userID denotes an anonymous caller.
func (c *Checker) Check(ctx context.Context, userID string, project *models.Project, permission string) (bool, error) {
	if project == nil {
		return false, errors.New("permission checker: project is required")
	}
	permission = strings.TrimSpace(permission)
	if permission == "" {
		return false, errors.New("permission checker: permission is required")
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return containsPermission(project.AnonPermissions, permission), nil
	}

	if project.OwnerID == userID {
		return true, nil
	}

	membership, err := c.findMembership(ctx, userID, project.ID)
	if err != nil {
		return false, err
	}
	if membership == nil {
		return containsPermission(project.PublicPermissions, permission), nil
	}

	if membership.IsAdmin {
		return true, nil
	}
	if membership.Role == nil {
		return false, nil
	}

	return containsPermission(membership.Role.Permissions, permission), nil
}

// IsProjectAdmin reports whether the user is the project owner or holds an
// admin-flagged membership.
func (c *Checker) IsProjectAdmin(ctx context.Context, userID string, project *models.Project) (bool, error) {
	if project == nil {
		return false, errors.New("permission checker: project is required")
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, nil
	}

	if project.OwnerID == userID {
		return true, nil
	}

	membership, err := c.findMembership(ctx, userID, project.ID)
	if err != nil {
		return false, err
	}

	return membership != nil && membership.IsAdmin, nil
}

func (c *Checker) findMembership(ctx context.Context, userID, projectID string) (*models.Membership, error) {
	var membership models.Membership
	err := c.db.WithContext(ctx).
		Preload("Role").
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("permission checker: load membership: %w", err)
	}
	return &membership, nil
}

func containsPermission(perms []string, target string) bool {
	for _, perm := range perms {
		if perm == target {
			return true
		}
	}
	return false
}
