package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taskwell/taskwell/internal/models"
	"github.com/taskwell/taskwell/internal/permissions"
	apperrors "github.com/taskwell/taskwell/pkg/errors"
)

// CreateProjectInput carries the attributes for a new project.
type CreateProjectInput struct {
	Name        string
	Description string
	OwnerID     string
	IsPrivate   bool
}

// UpdateProjectInput describes the mutable project fields. Nil pointers
// leave the current value untouched.
type UpdateProjectInput struct {
	Name        *string
	Description *string
	IsPrivate   *bool
}

// ListProjectsOptions filters and orders project listings.
type ListProjectsOptions struct {
	// MemberID restricts results to projects the user belongs to.
	MemberID string
	// OrderByUserOrder sorts by the member's personal ordering instead of
	// by name. Only meaningful together with MemberID.
	OrderByUserOrder bool
}

var defaultStoryStatuses = []struct {
	Name     string
	IsClosed bool
}{
	{"New", false},
	{"In progress", false},
	{"Ready for test", false},
	{"Done", true},
	{"Archived", true},
}

var defaultPointsNames = []struct {
	Name  string
	Value *float64
}{
	{"?", nil},
	{"1", floatPtr(1)},
	{"2", floatPtr(2)},
	{"3", floatPtr(3)},
	{"5", floatPtr(5)},
	{"8", floatPtr(8)},
}

func floatPtr(v float64) *float64 { return &v }

// ProjectService manages project lifecycle, visibility and default
// project attributes.
type ProjectService struct {
	db           *gorm.DB
	quota        *QuotaChecker
	auditService *AuditService
}

// NewProjectService constructs a ProjectService instance.
func NewProjectService(db *gorm.DB, quota *QuotaChecker, auditService *AuditService) (*ProjectService, error) {
	if db == nil {
		return nil, errors.New("project service: db is required")
	}
	if quota == nil {
		return nil, errors.New("project service: quota checker is required")
	}
	return &ProjectService{db: db, quota: quota, auditService: auditService}, nil
}

// Create provisions a new project with its owner membership, an admin role
// and the default status and estimation catalogues. The owner's project
// quota for the requested visibility class is enforced inside the
// provisioning transaction.
func (s *ProjectService) Create(ctx context.Context, input CreateProjectInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("project name is required")
	}

	var owner models.User
	if err := s.db.WithContext(ctx).First(&owner, "id = ?", input.OwnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("project service: load owner: %w", err)
	}

	project := &models.Project{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		OwnerID:     owner.ID,
		IsPrivate:   input.IsPrivate,
	}
	if !input.IsPrivate {
		project.AnonPermissions = datatypes.JSONSlice[string](permissions.AnonPermissions)
		project.PublicPermissions = datatypes.JSONSlice[string](permissions.AnonPermissions)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.quota.WithTx(tx).CheckProjectOwnership(ctx, &owner, input.IsPrivate, ""); err != nil {
			return err
		}

		slug, err := uniqueProjectSlug(tx, name, "")
		if err != nil {
			return err
		}
		project.Slug = slug

		if err := tx.Create(project).Error; err != nil {
			return fmt.Errorf("project service: create project: %w", err)
		}

		ownerRole := &models.Role{
			ProjectID:   project.ID,
			Name:        "Owner",
			Slug:        "owner",
			Computable:  true,
			Permissions: datatypes.JSONSlice[string](permissions.AllPermissions),
		}
		if err := tx.Create(ownerRole).Error; err != nil {
			return fmt.Errorf("project service: create owner role: %w", err)
		}

		membership := &models.Membership{
			ProjectID: project.ID,
			UserID:    owner.ID,
			RoleID:    ownerRole.ID,
			IsAdmin:   true,
		}
		if err := tx.Create(membership).Error; err != nil {
			return fmt.Errorf("project service: create owner membership: %w", err)
		}

		if err := seedProjectDefaults(tx, project); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &owner.ID,
		Action:   "project.create",
		Resource: project.ID,
		Result:   "success",
		Metadata: map[string]any{"slug": project.Slug, "is_private": project.IsPrivate},
	})

	return project, nil
}

// Get fetches a project by id with memberships and roles attached.
func (s *ProjectService) Get(ctx context.Context, id string) (*models.Project, error) {
	ctx = ensureContext(ctx)

	var project models.Project
	err := s.db.WithContext(ctx).
		Preload("Owner").
		Preload("Memberships").
		Preload("Roles").
		First(&project, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("project service: load project: %w", err)
	}
	return &project, nil
}

// GetBySlug fetches a project by its slug.
func (s *ProjectService) GetBySlug(ctx context.Context, slug string) (*models.Project, error) {
	ctx = ensureContext(ctx)

	var project models.Project
	err := s.db.WithContext(ctx).
		Preload("Owner").
		First(&project, "slug = ?", slug).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("project service: load project: %w", err)
	}
	return &project, nil
}

// List returns projects, optionally filtered to a member and ordered by
// that member's personal ordering.
func (s *ProjectService) List(ctx context.Context, opts ListProjectsOptions) ([]models.Project, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Project{})
	if opts.MemberID != "" {
		query = query.
			Joins("JOIN memberships ON memberships.project_id = projects.id").
			Where("memberships.user_id = ?", opts.MemberID)
		if opts.OrderByUserOrder {
			query = query.Order("memberships.user_order ASC, projects.name ASC")
		} else {
			query = query.Order("projects.name ASC")
		}
	} else {
		query = query.Order("projects.name ASC")
	}

	var projects []models.Project
	if err := query.Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("project service: list projects: %w", err)
	}
	return projects, nil
}

// Update patches project attributes. Switching visibility re-validates the
// owner's project quota and every member's membership quota for the target
// class, and resets the anonymous and public permission sets.
func (s *ProjectService) Update(ctx context.Context, id string, input UpdateProjectInput) (*models.Project, error) {
	ctx = ensureContext(ctx)

	var updated models.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&project, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return fmt.Errorf("project service: load project: %w", err)
		}

		updates := map[string]any{}

		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return apperrors.NewBadRequest("project name cannot be empty")
			}
			updates["name"] = name
		}
		if input.Description != nil {
			updates["description"] = strings.TrimSpace(*input.Description)
		}

		if input.IsPrivate != nil && *input.IsPrivate != project.IsPrivate {
			if err := s.checkVisibilityChange(ctx, tx, &project, *input.IsPrivate); err != nil {
				return err
			}
			updates["is_private"] = *input.IsPrivate
			if *input.IsPrivate {
				updates["anon_permissions"] = datatypes.JSONSlice[string]{}
				updates["public_permissions"] = datatypes.JSONSlice[string]{}
			} else {
				updates["anon_permissions"] = datatypes.JSONSlice[string](permissions.AnonPermissions)
				updates["public_permissions"] = datatypes.JSONSlice[string](permissions.AnonPermissions)
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(&project).Updates(updates).Error; err != nil {
				return fmt.Errorf("project service: update project: %w", err)
			}
		}

		if err := tx.First(&updated, "id = ?", id).Error; err != nil {
			return fmt.Errorf("project service: reload project: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "project.update",
		Resource: updated.ID,
		Result:   "success",
	})

	return &updated, nil
}

// Delete removes a project and, through cascading constraints, its
// memberships, roles and attribute catalogues.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Delete(&models.Project{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("project service: delete project: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProjectNotFound
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "project.delete",
		Resource: id,
		Result:   "success",
	})

	return nil
}

// checkVisibilityChange validates the owner's project quota and every
// member's membership quota against the target visibility class.
func (s *ProjectService) checkVisibilityChange(ctx context.Context, tx *gorm.DB, project *models.Project, toPrivate bool) error {
	var owner models.User
	if err := tx.First(&owner, "id = ?", project.OwnerID).Error; err != nil {
		return fmt.Errorf("project service: load owner: %w", err)
	}
	quota := s.quota.WithTx(tx)
	if err := quota.CheckProjectOwnership(ctx, &owner, toPrivate, project.ID); err != nil {
		return err
	}

	target := *project
	target.IsPrivate = toPrivate
	if err := quota.CheckProjectMemberships(ctx, &owner, &target); err != nil {
		return err
	}
	return nil
}

// uniqueProjectSlug derives a slug from name and suffixes it with a counter
// until no other project claims it. excludeID skips the project being
// renamed.
func uniqueProjectSlug(tx *gorm.DB, name, excludeID string) (string, error) {
	base := slugify(name)
	if base == "" {
		base = "project"
	}

	candidate := base
	for i := 2; ; i++ {
		query := tx.Model(&models.Project{}).Where("slug = ?", candidate)
		if excludeID != "" {
			query = query.Where("id <> ?", excludeID)
		}
		var count int64
		if err := query.Count(&count).Error; err != nil {
			return "", fmt.Errorf("project service: check slug: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// seedProjectDefaults installs the default status and estimation catalogues
// for a freshly created project.
func seedProjectDefaults(tx *gorm.DB, project *models.Project) error {
	for i, status := range defaultStoryStatuses {
		entry := &models.StoryStatus{
			ProjectID: project.ID,
			Name:      status.Name,
			Slug:      slugify(status.Name),
			IsClosed:  status.IsClosed,
			Order:     i,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("project service: seed story statuses: %w", err)
		}
	}

	for i, status := range defaultStoryStatuses {
		task := &models.TaskStatus{
			ProjectID: project.ID,
			Name:      status.Name,
			Slug:      slugify(status.Name),
			IsClosed:  status.IsClosed,
			Order:     i,
		}
		if err := tx.Create(task).Error; err != nil {
			return fmt.Errorf("project service: seed task statuses: %w", err)
		}
		issue := &models.IssueStatus{
			ProjectID: project.ID,
			Name:      status.Name,
			Slug:      slugify(status.Name),
			IsClosed:  status.IsClosed,
			Order:     i,
		}
		if err := tx.Create(issue).Error; err != nil {
			return fmt.Errorf("project service: seed issue statuses: %w", err)
		}
	}

	for i, points := range defaultPointsNames {
		entry := &models.Points{
			ProjectID: project.ID,
			Name:      points.Name,
			Value:     points.Value,
			Order:     i,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("project service: seed points: %w", err)
		}
		if i == 0 {
			if err := tx.Model(project).Update("default_points_id", entry.ID).Error; err != nil {
				return fmt.Errorf("project service: set default points: %w", err)
			}
			project.DefaultPointsID = &entry.ID
		}
	}

	return nil
}
