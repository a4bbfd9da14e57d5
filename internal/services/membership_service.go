package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taskwell/taskwell/internal/models"
	apperrors "github.com/taskwell/taskwell/pkg/errors"
)

// CreateMembershipInput captures the attributes of a new membership.
type CreateMembershipInput struct {
	ProjectID string
	UserID    string
	RoleID    string
	IsAdmin   bool
}

// UpdateMembershipInput describes mutable membership fields.
type UpdateMembershipInput struct {
	RoleID  *string
	IsAdmin *bool
}

// ProjectOrderInput pairs a project with the caller's preferred listing order.
type ProjectOrderInput struct {
	ProjectID string
	Order     int
}

// MembershipService manages project memberships and enforces the invariant
// that a project always retains at least one active admin.
type MembershipService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewMembershipService constructs a MembershipService instance.
func NewMembershipService(db *gorm.DB, auditService *AuditService) (*MembershipService, error) {
	if db == nil {
		return nil, errors.New("membership service: db is required")
	}
	return &MembershipService{db: db, auditService: auditService}, nil
}

// checkRemoveOrDemote validates that removing the changed membership, or
// demoting it when keepAdmin is false, leaves at least one admin-flagged
// membership of an active user. Pure validation; the caller mutates only on
// success.
func checkRemoveOrDemote(memberships []models.Membership, changedID string, keepAdmin bool) error {
	remaining := 0
	for _, m := range memberships {
		admin := m.IsAdmin
		if m.ID == changedID {
			admin = keepAdmin
		}
		if admin && membershipUserActive(m) {
			remaining++
		}
	}
	if remaining == 0 {
		return ErrNoRemainingAdmin
	}
	return nil
}

func membershipUserActive(m models.Membership) bool {
	if m.User == nil {
		return true
	}
	return m.User.IsActive
}

// Create registers a new membership after validating project, user and role.
func (s *MembershipService) Create(ctx context.Context, input CreateMembershipInput) (*models.Membership, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(input.ProjectID) == "" || strings.TrimSpace(input.UserID) == "" {
		return nil, apperrors.NewBadRequest("project id and user id are required")
	}

	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", input.ProjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("membership service: load project: %w", err)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", input.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("membership service: load user: %w", err)
	}

	roleID := strings.TrimSpace(input.RoleID)
	if roleID != "" {
		var role models.Role
		if err := s.db.WithContext(ctx).
			Where("id = ? AND project_id = ?", roleID, project.ID).
			First(&role).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.NewBadRequest("the role does not belong to the project")
			}
			return nil, fmt.Errorf("membership service: load role: %w", err)
		}
	} else {
		return nil, apperrors.NewBadRequest("role id is required")
	}

	membership := &models.Membership{
		ProjectID: project.ID,
		UserID:    user.ID,
		RoleID:    roleID,
		IsAdmin:   input.IsAdmin,
	}

	if err := s.db.WithContext(ctx).Create(membership).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrMembershipExists
		}
		return nil, fmt.Errorf("membership service: create membership: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "membership.create",
		Resource: membership.ID,
		Result:   "success",
		Metadata: map[string]any{"project_id": project.ID, "user_id": user.ID},
	})

	return membership, nil
}

// Update patches a membership's role or admin flag. Demotions pass through
// the invariant guard inside the same transaction that applies them.
func (s *MembershipService) Update(ctx context.Context, id string, input UpdateMembershipInput) (*models.Membership, error) {
	ctx = ensureContext(ctx)

	var updated models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		membership, memberships, err := lockMembershipProject(tx, id)
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if input.RoleID != nil {
			roleID := strings.TrimSpace(*input.RoleID)
			var role models.Role
			if err := tx.Where("id = ? AND project_id = ?", roleID, membership.ProjectID).First(&role).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.NewBadRequest("the role does not belong to the project")
				}
				return fmt.Errorf("membership service: load role: %w", err)
			}
			updates["role_id"] = roleID
		}

		if input.IsAdmin != nil && *input.IsAdmin != membership.IsAdmin {
			if !*input.IsAdmin {
				if err := checkRemoveOrDemote(memberships, membership.ID, false); err != nil {
					return err
				}
			}
			updates["is_admin"] = *input.IsAdmin
		}

		if len(updates) > 0 {
			if err := tx.Model(membership).Updates(updates).Error; err != nil {
				return fmt.Errorf("membership service: update membership: %w", err)
			}
		}

		if err := tx.First(&updated, "id = ?", id).Error; err != nil {
			return fmt.Errorf("membership service: reload membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "membership.update",
		Resource: updated.ID,
		Result:   "success",
	})

	return &updated, nil
}

// Delete removes a membership unless it is the project's last active admin.
func (s *MembershipService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		membership, memberships, err := lockMembershipProject(tx, id)
		if err != nil {
			return err
		}

		if err := checkRemoveOrDemote(memberships, membership.ID, false); err != nil {
			return err
		}

		if err := tx.Delete(membership).Error; err != nil {
			return fmt.Errorf("membership service: delete membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "membership.delete",
		Resource: id,
		Result:   "success",
	})

	return nil
}

// Leave removes the caller's own membership. The project owner can never
// leave, and neither can the last remaining admin.
func (s *MembershipService) Leave(ctx context.Context, projectID, userID string) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&project, "id = ?", projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return fmt.Errorf("membership service: load project: %w", err)
		}

		var membership models.Membership
		if err := tx.Where("project_id = ? AND user_id = ?", projectID, userID).
			First(&membership).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMembershipNotFound
			}
			return fmt.Errorf("membership service: load membership: %w", err)
		}

		if project.OwnerID == userID {
			return ErrCannotLeave
		}

		memberships, err := projectMemberships(tx, projectID)
		if err != nil {
			return err
		}
		if err := checkRemoveOrDemote(memberships, membership.ID, false); err != nil {
			return ErrCannotLeave
		}

		if err := tx.Delete(&membership).Error; err != nil {
			return fmt.Errorf("membership service: delete membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "project.leave",
		Resource: projectID,
		Result:   "success",
		Metadata: map[string]any{"user_id": userID},
	})

	return nil
}

// BulkUpdateOrder updates the caller's per-membership project ordering.
// Projects the caller is not a member of are skipped.
func (s *MembershipService) BulkUpdateOrder(ctx context.Context, userID string, orders []ProjectOrderInput) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(userID) == "" {
		return apperrors.NewBadRequest("user id is required")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, order := range orders {
			if strings.TrimSpace(order.ProjectID) == "" {
				continue
			}
			if err := tx.Model(&models.Membership{}).
				Where("project_id = ? AND user_id = ?", order.ProjectID, userID).
				Update("user_order", order.Order).Error; err != nil {
				return fmt.Errorf("membership service: update order: %w", err)
			}
		}
		return nil
	})
}

// ListByProject returns a project's memberships with users and roles attached.
func (s *MembershipService) ListByProject(ctx context.Context, projectID string) ([]models.Membership, error) {
	ctx = ensureContext(ctx)

	var memberships []models.Membership
	if err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Role").
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("membership service: list memberships: %w", err)
	}
	return memberships, nil
}

// lockMembershipProject loads the membership, row-locks its project and
// returns the project's full membership set.
func lockMembershipProject(tx *gorm.DB, membershipID string) (*models.Membership, []models.Membership, error) {
	var membership models.Membership
	if err := tx.First(&membership, "id = ?", membershipID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrMembershipNotFound
		}
		return nil, nil, fmt.Errorf("membership service: load membership: %w", err)
	}

	var project models.Project
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&project, "id = ?", membership.ProjectID).Error; err != nil {
		return nil, nil, fmt.Errorf("membership service: lock project: %w", err)
	}

	memberships, err := projectMemberships(tx, membership.ProjectID)
	if err != nil {
		return nil, nil, err
	}

	return &membership, memberships, nil
}

func projectMemberships(tx *gorm.DB, projectID string) ([]models.Membership, error) {
	var memberships []models.Membership
	if err := tx.Preload("User").
		Where("project_id = ?", projectID).
		Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("membership service: load project memberships: %w", err)
	}
	return memberships, nil
}
