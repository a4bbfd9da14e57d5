package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/taskwell/taskwell/internal/models"
	apperrors "github.com/taskwell/taskwell/pkg/errors"
)

// ErrStatusNotFound indicates the requested status does not exist.
var ErrStatusNotFound = apperrors.New("STATUS_NOT_FOUND", "Status not found", http.StatusNotFound)

// ErrPointsNotFound indicates the requested estimation value does not exist.
var ErrPointsNotFound = apperrors.New("POINTS_NOT_FOUND", "Points not found", http.StatusNotFound)

// StatusInput carries the attributes of a story, task or issue status.
type StatusInput struct {
	Name     string
	IsClosed bool
	Order    int
}

// PointsInput carries the attributes of an estimation value.
type PointsInput struct {
	Name  string
	Value *float64
	Order int
}

// AttributeService manages the per-project catalogues of statuses and
// estimation values, and keeps derived story state in sync with them.
type AttributeService struct {
	db *gorm.DB
}

// NewAttributeService constructs an AttributeService instance.
func NewAttributeService(db *gorm.DB) (*AttributeService, error) {
	if db == nil {
		return nil, errors.New("attribute service: db is required")
	}
	return &AttributeService{db: db}, nil
}

// CreateStoryStatus adds a story status with a project-unique slug.
func (s *AttributeService) CreateStoryStatus(ctx context.Context, projectID string, input StatusInput) (*models.StoryStatus, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("status name is required")
	}

	status := &models.StoryStatus{
		ProjectID: projectID,
		Name:      name,
		IsClosed:  input.IsClosed,
		Order:     input.Order,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slug, err := uniqueStatusSlug(tx, &models.StoryStatus{}, projectID, name, "")
		if err != nil {
			return err
		}
		status.Slug = slug
		if err := tx.Create(status).Error; err != nil {
			return fmt.Errorf("attribute service: create story status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// UpdateStoryStatus renames a story status or toggles its closed flag.
// Renames keep the slug stable when the new name slugifies the same;
// closed-flag changes recompute the is_closed state of affected stories.
func (s *AttributeService) UpdateStoryStatus(ctx context.Context, id string, input StatusInput) (*models.StoryStatus, error) {
	ctx = ensureContext(ctx)

	var status models.StoryStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&status, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStatusNotFound
			}
			return fmt.Errorf("attribute service: load story status: %w", err)
		}

		updates := map[string]any{"order": input.Order}

		name := strings.TrimSpace(input.Name)
		if name != "" && name != status.Name {
			updates["name"] = name
			if slugify(name) != status.Slug {
				slug, err := uniqueStatusSlug(tx, &models.StoryStatus{}, status.ProjectID, name, status.ID)
				if err != nil {
					return err
				}
				updates["slug"] = slug
			}
		}

		closedChanged := input.IsClosed != status.IsClosed
		updates["is_closed"] = input.IsClosed

		if err := tx.Model(&status).Updates(updates).Error; err != nil {
			return fmt.Errorf("attribute service: update story status: %w", err)
		}

		if closedChanged {
			if err := recalcStoriesForStoryStatus(tx, status.ID); err != nil {
				return err
			}
		}

		if err := tx.First(&status, "id = ?", id).Error; err != nil {
			return fmt.Errorf("attribute service: reload story status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// CreateTaskStatus adds a task status with a project-unique slug.
func (s *AttributeService) CreateTaskStatus(ctx context.Context, projectID string, input StatusInput) (*models.TaskStatus, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("status name is required")
	}

	status := &models.TaskStatus{
		ProjectID: projectID,
		Name:      name,
		IsClosed:  input.IsClosed,
		Order:     input.Order,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slug, err := uniqueStatusSlug(tx, &models.TaskStatus{}, projectID, name, "")
		if err != nil {
			return err
		}
		status.Slug = slug
		if err := tx.Create(status).Error; err != nil {
			return fmt.Errorf("attribute service: create task status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// UpdateTaskStatus patches a task status. Closed-flag changes recompute
// the is_closed state of stories whose tasks sit in this status.
func (s *AttributeService) UpdateTaskStatus(ctx context.Context, id string, input StatusInput) (*models.TaskStatus, error) {
	ctx = ensureContext(ctx)

	var status models.TaskStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&status, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrStatusNotFound
			}
			return fmt.Errorf("attribute service: load task status: %w", err)
		}

		updates := map[string]any{"order": input.Order}

		name := strings.TrimSpace(input.Name)
		if name != "" && name != status.Name {
			updates["name"] = name
			if slugify(name) != status.Slug {
				slug, err := uniqueStatusSlug(tx, &models.TaskStatus{}, status.ProjectID, name, status.ID)
				if err != nil {
					return err
				}
				updates["slug"] = slug
			}
		}

		closedChanged := input.IsClosed != status.IsClosed
		updates["is_closed"] = input.IsClosed

		if err := tx.Model(&status).Updates(updates).Error; err != nil {
			return fmt.Errorf("attribute service: update task status: %w", err)
		}

		if closedChanged {
			if err := recalcStoriesForTaskStatus(tx, status.ID); err != nil {
				return err
			}
		}

		if err := tx.First(&status, "id = ?", id).Error; err != nil {
			return fmt.Errorf("attribute service: reload task status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// CreateIssueStatus adds an issue status with a project-unique slug.
func (s *AttributeService) CreateIssueStatus(ctx context.Context, projectID string, input StatusInput) (*models.IssueStatus, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("status name is required")
	}

	status := &models.IssueStatus{
		ProjectID: projectID,
		Name:      name,
		IsClosed:  input.IsClosed,
		Order:     input.Order,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slug, err := uniqueStatusSlug(tx, &models.IssueStatus{}, projectID, name, "")
		if err != nil {
			return err
		}
		status.Slug = slug
		if err := tx.Create(status).Error; err != nil {
			return fmt.Errorf("attribute service: create issue status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// CreatePoints adds an estimation value. Names are unique per project.
func (s *AttributeService) CreatePoints(ctx context.Context, projectID string, input PointsInput) (*models.Points, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("points name is required")
	}

	points := &models.Points{
		ProjectID: projectID,
		Name:      name,
		Value:     input.Value,
		Order:     input.Order,
	}

	if err := s.db.WithContext(ctx).Create(points).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrPointsNameDuplicated
		}
		return nil, fmt.Errorf("attribute service: create points: %w", err)
	}
	return points, nil
}

// UpdatePoints patches an estimation value, rejecting duplicate names.
func (s *AttributeService) UpdatePoints(ctx context.Context, id string, input PointsInput) (*models.Points, error) {
	ctx = ensureContext(ctx)

	var points models.Points
	if err := s.db.WithContext(ctx).First(&points, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPointsNotFound
		}
		return nil, fmt.Errorf("attribute service: load points: %w", err)
	}

	updates := map[string]any{
		"value": input.Value,
		"order": input.Order,
	}
	if name := strings.TrimSpace(input.Name); name != "" {
		updates["name"] = name
	}

	if err := s.db.WithContext(ctx).Model(&points).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrPointsNameDuplicated
		}
		return nil, fmt.Errorf("attribute service: update points: %w", err)
	}
	return &points, nil
}

// DeletePoints removes an estimation value after reassigning every row that
// references it, and the project default when needed, to moveTo.
func (s *AttributeService) DeletePoints(ctx context.Context, id, moveToID string) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(moveToID) == "" {
		return apperrors.NewBadRequest("a replacement points id is required")
	}
	if moveToID == id {
		return apperrors.NewBadRequest("the replacement must differ from the deleted points")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var points models.Points
		if err := tx.First(&points, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPointsNotFound
			}
			return fmt.Errorf("attribute service: load points: %w", err)
		}

		var moveTo models.Points
		if err := tx.Where("id = ? AND project_id = ?", moveToID, points.ProjectID).
			First(&moveTo).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewBadRequest("the replacement points must belong to the same project")
			}
			return fmt.Errorf("attribute service: load replacement points: %w", err)
		}

		if err := tx.Model(&models.RolePoints{}).
			Where("points_id = ?", points.ID).
			Update("points_id", moveTo.ID).Error; err != nil {
			return fmt.Errorf("attribute service: reassign role points: %w", err)
		}

		if err := tx.Model(&models.Project{}).
			Where("id = ? AND default_points_id = ?", points.ProjectID, points.ID).
			Update("default_points_id", moveTo.ID).Error; err != nil {
			return fmt.Errorf("attribute service: update default points: %w", err)
		}

		if err := tx.Delete(&points).Error; err != nil {
			return fmt.Errorf("attribute service: delete points: %w", err)
		}
		return nil
	})
}

// EnsureRolePoints backfills missing role point rows so every story in the
// project carries an estimation for every computable role, using the
// project's default points value.
func (s *AttributeService) EnsureRolePoints(ctx context.Context, projectID string) error {
	ctx = ensureContext(ctx)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.First(&project, "id = ?", projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return fmt.Errorf("attribute service: load project: %w", err)
		}
		if project.DefaultPointsID == nil {
			return apperrors.NewBadRequest("the project has no default points value")
		}

		var roles []models.Role
		if err := tx.Where("project_id = ? AND computable = ?", projectID, true).
			Find(&roles).Error; err != nil {
			return fmt.Errorf("attribute service: load computable roles: %w", err)
		}

		var stories []models.UserStory
		if err := tx.Where("project_id = ?", projectID).Find(&stories).Error; err != nil {
			return fmt.Errorf("attribute service: load stories: %w", err)
		}

		for _, story := range stories {
			var existing []models.RolePoints
			if err := tx.Where("user_story_id = ?", story.ID).Find(&existing).Error; err != nil {
				return fmt.Errorf("attribute service: load role points: %w", err)
			}
			covered := make(map[string]bool, len(existing))
			for _, rp := range existing {
				covered[rp.RoleID] = true
			}

			for _, role := range roles {
				if covered[role.ID] {
					continue
				}
				rp := &models.RolePoints{
					UserStoryID: story.ID,
					RoleID:      role.ID,
					PointsID:    *project.DefaultPointsID,
				}
				if err := tx.Create(rp).Error; err != nil {
					return fmt.Errorf("attribute service: create role points: %w", err)
				}
			}
		}
		return nil
	})
}

// uniqueStatusSlug derives a project-unique slug for the given status model.
// excludeID skips the status being renamed.
func uniqueStatusSlug(tx *gorm.DB, model any, projectID, name, excludeID string) (string, error) {
	base := slugify(name)
	if base == "" {
		base = "status"
	}

	candidate := base
	for i := 2; ; i++ {
		query := tx.Model(model).Where("project_id = ? AND slug = ?", projectID, candidate)
		if excludeID != "" {
			query = query.Where("id <> ?", excludeID)
		}
		var count int64
		if err := query.Count(&count).Error; err != nil {
			return "", fmt.Errorf("attribute service: check slug: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// recalcStoriesForStoryStatus recomputes is_closed for every story in the
// given story status.
func recalcStoriesForStoryStatus(tx *gorm.DB, statusID string) error {
	var stories []models.UserStory
	if err := tx.Where("status_id = ?", statusID).Find(&stories).Error; err != nil {
		return fmt.Errorf("attribute service: load affected stories: %w", err)
	}
	for i := range stories {
		if err := recalcStoryClosed(tx, &stories[i]); err != nil {
			return err
		}
	}
	return nil
}

// recalcStoriesForTaskStatus recomputes is_closed for every story that has
// a task in the given task status.
func recalcStoriesForTaskStatus(tx *gorm.DB, statusID string) error {
	var storyIDs []string
	if err := tx.Model(&models.Task{}).
		Distinct("user_story_id").
		Where("status_id = ? AND user_story_id IS NOT NULL", statusID).
		Pluck("user_story_id", &storyIDs).Error; err != nil {
		return fmt.Errorf("attribute service: load affected story ids: %w", err)
	}
	for _, id := range storyIDs {
		var story models.UserStory
		if err := tx.First(&story, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return fmt.Errorf("attribute service: load story: %w", err)
		}
		if err := recalcStoryClosed(tx, &story); err != nil {
			return err
		}
	}
	return nil
}

// recalcStoryClosed derives a story's is_closed flag: the story status must
// be closed and every attached task must sit in a closed task status.
func recalcStoryClosed(tx *gorm.DB, story *models.UserStory) error {
	var status models.StoryStatus
	if err := tx.First(&status, "id = ?", story.StatusID).Error; err != nil {
		return fmt.Errorf("attribute service: load story status: %w", err)
	}

	closed := status.IsClosed
	if closed {
		var openTasks int64
		err := tx.Model(&models.Task{}).
			Joins("JOIN task_statuses ON task_statuses.id = tasks.status_id").
			Where("tasks.user_story_id = ? AND task_statuses.is_closed = ?", story.ID, false).
			Count(&openTasks).Error
		if err != nil {
			return fmt.Errorf("attribute service: count open tasks: %w", err)
		}
		closed = openTasks == 0
	}

	if closed == story.IsClosed {
		return nil
	}
	if err := tx.Model(story).Update("is_closed", closed).Error; err != nil {
		return fmt.Errorf("attribute service: update story closed state: %w", err)
	}
	story.IsClosed = closed
	return nil
}
