package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/taskwell/taskwell/internal/models"
)

// MemberStats aggregates a single member's activity counters on a project.
type MemberStats struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	FullName     string `json:"full_name"`
	CreatedBugs  int64  `json:"created_bugs"`
	ClosedBugs   int64  `json:"closed_bugs"`
	ClosedTasks  int64  `json:"closed_tasks"`
	IocaineTasks int64  `json:"iocaine_tasks"`
}

// StatsService computes per-member activity statistics for a project.
type StatsService struct {
	db *gorm.DB
}

// NewStatsService constructs a StatsService instance.
func NewStatsService(db *gorm.DB) (*StatsService, error) {
	if db == nil {
		return nil, errors.New("stats service: db is required")
	}
	return &StatsService{db: db}, nil
}

// MemberStats returns one row per project member with their bug and task
// counters. Closed bugs count issues assigned to the member that sit in a
// closed issue status; closed and iocaine tasks count by assignee too.
func (s *StatsService) MemberStats(ctx context.Context, projectID string) ([]MemberStats, error) {
	ctx = ensureContext(ctx)

	var project models.Project
	if err := s.db.WithContext(ctx).First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("stats service: load project: %w", err)
	}

	var memberships []models.Membership
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("stats service: load memberships: %w", err)
	}

	stats := make([]MemberStats, 0, len(memberships))
	for _, membership := range memberships {
		row := MemberStats{UserID: membership.UserID}
		if membership.User != nil {
			row.Username = membership.User.Username
			row.FullName = membership.User.FullName
		}

		var err error
		row.CreatedBugs, err = s.count(ctx, s.db.Model(&models.Issue{}).
			Where("project_id = ? AND owner_id = ?", projectID, membership.UserID))
		if err != nil {
			return nil, err
		}

		row.ClosedBugs, err = s.count(ctx, s.db.Model(&models.Issue{}).
			Joins("JOIN issue_statuses ON issue_statuses.id = issues.status_id").
			Where("issues.project_id = ? AND issues.assigned_to_id = ? AND issue_statuses.is_closed = ?",
				projectID, membership.UserID, true))
		if err != nil {
			return nil, err
		}

		row.ClosedTasks, err = s.count(ctx, s.db.Model(&models.Task{}).
			Joins("JOIN task_statuses ON task_statuses.id = tasks.status_id").
			Where("tasks.project_id = ? AND tasks.assigned_to_id = ? AND task_statuses.is_closed = ?",
				projectID, membership.UserID, true))
		if err != nil {
			return nil, err
		}

		row.IocaineTasks, err = s.count(ctx, s.db.Model(&models.Task{}).
			Where("project_id = ? AND assigned_to_id = ? AND is_iocaine = ?",
				projectID, membership.UserID, true))
		if err != nil {
			return nil, err
		}

		stats = append(stats, row)
	}

	return stats, nil
}

func (s *StatsService) count(ctx context.Context, query *gorm.DB) (int64, error) {
	var count int64
	if err := query.WithContext(ctx).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("stats service: count: %w", err)
	}
	return count, nil
}
