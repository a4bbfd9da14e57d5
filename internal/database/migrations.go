package database

import (
	"gorm.io/gorm"

	"github.com/taskwell/taskwell/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Role{},
		&models.Membership{},
		&models.StoryStatus{},
		&models.TaskStatus{},
		&models.IssueStatus{},
		&models.Points{},
		&models.UserStory{},
		&models.Task{},
		&models.Issue{},
		&models.RolePoints{},
		&models.AuditLog{},
	)
}
