package models

// UserStory is the minimal story row needed for closed-state tracking,
// role point estimation and member statistics.
type UserStory struct {
	BaseModel

	ProjectID    string  `gorm:"type:uuid;not null;index" json:"project_id"`
	OwnerID      string  `gorm:"type:uuid;not null;index" json:"owner_id"`
	AssignedToID *string `gorm:"type:uuid;index" json:"assigned_to_id"`
	StatusID     string  `gorm:"type:uuid;not null;index" json:"status_id"`
	Subject      string  `json:"subject"`

	// IsClosed is derived: true when the story status is closed and every
	// attached task sits in a closed task status.
	IsClosed bool `gorm:"default:false" json:"is_closed"`
}

// Task belongs to a project and optionally to a user story.
type Task struct {
	BaseModel

	ProjectID    string  `gorm:"type:uuid;not null;index" json:"project_id"`
	UserStoryID  *string `gorm:"type:uuid;index" json:"user_story_id"`
	OwnerID      string  `gorm:"type:uuid;not null;index" json:"owner_id"`
	AssignedToID *string `gorm:"type:uuid;index" json:"assigned_to_id"`
	StatusID     string  `gorm:"type:uuid;not null;index" json:"status_id"`
	Subject      string  `json:"subject"`
	IsIocaine    bool    `gorm:"default:false" json:"is_iocaine"`
}

// Issue is a reported bug within a project.
type Issue struct {
	BaseModel

	ProjectID    string  `gorm:"type:uuid;not null;index" json:"project_id"`
	OwnerID      string  `gorm:"type:uuid;not null;index" json:"owner_id"`
	AssignedToID *string `gorm:"type:uuid;index" json:"assigned_to_id"`
	StatusID     string  `gorm:"type:uuid;not null;index" json:"status_id"`
	Subject      string  `json:"subject"`
}

// RolePoints assigns an estimation value to a story for one computable role.
type RolePoints struct {
	BaseModel

	UserStoryID string `gorm:"type:uuid;not null;uniqueIndex:idx_role_points_story_role" json:"user_story_id"`
	RoleID      string `gorm:"type:uuid;not null;uniqueIndex:idx_role_points_story_role" json:"role_id"`
	PointsID    string `gorm:"type:uuid;not null;index" json:"points_id"`
}
