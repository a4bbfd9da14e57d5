package models

// StoryStatus is a per-project user story state. Slug is derived from the
// name and unique within the project.
type StoryStatus struct {
	BaseModel

	ProjectID string `gorm:"type:uuid;not null;uniqueIndex:idx_story_statuses_project_slug" json:"project_id"`
	Name      string `gorm:"not null" json:"name"`
	Slug      string `gorm:"not null;uniqueIndex:idx_story_statuses_project_slug" json:"slug"`
	IsClosed  bool   `gorm:"default:false" json:"is_closed"`
	Order     int    `gorm:"default:0" json:"order"`
}

// TaskStatus is a per-project task state.
type TaskStatus struct {
	BaseModel

	ProjectID string `gorm:"type:uuid;not null;uniqueIndex:idx_task_statuses_project_slug" json:"project_id"`
	Name      string `gorm:"not null" json:"name"`
	Slug      string `gorm:"not null;uniqueIndex:idx_task_statuses_project_slug" json:"slug"`
	IsClosed  bool   `gorm:"default:false" json:"is_closed"`
	Order     int    `gorm:"default:0" json:"order"`
}

// IssueStatus is a per-project issue state.
type IssueStatus struct {
	BaseModel

	ProjectID string `gorm:"type:uuid;not null;uniqueIndex:idx_issue_statuses_project_slug" json:"project_id"`
	Name      string `gorm:"not null" json:"name"`
	Slug      string `gorm:"not null;uniqueIndex:idx_issue_statuses_project_slug" json:"slug"`
	IsClosed  bool   `gorm:"default:false" json:"is_closed"`
	Order     int    `gorm:"default:0" json:"order"`
}

// Points is an estimation value available to a project. A nil value marks
// non-numeric entries such as "?".
type Points struct {
	BaseModel

	ProjectID string   `gorm:"type:uuid;not null;uniqueIndex:idx_points_project_name" json:"project_id"`
	Name      string   `gorm:"not null;uniqueIndex:idx_points_project_name" json:"name"`
	Value     *float64 `json:"value"`
	Order     int      `gorm:"default:0" json:"order"`
}
