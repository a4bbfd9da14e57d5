package models

import "gorm.io/datatypes"

// Project is the unit of work organisation. The owner always holds an
// active membership in the project; TransferToken carries the single
// outstanding ownership-transfer capability, when one exists.
type Project struct {
	BaseModel

	Name        string `gorm:"not null" json:"name"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Description string `json:"description"`

	OwnerID string `gorm:"type:uuid;not null;index" json:"owner_id"`
	Owner   *User  `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`

	IsPrivate     bool    `gorm:"default:true" json:"is_private"`
	TransferToken *string `json:"-"`

	// Permission slugs granted to anonymous visitors and to authenticated
	// non-members respectively. Populated when the project goes public.
	AnonPermissions   datatypes.JSONSlice[string] `json:"anon_permissions"`
	PublicPermissions datatypes.JSONSlice[string] `json:"public_permissions"`

	DefaultPointsID *string `gorm:"type:uuid" json:"default_points_id"`

	Memberships []Membership `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"memberships,omitempty"`
	Roles       []Role       `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"roles,omitempty"`
}

// Membership relates a user to a project with a role. IsAdmin marks the
// owner-capable flag the invariant guard protects: while the project
// exists at least one membership must keep it set.
type Membership struct {
	BaseModel

	ProjectID string   `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_project_user" json:"project_id"`
	Project   *Project `gorm:"foreignKey:ProjectID" json:"-"`

	UserID string `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_project_user" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`

	RoleID string `gorm:"type:uuid;not null" json:"role_id"`
	Role   *Role  `gorm:"foreignKey:RoleID" json:"role,omitempty"`

	IsAdmin   bool `gorm:"default:false;index" json:"is_admin"`
	UserOrder int  `gorm:"default:0" json:"user_order"`
}

// Role is a project-scoped set of permissions. Computable roles take part
// in story point estimation.
type Role struct {
	BaseModel

	ProjectID string   `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project `gorm:"foreignKey:ProjectID" json:"-"`

	Name        string                      `gorm:"not null" json:"name"`
	Slug        string                      `gorm:"not null" json:"slug"`
	Computable  bool                        `gorm:"default:false" json:"computable"`
	Order       int                         `gorm:"default:0" json:"order"`
	Permissions datatypes.JSONSlice[string] `json:"permissions"`
}
