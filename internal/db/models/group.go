package models

import "time"

// Group represents a permission group. Users belong to one or more groups,
// and every grant in the system is held by a group, never by a user directly.
// Conflicting grants across a user's groups are coalesced at read time.
type Group struct {
	// ID is the unique identifier for the group.
	ID uint `gorm:"primaryKey"`
	// Name is the display name of the group as it appears in the system.
	Name string `gorm:"size:100;not null;unique"`
	// Description provides a human-readable explanation of the group's purpose.
	Description string `gorm:"size:255"`
	// IsDefault marks the built-in group every user belongs to.
	IsDefault bool `gorm:"column:is_default;not null;default:false"`
	// CreatedAt is the timestamp when the group was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the group was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Group model.
// This overrides GORM's default pluralized table naming.
func (Group) TableName() string {
	return "permission_groups"
}
