package models

import "time"

// Category is a named grouping for posts. Categories are created by admins and
// referenced by id from posts; they carry no further lifecycle.
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:60;not null;uniqueIndex" json:"name"`
	Slug        string    `gorm:"size:80;not null;uniqueIndex" json:"slug"`
	Description string    `gorm:"size:255" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Category) TableName() string {
	return "categories"
}
