package models

import "time"

// Comment is an append-only child record of a post. Comments are created only
// by appending to a post's comment sequence and are removed only when the post
// is deleted; they are never independently addressable.
type Comment struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	PostID uint `gorm:"not null;index" json:"post_id"`
	// AuthorID is nullable so a comment can render as anonymous if the account
	// is later removed.
	AuthorID  *uint     `gorm:"index" json:"author_id,omitempty"`
	Author    *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM.
func (Comment) TableName() string {
	return "comments"
}
