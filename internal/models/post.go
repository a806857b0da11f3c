package models

import "time"

// Post represents a blog post. The featured image bytes are embedded in the row
// but never serialized into list/detail JSON; clients read them through the
// dedicated image endpoint and see only HasFeaturedImage here.
type Post struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	Title    string   `gorm:"size:100;not null" json:"title"`
	Content  string   `gorm:"type:text;not null" json:"content"`
	Excerpt  string   `gorm:"size:200" json:"excerpt,omitempty"`
	Slug     string   `gorm:"size:120;not null;uniqueIndex" json:"slug"`
	Tags     []string `gorm:"serializer:json" json:"tags"`
	AuthorID uint     `gorm:"not null;index" json:"author_id"`
	Author   User     `gorm:"foreignKey:AuthorID" json:"author"`
	// CategoryID must resolve to an existing category at create/update time.
	CategoryID uint     `gorm:"not null;index" json:"category_id"`
	Category   Category `gorm:"foreignKey:CategoryID" json:"category"`
	// IsPublished defaults to true: posts go live on create unless the author
	// opts out.
	IsPublished bool `gorm:"not null;default:true" json:"is_published"`
	// ViewCount is monotonically non-decreasing; incremented atomically at the
	// storage layer, never read-modify-write.
	ViewCount uint `gorm:"not null;default:0" json:"view_count"`

	FeaturedImage     []byte `json:"-"`
	FeaturedImageType string `gorm:"size:100" json:"-"`
	FeaturedImageName string `gorm:"size:255" json:"-"`
	// HasFeaturedImage is not persisted; computed at query time
	HasFeaturedImage bool `gorm:"->" json:"has_featured_image"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int `gorm:"->" json:"comments_count"`

	Comments  []Comment `gorm:"foreignKey:PostID" json:"comments,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Post) TableName() string {
	return "posts"
}

// Attachment is an image payload embedded in a post. It has no lifecycle of its
// own: it is stored and deleted with the owning post.
type Attachment struct {
	Content     []byte
	ContentType string
	Filename    string
}
