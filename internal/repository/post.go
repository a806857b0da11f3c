// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"strings"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// postColumns is the projection used for every read that does not need the
// image payload. featured_image stays out of the SELECT so list and detail
// queries never drag megabytes of bytea across the wire.
const postColumns = "posts.id, posts.title, posts.content, posts.excerpt, posts.slug, posts.tags, " +
	"posts.author_id, posts.category_id, posts.is_published, posts.view_count, " +
	"posts.featured_image_type, posts.featured_image_name, posts.created_at, posts.updated_at"

// ListFilter narrows the post listing.
type ListFilter struct {
	PublishedOnly bool
	CategoryID    uint
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*models.Post, int64, error)
	Search(ctx context.Context, query string, limit int) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	IncrementViewCount(ctx context.Context, id uint) error
	SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error)
	GetImage(ctx context.Context, id uint) (*models.Attachment, error)
	SetImage(ctx context.Context, id uint, attachment *models.Attachment) error
	RemoveImage(ctx context.Context, id uint) error
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		if isDuplicateKeyError(err) {
			return models.NewDuplicateSlugError(post.Slug)
		}
		return models.NewInternalError(err)
	}
	cache.InvalidatePostsList(ctx)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	key := cache.PostKey(id)

	err := cache.Aside(ctx, key, &post, cache.PostTTL, func() error {
		return r.findOne(ctx, &post, "posts.id = ?", id)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, wrapInternal(err)
	}
	return &post, nil
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	key := cache.PostSlugKey(slug)

	err := cache.Aside(ctx, key, &post, cache.PostTTL, func() error {
		return r.findOne(ctx, &post, "posts.slug = ?", slug)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", slug)
		}
		return nil, wrapInternal(err)
	}
	return &post, nil
}

// findOne loads a single post with author, category and ordered comments.
func (r *postRepository) findOne(ctx context.Context, post *models.Post, cond string, arg interface{}) error {
	return r.applyPostDetails(r.db.WithContext(ctx)).
		Preload("Author").
		Preload("Category").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("comments.created_at ASC, comments.id ASC").Preload("Author")
		}).
		Where(cond, arg).
		First(post).Error
}

func (r *postRepository) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*models.Post, int64, error) {
	var total int64
	countQuery := r.db.WithContext(ctx).Model(&models.Post{})
	countQuery = applyListFilter(countQuery, filter)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var posts []*models.Post
	query := r.applyPostDetails(r.db.WithContext(ctx)).
		Preload("Author").
		Preload("Category")
	query = applyListFilter(query, filter)
	err := query.
		Order("posts.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

func applyListFilter(db *gorm.DB, filter ListFilter) *gorm.DB {
	if filter.PublishedOnly {
		db = db.Where("posts.is_published = ?", true)
	}
	if filter.CategoryID != 0 {
		db = db.Where("posts.category_id = ?", filter.CategoryID)
	}
	return db
}

func (r *postRepository) Search(ctx context.Context, query string, limit int) ([]*models.Post, error) {
	var posts []*models.Post
	like := "%" + strings.ToLower(query) + "%"
	// LOWER(...) LIKE instead of ILIKE so the same query plan runs on
	// PostgreSQL in production and SQLite in tests. Tags are serialized
	// JSON, so a substring match against the raw column is sufficient.
	err := r.applyPostDetails(r.db.WithContext(ctx)).
		Preload("Author").
		Preload("Category").
		Where("posts.is_published = ?", true).
		Where("LOWER(posts.title) LIKE ? OR LOWER(posts.content) LIKE ? OR LOWER(posts.tags) LIKE ?", like, like, like).
		Order("posts.created_at DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// applyPostDetails selects the non-image projection plus computed columns in
// a single query.
func (r *postRepository) applyPostDetails(db *gorm.DB) *gorm.DB {
	return db.Select(postColumns + ", " +
		"(posts.featured_image_type IS NOT NULL AND posts.featured_image_type != '') as has_featured_image, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) as comments_count")
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	// Invalidate under the pre-update slug first; Save may reassign it.
	var prev models.Post
	if err := r.db.WithContext(ctx).Select("id, slug").First(&prev, post.ID).Error; err == nil {
		cache.InvalidatePost(ctx, prev.ID, prev.Slug)
	}

	// Posts are loaded through the non-image projection, so a full Save would
	// null out the image columns and overwrite concurrent view increments.
	err := r.db.WithContext(ctx).
		Omit("Author", "Category", "Comments",
			"featured_image", "featured_image_type", "featured_image_name", "view_count").
		Save(post).Error
	if err != nil {
		if isDuplicateKeyError(err) {
			return models.NewDuplicateSlugError(post.Slug)
		}
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, post.ID, post.Slug)
	cache.InvalidatePostsList(ctx)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	var post models.Post
	if err := r.db.WithContext(ctx).Select("id, slug").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Post", id)
		}
		return models.NewInternalError(err)
	}

	// Comments are removed in the same transaction so a crash never leaves
	// orphaned rows, regardless of whether the driver enforces FK cascades.
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, id).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}

	cache.InvalidatePost(ctx, id, post.Slug)
	cache.InvalidatePostsList(ctx)
	return nil
}

func (r *postRepository) IncrementViewCount(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	invalidatePostDetail(ctx, r.db, id)
	return nil
}

// invalidatePostDetail drops both cached detail entries for a post. Detail
// reads are cached under the ID key and the slug key, so invalidating only one
// would leave the other serving stale comments and view counts.
func invalidatePostDetail(ctx context.Context, db *gorm.DB, id uint) {
	if cache.GetClient() == nil {
		return
	}
	var post models.Post
	if err := db.WithContext(ctx).Select("id, slug").First(&post, id).Error; err != nil {
		return
	}
	cache.InvalidatePost(ctx, id, post.Slug)
}

func (r *postRepository) SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Post{}).Where("slug = ?", slug)
	if excludeID != 0 {
		query = query.Where("id != ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *postRepository) GetImage(ctx context.Context, id uint) (*models.Attachment, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Select("id, featured_image, featured_image_type, featured_image_name").
		First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	if len(post.FeaturedImage) == 0 {
		return nil, models.NewNotFoundError("Image for post", id)
	}
	return &models.Attachment{
		Content:     post.FeaturedImage,
		ContentType: post.FeaturedImageType,
		Filename:    post.FeaturedImageName,
	}, nil
}

func (r *postRepository) SetImage(ctx context.Context, id uint, attachment *models.Attachment) error {
	return r.updateImageColumns(ctx, id, map[string]interface{}{
		"featured_image":      attachment.Content,
		"featured_image_type": attachment.ContentType,
		"featured_image_name": attachment.Filename,
	})
}

func (r *postRepository) RemoveImage(ctx context.Context, id uint) error {
	return r.updateImageColumns(ctx, id, map[string]interface{}{
		"featured_image":      nil,
		"featured_image_type": "",
		"featured_image_name": "",
	})
}

func (r *postRepository) updateImageColumns(ctx context.Context, id uint, values map[string]interface{}) error {
	var post models.Post
	if err := r.db.WithContext(ctx).Select("id, slug").First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Post", id)
		}
		return models.NewInternalError(err)
	}

	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(values).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, id, post.Slug)
	cache.InvalidatePostsList(ctx)
	return nil
}

// isDuplicateKeyError recognizes unique violations across drivers: GORM's
// translated error, the raw pgconn SQLSTATE, and SQLite's message form.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

func wrapInternal(err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.NewInternalError(err)
}
