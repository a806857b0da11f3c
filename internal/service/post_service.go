package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"inkwell/internal/cache"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/slug"
	"inkwell/internal/validation"
)

const (
	maxTitleLen   = 100
	maxExcerptLen = 200

	// slugProbeLimit bounds the unique-slug walk; the DB unique index remains
	// the final authority past it.
	slugProbeLimit = 100
)

type PostService struct {
	postRepo     repository.PostRepository
	categoryRepo repository.CategoryRepository
	guard        *Guard
	images       *ImageStore
}

type CreatePostInput struct {
	AuthorID    uint
	Title       string
	Content     string
	Excerpt     string
	Tags        []string
	CategoryID  uint
	IsPublished *bool
	Image       *ImageUpload
}

type ListPostsInput struct {
	Page          int
	Limit         int
	IncludeDrafts bool
	CategoryID    uint
}

type UpdatePostInput struct {
	UserID         uint
	PostID         uint
	Title          string
	Content        string
	Excerpt        string
	Tags           []string
	CategoryID     uint
	IsPublished    *bool
	RegenerateSlug bool
	Image          *ImageUpload
	RemoveImage    bool
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

func NewPostService(
	postRepo repository.PostRepository,
	categoryRepo repository.CategoryRepository,
	guard *Guard,
	images *ImageStore,
) *PostService {
	return &PostService{
		postRepo:     postRepo,
		categoryRepo: categoryRepo,
		guard:        guard,
		images:       images,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.AuthorID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if err := validatePostFields(in.Title, in.Content, in.Excerpt); err != nil {
		return nil, err
	}
	if err := s.resolveCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	var attachment *models.Attachment
	if in.Image != nil {
		var err error
		attachment, err = s.images.Validate(*in.Image)
		if err != nil {
			return nil, err
		}
	}

	base := slug.Derive(in.Title)
	if base == "" {
		return nil, models.NewValidationError("Title must contain at least one letter or digit")
	}

	isPublished := true
	if in.IsPublished != nil {
		isPublished = *in.IsPublished
	}

	post := &models.Post{
		Title:       in.Title,
		Content:     in.Content,
		Excerpt:     in.Excerpt,
		Tags:        in.Tags,
		AuthorID:    in.AuthorID,
		CategoryID:  in.CategoryID,
		IsPublished: isPublished,
	}
	if attachment != nil {
		post.FeaturedImage = attachment.Content
		post.FeaturedImageType = attachment.ContentType
		post.FeaturedImageName = attachment.Filename
	}

	// Retry once on a commit-time slug race: another writer can claim the
	// probed slug between SlugExists and Create.
	for attempt := 0; attempt < 2; attempt++ {
		unique, err := s.ensureUniqueSlug(ctx, base, 0)
		if err != nil {
			return nil, err
		}
		post.Slug = unique

		err = s.postRepo.Create(ctx, post)
		if err == nil {
			if attachment != nil {
				middleware.ImageUploads.WithLabelValues("accepted").Inc()
			}
			return s.postRepo.GetByID(ctx, post.ID)
		}

		var appErr *models.AppError
		if !errors.As(err, &appErr) || appErr.Code != models.CodeDuplicateSlug || attempt == 1 {
			return nil, err
		}
	}
	return nil, models.NewInternalError(errors.New("slug allocation retry exhausted"))
}

// GetPost resolves a detail read. A token of only digits is treated as an ID,
// anything else as a slug. countView fires the view-count increment without
// blocking the response.
func (s *PostService) GetPost(ctx context.Context, idOrSlug string, countView bool) (*models.Post, error) {
	if idOrSlug == "" {
		return nil, models.NewValidationError("Post identifier is required")
	}

	var post *models.Post
	var err error
	if id, ok := parseAllDigits(idOrSlug); ok {
		post, err = s.postRepo.GetByID(ctx, id)
	} else {
		post, err = s.postRepo.GetBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, err
	}

	if countView {
		s.countViewAsync(ctx, post.ID)
	}
	return post, nil
}

func (s *PostService) countViewAsync(ctx context.Context, postID uint) {
	bg := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(bg, 5*time.Second)
		defer cancel()
		if err := s.postRepo.IncrementViewCount(ctx, postID); err != nil {
			middleware.Logger.Warn("Failed to record post view",
				slog.Uint64("post_id", uint64(postID)),
				slog.String("error", err.Error()),
			)
			return
		}
		middleware.PostViews.Inc()
	}()
}

// postListPage is the cached shape of the default front page.
type postListPage struct {
	Posts []*models.Post `json:"posts"`
	Total int64          `json:"total"`
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, int64, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	filter := repository.ListFilter{
		PublishedOnly: !in.IncludeDrafts,
		CategoryID:    in.CategoryID,
	}

	// Only the anonymous front page is cached; every other combination goes
	// straight to the database.
	if filter.PublishedOnly && filter.CategoryID == 0 && page == 1 && limit == 10 {
		var cached postListPage
		err := cache.Aside(ctx, cache.PostsListKey(), &cached, cache.ListTTL, func() error {
			posts, total, fetchErr := s.postRepo.List(ctx, filter, limit, offset)
			if fetchErr != nil {
				return fetchErr
			}
			cached = postListPage{Posts: posts, Total: total}
			return nil
		})
		if err != nil {
			return nil, 0, err
		}
		return cached.Posts, cached.Total, nil
	}

	return s.postRepo.List(ctx, filter, limit, offset)
}

func (s *PostService) SearchPosts(ctx context.Context, query string, limit int) ([]*models.Post, error) {
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.postRepo.Search(ctx, query, limit)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.CanMutate(ctx, post, in.UserID); err != nil {
		return nil, err
	}

	if in.Title != "" {
		if len(in.Title) > maxTitleLen {
			return nil, models.NewValidationError(fmt.Sprintf("Title too long (max %d characters)", maxTitleLen))
		}
		post.Title = in.Title
	}
	if in.Content != "" {
		post.Content = in.Content
	}
	if in.Excerpt != "" {
		if len(in.Excerpt) > maxExcerptLen {
			return nil, models.NewValidationError(fmt.Sprintf("Excerpt too long (max %d characters)", maxExcerptLen))
		}
		post.Excerpt = in.Excerpt
	}
	if in.Tags != nil {
		post.Tags = in.Tags
	}
	if in.CategoryID != 0 && in.CategoryID != post.CategoryID {
		if err := s.resolveCategory(ctx, in.CategoryID); err != nil {
			return nil, err
		}
		post.CategoryID = in.CategoryID
	}
	if in.IsPublished != nil {
		post.IsPublished = *in.IsPublished
	}

	// The slug survives title edits unless the caller explicitly asks for a
	// fresh derivation, so published URLs stay stable by default.
	if in.RegenerateSlug {
		base := slug.Derive(post.Title)
		if base == "" {
			return nil, models.NewValidationError("Title must contain at least one letter or digit")
		}
		unique, err := s.ensureUniqueSlug(ctx, base, post.ID)
		if err != nil {
			return nil, err
		}
		post.Slug = unique
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}

	if in.RemoveImage {
		if err := s.postRepo.RemoveImage(ctx, post.ID); err != nil {
			return nil, err
		}
	} else if in.Image != nil {
		attachment, err := s.images.Validate(*in.Image)
		if err != nil {
			return nil, err
		}
		if err := s.postRepo.SetImage(ctx, post.ID, attachment); err != nil {
			return nil, err
		}
		middleware.ImageUploads.WithLabelValues("accepted").Inc()
	}

	return s.postRepo.GetByID(ctx, post.ID)
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) error {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return err
	}
	if err := s.guard.CanMutate(ctx, post, in.UserID); err != nil {
		return err
	}
	return s.postRepo.Delete(ctx, in.PostID)
}

func (s *PostService) GetPostImage(ctx context.Context, postID uint) (*models.Attachment, error) {
	return s.postRepo.GetImage(ctx, postID)
}

func (s *PostService) RemovePostImage(ctx context.Context, userID, postID uint) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if err := s.guard.CanMutate(ctx, post, userID); err != nil {
		return err
	}
	return s.postRepo.RemoveImage(ctx, postID)
}

func validatePostFields(title, content, excerpt string) error {
	if title == "" {
		return models.NewValidationError("Title is required")
	}
	if len(title) > maxTitleLen {
		return models.NewValidationError(fmt.Sprintf("Title too long (max %d characters)", maxTitleLen))
	}
	if content == "" {
		return models.NewValidationError("Content is required")
	}
	if len(excerpt) > maxExcerptLen {
		return models.NewValidationError(fmt.Sprintf("Excerpt too long (max %d characters)", maxExcerptLen))
	}
	return nil
}

func (s *PostService) resolveCategory(ctx context.Context, categoryID uint) error {
	if categoryID == 0 {
		return models.NewValidationError("Category is required")
	}
	// A dangling category reference surfaces as NotFound, same as reading the
	// category directly would.
	if _, err := s.categoryRepo.GetByID(ctx, categoryID); err != nil {
		return err
	}
	return nil
}

// ensureUniqueSlug walks base, base-1, base-2, ... until a free slug is found.
func (s *PostService) ensureUniqueSlug(ctx context.Context, base string, excludeID uint) (string, error) {
	candidate := base
	for i := 1; i <= slugProbeLimit; i++ {
		if !validation.IsReservedPostSlug(candidate) {
			exists, err := s.postRepo.SlugExists(ctx, candidate, excludeID)
			if err != nil {
				return "", err
			}
			if !exists {
				return candidate, nil
			}
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", models.NewInternalError(fmt.Errorf("no free slug near %q", base))
}

func parseAllDigits(token string) (uint, bool) {
	for _, r := range token {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseUint(token, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
