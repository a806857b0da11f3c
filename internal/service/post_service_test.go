package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn             func(context.Context, *models.Post) error
	getByIDFn            func(context.Context, uint) (*models.Post, error)
	getBySlugFn          func(context.Context, string) (*models.Post, error)
	listFn               func(context.Context, repository.ListFilter, int, int) ([]*models.Post, int64, error)
	searchFn             func(context.Context, string, int) ([]*models.Post, error)
	updateFn             func(context.Context, *models.Post) error
	deleteFn             func(context.Context, uint) error
	incrementViewCountFn func(context.Context, uint) error
	slugExistsFn         func(context.Context, string, uint) (bool, error)
	getImageFn           func(context.Context, uint) (*models.Attachment, error)
	setImageFn           func(context.Context, uint, *models.Attachment) error
	removeImageFn        func(context.Context, uint) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return s.getBySlugFn(ctx, slug)
}
func (s *postRepoStub) List(ctx context.Context, filter repository.ListFilter, limit, offset int) ([]*models.Post, int64, error) {
	return s.listFn(ctx, filter, limit, offset)
}
func (s *postRepoStub) Search(ctx context.Context, query string, limit int) ([]*models.Post, error) {
	return s.searchFn(ctx, query, limit)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) IncrementViewCount(ctx context.Context, id uint) error {
	return s.incrementViewCountFn(ctx, id)
}
func (s *postRepoStub) SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error) {
	return s.slugExistsFn(ctx, slug, excludeID)
}
func (s *postRepoStub) GetImage(ctx context.Context, id uint) (*models.Attachment, error) {
	return s.getImageFn(ctx, id)
}
func (s *postRepoStub) SetImage(ctx context.Context, id uint, attachment *models.Attachment) error {
	return s.setImageFn(ctx, id, attachment)
}
func (s *postRepoStub) RemoveImage(ctx context.Context, id uint) error {
	return s.removeImageFn(ctx, id)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, post *models.Post) error {
			post.ID = 1
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id}, nil
		},
		getBySlugFn: func(_ context.Context, slug string) (*models.Post, error) {
			return &models.Post{ID: 1, Slug: slug}, nil
		},
		listFn: func(_ context.Context, _ repository.ListFilter, _, _ int) ([]*models.Post, int64, error) {
			return nil, 0, nil
		},
		searchFn:             func(_ context.Context, _ string, _ int) ([]*models.Post, error) { return nil, nil },
		updateFn:             func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn:             func(_ context.Context, _ uint) error { return nil },
		incrementViewCountFn: func(_ context.Context, _ uint) error { return nil },
		slugExistsFn:         func(_ context.Context, _ string, _ uint) (bool, error) { return false, nil },
		getImageFn:           func(_ context.Context, _ uint) (*models.Attachment, error) { return nil, nil },
		setImageFn:           func(_ context.Context, _ uint, _ *models.Attachment) error { return nil },
		removeImageFn:        func(_ context.Context, _ uint) error { return nil },
	}
}

// categoryRepoStub is a stub for repository.CategoryRepository.
type categoryRepoStub struct {
	createFn    func(context.Context, *models.Category) error
	getByIDFn   func(context.Context, uint) (*models.Category, error)
	getBySlugFn func(context.Context, string) (*models.Category, error)
	listFn      func(context.Context) ([]models.Category, error)
	updateFn    func(context.Context, *models.Category) error
	deleteFn    func(context.Context, uint) error
	hasPostsFn  func(context.Context, uint) (bool, error)
}

func (s *categoryRepoStub) Create(ctx context.Context, category *models.Category) error {
	return s.createFn(ctx, category)
}
func (s *categoryRepoStub) GetByID(ctx context.Context, id uint) (*models.Category, error) {
	return s.getByIDFn(ctx, id)
}
func (s *categoryRepoStub) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	return s.getBySlugFn(ctx, slug)
}
func (s *categoryRepoStub) List(ctx context.Context) ([]models.Category, error) {
	return s.listFn(ctx)
}
func (s *categoryRepoStub) Update(ctx context.Context, category *models.Category) error {
	return s.updateFn(ctx, category)
}
func (s *categoryRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *categoryRepoStub) HasPosts(ctx context.Context, id uint) (bool, error) {
	return s.hasPostsFn(ctx, id)
}

func noopCategoryRepo() *categoryRepoStub {
	return &categoryRepoStub{
		createFn: func(_ context.Context, category *models.Category) error {
			category.ID = 1
			return nil
		},
		getByIDFn: func(_ context.Context, id uint) (*models.Category, error) {
			return &models.Category{ID: id}, nil
		},
		getBySlugFn: func(_ context.Context, slug string) (*models.Category, error) {
			return &models.Category{ID: 1, Slug: slug}, nil
		},
		listFn:     func(_ context.Context) ([]models.Category, error) { return nil, nil },
		updateFn:   func(_ context.Context, _ *models.Category) error { return nil },
		deleteFn:   func(_ context.Context, _ uint) error { return nil },
		hasPostsFn: func(_ context.Context, _ uint) (bool, error) { return false, nil },
	}
}

func adminSet(adminIDs ...uint) func(context.Context, uint) (bool, error) {
	return func(_ context.Context, userID uint) (bool, error) {
		for _, id := range adminIDs {
			if id == userID {
				return true, nil
			}
		}
		return false, nil
	}
}

func newTestPostService(postRepo *postRepoStub, categoryRepo *categoryRepoStub, adminIDs ...uint) *PostService {
	return NewPostService(postRepo, categoryRepo, NewGuard(adminSet(adminIDs...)), NewImageStore(nil))
}

// assertCode asserts that err is an AppError carrying the given code.
func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func TestCreatePost_Validations(t *testing.T) {
	svc := newTestPostService(noopPostRepo(), noopCategoryRepo())
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreatePostInput
		code string
	}{
		{
			name: "missing author",
			in:   CreatePostInput{Title: "T", Content: "C", CategoryID: 1},
			code: models.CodeUnauthorized,
		},
		{
			name: "missing title",
			in:   CreatePostInput{AuthorID: 1, Content: "C", CategoryID: 1},
			code: models.CodeValidation,
		},
		{
			name: "title too long",
			in:   CreatePostInput{AuthorID: 1, Title: makeString(101), Content: "C", CategoryID: 1},
			code: models.CodeValidation,
		},
		{
			name: "missing content",
			in:   CreatePostInput{AuthorID: 1, Title: "T", CategoryID: 1},
			code: models.CodeValidation,
		},
		{
			name: "excerpt too long",
			in:   CreatePostInput{AuthorID: 1, Title: "T", Content: "C", Excerpt: makeString(201), CategoryID: 1},
			code: models.CodeValidation,
		},
		{
			name: "missing category",
			in:   CreatePostInput{AuthorID: 1, Title: "T", Content: "C"},
			code: models.CodeValidation,
		},
		{
			name: "symbol-only title derives no slug",
			in:   CreatePostInput{AuthorID: 1, Title: "!!!", Content: "C", CategoryID: 1},
			code: models.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePost(ctx, tt.in)
			assertCode(t, err, tt.code)
		})
	}
}

// Content carries no length ceiling; only title and excerpt are bounded.
func TestCreatePost_AcceptsLongContent(t *testing.T) {
	svc := newTestPostService(noopPostRepo(), noopCategoryRepo())

	post, err := svc.CreatePost(context.Background(), CreatePostInput{
		AuthorID: 1, Title: "Long Read", Content: makeString(200_000), CategoryID: 1,
	})
	require.NoError(t, err)
	assert.NotNil(t, post)
}

func TestCreatePost_UnknownCategory(t *testing.T) {
	categoryRepo := noopCategoryRepo()
	categoryRepo.getByIDFn = func(_ context.Context, id uint) (*models.Category, error) {
		return nil, models.NewNotFoundError("Category", id)
	}
	svc := newTestPostService(noopPostRepo(), categoryRepo)

	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		AuthorID: 1, Title: "T", Content: "C", CategoryID: 42,
	})
	assertCode(t, err, models.CodeNotFound)
}

func TestCreatePost_DefaultsToPublished(t *testing.T) {
	var created *models.Post
	postRepo := noopPostRepo()
	postRepo.createFn = func(_ context.Context, post *models.Post) error {
		post.ID = 7
		created = post
		return nil
	}
	svc := newTestPostService(postRepo, noopCategoryRepo())

	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		AuthorID: 1, Title: "Hello World", Content: "Body", CategoryID: 1,
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.True(t, created.IsPublished)
	assert.Equal(t, "hello-world", created.Slug)
	assert.EqualValues(t, 1, created.AuthorID)

	unpublished := false
	_, err = svc.CreatePost(context.Background(), CreatePostInput{
		AuthorID: 1, Title: "Draft Piece", Content: "Body", CategoryID: 1, IsPublished: &unpublished,
	})
	require.NoError(t, err)
	assert.False(t, created.IsPublished)
}

func TestCreatePost_SlugProbeWalk(t *testing.T) {
	taken := map[string]bool{"my-title": true, "my-title-1": true}
	var created *models.Post

	postRepo := noopPostRepo()
	postRepo.slugExistsFn = func(_ context.Context, slug string, _ uint) (bool, error) {
		return taken[slug], nil
	}
	postRepo.createFn = func(_ context.Context, post *models.Post) error {
		post.ID = 3
		created = post
		return nil
	}
	svc := newTestPostService(postRepo, noopCategoryRepo())

	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		AuthorID: 1, Title: "My Title", Content: "Body", CategoryID: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "my-title-2", created.Slug)
}

func TestCreatePost_ReservedSlugSkipped(t *testing.T) {
	var created *models.Post
	postRepo := noopPostRepo()
	postRepo.createFn = func(_ context.Context, post *models.Post) error {
		post.ID = 4
		created = post
		return nil
	}
	svc := newTestPostService(postRepo, noopCategoryRepo())

	// "search" would shadow /api/posts/search, so allocation walks past it.
	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		AuthorID: 1, Title: "Search", Content: "Body", CategoryID: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "search-1", created.Slug)
}

func TestCreatePost_NumericTitleGetsSuffixedSlug(t *testing.T) {
	var created *models.Post
	postRepo := noopPostRepo()
	postRepo.createFn = func(_ context.Context, post *models.Post) error {
		post.ID = 6
		created = post
		return nil
	}
	var lookedUpSlug string
	postRepo.getBySlugFn = func(_ context.Context, slug string) (*models.Post, error) {
		lookedUpSlug = slug
		return &models.Post{ID: 6, Slug: slug}, nil
	}
	svc := newTestPostService(postRepo, noopCategoryRepo())

	// An all-digit slug would dispatch as an ID on the detail endpoint, so
	// allocation must walk to a suffixed form.
	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		AuthorID: 1, Title: "2024", Content: "Body", CategoryID: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-1", created.Slug)

	post, err := svc.GetPost(context.Background(), created.Slug, false)
	require.NoError(t, err)
	assert.Equal(t, uint(6), post.ID)
	assert.Equal(t, "2024-1", lookedUpSlug)
}

func TestCreatePost_RetriesOnceOnSlugRace(t *testing.T) {
	attempts := 0
	postRepo := noopPostRepo()
	postRepo.createFn = func(_ context.Context, post *models.Post) error {
		attempts++
		if attempts == 1 {
			return models.NewDuplicateSlugError(post.Slug)
		}
		post.ID = 9
		return nil
	}
	svc := newTestPostService(postRepo, noopCategoryRepo())

	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		AuthorID: 1, Title: "Raced", Content: "Body", CategoryID: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestCreatePost_DuplicateSlugSurfacesAfterRetry(t *testing.T) {
	postRepo := noopPostRepo()
	postRepo.createFn = func(_ context.Context, post *models.Post) error {
		return models.NewDuplicateSlugError(post.Slug)
	}
	svc := newTestPostService(postRepo, noopCategoryRepo())

	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		AuthorID: 1, Title: "Raced", Content: "Body", CategoryID: 1,
	})
	assertCode(t, err, models.CodeDuplicateSlug)
}

// Two writers racing on the same title: whoever loses the unique-index race
// retries and lands on the next suffix, so both end up with distinct slugs.
func TestCreatePost_ConcurrentSameTitle(t *testing.T) {
	var mu sync.Mutex
	taken := map[string]uint{}

	postRepo := noopPostRepo()
	postRepo.slugExistsFn = func(_ context.Context, slug string, _ uint) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		_, exists := taken[slug]
		return exists, nil
	}
	postRepo.createFn = func(_ context.Context, post *models.Post) error {
		mu.Lock()
		defer mu.Unlock()
		if _, exists := taken[post.Slug]; exists {
			return models.NewDuplicateSlugError(post.Slug)
		}
		post.ID = uint(len(taken) + 1)
		taken[post.Slug] = post.ID
		return nil
	}
	postRepo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		mu.Lock()
		defer mu.Unlock()
		for slug, postID := range taken {
			if postID == id {
				return &models.Post{ID: id, Slug: slug}, nil
			}
		}
		return nil, models.NewNotFoundError("Post", id)
	}
	svc := newTestPostService(postRepo, noopCategoryRepo())

	const writers = 2
	var wg sync.WaitGroup
	results := make(chan *models.Post, writers)
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			post, err := svc.CreatePost(context.Background(), CreatePostInput{
				AuthorID: 1, Title: "Launch Day", Content: "Body", CategoryID: 1,
			})
			if err != nil {
				errs <- err
				return
			}
			results <- post
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	slugs := map[string]bool{}
	for post := range results {
		slugs[post.Slug] = true
	}
	assert.Len(t, slugs, writers)
	assert.True(t, slugs["launch-day"])
	assert.True(t, slugs["launch-day-1"])
}

func TestGetPost_Dispatch(t *testing.T) {
	var gotID uint
	var gotSlug string
	postRepo := noopPostRepo()
	postRepo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		gotID = id
		return &models.Post{ID: id}, nil
	}
	postRepo.getBySlugFn = func(_ context.Context, slug string) (*models.Post, error) {
		gotSlug = slug
		return &models.Post{ID: 2, Slug: slug}, nil
	}
	svc := newTestPostService(postRepo, noopCategoryRepo())
	ctx := context.Background()

	_, err := svc.GetPost(ctx, "123", false)
	require.NoError(t, err)
	assert.EqualValues(t, 123, gotID)
	assert.Empty(t, gotSlug)

	_, err = svc.GetPost(ctx, "hello-world", false)
	require.NoError(t, err)
	assert.Equal(t, "hello-world", gotSlug)

	// Mixed tokens are slugs even when they start with digits.
	_, err = svc.GetPost(ctx, "2024-retrospective", false)
	require.NoError(t, err)
	assert.Equal(t, "2024-retrospective", gotSlug)

	_, err = svc.GetPost(ctx, "", false)
	assertCode(t, err, models.CodeValidation)
}

func TestGetPost_CountsViewAsync(t *testing.T) {
	counted := make(chan uint, 1)
	postRepo := noopPostRepo()
	postRepo.incrementViewCountFn = func(_ context.Context, id uint) error {
		counted <- id
		return nil
	}
	svc := newTestPostService(postRepo, noopCategoryRepo())

	_, err := svc.GetPost(context.Background(), "55", true)
	require.NoError(t, err)

	select {
	case id := <-counted:
		assert.EqualValues(t, 55, id)
	case <-time.After(time.Second):
		t.Fatal("view increment never fired")
	}
}

func TestGetPost_SkipsCountWhenDisabled(t *testing.T) {
	postRepo := noopPostRepo()
	postRepo.incrementViewCountFn = func(_ context.Context, _ uint) error {
		t.Error("view increment must not fire")
		return nil
	}
	svc := newTestPostService(postRepo, noopCategoryRepo())

	_, err := svc.GetPost(context.Background(), "55", false)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
}

func TestListPosts_Normalization(t *testing.T) {
	var gotFilter repository.ListFilter
	var gotLimit, gotOffset int
	postRepo := noopPostRepo()
	postRepo.listFn = func(_ context.Context, filter repository.ListFilter, limit, offset int) ([]*models.Post, int64, error) {
		gotFilter, gotLimit, gotOffset = filter, limit, offset
		return []*models.Post{{ID: 1}}, 1, nil
	}
	svc := newTestPostService(postRepo, noopCategoryRepo())
	ctx := context.Background()

	_, total, err := svc.ListPosts(ctx, ListPostsInput{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.True(t, gotFilter.PublishedOnly)
	assert.Equal(t, 10, gotLimit)
	assert.Equal(t, 0, gotOffset)

	_, _, err = svc.ListPosts(ctx, ListPostsInput{Page: 3, Limit: 25, IncludeDrafts: true, CategoryID: 4})
	require.NoError(t, err)
	assert.False(t, gotFilter.PublishedOnly)
	assert.EqualValues(t, 4, gotFilter.CategoryID)
	assert.Equal(t, 25, gotLimit)
	assert.Equal(t, 50, gotOffset)

	_, _, err = svc.ListPosts(ctx, ListPostsInput{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 100, gotLimit)
}

func TestSearchPosts(t *testing.T) {
	var gotQuery string
	var gotLimit int
	postRepo := noopPostRepo()
	postRepo.searchFn = func(_ context.Context, query string, limit int) ([]*models.Post, error) {
		gotQuery, gotLimit = query, limit
		return nil, nil
	}
	svc := newTestPostService(postRepo, noopCategoryRepo())
	ctx := context.Background()

	_, err := svc.SearchPosts(ctx, "", 0)
	assertCode(t, err, models.CodeValidation)

	_, err = svc.SearchPosts(ctx, "golang", 0)
	require.NoError(t, err)
	assert.Equal(t, "golang", gotQuery)
	assert.Equal(t, 20, gotLimit)

	_, err = svc.SearchPosts(ctx, "golang", 500)
	require.NoError(t, err)
	assert.Equal(t, 100, gotLimit)
}

func TestUpdatePost_Guard(t *testing.T) {
	postRepo := noopPostRepo()
	postRepo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, AuthorID: 1, Title: "Owned", Slug: "owned"}, nil
	}
	svc := newTestPostService(postRepo, noopCategoryRepo(), 99)
	ctx := context.Background()

	_, err := svc.UpdatePost(ctx, UpdatePostInput{UserID: 2, PostID: 5, Title: "Hijack"})
	assertCode(t, err, models.CodeForbidden)

	_, err = svc.UpdatePost(ctx, UpdatePostInput{PostID: 5, Title: "Anon"})
	assertCode(t, err, models.CodeUnauthorized)

	_, err = svc.UpdatePost(ctx, UpdatePostInput{UserID: 1, PostID: 5, Title: "Mine"})
	require.NoError(t, err)

	// Admin passes the guard without owning the post.
	_, err = svc.UpdatePost(ctx, UpdatePostInput{UserID: 99, PostID: 5, Title: "Moderated"})
	require.NoError(t, err)
}

func TestUpdatePost_SlugStableByDefault(t *testing.T) {
	var updated *models.Post
	postRepo := noopPostRepo()
	postRepo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, AuthorID: 1, Title: "Old Title", Slug: "old-title"}, nil
	}
	postRepo.updateFn = func(_ context.Context, post *models.Post) error {
		updated = post
		return nil
	}
	svc := newTestPostService(postRepo, noopCategoryRepo())
	ctx := context.Background()

	_, err := svc.UpdatePost(ctx, UpdatePostInput{UserID: 1, PostID: 5, Title: "Brand New Title"})
	require.NoError(t, err)
	assert.Equal(t, "old-title", updated.Slug, "slug must survive title edits")

	_, err = svc.UpdatePost(ctx, UpdatePostInput{UserID: 1, PostID: 5, Title: "Brand New Title", RegenerateSlug: true})
	require.NoError(t, err)
	assert.Equal(t, "brand-new-title", updated.Slug)
}

func TestUpdatePost_RemoveImage(t *testing.T) {
	removed := false
	postRepo := noopPostRepo()
	postRepo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, AuthorID: 1, Title: "Pictured", Slug: "pictured"}, nil
	}
	postRepo.removeImageFn = func(_ context.Context, _ uint) error {
		removed = true
		return nil
	}
	svc := newTestPostService(postRepo, noopCategoryRepo())

	_, err := svc.UpdatePost(context.Background(), UpdatePostInput{UserID: 1, PostID: 5, RemoveImage: true})
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestDeletePost_Guard(t *testing.T) {
	deleted := false
	postRepo := noopPostRepo()
	postRepo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, AuthorID: 1}, nil
	}
	postRepo.deleteFn = func(_ context.Context, _ uint) error {
		deleted = true
		return nil
	}
	svc := newTestPostService(postRepo, noopCategoryRepo(), 99)
	ctx := context.Background()

	err := svc.DeletePost(ctx, DeletePostInput{UserID: 2, PostID: 5})
	assertCode(t, err, models.CodeForbidden)
	assert.False(t, deleted)

	err = svc.DeletePost(ctx, DeletePostInput{UserID: 99, PostID: 5})
	require.NoError(t, err)
	assert.True(t, deleted)
}

func makeString(n int) string {
	return fmt.Sprintf("%0*d", n, 0)
}
