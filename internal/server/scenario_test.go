package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/repository"
	"inkwell/internal/service"
	"inkwell/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newScenarioServer wires real repositories and services over an in-memory
// database, skipping only the metrics middleware (global registry).
func newScenarioServer(t *testing.T) (*Server, *fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Post{},
		&models.Comment{},
	))

	s := &Server{
		config:       testConfig(),
		db:           db,
		userRepo:     repository.NewUserRepository(db),
		postRepo:     repository.NewPostRepository(db),
		commentRepo:  repository.NewCommentRepository(db),
		categoryRepo: repository.NewCategoryRepository(db),
	}
	guard := service.NewGuard(s.isAdminByUserID)
	s.postService = service.NewPostService(s.postRepo, s.categoryRepo, guard, service.NewImageStore(s.config))
	s.commentService = service.NewCommentService(s.commentRepo, s.postRepo)
	s.categoryService = service.NewCategoryService(s.categoryRepo)
	s.hub = notifications.NewHub()

	app := fiber.New(fiber.Config{
		BodyLimit: int(s.config.MaxImageBytes()) + 1024*1024,
	})
	s.SetupRoutes(app)

	return s, app, db
}

func seedUser(t *testing.T, s *Server, db *gorm.DB, username string, admin bool) (*models.User, string) {
	t.Helper()

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hashed",
		IsAdmin:  admin,
	}
	require.NoError(t, db.Create(user).Error)

	token, err := s.generateToken(user.ID, user.Username)
	require.NoError(t, err)
	return user, token
}

func jsonRequest(t *testing.T, method, path, token string, body any) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// TestPostLifecycleFlow walks the full surface end to end: category creation,
// slug collision handling, view counting, comment append, and the
// author-or-admin mutation rule.
func TestPostLifecycleFlow(t *testing.T) {
	s, app, db := newScenarioServer(t)

	_, adminToken := seedUser(t, s, db, "root", true)
	u1, u1Token := seedUser(t, s, db, "alice", false)
	_, u2Token := seedUser(t, s, db, "mallory", false)

	// Admin creates the category
	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/categories", adminToken,
		map[string]string{"name": "Tech"}))
	require.NoError(t, err)
	env := decodeEnvelope(t, resp)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var category models.Category
	require.NoError(t, json.Unmarshal(env.Data, &category))
	assert.Equal(t, "tech", category.Slug)

	// First post claims the base slug
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/posts", u1Token,
		map[string]any{"title": "Hello World!!", "content": "First!", "category_id": category.ID}))
	require.NoError(t, err)
	env = decodeEnvelope(t, resp)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var first models.Post
	require.NoError(t, json.Unmarshal(env.Data, &first))
	assert.Equal(t, "hello-world", first.Slug)
	assert.True(t, first.IsPublished, "posts publish by default")
	assert.Equal(t, uint(0), first.ViewCount)
	assert.Equal(t, u1.ID, first.AuthorID)

	// Same title again walks to the next free suffix
	resp, err = app.Test(jsonRequest(t, http.MethodPost, "/api/posts", u1Token,
		map[string]any{"title": "Hello World!!", "content": "Second!", "category_id": category.ID}))
	require.NoError(t, err)
	env = decodeEnvelope(t, resp)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var second models.Post
	require.NoError(t, json.Unmarshal(env.Data, &second))
	assert.Equal(t, "hello-world-1", second.Slug)

	// Reading by slug records a view (asynchronously)
	resp, err = app.Test(jsonRequest(t, http.MethodGet, "/api/posts/hello-world", "", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		var viewCount uint
		if err := db.Model(&models.Post{}).Select("view_count").
			Where("id = ?", first.ID).Scan(&viewCount).Error; err != nil {
			return false
		}
		return viewCount == 1
	}, 2*time.Second, 10*time.Millisecond, "detail read must increment the view count")

	// Comment append returns the full sequence
	resp, err = app.Test(jsonRequest(t, http.MethodPost,
		"/api/posts/"+itoa(first.ID)+"/comments", u1Token,
		map[string]string{"content": "Great stuff"}))
	require.NoError(t, err)
	env = decodeEnvelope(t, resp)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var comments []models.Comment
	require.NoError(t, json.Unmarshal(env.Data, &comments))
	require.Len(t, comments, 1)
	require.NotNil(t, comments[0].Author)
	assert.Equal(t, "alice", comments[0].Author.Username)

	// A third party can neither update nor delete
	resp, err = app.Test(jsonRequest(t, http.MethodPut,
		"/api/posts/"+itoa(first.ID), u2Token,
		map[string]string{"title": "Hijacked"}))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(jsonRequest(t, http.MethodDelete,
		"/api/posts/"+itoa(first.ID), u2Token, nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The post is untouched
	var fresh models.Post
	require.NoError(t, db.First(&fresh, first.ID).Error)
	assert.Equal(t, "Hello World!!", fresh.Title)
}

// TestImageRoundTripFlow attaches a PNG at creation, reads it back
// byte-identical, and confirms the JSON surface never carries raw bytes.
func TestImageRoundTripFlow(t *testing.T) {
	s, app, db := newScenarioServer(t)

	_, token := seedUser(t, s, db, "alice", false)
	category := &models.Category{Name: "Tech", Slug: "tech"}
	require.NoError(t, db.Create(category).Error)

	payload := testutil.TinyPNG(t, 1, 1)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("title", "Illustrated"))
	require.NoError(t, w.WriteField("content", "Look at this"))
	require.NoError(t, w.WriteField("category_id", itoa(category.ID)))
	part, err := w.CreateFormFile("image", "pixel.png")
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/posts", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	env := decodeEnvelope(t, resp)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var post models.Post
	require.NoError(t, json.Unmarshal(env.Data, &post))
	assert.True(t, post.HasFeaturedImage)
	assert.Empty(t, post.FeaturedImage, "raw bytes never ride along in JSON")

	// Raw bytes come back through the dedicated endpoint
	resp, err = app.Test(jsonRequest(t, http.MethodGet,
		"/api/posts/"+itoa(post.ID)+"/image", "", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, payload, body)

	// Detail JSON advertises presence, not content
	resp, err = app.Test(jsonRequest(t, http.MethodGet,
		"/api/posts/"+itoa(post.ID), "", nil))
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Contains(t, string(raw), `"has_featured_image":true`)
	assert.NotContains(t, string(raw), "featured_image_type")
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
