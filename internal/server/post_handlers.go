package server

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

// postRequest is the JSON body for create/update. Multipart requests carry the
// same fields as form values plus an optional "image" file part.
type postRequest struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Excerpt        string   `json:"excerpt"`
	Tags           []string `json:"tags"`
	CategoryID     uint     `json:"category_id"`
	IsPublished    *bool    `json:"is_published"`
	RegenerateSlug bool     `json:"regenerate_slug"`
	RemoveImage    bool     `json:"remove_image"`
}

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Paginated list of published posts, optionally filtered by category
// @Tags posts
// @Produce json
// @Param page query int false "Page number (1-based)"
// @Param limit query int false "Page size (max 100)"
// @Param category query int false "Category ID filter"
// @Success 200 {object} object{success=bool,data=[]models.Post,pagination=server.PaginationMeta}
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	ctx := c.UserContext()

	in := service.ListPostsInput{
		Page:       c.QueryInt("page", 1),
		Limit:      c.QueryInt("limit", 10),
		CategoryID: uint(c.QueryInt("category", 0)),
	}

	// Drafts are only visible to admins who ask for them.
	if c.QueryBool("include_drafts", false) {
		if userID, ok := s.optionalUserID(c); ok {
			if admin, err := s.isAdmin(c, userID); err == nil && admin {
				in.IncludeDrafts = true
			}
		}
	}

	posts, total, err := s.postService.ListPosts(ctx, in)
	if err != nil {
		return respondError(c, err)
	}

	page, limit := normalizePageQuery(in.Page, in.Limit)
	return c.JSON(listResponse(posts, page, limit, total))
}

// SearchPosts handles GET /api/posts/search?q=...
// @Summary Search posts
// @Description Case-insensitive substring search over title, content, and tags
// @Tags posts
// @Produce json
// @Param q query string true "Search query"
// @Param limit query int false "Result cap (default 20, max 100)"
// @Success 200 {object} object{success=bool,data=[]models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/search [get]
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	ctx := c.UserContext()

	q := c.Query("q")
	limit := c.QueryInt("limit", 0)

	posts, err := s.postService.SearchPosts(ctx, q, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dataResponse(posts))
}

// GetPost handles GET /api/posts/:idOrSlug
// @Summary Get one post
// @Description Fetch a post by numeric ID or slug; records a view
// @Tags posts
// @Produce json
// @Param idOrSlug path string true "Post ID or slug"
// @Success 200 {object} object{success=bool,data=models.Post}
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{idOrSlug} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	ctx := c.UserContext()

	post, err := s.postService.GetPost(ctx, c.Params("idOrSlug"), true)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dataResponse(post))
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Description Create a post; accepts JSON or multipart with an "image" file part
// @Tags posts
// @Accept json
// @Accept mpfd
// @Produce json
// @Success 201 {object} object{success=bool,data=models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	req, image, err := s.parsePostPayload(c)
	if err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(ctx, service.CreatePostInput{
		AuthorID:    userID,
		Title:       req.Title,
		Content:     req.Content,
		Excerpt:     req.Excerpt,
		Tags:        req.Tags,
		CategoryID:  req.CategoryID,
		IsPublished: req.IsPublished,
		Image:       image,
	})
	if err != nil {
		return respondError(c, err)
	}

	s.publishBroadcastEvent(EventPostCreated, map[string]interface{}{
		"post_id":    post.ID,
		"slug":       post.Slug,
		"author_id":  post.AuthorID,
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	})

	return c.Status(fiber.StatusCreated).JSON(dataResponse(post))
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Update a post
// @Description Update mutable fields; author or admin only. Slug changes only with regenerate_slug.
// @Tags posts
// @Accept json
// @Accept mpfd
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,data=models.Post}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	req, image, err := s.parsePostPayload(c)
	if err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(ctx, service.UpdatePostInput{
		UserID:         userID,
		PostID:         postID,
		Title:          req.Title,
		Content:        req.Content,
		Excerpt:        req.Excerpt,
		Tags:           req.Tags,
		CategoryID:     req.CategoryID,
		IsPublished:    req.IsPublished,
		RegenerateSlug: req.RegenerateSlug,
		Image:          image,
		RemoveImage:    req.RemoveImage,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dataResponse(post))
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post
// @Description Delete a post and its comments; author or admin only
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(ctx, service.DeletePostInput{
		UserID: userID,
		PostID: postID,
	}); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Post deleted",
	})
}

// parsePostPayload decodes a create/update request body, JSON or multipart.
// On failure it writes the 400 response and returns errResponseWritten.
func (s *Server) parsePostPayload(c *fiber.Ctx) (*postRequest, *service.ImageUpload, error) {
	var req postRequest

	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if err := c.BodyParser(&req); err != nil {
			_ = models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
			return nil, nil, errResponseWritten
		}
		return &req, nil, nil
	}

	req.Title = c.FormValue("title")
	req.Content = c.FormValue("content")
	req.Excerpt = c.FormValue("excerpt")
	req.Tags = parseTagsForm(c.FormValue("tags"))

	if v := c.FormValue("category_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			_ = models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid category_id"))
			return nil, nil, errResponseWritten
		}
		req.CategoryID = uint(id)
	}
	if v := c.FormValue("is_published"); v != "" {
		published, err := strconv.ParseBool(v)
		if err != nil {
			_ = models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid is_published"))
			return nil, nil, errResponseWritten
		}
		req.IsPublished = &published
	}
	if v := c.FormValue("regenerate_slug"); v != "" {
		flag, err := strconv.ParseBool(v)
		if err != nil {
			_ = models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid regenerate_slug"))
			return nil, nil, errResponseWritten
		}
		req.RegenerateSlug = flag
	}
	if v := c.FormValue("remove_image"); v != "" {
		flag, err := strconv.ParseBool(v)
		if err != nil {
			_ = models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid remove_image"))
			return nil, nil, errResponseWritten
		}
		req.RemoveImage = flag
	}

	file, err := c.FormFile("image")
	if err != nil {
		// No image part; a bare multipart form is still a valid request.
		return &req, nil, nil
	}

	image, err := readImagePart(file)
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unable to read uploaded file"))
		return nil, nil, errResponseWritten
	}
	return &req, image, nil
}

func readImagePart(file *multipart.FileHeader) (*service.ImageUpload, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}

	return &service.ImageUpload{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

// parseTagsForm accepts either a JSON array or a comma-separated list.
func parseTagsForm(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err == nil {
			return tags
		}
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

// normalizePageQuery mirrors the service's pagination defaults so the echoed
// pagination block matches what was actually queried.
func normalizePageQuery(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
