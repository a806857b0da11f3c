package server

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// GetPostImage handles GET /api/posts/:id/image
// @Summary Fetch a post's featured image
// @Description Raw attachment bytes with the stored Content-Type
// @Tags posts
// @Produce octet-stream
// @Param id path int true "Post ID"
// @Success 200 {file} binary
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/image [get]
func (s *Server) GetPostImage(c *fiber.Ctx) error {
	ctx := c.UserContext()

	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	attachment, err := s.postService.GetPostImage(ctx, postID)
	if err != nil {
		return respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, attachment.ContentType)
	if attachment.Filename != "" {
		c.Set(fiber.HeaderContentDisposition,
			fmt.Sprintf("inline; filename=%q", attachment.Filename))
	}
	return c.Send(attachment.Content)
}

// DeletePostImage handles DELETE /api/posts/:id/image
// @Summary Remove a post's featured image
// @Description Detach and delete the stored image; author or admin only
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/image [delete]
func (s *Server) DeletePostImage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.RemovePostImage(ctx, userID, postID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Featured image removed",
	})
}
