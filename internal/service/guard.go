package service

import (
	"context"

	"inkwell/internal/models"
)

// Guard decides whether a principal may mutate a post. Only the author or an
// admin passes; everyone else gets an explicit FORBIDDEN, never a silent no-op.
type Guard struct {
	isAdmin func(ctx context.Context, userID uint) (bool, error)
}

func NewGuard(isAdmin func(ctx context.Context, userID uint) (bool, error)) *Guard {
	return &Guard{isAdmin: isAdmin}
}

func (g *Guard) CanMutate(ctx context.Context, post *models.Post, userID uint) error {
	if userID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	if post.AuthorID == userID {
		return nil
	}
	if g.isAdmin != nil {
		admin, err := g.isAdmin(ctx, userID)
		if err != nil {
			return err
		}
		if admin {
			return nil
		}
	}
	return models.NewForbiddenError("You can only modify your own posts")
}
