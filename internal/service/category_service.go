package service

import (
	"context"
	"fmt"

	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/slug"
)

const maxCategoryNameLen = 60

type CategoryService struct {
	categoryRepo repository.CategoryRepository
}

type CreateCategoryInput struct {
	Name        string
	Description string
}

func NewCategoryService(categoryRepo repository.CategoryRepository) *CategoryService {
	return &CategoryService{categoryRepo: categoryRepo}
}

func (s *CategoryService) CreateCategory(ctx context.Context, in CreateCategoryInput) (*models.Category, error) {
	if in.Name == "" {
		return nil, models.NewValidationError("Name is required")
	}
	if len(in.Name) > maxCategoryNameLen {
		return nil, models.NewValidationError(fmt.Sprintf("Name too long (max %d characters)", maxCategoryNameLen))
	}

	categorySlug := slug.Derive(in.Name)
	if categorySlug == "" {
		return nil, models.NewValidationError("Name must contain at least one letter or digit")
	}

	category := &models.Category{
		Name:        in.Name,
		Slug:        categorySlug,
		Description: in.Description,
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *CategoryService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.categoryRepo.List(ctx)
}

func (s *CategoryService) DeleteCategory(ctx context.Context, id uint) error {
	has, err := s.categoryRepo.HasPosts(ctx, id)
	if err != nil {
		return err
	}
	if has {
		return models.NewValidationError("Category still has posts")
	}
	return s.categoryRepo.Delete(ctx, id)
}
