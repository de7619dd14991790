package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gosimple/slug"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

const (
	MsgCategoryRequired = "Name and Slug are required."
	MsgCategoryNotFound = "Category data not found."
	MsgDataNotFound     = "Data not found."
)

type CategoryService struct {
	categories repository.CategoryRepository
	logger     *slog.Logger
}

func NewCategoryService(categories repository.CategoryRepository, logger *slog.Logger) *CategoryService {
	return &CategoryService{categories: categories, logger: logger}
}

// CategoryInput is the body of the add and update endpoints.
type CategoryInput struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// normalize trims the name and lowercases/hyphenates the slug. A slug with
// nothing URL-safe left in it is rejected.
func (in CategoryInput) normalize() (CategoryInput, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(in.Slug) == "" {
		return in, apperror.ValidationFailed("name", MsgCategoryRequired)
	}
	s := slug.Make(in.Slug)
	if s == "" {
		return in, apperror.ValidationFailed("slug", "Slug must contain letters or digits.")
	}
	return CategoryInput{Name: name, Slug: s}, nil
}

func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*model.Category, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	category := &model.Category{Name: in.Name, Slug: in.Slug}
	if err := s.categories.CreateCategory(ctx, category); err != nil {
		return nil, slugConflict(err, in.Slug)
	}

	s.logger.Info("category created",
		slog.Int64("categoryID", category.ID),
		slog.String("slug", category.Slug),
	)
	return category, nil
}

func (s *CategoryService) Get(ctx context.Context, id int64) (*model.Category, error) {
	category, err := s.categories.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, notFound(err, MsgDataNotFound)
	}
	return category, nil
}

func (s *CategoryService) GetBySlug(ctx context.Context, categorySlug string) (*model.Category, error) {
	category, err := s.categories.GetCategoryBySlug(ctx, categorySlug)
	if err != nil {
		return nil, notFound(err, MsgCategoryNotFound)
	}
	return category, nil
}

func (s *CategoryService) Update(ctx context.Context, id int64, in CategoryInput) (*model.Category, error) {
	category, err := s.categories.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, notFound(err, MsgDataNotFound)
	}
	in, err = in.normalize()
	if err != nil {
		return nil, err
	}
	category.Name = in.Name
	category.Slug = in.Slug

	if err := s.categories.UpdateCategory(ctx, category); err != nil {
		return nil, slugConflict(err, in.Slug)
	}
	return category, nil
}

// Delete removes the category. Blogs that reference it are kept and read
// back with a null category.
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	if err := s.categories.DeleteCategory(ctx, id); err != nil {
		return notFound(err, MsgDataNotFound)
	}
	s.logger.Info("category deleted", slog.Int64("categoryID", id))
	return nil
}

// List returns all categories ordered by name.
func (s *CategoryService) List(ctx context.Context) ([]model.Category, error) {
	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/category: listing: %w", err)
	}
	return categories, nil
}

func slugConflict(err error, s string) error {
	if errors.Is(err, apperror.ErrConflict) {
		return apperror.ConflictMsg(fmt.Sprintf("Category slug %q already exists.", s))
	}
	return notFound(err, MsgDataNotFound)
}
