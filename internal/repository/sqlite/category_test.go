package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
)

func TestCreateCategory_DuplicateSlug(t *testing.T) {
	db := newTestDB(t)
	createTestCategory(t, db, "Tech", "tech")

	err := db.CreateCategory(context.Background(), &model.Category{Name: "Technology", Slug: "tech"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("CreateCategory() error = %v, want ErrConflict", err)
	}
}

func TestGetCategoryBySlug(t *testing.T) {
	db := newTestDB(t)
	created := createTestCategory(t, db, "Travel", "travel")

	got, err := db.GetCategoryBySlug(context.Background(), "travel")
	if err != nil {
		t.Fatalf("GetCategoryBySlug() error = %v", err)
	}
	if got.ID != created.ID || got.Name != "Travel" {
		t.Errorf("got %+v, want %+v", got, created)
	}

	if _, err := db.GetCategoryBySlug(context.Background(), "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetCategoryBySlug(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateCategory(t *testing.T) {
	db := newTestDB(t)
	cat := createTestCategory(t, db, "Food", "food")
	createTestCategory(t, db, "Drink", "drink")

	cat.Name = "Cooking"
	cat.Slug = "cooking"
	if err := db.UpdateCategory(context.Background(), cat); err != nil {
		t.Fatalf("UpdateCategory() error = %v", err)
	}
	got, _ := db.GetCategoryByID(context.Background(), cat.ID)
	if got.Slug != "cooking" {
		t.Errorf("Slug = %q, want cooking", got.Slug)
	}

	cat.Slug = "drink"
	if err := db.UpdateCategory(context.Background(), cat); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("UpdateCategory(taken slug) error = %v, want ErrConflict", err)
	}

	missing := &model.Category{ID: 999, Name: "x", Slug: "x"}
	if err := db.UpdateCategory(context.Background(), missing); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateCategory(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListCategories_Empty(t *testing.T) {
	db := newTestDB(t)

	got, err := db.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ListCategories() = %v, want empty non-nil slice", got)
	}
}

func TestDeleteCategory_BlogKeepsNullCategory(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "writer", model.RoleUser)
	cat := createTestCategory(t, db, "Gone", "gone")
	blog := createTestBlog(t, db, author.ID, cat.ID, "Left behind", "left-behind-7")

	if err := db.DeleteCategory(context.Background(), cat.ID); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}

	view, err := db.GetBlogViewBySlug(context.Background(), blog.Slug)
	if err != nil {
		t.Fatalf("GetBlogViewBySlug() error = %v", err)
	}
	if view.Category != nil {
		t.Errorf("Category = %+v, want nil", view.Category)
	}
	if view.CategoryID != cat.ID {
		t.Errorf("CategoryID = %d, want dangling %d", view.CategoryID, cat.ID)
	}
	if view.Author == nil || view.Author.Name != "writer" {
		t.Errorf("Author = %+v, want writer", view.Author)
	}
}
