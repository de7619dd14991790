package sqlite

import (
	"context"
	"testing"

	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

// newTestDB opens a fresh in-memory database for each test.
// t.Cleanup closes it when the test finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:", repository.NoRetry())
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, name string, role model.Role) *model.User {
	t.Helper()
	user := &model.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: "$2a$10$hash",
		Role:         role,
	}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func createTestCategory(t *testing.T, db *DB, name, slug string) *model.Category {
	t.Helper()
	category := &model.Category{Name: name, Slug: slug}
	if err := db.CreateCategory(context.Background(), category); err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

func createTestBlog(t *testing.T, db *DB, authorID, categoryID int64, title, slug string) *model.Blog {
	t.Helper()
	blog := &model.Blog{
		AuthorID:      authorID,
		CategoryID:    categoryID,
		Title:         title,
		Slug:          slug,
		Content:       "<p>" + title + "</p>",
		FeaturedImage: "https://cdn.example.com/" + slug + ".png",
	}
	if err := db.CreateBlog(context.Background(), blog); err != nil {
		t.Fatalf("failed to create test blog: %v", err)
	}
	return blog
}

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	db := newTestDB(t)

	// Running migrate a second time must not fail on existing tables.
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}
