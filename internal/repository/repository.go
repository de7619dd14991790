// Package repository declares the storage contracts the service layer
// depends on. Concrete stores live in the sqlite and postgres subpackages;
// both satisfy Store so the composition root can pick either at startup.
package repository

import (
	"context"

	"github.com/sakif/blog-platform/internal/model"
)

// BlogFilter narrows ListBlogViews. Zero values mean "no constraint".
type BlogFilter struct {
	AuthorID   int64
	CategoryID int64
	TitleQuery string // case-insensitive substring match on title
}

// CommentFilter narrows ListCommentViews. UserID 0 returns every comment.
type CommentFilter struct {
	UserID int64
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	UpdateUserRole(ctx context.Context, email string, role model.Role) error
	DeleteUser(ctx context.Context, id int64) error
}

type CategoryRepository interface {
	CreateCategory(ctx context.Context, category *model.Category) error
	GetCategoryByID(ctx context.Context, id int64) (*model.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	UpdateCategory(ctx context.Context, category *model.Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

type BlogRepository interface {
	CreateBlog(ctx context.Context, blog *model.Blog) error
	GetBlogByID(ctx context.Context, id int64) (*model.Blog, error)
	GetBlogViewByID(ctx context.Context, id int64) (*model.BlogView, error)
	GetBlogViewBySlug(ctx context.Context, slug string) (*model.BlogView, error)
	ListBlogViews(ctx context.Context, filter BlogFilter) ([]model.BlogView, error)
	ListRelatedBlogs(ctx context.Context, categoryID int64, excludeSlug string, limit int) ([]model.Blog, error)
	UpdateBlog(ctx context.Context, blog *model.Blog) error
	DeleteBlog(ctx context.Context, id int64) error
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetCommentByID(ctx context.Context, id int64) (*model.Comment, error)
	ListCommentsByBlog(ctx context.Context, blogID int64) ([]model.CommentView, error)
	ListCommentViews(ctx context.Context, filter CommentFilter) ([]model.CommentView, error)
	CountCommentsByBlog(ctx context.Context, blogID int64) (int64, error)
	DeleteComment(ctx context.Context, id int64) error
}

// Store bundles every repository with connection lifecycle methods.
type Store interface {
	UserRepository
	CategoryRepository
	BlogRepository
	CommentRepository

	Ping(ctx context.Context) error
	Close() error
}
