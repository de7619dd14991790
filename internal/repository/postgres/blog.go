package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

const blogColumns = `id, author_id, category_id, title, slug, blog_content, featured_image, created_at, updated_at`

const blogViewSelect = `
	SELECT b.id, b.author_id, b.category_id, b.title, b.slug, b.blog_content,
	       b.featured_image, b.created_at, b.updated_at,
	       u.id, u.name, u.avatar, u.role,
	       c.id, c.name, c.slug
	FROM blogs b
	LEFT JOIN users u ON u.id = b.author_id
	LEFT JOIN categories c ON c.id = b.category_id`

func scanBlog(row pgx.CollectableRow) (model.Blog, error) {
	var b model.Blog
	err := row.Scan(&b.ID, &b.AuthorID, &b.CategoryID, &b.Title, &b.Slug,
		&b.Content, &b.FeaturedImage, &b.CreatedAt, &b.UpdatedAt)
	b.Content = repository.DecodeContent(b.Content)
	return b, err
}

func scanBlogView(row pgx.CollectableRow) (model.BlogView, error) {
	var (
		v                              model.BlogView
		authorID                       *int64
		authorName, authorAvatar, role *string
		categoryID                     *int64
		categoryName, categorySlug     *string
	)
	err := row.Scan(&v.ID, &v.AuthorID, &v.CategoryID, &v.Title, &v.Slug,
		&v.Content, &v.FeaturedImage, &v.CreatedAt, &v.UpdatedAt,
		&authorID, &authorName, &authorAvatar, &role,
		&categoryID, &categoryName, &categorySlug)
	if err != nil {
		return v, err
	}
	v.Content = repository.DecodeContent(v.Content)

	if authorID != nil {
		v.Author = &model.AuthorRef{
			ID:     *authorID,
			Name:   deref(authorName),
			Avatar: deref(authorAvatar),
			Role:   model.Role(deref(role)),
		}
	}
	if categoryID != nil {
		v.Category = &model.CategoryRef{
			ID:   *categoryID,
			Name: deref(categoryName),
			Slug: deref(categorySlug),
		}
	}
	return v, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (db *DB) CreateBlog(ctx context.Context, blog *model.Blog) error {
	err := db.queryRow(ctx, "blogs.create",
		`INSERT INTO blogs (author_id, category_id, title, slug, blog_content, featured_image)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		[]any{blog.AuthorID, blog.CategoryID, blog.Title, blog.Slug,
			repository.EncodeContent(blog.Content), blog.FeaturedImage},
		&blog.ID, &blog.CreatedAt, &blog.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("blog", blog.Slug)
		}
		return fmt.Errorf("postgres: creating blog: %w", err)
	}
	return nil
}

func (db *DB) GetBlogByID(ctx context.Context, id int64) (*model.Blog, error) {
	blogs, err := collect(ctx, db, "blogs.get",
		`SELECT `+blogColumns+` FROM blogs WHERE id = $1`, []any{id}, scanBlog)
	if err != nil {
		return nil, fmt.Errorf("postgres: getting blog %d: %w", id, err)
	}
	if len(blogs) == 0 {
		return nil, apperror.NotFound("blog", id)
	}
	return &blogs[0], nil
}

func (db *DB) getBlogView(ctx context.Context, op, where string, key any) (*model.BlogView, error) {
	views, err := collect(ctx, db, op, blogViewSelect+` WHERE `+where, []any{key}, scanBlogView)
	if err != nil {
		return nil, fmt.Errorf("postgres: getting blog %v: %w", key, err)
	}
	if len(views) == 0 {
		return nil, apperror.NotFound("blog", key)
	}
	return &views[0], nil
}

func (db *DB) GetBlogViewByID(ctx context.Context, id int64) (*model.BlogView, error) {
	return db.getBlogView(ctx, "blogs.get_view", "b.id = $1", id)
}

func (db *DB) GetBlogViewBySlug(ctx context.Context, slug string) (*model.BlogView, error) {
	return db.getBlogView(ctx, "blogs.get_by_slug", "b.slug = $1", slug)
}

func (db *DB) ListBlogViews(ctx context.Context, filter repository.BlogFilter) ([]model.BlogView, error) {
	var (
		where []string
		args  []any
	)
	if filter.AuthorID != 0 {
		args = append(args, filter.AuthorID)
		where = append(where, fmt.Sprintf("b.author_id = $%d", len(args)))
	}
	if filter.CategoryID != 0 {
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf("b.category_id = $%d", len(args)))
	}
	if filter.TitleQuery != "" {
		args = append(args, repository.LikePattern(filter.TitleQuery))
		where = append(where, fmt.Sprintf(`b.title ILIKE $%d ESCAPE '\'`, len(args)))
	}

	query := blogViewSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY b.created_at DESC, b.id DESC"

	views, err := collect(ctx, db, "blogs.list", query, args, scanBlogView)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing blogs: %w", err)
	}
	return views, nil
}

func (db *DB) ListRelatedBlogs(ctx context.Context, categoryID int64, excludeSlug string, limit int) ([]model.Blog, error) {
	blogs, err := collect(ctx, db, "blogs.related",
		`SELECT `+blogColumns+` FROM blogs
		 WHERE category_id = $1 AND slug <> $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3`,
		[]any{categoryID, excludeSlug, limit}, scanBlog)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing related blogs: %w", err)
	}
	return blogs, nil
}

func (db *DB) UpdateBlog(ctx context.Context, blog *model.Blog) error {
	err := db.queryRow(ctx, "blogs.update",
		`UPDATE blogs
		 SET category_id = $1, title = $2, slug = $3, blog_content = $4, featured_image = $5, updated_at = now()
		 WHERE id = $6
		 RETURNING updated_at`,
		[]any{blog.CategoryID, blog.Title, blog.Slug, repository.EncodeContent(blog.Content),
			blog.FeaturedImage, blog.ID},
		&blog.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return apperror.NotFound("blog", blog.ID)
		}
		if isUniqueViolation(err) {
			return apperror.Conflict("blog", blog.Slug)
		}
		return fmt.Errorf("postgres: updating blog %d: %w", blog.ID, err)
	}
	return nil
}

func (db *DB) DeleteBlog(ctx context.Context, id int64) error {
	tag, err := db.exec(ctx, "blogs.delete", `DELETE FROM blogs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: deleting blog %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("blog", id)
	}
	return nil
}
