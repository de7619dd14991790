package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

const blogColumns = `id, author_id, category_id, title, slug, blog_content, featured_image, created_at, updated_at`

// blogViewSelect joins author and category. Both joins are LEFT so a blog
// whose parent was deleted still comes back, with NULL reference columns.
const blogViewSelect = `
	SELECT b.id, b.author_id, b.category_id, b.title, b.slug, b.blog_content,
	       b.featured_image, b.created_at, b.updated_at,
	       u.id, u.name, u.avatar, u.role,
	       c.id, c.name, c.slug
	FROM blogs b
	LEFT JOIN users u ON u.id = b.author_id
	LEFT JOIN categories c ON c.id = b.category_id`

func scanBlog(scan func(dest ...any) error) (*model.Blog, error) {
	var b model.Blog
	if err := scan(&b.ID, &b.AuthorID, &b.CategoryID, &b.Title, &b.Slug,
		&b.Content, &b.FeaturedImage, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Content = repository.DecodeContent(b.Content)
	return &b, nil
}

func scanBlogView(scan func(dest ...any) error) (*model.BlogView, error) {
	var (
		v                          model.BlogView
		authorID                   sql.NullInt64
		authorName, avatar         sql.NullString
		role                       sql.NullString
		categoryID                 sql.NullInt64
		categoryName, categorySlug sql.NullString
	)
	err := scan(&v.ID, &v.AuthorID, &v.CategoryID, &v.Title, &v.Slug,
		&v.Content, &v.FeaturedImage, &v.CreatedAt, &v.UpdatedAt,
		&authorID, &authorName, &avatar, &role,
		&categoryID, &categoryName, &categorySlug)
	if err != nil {
		return nil, err
	}
	v.Content = repository.DecodeContent(v.Content)

	if authorID.Valid {
		v.Author = &model.AuthorRef{
			ID:     authorID.Int64,
			Name:   authorName.String,
			Avatar: avatar.String,
			Role:   model.Role(role.String),
		}
	}
	if categoryID.Valid {
		v.Category = &model.CategoryRef{
			ID:   categoryID.Int64,
			Name: categoryName.String,
			Slug: categorySlug.String,
		}
	}
	return &v, nil
}

// CreateBlog inserts a blog. A slug clash returns apperror.ErrConflict so the
// caller can pick a fresh suffix and try again.
func (db *DB) CreateBlog(ctx context.Context, blog *model.Blog) error {
	blog.CreatedAt = now()
	blog.UpdatedAt = blog.CreatedAt

	res, err := db.exec(ctx, "blogs.create",
		`INSERT INTO blogs (author_id, category_id, title, slug, blog_content, featured_image, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		blog.AuthorID, blog.CategoryID, blog.Title, blog.Slug,
		repository.EncodeContent(blog.Content), blog.FeaturedImage,
		blog.CreatedAt, blog.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("blog", blog.Slug)
		}
		return fmt.Errorf("sqlite: creating blog: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading blog id: %w", err)
	}
	blog.ID = id
	return nil
}

func (db *DB) GetBlogByID(ctx context.Context, id int64) (*model.Blog, error) {
	var blog *model.Blog
	err := db.queryRow(ctx, "blogs.get",
		`SELECT `+blogColumns+` FROM blogs WHERE id = ?`, []any{id},
		func(row *sql.Row) (err error) {
			blog, err = scanBlog(row.Scan)
			return err
		})
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("blog", id)
		}
		return nil, fmt.Errorf("sqlite: getting blog %d: %w", id, err)
	}
	return blog, nil
}

func (db *DB) GetBlogViewByID(ctx context.Context, id int64) (*model.BlogView, error) {
	var view *model.BlogView
	err := db.queryRow(ctx, "blogs.get_view",
		blogViewSelect+` WHERE b.id = ?`, []any{id},
		func(row *sql.Row) (err error) {
			view, err = scanBlogView(row.Scan)
			return err
		})
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("blog", id)
		}
		return nil, fmt.Errorf("sqlite: getting blog %d: %w", id, err)
	}
	return view, nil
}

func (db *DB) GetBlogViewBySlug(ctx context.Context, slug string) (*model.BlogView, error) {
	var view *model.BlogView
	err := db.queryRow(ctx, "blogs.get_by_slug",
		blogViewSelect+` WHERE b.slug = ?`, []any{slug},
		func(row *sql.Row) (err error) {
			view, err = scanBlogView(row.Scan)
			return err
		})
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("blog", slug)
		}
		return nil, fmt.Errorf("sqlite: getting blog %q: %w", slug, err)
	}
	return view, nil
}

// ListBlogViews returns joined blogs matching filter, newest first.
func (db *DB) ListBlogViews(ctx context.Context, filter repository.BlogFilter) ([]model.BlogView, error) {
	var (
		where []string
		args  []any
	)
	if filter.AuthorID != 0 {
		where = append(where, "b.author_id = ?")
		args = append(args, filter.AuthorID)
	}
	if filter.CategoryID != 0 {
		where = append(where, "b.category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if filter.TitleQuery != "" {
		// SQLite LIKE is case-insensitive for ASCII.
		where = append(where, `b.title LIKE ? ESCAPE '\'`)
		args = append(args, repository.LikePattern(filter.TitleQuery))
	}

	query := blogViewSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY b.created_at DESC, b.id DESC"

	var views []model.BlogView
	err := db.query(ctx, "blogs.list", query, args,
		func() { views = make([]model.BlogView, 0) },
		func(rows *sql.Rows) error {
			v, err := scanBlogView(rows.Scan)
			if err != nil {
				return err
			}
			views = append(views, *v)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing blogs: %w", err)
	}
	return views, nil
}

// ListRelatedBlogs returns up to limit blogs in categoryID other than the one
// with excludeSlug, newest first.
func (db *DB) ListRelatedBlogs(ctx context.Context, categoryID int64, excludeSlug string, limit int) ([]model.Blog, error) {
	var blogs []model.Blog
	err := db.query(ctx, "blogs.related",
		`SELECT `+blogColumns+` FROM blogs
		 WHERE category_id = ? AND slug <> ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		[]any{categoryID, excludeSlug, limit},
		func() { blogs = make([]model.Blog, 0) },
		func(rows *sql.Rows) error {
			b, err := scanBlog(rows.Scan)
			if err != nil {
				return err
			}
			blogs = append(blogs, *b)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing related blogs: %w", err)
	}
	return blogs, nil
}

// UpdateBlog rewrites the mutable fields and bumps UpdatedAt.
func (db *DB) UpdateBlog(ctx context.Context, blog *model.Blog) error {
	blog.UpdatedAt = now()

	res, err := db.exec(ctx, "blogs.update",
		`UPDATE blogs
		 SET category_id = ?, title = ?, slug = ?, blog_content = ?, featured_image = ?, updated_at = ?
		 WHERE id = ?`,
		blog.CategoryID, blog.Title, blog.Slug, repository.EncodeContent(blog.Content),
		blog.FeaturedImage, blog.UpdatedAt, blog.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("blog", blog.Slug)
		}
		return fmt.Errorf("sqlite: updating blog %d: %w", blog.ID, err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("sqlite: updating blog %d: %w", blog.ID, err)
	}
	if !ok {
		return apperror.NotFound("blog", blog.ID)
	}
	return nil
}

// DeleteBlog removes the blog row. Its comments are left in place.
func (db *DB) DeleteBlog(ctx context.Context, id int64) error {
	res, err := db.exec(ctx, "blogs.delete", `DELETE FROM blogs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting blog %d: %w", id, err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("sqlite: deleting blog %d: %w", id, err)
	}
	if !ok {
		return apperror.NotFound("blog", id)
	}
	return nil
}
