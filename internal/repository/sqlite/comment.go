package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

const commentViewSelect = `
	SELECT cm.id, cm.user_id, cm.blog_id, cm.content, cm.created_at,
	       u.id, u.name, u.avatar,
	       b.id, b.title, b.slug
	FROM comments cm
	LEFT JOIN users u ON u.id = cm.user_id
	LEFT JOIN blogs b ON b.id = cm.blog_id`

func scanCommentView(scan func(dest ...any) error) (*model.CommentView, error) {
	var (
		v                   model.CommentView
		userID              sql.NullInt64
		userName, avatar    sql.NullString
		blogID              sql.NullInt64
		blogTitle, blogSlug sql.NullString
	)
	err := scan(&v.ID, &v.UserID, &v.BlogID, &v.Content, &v.CreatedAt,
		&userID, &userName, &avatar,
		&blogID, &blogTitle, &blogSlug)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		v.User = &model.CommenterRef{ID: userID.Int64, Name: userName.String, Avatar: avatar.String}
	}
	if blogID.Valid {
		v.Blog = &model.BlogRef{ID: blogID.Int64, Title: blogTitle.String, Slug: blogSlug.String}
	}
	return &v, nil
}

func (db *DB) CreateComment(ctx context.Context, comment *model.Comment) error {
	comment.CreatedAt = now()

	res, err := db.exec(ctx, "comments.create",
		`INSERT INTO comments (user_id, blog_id, content, created_at) VALUES (?, ?, ?, ?)`,
		comment.UserID, comment.BlogID, comment.Content, comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating comment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading comment id: %w", err)
	}
	comment.ID = id
	return nil
}

func (db *DB) GetCommentByID(ctx context.Context, id int64) (*model.Comment, error) {
	var c model.Comment
	err := db.queryRow(ctx, "comments.get",
		`SELECT id, user_id, blog_id, content, created_at FROM comments WHERE id = ?`, []any{id},
		func(row *sql.Row) error {
			return row.Scan(&c.ID, &c.UserID, &c.BlogID, &c.Content, &c.CreatedAt)
		})
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("sqlite: getting comment %d: %w", id, err)
	}
	return &c, nil
}

// ListCommentsByBlog returns a blog's comments with their authors, newest first.
func (db *DB) ListCommentsByBlog(ctx context.Context, blogID int64) ([]model.CommentView, error) {
	return db.listCommentViews(ctx, "comments.by_blog",
		commentViewSelect+` WHERE cm.blog_id = ? ORDER BY cm.created_at DESC, cm.id DESC`,
		[]any{blogID})
}

// ListCommentViews is the moderation listing. A zero UserID returns all rows.
func (db *DB) ListCommentViews(ctx context.Context, filter repository.CommentFilter) ([]model.CommentView, error) {
	if filter.UserID != 0 {
		return db.listCommentViews(ctx, "comments.list",
			commentViewSelect+` WHERE cm.user_id = ? ORDER BY cm.created_at DESC, cm.id DESC`,
			[]any{filter.UserID})
	}
	return db.listCommentViews(ctx, "comments.list",
		commentViewSelect+` ORDER BY cm.created_at DESC, cm.id DESC`, nil)
}

func (db *DB) listCommentViews(ctx context.Context, op, query string, args []any) ([]model.CommentView, error) {
	var views []model.CommentView
	err := db.query(ctx, op, query, args,
		func() { views = make([]model.CommentView, 0) },
		func(rows *sql.Rows) error {
			v, err := scanCommentView(rows.Scan)
			if err != nil {
				return err
			}
			views = append(views, *v)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments: %w", err)
	}
	return views, nil
}

func (db *DB) CountCommentsByBlog(ctx context.Context, blogID int64) (int64, error) {
	var n int64
	err := db.queryRow(ctx, "comments.count",
		`SELECT COUNT(*) FROM comments WHERE blog_id = ?`, []any{blogID},
		func(row *sql.Row) error { return row.Scan(&n) })
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting comments for blog %d: %w", blogID, err)
	}
	return n, nil
}

func (db *DB) DeleteComment(ctx context.Context, id int64) error {
	res, err := db.exec(ctx, "comments.delete", `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comment %d: %w", id, err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comment %d: %w", id, err)
	}
	if !ok {
		return apperror.NotFound("comment", id)
	}
	return nil
}
