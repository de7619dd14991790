package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

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

func scanCommentView(row pgx.CollectableRow) (model.CommentView, error) {
	var (
		v                   model.CommentView
		userID              *int64
		userName, avatar    *string
		blogID              *int64
		blogTitle, blogSlug *string
	)
	err := row.Scan(&v.ID, &v.UserID, &v.BlogID, &v.Content, &v.CreatedAt,
		&userID, &userName, &avatar,
		&blogID, &blogTitle, &blogSlug)
	if err != nil {
		return v, err
	}
	if userID != nil {
		v.User = &model.CommenterRef{ID: *userID, Name: deref(userName), Avatar: deref(avatar)}
	}
	if blogID != nil {
		v.Blog = &model.BlogRef{ID: *blogID, Title: deref(blogTitle), Slug: deref(blogSlug)}
	}
	return v, nil
}

func (db *DB) CreateComment(ctx context.Context, comment *model.Comment) error {
	err := db.queryRow(ctx, "comments.create",
		`INSERT INTO comments (user_id, blog_id, content) VALUES ($1, $2, $3) RETURNING id, created_at`,
		[]any{comment.UserID, comment.BlogID, comment.Content},
		&comment.ID, &comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: creating comment: %w", err)
	}
	return nil
}

func (db *DB) GetCommentByID(ctx context.Context, id int64) (*model.Comment, error) {
	var c model.Comment
	err := db.queryRow(ctx, "comments.get",
		`SELECT id, user_id, blog_id, content, created_at FROM comments WHERE id = $1`, []any{id},
		&c.ID, &c.UserID, &c.BlogID, &c.Content, &c.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("postgres: getting comment %d: %w", id, err)
	}
	return &c, nil
}

func (db *DB) ListCommentsByBlog(ctx context.Context, blogID int64) ([]model.CommentView, error) {
	views, err := collect(ctx, db, "comments.by_blog",
		commentViewSelect+` WHERE cm.blog_id = $1 ORDER BY cm.created_at DESC, cm.id DESC`,
		[]any{blogID}, scanCommentView)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing comments for blog %d: %w", blogID, err)
	}
	return views, nil
}

func (db *DB) ListCommentViews(ctx context.Context, filter repository.CommentFilter) ([]model.CommentView, error) {
	query := commentViewSelect
	var args []any
	if filter.UserID != 0 {
		query += ` WHERE cm.user_id = $1`
		args = append(args, filter.UserID)
	}
	query += ` ORDER BY cm.created_at DESC, cm.id DESC`

	views, err := collect(ctx, db, "comments.list", query, args, scanCommentView)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing comments: %w", err)
	}
	return views, nil
}

func (db *DB) CountCommentsByBlog(ctx context.Context, blogID int64) (int64, error) {
	var n int64
	err := db.queryRow(ctx, "comments.count",
		`SELECT COUNT(*) FROM comments WHERE blog_id = $1`, []any{blogID}, &n)
	if err != nil {
		return 0, fmt.Errorf("postgres: counting comments for blog %d: %w", blogID, err)
	}
	return n, nil
}

func (db *DB) DeleteComment(ctx context.Context, id int64) error {
	tag, err := db.exec(ctx, "comments.delete", `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: deleting comment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("comment", id)
	}
	return nil
}
