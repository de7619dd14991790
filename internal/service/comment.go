package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/auth"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

const MsgCommentEmpty = "Comment cannot be empty"

type CommentService struct {
	comments repository.CommentRepository
	blogs    repository.BlogRepository
	logger   *slog.Logger
}

func NewCommentService(comments repository.CommentRepository, blogs repository.BlogRepository, logger *slog.Logger) *CommentService {
	return &CommentService{comments: comments, blogs: blogs, logger: logger}
}

// CommentInput is the body of POST /api/comment/add. The author always comes
// from the session, never from the body.
type CommentInput struct {
	BlogID  FlexID `json:"blogid"`
	Content string `json:"content"`
}

func (s *CommentService) Create(ctx context.Context, caller auth.Identity, in CommentInput) (*model.Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", MsgCommentEmpty)
	}
	if in.BlogID <= 0 {
		return nil, apperror.ValidationFailed("blogid", "Blog is required.")
	}
	if _, err := s.blogs.GetBlogByID(ctx, int64(in.BlogID)); err != nil {
		return nil, notFound(err, "Blog not found.")
	}

	comment := &model.Comment{
		UserID:  caller.ID,
		BlogID:  int64(in.BlogID),
		Content: content,
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("service/comment: creating: %w", err)
	}

	s.logger.Info("comment added",
		slog.Int64("commentID", comment.ID),
		slog.Int64("blogID", comment.BlogID),
		slog.Int64("userID", comment.UserID),
	)
	return comment, nil
}

// ListByBlog is public; an unknown blog just has no comments.
func (s *CommentService) ListByBlog(ctx context.Context, blogID int64) ([]model.CommentView, error) {
	comments, err := s.comments.ListCommentsByBlog(ctx, blogID)
	if err != nil {
		return nil, fmt.Errorf("service/comment: listing blog %d: %w", blogID, err)
	}
	return comments, nil
}

func (s *CommentService) Count(ctx context.Context, blogID int64) (int64, error) {
	n, err := s.comments.CountCommentsByBlog(ctx, blogID)
	if err != nil {
		return 0, fmt.Errorf("service/comment: counting blog %d: %w", blogID, err)
	}
	return n, nil
}

// ListForCaller scopes exactly like BlogService.ListForCaller.
func (s *CommentService) ListForCaller(ctx context.Context, caller auth.Identity) ([]model.CommentView, error) {
	var filter repository.CommentFilter
	if !caller.IsAdmin() {
		filter.UserID = caller.ID
	}
	comments, err := s.comments.ListCommentViews(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service/comment: listing: %w", err)
	}
	return comments, nil
}

func (s *CommentService) Delete(ctx context.Context, caller auth.Identity, id int64) error {
	comment, err := s.comments.GetCommentByID(ctx, id)
	if err != nil {
		return notFound(err, MsgDataNotFound)
	}
	if err := checkOwner(caller, comment.UserID); err != nil {
		return err
	}
	if err := s.comments.DeleteComment(ctx, id); err != nil {
		return notFound(err, MsgDataNotFound)
	}
	s.logger.Info("comment deleted", slog.Int64("commentID", id), slog.Int64("by", caller.ID))
	return nil
}
