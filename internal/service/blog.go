package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/gosimple/slug"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/auth"
	"github.com/sakif/blog-platform/internal/blobstore"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

const (
	// MaxSlugAttempts bounds how many random suffixes Create tries before
	// giving up on a title.
	MaxSlugAttempts = 5
	// MaxSlugSuffix is the inclusive upper bound of the numeric suffix.
	MaxSlugSuffix = 100000
	// RelatedLimit caps GET /get-related-blog.
	RelatedLimit = 5

	MsgImageMissing = "Image file is missing"
)

type BlogService struct {
	blogs      repository.BlogRepository
	categories repository.CategoryRepository
	blobs      blobstore.Store
	logger     *slog.Logger

	suffix func() int
}

func NewBlogService(
	blogs repository.BlogRepository,
	categories repository.CategoryRepository,
	blobs blobstore.Store,
	logger *slog.Logger,
) *BlogService {
	return &BlogService{
		blogs:      blogs,
		categories: categories,
		blobs:      blobs,
		logger:     logger,
		suffix:     func() int { return rand.IntN(MaxSlugSuffix + 1) },
	}
}

// BlogInput is the JSON "data" part of POST /api/blog/add.
type BlogInput struct {
	CategoryID FlexID `json:"category"`
	Title      string `json:"title"`
	Content    string `json:"blogContent"`

	Image *Upload `json:"-"`
}

// BlogUpdate is the JSON "data" part of PUT /api/blog/update. An empty
// Slug keeps the current one.
type BlogUpdate struct {
	CategoryID FlexID `json:"category"`
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	Content    string `json:"blogContent"`

	Image *Upload `json:"-"`
}

func validateBlog(categoryID int64, title, content string) error {
	if categoryID <= 0 {
		return apperror.ValidationFailed("category", "Category is required.")
	}
	if err := required("title", "Title", title); err != nil {
		return err
	}
	return required("blogContent", "Blog content", content)
}

// Create stores a new blog authored by caller. The slug is the slugified
// title plus "-<n>", n random in [0, MaxSlugSuffix]; a collision on the
// UNIQUE index draws a new n.
func (s *BlogService) Create(ctx context.Context, caller auth.Identity, in BlogInput) (*model.Blog, error) {
	title := strings.TrimSpace(in.Title)
	if err := validateBlog(int64(in.CategoryID), title, in.Content); err != nil {
		return nil, err
	}
	if in.Image == nil {
		return nil, apperror.ValidationFailed("file", MsgImageMissing)
	}
	if err := s.requireCategory(ctx, int64(in.CategoryID)); err != nil {
		return nil, err
	}

	image, err := store(ctx, s.blobs, in.Image)
	if err != nil {
		return nil, err
	}

	base := slug.Make(title)
	if base == "" {
		base = "blog"
	}

	blog := &model.Blog{
		AuthorID:      caller.ID,
		CategoryID:    int64(in.CategoryID),
		Title:         title,
		Content:       in.Content,
		FeaturedImage: image,
	}
	for attempt := 1; attempt <= MaxSlugAttempts; attempt++ {
		blog.Slug = fmt.Sprintf("%s-%d", base, s.suffix())
		err = s.blogs.CreateBlog(ctx, blog)
		if err == nil {
			s.logger.Info("blog created",
				slog.Int64("blogID", blog.ID),
				slog.Int64("authorID", blog.AuthorID),
				slog.String("slug", blog.Slug),
			)
			return blog, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			logOrphan(s.logger, image, err)
			return nil, fmt.Errorf("service/blog: creating: %w", err)
		}
		s.logger.Debug("blog slug collision", slog.String("slug", blog.Slug), slog.Int("attempt", attempt))
	}
	logOrphan(s.logger, image, err)
	return nil, apperror.ConflictMsg("Could not generate a unique slug for this title, please retry.")
}

// Edit returns the blog for its edit form. Only the author or an admin may
// open it.
func (s *BlogService) Edit(ctx context.Context, caller auth.Identity, id int64) (*model.BlogView, error) {
	view, err := s.blogs.GetBlogViewByID(ctx, id)
	if err != nil {
		return nil, notFound(err, MsgDataNotFound)
	}
	if err := checkOwner(caller, view.AuthorID); err != nil {
		return nil, err
	}
	return view, nil
}

// Update rewrites a blog. Existence is checked first, ownership second,
// input third, so a stranger learns nothing about the payload rules.
func (s *BlogService) Update(ctx context.Context, caller auth.Identity, id int64, in BlogUpdate) (*model.Blog, error) {
	blog, err := s.blogs.GetBlogByID(ctx, id)
	if err != nil {
		return nil, notFound(err, MsgDataNotFound)
	}
	if err := checkOwner(caller, blog.AuthorID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if err := validateBlog(int64(in.CategoryID), title, in.Content); err != nil {
		return nil, err
	}
	if int64(in.CategoryID) != blog.CategoryID {
		if err := s.requireCategory(ctx, int64(in.CategoryID)); err != nil {
			return nil, err
		}
	}
	if strings.TrimSpace(in.Slug) != "" {
		newSlug := slug.Make(in.Slug)
		if newSlug == "" {
			return nil, apperror.ValidationFailed("slug", "Slug must contain letters or digits.")
		}
		blog.Slug = newSlug
	}

	uploaded := ""
	if in.Image != nil {
		uploaded, err = store(ctx, s.blobs, in.Image)
		if err != nil {
			return nil, err
		}
		blog.FeaturedImage = uploaded
	}

	blog.CategoryID = int64(in.CategoryID)
	blog.Title = title
	blog.Content = in.Content

	if err := s.blogs.UpdateBlog(ctx, blog); err != nil {
		if uploaded != "" {
			logOrphan(s.logger, uploaded, err)
		}
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ConflictMsg(fmt.Sprintf("Slug %q is already in use.", blog.Slug))
		}
		return nil, notFound(err, MsgDataNotFound)
	}

	s.logger.Info("blog updated", slog.Int64("blogID", blog.ID), slog.Int64("by", caller.ID))
	return blog, nil
}

func (s *BlogService) Delete(ctx context.Context, caller auth.Identity, id int64) error {
	blog, err := s.blogs.GetBlogByID(ctx, id)
	if err != nil {
		return notFound(err, MsgDataNotFound)
	}
	if err := checkOwner(caller, blog.AuthorID); err != nil {
		return err
	}
	if err := s.blogs.DeleteBlog(ctx, id); err != nil {
		return notFound(err, MsgDataNotFound)
	}
	s.logger.Info("blog deleted", slog.Int64("blogID", id), slog.Int64("by", caller.ID))
	return nil
}

// ListForCaller is the dashboard listing: an admin sees every blog, anyone
// else only their own.
func (s *BlogService) ListForCaller(ctx context.Context, caller auth.Identity) ([]model.BlogView, error) {
	var filter repository.BlogFilter
	if !caller.IsAdmin() {
		filter.AuthorID = caller.ID
	}
	return s.list(ctx, filter)
}

// ListAll is the public listing, newest first.
func (s *BlogService) ListAll(ctx context.Context) ([]model.BlogView, error) {
	return s.list(ctx, repository.BlogFilter{})
}

// Search matches q case-insensitively against titles.
func (s *BlogService) Search(ctx context.Context, q string) ([]model.BlogView, error) {
	return s.list(ctx, repository.BlogFilter{TitleQuery: strings.TrimSpace(q)})
}

func (s *BlogService) GetBySlug(ctx context.Context, blogSlug string) (*model.BlogView, error) {
	view, err := s.blogs.GetBlogViewBySlug(ctx, blogSlug)
	if err != nil {
		return nil, notFound(err, MsgDataNotFound)
	}
	return view, nil
}

// ListByCategory returns the category (by slug) and its blogs.
func (s *BlogService) ListByCategory(ctx context.Context, categorySlug string) (*model.Category, []model.BlogView, error) {
	category, err := s.categories.GetCategoryBySlug(ctx, categorySlug)
	if err != nil {
		return nil, nil, notFound(err, MsgCategoryNotFound)
	}
	blogs, err := s.list(ctx, repository.BlogFilter{CategoryID: category.ID})
	if err != nil {
		return nil, nil, err
	}
	return category, blogs, nil
}

// Related returns up to RelatedLimit other blogs in the same category.
func (s *BlogService) Related(ctx context.Context, categorySlug, blogSlug string) ([]model.Blog, error) {
	category, err := s.categories.GetCategoryBySlug(ctx, categorySlug)
	if err != nil {
		return nil, notFound(err, MsgCategoryNotFound)
	}
	blogs, err := s.blogs.ListRelatedBlogs(ctx, category.ID, blogSlug, RelatedLimit)
	if err != nil {
		return nil, fmt.Errorf("service/blog: listing related: %w", err)
	}
	return blogs, nil
}

func (s *BlogService) list(ctx context.Context, filter repository.BlogFilter) ([]model.BlogView, error) {
	blogs, err := s.blogs.ListBlogViews(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service/blog: listing: %w", err)
	}
	return blogs, nil
}

func (s *BlogService) requireCategory(ctx context.Context, id int64) error {
	if _, err := s.categories.GetCategoryByID(ctx, id); err != nil {
		return notFound(err, MsgCategoryNotFound)
	}
	return nil
}
