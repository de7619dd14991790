package model

import "time"

// Blog is a post as stored. Content holds decoded HTML: the repositories
// encode it on write and decode it on read, so callers never see entities.
type Blog struct {
	ID            int64     `json:"id"`
	AuthorID      int64     `json:"author_id"`
	CategoryID    int64     `json:"category_id"`
	Title         string    `json:"title"`
	Slug          string    `json:"slug"`
	Content       string    `json:"blog_content"`
	FeaturedImage string    `json:"featured_image"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AuthorRef is the author shape embedded in blog reads.
type AuthorRef struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Role   Role   `json:"role"`
}

// BlogView is a blog joined with its author and category. Either reference
// is nil when the parent row has been deleted.
type BlogView struct {
	Blog
	Author   *AuthorRef   `json:"author"`
	Category *CategoryRef `json:"category"`
}
