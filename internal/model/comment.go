package model

import "time"

type Comment struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	BlogID    int64     `json:"blog_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CommenterRef is the user shape embedded in comment reads.
type CommenterRef struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// BlogRef is the blog shape embedded in the moderation comment list.
type BlogRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// CommentView is a comment joined with its author and blog; references are
// nil for orphaned comments.
type CommentView struct {
	Comment
	User *CommenterRef `json:"user"`
	Blog *BlogRef      `json:"blog"`
}
