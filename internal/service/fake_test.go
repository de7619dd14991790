package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/auth"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================
//
// memStore is an in-memory repository.Store. It follows the same contracts
// as the SQL stores: unique email and slugs surface as Conflict, missing
// rows as NotFound, deletes never cascade and views render a missing
// parent as nil.

type memStore struct {
	mu         sync.Mutex
	nextID     int64
	clock      time.Time
	users      map[int64]model.User
	categories map[int64]model.Category
	blogs      map[int64]model.Blog
	comments   map[int64]model.Comment

	// set to simulate a database failure on every call
	failWith error
}

var _ repository.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		clock:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		users:      make(map[int64]model.User),
		categories: make(map[int64]model.Category),
		blogs:      make(map[int64]model.Blog),
		comments:   make(map[int64]model.Comment),
	}
}

// tick returns a strictly increasing timestamp so ordering is deterministic.
func (m *memStore) tick() (int64, time.Time) {
	m.nextID++
	m.clock = m.clock.Add(time.Second)
	return m.nextID, m.clock
}

func (m *memStore) Ping(context.Context) error { return m.failWith }
func (m *memStore) Close() error               { return nil }

// --- users ---

func (m *memStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, other := range m.users {
		if other.Email == u.Email {
			return apperror.Conflict("user", u.Email)
		}
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	u.ID, u.CreatedAt = m.tick()
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *memStore) ListUsers(context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) UpdateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.ID]
	if !ok {
		return apperror.NotFound("user", u.ID)
	}
	for _, other := range m.users {
		if other.ID != u.ID && other.Email == u.Email {
			return apperror.Conflict("user", u.Email)
		}
	}
	u.Role = cur.Role
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) UpdateUserRole(_ context.Context, email string, role model.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.Email == email {
			u.Role = role
			m.users[id] = u
			return nil
		}
	}
	return apperror.NotFound("user", email)
}

func (m *memStore) DeleteUser(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(m.users, id)
	return nil
}

// --- categories ---

func (m *memStore) CreateCategory(_ context.Context, c *model.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.categories {
		if other.Slug == c.Slug {
			return apperror.Conflict("category", c.Slug)
		}
	}
	c.ID, c.CreatedAt = m.tick()
	m.categories[c.ID] = *c
	return nil
}

func (m *memStore) GetCategoryByID(_ context.Context, id int64) (*model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.categories[id]
	if !ok {
		return nil, apperror.NotFound("category", id)
	}
	return &c, nil
}

func (m *memStore) GetCategoryBySlug(_ context.Context, slug string) (*model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, apperror.NotFound("category", slug)
}

func (m *memStore) ListCategories(context.Context) ([]model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) UpdateCategory(_ context.Context, c *model.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[c.ID]; !ok {
		return apperror.NotFound("category", c.ID)
	}
	for _, other := range m.categories {
		if other.ID != c.ID && other.Slug == c.Slug {
			return apperror.Conflict("category", c.Slug)
		}
	}
	m.categories[c.ID] = *c
	return nil
}

func (m *memStore) DeleteCategory(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.categories[id]; !ok {
		return apperror.NotFound("category", id)
	}
	delete(m.categories, id)
	return nil
}

// --- blogs ---

func (m *memStore) CreateBlog(_ context.Context, b *model.Blog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for _, other := range m.blogs {
		if other.Slug == b.Slug {
			return apperror.Conflict("blog", b.Slug)
		}
	}
	b.ID, b.CreatedAt = m.tick()
	b.UpdatedAt = b.CreatedAt
	m.blogs[b.ID] = *b
	return nil
}

func (m *memStore) GetBlogByID(_ context.Context, id int64) (*model.Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blogs[id]
	if !ok {
		return nil, apperror.NotFound("blog", id)
	}
	return &b, nil
}

func (m *memStore) blogView(b model.Blog) model.BlogView {
	v := model.BlogView{Blog: b}
	if u, ok := m.users[b.AuthorID]; ok {
		v.Author = &model.AuthorRef{ID: u.ID, Name: u.Name, Avatar: u.Avatar, Role: u.Role}
	}
	if c, ok := m.categories[b.CategoryID]; ok {
		v.Category = &model.CategoryRef{ID: c.ID, Name: c.Name, Slug: c.Slug}
	}
	return v
}

func (m *memStore) GetBlogViewByID(_ context.Context, id int64) (*model.BlogView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blogs[id]
	if !ok {
		return nil, apperror.NotFound("blog", id)
	}
	v := m.blogView(b)
	return &v, nil
}

func (m *memStore) GetBlogViewBySlug(_ context.Context, slug string) (*model.BlogView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.blogs {
		if b.Slug == slug {
			v := m.blogView(b)
			return &v, nil
		}
	}
	return nil, apperror.NotFound("blog", slug)
}

func (m *memStore) ListBlogViews(_ context.Context, f repository.BlogFilter) ([]model.BlogView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	out := make([]model.BlogView, 0)
	for _, b := range m.blogs {
		if f.AuthorID != 0 && b.AuthorID != f.AuthorID {
			continue
		}
		if f.CategoryID != 0 && b.CategoryID != f.CategoryID {
			continue
		}
		if f.TitleQuery != "" && !strings.Contains(strings.ToLower(b.Title), strings.ToLower(f.TitleQuery)) {
			continue
		}
		out = append(out, m.blogView(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) ListRelatedBlogs(_ context.Context, categoryID int64, excludeSlug string, limit int) ([]model.Blog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Blog, 0)
	for _, b := range m.blogs {
		if b.CategoryID == categoryID && b.Slug != excludeSlug {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) UpdateBlog(_ context.Context, b *model.Blog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blogs[b.ID]; !ok {
		return apperror.NotFound("blog", b.ID)
	}
	for _, other := range m.blogs {
		if other.ID != b.ID && other.Slug == b.Slug {
			return apperror.Conflict("blog", b.Slug)
		}
	}
	_, b.UpdatedAt = m.tick()
	m.blogs[b.ID] = *b
	return nil
}

func (m *memStore) DeleteBlog(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blogs[id]; !ok {
		return apperror.NotFound("blog", id)
	}
	delete(m.blogs, id)
	return nil
}

// --- comments ---

func (m *memStore) CreateComment(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID, c.CreatedAt = m.tick()
	m.comments[c.ID] = *c
	return nil
}

func (m *memStore) GetCommentByID(_ context.Context, id int64) (*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return nil, apperror.NotFound("comment", id)
	}
	return &c, nil
}

func (m *memStore) commentViews(keep func(model.Comment) bool) []model.CommentView {
	out := make([]model.CommentView, 0)
	for _, c := range m.comments {
		if !keep(c) {
			continue
		}
		v := model.CommentView{Comment: c}
		if u, ok := m.users[c.UserID]; ok {
			v.User = &model.CommenterRef{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
		}
		if b, ok := m.blogs[c.BlogID]; ok {
			v.Blog = &model.BlogRef{ID: b.ID, Title: b.Title, Slug: b.Slug}
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *memStore) ListCommentsByBlog(_ context.Context, blogID int64) ([]model.CommentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commentViews(func(c model.Comment) bool { return c.BlogID == blogID }), nil
}

func (m *memStore) ListCommentViews(_ context.Context, f repository.CommentFilter) ([]model.CommentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commentViews(func(c model.Comment) bool { return f.UserID == 0 || c.UserID == f.UserID }), nil
}

func (m *memStore) CountCommentsByBlog(_ context.Context, blogID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.comments {
		if c.BlogID == blogID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeleteComment(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return apperror.NotFound("comment", id)
	}
	delete(m.comments, id)
	return nil
}

// =========================================================================
// FAKE BLOB STORE
// =========================================================================

type fakeBlobs struct {
	puts []string
	err  error
}

func (f *fakeBlobs) Put(_ context.Context, filename, _ string, r io.Reader, _ int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	f.puts = append(f.puts, filename)
	return "https://cdn.test/" + filename, nil
}

func pngUpload(name string) *Upload {
	return &Upload{Filename: name, ContentType: "image/png", Size: 4, Body: strings.NewReader("\x89PNG")}
}

// =========================================================================
// HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedUser inserts a user directly into the store and returns its identity.
func seedUser(t *testing.T, store *memStore, email string, role model.Role) auth.Identity {
	t.Helper()
	u := &model.User{Name: strings.Split(email, "@")[0], Email: email, Role: role, PasswordHash: "x"}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seeding user %s: %v", email, err)
	}
	return auth.Identity{ID: u.ID, Email: u.Email, Role: u.Role}
}

func seedCategory(t *testing.T, store *memStore, name, slug string) *model.Category {
	t.Helper()
	c := &model.Category{Name: name, Slug: slug}
	if err := store.CreateCategory(context.Background(), c); err != nil {
		t.Fatalf("seeding category %s: %v", slug, err)
	}
	return c
}
