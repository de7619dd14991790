package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/blog-platform/internal/auth"
	"github.com/sakif/blog-platform/internal/config"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
	"github.com/sakif/blog-platform/internal/repository/sqlite"
	"github.com/sakif/blog-platform/internal/server"
)

const frontend = "http://localhost:5173"

type testApp struct {
	srv   *httptest.Server
	store repository.Store
}

// newTestApp serves the full router over an in-memory SQLite store and a
// filesystem blob store in a temp directory.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(":memory:", repository.NoRetry())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// Upload URLs embed the server's address, which exists only once the
	// listener does; the router is built afterwards.
	var router http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{Env: config.EnvDevelopment, ExposeInternalErrors: true},
		Auth:   config.AuthConfig{JWTSecret: "server-test-secret-0123456789", BcryptCost: 4},
		CORS:   config.CORSConfig{FrontendURL: frontend},
		Storage: config.StorageConfig{
			Backend:        "filesystem",
			UploadDir:      t.TempDir(),
			PublicBaseURL:  srv.URL,
			MaxUploadBytes: 1 << 20,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	blobs, err := server.OpenBlobStore(ctx, cfg.Storage)
	require.NoError(t, err)

	router, err = server.NewRouter(server.Deps{
		Config:    cfg,
		Store:     store,
		Blobs:     blobs,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Passwords: auth.NewPasswordServiceForTest(),
	})
	require.NoError(t, err)

	return &testApp{srv: srv, store: store}
}

// client is one browser: it keeps its own cookie jar.
type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func (a *testApp) client(t *testing.T) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{
		t:    t,
		base: a.srv.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type response struct {
	status int
	header http.Header
	body   map[string]any
	raw    []byte
}

func (c *client) send(req *http.Request) response {
	c.t.Helper()
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	out := response{status: resp.StatusCode, header: resp.Header, raw: raw}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(c.t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

func (c *client) do(method, path string, body any) response {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, r)
	require.NoError(c.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

// form sends the "data" JSON part plus an optional PNG "file" part.
func (c *client) form(method, path string, data any, image []byte) response {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	b, err := json.Marshal(data)
	require.NoError(c.t, err)
	require.NoError(c.t, mw.WriteField("data", string(b)))
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="cover.png"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(c.t, err)
		_, err = part.Write(image)
		require.NoError(c.t, err)
	}
	require.NoError(c.t, mw.Close())

	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.send(req)
}

func (c *client) signUp(name, email string) {
	c.t.Helper()
	creds := map[string]string{"name": name, "email": email, "password": "correct horse"}
	res := c.do(http.MethodPost, "/api/auth/register", creds)
	require.Equal(c.t, http.StatusOK, res.status, string(res.raw))
	c.logIn(email)
}

func (c *client) logIn(email string) {
	c.t.Helper()
	res := c.do(http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": "correct horse"})
	require.Equal(c.t, http.StatusOK, res.status, string(res.raw))
}

func (c *client) userID() int64 {
	c.t.Helper()
	res := c.do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(c.t, http.StatusOK, res.status, string(res.raw))
	return int64(res.body["user"].(map[string]any)["id"].(float64))
}

// admin signs up a user, promotes it directly in the store and logs in
// again so the session token carries the new role.
func (a *testApp) admin(t *testing.T) *client {
	t.Helper()
	c := a.client(t)
	c.signUp("Root", "root@example.com")
	require.NoError(t, a.store.UpdateUserRole(context.Background(), "root@example.com", model.RoleAdmin))
	c.logIn("root@example.com")
	return c
}

func (c *client) addCategory(name, slug string) int64 {
	c.t.Helper()
	res := c.do(http.MethodPost, "/api/category/add", map[string]string{"name": name, "slug": slug})
	require.Equal(c.t, http.StatusCreated, res.status, string(res.raw))
	return int64(res.body["category"].(map[string]any)["id"].(float64))
}

var png = []byte("\x89PNG\r\n\x1a\n0000")

// addBlog returns the new blog's id and slug.
func (c *client) addBlog(categoryID int64, title string) (int64, string) {
	c.t.Helper()
	res := c.form(http.MethodPost, "/api/blog/add", map[string]any{
		"category":    categoryID,
		"title":       title,
		"blogContent": "<p>" + title + "</p>",
	}, png)
	require.Equal(c.t, http.StatusOK, res.status, string(res.raw))
	blog := res.body["blog"].(map[string]any)
	return int64(blog["id"].(float64)), blog["slug"].(string)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func list(res response, key string) []any {
	v, _ := res.body[key].([]any)
	return v
}

// =========================================================================
// AUTH
// =========================================================================

func TestAuthFlow(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	res := c.do(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, auth.MsgNoToken, res.body["message"])

	c.signUp("Ada", "Ada@Example.com")

	res = c.do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, res.status)
	user := res.body["user"].(map[string]any)
	assert.Equal(t, "ada@example.com", user["email"], "emails are stored lowercased")
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, string(res.raw), "$2a$", "no bcrypt hash in responses")

	res = c.do(http.MethodGet, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, res.status)

	res = c.do(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status, "logout removes the cookie")
}

func TestAuth_TamperedCookie(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)
	u, err := url.Parse(app.srv.URL)
	require.NoError(t, err)
	c.http.Jar.SetCookies(u, []*http.Cookie{{Name: auth.CookieName, Value: "not.a.token", Path: "/"}})

	res := c.do(http.MethodGet, "/api/blog/get-all", nil)

	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, auth.MsgInvalidToken, res.body["message"])
	assert.Equal(t, false, res.body["success"])
}

func TestGoogleRoutes_AbsentWhenNotConfigured(t *testing.T) {
	app := newTestApp(t)
	res := app.client(t).do(http.MethodGet, "/api/auth/google/login", nil)
	assert.Equal(t, http.StatusNotFound, res.status)
}

// =========================================================================
// ADMIN-ONLY ROUTES
// =========================================================================

func TestAdminOnlyRoutes(t *testing.T) {
	app := newTestApp(t)
	admin := app.admin(t)
	member := app.client(t)
	member.signUp("Ada", "ada@example.com")
	anon := app.client(t)

	routes := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/category/add", map[string]string{"name": "Go", "slug": "go"}},
		{http.MethodGet, "/api/category/show/1", nil},
		{http.MethodPut, "/api/category/update/1", map[string]string{"name": "Go", "slug": "go"}},
		{http.MethodDelete, "/api/category/delete/1", nil},
		{http.MethodGet, "/api/user/get-all-user", nil},
		{http.MethodDelete, "/api/user/delete/1", nil},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			res := anon.do(rt.method, rt.path, rt.body)
			assert.Equal(t, http.StatusUnauthorized, res.status)

			res = member.do(rt.method, rt.path, rt.body)
			assert.Equal(t, http.StatusForbidden, res.status)
			assert.Equal(t, auth.MsgAdminRequired, res.body["message"])
		})
	}

	res := admin.do(http.MethodPost, "/api/category/add", map[string]string{"name": "Go", "slug": "Go Lang"})
	require.Equal(t, http.StatusCreated, res.status, string(res.raw))
	assert.Equal(t, "go-lang", res.body["category"].(map[string]any)["slug"])

	res = admin.do(http.MethodPost, "/api/category/add", map[string]string{"name": "Go again", "slug": "go-lang"})
	assert.Equal(t, http.StatusConflict, res.status)

	res = admin.do(http.MethodGet, "/api/user/get-all-user", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Len(t, list(res, "user"), 2)
}

// =========================================================================
// BLOGS
// =========================================================================

func TestBlogLifecycle(t *testing.T) {
	app := newTestApp(t)
	admin := app.admin(t)
	catID := admin.addCategory("Go", "go")

	author := app.client(t)
	author.signUp("Ada", "ada@example.com")
	other := app.client(t)
	other.signUp("Bob", "bob@example.com")
	anon := app.client(t)

	id, slug := author.addBlog(catID, "Hello World")
	assert.True(t, strings.HasPrefix(slug, "hello-world-"), slug)

	t.Run("public read joins author and category", func(t *testing.T) {
		res := anon.do(http.MethodGet, "/api/blog/get-blog/"+slug, nil)
		require.Equal(t, http.StatusOK, res.status)
		blog := res.body["blog"].(map[string]any)
		assert.Equal(t, "<p>Hello World</p>", blog["blog_content"])
		assert.Equal(t, "Ada", blog["author"].(map[string]any)["name"])
		assert.Equal(t, "go", blog["category"].(map[string]any)["slug"])

		img := blog["featured_image"].(string)
		require.True(t, strings.HasPrefix(img, app.srv.URL+"/uploads/"), img)
		imgRes := anon.do(http.MethodGet, strings.TrimPrefix(img, app.srv.URL), nil)
		assert.Equal(t, http.StatusOK, imgRes.status)
		assert.Equal(t, png, imgRes.raw)
		assert.Equal(t, "nosniff", imgRes.header.Get("X-Content-Type-Options"))
		assert.Equal(t, "sandbox", imgRes.header.Get("Content-Security-Policy"))
	})

	t.Run("unknown slug", func(t *testing.T) {
		res := anon.do(http.MethodGet, "/api/blog/get-blog/nope", nil)
		assert.Equal(t, http.StatusNotFound, res.status)
	})

	t.Run("missing image", func(t *testing.T) {
		res := author.form(http.MethodPost, "/api/blog/add", map[string]any{
			"category": catID, "title": "No image", "blogContent": "x",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, res.status)
		assert.Equal(t, "Image file is missing", res.body["message"])
	})

	t.Run("category sent as a string", func(t *testing.T) {
		res := author.form(http.MethodPost, "/api/blog/add", map[string]any{
			"category": itoa(catID), "title": "Stringly", "blogContent": "x",
		}, png)
		assert.Equal(t, http.StatusOK, res.status, string(res.raw))
	})

	t.Run("others cannot modify", func(t *testing.T) {
		update := map[string]any{"category": catID, "title": "Hijacked", "blogContent": "x"}

		res := other.form(http.MethodPut, "/api/blog/update/"+itoa(id), update, nil)
		assert.Equal(t, http.StatusForbidden, res.status)

		res = other.do(http.MethodGet, "/api/blog/edit/"+itoa(id), nil)
		assert.Equal(t, http.StatusForbidden, res.status)

		res = other.do(http.MethodDelete, "/api/blog/delete/"+itoa(id), nil)
		assert.Equal(t, http.StatusForbidden, res.status)

		res = anon.do(http.MethodDelete, "/api/blog/delete/"+itoa(id), nil)
		assert.Equal(t, http.StatusUnauthorized, res.status)
	})

	t.Run("missing blog is 404 before 403", func(t *testing.T) {
		res := other.form(http.MethodPut, "/api/blog/update/9999", map[string]any{"title": "x"}, nil)
		assert.Equal(t, http.StatusNotFound, res.status)
	})

	t.Run("owner updates", func(t *testing.T) {
		res := author.form(http.MethodPut, "/api/blog/update/"+itoa(id), map[string]any{
			"category": catID, "title": "Hello Again", "slug": slug, "blogContent": "<p>new</p>",
		}, nil)
		require.Equal(t, http.StatusOK, res.status, string(res.raw))

		res = anon.do(http.MethodGet, "/api/blog/get-blog/"+slug, nil)
		require.Equal(t, http.StatusOK, res.status)
		assert.Equal(t, "Hello Again", res.body["blog"].(map[string]any)["title"])
	})

	t.Run("search and category listing", func(t *testing.T) {
		res := anon.do(http.MethodGet, "/api/blog/search?q=HELLO", nil)
		require.Equal(t, http.StatusOK, res.status)
		assert.Len(t, list(res, "blog"), 1)

		res = anon.do(http.MethodGet, "/api/blog/get-blog-by-category/go", nil)
		require.Equal(t, http.StatusOK, res.status)
		assert.Len(t, list(res, "blog"), 2)
		assert.Equal(t, "Go", res.body["categoryData"].(map[string]any)["name"])

		res = anon.do(http.MethodGet, "/api/blog/get-blog-by-category/nope", nil)
		assert.Equal(t, http.StatusNotFound, res.status)

		res = anon.do(http.MethodGet, "/api/blog/get-related-blog/go/"+slug, nil)
		require.Equal(t, http.StatusOK, res.status)
		related := list(res, "relatedBlog")
		require.Len(t, related, 1)
		assert.NotEqual(t, slug, related[0].(map[string]any)["slug"])
	})

	t.Run("admin deletes any blog", func(t *testing.T) {
		res := admin.do(http.MethodDelete, "/api/blog/delete/"+itoa(id), nil)
		assert.Equal(t, http.StatusOK, res.status)

		res = anon.do(http.MethodGet, "/api/blog/get-blog/"+slug, nil)
		assert.Equal(t, http.StatusNotFound, res.status)
	})
}

func TestDeletedCategoryRendersNull(t *testing.T) {
	app := newTestApp(t)
	admin := app.admin(t)
	catID := admin.addCategory("Go", "go")
	_, slug := admin.addBlog(catID, "Orphan")

	res := admin.do(http.MethodDelete, "/api/category/delete/"+itoa(catID), nil)
	require.Equal(t, http.StatusOK, res.status)

	res = app.client(t).do(http.MethodGet, "/api/blog/get-blog/"+slug, nil)
	require.Equal(t, http.StatusOK, res.status)
	blog := res.body["blog"].(map[string]any)
	assert.Nil(t, blog["category"])
	assert.NotNil(t, blog["author"])
}

// =========================================================================
// DASHBOARD SCOPING
// =========================================================================

func TestDashboardListsAreScoped(t *testing.T) {
	app := newTestApp(t)
	admin := app.admin(t)
	catID := admin.addCategory("Go", "go")

	ada := app.client(t)
	ada.signUp("Ada", "ada@example.com")
	bob := app.client(t)
	bob.signUp("Bob", "bob@example.com")

	adaBlog, _ := ada.addBlog(catID, "Ada one")
	ada.addBlog(catID, "Ada two")
	bobBlog, _ := bob.addBlog(catID, "Bob one")

	for _, c := range []struct {
		who  *client
		blog int64
	}{{ada, bobBlog}, {bob, adaBlog}, {bob, bobBlog}} {
		res := c.who.do(http.MethodPost, "/api/comment/add", map[string]any{"blogid": itoa(c.blog), "content": "nice"})
		require.Equal(t, http.StatusOK, res.status, string(res.raw))
	}

	tests := []struct {
		name     string
		who      *client
		blogs    int
		comments int
	}{
		{"ada", ada, 2, 1},
		{"bob", bob, 1, 2},
		{"admin", admin, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.who.do(http.MethodGet, "/api/blog/get-all", nil)
			require.Equal(t, http.StatusOK, res.status)
			assert.Len(t, list(res, "blog"), tt.blogs)

			res = tt.who.do(http.MethodGet, "/api/comment/get-all-comment", nil)
			require.Equal(t, http.StatusOK, res.status)
			assert.Len(t, list(res, "comments"), tt.comments)
		})
	}
}

// =========================================================================
// COMMENTS
// =========================================================================

func TestComments(t *testing.T) {
	app := newTestApp(t)
	admin := app.admin(t)
	catID := admin.addCategory("Go", "go")
	ada := app.client(t)
	ada.signUp("Ada", "ada@example.com")
	bob := app.client(t)
	bob.signUp("Bob", "bob@example.com")
	blogID, _ := ada.addBlog(catID, "Post")

	res := bob.do(http.MethodPost, "/api/comment/add", map[string]any{"blogid": blogID, "content": "   "})
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "Comment cannot be empty", res.body["message"])

	res = bob.do(http.MethodPost, "/api/comment/add", map[string]any{"blogid": 9999, "content": "hi"})
	assert.Equal(t, http.StatusNotFound, res.status)

	res = bob.do(http.MethodPost, "/api/comment/add", map[string]any{"blogid": blogID, "content": "hi"})
	require.Equal(t, http.StatusOK, res.status)
	commentID := int64(res.body["comment"].(map[string]any)["id"].(float64))

	res = app.client(t).do(http.MethodGet, "/api/comment/get-count/"+itoa(blogID), nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.EqualValues(t, 1, res.body["commentCount"])

	res = app.client(t).do(http.MethodGet, "/api/comment/get/"+itoa(blogID), nil)
	require.Equal(t, http.StatusOK, res.status)
	comments := list(res, "comments")
	require.Len(t, comments, 1)
	assert.Equal(t, "Bob", comments[0].(map[string]any)["user"].(map[string]any)["name"])

	// The blog's author does not own the comment.
	res = ada.do(http.MethodDelete, "/api/comment/delete/"+itoa(commentID), nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = admin.do(http.MethodDelete, "/api/comment/delete/"+itoa(commentID), nil)
	assert.Equal(t, http.StatusOK, res.status)

	res = admin.do(http.MethodDelete, "/api/comment/delete/"+itoa(commentID), nil)
	assert.Equal(t, http.StatusNotFound, res.status)
}

// =========================================================================
// USERS
// =========================================================================

func TestUserUpdate(t *testing.T) {
	app := newTestApp(t)
	ada := app.client(t)
	ada.signUp("Ada", "ada@example.com")
	bob := app.client(t)
	bob.signUp("Bob", "bob@example.com")
	adaID := ada.userID()

	res := bob.form(http.MethodPut, "/api/user/update-user/"+itoa(adaID), map[string]string{
		"name": "Mallory", "email": "ada@example.com",
	}, nil)
	assert.Equal(t, http.StatusForbidden, res.status)

	res = ada.form(http.MethodPut, "/api/user/update-user/"+itoa(adaID), map[string]string{
		"name": "Ada L", "email": "bob@example.com",
	}, nil)
	assert.Equal(t, http.StatusConflict, res.status)

	res = ada.form(http.MethodPut, "/api/user/update-user/"+itoa(adaID), map[string]string{
		"name": "Ada L", "email": "ada@example.com", "bio": "math", "password": "new password",
	}, png)
	require.Equal(t, http.StatusOK, res.status, string(res.raw))
	user := res.body["user"].(map[string]any)
	assert.Equal(t, "Ada L", user["name"])
	assert.True(t, strings.HasPrefix(user["avatar"].(string), app.srv.URL+"/uploads/"))

	res = ada.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "new password"})
	assert.Equal(t, http.StatusOK, res.status)

	res = bob.do(http.MethodGet, "/api/user/get-user/"+itoa(adaID), nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "User data found.", res.body["message"])
}

// =========================================================================
// OPERATIONAL
// =========================================================================

func TestOperationalRoutes(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	res := c.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, res.status)
	assert.Equal(t, "ok", res.body["status"])

	c.do(http.MethodGet, "/api/blog/blogs", nil)
	res = c.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, res.status)
	assert.Contains(t, string(res.raw), `route="/api/blog/blogs"`)

	res = c.do(http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, res.status)
	assert.Equal(t, false, res.body["success"])

	res = c.do(http.MethodPatch, "/api/blog/blogs", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, res.status)
}

func TestCORSPreflight(t *testing.T) {
	app := newTestApp(t)
	c := app.client(t)

	req, err := http.NewRequest(http.MethodOptions, app.srv.URL+"/api/auth/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", frontend)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := c.http.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, frontend, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))

	req, err = http.NewRequest(http.MethodOptions, app.srv.URL+"/api/auth/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err = c.http.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
