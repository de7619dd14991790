package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
)

// CookieName is the session cookie the frontend already expects.
const CookieName = "access_token"

// Messages returned by the Gate. The frontend matches on them.
const (
	MsgNoToken       = "Unauthorized: No token provided"
	MsgInvalidToken  = "Forbidden: Invalid or expired token"
	MsgAdminRequired = "Forbidden: Admin privileges required"
)

// Identity is the authenticated caller, as decoded from the session token.
type Identity struct {
	ID    int64
	Email string
	Role  model.Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == model.RoleAdmin
}

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. A plain string key could be
// read or shadowed by any package that knows the string. Only this package
// can create a contextKey, so only this package can read or write the
// identity stored under it.
type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom retrieves the caller identity from ctx.
//
// Returns (Identity{}, false) for anonymous requests. Handlers behind
// Authenticate or RequireAdmin can rely on ok being true.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.ID != 0
}

// ErrorWriter renders an error response. The handler package supplies one
// so the Gate answers in the same JSON envelope as every controller.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Gate is the authorization middleware set.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new http.Handler that
// wraps it:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... before ...
//	        next.ServeHTTP(w, r)
//	        // ... after ...
//	    })
//	}
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
type Gate struct {
	tokens  *TokenService
	onError ErrorWriter
}

func NewGate(tokens *TokenService, onError ErrorWriter) *Gate {
	return &Gate{tokens: tokens, onError: onError}
}

// Authenticate requires a valid session cookie.
//
//   - no cookie       → 401 "Unauthorized: No token provided"
//   - invalid token   → 403 "Forbidden: Invalid or expired token"
//   - valid token     → Identity stored in the request context
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.identify(r)
		if err != nil {
			g.onError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireAdmin is Authenticate plus a role check.
func (g *Gate) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.identify(r)
		if err != nil {
			g.onError(w, r, err)
			return
		}
		if !id.IsAdmin() {
			g.onError(w, r, apperror.Forbidden(MsgAdminRequired))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Optional attaches the identity when a valid cookie is present and never
// rejects the request. Public routes use it to shape their response.
func (g *Gate) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := g.identify(r); err == nil {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// identify reads and verifies the session cookie.
//
// COOKIE FLOW:
//  1. Set-Cookie: access_token=<jwt>; HttpOnly; ... (set on login)
//  2. The browser sends Cookie: access_token=<jwt> on later requests
//  3. We read r.Cookie(CookieName) and verify it
func (g *Gate) identify(r *http.Request) (Identity, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return Identity{}, apperror.Unauthorized(MsgNoToken)
	}

	claims, err := g.tokens.Verify(cookie.Value)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return Identity{}, apperror.Forbidden(MsgInvalidToken)
		}
		return Identity{}, err
	}
	return claims.Identity(), nil
}

// CookieOptions holds the attributes that differ between environments.
type CookieOptions struct {
	// Secure switches the cookie to Secure + SameSite=None so a frontend on
	// another origin can send it. Development uses SameSite=Lax over HTTP.
	Secure bool
	TTL    time.Duration
}

func (o CookieOptions) base() *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if o.Secure {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}

// SetSessionCookie writes the session cookie. With a zero TTL it is a
// browser-session cookie.
func SetSessionCookie(w http.ResponseWriter, token string, opts CookieOptions) {
	c := opts.base()
	c.Value = token
	if opts.TTL > 0 {
		c.MaxAge = int(opts.TTL.Seconds())
	}
	http.SetCookie(w, c)
}

// ClearSessionCookie expires the session cookie using the same attributes
// it was set with; browsers ignore a clear whose attributes differ.
func ClearSessionCookie(w http.ResponseWriter, opts CookieOptions) {
	c := opts.base()
	c.MaxAge = -1
	http.SetCookie(w, c)
}
