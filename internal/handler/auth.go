package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/rs/xid"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/auth"
	"github.com/sakif/blog-platform/internal/service"
)

const oauthStateCookie = "oauth_state"

// GoogleAuth is the part of auth.GoogleProvider the handler needs.
type GoogleAuth interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

// AuthHandler serves /api/auth: password registration and login, logout,
// the current user and the Google sign-in round trip.
type AuthHandler struct {
	svc         *service.AuthService
	google      GoogleAuth // nil when Google sign-in is not configured
	cookies     auth.CookieOptions
	frontendURL string
	rs          *Responder
	logger      *slog.Logger
}

func NewAuthHandler(
	svc *service.AuthService,
	google GoogleAuth,
	cookies auth.CookieOptions,
	frontendURL string,
	rs *Responder,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		svc:         svc,
		google:      google,
		cookies:     cookies,
		frontendURL: frontendURL,
		rs:          rs,
		logger:      logger,
	}
}

// GoogleEnabled reports whether the Google routes should be mounted.
func (h *AuthHandler) GoogleEnabled() bool {
	return h.google != nil
}

// HandleRegister creates an account.
//
// HTTP: POST /api/auth/register {name, email, password}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	if _, err := h.svc.Register(r.Context(), in); err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"message": "Registration successful."}))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin checks credentials and sets the session cookie.
//
// HTTP: POST /api/auth/login {email, password}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(w, r, &in); err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	res, err := h.svc.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.cookies)
	writeJSON(w, http.StatusOK, ok(envelope{"user": res.User, "message": "Login successful."}))
}

// HandleLogout clears the session cookie.
//
// HTTP: GET /api/auth/logout
//
// Tokens are stateless, so logout only removes the browser's copy.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.cookies)
	writeJSON(w, http.StatusOK, ok(envelope{"message": "Logout successful."}))
}

// HandleMe returns the authenticated user's record.
//
// HTTP: GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, err := caller(r)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	user, err := h.svc.Me(r.Context(), id)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ok(envelope{"user": user}))
}

// HandleGoogleLogin redirects the browser to Google's consent page.
//
// HTTP: GET /api/auth/google/login
//
// CSRF PROTECTION VIA STATE:
// A random state is stored in a short-lived HttpOnly cookie and sent to
// Google; the callback only proceeds when both match.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the Google sign-in.
//
// HTTP: GET /api/auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for the verified Google profile
//  3. Find or create the user by email and issue the session cookie
//  4. Redirect to the frontend
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("google callback: state mismatch")
		h.rs.WriteError(w, r, apperror.ValidationFailed("state", "Invalid OAuth state."))
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, h.frontendRedirect("denied"), http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.rs.WriteError(w, r, apperror.ValidationFailed("code", "Missing OAuth code."))
		return
	}

	gu, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.frontendRedirect("failed"), http.StatusSeeOther)
		return
	}

	res, err := h.svc.LoginOrRegisterGoogle(r.Context(), gu)
	if err != nil {
		h.rs.WriteError(w, r, err)
		return
	}

	auth.SetSessionCookie(w, res.Token, h.cookies)
	http.Redirect(w, r, h.frontendURL, http.StatusSeeOther)
}

func (h *AuthHandler) frontendRedirect(outcome string) string {
	u, err := url.Parse(h.frontendURL)
	if err != nil {
		return h.frontendURL
	}
	q := u.Query()
	q.Set("auth", outcome)
	u.RawQuery = q.Encode()
	return u.String()
}
