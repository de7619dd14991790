package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/auth"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

// Messages the frontend matches on.
const (
	MsgAlreadyRegistered  = "User already registered."
	MsgInvalidCredentials = "Invalid login credentials."
	MsgUserNotFound       = "User not found."
)

// AuthService handles registration, login and session issuance.
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// It never sets cookies or reads requests; that is the handler's job.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record and the issued token so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// RegisterInput is the body of POST /api/auth/register.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a regular user. A taken email is a Conflict, never a
// second row.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)

	if err := required("name", "Name", name); err != nil {
		return nil, err
	}
	if err := required("email", "Email", email); err != nil {
		return nil, err
	}
	if err := required("password", "Password", in.Password); err != nil {
		return nil, err
	}
	if len(in.Password) < auth.MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be at least %d characters.", auth.MinPasswordLength))
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, apperror.ConflictMsg(MsgAlreadyRegistered)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		Role:         model.RoleUser,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// Two concurrent registrations can both pass the lookup above; the
		// UNIQUE index decides.
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ConflictMsg(MsgAlreadyRegistered)
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.Int64("userID", user.ID))
	return user, nil
}

// Login checks credentials and issues a session token. Unknown email and
// wrong password produce the same error so account existence is not leaked.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.NotFoundMsg(MsgInvalidCredentials)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMsg(MsgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if !s.passwords.Verify(user.PasswordHash, password) {
		if !auth.IsHash(user.PasswordHash) {
			s.logger.Warn("stored password is not a bcrypt hash", slog.Int64("userID", user.ID))
		}
		return nil, apperror.NotFoundMsg(MsgInvalidCredentials)
	}

	return s.issue(user)
}

// LoginOrRegisterGoogle handles the Google OAuth callback. The user is
// matched by email; a first sign-in creates the account with a random
// password nobody knows, so only Google can log it in until the user sets
// one through the profile update.
func (s *AuthService) LoginOrRegisterGoogle(ctx context.Context, gu *auth.GoogleUser) (*AuthResult, error) {
	if gu == nil {
		return nil, fmt.Errorf("service/auth: Google user must not be nil")
	}
	email := normalizeEmail(gu.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "Google account has no email address.")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.createGoogleUser(ctx, email, gu)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	s.logger.Info("user authenticated via Google", slog.Int64("userID", user.ID))
	return s.issue(user)
}

func (s *AuthService) createGoogleUser(ctx context.Context, email string, gu *auth.GoogleUser) (*model.User, error) {
	hash, err := s.passwords.Hash(rand.Text())
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing placeholder password: %w", err)
	}

	name := strings.TrimSpace(gu.Name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		Role:         model.RoleUser,
		Avatar:       gu.Picture,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// Lost a race with a concurrent first sign-in.
			return s.users.GetUserByEmail(ctx, email)
		}
		return nil, fmt.Errorf("service/auth: creating Google user: %w", err)
	}

	s.logger.Info("user registered via Google", slog.Int64("userID", user.ID))
	return user, nil
}

// Me returns the full record for the authenticated caller.
func (s *AuthService) Me(ctx context.Context, caller auth.Identity) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, caller.ID)
	if err != nil {
		return nil, notFound(err, MsgUserNotFound)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %d: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
