package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/auth"
	"github.com/sakif/blog-platform/internal/blobstore"
	"github.com/sakif/blog-platform/internal/model"
	"github.com/sakif/blog-platform/internal/repository"
)

// UserService manages profiles. Role changes are not possible here; they go
// through UserRepository.UpdateUserRole from cmd/blogctl.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	blobs     blobstore.Store
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	blobs blobstore.Store,
	logger *slog.Logger,
) *UserService {
	return &UserService{users: users, passwords: passwords, blobs: blobs, logger: logger}
}

// UpdateUserInput is the JSON "data" part of PUT /api/user/update-user.
type UpdateUserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Bio      string `json:"bio"`
	Password string `json:"password"`

	Avatar *Upload `json:"-"`
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, notFound(err, MsgUserNotFound)
	}
	return user, nil
}

// Update changes a profile. The caller must be that user or an admin. A
// password shorter than the minimum is ignored and the old hash kept.
func (s *UserService) Update(ctx context.Context, caller auth.Identity, id int64, in UpdateUserInput) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, notFound(err, MsgUserNotFound)
	}
	if err := checkOwner(caller, user.ID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if err := required("name", "Name", name); err != nil {
		return nil, err
	}
	if err := required("email", "Email", email); err != nil {
		return nil, err
	}

	user.Name = name
	user.Email = email
	user.Bio = strings.TrimSpace(in.Bio)

	if len(in.Password) >= auth.MinPasswordLength {
		hash, err := s.passwords.Hash(in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	uploaded := ""
	if in.Avatar != nil {
		uploaded, err = store(ctx, s.blobs, in.Avatar)
		if err != nil {
			return nil, err
		}
		user.Avatar = uploaded
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		if uploaded != "" {
			logOrphan(s.logger, uploaded, err)
		}
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ConflictMsg("Email is already in use.")
		}
		return nil, notFound(err, MsgUserNotFound)
	}

	s.logger.Info("user updated",
		slog.Int64("userID", user.ID),
		slog.Int64("by", caller.ID),
	)
	return user, nil
}

// List returns every user, newest first.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/user: listing: %w", err)
	}
	return users, nil
}

// Delete removes the user only. Their blogs and comments remain and render
// with a null author.
func (s *UserService) Delete(ctx context.Context, caller auth.Identity, id int64) error {
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return notFound(err, MsgUserNotFound)
	}
	s.logger.Info("user deleted", slog.Int64("userID", id), slog.Int64("by", caller.ID))
	return nil
}
