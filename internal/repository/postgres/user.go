package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
)

const userColumns = `id, name, email, password, role, bio, avatar, created_at`

func scanUser(row pgx.CollectableRow) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Bio, &u.Avatar, &u.CreatedAt)
	return u, err
}

func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if user.Role == "" {
		user.Role = model.RoleUser
	}

	err := db.queryRow(ctx, "users.create",
		`INSERT INTO users (name, email, password, role, bio, avatar)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		[]any{user.Name, user.Email, user.PasswordHash, user.Role, user.Bio, user.Avatar},
		&user.ID, &user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("postgres: creating user: %w", err)
	}
	return nil
}

func (db *DB) getUser(ctx context.Context, op, where string, key any) (*model.User, error) {
	users, err := collect(ctx, db, op, `SELECT `+userColumns+` FROM users WHERE `+where, []any{key}, scanUser)
	if err != nil {
		return nil, fmt.Errorf("postgres: getting user %v: %w", key, err)
	}
	if len(users) == 0 {
		return nil, apperror.NotFound("user", key)
	}
	return &users[0], nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return db.getUser(ctx, "users.get", "id = $1", id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, "users.get_by_email", "email = $1", email)
}

func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := collect(ctx, db, "users.list",
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`, nil, scanUser)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing users: %w", err)
	}
	return users, nil
}

func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	tag, err := db.exec(ctx, "users.update",
		`UPDATE users SET name = $1, email = $2, bio = $3, password = $4, avatar = $5 WHERE id = $6`,
		user.Name, user.Email, user.Bio, user.PasswordHash, user.Avatar, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("postgres: updating user %d: %w", user.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

func (db *DB) UpdateUserRole(ctx context.Context, email string, role model.Role) error {
	tag, err := db.exec(ctx, "users.update_role",
		`UPDATE users SET role = $1 WHERE email = $2`, role, email)
	if err != nil {
		return fmt.Errorf("postgres: updating role for %s: %w", email, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", email)
	}
	return nil
}

func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	tag, err := db.exec(ctx, "users.delete", `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: deleting user %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}
