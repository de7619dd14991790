package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
)

const userColumns = `id, name, email, password, role, bio, avatar, created_at`

func scanUser(scan func(dest ...any) error) (*model.User, error) {
	var u model.User
	var role string
	if err := scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Bio, &u.Avatar, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// CreateUser inserts a user and fills ID and CreatedAt.
// A duplicate email surfaces as apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	user.CreatedAt = now()

	res, err := db.exec(ctx, "users.create",
		`INSERT INTO users (name, email, password, role, bio, avatar, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Name, user.Email, user.PasswordHash, string(user.Role), user.Bio, user.Avatar, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: creating user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading user id: %w", err)
	}
	user.ID = id
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var user *model.User
	err := db.queryRow(ctx, "users.get",
		`SELECT `+userColumns+` FROM users WHERE id = ?`, []any{id},
		func(row *sql.Row) (err error) {
			user, err = scanUser(row.Scan)
			return err
		})
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}
	return user, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user *model.User
	err := db.queryRow(ctx, "users.get_by_email",
		`SELECT `+userColumns+` FROM users WHERE email = ?`, []any{email},
		func(row *sql.Row) (err error) {
			user, err = scanUser(row.Scan)
			return err
		})
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return user, nil
}

// ListUsers returns every user, newest first.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := db.query(ctx, "users.list",
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`, nil,
		func() { users = make([]model.User, 0) },
		func(rows *sql.Rows) error {
			u, err := scanUser(rows.Scan)
			if err != nil {
				return err
			}
			users = append(users, *u)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	return users, nil
}

// UpdateUser writes profile fields and the password hash. Role is not
// touched here; see UpdateUserRole.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	res, err := db.exec(ctx, "users.update",
		`UPDATE users SET name = ?, email = ?, bio = ?, password = ?, avatar = ?
		 WHERE id = ?`,
		user.Name, user.Email, user.Bio, user.PasswordHash, user.Avatar, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: updating user %d: %w", user.ID, err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %d: %w", user.ID, err)
	}
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// UpdateUserRole is the administrative path for changing a role.
func (db *DB) UpdateUserRole(ctx context.Context, email string, role model.Role) error {
	res, err := db.exec(ctx, "users.update_role",
		`UPDATE users SET role = ? WHERE email = ?`, string(role), email)
	if err != nil {
		return fmt.Errorf("sqlite: updating role for %s: %w", email, err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("sqlite: updating role for %s: %w", email, err)
	}
	if !ok {
		return apperror.NotFound("user", email)
	}
	return nil
}

// DeleteUser hard-deletes a user. Their blogs and comments stay behind.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	res, err := db.exec(ctx, "users.delete", `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %d: %w", id, err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %d: %w", id, err)
	}
	if !ok {
		return apperror.NotFound("user", id)
	}
	return nil
}
