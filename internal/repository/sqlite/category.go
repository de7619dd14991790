package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
)

const categoryColumns = `id, name, slug, created_at`

func scanCategory(scan func(dest ...any) error) (*model.Category, error) {
	var c model.Category
	if err := scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCategory inserts a category. A taken slug is apperror.ErrConflict.
func (db *DB) CreateCategory(ctx context.Context, category *model.Category) error {
	category.CreatedAt = now()

	res, err := db.exec(ctx, "categories.create",
		`INSERT INTO categories (name, slug, created_at) VALUES (?, ?, ?)`,
		category.Name, category.Slug, category.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("category", category.Slug)
		}
		return fmt.Errorf("sqlite: creating category: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading category id: %w", err)
	}
	category.ID = id
	return nil
}

func (db *DB) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	var category *model.Category
	err := db.queryRow(ctx, "categories.get",
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, []any{id},
		func(row *sql.Row) (err error) {
			category, err = scanCategory(row.Scan)
			return err
		})
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("category", id)
		}
		return nil, fmt.Errorf("sqlite: getting category %d: %w", id, err)
	}
	return category, nil
}

func (db *DB) GetCategoryBySlug(ctx context.Context, slug string) (*model.Category, error) {
	var category *model.Category
	err := db.queryRow(ctx, "categories.get_by_slug",
		`SELECT `+categoryColumns+` FROM categories WHERE slug = ?`, []any{slug},
		func(row *sql.Row) (err error) {
			category, err = scanCategory(row.Scan)
			return err
		})
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("category", slug)
		}
		return nil, fmt.Errorf("sqlite: getting category %q: %w", slug, err)
	}
	return category, nil
}

// ListCategories returns all categories ordered by name.
func (db *DB) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	err := db.query(ctx, "categories.list",
		`SELECT `+categoryColumns+` FROM categories ORDER BY name ASC, id ASC`, nil,
		func() { categories = make([]model.Category, 0) },
		func(rows *sql.Rows) error {
			c, err := scanCategory(rows.Scan)
			if err != nil {
				return err
			}
			categories = append(categories, *c)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing categories: %w", err)
	}
	return categories, nil
}

func (db *DB) UpdateCategory(ctx context.Context, category *model.Category) error {
	res, err := db.exec(ctx, "categories.update",
		`UPDATE categories SET name = ?, slug = ? WHERE id = ?`,
		category.Name, category.Slug, category.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("category", category.Slug)
		}
		return fmt.Errorf("sqlite: updating category %d: %w", category.ID, err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("sqlite: updating category %d: %w", category.ID, err)
	}
	if !ok {
		return apperror.NotFound("category", category.ID)
	}
	return nil
}

// DeleteCategory removes the row only; blogs filed under it keep their
// category_id and read back with a nil Category.
func (db *DB) DeleteCategory(ctx context.Context, id int64) error {
	res, err := db.exec(ctx, "categories.delete", `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting category %d: %w", id, err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return fmt.Errorf("sqlite: deleting category %d: %w", id, err)
	}
	if !ok {
		return apperror.NotFound("category", id)
	}
	return nil
}
