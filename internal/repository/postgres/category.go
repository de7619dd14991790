package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sakif/blog-platform/internal/apperror"
	"github.com/sakif/blog-platform/internal/model"
)

func scanCategory(row pgx.CollectableRow) (model.Category, error) {
	var c model.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt)
	return c, err
}

func (db *DB) CreateCategory(ctx context.Context, category *model.Category) error {
	err := db.queryRow(ctx, "categories.create",
		`INSERT INTO categories (name, slug) VALUES ($1, $2) RETURNING id, created_at`,
		[]any{category.Name, category.Slug},
		&category.ID, &category.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("category", category.Slug)
		}
		return fmt.Errorf("postgres: creating category: %w", err)
	}
	return nil
}

func (db *DB) getCategory(ctx context.Context, op, where string, key any) (*model.Category, error) {
	var c model.Category
	err := db.queryRow(ctx, op,
		`SELECT id, name, slug, created_at FROM categories WHERE `+where, []any{key},
		&c.ID, &c.Name, &c.Slug, &c.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("category", key)
		}
		return nil, fmt.Errorf("postgres: getting category %v: %w", key, err)
	}
	return &c, nil
}

func (db *DB) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	return db.getCategory(ctx, "categories.get", "id = $1", id)
}

func (db *DB) GetCategoryBySlug(ctx context.Context, slug string) (*model.Category, error) {
	return db.getCategory(ctx, "categories.get_by_slug", "slug = $1", slug)
}

func (db *DB) ListCategories(ctx context.Context) ([]model.Category, error) {
	categories, err := collect(ctx, db, "categories.list",
		`SELECT id, name, slug, created_at FROM categories ORDER BY name ASC, id ASC`, nil, scanCategory)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing categories: %w", err)
	}
	return categories, nil
}

func (db *DB) UpdateCategory(ctx context.Context, category *model.Category) error {
	tag, err := db.exec(ctx, "categories.update",
		`UPDATE categories SET name = $1, slug = $2 WHERE id = $3`,
		category.Name, category.Slug, category.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("category", category.Slug)
		}
		return fmt.Errorf("postgres: updating category %d: %w", category.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("category", category.ID)
	}
	return nil
}

func (db *DB) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := db.exec(ctx, "categories.delete", `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: deleting category %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("category", id)
	}
	return nil
}
