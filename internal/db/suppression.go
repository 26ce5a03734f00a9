package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const suppressionColumns = `id, user_id, categories, created_at, updated_at`

func scanSuppression(row pgx.Row) (*SuppressionEntry, error) {
	var (
		e          SuppressionEntry
		categories []string
	)
	if err := row.Scan(&e.ID, &e.UserID, &categories, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Categories = make([]Category, len(categories))
	for i, c := range categories {
		e.Categories[i] = Category(c)
	}
	return &e, nil
}

func categoryStrings(categories []Category) []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = string(c)
	}
	return out
}

// CreateSuppression inserts a suppression entry
func (r *Repository) CreateSuppression(ctx context.Context, entry *SuppressionEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	err := r.db.Pool().QueryRow(ctx, `
		INSERT INTO suppression_entries (id, user_id, categories)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, entry.ID, entry.UserID, categoryStrings(entry.Categories)).Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create suppression entry",
			zap.Error(err),
			zap.String("user_id", entry.UserID.String()),
		)
		return fmt.Errorf("insert suppression entry: %w", err)
	}
	return nil
}

// GetSuppression retrieves a suppression entry by ID
func (r *Repository) GetSuppression(ctx context.Context, id uuid.UUID) (*SuppressionEntry, error) {
	e, err := scanSuppression(r.db.Pool().QueryRow(ctx,
		`SELECT `+suppressionColumns+` FROM suppression_entries WHERE id = $1`, id))
	if isNoRows(err) {
		return nil, notFound("suppression entry", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query suppression entry: %w", err)
	}
	return e, nil
}

// UpdateSuppression replaces the category set of an entry
func (r *Repository) UpdateSuppression(ctx context.Context, entry *SuppressionEntry) error {
	err := r.db.Pool().QueryRow(ctx, `
		UPDATE suppression_entries
		SET user_id = $2, categories = $3, updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at
	`, entry.ID, entry.UserID, categoryStrings(entry.Categories)).Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if isNoRows(err) {
		return notFound("suppression entry", entry.ID)
	}
	if err != nil {
		return fmt.Errorf("update suppression entry: %w", err)
	}
	return nil
}

// DeleteSuppression removes an entry
func (r *Repository) DeleteSuppression(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool().Exec(ctx, `DELETE FROM suppression_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete suppression entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound("suppression entry", id)
	}
	return nil
}

// ListSuppressions returns entries newest first
func (r *Repository) ListSuppressions(ctx context.Context, limit, offset int) ([]*SuppressionEntry, error) {
	return r.querySuppressions(ctx, `
		SELECT `+suppressionColumns+`
		FROM suppression_entries
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

// ListSuppressionsByUser returns every entry registered for a user
func (r *Repository) ListSuppressionsByUser(ctx context.Context, userID uuid.UUID) ([]*SuppressionEntry, error) {
	return r.querySuppressions(ctx, `
		SELECT `+suppressionColumns+`
		FROM suppression_entries
		WHERE user_id = $1
		ORDER BY created_at, id
	`, userID)
}

func (r *Repository) querySuppressions(ctx context.Context, query string, args ...any) ([]*SuppressionEntry, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query suppression entries: %w", err)
	}
	defer rows.Close()

	var out []*SuppressionEntry
	for rows.Next() {
		e, err := scanSuppression(rows)
		if err != nil {
			return nil, fmt.Errorf("scan suppression entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suppression entries: %w", err)
	}
	return out, nil
}
