package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Repository handles database operations for every postbox entity
type Repository struct {
	db     *DB
	logger *zap.Logger
}

// NewRepository creates a new repository
func NewRepository(db *DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// join tables, keyed by owner kind
var blockJoins = map[string]struct{ table, ownerColumn string }{
	KindMessage:  {"message_blocks", "message_id"},
	KindBulk:     {"bulk_message_blocks", "bulk_message_id"},
	KindFeedback: {"feedback_blocks", "feedback_id"},
}

// insertBlockRefs stores the ordered block list of an owner row
func insertBlockRefs(ctx context.Context, q querier, kind string, ownerID uuid.UUID, blockIDs []uuid.UUID) error {
	if len(blockIDs) == 0 {
		return nil
	}
	join := blockJoins[kind]
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, block_id, position)
		SELECT $1, b.id, b.ord
		FROM unnest($2::uuid[]) WITH ORDINALITY AS b(id, ord)
	`, join.table, join.ownerColumn)

	if _, err := q.Exec(ctx, query, ownerID, uuidStrings(blockIDs)); err != nil {
		return fmt.Errorf("insert %s: %w", join.table, err)
	}
	return nil
}

// blockRefsColumn renders a sub-select returning the owner's block ids in order
func blockRefsColumn(kind, ownerRef string) string {
	join := blockJoins[kind]
	return fmt.Sprintf(
		"COALESCE((SELECT array_agg(j.block_id::text ORDER BY j.position) FROM %s j WHERE j.%s = %s), '{}')",
		join.table, join.ownerColumn, ownerRef,
	)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseUUIDs(raw []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("parse block id %q: %w", s, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func notFound(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// CreateBlock inserts a new content block
func (r *Repository) CreateBlock(ctx context.Context, block *ContentBlock) error {
	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}
	if err := createBlock(ctx, r.db.Pool(), block); err != nil {
		r.logger.Error("failed to create block",
			zap.Error(err),
			zap.String("block_id", block.ID.String()),
		)
		return err
	}
	return nil
}

func createBlock(ctx context.Context, q querier, block *ContentBlock) error {
	query := `
		INSERT INTO content_blocks (id, title, body, has_link, link_label, link_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := q.QueryRow(ctx, query,
		block.ID,
		block.Title,
		block.Body,
		block.HasLink,
		block.LinkLabel,
		block.LinkURL,
	).Scan(&block.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

// GetBlocks returns the blocks for ids, in the order of ids
func (r *Repository) GetBlocks(ctx context.Context, ids []uuid.UUID) ([]*ContentBlock, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, title, body, has_link, link_label, link_url, created_at
		FROM content_blocks
		WHERE id = ANY($1::uuid[])
	`

	rows, err := r.db.Pool().Query(ctx, query, uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*ContentBlock, len(ids))
	for rows.Next() {
		var b ContentBlock
		if err := rows.Scan(&b.ID, &b.Title, &b.Body, &b.HasLink, &b.LinkLabel, &b.LinkURL, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		byID[b.ID] = &b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}

	blocks := make([]*ContentBlock, 0, len(ids))
	for _, id := range ids {
		b, ok := byID[id]
		if !ok {
			return nil, notFound("block", id)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

const userColumns = `id, email, first_name, preferred_language, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.PreferredLanguage, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser retrieves a user by ID
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(r.db.Pool().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if isNoRows(err) {
		return nil, notFound("user", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

// GetUserByEmail retrieves a user by email address
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(r.db.Pool().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if isNoRows(err) {
		return nil, notFound("user", email)
	}
	if err != nil {
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	return u, nil
}

// ListUsers enumerates all users in a stable order
func (r *Repository) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
