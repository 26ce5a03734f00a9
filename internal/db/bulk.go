package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var bulkColumns = `
	b.id, b.header, b.category, b.subject, b.language, b.is_test,
	b.scheduled_send_time, b.sent_time, b.was_sent, b.created_at, b.updated_at, ` +
	blockRefsColumn(KindBulk, "b.id")

func scanBulkMessage(row pgx.Row) (*BulkMessage, error) {
	var (
		b        BulkMessage
		category string
		blockIDs []string
	)
	err := row.Scan(
		&b.ID,
		&b.Header,
		&category,
		&b.Subject,
		&b.Language,
		&b.IsTest,
		&b.ScheduledSendTime,
		&b.SentTime,
		&b.WasSent,
		&b.CreatedAt,
		&b.UpdatedAt,
		&blockIDs,
	)
	if err != nil {
		return nil, err
	}
	b.Category = Category(category)
	if b.BlockIDs, err = parseUUIDs(blockIDs); err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBulkMessage inserts a bulk message together with its block references
func (r *Repository) CreateBulkMessage(ctx context.Context, bulk *BulkMessage) error {
	if bulk.ID == uuid.Nil {
		bulk.ID = uuid.New()
	}

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO bulk_messages (
			id, header, category, subject, language, is_test, scheduled_send_time
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		bulk.ID,
		bulk.Header,
		string(bulk.Category),
		bulk.Subject,
		bulk.Language,
		bulk.IsTest,
		bulk.ScheduledSendTime,
	).Scan(&bulk.CreatedAt, &bulk.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create bulk message",
			zap.Error(err),
			zap.String("bulk_id", bulk.ID.String()),
		)
		return fmt.Errorf("insert bulk message: %w", err)
	}

	if err := insertBlockRefs(ctx, tx, KindBulk, bulk.ID, bulk.BlockIDs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetBulkMessage retrieves a bulk message by ID
func (r *Repository) GetBulkMessage(ctx context.Context, id uuid.UUID) (*BulkMessage, error) {
	query := `SELECT ` + bulkColumns + ` FROM bulk_messages b WHERE b.id = $1`

	bulk, err := scanBulkMessage(r.db.Pool().QueryRow(ctx, query, id))
	if isNoRows(err) {
		return nil, notFound("bulk message", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query bulk message: %w", err)
	}
	return bulk, nil
}

// ListBulkMessages returns bulk messages newest first
func (r *Repository) ListBulkMessages(ctx context.Context, limit, offset int) ([]*BulkMessage, error) {
	query := `
		SELECT ` + bulkColumns + `
		FROM bulk_messages b
		ORDER BY b.created_at DESC, b.id
		LIMIT $1 OFFSET $2
	`
	return r.queryBulkMessages(ctx, query, limit, offset)
}

// ListPendingBulkMessages returns bulk messages that have not been fanned out
func (r *Repository) ListPendingBulkMessages(ctx context.Context, limit int) ([]*BulkMessage, error) {
	query := `
		SELECT ` + bulkColumns + `
		FROM bulk_messages b
		WHERE b.was_sent = false
		  AND (b.lease_until IS NULL OR b.lease_until < now())
		ORDER BY b.created_at, b.id
		LIMIT $1
	`
	return r.queryBulkMessages(ctx, query, limit)
}

func (r *Repository) queryBulkMessages(ctx context.Context, query string, args ...any) ([]*BulkMessage, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bulk messages: %w", err)
	}
	defer rows.Close()

	var out []*BulkMessage
	for rows.Next() {
		bulk, err := scanBulkMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bulk message: %w", err)
		}
		out = append(out, bulk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bulk messages: %w", err)
	}
	return out, nil
}

// CompleteFanOut stores the per-recipient messages of a bulk message and
// marks it sent in one transaction. A bulk message that is already sent
// leaves everything untouched and reports ErrNotFound.
func (r *Repository) CompleteFanOut(ctx context.Context, bulkID uuid.UUID, messages []*Message, sentAt time.Time) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := tx.Exec(ctx, `
		UPDATE bulk_messages
		SET was_sent = true, sent_time = $2, lease_until = NULL, updated_at = now()
		WHERE id = $1 AND was_sent = false
	`, bulkID, sentAt)
	if err != nil {
		return fmt.Errorf("mark bulk message sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound("unsent bulk message", bulkID)
	}

	for _, msg := range messages {
		if err := insertMessage(ctx, tx, msg); err != nil {
			r.logger.Error("failed to insert fan-out message",
				zap.Error(err),
				zap.String("bulk_id", bulkID.String()),
				zap.String("recipient_id", msg.RecipientID.String()),
			)
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.Info("bulk message fanned out",
		zap.String("bulk_id", bulkID.String()),
		zap.Int("messages", len(messages)),
	)
	return nil
}
