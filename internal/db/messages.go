package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var messageColumns = `
	m.id, m.header, m.category, m.subject, m.recipient_id, m.language,
	m.is_test, m.scheduled_send_time, m.sent_time, m.was_sent, m.skipped_at,
	m.created_at, m.updated_at, ` + blockRefsColumn(KindMessage, "m.id")

func scanMessage(row pgx.Row) (*Message, error) {
	var (
		m        Message
		category string
		blockIDs []string
	)
	err := row.Scan(
		&m.ID,
		&m.Header,
		&category,
		&m.Subject,
		&m.RecipientID,
		&m.Language,
		&m.IsTest,
		&m.ScheduledSendTime,
		&m.SentTime,
		&m.WasSent,
		&m.SkippedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
		&blockIDs,
	)
	if err != nil {
		return nil, err
	}
	m.Category = Category(category)
	if m.BlockIDs, err = parseUUIDs(blockIDs); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMessage inserts a message together with its block references
func (r *Repository) CreateMessage(ctx context.Context, msg *Message) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertMessage(ctx, tx, msg); err != nil {
		r.logger.Error("failed to create message",
			zap.Error(err),
			zap.String("message_id", msg.ID.String()),
		)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	r.logger.Debug("message created",
		zap.String("message_id", msg.ID.String()),
		zap.String("category", string(msg.Category)),
		zap.Bool("is_test", msg.IsTest),
	)
	return nil
}

func insertMessage(ctx context.Context, q querier, msg *Message) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	query := `
		INSERT INTO messages (
			id, header, category, subject, recipient_id, language,
			is_test, scheduled_send_time, sent_time, was_sent
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		RETURNING created_at, updated_at
	`
	err := q.QueryRow(ctx, query,
		msg.ID,
		msg.Header,
		string(msg.Category),
		msg.Subject,
		msg.RecipientID,
		msg.Language,
		msg.IsTest,
		msg.ScheduledSendTime,
		msg.SentTime,
		msg.WasSent,
	).Scan(&msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return insertBlockRefs(ctx, q, KindMessage, msg.ID, msg.BlockIDs)
}

// UpdateMessage rewrites the editable fields of a message that has not been sent
func (r *Repository) UpdateMessage(ctx context.Context, msg *Message) error {
	query := `
		UPDATE messages
		SET header = $2, category = $3, subject = $4, recipient_id = $5,
		    language = $6, is_test = $7, scheduled_send_time = $8, updated_at = now()
		WHERE id = $1 AND was_sent = false
		RETURNING updated_at
	`
	err := r.db.Pool().QueryRow(ctx, query,
		msg.ID,
		msg.Header,
		string(msg.Category),
		msg.Subject,
		msg.RecipientID,
		msg.Language,
		msg.IsTest,
		msg.ScheduledSendTime,
	).Scan(&msg.UpdatedAt)

	if isNoRows(err) {
		return notFound("unsent message", msg.ID)
	}
	if err != nil {
		r.logger.Error("failed to update message",
			zap.Error(err),
			zap.String("message_id", msg.ID.String()),
		)
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID
func (r *Repository) GetMessage(ctx context.Context, id uuid.UUID) (*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages m WHERE m.id = $1`

	msg, err := scanMessage(r.db.Pool().QueryRow(ctx, query, id))
	if isNoRows(err) {
		return nil, notFound("message", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query message: %w", err)
	}
	return msg, nil
}

// ListMessages returns messages newest first
func (r *Repository) ListMessages(ctx context.Context, limit, offset int) ([]*Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		ORDER BY m.created_at DESC, m.id
		LIMIT $1 OFFSET $2
	`
	return r.queryMessages(ctx, query, limit, offset)
}

// ListDueMessages returns unsent, unskipped, unleased messages whose
// scheduled send time has passed
func (r *Repository) ListDueMessages(ctx context.Context, now time.Time, limit int) ([]*Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		WHERE m.was_sent = false
		  AND m.skipped_at IS NULL
		  AND m.scheduled_send_time <= $1
		  AND (m.lease_until IS NULL OR m.lease_until < now())
		ORDER BY m.scheduled_send_time, m.id
		LIMIT $2
	`
	return r.queryMessages(ctx, query, now, limit)
}

func (r *Repository) queryMessages(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list messages", zap.Error(err))
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// MarkMessageSent flips was_sent once. A second call reports ErrNotFound.
func (r *Repository) MarkMessageSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE messages
		SET was_sent = true, sent_time = $2, lease_until = NULL, updated_at = now()
		WHERE id = $1 AND was_sent = false
	`
	result, err := r.db.Pool().Exec(ctx, query, id, sentAt)
	if err != nil {
		return fmt.Errorf("mark message sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound("unsent message", id)
	}
	return nil
}

// MarkMessageSkipped records that a message was suppressed. It stays unsent.
func (r *Repository) MarkMessageSkipped(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE messages
		SET skipped_at = $2, lease_until = NULL, updated_at = now()
		WHERE id = $1 AND was_sent = false
	`
	if _, err := r.db.Pool().Exec(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark message skipped: %w", err)
	}
	return nil
}
