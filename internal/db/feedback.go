package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var feedbackColumns = `
	f.id, f.author_id, f.category, f.subject, f.header, f.was_read,
	f.sent_time, f.was_sent, f.created_at, f.updated_at, ` +
	blockRefsColumn(KindFeedback, "f.id")

func scanFeedback(row pgx.Row) (*FeedbackMessage, error) {
	var (
		f        FeedbackMessage
		category string
		blockIDs []string
	)
	err := row.Scan(
		&f.ID,
		&f.AuthorID,
		&category,
		&f.Subject,
		&f.Header,
		&f.WasRead,
		&f.SentTime,
		&f.WasSent,
		&f.CreatedAt,
		&f.UpdatedAt,
		&blockIDs,
	)
	if err != nil {
		return nil, err
	}
	f.Category = FeedbackCategory(category)
	if f.BlockIDs, err = parseUUIDs(blockIDs); err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateFeedback inserts a feedback message and its body block atomically
func (r *Repository) CreateFeedback(ctx context.Context, fb *FeedbackMessage, block *ContentBlock) error {
	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}
	if block.ID == uuid.Nil {
		block.ID = uuid.New()
	}

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO feedback_messages (id, author_id, category, subject, header)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, query,
		fb.ID,
		fb.AuthorID,
		string(fb.Category),
		fb.Subject,
		fb.Header,
	).Scan(&fb.CreatedAt, &fb.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create feedback",
			zap.Error(err),
			zap.String("author_id", fb.AuthorID.String()),
		)
		return fmt.Errorf("insert feedback: %w", err)
	}

	if err := createBlock(ctx, tx, block); err != nil {
		return err
	}
	fb.BlockIDs = []uuid.UUID{block.ID}
	if err := insertBlockRefs(ctx, tx, KindFeedback, fb.ID, fb.BlockIDs); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetFeedback retrieves a feedback message by ID
func (r *Repository) GetFeedback(ctx context.Context, id uuid.UUID) (*FeedbackMessage, error) {
	query := `SELECT ` + feedbackColumns + ` FROM feedback_messages f WHERE f.id = $1`

	fb, err := scanFeedback(r.db.Pool().QueryRow(ctx, query, id))
	if isNoRows(err) {
		return nil, notFound("feedback", id)
	}
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	return fb, nil
}

// ListFeedbackByAuthor returns one author's feedback newest first
func (r *Repository) ListFeedbackByAuthor(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]*FeedbackMessage, error) {
	query := `
		SELECT ` + feedbackColumns + `
		FROM feedback_messages f
		WHERE f.author_id = $1
		ORDER BY f.created_at DESC, f.id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Pool().Query(ctx, query, authorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var out []*FeedbackMessage
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		out = append(out, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}
	return out, nil
}

// MarkFeedbackRead sets was_read and nothing else
func (r *Repository) MarkFeedbackRead(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool().Exec(ctx,
		`UPDATE feedback_messages SET was_read = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark feedback read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound("feedback", id)
	}
	return nil
}

// MarkFeedbackSent records delivery of a feedback message
func (r *Repository) MarkFeedbackSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	result, err := r.db.Pool().Exec(ctx, `
		UPDATE feedback_messages
		SET was_sent = true, sent_time = $2, updated_at = now()
		WHERE id = $1 AND was_sent = false
	`, id, sentAt)
	if err != nil {
		return fmt.Errorf("mark feedback sent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return notFound("unsent feedback", id)
	}
	return nil
}
