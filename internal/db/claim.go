package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var leaseTables = map[string]string{
	KindMessage: "messages",
	KindBulk:    "bulk_messages",
}

// LeaseClaimer claims rows for sending by writing lease_until. A row can be
// claimed when it is unsent and carries no live lease.
type LeaseClaimer struct {
	db  *DB
	ttl time.Duration
}

func NewLeaseClaimer(db *DB, ttl time.Duration) *LeaseClaimer {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &LeaseClaimer{db: db, ttl: ttl}
}

// Claim reports whether this caller now holds the lease for kind/id
func (c *LeaseClaimer) Claim(ctx context.Context, kind string, id uuid.UUID) (bool, error) {
	table, ok := leaseTables[kind]
	if !ok {
		return false, fmt.Errorf("claim: unknown kind %q", kind)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET lease_until = now() + $2::interval
		WHERE id = $1
		  AND was_sent = false
		  AND (lease_until IS NULL OR lease_until < now())
		RETURNING id
	`, table)

	var claimed uuid.UUID
	err := c.db.Pool().QueryRow(ctx, query, id, c.ttl).Scan(&claimed)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", kind, err)
	}
	return true, nil
}

// Release drops a lease so the next sweep can retry immediately
func (c *LeaseClaimer) Release(ctx context.Context, kind string, id uuid.UUID) error {
	table, ok := leaseTables[kind]
	if !ok {
		return fmt.Errorf("release: unknown kind %q", kind)
	}
	query := fmt.Sprintf(`UPDATE %s SET lease_until = NULL WHERE id = $1`, table)
	if _, err := c.db.Pool().Exec(ctx, query, id); err != nil {
		return fmt.Errorf("release %s: %w", kind, err)
	}
	return nil
}
