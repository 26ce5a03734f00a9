package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SendLock claims a message or bulk message for one sweeper across every
// worker process. A lock outlives a crashed holder by at most ttl.
type SendLock struct {
	client *Client
	ttl    time.Duration
	owner  string
	logger *zap.Logger
}

func NewSendLock(client *Client, ttl time.Duration, logger *zap.Logger) *SendLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &SendLock{
		client: client,
		ttl:    ttl,
		owner:  uuid.NewString(),
		logger: logger,
	}
}

func lockKey(kind string, id uuid.UUID) string {
	return fmt.Sprintf("sendlock:%s:%s", kind, id)
}

// Claim sets the lock with SET NX PX and reports whether this process got it.
func (l *SendLock) Claim(ctx context.Context, kind string, id uuid.UUID) (bool, error) {
	ok, err := l.client.rdb.SetNX(ctx, lockKey(kind, id), l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		l.logger.Debug("send lock held elsewhere",
			zap.String("kind", kind),
			zap.String("id", id.String()),
		)
	}
	return ok, nil
}

// Release drops the lock if this process still holds it.
func (l *SendLock) Release(ctx context.Context, kind string, id uuid.UUID) error {
	err := releaseScript.Run(ctx, l.client.rdb, []string{lockKey(kind, id)}, l.owner).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis release failed: %w", err)
	}
	return nil
}
