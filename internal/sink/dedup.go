package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/nkmitin/tg-relay/internal/poller"
	"github.com/nkmitin/tg-relay/internal/telegram"
)

const defaultDedupTTL = 24 * time.Hour

// Deduper remembers recently forwarded update IDs. It guards against
// redelivery after an unclean restart, when the cursor resets to zero and the
// API replays unacknowledged updates.
type Deduper interface {
	// Seen marks the update as forwarded and reports whether it already was.
	Seen(ctx context.Context, session string, updateID int64) (bool, error)
}

// RedisDeduper implements Deduper with SETNX plus TTL.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper builds a Deduper on the shared Redis client.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}

	return &RedisDeduper{client: client, ttl: ttl}
}

// Seen reserves the (session, update) pair; a failed reservation means the
// update was already forwarded within the TTL window.
func (d *RedisDeduper) Seen(ctx context.Context, session string, updateID int64) (bool, error) {
	key := fmt.Sprintf("relay:seen:%s:%d", session, updateID)

	fresh, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve dedup key %s: %w", key, err)
	}

	return !fresh, nil
}

// Dedup wraps another sink and drops records the Deduper has seen recently.
// Dedup failures fail open: the record is forwarded anyway, since duplicate
// delivery beats silent loss.
type Dedup struct {
	next    poller.Sink
	deduper Deduper
	session string
	log     *slog.Logger
}

// NewDedup wraps next with a recently-seen guard.
func NewDedup(next poller.Sink, deduper Deduper, session string, log *slog.Logger) *Dedup {
	if log == nil {
		log = slog.Default()
	}

	return &Dedup{
		next:    next,
		deduper: deduper,
		session: session,
		log:     log,
	}
}

// Emit filters already-seen records and delegates what remains. Batches that
// end up empty are not forwarded.
func (d *Dedup) Emit(ctx context.Context, batches [][]telegram.Update) error {
	kept := make([][]telegram.Update, 0, len(batches))

	for _, batch := range batches {
		fresh := make([]telegram.Update, 0, len(batch))
		for _, u := range batch {
			seen, err := d.deduper.Seen(ctx, d.session, u.ID)
			if err != nil {
				d.log.Warn("dedup check failed, forwarding anyway",
					slog.Int64("update_id", u.ID),
					slog.Any("error", err),
				)
				fresh = append(fresh, u)
				continue
			}
			if seen {
				d.log.Debug("dropping already-forwarded update", slog.Int64("update_id", u.ID))
				continue
			}
			fresh = append(fresh, u)
		}
		if len(fresh) > 0 {
			kept = append(kept, fresh)
		}
	}

	if len(kept) == 0 {
		return nil
	}

	return d.next.Emit(ctx, kept)
}
