package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/nkmitin/tg-relay/internal/telegram"
	"github.com/nkmitin/tg-relay/pkg/logger"
	"github.com/nkmitin/tg-relay/pkg/metrics"
)

const defaultStream = "relay:updates"

// Stream appends one entry per forwarded record to a Redis stream. The
// payload field carries the raw update JSON untouched.
type Stream struct {
	client  *redis.Client
	session string
	stream  string
	maxLen  int64
	log     *slog.Logger
}

// NewStream builds a Redis stream sink for one session. maxLen of zero means
// the stream is not trimmed.
func NewStream(client *redis.Client, session, stream string, maxLen int64, log *slog.Logger) *Stream {
	if stream == "" {
		stream = defaultStream
	}
	if log == nil {
		log = slog.Default()
	}

	return &Stream{
		client:  client,
		session: session,
		stream:  stream,
		maxLen:  maxLen,
		log:     log,
	}
}

// Emit writes every record of every batch with a single pipeline round trip.
func (s *Stream) Emit(ctx context.Context, batches [][]telegram.Update) error {
	correlationID := logger.CorrelationIDFromContext(ctx)

	pipe := s.client.Pipeline()
	total := 0
	for _, batch := range batches {
		for _, u := range batch {
			args := &redis.XAddArgs{
				Stream: s.stream,
				Values: map[string]any{
					"session":        s.session,
					"update_id":      u.ID,
					"kinds":          strings.Join(u.Kinds(), ","),
					"payload":        string(u.Raw()),
					"correlation_id": correlationID,
				},
			}
			if s.maxLen > 0 {
				args.MaxLen = s.maxLen
				args.Approx = true
			}
			pipe.XAdd(ctx, args)
			total++
		}
	}

	if total == 0 {
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("xadd to %s: %w", s.stream, err)
	}

	metrics.RecordSinkRecords("redis", total)
	s.log.Debug("batch written to stream",
		slog.String("stream", s.stream),
		slog.Int("records", total),
		slog.String("correlation_id", correlationID),
	)

	return nil
}
