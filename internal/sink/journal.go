package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nkmitin/tg-relay/internal/telegram"
	"github.com/nkmitin/tg-relay/pkg/logger"
	"github.com/nkmitin/tg-relay/pkg/metrics"
)

// Journal appends every forwarded record to the update_journal table. It is
// an audit trail, not cursor persistence: the session still starts from
// offset zero after a restart, and the unique constraint absorbs the
// resulting redeliveries.
type Journal struct {
	db      *sql.DB
	session string
	log     *slog.Logger
}

// NewJournal builds a Postgres journal sink for one session.
func NewJournal(db *sql.DB, session string, log *slog.Logger) *Journal {
	if log == nil {
		log = slog.Default()
	}

	return &Journal{
		db:      db,
		session: session,
		log:     log,
	}
}

// Emit inserts all records of all batches in a single transaction.
func (j *Journal) Emit(ctx context.Context, batches [][]telegram.Update) error {
	const query = `
		INSERT INTO update_journal (session, update_id, kinds, payload, correlation_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session, update_id) DO NOTHING
	`

	correlationID := logger.CorrelationIDFromContext(ctx)

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal tx: %w", err)
	}

	total := 0
	for _, batch := range batches {
		for _, u := range batch {
			if _, err := tx.ExecContext(ctx, query,
				j.session,
				u.ID,
				strings.Join(u.Kinds(), ","),
				string(u.Raw()),
				correlationID,
			); err != nil {
				if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
					j.log.Error("journal rollback error", slog.Any("error", rbErr))
				}
				return fmt.Errorf("insert journal record %d: %w", u.ID, err)
			}
			total++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal tx: %w", err)
	}

	metrics.RecordSinkRecords("journal", total)

	return nil
}
