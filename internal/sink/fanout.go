package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkmitin/tg-relay/internal/poller"
	"github.com/nkmitin/tg-relay/internal/telegram"
)

// Fanout delivers each emission to every configured backend. All backends
// are attempted even when one fails; the errors are joined.
type Fanout struct {
	sinks []poller.Sink
}

// NewFanout composes the given sinks. A single sink is returned as-is.
func NewFanout(sinks ...poller.Sink) poller.Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}

	return &Fanout{sinks: sinks}
}

// Emit forwards the batches to every backend.
func (f *Fanout) Emit(ctx context.Context, batches [][]telegram.Update) error {
	var errs []error
	for i, s := range f.sinks {
		if err := s.Emit(ctx, batches); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}

	return errors.Join(errs...)
}
