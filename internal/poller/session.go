// Package poller implements the long-polling loop: a Session owns the update
// cursor, issues getUpdates requests, filters batches by kind, and forwards
// them to a Sink until it is stopped or hits a fatal error.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/nkmitin/tg-relay/internal/errors"
	"github.com/nkmitin/tg-relay/internal/telegram"
	"github.com/nkmitin/tg-relay/pkg/logger"
	"github.com/nkmitin/tg-relay/pkg/metrics"
)

// UpdateSource is the remote endpoint a session polls.
type UpdateSource interface {
	GetUpdates(ctx context.Context, req telegram.GetUpdatesRequest) (*telegram.UpdatesResponse, error)
}

// Sink consumes emitted batches. Each call carries exactly one inner batch;
// the batch-of-batches shape matches downstream fan-out conventions.
type Sink interface {
	Emit(ctx context.Context, batches [][]telegram.Update) error
}

// Session is a single polling loop bound to one token and one sink. It is
// not restartable: once stopped, a new Session must be created.
type Session struct {
	name    string
	cfg     Config
	allowed map[string]struct{}
	source  UpdateSource
	sink    Sink
	log     *slog.Logger

	state  atomic.Int32
	cursor atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc

	done chan struct{}
	err  error
}

// NewSession builds an idle session. The configuration is normalized once
// here and never mutated afterwards.
func NewSession(name string, cfg Config, source UpdateSource, sink Sink, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.normalized()

	return &Session{
		name:    name,
		cfg:     cfg,
		allowed: AllowedKindSet(cfg.AllowedKinds),
		source:  source,
		sink:    sink,
		log:     log.With(slog.String("session", name)),
		done:    make(chan struct{}),
	}
}

// Name returns the session identifier.
func (s *Session) Name() string {
	return s.name
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Cursor returns the current acknowledge offset.
func (s *Session) Cursor() int64 {
	return s.cursor.Load()
}

// Done is closed once the loop has fully unwound.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the fatal error that terminated the loop, or nil after a clean
// stop. Valid only once Done is closed.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Start launches the polling loop in its own goroutine and returns
// immediately. It fails if the session has already been started.
func (s *Session) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if !s.transition(StateIdle, StateRunning) {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("session %q: cannot start from state %s", s.name, s.State())
	}
	s.cancel = cancel
	s.mu.Unlock()

	s.log.Info("polling session started",
		slog.Int("limit", s.cfg.Limit),
		slog.Int("timeout_seconds", s.cfg.TimeoutSeconds),
		slog.Any("allowed_kinds", s.cfg.AllowedKinds),
	)

	go s.run(loopCtx)

	return nil
}

// Stop requests shutdown: it flips the session out of Running and cancels the
// in-flight long-poll request. It does not wait for the loop to drain and is
// safe to call more than once; repeat calls only re-signal cancellation.
// Stop on a session that was never started is a no-op: the session stays
// Idle and remains startable.
func (s *Session) Stop() {
	if s.transition(StateRunning, StateStopping) {
		s.log.Info("stop requested")
	}

	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// HealthCheck reports the session as healthy while its loop is alive.
func (s *Session) HealthCheck(ctx context.Context) error {
	switch s.State() {
	case StateRunning, StateStopping:
		return nil
	case StateStopped:
		if err := s.Err(); err != nil {
			return fmt.Errorf("session terminated: %w", err)
		}
		return errors.New("session stopped")
	default:
		return errors.New("session not started")
	}
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	err := s.loop(ctx)
	s.err = err
	s.state.Store(int32(StateStopped))

	if err != nil {
		s.log.Error("polling session terminated", slog.Any("error", err))
		return
	}

	s.log.Info("polling session stopped", slog.Int64("cursor", s.Cursor()))
}

func (s *Session) running() bool {
	return s.State() == StateRunning
}

func (s *Session) loop(ctx context.Context) error {
	for s.running() {
		req := telegram.GetUpdatesRequest{
			Offset:         s.cursor.Load(),
			Limit:          s.cfg.Limit,
			Timeout:        s.cfg.TimeoutSeconds,
			AllowedUpdates: s.cfg.AllowedKinds,
		}

		start := time.Now()
		resp, err := s.source.GetUpdates(ctx, req)
		metrics.ObservePoll(s.name, time.Since(start))

		if err != nil {
			if fatal := s.classify(err); fatal != nil {
				return fatal
			}
			// Suppressed: our own shutdown unwound the request, either by
			// aborting it or by racing a 409 from the replacing consumer.
			s.log.Debug("in-flight poll unwound during shutdown", slog.Any("error", err))
			continue
		}

		if !resp.OK || resp.Result == nil {
			metrics.RecordMalformedResponse(s.name)
			s.log.Warn("malformed getUpdates response, retrying", slog.Bool("ok", resp.OK))
			continue
		}

		if len(resp.Result) == 0 {
			continue
		}

		s.advanceCursor(resp.Result)
		metrics.RecordUpdatesReceived(s.name, len(resp.Result))

		kept := FilterByKind(resp.Result, s.allowed)
		if dropped := len(resp.Result) - len(kept); dropped > 0 {
			metrics.RecordUpdatesDropped(s.name, dropped)
		}
		if len(kept) == 0 {
			continue
		}

		emitCtx := logger.WithCorrelationID(ctx, uuid.NewString())
		if err := s.sink.Emit(emitCtx, [][]telegram.Update{kept}); err != nil {
			metrics.RecordPollError(s.name, "sink")
			return fmt.Errorf("emit batch: %w", err)
		}
		metrics.RecordBatchEmitted(s.name, len(kept))
	}

	return nil
}

// classify decides whether a poll error is fatal. A conflict means another
// consumer is long-polling with the same token: during shutdown that is our
// own replacement (or simply our aborted request unwinding) and is swallowed;
// while running it is a genuine duplicate-consumer misconfiguration and must
// surface. Everything else is fatal outright.
func (s *Session) classify(err error) error {
	conflict := telegram.IsConflict(err)

	if !s.running() && (conflict || errors.Is(err, context.Canceled)) {
		return nil
	}

	if conflict {
		metrics.RecordPollError(s.name, "conflict")
		return apperrors.NewConflictError(s.name, err)
	}

	metrics.RecordPollError(s.name, "transport")
	return apperrors.NewTransportError(s.name, err)
}

func (s *Session) advanceCursor(batch []telegram.Update) {
	maxID := batch[0].ID
	for _, u := range batch[1:] {
		if u.ID > maxID {
			maxID = u.ID
		}
	}

	s.cursor.Store(maxID + 1)
	metrics.SetCursor(s.name, maxID+1)
}

func (s *Session) transition(from, to State) bool {
	if !IsTransitionAllowed(from, to) {
		return false
	}

	return s.state.CompareAndSwap(int32(from), int32(to))
}
