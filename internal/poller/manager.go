package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager runs several independent polling sessions. Sessions share nothing:
// each owns its cursor and lifecycle; the remote side enforces the
// one-consumer-per-token rule.
type Manager struct {
	log *slog.Logger

	mu       sync.Mutex
	sessions []*Session
}

// NewManager creates an empty Manager.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}

	return &Manager{log: log}
}

// Add registers a session. Sessions must be added before StartAll.
func (m *Manager) Add(s *Session) {
	if s == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, s)
}

// Sessions returns the registered sessions.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*Session(nil), m.sessions...)
}

// StartAll starts every registered session. If any fails to start, the ones
// already started are stopped and the error is returned.
func (m *Manager) StartAll(ctx context.Context) error {
	for i, s := range m.Sessions() {
		if err := s.Start(ctx); err != nil {
			m.log.Error("failed to start session", slog.String("session", s.Name()), slog.Any("error", err))
			for _, started := range m.Sessions()[:i] {
				started.Stop()
			}
			return fmt.Errorf("start session %q: %w", s.Name(), err)
		}
	}

	return nil
}

// Wait blocks until ctx is canceled or a session terminates with a fatal
// error, and returns that error (nil on cancellation). Sessions that stop
// cleanly do not unblock Wait.
func (m *Manager) Wait(ctx context.Context) error {
	sessions := m.Sessions()

	fatal := make(chan error, len(sessions))
	for _, s := range sessions {
		go func(s *Session) {
			<-s.Done()
			if err := s.Err(); err != nil {
				fatal <- err
			}
		}(s)
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-fatal:
		return err
	}
}

// StopAll requests shutdown of every session and waits for their loops to
// unwind.
func (m *Manager) StopAll() {
	sessions := m.Sessions()

	for _, s := range sessions {
		s.Stop()
	}
	for _, s := range sessions {
		<-s.Done()
	}

	m.log.Info("all polling sessions stopped", slog.Int("count", len(sessions)))
}
