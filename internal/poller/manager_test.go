package poller_test

import (
	"context"
	"testing"
	"time"

	"github.com/nkmitin/tg-relay/internal/poller"
	"github.com/nkmitin/tg-relay/internal/telegram"
)

func blockingSource() sourceFunc {
	return func(ctx context.Context, req telegram.GetUpdatesRequest) (*telegram.UpdatesResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func TestManagerWaitReturnsFirstFatalError(t *testing.T) {
	healthy := poller.NewSession("healthy", poller.Config{}, blockingSource(), &captureSink{}, testLogger())
	failing := poller.NewSession("failing", poller.Config{}, sourceFunc(
		func(ctx context.Context, req telegram.GetUpdatesRequest) (*telegram.UpdatesResponse, error) {
			return nil, conflictErr()
		}), &captureSink{}, testLogger())

	m := poller.NewManager(testLogger())
	m.Add(healthy)
	m.Add(failing)

	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("start all: %v", err)
	}
	defer m.StopAll()

	err := m.Wait(context.Background())
	if err == nil {
		t.Fatal("expected the failing session's error")
	}
}

func TestManagerWaitUnblocksOnContextCancel(t *testing.T) {
	s := poller.NewSession("steady", poller.Config{}, blockingSource(), &captureSink{}, testLogger())

	m := poller.NewManager(testLogger())
	m.Add(s)

	if err := m.StartAll(context.Background()); err != nil {
		t.Fatalf("start all: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	if err := m.Wait(ctx); err != nil {
		t.Fatalf("wait after cancel: %v", err)
	}

	m.StopAll()

	if got := s.State(); got != poller.StateStopped {
		t.Errorf("state after StopAll = %s, want stopped", got)
	}
}
