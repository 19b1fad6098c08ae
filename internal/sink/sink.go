// Package sink implements the delivery backends a polling session can emit
// to: a Redis stream, an asynq task queue, and a Postgres journal, plus
// fanout and dedup composition.
package sink

import (
	"github.com/nkmitin/tg-relay/internal/poller"
)

// Compile-time checks that every backend satisfies the poller's contract.
var (
	_ poller.Sink = (*Stream)(nil)
	_ poller.Sink = (*Queue)(nil)
	_ poller.Sink = (*Journal)(nil)
	_ poller.Sink = (*Fanout)(nil)
	_ poller.Sink = (*Dedup)(nil)
)
