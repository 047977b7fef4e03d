package actions

import (
	"context"

	"github.com/catalyst-forge/forge-core/domain"
)

// EventSink receives run/job state transitions. The control plane only
// produces events; the embedding process chooses the transport (NATS, an
// in-process channel, a webhook dispatcher), per spec.md §1's collaborators-
// as-interfaces rule.
type EventSink interface {
	RunChanged(ctx context.Context, event domain.RunEvent)
	JobChanged(ctx context.Context, event domain.JobEvent)
	JobReclaimed(ctx context.Context, event domain.JobEvent)
}

// NopEventSink discards every event. Useful as a default when the
// embedding process has not wired a real sink yet.
type NopEventSink struct{}

func (NopEventSink) RunChanged(context.Context, domain.RunEvent)   {}
func (NopEventSink) JobChanged(context.Context, domain.JobEvent)   {}
func (NopEventSink) JobReclaimed(context.Context, domain.JobEvent) {}
