package main

import (
	"context"
	"log/slog"

	"github.com/catalyst-forge/forge-core/domain"
)

// slogEventSink logs RunEvent/JobEvent transitions via structured logging.
// A production deployment swaps this for a sink that fans out to a
// notification service or dashboard; the core never transports events
// itself.
type slogEventSink struct {
	logger *slog.Logger
}

func (s slogEventSink) RunChanged(ctx context.Context, event domain.RunEvent) {
	s.logger.Info("run changed", "run_id", event.RunID, "repo_id", event.RepoID, "status", event.Status)
}

func (s slogEventSink) JobChanged(ctx context.Context, event domain.JobEvent) {
	s.logger.Info("job changed", "job_id", event.JobID, "run_id", event.RunID, "status", event.Status)
}

func (s slogEventSink) JobReclaimed(ctx context.Context, event domain.JobEvent) {
	s.logger.Warn("job reclaimed after heartbeat loss", "job_id", event.JobID, "run_id", event.RunID)
}
