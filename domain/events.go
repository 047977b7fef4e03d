package domain

import "time"

// RunEvent is emitted whenever a WorkflowRun changes status. Consumers
// (notification services, dashboards) receive these through an
// actions.EventSink implementation chosen by the embedding process; the
// core only produces the event, it never transports it.
type RunEvent struct {
	EventID    string      `json:"event_id"`
	Timestamp  time.Time   `json:"timestamp"`
	RunID      int64       `json:"run_id"`
	RepoID     int64       `json:"repo_id"`
	Status     RunStatus   `json:"status"`
	Conclusion *Conclusion `json:"conclusion,omitempty"`
}

// JobEvent is emitted whenever a Job changes status, including dispatch to
// a runner and reclaim after heartbeat loss.
type JobEvent struct {
	EventID   string    `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
	JobID     int64     `json:"job_id"`
	RunID     int64     `json:"run_id"`
	Status    RunStatus `json:"status"`
	RunnerID  *string   `json:"runner_id,omitempty"`
}
