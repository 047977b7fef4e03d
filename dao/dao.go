// Package dao declares the persistence contracts the core subsystems
// consume. Per spec.md §1, the relational store itself is out of scope —
// these interfaces are the "opaque DAO with defined operations" the core
// is built against; the embedding process supplies the implementation.
//
// Grounded on the teacher's secrets/core.Resolver/Provider style: small,
// context-first interfaces named after the capability they expose rather
// than the table they touch.
package dao

import (
	"context"

	"github.com/catalyst-forge/forge-core/domain"
)

// LFSObjects is the persistence contract LFSStore/LFSBatch depend on for
// the LFSObject row described in spec.md §3.
type LFSObjects interface {
	// Get returns the row for (repoID, oid), or ok=false if absent.
	Get(ctx context.Context, repoID int64, oid string) (obj *domain.LFSObject, ok bool, err error)

	// Upsert creates or updates the row for (repoID, oid).
	Upsert(ctx context.Context, obj *domain.LFSObject) error

	// MarkPresent sets present=true and checksum_verified=true atomically,
	// completing the Verify operation of spec.md §4.4.4.
	MarkPresent(ctx context.Context, repoID int64, oid string) error

	// Delete removes the row for (repoID, oid), used by GC.
	Delete(ctx context.Context, repoID int64, oid string) error

	// SumSizeForRepo returns the cumulative size in bytes of all present
	// objects for repoID, for quota enforcement.
	SumSizeForRepo(ctx context.Context, repoID int64) (int64, error)

	// SumSizeForOwner returns the cumulative size in bytes of all present
	// objects across every repository owned by ownerID.
	SumSizeForOwner(ctx context.Context, ownerID int64) (int64, error)
}

// BandwidthLedger records and aggregates LFS transfer bandwidth, per
// spec.md §4.4.5.
type BandwidthLedger interface {
	Record(ctx context.Context, repoID int64, operation string, bytes int64) error
	Aggregate(ctx context.Context, repoID int64, from, to int64) (uploaded, downloaded int64, err error)
}

// Repositories resolves repository scope metadata (quota limits, owner)
// needed by LFSStore admission checks.
type Repositories interface {
	Get(ctx context.Context, id int64) (*domain.Repository, bool, error)
	GetByOwnerAndName(ctx context.Context, ownerID int64, name string) (*domain.Repository, bool, error)
}

// Workflows is the persistence contract for Workflow rows.
type Workflows interface {
	Upsert(ctx context.Context, wf *domain.Workflow) (id int64, err error)
	Get(ctx context.Context, repoID int64, filePath string) (*domain.Workflow, bool, error)
	ListActive(ctx context.Context, repoID int64) ([]*domain.Workflow, error)
}

// WorkflowRuns is the persistence contract for WorkflowRun rows,
// including the atomic run_number allocation spec.md §4.5 requires.
type WorkflowRuns interface {
	// Create inserts run and atomically allocates its run_number as
	// COALESCE(MAX(run_number),0)+1 for its repository in the same
	// transaction as the row insert.
	Create(ctx context.Context, run *domain.WorkflowRun) (id int64, err error)

	Get(ctx context.Context, id int64) (*domain.WorkflowRun, bool, error)

	// UpdateStatus applies a status transition, enforcing monotonicity at
	// the storage layer as a defense in depth; ActionsCtl enforces it in
	// memory first.
	UpdateStatus(ctx context.Context, id int64, status domain.RunStatus, conclusion *domain.Conclusion) error
}

// Jobs is the persistence contract for Job rows, including the optimistic
// dispatch CAS spec.md §4.5 requires.
type Jobs interface {
	Create(ctx context.Context, job *domain.Job) (id int64, err error)
	Get(ctx context.Context, id int64) (*domain.Job, bool, error)
	ListQueued(ctx context.Context, limit int) ([]*domain.Job, error)
	ListByRun(ctx context.Context, runID int64) ([]*domain.Job, error)
	// ListByRunner returns jobs currently assigned to runnerID (status
	// in_progress), used by the heartbeat reaper to find work to reclaim.
	ListByRunner(ctx context.Context, runnerID string) ([]*domain.Job, error)

	// ClaimForRunner performs the optimistic "WHERE status = 'queued'"
	// update; ok=false means another dispatcher already claimed it.
	ClaimForRunner(ctx context.Context, jobID int64, runnerID string) (ok bool, err error)

	// ReclaimFromRunner transitions a job back to queued, clearing
	// runner_id, used when a runner's heartbeat is lost mid-job.
	ReclaimFromRunner(ctx context.Context, jobID int64) error

	UpdateStatus(ctx context.Context, jobID int64, status domain.RunStatus, conclusion *domain.Conclusion) error
}

// Runners is the persistence contract for Runner rows.
type Runners interface {
	Register(ctx context.Context, r *domain.Runner) error
	Get(ctx context.Context, id string) (*domain.Runner, bool, error)
	ListOnlineWithLabels(ctx context.Context, ownerID, repoID int64) ([]*domain.Runner, error)
	Heartbeat(ctx context.Context, id string, seenAt int64) error
	// ListStale returns runners whose last_seen predates the cutoff unix
	// timestamp and are not already offline.
	ListStale(ctx context.Context, cutoff int64) ([]*domain.Runner, error)
	SetStatus(ctx context.Context, id string, status domain.RunnerStatus) error
}

// Secrets is the persistence contract for ciphertext-only Secret rows.
type Secrets interface {
	Upsert(ctx context.Context, s *domain.Secret) error
	// Get prefers a repository-scoped row over an org-scoped one, per
	// spec.md §4.5.
	Get(ctx context.Context, ownerID, repoID int64, name string) (*domain.Secret, bool, error)
}
