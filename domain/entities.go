// Package domain provides canonical type definitions for the forge's
// persisted entities — the shapes consumed and produced by the DAO
// interfaces in package dao. The core treats Issue/PullRequest/Comment/
// Label/Milestone opaquely; only the types the core subsystems actually
// read or write are defined here.
package domain

import "time"

// Repository is a bare Git repository tracked by the forge.
type Repository struct {
	ID            int64     `json:"id" db:"id"`
	OwnerID       int64     `json:"owner_id" db:"owner_id"`
	Name          string    `json:"name" db:"name" validate:"required"`
	DefaultBranch string    `json:"default_branch" db:"default_branch"`
	IsPrivate     bool      `json:"is_private" db:"is_private"`
	IsArchived    bool      `json:"is_archived" db:"is_archived"`
	SizeBytes     int64     `json:"size_bytes" db:"size_bytes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// User is a forge account.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Login     string    `json:"login" db:"login" validate:"required"`
	IsAdmin   bool      `json:"is_admin" db:"is_admin"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SSHKey is a public key belonging to a User, used for SSH authentication.
type SSHKey struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	Blob        []byte    `json:"-" db:"blob"`
	Fingerprint string    `json:"fingerprint" db:"fingerprint" validate:"required"`
	Algorithm   string    `json:"algorithm" db:"algorithm"`
	Comment     string    `json:"comment" db:"comment"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Backend identifies which storage backend holds an LFSObject's content.
type Backend string

const (
	// BackendFilesystem stores object content on local disk.
	BackendFilesystem Backend = "filesystem"

	// BackendS3 stores object content in an S3-compatible bucket.
	BackendS3 Backend = "s3"
)

// String returns the string representation of the Backend.
func (b Backend) String() string { return string(b) }

// LFSObject is a single Git-LFS object row, keyed by (RepoID, OID).
type LFSObject struct {
	RepoID           int64     `json:"repo_id" db:"repo_id"`
	OID              string    `json:"oid" db:"oid" validate:"required"`
	Size             int64     `json:"size" db:"size"`
	Backend          Backend   `json:"backend" db:"backend"`
	Present          bool      `json:"present" db:"present"`
	ChecksumVerified bool      `json:"checksum_verified" db:"checksum_verified"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// TriggerEvent is the class of event that started a WorkflowRun.
type TriggerEvent string

const (
	TriggerPush               TriggerEvent = "push"
	TriggerPullRequest        TriggerEvent = "pull_request"
	TriggerSchedule           TriggerEvent = "schedule"
	TriggerWorkflowDispatch   TriggerEvent = "workflow_dispatch"
	TriggerRepositoryDispatch TriggerEvent = "repository_dispatch"
)

// String returns the string representation of the TriggerEvent.
func (t TriggerEvent) String() string { return string(t) }

// RunStatus is the execution status of a WorkflowRun or Job.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
)

// String returns the string representation of the RunStatus.
func (s RunStatus) String() string { return string(s) }

// Conclusion is the terminal outcome of a completed WorkflowRun or Job.
type Conclusion string

const (
	ConclusionSuccess   Conclusion = "success"
	ConclusionFailure   Conclusion = "failure"
	ConclusionCancelled Conclusion = "cancelled"
	ConclusionTimedOut  Conclusion = "timed_out"
)

// String returns the string representation of the Conclusion.
func (c Conclusion) String() string { return string(c) }

// Workflow is a parsed CI workflow file committed into a repository.
type Workflow struct {
	ID       int64  `json:"id" db:"id"`
	RepoID   int64  `json:"repo_id" db:"repo_id"`
	FilePath string `json:"file_path" db:"file_path" validate:"required"`
	Source   []byte `json:"source" db:"source"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

// WorkflowRun is a single execution of a Workflow.
type WorkflowRun struct {
	ID           int64        `json:"id" db:"id"`
	WorkflowID   int64        `json:"workflow_id" db:"workflow_id"`
	RepoID       int64        `json:"repo_id" db:"repo_id"`
	RunNumber    int64        `json:"run_number" db:"run_number"`
	TriggerEvent TriggerEvent `json:"trigger_event" db:"trigger_event"`
	CommitSHA    string       `json:"commit_sha" db:"commit_sha" validate:"required"`
	Branch       string       `json:"branch" db:"branch"`
	ActorID      int64        `json:"actor_id" db:"actor_id"`
	Status       RunStatus    `json:"status" db:"status"`
	Conclusion   *Conclusion  `json:"conclusion,omitempty" db:"conclusion"`
	StartedAt    *time.Time   `json:"started_at,omitempty" db:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// Job is a single unit of work belonging to a WorkflowRun.
type Job struct {
	ID         int64       `json:"id" db:"id"`
	RunID      int64       `json:"run_id" db:"run_id"`
	Name       string      `json:"name" db:"name"`
	Labels     []string    `json:"labels" db:"labels"`
	Status     RunStatus   `json:"status" db:"status"`
	Conclusion *Conclusion `json:"conclusion,omitempty" db:"conclusion"`
	RunnerID   *string     `json:"runner_id,omitempty" db:"runner_id"`
	StartedAt  *time.Time  `json:"started_at,omitempty" db:"started_at"`
	// OrgScoped indicates the job may be matched against org-scoped
	// runners in addition to repository-scoped ones; used by the
	// dispatcher's priority ordering.
	OrgScoped bool `json:"org_scoped" db:"org_scoped"`
}

// RunnerStatus is the liveness status of a Runner.
type RunnerStatus string

const (
	RunnerOnline  RunnerStatus = "online"
	RunnerOffline RunnerStatus = "offline"
	RunnerBusy    RunnerStatus = "busy"
)

// String returns the string representation of the RunnerStatus.
func (s RunnerStatus) String() string { return string(s) }

// Runner is an external process registered to execute Jobs.
type Runner struct {
	UUID         string       `json:"uuid" db:"uuid"`
	Name         string       `json:"name" db:"name"`
	OwnerID      int64        `json:"owner_id" db:"owner_id"`
	RepositoryID int64        `json:"repository_id" db:"repository_id"` // 0 = org-scoped
	TokenHash    []byte       `json:"-" db:"token_hash"`
	Labels       []string     `json:"labels" db:"labels"`
	Status       RunnerStatus `json:"status" db:"status"`
	LastSeen     time.Time    `json:"last_seen" db:"last_seen"`
}

// Secret is a ciphertext-only credential scoped to an owner and optionally
// a repository. Plaintext is never stored on this type.
type Secret struct {
	OwnerID      int64  `json:"owner_id" db:"owner_id"`
	RepositoryID int64  `json:"repository_id" db:"repository_id"` // 0 = org-scoped
	Name         string `json:"name" db:"name" validate:"required"`
	Ciphertext   []byte `json:"-" db:"ciphertext"`
}
