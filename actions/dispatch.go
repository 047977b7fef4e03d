package actions

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/catalyst-forge/forge-core/dao"
	"github.com/catalyst-forge/forge-core/domain"
	"github.com/catalyst-forge/forge-core/ferrors"
	"github.com/catalyst-forge/forge-core/gitexec"
)

// Controller is ActionsCtl: it turns pushed workflow files into queued
// runs, dispatches queued jobs to matching runners, and enforces the run
// state machine's invariants.
type Controller struct {
	Git       *gitexec.Git
	Workflows dao.Workflows
	Runs      dao.WorkflowRuns
	Jobs      dao.Jobs
	Runners   dao.Runners
	Sink      EventSink
}

// NewController constructs a Controller. sink may be nil, in which case
// events are discarded via NopEventSink.
func NewController(git *gitexec.Git, workflows dao.Workflows, runs dao.WorkflowRuns, jobs dao.Jobs, runners dao.Runners, sink EventSink) *Controller {
	if sink == nil {
		sink = NopEventSink{}
	}
	return &Controller{Git: git, Workflows: workflows, Runs: runs, Jobs: jobs, Runners: runners, Sink: sink}
}

// CreateRunsForPush implements spec.md §4.5's creation path: enumerate
// .github/workflows/*.yml at commitSHA via GitExec, parse each, and create
// one queued WorkflowRun (with its Jobs) per workflow whose `on:` set
// includes trigger.
func (c *Controller) CreateRunsForPush(
	ctx context.Context,
	repoID, actorID int64,
	repoPath, commitSHA, branch string,
	trigger domain.TriggerEvent,
) ([]*domain.WorkflowRun, error) {
	paths, err := c.listWorkflowFiles(ctx, repoPath, commitSHA)
	if err != nil {
		return nil, err
	}

	var created []*domain.WorkflowRun
	for _, path := range paths {
		source, err := c.readFileAtCommit(ctx, repoPath, commitSHA, path)
		if err != nil {
			return nil, err
		}

		parsed, err := ParseWorkflow(source)
		if err != nil {
			continue // malformed workflow file: skip rather than fail the whole push
		}
		if !parsed.MatchesTrigger(string(trigger)) {
			continue
		}

		workflowID, err := c.Workflows.Upsert(ctx, &domain.Workflow{RepoID: repoID, FilePath: path, Source: source, IsActive: true})
		if err != nil {
			return nil, ferrors.Wrap(err, ferrors.KindBackendError, "CreateRunsForPush")
		}

		run := &domain.WorkflowRun{
			WorkflowID:   workflowID,
			RepoID:       repoID,
			TriggerEvent: trigger,
			CommitSHA:    commitSHA,
			Branch:       branch,
			ActorID:      actorID,
			Status:       domain.RunStatusQueued,
			CreatedAt:    time.Now(),
		}
		runID, err := c.Runs.Create(ctx, run)
		if err != nil {
			return nil, ferrors.Wrap(err, ferrors.KindBackendError, "CreateRunsForPush")
		}
		run.ID = runID

		for name, job := range parsed.Jobs {
			_, err := c.Jobs.Create(ctx, &domain.Job{
				RunID:  runID,
				Name:   name,
				Labels: job.RunsOn,
				Status: domain.RunStatusQueued,
			})
			if err != nil {
				return nil, ferrors.Wrap(err, ferrors.KindBackendError, "CreateRunsForPush")
			}
		}

		c.Sink.RunChanged(ctx, domain.RunEvent{RunID: runID, RepoID: repoID, Status: domain.RunStatusQueued})
		created = append(created, run)
	}
	return created, nil
}

func (c *Controller) listWorkflowFiles(ctx context.Context, repoPath, commitSHA string) ([]string, error) {
	res, err := c.Git.Run(ctx, repoPath, []string{"ls-tree", "-r", "--name-only", commitSHA, "--", ".github/workflows"}, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(res.Stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, ".yml") || strings.HasSuffix(line, ".yaml") {
			out = append(out, line)
		}
	}
	return out, nil
}

func (c *Controller) readFileAtCommit(ctx context.Context, repoPath, commitSHA, path string) ([]byte, error) {
	res, err := c.Git.Run(ctx, repoPath, []string{"show", fmt.Sprintf("%s:%s", commitSHA, path)}, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	return res.Stdout, nil
}

// TransitionRunStatus enforces spec.md §4.5's monotonic run state machine:
// queued → in_progress → completed, where a queued run may also go straight
// to completed. Same-state and backward transitions are rejected with
// InvalidState. A transition to completed requires a conclusion, which is
// recorded with it; CompletedAt is not set by this method.
func (c *Controller) TransitionRunStatus(ctx context.Context, run *domain.WorkflowRun, newStatus domain.RunStatus, conclusion *domain.Conclusion) error {
	if !validRunTransition(run.Status, newStatus) {
		return ferrors.New(ferrors.KindInvalidState, "TransitionRunStatus",
			fmt.Sprintf("cannot transition run from %s to %s", run.Status, newStatus))
	}
	if newStatus == domain.RunStatusCompleted && conclusion == nil {
		return ferrors.New(ferrors.KindInvalidInput, "TransitionRunStatus", "completed status requires a conclusion")
	}

	if err := c.Runs.UpdateStatus(ctx, run.ID, newStatus, conclusion); err != nil {
		return ferrors.Wrap(err, ferrors.KindBackendError, "TransitionRunStatus")
	}
	run.Status = newStatus
	run.Conclusion = conclusion

	c.Sink.RunChanged(ctx, domain.RunEvent{RunID: run.ID, RepoID: run.RepoID, Status: newStatus, Conclusion: conclusion})
	return nil
}

func validRunTransition(from, to domain.RunStatus) bool {
	switch from {
	case domain.RunStatusQueued:
		return to == domain.RunStatusInProgress || to == domain.RunStatusCompleted
	case domain.RunStatusInProgress:
		return to == domain.RunStatusCompleted
	default:
		return false
	}
}

// DispatchNext attempts to assign one queued job to an online runner with a
// matching label superset, per spec.md §4.5. It tries repository-scoped
// runners before org-scoped ones, retrying against the next queued job
// whenever the optimistic claim loses a race to another dispatcher.
func (c *Controller) DispatchNext(ctx context.Context, ownerID, repoID int64, limit int) (int, error) {
	queued, err := c.Jobs.ListQueued(ctx, limit)
	if err != nil {
		return 0, ferrors.Wrap(err, ferrors.KindBackendError, "DispatchNext")
	}

	dispatched := 0
	for _, job := range queued {
		runner, err := c.findRunnerFor(ctx, ownerID, repoID, job)
		if err != nil {
			return dispatched, err
		}
		if runner == nil {
			continue
		}

		ok, err := c.Jobs.ClaimForRunner(ctx, job.ID, runner.UUID)
		if err != nil {
			return dispatched, ferrors.Wrap(err, ferrors.KindBackendError, "DispatchNext")
		}
		if !ok {
			continue // lost the race; another dispatcher claimed it first
		}

		dispatched++
		c.Sink.JobChanged(ctx, domain.JobEvent{JobID: job.ID, RunID: job.RunID, Status: domain.RunStatusInProgress, RunnerID: &runner.UUID})
	}
	return dispatched, nil
}

// findRunnerFor picks the first online runner whose labels are a superset
// of job's required labels, preferring repository-scoped runners (scope
// priority: repo first, org second). Within a scope the first matching
// runner in the order ListOnlineWithLabels returns wins; that order is not
// defined by the dao contract.
func (c *Controller) findRunnerFor(ctx context.Context, ownerID, repoID int64, job *domain.Job) (*domain.Runner, error) {
	candidates, err := c.Runners.ListOnlineWithLabels(ctx, ownerID, repoID)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindBackendError, "findRunnerFor")
	}

	var repoScoped, orgScoped []*domain.Runner
	for _, r := range candidates {
		if !LabelsSubset(job.Labels, r.Labels) {
			continue
		}
		if r.RepositoryID == repoID {
			repoScoped = append(repoScoped, r)
		} else if job.OrgScoped {
			orgScoped = append(orgScoped, r)
		}
	}
	if len(repoScoped) > 0 {
		return repoScoped[0], nil
	}
	if len(orgScoped) > 0 {
		return orgScoped[0], nil
	}
	return nil, nil
}

// EnforceTimeouts transitions an in-progress run that has exceeded
// timeoutMinutes since StartedAt to completed with conclusion cancelled, per spec.md §4.5's "the enforcing
// party is the dispatcher that owns the job" rule.
func (c *Controller) EnforceTimeouts(ctx context.Context, run *domain.WorkflowRun, timeoutMinutes int) error {
	if run.Status != domain.RunStatusInProgress || run.StartedAt == nil {
		return nil
	}
	if timeoutMinutes <= 0 {
		return nil
	}
	deadline := run.StartedAt.Add(time.Duration(timeoutMinutes) * time.Minute)
	if time.Now().Before(deadline) {
		return nil
	}

	cancelled := domain.ConclusionCancelled
	return c.TransitionRunStatus(ctx, run, domain.RunStatusCompleted, &cancelled)
}
