package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalyst-forge/forge-core/domain"
	"github.com/catalyst-forge/forge-core/ferrors"
)

type memRunners struct {
	byUUID map[string]*domain.Runner
}

func newMemRunners() *memRunners { return &memRunners{byUUID: map[string]*domain.Runner{}} }

func (m *memRunners) Register(_ context.Context, r *domain.Runner) error {
	cp := *r
	m.byUUID[r.UUID] = &cp
	return nil
}

func (m *memRunners) Get(_ context.Context, id string) (*domain.Runner, bool, error) {
	r, ok := m.byUUID[id]
	return r, ok, nil
}

func (m *memRunners) ListOnlineWithLabels(_ context.Context, ownerID, repoID int64) ([]*domain.Runner, error) {
	var out []*domain.Runner
	for _, r := range m.byUUID {
		if r.Status != domain.RunnerOnline {
			continue
		}
		if r.OwnerID != ownerID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memRunners) Heartbeat(_ context.Context, id string, seenAt int64) error {
	if r, ok := m.byUUID[id]; ok {
		_ = seenAt
		r.Status = domain.RunnerOnline
	}
	return nil
}

func (m *memRunners) ListStale(_ context.Context, cutoff int64) ([]*domain.Runner, error) {
	var out []*domain.Runner
	for _, r := range m.byUUID {
		if r.LastSeen.Unix() < cutoff && r.Status != domain.RunnerOffline {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRunners) SetStatus(_ context.Context, id string, status domain.RunnerStatus) error {
	if r, ok := m.byUUID[id]; ok {
		r.Status = status
	}
	return nil
}

type memJobs struct {
	byID   map[int64]*domain.Job
	nextID int64
}

func newMemJobs() *memJobs { return &memJobs{byID: map[int64]*domain.Job{}} }

func (m *memJobs) Create(_ context.Context, job *domain.Job) (int64, error) {
	m.nextID++
	job.ID = m.nextID
	cp := *job
	m.byID[job.ID] = &cp
	return job.ID, nil
}

func (m *memJobs) Get(_ context.Context, id int64) (*domain.Job, bool, error) {
	j, ok := m.byID[id]
	return j, ok, nil
}

func (m *memJobs) ListQueued(_ context.Context, limit int) ([]*domain.Job, error) {
	var out []*domain.Job
	for _, j := range m.byID {
		if j.Status == domain.RunStatusQueued {
			out = append(out, j)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memJobs) ListByRun(_ context.Context, runID int64) ([]*domain.Job, error) {
	var out []*domain.Job
	for _, j := range m.byID {
		if j.RunID == runID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memJobs) ListByRunner(_ context.Context, runnerID string) ([]*domain.Job, error) {
	var out []*domain.Job
	for _, j := range m.byID {
		if j.RunnerID != nil && *j.RunnerID == runnerID && j.Status == domain.RunStatusInProgress {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memJobs) ClaimForRunner(_ context.Context, jobID int64, runnerID string) (bool, error) {
	j, ok := m.byID[jobID]
	if !ok || j.Status != domain.RunStatusQueued {
		return false, nil
	}
	j.Status = domain.RunStatusInProgress
	j.RunnerID = &runnerID
	return true, nil
}

func (m *memJobs) ReclaimFromRunner(_ context.Context, jobID int64) error {
	j, ok := m.byID[jobID]
	if !ok {
		return ferrors.New(ferrors.KindObjectNotFound, "ReclaimFromRunner", "no such job")
	}
	j.Status = domain.RunStatusQueued
	j.RunnerID = nil
	return nil
}

func (m *memJobs) UpdateStatus(_ context.Context, jobID int64, status domain.RunStatus, conclusion *domain.Conclusion) error {
	j, ok := m.byID[jobID]
	if !ok {
		return ferrors.New(ferrors.KindObjectNotFound, "UpdateStatus", "no such job")
	}
	j.Status = status
	j.Conclusion = conclusion
	return nil
}

type memRuns struct {
	byID   map[int64]*domain.WorkflowRun
	nextID int64
}

func newMemRuns() *memRuns { return &memRuns{byID: map[int64]*domain.WorkflowRun{}} }

func (m *memRuns) Create(_ context.Context, run *domain.WorkflowRun) (int64, error) {
	m.nextID++
	run.ID = m.nextID
	run.RunNumber = m.nextID
	cp := *run
	m.byID[run.ID] = &cp
	return run.ID, nil
}

func (m *memRuns) Get(_ context.Context, id int64) (*domain.WorkflowRun, bool, error) {
	r, ok := m.byID[id]
	return r, ok, nil
}

func (m *memRuns) UpdateStatus(_ context.Context, id int64, status domain.RunStatus, conclusion *domain.Conclusion) error {
	r, ok := m.byID[id]
	if !ok {
		return ferrors.New(ferrors.KindObjectNotFound, "UpdateStatus", "no such run")
	}
	r.Status = status
	r.Conclusion = conclusion
	return nil
}

func TestDispatchNextPrefersRepoScopedRunner(t *testing.T) {
	ctx := context.Background()
	jobs := newMemJobs()
	runners := newMemRunners()

	jobID, err := jobs.Create(ctx, &domain.Job{RunID: 1, Labels: []string{"linux"}, Status: domain.RunStatusQueued})
	require.NoError(t, err)

	require.NoError(t, runners.Register(ctx, &domain.Runner{
		UUID: "org-runner", OwnerID: 5, RepositoryID: 0,
		Labels: []string{"linux", "x64"}, Status: domain.RunnerOnline,
	}))
	require.NoError(t, runners.Register(ctx, &domain.Runner{
		UUID: "repo-runner", OwnerID: 5, RepositoryID: 10,
		Labels: []string{"linux", "x64"}, Status: domain.RunnerOnline,
	}))

	c := NewController(nil, nil, nil, jobs, runners, nil)
	n, err := c.DispatchNext(ctx, 5, 10, 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	job, ok, err := jobs.Get(ctx, jobID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, domain.RunStatusInProgress, job.Status)
	require.Equal(t, "repo-runner", *job.RunnerID)
}

func TestDispatchNextSkipsJobWithNoMatchingLabels(t *testing.T) {
	ctx := context.Background()
	jobs := newMemJobs()
	runners := newMemRunners()

	_, err := jobs.Create(ctx, &domain.Job{RunID: 1, Labels: []string{"gpu"}, Status: domain.RunStatusQueued})
	require.NoError(t, err)
	require.NoError(t, runners.Register(ctx, &domain.Runner{
		UUID: "cpu-runner", OwnerID: 5, RepositoryID: 10,
		Labels: []string{"linux"}, Status: domain.RunnerOnline,
	}))

	c := NewController(nil, nil, nil, jobs, runners, nil)
	n, err := c.DispatchNext(ctx, 5, 10, 10)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestTransitionRunStatusRejectsBackwardsTransition(t *testing.T) {
	ctx := context.Background()
	runs := newMemRuns()
	runID, err := runs.Create(ctx, &domain.WorkflowRun{RepoID: 1, Status: domain.RunStatusCompleted})
	require.NoError(t, err)
	run, _, _ := runs.Get(ctx, runID)

	c := NewController(nil, nil, runs, nil, nil, nil)
	err = c.TransitionRunStatus(ctx, run, domain.RunStatusQueued, nil)
	require.Error(t, err)
	require.True(t, ferrors.Is(err, ferrors.KindInvalidState))
}

func TestTransitionRunStatusRequiresConclusionOnCompletion(t *testing.T) {
	ctx := context.Background()
	runs := newMemRuns()
	runID, err := runs.Create(ctx, &domain.WorkflowRun{RepoID: 1, Status: domain.RunStatusInProgress})
	require.NoError(t, err)
	run, _, _ := runs.Get(ctx, runID)

	c := NewController(nil, nil, runs, nil, nil, nil)
	err = c.TransitionRunStatus(ctx, run, domain.RunStatusCompleted, nil)
	require.Error(t, err)

	success := domain.ConclusionSuccess
	require.NoError(t, c.TransitionRunStatus(ctx, run, domain.RunStatusCompleted, &success))
	require.Equal(t, domain.RunStatusCompleted, run.Status)
}

func TestReapStaleRunnersReclaimsAssignedJobs(t *testing.T) {
	ctx := context.Background()
	jobs := newMemJobs()
	runners := newMemRunners()

	jobID, err := jobs.Create(ctx, &domain.Job{RunID: 1, Status: domain.RunStatusQueued})
	require.NoError(t, err)
	require.NoError(t, runners.Register(ctx, &domain.Runner{UUID: "r1", Status: domain.RunnerOnline}))
	ok, err := jobs.ClaimForRunner(ctx, jobID, "r1")
	require.NoError(t, err)
	require.True(t, ok)

	runners.byUUID["r1"].LastSeen = runners.byUUID["r1"].LastSeen.Add(-1000 * 3600) // force stale

	reaped, err := ReapStaleRunners(ctx, runners, jobs, nil, 0)
	require.NoError(t, err)
	require.Equal(t, 1, reaped)

	job, _, _ := jobs.Get(ctx, jobID)
	require.Equal(t, domain.RunStatusQueued, job.Status)
	require.Nil(t, job.RunnerID)

	r, _, _ := runners.Get(ctx, "r1")
	require.Equal(t, domain.RunnerOffline, r.Status)
}
