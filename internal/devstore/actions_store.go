package devstore

import (
	"context"
	"time"

	"github.com/catalyst-forge/forge-core/dao"
	"github.com/catalyst-forge/forge-core/domain"
	"github.com/catalyst-forge/forge-core/ferrors"
)

// --- Workflows ---

type workflowsAdapter struct{ s *Store }

func (a workflowsAdapter) Upsert(ctx context.Context, wf *domain.Workflow) (int64, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	key := itoa(wf.RepoID) + ":" + wf.FilePath
	if existing, ok := s.workflows[key]; ok {
		wf.ID = existing.ID
	} else {
		s.nextWorkflow++
		wf.ID = s.nextWorkflow
	}
	cp := *wf
	s.workflows[key] = &cp
	return wf.ID, nil
}

func (a workflowsAdapter) Get(ctx context.Context, repoID int64, filePath string) (*domain.Workflow, bool, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[itoa(repoID)+":"+filePath]
	return wf, ok, nil
}

func (a workflowsAdapter) ListActive(ctx context.Context, repoID int64) ([]*domain.Workflow, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Workflow
	for _, wf := range s.workflows {
		if wf.RepoID == repoID && wf.IsActive {
			out = append(out, wf)
		}
	}
	return out, nil
}

// Workflows returns the dao.Workflows view of this store.
func (s *Store) Workflows() dao.Workflows { return workflowsAdapter{s} }

var _ dao.Workflows = workflowsAdapter{}

// --- WorkflowRuns ---

type workflowRunsAdapter struct{ s *Store }

func (a workflowRunsAdapter) Create(ctx context.Context, run *domain.WorkflowRun) (int64, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRunID++
	run.ID = s.nextRunID
	s.nextRunNumber[run.RepoID]++
	run.RunNumber = s.nextRunNumber[run.RepoID]
	cp := *run
	s.runs[run.ID] = &cp
	return run.ID, nil
}

func (a workflowRunsAdapter) Get(ctx context.Context, id int64) (*domain.WorkflowRun, bool, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	return run, ok, nil
}

func (a workflowRunsAdapter) UpdateStatus(ctx context.Context, id int64, status domain.RunStatus, conclusion *domain.Conclusion) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return ferrors.New(ferrors.KindObjectNotFound, "UpdateStatus", "no such run")
	}
	run.Status = status
	run.Conclusion = conclusion
	return nil
}

// WorkflowRuns returns the dao.WorkflowRuns view of this store.
func (s *Store) WorkflowRuns() dao.WorkflowRuns { return workflowRunsAdapter{s} }

var _ dao.WorkflowRuns = workflowRunsAdapter{}

// --- Jobs ---

type jobsAdapter struct{ s *Store }

func (a jobsAdapter) Create(ctx context.Context, job *domain.Job) (int64, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextJobID++
	job.ID = s.nextJobID
	cp := *job
	s.jobs[job.ID] = &cp
	return job.ID, nil
}

func (a jobsAdapter) Get(ctx context.Context, id int64) (*domain.Job, bool, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return job, ok, nil
}

func (a jobsAdapter) ListQueued(ctx context.Context, limit int) ([]*domain.Job, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Job
	for _, j := range s.jobs {
		if j.Status == domain.RunStatusQueued {
			out = append(out, j)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (a jobsAdapter) ListByRun(ctx context.Context, runID int64) ([]*domain.Job, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Job
	for _, j := range s.jobs {
		if j.RunID == runID {
			out = append(out, j)
		}
	}
	return out, nil
}

func (a jobsAdapter) ListByRunner(ctx context.Context, runnerID string) ([]*domain.Job, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Job
	for _, j := range s.jobs {
		if j.RunnerID != nil && *j.RunnerID == runnerID && j.Status == domain.RunStatusInProgress {
			out = append(out, j)
		}
	}
	return out, nil
}

func (a jobsAdapter) ClaimForRunner(ctx context.Context, jobID int64, runnerID string) (bool, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != domain.RunStatusQueued {
		return false, nil
	}
	job.Status = domain.RunStatusInProgress
	job.RunnerID = &runnerID
	return true, nil
}

func (a jobsAdapter) ReclaimFromRunner(ctx context.Context, jobID int64) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ferrors.New(ferrors.KindObjectNotFound, "ReclaimFromRunner", "no such job")
	}
	job.Status = domain.RunStatusQueued
	job.RunnerID = nil
	return nil
}

func (a jobsAdapter) UpdateStatus(ctx context.Context, jobID int64, status domain.RunStatus, conclusion *domain.Conclusion) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return ferrors.New(ferrors.KindObjectNotFound, "UpdateStatus", "no such job")
	}
	job.Status = status
	job.Conclusion = conclusion
	return nil
}

// Jobs returns the dao.Jobs view of this store.
func (s *Store) Jobs() dao.Jobs { return jobsAdapter{s} }

var _ dao.Jobs = jobsAdapter{}

// --- Runners ---

type runnersAdapter struct{ s *Store }

func (a runnersAdapter) Register(ctx context.Context, r *domain.Runner) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.runners[r.UUID] = &cp
	return nil
}

func (a runnersAdapter) Get(ctx context.Context, id string) (*domain.Runner, bool, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runners[id]
	return r, ok, nil
}

func (a runnersAdapter) ListOnlineWithLabels(ctx context.Context, ownerID, repoID int64) ([]*domain.Runner, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Runner
	for _, r := range s.runners {
		if r.Status != domain.RunnerOnline {
			continue
		}
		if r.OwnerID != ownerID {
			continue
		}
		if r.RepositoryID != 0 && r.RepositoryID != repoID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (a runnersAdapter) Heartbeat(ctx context.Context, id string, seenAt int64) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runners[id]
	if !ok {
		return ferrors.New(ferrors.KindObjectNotFound, "Heartbeat", "no such runner")
	}
	r.LastSeen = unixSeconds(seenAt)
	return nil
}

func (a runnersAdapter) ListStale(ctx context.Context, cutoff int64) ([]*domain.Runner, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Runner
	for _, r := range s.runners {
		if r.Status != domain.RunnerOffline && r.LastSeen.Unix() < cutoff {
			out = append(out, r)
		}
	}
	return out, nil
}

func (a runnersAdapter) SetStatus(ctx context.Context, id string, status domain.RunnerStatus) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runners[id]
	if !ok {
		return ferrors.New(ferrors.KindObjectNotFound, "SetStatus", "no such runner")
	}
	r.Status = status
	return nil
}

// Runners returns the dao.Runners view of this store.
func (s *Store) Runners() dao.Runners { return runnersAdapter{s} }

var _ dao.Runners = runnersAdapter{}

// --- Secrets ---

type secretsAdapter struct{ s *Store }

func (a secretsAdapter) Upsert(ctx context.Context, sec *domain.Secret) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sec
	s.secrets[secretKey(sec.OwnerID, sec.RepositoryID, sec.Name)] = &cp
	return nil
}

func (a secretsAdapter) Get(ctx context.Context, ownerID, repoID int64, name string) (*domain.Secret, bool, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if repoID != 0 {
		if sec, ok := s.secrets[secretKey(ownerID, repoID, name)]; ok {
			return sec, true, nil
		}
	}
	sec, ok := s.secrets[secretKey(ownerID, 0, name)]
	return sec, ok, nil
}

// Secrets returns the dao.Secrets view of this store.
func (s *Store) Secrets() dao.Secrets { return secretsAdapter{s} }

var _ dao.Secrets = secretsAdapter{}

// --- BandwidthLedger ---

type bandwidthLedgerAdapter struct{ s *Store }

func (a bandwidthLedgerAdapter) Record(ctx context.Context, repoID int64, operation string, bytes int64) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bandwidth = append(s.bandwidth, bandwidthEntry{repoID: repoID, operation: operation, bytes: bytes, at: time.Now().Unix()})
	return nil
}

func (a bandwidthLedgerAdapter) Aggregate(ctx context.Context, repoID int64, from, to int64) (uploaded, downloaded int64, err error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.bandwidth {
		if e.repoID != repoID || e.at < from || e.at > to {
			continue
		}
		switch e.operation {
		case "upload":
			uploaded += e.bytes
		case "download":
			downloaded += e.bytes
		}
	}
	return uploaded, downloaded, nil
}

// BandwidthLedger returns the dao.BandwidthLedger view of this store.
func (s *Store) BandwidthLedger() dao.BandwidthLedger { return bandwidthLedgerAdapter{s} }

var _ dao.BandwidthLedger = bandwidthLedgerAdapter{}
