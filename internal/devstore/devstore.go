// Package devstore provides in-memory implementations of every dao
// interface, for running the forge standalone (cmd/forged's default mode)
// without a relational store. Per spec.md §1 the relational store is an
// external collaborator behind the dao interfaces; a production deployment
// replaces this package with a real database-backed implementation.
package devstore

import (
	"context"
	"sync"
	"time"

	"github.com/catalyst-forge/forge-core/dao"
	"github.com/catalyst-forge/forge-core/domain"
	"github.com/catalyst-forge/forge-core/ferrors"
)

// Store bundles every in-memory dao implementation behind a single mutex,
// mirroring the granularity of the teacher's fs/fstest in-memory
// filesystem fixture used across the pack's test suites.
type Store struct {
	mu sync.Mutex

	repos     map[int64]*domain.Repository
	keys      map[string]int64 // fingerprint -> user id
	lfsRows   map[string]*domain.LFSObject // "repoID:oid"
	workflows map[string]*domain.Workflow  // "repoID:filePath"
	runs      map[int64]*domain.WorkflowRun
	jobs      map[int64]*domain.Job
	runners   map[string]*domain.Runner
	secrets   map[string]*domain.Secret // "ownerID:repoID:name"

	bandwidth []bandwidthEntry

	nextRepoID    int64
	nextWorkflow  int64
	nextRunID     int64
	nextJobID     int64
	nextRunNumber map[int64]int64
}

type bandwidthEntry struct {
	repoID    int64
	operation string
	bytes     int64
	at        int64
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		repos:         map[int64]*domain.Repository{},
		keys:          map[string]int64{},
		lfsRows:       map[string]*domain.LFSObject{},
		workflows:     map[string]*domain.Workflow{},
		runs:          map[int64]*domain.WorkflowRun{},
		jobs:          map[int64]*domain.Job{},
		runners:       map[string]*domain.Runner{},
		secrets:       map[string]*domain.Secret{},
		nextRunNumber: map[int64]int64{},
	}
}

func lfsKey(repoID int64, oid string) string { return itoa(repoID) + ":" + oid }
func secretKey(ownerID, repoID int64, name string) string {
	return itoa(ownerID) + ":" + itoa(repoID) + ":" + name
}

func unixSeconds(sec int64) time.Time { return time.Unix(sec, 0) }

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// --- dao.Repositories ---

func (s *Store) Get(ctx context.Context, id int64) (*domain.Repository, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.repos[id]
	return r, ok, nil
}

func (s *Store) GetByOwnerAndName(ctx context.Context, ownerID int64, name string) (*domain.Repository, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.repos {
		if r.OwnerID == ownerID && r.Name == name {
			return r, true, nil
		}
	}
	return nil, false, nil
}

// CreateRepository registers a new repository; not part of dao.Repositories
// but needed to seed the store in standalone mode.
func (s *Store) CreateRepository(r *domain.Repository) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRepoID++
	r.ID = s.nextRepoID
	cp := *r
	s.repos[r.ID] = &cp
	return r.ID
}

// ListRepositories returns every known repository, used by cmd/forged's
// background GC and dispatch loops to enumerate scope in standalone mode.
func (s *Store) ListRepositories() []*domain.Repository {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Repository, 0, len(s.repos))
	for _, r := range s.repos {
		out = append(out, r)
	}
	return out
}

// RegisterKey associates fingerprint with userID, for sshserver.KeyResolver.
func (s *Store) RegisterKey(fingerprint string, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[fingerprint] = userID
}

// ResolveByFingerprint implements sshserver.KeyResolver.
func (s *Store) ResolveByFingerprint(ctx context.Context, fingerprint string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.keys[fingerprint]
	return id, ok, nil
}

var _ dao.Repositories = (*Store)(nil)

// --- dao.LFSObjects ---

func (s *Store) GetLFSObject(ctx context.Context, repoID int64, oid string) (*domain.LFSObject, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.lfsRows[lfsKey(repoID, oid)]
	return row, ok, nil
}

func (s *Store) UpsertLFSObject(ctx context.Context, obj *domain.LFSObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *obj
	s.lfsRows[lfsKey(obj.RepoID, obj.OID)] = &cp
	return nil
}

func (s *Store) MarkLFSObjectPresent(ctx context.Context, repoID int64, oid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.lfsRows[lfsKey(repoID, oid)]
	if !ok {
		return ferrors.New(ferrors.KindObjectNotFound, "MarkPresent", "no such row")
	}
	row.Present = true
	row.ChecksumVerified = true
	return nil
}

func (s *Store) DeleteLFSObject(ctx context.Context, repoID int64, oid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lfsRows, lfsKey(repoID, oid))
	return nil
}

func (s *Store) SumSizeForRepo(ctx context.Context, repoID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, row := range s.lfsRows {
		if row.RepoID == repoID && row.Present {
			sum += row.Size
		}
	}
	return sum, nil
}

func (s *Store) SumSizeForOwner(ctx context.Context, ownerID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, row := range s.lfsRows {
		repo, ok := s.repos[row.RepoID]
		if ok && repo.OwnerID == ownerID && row.Present {
			sum += row.Size
		}
	}
	return sum, nil
}

// lfsObjectsAdapter narrows Store to dao.LFSObjects's method names, since
// Get/Upsert/etc. would otherwise collide across the bundled interfaces.
type lfsObjectsAdapter struct{ s *Store }

func (a lfsObjectsAdapter) Get(ctx context.Context, repoID int64, oid string) (*domain.LFSObject, bool, error) {
	return a.s.GetLFSObject(ctx, repoID, oid)
}
func (a lfsObjectsAdapter) Upsert(ctx context.Context, obj *domain.LFSObject) error {
	return a.s.UpsertLFSObject(ctx, obj)
}
func (a lfsObjectsAdapter) MarkPresent(ctx context.Context, repoID int64, oid string) error {
	return a.s.MarkLFSObjectPresent(ctx, repoID, oid)
}
func (a lfsObjectsAdapter) Delete(ctx context.Context, repoID int64, oid string) error {
	return a.s.DeleteLFSObject(ctx, repoID, oid)
}
func (a lfsObjectsAdapter) SumSizeForRepo(ctx context.Context, repoID int64) (int64, error) {
	return a.s.SumSizeForRepo(ctx, repoID)
}
func (a lfsObjectsAdapter) SumSizeForOwner(ctx context.Context, ownerID int64) (int64, error) {
	return a.s.SumSizeForOwner(ctx, ownerID)
}

// LFSObjects returns the dao.LFSObjects view of this store.
func (s *Store) LFSObjects() dao.LFSObjects { return lfsObjectsAdapter{s} }

var _ dao.LFSObjects = lfsObjectsAdapter{}
