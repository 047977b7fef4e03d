package lfs

import (
	"bufio"
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/catalyst-forge/forge-core/ferrors"
	"github.com/catalyst-forge/forge-core/gitexec"
)

// defaultMinAge is the minimum object age GC will consider for deletion,
// per spec.md §4.4.6, guarding against a race between a batch upload-request
// being issued and the object actually landing in a repository's tree.
const defaultMinAge = 24 * time.Hour

// RepoEnumerator enumerates the OIDs a single repository's LFS pointers
// reference, scoped to the Git history GC must not break.
type RepoEnumerator struct {
	Git *gitexec.Git
}

// ReferencedOIDs runs `git lfs ls-files --all` against repoPath and returns
// the set of OIDs it reports, per spec.md §4.4.6's reference-enumeration
// step. It shells out through the same confined, argument-validated
// executor every other git invocation in this repo uses.
func (e *RepoEnumerator) ReferencedOIDs(ctx context.Context, repoPath string) (map[string]bool, error) {
	res, err := e.Git.Run(ctx, repoPath, []string{"lfs", "ls-files", "--all", "--long"}, nil, 0, 0)
	if err != nil {
		return nil, err
	}

	refs := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(res.Stdout))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 64 {
			continue
		}
		oid := line[:64]
		if oidRE.MatchString(oid) {
			refs[oid] = true
		}
	}
	return refs, nil
}

// GCResult summarizes a single GC pass over a scope (a single backend).
type GCResult struct {
	Scanned      int
	Deleted      int
	DeletedOIDs  []string
	Retained     int
	SkippedYoung int
}

// GC runs the three-phase mark-and-sweep described in spec.md §4.4.6:
// enumerate the held object set S from the Backend, enumerate the
// referenced set R_i per repository from Git history, and delete
// S \ (union of R_i) objects older than MinAge. Only one pass may run per
// GC value at a time; a second call on the same GC blocks until the first
// completes rather than interleaving deletions. Two GC values sharing a
// Store are not serialized against each other.
type GC struct {
	Store      *Store
	Enumerator *RepoEnumerator
	MinAge     time.Duration // 0 = defaultMinAge

	mu sync.Mutex
}

// RepoScope names a repository GC must enumerate references from: its
// filesystem path (for the `git lfs ls-files` invocation) and its
// database ID (for matching LFSObject rows back to Backend entries, which
// are not themselves repo-scoped).
type RepoScope struct {
	RepoID int64
	Path   string
}

// Run performs a single GC pass across repos, deleting backend objects not
// referenced by any of them and older than MinAge. Run holds the GC
// value's exclusive lock for the duration of the pass.
func (g *GC) Run(ctx context.Context, repos []RepoScope) (*GCResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	minAge := g.MinAge
	if minAge <= 0 {
		minAge = defaultMinAge
	}

	referenced := make(map[string]bool)
	for _, repo := range repos {
		refs, err := g.Enumerator.ReferencedOIDs(ctx, repo.Path)
		if err != nil {
			return nil, ferrors.Wrapf(err, ferrors.KindBackendError, "GC.Run", "enumerating references for repo %d", repo.RepoID)
		}
		for oid := range refs {
			referenced[oid] = true
		}
	}

	return g.sweep(ctx, referenced, minAge)
}

// sweep holds the mark-and-sweep logic independent of how the referenced
// set was built, so it can be exercised directly against an
// already-computed reference set.
func (g *GC) sweep(ctx context.Context, referenced map[string]bool, minAge time.Duration) (*GCResult, error) {
	held, err := g.Store.Backend.List(ctx)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindBackendError, "GC.Run")
	}

	result := &GCResult{Scanned: len(held)}
	cutoff := gcNow().Add(-minAge)

	for _, obj := range held {
		if referenced[obj.OID] {
			result.Retained++
			continue
		}
		if obj.ModTime.After(cutoff) {
			result.SkippedYoung++
			continue
		}
		if err := g.Store.Backend.Delete(ctx, obj.OID); err != nil {
			return nil, ferrors.Wrapf(err, ferrors.KindBackendError, "GC.Run", "deleting unreferenced object %s", obj.OID)
		}
		result.Deleted++
		result.DeletedOIDs = append(result.DeletedOIDs, obj.OID)
	}

	return result, nil
}

// gcNow is overridden in tests to make the MinAge cutoff deterministic.
var gcNow = time.Now
