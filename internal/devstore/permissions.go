package devstore

import (
	"context"

	"github.com/catalyst-forge/forge-core/sshserver"
)

// CheckPermission implements sshserver.PermissionChecker against the
// single-tenant ownership model this fixture store carries: the owner has
// read/write, anyone else has read-only on a non-private repository and
// no access at all on a private one. owner (the path's namespace segment)
// is accepted for interface compatibility but unused, since this fixture
// has no concept of multiple namespaces sharing a repo name.
func (s *Store) CheckPermission(ctx context.Context, userID int64, owner, repo string, write bool) (sshserver.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.repos {
		if r.Name != repo {
			continue
		}
		if r.OwnerID == userID {
			return sshserver.PermissionWrite, nil
		}
		if write || r.IsPrivate {
			return sshserver.PermissionNone, nil
		}
		return sshserver.PermissionRead, nil
	}
	return sshserver.PermissionNone, nil
}

// CanRead implements lfs.PermissionChecker.
func (s *Store) CanRead(ctx context.Context, actorID, repoID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.repos[repoID]
	if !ok {
		return false, nil
	}
	if r.OwnerID == actorID {
		return true, nil
	}
	return !r.IsPrivate, nil
}

// CanWrite implements lfs.PermissionChecker.
func (s *Store) CanWrite(ctx context.Context, actorID, repoID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.repos[repoID]
	if !ok {
		return false, nil
	}
	return r.OwnerID == actorID, nil
}
