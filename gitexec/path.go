package gitexec

import (
	"path/filepath"
	"strings"

	"github.com/catalyst-forge/forge-core/ferrors"
)

// ConfineRepoPath canonicalizes repoPath (resolving symlinks) and verifies
// it lies under root, returning the canonical path. Any failure —
// including a repoPath that does not exist yet, or one that escapes root
// via ".." or a symlink — yields KindInvalidRepository.
func ConfineRepoPath(root, repoPath string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", ferrors.Wrap(err, ferrors.KindInvalidRepository, "ConfineRepoPath")
	}
	canonicalRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", ferrors.Wrap(err, ferrors.KindInvalidRepository, "ConfineRepoPath")
	}

	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return "", ferrors.Wrap(err, ferrors.KindInvalidRepository, "ConfineRepoPath")
	}
	canonicalPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return "", ferrors.Wrap(err, ferrors.KindInvalidRepository, "ConfineRepoPath")
	}

	if !isWithinRoot(canonicalRoot, canonicalPath) {
		return "", ferrors.New(ferrors.KindInvalidRepository, "ConfineRepoPath", "repository path escapes RepositoryRoot")
	}

	return canonicalPath, nil
}

// isWithinRoot reports whether path is root itself or a descendant of it.
func isWithinRoot(root, path string) bool {
	if root == path {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
