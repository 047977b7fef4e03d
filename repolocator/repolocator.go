// Package repolocator maps a repository's (owner, name) pair to its
// on-disk bare-repository path, sharded by a hash of the owner so no
// single directory accumulates more than a few thousand entries.
//
// Containment under RepositoryRoot follows from validating owner and name
// against a strict naming rule before they are joined into a path; the
// joined path itself is not canonicalized or re-checked.
package repolocator

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/catalyst-forge/forge-core/ferrors"
)

// nameRE matches a valid owner or repository name component.
var nameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,62}$`)

// Locator resolves owner/name to an on-disk bare repository path rooted at
// RepositoryRoot.
type Locator struct {
	RepositoryRoot string

	// fs provisions the shard directories under RepositoryRoot via
	// go-billy's osfs, matching the teacher's fs/billy.FS delegation style
	// (b.fs.MkdirAll) rather than a bare os.MkdirAll.
	fs billy.Filesystem
}

// New constructs a Locator rooted at repositoryRoot.
func New(repositoryRoot string) *Locator {
	return &Locator{RepositoryRoot: repositoryRoot, fs: osfs.New(repositoryRoot)}
}

// Validate checks owner and name against the naming rule without touching
// the filesystem, so the external HTTP layer can reject malformed paths
// before any I/O.
func Validate(owner, name string) error {
	if owner == "." || owner == ".." || !nameRE.MatchString(owner) {
		return ferrors.New(ferrors.KindInvalidRepository, "Validate", "invalid owner "+quote(owner))
	}
	if name == "." || name == ".." || !nameRE.MatchString(name) {
		return ferrors.New(ferrors.KindInvalidRepository, "Validate", "invalid repository name "+quote(name))
	}
	return nil
}

func quote(s string) string { return "\"" + s + "\"" }

// Path computes the on-disk bare-repository path for owner/name:
//
//	RepositoryRoot / sha256(owner)[:2] / sha256(owner)[2:4] / owner / name.git
//
// Path does not touch the filesystem; it returns InvalidRepository if
// owner or name fails Validate.
func (l *Locator) Path(owner, name string) (string, error) {
	if err := Validate(owner, name); err != nil {
		return "", err
	}

	sum := sha256.Sum256([]byte(owner))
	hexSum := hex.EncodeToString(sum[:])

	return filepath.Join(l.RepositoryRoot, hexSum[0:2], hexSum[2:4], owner, name+".git"), nil
}

// EnsureDir computes the path for owner/name and creates its parent shard
// directories (but not the repository directory itself, which `git init
// --bare` is responsible for creating).
func (l *Locator) EnsureDir(owner, name string) (string, error) {
	path, err := l.Path(owner, name)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(l.RepositoryRoot, filepath.Dir(path))
	if err != nil {
		return "", ferrors.Wrap(err, ferrors.KindBackendError, "EnsureDir")
	}
	if err := l.fs.MkdirAll(rel, 0o755); err != nil {
		return "", ferrors.Wrap(err, ferrors.KindBackendError, "EnsureDir")
	}
	return path, nil
}
