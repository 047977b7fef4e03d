package lfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/catalyst-forge/forge-core/ferrors"
)

// FilesystemBackend stores LFS objects on local disk at
// LFSRoot/oid[0:2]/oid[2:4]/oid, per spec.md §4.4.2.
//
// Grounded on the teacher's fs/billy.FS wrapper delegation style; this
// backend operates directly on *os.File since LFS content never needs the
// in-memory billy filesystem the git package uses for worktrees.
type FilesystemBackend struct {
	Root string
}

// NewFilesystemBackend constructs a FilesystemBackend rooted at root. root
// is created if it does not already exist.
func NewFilesystemBackend(root string) (*FilesystemBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindBackendError, "NewFilesystemBackend")
	}
	return &FilesystemBackend{Root: root}, nil
}

func (b *FilesystemBackend) objectPath(oid string) (string, error) {
	if err := ValidateOID(oid); err != nil {
		return "", err
	}
	return filepath.Join(b.Root, oid[0:2], oid[2:4], oid), nil
}

// confine resolves path (symlinks followed) and rejects any result that
// does not have Root as a prefix, per spec.md §4.4.2's PathTraversalAttempt
// rule. It tolerates a not-yet-existing leaf (Get/Exists/Delete on an
// absent object) by resolving the parent directory instead.
func (b *FilesystemBackend) confine(path string) (string, error) {
	root, err := filepath.Abs(b.Root)
	if err != nil {
		return "", ferrors.Wrap(err, ferrors.KindPathTraversalAttempt, "confine")
	}
	canonicalRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", ferrors.Wrap(err, ferrors.KindPathTraversalAttempt, "confine")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ferrors.Wrap(err, ferrors.KindPathTraversalAttempt, "confine")
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", ferrors.Wrap(err, ferrors.KindPathTraversalAttempt, "confine")
		}
		parent, perr := filepath.EvalSymlinks(filepath.Dir(abs))
		if perr != nil {
			return "", ferrors.Wrap(perr, ferrors.KindPathTraversalAttempt, "confine")
		}
		resolved = filepath.Join(parent, filepath.Base(abs))
	}

	if resolved != canonicalRoot && !strings.HasPrefix(resolved, canonicalRoot+string(filepath.Separator)) {
		return "", ferrors.New(ferrors.KindPathTraversalAttempt, "confine", "resolved path escapes LFSRoot")
	}
	return resolved, nil
}

// Put implements Backend.
func (b *FilesystemBackend) Put(_ context.Context, oid string, r io.Reader, size int64) error {
	path, err := b.objectPath(oid)
	if err != nil {
		return err
	}
	confined, err := b.confine(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(confined), 0o755); err != nil {
		return ferrors.Wrap(err, ferrors.KindBackendError, "Put")
	}

	tmp, err := os.CreateTemp(filepath.Dir(confined), ".upload-*")
	if err != nil {
		return ferrors.Wrap(err, ferrors.KindBackendError, "Put")
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return ferrors.Wrap(err, ferrors.KindBackendError, "Put")
	}
	if size >= 0 && n != size {
		return ferrors.New(ferrors.KindInvalidChecksum, "Put", "written size does not match declared size")
	}
	if err := tmp.Close(); err != nil {
		return ferrors.Wrap(err, ferrors.KindBackendError, "Put")
	}
	if err := os.Rename(tmp.Name(), confined); err != nil {
		return ferrors.Wrap(err, ferrors.KindBackendError, "Put")
	}
	return nil
}

// Get implements Backend.
func (b *FilesystemBackend) Get(_ context.Context, oid string) (io.ReadCloser, error) {
	path, err := b.objectPath(oid)
	if err != nil {
		return nil, err
	}
	confined, err := b.confine(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(confined)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.New(ferrors.KindObjectNotFound, "Get", "object not found")
		}
		return nil, ferrors.Wrap(err, ferrors.KindBackendError, "Get")
	}
	return f, nil
}

// Exists implements Backend.
func (b *FilesystemBackend) Exists(_ context.Context, oid string) (bool, error) {
	path, err := b.objectPath(oid)
	if err != nil {
		return false, err
	}
	confined, err := b.confine(path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(confined)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, ferrors.Wrap(err, ferrors.KindBackendError, "Exists")
}

// Delete implements Backend.
func (b *FilesystemBackend) Delete(_ context.Context, oid string) error {
	path, err := b.objectPath(oid)
	if err != nil {
		return err
	}
	confined, err := b.confine(path)
	if err != nil {
		return err
	}
	if err := os.Remove(confined); err != nil && !os.IsNotExist(err) {
		return ferrors.Wrap(err, ferrors.KindBackendError, "Delete")
	}
	return nil
}

// List implements Backend. The directory iterator skips entries whose name
// contains "..", is absolute, contains NUL, or begins with ".", per
// spec.md §4.4.2, and returns results sorted by OID.
func (b *FilesystemBackend) List(_ context.Context) ([]ObjectInfo, error) {
	var out []ObjectInfo

	err := filepath.Walk(b.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		name := info.Name()
		if !isSafeListEntry(name) {
			return nil
		}
		if !oidRE.MatchString(name) {
			return nil
		}
		out = append(out, ObjectInfo{OID: name, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindBackendError, "List")
	}

	sort.Slice(out, func(i, j int) bool { return out[i].OID < out[j].OID })
	return out, nil
}

func isSafeListEntry(name string) bool {
	if name == "" || strings.Contains(name, "..") || strings.Contains(name, "\x00") {
		return false
	}
	if filepath.IsAbs(name) {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	return true
}
