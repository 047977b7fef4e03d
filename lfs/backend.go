// Package lfs implements the Git-LFS content-addressed object store (a
// filesystem backend and an S3 backend) and the batch protocol that
// negotiates transfer URLs against it.
//
// Grounded on the teacher's aws/s3 package (Upload/options pattern,
// structured s3errors, content-type detection) for the S3 backend. The
// filesystem backend uses the os package directly.
package lfs

import (
	"context"
	"io"
	"regexp"
	"time"

	"github.com/catalyst-forge/forge-core/ferrors"
)

// oidRE validates a lowercase 64-hex-character SHA-256 OID.
var oidRE = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ValidateOID rejects any string that is not a lowercase 64-hex-character
// SHA-256 digest, per spec.md §4.4.1.
func ValidateOID(oid string) error {
	if !oidRE.MatchString(oid) {
		return ferrors.New(ferrors.KindInvalidInput, "ValidateOID", "oid must be 64 lowercase hex characters")
	}
	return nil
}

// ObjectInfo describes a stored object as seen by a backend listing, used
// by GC to compute the held object set S.
type ObjectInfo struct {
	OID     string
	Size    int64
	ModTime time.Time
}

// Backend is the content-addressed storage contract both the filesystem
// and S3 implementations satisfy. All operations are keyed purely by OID;
// Backend has no notion of repository scope (that lives in the
// LFSObject row, see dao.LFSObjects).
type Backend interface {
	// Put stores size bytes read from r under oid, overwriting any
	// existing content (objects are immutable by convention but Put does
	// not itself enforce that — callers write once per spec.md §4.4.1).
	Put(ctx context.Context, oid string, r io.Reader, size int64) error

	// Get opens the stored content for oid. Returns ObjectNotFound if
	// absent.
	Get(ctx context.Context, oid string) (io.ReadCloser, error)

	// Exists reports whether oid is present without reading its content.
	Exists(ctx context.Context, oid string) (bool, error)

	// Delete removes the stored content for oid. Deleting an absent oid
	// is not an error.
	Delete(ctx context.Context, oid string) error

	// List enumerates every object the backend currently holds, sorted by
	// OID for deterministic iteration.
	List(ctx context.Context) ([]ObjectInfo, error)
}
