package lfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/catalyst-forge/forge-core/dao"
	"github.com/catalyst-forge/forge-core/domain"
	"github.com/catalyst-forge/forge-core/ferrors"
)

// Store orchestrates a content-addressed Backend with the per-repo
// LFSObject rows and quota enforcement of spec.md §4.4.5. The physical
// content is deduplicated by the Backend across repositories; Store is
// what makes access and billing per-repository.
type Store struct {
	Backend      Backend
	BackendKind  domain.Backend
	Objects      dao.LFSObjects
	Bandwidth    dao.BandwidthLedger
	RepoQuota    int64 // 0 = unlimited
	OwnerQuota   int64 // 0 = unlimited
}

// NewStore constructs a Store over backend, tagging every row it writes
// with backendKind.
func NewStore(backend Backend, backendKind domain.Backend, objects dao.LFSObjects, bandwidth dao.BandwidthLedger) *Store {
	return &Store{Backend: backend, BackendKind: backendKind, Objects: objects, Bandwidth: bandwidth}
}

// AdmitUpload checks quota and OID/size validity before a batch upload
// action is issued, per spec.md §4.4.5. It does not write any bytes.
func (s *Store) AdmitUpload(ctx context.Context, repoID, ownerID int64, oid string, size int64) error {
	if err := ValidateOID(oid); err != nil {
		return err
	}
	if size < 0 {
		return ferrors.New(ferrors.KindInvalidInput, "AdmitUpload", "size must be non-negative")
	}

	if s.RepoQuota > 0 {
		used, err := s.Objects.SumSizeForRepo(ctx, repoID)
		if err != nil {
			return ferrors.Wrap(err, ferrors.KindBackendError, "AdmitUpload")
		}
		if used+size > s.RepoQuota {
			return ferrors.New(ferrors.KindStorageLimitExceeded, "AdmitUpload", "repository storage quota exceeded")
		}
	}
	if s.OwnerQuota > 0 {
		used, err := s.Objects.SumSizeForOwner(ctx, ownerID)
		if err != nil {
			return ferrors.Wrap(err, ferrors.KindBackendError, "AdmitUpload")
		}
		if used+size > s.OwnerQuota {
			return ferrors.New(ferrors.KindStorageLimitExceeded, "AdmitUpload", "owner storage quota exceeded")
		}
	}
	return nil
}

// Upload writes content to the backend for oid. Upload itself does not
// mark the LFSObject row present — Verify does, per spec.md §4.4.4's
// "only on success is the row marked present" rule. Upload is at-most-once
// idempotent: writing the same oid twice produces the same stored content
// since the OID is a content hash.
func (s *Store) Upload(ctx context.Context, oid string, r io.Reader, size int64) error {
	if err := ValidateOID(oid); err != nil {
		return err
	}
	return s.Backend.Put(ctx, oid, r, size)
}

// Verify re-opens the uploaded object, streams it through SHA-256, and
// asserts hash == oid && bytes == size, per spec.md §4.4.4. On mismatch it
// deletes the uploaded blob and returns InvalidChecksum; only on success
// is the (repo, oid) row marked present.
func (s *Store) Verify(ctx context.Context, repoID int64, oid string, size int64) error {
	if err := ValidateOID(oid); err != nil {
		return err
	}

	rc, err := s.Backend.Get(ctx, oid)
	if err != nil {
		return err
	}
	defer rc.Close()

	h := sha256.New()
	n, err := io.Copy(h, rc)
	if err != nil {
		return ferrors.Wrap(err, ferrors.KindBackendError, "Verify")
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if sum != oid || n != size {
		_ = s.Backend.Delete(ctx, oid)
		return ferrors.New(ferrors.KindInvalidChecksum, "Verify", "uploaded content does not match claimed oid/size")
	}

	if err := s.Objects.MarkPresent(ctx, repoID, oid); err != nil {
		return ferrors.Wrap(err, ferrors.KindBackendError, "Verify")
	}
	return nil
}

// Download opens the stored content for oid after confirming the
// (repoID, oid) row is present, per spec.md §4.4.4's download-request
// contract.
func (s *Store) Download(ctx context.Context, repoID int64, oid string) (io.ReadCloser, error) {
	obj, ok, err := s.Objects.Get(ctx, repoID, oid)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindBackendError, "Download")
	}
	if !ok || !obj.Present {
		return nil, ferrors.New(ferrors.KindObjectNotFound, "Download", "object not found")
	}
	rc, err := s.Backend.Get(ctx, oid)
	if err != nil {
		return nil, err
	}
	if s.Bandwidth != nil {
		_ = s.Bandwidth.Record(ctx, repoID, "download", obj.Size)
	}
	return rc, nil
}
