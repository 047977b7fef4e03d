package lfs

import (
	"context"
	"fmt"
	"time"

	"github.com/catalyst-forge/forge-core/dao"
	"github.com/catalyst-forge/forge-core/domain"
	"github.com/catalyst-forge/forge-core/ferrors"
)

// ObjectRequest is one entry of a batch request, per spec.md §4.4.4.
type ObjectRequest struct {
	OID  string `json:"oid"`
	Size int64  `json:"size"`
}

// Action describes a transfer href the client should use, the Git-LFS v2
// batch shape's "actions" member.
type Action struct {
	HREF      string            `json:"href"`
	Header    map[string]string `json:"header,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// ObjectResponse is one entry of a batch response. Exactly one of Actions
// or Error is meaningful, mirroring the Git-LFS v2 batch shape.
type ObjectResponse struct {
	OID     string             `json:"oid"`
	Size    int64              `json:"size,omitempty"`
	Actions map[string]Action  `json:"actions,omitempty"`
	Error   *ObjectErrorDetail `json:"error,omitempty"`
}

// ObjectErrorDetail is the per-object error shape of the batch response.
type ObjectErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// URLSigner issues a time-limited href for oid, scoped to operation
// ("upload" or "download"). The embedding HTTP layer supplies the
// implementation (e.g. a signed path into its own upload endpoint, or a
// presigned S3 URL); Batch only decides which (repo, oid) pairs need one.
type URLSigner interface {
	SignURL(ctx context.Context, repoID int64, oid, operation string) (Action, error)
}

// PermissionChecker resolves whether actorID may read or write repoID's
// LFS objects, per spec.md §4.4.4's "respects repository read/write
// permission" rule.
type PermissionChecker interface {
	CanRead(ctx context.Context, actorID, repoID int64) (bool, error)
	CanWrite(ctx context.Context, actorID, repoID int64) (bool, error)
}

// Batch implements the Git-LFS batch protocol (upload-request,
// download-request) against a Store.
type Batch struct {
	Store       *Store
	Objects     dao.LFSObjects
	Signer      URLSigner
	Permissions PermissionChecker
}

// UploadRequest implements spec.md §4.4.4's Upload-request operation: for
// each (oid, size) it returns either an upload action (object absent) or
// an empty response (already present), after admission and permission
// checks.
func (b *Batch) UploadRequest(
	ctx context.Context,
	actorID, repoID, ownerID int64,
	objects []ObjectRequest,
) ([]ObjectResponse, error) {
	canWrite, err := b.Permissions.CanWrite(ctx, actorID, repoID)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindBackendError, "UploadRequest")
	}
	if !canWrite {
		return nil, ferrors.New(ferrors.KindPermissionDenied, "UploadRequest", "write access required")
	}

	out := make([]ObjectResponse, 0, len(objects))
	for _, o := range objects {
		resp := ObjectResponse{OID: o.OID, Size: o.Size}

		if err := ValidateOID(o.OID); err != nil {
			resp.Error = &ObjectErrorDetail{Code: 422, Message: "invalid oid"}
			out = append(out, resp)
			continue
		}
		if o.Size < 0 {
			resp.Error = &ObjectErrorDetail{Code: 422, Message: "invalid size"}
			out = append(out, resp)
			continue
		}

		existing, ok, err := b.Objects.Get(ctx, repoID, o.OID)
		if err != nil {
			return nil, ferrors.Wrap(err, ferrors.KindBackendError, "UploadRequest")
		}
		if ok && existing.Present {
			out = append(out, resp) // no actions: already present
			continue
		}

		if err := b.Store.AdmitUpload(ctx, repoID, ownerID, o.OID, o.Size); err != nil {
			kind, _ := ferrors.KindOf(err)
			resp.Error = &ObjectErrorDetail{Code: 413, Message: string(kind)}
			out = append(out, resp)
			continue
		}

		action, err := b.Signer.SignURL(ctx, repoID, o.OID, "upload")
		if err != nil {
			return nil, ferrors.Wrap(err, ferrors.KindBackendError, "UploadRequest")
		}
		resp.Actions = map[string]Action{"upload": action}

		if !ok {
			if err := b.Objects.Upsert(ctx, &domain.LFSObject{
				RepoID:  repoID,
				OID:     o.OID,
				Size:    o.Size,
				Backend: b.Store.BackendKind,
				Present: false,
			}); err != nil {
				return nil, ferrors.Wrap(err, ferrors.KindBackendError, "UploadRequest")
			}
		}
		out = append(out, resp)
	}
	return out, nil
}

// DownloadRequest implements spec.md §4.4.4's Download-request operation.
func (b *Batch) DownloadRequest(ctx context.Context, actorID, repoID int64, oids []string) ([]ObjectResponse, error) {
	canRead, err := b.Permissions.CanRead(ctx, actorID, repoID)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindBackendError, "DownloadRequest")
	}
	if !canRead {
		return nil, ferrors.New(ferrors.KindPermissionDenied, "DownloadRequest", "read access required")
	}

	out := make([]ObjectResponse, 0, len(oids))
	for _, oid := range oids {
		resp := ObjectResponse{OID: oid}

		if err := ValidateOID(oid); err != nil {
			resp.Error = &ObjectErrorDetail{Code: 422, Message: "invalid oid"}
			out = append(out, resp)
			continue
		}

		obj, ok, err := b.Objects.Get(ctx, repoID, oid)
		if err != nil {
			return nil, ferrors.Wrap(err, ferrors.KindBackendError, "DownloadRequest")
		}
		if !ok || !obj.Present {
			resp.Error = &ObjectErrorDetail{Code: 404, Message: "object not found"}
			out = append(out, resp)
			continue
		}

		action, err := b.Signer.SignURL(ctx, repoID, oid, "download")
		if err != nil {
			return nil, ferrors.Wrap(err, ferrors.KindBackendError, "DownloadRequest")
		}
		resp.Size = obj.Size
		resp.Actions = map[string]Action{"download": action}
		out = append(out, resp)
	}
	return out, nil
}

// Verify implements spec.md §4.4.4's Verify operation, delegating to the
// Store and wrapping any error it returns with the object's oid.
func (b *Batch) Verify(ctx context.Context, repoID int64, oid string, size int64) error {
	if err := b.Store.Verify(ctx, repoID, oid, size); err != nil {
		return fmt.Errorf("verify %s: %w", oid, err)
	}
	return nil
}
