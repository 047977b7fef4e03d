package lfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalyst-forge/forge-core/domain"
)

type fakeSigner struct{}

func (fakeSigner) SignURL(_ context.Context, repoID int64, oid, operation string) (Action, error) {
	return Action{HREF: "https://forge.example/lfs/" + operation + "/" + oid}, nil
}

type allowAllPermissions struct{}

func (allowAllPermissions) CanRead(context.Context, int64, int64) (bool, error)  { return true, nil }
func (allowAllPermissions) CanWrite(context.Context, int64, int64) (bool, error) { return true, nil }

type denyWritePermissions struct{ allowAllPermissions }

func (denyWritePermissions) CanWrite(context.Context, int64, int64) (bool, error) { return false, nil }

func newTestBatch(t *testing.T, perms PermissionChecker) (*Batch, *memObjects) {
	t.Helper()
	backend, err := NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)
	objects := newMemObjects()
	store := NewStore(backend, domain.BackendFilesystem, objects, nil)
	return &Batch{Store: store, Objects: objects, Signer: fakeSigner{}, Permissions: perms}, objects
}

func TestBatchUploadRequestIssuesActionForMissingObject(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBatch(t, allowAllPermissions{})

	oid := oidFor([]byte("new content"))
	resp, err := b.UploadRequest(ctx, 1, 10, 1, []ObjectRequest{{OID: oid, Size: 11}})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	require.Nil(t, resp[0].Error)
	require.Contains(t, resp[0].Actions, "upload")
}

func TestBatchUploadRequestSkipsAlreadyPresentObject(t *testing.T) {
	ctx := context.Background()
	b, objects := newTestBatch(t, allowAllPermissions{})

	oid := oidFor([]byte("already here"))
	require.NoError(t, objects.Upsert(ctx, &domain.LFSObject{RepoID: 10, OID: oid, Size: 12, Present: true}))

	resp, err := b.UploadRequest(ctx, 1, 10, 1, []ObjectRequest{{OID: oid, Size: 12}})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	require.Nil(t, resp[0].Error)
	require.Empty(t, resp[0].Actions, "already-present object should not get a new upload action")
}

func TestBatchUploadRequestDeniesWithoutWriteAccess(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBatch(t, denyWritePermissions{})

	_, err := b.UploadRequest(ctx, 1, 10, 1, []ObjectRequest{{OID: oidFor([]byte("x")), Size: 1}})
	require.Error(t, err)
}

func TestBatchDownloadRequestReports404ForAbsentObject(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestBatch(t, allowAllPermissions{})

	oid := oidFor([]byte("missing"))
	resp, err := b.DownloadRequest(ctx, 1, 10, []string{oid})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	require.NotNil(t, resp[0].Error)
	require.Equal(t, 404, resp[0].Error.Code)
}

func TestBatchDownloadRequestIssuesActionForPresentObject(t *testing.T) {
	ctx := context.Background()
	b, objects := newTestBatch(t, allowAllPermissions{})

	oid := oidFor([]byte("here"))
	require.NoError(t, objects.Upsert(ctx, &domain.LFSObject{RepoID: 10, OID: oid, Size: 4, Present: true}))

	resp, err := b.DownloadRequest(ctx, 1, 10, []string{oid})
	require.NoError(t, err)
	require.Len(t, resp, 1)
	require.Nil(t, resp[0].Error)
	require.Contains(t, resp[0].Actions, "download")
}
