package lfs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalyst-forge/forge-core/dao"
	"github.com/catalyst-forge/forge-core/domain"
	"github.com/catalyst-forge/forge-core/ferrors"
)

type memObjects struct {
	rows map[string]*domain.LFSObject
}

func newMemObjects() *memObjects { return &memObjects{rows: map[string]*domain.LFSObject{}} }

func key(repoID int64, oid string) string { return oid }

func (m *memObjects) Get(_ context.Context, repoID int64, oid string) (*domain.LFSObject, bool, error) {
	row, ok := m.rows[key(repoID, oid)]
	if !ok {
		return nil, false, nil
	}
	cp := *row
	return &cp, true, nil
}

func (m *memObjects) Upsert(_ context.Context, obj *domain.LFSObject) error {
	cp := *obj
	m.rows[key(obj.RepoID, obj.OID)] = &cp
	return nil
}

func (m *memObjects) MarkPresent(_ context.Context, repoID int64, oid string) error {
	row, ok := m.rows[key(repoID, oid)]
	if !ok {
		return ferrors.New(ferrors.KindObjectNotFound, "MarkPresent", "no such row")
	}
	row.Present = true
	return nil
}

func (m *memObjects) Delete(_ context.Context, repoID int64, oid string) error {
	delete(m.rows, key(repoID, oid))
	return nil
}

func (m *memObjects) SumSizeForRepo(_ context.Context, repoID int64) (int64, error) {
	var sum int64
	for _, row := range m.rows {
		if row.RepoID == repoID && row.Present {
			sum += row.Size
		}
	}
	return sum, nil
}

func (m *memObjects) SumSizeForOwner(_ context.Context, _ int64) (int64, error) {
	var sum int64
	for _, row := range m.rows {
		if row.Present {
			sum += row.Size
		}
	}
	return sum, nil
}

var _ dao.LFSObjects = (*memObjects)(nil)

func sha256OID(t *testing.T, data []byte) string {
	t.Helper()
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestStoreUploadVerifyDownloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend, err := NewFilesystemBackend(dir)
	require.NoError(t, err)

	objects := newMemObjects()
	store := NewStore(backend, domain.BackendFilesystem, objects, nil)

	data := []byte("hello lfs")
	oid := sha256OID(t, data)

	require.NoError(t, store.AdmitUpload(ctx, 1, 1, oid, int64(len(data))))
	require.NoError(t, objects.Upsert(ctx, &domain.LFSObject{RepoID: 1, OID: oid, Size: int64(len(data)), Backend: domain.BackendFilesystem}))
	require.NoError(t, store.Upload(ctx, oid, bytes.NewReader(data), int64(len(data))))
	require.NoError(t, store.Verify(ctx, 1, oid, int64(len(data))))

	rc, err := store.Download(ctx, 1, oid)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestStoreVerifyRejectsChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend, err := NewFilesystemBackend(dir)
	require.NoError(t, err)

	objects := newMemObjects()
	store := NewStore(backend, domain.BackendFilesystem, objects, nil)

	data := []byte("real content")
	wrongOID := sha256OID(t, []byte("different content"))

	require.NoError(t, objects.Upsert(ctx, &domain.LFSObject{RepoID: 1, OID: wrongOID, Size: int64(len(data))}))
	require.NoError(t, store.Upload(ctx, wrongOID, bytes.NewReader(data), int64(len(data))))

	err = store.Verify(ctx, 1, wrongOID, int64(len(data)))
	require.Error(t, err)
	require.True(t, ferrors.Is(err, ferrors.KindInvalidChecksum))

	exists, err := backend.Exists(ctx, wrongOID)
	require.NoError(t, err)
	require.False(t, exists, "mismatched upload should be deleted")
}

func TestStoreAdmitUploadEnforcesRepoQuota(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend, err := NewFilesystemBackend(dir)
	require.NoError(t, err)

	objects := newMemObjects()
	store := NewStore(backend, domain.BackendFilesystem, objects, nil)
	store.RepoQuota = 10

	oid := sha256OID(t, []byte("x"))
	err = store.AdmitUpload(ctx, 1, 1, oid, 20)
	require.Error(t, err)
	require.True(t, ferrors.Is(err, ferrors.KindStorageLimitExceeded))
}

func TestStoreDownloadRequiresPresentRow(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend, err := NewFilesystemBackend(dir)
	require.NoError(t, err)

	objects := newMemObjects()
	store := NewStore(backend, domain.BackendFilesystem, objects, nil)

	absentOID := sha256OID(t, []byte("never uploaded"))
	_, err = store.Download(ctx, 1, absentOID)
	require.Error(t, err)
	require.True(t, ferrors.Is(err, ferrors.KindObjectNotFound))
}
