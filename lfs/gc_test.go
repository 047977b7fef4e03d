package lfs

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/catalyst-forge/forge-core/domain"
)

func oidFor(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func backdate(t *testing.T, backend *FilesystemBackend, oid string, when time.Time) {
	t.Helper()
	path, err := backend.objectPath(oid)
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(path, when, when))
}

func TestGCDeletesOnlyUnreferencedAgedObjects(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	backend, err := NewFilesystemBackend(dir)
	require.NoError(t, err)

	referencedData := []byte("kept because referenced")
	unreferencedOldData := []byte("deleted: old and unreferenced")
	unreferencedYoungData := []byte("retained: too young to collect")

	referencedOID := oidFor(referencedData)
	unreferencedOldOID := oidFor(unreferencedOldData)
	unreferencedYoungOID := oidFor(unreferencedYoungData)

	require.NoError(t, backend.Put(ctx, referencedOID, bytes.NewReader(referencedData), int64(len(referencedData))))
	require.NoError(t, backend.Put(ctx, unreferencedOldOID, bytes.NewReader(unreferencedOldData), int64(len(unreferencedOldData))))
	require.NoError(t, backend.Put(ctx, unreferencedYoungOID, bytes.NewReader(unreferencedYoungData), int64(len(unreferencedYoungData))))

	fixedNow := time.Now()
	backdate(t, backend, unreferencedOldOID, fixedNow.Add(-48*time.Hour))
	backdate(t, backend, referencedOID, fixedNow.Add(-48*time.Hour))

	prev := gcNow
	gcNow = func() time.Time { return fixedNow }
	defer func() { gcNow = prev }()

	store := NewStore(backend, domain.BackendFilesystem, newMemObjects(), nil)
	gc := &GC{Store: store, MinAge: 24 * time.Hour}

	result, err := gc.sweep(ctx, map[string]bool{referencedOID: true}, gc.MinAge)
	require.NoError(t, err)

	require.Equal(t, 3, result.Scanned)
	require.Equal(t, 1, result.Deleted)
	require.Equal(t, []string{unreferencedOldOID}, result.DeletedOIDs)
	require.Equal(t, 1, result.Retained)
	require.Equal(t, 1, result.SkippedYoung)

	exists, err := backend.Exists(ctx, referencedOID)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = backend.Exists(ctx, unreferencedYoungOID)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = backend.Exists(ctx, unreferencedOldOID)
	require.NoError(t, err)
	require.False(t, exists)
}
