package repolocator

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalyst-forge/forge-core/ferrors"
)

func TestPathShardsByOwnerHash(t *testing.T) {
	l := New("/srv/repos")
	path, err := l.Path("octocat", "hello-world")
	require.NoError(t, err)

	sum := sha256.Sum256([]byte("octocat"))
	hexSum := hex.EncodeToString(sum[:])
	require.Equal(t, "/srv/repos/"+hexSum[0:2]+"/"+hexSum[2:4]+"/octocat/hello-world.git", path)
}

func TestValidateRejectsDotSegments(t *testing.T) {
	require.Error(t, Validate(".", "repo"))
	require.Error(t, Validate("..", "repo"))
	require.Error(t, Validate("owner", "."))
	require.Error(t, Validate("owner", ".."))
}

func TestValidateRejectsBadCharacters(t *testing.T) {
	bad := []string{"../etc", "owner/name", "owner name", "-leading-dash-ok-is-not-first-char-rule", ""}
	for _, b := range bad {
		err := Validate(b, "name")
		require.Error(t, err, b)
		require.True(t, ferrors.Is(err, ferrors.KindInvalidRepository))
	}
}

func TestValidateAcceptsTypicalNames(t *testing.T) {
	ok := []string{"octocat", "my-org.v2", "a", "A1._-"}
	for _, o := range ok {
		require.NoError(t, Validate(o, "repo-name"), o)
	}
}

func TestEnsureDirCreatesShardDirectories(t *testing.T) {
	root := t.TempDir()
	l := New(root)

	path, err := l.EnsureDir("octocat", "hello-world")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestPathIsDeterministic(t *testing.T) {
	l := New("/srv/repos")
	p1, err1 := l.Path("octocat", "hello-world")
	p2, err2 := l.Path("octocat", "hello-world")
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.Equal(t, p1, p2)
}
