package sshserver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseExecCommandUploadPack(t *testing.T) {
	cmd, err := parseExecCommand(`git-upload-pack '/octocat/hello-world.git'`)
	require.NoError(t, err)
	require.Equal(t, "upload-pack", cmd.program)
	require.Equal(t, "octocat", cmd.owner)
	require.Equal(t, "hello-world", cmd.repo)
	require.False(t, cmd.write)
}

func TestParseExecCommandReceivePackIsWrite(t *testing.T) {
	cmd, err := parseExecCommand(`git-receive-pack 'octocat/hello-world'`)
	require.NoError(t, err)
	require.True(t, cmd.write)
}

func TestParseExecCommandRejectsUnknownProgram(t *testing.T) {
	_, err := parseExecCommand(`git-shell '/octocat/hello-world.git'`)
	require.Error(t, err)
}

func TestParseExecCommandRejectsUnquoted(t *testing.T) {
	_, err := parseExecCommand(`git-upload-pack /octocat/hello-world.git`)
	require.Error(t, err)
}

func TestParseExecCommandRejectsMalformedPath(t *testing.T) {
	_, err := parseExecCommand(`git-upload-pack 'not-a-valid-path'`)
	require.Error(t, err)

	_, err = parseExecCommand(`git-upload-pack '../../etc/passwd'`)
	require.Error(t, err)
}

func TestUnquotePathRejectsMismatchedQuotes(t *testing.T) {
	_, err := unquotePath(`'mismatched"`)
	require.Error(t, err)
}

func TestGitArgvStripsGitPrefix(t *testing.T) {
	cmd, err := parseExecCommand(`git-upload-pack '/octocat/hello-world.git'`)
	require.NoError(t, err)
	require.Equal(t, []string{"upload-pack", "/repos/octocat/hello-world.git"}, gitArgv(cmd, "/repos/octocat/hello-world.git"))

	cmd, err = parseExecCommand(`git-receive-pack '/octocat/hello-world.git'`)
	require.NoError(t, err)
	require.Equal(t, []string{"receive-pack", "/repos/octocat/hello-world.git"}, gitArgv(cmd, "/repos/octocat/hello-world.git"))

	cmd, err = parseExecCommand(`git-upload-archive '/octocat/hello-world.git'`)
	require.NoError(t, err)
	require.Equal(t, []string{"upload-archive", "/repos/octocat/hello-world.git"}, gitArgv(cmd, "/repos/octocat/hello-world.git"))
}
