package sshserver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManagerStartsRunning(t *testing.T) {
	m := newManager()
	require.Equal(t, "running", m.State())
}

func TestShutdownInvariant(t *testing.T) {
	m := newManager()
	m.beginDraining()

	// Hard invariant from spec.md §4.3: once shutdown has been initiated,
	// the manager never again reports running, regardless of how many
	// times beginDraining/stop are subsequently called.
	require.NotEqual(t, "running", m.State())

	m.stop()
	require.Equal(t, "stopped", m.State())

	// Further calls never revert to running.
	m.beginDraining()
	require.NotEqual(t, "running", m.State())
}

func TestShouldAcceptConnectionFalseAfterShutdown(t *testing.T) {
	s := &Server{manager: newManager()}
	require.True(t, s.ShouldAcceptConnection())

	s.InitiateShutdown()
	require.False(t, s.ShouldAcceptConnection())
}
