package sshserver

import "sync/atomic"

type lifecycleState int32

const (
	stateRunning lifecycleState = iota
	stateDraining
	stateStopped
)

// Manager tracks the server's lifecycle: running, draining, stopped. Tests
// observing a Manager across a shutdown transition must accept both
// draining and stopped — the only hard invariant, per spec.md §4.3, is
// that ShouldAcceptConnection() is false from the moment InitiateShutdown
// returns onward.
type Manager struct {
	state32 atomic.Int32
}

func newManager() *Manager {
	m := &Manager{}
	m.state32.Store(int32(stateRunning))
	return m
}

func (m *Manager) state() lifecycleState {
	return lifecycleState(m.state32.Load())
}

func (m *Manager) beginDraining() {
	m.state32.CompareAndSwap(int32(stateRunning), int32(stateDraining))
}

func (m *Manager) stop() {
	m.state32.Store(int32(stateStopped))
}

// State exposes the lifecycle state as a string for observability.
func (m *Manager) State() string {
	switch m.state() {
	case stateRunning:
		return "running"
	case stateDraining:
		return "draining"
	default:
		return "stopped"
	}
}
