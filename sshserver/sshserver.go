// Package sshserver terminates SSHv2 connections, authenticates callers by
// public key, and bridges a single git-upload-pack/git-receive-pack/
// git-upload-archive exec request to a confined repository over GitExec.
//
// Grounded on the teacher's git/internal/auth package: KeyResolver plays
// the role of auth.Provider (a small interface resolving a capability for
// an identifier, composable via a fallback chain — see
// git/internal/auth/composite.go), generalized from "auth method for a
// remote URL" to "permission for a key fingerprint".
package sshserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	gossh "golang.org/x/crypto/ssh"

	"github.com/catalyst-forge/forge-core/ferrors"
	"github.com/catalyst-forge/forge-core/gitexec"
	"github.com/catalyst-forge/forge-core/ratelimit"
	"github.com/catalyst-forge/forge-core/repolocator"
)

// Permission is the access level resolved for an authenticated key.
type Permission int

const (
	// PermissionNone grants no access to the target repository.
	PermissionNone Permission = iota
	// PermissionRead grants upload-pack/upload-archive access.
	PermissionRead
	// PermissionWrite grants receive-pack access in addition to read.
	PermissionWrite
)

// KeyResolver resolves a known SSH public key fingerprint to the user it
// belongs to. Implementations are expected to be DAO-backed and live
// outside the core, per spec.md §1; the core only depends on this
// interface.
type KeyResolver interface {
	// ResolveByFingerprint returns the user id owning fingerprint, or
	// ok=false if the fingerprint is unknown.
	ResolveByFingerprint(ctx context.Context, fingerprint string) (userID int64, ok bool, err error)
}

// PermissionChecker resolves a (user, owner, repo) triple to the
// Permission the user holds for that repository.
type PermissionChecker interface {
	CheckPermission(ctx context.Context, userID int64, owner, repo string, write bool) (Permission, error)
}

// supportedHostKeyAlgorithms is the host key algorithm list spec.md §6
// names.
var supportedHostKeyAlgorithms = []string{"ssh-ed25519", "ecdsa-sha2-nistp256", "rsa-sha2-512"}

// supportedPublicKeyAlgorithms is the client public key algorithm list
// spec.md §6 names; ssh-dss and ssh-rsa (SHA-1) are intentionally absent.
var supportedPublicKeyAlgorithms = []string{
	gossh.KeyAlgoED25519,
	gossh.KeyAlgoECDSA256, gossh.KeyAlgoECDSA384, gossh.KeyAlgoECDSA521,
	gossh.KeyAlgoRSASHA256, gossh.KeyAlgoRSASHA512,
}

// Config configures a Server.
type Config struct {
	ListenAddr        string
	HostKeys          []gossh.Signer
	KeyResolver       KeyResolver
	Permissions       PermissionChecker
	Locator           *repolocator.Locator
	Git               *gitexec.Git
	Limiter           *ratelimit.Limiter
	MaxConnections    int           // default 256
	HandshakeDeadline time.Duration // default 10s
	ShutdownGrace     time.Duration // default 30s
	Logger            *slog.Logger
	CommandTimeout    time.Duration // default 0 (no timeout) for upload/receive-pack
}

// Server is an SSH server terminating git-over-ssh sessions.
type Server struct {
	cfg      Config
	sshConf  *gossh.ServerConfig
	logger   *slog.Logger
	sem      chan struct{}
	manager  *Manager
	listener net.Listener

	wg sync.WaitGroup
}

// New constructs a Server from cfg, applying defaults for zero-valued
// fields. New does not start listening; call Serve.
func New(cfg Config) (*Server, error) {
	if len(cfg.HostKeys) == 0 {
		return nil, ferrors.New(ferrors.KindInvalidInput, "New", "at least one host key is required")
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 256
	}
	if cfg.HandshakeDeadline <= 0 {
		cfg.HandshakeDeadline = 10 * time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New(10, time.Minute)
	}

	s := &Server{
		cfg:     cfg,
		logger:  cfg.Logger,
		sem:     make(chan struct{}, cfg.MaxConnections),
		manager: newManager(),
	}
	s.sshConf = s.buildServerConfig()
	for _, hk := range cfg.HostKeys {
		s.sshConf.AddHostKey(hk)
	}
	return s, nil
}

func (s *Server) buildServerConfig() *gossh.ServerConfig {
	conf := &gossh.ServerConfig{
		PublicKeyCallback: s.publicKeyCallback,
		ServerVersion:     "SSH-2.0-forge",
	}
	_ = supportedHostKeyAlgorithms // negotiated implicitly by which AddHostKey signers are installed
	return conf
}

// Serve accepts connections on listener until ctx is cancelled or the
// listener is closed. After InitiateShutdown, newly accepted connections
// are closed immediately. Each admitted connection is handled in its own
// goroutine, bounded by MaxConnections via a semaphore.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.listener = listener

	go func() {
		<-ctx.Done()
		s.InitiateShutdown()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.manager.state() != stateRunning {
				return nil
			}
			return ferrors.Wrap(err, ferrors.KindBackendError, "Serve")
		}

		if !s.ShouldAcceptConnection() {
			_ = conn.Close()
			continue
		}

		select {
		case s.sem <- struct{}{}:
		default:
			_ = conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			s.handleConn(ctx, conn)
		}()
	}
}

// ShouldAcceptConnection reports whether the server is currently accepting
// new connections. Once InitiateShutdown has returned, this is false for
// the lifetime of the Server.
func (s *Server) ShouldAcceptConnection() bool {
	return s.manager.state() == stateRunning
}

// InitiateShutdown stops accepting new connections immediately and begins
// draining existing sessions. It returns once the state transition is
// recorded; it does not wait for sessions to finish (see Wait).
func (s *Server) InitiateShutdown() {
	s.manager.beginDraining()
}

// Wait blocks until all in-flight sessions complete or the shutdown grace
// period elapses, whichever comes first, then marks the manager stopped.
func (s *Server) Wait() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownGrace):
	}
	s.manager.stop()
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	deadline := time.Now().Add(s.cfg.HandshakeDeadline)
	_ = conn.SetDeadline(deadline)

	remoteIP := remoteIPOf(conn)

	sshConn, chans, reqs, err := gossh.NewServerConn(conn, s.sshConf)
	if err != nil {
		s.cfg.Limiter.Allow(remoteIP)
		s.logger.Warn("ssh handshake failed", "remote", remoteIP, "err", err)
		return
	}
	defer sshConn.Close()
	_ = conn.SetDeadline(time.Time{})

	go gossh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			_ = newChan.Reject(gossh.UnknownChannelType, "unsupported channel type")
			continue
		}
		s.handleSessionChannel(ctx, sshConn, newChan, remoteIP)
	}
}

func remoteIPOf(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

// publicKeyCallback implements the VERIFY_KEY_KNOWN step of spec.md §4.3's
// auth state machine. Signature verification against the negotiated
// algorithm is performed by golang.org/x/crypto/ssh itself before this
// callback's success is honored for the signing round; this callback is
// responsible only for the known-key lookup, caching the resolved user id
// and key fingerprint onto the connection's Permissions extensions;
// repository permission is checked later, per command.
func (s *Server) publicKeyCallback(conn gossh.ConnMetadata, key gossh.PublicKey) (*gossh.Permissions, error) {
	if !isSupportedPublicKeyAlgorithm(key.Type()) {
		return nil, fmt.Errorf("unsupported public key algorithm %q", key.Type())
	}

	remoteIP := remoteHostOf(conn)
	if s.cfg.Limiter.Count(remoteIP) >= s.cfg.Limiter.MaxAttempts {
		return nil, fmt.Errorf("rate limit exceeded")
	}

	fingerprint := gossh.FingerprintSHA256(key)
	userID, ok, err := s.cfg.KeyResolver.ResolveByFingerprint(context.Background(), fingerprint)
	if err != nil || !ok {
		s.cfg.Limiter.Allow(remoteIP)
		return nil, fmt.Errorf("unknown public key")
	}

	return &gossh.Permissions{
		Extensions: map[string]string{
			"user-id":     fmt.Sprintf("%d", userID),
			"fingerprint": fingerprint,
		},
	}, nil
}

func remoteHostOf(conn gossh.ConnMetadata) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

func isSupportedPublicKeyAlgorithm(algo string) bool {
	for _, a := range supportedPublicKeyAlgorithms {
		if a == algo {
			return true
		}
	}
	return false
}
