package sshserver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gossh "golang.org/x/crypto/ssh"

	"github.com/catalyst-forge/forge-core/ferrors"
)

// gitCommand is a parsed "git-upload-pack 'owner/name.git'" style exec
// request.
type gitCommand struct {
	program string // upload-pack | receive-pack | upload-archive (git- prefix stripped for argv)
	owner   string
	repo    string
	write   bool
}

var execPrefixes = []string{"git-upload-pack ", "git-receive-pack ", "git-upload-archive "}

// parseExecCommand implements the OPEN_SESSION step of spec.md §4.3: the
// command must begin with one of the three known programs followed by a
// single quoted path, which is then split into owner/name.
func parseExecCommand(cmd string) (*gitCommand, error) {
	var program string
	var rest string
	for _, prefix := range execPrefixes {
		if strings.HasPrefix(cmd, prefix) {
			program = strings.TrimPrefix(strings.TrimSuffix(prefix, " "), "git-")
			rest = strings.TrimPrefix(cmd, prefix)
			break
		}
	}
	if program == "" {
		return nil, ferrors.New(ferrors.KindInvalidArgument, "parseExecCommand", "unsupported exec command")
	}

	path, err := unquotePath(rest)
	if err != nil {
		return nil, ferrors.Wrap(err, ferrors.KindInvalidArgument, "parseExecCommand")
	}

	owner, repo, err := splitOwnerRepo(path)
	if err != nil {
		return nil, err
	}

	return &gitCommand{
		program: program,
		owner:   owner,
		repo:    repo,
		write:   program == "receive-pack",
	}, nil
}

// unquotePath strips a single layer of matching single or double quotes,
// per the "single quoted path" rule of spec.md §4.3. An unquoted or
// mismatched-quote argument is rejected.
func unquotePath(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return "", fmt.Errorf("missing quoted path")
	}
	first, last := s[0], s[len(s)-1]
	if (first != '\'' && first != '"') || first != last {
		return "", fmt.Errorf("path is not a single quoted argument")
	}
	return s[1 : len(s)-1], nil
}

func splitOwnerRepo(path string) (owner, repo string, err error) {
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ferrors.New(ferrors.KindInvalidRepository, "splitOwnerRepo", "path must be owner/name")
	}
	return parts[0], parts[1], nil
}

// handleSessionChannel accepts exactly one "exec" request on a session
// channel, per spec.md §4.3's "exactly one exec request" rule, then
// bridges the resolved git program to the channel.
func (s *Server) handleSessionChannel(ctx context.Context, sshConn *gossh.ServerConn, newChan gossh.NewChannel, remoteIP string) {
	channel, requests, err := newChan.Accept()
	if err != nil {
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer channel.Close()

	for req := range requests {
		if req.Type != "exec" {
			_ = req.Reply(false, nil)
			continue
		}

		cmdLine, err := decodeExecPayload(req.Payload)
		if err != nil {
			_ = req.Reply(false, nil)
			s.sendExitStatus(channel, 128)
			return
		}

		parsed, err := parseExecCommand(cmdLine)
		if err != nil {
			_ = req.Reply(false, nil)
			s.cfg.Limiter.Allow(remoteIP)
			s.sendExitStatus(channel, 128)
			return
		}

		_ = req.Reply(true, nil)

		userIDStr := sshConn.Permissions.Extensions["user-id"]
		userID, _ := strconv.ParseInt(userIDStr, 10, 64)

		exitCode := s.runGitCommand(ctx, channel, userID, parsed)
		s.sendExitStatus(channel, exitCode)
		return // exactly one exec request per session
	}
}

func decodeExecPayload(payload []byte) (string, error) {
	var cmd string
	if err := gossh.Unmarshal(payload, &cmd); err != nil {
		return "", err
	}
	return cmd, nil
}

func (s *Server) runGitCommand(ctx context.Context, channel gossh.Channel, userID int64, cmd *gitCommand) int {
	perm, err := s.cfg.Permissions.CheckPermission(ctx, userID, cmd.owner, cmd.repo, cmd.write)
	if err != nil || perm == PermissionNone || (cmd.write && perm != PermissionWrite) {
		fmt.Fprintf(channel.Stderr(), "permission denied\n")
		return 128
	}

	repoPath, err := s.cfg.Locator.Path(cmd.owner, cmd.repo)
	if err != nil {
		fmt.Fprintf(channel.Stderr(), "invalid repository\n")
		return 128
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if s.cfg.CommandTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.CommandTimeout)
		defer cancel()
	} else {
		runCtx = ctx
	}

	exitCode, err := s.cfg.Git.RunStreaming(runCtx, repoPath, gitArgv(cmd, repoPath), nil, channel, channel, channel.Stderr())
	if err != nil {
		fmt.Fprintf(channel.Stderr(), "git command failed\n")
		return 1
	}
	return exitCode
}

// gitArgv builds the argv passed to GitExec.RunStreaming for cmd: the
// bare subcommand name (upload-pack, receive-pack, upload-archive — the
// "git-" prefix is stripped, since the binary invoked is git itself, not
// git-upload-pack) followed by the confined repository path.
func gitArgv(cmd *gitCommand, repoPath string) []string {
	return []string{cmd.program, repoPath}
}

// exitStatusMsg mirrors the wire shape of an SSH "exit-status" channel
// request.
type exitStatusMsg struct {
	Status uint32
}

func (s *Server) sendExitStatus(channel gossh.Channel, code int) {
	_, _ = channel.SendRequest("exit-status", false, gossh.Marshal(&exitStatusMsg{Status: uint32(code)}))
}
