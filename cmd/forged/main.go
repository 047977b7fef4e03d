// Command forged runs the forge as a single standalone process: an SSH
// git server, the Git-LFS store and its periodic garbage collector, and the
// ActionsCtl CI dispatcher, all sharing one in-memory devstore.Store. The
// LFS batch handler is constructed but no HTTP listener serves it.
//
// Grounded on the teacher's flat construct-register-run main shape
// (secrets/examples/basic/main.go), generalized from a single-shot
// demonstration into a long-running service with signal-driven shutdown.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	gossh "golang.org/x/crypto/ssh"

	"github.com/catalyst-forge/forge-core/actions"
	"github.com/catalyst-forge/forge-core/config"
	"github.com/catalyst-forge/forge-core/domain"
	"github.com/catalyst-forge/forge-core/gitexec"
	"github.com/catalyst-forge/forge-core/internal/devstore"
	"github.com/catalyst-forge/forge-core/lfs"
	"github.com/catalyst-forge/forge-core/ratelimit"
	"github.com/catalyst-forge/forge-core/repolocator"
	"github.com/catalyst-forge/forge-core/sshserver"
)

func main() {
	configPath := flag.String("config", "forge.yaml", "path to the forge's YAML configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(*configPath, logger); err != nil {
		logger.Error("forged exited with error", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	hostKeys, err := loadHostKeys(cfg.SSH.HostKeyPaths)
	if err != nil {
		return err
	}

	store := devstore.New()

	git := gitexec.New(cfg.RepositoryRoot)
	locator := repolocator.New(cfg.RepositoryRoot)
	limiter := ratelimit.New(cfg.RateLimit.MaxAttempts, cfg.RateLimit.Window.Duration)

	lfsStore, gc, err := buildLFS(cfg, git, store)
	if err != nil {
		return err
	}
	_ = lfs.Batch{Store: lfsStore, Objects: store.LFSObjects(), Signer: localSigner{baseURL: "http://" + cfg.SSH.ListenAddr, ttl: 15 * time.Minute}, Permissions: store}

	sink := slogEventSink{logger: logger}
	controller := actions.NewController(git, store.Workflows(), store.WorkflowRuns(), store.Jobs(), store.Runners(), sink)

	sshSrv, err := sshserver.New(sshserver.Config{
		ListenAddr:  cfg.SSH.ListenAddr,
		HostKeys:    hostKeys,
		KeyResolver: store,
		Permissions: store,
		Locator:     locator,
		Git:         git,
		Limiter:     limiter,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	listener, err := net.Listen("tcp", cfg.SSH.ListenAddr)
	if err != nil {
		return err
	}

	go runBackgroundLoops(ctx, store, gc, controller, cfg, logger)

	logger.Info("forged listening", "addr", cfg.SSH.ListenAddr)
	if err := sshSrv.Serve(ctx, listener); err != nil {
		return err
	}
	sshSrv.Wait()
	return nil
}

func buildLFS(cfg *config.Config, git *gitexec.Git, store *devstore.Store) (*lfs.Store, *lfs.GC, error) {
	var backend lfs.Backend
	var backendKind = domainBackendKind(cfg.LFS.Backend)

	switch cfg.LFS.Backend {
	case "s3":
		s3Backend, err := lfs.NewS3Backend(context.Background(), cfg.LFS.S3.Bucket, cfg.LFS.S3.Prefix, cfg.LFS.S3.Region, cfg.LFS.S3.ForcePathStyle)
		if err != nil {
			return nil, nil, err
		}
		backend = s3Backend
	default:
		fsBackend, err := lfs.NewFilesystemBackend(cfg.LFS.Root)
		if err != nil {
			return nil, nil, err
		}
		backend = fsBackend
	}

	lfsStore := lfs.NewStore(backend, backendKind, store.LFSObjects(), store.BandwidthLedger())
	lfsStore.RepoQuota = cfg.LFS.RepoQuotaBytes
	lfsStore.OwnerQuota = cfg.LFS.OwnerQuotaBytes

	gc := &lfs.GC{
		Store:      lfsStore,
		Enumerator: &lfs.RepoEnumerator{Git: git},
		MinAge:     cfg.LFS.GCMinAge.Duration,
	}
	return lfsStore, gc, nil
}

func runBackgroundLoops(ctx context.Context, store *devstore.Store, gc *lfs.GC, controller *actions.Controller, cfg *config.Config, logger *slog.Logger) {
	dispatchTicker := time.NewTicker(5 * time.Second)
	heartbeatTicker := time.NewTicker(30 * time.Second)
	gcTicker := time.NewTicker(time.Hour)
	defer dispatchTicker.Stop()
	defer heartbeatTicker.Stop()
	defer gcTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-dispatchTicker.C:
			for _, repo := range store.ListRepositories() {
				if _, err := controller.DispatchNext(ctx, repo.OwnerID, repo.ID, 10); err != nil {
					logger.Warn("dispatch failed", "repo_id", repo.ID, "err", err)
				}
			}
		case <-heartbeatTicker.C:
			if _, err := actions.ReapStaleRunners(ctx, store.Runners(), store.Jobs(), slogEventSink{logger: logger}, cfg.Actions.HeartbeatTimeout.Duration); err != nil {
				logger.Warn("reap stale runners failed", "err", err)
			}
		case <-gcTicker.C:
			repos := store.ListRepositories()
			scopes := make([]lfs.RepoScope, 0, len(repos))
			for _, r := range repos {
				path, err := repolocator.New(cfg.RepositoryRoot).Path(ownerLogin(r.OwnerID), r.Name)
				if err != nil {
					continue
				}
				scopes = append(scopes, lfs.RepoScope{RepoID: r.ID, Path: path})
			}
			result, err := gc.Run(ctx, scopes)
			if err != nil {
				logger.Warn("lfs gc failed", "err", err)
				continue
			}
			logger.Info("lfs gc complete", "scanned", result.Scanned, "deleted", result.Deleted, "retained", result.Retained)
		}
	}
}

// ownerLogin is a placeholder translation from an owner id to the login
// name repolocator.Path expects: it returns the fixed login "owner" for
// every id.
func ownerLogin(ownerID int64) string {
	return "owner"
}

func domainBackendKind(backend string) domain.Backend {
	if backend == "s3" {
		return domain.BackendS3
	}
	return domain.BackendFilesystem
}

func loadHostKeys(paths []string) ([]gossh.Signer, error) {
	var signers []gossh.Signer
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		signer, err := gossh.ParsePrivateKey(data)
		if err != nil {
			return nil, err
		}
		signers = append(signers, signer)
	}
	return signers, nil
}
