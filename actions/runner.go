package actions

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/catalyst-forge/forge-core/dao"
	"github.com/catalyst-forge/forge-core/domain"
	"github.com/catalyst-forge/forge-core/ferrors"
)

// defaultHeartbeatTimeout is how long a runner may go without a heartbeat
// before it is marked offline and its in-progress job reclaimed, per
// spec.md §4.5.
const defaultHeartbeatTimeout = 90 * time.Second

// tokenBytes is the size of a generated runner authentication token before
// hex encoding.
const tokenBytes = 32

// RegisterRunner issues a persistent UUID and a fresh authentication token
// for a runner, storing only the token's hash. The plaintext token is
// returned exactly once; it cannot be recovered afterward, matching
// spec.md §4.5's "returns the token once" rule.
func RegisterRunner(
	ctx context.Context,
	runners dao.Runners,
	name string,
	ownerID, repositoryID int64,
	labels []string,
) (*domain.Runner, string, error) {
	token, err := generateToken()
	if err != nil {
		return nil, "", ferrors.Wrap(err, ferrors.KindBackendError, "RegisterRunner")
	}

	runner := &domain.Runner{
		UUID:         uuid.NewString(),
		Name:         name,
		OwnerID:      ownerID,
		RepositoryID: repositoryID,
		TokenHash:    hashToken(token),
		Labels:       labels,
		Status:       domain.RunnerOnline,
		LastSeen:     time.Now(),
	}
	if err := runners.Register(ctx, runner); err != nil {
		return nil, "", ferrors.Wrap(err, ferrors.KindBackendError, "RegisterRunner")
	}
	return runner, token, nil
}

// AuthenticateRunner compares presentedToken against the stored hash for
// runnerUUID in constant time, per spec.md §4.5.
func AuthenticateRunner(ctx context.Context, runners dao.Runners, runnerUUID, presentedToken string) (bool, error) {
	runner, ok, err := runners.Get(ctx, runnerUUID)
	if err != nil {
		return false, ferrors.Wrap(err, ferrors.KindBackendError, "AuthenticateRunner")
	}
	if !ok {
		return false, nil
	}
	presented := hashToken(presentedToken)
	return subtle.ConstantTimeCompare(presented, runner.TokenHash) == 1, nil
}

// Heartbeat records that runnerUUID is alive and transitions it back to
// online if it had been marked offline.
func Heartbeat(ctx context.Context, runners dao.Runners, runnerUUID string) error {
	if err := runners.Heartbeat(ctx, runnerUUID, time.Now().Unix()); err != nil {
		return ferrors.Wrap(err, ferrors.KindBackendError, "Heartbeat")
	}
	return runners.SetStatus(ctx, runnerUUID, domain.RunnerOnline)
}

// ReapStaleRunners transitions every runner whose last heartbeat predates
// heartbeatTimeout to offline and reclaims any job still assigned to it
// back to queued, per spec.md §4.5's "Dispatcher loss of heartbeat ...
// reclaims the job back to queued" rule. heartbeatTimeout of 0 uses
// defaultHeartbeatTimeout.
func ReapStaleRunners(
	ctx context.Context,
	runners dao.Runners,
	jobs dao.Jobs,
	sink EventSink,
	heartbeatTimeout time.Duration,
) (int, error) {
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = defaultHeartbeatTimeout
	}
	cutoff := time.Now().Add(-heartbeatTimeout).Unix()

	stale, err := runners.ListStale(ctx, cutoff)
	if err != nil {
		return 0, ferrors.Wrap(err, ferrors.KindBackendError, "ReapStaleRunners")
	}

	reaped := 0
	for _, r := range stale {
		if err := runners.SetStatus(ctx, r.UUID, domain.RunnerOffline); err != nil {
			return reaped, ferrors.Wrap(err, ferrors.KindBackendError, "ReapStaleRunners")
		}
		assigned, err := jobs.ListByRunner(ctx, r.UUID)
		if err != nil {
			return reaped, ferrors.Wrap(err, ferrors.KindBackendError, "ReapStaleRunners")
		}
		for _, job := range assigned {
			if err := jobs.ReclaimFromRunner(ctx, job.ID); err != nil {
				return reaped, ferrors.Wrap(err, ferrors.KindBackendError, "ReapStaleRunners")
			}
			if sink != nil {
				sink.JobReclaimed(ctx, domain.JobEvent{JobID: job.ID, RunID: job.RunID, Status: domain.RunStatusQueued})
			}
		}
		reaped++
	}
	return reaped, nil
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}
