package actions

import (
	"context"
	"sync"

	"github.com/catalyst-forge/forge-core/dao"
	"github.com/catalyst-forge/forge-core/ferrors"
)

// Decrypter turns a Secret row's ciphertext into plaintext. The embedding
// process supplies the cryptography (envelope encryption, KMS, age); this
// package never persists, logs, or otherwise retains plaintext beyond a
// single resolution.
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// ResolvedSecret holds a decrypted secret value with one-time-use, auto-
// clear semantics, grounded directly on the teacher's secrets/core.
// SecretString: the plaintext is held only long enough for the caller to
// read it once, then zeroed.
type ResolvedSecret struct {
	Name string

	mu        sync.Mutex
	plaintext []byte
	consumed  bool
}

// String returns the plaintext value and clears it from memory. Calling
// String a second time returns an empty string — ResolvedSecret is
// one-time-use by default, matching spec.md §3's
// plaintext-never-logged-or-retained invariant.
func (r *ResolvedSecret) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.consumed {
		return ""
	}
	r.consumed = true
	s := string(r.plaintext)
	for i := range r.plaintext {
		r.plaintext[i] = 0
	}
	r.plaintext = nil
	return s
}

// Clear zeroes the held plaintext without returning it, for callers that
// decide not to use a resolved secret after all (e.g. a job that was
// cancelled between resolution and injection).
func (r *ResolvedSecret) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.plaintext {
		r.plaintext[i] = 0
	}
	r.plaintext = nil
	r.consumed = true
}

// SecretsForJob resolves the named secrets for a job's run, preferring a
// repository-scoped secret over an org-scoped one of the same name, per
// spec.md §4.5 and dao.Secrets.Get's documented precedence. Ciphertext is
// decrypted just-in-time; nothing is cached beyond the returned map.
func SecretsForJob(
	ctx context.Context,
	secrets dao.Secrets,
	decrypter Decrypter,
	ownerID, repoID int64,
	names []string,
) (map[string]*ResolvedSecret, error) {
	out := make(map[string]*ResolvedSecret, len(names))
	for _, name := range names {
		row, ok, err := secrets.Get(ctx, ownerID, repoID, name)
		if err != nil {
			return nil, ferrors.Wrapf(err, ferrors.KindBackendError, "SecretsForJob", "resolving secret %q", name)
		}
		if !ok {
			continue
		}
		plaintext, err := decrypter.Decrypt(ctx, row.Ciphertext)
		if err != nil {
			return nil, ferrors.Wrapf(err, ferrors.KindBackendError, "SecretsForJob", "decrypting secret %q", name)
		}
		out[name] = &ResolvedSecret{Name: name, plaintext: plaintext}
	}
	return out, nil
}
