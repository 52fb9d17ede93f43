package auth

import (
	"context"
	"crypto/subtle"
)

// WorkerCredential authenticates the generation worker on its callback
// endpoints. Kept as an interface so the static shared secret can be
// swapped for per-job tokens without touching the job state machine.
type WorkerCredential interface {
	Verify(ctx context.Context, jobID, token string) bool
}

// SharedSecret grants any holder of the one static secret access to every
// job. Coarse, but matches the deployed worker protocol.
type SharedSecret struct{ secret []byte }

func NewSharedSecret(secret string) SharedSecret {
	return SharedSecret{secret: []byte(secret)}
}

func (s SharedSecret) Verify(_ context.Context, _ string, token string) bool {
	return subtle.ConstantTimeCompare(s.secret, []byte(token)) == 1
}

// PerJobToken resolves a token scoped to a single job. The lookup is
// supplied by the caller; a missing token denies access.
type PerJobToken struct {
	Lookup func(ctx context.Context, jobID string) (string, bool)
}

func (p PerJobToken) Verify(ctx context.Context, jobID, token string) bool {
	if p.Lookup == nil {
		return false
	}
	want, ok := p.Lookup(ctx, jobID)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(token)) == 1
}
