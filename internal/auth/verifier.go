package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	minDelay = 100 * time.Millisecond
	maxDelay = 200 * time.Millisecond
)

// Verifier checks a supplied identity/secret pair against the single
// configured account. The identity comparison hashes both sides first so it
// is constant-time and leaks nothing about length; the secret comparison is
// bcrypt. Both checks always run, and a randomized delay is added after
// verification regardless of outcome to flatten residual timing signal.
type Verifier struct {
	identityHash [sha256.Size]byte
	secretHash   []byte

	// sleep is swappable in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration)
}

// NewVerifier configures a verifier for one identity and its bcrypt secret
// hash. The hash format is standard bcrypt, so hashes generated elsewhere
// remain portable.
func NewVerifier(identity, bcryptHash string) *Verifier {
	return &Verifier{
		identityHash: sha256.Sum256([]byte(identity)),
		secretHash:   []byte(bcryptHash),
		sleep:        sleepCtx,
	}
}

// Verify reports whether the pair matches the configured account. It never
// distinguishes an unknown identity from a wrong secret.
func (v *Verifier) Verify(ctx context.Context, identity, secret string) bool {
	supplied := sha256.Sum256([]byte(identity))
	identityOK := subtle.ConstantTimeCompare(v.identityHash[:], supplied[:]) == 1

	// Always executed, even when the identity already failed.
	secretOK := bcrypt.CompareHashAndPassword(v.secretHash, []byte(secret)) == nil

	v.sleep(ctx, jitter())

	return identityOK && secretOK
}

// jitter picks a delay in [minDelay, maxDelay) from the CSPRNG.
func jitter() time.Duration {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return maxDelay
	}
	span := maxDelay - minDelay
	return minDelay + time.Duration(int64(b[0]))*span/256
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
