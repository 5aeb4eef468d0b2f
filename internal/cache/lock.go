package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLockHeld is returned when the lock is currently held by another caller.
// Callers surface this as an immediate conflict; they never queue.
var ErrLockHeld = errors.New("lock already held")

const lockPrefix = "lock:"

// AcquireLock takes a token-guarded, auto-expiring mutual-exclusion lock.
// The expiry is the safety net against a crashed holder; the token prevents
// one caller from releasing another's lock.
func AcquireLock(ctx context.Context, s Store, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := s.SetNX(ctx, lockPrefix+key, token, ttl)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

// ReleaseLock releases the lock only if the token still matches. A lock that
// expired and was re-acquired by someone else is left alone.
func ReleaseLock(ctx context.Context, s Store, key, token string) error {
	_, err := s.CompareAndDelete(ctx, lockPrefix+key, token)
	return err
}
