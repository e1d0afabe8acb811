package auth

import (
	"math"
	"time"

	"github.com/streamhub-io/streamhub/internal/types"
)

// IsLocked reports whether the account is locked at the given instant.
// Lock state is computed from lock_until, never stored as a boolean, so a
// stale timestamp in the past counts as unlocked without requiring a write.
func IsLocked(u *types.User, now time.Time) bool {
	return u.LockUntil != nil && u.LockUntil.After(now)
}

// RemainingLockMinutes returns the remaining lock time in whole minutes,
// rounded up. Zero means the account is not locked.
func RemainingLockMinutes(u *types.User, now time.Time) int {
	if !IsLocked(u, now) {
		return 0
	}
	return int(math.Ceil(u.LockUntil.Sub(now).Minutes()))
}
