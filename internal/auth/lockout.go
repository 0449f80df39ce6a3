package auth

import (
	"sync"
	"time"
)

const (
	MaxFailedLoginAttempts = 10
	AccountLockoutDuration = 15 * time.Minute

	// lockoutPruneSize is the number of tracked usernames at which stale
	// entries are dropped.
	lockoutPruneSize = 1024
)

type attemptState struct {
	failures    int
	lastFailure time.Time
	lockedUntil time.Time
}

// Lockout tracks failed logins per username and locks an account after
// MaxFailedLoginAttempts failures within AccountLockoutDuration.
type Lockout struct {
	mu       sync.Mutex
	attempts map[string]*attemptState
	now      func() time.Time
}

func NewLockout() *Lockout {
	return &Lockout{attempts: map[string]*attemptState{}, now: time.Now}
}

// IsLocked reports whether username is currently locked out.
func (l *Lockout) IsLocked(username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.attempts[username]
	return ok && l.now().Before(st.lockedUntil)
}

// Fail records a failed login.
func (l *Lockout) Fail(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if len(l.attempts) >= lockoutPruneSize {
		l.prune(now)
	}
	st, ok := l.attempts[username]
	if !ok || st.stale(now) {
		st = &attemptState{}
		l.attempts[username] = st
	}
	st.failures++
	st.lastFailure = now
	if st.failures >= MaxFailedLoginAttempts {
		st.lockedUntil = now.Add(AccountLockoutDuration)
		st.failures = 0
	}
}

// stale reports whether the state no longer affects logins.
func (st *attemptState) stale(now time.Time) bool {
	return !now.Before(st.lockedUntil) && now.Sub(st.lastFailure) > AccountLockoutDuration
}

func (l *Lockout) prune(now time.Time) {
	for name, st := range l.attempts {
		if st.stale(now) {
			delete(l.attempts, name)
		}
	}
}

// Tracked returns the number of usernames with recorded failures.
func (l *Lockout) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

// Reset clears the failure counter after a successful login.
func (l *Lockout) Reset(username string) {
	l.mu.Lock()
	delete(l.attempts, username)
	l.mu.Unlock()
}
