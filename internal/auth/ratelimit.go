package auth

import (
	"strings"
	"sync"
	"time"
)

// LoginThrottle counts failed logins per client and email over a window and
// locks the pair out once the limit is reached.
type LoginThrottle struct {
	mu       sync.Mutex
	attempts map[string]*attemptRecord
	limits   ThrottleConfig
	now      func() time.Time
}

type attemptRecord struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

type ThrottleConfig struct {
	MaxAttempts     int           // failures before lockout (default: 5)
	WindowDuration  time.Duration // counting window (default: 15m)
	LockoutDuration time.Duration // lockout length (default: 30m)
}

func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{
		MaxAttempts:     5,
		WindowDuration:  15 * time.Minute,
		LockoutDuration: 30 * time.Minute,
	}
}

func NewLoginThrottle(cfg ThrottleConfig) *LoginThrottle {
	defaults := DefaultThrottleConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = defaults.WindowDuration
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = defaults.LockoutDuration
	}

	return &LoginThrottle{
		attempts: make(map[string]*attemptRecord),
		limits:   cfg,
		now:      time.Now,
	}
}

func throttleKey(client, email string) string {
	return client + ":" + strings.ToLower(strings.TrimSpace(email))
}

// Allow reports whether another attempt is permitted and, if not, how long
// the caller should wait.
func (lt *LoginThrottle) Allow(client, email string) (bool, time.Duration) {
	now := lt.now()

	lt.mu.Lock()
	defer lt.mu.Unlock()

	record, exists := lt.attempts[throttleKey(client, email)]
	if !exists {
		return true, 0
	}
	if now.Before(record.lockedUntil) {
		return false, record.lockedUntil.Sub(now)
	}
	return true, 0
}

// RecordFailure registers a failed attempt and reports whether it triggered a lockout.
func (lt *LoginThrottle) RecordFailure(client, email string) (bool, time.Duration) {
	key := throttleKey(client, email)
	now := lt.now()

	lt.mu.Lock()
	defer lt.mu.Unlock()

	lt.pruneLocked(now)

	record, exists := lt.attempts[key]
	if !exists || now.Sub(record.firstAttempt) > lt.limits.WindowDuration {
		record = &attemptRecord{firstAttempt: now}
		lt.attempts[key] = record
	}

	record.count++
	if record.count >= lt.limits.MaxAttempts {
		record.lockedUntil = now.Add(lt.limits.LockoutDuration)
		return true, lt.limits.LockoutDuration
	}
	return false, 0
}

// RecordSuccess clears the failure record.
func (lt *LoginThrottle) RecordSuccess(client, email string) {
	lt.mu.Lock()
	delete(lt.attempts, throttleKey(client, email))
	lt.mu.Unlock()
}

// pruneLocked drops records whose window and lockout both expired.
func (lt *LoginThrottle) pruneLocked(now time.Time) {
	for key, record := range lt.attempts {
		if now.Sub(record.firstAttempt) > lt.limits.WindowDuration && !now.Before(record.lockedUntil) {
			delete(lt.attempts, key)
		}
	}
}
