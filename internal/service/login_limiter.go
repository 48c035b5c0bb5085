package service

import (
	"sync"
	"time"
)

// LoginLimiter cuenta intentos de login por email dentro de una ventana.
type LoginLimiter interface {
	Allow(email string) bool
}

type memoryLoginLimiter struct {
	mu          sync.Mutex
	window      time.Duration
	maxAttempts int
	attempts    map[string][]time.Time
	now         func() time.Time
}

// NewMemoryLoginLimiter se usa cuando no hay Redis configurado.
func NewMemoryLoginLimiter(window time.Duration, maxAttempts int) LoginLimiter {
	if window <= 0 {
		window = loginAttemptsWindow
	}
	if maxAttempts <= 0 {
		maxAttempts = loginAttemptsMax
	}
	return &memoryLoginLimiter{
		window:      window,
		maxAttempts: maxAttempts,
		attempts:    make(map[string][]time.Time),
		now:         time.Now,
	}
}

func (l *memoryLoginLimiter) Allow(email string) bool {
	email = normalizeEmail(email)
	if email == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cutoff := now.Add(-l.window)
	recent := l.attempts[email][:0]
	for _, at := range l.attempts[email] {
		if at.After(cutoff) {
			recent = append(recent, at)
		}
	}
	if len(recent) >= l.maxAttempts {
		l.attempts[email] = recent
		return false
	}
	l.attempts[email] = append(recent, now)
	return true
}
