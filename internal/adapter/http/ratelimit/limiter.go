// Package ratelimit throttles repeated requests per client, used to slow
// down credential guessing on the auth endpoints.
package ratelimit

import (
	"sync"
	"time"
)

type attemptRecord struct {
	count        int
	lastAttempt  time.Time
	blockedUntil time.Time
}

// Limiter counts attempts per client within a sliding window and blocks the
// client for a fixed duration once the budget is exceeded.
type Limiter struct {
	mu             sync.Mutex
	attempts       map[string]*attemptRecord
	maxAttempts    int
	windowDuration time.Duration
	blockDuration  time.Duration
}

func NewLimiter(maxAttempts int, windowDuration, blockDuration time.Duration) *Limiter {
	limiter := &Limiter{
		attempts:       make(map[string]*attemptRecord),
		maxAttempts:    maxAttempts,
		windowDuration: windowDuration,
		blockDuration:  blockDuration,
	}

	go limiter.cleanup()

	return limiter
}

// Check records an attempt and reports whether the client is still allowed.
// When blocked, the remaining block duration is returned.
func (l *Limiter) Check(clientID string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	record, exists := l.attempts[clientID]
	if !exists {
		record = &attemptRecord{lastAttempt: now}
		l.attempts[clientID] = record
	}

	if now.Before(record.blockedUntil) {
		return false, record.blockedUntil.Sub(now)
	}

	if now.Sub(record.lastAttempt) > l.windowDuration {
		record.count = 0
	}

	record.count++
	record.lastAttempt = now

	if record.count > l.maxAttempts {
		record.blockedUntil = now.Add(l.blockDuration)
		return false, l.blockDuration
	}

	return true, 0
}

// Reset clears a client's history, called after a successful login.
func (l *Limiter) Reset(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.attempts, clientID)
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		l.mu.Lock()
		now := time.Now()
		for clientID, record := range l.attempts {
			if now.Sub(record.lastAttempt) > l.windowDuration*2 && now.After(record.blockedUntil) {
				delete(l.attempts, clientID)
			}
		}
		l.mu.Unlock()
	}
}
