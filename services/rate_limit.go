package services

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/lumen-studio/aperture_api/dto"
)

// RateLimitService guards the login path against repeated failed attempts per
// identifier (sanitized email). State is process-local and ephemeral: it does
// not survive restarts and is not shared across instances, which is the
// accepted threat model for slowing credential stuffing from a single process
// boundary.
type RateLimitService struct {
	context.DefaultService

	maxAttempts     int
	windowDuration  time.Duration
	blockDuration   time.Duration
	cleanupInterval time.Duration
	extendedWindow  int
	now             func() time.Time

	entries map[string]*rateLimitEntry
	mutex   sync.Mutex
	closed  chan struct{}
}

type rateLimitEntry struct {
	attempts     int
	firstAttempt time.Time
	blockedUntil *time.Time
}

const RATE_LIMIT_SVC = "rate_limit_svc"

func (svc RateLimitService) Id() string {
	return RATE_LIMIT_SVC
}

func (svc *RateLimitService) Configure(ctx *context.Context) error {
	svc.maxAttempts = envInt("LOGIN_RATE_LIMIT_MAX_ATTEMPTS", 5)
	svc.windowDuration = envDuration("LOGIN_RATE_LIMIT_WINDOW", 15*time.Minute)
	svc.blockDuration = envDuration("LOGIN_RATE_LIMIT_BLOCK", 30*time.Minute)
	svc.cleanupInterval = envDuration("LOGIN_RATE_LIMIT_CLEANUP_INTERVAL", time.Minute)
	svc.extendedWindow = 2
	svc.now = time.Now
	svc.entries = make(map[string]*rateLimitEntry)
	svc.closed = make(chan struct{})

	return svc.DefaultService.Configure(ctx)
}

func (svc *RateLimitService) Start() error {
	go svc.startCleanupJob()
	return nil
}

func (svc *RateLimitService) Shutdown() {
	close(svc.closed)
}

// Check records one attempt for the identifier and reports whether it is
// allowed. The decision order matters: an active block wins over everything,
// an expired block or expired tracking window resets the entry, and only then
// is the attempt counter consulted. A successful authentication is expected
// to call ClearAttempts, so only failures accumulate.
func (svc *RateLimitService) Check(identifier string) dto.RateLimitInfo {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	now := svc.now()
	entry, exists := svc.entries[identifier]

	if !exists {
		svc.entries[identifier] = &rateLimitEntry{attempts: 1, firstAttempt: now}
		return dto.RateLimitInfo{Allowed: true, RemainingAttempts: svc.maxAttempts - 1}
	}

	if entry.blockedUntil != nil && entry.blockedUntil.After(now) {
		resetTime := *entry.blockedUntil
		return dto.RateLimitInfo{Allowed: false, ResetTime: &resetTime}
	}

	if entry.blockedUntil != nil {
		// Block has expired, treat as fresh.
		svc.entries[identifier] = &rateLimitEntry{attempts: 1, firstAttempt: now}
		return dto.RateLimitInfo{Allowed: true, RemainingAttempts: svc.maxAttempts - 1}
	}

	if now.Sub(entry.firstAttempt) > svc.windowDuration {
		svc.entries[identifier] = &rateLimitEntry{attempts: 1, firstAttempt: now}
		return dto.RateLimitInfo{Allowed: true, RemainingAttempts: svc.maxAttempts - 1}
	}

	if entry.attempts >= svc.maxAttempts {
		blockedUntil := now.Add(svc.blockDuration)
		entry.blockedUntil = &blockedUntil
		resetTime := blockedUntil
		return dto.RateLimitInfo{Allowed: false, ResetTime: &resetTime}
	}

	entry.attempts++
	return dto.RateLimitInfo{Allowed: true, RemainingAttempts: svc.maxAttempts - entry.attempts}
}

// RecordFailedAttempt is Check with the result discarded. It exists so a
// caller that already knows the attempt failed can state that intent without
// caring about the decision.
func (svc *RateLimitService) RecordFailedAttempt(identifier string) {
	svc.Check(identifier)
}

// ClearAttempts removes the entry, called on successful authentication.
func (svc *RateLimitService) ClearAttempts(identifier string) {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	delete(svc.entries, identifier)
}

func (svc *RateLimitService) IsBlocked(identifier string) bool {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	entry, exists := svc.entries[identifier]
	if !exists {
		return false
	}
	return entry.blockedUntil != nil && entry.blockedUntil.After(svc.now())
}

// Cleanup drops entries whose block expired at least a full window ago, and
// unblocked entries idle past twice the window. Bounds memory use; called
// periodically by the sweep goroutine.
func (svc *RateLimitService) Cleanup() {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	now := svc.now()
	extendedWindow := svc.windowDuration * time.Duration(svc.extendedWindow)

	for identifier, entry := range svc.entries {
		expiredBlock := entry.blockedUntil != nil &&
			!entry.blockedUntil.After(now) &&
			now.Sub(*entry.blockedUntil) > svc.windowDuration

		expiredWindow := entry.blockedUntil == nil &&
			now.Sub(entry.firstAttempt) > extendedWindow

		if expiredBlock || expiredWindow {
			delete(svc.entries, identifier)
		}
	}
}

// FormatResetTime renders the time until reset rounded up to the nearest
// minute, with "1 minute" as the smallest reported unit.
func (svc *RateLimitService) FormatResetTime(resetTime time.Time) string {
	minutes := int(math.Ceil(resetTime.Sub(svc.now()).Minutes()))
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

func (svc *RateLimitService) startCleanupJob() {
	ticker := time.NewTicker(svc.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			svc.Cleanup()
		case <-svc.closed:
			log.Println("Rate limit cleanup job stopped")
			return
		}
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			return v
		}
	}
	return fallback
}
