package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrAllKeysExhausted is the terminal gateway result when no key could serve
// the request. Callers should treat it as "try again later".
var ErrAllKeysExhausted = errors.New("all API keys exhausted")

// QuotaScope distinguishes the two rate-limit signals the upstream API sends.
type QuotaScope int

const (
	// QuotaShortTerm is a burst/per-minute limit; the key recovers soon.
	QuotaShortTerm QuotaScope = iota
	// QuotaDaily means the key's daily allotment is gone until the next epoch.
	QuotaDaily
)

func (s QuotaScope) String() string {
	if s == QuotaDaily {
		return "daily"
	}
	return "short_term"
}

// QuotaError marks an upstream failure as a quota signal. The gateway reacts
// by cooling the key down and rotating; every other error kind passes
// through untouched.
type QuotaError struct {
	Scope QuotaScope
	Err   error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded (%s): %v", e.Scope, e.Err)
}

func (e *QuotaError) Unwrap() error { return e.Err }

// RequestFunc builds and executes one upstream request with the given key.
// The response, if any, is captured by the closure.
type RequestFunc func(apiKey string) error

// Gateway executes outbound requests with automatic key rotation on
// quota-class failures.
type Gateway struct {
	pool          *KeyPool
	shortCooldown time.Duration
	dailyCooldown time.Duration
	logger        *logrus.Logger
}

// NewGateway wires a gateway to its key pool. The cooldowns come from
// configuration: shortCooldown for burst limits, dailyCooldown for keys that
// burned their daily allotment.
func NewGateway(pool *KeyPool, shortCooldown, dailyCooldown time.Duration, logger *logrus.Logger) *Gateway {
	return &Gateway{
		pool:          pool,
		shortCooldown: shortCooldown,
		dailyCooldown: dailyCooldown,
		logger:        logger,
	}
}

// Do runs fn with up to pool-size different keys. On success the estimated
// cost is charged to the key that served the call. A *QuotaError disables
// the current key and rotates to the next; any other error aborts
// immediately and is returned unchanged.
func (g *Gateway) Do(ctx context.Context, estimatedCost uint64, fn RequestFunc) error {
	maxAttempts := g.pool.Size()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		key, err := g.pool.Acquire()
		if err != nil {
			// Every key is cooling down; more attempts won't help.
			g.logger.Warn("Key pool exhausted, giving up")
			return ErrAllKeysExhausted
		}

		err = fn(key)
		if err == nil {
			g.pool.RecordUsage(key, estimatedCost)
			return nil
		}

		var qe *QuotaError
		if errors.As(err, &qe) {
			cooldown := g.shortCooldown
			if qe.Scope == QuotaDaily {
				cooldown = g.dailyCooldown
			}
			g.logger.Warnf("Quota exceeded (%s) for key %s, rotating", qe.Scope, redactKey(key))
			g.pool.Disable(key, cooldown)
			continue
		}

		// Not a quota signal: rotating keys would not fix this.
		return err
	}

	return ErrAllKeysExhausted
}
