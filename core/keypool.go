package core

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNoAPIKeys is returned when the pool is constructed with an empty key list.
	ErrNoAPIKeys = errors.New("no API keys configured")

	// ErrPoolExhausted is returned by Acquire when every key is disabled.
	ErrPoolExhausted = errors.New("all API keys are temporarily disabled")
)

// KeyState tracks usage and health for a single API key.
// All fields are guarded by the owning pool's mutex.
type KeyState struct {
	key             string
	totalRequests   uint64
	quotaUsed       uint64
	lastUsedAt      *time.Time
	disabled        bool
	disabledUntil   *time.Time
	lastExhaustedAt *time.Time
}

// KeyStatus is a read-only health record for one key. The key itself is
// redacted to its last four characters.
type KeyStatus struct {
	KeyPreview      string
	TotalRequests   uint64
	QuotaUsed       uint64
	LastUsedAt      *time.Time
	Disabled        bool
	DisabledUntil   *time.Time
	LastExhaustedAt *time.Time
}

// KeyPool rotates a fixed set of API keys round-robin, skipping keys that
// are cooling down after a quota error. The key list is immutable after
// construction; only per-key health state changes at runtime.
type KeyPool struct {
	mu     sync.Mutex
	keys   []*KeyState
	cursor int
	logger *logrus.Logger

	// now is swapped out in tests to drive cooldown expiry.
	now func() time.Time
}

// NewKeyPool builds a pool from an ordered, non-empty key list.
func NewKeyPool(keys []string, logger *logrus.Logger) (*KeyPool, error) {
	if len(keys) == 0 {
		return nil, ErrNoAPIKeys
	}

	p := &KeyPool{
		keys:   make([]*KeyState, 0, len(keys)),
		logger: logger,
		now:    time.Now,
	}
	for _, k := range keys {
		p.keys = append(p.keys, &KeyState{key: k})
	}

	logger.Infof("Initialized key pool with %d keys", len(p.keys))
	return p, nil
}

// Size returns the number of keys in the pool.
func (p *KeyPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Acquire returns the next usable key in round-robin order.
//
// Disabled keys whose cooldown has expired are re-enabled first. The cursor
// advances past every entry the scan visits, including disabled ones it
// skips, so load stays evenly spread even when keys drop in and out of
// rotation. Returns ErrPoolExhausted when every key is disabled.
func (p *KeyPool) Acquire() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()

	// Re-enable keys whose cooldown has expired.
	for _, ks := range p.keys {
		if ks.disabled && ks.disabledUntil != nil && !now.Before(*ks.disabledUntil) {
			p.logger.Infof("Re-enabling key %s", redactKey(ks.key))
			ks.disabled = false
			ks.disabledUntil = nil
		}
	}

	for attempts := 0; attempts < len(p.keys); attempts++ {
		ks := p.keys[p.cursor]
		p.cursor = (p.cursor + 1) % len(p.keys)

		if ks.disabled {
			continue
		}

		ks.totalRequests++
		used := now
		ks.lastUsedAt = &used

		p.logger.Debugf("Using key %s (requests: %d, quota: ~%d)",
			redactKey(ks.key), ks.totalRequests, ks.quotaUsed)
		return ks.key, nil
	}

	return "", ErrPoolExhausted
}

// RecordUsage adds estimated quota units to a key's counter. Unknown keys
// are ignored.
func (p *KeyPool) RecordUsage(key string, costUnits uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ks := range p.keys {
		if ks.key == key {
			ks.quotaUsed += costUnits
			return
		}
	}
}

// Disable withholds a key from rotation until the cooldown elapses.
// Disabling an already-disabled key overwrites its cooldown window.
func (p *KeyPool) Disable(key string, cooldown time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	for _, ks := range p.keys {
		if ks.key == key {
			until := now.Add(cooldown)
			ks.disabled = true
			ks.disabledUntil = &until
			exhausted := now
			ks.lastExhaustedAt = &exhausted

			p.logger.Warnf("Key %s exceeded quota, disabled until %s",
				redactKey(ks.key), until.Format(time.RFC3339))
			return
		}
	}
}

// ResetAll clears quota counters and re-enables every key. Call it once per
// upstream quota epoch; the pool holds no timer of its own.
func (p *KeyPool) ResetAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ks := range p.keys {
		ks.quotaUsed = 0
		ks.disabled = false
		ks.disabledUntil = nil
		ks.lastExhaustedAt = nil
	}

	p.logger.Info("Reset quota state for all API keys")
}

// Snapshot returns one redacted health record per key, in pool order.
func (p *KeyPool) Snapshot() []KeyStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]KeyStatus, 0, len(p.keys))
	for _, ks := range p.keys {
		out = append(out, KeyStatus{
			KeyPreview:      redactKey(ks.key),
			TotalRequests:   ks.totalRequests,
			QuotaUsed:       ks.quotaUsed,
			LastUsedAt:      copyTime(ks.lastUsedAt),
			Disabled:        ks.disabled,
			DisabledUntil:   copyTime(ks.disabledUntil),
			LastExhaustedAt: copyTime(ks.lastExhaustedAt),
		})
	}
	return out
}

func redactKey(key string) string {
	if len(key) <= 4 {
		return "...." // too short to show a suffix safely
	}
	return "..." + key[len(key)-4:]
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
