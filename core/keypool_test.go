package core

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeClock lets tests move the pool's notion of "now".
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestPool(t *testing.T, keys ...string) (*KeyPool, *fakeClock) {
	t.Helper()
	pool, err := NewKeyPool(keys, testLogger())
	require.NoError(t, err)

	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	pool.now = clock.Now
	return pool, clock
}

func TestNewKeyPoolEmpty(t *testing.T) {
	_, err := NewKeyPool(nil, testLogger())
	assert.ErrorIs(t, err, ErrNoAPIKeys)

	_, err = NewKeyPool([]string{}, testLogger())
	assert.ErrorIs(t, err, ErrNoAPIKeys)
}

func TestAcquireRoundRobin(t *testing.T) {
	pool, _ := newTestPool(t, "key-alpha", "key-bravo", "key-charlie")

	// Two full cycles: each key exactly once per cycle, in list order.
	want := []string{
		"key-alpha", "key-bravo", "key-charlie",
		"key-alpha", "key-bravo", "key-charlie",
	}
	for i, expected := range want {
		got, err := pool.Acquire()
		require.NoError(t, err)
		assert.Equal(t, expected, got, "acquisition %d", i)
	}
}

func TestDisableAndCooldownExpiry(t *testing.T) {
	pool, clock := newTestPool(t, "key-alpha", "key-bravo")

	pool.Disable("key-alpha", time.Hour)

	// While cooling down, alpha is never returned.
	for i := 0; i < 4; i++ {
		got, err := pool.Acquire()
		require.NoError(t, err)
		assert.Equal(t, "key-bravo", got)
	}

	// At exactly disabledUntil the key is eligible again, no explicit
	// enable needed.
	clock.Advance(time.Hour)
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		got, err := pool.Acquire()
		require.NoError(t, err)
		seen[got] = true
	}
	assert.True(t, seen["key-alpha"])
	assert.True(t, seen["key-bravo"])
}

func TestDisableOverwritesCooldown(t *testing.T) {
	pool, clock := newTestPool(t, "key-alpha", "key-bravo")

	pool.Disable("key-alpha", time.Hour)
	pool.Disable("key-alpha", 24*time.Hour) // last write wins

	clock.Advance(2 * time.Hour)
	got, err := pool.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "key-bravo", got)

	clock.Advance(23 * time.Hour)
	got, err = pool.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "key-alpha", got)
}

func TestAcquirePoolExhausted(t *testing.T) {
	pool, clock := newTestPool(t, "key-alpha", "key-bravo")

	pool.Disable("key-alpha", time.Hour)
	pool.Disable("key-bravo", 2*time.Hour)

	_, err := pool.Acquire()
	assert.ErrorIs(t, err, ErrPoolExhausted)

	// Cursor stays sane: once alpha's cooldown passes, rotation resumes
	// with alpha and nothing else.
	clock.Advance(time.Hour)
	for i := 0; i < 3; i++ {
		got, err := pool.Acquire()
		require.NoError(t, err)
		assert.Equal(t, "key-alpha", got)
	}
}

func TestAcquireSkipsDisabledAdvancesCursor(t *testing.T) {
	pool, _ := newTestPool(t, "key-alpha", "key-bravo", "key-charlie")

	// Cursor sits at bravo after one acquisition.
	got, err := pool.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "key-alpha", got)

	pool.Disable("key-bravo", time.Hour)

	// The scan passes bravo and advances beyond it: charlie, then wrap to
	// alpha, never re-visiting bravo mid-cycle.
	got, err = pool.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "key-charlie", got)

	got, err = pool.Acquire()
	require.NoError(t, err)
	assert.Equal(t, "key-alpha", got)
}

func TestRecordUsageAdditive(t *testing.T) {
	pool, _ := newTestPool(t, "key-alpha")

	pool.RecordUsage("key-alpha", 1)
	pool.RecordUsage("key-alpha", 100)

	snapshot := pool.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, uint64(101), snapshot[0].QuotaUsed)

	// Unknown keys are a silent no-op.
	pool.RecordUsage("key-unknown", 50)
	assert.Equal(t, uint64(101), pool.Snapshot()[0].QuotaUsed)
}

func TestResetAll(t *testing.T) {
	pool, _ := newTestPool(t, "key-alpha", "key-bravo")

	_, err := pool.Acquire()
	require.NoError(t, err)
	pool.RecordUsage("key-alpha", 100)
	pool.Disable("key-alpha", 24*time.Hour)
	pool.Disable("key-bravo", 24*time.Hour)

	pool.ResetAll()

	for _, ks := range pool.Snapshot() {
		assert.Equal(t, uint64(0), ks.QuotaUsed)
		assert.False(t, ks.Disabled)
		assert.Nil(t, ks.DisabledUntil)
		assert.Nil(t, ks.LastExhaustedAt)
	}

	// Both keys rotate again immediately, regardless of remaining cooldown.
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		got, err := pool.Acquire()
		require.NoError(t, err)
		seen[got] = true
	}
	assert.Len(t, seen, 2)
}

func TestSnapshotRedactsKeys(t *testing.T) {
	pool, _ := newTestPool(t, "AIzaSyTestKeyValue01", "ab")

	snapshot := pool.Snapshot()
	require.Len(t, snapshot, 2)

	assert.Equal(t, "...ue01", snapshot[0].KeyPreview)
	assert.NotContains(t, snapshot[0].KeyPreview, "AIzaSy")
	// Keys too short for a safe suffix are fully masked.
	assert.Equal(t, "....", snapshot[1].KeyPreview)
}

func TestAcquireTracksUsageStats(t *testing.T) {
	pool, clock := newTestPool(t, "key-alpha", "key-bravo")

	_, err := pool.Acquire()
	require.NoError(t, err)

	snapshot := pool.Snapshot()
	assert.Equal(t, uint64(1), snapshot[0].TotalRequests)
	require.NotNil(t, snapshot[0].LastUsedAt)
	assert.Equal(t, clock.Now(), *snapshot[0].LastUsedAt)
	assert.Equal(t, uint64(0), snapshot[1].TotalRequests)
	assert.Nil(t, snapshot[1].LastUsedAt)
}
