package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIPRateLimiterDropsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC)
	store := newIPRateLimiter(time.Second, 3)
	store.now = func() time.Time { return now }
	store.lastSweep = now

	store.get("10.0.0.1")
	store.get("10.0.0.2")
	assert.Len(t, store.limiters, 2)

	// Still inside the refill window: nothing is dropped.
	now = now.Add(2 * time.Second)
	store.get("10.0.0.2")
	assert.Len(t, store.limiters, 2)

	// 10.0.0.1 has been idle for a full refill; 10.0.0.2 has not.
	now = now.Add(2 * time.Second)
	store.get("10.0.0.3")
	assert.Len(t, store.limiters, 2)
	assert.NotContains(t, store.limiters, "10.0.0.1")
	assert.Contains(t, store.limiters, "10.0.0.2")
	assert.Contains(t, store.limiters, "10.0.0.3")
}

func TestIPRateLimiterRecreatedBucketKeepsAllowance(t *testing.T) {
	now := time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC)
	store := newIPRateLimiter(time.Second, 2)
	store.now = func() time.Time { return now }
	store.lastSweep = now

	assert.True(t, store.get("10.0.0.1").AllowN(now, 2))
	assert.False(t, store.get("10.0.0.1").AllowN(now, 1))

	now = now.Add(5 * time.Second)
	assert.True(t, store.get("10.0.0.1").AllowN(now, 2))
}
