package ratelimit

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllow_ExhaustsCapacity(t *testing.T) {
	l := New(DefaultMaxKeys, DefaultIdleTTL)
	p := Policy{"test", 5, 5, 15 * time.Minute}
	key := IPKey("10.0.0.1")

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(key, p), "call %d should be allowed", i+1)
	}
	assert.False(t, l.Allow(key, p), "6th call must be rejected")
}

func TestRemaining_DecreasesMonotonically(t *testing.T) {
	l := New(DefaultMaxKeys, DefaultIdleTTL)
	p := Policy{"test", 5, 5, 15 * time.Minute}
	key := UserKey("worker@example.com")

	prev := l.Remaining(key, p)
	assert.Equal(t, 5, prev)

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow(key, p))
		remaining := l.Remaining(key, p)
		assert.Less(t, remaining, prev)
		prev = remaining
	}
	assert.Equal(t, 0, prev)
}

func TestTimeUntilRefill(t *testing.T) {
	l := New(DefaultMaxKeys, DefaultIdleTTL)
	p := Policy{"test", 2, 2, time.Hour}
	key := IPKey("10.0.0.2")

	_, waiting := l.TimeUntilRefill(key, p)
	assert.False(t, waiting, "tokens available, no wait expected")

	require.True(t, l.Allow(key, p))
	require.True(t, l.Allow(key, p))

	d, waiting := l.TimeUntilRefill(key, p)
	assert.True(t, waiting)
	assert.Greater(t, d, time.Duration(0))
}

func TestKeysAreIndependent(t *testing.T) {
	l := New(DefaultMaxKeys, DefaultIdleTTL)
	p := Policy{"test", 1, 1, time.Hour}

	assert.True(t, l.Allow(IPKey("10.0.0.1"), p))
	assert.False(t, l.Allow(IPKey("10.0.0.1"), p))
	assert.True(t, l.Allow(IPKey("10.0.0.2"), p))
}

func TestPoliciesAreIndependent(t *testing.T) {
	l := New(DefaultMaxKeys, DefaultIdleTTL)
	a := Policy{"a", 1, 1, time.Hour}
	b := Policy{"b", 1, 1, time.Hour}
	key := UserKey("worker@example.com")

	assert.True(t, l.Allow(key, a))
	assert.False(t, l.Allow(key, a))
	assert.True(t, l.Allow(key, b))
}

func TestAllowN_TokenBudget(t *testing.T) {
	l := New(DefaultMaxKeys, DefaultIdleTTL)
	p := Policy{"tokens", 1000, 1000, time.Minute}

	assert.True(t, l.AllowN(ServiceKey, p, 600))
	assert.False(t, l.AllowN(ServiceKey, p, 600), "budget exceeded")
	assert.True(t, l.AllowN(ServiceKey, p, 300))
}

func TestClear_ResetsQuota(t *testing.T) {
	l := New(DefaultMaxKeys, DefaultIdleTTL)
	p := Policy{"test", 1, 1, time.Hour}
	key := IPKey("10.0.0.3")

	require.True(t, l.Allow(key, p))
	require.False(t, l.Allow(key, p))

	l.Clear(key, p)
	assert.True(t, l.Allow(key, p))
}

func TestEviction_BoundsCacheSize(t *testing.T) {
	l := New(3, time.Hour)
	p := Policy{"test", 1, 1, time.Hour}

	l.Allow(IPKey("10.0.0.1"), p)
	l.Allow(IPKey("10.0.0.2"), p)
	l.Allow(IPKey("10.0.0.3"), p)
	l.Allow(IPKey("10.0.0.4"), p)

	assert.LessOrEqual(t, l.Size(), 3)
}

func TestEviction_DropsIdleBuckets(t *testing.T) {
	l := New(2, time.Millisecond)
	p := Policy{"test", 1, 1, time.Hour}

	l.Allow(IPKey("10.0.0.1"), p)
	l.Allow(IPKey("10.0.0.2"), p)
	time.Sleep(5 * time.Millisecond)

	// Exhausted bucket for .1 was evicted as idle, so a fresh one allows again.
	l.Allow(IPKey("10.0.0.3"), p)
	assert.True(t, l.Allow(IPKey("10.0.0.1"), p))
}

func TestLoadPolicyFile(t *testing.T) {
	orig := GeneralAPI
	t.Cleanup(func() { GeneralAPI = orig })

	path := filepath.Join(t.TempDir(), "policies.yaml")
	content := "general_api:\n  capacity: 250\n  refill_tokens: 250\n  refill_period: 2m\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	require.NoError(t, LoadPolicyFile(path))
	assert.Equal(t, 250, GeneralAPI.Capacity)
	assert.Equal(t, 250, GeneralAPI.RefillTokens)
	assert.Equal(t, 2*time.Minute, GeneralAPI.RefillPeriod)
}

func TestLoadPolicyFile_UnknownPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nope:\n  capacity: 1\n"), 0o600))

	err := LoadPolicyFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rate-limit policy")
}

func TestLoadPolicyFile_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	content := "general_api:\n  refill_period: sometimes\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	err := LoadPolicyFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid refill_period")
}
