// Package ratelimit enforces named token-bucket quotas per key (user, IP or
// service), backed by a bounded in-memory bucket cache. It is used both at the
// API edge and inside the generative-AI client.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Policy defines a named token bucket: Capacity tokens, refilled at
// RefillTokens per RefillPeriod.
type Policy struct {
	Name         string
	Capacity     int
	RefillTokens int
	RefillPeriod time.Duration
}

// Built-in policies. Capacity and refill can be overridden via a YAML policy
// file (see LoadPolicyFile).
var (
	LoginAttempts    = Policy{"login_attempts", 5, 5, 15 * time.Minute}
	Registration     = Policy{"registration", 3, 3, time.Hour}
	FileUploads      = Policy{"file_uploads", 20, 20, time.Hour}
	LargeFileUploads = Policy{"large_file_uploads", 5, 5, time.Hour}
	IncidentCreation = Policy{"incident_creation", 10, 10, 10 * time.Minute}
	GeneralAPI       = Policy{"general_api", 100, 100, time.Minute}
	VisionAPI        = Policy{"vision_api", 50, 50, time.Hour}

	// Quotas consumed by the generative-AI client. The service-wide buckets
	// use a single fixed key; the per-user bucket is keyed by email.
	AIServiceRequests = Policy{"ai_service_requests", 20, 20, time.Minute}
	AIServiceTokens   = Policy{"ai_service_tokens", 40000, 40000, time.Minute}
	AIUserRequests    = Policy{"ai_user_requests", 5, 5, time.Minute}
)

// DefaultMaxKeys and DefaultIdleTTL bound the bucket cache so memory stays
// bounded under many distinct IPs and users. Eviction is a cache concern,
// not a durability guarantee.
const (
	DefaultMaxKeys = 10000
	DefaultIdleTTL = time.Hour
)

type bucket struct {
	lim      *rate.Limiter
	lastUsed time.Time
}

// Limiter owns a bounded cache of per-key buckets. Constructed once at
// startup and passed by reference to consumers; safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	maxKeys int
	idleTTL time.Duration
	now     func() time.Time
}

func New(maxKeys int, idleTTL time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		maxKeys: maxKeys,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Allow attempts to atomically consume one token from the bucket for
// (key, policy). A false return means the caller must reject the request.
func (l *Limiter) Allow(key string, p Policy) bool {
	return l.AllowN(key, p, 1)
}

// AllowN consumes n tokens at once; used for token-budget quotas where one
// request costs its estimated token count.
func (l *Limiter) AllowN(key string, p Policy, n int) bool {
	return l.acquire(key, p).AllowN(l.now(), n)
}

// Remaining reports the tokens currently available for (key, policy).
func (l *Limiter) Remaining(key string, p Policy) int {
	tokens := int(l.acquire(key, p).Tokens())
	if tokens < 0 {
		return 0
	}
	return tokens
}

// TimeUntilRefill reports how long until at least one token is available.
// The second return is false when a token is available now.
func (l *Limiter) TimeUntilRefill(key string, p Policy) (time.Duration, bool) {
	lim := l.acquire(key, p)
	r := lim.ReserveN(l.now(), 1)
	if !r.OK() {
		return 0, false
	}
	delay := r.DelayFrom(l.now())
	r.CancelAt(l.now())
	if delay <= 0 {
		return 0, false
	}
	return delay, true
}

// Clear drops the bucket for (key, policy), resetting its quota.
func (l *Limiter) Clear(key string, p Policy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, cacheKey(key, p))
}

// Size reports the number of cached buckets.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) acquire(key string, p Policy) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	ck := cacheKey(key, p)
	now := l.now()

	if b, ok := l.buckets[ck]; ok {
		b.lastUsed = now
		return b.lim
	}

	if len(l.buckets) >= l.maxKeys {
		l.evict(now)
	}

	per := p.RefillPeriod.Seconds()
	if per <= 0 {
		per = 1
	}
	b := &bucket{
		lim:      rate.NewLimiter(rate.Limit(float64(p.RefillTokens)/per), p.Capacity),
		lastUsed: now,
	}
	l.buckets[ck] = b
	return b.lim
}

// evict removes idle buckets; if none are idle it removes the least recently
// used one so the cache never exceeds maxKeys. Caller holds l.mu.
func (l *Limiter) evict(now time.Time) {
	var oldestKey string
	var oldestUsed time.Time

	for k, b := range l.buckets {
		if now.Sub(b.lastUsed) >= l.idleTTL {
			delete(l.buckets, k)
			continue
		}
		if oldestKey == "" || b.lastUsed.Before(oldestUsed) {
			oldestKey = k
			oldestUsed = b.lastUsed
		}
	}

	if len(l.buckets) >= l.maxKeys && oldestKey != "" {
		delete(l.buckets, oldestKey)
	}
}

func cacheKey(key string, p Policy) string {
	return p.Name + ":" + key
}

// UserKey builds the cache key for user-scoped rate limiting.
func UserKey(email string) string {
	return "user:" + email
}

// IPKey builds the cache key for IP-scoped rate limiting.
func IPKey(addr string) string {
	return "ip:" + addr
}

// ServiceKey is the fixed key for service-wide buckets.
const ServiceKey = "service"
