package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/marcusj/safetrack/internal/api/response"
	"github.com/marcusj/safetrack/internal/metrics"
	"github.com/marcusj/safetrack/internal/ratelimit"
)

// KeyFunc derives the rate-limit bucket key for a request.
type KeyFunc func(r *http.Request) string

// ByIP keys on the client address. Relies on chi's RealIP middleware running
// earlier so proxied requests resolve to the original client.
func ByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return ratelimit.IPKey(host)
}

// ByUser keys on the authenticated caller, falling back to the client address
// before auth has run.
func ByUser(r *http.Request) string {
	if id := GetIdentity(r.Context()); id != nil {
		return ratelimit.UserKey(id.Email)
	}
	return ByIP(r)
}

// RateLimit enforces the policy per key. Rejected requests get a 429 with
// Retry-After; allowed ones carry X-RateLimit-Remaining.
func RateLimit(limiter *ratelimit.Limiter, policy ratelimit.Policy, keyFn KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if !limiter.Allow(key, policy) {
				metrics.RateLimitRejections.WithLabelValues(policy.Name).Inc()
				if wait, ok := limiter.TimeUntilRefill(key, policy); ok {
					seconds := int(wait.Seconds())
					if seconds < 1 {
						seconds = 1
					}
					w.Header().Set("Retry-After", strconv.Itoa(seconds))
				}
				w.Header().Set("X-RateLimit-Remaining", "0")
				response.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded. Please try again later.")
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key, policy)))
			next.ServeHTTP(w, r)
		})
	}
}
