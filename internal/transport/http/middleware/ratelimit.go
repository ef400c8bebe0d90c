package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/go-otp-onboarding/internal/pkg/ratelimit"
)

const tooManyRequests = "Too many requests from this IP, please try again later"

// RateLimiter rejects clients that exceed the limiter's quota. Clients are
// keyed by the host part of RemoteAddr, so proxy headers are only honoured
// when chi's RealIP middleware runs first.
type RateLimiter struct {
	limiter ratelimit.Limiter
}

func NewRateLimiter(l ratelimit.Limiter) *RateLimiter {
	return &RateLimiter{limiter: l}
}

// Limit is the middleware handler that enforces the rate limit per client address.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		d, err := rl.limiter.Allow(r.Context(), ip)
		if err != nil {
			// Fail open: a limiter outage must not take the endpoint down.
			slog.Warn("rate limiter unavailable", "ip", ip, "error", err)
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			slog.Info("rate limit exceeded", "ip", ip, "path", r.URL.Path, "retry_after", secs)
			writeJSONError(w, http.StatusTooManyRequests, tooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
