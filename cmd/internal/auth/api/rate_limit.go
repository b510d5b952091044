package authapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter throttles login attempts with fixed-window counters in
// Redis. A nil limiter (no Redis configured) never blocks.
type LoginLimiter struct {
	rdb redis.UniversalClient
}

func NewLoginLimiter(rdb redis.UniversalClient) *LoginLimiter {
	if rdb == nil {
		return nil
	}
	return &LoginLimiter{rdb: rdb}
}

// Allow records one attempt under key and reports whether the caller
// is over the limit for the current window. retryAfter is the time
// left in the window when blocked.
func (l *LoginLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) (blocked bool, retryAfter time.Duration, err error) {
	if l == nil || l.rdb == nil || max <= 0 || window <= 0 || strings.TrimSpace(key) == "" {
		return false, 0, nil
	}

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, 0, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	if count <= int64(max) {
		return false, 0, nil
	}

	ttl, err := l.rdb.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		ttl = window
	}
	return true, ttl, nil
}

func loginIPKey(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return "porchlight:login:ip:" + ip.String()
}

func loginIdentifierKey(identifier string) string {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return ""
	}
	return "porchlight:login:id:" + identifier
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(retryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
