package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/tokenauth/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket: Requests per Window, refilled evenly,
// with up to Burst available at once.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Burst    int
}

func (c RateLimitConfig) limit() rate.Limit {
	if c.Window <= 0 || c.Requests <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(c.Requests) / c.Window.Seconds())
}

// RateLimitProfiles are the per-route tiers.
type RateLimitProfiles struct {
	// Strict guards credential endpoints against brute force.
	Strict RateLimitConfig
	// Moderate is for authenticated writes and token refresh.
	Moderate RateLimitConfig
	// Lenient is for cheap authenticated reads.
	Lenient RateLimitConfig
}

// DefaultRateLimitProfiles returns 5, 20 and 100 requests per minute.
func DefaultRateLimitProfiles() RateLimitProfiles {
	return RateLimitProfiles{
		Strict:   RateLimitConfig{Requests: 5, Window: time.Minute, Burst: 5},
		Moderate: RateLimitConfig{Requests: 20, Window: time.Minute, Burst: 20},
		Lenient:  RateLimitConfig{Requests: 100, Window: time.Minute, Burst: 100},
	}
}

// RateLimitProfilesFromEnv overlays RATELIMIT_{STRICT,MODERATE,LENIENT}_{REQUESTS,WINDOW_SEC,BURST}
// onto the defaults. Invalid or non-positive values are ignored.
func RateLimitProfilesFromEnv(getenv func(string) string) RateLimitProfiles {
	p := DefaultRateLimitProfiles()
	p.Strict = overlayRateLimit(getenv, "STRICT", p.Strict)
	p.Moderate = overlayRateLimit(getenv, "MODERATE", p.Moderate)
	p.Lenient = overlayRateLimit(getenv, "LENIENT", p.Lenient)
	return p
}

func overlayRateLimit(getenv func(string) string, tier string, c RateLimitConfig) RateLimitConfig {
	positive := func(suffix string) (int, bool) {
		n, err := strconv.Atoi(getenv("RATELIMIT_" + tier + "_" + suffix))
		return n, err == nil && n > 0
	}

	if n, ok := positive("REQUESTS"); ok {
		c.Requests = n
	}
	if n, ok := positive("WINDOW_SEC"); ok {
		c.Window = time.Duration(n) * time.Second
	}
	if n, ok := positive("BURST"); ok {
		c.Burst = n
	}
	return c
}

// KeyFunc picks the bucket a request is charged to. An empty key skips
// limiting.
type KeyFunc func(*http.Request) string

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// ByUser keys on the authenticated user id. Place after AuthnMiddleware.
func ByUser(r *http.Request) string {
	id, _ := UserIDFromContext(r.Context())
	return id
}

// ByJSONField keys on a top level string field of a JSON body, lower-cased.
// The body is restored for the handler.
func ByJSONField(field string) KeyFunc {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		buf, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(buf))
		if err != nil {
			return ""
		}

		var m map[string]json.RawMessage
		if json.Unmarshal(buf, &m) != nil {
			return ""
		}
		var v string
		if json.Unmarshal(m[field], &v) != nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(v))
	}
}

// Composite joins the non-empty keys of several KeyFuncs.
func Composite(sep string, fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			if k := fn(r); k != "" {
				parts = append(parts, k)
			}
		}
		return strings.Join(parts, sep)
	}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// RateLimiter holds one token bucket per key and drops buckets that have
// been idle for a while.
type RateLimiter struct {
	cfg  RateLimitConfig
	key  KeyFunc
	idle time.Duration
	now  func() time.Time

	buckets sync.Map // string -> *bucket

	mu        sync.Mutex
	lastSweep time.Time
}

// NewRateLimiter creates a limiter for cfg charging requests to key.
func NewRateLimiter(cfg RateLimitConfig, key KeyFunc) *RateLimiter {
	if cfg.Burst <= 0 {
		cfg.Burst = max(cfg.Requests, 1)
	}
	idle := 2 * cfg.Window
	if idle < 5*time.Minute {
		idle = 5 * time.Minute
	}
	return &RateLimiter{cfg: cfg, key: key, idle: idle, now: time.Now, lastSweep: time.Now()}
}

// Allow charges one request to key and reports whether it fits, plus the
// wait before the next token when it does not.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := rl.now()
	b := rl.bucket(key, now)

	res := b.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, rl.cfg.Window
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, d
	}
	return true, 0
}

func (rl *RateLimiter) bucket(key string, now time.Time) *bucket {
	v, ok := rl.buckets.Load(key)
	if !ok {
		v, _ = rl.buckets.LoadOrStore(key, &bucket{lim: rate.NewLimiter(rl.cfg.limit(), rl.cfg.Burst)})
		rl.sweep(now)
	}
	b := v.(*bucket)
	b.lastSeen.Store(now.UnixNano())
	return b
}

func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) < rl.idle {
		return
	}
	rl.lastSweep = now

	cutoff := now.Add(-rl.idle).UnixNano()
	rl.buckets.Range(func(k, v any) bool {
		if v.(*bucket).lastSeen.Load() < cutoff {
			rl.buckets.Delete(k)
		}
		return true
	})
}

// Middleware enforces the limiter, answering 429 with Retry-After.
func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.key(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := rl.Allow(key)
			if !ok {
				retry := max(int(wait.Round(time.Second)/time.Second), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Requests))
				w.Header().Set("X-RateLimit-Window", rl.cfg.Window.String())

				slogx.FromContext(r.Context()).Warn("rate limit exceeded",
					"endpoint", r.URL.Path,
					"retry_after", retry,
				)
				WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit is shorthand for NewRateLimiter(cfg, key).Middleware().
func RateLimit(cfg RateLimitConfig, key KeyFunc) Middleware {
	return NewRateLimiter(cfg, key).Middleware()
}
