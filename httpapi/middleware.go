package httpapi

import (
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/sentinelgrid/authcore"
)

const requestIDHeader = "X-Request-ID"

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestContext attaches client IP, User-Agent and a request id to the
// request context for rate limiting and audit. An incoming X-Request-ID is
// kept when it is short and printable.
func RequestContext(trustForwardedFor bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get(requestIDHeader)
			if !validRequestID(rid) {
				rid = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, rid)

			ctx := authcore.WithClientIP(r.Context(), clientIP(r, trustForwardedFor))
			ctx = authcore.WithUserAgent(ctx, r.UserAgent())
			ctx = authcore.WithRequestID(ctx, rid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, c := range id {
		if c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}

// Logging: method, path, status, duration. Query strings are not logged.
func Logging(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)
			logger.Printf("%s %s -> %d (%s) rid=%s", r.Method, r.URL.Path, sw.code, time.Since(start), w.Header().Get(requestIDHeader))
		})
	}
}

// SecurityHeaders sets hardening headers for a JSON-only API.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Throttle is a per-client-IP token bucket in front of every route. It is a
// per-process guard; the login limiter in the engine is the shared one.
type Throttle struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewThrottle allows perSecond requests per IP with the given burst.
func NewThrottle(perSecond float64, burst int) *Throttle {
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: 5 * time.Minute,
		now:     time.Now,
	}
}

// Allow consumes one token for ip.
func (t *Throttle) Allow(ip string) bool {
	if ip == "" {
		ip = "unknown"
	}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.lastSweep) > t.idleTTL {
		for k, b := range t.buckets {
			if now.Sub(b.seen) > t.idleTTL {
				delete(t.buckets, k)
			}
		}
		t.lastSweep = now
	}

	b, ok := t.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(t.limit, t.burst)}
		t.buckets[ip] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// Middleware rejects over-budget requests with 429.
func (t *Throttle) Middleware(trustForwardedFor bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !t.Allow(clientIP(r, trustForwardedFor)) {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
