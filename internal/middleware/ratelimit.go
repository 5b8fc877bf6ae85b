package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware keeps one token bucket per client IP.
type RateLimitMiddleware struct {
	limit      rate.Limit
	burst      int
	idleTTL    time.Duration
	trustProxy bool

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimitMiddleware allows rps requests per second per client with the
// given burst. A non-positive rps disables limiting. Clients are keyed by the
// connection address unless trustProxy is set, in which case X-Forwarded-For
// and X-Real-IP are honoured.
func NewRateLimitMiddleware(rps float64, burst int, trustProxy bool) *RateLimitMiddleware {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimitMiddleware{
		limit:      limit,
		burst:      burst,
		idleTTL:    10 * time.Minute,
		trustProxy: trustProxy,
		clients:    make(map[string]*client),
	}
}

// RateLimit rejects requests from clients that exhausted their bucket.
func (m *RateLimitMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r, m.trustProxy)
		if !m.limiter(ip, time.Now()).Allow() {
			log.WithFields(log.Fields{"client": ip, "path": r.URL.Path}).Warn("Rate limit exceeded")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) limiter(ip string, now time.Time) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) >= m.idleTTL {
		for key, c := range m.clients {
			if now.Sub(c.lastSeen) > m.idleTTL {
				delete(m.clients, key)
			}
		}
		m.lastSweep = now
	}

	c, ok := m.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

// getClientIP extracts the client IP from the request. Proxy headers are
// only read when trustProxy is set; otherwise any client could pick its own
// key.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
			return strings.TrimSpace(strings.Split(ip, ",")[0])
		}
		if ip := r.Header.Get("X-Real-IP"); ip != "" {
			return strings.TrimSpace(ip)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
