package middleware

import (
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"servus-backend/pkg/utils"
)

const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter throttles a route per client IP with a token bucket.
type IPRateLimiter struct {
	name     string
	rps      rate.Limit
	burst    int
	mu       sync.Mutex
	visitors map[string]*visitor
	now      func() time.Time
}

func NewIPRateLimiter(name string, rps float64, burst int) *IPRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &IPRateLimiter{
		name:     name,
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

func (l *IPRateLimiter) limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	// sweep idle visitors on the way in
	for key, other := range l.visitors {
		if now.Sub(other.lastSeen) > limiterIdleTTL {
			delete(l.visitors, key)
		}
	}
	return v.limiter
}

func (l *IPRateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		if !l.limiter(ip).Allow() {
			log.WithFields(log.Fields{
				"limiter": l.name,
				"ip":      ip,
			}).Warn("[RateLimit] Request rejected")
			w.Header().Set("Retry-After", "1")
			utils.JSON(w, http.StatusTooManyRequests, utils.ErrorResponse{Message: "too many requests, slow down"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
