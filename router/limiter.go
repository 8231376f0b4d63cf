package router

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	"github.com/geniusai/genius/pkg/llm"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterPruneAbove = 4096
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter is a token bucket per client IP.
type ipLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
}

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	l := &ipLimiter{visitors: make(map[string]*visitor)}
	l.configure(perSecond, burst)
	return l
}

// configure changes the limit for existing and future visitors.
func (l *ipLimiter) configure(perSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst < 1 {
		burst = 1
	}
	l.limit = rate.Limit(perSecond)
	l.burst = burst
	for _, v := range l.visitors {
		v.limiter.SetLimit(l.limit)
		v.limiter.SetBurst(l.burst)
	}
}

func (l *ipLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limit <= 0 {
		return true
	}

	v, ok := l.visitors[ip]
	if !ok {
		if len(l.visitors) >= limiterPruneAbove {
			l.prune(now)
		}
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *ipLimiter) prune(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > limiterIdleTTL {
			delete(l.visitors, ip)
		}
	}
}

// rateLimit rejects requests from clients that exhausted their bucket.
func (r *Router) rateLimit(c *fiber.Ctx) error {
	if !r.limiter.allow(c.IP(), time.Now()) {
		r.logger.Warn("client rate limited", zapIP(c))
		return c.Status(fiber.StatusTooManyRequests).JSON(llm.ErrorResponse{
			Error: msgRateLimited,
			Code:  llm.CodeRateLimited,
		})
	}
	return c.Next()
}
