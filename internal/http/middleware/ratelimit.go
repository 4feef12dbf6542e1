package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter hands out one token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*client
	now     func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const idleClientTTL = 10 * time.Minute

func NewRateLimiter(perMinute int) *RateLimiter {
	burst := max(perMinute/4, 1)
	return &RateLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		clients: map[string]*client{},
		now:     time.Now,
	}
}

func (l *RateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cl, ok := l.clients[ip]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = cl
		if len(l.clients)%1024 == 0 {
			l.evict(now)
		}
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

func (l *RateLimiter) evict(now time.Time) {
	for ip, cl := range l.clients {
		if now.Sub(cl.lastSeen) > idleClientTTL {
			delete(l.clients, ip)
		}
	}
}

// RateLimit rejects requests over the per-IP budget. A non-positive budget
// disables limiting.
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := NewRateLimiter(perMinute)
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
