package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const limiterIdleEviction = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterRegistry struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rps     rate.Limit
	burst   int
}

func (reg *limiterRegistry) get(ip string) *rate.Limiter {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	cl, ok := reg.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(reg.rps, reg.burst)}
		reg.clients[ip] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter
}

func (reg *limiterRegistry) evictIdle() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	cutoff := time.Now().Add(-limiterIdleEviction)
	for ip, cl := range reg.clients {
		if cl.lastSeen.Before(cutoff) {
			delete(reg.clients, ip)
		}
	}
}

// RateLimit provides per-IP token-bucket rate limiting.
// rps is the sustained request rate, burst the bucket size.
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	reg := &limiterRegistry{
		clients: make(map[string]*clientLimiter),
		rps:     rps,
		burst:   burst,
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			reg.evictIdle()
		}
	}()

	return func(c *gin.Context) {
		if !reg.get(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
