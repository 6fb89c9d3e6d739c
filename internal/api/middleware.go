package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nekogravitycat/massage-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/massage-booking-backend/internal/pkg/response"
)

const requestIDHeader = "X-Request-ID"

var ErrTooManyRequests = apperror.New(http.StatusTooManyRequests, "too many requests, try again later")

// RequestLogger logs one line per request and tags it with a request id.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// ipRateLimiter keeps one token bucket per client IP. A bucket idle for
// longer than it takes to refill completely is dropped; recreating it later
// gives the same allowance.
type ipRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	every     time.Duration
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(every time.Duration, burst int) *ipRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ipRateLimiter{
		limiters:  make(map[string]*ipLimiter),
		every:     every,
		burst:     burst,
		idle:      every * time.Duration(burst),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (s *ipRateLimiter) get(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.idle {
		s.sweep(now)
	}

	l, ok := s.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(rate.Every(s.every), s.burst)}
		s.limiters[ip] = l
	}
	l.lastSeen = now
	return l.limiter
}

func (s *ipRateLimiter) sweep(now time.Time) {
	for ip, l := range s.limiters {
		if now.Sub(l.lastSeen) >= s.idle {
			delete(s.limiters, ip)
		}
	}
	s.lastSweep = now
}

// RateLimit allows burst requests per client IP, refilled one every interval.
// A non-positive interval disables limiting.
func RateLimit(every time.Duration, burst int, logger *zap.Logger) gin.HandlerFunc {
	if every <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	store := newIPRateLimiter(every, burst)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !store.get(ip).Allow() {
			logger.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", c.Request.URL.Path))
			response.Error(c, ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
