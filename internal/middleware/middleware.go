// CloudMigrate Pro Middleware
// Recovery, rate limiting, request IDs, CORS and security headers

package middleware

import (
	"net/http"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"cloudmigrate/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Recovery middleware with a uniform error body
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L().Error("panic recovered",
			zap.String("request_id", c.GetString("request_id")),
			zap.Any("panic", recovered),
			zap.ByteString("stack", debug.Stack()))

		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	})
}

// RateLimiter represents a rate limiter for a specific client
type RateLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter manages rate limiters for different IP addresses
type IPRateLimiter struct {
	limiters map[string]*RateLimiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
	cleanup  time.Duration
}

// NewIPRateLimiter creates a new IP-based rate limiter
func NewIPRateLimiter(rateLimit rate.Limit, burst int) *IPRateLimiter {
	limiter := &IPRateLimiter{
		limiters: make(map[string]*RateLimiter),
		rate:     rateLimit,
		burst:    burst,
		cleanup:  time.Minute * 10,
	}

	go limiter.cleanupRoutine()

	return limiter
}

// GetLimiter returns the rate limiter for a given IP
func (irl *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	irl.mu.Lock()
	defer irl.mu.Unlock()

	limiter, exists := irl.limiters[ip]
	if !exists {
		limiter = &RateLimiter{
			limiter:  rate.NewLimiter(irl.rate, irl.burst),
			lastSeen: time.Now(),
		}
		irl.limiters[ip] = limiter
	} else {
		limiter.lastSeen = time.Now()
	}

	return limiter.limiter
}

// cleanupRoutine removes old rate limiters to prevent memory leaks
func (irl *IPRateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(irl.cleanup)
	defer ticker.Stop()

	for range ticker.C {
		irl.mu.Lock()
		cutoff := time.Now().Add(-time.Hour)

		for ip, limiter := range irl.limiters {
			if limiter.lastSeen.Before(cutoff) {
				delete(irl.limiters, ip)
			}
		}
		irl.mu.Unlock()
	}
}

// RateLimit limits requests per client IP.
func RateLimit(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.GetLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		c.Next()
	}
}

// NewGeneralRateLimiter covers the whole API surface.
func NewGeneralRateLimiter() *IPRateLimiter {
	// 600 requests per minute, burst of 50
	return NewIPRateLimiter(rate.Limit(600)/60, 50)
}

// NewAuthRateLimiter is much stricter: it guards signup and login against
// credential stuffing.
func NewAuthRateLimiter() *IPRateLimiter {
	// 10 requests per minute, burst of 5
	return NewIPRateLimiter(rate.Limit(10)/60, 5)
}

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// CORS middleware for handling cross-origin requests
func CORS() gin.HandlerFunc {
	allowedOrigins := map[string]bool{
		"http://localhost:3000": true,
		"http://localhost:5173": true,
		"http://127.0.0.1:3000": true,
	}
	if base := os.Getenv("APP_BASE_URL"); base != "" {
		allowedOrigins[base] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowedOrigins[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-Requested-With, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security middleware adds security headers
func Security() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

		c.Next()
	}
}
