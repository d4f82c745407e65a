package server

import (
	"net/http"
	"strconv"
	"time"

	"bhavcopy-ingest/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP. Idle buckets expire after ten minutes.
func RateLimiter(rps float64, burst int) gin.HandlerFunc {
	buckets := cache.New(10*time.Minute, 10*time.Minute)
	retryAfter := "1"
	if rps > 0 && rps < 1 {
		retryAfter = strconv.Itoa(int(1/rps + 0.5))
	}

	return func(c *gin.Context) {
		if rps <= 0 {
			c.Next()
			return
		}
		limiter := limiterFor(buckets, c.ClientIP(), rps, burst)
		if !limiter.Allow() {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{
				Success: false,
				Message: "Too many requests",
				Error:   "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// limiterFor returns the bucket for ip, creating it once even under concurrent first requests.
func limiterFor(buckets *cache.Cache, ip string, rps float64, burst int) *rate.Limiter {
	if v, ok := buckets.Get(ip); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	if err := buckets.Add(ip, limiter, cache.DefaultExpiration); err != nil {
		if v, ok := buckets.Get(ip); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error(c.Request.Context(), "Panic recovered",
					"panic", rec,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
					Success: false,
					Message: "Internal server error",
					Error:   "unexpected_panic",
				})
			}
		}()
		c.Next()
	}
}

// RequestLogger logs one line per request, health checks excluded.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/api/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		logger.Info(c.Request.Context(), "HTTP request",
			"method", c.Request.Method,
			"path", path,
			"query", c.Request.URL.RawQuery,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}
