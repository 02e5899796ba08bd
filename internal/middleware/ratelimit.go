package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/emedical/clinic-api/internal/services"
	"github.com/emedical/clinic-api/internal/utils"
)

// RateLimit allows a fixed number of requests per client IP and window.
// When the limiter itself fails the request is let through.
func RateLimit(limiter services.RateLimiter, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn().Err(err).Str("request_id", RequestIDFrom(c)).Msg("rate limiter unavailable")
		}
		if !allowed {
			if retryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			}
			Abort(c, utils.NewAppError("Too many requests from this IP, please try again later!", http.StatusTooManyRequests))
			return
		}
		c.Next()
	}
}
