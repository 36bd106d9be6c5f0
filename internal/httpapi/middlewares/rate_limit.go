package middlewares

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"packages/internal/auth"
	"packages/internal/ratelimit"
)

type tokenVerifier interface {
	Authenticate(context.Context, string) (auth.Claims, error)
}

const (
	apiLimitPerIP      = 60
	apiLimitPerSubject = 600
)

// NewAPIRateLimit limits internal API calls per token subject, or per
// client IP for unauthenticated requests.
func NewAPIRateLimit(verifier tokenVerifier) echo.MiddlewareFunc {
	return newRateLimitMiddleware(time.Minute, apiBuckets(verifier, apiLimitPerIP, apiLimitPerSubject))
}

// NewWebhookRateLimit limits push callbacks. Every delivery counts against
// its package and against the sender IP, which may spread ten times
// perPackage over many packages. Zero disables the limit.
func NewWebhookRateLimit(perPackage int) echo.MiddlewareFunc {
	return newRateLimitMiddleware(time.Minute, webhookBuckets(perPackage, perPackage*10))
}

type bucketResolver func(echo.Context) []ratelimit.Bucket

func newRateLimitMiddleware(window time.Duration, resolve bucketResolver) echo.MiddlewareFunc {
	limiter := ratelimit.New(window)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			result := limiter.Take(time.Now().UTC(), resolve(c)...)
			setRateLimitHeaders(c.Response().Header(), result)

			if !result.Allowed {
				c.Response().Header().Set("Retry-After", strconv.FormatInt(result.ResetIn, 10))
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"error": "rate limit exceeded",
				})
			}
			return next(c)
		}
	}
}

func apiBuckets(verifier tokenVerifier, perIP, perSubject int) bucketResolver {
	return func(c echo.Context) []ratelimit.Bucket {
		token := auth.ExtractToken(c.Request())
		if token != "" && verifier != nil {
			claims, err := verifier.Authenticate(c.Request().Context(), token)
			if err == nil {
				if subject := strings.TrimSpace(claims.Subject); subject != "" {
					return []ratelimit.Bucket{{Kind: ratelimit.BucketKey, Name: subject, Limit: perSubject}}
				}
			}
		}
		return []ratelimit.Bucket{{Kind: ratelimit.BucketIP, Name: clientIP(c), Limit: perIP}}
	}
}

func webhookBuckets(perPackage, perIP int) bucketResolver {
	return func(c echo.Context) []ratelimit.Bucket {
		buckets := []ratelimit.Bucket{{Kind: ratelimit.BucketIP, Name: clientIP(c), Limit: perIP}}
		if id := strings.TrimSpace(c.Param("id")); id != "" {
			buckets = append(buckets, ratelimit.Bucket{Kind: ratelimit.BucketKey, Name: id, Limit: perPackage})
		}
		return buckets
	}
}

func clientIP(c echo.Context) string {
	ip := strings.TrimSpace(c.RealIP())
	if ip == "" {
		ip = clientIPFromRemoteAddr(c.Request().RemoteAddr)
	}
	if ip == "" {
		ip = "unknown"
	}
	return ip
}

func setRateLimitHeaders(header http.Header, result ratelimit.Result) {
	limit := strconv.Itoa(result.Limit)
	remaining := strconv.Itoa(result.Remaining)
	resetEpoch := strconv.FormatInt(result.ResetAt, 10)
	resetDelay := strconv.FormatInt(result.ResetIn, 10)

	header.Set("X-RateLimit-Limit", limit)
	header.Set("X-RateLimit-Remaining", remaining)
	header.Set("X-RateLimit-Reset", resetEpoch)

	header.Set("RateLimit-Limit", limit)
	header.Set("RateLimit-Remaining", remaining)
	header.Set("RateLimit-Reset", resetDelay)
}

func clientIPFromRemoteAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(remoteAddr))
	if err != nil {
		return strings.TrimSpace(remoteAddr)
	}
	return strings.TrimSpace(host)
}
