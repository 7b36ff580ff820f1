// Package middleware provides Gin HTTP middleware for authentication, authorization,
// rate limiting, security headers and request metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → OptionalAuth → RateLimit → Authorize → Handler
//
// Security headers run first so they appear on all responses including errors.
// OptionalAuth only verifies a signature, so it runs before the rate limiter to let
// the limiter key authenticated callers by subject instead of IP. Authorize is
// attached per route and reads the principal back from the context.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/task-manager/task-manager/internal/auth"
)

// PrincipalKey is the gin.Context key holding the request's *auth.Principal.
const PrincipalKey = "principal"

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	return token, token != ""
}

// principalFromToken verifies token and decodes the principal it carries.
func principalFromToken(token string) (*auth.Principal, error) {
	claims, err := auth.ValidateJWT(token)
	if err != nil {
		return nil, err
	}
	return claims.Principal()
}

// OptionalAuthMiddleware decodes the bearer token, if any, into the request
// principal. The principal comes from the verified token alone, so no database
// round-trip happens here. A missing token, a bad signature or a payload lacking a
// subject, email or organization leaves the request anonymous; routes that need a
// caller reject it afterwards through Authorize or RequireAuthenticated with 401,
// before any handler runs.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if principal, err := principalFromToken(token); err == nil {
				c.Set(PrincipalKey, principal)
			}
		}
		c.Next()
	}
}

// GetPrincipal returns the principal stored by OptionalAuthMiddleware, or nil for
// an anonymous request.
func GetPrincipal(c *gin.Context) *auth.Principal {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*auth.Principal)
	return p
}
