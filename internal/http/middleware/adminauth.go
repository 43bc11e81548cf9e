// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the single authorization gate for administrative
// routes. Every /admin endpoint goes through the same check: a bearer token
// compared in constant time against the configured admin credential, plus an
// optional IP allow-list consulted through a narrow lookup function so the
// middleware stays decoupled from persistence.
package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminIPLookup reports whether ip is on the active allow-list. Returning
// enforce=false means no active entries exist and the list is not applied.
//
// Lookup errors fail closed: the request is rejected.
type AdminIPLookup func(ctx context.Context, ip string) (allowed, enforce bool, err error)

// AdminAuth returns a middleware that admits a request only when its
// Authorization header carries `Bearer <token>` matching the configured
// credential. When lookup is non-nil and the allow-list has active entries,
// the client IP must also be listed.
//
// An empty configured token disables the admin surface entirely (503), so a
// missing ADMIN_TOKEN can never mean "open".
func AdminAuth(token string, lookup AdminIPLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "admin_disabled",
				"message":    "admin interface is not configured",
			})
			return
		}

		got := bearerToken(c.GetHeader("Authorization"))
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "unauthorized",
				"message":    "invalid admin credentials",
			})
			return
		}

		if lookup != nil {
			allowed, enforce, err := lookup(c.Request.Context(), c.ClientIP())
			if err != nil || (enforce && !allowed) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"request_id": c.Writer.Header().Get("X-Request-ID"),
					"code":       "forbidden",
					"message":    "address not permitted",
				})
				return
			}
		}

		c.Next()
	}
}

// bearerToken extracts the credential from an Authorization header value.
// Returns "" for anything that is not a Bearer scheme.
func bearerToken(h string) string {
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
