package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type corsPolicy struct {
	anyOrigin bool
	origins   map[string]struct{}
}

func newCORSPolicy(allowed []string) corsPolicy {
	policy := corsPolicy{anyOrigin: len(allowed) == 0, origins: make(map[string]struct{}, len(allowed))}
	for _, origin := range allowed {
		origin = strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
		if origin == "*" {
			policy.anyOrigin = true
			continue
		}
		if origin != "" {
			policy.origins[origin] = struct{}{}
		}
	}
	return policy
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or "" when the
// origin may not read responses.
func (p corsPolicy) allowOrigin(origin string) string {
	if p.anyOrigin {
		return "*"
	}
	if _, ok := p.origins[strings.ToLower(origin)]; ok {
		return origin
	}
	return ""
}

// corsMiddleware lets browser frontends on the allowed origins call the search API and
// read the request id. An empty list allows every origin.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	policy := newCORSPolicy(allowed)
	return func(c *gin.Context) {
		headers := c.Writer.Header()
		if !policy.anyOrigin {
			headers.Add("Vary", "Origin")
		}
		if origin := policy.allowOrigin(c.GetHeader("Origin")); origin != "" {
			headers.Set("Access-Control-Allow-Origin", origin)
			headers.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			headers.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
			headers.Set("Access-Control-Expose-Headers", requestIDHeader)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
