package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yanqian/faq-search/internal/infra/config"
)

// authMiddleware requires an HS256 bearer token signed with the configured secret.
// It is a no-op when auth is disabled.
func authMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	secret := []byte(cfg.Secret)
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing authorization header", nil))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "invalid authorization header", nil))
			return
		}

		claims := &jwt.RegisteredClaims{}
		_, err := parser.ParseWithClaims(strings.TrimSpace(parts[1]), claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil {
			message := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				message = "token expired"
			}
			abortWithError(c, NewHTTPError(http.StatusForbidden, "invalid_token", message, err))
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// subjectOf returns the authenticated caller, or "" on unauthenticated routes.
func subjectOf(c *gin.Context) string {
	claims, ok := getClaims(c)
	if !ok {
		return ""
	}
	return claims.Subject
}
