package http

import (
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const authClaimsKey = "auth_claims"

func setClaims(c *gin.Context, claims *jwt.RegisteredClaims) {
	c.Set(authClaimsKey, claims)
}

func getClaims(c *gin.Context) (*jwt.RegisteredClaims, bool) {
	value, ok := c.Get(authClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*jwt.RegisteredClaims)
	return claims, ok
}
