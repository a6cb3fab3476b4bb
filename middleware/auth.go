package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/config"
	tokenstore "github.com/R-Krishnananda/leaf-disease-predictor/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ContextUserEmailKey = "current_user_email"
	ContextJTIKey       = "current_jti"
)

var errRevoked = errors.New("token has been revoked")

// AuthMiddleware validates the Bearer JWT and puts the caller's email into
// the request context. Tokens are HMAC-signed with sub = user email.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		email, jti, err := ParseToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(ContextUserEmailKey, email)
		c.Set(ContextJTIKey, jti)
		c.Next()
	}
}

// ParseToken verifies signature, expiry and revocation, returning the
// subject email and jti. Shared with the websocket handler, which
// authenticates via query parameter instead of header.
func ParseToken(tokenStr string) (email, jti string, err error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		// only accept HMAC signing
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return []byte(config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", "", jwt.ErrTokenUnverifiable
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", jwt.ErrTokenInvalidClaims
	}

	jti, _ = claims["jti"].(string)
	if tokenstore.IsRevoked(jti) {
		return "", "", errRevoked
	}

	email, _ = claims["sub"].(string)
	if email == "" {
		return "", "", jwt.ErrTokenInvalidSubject
	}
	return email, jti, nil
}
