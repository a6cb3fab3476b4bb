package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/R-Krishnananda/leaf-disease-predictor/pkg/config"
	tokenstore "github.com/R-Krishnananda/leaf-disease-predictor/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, email, jti string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": email, "exp": exp.Unix(), "jti": jti}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(config.JWTSecret))
	require.NoError(t, err)
	return s
}

func authTestRouter() (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	var seenEmail string
	r := gin.New()
	r.GET("/protected", AuthMiddleware(), func(c *gin.Context) {
		v, _ := c.Get(ContextUserEmailKey)
		seenEmail, _ = v.(string)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r, &seenEmail
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	r, _ := authTestRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareMalformedHeader(t *testing.T) {
	r, _ := authTestRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	r, seen := authTestRouter()
	tok := signToken(t, "farmer@example.com", uuid.NewString(), time.Now().Add(time.Hour))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "farmer@example.com", *seen)
}

func TestAuthMiddlewareExpiredToken(t *testing.T) {
	r, _ := authTestRouter()
	tok := signToken(t, "farmer@example.com", uuid.NewString(), time.Now().Add(-time.Hour))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRevokedToken(t *testing.T) {
	r, _ := authTestRouter()
	jti := uuid.NewString()
	tok := signToken(t, "farmer@example.com", jti, time.Now().Add(time.Hour))
	tokenstore.Revoke(jti)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
