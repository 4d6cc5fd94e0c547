package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/postersnap/postersnap/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	SetJWTSecret("test-secret")

	r := gin.New()
	r.GET("/whoami", OptionalAuth(), func(c *gin.Context) {
		identity := GetIdentity(c)
		if identity == nil {
			c.JSON(http.StatusOK, gin.H{"anonymous": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": identity.Email})
	})
	return r
}

func TestOptionalAuth_AnonymousPassesThrough(t *testing.T) {
	r := setupAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "anonymous")
}

func TestOptionalAuth_ValidToken(t *testing.T) {
	r := setupAuthRouter(t)

	token, err := GenerateToken(&models.Identity{ID: "u-1", Email: "u1@example.com"}, time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u1@example.com")
}

func TestOptionalAuth_MalformedHeader(t *testing.T) {
	r := setupAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Token abc")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuth_InvalidToken(t *testing.T) {
	r := setupAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuth_ExpiredToken(t *testing.T) {
	r := setupAuthRouter(t)

	token, err := GenerateToken(&models.Identity{ID: "u-1", Email: "u1@example.com"}, -time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVerifyToken_RoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")

	token, err := GenerateToken(&models.Identity{ID: "u-9", Email: "nine@example.com", Name: "Nine"}, time.Hour)
	require.NoError(t, err)

	identity, err := VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-9", identity.ID)
	assert.Equal(t, "nine@example.com", identity.Email)
	assert.Equal(t, "Nine", identity.Name)
}
