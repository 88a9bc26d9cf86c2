package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propodocs/internal/ratelimit"
)

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": UserID(c)})
	})
	return r
}

func doGet(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	v := NewJWTValidator("secret")
	r := newRouter(AuthRequired(v))

	token, err := v.Issue("user-1", time.Hour)
	require.NoError(t, err)

	w := doGet(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"user-1"}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, doGet(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "Bearer not-a-jwt").Code)
}

func TestAuthRequiredRejectsForeignOrExpiredTokens(t *testing.T) {
	v := NewJWTValidator("secret")
	r := newRouter(AuthRequired(v))

	foreign, _ := NewJWTValidator("other").Issue("user-1", time.Hour)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "Bearer "+foreign).Code)

	expired, _ := v.Issue("user-1", -time.Hour)
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "Bearer "+expired).Code)

	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	assert.Equal(t, http.StatusUnauthorized, doGet(r, "Bearer "+noSub).Code)
}

type stubStore struct {
	decision ratelimit.Decision
	err      error
	keys     []string
}

func (s *stubStore) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	s.keys = append(s.keys, key)
	return s.decision, s.err
}

func TestRateLimitRejects(t *testing.T) {
	store := &stubStore{decision: ratelimit.Decision{Allowed: false, RetryAfter: 1500 * time.Millisecond}}
	w := doGet(newRouter(RateLimit(store, nil)), "")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	require.Len(t, store.keys, 1)
	assert.Contains(t, store.keys[0], "ip:")
}

func TestRateLimitKeysByUser(t *testing.T) {
	v := NewJWTValidator("secret")
	token, _ := v.Issue("user-7", time.Hour)
	store := &stubStore{decision: ratelimit.Decision{Allowed: true}}

	w := doGet(newRouter(AuthRequired(v), RateLimit(store, nil)), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"user:user-7"}, store.keys)
}

func TestRateLimitFailsOpen(t *testing.T) {
	store := &stubStore{err: errors.New("redis down")}
	w := doGet(newRouter(RateLimit(store, nil)), "")
	assert.Equal(t, http.StatusOK, w.Code)
}
