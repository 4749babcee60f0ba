package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-careerdesk/admins"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func whoami(c *gin.Context) {
	a := ActorFrom(c)
	c.JSON(http.StatusOK, gin.H{"user_id": a.UserID, "email": a.Email})
}

func TestTokenRoundTrip(t *testing.T) {
	now := time.Now()
	tok, err := IssueToken(testSecret, "u-1", "a@example.com", time.Hour, now)
	require.NoError(t, err)

	claims, err := ParseToken(testSecret, tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)

	_, err = ParseToken("other-secret", tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	expired, err := IssueToken(testSecret, "u-1", "a@example.com", time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = ParseToken(testSecret, expired)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = IssueToken("", "u-1", "", time.Hour, now)
	assert.Error(t, err)
}

func TestRequireAuth(t *testing.T) {
	r := gin.New()
	r.GET("/me", RequireAuth(testSecret), whoami)

	tok, err := IssueToken(testSecret, "u-1", "a@example.com", time.Hour, time.Now())
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Token " + tok, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid", "Bearer " + tok, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"user_id":"u-1","email":"a@example.com"}`, w.Body.String())
			}
		})
	}
}

func TestAdminAuth(t *testing.T) {
	var reached []string
	r := gin.New()
	r.GET("/admin", AdminAuth(testSecret, admins.New("root@example.com")), func(c *gin.Context) {
		reached = append(reached, ActorFrom(c).Email)
		c.JSON(http.StatusOK, gin.H{"secret": "admin-only"})
	})

	for email, status := range map[string]int{
		"root@example.com":  http.StatusOK,
		"alice@example.com": http.StatusForbidden,
	} {
		tok, err := IssueToken(testSecret, "u-"+email, email, time.Hour, time.Now())
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, email)
		if status == http.StatusForbidden {
			assert.NotContains(t, w.Body.String(), "admin-only", email)
		}
	}
	assert.Equal(t, []string{"root@example.com"}, reached)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	r := gin.New()
	r.GET("/", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.2"))

	clock = clock.Add(30 * time.Second)
	assert.Equal(t, http.StatusNoContent, hit("10.0.0.1"))

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 2, rl.sweep())
	assert.Empty(t, rl.visitors)
}
