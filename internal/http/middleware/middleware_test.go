package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testSecret = []byte("middleware-secret")

func protected() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Auth(testSecret))
	r.GET("/admin", RequireRoles("admin"), func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c))
	})
	return r
}

func do(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireRoles(t *testing.T) {
	r := protected()
	now := time.Now()

	admin, err := IssueStaffToken(testSecret, "root", "Admin", time.Hour, now)
	require.NoError(t, err)
	w := do(r, admin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "root", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	scanner, err := IssueStaffToken(testSecret, "gate", "scanner", time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(r, scanner).Code)

	assert.Equal(t, http.StatusUnauthorized, do(r, "").Code)

	expired, err := IssueStaffToken(testSecret, "root", "admin", time.Hour, now.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, expired).Code)

	forged, err := IssueStaffToken([]byte("other"), "root", "admin", time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, forged).Code)
}

func TestTravelerTokens(t *testing.T) {
	r := protected()
	now := time.Now()

	traveler, err := IssueTravelerToken(testSecret, "user-9", time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(r, traveler).Code)

	// A traveler session cannot claim a staff role, nor staff a traveler one.
	claims := StaffClaims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{
		Subject: "user-9", Issuer: travelerIssuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}}
	escalated, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, escalated).Code)

	disguised, err := IssueStaffToken(testSecret, "user-9", "traveler", time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, disguised).Code)
}

func TestCanActFor(t *testing.T) {
	now := time.Now()
	r := gin.New()
	r.Use(Auth(testSecret))
	r.GET("/accounts/:id", func(c *gin.Context) {
		if CanActFor(c, c.Param("id")) {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusForbidden)
	})
	get := func(path, token string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	own, err := IssueTravelerToken(testSecret, "user-9", time.Hour, now)
	require.NoError(t, err)
	staff, err := IssueStaffToken(testSecret, "desk", "staff", time.Hour, now)
	require.NoError(t, err)
	scanner, err := IssueStaffToken(testSecret, "gate", "scanner", time.Hour, now)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get("/accounts/user-9", own))
	assert.Equal(t, http.StatusForbidden, get("/accounts/user-8", own))
	assert.Equal(t, http.StatusOK, get("/accounts/user-8", staff))
	assert.Equal(t, http.StatusForbidden, get("/accounts/user-8", scanner))
	assert.Equal(t, http.StatusForbidden, get("/accounts/user-8", ""))
}

func TestRequestIDIsKept(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestRateLimiterPerIP(t *testing.T) {
	l := NewRateLimiter(8)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	assert.True(t, l.Allow("1.1.1.1"))
	assert.True(t, l.Allow("1.1.1.1"))
	assert.False(t, l.Allow("1.1.1.1"), "burst of 2 used up")
	assert.True(t, l.Allow("2.2.2.2"))

	clock = clock.Add(8 * time.Second)
	assert.True(t, l.Allow("1.1.1.1"))
}
