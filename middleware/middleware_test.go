package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"maintenanceportal/services"
)

var testKey = []byte("middleware_test_key")

func signToken(t *testing.T, id uint, role services.Role) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &services.Claims{
		SubjectID: id,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := token.SignedString(testKey)
	require.NoError(t, err)
	return s
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	id, role, err := GetUserFromContext(r)
	if err != nil {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	w.Header().Set("X-Subject", string(role))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte{byte('0' + id)})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAuthMiddleware(t *testing.T) {
	h := AuthMiddleware(testKey)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/api/member/profile", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/member/profile", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/member/profile", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, 7, services.RoleMember))
	rr := serve(h, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "member", rr.Header().Get("X-Subject"))
	assert.Equal(t, "7", rr.Body.String())
}

func TestRequireRole(t *testing.T) {
	h := AuthMiddleware(testKey)(RequireRole(services.RoleAdmin)(http.HandlerFunc(okHandler)))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/members", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, 1, services.RoleMember))
	assert.Equal(t, http.StatusForbidden, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/members", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, 1, services.RoleAdmin))
	assert.Equal(t, http.StatusOK, serve(h, req).Code)

	bare := RequireRole(services.RoleAdmin)(http.HandlerFunc(okHandler))
	assert.Equal(t, http.StatusUnauthorized, serve(bare, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	h := rl.RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	newReq := func(ip string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/member/login", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		return req
	}

	assert.Equal(t, http.StatusNoContent, serve(h, newReq("1.1.1.1")).Code)
	assert.Equal(t, http.StatusNoContent, serve(h, newReq("1.1.1.1")).Code)
	rr := serve(h, newReq("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusNoContent, serve(h, newReq("2.2.2.2")).Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:4321"
	assert.Equal(t, "192.168.1.5", clientIP(req))

	req.Header.Set("X-Real-IP", "8.8.8.8")
	assert.Equal(t, "8.8.8.8", clientIP(req))
}

func TestRecovery(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rr.Body.String())
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:5173"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/member/dues", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := serve(h, req)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/member/dues", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = serve(h, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggingMiddlewareKeepsStatus(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))
	rr := serve(h, httptest.NewRequest(http.MethodPost, "/api/member/orders", nil))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}
