package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var testSecret = []byte("middleware-secret")

type stubPermissions struct {
	codes map[string][]string
	calls int
}

func (s *stubPermissions) PermissionCodes(_ context.Context, role string) ([]string, error) {
	s.calls++
	return s.codes[role], nil
}

func signToken(t *testing.T, secret []byte, sub, role string, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(ttl).Unix(),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func newTestRouter(perms *stubPermissions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	InitAuth(AuthConfig{Secret: testSecret, AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour}, perms)

	r := gin.New()
	r.GET("/me", RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUserID(c))
	})
	r.POST("/orders", RequirePermission("orders.write"), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

func TestRequirePermission(t *testing.T) {
	perms := &stubPermissions{codes: map[string][]string{
		"storekeeper": {"orders.read", "orders.write"},
		"staff":       {"requests.write"},
	}}
	r := newTestRouter(perms)
	userID := uuid.NewString()

	testCases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"malformed header", "Token abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, []byte("other"), userID, "storekeeper", time.Hour), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, testSecret, userID, "storekeeper", -time.Minute), http.StatusUnauthorized},
		{"missing permission", "Bearer " + signToken(t, testSecret, userID, "staff", time.Hour), http.StatusForbidden},
		{"granted", "Bearer " + signToken(t, testSecret, userID, "storekeeper", time.Hour), http.StatusCreated},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestPermissionCacheAndClear(t *testing.T) {
	perms := &stubPermissions{codes: map[string][]string{"storekeeper": {"orders.write"}}}
	r := newTestRouter(perms)
	header := "Bearer " + signToken(t, testSecret, uuid.NewString(), "storekeeper", time.Hour)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		req.Header.Set("Authorization", header)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	if perms.calls != 1 {
		t.Fatalf("expected one lookup, got %d", perms.calls)
	}

	perms.codes["storekeeper"] = nil
	ClearPermissionCache("storekeeper")

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set("Authorization", header)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected revoked permission to apply after clearing, got %d", w.Code)
	}
}

func TestTokenFromCookie(t *testing.T) {
	r := newTestRouter(&stubPermissions{})
	userID := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: signToken(t, testSecret, userID, "staff", time.Hour)})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != userID {
		t.Fatalf("expected %s, got %d %s", userID, w.Code, w.Body.String())
	}
}

func TestSetTokenCookies(t *testing.T) {
	newTestRouter(&stubPermissions{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SetTokenCookies(c, "access", "refresh")

	cookies := w.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}
	for _, ck := range cookies {
		if !ck.HttpOnly {
			t.Errorf("cookie %s must be HttpOnly", ck.Name)
		}
	}
	if cookies[0].MaxAge != 3600 || cookies[1].MaxAge != 24*3600 {
		t.Errorf("unexpected max ages %d/%d", cookies[0].MaxAge, cookies[1].MaxAge)
	}
}
