package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"ims/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Context keys set by the auth middlewares
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

// AuthConfig carries the token settings shared by the middlewares and the
// cookie helpers.
type AuthConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// SecureCookies switches cookies to SameSite=None; Secure for cross-origin deployments.
	SecureCookies bool
}

// PermissionSource resolves the permission codes granted to a role.
type PermissionSource interface {
	PermissionCodes(ctx context.Context, roleName string) ([]string, error)
}

var (
	authCfg    AuthConfig
	permSource PermissionSource
)

// InitAuth sets the token settings and the permission lookup used by
// RequirePermission. It must run before the router serves requests.
func InitAuth(cfg AuthConfig, source PermissionSource) {
	authCfg = cfg
	permSource = source
	ClearPermissionCache("")
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies
func SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	sameSite, secure := cookieMode()
	c.SetSameSite(sameSite)
	c.SetCookie("access_token", accessToken, int(authCfg.AccessTTL.Seconds()), "/", "", secure, true)
	c.SetCookie("refresh_token", refreshToken, int(authCfg.RefreshTTL.Seconds()), "/", "", secure, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func ClearTokenCookies(c *gin.Context) {
	sameSite, secure := cookieMode()
	c.SetSameSite(sameSite)
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}

func cookieMode() (http.SameSite, bool) {
	if authCfg.SecureCookies {
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteLaxMode, false
}

// Claims is the verified identity carried by an access token.
type Claims struct {
	UserID string
	Role   string
}

var errMissingToken = errors.New("authorization is missing")

// extractToken reads the access token from the cookie, falling back to the
// Authorization header.
func extractToken(c *gin.Context) (string, error) {
	if tokenString, err := c.Cookie("access_token"); err == nil && tokenString != "" {
		return tokenString, nil
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization format, expected 'Bearer <token>'")
	}
	return parts[1], nil
}

// ParseToken verifies an HMAC-signed access token and returns its claims.
func ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return authCfg.Secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	if _, err := uuid.Parse(sub); err != nil {
		return nil, fmt.Errorf("invalid token subject")
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return nil, fmt.Errorf("role not found in token")
	}
	return &Claims{UserID: sub, Role: role}, nil
}

// authenticate verifies the request token and stores the identity on the
// context. It aborts and returns false when the request is not signed in.
func authenticate(c *gin.Context) (*Claims, bool) {
	tokenString, err := extractToken(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return nil, false
	}
	claims, err := ParseToken(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return nil, false
	}
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUserRole, claims.Role)
	return claims, true
}

// RequireAuth only checks that the request carries a valid access token.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := authenticate(c); !ok {
			return
		}
		c.Next()
	}
}

// --- Permission-based middleware ---

// permCacheEntry stores cached permission codes for a role with TTL
type permCacheEntry struct {
	codes     map[string]bool
	expiresAt time.Time
}

var (
	permCache    sync.Map // roleName -> permCacheEntry
	permCacheTTL = 5 * time.Minute
)

// RequirePermission validates the JWT and checks that the role in it holds
// every required permission code.
func RequirePermission(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c)
		if !ok {
			return
		}

		granted, err := permissionsForRole(c.Request.Context(), claims.Role)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "failed to verify permissions"))
			return
		}

		for _, required := range requiredPerms {
			if !granted[required] {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "access denied: missing permission '"+required+"'"))
				return
			}
		}

		c.Next()
	}
}

// permissionsForRole returns cached or freshly loaded permission codes for a role name
func permissionsForRole(ctx context.Context, roleName string) (map[string]bool, error) {
	if entry, ok := permCache.Load(roleName); ok {
		cached := entry.(permCacheEntry)
		if time.Now().Before(cached.expiresAt) {
			return cached.codes, nil
		}
	}

	if permSource == nil {
		return nil, fmt.Errorf("permission middleware not initialized")
	}
	codes, err := permSource.PermissionCodes(ctx, roleName)
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(codes))
	for _, code := range codes {
		set[code] = true
	}
	permCache.Store(roleName, permCacheEntry{codes: set, expiresAt: time.Now().Add(permCacheTTL)})
	return set, nil
}

// HasPermission reports whether the role holds the permission code, using
// the same cache as RequirePermission.
func HasPermission(ctx context.Context, roleName, code string) (bool, error) {
	granted, err := permissionsForRole(ctx, roleName)
	if err != nil {
		return false, err
	}
	return granted[code], nil
}

// ClearPermissionCache removes cached permissions for a specific role (or all roles if empty)
func ClearPermissionCache(roleName string) {
	if roleName == "" {
		permCache.Range(func(key, _ interface{}) bool {
			permCache.Delete(key)
			return true
		})
	} else {
		permCache.Delete(roleName)
	}
}

// CurrentUserID returns the signed-in user's id, or "" on public routes.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// CurrentUserUUID is CurrentUserID parsed, nil when absent.
func CurrentUserUUID(c *gin.Context) *uuid.UUID {
	id, err := uuid.Parse(CurrentUserID(c))
	if err != nil {
		return nil
	}
	return &id
}
