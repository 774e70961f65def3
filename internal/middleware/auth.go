package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vliewarden/backend/internal/auth"
	"github.com/vliewarden/backend/internal/logger"
)

// Context keys set for authenticated requests.
const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRole     = "role"
)

type AuthMiddleware struct {
	log    *logger.Logger
	issuer *auth.Issuer
}

func NewAuthMiddleware(log *logger.Logger, issuer *auth.Issuer) *AuthMiddleware {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), issuer: issuer}
}

// RequireAuth rejects requests without a valid bearer token.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token required"})
			return
		}
		claims, err := am.issuer.Parse(tokenString)
		if err != nil {
			am.log.Debug("rejected token", "path", c.Request.URL.Path, "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth attaches the caller when a valid token is present and lets
// anonymous requests through otherwise.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := bearerToken(c); tokenString != "" {
			if claims, err := am.issuer.Parse(tokenString); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	}
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUsername, claims.Username)
	c.Set(ContextRole, claims.Role)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
