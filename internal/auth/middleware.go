package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// Context keys for user data
	ContextKeyUserID = "user_id"
	ContextKeyEmail  = "user_email"
	ContextKeyRole   = "user_role"
	ContextKeyClaims = "user_claims"
)

// Middleware creates a JWT authentication middleware
func Middleware(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrUnauthorized.Code,
				"message": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrUnauthorized.Code,
				"message": "invalid authorization header format",
			})
			return
		}

		claims, err := jwtManager.ValidateAccessToken(parts[1])
		if err != nil {
			authErr, ok := err.(AuthError)
			if !ok {
				authErr = ErrInvalidToken
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   authErr.Code,
				"message": authErr.Message,
			})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyEmail, claims.Email)
		c.Set(ContextKeyRole, claims.Role)
		c.Set(ContextKeyClaims, claims)

		c.Next()
	}
}

// RequireAdmin aborts requests whose token does not carry the admin role.
// Period close and reopen sit behind this gate.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextKeyRole) != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   ErrForbidden.Code,
				"message": "admin role required",
			})
			return
		}
		c.Next()
	}
}

// ActorFromContext returns the audit tag of the authenticated caller: the
// user's email when available, falling back to the user id.
func ActorFromContext(c *gin.Context) string {
	if email := c.GetString(ContextKeyEmail); email != "" {
		return email
	}
	if id := c.GetString(ContextKeyUserID); id != "" {
		return id
	}
	return "anonymous"
}
