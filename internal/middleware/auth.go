// CloudMigrate Pro session middleware

package middleware

import (
	"net/http"

	"cloudmigrate/internal/auth"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// RequireSession validates the session cookie and stores the user ID in
// the request context. Missing or invalid sessions get a uniform 401.
func RequireSession(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.GetTokenFromCookie(c)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		userID, err := jwtService.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user from the request context.
func UserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get(userIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
