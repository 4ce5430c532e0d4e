package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/space-queue-system/pkg/jwt"
	"github.com/space-queue-system/pkg/redis"
)

func AuthMiddleware(sessions *redis.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get token from cookie or query param (for WebSocket)
		token, _ := c.Cookie("auth_token")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No authorization token"})
			return
		}

		claims, err := jwt.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		session, err := sessions.GetSession(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session not found"})
			return
		}

		if time.Now().After(session.ExpiresAt) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("display_name", session.DisplayName)
		c.Next()
	}
}
