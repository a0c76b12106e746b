package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	UserIDHeader = "X-User-ID"
	userIDKey    = "user_id"
)

func parseUserID(raw string) (int64, bool) {
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, false
	}
	return userID, true
}

// AuthMiddleware - идентификация вызывающего по заголовку X-User-ID.
// Настоящая аутентификация живет за пределами сервиса ленты.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDHeader := c.GetHeader(UserIDHeader)
		if userIDHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required: provide X-User-ID header"})
			return
		}
		userID, ok := parseUserID(userIDHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid X-User-ID format"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// OptionalAuthMiddleware - то же, но без заголовка запрос проходит анонимно
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := parseUserID(c.GetHeader(UserIDHeader)); ok {
			c.Set(userIDKey, userID)
		}
		c.Next()
	}
}

// UserID достает id вызывающего, положенный одним из middleware
func UserID(c *gin.Context) (int64, bool) {
	value, exists := c.Get(userIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := value.(int64)
	return userID, ok
}
