package middleware

import (
	"net/http"
	"strings"

	"taxilink/internal/utils"

	"github.com/gin-gonic/gin"
)

// AuthRequired validates the bearer token and sets user context. Connections
// carry identity from here on; handlers never re-parse the token.
func AuthRequired(secretKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			// WebSocket clients in browsers cannot set headers on the
			// upgrade request, so a token query parameter is accepted too.
			authHeader = "Bearer " + c.Query("token")
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" || tokenString == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Bearer token required"})
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(tokenString, secretKey)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_type", claims.UserType)

		c.Next()
	}
}

// DriverRequired ensures the authenticated user is a driver.
func DriverRequired() gin.HandlerFunc {
	return requireUserType("driver")
}

// PassengerRequired ensures the authenticated user is a passenger.
func PassengerRequired() gin.HandlerFunc {
	return requireUserType("passenger")
}

func requireUserType(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userType, exists := c.Get("user_type")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User type not found"})
			c.Abort()
			return
		}

		if userTypeStr, ok := userType.(string); !ok || userTypeStr != required {
			c.JSON(http.StatusForbidden, gin.H{"error": required + " access required"})
			c.Abort()
			return
		}

		c.Next()
	}
}
