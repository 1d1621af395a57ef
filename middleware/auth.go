package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"pairchat/utils"
)

const (
	userIDKey  = "user_id"
	cookieName = "jwt"
)

// AuthMiddleware accepts a bearer token or the jwt cookie.
func AuthMiddleware(tokens *utils.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerOrCookie(c)
		if !ok {
			utils.Unauthorized(c, "unauthorized - no token provided")
			c.Abort()
			return
		}

		claims, err := tokens.Parse(token)
		if err != nil {
			utils.Unauthorized(c, "unauthorized - invalid or expired token")
			c.Abort()
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

func bearerOrCookie(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] != "" {
			return parts[1], true
		}
		return "", false
	}
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
