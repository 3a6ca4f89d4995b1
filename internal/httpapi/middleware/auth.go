package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emirg23/multi-BotChat/internal/auth"
	"github.com/emirg23/multi-BotChat/internal/common"
)

const (
	UserIDKey = "user_id"
	EmailKey  = "email"
)

// AuthRequired accepts "Authorization: Bearer <jwt>" and stores the user id and
// account email on the context.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(tokenStr) == "" {
			common.Fail(c, http.StatusUnauthorized, 40101, "missing bearer token")
			c.Abort()
			return
		}
		uid, email, err := auth.ParseJWT(strings.TrimSpace(tokenStr), secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid token")
			c.Abort()
			return
		}
		c.Set(UserIDKey, uid)
		c.Set(EmailKey, email)
		c.Next()
	}
}
