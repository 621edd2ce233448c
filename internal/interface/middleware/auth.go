package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/accsoftware/acc-backend/pkg/helpers"
	"github.com/accsoftware/acc-backend/pkg/response"
)

// Session reads the session cookie, verifies the token, and reconstructs the
// profile claims into the Gin context. The cookie is the only session record;
// no server-side lookup happens here.
func Session(jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(helpers.SessionCookieName)
		if err != nil || token == "" {
			response.AbortError(c, http.StatusUnauthorized, "missing session", nil)
			return
		}
		claims, err := jwt.ParseToken(token)
		if err != nil {
			msg := "invalid session"
			if errors.Is(err, helpers.ErrTokenExpired) {
				msg = "session expired"
			}
			response.AbortError(c, http.StatusUnauthorized, msg, nil)
			return
		}
		c.Set("userID", strconv.FormatInt(claims.UserID, 10))
		c.Set("userEmail", claims.Email)
		c.Set("userRole", claims.Role)
		c.Next()
	}
}
