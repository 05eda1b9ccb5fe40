package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/grupovitrine/painel_backend/config"
	"github.com/grupovitrine/painel_backend/models"
	"github.com/grupovitrine/painel_backend/utils"
)

// SessionMiddleware validates the bearer token twice: the JWT signature and
// expiry first, then the redis session entry, so a logout invalidates the
// token before its expiry does.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}

		parsed, err := utils.JwtValidate(token)
		if err != nil || !parsed.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		claims, ok := parsed.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, username)
		ctx = utils.SetUserIdInContext(ctx, claims.ID)
		ctx = utils.SetIsAdminInContext(ctx, claims.Role == string(models.UserRoleAdmin))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
