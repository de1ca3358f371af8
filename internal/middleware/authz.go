package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"akimat/internal/models"
)

func RequireRoles(allowed ...models.UserRole) gin.HandlerFunc {
	allowedSet := map[models.UserRole]struct{}{}
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no user in context"})
			return
		}
		if _, ok := allowedSet[u.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// RequireStatus admits only users in one of the given lifecycle states.
func RequireStatus(allowed ...models.UserStatus) gin.HandlerFunc {
	allowedSet := map[models.UserStatus]struct{}{}
	for _, s := range allowed {
		allowedSet[s] = struct{}{}
	}
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no user in context"})
			return
		}
		if _, ok := allowedSet[u.Status]; !ok {
			msg := "Inactive user"
			if u.IsPending() {
				msg = "Registration is not completed"
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msg})
			return
		}
		c.Next()
	}
}
