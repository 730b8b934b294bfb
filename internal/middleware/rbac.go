package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/tryout-backend/internal/model"
	"github.com/stemsi/tryout-backend/internal/response"
)

// RequireRole lets only the given role through. Any other authenticated role
// gets ROLE_MISMATCH with the area it should be sent to instead.
func RequireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if claims.Role != role {
			response.AbortFailWithFields(c, http.StatusForbidden, response.ErrRoleMismatch, map[string]string{
				"redirect": claims.Role.DefaultArea(),
			})
			return
		}

		c.Next()
	}
}
