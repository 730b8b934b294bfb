package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/tryout-backend/internal/response"
)

// LoginSessions checks a token's ID against the user's active login.
type LoginSessions interface {
	ValidateSession(ctx context.Context, userID uuid.UUID, jti string) error
}

// CheckLoginSession validates the JWT's JTI against the active login in Redis.
// Tokens of a logged-out or re-logged-in session are rejected.
func CheckLoginSession(sessions LoginSessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if err := sessions.ValidateSession(c.Request.Context(), claims.UserID, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Next()
	}
}
