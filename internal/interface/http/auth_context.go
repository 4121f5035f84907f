package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yanqian/evaluator-ai/internal/domain/playground"
)

const sessionClaimsKey = "session_claims"

func setClaims(c *gin.Context, claims playground.Claims) {
	c.Set(sessionClaimsKey, claims)
}

func getClaims(c *gin.Context) (playground.Claims, bool) {
	value, ok := c.Get(sessionClaimsKey)
	if !ok {
		return playground.Claims{}, false
	}
	claims, ok := value.(playground.Claims)
	return claims, ok
}

// sessionID returns the authenticated session, aborting when the auth
// middleware did not run.
func sessionID(c *gin.Context) (uuid.UUID, bool) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "session token required", nil))
		return uuid.Nil, false
	}
	return claims.SessionID, true
}
