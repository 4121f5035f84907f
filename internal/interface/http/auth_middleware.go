package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/evaluator-ai/internal/domain/playground"
	apperrors "github.com/yanqian/evaluator-ai/pkg/errors"
)

// TokenValidator verifies session bearer tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (playground.Claims, error)
}

// sessionAuthMiddleware admits a request only when its bearer token was
// minted for the session named in the :id path parameter.
func sessionAuthMiddleware(svc TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing authorization header", nil))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "invalid authorization header", nil))
			return
		}
		token := strings.TrimSpace(parts[1])
		claims, err := svc.ValidateToken(c.Request.Context(), token)
		if err != nil {
			status := http.StatusForbidden
			code := "invalid_token"
			if !apperrors.IsCode(err, apperrors.CodeInvalidToken) {
				status = http.StatusInternalServerError
				code = "auth_failed"
			}
			abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
			return
		}
		if claims.SessionID.String() != c.Param("id") {
			abortWithError(c, NewHTTPError(http.StatusForbidden, "forbidden", "token does not grant access to this session", nil))
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}
