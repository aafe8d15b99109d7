// Package middleware holds the gin middleware of the HTTP server.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/The24thDS/karen-backend/internal/apierr"
	"github.com/The24thDS/karen-backend/internal/logger"
	"github.com/The24thDS/karen-backend/internal/models"
)

const callerKey = "caller"

// TokenParser turns a bearer token into the caller it identifies.
type TokenParser interface {
	Parse(token string) (models.Caller, error)
}

type AuthMiddleware struct {
	log    *logger.Logger
	tokens TokenParser
}

func NewAuthMiddleware(log *logger.Logger, tokens TokenParser) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), tokens: tokens}
}

// RequireAuth rejects requests without a valid bearer token.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abort(c, apierr.Unauthorized("missing or invalid token"))
			return
		}
		caller, err := am.tokens.Parse(token)
		if err != nil {
			am.log.Debug("token rejected", "error", err)
			abort(c, err)
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets
// anonymous requests through.
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			if caller, err := am.tokens.Parse(token); err == nil {
				c.Set(callerKey, caller)
			}
		}
		c.Next()
	}
}

// Caller returns the authenticated caller, the zero Caller for anonymous requests.
func Caller(c *gin.Context) models.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(models.Caller); ok {
			return caller
		}
	}
	return models.Caller{}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apierr.StatusOf(err), gin.H{
		"error": gin.H{"message": err.Error(), "code": apierr.CodeOf(err)},
	})
}
