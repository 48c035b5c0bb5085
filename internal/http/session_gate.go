package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"timeoff-manager/internal/domain"
	"timeoff-manager/internal/service"
)

const identityKey = "auth_identity"

const wsPath = "/ws"

// publicPaths se comparan por igualdad exacta.
var publicPaths = map[string]struct{}{
	"/":                 {},
	"/health":           {},
	"/login":            {},
	"/register":         {},
	"/register_confirm": {},
	"/google/login":     {},
	"/google/callback":  {},
	"/google/auth-url":  {},
	"/ws/status":        {},
	"/docs":             {},
	"/redoc":            {},
	"/openapi.json":     {},
}

// SessionAuthenticator resuelve un bearer token a una identidad vigente.
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (domain.Identity, error)
}

func isPublicPath(path string) bool {
	_, ok := publicPaths[path]
	return ok
}

// SessionGate exige un bearer token valido salvo en OPTIONS, rutas publicas y el upgrade de /ws.
func SessionGate(logger *zap.Logger, sessions SessionAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method == http.MethodOptions || isPublicPath(path) || path == wsPath {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, http.StatusUnauthorized, errCodeUnauthenticated, "Authorization header missing")
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			abortWithError(c, http.StatusUnauthorized, errCodeUnauthenticated, "Invalid authorization header format")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

		identity, err := sessions.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrTokenExpired):
				abortWithError(c, http.StatusUnauthorized, errCodeUnauthenticated, "Token has expired")
			case errors.Is(err, service.ErrTokenPayload):
				abortWithError(c, http.StatusUnauthorized, errCodeUnauthenticated, "Invalid token payload")
			case errors.Is(err, service.ErrTokenInvalid):
				abortWithError(c, http.StatusUnauthorized, errCodeUnauthenticated, "Invalid token")
			case errors.Is(err, service.ErrUserNotFound):
				abortWithError(c, http.StatusUnauthorized, errCodeUnauthenticated, "User not found")
			case errors.Is(err, service.ErrAccountNotValidated):
				abortWithError(c, http.StatusUnauthorized, errCodeUnauthenticated, "Account not validated")
			default:
				logger.Error("session lookup failed", zap.Error(err), zap.String("path", path))
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": errCodeUnavailable})
			}
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// GetIdentity obtiene la identidad autenticada desde el contexto.
func GetIdentity(c *gin.Context) (domain.Identity, bool) {
	val, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := val.(domain.Identity)
	return identity, ok
}
