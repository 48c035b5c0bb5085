package http

import "github.com/gin-gonic/gin"

// Codigos de error expuestos en el campo "error" de las respuestas.
const (
	errCodeUnauthenticated = "unauthenticated"
	errCodeForbidden       = "forbidden"
	errCodeNotFound        = "not_found"
	errCodeValidation      = "validation_error"
	errCodeBadRequest      = "bad_request"
	errCodeRateLimited     = "rate_limited"
	errCodeUnavailable     = "unavailable"
	errCodeInternal        = "internal_error"
)

func abortWithError(c *gin.Context, status int, code, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "detail": detail})
}
