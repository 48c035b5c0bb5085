package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"timeoff-manager/internal/service"
)

// UserHandler mantiene dependencias para endpoints de cuentas.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService) *UserHandler {
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
	}
}

// Login maneja POST /login.
func (h *UserHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		abortWithError(c, http.StatusUnprocessableEntity, errCodeValidation, "email and password are required")
		return
	}

	session, err := h.userServ.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			abortWithError(c, http.StatusUnauthorized, errCodeUnauthenticated, "Invalid email or password")
		case errors.Is(err, service.ErrAccountNotValidated):
			abortWithError(c, http.StatusUnauthorized, errCodeUnauthenticated, "Account not validated. Please check your email for confirmation link.")
		case errors.Is(err, service.ErrRateLimited):
			abortWithError(c, http.StatusTooManyRequests, errCodeRateLimited, "Too many login attempts. Try again later.")
		default:
			h.logger.Error("login failed", zap.Error(err))
			abortWithError(c, http.StatusInternalServerError, errCodeInternal, "could not login")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":   session.Token,
		"user_id": session.User.ID,
		"email":   session.User.Email,
		"name":    session.User.Name,
	})
}

// Register maneja POST /register.
func (h *UserHandler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		abortWithError(c, http.StatusUnprocessableEntity, errCodeValidation, "name, email and password are required")
		return
	}

	user, err := h.userServ.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailAlreadyRegistered):
			abortWithError(c, http.StatusBadRequest, errCodeBadRequest, "Email already registered")
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrInvalidRegistration):
			abortWithError(c, http.StatusUnprocessableEntity, errCodeValidation, err.Error())
		case errors.Is(err, service.ErrEmailSendFailure):
			abortWithError(c, http.StatusServiceUnavailable, errCodeUnavailable, "email delivery unavailable")
		default:
			h.logger.Error("register failed", zap.Error(err))
			abortWithError(c, http.StatusInternalServerError, errCodeInternal, "could not register")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Registration successful. Please check your email to confirm your account.",
		"user_id": user.ID,
	})
}

// ConfirmRegistration maneja POST /register_confirm y el enlace GET del correo.
func (h *UserHandler) ConfirmRegistration(c *gin.Context) {
	token := c.Query("token")
	if c.Request.Method == http.MethodPost {
		var req struct {
			Token string `json:"token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("invalid register confirm request", zap.Error(err))
			abortWithError(c, http.StatusUnprocessableEntity, errCodeValidation, "token is required")
			return
		}
		token = req.Token
	}

	user, err := h.userServ.ConfirmRegistration(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConfirmationInvalid):
			abortWithError(c, http.StatusBadRequest, errCodeBadRequest, "Invalid or expired confirmation token")
		case errors.Is(err, service.ErrUserNotFound):
			abortWithError(c, http.StatusNotFound, errCodeNotFound, "User not found")
		case errors.Is(err, service.ErrAlreadyValidated):
			abortWithError(c, http.StatusBadRequest, errCodeBadRequest, "Account already validated")
		default:
			h.logger.Error("register confirm failed", zap.Error(err))
			abortWithError(c, http.StatusInternalServerError, errCodeInternal, "could not confirm account")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Account confirmed successfully. You can now login.",
		"user_id": user.ID,
	})
}

// Profile maneja GET /profile.
func (h *UserHandler) Profile(c *gin.Context) {
	identity, ok := GetIdentity(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, errCodeUnauthenticated, "Authentication required")
		return
	}
	c.JSON(http.StatusOK, identity)
}
