package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"timeoff-manager/internal/service"
)

const googleOAuthState = "timeoff-manager"

// GoogleAuthenticator es el adaptador OAuth de Google.
type GoogleAuthenticator interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (service.GoogleProfile, error)
}

type GoogleHandler struct {
	logger      *zap.Logger
	google      GoogleAuthenticator
	userServ    *service.UserService
	frontendURL string
}

// NewGoogleHandler acepta google nil cuando OAuth no esta configurado.
func NewGoogleHandler(logger *zap.Logger, google GoogleAuthenticator, userServ *service.UserService, frontendURL string) *GoogleHandler {
	return &GoogleHandler{
		logger:      logger,
		google:      google,
		userServ:    userServ,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

func (h *GoogleHandler) configured(c *gin.Context) bool {
	if h.google == nil {
		abortWithError(c, http.StatusInternalServerError, errCodeInternal, "Google OAuth not configured")
		return false
	}
	return true
}

// AuthURL maneja GET /google/auth-url.
func (h *GoogleHandler) AuthURL(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_url": h.google.AuthCodeURL(googleOAuthState)})
}

// Login maneja GET /google/login.
func (h *GoogleHandler) Login(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, h.google.AuthCodeURL(googleOAuthState))
}

// Callback maneja GET /google/callback.
func (h *GoogleHandler) Callback(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		abortWithError(c, http.StatusBadRequest, errCodeBadRequest, "Authorization code not provided")
		return
	}

	profile, err := h.google.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn("google exchange failed", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, errCodeInternal, "Google OAuth error")
		return
	}

	session, err := h.userServ.UpsertGoogleUser(c.Request.Context(), service.OAuthInput{
		Email: profile.Email,
		Name:  profile.Name,
	})
	if err != nil {
		if errors.Is(err, service.ErrOAuthInvalid) {
			abortWithError(c, http.StatusBadRequest, errCodeBadRequest, "Email not provided by Google")
			return
		}
		h.logger.Error("google upsert failed", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, errCodeInternal, "Authentication error")
		return
	}

	query := url.Values{}
	query.Set("token", session.Token)
	query.Set("user_id", strconv.FormatInt(session.User.ID, 10))
	query.Set("email", session.User.Email)
	query.Set("name", session.User.Name)
	c.Redirect(http.StatusTemporaryRedirect, h.frontendURL+"/auth/callback?"+query.Encode())
}
