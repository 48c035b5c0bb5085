package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"timeoff-manager/internal/domain"
	"timeoff-manager/internal/email"
	"timeoff-manager/internal/repository"
)

const (
	confirmationTTL     = 24 * time.Hour
	loginAttemptsWindow = 10 * time.Minute
	loginAttemptsMax    = 5
)

var (
	ErrInvalidEmail           = errors.New("invalid email")
	ErrInvalidRegistration    = errors.New("invalid registration data")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrConfirmationInvalid    = errors.New("confirmation token invalid")
	ErrAlreadyValidated       = errors.New("account already validated")
	ErrOAuthInvalid           = errors.New("oauth data invalid")
	ErrEmailSendFailure       = errors.New("email send failed")
	ErrRateLimited            = errors.New("rate limited")
)

// UserService coordina registro, confirmacion y login de usuarios.
type UserService struct {
	logger        *zap.Logger
	users         repository.UserRepository
	tokens        *JWTService
	confirmations ConfirmationTokenStore
	emailSender   email.Sender
	loginLimiter  LoginLimiter
	accessTTL     time.Duration
	publicBaseURL string
	now           func() time.Time
}

type UserServiceOptions struct {
	AccessTTL     time.Duration
	PublicBaseURL string
}

func NewUserService(
	logger *zap.Logger,
	users repository.UserRepository,
	tokens *JWTService,
	confirmations ConfirmationTokenStore,
	emailSender email.Sender,
	loginLimiter LoginLimiter,
	opts UserServiceOptions,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if confirmations == nil {
		confirmations = NewMemoryConfirmationTokenStore()
	}
	if loginLimiter == nil {
		loginLimiter = NewMemoryLoginLimiter(loginAttemptsWindow, loginAttemptsMax)
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 30 * time.Minute
	}
	return &UserService{
		logger:        logger,
		users:         users,
		tokens:        tokens,
		confirmations: confirmations,
		emailSender:   emailSender,
		loginLimiter:  loginLimiter,
		accessTTL:     opts.AccessTTL,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/"),
		now:           time.Now,
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Session es el resultado de un login exitoso.
type Session struct {
	Token string
	User  domain.User
}

func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	emailAddr := normalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)
	if emailAddr == "" || !strings.Contains(emailAddr, "@") {
		return domain.User{}, ErrInvalidEmail
	}
	if name == "" || input.Password == "" {
		return domain.User{}, ErrInvalidRegistration
	}
	if s.emailSender == nil {
		return domain.User{}, ErrEmailSendFailure
	}

	_, err := s.users.GetByEmail(ctx, emailAddr)
	if err == nil {
		return domain.User{}, ErrEmailAlreadyRegistered
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := s.now().UTC()
	user, err := s.users.Create(ctx, domain.User{
		Name:         name,
		Email:        emailAddr,
		PasswordHash: hash,
		AuthProvider: domain.AuthProviderLocal,
		Role:         domain.RoleMember,
		Validated:    false,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return domain.User{}, err
	}

	token, err := newConfirmationToken()
	if err != nil {
		return domain.User{}, err
	}
	if err := s.confirmations.Store(token, user.ID, confirmationTTL); err != nil {
		return domain.User{}, fmt.Errorf("store confirmation token: %w", err)
	}

	if err := s.emailSender.SendRegistrationConfirmation(ctx, user.Email, user.Name, s.confirmationURL(token)); err != nil {
		s.logger.Warn("send registration confirmation failed", zap.Error(err), zap.Int64("user_id", user.ID))
		_ = s.confirmations.Revoke(token)
		return domain.User{}, ErrEmailSendFailure
	}
	return user, nil
}

// ConfirmRegistration consume el token y marca la cuenta como validada.
func (s *UserService) ConfirmRegistration(ctx context.Context, token string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errors.New("user service not configured")
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, ErrConfirmationInvalid
	}
	userID, ok, err := s.confirmations.Lookup(token)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup confirmation token: %w", err)
	}
	if !ok {
		return domain.User{}, ErrConfirmationInvalid
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if user.Validated {
		return domain.User{}, ErrAlreadyValidated
	}

	now := s.now().UTC()
	if err := s.users.MarkValidated(ctx, user.ID, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	if err := s.confirmations.Revoke(token); err != nil {
		s.logger.Warn("revoke confirmation token failed", zap.Error(err), zap.Int64("user_id", user.ID))
	}

	user.Validated = true
	user.UpdatedAt = now
	return user, nil
}

// Login verifica credenciales y emite un token de acceso.
func (s *UserService) Login(ctx context.Context, emailAddr, password string) (Session, error) {
	if s.users == nil || s.tokens == nil {
		return Session{}, errors.New("user service not configured")
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	if !s.loginLimiter.Allow(emailAddr) {
		return Session{}, ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}
	if !user.Validated {
		return Session{}, ErrAccountNotValidated
	}

	token, err := s.tokens.IssueToken(TokenSubject{Email: user.Email, UserID: user.ID}, s.accessTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: user}, nil
}

type OAuthInput struct {
	Email string
	Name  string
}

// UpsertGoogleUser crea o vincula un usuario de Google; estos quedan validados.
func (s *UserService) UpsertGoogleUser(ctx context.Context, input OAuthInput) (Session, error) {
	if s.users == nil || s.tokens == nil {
		return Session{}, errors.New("user service not configured")
	}

	emailAddr := normalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)
	if emailAddr == "" {
		return Session{}, ErrOAuthInvalid
	}

	now := s.now().UTC()
	user, err := s.users.GetByEmail(ctx, emailAddr)
	switch {
	case err == nil:
		if user.AuthProvider != domain.AuthProviderGoogle || !user.Validated {
			if err := s.users.LinkProvider(ctx, user.ID, domain.AuthProviderGoogle, now); err != nil {
				return Session{}, err
			}
			user.AuthProvider = domain.AuthProviderGoogle
			user.Validated = true
			user.UpdatedAt = now
		}
	case errors.Is(err, pgx.ErrNoRows):
		user, err = s.users.Create(ctx, domain.User{
			Name:         name,
			Email:        emailAddr,
			AuthProvider: domain.AuthProviderGoogle,
			Role:         domain.RoleMember,
			Validated:    true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return Session{}, err
		}
	default:
		return Session{}, err
	}

	token, err := s.tokens.IssueToken(TokenSubject{Email: user.Email, UserID: user.ID}, s.accessTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: user}, nil
}

func (s *UserService) confirmationURL(token string) string {
	base := s.publicBaseURL
	if base == "" {
		base = "http://localhost:8000"
	}
	return base + "/register_confirm?token=" + url.QueryEscape(token)
}

// newConfirmationToken genera 32 bytes aleatorios en base64 url-safe.
func newConfirmationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
