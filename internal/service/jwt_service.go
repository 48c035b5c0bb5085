package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL se aplica cuando el llamador no indica duracion.
const DefaultTokenTTL = 15 * time.Minute

// JWTService emite y valida tokens de sesion firmados.
type JWTService struct {
	secret []byte
	now    func() time.Time
}

// TokenSubject es lo que un token afirma sobre su portador.
type TokenSubject struct {
	Email  string
	UserID int64
}

type Claims struct {
	UserID int64 `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenPayload: firma valida pero sin sub o user_id.
	ErrTokenPayload = errors.New("token payload invalid")
)

func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		now:    time.Now,
	}
}

func (s *JWTService) IssueToken(subject TokenSubject, ttl time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrTokenInvalid
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := s.now().UTC()
	claims := Claims{
		UserID: subject.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *JWTService) VerifyToken(tokenString string) (TokenSubject, error) {
	if len(s.secret) == 0 {
		return TokenSubject{}, ErrTokenInvalid
	}
	if strings.TrimSpace(tokenString) == "" {
		return TokenSubject{}, ErrTokenInvalid
	}

	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenSubject{}, ErrTokenExpired
		}
		return TokenSubject{}, ErrTokenInvalid
	}

	email := strings.TrimSpace(claims.Subject)
	if email == "" || claims.UserID <= 0 {
		return TokenSubject{}, ErrTokenPayload
	}
	return TokenSubject{Email: email, UserID: claims.UserID}, nil
}
