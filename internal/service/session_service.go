package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"timeoff-manager/internal/domain"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrAccountNotValidated = errors.New("account not validated")
)

// UserLookup es la capacidad minima que necesita la validacion de sesion.
type UserLookup interface {
	GetByIDAndEmail(ctx context.Context, id int64, email string) (domain.User, error)
}

// SessionService valida un token y vuelve a consultar al usuario en cada uso,
// de modo que borrar o invalidar una cuenta revoca sus tokens vigentes.
type SessionService struct {
	tokens *JWTService
	users  UserLookup
}

func NewSessionService(tokens *JWTService, users UserLookup) *SessionService {
	return &SessionService{tokens: tokens, users: users}
}

func (s *SessionService) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	if s == nil || s.tokens == nil || s.users == nil {
		return domain.Identity{}, errors.New("session service not configured")
	}

	subject, err := s.tokens.VerifyToken(token)
	if err != nil {
		return domain.Identity{}, err
	}

	user, err := s.users.GetByIDAndEmail(ctx, subject.UserID, subject.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Identity{}, ErrUserNotFound
		}
		return domain.Identity{}, fmt.Errorf("lookup user %d: %w", subject.UserID, err)
	}
	if !user.Validated {
		return domain.Identity{}, ErrAccountNotValidated
	}
	return user.Identity(), nil
}
