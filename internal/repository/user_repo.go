package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"timeoff-manager/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByIDAndEmail(ctx context.Context, id int64, email string) (domain.User, error)
	MarkValidated(ctx context.Context, id int64, at time.Time) error
	LinkProvider(ctx context.Context, id int64, provider domain.AuthProvider, at time.Time) error
}

// PgUserRepository implementa UserRepository usando pgx.
type PgUserRepository struct {
	db DBTX
}

func NewPgUserRepository(db DBTX) *PgUserRepository {
	return &PgUserRepository{db: db}
}

const userColumns = `id, name, email, password_hash, auth_provider, role, unit_id, validated, created_at, updated_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	const query = `
		INSERT INTO users (name, email, password_hash, auth_provider, role, unit_id, validated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var passwordHash interface{}
	if user.PasswordHash != "" {
		passwordHash = user.PasswordHash
	}
	if user.AuthProvider == "" {
		user.AuthProvider = domain.AuthProviderLocal
	}
	if user.Role == "" {
		user.Role = domain.RoleMember
	}

	err := r.db.QueryRow(ctx, query,
		user.Name,
		user.Email,
		passwordHash,
		string(user.AuthProvider),
		string(user.Role),
		user.UnitID,
		user.Validated,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRow(ctx, query, email))
}

// GetByIDAndEmail exige que ambos valores apunten al mismo registro.
func (r *PgUserRepository) GetByIDAndEmail(ctx context.Context, id int64, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND email = $2`
	return scanUser(r.db.QueryRow(ctx, query, id, email))
}

func (r *PgUserRepository) MarkValidated(ctx context.Context, id int64, at time.Time) error {
	const query = `UPDATE users SET validated = TRUE, updated_at = $2 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// LinkProvider cambia el proveedor de autenticacion y valida la cuenta.
func (r *PgUserRepository) LinkProvider(ctx context.Context, id int64, provider domain.AuthProvider, at time.Time) error {
	const query = `UPDATE users SET auth_provider = $2, validated = TRUE, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, string(provider), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u            domain.User
		passwordHash *string
		provider     string
		role         string
	)
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&passwordHash,
		&provider,
		&role,
		&u.UnitID,
		&u.Validated,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	if passwordHash != nil {
		u.PasswordHash = *passwordHash
	}
	u.AuthProvider = domain.AuthProvider(provider)
	u.Role = domain.Role(role)
	return u, nil
}
