package domain

import "time"

type Role string

const (
	// RoleMember is a regular employee; stored as "user".
	RoleMember  Role = "user"
	RoleManager Role = "manager"
)

type AuthProvider string

const (
	AuthProviderLocal  AuthProvider = "local"
	AuthProviderGoogle AuthProvider = "google"
)

type User struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	AuthProvider AuthProvider `json:"auth_provider"`
	Role         Role         `json:"role"`
	UnitID       *int64       `json:"unit_id"`
	Validated    bool         `json:"validated"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Identity es la vista de solo lectura de un usuario autenticado.
type Identity struct {
	ID     int64  `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	UnitID *int64 `json:"unit_id"`
}

func (u User) Identity() Identity {
	return Identity{
		ID:     u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
		UnitID: u.UnitID,
	}
}

func (i Identity) IsManager() bool {
	return i.Role == RoleManager
}
