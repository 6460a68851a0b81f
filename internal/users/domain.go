// Package users is the identity service: registration, login and basic
// account management for library users.
package users

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Roles a user can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered library user. Credential fields never leave the
// service.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	Salt         string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTooManyRequests    = errors.New("too many registration attempts")
)
