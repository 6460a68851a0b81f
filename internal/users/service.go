package users

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the identity service.
type Service interface {
	Register(ctx context.Context, email, password string) (*User, error)
	Login(ctx context.Context, email, password string) (string, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}
