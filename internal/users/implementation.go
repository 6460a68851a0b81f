package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// service implements the Service interface.
type service struct {
	store     Store
	jwtSecret []byte
	limiter   *rate.Limiter
}

// NewService creates a new identity service instance. Registration is
// rate limited to blunt signup abuse.
func NewService(store Store, jwtSecret []byte) Service {
	return &service{
		store:     store,
		jwtSecret: jwtSecret,
		limiter:   rate.NewLimiter(rate.Every(time.Minute), 5),
	}
}

// Register creates a new account with role "user".
func (s *service) Register(ctx context.Context, email, password string) (*User, error) {
	if !s.limiter.Allow() {
		return nil, ErrTooManyRequests
	}

	hash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:           uuid.New(),
		Email:        email,
		Role:         RoleUser,
		PasswordHash: hash,
		Salt:         salt,
	}

	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, err
		}
		return nil, fmt.Errorf("register user: %w", err)
	}
	return user, nil
}

// Login verifies the credentials and returns a signed access token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("login: %w", err)
	}

	ok, err := verifyPassword(password, user.Salt, user.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if !ok {
		return "", ErrInvalidCredentials
	}

	return issueToken(s.jwtSecret, user)
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return user, nil
}

func (s *service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	if !deleted {
		return ErrUserNotFound
	}
	return nil
}
