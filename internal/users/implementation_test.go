package users

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type memStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]User
}

func newMemStore() *memStore {
	return &memStore{users: make(map[uuid.UUID]User)}
}

func (m *memStore) Create(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrEmailExists
		}
	}
	user.CreatedAt = time.Now().UTC()
	m.users[user.ID] = *user
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &user, nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			user := user
			return &user, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return false, nil
	}
	delete(m.users, id)
	return true, nil
}

func TestRegisterAndLogin(t *testing.T) {
	svc := NewService(newMemStore(), testSecret)

	user, err := svc.Register(context.Background(), "reader@example.com", "SecurePass123")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, user.Role)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "SecurePass123", user.PasswordHash)

	token, err := svc.Login(context.Background(), "reader@example.com", "SecurePass123")
	require.NoError(t, err)

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return testSecret, nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, RoleUser, claims.Role)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewService(newMemStore(), testSecret)

	_, err := svc.Register(context.Background(), "dup@example.com", "password1")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "dup@example.com", "password2")
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := NewService(newMemStore(), testSecret)

	_, err := svc.Register(context.Background(), "reader@example.com", "right-password")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "reader@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown email looks the same as a wrong password.
	_, err = svc.Login(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGetAndDeleteUser(t *testing.T) {
	svc := NewService(newMemStore(), testSecret)

	user, err := svc.Register(context.Background(), "reader@example.com", "password123")
	require.NoError(t, err)

	got, err := svc.GetUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	require.NoError(t, svc.DeleteUser(context.Background(), user.ID))

	_, err = svc.GetUser(context.Background(), user.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	err = svc.DeleteUser(context.Background(), user.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRegistrationRateLimit(t *testing.T) {
	svc := NewService(newMemStore(), testSecret)

	var limited bool
	for i := 0; i < 10; i++ {
		_, err := svc.Register(context.Background(), uuid.NewString()+"@example.com", "password123")
		if err != nil {
			require.ErrorIs(t, err, ErrTooManyRequests)
			limited = true
			break
		}
	}
	assert.True(t, limited, "burst registrations should hit the limiter")
}
