package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Store persists user accounts.
type Store interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// PostgresStore implements Store on top of the users table.
type PostgresStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		tracer: otel.Tracer("libria/users"),
	}
}

func (s *PostgresStore) Create(ctx context.Context, user *User) error {
	ctx, span := s.tracer.Start(ctx, "users.store.create",
		trace.WithAttributes(attribute.String("user.id", user.ID.String())))
	defer span.End()

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash, salt, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, user.ID, user.Email, user.PasswordHash, user.Salt, user.Role).Scan(&user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "users.store.get",
		trace.WithAttributes(attribute.String("user.id", id.String())))
	defer span.End()

	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, salt, role, created_at
		FROM users
		WHERE id = $1
	`, id))
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "users.store.get_by_email")
	defer span.End()

	return s.scanOne(s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, salt, role, created_at
		FROM users
		WHERE email = $1
	`, email))
}

func (s *PostgresStore) scanOne(row *sql.Row) (*User, error) {
	user := &User{}
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Salt, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "users.store.delete",
		trace.WithAttributes(attribute.String("user.id", id.String())))
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return affected > 0, nil
}
