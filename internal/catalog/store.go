package catalog

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

// Store persists catalog books.
type Store interface {
	Create(ctx context.Context, book *Book) error
	Get(ctx context.Context, id uuid.UUID) (*Book, error)
	List(ctx context.Context, skip, limit int) ([]*Book, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// PostgresStore implements Store on top of the books table.
type PostgresStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		tracer: otel.Tracer("libria/catalog"),
	}
}

func (s *PostgresStore) Create(ctx context.Context, book *Book) error {
	ctx, span := s.tracer.Start(ctx, "catalog.store.create",
		trace.WithAttributes(attribute.String("book.id", book.ID.String())))
	defer span.End()

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO books (id, title, author, isbn, description, language, genre)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, book.ID, book.Title, book.Author, book.ISBN, book.Description, book.Language, book.Genre,
	).Scan(&book.CreatedAt)
	if err != nil {
		// 23505 is a unique violation; the only unique column besides
		// the primary key is isbn.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrISBNExists
		}
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.store.get",
		trace.WithAttributes(attribute.String("book.id", id.String())))
	defer span.End()

	book := &Book{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, author, isbn, description, language, genre, created_at
		FROM books
		WHERE id = $1
	`, id).Scan(&book.ID, &book.Title, &book.Author, &book.ISBN,
		&book.Description, &book.Language, &book.Genre, &book.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

func (s *PostgresStore) List(ctx context.Context, skip, limit int) ([]*Book, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.store.list",
		trace.WithAttributes(attribute.Int("skip", skip), attribute.Int("limit", limit)))
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, author, isbn, description, language, genre, created_at
		FROM books
		ORDER BY created_at, id
		OFFSET $1 LIMIT $2
	`, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		book := &Book{}
		if err := rows.Scan(&book.ID, &book.Title, &book.Author, &book.ISBN,
			&book.Description, &book.Language, &book.Genre, &book.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.store.delete",
		trace.WithAttributes(attribute.String("book.id", id.String())))
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete book: %w", err)
	}
	return affected > 0, nil
}
