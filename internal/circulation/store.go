package circulation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrStaleStatus is returned by Store.Update when the availability guard
// no longer matches, i.e. a concurrent request won the transition.
var ErrStaleStatus = errors.New("book status changed concurrently")

// Store persists BookStatus rows. Create must be idempotent (a duplicate
// is a no-op) and Update must be a compare-and-swap on is_available so
// two concurrent borrow requests cannot both succeed.
type Store interface {
	Create(ctx context.Context, status *BookStatus) error
	Get(ctx context.Context, bookID uuid.UUID) (*BookStatus, error)
	ListAvailable(ctx context.Context) ([]*BookStatus, error)
	Update(ctx context.Context, status *BookStatus, wasAvailable bool) error
	Delete(ctx context.Context, bookID uuid.UUID) (bool, error)
}

// PostgresStore implements Store on top of the book_status table.
type PostgresStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		tracer: otel.Tracer("libria/circulation"),
	}
}

// Create inserts a fresh status row. ON CONFLICT DO NOTHING makes
// duplicate event delivery a designed no-op instead of a caught
// unique-violation.
func (s *PostgresStore) Create(ctx context.Context, status *BookStatus) error {
	ctx, span := s.tracer.Start(ctx, "circulation.store.create",
		trace.WithAttributes(attribute.String("book.id", status.BookID.String())))
	defer span.End()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO book_status (book_id, borrowed_at, returned_at, is_available)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (book_id) DO NOTHING
	`, status.BookID, status.BorrowedAt, status.ReturnedAt, status.IsAvailable)
	if err != nil {
		return fmt.Errorf("insert book status: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, bookID uuid.UUID) (*BookStatus, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.store.get",
		trace.WithAttributes(attribute.String("book.id", bookID.String())))
	defer span.End()

	status := &BookStatus{}
	err := s.db.QueryRowContext(ctx, `
		SELECT book_id, borrowed_at, returned_at, is_available
		FROM book_status
		WHERE book_id = $1
	`, bookID).Scan(&status.BookID, &status.BorrowedAt, &status.ReturnedAt, &status.IsAvailable)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookStatusNotFound
		}
		return nil, fmt.Errorf("get book status: %w", err)
	}
	return status, nil
}

func (s *PostgresStore) ListAvailable(ctx context.Context) ([]*BookStatus, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.store.list_available")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT book_id, borrowed_at, returned_at, is_available
		FROM book_status
		WHERE is_available = TRUE
		ORDER BY book_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list available books: %w", err)
	}
	defer rows.Close()

	var statuses []*BookStatus
	for rows.Next() {
		status := &BookStatus{}
		if err := rows.Scan(&status.BookID, &status.BorrowedAt, &status.ReturnedAt, &status.IsAvailable); err != nil {
			return nil, fmt.Errorf("scan book status: %w", err)
		}
		statuses = append(statuses, status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate book statuses: %w", err)
	}

	span.SetAttributes(attribute.Int("statuses.count", len(statuses)))
	return statuses, nil
}

// Update writes the row only if is_available still equals wasAvailable.
// The single guarded UPDATE is the whole concurrency discipline: the
// losing side of a race sees zero rows and gets ErrStaleStatus.
func (s *PostgresStore) Update(ctx context.Context, status *BookStatus, wasAvailable bool) error {
	ctx, span := s.tracer.Start(ctx, "circulation.store.update",
		trace.WithAttributes(
			attribute.String("book.id", status.BookID.String()),
			attribute.Bool("was.available", wasAvailable),
		))
	defer span.End()

	res, err := s.db.ExecContext(ctx, `
		UPDATE book_status
		SET borrowed_at = $2, returned_at = $3, is_available = $4
		WHERE book_id = $1 AND is_available = $5
	`, status.BookID, status.BorrowedAt, status.ReturnedAt, status.IsAvailable, wasAvailable)
	if err != nil {
		return fmt.Errorf("update book status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update book status: %w", err)
	}
	if affected == 0 {
		span.SetAttributes(attribute.Bool("conflict.detected", true))
		return ErrStaleStatus
	}
	return nil
}

// Delete removes the row and reports whether it existed. Deleting an
// absent row is not an error.
func (s *PostgresStore) Delete(ctx context.Context, bookID uuid.UUID) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.store.delete",
		trace.WithAttributes(attribute.String("book.id", bookID.String())))
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM book_status WHERE book_id = $1`, bookID)
	if err != nil {
		return false, fmt.Errorf("delete book status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete book status: %w", err)
	}
	return affected > 0, nil
}
