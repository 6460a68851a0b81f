package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the catalog service.
//
// CreateBook and DeleteBook may return a committed result together with
// an error wrapping ErrEventPublish: the book write succeeded but the
// lifecycle event could not be announced. Callers must not treat that as
// a failed write.
type Service interface {
	CreateBook(ctx context.Context, title, author, isbn, description, language, genre string) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	ListBooks(ctx context.Context, skip, limit int) ([]*Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
}
