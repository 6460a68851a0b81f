package circulation

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the operations of the circulation service. Projection
// operations (create/delete) are driven by catalog events; borrow/return
// and the queries are driven by the HTTP layer.
type Service interface {
	CreateBookStatus(ctx context.Context, bookID uuid.UUID) (*BookStatus, error)
	DeleteBookStatus(ctx context.Context, bookID uuid.UUID) (bool, error)
	GetBookStatus(ctx context.Context, bookID uuid.UUID) (*BookStatus, error)
	GetAvailableBooks(ctx context.Context) ([]*BookStatus, error)
	BorrowBook(ctx context.Context, bookID uuid.UUID) (*BookStatus, error)
	ReturnBook(ctx context.Context, bookID uuid.UUID) (*BookStatus, error)
}
