// Package circulation keeps the library-side status of every catalog
// book: a projection created and destroyed by catalog events, mutated by
// borrow and return requests.
package circulation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// BookStatus is the circulation projection of one catalog book. The row
// is keyed by the catalog book id; the catalog service never touches it
// directly, it only announces its own changes.
//
// Invariants: IsAvailable implies BorrowedAt is nil; not IsAvailable
// implies BorrowedAt is set. ReturnedAt stays nil: a return resets the
// row instead of recording history.
type BookStatus struct {
	BookID      uuid.UUID  `json:"book_id"`
	BorrowedAt  *time.Time `json:"borrowed_at"`
	ReturnedAt  *time.Time `json:"returned_at"`
	IsAvailable bool       `json:"is_available"`
}

// Business-rule errors. These are surfaced unwrapped so the HTTP layer
// can map each to a distinct status code.
var (
	ErrBookStatusNotFound = errors.New("book status not found")
	ErrBookNotAvailable   = errors.New("book is not available")
	ErrBookNotBorrowed    = errors.New("book was not borrowed")
)
