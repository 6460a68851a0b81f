package circulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// service implements Service. Business-rule errors pass through
// unwrapped; store failures are wrapped once with their cause.
type service struct {
	store Store
}

// NewService creates a new circulation service instance.
func NewService(store Store) Service {
	return &service{store: store}
}

// CreateBookStatus creates the status row for a newly cataloged book.
// A duplicate create is a no-op and returns the existing row unchanged,
// which makes redelivered "created" events harmless.
func (s *service) CreateBookStatus(ctx context.Context, bookID uuid.UUID) (*BookStatus, error) {
	status := &BookStatus{
		BookID:      bookID,
		IsAvailable: true,
	}
	if err := s.store.Create(ctx, status); err != nil {
		return nil, fmt.Errorf("create status for book %s: %w", bookID, err)
	}

	created, err := s.store.Get(ctx, bookID)
	if err != nil {
		if errors.Is(err, ErrBookStatusNotFound) {
			// Row vanished between insert and read: a deleted event
			// overtook us. Report what the store now says.
			return nil, err
		}
		return nil, fmt.Errorf("read back status for book %s: %w", bookID, err)
	}
	return created, nil
}

// DeleteBookStatus removes the status row, reporting whether it existed.
func (s *service) DeleteBookStatus(ctx context.Context, bookID uuid.UUID) (bool, error) {
	deleted, err := s.store.Delete(ctx, bookID)
	if err != nil {
		return false, fmt.Errorf("delete status for book %s: %w", bookID, err)
	}
	return deleted, nil
}

func (s *service) GetBookStatus(ctx context.Context, bookID uuid.UUID) (*BookStatus, error) {
	status, err := s.store.Get(ctx, bookID)
	if err != nil {
		if errors.Is(err, ErrBookStatusNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get status for book %s: %w", bookID, err)
	}
	return status, nil
}

func (s *service) GetAvailableBooks(ctx context.Context) ([]*BookStatus, error) {
	statuses, err := s.store.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("list available books: %w", err)
	}
	return statuses, nil
}

// BorrowBook transitions Available -> Borrowed. The store update is
// guarded on the book still being available, so of N concurrent borrows
// exactly one succeeds and the rest get ErrBookNotAvailable.
func (s *service) BorrowBook(ctx context.Context, bookID uuid.UUID) (*BookStatus, error) {
	status, err := s.GetBookStatus(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !status.IsAvailable {
		return nil, ErrBookNotAvailable
	}

	now := time.Now().UTC()
	status.BorrowedAt = &now
	status.ReturnedAt = nil
	status.IsAvailable = false

	if err := s.store.Update(ctx, status, true); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return nil, ErrBookNotAvailable
		}
		return nil, fmt.Errorf("borrow book %s: %w", bookID, err)
	}
	return status, nil
}

// ReturnBook transitions Borrowed -> Available. The row is reset rather
// than annotated: borrowed_at clears and returned_at stays nil.
func (s *service) ReturnBook(ctx context.Context, bookID uuid.UUID) (*BookStatus, error) {
	status, err := s.GetBookStatus(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if status.IsAvailable {
		return nil, ErrBookNotBorrowed
	}

	status.BorrowedAt = nil
	status.ReturnedAt = nil
	status.IsAvailable = true

	if err := s.store.Update(ctx, status, false); err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return nil, ErrBookNotBorrowed
		}
		return nil, fmt.Errorf("return book %s: %w", bookID, err)
	}
	return status, nil
}
