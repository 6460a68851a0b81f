package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"libria/internal/rabbit"
)

// EventPublisher announces committed catalog writes. Satisfied by
// *rabbit.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, bookID uuid.UUID, action string) error
}

// service implements the Service interface.
type service struct {
	store  Store
	events EventPublisher
	logger *slog.Logger
}

// NewService creates a new catalog service instance.
func NewService(store Store, events EventPublisher) Service {
	return &service{
		store:  store,
		events: events,
		logger: slog.Default().With("component", "catalog.service"),
	}
}

// CreateBook stores a new book and then announces it. The event is
// published strictly after the write so a rolled-back book is never
// announced. If publishing fails the created book is still returned,
// with an error wrapping ErrEventPublish; circulation will not learn of
// this book until something re-announces it.
func (s *service) CreateBook(ctx context.Context, title, author, isbn, description, language, genre string) (*Book, error) {
	book := &Book{
		ID:          uuid.New(),
		Title:       title,
		Author:      author,
		ISBN:        isbn,
		Description: description,
		Language:    language,
		Genre:       genre,
	}

	if err := s.store.Create(ctx, book); err != nil {
		if errors.Is(err, ErrISBNExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create book: %w", err)
	}

	if err := s.events.Publish(ctx, book.ID, rabbit.ActionCreated); err != nil {
		s.logger.Error("book created but event not published", "book_id", book.ID, "error", err)
		return book, fmt.Errorf("%w: %v", ErrEventPublish, err)
	}
	return book, nil
}

func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	book, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get book %s: %w", id, err)
	}
	return book, nil
}

func (s *service) ListBooks(ctx context.Context, skip, limit int) ([]*Book, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	books, err := s.store.List(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// DeleteBook removes a book and announces the deletion, with the same
// publish-after-commit contract as CreateBook.
func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete book %s: %w", id, err)
	}
	if !deleted {
		return ErrBookNotFound
	}

	if err := s.events.Publish(ctx, id, rabbit.ActionDeleted); err != nil {
		s.logger.Error("book deleted but event not published", "book_id", id, "error", err)
		return fmt.Errorf("%w: %v", ErrEventPublish, err)
	}
	return nil
}
