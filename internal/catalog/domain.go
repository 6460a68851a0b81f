// Package catalog owns the book records and announces their lifecycle on
// the broker so the circulation service can keep its projection in sync.
package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Book is a catalog record.
type Book struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	ISBN        string    `json:"isbn"`
	Description string    `json:"description,omitempty"`
	Language    string    `json:"language,omitempty"`
	Genre       string    `json:"genre,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	ErrBookNotFound = errors.New("book not found")
	ErrISBNExists   = errors.New("book with this ISBN already exists")

	// ErrEventPublish marks a write that committed but was never
	// announced. The mutation itself succeeded; only the broker side
	// failed.
	ErrEventPublish = errors.New("book event publish failed")
)
