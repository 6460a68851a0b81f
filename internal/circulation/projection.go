package circulation

import (
	"context"
	"errors"
	"log/slog"

	"libria/internal/rabbit"
)

// Projector applies catalog book events to the circulation store. It is
// the consumer-side half of the event pipeline and must survive
// at-least-once delivery: duplicate created events, deletes of rows that
// never existed, and a delete arriving before a delayed duplicate create.
type Projector struct {
	service Service
	logger  *slog.Logger
}

func NewProjector(service Service) *Projector {
	return &Projector{
		service: service,
		logger:  slog.Default().With("component", "circulation.projector"),
	}
}

// HandleBookEvent mutates the store for one event. Returning an error
// makes the consumer reject the message without requeue, so only store
// failures propagate; every expected duplicate or unknown shape is a
// logged no-op.
func (p *Projector) HandleBookEvent(ctx context.Context, event rabbit.BookEvent) error {
	switch event.Action {
	case rabbit.ActionCreated:
		p.logger.Info("projecting book status", "book_id", event.BookID, "action", event.Action)
		if _, err := p.service.CreateBookStatus(ctx, event.BookID); err != nil {
			if errors.Is(err, ErrBookStatusNotFound) {
				// Created row already deleted again; nothing to project.
				return nil
			}
			return err
		}
		return nil

	case rabbit.ActionDeleted:
		p.logger.Info("removing book status", "book_id", event.BookID, "action", event.Action)
		if _, err := p.service.DeleteBookStatus(ctx, event.BookID); err != nil {
			return err
		}
		return nil

	default:
		p.logger.Warn("ignoring unknown book event action",
			"book_id", event.BookID, "action", event.Action)
		return nil
	}
}
