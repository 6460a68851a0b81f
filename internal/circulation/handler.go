package circulation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the circulation endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreateStatus)
	r.Delete("/{bookID}", h.handleDeleteStatus)
	r.Get("/status/{bookID}", h.handleGetStatus)
	r.Get("/available", h.handleGetAvailable)
	r.Post("/{bookID}/borrow", h.handleBorrow)
	r.Post("/{bookID}/return", h.handleReturn)
	return r
}

func (h *Handler) handleCreateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BookID uuid.UUID `json:"book_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BookID == uuid.Nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}

	status, err := h.service.CreateBookStatus(r.Context(), req.BookID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(status)
}

func (h *Handler) handleDeleteStatus(w http.ResponseWriter, r *http.Request) {
	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.DeleteBookStatus(r.Context(), bookID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		http.Error(w, ErrBookStatusNotFound.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}

	status, err := h.service.GetBookStatus(r.Context(), bookID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (h *Handler) handleGetAvailable(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.service.GetAvailableBooks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if statuses == nil {
		statuses = []*BookStatus{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statuses)
}

func (h *Handler) handleBorrow(w http.ResponseWriter, r *http.Request) {
	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}

	status, err := h.service.BorrowBook(r.Context(), bookID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}

	status, err := h.service.ReturnBook(r.Context(), bookID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func bookIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	bookID, err := uuid.Parse(chi.URLParam(r, "bookID"))
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return bookID, true
}

// writeError maps business-rule errors to distinct status codes; anything
// else is an opaque server error.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBookStatusNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrBookNotAvailable), errors.Is(err, ErrBookNotBorrowed):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
