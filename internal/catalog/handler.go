package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the catalog endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.handleCreateBook)
	r.Get("/", h.handleListBooks)
	r.Get("/{bookID}", h.handleGetBook)
	r.Delete("/{bookID}", h.handleDeleteBook)
	return r
}

func (h *Handler) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Author      string `json:"author"`
		ISBN        string `json:"isbn"`
		Description string `json:"description"`
		Language    string `json:"language"`
		Genre       string `json:"genre"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.Author == "" || req.ISBN == "" {
		http.Error(w, "title, author and isbn are required", http.StatusBadRequest)
		return
	}

	book, err := h.service.CreateBook(r.Context(), req.Title, req.Author, req.ISBN,
		req.Description, req.Language, req.Genre)
	// A publish failure still carries a committed book; answer 201 for
	// the write that succeeded.
	if err != nil && book == nil {
		if errors.Is(err, ErrISBNExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(book)
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	books, err := h.service.ListBooks(r.Context(), skip, limit)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if books == nil {
		books = []*Book{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(books)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "bookID"))
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrBookNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(book)
}

func (h *Handler) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "bookID"))
	if err != nil {
		http.Error(w, "invalid book ID", http.StatusBadRequest)
		return
	}

	err = h.service.DeleteBook(r.Context(), id)
	if err != nil && !errors.Is(err, ErrEventPublish) {
		if errors.Is(err, ErrBookNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
