package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bookshelf/internal/models"

	"github.com/google/uuid"
)

// MockBookRepository is an in-memory implementation of BookRepository.
type MockBookRepository struct {
	books map[string]models.Book
	order map[string]int64 // insertion sequence, breaks created_at ties
	seq   int64
	mu    sync.RWMutex
}

// NewMockBookRepository creates a new instance of MockBookRepository.
func NewMockBookRepository() *MockBookRepository {
	return &MockBookRepository{
		books: make(map[string]models.Book),
		order: make(map[string]int64),
	}
}

func sameOwner(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// findKey returns the id of owner's book with olKey. Callers hold the lock.
func (r *MockBookRepository) findKey(owner *string, olKey string) (string, bool) {
	for id, b := range r.books {
		if b.OLKey == olKey && sameOwner(b.UserID, owner) {
			return id, true
		}
	}
	return "", false
}

func (r *MockBookRepository) insert(book *models.Book) {
	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	now := time.Now()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now
	r.seq++
	r.order[book.ID] = r.seq
	r.books[book.ID] = *book
}

// ListByOwner returns the owner's books, newest first.
func (r *MockBookRepository) ListByOwner(_ context.Context, owner *string) ([]models.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]models.Book, 0)
	for _, b := range r.books {
		if sameOwner(b.UserID, owner) {
			list = append(list, b)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return r.order[list[i].ID] > r.order[list[j].ID]
	})
	return list, nil
}

// CountByOwner counts the owner's books.
func (r *MockBookRepository) CountByOwner(_ context.Context, owner string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, b := range r.books {
		if sameOwner(b.UserID, &owner) {
			n++
		}
	}
	return n, nil
}

// GetByID returns an owned book by its ID.
func (r *MockBookRepository) GetByID(_ context.Context, owner, id string) (*models.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, ok := r.books[id]
	if !ok || !sameOwner(book.UserID, &owner) {
		return nil, fmt.Errorf("book with ID %s: %w", id, ErrRecordNotFound)
	}
	return &book, nil
}

// Create adds a new book.
func (r *MockBookRepository) Create(_ context.Context, book *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.findKey(book.UserID, book.OLKey); exists {
		return fmt.Errorf("book %s: %w", book.OLKey, ErrDuplicateKey)
	}
	r.insert(book)
	return nil
}

// InsertIfAbsent adds book unless its key is taken for the owner.
func (r *MockBookRepository) InsertIfAbsent(_ context.Context, book *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.findKey(book.UserID, book.OLKey); exists {
		return nil
	}
	r.insert(book)
	return nil
}

// Update modifies an existing owned book.
func (r *MockBookRepository) Update(_ context.Context, book *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.books[book.ID]
	if !ok || book.UserID == nil || !sameOwner(current.UserID, book.UserID) {
		return fmt.Errorf("book with ID %s not found for update: %w", book.ID, ErrRecordNotFound)
	}
	if id, exists := r.findKey(book.UserID, book.OLKey); exists && id != book.ID {
		return fmt.Errorf("book %s: %w", book.OLKey, ErrDuplicateKey)
	}
	book.CreatedAt = current.CreatedAt
	book.UpdatedAt = time.Now()
	r.books[book.ID] = *book
	return nil
}

// Upsert creates or overwrites the owner's book keyed by draft.OLKey.
func (r *MockBookRepository) Upsert(_ context.Context, owner *string, draft models.BookDraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.findKey(owner, draft.OLKey); exists {
		current := r.books[id]
		current.Title = draft.Title
		current.Author = draft.Author
		current.FirstPublishYear = draft.FirstPublishYear
		current.ISBN = draft.ISBN
		current.UpdatedAt = time.Now()
		r.books[id] = current
		return nil
	}
	r.insert(&models.Book{
		OLKey:            draft.OLKey,
		Title:            draft.Title,
		Author:           draft.Author,
		FirstPublishYear: draft.FirstPublishYear,
		ISBN:             draft.ISBN,
		UserID:           owner,
	})
	return nil
}

// Delete removes an owned book by its ID.
func (r *MockBookRepository) Delete(_ context.Context, owner, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[id]
	if !ok || !sameOwner(book.UserID, &owner) {
		return fmt.Errorf("book with ID %s not found for deletion: %w", id, ErrRecordNotFound)
	}
	delete(r.books, id)
	delete(r.order, id)
	return nil
}
