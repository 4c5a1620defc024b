package repositories

import (
	"context"

	"bookshelf/internal/models"
)

// BookRepository defines the interface for book data access.
//
// Every operation is scoped to an owner. A nil owner addresses the shared
// master list; rows of other owners are invisible and reported as
// ErrRecordNotFound.
type BookRepository interface {
	// ListByOwner returns the owner's books, most recently created first.
	ListByOwner(ctx context.Context, owner *string) ([]models.Book, error)
	CountByOwner(ctx context.Context, owner string) (int64, error)
	GetByID(ctx context.Context, owner, id string) (*models.Book, error)
	// Create inserts book and fails with ErrDuplicateKey if (ol_key, owner) exists.
	Create(ctx context.Context, book *models.Book) error
	// InsertIfAbsent inserts book unless (ol_key, owner) exists, in which case it is a no-op.
	InsertIfAbsent(ctx context.Context, book *models.Book) error
	// Update overwrites the catalog fields of the book with book.ID owned by *book.UserID.
	Update(ctx context.Context, book *models.Book) error
	// Upsert creates or overwrites the book keyed by (draft.OLKey, owner).
	Upsert(ctx context.Context, owner *string, draft models.BookDraft) error
	Delete(ctx context.Context, owner, id string) error
}

// catalogColumns are the columns written by Update and Upsert.
var catalogColumns = []string{"ol_key", "title", "author", "first_publish_year", "isbn", "updated_at"}
