package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookshelf/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMBookRepository is a GORM implementation of BookRepository.
type GORMBookRepository struct {
	db *gorm.DB
}

// NewGORMBookRepository creates a new instance of GORMBookRepository.
func NewGORMBookRepository(db *gorm.DB) *GORMBookRepository {
	return &GORMBookRepository{
		db: db,
	}
}

func ownedBy(owner *string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if owner == nil {
			return db.Where("user_id IS NULL")
		}
		return db.Where("user_id = ?", *owner)
	}
}

// ListByOwner retrieves the owner's books, newest first.
func (r *GORMBookRepository) ListByOwner(ctx context.Context, owner *string) ([]models.Book, error) {
	books := []models.Book{}
	err := r.db.WithContext(ctx).
		Scopes(ownedBy(owner)).
		Order("created_at DESC").
		Find(&books).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

// CountByOwner counts the owner's books.
func (r *GORMBookRepository) CountByOwner(ctx context.Context, owner string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Book{}).Scopes(ownedBy(&owner)).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return count, nil
}

// GetByID retrieves a single book owned by owner.
func (r *GORMBookRepository) GetByID(ctx context.Context, owner, id string) (*models.Book, error) {
	var book models.Book
	err := r.db.WithContext(ctx).Scopes(ownedBy(&owner)).First(&book, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get book %s: %w", id, translateError(err))
	}
	return &book, nil
}

// Create creates a new book in the database.
func (r *GORMBookRepository) Create(ctx context.Context, book *models.Book) error {
	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		return fmt.Errorf("failed to create book: %w", translateError(err))
	}
	return nil
}

// InsertIfAbsent creates book unless its (ol_key, owner) pair is already taken.
func (r *GORMBookRepository) InsertIfAbsent(ctx context.Context, book *models.Book) error {
	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(book).Error
	if err != nil {
		return fmt.Errorf("failed to insert book: %w", translateError(err))
	}
	return nil
}

// Update overwrites the catalog fields of an owned book.
func (r *GORMBookRepository) Update(ctx context.Context, book *models.Book) error {
	if book.UserID == nil {
		return fmt.Errorf("update book %s: %w", book.ID, ErrRecordNotFound)
	}
	book.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ? AND user_id = ?", book.ID, *book.UserID).
		Select(catalogColumns).
		Updates(book)
	if res.Error != nil {
		return fmt.Errorf("failed to update book: %w", translateError(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("book with ID %s not found for update: %w", book.ID, ErrRecordNotFound)
	}
	return nil
}

// Upsert creates or overwrites the owner's book with draft.OLKey.
//
// Owned rows rely on the (ol_key, user_id) unique index for an atomic
// ON CONFLICT update. NULL owners never conflict in SQL, so the master list
// goes through a lookup inside a transaction instead.
func (r *GORMBookRepository) Upsert(ctx context.Context, owner *string, draft models.BookDraft) error {
	book := newBookFromDraft(owner, draft)
	if owner != nil {
		err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "ol_key"}, {Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns(catalogColumns[1:]),
			}).
			Create(book).Error
		if err != nil {
			return fmt.Errorf("failed to upsert book %s: %w", draft.OLKey, translateError(err))
		}
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Book
		err := tx.Scopes(ownedBy(nil)).Where("ol_key = ?", draft.OLKey).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(book).Error
		}
		if err != nil {
			return err
		}
		book.ID = existing.ID
		book.CreatedAt = existing.CreatedAt
		return tx.Model(&existing).Select(catalogColumns).Updates(book).Error
	})
	if err != nil {
		return fmt.Errorf("failed to upsert master book %s: %w", draft.OLKey, translateError(err))
	}
	return nil
}

// Delete deletes an owned book.
func (r *GORMBookRepository) Delete(ctx context.Context, owner, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, owner).Delete(&models.Book{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete book: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("book with ID %s not found for deletion: %w", id, ErrRecordNotFound)
	}
	return nil
}

func newBookFromDraft(owner *string, draft models.BookDraft) *models.Book {
	now := time.Now()
	return &models.Book{
		ID:               uuid.New().String(),
		OLKey:            draft.OLKey,
		Title:            draft.Title,
		Author:           draft.Author,
		FirstPublishYear: draft.FirstPublishYear,
		ISBN:             draft.ISBN,
		UserID:           owner,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
