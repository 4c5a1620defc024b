package services

import (
	"context"
	"fmt"

	"bookshelf/internal/common"
	"bookshelf/internal/models"
	"bookshelf/internal/repositories"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// bookInput is what a stored book must satisfy after create or update.
type bookInput struct {
	OLKey string `validate:"required,max=255"`
	Title string `validate:"required"`
}

// BookService handles owner-scoped CRUD on book lists.
// Every operation first seeds an empty list from the master list.
type BookService struct {
	repo     repositories.BookRepository
	validate *validator.Validate
	logger   *zap.Logger
}

// NewBookService creates a new BookService.
func NewBookService(repo repositories.BookRepository, logger *zap.Logger) *BookService {
	return &BookService{
		repo:     repo,
		validate: validator.New(),
		logger:   logger.Named("BookService"),
	}
}

// EnsureSeeded copies the master list into owner's list when owner has no books.
//
// Two first requests of the same owner may both see an empty list. Copies go
// through InsertIfAbsent so the loser of that race inserts nothing instead of
// failing on the (ol_key, owner) index.
func (s *BookService) EnsureSeeded(ctx context.Context, owner string) error {
	count, err := s.repo.CountByOwner(ctx, owner)
	if err != nil {
		return common.NewInternalError(err)
	}
	if count > 0 {
		return nil
	}

	master, err := s.repo.ListByOwner(ctx, nil)
	if err != nil {
		return common.NewInternalError(err)
	}
	for _, mb := range master {
		book := &models.Book{
			OLKey:            mb.OLKey,
			Title:            mb.Title,
			Author:           mb.Author,
			FirstPublishYear: mb.FirstPublishYear,
			ISBN:             mb.ISBN,
			UserID:           &owner,
		}
		if err := s.repo.InsertIfAbsent(ctx, book); err != nil {
			return common.NewInternalError(fmt.Errorf("seed %s for user %s: %w", mb.OLKey, owner, err))
		}
	}
	if len(master) > 0 {
		s.logger.Info("Seeded book list from master list", zap.String("userID", owner), zap.Int("books", len(master)))
	}
	return nil
}

// List returns the owner's books, newest first.
func (s *BookService) List(ctx context.Context, owner string) ([]models.Book, error) {
	if err := s.EnsureSeeded(ctx, owner); err != nil {
		return nil, err
	}
	books, err := s.repo.ListByOwner(ctx, &owner)
	if err != nil {
		return nil, common.NewInternalError(err)
	}
	return books, nil
}

// Get returns one of the owner's books.
func (s *BookService) Get(ctx context.Context, owner, id string) (*models.Book, error) {
	if err := s.EnsureSeeded(ctx, owner); err != nil {
		return nil, err
	}
	book, err := s.repo.GetByID(ctx, owner, id)
	if err != nil {
		return nil, fromRepo(err, "")
	}
	return book, nil
}

// Create adds a book to the owner's list.
func (s *BookService) Create(ctx context.Context, owner string, draft models.BookDraft) (*models.Book, error) {
	if err := s.EnsureSeeded(ctx, owner); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(bookInput{OLKey: draft.OLKey, Title: draft.Title}); err != nil {
		return nil, common.NewValidationError(msgBookFieldsRequired)
	}

	book := &models.Book{
		OLKey:            draft.OLKey,
		Title:            draft.Title,
		Author:           draft.Author,
		FirstPublishYear: draft.FirstPublishYear,
		ISBN:             draft.ISBN,
		UserID:           &owner,
	}
	if err := s.repo.Create(ctx, book); err != nil {
		return nil, fromRepo(err, msgBookKeyTaken)
	}
	return book, nil
}

// Update applies patch to one of the owner's books. Ownership never changes.
func (s *BookService) Update(ctx context.Context, owner, id string, patch models.BookPatch) (*models.Book, error) {
	if err := s.EnsureSeeded(ctx, owner); err != nil {
		return nil, err
	}
	book, err := s.repo.GetByID(ctx, owner, id)
	if err != nil {
		return nil, fromRepo(err, "")
	}

	patch.Apply(book)
	book.UserID = &owner
	if err := s.validate.Struct(bookInput{OLKey: book.OLKey, Title: book.Title}); err != nil {
		return nil, common.NewValidationError(msgBookFieldsRequired)
	}
	if err := s.repo.Update(ctx, book); err != nil {
		return nil, fromRepo(err, msgBookKeyTaken)
	}
	return book, nil
}

// Delete removes one of the owner's books. Deleting a missing book is a NotFound error.
func (s *BookService) Delete(ctx context.Context, owner, id string) error {
	if err := s.EnsureSeeded(ctx, owner); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, owner, id); err != nil {
		return fromRepo(err, "")
	}
	return nil
}
