package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"bookshelf/internal/common"
	"bookshelf/internal/models"
	"bookshelf/internal/repositories"
	"bookshelf/pkg/openlibrary"
	"bookshelf/pkg/rabbitmq"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// DefaultCatalogQuery is searched when an import names no query.
const DefaultCatalogQuery = "javascript"

// Import sources reported in import events.
const (
	SourceDocs    = "docs"
	SourceCatalog = "catalog"
)

// CatalogSearcher looks up works in the external catalog.
type CatalogSearcher interface {
	Search(ctx context.Context, query string) (*openlibrary.SearchResponse, error)
}

// EventPublisher delivers import events to the broker.
type EventPublisher interface {
	PublishImportEvent(event rabbitmq.ImportEvent) error
}

// CatalogDoc is the part of a catalog search document the importer reads.
// Other fields are ignored.
type CatalogDoc struct {
	Key              string   `json:"key" validate:"required"`
	Title            string   `json:"title" validate:"required"`
	AuthorName       []string `json:"author_name" validate:"omitempty,dive,required"`
	FirstPublishYear any      `json:"first_publish_year"`
	ISBN             []string `json:"isbn" validate:"omitempty,dive,required"`
}

// publishYear reads a year given as a JSON number or a numeric string.
// Anything that is not a whole number yields nil.
func publishYear(v any) *int {
	var f float64
	switch year := v.(type) {
	case float64:
		f = year
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(year), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	n := int(f)
	return &n
}

var docValidator = validator.New()

// parseDoc decodes and validates one raw document.
func parseDoc(raw json.RawMessage) (CatalogDoc, error) {
	var doc CatalogDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("decode catalog doc: %w", err)
	}
	if err := docValidator.Struct(doc); err != nil {
		return doc, fmt.Errorf("invalid catalog doc: %w", err)
	}
	return doc, nil
}

// Draft converts a validated document into book fields, keeping the first
// author and the first ISBN.
func (d CatalogDoc) Draft() models.BookDraft {
	draft := models.BookDraft{
		OLKey:            d.Key,
		Title:            d.Title,
		FirstPublishYear: publishYear(d.FirstPublishYear),
	}
	if len(d.AuthorName) > 0 {
		draft.Author = d.AuthorName[0]
	}
	if len(d.ISBN) > 0 {
		draft.ISBN = d.ISBN[0]
	}
	return draft
}

// Transform turns raw catalog documents into drafts, in input order.
// Documents that fail to decode or validate are dropped without error.
func Transform(docs []json.RawMessage) []models.BookDraft {
	drafts := make([]models.BookDraft, 0, len(docs))
	for _, raw := range docs {
		doc, err := parseDoc(raw)
		if err != nil {
			continue
		}
		drafts = append(drafts, doc.Draft())
	}
	return drafts
}

// ImportService upserts catalog documents into book lists.
type ImportService struct {
	books     repositories.BookRepository
	seeder    *BookService
	catalog   CatalogSearcher
	publisher EventPublisher
	logger    *zap.Logger
}

// NewImportService creates a new ImportService. catalog and publisher may be nil.
func NewImportService(
	books repositories.BookRepository,
	seeder *BookService,
	catalog CatalogSearcher,
	publisher EventPublisher,
	logger *zap.Logger,
) *ImportService {
	return &ImportService{
		books:     books,
		seeder:    seeder,
		catalog:   catalog,
		publisher: publisher,
		logger:    logger.Named("ImportService"),
	}
}

// Import upserts the valid documents of docs into owner's list and returns how
// many were processed. A nil docs slice means the caller sent no array.
func (s *ImportService) Import(ctx context.Context, owner string, docs []json.RawMessage) (int, error) {
	if docs == nil {
		return 0, common.NewValidationError(msgDocsRequired)
	}
	if err := s.seeder.EnsureSeeded(ctx, owner); err != nil {
		return 0, err
	}
	return s.upsertAll(ctx, &owner, Transform(docs), SourceDocs)
}

// ImportFromCatalog searches the catalog and upserts the results. A nil owner
// imports into the master list.
func (s *ImportService) ImportFromCatalog(ctx context.Context, owner *string, query string) (int, error) {
	if s.catalog == nil {
		return 0, common.NewUpstreamError(msgCatalogFailed, fmt.Errorf("no catalog configured"))
	}
	if query == "" {
		query = DefaultCatalogQuery
	}
	if owner != nil {
		if err := s.seeder.EnsureSeeded(ctx, *owner); err != nil {
			return 0, err
		}
	}

	res, err := s.catalog.Search(ctx, query)
	if err != nil {
		return 0, common.NewUpstreamError(msgCatalogFailed, err)
	}
	return s.upsertAll(ctx, owner, Transform(res.Docs), SourceCatalog)
}

// upsertAll writes drafts one by one. There is no rollback: a failure leaves
// earlier drafts in place.
func (s *ImportService) upsertAll(ctx context.Context, owner *string, drafts []models.BookDraft, source string) (int, error) {
	for _, draft := range drafts {
		if err := s.books.Upsert(ctx, owner, draft); err != nil {
			return 0, common.NewInternalError(err)
		}
	}
	s.publishImported(owner, len(drafts), source)
	return len(drafts), nil
}

// publishImported emits a books.imported event. Failures are only logged.
func (s *ImportService) publishImported(owner *string, imported int, source string) {
	if s.publisher == nil {
		s.logger.Debug("No event publisher configured, skipping import event")
		return
	}
	event := rabbitmq.ImportEvent{
		Event:    rabbitmq.EventBooksImported,
		UserID:   owner,
		Imported: imported,
		Source:   source,
		At:       time.Now().UTC(),
	}
	if err := s.publisher.PublishImportEvent(event); err != nil {
		s.logger.Warn("Failed to publish import event", zap.Error(err))
	}
}
