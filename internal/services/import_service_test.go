package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"bookshelf/internal/common"
	"bookshelf/internal/models"
	"bookshelf/internal/repositories"
	"bookshelf/internal/services"
	"bookshelf/pkg/openlibrary"
	"bookshelf/pkg/rabbitmq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Search(ctx context.Context, query string) (*openlibrary.SearchResponse, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openlibrary.SearchResponse), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishImportEvent(event rabbitmq.ImportEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

func rawDocs(t *testing.T, docs ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		require.True(t, json.Valid([]byte(d)), d)
		out = append(out, json.RawMessage(d))
	}
	return out
}

func newImportService(repo repositories.BookRepository, catalog services.CatalogSearcher, publisher services.EventPublisher) *services.ImportService {
	return services.NewImportService(repo, services.NewBookService(repo, zap.NewNop()), catalog, publisher, zap.NewNop())
}

func TestTransform_FirstElementSelection(t *testing.T) {
	drafts := services.Transform(rawDocs(t,
		`{"key":"/works/OL123W","title":"T","author_name":["A","B"],"isbn":["1","2"],"first_publish_year":1999,"edition_count":4}`,
	))
	require.Len(t, drafts, 1)
	assert.Equal(t, models.BookDraft{OLKey: "/works/OL123W", Title: "T", Author: "A", ISBN: "1", FirstPublishYear: intPtr(1999)}, drafts[0])
}

func TestTransform_DropsInvalid(t *testing.T) {
	drafts := services.Transform(rawDocs(t,
		`{"title":"no key"}`,
		`{"key":"/works/OL1W","title":"kept"}`,
		`{"key":"/works/OL2W"}`,
	))
	require.Len(t, drafts, 1)
	assert.Equal(t, "kept", drafts[0].Title)
	assert.Empty(t, drafts[0].Author)
	assert.Nil(t, drafts[0].FirstPublishYear)
}

func TestTransform_Cases(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		keep bool
	}{
		{"empty key", `{"key":"","title":"T"}`, false},
		{"numeric key", `{"key":42,"title":"T"}`, false},
		{"author not a list", `{"key":"K","title":"T","author_name":"A"}`, false},
		{"empty author entry", `{"key":"K","title":"T","author_name":[""]}`, false},
		{"empty isbn list", `{"key":"K","title":"T","isbn":[]}`, true},
		{"not an object", `"just a string"`, false},
		{"null", `null`, false},
		{"string year", `{"key":"K","title":"T","first_publish_year":"1999"}`, true},
		{"float year", `{"key":"K","title":"T","first_publish_year":1999.0}`, true},
		{"unreadable year", `{"key":"K","title":"T","first_publish_year":"soon"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts := services.Transform(rawDocs(t, tt.doc))
			if tt.keep {
				assert.Len(t, drafts, 1)
			} else {
				assert.Empty(t, drafts)
			}
		})
	}
}

func TestTransform_PublishYear(t *testing.T) {
	tests := []struct {
		name string
		year string
		want *int
	}{
		{"integer", `1999`, intPtr(1999)},
		{"numeric string", `"1999"`, intPtr(1999)},
		{"padded string", `" 2001 "`, intPtr(2001)},
		{"whole float", `1999.0`, intPtr(1999)},
		{"fractional", `1999.5`, nil},
		{"text", `"soon"`, nil},
		{"boolean", `true`, nil},
		{"null", `null`, nil},
		{"out of range", `1e20`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts := services.Transform(rawDocs(t, `{"key":"/works/OL1W","title":"T","first_publish_year":`+tt.year+`}`))
			require.Len(t, drafts, 1)
			assert.Equal(t, tt.want, drafts[0].FirstPublishYear)
		})
	}
}

func TestTransform_KeepsDocsWithLooseYears(t *testing.T) {
	drafts := services.Transform(rawDocs(t,
		`{"key":"/works/A","title":"a","first_publish_year":1999}`,
		`{"key":"/works/B","title":"b","first_publish_year":"1999"}`,
		`{"key":"/works/C","title":"c","first_publish_year":1999.0}`,
		`{"key":"/works/D","title":"d","author_name":null}`,
	))
	require.Len(t, drafts, 4)
	for _, d := range drafts[:3] {
		assert.Equal(t, intPtr(1999), d.FirstPublishYear, d.OLKey)
	}
	assert.Nil(t, drafts[3].FirstPublishYear)
}

func TestTransform_PreservesOrder(t *testing.T) {
	drafts := services.Transform(rawDocs(t,
		`{"key":"C","title":"c"}`,
		`{"bad":true}`,
		`{"key":"A","title":"a"}`,
		`{"key":"B","title":"b"}`,
	))
	var keys []string
	for _, d := range drafts {
		keys = append(keys, d.OLKey)
	}
	assert.Equal(t, []string{"C", "A", "B"}, keys)
	assert.Empty(t, services.Transform(nil))
}

func TestImportService_ImportRequiresDocs(t *testing.T) {
	importService := newImportService(repositories.NewMockBookRepository(), nil, nil)
	_, err := importService.Import(context.Background(), "alice", nil)
	assertKind(t, err, common.KindValidation, "docs array is required")

	n, err := importService.Import(context.Background(), "alice", []json.RawMessage{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestImportService_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMockBookRepository()
	importService := newImportService(repo, nil, nil)

	n, err := importService.Import(ctx, "alice", rawDocs(t, `{"key":"K","title":"v1","author_name":["A"]}`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = importService.Import(ctx, "alice", rawDocs(t, `{"key":"K","title":"v2"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	books, err := repo.ListByOwner(ctx, strPtr("alice"))
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "v2", books[0].Title)
	assert.Empty(t, books[0].Author, "upsert overwrites every field")
}

func TestImportService_OwnersAreIndependent(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMockBookRepository()
	importService := newImportService(repo, nil, nil)

	_, err := importService.Import(ctx, "alice", rawDocs(t, `{"key":"K","title":"alice's"}`))
	require.NoError(t, err)
	_, err = importService.Import(ctx, "bob", rawDocs(t, `{"key":"K","title":"bob's"}`))
	require.NoError(t, err)

	alice, err := repo.ListByOwner(ctx, strPtr("alice"))
	require.NoError(t, err)
	bob, err := repo.ListByOwner(ctx, strPtr("bob"))
	require.NoError(t, err)
	require.Len(t, alice, 1)
	require.Len(t, bob, 1)
	assert.Equal(t, "alice's", alice[0].Title)
	assert.Equal(t, "bob's", bob[0].Title)
	assert.NotEqual(t, alice[0].ID, bob[0].ID)
}

func TestImportService_CountsProcessedNotCreated(t *testing.T) {
	importService := newImportService(repositories.NewMockBookRepository(), nil, nil)
	n, err := importService.Import(context.Background(), "alice", rawDocs(t,
		`{"key":"K","title":"first"}`,
		`{"key":"K","title":"second"}`,
		`{"title":"dropped"}`,
	))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestImportService_SeedsBeforeImport(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMockBookRepository()
	seedMaster(t, repo, models.BookDraft{OLKey: "/works/MASTER", Title: "From master"})
	importService := newImportService(repo, nil, nil)

	_, err := importService.Import(ctx, "alice", rawDocs(t, `{"key":"/works/NEW","title":"Imported"}`))
	require.NoError(t, err)

	count, err := repo.CountByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestImportService_PublishesEvent(t *testing.T) {
	publisher := new(MockPublisher)
	publisher.On("PublishImportEvent", mock.MatchedBy(func(e rabbitmq.ImportEvent) bool {
		return e.Event == rabbitmq.EventBooksImported && e.UserID != nil && *e.UserID == "alice" &&
			e.Imported == 1 && e.Source == services.SourceDocs && !e.At.IsZero()
	})).Return(nil).Once()
	importService := newImportService(repositories.NewMockBookRepository(), nil, publisher)

	_, err := importService.Import(context.Background(), "alice", rawDocs(t, `{"key":"K","title":"T"}`))
	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestImportService_PublishFailureIsIgnored(t *testing.T) {
	publisher := new(MockPublisher)
	publisher.On("PublishImportEvent", mock.Anything).Return(errors.New("broker down")).Once()
	importService := newImportService(repositories.NewMockBookRepository(), nil, publisher)

	n, err := importService.Import(context.Background(), "alice", rawDocs(t, `{"key":"K","title":"T"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	publisher.AssertExpectations(t)
}

func TestImportService_ImportFromCatalog(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMockBookRepository()
	catalog := new(MockCatalog)
	catalog.On("Search", mock.Anything, "javascript").Return(&openlibrary.SearchResponse{
		NumFound: 3,
		Docs: rawDocs(t,
			`{"key":"/works/OL1W","title":"Eloquent JavaScript","author_name":["Marijn Haverbeke"]}`,
			`{"key":"/works/OL2W","title":"You Don't Know JS"}`,
			`{"title":"broken"}`,
		),
	}, nil).Once()
	importService := newImportService(repo, catalog, nil)

	// An empty query falls back to the default, a nil owner targets the master list.
	n, err := importService.ImportFromCatalog(ctx, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	master, err := repo.ListByOwner(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, master, 2)
	catalog.AssertExpectations(t)

	// New users are seeded from what was just imported.
	books, err := services.NewBookService(repo, zap.NewNop()).List(ctx, "carol")
	require.NoError(t, err)
	assert.Len(t, books, 2)
}

func TestImportService_ImportFromCatalogForOwner(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMockBookRepository()
	catalog := new(MockCatalog)
	catalog.On("Search", mock.Anything, "dune").Return(&openlibrary.SearchResponse{Docs: rawDocs(t, `{"key":"/works/OL9W","title":"Dune"}`)}, nil).Once()
	importService := newImportService(repo, catalog, nil)

	n, err := importService.ImportFromCatalog(ctx, strPtr("alice"), "dune")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	master, err := repo.ListByOwner(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, master)
}

func TestImportService_CatalogFailure(t *testing.T) {
	catalog := new(MockCatalog)
	catalog.On("Search", mock.Anything, "javascript").Return(nil, errors.New("timeout")).Once()
	importService := newImportService(repositories.NewMockBookRepository(), catalog, nil)

	_, err := importService.ImportFromCatalog(context.Background(), strPtr("alice"), "")
	assertKind(t, err, common.KindUpstream, "Catalog search failed")

	_, err = newImportService(repositories.NewMockBookRepository(), nil, nil).ImportFromCatalog(context.Background(), nil, "x")
	assertKind(t, err, common.KindUpstream, "Catalog search failed")
}

func TestImportService_ImportFromCatalogPassesContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	catalog := new(MockCatalog)
	catalog.On("Search", ctx, "dune").Return(nil, context.Canceled).Once()
	importService := newImportService(repositories.NewMockBookRepository(), catalog, nil)

	_, err := importService.ImportFromCatalog(ctx, nil, "dune")
	assertKind(t, err, common.KindUpstream, "Catalog search failed")
	catalog.AssertExpectations(t)
}
