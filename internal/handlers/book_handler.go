package handlers

import (
	"encoding/json"

	"bookshelf/internal/middleware"
	"bookshelf/internal/models"
	"bookshelf/internal/services"

	"github.com/gofiber/fiber/v2"
)

// BookHandler handles HTTP requests for the signed-in user's books.
// Its routes must be mounted behind middleware.SessionRequired.
type BookHandler struct {
	books   *services.BookService
	imports *services.ImportService
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(books *services.BookService, imports *services.ImportService) *BookHandler {
	return &BookHandler{
		books:   books,
		imports: imports,
	}
}

// RegisterRoutes registers the book routes on a router already scoped to /api/books.
func (h *BookHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/", h.HandleListBooks)
	router.Post("/", h.HandleCreateBook)
	router.Post("/import", h.HandleImport)
	router.Post("/import/search", h.HandleImportSearch)
	router.Get("/:id", h.HandleGetBook)
	router.Put("/:id", h.HandleUpdateBook)
	router.Delete("/:id", h.HandleDeleteBook)
}

// HandleListBooks returns the user's books, newest first.
func (h *BookHandler) HandleListBooks(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	books, err := h.books.List(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(books)
}

// HandleGetBook retrieves a single book by its ID.
func (h *BookHandler) HandleGetBook(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	book, err := h.books.Get(c.UserContext(), user.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(book)
}

// HandleCreateBook adds a book. Any owner in the body is ignored.
func (h *BookHandler) HandleCreateBook(c *fiber.Ctx) error {
	var draft models.BookDraft
	if err := parseBody(c, &draft); err != nil {
		return err
	}

	user := middleware.CurrentUser(c)
	book, err := h.books.Create(c.UserContext(), user.ID, draft)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(book)
}

// HandleUpdateBook applies a partial update to a book.
func (h *BookHandler) HandleUpdateBook(c *fiber.Ctx) error {
	var patch models.BookPatch
	if err := parseBody(c, &patch); err != nil {
		return err
	}

	user := middleware.CurrentUser(c)
	book, err := h.books.Update(c.UserContext(), user.ID, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return c.JSON(book)
}

// HandleDeleteBook deletes a book. A second delete of the same ID is a 404.
func (h *BookHandler) HandleDeleteBook(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if err := h.books.Delete(c.UserContext(), user.ID, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ImportRequest carries raw catalog documents. Docs stays raw so a missing or
// non-array value can be told apart from an empty array.
type ImportRequest struct {
	Docs json.RawMessage `json:"docs"`
}

// HandleImport upserts the posted catalog documents into the user's list.
func (h *BookHandler) HandleImport(c *fiber.Ctx) error {
	var req ImportRequest
	if len(c.Body()) > 0 {
		// Malformed bodies are reported like a missing docs array.
		_ = json.Unmarshal(c.Body(), &req)
	}

	var docs []json.RawMessage
	if len(req.Docs) > 0 {
		if err := json.Unmarshal(req.Docs, &docs); err != nil {
			docs = nil
		}
	}

	user := middleware.CurrentUser(c)
	imported, err := h.imports.Import(c.UserContext(), user.ID, docs)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"imported": imported})
}

// ImportSearchRequest names the catalog query to import. Empty uses the default query.
type ImportSearchRequest struct {
	Query string `json:"query" form:"query"`
}

// HandleImportSearch searches the catalog and imports the results into the user's list.
func (h *BookHandler) HandleImportSearch(c *fiber.Ctx) error {
	var req ImportSearchRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user := middleware.CurrentUser(c)
	imported, err := h.imports.ImportFromCatalog(c.UserContext(), &user.ID, req.Query)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"imported": imported})
}
