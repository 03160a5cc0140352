package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookexport/internal/database"
)

// BooksController serves the stored library read-only. Extraction happens
// in CLI runs; the API only exposes their last result.
type BooksController struct {
	db *database.Database
}

func NewBooksController(db *database.Database) *BooksController {
	return &BooksController{db: db}
}

// GetLibrary returns the full library document, identical in shape to the
// JSON export file.
func (b *BooksController) GetLibrary(c *gin.Context) {
	library, err := b.db.Library()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load library"})
		return
	}
	c.JSON(http.StatusOK, library)
}

// GetBooks returns the stored books without their highlights.
func (b *BooksController) GetBooks(c *gin.Context) {
	books, err := b.db.Books()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load books"})
		return
	}

	type bookSummary struct {
		ID         string   `json:"id"`
		Title      string   `json:"title"`
		Author     *string  `json:"author"`
		Sources    []string `json:"sources"`
		Highlights int      `json:"highlights"`
	}

	summaries := make([]bookSummary, 0, len(books))
	for _, book := range books {
		sources := make([]string, 0, len(book.Sources))
		for _, s := range book.Sources {
			sources = append(sources, string(s))
		}
		summaries = append(summaries, bookSummary{
			ID:         book.ID,
			Title:      book.Title,
			Author:     book.Author,
			Sources:    sources,
			Highlights: len(book.Highlights),
		})
	}

	c.JSON(http.StatusOK, gin.H{"books": summaries, "count": len(summaries)})
}

// GetBook returns a single book with all its highlights.
func (b *BooksController) GetBook(c *gin.Context) {
	book, err := b.db.Book(c.Param("id"))
	if errors.Is(err, database.ErrBookNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "book not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load book"})
		return
	}
	c.JSON(http.StatusOK, book)
}
