package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookexport/internal/database"
)

// RouterConfig carries the dependencies for the read-only API.
type RouterConfig struct {
	Database *database.Database
	Version  string
}

// NewRouter configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)

	books := NewBooksController(cfg.Database)
	api := router.Group("/api")
	{
		api.GET("/library", books.GetLibrary)
		api.GET("/books", books.GetBooks)
		api.GET("/books/:id", books.GetBook)
	}

	return router
}
