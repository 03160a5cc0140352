package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookexport/internal/database"
	"github.com/mrlokans/bookexport/internal/entities"
)

func setupTestRouter(t *testing.T) (*gin.Engine, *database.Database) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRouter(RouterConfig{Database: db, Version: "test"}), db
}

func seedLibrary(t *testing.T, db *database.Database) {
	t.Helper()
	author := "Cal Newport"

	require.NoError(t, db.SaveLibrary(entities.Library{
		ExportedAt: time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC),
		Books: []entities.Book{
			{
				ID:      "a1b2c3d4e5f60718",
				Title:   "Deep Work",
				Author:  &author,
				Sources: []entities.Source{entities.SourceKindle},
				Highlights: []entities.Highlight{
					{ID: "h-1", Text: "Focus is the new IQ.", Source: entities.SourceKindle},
				},
			},
			{
				ID:         "ffeeddccbbaa0099",
				Title:      "Untitled Notes",
				Sources:    []entities.Source{entities.SourceAppleBooks},
				Highlights: []entities.Highlight{},
			},
		},
	}))
}

func performRequest(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := performRequest(router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, "ok", response.Checks["database"])
}

func TestLibraryEndpoint(t *testing.T) {
	router, db := setupTestRouter(t)
	seedLibrary(t, db)

	w := performRequest(router, "/api/library")
	assert.Equal(t, http.StatusOK, w.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Contains(t, doc, "exported_at")

	books := doc["books"].([]any)
	require.Len(t, books, 2)
	first := books[0].(map[string]any)
	assert.Equal(t, "Deep Work", first["title"])
	assert.Len(t, first["highlights"], 1)
}

func TestBooksEndpoint(t *testing.T) {
	t.Run("ListsSummaries", func(t *testing.T) {
		router, db := setupTestRouter(t)
		seedLibrary(t, db)

		w := performRequest(router, "/api/books")
		assert.Equal(t, http.StatusOK, w.Code)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
		assert.Equal(t, float64(2), doc["count"])

		first := doc["books"].([]any)[0].(map[string]any)
		assert.Equal(t, "Deep Work", first["title"])
		assert.Equal(t, float64(1), first["highlights"])
		assert.NotContains(t, first, "finished")
	})

	t.Run("EmptyStore", func(t *testing.T) {
		router, _ := setupTestRouter(t)

		w := performRequest(router, "/api/books")
		assert.Equal(t, http.StatusOK, w.Code)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
		assert.Equal(t, float64(0), doc["count"])
	})
}

func TestBookEndpoint(t *testing.T) {
	t.Run("ReturnsBookWithHighlights", func(t *testing.T) {
		router, db := setupTestRouter(t)
		seedLibrary(t, db)

		w := performRequest(router, "/api/books/a1b2c3d4e5f60718")
		assert.Equal(t, http.StatusOK, w.Code)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
		assert.Equal(t, "Deep Work", doc["title"])
		highlights := doc["highlights"].([]any)
		require.Len(t, highlights, 1)
		assert.Equal(t, "Focus is the new IQ.", highlights[0].(map[string]any)["text"])
	})

	t.Run("UnknownID", func(t *testing.T) {
		router, db := setupTestRouter(t)
		seedLibrary(t, db)

		w := performRequest(router, "/api/books/0000000000000000")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
