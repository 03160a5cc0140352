package exporters

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/bookexport/internal/entities"
)

func sampleLibrary() entities.Library {
	author := "Cal Newport"
	finished := true
	finishedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	chapter := "Introduction"

	return entities.Library{
		ExportedAt: time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC),
		Books: []entities.Book{
			{
				ID:      "a1b2c3d4e5f60718",
				Title:   "Deep Work",
				Author:  &author,
				Sources: []entities.Source{entities.SourceKindle, entities.SourceAppleBooks},
				Highlights: []entities.Highlight{
					{
						ID:       "uuid-1",
						Text:     "Focus is the new IQ.",
						Location: entities.Location{Chapter: &chapter},
						Source:   entities.SourceKindle,
					},
				},
				Finished:   &finished,
				FinishedAt: &finishedAt,
			},
			{
				ID:         "ffeeddccbbaa0099",
				Title:      "Untitled Notes",
				Sources:    []entities.Source{entities.SourceAppleBooks},
				Highlights: []entities.Highlight{},
			},
		},
	}
}

func TestJSONExporter(t *testing.T) {
	t.Run("WritesExpectedShape", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewJSONExporter(false).Write(&buf, sampleLibrary()))

		var doc map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

		assert.Equal(t, "2025-06-15T12:30:00Z", doc["exported_at"])

		books := doc["books"].([]any)
		require.Len(t, books, 2)

		first := books[0].(map[string]any)
		assert.Equal(t, "a1b2c3d4e5f60718", first["id"])
		assert.Equal(t, "Deep Work", first["title"])
		assert.Equal(t, "Cal Newport", first["author"])
		assert.Equal(t, []any{"kindle", "apple_books"}, first["sources"])
		assert.Equal(t, true, first["finished"])

		highlight := first["highlights"].([]any)[0].(map[string]any)
		assert.Equal(t, "Focus is the new IQ.", highlight["text"])
		assert.Nil(t, highlight["note"])
		location := highlight["location"].(map[string]any)
		assert.Equal(t, "Introduction", location["chapter"])
		assert.Nil(t, location["position"])
	})

	t.Run("AbsentOptionalsSerializeAsNull", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewJSONExporter(false).Write(&buf, sampleLibrary()))

		var doc map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

		second := doc["books"].([]any)[1].(map[string]any)
		assert.Equal(t, []any{}, second["highlights"])
		assert.Contains(t, second, "author")
		assert.Nil(t, second["author"])
		assert.Contains(t, second, "finished")
		assert.Nil(t, second["finished"])
		assert.Contains(t, second, "finished_at")
		assert.Nil(t, second["finished_at"])
	})

	t.Run("PrettyOutputIsIndented", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewJSONExporter(true).Write(&buf, sampleLibrary()))

		assert.True(t, strings.HasPrefix(buf.String(), "{\n  \"exported_at\""))
	})

	t.Run("DoesNotEscapeHTML", func(t *testing.T) {
		library := sampleLibrary()
		library.Books[0].Highlights[0].Text = "a < b && b > c"

		var buf bytes.Buffer
		require.NoError(t, NewJSONExporter(false).Write(&buf, library))
		assert.Contains(t, buf.String(), "a < b && b > c")
	})

	t.Run("WriteFileCreatesParentDirectories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "out", "library.json")
		require.NoError(t, NewJSONExporter(true).WriteFile(path, sampleLibrary()))

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Contains(t, doc, "books")
	})
}
