package cli

import (
	"fmt"
	"time"

	"github.com/mrlokans/bookexport/internal/database"
	"github.com/mrlokans/bookexport/internal/entities"
	"github.com/mrlokans/bookexport/internal/exporters"
	"github.com/mrlokans/bookexport/internal/merge"
)

// buildLibrary runs the merge over raw records and assembles the final
// document with the current time as the export timestamp.
func buildLibrary(records []entities.RawBook) (entities.Library, error) {
	books, err := merge.Merge(records)
	if err != nil {
		return entities.Library{}, err
	}
	return merge.Assemble(books, time.Now()), nil
}

// writeOutputs writes the library to the JSON output path and, when a
// database path is set, persists the snapshot for the HTTP API.
func writeOutputs(library entities.Library, outputPath string, pretty bool, databasePath string) error {
	if err := exporters.NewJSONExporter(pretty).WriteFile(outputPath, library); err != nil {
		return err
	}
	if outputPath != "-" {
		fmt.Printf("Wrote %d books to %s\n", len(library.Books), outputPath)
	}

	if databasePath == "" {
		return nil
	}

	db, err := database.NewDatabase(databasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.SaveLibrary(library); err != nil {
		return fmt.Errorf("failed to store library snapshot: %w", err)
	}
	return nil
}

func countHighlights(library entities.Library) int {
	total := 0
	for _, book := range library.Books {
		total += len(book.Highlights)
	}
	return total
}
