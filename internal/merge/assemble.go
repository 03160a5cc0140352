package merge

import (
	"sort"
	"strings"
	"time"

	"github.com/mrlokans/bookexport/internal/entities"
)

// Assemble stamps the run timestamp and orders books deterministically.
// No merging logic lives here. The ordering is case-insensitive by title
// with the derived id as tie-break, so identical inputs always produce
// byte-identical output.
func Assemble(books []entities.Book, exportedAt time.Time) entities.Library {
	sorted := make([]entities.Book, len(books))
	copy(sorted, books)

	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := strings.ToLower(sorted[i].Title), strings.ToLower(sorted[j].Title)
		if ti != tj {
			return ti < tj
		}
		return sorted[i].ID < sorted[j].ID
	})

	return entities.Library{
		ExportedAt: exportedAt.UTC(),
		Books:      sorted,
	}
}
