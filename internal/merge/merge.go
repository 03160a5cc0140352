// Package merge reconciles raw records from all extractors into the
// canonical book set. It is a pure grouping/reduction: raw records in,
// new books out, no I/O.
package merge

import (
	"errors"

	"github.com/google/uuid"

	"github.com/mrlokans/bookexport/internal/entities"
	"github.com/mrlokans/bookexport/internal/identity"
)

// ErrNoRecords is returned when every source contributed zero records.
// That indicates total extraction failure upstream, not an empty library,
// and callers must treat it as a run-level failure.
var ErrNoRecords = errors.New("no records from any source")

// Merge groups raw records by derived book identity and produces one
// canonical book per group:
//
//   - sources: union in first-seen order
//   - title/author: taken from the first record of the group
//   - finished: logical OR across records that specify it (nil if none do)
//   - finished_at: earliest non-nil value
//   - highlights: concatenated, deduplicated by normalized text; the first
//     occurrence is kept whole, later duplicates are dropped entirely
//
// Missing optional fields are valid and propagate as absent; Merge only
// fails when given zero records.
func Merge(records []entities.RawBook) ([]entities.Book, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	byID := make(map[string]*bookBuilder)
	var order []string

	for _, record := range records {
		id := identity.BookID(record.Title, record.Author)

		b, ok := byID[id]
		if !ok {
			b = newBookBuilder(id, record)
			byID[id] = b
			order = append(order, id)
		}
		b.add(record)
	}

	books := make([]entities.Book, 0, len(order))
	for _, id := range order {
		books = append(books, byID[id].build())
	}
	return books, nil
}

// bookBuilder accumulates one identity group.
type bookBuilder struct {
	book      entities.Book
	seenTexts map[string]bool
}

func newBookBuilder(id string, first entities.RawBook) *bookBuilder {
	var author *string
	if first.Author != "" {
		a := first.Author
		author = &a
	}
	return &bookBuilder{
		book: entities.Book{
			ID:     id,
			Title:  first.Title,
			Author: author,
		},
		seenTexts: make(map[string]bool),
	}
}

func (b *bookBuilder) add(record entities.RawBook) {
	b.addSource(record.Source)

	if record.Finished != nil {
		if *record.Finished {
			finished := true
			b.book.Finished = &finished
		} else if b.book.Finished == nil {
			finished := false
			b.book.Finished = &finished
		}
	}

	if record.FinishedAt != nil {
		if b.book.FinishedAt == nil || record.FinishedAt.Before(*b.book.FinishedAt) {
			at := *record.FinishedAt
			b.book.FinishedAt = &at
		}
	}

	for _, raw := range record.Highlights {
		if raw.Text == "" {
			continue
		}
		key := identity.NormalizeText(raw.Text)
		if b.seenTexts[key] {
			continue
		}
		b.seenTexts[key] = true
		b.book.Highlights = append(b.book.Highlights, canonicalHighlight(raw, record.Source))
	}
}

func (b *bookBuilder) addSource(source entities.Source) {
	for _, s := range b.book.Sources {
		if s == source {
			return
		}
	}
	b.book.Sources = append(b.book.Sources, source)
}

func (b *bookBuilder) build() entities.Book {
	// Books without highlights still serialize with an empty array, not
	// null.
	if b.book.Highlights == nil {
		b.book.Highlights = []entities.Highlight{}
	}
	return b.book
}

func canonicalHighlight(raw entities.RawHighlight, source entities.Source) entities.Highlight {
	id := raw.ExternalID
	if id == "" {
		id = uuid.NewString()
	}

	h := entities.Highlight{
		ID:     id,
		Text:   raw.Text,
		Source: source,
	}
	if raw.Note != "" {
		note := raw.Note
		h.Note = &note
	}
	if raw.Chapter != "" {
		chapter := raw.Chapter
		h.Location.Chapter = &chapter
	}
	if raw.Position != "" {
		position := raw.Position
		h.Location.Position = &position
	}
	if raw.CreatedAt != nil {
		at := *raw.CreatedAt
		h.CreatedAt = &at
	}
	return h
}
