package merge

import (
	"errors"
	"testing"
	"time"

	"github.com/mrlokans/bookexport/internal/entities"
	"github.com/mrlokans/bookexport/internal/identity"
)

func rawBook(title, author string, source entities.Source, texts ...string) entities.RawBook {
	b := entities.RawBook{
		Title:  title,
		Author: author,
		Source: source,
	}
	for _, text := range texts {
		b.Highlights = append(b.Highlights, entities.RawHighlight{Text: text})
	}
	return b
}

func TestMerge_EmptyInputIsFatal(t *testing.T) {
	_, err := Merge(nil)
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}

	_, err = Merge([]entities.RawBook{})
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords for empty slice, got %v", err)
	}
}

func TestMerge_SameBookAcrossSources(t *testing.T) {
	records := []entities.RawBook{
		rawBook("The Great Gatsby", "F. Scott Fitzgerald", entities.SourceKindle, "Highlight from Kindle"),
		rawBook("the great gatsby", "f. scott fitzgerald", entities.SourceAppleBooks, "Highlight from Apple"),
	}

	books, err := Merge(records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("expected 1 book, got %d", len(books))
	}

	book := books[0]
	if book.ID != identity.BookID("The Great Gatsby", "F. Scott Fitzgerald") {
		t.Errorf("unexpected book id %s", book.ID)
	}
	// Title comes from the first record of the group.
	if book.Title != "The Great Gatsby" {
		t.Errorf("expected first-seen title, got %q", book.Title)
	}
	if len(book.Sources) != 2 || book.Sources[0] != entities.SourceKindle || book.Sources[1] != entities.SourceAppleBooks {
		t.Errorf("expected sources in first-seen order, got %v", book.Sources)
	}
	if len(book.Highlights) != 2 {
		t.Errorf("expected 2 highlights, got %d", len(book.Highlights))
	}
}

func TestMerge_EndToEndScenario(t *testing.T) {
	kindle := rawBook("Steve Jobs", "Walter Isaacson", entities.SourceKindle,
		"Live each day...")
	apple := rawBook("steve jobs", "WALTER ISAACSON", entities.SourceAppleBooks,
		"  live each day...  ", "Stay hungry.")

	books, err := Merge([]entities.RawBook{kindle, apple})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("expected 1 book, got %d", len(books))
	}

	book := books[0]
	if len(book.Sources) != 2 || book.Sources[0] != entities.SourceKindle || book.Sources[1] != entities.SourceAppleBooks {
		t.Errorf("expected [kindle apple_books], got %v", book.Sources)
	}
	if len(book.Highlights) != 2 {
		t.Fatalf("expected duplicate collapsed to 2 highlights, got %d", len(book.Highlights))
	}
	// Original casing of the first-seen instance is preserved.
	if book.Highlights[0].Text != "Live each day..." {
		t.Errorf("expected first-seen casing kept, got %q", book.Highlights[0].Text)
	}
	if book.Highlights[0].Source != entities.SourceKindle {
		t.Errorf("expected surviving highlight tagged kindle, got %s", book.Highlights[0].Source)
	}
	if book.Highlights[1].Text != "Stay hungry." {
		t.Errorf("unexpected second highlight %q", book.Highlights[1].Text)
	}
}

func TestMerge_DedupIsIdempotent(t *testing.T) {
	record := rawBook("Test Book", "", entities.SourceKindle, "one", "two")

	once, err := Merge([]entities.RawBook{record})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	twice, err := Merge([]entities.RawBook{record, record})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(once) != 1 || len(twice) != 1 {
		t.Fatalf("expected 1 book in both runs")
	}
	if len(twice[0].Highlights) != len(once[0].Highlights) {
		t.Errorf("merging a record with itself added highlights: %d vs %d",
			len(twice[0].Highlights), len(once[0].Highlights))
	}
}

func TestMerge_Commutative(t *testing.T) {
	a := rawBook("Steve Jobs", "Walter Isaacson", entities.SourceKindle, "quote one", "quote two")
	b := rawBook("Steve Jobs", "walter isaacson", entities.SourceAppleBooks, "Quote Two", "quote three")
	c := rawBook("Einstein", "Walter Isaacson", entities.SourceAppleBooks, "relativity")

	permutations := [][]entities.RawBook{
		{a, b, c},
		{c, b, a},
		{b, a, c},
	}

	type bookShape struct {
		id    string
		texts map[string]bool
	}

	var reference map[string]bookShape
	for i, perm := range permutations {
		books, err := Merge(perm)
		if err != nil {
			t.Fatalf("permutation %d: unexpected error: %v", i, err)
		}

		shape := make(map[string]bookShape)
		for _, book := range books {
			texts := make(map[string]bool)
			for _, h := range book.Highlights {
				texts[identity.NormalizeText(h.Text)] = true
			}
			shape[book.ID] = bookShape{id: book.ID, texts: texts}
		}

		if reference == nil {
			reference = shape
			continue
		}
		if len(shape) != len(reference) {
			t.Fatalf("permutation %d: got %d books, want %d", i, len(shape), len(reference))
		}
		for id, want := range reference {
			got, ok := shape[id]
			if !ok {
				t.Fatalf("permutation %d: missing book %s", i, id)
			}
			if len(got.texts) != len(want.texts) {
				t.Errorf("permutation %d: book %s has %d highlights, want %d",
					i, id, len(got.texts), len(want.texts))
			}
			for text := range want.texts {
				if !got.texts[text] {
					t.Errorf("permutation %d: book %s missing highlight %q", i, id, text)
				}
			}
		}
	}
}

func TestMerge_SourcesTieBreakIsFirstSeen(t *testing.T) {
	a := rawBook("Book", "", entities.SourceAppleBooks, "x")
	k := rawBook("Book", "", entities.SourceKindle, "y")

	books, _ := Merge([]entities.RawBook{a, k})
	if books[0].Sources[0] != entities.SourceAppleBooks {
		t.Errorf("expected apple_books first, got %v", books[0].Sources)
	}

	books, _ = Merge([]entities.RawBook{k, a})
	if books[0].Sources[0] != entities.SourceKindle {
		t.Errorf("expected kindle first, got %v", books[0].Sources)
	}
}

func TestMerge_FinishedConflict(t *testing.T) {
	finishedFalse := false
	finishedTrue := true
	finishedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := rawBook("Book", "Author", entities.SourceAppleBooks)
	a.Finished = &finishedFalse

	b := rawBook("Book", "Author", entities.SourceKindle)
	b.Finished = &finishedTrue
	b.FinishedAt = &finishedAt

	books, err := Merge([]entities.RawBook{a, b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	book := books[0]
	if book.Finished == nil || !*book.Finished {
		t.Errorf("expected finished=true, got %v", book.Finished)
	}
	if book.FinishedAt == nil || !book.FinishedAt.Equal(finishedAt) {
		t.Errorf("expected finished_at=%v, got %v", finishedAt, book.FinishedAt)
	}
}

func TestMerge_FinishedAbsentStaysNil(t *testing.T) {
	books, err := Merge([]entities.RawBook{rawBook("Book", "", entities.SourceKindle, "x")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if books[0].Finished != nil {
		t.Errorf("expected nil finished when no source reports it, got %v", *books[0].Finished)
	}
	if books[0].FinishedAt != nil {
		t.Error("expected nil finished_at when no source reports it")
	}
}

func TestMerge_EarliestFinishedAtWins(t *testing.T) {
	early := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	a := rawBook("Book", "", entities.SourceAppleBooks)
	a.FinishedAt = &late
	b := rawBook("Book", "", entities.SourceKindle)
	b.FinishedAt = &early

	books, _ := Merge([]entities.RawBook{a, b})
	if books[0].FinishedAt == nil || !books[0].FinishedAt.Equal(early) {
		t.Errorf("expected earliest finished_at %v, got %v", early, books[0].FinishedAt)
	}
}

func TestMerge_ExternalIDReused(t *testing.T) {
	record := entities.RawBook{
		Title:  "Book",
		Source: entities.SourceAppleBooks,
		Highlights: []entities.RawHighlight{
			{ExternalID: "ANNOTATION-UUID-1", Text: "with id"},
			{Text: "without id"},
		},
	}

	books, err := Merge([]entities.RawBook{record})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	highlights := books[0].Highlights
	if highlights[0].ID != "ANNOTATION-UUID-1" {
		t.Errorf("expected external id reused, got %q", highlights[0].ID)
	}
	if highlights[1].ID == "" {
		t.Error("expected generated id for highlight without external id")
	}
	if highlights[0].ID == highlights[1].ID {
		t.Error("highlight ids must be unique within a book")
	}
}

func TestMerge_EmptyHighlightTextSkipped(t *testing.T) {
	record := entities.RawBook{
		Title:  "Book",
		Source: entities.SourceKindle,
		Highlights: []entities.RawHighlight{
			{Text: ""},
			{Text: "real"},
		},
	}

	books, err := Merge([]entities.RawBook{record})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(books[0].Highlights) != 1 {
		t.Errorf("expected empty-text highlight dropped, got %d highlights", len(books[0].Highlights))
	}
}

func TestMerge_DuplicateNoteNotMerged(t *testing.T) {
	first := entities.RawBook{
		Title:  "Book",
		Source: entities.SourceKindle,
		Highlights: []entities.RawHighlight{
			{Text: "Shared text"},
		},
	}
	second := entities.RawBook{
		Title:  "Book",
		Source: entities.SourceAppleBooks,
		Highlights: []entities.RawHighlight{
			{Text: "shared  text", Note: "note on the duplicate"},
		},
	}

	books, _ := Merge([]entities.RawBook{first, second})
	h := books[0].Highlights
	if len(h) != 1 {
		t.Fatalf("expected 1 highlight, got %d", len(h))
	}
	// The later duplicate is dropped entirely, note included.
	if h[0].Note != nil {
		t.Errorf("expected note from dropped duplicate discarded, got %q", *h[0].Note)
	}
}
