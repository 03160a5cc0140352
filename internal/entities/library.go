package entities

import "time"

// Source identifies the platform a book or highlight was extracted from.
type Source string

const (
	SourceAppleBooks Source = "apple_books"
	SourceKindle     Source = "kindle"
)

// RawHighlight is a single highlight as produced by an extractor, before
// any cross-source reconciliation.
type RawHighlight struct {
	// ExternalID is a source-supplied stable identifier, if the source has
	// one (Apple Books annotation UUIDs). Empty otherwise.
	ExternalID string
	Text       string
	Note       string
	Chapter    string
	// Position is an opaque, source-specific location string ("64-64",
	// "page 12"). Never interpreted.
	Position  string
	CreatedAt *time.Time
}

// RawBook is the common intermediate record every extractor emits: one book
// with its highlights, tagged with the source it came from. Immutable once
// handed to the merge engine.
type RawBook struct {
	Title      string
	Author     string
	Highlights []RawHighlight
	Finished   *bool
	FinishedAt *time.Time
	Source     Source
}

// Location is carried through to the output untouched.
type Location struct {
	Chapter  *string `json:"chapter"`
	Position *string `json:"position"`
}

// Highlight is the canonical, post-merge highlight.
type Highlight struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Note      *string    `json:"note"`
	Location  Location   `json:"location"`
	CreatedAt *time.Time `json:"created_at"`
	Source    Source     `json:"source"`
}

// Book is the canonical, post-merge book. ID is derived solely from the
// normalized title and author, so the same book resolves to the same ID
// regardless of which sources reported it.
type Book struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Author     *string     `json:"author"`
	Sources    []Source    `json:"sources"`
	Highlights []Highlight `json:"highlights"`
	Finished   *bool       `json:"finished"`
	FinishedAt *time.Time  `json:"finished_at"`
}

// Library is the final export, constructed once per run and never mutated.
type Library struct {
	ExportedAt time.Time `json:"exported_at"`
	Books      []Book    `json:"books"`
}
