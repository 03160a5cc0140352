package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/bookexport/internal/entities"
)

// ErrBookNotFound is returned when a book id does not exist in the store.
var ErrBookNotFound = errors.New("book not found")

// Database persists the last assembled library so the HTTP API and
// scheduled re-exports can serve it without re-running extraction.
type Database struct {
	DB *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&BookRow{}, &HighlightRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// BookRow is the stored form of a merged book. Sources are kept as a
// comma-joined list; the canonical order is preserved.
type BookRow struct {
	ID         string `gorm:"primaryKey"`
	Title      string
	Author     *string
	Sources    string
	Finished   *bool
	FinishedAt *time.Time
	ExportedAt time.Time
	Highlights []HighlightRow `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE"`
}

type HighlightRow struct {
	ID            string `gorm:"primaryKey"`
	BookID        string `gorm:"index"`
	Seq           int
	Text          string
	Note          *string
	Chapter       *string
	Position      *string
	HighlightedAt *time.Time
	Source        string
}

// SaveLibrary replaces the stored library with the given one. An export is
// a full snapshot, so stale rows from previous runs are removed rather
// than reconciled.
func (d *Database) SaveLibrary(library entities.Library) error {
	return d.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&HighlightRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear highlights: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&BookRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear books: %w", err)
		}

		for _, book := range library.Books {
			row := bookToRow(book, library.ExportedAt)
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to store book %q: %w", book.Title, err)
			}
		}
		return nil
	})
}

// Library reconstructs the stored library.
func (d *Database) Library() (entities.Library, error) {
	var rows []BookRow
	err := d.DB.
		Preload("Highlights", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Order("lower(title), id").
		Find(&rows).Error
	if err != nil {
		return entities.Library{}, fmt.Errorf("failed to load library: %w", err)
	}

	library := entities.Library{Books: make([]entities.Book, 0, len(rows))}
	for _, row := range rows {
		if row.ExportedAt.After(library.ExportedAt) {
			library.ExportedAt = row.ExportedAt
		}
		library.Books = append(library.Books, rowToBook(row))
	}
	return library, nil
}

// Books returns all stored books in canonical order.
func (d *Database) Books() ([]entities.Book, error) {
	library, err := d.Library()
	if err != nil {
		return nil, err
	}
	return library.Books, nil
}

// Book returns a single stored book by its derived id.
func (d *Database) Book(id string) (entities.Book, error) {
	var row BookRow
	err := d.DB.
		Preload("Highlights", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Where("id = ?", id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Book{}, ErrBookNotFound
	}
	if err != nil {
		return entities.Book{}, fmt.Errorf("failed to load book: %w", err)
	}
	return rowToBook(row), nil
}

func bookToRow(book entities.Book, exportedAt time.Time) BookRow {
	sources := make([]string, 0, len(book.Sources))
	for _, s := range book.Sources {
		sources = append(sources, string(s))
	}

	row := BookRow{
		ID:         book.ID,
		Title:      book.Title,
		Author:     book.Author,
		Sources:    strings.Join(sources, ","),
		Finished:   book.Finished,
		FinishedAt: book.FinishedAt,
		ExportedAt: exportedAt,
	}

	for i, h := range book.Highlights {
		row.Highlights = append(row.Highlights, HighlightRow{
			ID:            h.ID,
			BookID:        book.ID,
			Seq:           i,
			Text:          h.Text,
			Note:          h.Note,
			Chapter:       h.Location.Chapter,
			Position:      h.Location.Position,
			HighlightedAt: h.CreatedAt,
			Source:        string(h.Source),
		})
	}
	return row
}

func rowToBook(row BookRow) entities.Book {
	book := entities.Book{
		ID:         row.ID,
		Title:      row.Title,
		Author:     row.Author,
		Finished:   row.Finished,
		FinishedAt: row.FinishedAt,
		Highlights: make([]entities.Highlight, 0, len(row.Highlights)),
	}

	if row.Sources != "" {
		for _, s := range strings.Split(row.Sources, ",") {
			book.Sources = append(book.Sources, entities.Source(s))
		}
	}

	for _, h := range row.Highlights {
		book.Highlights = append(book.Highlights, entities.Highlight{
			ID:   h.ID,
			Text: h.Text,
			Note: h.Note,
			Location: entities.Location{
				Chapter:  h.Chapter,
				Position: h.Position,
			},
			CreatedAt: h.HighlightedAt,
			Source:    entities.Source(h.Source),
		})
	}
	return book
}
