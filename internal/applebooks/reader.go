package applebooks

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mrlokans/bookexport/internal/entities"
)

// Apple Books uses Core Data timestamp format: seconds since 2001-01-01 00:00:00 UTC
var coreDataEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// Reader extracts books and annotations from the Apple Books databases.
// It is a read-only mapper: both databases are copied to a temp location
// before opening, because Apple Books keeps them in WAL mode and holds
// locks while running.
type Reader struct {
	annotationDBPath string
	bookDBPath       string
}

// NewReader creates a reader. If paths are empty, the default macOS
// container paths are auto-detected.
func NewReader(annotationDBPath, bookDBPath string) (*Reader, error) {
	var err error

	if annotationDBPath == "" {
		annotationDBPath, err = DefaultAnnotationDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to find annotation database: %w", err)
		}
	}

	if bookDBPath == "" {
		bookDBPath, err = DefaultBookDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to find book database: %w", err)
		}
	}

	if _, err := os.Stat(annotationDBPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("annotation database not found: %s", annotationDBPath)
	}
	if _, err := os.Stat(bookDBPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("book database not found: %s", bookDBPath)
	}

	return &Reader{
		annotationDBPath: annotationDBPath,
		bookDBPath:       bookDBPath,
	}, nil
}

func (r *Reader) Name() string { return "apple_books" }

func (r *Reader) AnnotationDBPath() string { return r.annotationDBPath }

func (r *Reader) BookDBPath() string { return r.bookDBPath }

// DefaultAnnotationDBPath locates the AEAnnotation database on macOS.
func DefaultAnnotationDBPath() (string, error) {
	return findContainerDB("AEAnnotation")
}

// DefaultBookDBPath locates the BKLibrary database on macOS.
func DefaultBookDBPath() (string, error) {
	return findContainerDB("BKLibrary")
}

func findContainerDB(dir string) (string, error) {
	if runtime.GOOS != "darwin" {
		return "", fmt.Errorf("Apple Books is only available on macOS")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	dbDir := filepath.Join(homeDir, "Library", "Containers", "com.apple.iBooksX", "Data", "Documents", dir)

	entries, err := os.ReadDir(dbDir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s directory: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".sqlite" {
			return filepath.Join(dbDir, entry.Name()), nil
		}
	}

	return "", fmt.Errorf("no .sqlite file found in %s", dbDir)
}

// copyToTemp copies a database file out of the Apple Books container so
// reads never contend with the running application.
func copyToTemp(source string) (string, error) {
	src, err := os.Open(source)
	if err != nil {
		return "", fmt.Errorf("failed to open database: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "bookexport_"+filepath.Base(source))
	if err != nil {
		return "", fmt.Errorf("failed to create temp copy: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to copy database: %w", err)
	}

	return dst.Name(), nil
}

// Extract reads all library books and their non-deleted annotations and
// emits one raw record per book. Books without highlights are still
// emitted: they carry the finished state.
func (r *Reader) Extract(ctx context.Context) ([]entities.RawBook, error) {
	tempBookDB, err := copyToTemp(r.bookDBPath)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tempBookDB)

	tempAnnotationDB, err := copyToTemp(r.annotationDBPath)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tempAnnotationDB)

	db, err := sql.Open("sqlite3", tempBookDB+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open book database: %w", err)
	}
	defer db.Close()

	attachQuery := fmt.Sprintf("ATTACH DATABASE '%s' AS annotations", tempAnnotationDB)
	if _, err := db.ExecContext(ctx, attachQuery); err != nil {
		return nil, fmt.Errorf("failed to attach annotation database: %w", err)
	}

	bookOrder, booksByAsset, err := r.readBooks(ctx, db)
	if err != nil {
		return nil, err
	}

	if err := r.readAnnotations(ctx, db, booksByAsset); err != nil {
		return nil, err
	}

	records := make([]entities.RawBook, 0, len(bookOrder))
	for _, assetID := range bookOrder {
		records = append(records, *booksByAsset[assetID])
	}
	return records, nil
}

func (r *Reader) readBooks(ctx context.Context, db *sql.DB) ([]string, map[string]*entities.RawBook, error) {
	query := `
		SELECT
			ZASSETID,
			ZTITLE,
			ZAUTHOR,
			ZISFINISHED,
			ZDATEFINISHED
		FROM ZBKLIBRARYASSET
		WHERE ZTITLE IS NOT NULL
		ORDER BY ZASSETID
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var order []string
	books := make(map[string]*entities.RawBook)

	for rows.Next() {
		var assetID, title string
		var author sql.NullString
		var isFinished sql.NullInt64
		var finishedDate sql.NullFloat64

		if err := rows.Scan(&assetID, &title, &author, &isFinished, &finishedDate); err != nil {
			return nil, nil, fmt.Errorf("failed to scan book row: %w", err)
		}

		record := &entities.RawBook{
			Title:  title,
			Author: author.String,
			Source: entities.SourceAppleBooks,
		}
		if isFinished.Valid {
			finished := isFinished.Int64 == 1
			record.Finished = &finished
		}
		if finishedDate.Valid && finishedDate.Float64 != 0 {
			at := coreDataTime(finishedDate.Float64)
			record.FinishedAt = &at
		}

		books[assetID] = record
		order = append(order, assetID)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating book rows: %w", err)
	}

	return order, books, nil
}

func (r *Reader) readAnnotations(ctx context.Context, db *sql.DB, books map[string]*entities.RawBook) error {
	query := `
		SELECT
			ZANNOTATIONUUID,
			ZANNOTATIONASSETID,
			ZANNOTATIONSELECTEDTEXT,
			ZANNOTATIONNOTE,
			ZFUTUREPROOFING5,
			ZANNOTATIONLOCATION,
			ZANNOTATIONCREATIONDATE
		FROM annotations.ZAEANNOTATION
		WHERE ZANNOTATIONDELETED = 0
			AND ZANNOTATIONSELECTEDTEXT IS NOT NULL
			AND ZANNOTATIONSELECTEDTEXT != ''
		ORDER BY ZANNOTATIONASSETID, ZPLLOCATIONRANGESTART, Z_PK
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query annotations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var annotationID, assetID, text string
		var note, chapter, location sql.NullString
		var created sql.NullFloat64

		if err := rows.Scan(&annotationID, &assetID, &text, &note, &chapter, &location, &created); err != nil {
			return fmt.Errorf("failed to scan annotation row: %w", err)
		}

		book, ok := books[assetID]
		if !ok {
			// Annotation for a book no longer in the library.
			continue
		}

		highlight := entities.RawHighlight{
			ExternalID: annotationID,
			Text:       text,
			Note:       note.String,
			Chapter:    chapter.String,
			Position:   location.String,
		}
		if created.Valid && created.Float64 != 0 {
			at := coreDataTime(created.Float64)
			highlight.CreatedAt = &at
		}

		book.Highlights = append(book.Highlights, highlight)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating annotation rows: %w", err)
	}

	return nil
}

func coreDataTime(seconds float64) time.Time {
	return coreDataEpoch.Add(time.Duration(seconds * float64(time.Second))).UTC()
}
