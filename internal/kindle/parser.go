package kindle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mrlokans/bookexport/internal/entities"
)

// Entry types in Kindle clippings
type EntryType string

const (
	EntryTypeHighlight EntryType = "highlight"
	EntryTypeNote      EntryType = "note"
	EntryTypeBookmark  EntryType = "bookmark"
)

// ClippingEntry represents a single parsed entry from My Clippings.txt
type ClippingEntry struct {
	Title       string
	Author      string
	Type        EntryType
	Page        int
	PageEnd     int
	Location    int
	LocationEnd int
	AddedAt     time.Time
	Text        string
}

// Parser parses Kindle My Clippings.txt format
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

const entrySeparator = "=========="

// Regex patterns for parsing metadata lines
var (
	// Matches: "- Your Highlight on page 8 | Location 64-64 | Added on Tuesday, April 15, 2025 10:16:21 PM"
	// or: "- Your Note on page 31 | Location 307 | Added on Tuesday, April 15, 2025 11:33:26 PM"
	// or: "- Your Highlight at location 784-785 | Added on Saturday, 26 March 2016 18:37:26"
	// or: "- Your Bookmark at location 346 | Added on Saturday, 26 March 2016 15:46:21"
	metadataPattern = regexp.MustCompile(`^- Your (Highlight|Note|Bookmark)`)

	// Page patterns: "on page 8" or "on page 207-207"
	pagePattern = regexp.MustCompile(`(?i)(?:on )?page (\d+)(?:-(\d+))?`)

	// Location patterns: "Location 64-64" or "location 1406-1407" or "at location 784-785"
	locationPattern = regexp.MustCompile(`(?i)(?:at )?location (\d+)(?:-(\d+))?`)

	// Date patterns - multiple formats observed in the wild
	// "Added on Tuesday, April 15, 2025 10:16:21 PM"
	// "Added on Saturday, 26 March 2016 14:59:39"
	datePatterns = []string{
		"Added on Monday, January 2, 2006 3:04:05 PM",
		"Added on Monday, January 2, 2006 15:04:05",
		"Added on Monday, 2 January 2006 3:04:05 PM",
		"Added on Monday, 2 January 2006 15:04:05",
	}

	// Title with author: "Book Title (Author Name)"
	// Some books don't have author in parentheses
	titleAuthorPattern = regexp.MustCompile(`^(.+?)\s*\(([^)]+)\)\s*$`)
)

// Parse reads a Kindle My Clippings.txt file and returns one raw record
// per book, tagged kindle.
func (p *Parser) Parse(r io.Reader) ([]entities.RawBook, error) {
	entries, err := p.ParseEntries(r)
	if err != nil {
		return nil, err
	}

	return p.groupEntriesIntoRecords(entries), nil
}

// ParseEntries parses individual clipping entries from the reader
func (p *Parser) ParseEntries(r io.Reader) ([]ClippingEntry, error) {
	scanner := bufio.NewScanner(r)

	var entries []ClippingEntry
	var currentLines []string

	for scanner.Scan() {
		line := scanner.Text()

		if line == entrySeparator {
			if len(currentLines) > 0 {
				entry, err := p.parseEntry(currentLines)
				if err == nil && entry != nil {
					entries = append(entries, *entry)
				}
				currentLines = nil
			}
			continue
		}

		currentLines = append(currentLines, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading clippings: %w", err)
	}

	// Handle last entry if file doesn't end with separator
	if len(currentLines) > 0 {
		entry, err := p.parseEntry(currentLines)
		if err == nil && entry != nil {
			entries = append(entries, *entry)
		}
	}

	return entries, nil
}

func (p *Parser) parseEntry(lines []string) (*ClippingEntry, error) {
	if len(lines) < 2 {
		return nil, fmt.Errorf("entry too short")
	}

	// First line: Title (Author) or just Title
	titleLine := strings.TrimSpace(lines[0])
	if titleLine == "" {
		return nil, fmt.Errorf("empty title line")
	}

	title, author := parseTitleAuthor(titleLine)

	// Second line: Metadata (type, page, location, date)
	metadataLine := strings.TrimSpace(lines[1])
	if !metadataPattern.MatchString(metadataLine) {
		return nil, fmt.Errorf("invalid metadata line")
	}

	entryType := parseEntryType(metadataLine)
	page, pageEnd := parsePageRange(metadataLine)
	location, locationEnd := parseLocationRange(metadataLine)
	addedAt := parseDate(metadataLine)

	// Remaining lines (after blank line): Text content
	// Format is: title, metadata, blank line, content
	var textLines []string
	startContent := false
	for i := 2; i < len(lines); i++ {
		line := lines[i]
		if !startContent && strings.TrimSpace(line) == "" {
			startContent = true
			continue
		}
		if startContent || strings.TrimSpace(line) != "" {
			startContent = true
			textLines = append(textLines, line)
		}
	}

	text := strings.TrimSpace(strings.Join(textLines, "\n"))

	// Bookmarks are skipped entirely (they have no text content)
	if entryType == EntryTypeBookmark {
		return nil, fmt.Errorf("bookmark entry")
	}

	// Highlights and notes should have text
	if text == "" {
		return nil, fmt.Errorf("empty content")
	}

	return &ClippingEntry{
		Title:       title,
		Author:      author,
		Type:        entryType,
		Page:        page,
		PageEnd:     pageEnd,
		Location:    location,
		LocationEnd: locationEnd,
		AddedAt:     addedAt,
		Text:        text,
	}, nil
}

func parseTitleAuthor(line string) (title, author string) {
	matches := titleAuthorPattern.FindStringSubmatch(line)
	if len(matches) == 3 {
		return strings.TrimSpace(matches[1]), strings.TrimSpace(matches[2])
	}
	// No author in parentheses, use whole line as title
	return strings.TrimSpace(line), ""
}

func parseEntryType(line string) EntryType {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "your highlight"):
		return EntryTypeHighlight
	case strings.Contains(lower, "your note"):
		return EntryTypeNote
	case strings.Contains(lower, "your bookmark"):
		return EntryTypeBookmark
	default:
		return EntryTypeHighlight
	}
}

func parsePageRange(line string) (page, pageEnd int) {
	matches := pagePattern.FindStringSubmatch(line)
	if len(matches) >= 2 {
		page, _ = strconv.Atoi(matches[1])
		if len(matches) >= 3 && matches[2] != "" {
			pageEnd, _ = strconv.Atoi(matches[2])
		}
	}
	return
}

func parseLocationRange(line string) (location, locationEnd int) {
	matches := locationPattern.FindStringSubmatch(line)
	if len(matches) >= 2 {
		location, _ = strconv.Atoi(matches[1])
		if len(matches) >= 3 && matches[2] != "" {
			locationEnd, _ = strconv.Atoi(matches[2])
		}
	}
	return
}

func parseDate(line string) time.Time {
	// Extract the date part after "Added on"
	idx := strings.Index(strings.ToLower(line), "added on")
	if idx == -1 {
		return time.Time{}
	}

	dateStr := "Added on" + line[idx+8:]
	dateStr = strings.TrimSpace(dateStr)

	for _, pattern := range datePatterns {
		t, err := time.Parse(pattern, dateStr)
		if err == nil {
			return t
		}
	}

	return time.Time{}
}

func (p *Parser) groupEntriesIntoRecords(entries []ClippingEntry) []entities.RawBook {
	// Group entries by book (title + author combination)
	highlightsByBook := make(map[string][]ClippingEntry)
	notesByBook := make(map[string][]ClippingEntry)
	titleByBook := make(map[string]ClippingEntry)
	bookOrder := []string{}

	for _, entry := range entries {
		key := bookKey(entry.Title, entry.Author)
		if _, seen := titleByBook[key]; !seen {
			titleByBook[key] = entry
			bookOrder = append(bookOrder, key)
		}

		if entry.Type == EntryTypeNote {
			notesByBook[key] = append(notesByBook[key], entry)
		} else {
			highlightsByBook[key] = append(highlightsByBook[key], entry)
		}
	}

	var records []entities.RawBook
	for _, key := range bookOrder {
		first := titleByBook[key]
		record := entities.RawBook{
			Title:  first.Title,
			Author: first.Author,
			Source: entities.SourceKindle,
		}

		highlights := highlightsByBook[key]
		notes, orphans := attachNotes(highlights, notesByBook[key])

		for i, entry := range highlights {
			h := entities.RawHighlight{
				Text:      entry.Text,
				Position:  entryPosition(entry),
				CreatedAt: entryTime(entry),
			}
			if note, ok := notes[i]; ok {
				h.Note = note
			}
			record.Highlights = append(record.Highlights, h)
		}
		record.Highlights = append(record.Highlights, orphans...)

		if len(record.Highlights) > 0 {
			records = append(records, record)
		}
	}

	return records
}

// attachNotes maps note entries onto the highlight covering the same
// location. Notes typically appear right after the highlight they annotate.
// Unmatched notes are returned as standalone note-only highlights so they
// are not lost.
func attachNotes(highlights, notes []ClippingEntry) (map[int]string, []entities.RawHighlight) {
	attached := make(map[int]string)
	var orphans []entities.RawHighlight

	for _, note := range notes {
		idx := -1
		for i, h := range highlights {
			if matchesLocation(h, note) {
				idx = i
				break
			}
		}

		if idx >= 0 {
			if existing, ok := attached[idx]; ok {
				attached[idx] = existing + "\n\n" + note.Text
			} else {
				attached[idx] = note.Text
			}
			continue
		}

		orphans = append(orphans, entities.RawHighlight{
			Text:      note.Text,
			Position:  entryPosition(note),
			CreatedAt: entryTime(note),
		})
	}

	return attached, orphans
}

// matchesLocation reports whether a note falls inside a highlight's
// location (or page) range.
func matchesLocation(highlight, note ClippingEntry) bool {
	if highlight.Location > 0 && note.Location > 0 {
		end := highlight.LocationEnd
		if end == 0 {
			end = highlight.Location
		}
		return note.Location >= highlight.Location && note.Location <= end
	}
	if highlight.Page > 0 && note.Page > 0 {
		end := highlight.PageEnd
		if end == 0 {
			end = highlight.Page
		}
		return note.Page >= highlight.Page && note.Page <= end
	}
	return false
}

// entryPosition renders the opaque position string. Kindle locations are
// preferred over page numbers when both are present.
func entryPosition(entry ClippingEntry) string {
	switch {
	case entry.Location > 0 && entry.LocationEnd > 0 && entry.LocationEnd != entry.Location:
		return fmt.Sprintf("%d-%d", entry.Location, entry.LocationEnd)
	case entry.Location > 0:
		return strconv.Itoa(entry.Location)
	case entry.Page > 0 && entry.PageEnd > 0 && entry.PageEnd != entry.Page:
		return fmt.Sprintf("page %d-%d", entry.Page, entry.PageEnd)
	case entry.Page > 0:
		return fmt.Sprintf("page %d", entry.Page)
	default:
		return ""
	}
}

func entryTime(entry ClippingEntry) *time.Time {
	if entry.AddedAt.IsZero() {
		return nil
	}
	at := entry.AddedAt.UTC()
	return &at
}

func bookKey(title, author string) string {
	return strings.ToLower(title) + "|" + strings.ToLower(author)
}
