package kindle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mrlokans/bookexport/internal/entities"
)

// The Kindle notebook is a single-page application with no documented API.
// Direct document fetches are rejected server-side, so the scraper drives a
// real browser session and walks the rendered DOM: select a book in the
// sidebar, wait for the highlight panel to re-render, extract, paginate.
// Each step is an explicit state with bounded polling so timeouts, partial
// results and cancellation stay first-class.

type scrapeState int

const (
	stateLaunching scrapeState = iota
	stateNavigatingToTarget
	stateCheckingAuth
	stateAwaitingLogin
	stateListingBooks
	stateSelectingBook
	stateAwaitingContentChange
	stateScrapingHighlights
	stateDone
	stateFailed
)

func (s scrapeState) String() string {
	switch s {
	case stateLaunching:
		return "launching"
	case stateNavigatingToTarget:
		return "navigating"
	case stateCheckingAuth:
		return "checking-auth"
	case stateAwaitingLogin:
		return "awaiting-login"
	case stateListingBooks:
		return "listing-books"
	case stateSelectingBook:
		return "selecting-book"
	case stateAwaitingContentChange:
		return "awaiting-content"
	case stateScrapingHighlights:
		return "scraping"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// session is one live browser tab. The production implementation is backed
// by Chrome over the DevTools protocol; tests substitute a fake.
type session interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, js string, out any) error
	Click(ctx context.Context, selector string) error
	Close() error
}

// ScraperConfig controls the browser-driven extraction.
type ScraperConfig struct {
	Region   Region
	Headless bool
	// Interactive permits suspending to wait for a human login. In
	// unattended runs an expired session is a surfaced failure instead.
	Interactive bool
	// ProfileDir persists the Chrome profile between runs so the
	// authenticated session survives. Exclusively owned by one scraper
	// at a time.
	ProfileDir   string
	LoginTimeout time.Duration
	// BookTimeout bounds the wait for the highlight panel after
	// selecting a book. A single unresponsive book is skipped, the
	// rest of the library is still scraped.
	BookTimeout  time.Duration
	PollInterval time.Duration
	// MaxPages bounds pagination in case the "next page" affordance
	// never disappears.
	MaxPages int
	Verbose  bool
}

func (c *ScraperConfig) applyDefaults() {
	if c.LoginTimeout == 0 {
		c.LoginTimeout = 5 * time.Minute
	}
	if c.BookTimeout == 0 {
		c.BookTimeout = 10 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.MaxPages == 0 {
		c.MaxPages = 100
	}
}

// Scraper extracts the book list and per-book highlights from the Kindle
// notebook through an interactive browser session. It is strictly
// sequential: one tab means one cursor position, so books are scraped one
// at a time.
type Scraper struct {
	cfg    ScraperConfig
	sess   session
	state  scrapeState
	unlock func()
}

// NewScraper launches the browser with the persistent profile directory.
// It fails fast with ErrProfileInUse when another instance owns the
// profile.
func NewScraper(ctx context.Context, cfg ScraperConfig) (*Scraper, error) {
	cfg.applyDefaults()

	if cfg.ProfileDir == "" {
		dir, err := DefaultProfileDir()
		if err != nil {
			return nil, err
		}
		cfg.ProfileDir = dir
	}

	unlock, err := lockProfileDir(cfg.ProfileDir)
	if err != nil {
		return nil, err
	}

	sess, err := newChromeSession(ctx, cfg)
	if err != nil {
		unlock()
		return nil, err
	}

	return &Scraper{cfg: cfg, sess: sess, state: stateLaunching, unlock: unlock}, nil
}

// newScraperWithSession wires an existing session, used by tests.
func newScraperWithSession(cfg ScraperConfig, sess session) *Scraper {
	cfg.applyDefaults()
	return &Scraper{cfg: cfg, sess: sess, state: stateLaunching, unlock: func() {}}
}

// DefaultProfileDir returns the per-user profile location under the
// tool's data directory.
func DefaultProfileDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}
	return filepath.Join(base, "bookexport", "chrome_profile"), nil
}

// lockProfileDir takes exclusive ownership of the profile directory. The
// lock file records the owner's pid so a lock left behind by a crashed run
// can be reclaimed once that process is gone.
func lockProfileDir(dir string) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	lockPath := filepath.Join(dir, ".bookexport.lock")
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return func() { os.Remove(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to lock profile directory: %w", err)
		}
		if !lockIsStale(lockPath) {
			return nil, ErrProfileInUse
		}
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to remove stale profile lock: %w", err)
		}
	}
}

// lockIsStale reports whether the recorded owner is no longer running.
// Any lock whose owner cannot be read or confirmed dead is treated as
// live: wrongly refusing is recoverable, wrongly reclaiming corrupts a
// running session's profile.
func lockIsStale(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return true
	}
	sigErr := proc.Signal(syscall.Signal(0))
	if sigErr == nil {
		return false
	}
	return errors.Is(sigErr, syscall.ESRCH) || errors.Is(sigErr, os.ErrProcessDone)
}

func (s *Scraper) Name() string { return "kindle" }

func (s *Scraper) Close() error {
	s.unlock()
	return s.sess.Close()
}

func (s *Scraper) transition(next scrapeState) {
	if s.cfg.Verbose {
		log.Printf("kindle scraper: %s -> %s", s.state, next)
	}
	s.state = next
}

// Extract runs the full state machine. Whatever records were accumulated
// before a failure or cancellation are returned alongside the error.
func (s *Scraper) Extract(ctx context.Context) ([]entities.RawBook, error) {
	s.transition(stateNavigatingToTarget)
	if err := s.sess.Navigate(ctx, s.cfg.Region.NotebookURL); err != nil {
		s.transition(stateFailed)
		return nil, fmt.Errorf("failed to open notebook page: %w", err)
	}

	s.transition(stateCheckingAuth)
	if err := s.ensureAuthenticated(ctx); err != nil {
		s.transition(stateFailed)
		return nil, err
	}

	s.transition(stateListingBooks)
	listings, err := s.listBooks(ctx)
	if err != nil {
		s.transition(stateFailed)
		return nil, err
	}
	if len(listings) == 0 {
		s.transition(stateFailed)
		return nil, ErrNoBooksFound
	}

	if s.cfg.Verbose {
		log.Printf("kindle scraper: found %d books", len(listings))
	}

	var records []entities.RawBook

	for i, listing := range listings {
		if err := ctx.Err(); err != nil {
			s.transition(stateFailed)
			return records, err
		}

		record, err := s.scrapeBook(ctx, listing, i == 0)
		if err != nil {
			if ctx.Err() != nil {
				s.transition(stateFailed)
				return records, ctx.Err()
			}
			// Record-partial: skip this book, keep the rest of the run.
			log.Printf("kindle scraper: skipping %q: %v", listing.Title, err)
			continue
		}

		if s.cfg.Verbose {
			log.Printf("kindle scraper: [%d/%d] %q: %d highlights",
				i+1, len(listings), listing.Title, len(record.Highlights))
		}
		records = append(records, record)
	}

	s.transition(stateDone)
	return records, nil
}

func (s *Scraper) ensureAuthenticated(ctx context.Context) error {
	authed, err := s.isAuthenticated(ctx)
	if err != nil {
		return fmt.Errorf("failed to check session state: %w", err)
	}
	if authed {
		return nil
	}

	if !s.cfg.Interactive {
		return ErrSessionExpired
	}

	s.transition(stateAwaitingLogin)
	log.Printf("kindle scraper: please log in to Amazon in the browser window (waiting up to %s)", s.cfg.LoginTimeout)

	deadline := time.Now().Add(s.cfg.LoginTimeout)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return ErrLoginTimeout
		}

		authed, err := s.isAuthenticated(ctx)
		if err != nil {
			continue
		}
		if authed {
			log.Printf("kindle scraper: logged in")
			return nil
		}
	}
}

func (s *Scraper) isAuthenticated(ctx context.Context) (bool, error) {
	loc, err := s.sess.Location(ctx)
	if err != nil {
		return false, err
	}
	if strings.Contains(loc, "signin") || strings.Contains(loc, "/ap/") {
		return false, nil
	}

	var present bool
	if err := s.sess.Evaluate(ctx, jsLibraryPresent, &present); err != nil {
		return false, err
	}
	return present, nil
}

type bookListing struct {
	ASIN   string `json:"asin"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

func (s *Scraper) listBooks(ctx context.Context) ([]bookListing, error) {
	var listings []bookListing
	if err := s.sess.Evaluate(ctx, jsListBooks, &listings); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return listings, nil
}

func (s *Scraper) scrapeBook(ctx context.Context, listing bookListing, first bool) (entities.RawBook, error) {
	s.transition(stateSelectingBook)

	// Capture the panel signature as rendered right now. Pagination moves
	// the panel past the state it was in when the previous book was
	// selected, and a stale baseline lets a slow re-render pass the
	// content-change check while the previous book's highlights are still
	// on screen.
	var before string
	if err := s.sess.Evaluate(ctx, jsFingerprint, &before); err != nil {
		before = ""
	}

	// A genuine pointer interaction is required: the application only
	// loads a book's highlights in response to its own click handlers,
	// not on direct URL navigation.
	if err := s.sess.Click(ctx, "#"+listing.ASIN); err != nil {
		return entities.RawBook{}, fmt.Errorf("failed to select book: %w", err)
	}

	s.transition(stateAwaitingContentChange)
	if _, err := s.awaitFingerprint(ctx, before, first); err != nil {
		return entities.RawBook{}, err
	}

	s.transition(stateScrapingHighlights)
	highlights, err := s.scrapeHighlights(ctx)
	if err != nil {
		return entities.RawBook{}, err
	}

	return entities.RawBook{
		Title:      listing.Title,
		Author:     listing.Author,
		Highlights: highlights,
		Source:     entities.SourceKindle,
	}, nil
}

// awaitFingerprint polls the highlight panel until its content signature
// differs from the one captured before selection. Render latency is
// variable, so polling with a content fingerprint beats any fixed sleep.
// For the first book any successful read counts: there is no previous
// content to compare against.
func (s *Scraper) awaitFingerprint(ctx context.Context, before string, acceptAny bool) (string, error) {
	deadline := time.Now().Add(s.cfg.BookTimeout)

	for {
		var fp string
		if err := s.sess.Evaluate(ctx, jsFingerprint, &fp); err == nil {
			if acceptAny || fp != before {
				return fp, nil
			}
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("timed out waiting for highlight panel to update")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}
	}
}

type scrapedPage struct {
	Highlights []scrapedHighlight `json:"highlights"`
	HasMore    bool               `json:"hasMore"`
}

type scrapedHighlight struct {
	Text     string `json:"text"`
	Note     string `json:"note"`
	Location string `json:"location"`
}

func (s *Scraper) scrapeHighlights(ctx context.Context) ([]entities.RawHighlight, error) {
	var all []entities.RawHighlight

	for page := 1; ; page++ {
		var result scrapedPage
		if err := s.sess.Evaluate(ctx, jsExtractHighlights, &result); err != nil {
			return all, fmt.Errorf("failed to extract highlights: %w", err)
		}

		var pageFingerprint string
		for _, h := range result.Highlights {
			if pageFingerprint == "" {
				pageFingerprint = h.Text
			}
			all = append(all, entities.RawHighlight{
				Text:     h.Text,
				Note:     h.Note,
				Position: h.Location,
			})
		}

		if !result.HasMore || page >= s.cfg.MaxPages {
			break
		}

		var clicked bool
		if err := s.sess.Evaluate(ctx, jsClickNextPage, &clicked); err != nil || !clicked {
			break
		}

		if _, err := s.awaitFingerprint(ctx, pageFingerprint, false); err != nil {
			// The next page never rendered; keep what we have.
			return all, nil
		}
	}

	return all, nil
}
