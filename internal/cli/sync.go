package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrlokans/bookexport/internal/applebooks"
	"github.com/mrlokans/bookexport/internal/config"
	"github.com/mrlokans/bookexport/internal/kindle"
	"github.com/mrlokans/bookexport/internal/pipeline"
)

// SyncCommand runs every configured source, merges the results into one
// library and exports it. A failing source degrades the run instead of
// aborting it; the command only fails when no source produced anything.
type SyncCommand struct {
	Kindle        bool
	AppleBooks    bool
	ClippingsPath string

	Region       string
	Headless     bool
	NoLogin      bool
	ProfileDir   string
	LoginTimeout time.Duration
	BookTimeout  time.Duration
	MaxPages     int

	AnnotationDBPath string
	BookDBPath       string

	OutputPath   string
	DatabasePath string
	Pretty       bool
	Verbose      bool
}

func NewSyncCommand() *SyncCommand {
	return &SyncCommand{}
}

func (cmd *SyncCommand) ParseFlags(args []string) error {
	cfg := config.NewConfig()
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	fs.BoolVar(&cmd.Kindle, "kindle", false, "Include the browser-driven Kindle notebook sync")
	fs.BoolVar(&cmd.AppleBooks, "applebooks", false, "Include the local Apple Books databases")
	fs.StringVar(&cmd.ClippingsPath, "clippings", cfg.Kindle.ClippingsPath, "Include a Kindle 'My Clippings.txt' file at this path")

	fs.StringVar(&cmd.Region, "region", cfg.Kindle.Region, "Amazon region for the Kindle sync")
	fs.BoolVar(&cmd.Headless, "headless", cfg.Kindle.Headless, "Run the Kindle browser headless")
	fs.BoolVar(&cmd.NoLogin, "no-login", false, "Fail instead of waiting for login when the Kindle session has expired")
	fs.StringVar(&cmd.ProfileDir, "profile-dir", cfg.Kindle.ProfileDir, "Kindle browser profile directory")
	fs.DurationVar(&cmd.LoginTimeout, "login-timeout", cfg.Kindle.LoginTimeout, "How long to wait for a manual Amazon login")
	fs.DurationVar(&cmd.BookTimeout, "book-timeout", cfg.Kindle.BookTimeout, "How long to wait for a single book's highlights to render")
	fs.IntVar(&cmd.MaxPages, "max-pages", cfg.Kindle.MaxPages, "Upper bound on highlight pages scraped per book")

	fs.StringVar(&cmd.AnnotationDBPath, "annotation-db", cfg.AppleBooks.AnnotationDBPath, "Apple Books annotation database path (default: auto-detect)")
	fs.StringVar(&cmd.BookDBPath, "book-db", cfg.AppleBooks.BookDBPath, "Apple Books library database path (default: auto-detect)")

	fs.StringVar(&cmd.OutputPath, "output", cfg.Output.Path, "Output path for the JSON export ('-' for stdout)")
	fs.StringVar(&cmd.DatabasePath, "db", cfg.Database.Path, "Database path for the stored snapshot (empty to skip)")
	fs.BoolVar(&cmd.Pretty, "pretty", cfg.Output.Pretty, "Indent the JSON output")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s sync [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Extract from all selected sources concurrently, reconcile duplicates\n")
		fmt.Fprintf(os.Stderr, "across them and write one combined library export.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Everything at once:\n")
		fmt.Fprintf(os.Stderr, "  %s sync -kindle -applebooks -clippings \"My Clippings.txt\"\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Local sources only:\n")
		fmt.Fprintf(os.Stderr, "  %s sync -applebooks -clippings \"My Clippings.txt\"\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if !cmd.Kindle && !cmd.AppleBooks && cmd.ClippingsPath == "" {
		return fmt.Errorf("no sources selected: pass at least one of -kindle, -applebooks, -clippings")
	}
	if cmd.Kindle {
		if _, err := kindle.RegionFromCode(cmd.Region); err != nil {
			return err
		}
	}
	return nil
}

// kindleSource is the scraper surface the sync command uses. Swapped out
// in tests, which cannot launch a browser.
type kindleSource interface {
	pipeline.Extractor
	Close() error
}

var newKindleSource = func(ctx context.Context, cfg kindle.ScraperConfig) (kindleSource, error) {
	return kindle.NewScraper(ctx, cfg)
}

func (cmd *SyncCommand) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Each source is set up independently. A source that cannot even
	// start is a failed source, not a failed run: it is reported with
	// zero records and the remaining sources still sync.
	var extractors []pipeline.Extractor
	var setupFailures []pipeline.Result

	if cmd.Kindle {
		scraper, err := cmd.newScraper(ctx)
		if err != nil {
			setupFailures = append(setupFailures, pipeline.Result{Name: "kindle", Err: err})
		} else {
			defer scraper.Close()
			extractors = append(extractors, scraper)
		}
	}

	if cmd.AppleBooks {
		reader, err := applebooks.NewReader(cmd.AnnotationDBPath, cmd.BookDBPath)
		if err != nil {
			setupFailures = append(setupFailures, pipeline.Result{Name: "apple_books", Err: err})
		} else {
			extractors = append(extractors, reader)
		}
	}

	if cmd.ClippingsPath != "" {
		extractors = append(extractors, kindle.NewClippingsExtractor(cmd.ClippingsPath))
	}

	results := append(setupFailures, pipeline.Run(ctx, extractors...)...)

	failures := 0
	for _, result := range results {
		if result.Err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "Warning: source %s failed: %v\n", result.Name, result.Err)
			continue
		}
		fmt.Printf("Source %s: %d books\n", result.Name, len(result.Records))
	}

	library, err := buildLibrary(pipeline.Records(results))
	if err != nil {
		return err
	}

	if err := writeOutputs(library, cmd.OutputPath, cmd.Pretty, cmd.DatabasePath); err != nil {
		return err
	}

	fmt.Printf("Synced %d books, %d highlights from %d/%d sources\n",
		len(library.Books), countHighlights(library), len(results)-failures, len(results))
	return nil
}

func (cmd *SyncCommand) newScraper(ctx context.Context) (kindleSource, error) {
	region, err := kindle.RegionFromCode(cmd.Region)
	if err != nil {
		return nil, err
	}

	return newKindleSource(ctx, kindle.ScraperConfig{
		Region:       region,
		Headless:     cmd.Headless,
		Interactive:  !cmd.NoLogin && !cmd.Headless,
		ProfileDir:   cmd.ProfileDir,
		LoginTimeout: cmd.LoginTimeout,
		BookTimeout:  cmd.BookTimeout,
		MaxPages:     cmd.MaxPages,
		Verbose:      cmd.Verbose,
	})
}
