package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mrlokans/bookexport/internal/config"
	"github.com/mrlokans/bookexport/internal/kindle"
)

// KindleSyncCommand scrapes highlights from the Kindle notebook through a
// browser session and exports them.
type KindleSyncCommand struct {
	Region       string
	Headless     bool
	NoLogin      bool
	ProfileDir   string
	LoginTimeout time.Duration
	BookTimeout  time.Duration
	MaxPages     int
	OutputPath   string
	DatabasePath string
	Pretty       bool
	Verbose      bool
}

func NewKindleSyncCommand() *KindleSyncCommand {
	return &KindleSyncCommand{}
}

func (cmd *KindleSyncCommand) ParseFlags(args []string) error {
	cfg := config.NewConfig()
	fs := flag.NewFlagSet("kindle-sync", flag.ExitOnError)

	fs.StringVar(&cmd.Region, "region", cfg.Kindle.Region, "Amazon region (us, uk, de, fr, es, it, jp, ca, au, in)")
	fs.BoolVar(&cmd.Headless, "headless", cfg.Kindle.Headless, "Run the browser headless (requires a previously saved login session)")
	fs.BoolVar(&cmd.NoLogin, "no-login", false, "Fail instead of waiting for login when the session has expired")
	fs.StringVar(&cmd.ProfileDir, "profile-dir", cfg.Kindle.ProfileDir, "Browser profile directory (default: per-user cache directory)")
	fs.DurationVar(&cmd.LoginTimeout, "login-timeout", cfg.Kindle.LoginTimeout, "How long to wait for a manual Amazon login")
	fs.DurationVar(&cmd.BookTimeout, "book-timeout", cfg.Kindle.BookTimeout, "How long to wait for a single book's highlights to render")
	fs.IntVar(&cmd.MaxPages, "max-pages", cfg.Kindle.MaxPages, "Upper bound on highlight pages scraped per book")
	fs.StringVar(&cmd.OutputPath, "output", cfg.Output.Path, "Output path for the JSON export ('-' for stdout)")
	fs.StringVar(&cmd.DatabasePath, "db", cfg.Database.Path, "Database path for the stored snapshot (empty to skip)")
	fs.BoolVar(&cmd.Pretty, "pretty", cfg.Output.Pretty, "Indent the JSON output")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s kindle-sync [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Scrape highlights from read.amazon.com/notebook using a real browser.\n\n")
		fmt.Fprintf(os.Stderr, "The first run opens a browser window and waits for you to log in to\n")
		fmt.Fprintf(os.Stderr, "Amazon. The session is stored in the profile directory, so subsequent\n")
		fmt.Fprintf(os.Stderr, "runs (including -headless ones) reuse it until it expires.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # First run, interactive login:\n")
		fmt.Fprintf(os.Stderr, "  %s kindle-sync -region us\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  # Unattended run with a saved session:\n")
		fmt.Fprintf(os.Stderr, "  %s kindle-sync -headless -no-login -output kindle.json\n", os.Args[0])
	}

	return fs.Parse(args)
}

func (cmd *KindleSyncCommand) Run() error {
	region, err := kindle.RegionFromCode(cmd.Region)
	if err != nil {
		return err
	}

	// Headless runs cannot show a login page, so they are always
	// non-interactive.
	interactive := !cmd.NoLogin && !cmd.Headless

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scraper, err := kindle.NewScraper(ctx, kindle.ScraperConfig{
		Region:       region,
		Headless:     cmd.Headless,
		Interactive:  interactive,
		ProfileDir:   cmd.ProfileDir,
		LoginTimeout: cmd.LoginTimeout,
		BookTimeout:  cmd.BookTimeout,
		MaxPages:     cmd.MaxPages,
		Verbose:      cmd.Verbose,
	})
	if err != nil {
		return err
	}
	defer scraper.Close()

	records, err := scraper.Extract(ctx)
	if err != nil {
		if len(records) == 0 {
			return err
		}
		// Partial run: keep what was scraped, flag the interruption.
		fmt.Fprintf(os.Stderr, "Warning: extraction incomplete: %v\n", err)
	}

	library, err := buildLibrary(records)
	if err != nil {
		return err
	}

	if err := writeOutputs(library, cmd.OutputPath, cmd.Pretty, cmd.DatabasePath); err != nil {
		return err
	}

	fmt.Printf("Synced %d books, %d highlights from Kindle\n", len(library.Books), countHighlights(library))
	return nil
}
