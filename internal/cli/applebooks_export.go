package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/bookexport/internal/applebooks"
	"github.com/mrlokans/bookexport/internal/config"
)

// AppleBooksExportCommand reads highlights from the local Apple Books
// databases and exports them.
type AppleBooksExportCommand struct {
	AnnotationDBPath string
	BookDBPath       string
	OutputPath       string
	DatabasePath     string
	Pretty           bool
}

func NewAppleBooksExportCommand() *AppleBooksExportCommand {
	return &AppleBooksExportCommand{}
}

func (cmd *AppleBooksExportCommand) ParseFlags(args []string) error {
	cfg := config.NewConfig()
	fs := flag.NewFlagSet("applebooks-export", flag.ExitOnError)

	fs.StringVar(&cmd.AnnotationDBPath, "annotation-db", cfg.AppleBooks.AnnotationDBPath, "Path to the AEAnnotation SQLite database (default: auto-detect)")
	fs.StringVar(&cmd.BookDBPath, "book-db", cfg.AppleBooks.BookDBPath, "Path to the BKLibrary SQLite database (default: auto-detect)")
	fs.StringVar(&cmd.OutputPath, "output", cfg.Output.Path, "Output path for the JSON export ('-' for stdout)")
	fs.StringVar(&cmd.DatabasePath, "db", cfg.Database.Path, "Database path for the stored snapshot (empty to skip)")
	fs.BoolVar(&cmd.Pretty, "pretty", cfg.Output.Pretty, "Indent the JSON output")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s applebooks-export [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Export highlights from the local Apple Books installation (macOS only).\n\n")
		fmt.Fprintf(os.Stderr, "The databases are auto-detected under ~/Library/Containers. The files\n")
		fmt.Fprintf(os.Stderr, "are copied before reading, so a running Books.app is not a problem.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *AppleBooksExportCommand) Run() error {
	reader, err := applebooks.NewReader(cmd.AnnotationDBPath, cmd.BookDBPath)
	if err != nil {
		return err
	}

	records, err := reader.Extract(context.Background())
	if err != nil {
		return err
	}

	library, err := buildLibrary(records)
	if err != nil {
		return err
	}

	if err := writeOutputs(library, cmd.OutputPath, cmd.Pretty, cmd.DatabasePath); err != nil {
		return err
	}

	fmt.Printf("Exported %d books, %d highlights from Apple Books\n", len(library.Books), countHighlights(library))
	return nil
}
