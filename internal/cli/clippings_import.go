package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mrlokans/bookexport/internal/config"
	"github.com/mrlokans/bookexport/internal/kindle"
)

// ClippingsImportCommand parses a Kindle "My Clippings.txt" file and
// exports the highlights it contains.
type ClippingsImportCommand struct {
	ClippingsPath string
	OutputPath    string
	DatabasePath  string
	Pretty        bool
}

func NewClippingsImportCommand() *ClippingsImportCommand {
	return &ClippingsImportCommand{}
}

func (cmd *ClippingsImportCommand) ParseFlags(args []string) error {
	cfg := config.NewConfig()
	fs := flag.NewFlagSet("clippings-import", flag.ExitOnError)

	fs.StringVar(&cmd.ClippingsPath, "file", cfg.Kindle.ClippingsPath, "Path to Kindle 'My Clippings.txt' file (required)")
	fs.StringVar(&cmd.OutputPath, "output", cfg.Output.Path, "Output path for the JSON export ('-' for stdout)")
	fs.StringVar(&cmd.DatabasePath, "db", cfg.Database.Path, "Database path for the stored snapshot (empty to skip)")
	fs.BoolVar(&cmd.Pretty, "pretty", cfg.Output.Pretty, "Indent the JSON output")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s clippings-import -file <path> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Import highlights from a Kindle 'My Clippings.txt' device file.\n\n")
		fmt.Fprintf(os.Stderr, "The clippings file is typically found at:\n")
		fmt.Fprintf(os.Stderr, "  /Volumes/Kindle/documents/My Clippings.txt\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.ClippingsPath == "" {
		return fmt.Errorf("required flag -file not provided")
	}
	return nil
}

func (cmd *ClippingsImportCommand) Run() error {
	if _, err := os.Stat(cmd.ClippingsPath); os.IsNotExist(err) {
		return fmt.Errorf("clippings file not found: %s", cmd.ClippingsPath)
	}

	records, err := kindle.NewClippingsExtractor(cmd.ClippingsPath).Extract(context.Background())
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

	fmt.Printf("Imported %d books, %d highlights from clippings\n", len(library.Books), countHighlights(library))
	return nil
}
