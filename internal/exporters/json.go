package exporters

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mrlokans/bookexport/internal/entities"
)

// JSONExporter writes the assembled library as a JSON document.
type JSONExporter struct {
	// Pretty indents the output for human inspection. Off, the document
	// is written compact.
	Pretty bool
}

func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Write renders the library to the writer.
func (e *JSONExporter) Write(w io.Writer, library entities.Library) error {
	encoder := json.NewEncoder(w)
	if e.Pretty {
		encoder.SetIndent("", "  ")
	}
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(library); err != nil {
		return fmt.Errorf("failed to encode library: %w", err)
	}
	return nil
}

// WriteFile writes the library to the path, creating parent directories as
// needed. "-" writes to stdout instead.
func (e *JSONExporter) WriteFile(path string, library entities.Library) error {
	if path == "-" {
		return e.Write(os.Stdout, library)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := e.Write(file, library); err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to flush output file: %w", err)
	}
	return nil
}
