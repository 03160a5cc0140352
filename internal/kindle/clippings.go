package kindle

import (
	"context"
	"fmt"
	"os"

	"github.com/mrlokans/bookexport/internal/entities"
)

// ClippingsExtractor adapts the My Clippings.txt parser to the extractor
// contract so the device export can take part in a combined sync.
type ClippingsExtractor struct {
	Path string
}

func NewClippingsExtractor(path string) *ClippingsExtractor {
	return &ClippingsExtractor{Path: path}
}

func (e *ClippingsExtractor) Name() string { return "kindle_clippings" }

func (e *ClippingsExtractor) Extract(ctx context.Context) ([]entities.RawBook, error) {
	file, err := os.Open(e.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open clippings file: %w", err)
	}
	defer file.Close()

	records, err := NewParser().Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse clippings: %w", err)
	}
	return records, nil
}
