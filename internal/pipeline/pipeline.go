// Package pipeline fans extraction out across sources and joins the
// results before the merge runs.
//
// Each source implements Extractor. Extractors must never discard a
// partial result: when extraction fails midway, the records gathered so
// far are returned alongside the error.
//
// Implementations:
//   - kindle.Scraper (browser session against the Kindle notebook)
//   - applebooks.Reader (local SQLite databases)
//   - kindle.Parser via the clippings extractor (My Clippings.txt)
package pipeline

import (
	"context"
	"sync"

	"github.com/mrlokans/bookexport/internal/entities"
)

// Extractor turns one external source into raw records.
type Extractor interface {
	// Name identifies the source in logs and failure reports.
	Name() string
	// Extract returns the source's records. Records and a non-nil error
	// may be returned together; the records are the partial result.
	Extract(ctx context.Context) ([]entities.RawBook, error)
}

// Result is one extractor's outcome.
type Result struct {
	Name    string
	Records []entities.RawBook
	Err     error
}

// Run executes all extractors concurrently and waits for every one of
// them. The merge engine needs all outcomes (including documented
// failures) before it can run, so this is a join point, not a stream.
// Result order matches extractor order regardless of completion order,
// which keeps "first seen" deterministic downstream.
func Run(ctx context.Context, extractors ...Extractor) []Result {
	results := make([]Result, len(extractors))

	var wg sync.WaitGroup
	for i, ex := range extractors {
		wg.Add(1)
		go func(i int, ex Extractor) {
			defer wg.Done()
			records, err := ex.Extract(ctx)
			results[i] = Result{Name: ex.Name(), Records: records, Err: err}
		}(i, ex)
	}
	wg.Wait()

	return results
}

// Records concatenates all results' records in extractor order.
func Records(results []Result) []entities.RawBook {
	var records []entities.RawBook
	for _, r := range results {
		records = append(records, r.Records...)
	}
	return records
}
