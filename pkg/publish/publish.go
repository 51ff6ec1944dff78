// Package publish sends the results of a finished sweep to external stores.
package publish

import (
	"context"
	"os"
	"path/filepath"

	engine "github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"golang.org/x/sync/errgroup"
)

// Publisher sends the report of a run and the files in its result folder to a store.
type Publisher interface {
	Publish(ctx context.Context, folder string, report types.Report) error
	Close() error
}

// ResultFile is one file of a result folder.
type ResultFile struct {
	Name        string
	Path        string
	ContentType string
}

var resultFiles = []struct {
	name        string
	contentType string
}{
	{engine.ReportFileName, "application/yaml"},
	{engine.BreakdownFileName, "application/yaml"},
	{engine.LedgerFileName, "application/vnd.apache.parquet"},
}

// ResultFiles lists the result files present in folder. A finished run writes
// all three; files that are absent, e.g. in a partially written folder, are skipped.
func ResultFiles(folder string) []ResultFile {
	files := make([]ResultFile, 0, len(resultFiles))

	for _, file := range resultFiles {
		path := filepath.Join(folder, file.name)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		files = append(files, ResultFile{Name: file.name, Path: path, ContentType: file.contentType})
	}

	return files
}

// All runs every publisher concurrently and returns the first error.
func All(ctx context.Context, publishers []Publisher, folder string, report types.Report) error {
	group, ctx := errgroup.WithContext(ctx)

	for _, publisher := range publishers {
		group.Go(func() error {
			return publisher.Publish(ctx, folder, report)
		})
	}

	return group.Wait()
}
