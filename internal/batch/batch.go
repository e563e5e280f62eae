// Package batch runs receipt extraction over a directory of scans.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/scantrack/internal/extraction"
	"github.com/zombor/scantrack/internal/scanning"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the outcome for one file
type Result struct {
	File   string             `json:"file"`
	Status string             `json:"status"`
	Error  string             `json:"error,omitempty"`
	Data   *extraction.Record `json:"data,omitempty"`
}

// Summary aggregates a batch run
type Summary struct {
	Total           int            `json:"total"`
	Successful      int            `json:"successful"`
	Failed          int            `json:"failed"`
	TotalAmount     string         `json:"total_amount"` // Sum of extracted totals, two decimals
	ItemsByCategory map[string]int `json:"items_by_category"`
}

// Processor extracts records from files with a bounded number of workers
type Processor struct {
	recognizer scanning.Recognizer
	pipeline   *extraction.Pipeline
	workers    int
}

// NewProcessor creates a Processor. workers below one means one.
func NewProcessor(recognizer scanning.Recognizer, pipeline *extraction.Pipeline, workers int) *Processor {
	if workers < 1 {
		workers = 1
	}
	return &Processor{
		recognizer: recognizer,
		pipeline:   pipeline,
		workers:    workers,
	}
}

// FindImages returns the supported files directly inside dir, sorted by name
func FindImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !scanning.Supported(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Run processes every file and returns results in input order. A file that
// fails does not stop the others; only cancellation of ctx ends the run early.
func (p *Processor) Run(ctx context.Context, files []string) ([]Result, error) {
	results := make([]Result, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = p.processFile(ctx, file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Processor) processFile(ctx context.Context, file string) Result {
	result := Result{File: file}

	data, err := os.ReadFile(file)
	if err != nil {
		result.Status = StatusError
		result.Error = fmt.Sprintf("reading file: %v", err)
		return result
	}

	record, err := p.pipeline.ProcessResult(p.recognizer.Recognize(ctx, data, scanning.ContentTypeForFile(file)))
	if err != nil {
		slog.Warn("Failed to process file", "file", file, "error", err)
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}

	slog.Info("Processed file", "file", file, "items", len(record.Items))
	result.Status = StatusSuccess
	result.Data = record
	return result
}

// Summarize counts outcomes, sums totals and counts items per category
func Summarize(results []Result) Summary {
	summary := Summary{
		Total:           len(results),
		ItemsByCategory: map[string]int{},
	}
	total := decimal.Zero
	for _, r := range results {
		if r.Status != StatusSuccess || r.Data == nil {
			summary.Failed++
			continue
		}
		summary.Successful++
		if r.Data.TotalAmount != nil {
			total = total.Add(decimal.NewFromFloat(*r.Data.TotalAmount))
		}
		for _, item := range r.Data.Items {
			if item.Category != nil {
				summary.ItemsByCategory[string(*item.Category)]++
			}
		}
	}
	summary.TotalAmount = total.StringFixed(2)
	return summary
}

// WriteResults writes results as indented JSON
func WriteResults(w io.Writer, results []Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	return nil
}
