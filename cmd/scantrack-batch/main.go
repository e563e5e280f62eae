package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/scantrack/internal/batch"
	"github.com/zombor/scantrack/internal/extraction"
	"github.com/zombor/scantrack/internal/scanning"
)

func main() {
	fs := ff.NewFlagSet("scantrack-batch")
	var (
		inputDir    = fs.StringLong("input", "", "Directory of receipt images (required)")
		outputPath  = fs.StringLong("output", "results.json", "Results file, '-' for stdout")
		workers     = fs.IntLong("workers", 4, "Files processed concurrently")
		scannerType = fs.StringLong("scanner", "ollama", "Text recognizer: 'gemini' or 'ollama'")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL   = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		rulesPath   = fs.StringLong("rules", "", "YAML category rules file (built-in rules when empty)")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("SCANTRACK_BATCH"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *inputDir == "" {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintln(os.Stderr, "error: --input is required")
		os.Exit(1)
	}

	if err := run(*inputDir, *outputPath, *workers, *rulesPath,
		*scannerType, *geminiKey, *geminiModel, *ollamaURL, *ollamaModel); err != nil {
		slog.Error("Batch failed", "error", err)
		os.Exit(1)
	}
}

func run(inputDir, outputPath string, workers int, rulesPath string,
	scannerType, geminiKey, geminiModel, ollamaURL, ollamaModel string) error {
	rules := extraction.DefaultRules()
	if rulesPath != "" {
		var err error
		if rules, err = extraction.LoadRules(rulesPath); err != nil {
			return err
		}
	}
	engine, err := extraction.NewEngine(rules)
	if err != nil {
		return fmt.Errorf("building rule engine: %w", err)
	}

	var recognizer scanning.Recognizer
	switch scannerType {
	case "gemini":
		if geminiKey == "" {
			geminiKey = os.Getenv("GEMINI_API_KEY")
		}
		recognizer, err = scanning.NewGemini(geminiKey, geminiModel)
	case "ollama":
		recognizer, err = scanning.NewOllama(ollamaURL, ollamaModel)
	default:
		return fmt.Errorf("invalid scanner type %q, want gemini or ollama", scannerType)
	}
	if err != nil {
		return fmt.Errorf("creating recognizer: %w", err)
	}
	defer recognizer.Close()

	files, err := batch.FindImages(inputDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		slog.Warn("No receipt images found", "input", inputDir)
		return nil
	}
	slog.Info("Processing receipts", "files", len(files), "workers", workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	processor := batch.NewProcessor(recognizer, extraction.NewPipeline(engine), workers)
	results, err := processor.Run(ctx, files)
	if err != nil {
		return fmt.Errorf("processing receipts: %w", err)
	}

	out := os.Stdout
	if outputPath != "-" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := batch.WriteResults(out, results); err != nil {
		return err
	}

	summary := batch.Summarize(results)
	slog.Info("Batch complete",
		"total", summary.Total,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"total_amount", summary.TotalAmount,
		"output", outputPath,
	)
	for category, count := range summary.ItemsByCategory {
		slog.Info("Category", "category", category, "items", count)
	}
	return nil
}
