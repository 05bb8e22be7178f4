package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/pflag"

	"passthru_parser/internal/passthru"
	"passthru_parser/internal/pipeline"
	"passthru_parser/internal/ptexp"
	"passthru_parser/internal/publish"
	"passthru_parser/internal/state"
	"passthru_parser/internal/storage"
)

func runParse(args []string) {
	fs := pflag.NewFlagSet("parse", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "Config file (default: ptexp.yaml or ~/.config/passthru_parser/config.yaml)")
	outputDir := fs.StringP("output-dir", "o", "", "Directory for .ptExp files (overrides config)")
	workers := fs.IntP("workers", "w", 0, "Files processed at once (default: config, then number of CPUs)")
	archive := fs.Bool("archive", false, "Save sets to the SQLite archive")
	postgres := fs.Bool("postgres", false, "Save sets to PostgreSQL")
	clickhouse := fs.Bool("clickhouse", false, "Save field results to ClickHouse")
	publishSets := fs.Bool("publish", false, "Publish set summaries to NATS")
	jsonOut := fs.String("json", "", "Also write the expression sets as JSON to this file (- for stdout)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	progress := fs.Bool("progress", false, "Report per-file progress to stderr")
	showStats := fs.Bool("stats", false, "Print segment counters to stderr")
	checkHandles := fs.Bool("check", false, "Report device, channel and filter handle lifecycle issues")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: ptexp parse [flags] log.txt...")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	cfg := loadConfig(*configPath)
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	cfg.Storage.SQLite.Enabled = cfg.Storage.SQLite.Enabled || *archive
	cfg.Storage.Postgres.Enabled = cfg.Storage.Postgres.Enabled || *postgres
	cfg.Storage.ClickHouse.Enabled = cfg.Storage.ClickHouse.Enabled || *clickhouse
	cfg.NATS.Enabled = cfg.NATS.Enabled || *publishSets

	inputs, err := readInputs(fs.Args(), cfg.OutputDir)
	if err != nil {
		fatalf("read input: %v", err)
	}

	ctx, stop := signalContext()
	defer stop()

	sinks, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		fatalf("open storage: %v", err)
	}
	if cfg.NATS.Enabled {
		pub, err := publish.Connect(cfg.NATS.URL, cfg.NATS.Subject, slog.Default())
		if err != nil {
			_ = sinks.Close()
			fatalf("connect nats: %v", err)
		}
		sinks = append(sinks, pub)
	}

	engine, err := pipeline.NewDefaultEngine(slog.Default())
	if err != nil {
		_ = sinks.Close()
		fatalf("compile patterns: %v", err)
	}

	var report pipeline.ProgressFunc
	if *progress {
		var mu sync.Mutex
		report = func(source string, pct int) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(os.Stderr, "\r%-40s %3d%%", filepath.Base(source), pct)
			if pct >= 100 {
				fmt.Fprintln(os.Stderr)
			}
		}
	}

	results := engine.Run(ctx, inputs, cfg.Workers, ptexp.NewWriter(cfg.OutputDir, slog.Default()), report)

	var (
		total  pipeline.Stats
		sets   []*passthru.ExpressionSet
		failed int
	)
	for i, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", inputs[i].Source, res.Err)
			continue
		}
		total.Merge(res.Stats)
		sets = append(sets, res.Set)
		fmt.Println(res.Path)

		if *checkHandles {
			for _, issue := range state.Check(res.Set) {
				fmt.Fprintf(os.Stderr, "%s: %s\n", res.Set.Source, issue)
			}
		}

		if len(sinks) > 0 {
			if err := sinks.SaveSet(ctx, res.Set); err != nil {
				slog.Error("save set failed", "source", res.Set.Source, "error", err)
				failed++
			}
		}
	}

	if err := sinks.Close(); err != nil {
		slog.Warn("close storage", "error", err)
	}

	if *jsonOut != "" {
		if err := writeJSON(*jsonOut, sets, *pretty); err != nil {
			fatalf("write json: %v", err)
		}
	}

	if *showStats {
		fmt.Fprintf(os.Stderr, "stats: files=%d failed=%d %s\n", len(inputs), failed, total.String())
	}

	if failed > 0 {
		os.Exit(1)
	}
}

// readInputs loads every path. "-" reads stdin, which is written as
// stdin.ptExp inside outputDir.
func readInputs(paths []string, outputDir string) ([]pipeline.Input, error) {
	inputs := make([]pipeline.Input, 0, len(paths))
	for _, p := range paths {
		if p == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, pipeline.Input{Source: filepath.Join(outputDir, "stdin.txt"), Text: string(data)})
			continue
		}

		data, err := os.ReadFile(filepath.Clean(p))
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, pipeline.Input{Source: p, Text: string(data)})
	}
	return inputs, nil
}

func writeJSON(path string, sets []*passthru.ExpressionSet, pretty bool) error {
	var out io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(filepath.Clean(path))
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(sets)
}
