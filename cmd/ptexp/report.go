package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"passthru_parser/internal/passthru"
	"passthru_parser/internal/storage"
)

func runReport(args []string) {
	fs := pflag.NewFlagSet("report", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "Config file")
	limit := fs.IntP("limit", "n", 20, "Rows per section")
	kind := fs.StringP("kind", "k", "", "Restrict ClickHouse rates to one command kind")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)
	ctx, stop := signalContext()
	defer stop()

	kindName := ""
	if *kind != "" {
		k, ok := passthru.ParseKind(*kind)
		if !ok {
			fatalf("unknown kind: %s", *kind)
		}
		kindName = k.String()
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	reported := false
	if err := reportSQLite(ctx, tw, cfg.Storage.SQLite.Path, *limit); err != nil {
		fmt.Fprintf(os.Stderr, "sqlite: %v\n", err)
	} else {
		reported = true
	}

	if cfg.Storage.Postgres.Enabled {
		if err := reportPostgres(ctx, tw, cfg.Storage.Postgres, *limit); err != nil {
			fmt.Fprintf(os.Stderr, "postgres: %v\n", err)
		} else {
			reported = true
		}
	}

	if cfg.Storage.ClickHouse.Enabled {
		if err := reportClickHouse(ctx, tw, cfg.Storage.ClickHouse, kindName, *limit); err != nil {
			fmt.Fprintf(os.Stderr, "clickhouse: %v\n", err)
		} else {
			reported = true
		}
	}

	if !reported {
		_ = tw.Flush()
		os.Exit(1)
	}
}

func reportSQLite(ctx context.Context, tw *tabwriter.Writer, path string, limit int) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	db, err := storage.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.GetStats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(tw, "archive\t%s\n", path)
	fmt.Fprintf(tw, "sets\t%d\n", stats.Sets)
	fmt.Fprintf(tw, "expressions\t%d\n", stats.Expressions)
	fmt.Fprintf(tw, "invalid\t%d\n", stats.Invalid)
	for _, kind := range sortedByCount(stats.ByKind) {
		fmt.Fprintf(tw, "  %s\t%d\n", kind, stats.ByKind[kind])
	}
	if len(stats.TopMissingFields) > 0 {
		fmt.Fprintln(tw, "most often unresolved:")
		for i, field := range sortedByCount(stats.TopMissingFields) {
			if i >= limit {
				break
			}
			fmt.Fprintf(tw, "  %s\t%d\n", field, stats.TopMissingFields[field])
		}
	}
	fmt.Fprintln(tw)
	return nil
}

// sortedByCount returns the keys of m, highest count first.
func sortedByCount(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

func reportPostgres(ctx context.Context, tw *tabwriter.Writer, cfg storage.PostgresConfig, limit int) error {
	db, err := storage.OpenPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	failures, err := db.FieldFailures(ctx, limit)
	if err != nil {
		return err
	}

	fmt.Fprintln(tw, "postgres field failures:")
	fmt.Fprintln(tw, "  KIND\tFIELD\tINVALID\tTOTAL")
	for _, f := range failures {
		fmt.Fprintf(tw, "  %s\t%s\t%d\t%d\n", f.Kind, f.Field, f.Invalid, f.Total)
	}
	fmt.Fprintln(tw)
	return nil
}

func reportClickHouse(ctx context.Context, tw *tabwriter.Writer, cfg storage.ClickHouseConfig, kind string, limit int) error {
	db, err := storage.OpenClickHouse(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	rates, err := db.InvalidRates(ctx, kind, limit)
	if err != nil {
		return err
	}

	fmt.Fprintln(tw, "clickhouse invalid rates:")
	fmt.Fprintln(tw, "  KIND\tFIELD\tRATE\tTOTAL")
	for _, r := range rates {
		fmt.Fprintf(tw, "  %s\t%s\t%.1f%%\t%d\n", r.Kind, r.Field, 100*r.Rate(), r.Total)
	}
	fmt.Fprintln(tw)
	return nil
}
