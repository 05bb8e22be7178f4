package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"passthru_parser/internal/api"
	"passthru_parser/internal/mcpserver"
	"passthru_parser/internal/pipeline"
	"passthru_parser/internal/storage"
)

func runServe(args []string) {
	fs := pflag.NewFlagSet("serve", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "Config file")
	port := fs.IntP("port", "p", 0, "Listen port (overrides config)")
	apiKeys := fs.StringSlice("api-key", nil, "Require one of these API keys (repeatable)")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)
	if *port > 0 {
		cfg.API.Port = *port
	}

	// Keys from the environment are used when none are given on the command line.
	keys := *apiKeys
	if len(keys) == 0 {
		if env := os.Getenv("PTEXP_API_KEYS"); env != "" {
			keys = strings.Split(env, ",")
		}
	}

	db, err := storage.OpenSQLite(cfg.Storage.SQLite.Path)
	if err != nil {
		fatalf("open archive: %v", err)
	}
	defer db.Close()

	engine, err := pipeline.NewDefaultEngine(slog.Default())
	if err != nil {
		fatalf("compile patterns: %v", err)
	}

	ctx, stop := signalContext()
	defer stop()

	srv := api.NewServer(db, engine.Patterns(), api.Config{
		Port:        cfg.API.Port,
		AuthEnabled: len(keys) > 0,
		APIKeys:     keys,
	})
	if err := srv.Run(ctx); err != nil {
		slog.Error("api server stopped", "error", err)
		os.Exit(1)
	}
}

func runMCP(args []string) {
	fs := pflag.NewFlagSet("mcp", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "Config file")
	archive := fs.Bool("archive", false, "Expose the SQLite archive query tools")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)
	// Logs go to stderr; stdout carries the protocol.

	engine, err := pipeline.NewDefaultEngine(slog.Default())
	if err != nil {
		fatalf("compile patterns: %v", err)
	}

	var store mcpserver.Store
	if *archive {
		db, err := storage.OpenSQLite(cfg.Storage.SQLite.Path)
		if err != nil {
			fatalf("open archive: %v", err)
		}
		defer db.Close()
		store = db
	}

	if err := mcpserver.New(engine, store).ServeStdio(); err != nil {
		slog.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
