// Command-line entry point for the PassThru log parser.
//
// A J2534 PassThru log records every call an application made into the
// vendor DLL: the call line, any "returning" lines, message and filter dumps,
// and a trailing status line. The parse command splits each log into one
// segment per call, extracts the call's fields into an expression, and writes
// the set of expressions as a .ptExp table document into the configured
// output directory.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"passthru_parser/internal/config"
	"passthru_parser/internal/logging"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "ptexp - J2534 PassThru log parser. Commands:")
	fmt.Fprintln(w, "  parse   - build .ptExp expression files from PassThru logs")
	fmt.Fprintln(w, "  show    - summarize an existing .ptExp file")
	fmt.Fprintln(w, "  trace   - show which patterns match a single call segment")
	fmt.Fprintln(w, "  report  - print validation statistics from the configured backends")
	fmt.Fprintln(w, "  serve   - run the read-only REST API over the SQLite archive")
	fmt.Fprintln(w, "  mcp     - serve parse/trace/query tools over MCP stdio")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  ptexp parse [-o dir] [--workers n] [--archive] [--publish] [--json file] [--stats] log.txt...")
	fmt.Fprintln(w, "  ptexp show [--rows] file.ptExp")
	fmt.Fprintln(w, "  ptexp trace [--input segment.txt] [--json]")
	fmt.Fprintln(w, "  ptexp report [--limit n] [--kind k]")
	fmt.Fprintln(w, "  ptexp serve [--port n] [--api-key key]...")
	fmt.Fprintln(w, "  ptexp mcp [--archive]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - Settings come from ptexp.yaml (or --config), then .env, then the environment.")
	fmt.Fprintln(w, "  - Use - as an input path to read a log from stdin.")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "parse":
		runParse(os.Args[2:])
	case "show":
		runShow(os.Args[2:])
	case "trace":
		runTrace(os.Args[2:])
	case "report":
		runReport(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "mcp":
		runMCP(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

// loadConfig reads path when given, otherwise searches the default locations,
// and installs the configured logger.
func loadConfig(path string) *config.Config {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDefaultPath()
	}
	if err != nil {
		fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log)
	return cfg
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
