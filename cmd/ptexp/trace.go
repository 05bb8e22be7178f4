package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"passthru_parser/internal/patterns"
	"passthru_parser/internal/pipeline"
	"passthru_parser/internal/segment"
)

func runTrace(args []string) {
	fs := pflag.NewFlagSet("trace", pflag.ExitOnError)
	input := fs.StringP("input", "i", "-", "File holding the log text (- for stdin)")
	asJSON := fs.BoolP("json", "j", false, "Print the traces as JSON")
	onlyFailed := fs.Bool("failed", false, "Only list definitions that did not match")
	_ = fs.Parse(args)

	var (
		data []byte
		err  error
	)
	if *input == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(filepath.Clean(*input))
	}
	if err != nil {
		fatalf("read input: %v", err)
	}

	reg, err := patterns.Default()
	if err != nil {
		fatalf("compile patterns: %v", err)
	}
	seg, err := segment.New(reg)
	if err != nil {
		fatalf("segmenter: %v", err)
	}

	text := pipeline.NormalizeNewlines(string(data))
	var traces []*patterns.Trace
	for _, s := range seg.Segment(text) {
		traces = append(traces, reg.Trace(s.Text))
	}
	if len(traces) == 0 && strings.TrimSpace(text) != "" {
		// No call marker; trace the raw text so shared definitions still report.
		traces = append(traces, reg.Trace(text))
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(traces); err != nil {
			fatalf("encode: %v", err)
		}
		return
	}

	for i, tr := range traces {
		fmt.Printf("segment %d: %s\n", i+1, tr.Kind)
		for _, d := range tr.Definitions {
			switch {
			case d.Matched && !*onlyFailed:
				fmt.Printf("  ok    %-28s %q\n", d.Name, d.Value)
			case !d.Matched:
				fmt.Printf("  FAIL  %-28s %s\n", d.Name, d.Error)
			}
		}
	}
}
