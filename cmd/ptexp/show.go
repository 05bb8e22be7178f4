package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"passthru_parser/internal/builders"
	"passthru_parser/internal/passthru"
	"passthru_parser/internal/ptexp"
)

func runShow(args []string) {
	fs := pflag.NewFlagSet("show", pflag.ExitOnError)
	rows := fs.BoolP("rows", "r", false, "Print every row, not just the command line")
	invalidOnly := fs.Bool("invalid", false, "Only show tables with an invalid field")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: ptexp show [--rows] [--invalid] file.ptExp")
		os.Exit(2)
	}

	f, err := os.Open(filepath.Clean(fs.Arg(0)))
	if err != nil {
		fatalf("open: %v", err)
	}
	defer f.Close()

	tables, err := ptexp.Parse(f)
	if err != nil {
		fatalf("parse %s: %v", fs.Arg(0), err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	invalidTables := 0
	for i, t := range tables {
		bad := invalidRows(t)
		if bad > 0 {
			invalidTables++
		}
		if *invalidOnly && bad == 0 {
			continue
		}

		cmd, _ := t.Get(builders.FieldCommandLine)
		fmt.Fprintf(tw, "#%d\t%s\tinvalid=%d\n", i+1, cmd.Value, bad)
		if *rows {
			for _, r := range t.Rows {
				fmt.Fprintf(tw, "\t  %s\t%s\t%s\n", r.Name, r.Value, r.State)
			}
		}
	}
	_ = tw.Flush()

	fmt.Printf("\n%d expressions, %d with invalid fields\n", len(tables), invalidTables)
}

func invalidRows(t ptexp.Table) int {
	n := 0
	for _, r := range t.Rows {
		if r.State == passthru.Invalid.String() {
			n++
		}
	}
	return n
}
