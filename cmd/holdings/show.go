package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/trogers1052/holdings-service/internal/orchestrator"
)

type showCmd struct {
	json  bool
	raw   bool
	width int
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "load holdings once and print them" }
func (*showCmd) Usage() string {
	return `holdings show [-json] [-raw] [-w <width>]

  Loads holdings the same way the service does (local store first, then the
  remote endpoint, then the cached snapshot) and prints the result.
`
}

func (c *showCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.json, "json", false, "print the view state as JSON")
	f.BoolVar(&c.raw, "raw", false, "print plain markdown without terminal styling")
	f.IntVar(&c.width, "w", 100, "wrap width for terminal output")
}

func (c *showCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := a.migrate(); err != nil {
		a.logger.WithError(err).Warn("Failed to migrate database")
	}

	orch := a.newOrchestrator()
	outcome := orch.Load(ctx)
	// let the background write finish before the connection closes
	orch.Wait()

	st := orch.State()

	switch {
	case c.json:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(st); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding state: %v\n", err)
			return subcommands.ExitFailure
		}
	case c.raw:
		fmt.Print(holdingsMarkdown(st))
	default:
		out, err := renderTerminal(holdingsMarkdown(st), c.width)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error rendering holdings: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Print(out)
	}

	if outcome == orchestrator.OutcomeFailure {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
