package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/kbukum/mediascribe/engine"
)

func runEngines(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("engines", stderr)
	asJSON := fs.Bool("json", false, "print JSON")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	cfg, log, ok := load(fs, stderr)
	if !ok {
		return exitFailure
	}

	reg := buildRegistry(cfg.Engines, log)
	order := engine.NewSelector(reg, cfg.Engines.Fallback, log).Order(cfg.Pipeline.Engine, nil)
	statuses := reg.Statuses()
	slices.SortStableFunc(statuses, func(a, b engine.Status) int {
		return rank(order, a.Name) - rank(order, b.Name)
	})

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"order": order, "engines": statuses}); err != nil {
			fmt.Fprintf(stderr, "mediascribe: %v\n", err)
			return exitFailure
		}
		return exitOK
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENGINE\tAVAILABLE\tREASON")
	for _, st := range statuses {
		fmt.Fprintf(tw, "%s\t%t\t%s\n", st.Name, st.Available, st.Reason)
	}
	_ = tw.Flush()
	return exitOK
}

// rank orders engines by their position in the selection order; engines
// outside it sort last.
func rank(order []string, name string) int {
	if i := slices.Index(order, name); i >= 0 {
		return i
	}
	return len(order)
}
