package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/kbukum/mediascribe/version"
)

func runVersion(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("version", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	asJSON := fs.Bool("json", false, "print JSON")
	if code, ok := parse(fs, args); !ok {
		return code
	}

	info := version.Get()
	if *asJSON {
		if err := json.NewEncoder(stdout).Encode(info); err != nil {
			return exitFailure
		}
		return exitOK
	}
	fmt.Fprintln(stdout, info.String())
	return exitOK
}
