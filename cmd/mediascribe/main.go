// Command mediascribe transcribes media files with local or remote speech
// recognition engines, either one file at a time or as an HTTP job service.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/kbukum/mediascribe/config"
	"github.com/kbukum/mediascribe/logger"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitCancelled = 130
)

type command struct {
	name    string
	summary string
	run     func(args []string, stdout, stderr io.Writer) int
}

var commands = []command{
	{"transcribe", "transcribe a media file", runTranscribe},
	{"serve", "run the HTTP job API", runServe},
	{"engines", "list transcription engines and their availability", runEngines},
	{"token", "issue an API token", runToken},
	{"version", "print version information", runVersion},
}

func main() {
	os.Exit(dispatch(os.Args[1:], os.Stdout, os.Stderr))
}

func dispatch(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}
	switch args[0] {
	case "-h", "--help", "help":
		usage(stdout)
		return exitOK
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(args[1:], stdout, stderr)
		}
	}
	fmt.Fprintf(stderr, "mediascribe: unknown command %q\n\n", args[0])
	usage(stderr)
	return exitUsage
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: mediascribe <command> [flags]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-11s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "\nRun 'mediascribe <command> --help' for the flags of a command.\n")
}

// newFlagSet creates a command flag set carrying the configuration flags.
func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)
	return fs
}

// parse parses args and reports the exit code to return when parsing ends
// the command.
func parse(fs *pflag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK, false
		}
		return exitUsage, false
	}
	return exitOK, true
}

// load reads the configuration and installs the global logger.
func load(fs *pflag.FlagSet, stderr io.Writer) (*config.Config, *logger.Logger, bool) {
	cfg, err := config.Load(config.WithFlags(fs))
	if err != nil {
		fmt.Fprintf(stderr, "mediascribe: %v\n", err)
		return nil, nil, false
	}
	log := logger.New(&cfg.Logging, cfg.Service.Name)
	logger.SetGlobalLogger(log)
	logger.Reset()
	if cfg.Files.ConfigFile != "" {
		log.Debug("configuration loaded", logger.Fields("file", cfg.Files.ConfigFile, "env_file", cfg.Files.EnvFile))
	}
	return cfg, log, true
}
