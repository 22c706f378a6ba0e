package main

import (
	"fmt"
	"io"

	"github.com/kbukum/mediascribe/auth"
)

func runToken(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token", stderr)
	subject := fs.String("subject", "cli", "token subject")
	ttl := fs.Duration("ttl", 0, "token lifetime (default: auth.token_ttl)")
	scopes := fs.StringSlice("scope", []string{auth.ScopeWrite}, "granted scopes: jobs:read, jobs:write")
	if code, ok := parse(fs, args); !ok {
		return code
	}
	cfg, _, ok := load(fs, stderr)
	if !ok {
		return exitFailure
	}
	if cfg.Auth.Secret == "" {
		fmt.Fprintln(stderr, "mediascribe: auth.secret is not set (MEDIASCRIBE_AUTH_SECRET)")
		return exitFailure
	}
	for _, s := range *scopes {
		if s != auth.ScopeRead && s != auth.ScopeWrite {
			fmt.Fprintf(stderr, "mediascribe: unknown scope %q\n", s)
			return exitUsage
		}
	}

	svc, err := auth.NewService(cfg.Auth)
	if err != nil {
		fmt.Fprintf(stderr, "mediascribe: %v\n", err)
		return exitFailure
	}
	token, err := svc.Issue(*subject, *ttl, *scopes...)
	if err != nil {
		fmt.Fprintf(stderr, "mediascribe: %v\n", err)
		return exitFailure
	}
	fmt.Fprintln(stdout, token)
	return exitOK
}
