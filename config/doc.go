// Package config loads the mediascribe configuration.
//
// Sources are applied in increasing precedence: built-in defaults, the
// mediascribe.yml file, a .env file, MEDIASCRIBE_* environment variables and
// finally command-line flags registered with RegisterFlags.
//
//	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
//	config.RegisterFlags(fs)
//	_ = fs.Parse(os.Args[2:])
//	cfg, err := config.Load(config.WithFlags(fs))
//
// Environment variables map to nested keys by splitting on underscores, so
// MEDIASCRIBE_SERVER_PORT sets server.port and MEDIASCRIBE_ENGINES_REMOTE_API_KEY
// sets engines.remote.api_key.
package config
