package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	flagConfig  = "config"
	flagEnvFile = "env-file"
)

// flagKeys maps each configuration flag to its key.
var flagKeys = map[string]string{
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"engine":     "pipeline.engine",
	"fallback":   "engines.fallback",
	"model":      "pipeline.model_name",
	"language":   "pipeline.language",
	"quality":    "pipeline.quality",
	"timestamps": "pipeline.show_timestamps",
	"host":       "server.host",
	"port":       "server.port",
	"store-dsn":  "store.dsn",
}

// RegisterFlags adds the configuration flags to fs. Only flags set on the
// command line override other sources.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP(flagConfig, "c", "", "config file (default: search for "+FileName+")")
	fs.String(flagEnvFile, "", ".env file (default: search for .env)")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("log-format", "", "log format: console or json")
	fs.StringP("engine", "e", "", "preferred transcription engine")
	fs.StringSlice("fallback", nil, "engine fallback order")
	fs.StringP("model", "m", "", "model name")
	fs.StringP("language", "l", "", "language code, or auto")
	fs.StringP("quality", "q", "", "audio quality: low, medium or high")
	fs.Bool("timestamps", false, "add segment markers to the transcript")
	fs.String("host", "", "HTTP listen host")
	fs.IntP("port", "p", 0, "HTTP listen port")
	fs.String("store-dsn", "", "job history database")
}

// filesFromFlags returns the --config and --env-file values, if registered.
func filesFromFlags(fs *pflag.FlagSet) (configFile, envFile string) {
	if f := fs.Lookup(flagConfig); f != nil {
		configFile = f.Value.String()
	}
	if f := fs.Lookup(flagEnvFile); f != nil {
		envFile = f.Value.String()
	}
	return configFile, envFile
}

// bindFlags sets the changed flags on v, above every other source.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			v.Set(key, sv.GetSlice())
			return
		}
		v.Set(key, f.Value.String())
	})
}
