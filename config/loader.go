package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is stripped from environment variables before they are
	// mapped to configuration keys.
	EnvPrefix = "MEDIASCRIBE_"
	// FileName is the configuration file searched for by Load.
	FileName = "mediascribe.yml"

	serviceName = "mediascribe"

	// maxEnvKeyParts bounds the variant expansion of one variable.
	maxEnvKeyParts = 8
)

// FileSystem abstracts the file operations of the loader (useful for testing).
type FileSystem interface {
	Exists(path string) bool
	ReadEnv(path string) (map[string]string, error)
	HomeDir() (string, error)
}

// RealFileSystem implements FileSystem on the local disk.
type RealFileSystem struct{}

func (RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (RealFileSystem) ReadEnv(path string) (map[string]string, error) {
	return godotenv.Read(path)
}

func (RealFileSystem) HomeDir() (string, error) {
	return os.UserHomeDir()
}

// Resolver finds the config and env files.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles returns the explicit paths when set, otherwise the first file
// found in the search paths.
func (r *Resolver) ResolveFiles(lc LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{ConfigFile: lc.ConfigFile, EnvFile: lc.EnvFile}
	if resolved.ConfigFile == "" {
		resolved.ConfigFile = r.first(r.searchDirs(), FileName)
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = r.first(r.searchDirs(), ".env."+serviceName, ".env")
	}
	return resolved
}

// searchDirs lists the directories searched, most specific first.
func (r *Resolver) searchDirs() []string {
	dirs := []string{".", "./config", "./cmd/" + serviceName}
	if home, err := r.FileSystem.HomeDir(); err == nil && home != "" {
		dirs = append(dirs, filepath.Join(home, ".config", serviceName))
	}
	return dirs
}

func (r *Resolver) first(dirs []string, names ...string) string {
	for _, name := range names {
		for _, dir := range dirs {
			path := dir + "/" + name
			if r.FileSystem.Exists(path) {
				return path
			}
		}
	}
	return ""
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // explicit config file path (optional)
	EnvFile    string // explicit .env file path (optional)
	Flags      *pflag.FlagSet
	// Environ returns the process environment. os.Environ when nil.
	Environ func() []string
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path. A missing explicit file
// is an error.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithFlags applies the flags registered by RegisterFlags that were set on
// the command line. The --config and --env-file flags select the files.
func WithFlags(fs *pflag.FlagSet) LoaderOption {
	return func(lc *LoaderConfig) { lc.Flags = fs }
}

// WithEnviron replaces the process environment.
func WithEnviron(environ func() []string) LoaderOption {
	return func(lc *LoaderConfig) { lc.Environ = environ }
}

// readInto layers file, .env, environment and flags over the values already
// present in cfg.
func readInto(cfg *Config, lc LoaderConfig) (ResolvedFiles, error) {
	explicitConfig := lc.ConfigFile != ""
	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(lc)

	v := viper.New()

	// 1. YAML file
	if files.ConfigFile != "" {
		if !lc.FileSystem.Exists(files.ConfigFile) {
			if explicitConfig {
				return files, fmt.Errorf("config file %s not found", files.ConfigFile)
			}
		} else {
			v.SetConfigFile(files.ConfigFile)
			if err := v.ReadInConfig(); err != nil {
				return files, fmt.Errorf("read config file %s: %w", files.ConfigFile, err)
			}
		}
	}

	// 2. .env values, overridden by the real environment
	env := make(map[string]string)
	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		values, err := lc.FileSystem.ReadEnv(files.EnvFile)
		if err != nil {
			return files, fmt.Errorf("read env file %s: %w", files.EnvFile, err)
		}
		for k, val := range values {
			env[k] = val
		}
	}
	for _, kv := range lc.Environ() {
		if k, val, ok := strings.Cut(kv, "="); ok {
			env[k] = val
		}
	}
	bindEnv(v, env)

	// 3. command-line flags
	if lc.Flags != nil {
		bindFlags(v, lc.Flags)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return files, fmt.Errorf("unmarshal config for %s: %w", serviceName, err)
	}
	return files, nil
}

// bindEnv sets every prefixed variable under each nested key it may denote.
func bindEnv(v *viper.Viper, env map[string]string) {
	for key, value := range env {
		name, ok := strings.CutPrefix(key, EnvPrefix)
		if !ok || name == "" {
			continue
		}
		for _, variant := range generateEnvKeyVariants(name) {
			v.Set(variant, value)
		}
	}
}

// generateEnvKeyVariants creates every nested key an environment variable
// name may denote: each underscore is either a level separator or part of a
// key. The flat lower-case name comes first.
//
//	AUTH_SECRET        -> [auth_secret, auth.secret]
//	ENGINES_REMOTE_URL -> [engines_remote_url, engines.remote_url,
//	                       engines_remote.url, engines.remote.url]
func generateEnvKeyVariants(envKey string) []string {
	parts := strings.Split(strings.ToLower(envKey), "_")
	if len(parts) <= 1 || len(parts) > maxEnvKeyParts {
		return []string{strings.ToLower(envKey)}
	}

	gaps := len(parts) - 1
	variants := make([]string, 0, 1<<gaps)
	var b strings.Builder
	for mask := 0; mask < 1<<gaps; mask++ {
		b.Reset()
		b.WriteString(parts[0])
		for i := 1; i < len(parts); i++ {
			if mask&(1<<(i-1)) != 0 {
				b.WriteByte('.')
			} else {
				b.WriteByte('_')
			}
			b.WriteString(parts[i])
		}
		variants = append(variants, b.String())
	}
	return removeDuplicates(variants)
}

func removeDuplicates(items []string) []string {
	seen := make(map[string]bool, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}
	return result
}
