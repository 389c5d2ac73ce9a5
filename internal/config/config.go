package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir  = ".pipecheck"
	DefaultConfigFile = "config.yaml"
	DefaultLogFile    = "results.jsonl"
	DefaultBackend    = "libc"

	// EnvPrefix prefixes environment overrides, e.g. PIPECHECK_BACKEND.
	EnvPrefix = "PIPECHECK"
)

type Config struct {
	// Backend selects the syscall layer: libc, kernel or shadow.
	Backend string `yaml:"backend" envconfig:"BACKEND"`
	// LogPath is the JSONL results log.
	LogPath string `yaml:"log_path" envconfig:"LOG_PATH"`
	// Results enables the results log.
	Results bool `yaml:"results" envconfig:"RESULTS"`
	// LogLevel is the console diagnostic level.
	LogLevel string         `yaml:"log_level" envconfig:"LOG_LEVEL"`
	Transfer TransferConfig `yaml:"transfer" envconfig:"TRANSFER"`

	ConfigDir  string `yaml:"-" ignored:"true"`
	ConfigPath string `yaml:"-" ignored:"true"`

	Run RunConfig `yaml:"-" ignored:"true"`
}

// TransferConfig tunes the large round-trip case.
type TransferConfig struct {
	// Size is the number of bytes pushed through the pipe. Default: 16192.
	Size int `yaml:"size" envconfig:"SIZE"`
	// MaxIterations caps the partial write/read loop. Default: 4096.
	MaxIterations int `yaml:"max_iterations" envconfig:"MAX_ITERATIONS"`
	// Seed fixes the random payload. Default: 1.
	Seed uint64 `yaml:"seed" envconfig:"SEED"`
}

// RunConfig carries the per-invocation command-line selections. It is only
// set from flags.
type RunConfig struct {
	ShadowPassing bool
	LibcPassing   bool
	Summarize     bool
	Pattern       string
}

// DefaultTransferConfig returns two 8096-byte pages, seeded with 1.
func DefaultTransferConfig() TransferConfig {
	return TransferConfig{
		Size:          8096 * 2,
		MaxIterations: 4096,
		Seed:          1,
	}
}

// Default returns the configuration used when no file or environment
// override is present.
func Default(configDir string) *Config {
	return &Config{
		Backend:    DefaultBackend,
		LogPath:    filepath.Join(configDir, DefaultLogFile),
		Results:    true,
		LogLevel:   "warn",
		Transfer:   DefaultTransferConfig(),
		ConfigDir:  configDir,
		ConfigPath: filepath.Join(configDir, DefaultConfigFile),
	}
}

// Load layers defaults, the YAML file at configPath (or the default file,
// which may be absent), and PIPECHECK_* environment variables.
func Load(configPath string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := Default(filepath.Join(homeDir, DefaultConfigDir))

	explicit := configPath != ""
	if explicit {
		cfg.ConfigPath = configPath
	}

	data, err := os.ReadFile(cfg.ConfigPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", cfg.ConfigPath, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no run can use.
func (c *Config) Validate() error {
	if c.Backend == "" {
		return fmt.Errorf("backend must not be empty")
	}
	if c.Transfer.Size <= 0 {
		return fmt.Errorf("transfer.size must be positive, got %d", c.Transfer.Size)
	}
	if c.Transfer.MaxIterations <= 0 {
		return fmt.Errorf("transfer.max_iterations must be positive, got %d", c.Transfer.MaxIterations)
	}
	if c.Results && c.LogPath == "" {
		return fmt.Errorf("log_path must be set when results are enabled")
	}
	return nil
}
