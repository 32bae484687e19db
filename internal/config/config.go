package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Detector DetectorConfig `yaml:"detector"`
	Output   OutputConfig   `yaml:"output"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// DetectorConfig selects and tunes the face capability backend.
type DetectorConfig struct {
	Backend  string   `yaml:"backend"` // python or dlib
	Modes    []string `yaml:"modes"`   // tried in order until a face is found
	Python   string   `yaml:"python"`
	Script   string   `yaml:"script"`
	ModelDir string   `yaml:"model_dir"`
	Timeout  Duration `yaml:"timeout"` // per worker request, zero waits forever
}

// OutputConfig contains artifact settings.
type OutputConfig struct {
	Binary bool `yaml:"binary"`
}

// DatabaseConfig contains the optional publish target.
type DatabaseConfig struct {
	URL string `yaml:"-"` // env or flag only
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load reads configuration with precedence: defaults -> YAML file -> .env -> env vars.
// A missing YAML or .env file is not an error.
func Load(path string) (*Config, error) {
	cfg := newDefaults()

	if err := loadYAMLFile(cfg, path); err != nil {
		return nil, err
	}

	// .env only fills variables that are not already set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a path that must exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newDefaults() *Config {
	return &Config{
		Detector: DetectorConfig{
			Backend:  "python",
			Modes:    []string{"hog", "cnn"},
			Python:   "python3",
			Script:   "python/worker.py",
			ModelDir: "models",
		},
		Output: OutputConfig{
			Binary: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func loadYAMLFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FACESEED_BACKEND"); v != "" {
		cfg.Detector.Backend = v
	}
	if v := os.Getenv("FACESEED_MODES"); v != "" {
		cfg.Detector.Modes = SplitList(v)
	}
	if v := os.Getenv("FACESEED_PYTHON"); v != "" {
		cfg.Detector.Python = v
	}
	if v := os.Getenv("FACESEED_WORKER_SCRIPT"); v != "" {
		cfg.Detector.Script = v
	}
	if v := os.Getenv("FACESEED_MODEL_DIR"); v != "" {
		cfg.Detector.ModelDir = v
	}
	if v := os.Getenv("FACESEED_WORKER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Detector.Timeout = Duration(d)
		}
	}
	if v := os.Getenv("FACESEED_BINARY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Output.Binary = b
		}
	}
	if v := os.Getenv("FACESEED_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FACESEED_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	cfg.Database.URL = databaseURLFromEnv()
}

// databaseURLFromEnv builds the connection string the same way for every command:
// FACESEED_DB wins, then the POSTGRES_* variables.
func databaseURLFromEnv() string {
	if v := os.Getenv("FACESEED_DB"); v != "" {
		return v
	}

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}

	user := os.Getenv("POSTGRES_USER")
	pass := os.Getenv("POSTGRES_PASSWORD")
	name := os.Getenv("POSTGRES_DB")
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Detector.Backend {
	case "python", "dlib":
	default:
		return fmt.Errorf("detector.backend must be python or dlib, got %q", c.Detector.Backend)
	}

	if len(c.Detector.Modes) == 0 {
		return fmt.Errorf("detector.modes must not be empty")
	}
	for _, m := range c.Detector.Modes {
		if m != "hog" && m != "cnn" {
			return fmt.Errorf("detector.modes: unknown mode %q (use hog or cnn)", m)
		}
	}

	if c.Detector.Timeout < 0 {
		return fmt.Errorf("detector.timeout must not be negative")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

// SplitList splits a comma separated list and drops empty items.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
