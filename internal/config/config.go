package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "HEADSHOT_"

// Config holds the application configuration
type Config struct {
	Detector DetectorConfig `json:"detector"`
	Framing  FramingConfig  `json:"framing"`
	Enhance  EnhanceConfig  `json:"enhance"`
	Output   OutputConfig   `json:"output"`
	Log      LogConfig      `json:"log"`
}

// DetectorConfig selects the face detection backend
type DetectorConfig struct {
	Backend       string  `json:"backend"`
	CascadePath   string  `json:"cascade_path"`
	ServerURL     string  `json:"server_url"`
	Model         string  `json:"model"`
	MinConfidence float64 `json:"min_confidence"`
	MaxDim        int     `json:"max_dim"`
}

// FramingConfig holds output geometry
type FramingConfig struct {
	OutputSize int    `json:"output_size"`
	Filter     string `json:"filter"`
}

// EnhanceConfig holds the polish factors
type EnhanceConfig struct {
	Enabled      bool    `json:"enabled"`
	Contrast     float64 `json:"contrast"`
	Saturation   float64 `json:"saturation"`
	Sharpness    float64 `json:"sharpness"`
	SharpenSigma float64 `json:"sharpen_sigma"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Format    string `json:"format"`
	OutputDir string `json:"output_dir"`
	Prefix    string `json:"prefix"`
	Suffix    string `json:"suffix"`
	Debug     bool   `json:"debug"`
	Workers   int    `json:"workers"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
	File        string `json:"file"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			Backend:       "pigo",
			CascadePath:   "./cascade/facefinder",
			ServerURL:     "",
			MinConfidence: 0.5,
			MaxDim:        768,
		},
		Framing: FramingConfig{
			OutputSize: 1024,
			Filter:     "catmullrom",
		},
		Enhance: EnhanceConfig{
			Enabled:      true,
			Contrast:     1.08,
			Saturation:   1.05,
			Sharpness:    1.15,
			SharpenSigma: 1.0,
		},
		Output: OutputConfig{
			Format:    "png",
			OutputDir: "./output",
			Suffix:    "_headshot",
			Workers:   4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Keys missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// Load reads filename if it exists, then applies .env and environment
// overrides and validates the result. An empty filename uses defaults.
func Load(filename string, envFiles ...string) (*Config, error) {
	config := Default()
	if filename != "" {
		loaded, err := LoadFromFile(filename)
		switch {
		case err == nil:
			config = loaded
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}

	if err := LoadEnv(envFiles...); err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from HEADSHOT_* environment variables
func (c *Config) ApplyEnv() error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *float64) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("DETECTOR", &c.Detector.Backend)
	str("CASCADE_PATH", &c.Detector.CascadePath)
	str("SERVER_URL", &c.Detector.ServerURL)
	str("MODEL", &c.Detector.Model)
	num("MIN_CONFIDENCE", &c.Detector.MinConfidence)
	integer("MODEL_MAX_DIM", &c.Detector.MaxDim)

	integer("OUTPUT_SIZE", &c.Framing.OutputSize)
	str("FILTER", &c.Framing.Filter)

	boolean("ENHANCE", &c.Enhance.Enabled)
	num("CONTRAST", &c.Enhance.Contrast)
	num("SATURATION", &c.Enhance.Saturation)
	num("SHARPNESS", &c.Enhance.Sharpness)

	str("FORMAT", &c.Output.Format)
	str("OUTPUT_DIR", &c.Output.OutputDir)
	boolean("DEBUG", &c.Output.Debug)
	integer("WORKERS", &c.Output.Workers)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)

	return errors.Join(errs...)
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch strings.ToLower(c.Detector.Backend) {
	case "pigo", "ollama", "llamacpp", "none", "":
	default:
		return fmt.Errorf("detector.backend must be one of pigo, ollama, llamacpp, none")
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return fmt.Errorf("detector.min_confidence must be between 0 and 1")
	}
	if strings.EqualFold(c.Detector.Backend, "ollama") && c.Detector.Model == "" {
		return fmt.Errorf("detector.model is required for the ollama backend")
	}

	if c.Framing.OutputSize < 1 {
		return fmt.Errorf("framing.output_size must be positive")
	}

	if c.Enhance.Contrast <= 0 || c.Enhance.Saturation < 0 {
		return fmt.Errorf("enhance.contrast must be positive and enhance.saturation non-negative")
	}
	if c.Enhance.Sharpness < 1 || c.Enhance.Sharpness > 2 {
		return fmt.Errorf("enhance.sharpness must be between 1 and 2")
	}

	switch strings.ToLower(c.Output.Format) {
	case "png", "webp", "":
	default:
		return fmt.Errorf("output.format must be png or webp")
	}
	if c.Output.Workers < 1 {
		return fmt.Errorf("output.workers must be positive")
	}
	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "headshot", "config.json")
}
