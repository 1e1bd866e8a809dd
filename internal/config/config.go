// Package config loads piday.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "piday.yaml"

// Mixed-effects capability modes.
const (
	MixedAuto = "auto"
	MixedOff  = "off"
)

// Kind classifies configuration errors.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindInvalidConfig Kind = "invalid_config"
)

// Error reports a failure to load or validate a configuration file.
type Error struct {
	Op   string
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a config *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}

type Config struct {
	Capabilities Capabilities
	Fit          Fit
	Plot         Plot
	Engine       Engine
	Log          Log
}

type Capabilities struct {
	// MixedEffects is MixedAuto to probe the engine or MixedOff to run
	// without mixed-effects support.
	MixedEffects string
}

type Fit struct {
	Tier              int
	AllowMixedEffects bool
	PreferMixed       bool
	MaxIterations     int
	Tolerance         float64
}

type Plot struct {
	Width  int
	Height int
	Format string
}

type Engine struct {
	// Command starts the sandboxed engine, split with shell quoting rules.
	// Empty means this binary's own "engine --sandbox" subcommand.
	Command    []string
	Timeout    time.Duration
	ScratchDir string
}

type Log struct {
	File  string
	Debug bool
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Capabilities: Capabilities{MixedEffects: MixedAuto},
		Fit: Fit{
			Tier:          1,
			MaxIterations: 500,
			Tolerance:     1e-8,
		},
		Plot: Plot{
			Width:  800,
			Height: 600,
			Format: "raster",
		},
		Engine: Engine{
			Timeout:    30 * time.Second,
			ScratchDir: filepath.Join(os.TempDir(), "piday"),
		},
	}
}

// Load reads the file at path on top of Default. An empty path means
// DefaultFile, which may be absent; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, &Error{Op: "config.load", Kind: KindNotFound, Path: path, Err: err}
	}

	cfg, err = Parse(b)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return cfg, err
	}
	return cfg, nil
}

// Parse applies YAML document b on top of Default and validates the result.
func Parse(b []byte) (Config, error) {
	cfg := Default()

	var y yamlConfig
	if err := yaml.Unmarshal(b, &y); err != nil {
		return cfg, &Error{Op: "config.parse", Kind: KindInvalidConfig, Err: err}
	}

	if y.Capabilities.MixedEffects != "" {
		cfg.Capabilities.MixedEffects = strings.ToLower(y.Capabilities.MixedEffects)
	}

	if y.Fit.Tier != nil {
		cfg.Fit.Tier = *y.Fit.Tier
	}
	if y.Fit.AllowMixedEffects != nil {
		cfg.Fit.AllowMixedEffects = *y.Fit.AllowMixedEffects
	}
	if y.Fit.PreferMixed != nil {
		cfg.Fit.PreferMixed = *y.Fit.PreferMixed
	}
	if y.Fit.MaxIterations != nil {
		cfg.Fit.MaxIterations = *y.Fit.MaxIterations
	}
	if y.Fit.Tolerance != nil {
		cfg.Fit.Tolerance = *y.Fit.Tolerance
	}

	if y.Plot.Width != nil {
		cfg.Plot.Width = *y.Plot.Width
	}
	if y.Plot.Height != nil {
		cfg.Plot.Height = *y.Plot.Height
	}
	if y.Plot.Format != "" {
		cfg.Plot.Format = y.Plot.Format
	}

	if y.Engine.Command != "" {
		cmd, err := shlex.Split(y.Engine.Command)
		if err != nil {
			return cfg, &Error{Op: "config.parse", Kind: KindInvalidConfig, Err: fmt.Errorf("engine.command: %w", err)}
		}
		cfg.Engine.Command = cmd
	}
	if y.Engine.Timeout != "" {
		d, err := time.ParseDuration(y.Engine.Timeout)
		if err != nil {
			return cfg, &Error{Op: "config.parse", Kind: KindInvalidConfig, Err: fmt.Errorf("engine.timeout: %w", err)}
		}
		cfg.Engine.Timeout = d
	}
	if y.Engine.ScratchDir != "" {
		cfg.Engine.ScratchDir = y.Engine.ScratchDir
	}

	if y.Log.File != "" {
		cfg.Log.File = y.Log.File
	}
	if y.Log.Debug != nil {
		cfg.Log.Debug = *y.Log.Debug
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return &Error{Op: "config.validate", Kind: KindInvalidConfig, Err: fmt.Errorf(format, args...)}
	}
	switch c.Capabilities.MixedEffects {
	case MixedAuto, MixedOff:
	default:
		return invalid("capabilities.mixed_effects must be %q or %q, got %q", MixedAuto, MixedOff, c.Capabilities.MixedEffects)
	}
	if c.Fit.Tier < 1 || c.Fit.Tier > 3 {
		return invalid("fit.tier must be 1, 2 or 3, got %d", c.Fit.Tier)
	}
	if c.Fit.MaxIterations <= 0 {
		return invalid("fit.max_iterations must be positive, got %d", c.Fit.MaxIterations)
	}
	if !(c.Fit.Tolerance > 0) {
		return invalid("fit.tolerance must be positive, got %g", c.Fit.Tolerance)
	}
	if c.Plot.Width <= 0 || c.Plot.Height <= 0 {
		return invalid("plot size must be positive, got %dx%d", c.Plot.Width, c.Plot.Height)
	}
	if c.Engine.Timeout <= 0 {
		return invalid("engine.timeout must be positive, got %s", c.Engine.Timeout)
	}
	return nil
}

type yamlConfig struct {
	Capabilities struct {
		MixedEffects string `yaml:"mixed_effects"`
	} `yaml:"capabilities"`

	Fit struct {
		Tier              *int     `yaml:"tier"`
		AllowMixedEffects *bool    `yaml:"allow_mixed_effects"`
		PreferMixed       *bool    `yaml:"prefer_mixed"`
		MaxIterations     *int     `yaml:"max_iterations"`
		Tolerance         *float64 `yaml:"tolerance"`
	} `yaml:"fit"`

	Plot struct {
		Width  *int   `yaml:"width"`
		Height *int   `yaml:"height"`
		Format string `yaml:"format"`
	} `yaml:"plot"`

	Engine struct {
		Command    string `yaml:"command"`
		Timeout    string `yaml:"timeout"`
		ScratchDir string `yaml:"scratch_dir"`
	} `yaml:"engine"`

	Log struct {
		File  string `yaml:"file"`
		Debug *bool  `yaml:"debug"`
	} `yaml:"log"`
}
