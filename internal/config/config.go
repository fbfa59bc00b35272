package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/vampirenirmal/edrr/internal/core"
	"github.com/vampirenirmal/edrr/internal/team"
)

type Config struct {
	Engine EngineConfig `yaml:"engine" validate:"required"`
	Paths  PathsConfig  `yaml:"paths"`
	Limits Limits       `yaml:"limits" validate:"required"`
}

// EngineConfig tunes the phase coordinator and the recursion heuristics.
type EngineConfig struct {
	QualityThreshold     float64            `yaml:"quality_threshold" validate:"required,gt=0,lte=1"`
	PhaseThresholds      map[string]float64 `yaml:"phase_thresholds" validate:"dive,gt=0,lte=1"`
	MaxRecursionDepth    int                `yaml:"max_recursion_depth" validate:"required,min=1,max=10"`
	GranularityThreshold float64            `yaml:"granularity_threshold" validate:"gte=0,lte=1"`
	CostBenefitRatio     float64            `yaml:"cost_benefit_ratio" validate:"gte=0"`
	ResourceLimit        float64            `yaml:"resource_limit" validate:"gte=0,lte=1"`
	EnhancedTracing      bool               `yaml:"enhanced_tracing"`
}

type PathsConfig struct {
	// MemoryDir is where the file-backed memory store keeps its records.
	MemoryDir string `yaml:"memory_dir"`
}

func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			QualityThreshold:     0.9,
			MaxRecursionDepth:    3,
			GranularityThreshold: 0.2,
			CostBenefitRatio:     0.5,
			ResourceLimit:        0.8,
			EnhancedTracing:      true,
		},
		Limits: DefaultLimits(),
	}
}

// Load reads the config file, falling back to defaults when no file exists.
// Environment variables from a .env file are loaded first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	configPath := getConfigPath()

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("validating default config: %w", err)
		}
		return cfg, nil
	} else if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func getConfigPath() string {
	// 1. Explicit config path via environment variable
	if path := os.Getenv("EDRR_CONFIG"); path != "" {
		return path
	}

	// 2. XDG_CONFIG_HOME (XDG Base Directory Specification)
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "edrr", "config.yaml")
	}

	// 3. Default to ~/.config/edrr/config.yaml (XDG fallback)
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "edrr", "config.yaml")
}

// expandTilde expands a leading ~/ to the user's home directory.
func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func (c *Config) validate() error {
	// Set XDG-compliant defaults before validation
	if c.Paths.MemoryDir == "" {
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			c.Paths.MemoryDir = filepath.Join(xdgData, "edrr", "memory")
		} else {
			home, _ := os.UserHomeDir()
			c.Paths.MemoryDir = filepath.Join(home, ".local", "share", "edrr", "memory")
		}
	} else {
		c.Paths.MemoryDir = expandTilde(c.Paths.MemoryDir)
	}

	if c.Limits.RateLimit.RequestsPerMinute == 0 {
		c.Limits = DefaultLimits()
	}

	for name := range c.Engine.PhaseThresholds {
		if _, ok := core.ParsePhase(name); !ok {
			return fmt.Errorf("%w: unknown phase %q in phase_thresholds", core.ErrInvalidConfig, name)
		}
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// CoreConfig converts the file representation into the coordinator's config.
func (c *Config) CoreConfig() core.Config {
	out := core.Config{
		QualityThreshold:     c.Engine.QualityThreshold,
		MaxRecursionDepth:    c.Engine.MaxRecursionDepth,
		GranularityThreshold: c.Engine.GranularityThreshold,
		CostBenefitRatio:     c.Engine.CostBenefitRatio,
		ResourceLimit:        c.Engine.ResourceLimit,
		EnhancedTracing:      c.Engine.EnhancedTracing,
	}
	if len(c.Engine.PhaseThresholds) > 0 {
		out.PhaseThresholds = make(map[core.Phase]float64, len(c.Engine.PhaseThresholds))
		for name, threshold := range c.Engine.PhaseThresholds {
			if phase, ok := core.ParsePhase(name); ok {
				out.PhaseThresholds[phase] = threshold
			}
		}
	}
	return out
}

// LoopConfig converts the limits into the reasoning loop's config. A zero
// TotalTimeout maps to an unbounded budget.
func (c *Config) LoopConfig() team.LoopConfig {
	out := team.LoopConfig{
		MaxIterations: c.Limits.MaxIterations,
		MaxTotal:      team.NoTimeBudget,
		RetryAttempts: c.Limits.RetryAttempts,
		RetryBackoff:  c.Limits.RetryBackoff,
	}
	if c.Limits.TotalTimeout > 0 {
		out.MaxTotal = c.Limits.TotalTimeout
	}
	return out
}

// Save writes the config as YAML, creating parent directories as needed.
func Save(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(configPath, data, 0644)
}
