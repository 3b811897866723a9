package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "Asia/Tokyo"

	configPathEnv       = "SUBSIDYSCAN_CONFIG"
	databaseDSNEnv      = "DATABASE_DSN"
	registryBaseURLEnv  = "REGISTRY_BASE_URL"
	extractionAPIKeyEnv = "EXTRACTION_API_KEY"
	extractionModelEnv  = "EXTRACTION_MODEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Registry   RegistryConfig   `yaml:"registry"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN selects
// the in-memory store for local runs.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RegistryConfig points at the upstream subsidy registry API.
type RegistryConfig struct {
	BaseURL        string `yaml:"baseUrl"`
	Keyword        string `yaml:"keyword"`
	Sort           string `yaml:"sort"`
	AcceptanceOnly bool   `yaml:"acceptanceOnly"`
}

// ExtractionConfig defines how to contact the extraction service. An absent
// APIKey is a valid state that switches the extractor into fallback mode.
type ExtractionConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// PipelineConfig bounds a single invocation.
type PipelineConfig struct {
	BatchSize         int `yaml:"batchSize"`
	TimeBudgetSeconds int `yaml:"timeBudgetSeconds"`
}

// TimeBudget returns the wall-clock safety threshold as a duration.
func (p PipelineConfig) TimeBudget() time.Duration {
	return time.Duration(p.TimeBudgetSeconds) * time.Second
}

// SchedulerConfig defines when ingestion runs are triggered.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// LoggingConfig selects level and optional JSON log file.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(registryBaseURLEnv); v != "" {
		c.Registry.BaseURL = v
	}
	if v := os.Getenv(extractionAPIKeyEnv); v != "" {
		c.Extraction.APIKey = v
	}
	if v := os.Getenv(extractionModelEnv); v != "" {
		c.Extraction.Model = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Registry.BaseURL != "" {
		base.Registry.BaseURL = override.Registry.BaseURL
	}
	if override.Registry.Keyword != "" {
		base.Registry.Keyword = override.Registry.Keyword
	}
	if override.Registry.Sort != "" {
		base.Registry.Sort = override.Registry.Sort
	}
	if override.Registry.AcceptanceOnly {
		base.Registry.AcceptanceOnly = true
	}

	if override.Extraction.Endpoint != "" {
		base.Extraction.Endpoint = override.Extraction.Endpoint
	}
	if override.Extraction.Model != "" {
		base.Extraction.Model = override.Extraction.Model
	}
	if override.Extraction.APIKey != "" {
		base.Extraction.APIKey = override.Extraction.APIKey
	}

	if override.Pipeline.BatchSize > 0 {
		base.Pipeline.BatchSize = override.Pipeline.BatchSize
	}
	if override.Pipeline.TimeBudgetSeconds > 0 {
		base.Pipeline.TimeBudgetSeconds = override.Pipeline.TimeBudgetSeconds
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database: DatabaseConfig{DSN: ""},
		Registry: RegistryConfig{
			BaseURL:        "https://api.jgrants-portal.go.jp/exp/v1/public",
			Sort:           "acceptance_end_datetime",
			AcceptanceOnly: true,
		},
		Extraction: ExtractionConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
		},
		Pipeline: PipelineConfig{
			BatchSize:         10,
			TimeBudgetSeconds: 50,
		},
		Scheduler: SchedulerConfig{
			CronExpression: "*/5 * * * *",
			Timezone:       defaultTimezone,
			location:       tz,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
