// Package config loads the YAML service configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"

	"claimcast/logging"
)

// APIKeyEnv overrides llm.api_key when set.
const APIKeyEnv = "GROQ_API_KEY"

// Data source formats.
const (
	FormatCSV      = "csv"
	FormatParquet  = "parquet"
	FormatPostgres = "postgres"
)

type Config struct {
	HTTP struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"http"`
	Data struct {
		Path     string `yaml:"path"`
		Format   string `yaml:"format"`
		Postgres struct {
			DSN   string `yaml:"dsn"`
			Table string `yaml:"table"`
		} `yaml:"postgres"`
	} `yaml:"data"`
	Model struct {
		Path            string `yaml:"path"`
		MinTrainingRows int    `yaml:"min_training_rows"`
		MinInsightRows  int    `yaml:"min_insight_rows"`
		Watch           bool   `yaml:"watch"`
	} `yaml:"model"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	LLM struct {
		Provider    string        `yaml:"provider"`
		BaseURL     string        `yaml:"base_url"`
		APIKey      string        `yaml:"api_key"`
		Model       string        `yaml:"model"`
		Timeout     time.Duration `yaml:"timeout"`
		MaxTokens   int           `yaml:"max_tokens"`
		Temperature float64       `yaml:"temperature"`
		DailyLimit  int           `yaml:"daily_limit"`
	} `yaml:"llm"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
	Log logging.Config `yaml:"log"`
}

// Default returns a configuration that serves data/claims.csv on port 3001.
func Default() *Config {
	c := &Config{}
	c.HTTP.Port = 3001
	c.HTTP.Timeout = 30 * time.Second
	c.HTTP.AllowedOrigins = []string{"*"}
	c.Data.Path = "data/claims.csv"
	c.Data.Format = FormatCSV
	c.Data.Postgres.Table = "claims"
	c.Model.Path = "models/segments.json.gz"
	c.Model.MinTrainingRows = 100
	c.Model.MinInsightRows = 365
	c.Database.Path = "claimcast.db"
	c.LLM.Provider = "groq"
	c.LLM.Model = "llama3-8b-8192"
	c.LLM.Timeout = 20 * time.Second
	c.LLM.MaxTokens = 500
	c.LLM.Temperature = 0.3
	c.LLM.DailyLimit = 100
	c.Cache.Size = 4096
	c.Log.Level = "info"
	c.Log.Encoding = "json"
	c.Log.MaxSizeMB = 100
	c.Log.MaxBackups = 5
	c.Log.MaxAgeDays = 28
	return c
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if key := strings.TrimSpace(getenv(APIKeyEnv)); key != "" {
		c.LLM.APIKey = key
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("http.port %d out of range", c.HTTP.Port))
	}
	if c.HTTP.Timeout < 0 {
		err = multierr.Append(err, errors.New("http.timeout must not be negative"))
	}

	switch c.Data.Format {
	case FormatCSV, FormatParquet:
		if c.Data.Path == "" {
			err = multierr.Append(err, errors.New("data.path is required"))
		}
	case FormatPostgres:
		if c.Data.Postgres.DSN == "" {
			err = multierr.Append(err, errors.New("data.postgres.dsn is required"))
		}
		if c.Data.Postgres.Table == "" {
			err = multierr.Append(err, errors.New("data.postgres.table is required"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("data.format %q must be csv, parquet or postgres", c.Data.Format))
	}

	if c.Model.MinTrainingRows <= 0 {
		err = multierr.Append(err, errors.New("model.min_training_rows must be positive"))
	}
	if c.Model.MinInsightRows <= 0 {
		err = multierr.Append(err, errors.New("model.min_insight_rows must be positive"))
	}
	if c.LLM.DailyLimit < 0 {
		err = multierr.Append(err, errors.New("llm.daily_limit must not be negative"))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		err = multierr.Append(err, fmt.Errorf("llm.temperature %.2f outside [0, 2]", c.LLM.Temperature))
	}
	if c.Cache.Size <= 0 {
		err = multierr.Append(err, errors.New("cache.size must be positive"))
	}
	if _, lerr := logging.ParseLevel(c.Log.Level); lerr != nil {
		err = multierr.Append(err, lerr)
	}
	return err
}
