package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

const sampleYAML = `
http:
  port: 8080
  timeout: 5s
  allowed_origins: ["http://localhost:5173"]
data:
  path: data/claims.parquet
  format: parquet
model:
  path: /var/lib/claimcast/segments.json.gz
  watch: true
llm:
  api_key: from-file
  daily_limit: 20
log:
  level: debug
  encoding: console
  file: /var/log/claimcast.log
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, FormatParquet, cfg.Data.Format)
	assert.True(t, cfg.Model.Watch)
	assert.Equal(t, "from-file", cfg.LLM.APIKey)
	assert.Equal(t, 20, cfg.LLM.DailyLimit)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Unset keys keep their defaults.
	assert.Equal(t, 100, cfg.Model.MinTrainingRows)
	assert.Equal(t, 365, cfg.Model.MinInsightRows)
	assert.Equal(t, "llama3-8b-8192", cfg.LLM.Model)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.Equal(t, 0.3, cfg.LLM.Temperature)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestEnvOverridesAPIKey(t *testing.T) {
	t.Setenv(APIKeyEnv, "from-env")
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "http: [not a map"))
	assert.Error(t, err)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.HTTP.Port = 0
	cfg.Data.Format = "xlsx"
	cfg.Model.MinTrainingRows = 0
	cfg.Cache.Size = -1
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 5)

	cfg = Default()
	cfg.Data.Format = FormatPostgres
	assert.Len(t, multierr.Errors(cfg.Validate()), 1, "postgres needs a dsn")
	cfg.Data.Postgres.DSN = "postgres://localhost/claims"
	assert.NoError(t, cfg.Validate())
}

func TestShippedConfigLoads(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	cfg, err := Load(filepath.Join("..", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3001, cfg.HTTP.Port)
	assert.Equal(t, FormatCSV, cfg.Data.Format)
	assert.True(t, cfg.Log.Compress)
}
