package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port     int    `env:"TEST_CFG_PORT" envDefault:"8080"`
	Host     string `env:"TEST_CFG_HOST" envDefault:"localhost"`
	LogLevel string `env:"TEST_CFG_LOG_LEVEL" envDefault:"info"`
	Debug    bool   `env:"TEST_CFG_DEBUG" envDefault:"false"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Debug)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_HOST", "0.0.0.0")
	t.Setenv("TEST_CFG_DEBUG", "true")

	var cfg testConfig
	err := Load(&cfg)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.True(t, cfg.Debug)
}

type requiredConfig struct {
	MongoURI string `env:"TEST_CFG_MONGO_URI,required"`
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_InvalidType(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	err := LoadDotEnv(filepath.Join(t.TempDir(), "nope.env"))
	require.NoError(t, err)
}

func TestLoadDotEnv_PopulatesEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_CFG_HOST=from-dotenv\nTEST_CFG_PORT=7070\n"), 0o600))

	// Register cleanup for variables godotenv sets directly.
	t.Setenv("TEST_CFG_HOST", "")
	require.NoError(t, os.Unsetenv("TEST_CFG_HOST"))
	t.Setenv("TEST_CFG_PORT", "")
	require.NoError(t, os.Unsetenv("TEST_CFG_PORT"))

	require.NoError(t, LoadDotEnv(path))

	var cfg testConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, "from-dotenv", cfg.Host)
	assert.Equal(t, 7070, cfg.Port)
}

func TestLoadDotEnv_DoesNotOverrideExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_CFG_HOST=from-dotenv\n"), 0o600))
	t.Setenv("TEST_CFG_HOST", "from-shell")

	require.NoError(t, LoadDotEnv(path))

	var cfg testConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, "from-shell", cfg.Host)
}
