package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads; viper treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, names := range envKeys {
		for _, n := range names {
			t.Setenv(n, "")
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROJECT_DIR", t.TempDir())

	cfg, err := Load(nil)
	require.NoError(t, err)

	d := Defaults()
	assert.Equal(t, d.ContainerName, cfg.ContainerName)
	assert.Equal(t, d.ChainID, cfg.ChainID)
	assert.Equal(t, d.HomeDir, cfg.HomeDir)
	assert.Equal(t, d.BinPath, cfg.BinPath)
	assert.Equal(t, 3*time.Second, cfg.GraceDelay)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROJECT_DIR", t.TempDir())
	t.Setenv("CHAIN_ID", "push_9000-1")
	t.Setenv("PCHAIN_BIN", "/usr/bin/pchaind")
	t.Setenv("GRACE_DELAY", "500ms")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "push_9000-1", cfg.ChainID)
	assert.Equal(t, "/usr/bin/pchaind", cfg.BinPath)
	assert.Equal(t, 500*time.Millisecond, cfg.GraceDelay)
}

func TestLoad_FlagsWinOverEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("PROJECT_DIR", dir)
	t.Setenv("CONTAINER_NAME", "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("container", "", "")
	fs.String("home", "", "")
	require.NoError(t, fs.Parse([]string{"--container", "from-flag"}))

	cfg, err := Load(fs)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.ContainerName)
	// unchanged flag does not shadow the default
	assert.Equal(t, "/root/.pchain", cfg.HomeDir)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DENOM=npush\n"), 0o600))
	t.Setenv("PROJECT_DIR", dir)
	// registers restore of DENOM, which godotenv sets below
	t.Setenv("DENOM", "")
	require.NoError(t, os.Unsetenv("DENOM"))

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "npush", cfg.Denom)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no container", func(c *Config) { c.ContainerName = "" }, "container name must not be empty"},
		{"no bin", func(c *Config) { c.BinPath = "" }, "node binary must not be empty"},
		{"no chain", func(c *Config) { c.ChainID = "" }, "chain id must not be empty"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "log format must be 'json' or 'console'"},
		{"negative delay", func(c *Config) { c.GraceDelay = -time.Second }, "grace delay must not be negative"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tc.errorMsg)
		})
	}
}

func TestPaths(t *testing.T) {
	cfg := Defaults()
	cfg.ProjectDir = "/srv/node"
	assert.Equal(t, "/srv/node/docker-compose.yml", cfg.ComposePath())
	assert.Equal(t, "/srv/node/node.env", cfg.StorePath())

	cfg.StoreFile = "/etc/push/node.env"
	assert.Equal(t, "/etc/push/node.env", cfg.StorePath())
}
