package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds user/system configuration for the node tooling.
// Values resolve as: defaults < project .env < environment < flags.
type Config struct {
	ProjectDir      string        // directory holding the compose file and the store
	ComposeFile     string        // compose file, relative to ProjectDir unless absolute
	ContainerName   string        // name of the node container
	StoreFile       string        // KEY=VALUE store with ports and moniker
	HomeDir         string        // node home inside the container
	BinPath         string        // node binary inside the container
	ChainID         string
	KeyringBackend  string
	Denom           string        // staking denom (e.g., upc)
	GenesisURL      string
	Seeds           string
	PersistentPeers string
	FaucetURL       string
	LogLevel        string
	LogFormat       string
	GraceDelay      time.Duration // wait after stopping a prior container before probing ports
}

// flag name -> config key
var flagKeys = map[string]string{
	"project-dir":  "project_dir",
	"compose-file": "compose_file",
	"container":    "container_name",
	"store":        "store_file",
	"home":         "home_dir",
	"bin":          "bin",
	"chain-id":     "chain_id",
	"log-level":    "log_level",
	"log-format":   "log_format",
}

// config key -> environment variables, first match wins
var envKeys = map[string][]string{
	"project_dir":      {"PROJECT_DIR"},
	"compose_file":     {"COMPOSE_FILE"},
	"container_name":   {"CONTAINER_NAME"},
	"store_file":       {"STORE_FILE"},
	"home_dir":         {"HOME_DIR"},
	"bin":              {"PCHAIND", "PCHAIN_BIN"},
	"chain_id":         {"CHAIN_ID"},
	"keyring_backend":  {"KEYRING_BACKEND"},
	"denom":            {"DENOM"},
	"genesis_url":      {"GENESIS_URL"},
	"seeds":            {"SEEDS"},
	"persistent_peers": {"PERSISTENT_PEERS"},
	"faucet_url":       {"FAUCET_URL"},
	"log_level":        {"LOG_LEVEL"},
	"log_format":       {"LOG_FORMAT"},
	"grace_delay":      {"GRACE_DELAY"},
}

// Defaults sets chain-specific defaults aligned with the compose stack.
func Defaults() Config {
	return Config{
		ProjectDir:     ".",
		ComposeFile:    "docker-compose.yml",
		ContainerName:  "push-node",
		StoreFile:      "node.env",
		HomeDir:        "/root/.pchain",
		BinPath:        "pchaind",
		ChainID:        "push_42101-1",
		KeyringBackend: "test",
		Denom:          "upc",
		GenesisURL:     "https://rpc-testnet-donut-node1.push.org/genesis",
		FaucetURL:      "https://faucet.push.org",
		LogLevel:       "info",
		LogFormat:      "console",
		GraceDelay:     3 * time.Second,
	}
}

// Load merges defaults, the project .env file, environment variables and any
// changed flags in flags (which may be nil).
func Load(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()

	d := Defaults()
	v.SetDefault("project_dir", d.ProjectDir)
	v.SetDefault("compose_file", d.ComposeFile)
	v.SetDefault("container_name", d.ContainerName)
	v.SetDefault("store_file", d.StoreFile)
	v.SetDefault("home_dir", d.HomeDir)
	v.SetDefault("bin", d.BinPath)
	v.SetDefault("chain_id", d.ChainID)
	v.SetDefault("keyring_backend", d.KeyringBackend)
	v.SetDefault("denom", d.Denom)
	v.SetDefault("genesis_url", d.GenesisURL)
	v.SetDefault("seeds", d.Seeds)
	v.SetDefault("persistent_peers", d.PersistentPeers)
	v.SetDefault("faucet_url", d.FaucetURL)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("grace_delay", d.GraceDelay)

	for key, names := range envKeys {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag --%s: %w", name, err)
				}
			}
		}
	}

	// The .env file lives next to the compose file; it never overrides the real environment.
	envFile := filepath.Join(v.GetString("project_dir"), ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := Config{
		ProjectDir:      v.GetString("project_dir"),
		ComposeFile:     v.GetString("compose_file"),
		ContainerName:   v.GetString("container_name"),
		StoreFile:       v.GetString("store_file"),
		HomeDir:         v.GetString("home_dir"),
		BinPath:         v.GetString("bin"),
		ChainID:         v.GetString("chain_id"),
		KeyringBackend:  v.GetString("keyring_backend"),
		Denom:           v.GetString("denom"),
		GenesisURL:      v.GetString("genesis_url"),
		Seeds:           v.GetString("seeds"),
		PersistentPeers: v.GetString("persistent_peers"),
		FaucetURL:       v.GetString("faucet_url"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
		GraceDelay:      v.GetDuration("grace_delay"),
	}
	return cfg, cfg.Validate()
}

// Validate checks required fields.
func (c Config) Validate() error {
	if c.ContainerName == "" {
		return fmt.Errorf("container name must not be empty")
	}
	if c.BinPath == "" {
		return fmt.Errorf("node binary must not be empty")
	}
	if c.ChainID == "" {
		return fmt.Errorf("chain id must not be empty")
	}
	if c.HomeDir == "" {
		return fmt.Errorf("node home must not be empty")
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}
	if c.GraceDelay < 0 {
		return fmt.Errorf("grace delay must not be negative")
	}
	return nil
}

// ComposePath returns the compose file path resolved against ProjectDir.
func (c Config) ComposePath() string {
	return c.resolve(c.ComposeFile)
}

// StorePath returns the store file path resolved against ProjectDir.
func (c Config) StorePath() string {
	return c.resolve(c.StoreFile)
}

func (c Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectDir, p)
}
