package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/crypto"
)

// MemoryDataDir keeps all state in memory.
const MemoryDataDir = "memory"

type Config struct {
	DataDir             string    `toml:"DataDir"`
	GenesisFile         string    `toml:"GenesisFile"`
	GatewayConfig       string    `toml:"GatewayConfig"`
	KeeperKeystorePath  string    `toml:"KeeperKeystorePath"`
	KeeperPassphraseEnv string    `toml:"KeeperPassphraseEnv"`
	NetworkName         string    `toml:"NetworkName"`
	Log                 Log       `toml:"log"`
	Keeper              Keeper    `toml:"keeper"`
	Indexer             Indexer   `toml:"indexer"`
	Telemetry           Telemetry `toml:"telemetry"`
	Pauses              Pauses    `toml:"pauses"`
}

// InMemory reports whether state should live in memory only.
func (c *Config) InMemory() bool {
	dir := strings.TrimSpace(c.DataDir)
	return dir == "" || strings.EqualFold(dir, MemoryDataDir)
}

// KeeperPassphrase reads the keystore passphrase from the configured
// environment variable.
func (c *Config) KeeperPassphrase() string {
	if c.KeeperPassphraseEnv == "" {
		return ""
	}
	return os.Getenv(c.KeeperPassphraseEnv)
}

// Load loads the configuration from the given path, creating a default file
// and keeper keystore when none exist.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %s", path, undecoded[0])
	}

	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if cfg.Keeper.Enabled {
		if err := ensureKeystore(path, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.KeeperKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, cfg.KeeperPassphrase()); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.KeeperKeystorePath != keystorePath {
		cfg.KeeperKeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

// Default returns the settings written by createDefault, without a keystore.
func Default() *Config {
	cfg := &Config{
		DataDir:             "./bankd-data",
		GenesisFile:         "genesis.json",
		KeeperPassphraseEnv: "BANKD_KEEPER_PASSPHRASE",
		NetworkName:         "alpha-local",
	}
	cfg.normalise()
	return cfg
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "keeper.keystore")
}

// ResolvePath interprets a relative path against the directory of the
// config file.
func ResolvePath(configPath, target string) string {
	if target == "" || filepath.IsAbs(target) {
		return target
	}
	return filepath.Join(filepath.Dir(configPath), target)
}
