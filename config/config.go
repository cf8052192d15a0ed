package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the deployment settings of the claim ledger.
type Config struct {
	DataDir     string `toml:"DataDir"`
	Env         string `toml:"Env"`
	RewardToken string `toml:"RewardToken"`
	IssuerName  string `toml:"IssuerName"`
	LogLevel    string `toml:"LogLevel"`
}

const (
	defaultDataDir  = "./claimledger-data"
	defaultEnv      = "local"
	defaultLogLevel = "info"
)

// Load loads the configuration from the given path, creating a default file
// when none exists.
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
		return nil, fmt.Errorf("config file %s contains unknown key %q", path, undecoded[0].String())
	}

	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = defaultDataDir
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = defaultEnv
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = defaultLogLevel
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.RewardToken) == "" {
		return fmt.Errorf("config: RewardToken must be set")
	}
	if strings.TrimSpace(cfg.IssuerName) == "" {
		return fmt.Errorf("config: IssuerName must be set")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		DataDir:     defaultDataDir,
		Env:         defaultEnv,
		RewardToken: "DEXTR",
		IssuerName:  "claim-issuer",
		LogLevel:    defaultLogLevel,
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
