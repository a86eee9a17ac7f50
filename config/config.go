package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the daemon's TOML-backed configuration. Empty fields fall back to
// defaults in Load; Validate rejects combinations the engines cannot run
// with.
type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	NetworkName string `toml:"NetworkName"`
	Environment string `toml:"Environment"`
	LogFile     string `toml:"LogFile"`
	RPCToken    string `toml:"RPCToken"`

	Owner           string `toml:"Owner"`
	LenderMaster    string `toml:"LenderMaster"`
	RenterMaster    string `toml:"RenterMaster"`
	TokenCap        string `toml:"TokenCap"`
	PriceFeedAnswer string `toml:"PriceFeedAnswer"`

	Params Params `toml:"params"`
}

// Params carries the tunable rental economics surfaced to operators. Zero
// values defer to the engine defaults.
type Params struct {
	LeadTimeSeconds      int64  `toml:"LeadTimeSeconds"`
	MinWindowSeconds     int64  `toml:"MinWindowSeconds"`
	MaxWindowSeconds     int64  `toml:"MaxWindowSeconds"`
	RenterProposalCap    uint32 `toml:"RenterProposalCap"`
	LenderProposalCap    uint32 `toml:"LenderProposalCap"`
	MaxActiveRentals     uint32 `toml:"MaxActiveRentals"`
	RewardDivisor        int64  `toml:"RewardDivisor"`
	ReturnTokenTTL       int64  `toml:"ReturnTokenTTL"`
	CooldownSeconds      int64  `toml:"CooldownSeconds"`
	DefaultMaxRentalDays uint32 `toml:"DefaultMaxRentalDays"`
}

// Load reads the configuration at path, creating a default file when none
// exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./w2rd-data"
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = "w2r-local"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "dev"
	}
}

// Validate rejects configurations the daemon cannot serve.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Owner) == "" {
		return fmt.Errorf("config: Owner address is required")
	}
	if c.Params.MinWindowSeconds > 0 && c.Params.MaxWindowSeconds > 0 &&
		c.Params.MaxWindowSeconds < c.Params.MinWindowSeconds {
		return fmt.Errorf("config: MaxWindowSeconds below MinWindowSeconds")
	}
	if c.Params.LeadTimeSeconds < 0 || c.Params.ReturnTokenTTL < 0 || c.Params.CooldownSeconds < 0 {
		return fmt.Errorf("config: negative durations are not allowed")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		Owner: "0x0000000000000000000000000000000000000001",
	}
	cfg.applyDefaults()

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
