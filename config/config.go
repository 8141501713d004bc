package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"

	"sparkledger/native/spark"
)

// Config is the operator-facing configuration of the ledger service, loaded
// from TOML.
type Config struct {
	ListenAddress        string `toml:"ListenAddress"`
	DataDir              string `toml:"DataDir"`
	EventJournal         string `toml:"EventJournal"`
	LogFile              string `toml:"LogFile"`
	GatewayPrefix        string `toml:"GatewayPrefix"`
	LossRatio            uint8  `toml:"LossRatio"`
	DAOFee               uint8  `toml:"DAOFee"`
	DAOAddress           string `toml:"DAOAddress"`
	VaultAddress         string `toml:"VaultAddress"`
	ExhaustedShillPolicy string `toml:"ExhaustedShillPolicy"`
	RoyaltyRouting       string `toml:"RoyaltyRouting"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		ListenAddress:        ":8547",
		DataDir:              "./spark-data",
		EventJournal:         "",
		GatewayPrefix:        "https://ipfs.io/ipfs/",
		LossRatio:            spark.DefaultLossRatio,
		DAOFee:               0,
		VaultAddress:         "0x0000000000000000000000000000000000000f01",
		ExhaustedShillPolicy: "reject",
		RoyaltyRouting:       "root",
	}
}

// Load reads the TOML file at path, layering it over the defaults. A missing
// file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges and enum fields.
func (c Config) Validate() error {
	if c.LossRatio == 0 || c.LossRatio > 100 {
		return fmt.Errorf("config: LossRatio must be in [1,100], got %d", c.LossRatio)
	}
	if c.DAOFee > 100 {
		return fmt.Errorf("config: DAOFee must be <= 100, got %d", c.DAOFee)
	}
	if c.VaultAddress == "" || !common.IsHexAddress(c.VaultAddress) {
		return fmt.Errorf("config: VaultAddress %q is not a hex address", c.VaultAddress)
	}
	if c.DAOAddress != "" && !common.IsHexAddress(c.DAOAddress) {
		return fmt.Errorf("config: DAOAddress %q is not a hex address", c.DAOAddress)
	}
	switch c.ExhaustedShillPolicy {
	case "reject", "owner-mint":
	default:
		return fmt.Errorf("config: ExhaustedShillPolicy must be reject or owner-mint, got %q", c.ExhaustedShillPolicy)
	}
	switch c.RoyaltyRouting {
	case "root", "father":
	default:
		return fmt.Errorf("config: RoyaltyRouting must be root or father, got %q", c.RoyaltyRouting)
	}
	return nil
}

// ShillPolicy maps the configured policy string onto the engine enum.
func (c Config) ShillPolicy() spark.ExhaustedShillPolicy {
	if c.ExhaustedShillPolicy == "owner-mint" {
		return spark.ShillPolicyOwnerMint
	}
	return spark.ShillPolicyReject
}

// Routing maps the configured routing string onto the engine enum.
func (c Config) Routing() spark.RoyaltyRouting {
	if c.RoyaltyRouting == "father" {
		return spark.RoyaltyToFather
	}
	return spark.RoyaltyToRoot
}

// Vault returns the parsed vault address.
func (c Config) Vault() common.Address {
	return common.HexToAddress(c.VaultAddress)
}

// DAO returns the parsed DAO address, zero when unset.
func (c Config) DAO() common.Address {
	if c.DAOAddress == "" {
		return common.Address{}
	}
	return common.HexToAddress(c.DAOAddress)
}
