package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"sparkledger/native/spark"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8547", cfg.ListenAddress)
	require.Equal(t, uint8(spark.DefaultLossRatio), cfg.LossRatio)
	require.Equal(t, spark.ShillPolicyReject, cfg.ShillPolicy())
	require.Equal(t, spark.RoyaltyToRoot, cfg.Routing())
	require.Equal(t, common.Address{}, cfg.DAO())
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
ListenAddress = ":9000"
LossRatio = 80
DAOFee = 2
DAOAddress = "0x0000000000000000000000000000000000000f02"
ExhaustedShillPolicy = "owner-mint"
RoyaltyRouting = "father"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddress)
	require.Equal(t, uint8(80), cfg.LossRatio)
	require.Equal(t, uint8(2), cfg.DAOFee)
	require.Equal(t, spark.ShillPolicyOwnerMint, cfg.ShillPolicy())
	require.Equal(t, spark.RoyaltyToFather, cfg.Routing())
	require.Equal(t, common.HexToAddress("0x0000000000000000000000000000000000000f02"), cfg.DAO())
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.LossRatio = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.DAOFee = 101
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.VaultAddress = "not-an-address"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.ExhaustedShillPolicy = "maybe"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.RoyaltyRouting = "sideways"
	require.Error(t, cfg.Validate())

	require.NoError(t, Default().Validate())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `LossRatio = 120`)
	_, err := Load(path)
	require.Error(t, err)
}
