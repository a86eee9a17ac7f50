package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8645", cfg.RPCAddress)
	require.Equal(t, "w2r-local", cfg.NetworkName)
	require.FileExists(t, path)

	// Loading the generated file round-trips.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPCAddress, again.RPCAddress)
}

func TestLoadAppliesDefaultsAndParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
Owner = "0x00000000000000000000000000000000000000aa"

[params]
LeadTimeSeconds = 7200
RewardDivisor = 20
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8645", cfg.RPCAddress)
	require.Equal(t, int64(7200), cfg.Params.LeadTimeSeconds)
	require.Equal(t, int64(20), cfg.Params.RewardDivisor)
}

func TestValidateRejectsBadWindows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
Owner = "0x00000000000000000000000000000000000000aa"

[params]
MinWindowSeconds = 7200
MaxWindowSeconds = 3600
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidateRequiresOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`NetworkName = "w2r-test"`), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}
