package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mev-core/brontes/types"
)

func TestLoadReadsEnvFileIntoConfig(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"BRONTES_DB_PATH=/tmp/brontes\nRETH_ENDPOINT=http://localhost:8551\nCLICKHOUSE_URL=tcp://localhost:9000\n",
	), 0o644))
	t.Setenv("BRONTES_DB_PATH", "")
	t.Setenv("RETH_ENDPOINT", "")
	t.Setenv("CLICKHOUSE_URL", "")

	cfg, err := Load(envFile)
	require.NoError(t, err)
	require.Equal(t, "/tmp/brontes", cfg.DBPath)
	require.Equal(t, "http://localhost:8551", cfg.ProviderEndpoint)
	require.True(t, cfg.ClickhouseEnabled())
}

func TestLoadToleratesMissingEnvFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	require.NoError(t, err)
	require.False(t, cfg.ClickhouseEnabled())
}

func TestRequireDBPathErrorsWhenUnset(t *testing.T) {
	require.Error(t, Config{}.RequireDBPath())
	require.NoError(t, Config{DBPath: "/tmp/x"}.RequireDBPath())
}

func TestLoadInspectorSelectionResolvesNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inspectors.toml")
	require.NoError(t, os.WriteFile(path, []byte("inspectors = [\"sandwich\", \"atomic_arb\"]\n"), 0o644))

	mevTypes, err := LoadInspectorSelection(path)
	require.NoError(t, err)
	require.Equal(t, []types.MevType{types.MevSandwich, types.MevAtomicArb}, mevTypes)
}

func TestLoadInspectorSelectionRejectsUnknownName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inspectors.toml")
	require.NoError(t, os.WriteFile(path, []byte("inspectors = [\"not_a_real_type\"]\n"), 0o644))

	_, err := LoadInspectorSelection(path)
	require.Error(t, err)
}
