// Package config assembles Config from .env files, process environment
// and an optional TOML inspector-selection file (spec.md §6.5), the way
// the teacher layers a small struct under CLI flags rather than reaching
// for a config framework: no project in the pack uses viper, so this
// stays a plain struct populated from a handful of named sources.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/mev-core/brontes/types"
)

// Config is the fully-resolved runtime configuration a cmd/brontes
// subcommand needs: Store location, trace provider endpoint, and
// (optionally) Clickhouse connection details (spec.md §6.5).
type Config struct {
	DBPath string

	ProviderEndpoint string
	ProviderJWT      string

	ClickhouseURL      string
	ClickhouseUser     string
	ClickhousePassword string
	ClickhouseDatabase string

	// MaxPending is pipeline.Config.MaxPending; zero lets the pipeline
	// apply its own default.
	MaxPending int

	// Inspectors is the subset of MevType InspectorComposer should run,
	// nil meaning "every registered inspector" (spec.md §6.3 "run ...
	// --inspectors <comma-list>").
	Inspectors []types.MevType
}

// envKeys are spec.md §6.5's named environment variables.
const (
	envDBPath             = "BRONTES_DB_PATH"
	envProviderEndpoint   = "RETH_ENDPOINT"
	envProviderJWT        = "BRONTES_JWT_SECRET"
	envClickhouseURL      = "CLICKHOUSE_URL"
	envClickhouseUser     = "CLICKHOUSE_USER"
	envClickhousePassword = "CLICKHOUSE_PASS"
	envClickhouseDatabase = "CLICKHOUSE_DATABASE"
)

// Load reads envFile (if it exists; a missing .env is not an error, same
// as godotenv.Load's own overload semantics) into the process
// environment, then builds a Config from os.Getenv. envFile may be empty
// to skip .env loading entirely.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
			}
		}
	}

	cfg := Config{
		DBPath:             os.Getenv(envDBPath),
		ProviderEndpoint:   os.Getenv(envProviderEndpoint),
		ProviderJWT:        os.Getenv(envProviderJWT),
		ClickhouseURL:      os.Getenv(envClickhouseURL),
		ClickhouseUser:     os.Getenv(envClickhouseUser),
		ClickhousePassword: os.Getenv(envClickhousePassword),
		ClickhouseDatabase: os.Getenv(envClickhouseDatabase),
	}
	return cfg, nil
}

// RequireDBPath validates the one env var spec.md §6.5 calls out as
// "required for commands that open" the Store.
func (c Config) RequireDBPath() error {
	if c.DBPath == "" {
		return fmt.Errorf("config: %s is required", envDBPath)
	}
	return nil
}

// ClickhouseEnabled reports whether enough Clickhouse settings were
// supplied to open a clickhouse.Handle (spec.md §6.5 "when Clickhouse
// feature is enabled").
func (c Config) ClickhouseEnabled() bool {
	return c.ClickhouseURL != ""
}

// inspectorSelectionFile is the optional TOML document
// LoadInspectorSelection reads, an alternative to the flat
// `--inspectors` comma-list for long-running deployments that want the
// selection under version control. The run command does not read it; it
// takes only `--inspectors`.
type inspectorSelectionFile struct {
	Inspectors []string `toml:"inspectors"`
}

// LoadInspectorSelection parses path as TOML and resolves each named
// inspector to its types.MevType, for callers that prefer a file over
// `--inspectors a,b,c`.
func LoadInspectorSelection(path string) ([]types.MevType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read inspector selection %s: %w", path, err)
	}
	var doc inspectorSelectionFile
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse inspector selection %s: %w", path, err)
	}
	out := make([]types.MevType, 0, len(doc.Inspectors))
	for _, name := range doc.Inspectors {
		mt, ok := mevTypeByName[name]
		if !ok {
			return nil, fmt.Errorf("config: unknown inspector %q", name)
		}
		out = append(out, mt)
	}
	return out, nil
}

// InspectorByName resolves a single named inspector the same way
// LoadInspectorSelection does, for callers parsing a flat
// `--inspectors a,b,c` flag instead of a TOML selection file.
func InspectorByName(name string) (types.MevType, bool) {
	mt, ok := mevTypeByName[name]
	return mt, ok
}

var mevTypeByName = map[string]types.MevType{
	"sandwich":          types.MevSandwich,
	"jit_liquidity":     types.MevJitLiquidity,
	"jit_sandwich":      types.MevJitSandwich,
	"cex_dex_trades":    types.MevCexDexTrades,
	"cex_dex_arbitrage": types.MevCexDexArbitrage,
	"atomic_arb":        types.MevAtomicArb,
	"liquidation":       types.MevLiquidation,
	"searcher_tx":       types.MevSearcherTx,
	"unknown":           types.MevUnknown,
}
