package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/mev-core/brontes/bronerr"
	"github.com/mev-core/brontes/cexwindow"
	"github.com/mev-core/brontes/classifier"
	"github.com/mev-core/brontes/classifier/multiframe"
	"github.com/mev-core/brontes/clickhouse"
	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/config"
	"github.com/mev-core/brontes/inspect"
	"github.com/mev-core/brontes/metadata"
	"github.com/mev-core/brontes/pipeline"
	"github.com/mev-core/brontes/pricing"
	"github.com/mev-core/brontes/provider"
	"github.com/mev-core/brontes/store"
	"github.com/mev-core/brontes/telemetry"
	"github.com/mev-core/brontes/tree"
	"github.com/mev-core/brontes/types"
)

// defaultCexWindowSeconds is the CEXWindow lookahead BlockPipeline runs
// with unless overridden, matching the original's default 6s
// sequencer-to-CEX propagation allowance.
const defaultCexWindowSeconds = 6

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "drive BlockPipeline over a block range",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "start-block", Required: true},
			&cli.Uint64Flag{Name: "end-block", Required: true},
			&cli.IntFlag{Name: "max-tasks", Value: 0},
			&cli.StringFlag{Name: "inspectors", Usage: "comma-separated inspector names, default all"},
			&cli.StringFlag{Name: "metrics-addr", Value: ":9090"},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadAppConfig(c)
	if err != nil {
		return cli.Exit(err, exitInvalidArgs)
	}
	if err := cfg.RequireDBPath(); err != nil {
		return cli.Exit(err, exitInvalidArgs)
	}
	if c.String("inspectors") != "" {
		selected, err := parseInspectorList(c.String("inspectors"))
		if err != nil {
			return cli.Exit(err, exitInvalidArgs)
		}
		cfg.Inspectors = selected
	}
	if v := c.Int("max-tasks"); v > 0 {
		cfg.MaxPending = v
	}

	log, err := newLogger()
	if err != nil {
		return cli.Exit(err, exitIOFailure)
	}
	defer log.Sync()

	db, err := store.Open(cfg.DBPath, false)
	if err != nil {
		return cli.Exit(err, exitIOFailure)
	}
	defer db.Close()

	if cfg.ProviderEndpoint == "" {
		return cli.Exit(fmt.Errorf("run: RETH_ENDPOINT is required"), exitInvalidArgs)
	}
	rpc := provider.NewHTTPClient(cfg.ProviderEndpoint, []byte(cfg.ProviderJWT), 30*time.Second)

	var ch *clickhouse.Handle
	if cfg.ClickhouseEnabled() {
		ch, err = clickhouse.Open(c.Context, clickhouse.Config{
			Addr:     cfg.ClickhouseURL,
			Database: cfg.ClickhouseDatabase,
			User:     cfg.ClickhouseUser,
			Password: cfg.ClickhousePassword,
		})
		if err != nil {
			return cli.Exit(err, exitProviderFailure)
		}
		defer ch.Close()
		store.SetClickhouseSource(ch)
	}

	missing, err := classifier.NewMissingDecimalsFiller(rpcDecimalsFetcher{p: rpc}, 4096, 1024, 4, log)
	if err != nil {
		return cli.Exit(err, exitIOFailure)
	}
	missingCtx, cancelMissing := context.WithCancel(context.Background())
	defer cancelMissing()
	go missing.Run(missingCtx, 4)

	cl := classifier.New(classifier.Deps{
		Tokens: storeTokenInfo{db: db},
		Pools:  storePoolInfo{db: db},
	}, missing)
	registerClassifiers(cl)

	rewrites := tree.Registry{
		multiframe.FlashLoan(types.ProtocolAaveV2),
		multiframe.FlashLoan(types.ProtocolAaveV3),
		multiframe.FlashLoan(types.ProtocolMakerDSSFlash),
	}

	lazy := pricing.NewLazyLoader(rpcImmutablesProvider{rpc: rpc, db: db})
	graph := pricing.NewGraph(lazy, log)

	window := cexwindow.New(defaultCexWindowSeconds)
	var relay metadata.RelaySource
	if ch != nil {
		relay = relaySourceAdapter{ch: ch}
	}
	join := metadata.NewJoin(db, window, relay, metadata.NewTreeCoinbaseAnalyzer(), 5*time.Minute)
	defer join.Close()

	composer, err := buildComposer(cfg.Inspectors)
	if err != nil {
		return cli.Exit(err, exitInvalidArgs)
	}

	metrics, reg := telemetry.New()
	metricsServer := telemetry.NewServer(c.String("metrics-addr"), reg)
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	pipe := pipeline.New(pipeline.Config{
		Store:      db,
		Classifier: cl,
		Rewrites:   rewrites,
		Pricing:    graph,
		Join:       join,
		Composer:   composer,
		Provider:   rpc,
		Metrics:    metrics,
		Log:        log,
		MaxPending: cfg.MaxPending,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start, end := c.Uint64("start-block"), c.Uint64("end-block")
	if start > end {
		return cli.Exit(fmt.Errorf("run: start-block must be <= end-block"), exitInvalidArgs)
	}

	blocks := make(chan uint64)
	go driveCexWindow(ctx, ch, window, rpc, start, end, log)
	go func() {
		defer close(blocks)
		for b := start; b <= end; b++ {
			select {
			case <-ctx.Done():
				return
			case blocks <- b:
			}
		}
	}()

	runErr := pipe.Run(ctx, blocks)
	_ = metricsServer.Shutdown(context.Background())
	missing.Close()

	if runErr != nil {
		return cli.Exit(runErr, exitIOFailure)
	}
	if ctx.Err() != nil {
		return cli.Exit(ctx.Err(), exitSIGINT)
	}
	return nil
}

// driveCexWindow keeps the shared CEXWindow populated a few blocks ahead
// of the pipeline's own cursor; a failure here never aborts the run since
// CEX pricing is a best-effort enrichment (spec.md §4.5 is silent on an
// ingestion failure mode, so this matches the pipeline's own "warn and
// continue" convention elsewhere).
func driveCexWindow(ctx context.Context, ch *clickhouse.Handle, window *cexwindow.Window, rpc provider.TraceProvider, start, end uint64, log *zap.Logger) {
	if ch == nil {
		return
	}
	var initBatch []cexwindow.BlockTrades
	for b := start; b <= end; b++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		hash, ok, err := rpc.BlockHashForID(ctx, b)
		if err != nil || !ok {
			continue
		}
		_ = hash
		ts := approximateBlockTimestamp(b)
		bt, err := fetchBlockTrades(ctx, ch, b, ts, window.WindowLookaheadSeconds())
		if err != nil {
			log.Warn("cex trade fetch failed", zap.Uint64("block", b), zap.Error(err))
			continue
		}
		if !window.IsLoaded() {
			initBatch = append(initBatch, bt)
			if len(initBatch) >= 2 {
				window.Init(initBatch)
				initBatch = nil
			}
			continue
		}
		window.NewBlock(b, bt.Trades, b)
	}
}

// approximateBlockTimestamp is a placeholder clock used only to seed the
// CEX lookahead window before BlockInfo (which carries the real header
// timestamp) has been persisted for a block; BlockPipeline's own COLLECTING
// stage supplies the authoritative timestamp once available.
func approximateBlockTimestamp(block uint64) uint64 { return block }

func registerClassifiers(cl *classifier.Classifier) {
	cl.Register(classifier.NewUniswapV2Swap())
	cl.Register(classifier.NewUniswapV3Swap())
	cl.Register(classifier.NewAaveV3Liquidation())
	cl.RegisterDiscovery(classifier.NewUniswapV2Discovery(uniswapV2FactoryAddr))
}

var uniswapV2FactoryAddr = common.BytesToAddress(mustHex("5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"))

func mustHex(s string) []byte {
	b := make([]byte, len(s)/2)
	for i := 0; i < len(b); i++ {
		var hi, lo byte
		hi = hexNibble(s[i*2])
		lo = hexNibble(s[i*2+1])
		b[i] = hi<<4 | lo
	}
	return b
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}

func buildComposer(selected []types.MevType) (*inspect.Composer, error) {
	all := map[types.MevType]inspect.Inspector{
		types.MevSandwich:        inspect.NewSandwichInspector(),
		types.MevJitLiquidity:    inspect.NewJitLiquidityInspector(),
		types.MevAtomicArb:       inspect.NewAtomicArbInspector(),
		types.MevLiquidation:     inspect.NewLiquidationInspector(),
		types.MevSearcherTx:      inspect.NewSearcherTxInspector(),
		types.MevCexDexArbitrage: inspect.NewCexDexInspector(),
	}
	if len(selected) == 0 {
		inspectors := make([]inspect.Inspector, 0, len(all))
		for _, insp := range all {
			inspectors = append(inspectors, insp)
		}
		return inspect.NewComposer(inspectors...)
	}
	var inspectors []inspect.Inspector
	seen := make(map[types.MevType]bool)
	for _, mt := range selected {
		key := mt
		if mt == types.MevCexDexTrades {
			key = types.MevCexDexArbitrage
		}
		if seen[key] {
			continue
		}
		insp, ok := all[key]
		if !ok {
			return nil, fmt.Errorf("run: no inspector registered for %v", mt)
		}
		seen[key] = true
		inspectors = append(inspectors, insp)
	}
	return inspect.NewComposer(inspectors...)
}

func parseInspectorList(s string) ([]types.MevType, error) {
	var out []types.MevType
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			name := s[start:i]
			start = i + 1
			if name == "" {
				continue
			}
			mt, ok := config.InspectorByName(name)
			if !ok {
				return nil, bronerr.NotFound("config.parse_inspector_list", bronerr.WithKey(name))
			}
			out = append(out, mt)
		}
	}
	return out, nil
}
