package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/store"
	"github.com/mev-core/brontes/types"
)

// analyticsCommand groups cross-block reporting surfaces that read
// already-persisted MevBlocks/Bundles rather than driving the pipeline
// (spec.md §6.3 "analytics vi-builders").
func analyticsCommand() *cli.Command {
	return &cli.Command{
		Name: "analytics",
		Subcommands: []*cli.Command{
			viBuildersCommand(),
		},
	}
}

// searcherTally is one searcher contract's running bundle_count and the
// set of distinct builder addresses its bundles landed in across the
// analyzed range, mirroring get_vertically_integrated_searchers'
// searcher_to_builder_map.
type searcherTally struct {
	bundleCount int
	builders    map[common.Address]struct{}
}

func viBuildersCommand() *cli.Command {
	return &cli.Command{
		Name:  "vi-builders",
		Usage: "identify searcher contracts whose bundles only ever land in one builder's blocks",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "start-block", Required: true},
			&cli.Uint64Flag{Name: "end-block", Required: true},
			&cli.IntFlag{Name: "min-bundles", Value: 10, Usage: "minimum in-range bundle count to consider a searcher (spec.md: >10)"},
		},
		Action: viBuildersAction,
	}
}

func viBuildersAction(c *cli.Context) error {
	db, err := openStoreFromFlags(c, false)
	if err != nil {
		return cli.Exit(err, exitInvalidArgs)
	}
	defer db.Close()

	tx, err := db.ROTx(c.Context)
	if err != nil {
		return cli.Exit(err, exitIOFailure)
	}
	reader := store.NewReader(tx)

	tallies := make(map[common.Address]*searcherTally)
	start, end := c.Uint64("start-block"), c.Uint64("end-block")
	for b := start; b <= end; b++ {
		row, ok, err := reader.MevBlock(b)
		if err != nil {
			tx.Rollback()
			return cli.Exit(err, exitIOFailure)
		}
		if !ok || row.Block.BuilderAddress == nil {
			continue
		}
		builder := *row.Block.BuilderAddress
		for _, bundle := range row.Bundles {
			searcher := bundle.Header.MevContract
			if searcher == nil {
				continue
			}
			t, ok := tallies[*searcher]
			if !ok {
				t = &searcherTally{builders: make(map[common.Address]struct{})}
				tallies[*searcher] = t
			}
			t.bundleCount++
			t.builders[builder] = struct{}{}
		}
	}
	tx.Rollback()

	minBundles := c.Int("min-bundles")
	pairs := make(map[common.Address]common.Address) // searcher -> builder
	for searcher, t := range tallies {
		if t.bundleCount > minBundles && len(t.builders) == 1 {
			for builder := range t.builders {
				pairs[searcher] = builder
			}
		}
	}

	if len(pairs) == 0 {
		fmt.Println("no vertically integrated searcher-builder pairs found")
		return nil
	}

	rw, err := db.RwTx(c.Context)
	if err != nil {
		return cli.Exit(err, exitIOFailure)
	}
	defer rw.Rollback()
	writer := store.NewWriter(rw)

	for searcher, builder := range pairs {
		row, ok, err := writer.BuilderForUpdate(builder)
		if err != nil {
			return cli.Exit(err, exitIOFailure)
		}
		if !ok {
			row = store.BuilderRow{}
		}
		if !containsAddress(row.KnownSearcherContracts, searcher) {
			row.KnownSearcherContracts = append(row.KnownSearcherContracts, searcher)
		}
		if err := writer.PutBuilder(builder, row); err != nil {
			return cli.Exit(err, exitIOFailure)
		}
		fmt.Printf("searcher %s <-> builder %s (%d bundles)\n", searcher, builder, tallies[searcher].bundleCount)
	}
	if err := rw.Commit(); err != nil {
		return cli.Exit(err, exitIOFailure)
	}
	return nil
}

func readBuilderForUpdate(tx *store.RwTx, addr common.Address) (store.BuilderRow, bool, error) {
	return store.GetRw(tx, store.BuilderTable(), addr)
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

var _ = types.MevUnknown
