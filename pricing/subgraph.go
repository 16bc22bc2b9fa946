package pricing

import (
	"math/big"

	"github.com/mev-core/brontes/common"
	"github.com/mev-core/brontes/types"
)

// BuildSubgraph materializes every pool edge that lies on some path of at
// most maxHops hops between pair's two (canonically ordered) tokens
// (spec.md §4.4 step 4: "materialize a subgraph of shortest paths up to a
// bounded hop count"). Forward distances are measured from the base
// token, backward distances from the quote token; an edge survives if its
// endpoints' combined distance fits within the hop budget.
func BuildSubgraph(g *Graph, pair types.Pair, maxHops int) []types.SubGraphEdge {
	ordered := pair.Ordered()
	fwd := bfsDistances(g, ordered.Token0, maxHops)
	bwd := bfsDistances(g, ordered.Token1, maxHops)

	var edges []types.SubGraphEdge
	for _, pool := range g.pools {
		t0, t1 := pool.Info.Token0, pool.Info.Token1
		if d0, ok := fwd[t0]; ok {
			if d1, ok := bwd[t1]; ok && d0+d1+1 <= maxHops {
				edges = append(edges, types.SubGraphEdge{
					PoolPairInformation: pool.Info,
					Direction:           types.DirectionZeroToOne,
					DistanceToStart:     uint8(d0),
					DistanceToEnd:       uint8(d1),
				})
			}
		}
		if d0, ok := fwd[t1]; ok {
			if d1, ok := bwd[t0]; ok && d0+d1+1 <= maxHops {
				edges = append(edges, types.SubGraphEdge{
					PoolPairInformation: pool.Info,
					Direction:           types.DirectionOneToZero,
					DistanceToStart:     uint8(d0),
					DistanceToEnd:       uint8(d1),
				})
			}
		}
	}
	return edges
}

func bfsDistances(g *Graph, source common.Address, maxHops int) map[common.Address]int {
	dist := map[common.Address]int{source: 0}
	queue := []common.Address{source}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		d := dist[cur]
		if d >= maxHops {
			continue
		}
		for _, poolAddr := range g.edgesByToken[cur] {
			pool, ok := g.pools[poolAddr]
			if !ok {
				continue
			}
			other := pool.Info.Token1
			if other == cur {
				other = pool.Info.Token0
			}
			if _, seen := dist[other]; !seen {
				dist[other] = d + 1
				queue = append(queue, other)
			}
		}
	}
	return dist
}

// pathEdge is one hop of an enumerated base->quote path, with the pool's
// quote already reoriented into that hop's direction.
type pathEdge struct {
	to    common.Address
	price *big.Rat
	// weight is this edge's liquidity proxy: the smaller of its two raw
	// reserves, used as the bottleneck weight for the path it's part of
	// (a path's effective liquidity is limited by its thinnest edge).
	weight *big.Rat
}

// ComposeTWAP enumerates simple paths through edges from pair's base to
// its quote token and aggregates them into a single liquidity-weighted
// average price — "TWAP-over-paths weighted by liquidity" (spec.md §4.4
// step 4). Each path's weight is its bottleneck (minimum) edge liquidity;
// a path contributes price * weight to the numerator and weight to the
// denominator, the standard weighted-mean construction.
func ComposeTWAP(g *Graph, edges []types.SubGraphEdge, pair types.Pair) (*big.Rat, bool) {
	ordered := pair.Ordered()
	adj := make(map[common.Address][]pathEdge)
	for _, e := range edges {
		pool, ok := g.pools[e.PoolAddr]
		if !ok {
			continue
		}
		price, err := pool.quote()
		if err != nil {
			continue
		}
		from, to := e.Token0, e.Token1
		if e.Direction == types.DirectionOneToZero {
			from, to = e.Token1, e.Token0
			price = invert(price)
		}
		adj[from] = append(adj[from], pathEdge{to: to, price: price, weight: liquidityWeight(pool)})
	}

	numerator := big.NewRat(0, 1)
	denominator := big.NewRat(0, 1)
	visited := map[common.Address]bool{ordered.Token0: true}
	walkPaths(adj, ordered.Token0, ordered.Token1, big.NewRat(1, 1), nil, visited, len(edges)+1, func(price, weight *big.Rat) {
		numerator.Add(numerator, new(big.Rat).Mul(price, weight))
		denominator.Add(denominator, weight)
	})
	if denominator.Sign() == 0 {
		return nil, false
	}
	return new(big.Rat).Quo(numerator, denominator), true
}

func walkPaths(
	adj map[common.Address][]pathEdge,
	node, target common.Address,
	priceSoFar *big.Rat,
	weightSoFar *big.Rat,
	visited map[common.Address]bool,
	budget int,
	emit func(price, weight *big.Rat),
) {
	if node == target && weightSoFar != nil {
		emit(priceSoFar, weightSoFar)
		return
	}
	if budget <= 0 {
		return
	}
	for _, e := range adj[node] {
		if visited[e.to] {
			continue
		}
		nextWeight := e.weight
		if weightSoFar != nil && weightSoFar.Cmp(e.weight) < 0 {
			nextWeight = weightSoFar
		}
		visited[e.to] = true
		walkPaths(adj, e.to, target, new(big.Rat).Mul(priceSoFar, e.price), nextWeight, visited, budget-1, emit)
		delete(visited, e.to)
	}
}

// liquidityWeight proxies a pool's liquidity by its smaller raw reserve;
// Curve/concentrated pools fall back to their first balance/liquidity
// field since they don't expose a directly comparable reserve pair.
func liquidityWeight(p *PoolState) *big.Rat {
	switch p.Variant {
	case VariantConstantProduct:
		r0 := new(big.Int).SetBytes(p.Reserve0.Bytes())
		r1 := new(big.Int).SetBytes(p.Reserve1.Bytes())
		if r0.Cmp(r1) < 0 {
			return new(big.Rat).SetInt(r0)
		}
		return new(big.Rat).SetInt(r1)
	case VariantConcentratedLiquidity:
		return new(big.Rat).SetInt(new(big.Int).SetBytes(p.Liquidity.Bytes()))
	default:
		if len(p.Balances) == 0 {
			return big.NewRat(0, 1)
		}
		return new(big.Rat).SetInt(new(big.Int).SetBytes(p.Balances[0].Bytes()))
	}
}
