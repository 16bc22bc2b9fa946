// Package provider defines TraceProvider, the external execution-client
// dependency the core consumes for traces, storage reads and logs
// (spec.md §6.1), plus an HTTP/JSON-RPC implementation (httpclient.go).
package provider

import (
	"context"

	"github.com/mev-core/brontes/classifier"
	"github.com/mev-core/brontes/common"
)

// TxTrace is one transaction's ordered call frames, the unit
// replay_block_transactions returns per spec.md §6.1 ("TxTrace contains
// ordered TransactionTraceWithLogs"). Frames are in trace_index order.
type TxTrace struct {
	TxHash  common.Hash
	TxIndex uint32
	Frames  []classifier.Frame
}

// CallRequest is an eth_call-shaped request for pool-immutable reads
// (spec.md §6.1 "eth_call(tx_req, block?, state_overrides?) -> bytes").
type CallRequest struct {
	To    common.Address
	Data  []byte
	From  *common.Address
}

// StateOverrides is the optional per-address storage/balance override set
// eth_call accepts, keyed by address then storage slot.
type StateOverrides map[common.Address]map[common.Hash]common.Hash

// LogFilter selects a range/address/topic subset for get_logs.
type LogFilter struct {
	FromBlock uint64
	ToBlock   uint64
	Addresses []common.Address
	Topics    [][32]byte
}

// TraceProvider is the external execution-client dependency (spec.md §6.1).
// Every operation is I/O and therefore a suspension point (spec.md §5).
type TraceProvider interface {
	BestBlockNumber(ctx context.Context) (uint64, error)
	BlockHashForID(ctx context.Context, block uint64) (common.Hash, bool, error)
	ReplayBlockTransactions(ctx context.Context, block uint64) ([]TxTrace, error)
	EthCall(ctx context.Context, req CallRequest, block *uint64, overrides StateOverrides) ([]byte, error)
	GetStorage(ctx context.Context, block uint64, addr common.Address, slot common.Hash) (common.U256, error)
	GetBytecode(ctx context.Context, block uint64, addr common.Address) ([]byte, error)
	GetLogs(ctx context.Context, filter LogFilter) ([]classifier.Log, error)
}
