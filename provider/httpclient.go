package provider

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v4"

	"github.com/mev-core/brontes/bronerr"
	"github.com/mev-core/brontes/classifier"
	"github.com/mev-core/brontes/common"
)

// HTTPClient is a JSON-RPC TraceProvider over HTTP, JWT-authed the same
// way the engine API authenticates a consensus client to an execution
// client: an HS256 token signed with a shared secret, minted fresh (with
// a short-lived `iat` claim) on every request. Individual calls are
// retried with exponential backoff on transient failure (spec.md §5
// "Individual RPC/trace calls... retried... with exponential backoff").
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	jwtSecret  []byte
	maxRetries uint64
}

func NewHTTPClient(endpoint string, jwtSecret []byte, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		jwtSecret:  jwtSecret,
		maxRetries: 5,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *HTTPClient) authToken() (string, error) {
	claims := jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(stableNow())}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(c.jwtSecret)
}

// stableNow is the clock authToken stamps each JWT's IssuedAt claim with.
var stableNow = time.Now

func (c *HTTPClient) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	var result json.RawMessage
	op := func() error {
		token, err := c.authToken()
		if err != nil {
			return backoff.Permanent(bronerr.Fatal("provider.call", err))
		}
		body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
		if err != nil {
			return backoff.Permanent(bronerr.Fatal("provider.call", err))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(bronerr.Fatal("provider.call", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return bronerr.Transient("provider.call", err, bronerr.WithKey(method))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return bronerr.Transient("provider.call", fmt.Errorf("rpc %s: http %d", method, resp.StatusCode), bronerr.WithKey(method))
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(bronerr.Protocol("provider.call", fmt.Errorf("rpc %s: http %d", method, resp.StatusCode)))
		}

		var rr rpcResponse
		if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
			return bronerr.Decode("provider.call", err, bronerr.WithKey(method))
		}
		if rr.Error != nil {
			return backoff.Permanent(bronerr.Protocol("provider.call", fmt.Errorf("rpc %s: %s (%d)", method, rr.Error.Message, rr.Error.Code)))
		}
		result = rr.Result
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *HTTPClient) BestBlockNumber(ctx context.Context) (uint64, error) {
	raw, err := c.call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, err
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return 0, bronerr.Decode("provider.best_block_number", err)
	}
	n, ok := common.ParseUint64(hexStr)
	if !ok {
		return 0, bronerr.Decode("provider.best_block_number", fmt.Errorf("malformed block number %q", hexStr))
	}
	return n, nil
}

func (c *HTTPClient) BlockHashForID(ctx context.Context, block uint64) (common.Hash, bool, error) {
	raw, err := c.call(ctx, "eth_getBlockByNumber", []any{fmt.Sprintf("0x%x", block), false})
	if err != nil {
		return common.Hash{}, false, err
	}
	var blk struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(raw, &blk); err != nil {
		return common.Hash{}, false, bronerr.Decode("provider.block_hash_for_id", err, bronerr.WithBlock(block))
	}
	if blk.Hash == "" {
		return common.Hash{}, false, nil
	}
	b, err := hex.DecodeString(trimHexPrefix(blk.Hash))
	if err != nil {
		return common.Hash{}, false, bronerr.Decode("provider.block_hash_for_id", err, bronerr.WithBlock(block))
	}
	return common.BytesToHash(b), true, nil
}

func (c *HTTPClient) ReplayBlockTransactions(ctx context.Context, block uint64) ([]TxTrace, error) {
	raw, err := c.call(ctx, "trace_replayBlockTransactions", []any{fmt.Sprintf("0x%x", block), []string{"trace"}})
	if err != nil {
		return nil, err
	}
	var traces []TxTrace
	if err := json.Unmarshal(raw, &traces); err != nil {
		return nil, bronerr.Decode("provider.replay_block_transactions", err, bronerr.WithBlock(block))
	}
	return traces, nil
}

func (c *HTTPClient) EthCall(ctx context.Context, req CallRequest, block *uint64, _ StateOverrides) ([]byte, error) {
	blockTag := "latest"
	if block != nil {
		blockTag = fmt.Sprintf("0x%x", *block)
	}
	callObj := map[string]any{
		"to":   fmt.Sprintf("0x%x", req.To),
		"data": "0x" + hex.EncodeToString(req.Data),
	}
	if req.From != nil {
		callObj["from"] = fmt.Sprintf("0x%x", *req.From)
	}
	raw, err := c.call(ctx, "eth_call", []any{callObj, blockTag})
	if err != nil {
		return nil, err
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return nil, bronerr.Decode("provider.eth_call", err)
	}
	return hex.DecodeString(trimHexPrefix(hexStr))
}

func (c *HTTPClient) GetStorage(ctx context.Context, block uint64, addr common.Address, slot common.Hash) (common.U256, error) {
	raw, err := c.call(ctx, "eth_getStorageAt", []any{addr.String(), slot.String(), fmt.Sprintf("0x%x", block)})
	if err != nil {
		return common.U256{}, err
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return common.U256{}, bronerr.Decode("provider.get_storage", err, bronerr.WithBlock(block))
	}
	b, err := hex.DecodeString(trimHexPrefix(hexStr))
	if err != nil {
		return common.U256{}, bronerr.Decode("provider.get_storage", err, bronerr.WithBlock(block))
	}
	return *common.NewU256(0).SetBytes(b), nil
}

func (c *HTTPClient) GetBytecode(ctx context.Context, block uint64, addr common.Address) ([]byte, error) {
	raw, err := c.call(ctx, "eth_getCode", []any{addr.String(), fmt.Sprintf("0x%x", block)})
	if err != nil {
		return nil, err
	}
	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		return nil, bronerr.Decode("provider.get_bytecode", err, bronerr.WithBlock(block))
	}
	return hex.DecodeString(trimHexPrefix(hexStr))
}

func (c *HTTPClient) GetLogs(ctx context.Context, filter LogFilter) ([]classifier.Log, error) {
	params := map[string]any{
		"fromBlock": fmt.Sprintf("0x%x", filter.FromBlock),
		"toBlock":   fmt.Sprintf("0x%x", filter.ToBlock),
	}
	if len(filter.Addresses) > 0 {
		addrs := make([]string, len(filter.Addresses))
		for i, a := range filter.Addresses {
			addrs[i] = a.String()
		}
		params["address"] = addrs
	}
	if len(filter.Topics) > 0 {
		topics := make([]string, len(filter.Topics))
		for i, t := range filter.Topics {
			topics[i] = "0x" + hex.EncodeToString(t[:])
		}
		params["topics"] = topics
	}
	raw, err := c.call(ctx, "eth_getLogs", []any{params})
	if err != nil {
		return nil, err
	}
	var logs []classifier.Log
	if err := json.Unmarshal(raw, &logs); err != nil {
		return nil, bronerr.Decode("provider.get_logs", err)
	}
	return logs, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 != 0 {
		s = "0" + s
	}
	return s
}
