package rpcpipe

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// API is the opaque Provider capability: get_logs,
// get_block_by_number, get_block_number. Schedulers depend on this
// interface (rather than the concrete *Provider) so they can be driven by
// fakes in tests.
type API interface {
	GetLogs(ctx context.Context, f Filter) ([]Log, error)
	GetBlockByNumber(ctx context.Context, numberOrTag any, hydrate bool) (*Block, error)
	GetBlockNumber(ctx context.Context) (uint64, error)
}

// Provider is the concrete API implementation, routed through the
// cache/rate-limit stack built by the Registry. It is cheap to copy;
// every clone shares the same underlying client.
type Provider struct {
	eth *ethclient.Client
	rpc *rpc.Client
}

var _ API = (*Provider)(nil)

// GetLogs fetches logs matching f. The event signature is hashed into the
// topic-0 filter the way any caller of eth_getLogs must; decoding the
// matched logs back into named fields remains an external (ABI) concern.
func (p *Provider) GetLogs(ctx context.Context, f Filter) ([]Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(f.FromBlock),
		ToBlock:   new(big.Int).SetUint64(f.ToBlock),
	}
	if len(f.Address) > 0 {
		q.Addresses = []common.Address{common.BytesToAddress(f.Address)}
	}
	if f.EventSignature != "" {
		q.Topics = [][]common.Hash{{crypto.Keccak256Hash([]byte(f.EventSignature))}}
	}
	return p.eth.FilterLogs(ctx, q)
}

// GetBlockNumber returns the current chain tip.
func (p *Provider) GetBlockNumber(ctx context.Context) (uint64, error) {
	return p.eth.BlockNumber(ctx)
}

// GetBlockByNumber fetches a block by number or tag ("latest", "finalized",
// ...). hydrate selects whether transactions are returned as full objects or
// bare hashes, per the eth_getBlockByNumber contract.
func (p *Provider) GetBlockByNumber(ctx context.Context, numberOrTag any, hydrate bool) (*Block, error) {
	var raw Block
	var param any
	switch v := numberOrTag.(type) {
	case uint64:
		param = rpcBlockNumberArg(v)
	case string:
		param = v
	default:
		param = v
	}
	if err := p.rpc.CallContext(ctx, &raw, "eth_getBlockByNumber", param, hydrate); err != nil {
		return nil, err
	}
	if raw.Number == nil {
		return nil, nil
	}
	return &raw, nil
}

func rpcBlockNumberArg(n uint64) string {
	return "0x" + new(big.Int).SetUint64(n).Text(16)
}
