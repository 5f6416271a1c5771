// Package rpcpipe implements the per-network RPC transport pipeline: a
// persistent response cache and a rate limiter composed in front of the
// upstream JSON-RPC endpoint, plus the Provider registry that wires the two
// together exactly once per endpoint.
package rpcpipe

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Network is a named reference to an upstream RPC endpoint. Immutable once
// loaded.
type Network struct {
	Name             string
	RPCURL           string
	RequestsPerSecond int
}

// Filter selects log records for a GetLogs call.
type Filter struct {
	Address        []byte
	EventSignature string
	FromBlock      uint64
	ToBlock        uint64
}

// Log is the opaque per-event payload handed to user handlers; decoding it
// into named fields is an external (ABI) concern, so the wire shape from
// go-ethereum's own client is reused as-is rather than re-declared.
type Log = types.Log

// Block is the subset of an eth_getBlockByNumber result the engine needs to
// reason about (number, hash, timestamp). The transaction body is left as
// raw JSON because its shape depends on the hydrate flag the caller passed
// and is otherwise opaque to the scheduler.
type Block struct {
	Number       *hexutil.Big    `json:"number"`
	Hash         common.Hash     `json:"hash"`
	ParentHash   common.Hash     `json:"parentHash"`
	Time         hexutil.Uint64  `json:"timestamp"`
	Transactions json.RawMessage `json:"transactions"`
}

// NumberU64 returns the decoded block number.
func (b *Block) NumberU64() uint64 {
	if b == nil || b.Number == nil {
		return 0
	}
	return b.Number.ToInt().Uint64()
}

// Errors raised by provider construction, per the taxonomy in the
// specification.
var (
	ErrInvalidRPCURL     = errors.New("rpcpipe: invalid rpc url")
	ErrCacheFileNotFound = errors.New("rpcpipe: cache file not found")
)

// DBError wraps a failure opening or using the persistent KV cache.
type DBError struct {
	Network string
	Err     error
}

func (e *DBError) Error() string {
	return fmt.Sprintf("rpcpipe: db error for network %q: %v", e.Network, e.Err)
}

func (e *DBError) Unwrap() error { return e.Err }
