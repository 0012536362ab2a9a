package ethcore

import (
	"context"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

/*
Returned, wrapped in a retryable TransportError, when the node has no block for
the requested hash or number. A block number may simply be ahead of the node.
*/
var ErrBlockNotFound = errors.New("block not found")

// Strongly-typed version of the "eth_chainId" RPC method.
func EthChainId(ctx context.Context, trans Trans) (U256, error) {
	var out U256
	err := trans.Call(ctx, &out, "eth_chainId")
	return out, transportError("eth_chainId", err)
}

// Strongly-typed version of the "eth_coinbase" RPC method.
func EthCoinbase(ctx context.Context, trans Trans) (Address, error) {
	var out Address
	err := trans.Call(ctx, &out, "eth_coinbase")
	return out, transportError("eth_coinbase", err)
}

// Strongly-typed version of the "eth_getBalance" RPC method at the latest block.
func EthGetBalance(ctx context.Context, trans Trans, addr Address) (U256, error) {
	var out U256
	err := trans.Call(ctx, &out, "eth_getBalance", addr, BlockNumberLatest)
	return out, transportError("eth_getBalance", err)
}

// Strongly-typed version of the "eth_gasPrice" RPC method.
func EthGasPrice(ctx context.Context, trans Trans) (U256, error) {
	var out U256
	err := trans.Call(ctx, &out, "eth_gasPrice")
	return out, transportError("eth_gasPrice", err)
}

/*
Strongly-typed version of the "eth_getTransactionCount" RPC method. With
"BlockNumberPending", the count includes transactions waiting in the node's
pool, which makes it the next usable nonce.
*/
func EthGetTransactionCount(ctx context.Context, trans Trans, addr Address, num BlockNumber) (U256, error) {
	var out U256
	param, err := blockNumberParam(num)
	if err != nil {
		return out, err
	}
	err = trans.Call(ctx, &out, "eth_getTransactionCount", addr, param)
	return out, transportError("eth_getTransactionCount", err)
}

/*
Strongly-typed version of the "eth_estimateGas" RPC method.

Note that estimating gas is a somewhat slow operation; the remote node will
attempt to execute the transaction against the current block, running EVM code
if required. This can easily take tens of milliseconds, or more.
*/
func EthEstimateGas(ctx context.Context, trans Trans, msg TxMsg) (U256, error) {
	var out U256
	err := trans.Call(ctx, &out, "eth_estimateGas", msg)
	return out, transportError("eth_estimateGas", err)
}

/*
Strongly-typed version of the "eth_sendRawTransaction" RPC method. Submits the
wire form of a signed transaction and returns the hash reported by the node.
Rejections such as "nonce too low" are fatal TransportErrors; see
"TransportError.Reason".
*/
func EthSendRawTransaction(ctx context.Context, trans Trans, raw []byte) (Hash, error) {
	var out Hash
	err := trans.Call(ctx, &out, "eth_sendRawTransaction", HexBytes(raw))
	return out, transportError("eth_sendRawTransaction", err)
}

// Strongly-typed version of the "eth_getBlockByHash" RPC method.
func EthGetBlockByHash(ctx context.Context, trans Trans, hash Hash) (BlockHead, error) {
	var out *BlockHead
	err := trans.Call(ctx, &out, "eth_getBlockByHash", hash, false)
	if err == nil && out == nil {
		err = errors.Wrapf(ErrBlockNotFound, `no block with hash %v`, hash)
	}
	if err != nil {
		return BlockHead{}, transportError("eth_getBlockByHash", err)
	}
	return *out, nil
}

/*
Strongly-typed version of the "eth_getBlockByNumber" RPC method. The input must
be a number or one of the magic strings; see the "BlockNumber" constants.
*/
func EthGetBlockByNumber(ctx context.Context, trans Trans, num BlockNumber) (BlockHead, error) {
	param, err := blockNumberParam(num)
	if err != nil {
		return BlockHead{}, err
	}
	var out *BlockHead
	err = trans.Call(ctx, &out, "eth_getBlockByNumber", param, false)
	if err == nil && out == nil {
		err = errors.Wrapf(ErrBlockNotFound, `no block with number %v`, num)
	}
	if err != nil {
		return BlockHead{}, transportError("eth_getBlockByNumber", err)
	}
	return *out, nil
}

/*
Variant of "EthGetBlockByHash" with deduplication and caching. For any given
hash, concurrent requests share one fetch, and the result stays cached until
evicted by more recently used blocks.

Note: this is implemented only for block hash, not block number. The "hash ↔︎
block" association is unique and immutable, while the "blockNumber ↔︎ block"
association may change when switching between forks.
*/
func EthGetBlockByHashCached(ctx context.Context, trans Trans, cache *BlockCache, hash Hash) (BlockHead, error) {
	if block, ok := cache.blocks.Get(hash); ok {
		return block, nil
	}

	val, err, _ := cache.group.Do(string(hash[:]), func() (interface{}, error) {
		block, err := EthGetBlockByHash(ctx, trans, hash)
		if err != nil {
			return nil, err
		}
		cache.blocks.Add(hash, block)
		return block, nil
	})
	if err != nil {
		return BlockHead{}, err
	}
	return val.(BlockHead), nil
}

// Bounded LRU cache of block heads by hash. Safe for concurrent use.
type BlockCache struct {
	blocks *lru.Cache[Hash, BlockHead]
	group  singleflight.Group
}

// Creates a cache holding at most "size" blocks.
func NewBlockCache(size int) (*BlockCache, error) {
	blocks, err := lru.New[Hash, BlockHead](size)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &BlockCache{blocks: blocks}, nil
}

// Number of cached blocks.
func (self *BlockCache) Len() int { return self.blocks.Len() }

// Strongly-typed version of the "eth_blockNumber" RPC method.
func EthBlockNumber(ctx context.Context, trans Trans) (uint64, error) {
	var out HexUint64
	err := trans.Call(ctx, &out, "eth_blockNumber")
	return uint64(out), transportError("eth_blockNumber", err)
}

/*
Asks the remote node to fill in a missing gas price and gas limit. Useful for
ensuring that a contract method will succeed regardless of the expense, instead
of trying to manually "guess" a sensible limit. Use with caution.

Used by "PrepareTx".
*/
func AddEstimates(ctx context.Context, trans Trans, msg TxMsg) (TxMsg, error) {
	if msg.GasPrice == nil {
		gasPrice, err := EthGasPrice(ctx, trans)
		if err != nil {
			return msg, err
		}
		msg.GasPrice = &gasPrice
	}

	// Estimating gas is a somewhat slow operation, but leaving this empty
	// allows transactions to execute with near-infinite gas, and may cause
	// transactions to be spuriously rejected.
	if msg.GasLimit == nil {
		gasLimit, err := EthEstimateGas(ctx, trans, msg)
		if err != nil {
			return msg, err
		}
		msg.GasLimit = &gasLimit
	}

	return msg, nil
}

/*
Strongly-typed version of the "eth_getTransactionReceipt" RPC method. Returns
nil without error when the node has no receipt, which is the case for
transactions that are pending, dropped, or unknown.
*/
func EthGetTransactionReceipt(ctx context.Context, trans Trans, hash Hash) (*TxReceipt, error) {
	var out *TxReceipt
	err := trans.Call(ctx, &out, "eth_getTransactionReceipt", hash)
	if err != nil {
		return nil, transportError("eth_getTransactionReceipt", err)
	}
	return out, nil
}

/*
Strongly-typed version of the "eth_getTransactionByHash" RPC method. Returns nil
without error when the node doesn't know the transaction.
*/
func EthGetTransactionByHash(ctx context.Context, trans Trans, hash Hash) (*Transaction, error) {
	var out *Transaction
	err := trans.Call(ctx, &out, "eth_getTransactionByHash", hash)
	if err != nil {
		return nil, transportError("eth_getTransactionByHash", err)
	}
	return out, nil
}

// True if the node has a receipt for the transaction.
func IsTxConfirmed(ctx context.Context, trans Trans, hash Hash) (bool, error) {
	var body json.RawMessage
	err := trans.Call(ctx, &body, "eth_getTransactionReceipt", hash)
	return len(body) > 0 && string(body) != "null", transportError("eth_getTransactionReceipt", err)
}

// Strongly-typed version of the "eth_getLogs" RPC method.
func EthGetLogs(ctx context.Context, trans Trans, filter LogFilter) ([]LogEntry, error) {
	var err error
	if filter.FromBlock != nil {
		if filter.FromBlock, err = blockNumberParam(filter.FromBlock); err != nil {
			return nil, err
		}
	}
	if filter.ToBlock != nil {
		if filter.ToBlock, err = blockNumberParam(filter.ToBlock); err != nil {
			return nil, err
		}
	}

	var out []LogEntry
	err = trans.Call(ctx, &out, "eth_getLogs", filter)
	return out, transportError("eth_getLogs", err)
}

/*
Subscribes to future blocks, sending them over the provided channel. Returns an
error when the context is canceled, or when the connection is interrupted. Does
NOT automatically resubscribe.
*/
func SubscribeToBlockHeads(ctx context.Context, trans Trans, out chan<- BlockHead) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		close(out)
	}()

	inputs := make(chan []byte, cap(out))
	errChan := gogo(func() error {
		return trans.Subscribe(ctx, inputs, "newHeads")
	})

	for input := range inputs {
		var value BlockHead
		err := json.Unmarshal(input, &value)
		if err != nil {
			return transportError("eth_subscribe", ResponseError{Cause: err})
		}
		out <- value
	}
	return transportError("eth_subscribe", <-errChan)
}

/*
Retrieves the address of the contract found at the given transaction. Returns
an error if the transaction isn't mined or doesn't appear to be a contract
deployment.
*/
func EthContractAddress(ctx context.Context, trans Trans, hash Hash) (Address, error) {
	receipt, err := EthGetTransactionReceipt(ctx, trans, hash)
	if err != nil {
		return Address{}, errors.Wrapf(err, `failed to retrieve contract address for transaction %v`, hash)
	}
	if receipt == nil {
		return Address{}, errors.Errorf(`transaction %v has no receipt`, hash)
	}
	if receipt.ContractAddress == nil {
		return Address{}, errors.Errorf(`no contract address found at transaction %v`, hash)
	}
	return *receipt.ContractAddress, nil
}

/*
Strongly-typed version of the "eth_call" RPC method.

Invokes a "view" or "pure" contract method. In other words, a read-only method
that doesn't create a new transaction. The caller must ABI-pack the "TxMsg.Data"
payload and ABI-unpack the output; see "AbiFunction.Marshal" and
"AbiFunction.Unmarshal". A nil block number means the latest block.
*/
func EthCall(ctx context.Context, trans Trans, msg TxMsg, blockNumber BlockNumber) ([]byte, error) {
	param, err := blockNumberParam(blockNumber)
	if err != nil {
		return nil, err
	}
	var out HexBytes
	err = trans.Call(ctx, &out, "eth_call", msg, param)
	return out, transportError("eth_call", err)
}

// Same as "EthCall", but always uses the latest block number.
func EthCallLatest(ctx context.Context, trans Trans, msg TxMsg) ([]byte, error) {
	return EthCall(ctx, trans, msg, BlockNumberLatest)
}

/*
Calls a contract method via "eth_call" at the latest block, encoding the
arguments and decoding the outputs into "outs", which must be pointers.
*/
func CallContract(ctx context.Context, trans Trans, contract Address, fun AbiFunction, args []interface{}, outs ...interface{}) error {
	data, err := fun.Marshal(args...)
	if err != nil {
		return err
	}
	output, err := EthCallLatest(ctx, trans, TxMsg{To: &contract, Data: data})
	if err != nil {
		return err
	}
	return fun.Unmarshal(output, outs...)
}
