package ethcore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

/*
In-memory node implementing "Trans". Results go through a JSON round trip, so
decoding behaves as with a real transport. Errors queued per method are
returned, in order, before the method is served normally.
*/
type mockChain struct {
	lock sync.Mutex

	chainId     uint64
	coinbase    Address
	head        uint64
	gasPrice    uint64
	gasEstimate uint64
	callResult  HexBytes

	blocks   map[Hash]*BlockHead
	receipts map[Hash]*TxReceipt
	pool     map[Hash]*Transaction
	nonces   map[Address]uint64
	sent     []SignedTx
	msgs     []TxMsg
	logs     []LogEntry
	filters  []LogFilter

	errs   map[string][]error
	calls  map[string]int
	onCall func(chain *mockChain, method string)
}

func newMockChain() *mockChain {
	return &mockChain{
		chainId:     1337,
		head:        100,
		gasPrice:    20_000_000_000,
		gasEstimate: 21000,
		blocks:      map[Hash]*BlockHead{},
		receipts:    map[Hash]*TxReceipt{},
		pool:        map[Hash]*Transaction{},
		nonces:      map[Address]uint64{},
		errs:        map[string][]error{},
		calls:       map[string]int{},
	}
}

func (self *mockChain) Connected() chan struct{} { return alwaysConnected }

func (self *mockChain) Subscribe(_ context.Context, out chan []byte, _ ...interface{}) error {
	close(out)
	return errors.New("mock chain doesn't support subscriptions")
}

func (self *mockChain) Call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	if ctx.Err() != nil {
		return errors.WithStack(ctx.Err())
	}

	self.lock.Lock()
	self.calls[method]++
	onCall := self.onCall
	self.lock.Unlock()

	if onCall != nil {
		onCall(self, method)
	}

	self.lock.Lock()
	defer self.lock.Unlock()

	if queue := self.errs[method]; len(queue) > 0 {
		self.errs[method] = queue[1:]
		return queue[0]
	}

	result, err := self.serve(method, params)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(json.Unmarshal(encoded, out))
}

func (self *mockChain) serve(method string, params []interface{}) (interface{}, error) {
	switch method {
	case "eth_chainId":
		return U256FromUint64(self.chainId), nil

	case "eth_coinbase":
		return self.coinbase, nil

	case "eth_blockNumber":
		return HexUint64(self.head), nil

	case "eth_gasPrice":
		return U256FromUint64(self.gasPrice), nil

	case "eth_estimateGas":
		self.msgs = append(self.msgs, params[0].(TxMsg))
		return U256FromUint64(self.gasEstimate), nil

	case "eth_call":
		self.msgs = append(self.msgs, params[0].(TxMsg))
		return self.callResult, nil

	case "eth_getTransactionCount":
		addr := params[0].(Address)
		count := self.nonces[addr]
		if params[1] == BlockNumberPending {
			for _, tx := range self.pool {
				if tx.From == addr {
					count++
				}
			}
		}
		return U256FromUint64(count), nil

	case "eth_getTransactionReceipt":
		return self.receipts[params[0].(Hash)], nil

	case "eth_getTransactionByHash":
		return self.pool[params[0].(Hash)], nil

	case "eth_getBlockByHash":
		return self.blocks[params[0].(Hash)], nil

	case "eth_getBlockByNumber":
		number, ok := params[0].(HexUint64)
		if !ok {
			number = HexUint64(self.head)
		}
		for _, block := range self.blocks {
			if block.Number == number {
				return block, nil
			}
		}
		return nil, nil

	case "eth_getLogs":
		self.filters = append(self.filters, params[0].(LogFilter))
		return self.logs, nil

	case "eth_sendRawTransaction":
		tx, err := DecodeSignedTx(params[0].(HexBytes))
		if err != nil {
			return nil, RpcError{Code: -32000, Message: "invalid transaction: " + err.Error()}
		}
		sender, err := tx.RecoverSender()
		if err != nil {
			return nil, RpcError{Code: -32000, Message: "invalid sender"}
		}
		hash := tx.Hash()
		if _, ok := self.pool[hash]; ok {
			return nil, RpcError{Code: -32000, Message: "already known"}
		}
		self.sent = append(self.sent, tx)
		self.pool[hash] = &Transaction{
			Hash:  hash,
			Nonce: tx.Tx.Nonce,
			From:  sender,
			To:    tx.Tx.To,
			Value: tx.Tx.Value,
			Gas:   tx.Tx.GasLimit,
			Input: tx.Tx.Data,
		}
		return hash, nil

	default:
		return nil, RpcError{Code: -32601, Message: "the method " + method + " does not exist"}
	}
}

func (self *mockChain) failNext(method string, errs ...error) {
	self.lock.Lock()
	defer self.lock.Unlock()
	self.errs[method] = append(self.errs[method], errs...)
}

func (self *mockChain) callCount(method string) int {
	self.lock.Lock()
	defer self.lock.Unlock()
	return self.calls[method]
}

// Adds a transaction to the pool without going through "eth_sendRawTransaction".
func (self *mockChain) addPending(hash Hash, from Address, nonce uint64) {
	self.pool[hash] = &Transaction{Hash: hash, From: from, Nonce: U256FromUint64(nonce)}
}

// Moves a transaction from the pool into a block and bumps the sender's nonce.
func (self *mockChain) mine(hash Hash, number uint64) {
	blockHash := mockBlockHash(number)
	receipt := &TxReceipt{
		BlockHash:       blockHash,
		BlockNumber:     ptr(HexUint64(number)),
		Status:          ptr(HexUint64(1)),
		TransactionHash: hash,
		GasUsed:         U256FromUint64(21000),
	}

	if tx := self.pool[hash]; tx != nil {
		receipt.From = tx.From
		receipt.To = tx.To
		if tx.To == nil {
			addr := ContractAddress(tx.From, tx.Nonce)
			receipt.ContractAddress = &addr
		}
		if nonce, ok := tx.Nonce.Uint64(); ok && nonce+1 > self.nonces[tx.From] {
			self.nonces[tx.From] = nonce + 1
		}
		delete(self.pool, hash)
	}

	self.receipts[hash] = receipt
	self.blocks[blockHash] = &BlockHead{Hash: blockHash, Number: HexUint64(number)}
	if number > self.head {
		self.head = number
	}
}

// Simulates a reorg that returns a mined transaction to the pool.
func (self *mockChain) unmine(hash Hash) {
	receipt := self.receipts[hash]
	delete(self.receipts, hash)
	if receipt != nil {
		self.pool[hash] = &Transaction{Hash: hash, From: receipt.From, To: receipt.To}
	}
}

func (self *mockChain) update(fun func(chain *mockChain)) {
	self.lock.Lock()
	defer self.lock.Unlock()
	fun(self)
}

func mockBlockHash(number uint64) Hash {
	return Keccak256([]byte("block"), U256FromUint64(number).Bytes())
}

func mockTxHash(seed string) Hash { return Keccak256([]byte(seed)) }

func ptr[A any](val A) *A { return &val }
