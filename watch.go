package ethcore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Lifecycle state of a watched transaction.
type TxState byte

const (
	TxSubmitted TxState = iota
	TxPending
	TxMined
	TxConfirmed
	TxFailed
)

// Implements "fmt.Stringer".
func (self TxState) String() string {
	switch self {
	case TxSubmitted:
		return "submitted"
	case TxPending:
		return "pending"
	case TxMined:
		return "mined"
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	default:
		return ""
	}
}

// True for "TxConfirmed" and "TxFailed". A terminal watch never changes again.
func (self TxState) IsTerminal() bool { return self == TxConfirmed || self == TxFailed }

/*
Options of a transaction watch. Zero values mean:

	Confirmations   1
	PollInterval    4s
	MaxPolls        unlimited
	Timeout         unlimited
	DropAfter       never declare the transaction dropped
	MaxReorgs       unlimited

"Sender" and "Nonce" enable replacement detection; "SendTx" sets them.
*/
type WatchOpts struct {
	Confirmations uint64
	PollInterval  time.Duration
	MaxPolls      int
	Timeout       time.Duration
	DropAfter     int
	MaxReorgs     int
	Sender        *Address
	Nonce         *U256
	Logger        *zap.Logger
	Metrics       *Metrics

	// Called synchronously after every state change.
	OnChange func(TxStatus)
}

/*
Snapshot of a watch. For mined transactions, "Confirmations" is
"head - BlockNumber + 1" as of the last poll. "Err" is set for failed
watches: a ConfirmationError, or the fatal TransportError that ended the watch.
*/
type TxStatus struct {
	Hash          Hash
	State         TxState
	BlockNumber   uint64
	BlockHash     Hash
	Confirmations uint64
	Polls         int
	Reorgs        int
	Err           error
}

/*
Watches a submitted transaction until it reaches the requested confirmation
depth or fails. Not safe for concurrent use: one goroutine drives each watcher
via "Poll" or "Wait". The transport is borrowed and may be shared by many
watchers.

Reorgs are detected when a receipt vanishes or moves to another block. The
transaction then returns to "TxPending" and confirmations accumulate anew.
*/
type PendingTx struct {
	Hash Hash

	trans   Trans
	opts    WatchOpts
	logger  *zap.Logger
	status  TxStatus
	receipt *TxReceipt
	misses  int
	started time.Time
	clock   func() time.Time
}

// Starts watching the transaction. Doesn't perform any requests.
func NewPendingTx(trans Trans, hash Hash, opts WatchOpts) *PendingTx {
	if opts.Confirmations == 0 {
		opts.Confirmations = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	self := &PendingTx{
		Hash:   hash,
		trans:  trans,
		opts:   opts,
		logger: orNopLogger(opts.Logger).With(zap.Stringer("tx", hash)),
		status: TxStatus{Hash: hash, State: TxSubmitted},
		clock:  time.Now,
	}
	self.started = self.clock()
	return self
}

// Snapshot of the current state.
func (self *PendingTx) Status() TxStatus { return self.status }

// Receipt fetched by the poll that confirmed the transaction, or nil.
func (self *PendingTx) Receipt() *TxReceipt {
	if self.status.State != TxConfirmed {
		return nil
	}
	return self.receipt
}

/*
Performs one evaluation and returns the resulting status. Returns a non-nil
error when the poll failed: for a failed watch, the error that ended it; for a
retryable transport error, that error with the state unchanged. Context
cancellation doesn't consume the poll budget and leaves the watch resumable.
*/
func (self *PendingTx) Poll(ctx context.Context) (TxStatus, error) {
	if self.status.State.IsTerminal() {
		return self.status, self.status.Err
	}

	if self.opts.Timeout > 0 && self.clock().Sub(self.started) >= self.opts.Timeout {
		self.fail(ConfirmTimeout)
		return self.status, self.status.Err
	}

	self.status.Polls++
	err := self.evaluate(ctx)
	if err != nil {
		if ctx.Err() != nil && !self.status.State.IsTerminal() {
			self.status.Polls--
			return self.status, err
		}
		if IsFatal(err) {
			self.status.Err = err
			self.transition(TxFailed)
			self.opts.Metrics.observeOutcome("error", self.started, self.clock())
			return self.status, err
		}
		self.logger.Warn("transaction poll failed", zap.Error(err))
	}

	if !self.status.State.IsTerminal() && self.opts.MaxPolls > 0 && self.status.Polls >= self.opts.MaxPolls {
		self.fail(ConfirmTimeout)
	}
	if self.status.State == TxFailed {
		return self.status, self.status.Err
	}
	return self.status, err
}

func (self *PendingTx) evaluate(ctx context.Context) error {
	receipt, err := EthGetTransactionReceipt(ctx, self.trans, self.Hash)
	if err != nil {
		return err
	}

	if receipt != nil && receipt.BlockNumber != nil {
		return self.evaluateMined(ctx, receipt)
	}

	if self.status.State == TxMined {
		self.logger.Info("transaction receipt vanished, assuming a reorg",
			zap.Uint64("block", self.status.BlockNumber))
		if !self.reorg() {
			return nil
		}
		self.forgetBlock()
	}
	return self.evaluateUnmined(ctx)
}

func (self *PendingTx) evaluateMined(ctx context.Context, receipt *TxReceipt) error {
	number := uint64(*receipt.BlockNumber)
	self.misses = 0

	switch self.status.State {
	case TxSubmitted:
		self.transition(TxPending)

	case TxMined:
		if number != self.status.BlockNumber || receipt.BlockHash != self.status.BlockHash {
			self.logger.Info("transaction moved to another block, assuming a reorg",
				zap.Uint64("from", self.status.BlockNumber), zap.Uint64("to", number))
			if !self.reorg() {
				return nil
			}
			self.forgetBlock()
		}
	}

	self.receipt = receipt
	if self.status.State != TxMined {
		self.status.BlockNumber = number
		self.status.BlockHash = receipt.BlockHash
		self.transition(TxMined)
	}

	head, err := EthBlockNumber(ctx, self.trans)
	if err != nil {
		return err
	}
	if head >= number {
		self.status.Confirmations = head - number + 1
	} else {
		// Load-balanced nodes may lag behind the one that served the receipt.
		self.status.Confirmations = 0
	}

	if self.status.Confirmations >= self.opts.Confirmations {
		self.transition(TxConfirmed)
		self.opts.Metrics.observeOutcome(TxConfirmed.String(), self.started, self.clock())
	}
	return nil
}

func (self *PendingTx) evaluateUnmined(ctx context.Context) error {
	tx, err := EthGetTransactionByHash(ctx, self.trans, self.Hash)
	if err != nil {
		return err
	}

	if tx != nil {
		self.misses = 0
		if self.status.State == TxSubmitted {
			self.transition(TxPending)
		}
		return nil
	}

	self.misses++

	if self.opts.Sender != nil && self.opts.Nonce != nil {
		replaced, err := self.isReplaced(ctx)
		if err != nil {
			return err
		}
		if replaced {
			self.fail(ConfirmReplaced)
			return nil
		}
	}

	if self.opts.DropAfter > 0 && self.misses >= self.opts.DropAfter {
		self.fail(ConfirmDropped)
	}
	return nil
}

/*
A transaction is replaced when its nonce was used by another mined transaction:
the sender's mined nonce passed ours, yet we have no receipt. The receipt is
checked once more, since our own transaction may have been mined in between.
*/
func (self *PendingTx) isReplaced(ctx context.Context) (bool, error) {
	count, err := EthGetTransactionCount(ctx, self.trans, *self.opts.Sender, BlockNumberLatest)
	if err != nil {
		return false, err
	}
	if count.Cmp(*self.opts.Nonce) <= 0 {
		return false, nil
	}

	receipt, err := EthGetTransactionReceipt(ctx, self.trans, self.Hash)
	if err != nil {
		return false, err
	}
	return receipt == nil, nil
}

// Counts a reorg. Returns false if the watch failed because of it.
func (self *PendingTx) reorg() bool {
	self.status.Reorgs++
	if self.opts.MaxReorgs > 0 && self.status.Reorgs > self.opts.MaxReorgs {
		self.fail(ConfirmReorged)
		return false
	}
	self.transition(TxPending)
	return true
}

func (self *PendingTx) forgetBlock() {
	self.status.BlockNumber = 0
	self.status.BlockHash = Hash{}
	self.status.Confirmations = 0
	self.receipt = nil
}

func (self *PendingTx) fail(reason ConfirmReason) {
	self.status.Err = errors.WithStack(ConfirmationError{
		Hash:   self.Hash,
		Reason: reason,
		Polls:  self.status.Polls,
		Reorgs: self.status.Reorgs,
	})
	self.transition(TxFailed)
	self.opts.Metrics.observeOutcome(reason.String(), self.started, self.clock())
}

func (self *PendingTx) transition(state TxState) {
	from := self.status.State
	self.status.State = state

	self.logger.Debug("transaction state changed",
		zap.Stringer("from", from), zap.Stringer("to", state))
	self.opts.Metrics.observeTransition(from, state)
	if self.opts.OnChange != nil {
		self.opts.OnChange(self.status)
	}
}

/*
Polls every "PollInterval" until the transaction is confirmed, returning its
receipt, or fails, returning the error that ended the watch. Retryable
transport errors are logged and polling continues. Canceling the context only
stops local polling; calling "Wait" again resumes the watch.
*/
func (self *PendingTx) Wait(ctx context.Context) (*TxReceipt, error) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		case <-timer.C:
		}

		status, err := self.Poll(ctx)
		switch status.State {
		case TxConfirmed:
			return self.receipt, nil
		case TxFailed:
			return nil, status.Err
		}
		if err != nil && ctx.Err() != nil {
			return nil, errors.WithStack(ctx.Err())
		}

		timer.Reset(self.opts.PollInterval)
	}
}

/*
Waits for several watchers concurrently, typically sharing one transport.
Returns their receipts in the same order. The first failure cancels the other
waits, which remain resumable.
*/
func WaitAll(ctx context.Context, pending ...*PendingTx) ([]*TxReceipt, error) {
	out := make([]*TxReceipt, len(pending))
	group, ctx := errgroup.WithContext(ctx)

	for i, tx := range pending {
		group.Go(func() error {
			receipt, err := tx.Wait(ctx)
			if err != nil {
				return errors.Wrapf(err, `failed to wait for transaction %v`, tx.Hash)
			}
			out[i] = receipt
			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return nil, err
	}
	return out, nil
}

/*
Waits until the transaction is included in a block, with one confirmation and
default polling. Useful for confirming freshly-sent transactions. Use
"NewPendingTx" for deeper confirmation and failure detection.
*/
func WaitForTx(ctx context.Context, trans Trans, hash Hash) error {
	_, err := NewPendingTx(trans, hash, WatchOpts{}).Wait(ctx)
	return err
}
