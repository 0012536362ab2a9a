package ethcore

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
Parameters of an outgoing transaction. Nil fields are filled in from the node
by "PrepareTx":

	Nonce       eth_getTransactionCount(sender, "pending")
	GasPrice    eth_gasPrice
	GasLimit    eth_estimateGas
	ChainId     eth_chainId

A nil "To" deploys a contract, with "Data" holding the init code.
*/
type TxParams struct {
	To       *Address
	Value    U256
	Data     []byte
	Nonce    *U256
	GasPrice *U256
	GasLimit *U256
	ChainId  *U256
}

// Builds an unsigned transaction from "from", filling missing fields over RPC.
func PrepareTx(ctx context.Context, trans Trans, from Address, params TxParams) (UnsignedTx, error) {
	tx := UnsignedTx{
		To:    params.To,
		Value: params.Value,
		Data:  HexBytes(params.Data),
	}

	if params.ChainId != nil {
		tx.ChainId = *params.ChainId
	} else {
		chainId, err := EthChainId(ctx, trans)
		if err != nil {
			return tx, err
		}
		tx.ChainId = chainId
	}

	if params.Nonce != nil {
		tx.Nonce = *params.Nonce
	} else {
		nonce, err := EthGetTransactionCount(ctx, trans, from, BlockNumberPending)
		if err != nil {
			return tx, err
		}
		tx.Nonce = nonce
	}

	msg := tx.CallMsg(from)
	msg.GasPrice = params.GasPrice
	msg.GasLimit = params.GasLimit
	msg, err := AddEstimates(ctx, trans, msg)
	if err != nil {
		return tx, err
	}
	tx.GasPrice = *msg.GasPrice
	tx.GasLimit = *msg.GasLimit

	return tx, tx.Validate()
}

/*
Prepares, signs and submits a transaction, returning a watcher for it. The
watcher knows the sender and nonce, which enables replacement detection.
*/
func SendTx(ctx context.Context, trans Trans, signer *Signer, params TxParams, opts WatchOpts) (*PendingTx, error) {
	tx, err := PrepareTx(ctx, trans, signer.Address(), params)
	if err != nil {
		return nil, err
	}
	signed, err := signer.SignTx(tx)
	if err != nil {
		return nil, err
	}
	return SendRawTx(ctx, trans, signed, opts)
}

/*
Submits an already signed transaction and returns a watcher for it. A node
answering "already known" is treated as success, which makes resubmission
idempotent.
*/
func SendRawTx(ctx context.Context, trans Trans, tx SignedTx, opts WatchOpts) (*PendingTx, error) {
	sender, err := tx.RecoverSender()
	if err != nil {
		return nil, err
	}
	hash := tx.Hash()

	reported, err := EthSendRawTransaction(ctx, trans, tx.Raw())
	if err != nil {
		if rejectReason(err) != RejectAlreadyKnown {
			return nil, err
		}
		reported = hash
	}
	if reported != hash {
		orNopLogger(opts.Logger).Warn("node reported an unexpected transaction hash",
			zap.Stringer("hash", hash), zap.Stringer("reported", reported))
	}

	if opts.Sender == nil {
		opts.Sender = &sender
	}
	if opts.Nonce == nil {
		nonce := tx.Tx.Nonce
		opts.Nonce = &nonce
	}
	return NewPendingTx(trans, hash, opts), nil
}

/*
Deploys a contract: encodes the constructor arguments after the code, submits
the creation transaction and returns its watcher together with the address the
contract will have once mined.
*/
func DeployContract(
	ctx context.Context, trans Trans, signer *Signer, constructor AbiConstructor,
	code []byte, args []interface{}, params TxParams, opts WatchOpts,
) (*PendingTx, Address, error) {
	data, err := constructor.Deploy(code, args...)
	if err != nil {
		return nil, Address{}, err
	}
	params.To = nil
	params.Data = data

	tx, err := PrepareTx(ctx, trans, signer.Address(), params)
	if err != nil {
		return nil, Address{}, err
	}
	signed, err := signer.SignTx(tx)
	if err != nil {
		return nil, Address{}, err
	}

	pending, err := SendRawTx(ctx, trans, signed, opts)
	if err != nil {
		return nil, Address{}, err
	}
	return pending, ContractAddress(signer.Address(), tx.Nonce), nil
}

func rejectReason(err error) RejectReason {
	var terr TransportError
	if errors.As(err, &terr) {
		return terr.Reason
	}
	return RejectNone
}
