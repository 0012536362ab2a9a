/*
Client-side core for Ethereum-compatible networks: build, encode, sign and
submit legacy transactions, encode and decode contract calls and events, and
watch submitted transactions until they reach a chosen confirmation depth.

Features:

	* Ethereum types: Address, Hash, Word, U256, hex-encoded RPC types

	* RLP encoding and decoding

	* ABI encoding and decoding, including tuples, with strict decoding by default

	* EIP-155 transaction signing and sender recovery

	* HD keys from BIP-39 mnemonics

	* RPC transports: HTTP, WebSocket, fallback across several nodes

	* strongly-typed RPC methods

	* confirmation watcher with reorg, drop and replacement detection

	* optional Prometheus metrics and zap logging

	* CLI tools: "gen_eth" outputs contract ABI definitions as Go code, "ethtx"
	  signs and sends transactions

The package is deliberately flat: one package, few dependencies, little impact
on compilation or startup time.

Types

Interacting with Ethereum over RPC involves transmitting raw bytes, addresses,
hashes and numbers in a hex-encoded format prefixed with "0x". This package
provides byte array types (Address, Hash, Word, Bloom) and number types (U256,
HexInt, HexUint64) that know their hex form. 32-byte values always encode all
their bytes; quantities strip leading zeros. Addresses encode in lowercase;
"Address.Checksum" produces the EIP-55 form, and parsing rejects mixed-case
input with a wrong checksum.

Arithmetic on U256 is checked: overflow is an EncodingError, never a silent
wrap-around.

Errors

Every error is wrapped with a stack trace via "github.com/pkg/errors". Use
"errors.As" to detect the kind:

	EncodingError       malformed RLP, ABI, hex, or transaction shape
	SigningError        bad keys or signatures, failed recovery
	TransportError      RPC failures; see IsRetryable and IsFatal
	ConfirmationError   a watch ended in failure; matches ErrTimeout etc. via errors.Is

RPC

Connect to an Ethereum node:

	trans, err := ethcore.Dial("wss://some-host:8546", logger)

Comma-separated URLs produce a FallbackTrans which moves on to the next node
when one fails with a retryable error. The WebSocket transport reconnects
automatically and supports live subscriptions. Pass a nil logger to disable
logging.

Call RPC methods:

	head, err := ethcore.EthBlockNumber(ctx, trans)

Wrap a transport with InstrumentTrans to count and time calls in Prometheus.

Signing

A Signer owns a secp256k1 private key. It never prints the key, only its
address:

	signer, err := ethcore.ParseSigner(os.Getenv("KEY"))
	defer signer.Zero()

	signed, err := signer.SignTx(ethcore.UnsignedTx{
		Nonce:    ethcore.U256FromUint64(9),
		GasPrice: ethcore.MustParseU256("20000000000"),
		GasLimit: ethcore.U256FromUint64(21000),
		To:       &recipient,
		Value:    ethcore.MustParseU256("1000000000000000000"),
		ChainId:  ethcore.U256FromUint64(1),
	})
	raw := signed.RawHex()

Signatures are deterministic (RFC 6979) with a low "s". Use SignerFromMnemonic
to derive a key from a BIP-39 mnemonic and a BIP-32 path.

Sending and confirming

SendTx fills in missing fields from the node (nonce, gas price, gas limit, chain
id), signs, submits, and returns a watcher:

	pending, err := ethcore.SendTx(ctx, trans, signer, ethcore.TxParams{
		To:    &recipient,
		Value: amount,
	}, ethcore.WatchOpts{Confirmations: 12})

	receipt, err := pending.Wait(ctx)

The watcher moves through the states Submitted, Pending, Mined, and ends in
Confirmed or Failed. It fails with ErrTimeout, ErrDropped, ErrReplaced or
ErrReorged. Canceling the context passed to "Wait" only stops polling; calling
"Wait" again resumes the watch. To drive polling yourself, call "Poll".

Contracts

Obtain the Solidity compiler: https://github.com/ethereum/solidity

To bridge Solidity to Go, use the "github.com/purelabio/ethcore/gen_eth"
subpackage. It generates *.go files with the code, ABI definitions, selectors
and event topics:

	gen_eth --out gen.go MyContract.sol:MyContract

This creates the following (values elided for brevity):

	var MyContractAbi ethcore.Abi
	var MyContractCode []byte
	const MyContractAbiJson string
	const MyContractCodeHex string

Deploy:

	pending, contractAddress, err := ethcore.DeployContract(
		ctx, trans, signer, MyContractAbi.Constructor(), MyContractCode,
		nil, ethcore.TxParams{}, ethcore.WatchOpts{},
	)

Call a "view" method:

	var balance *big.Int
	err := ethcore.CallContract(ctx, trans, contractAddress,
		MyContractAbi.Function("balanceOf"), []interface{}{owner}, &balance)

Send a "mutating" method:

	data, err := MyContractAbi.Function("transfer").Marshal(recipient, amount)
	pending, err := ethcore.SendTx(ctx, trans, signer, ethcore.TxParams{
		To:   &contractAddress,
		Data: data,
	}, ethcore.WatchOpts{})

Decode events:

	event := MyContractAbi.Event("Transfer")
	logs, err := ethcore.EthGetLogs(ctx, trans, event.Filter(contractAddress))
	var from, to ethcore.Address
	var amount *big.Int
	err = event.UnmarshalLogEntry(logs[0], &from, &to, &amount)

ABI

Encoding and decoding follow
https://docs.soliditylang.org/en/latest/abi-spec.html

There are two levels. "AbiEncode" and "AbiDecode" work with AbiValue, a typed
tree of values. "AbiMarshal" and "AbiUnmarshal" convert between Go values and
AbiValue via reflection; structs map to tuples by field order. Decoding is
strict: non-zero padding, bools other than 0 and 1, and invalid UTF-8 are
rejected. Use "AbiDecodeWith" with "AbiDecodeOpts{Lenient: true}" to accept
them. Offsets and lengths pointing outside the input are always rejected.

Cancelation

All network operations accept a context.Context as the first argument. In a web
server with "net/http", use the request context, which automatically cancels
when the request is finished:

	head, err := ethcore.EthBlockNumber(req.Context(), trans)

TODO

Typed transactions (EIP-2930, EIP-1559).
*/
package ethcore
