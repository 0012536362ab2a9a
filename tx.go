package ethcore

import (
	"math"
	"strings"
)

/*
Largest chain id whose EIP-155 "v" fits into a uint64 together with the
recovery id.
*/
const MaxChainId = (math.MaxUint64 - 36) / 2

/*
A legacy transaction before signing. A nil "To" means contract creation, with
"Data" holding the init code.

A zero "ChainId" is accepted only when decoding pre-EIP-155 transactions. New
transactions must carry a chain id; see "Validate".
*/
type UnsignedTx struct {
	Nonce    U256     `json:"nonce"`
	GasPrice U256     `json:"gasPrice"`
	GasLimit U256     `json:"gas"`
	To       *Address `json:"to"`
	Value    U256     `json:"value"`
	Data     HexBytes `json:"input"`
	ChainId  U256     `json:"chainId"`
}

// Checks that the transaction can be signed.
func (self UnsignedTx) Validate() error {
	chainId, ok := self.ChainId.Uint64()
	if !ok || chainId > MaxChainId {
		return encodingErrorf("chain id %v is too large", self.ChainId)
	}
	if chainId == 0 {
		return encodingErrorf("transaction requires a chain id")
	}
	if self.GasLimit.IsZero() {
		return encodingErrorf("transaction requires a gas limit")
	}
	return nil
}

// True if the transaction deploys a contract.
func (self UnsignedTx) IsContractCreation() bool { return self.To == nil }

/*
RLP encoding hashed for signing: "(nonce, gasPrice, gasLimit, to, value, data,
chainId, 0, 0)" per EIP-155, or the first six fields when the chain id is zero.
*/
func (self UnsignedTx) SigningPreimage() []byte {
	fields := self.rlpFields()
	if !self.ChainId.IsZero() {
		fields = append(fields, RlpU256(self.ChainId), RlpString{}, RlpString{})
	}
	return RlpEncode(fields)
}

// Keccak-256 of "SigningPreimage".
func (self UnsignedTx) SigningHash() Hash {
	return Keccak256(self.SigningPreimage())
}

func (self UnsignedTx) rlpFields() RlpList {
	return RlpList{
		RlpU256(self.Nonce),
		RlpU256(self.GasPrice),
		RlpU256(self.GasLimit),
		RlpAddress(self.To),
		RlpU256(self.Value),
		RlpString(self.Data),
	}
}

// Message for "eth_call" and "eth_estimateGas" simulating this transaction.
func (self UnsignedTx) CallMsg(from Address) TxMsg {
	msg := TxMsg{
		From: &from,
		To:   self.To,
		Data: self.Data,
	}
	if !self.Value.IsZero() {
		value := self.Value
		msg.Value = &value
	}
	if !self.GasPrice.IsZero() {
		gasPrice := self.GasPrice
		msg.GasPrice = &gasPrice
	}
	if !self.GasLimit.IsZero() {
		gasLimit := self.GasLimit
		msg.GasLimit = &gasLimit
	}
	return msg
}

// A signed legacy transaction, ready to submit via "EthSendRawTransaction".
type SignedTx struct {
	Tx  UnsignedTx
	Sig Signature
}

// Top-level form of "Signer.SignTx".
func SignTx(tx UnsignedTx, signer *Signer) (SignedTx, error) {
	return signer.SignTx(tx)
}

// Wire form: RLP of "(nonce, gasPrice, gasLimit, to, value, data, v, r, s)".
func (self SignedTx) Raw() []byte {
	return RlpEncode(append(self.Tx.rlpFields(),
		RlpUint(self.Sig.V),
		RlpU256(self.Sig.R),
		RlpU256(self.Sig.S),
	))
}

// "0x"-prefixed lowercase hex of "Raw", as accepted by "eth_sendRawTransaction".
func (self SignedTx) RawHex() string {
	return bytesToMutableString(HexEncode(self.Raw()))
}

// Transaction hash: keccak-256 of "Raw".
func (self SignedTx) Hash() Hash { return Keccak256(self.Raw()) }

/*
Recovers the sender. The chain id encoded in "v" must match the transaction's
chain id; "S" must be in the lower half of the curve order.
*/
func (self SignedTx) RecoverSender() (Address, error) {
	v := self.Sig.V
	if v < 27 {
		return Address{}, signingErrorf("invalid transaction recovery value %v", v)
	}

	recid, chainId, err := normalizeRecoveryId(v)
	if err != nil {
		return Address{}, err
	}
	if self.Tx.ChainId.Cmp(U256FromUint64(chainId)) != 0 {
		return Address{}, signingErrorf("signature is for chain %v, transaction is for chain %v",
			chainId, self.Tx.ChainId)
	}

	sig := self.Sig
	sig.V = 27 + uint64(recid)
	return sig.Recover(self.Tx.SigningHash())
}

/*
Address of the contract deployed by this transaction. Fails for transactions
that aren't contract creations.
*/
func (self SignedTx) ContractAddress() (Address, error) {
	if !self.Tx.IsContractCreation() {
		return Address{}, encodingErrorf("transaction %v is not a contract creation", self.Hash())
	}
	sender, err := self.RecoverSender()
	if err != nil {
		return Address{}, err
	}
	return ContractAddress(sender, self.Tx.Nonce), nil
}

/*
Decodes the wire form of a legacy transaction. Accepts EIP-155 and pre-EIP-155
"v"; the latter yields a zero chain id. Malformed RLP is an EncodingError; an
invalid "v" is a SigningError.
*/
func DecodeSignedTx(raw []byte) (SignedTx, error) {
	item, err := RlpDecode(raw)
	if err != nil {
		return SignedTx{}, err
	}
	list, err := RlpAsList(item, 9)
	if err != nil {
		return SignedTx{}, err
	}

	var fields [9]RlpString
	for i, item := range list {
		fields[i], err = RlpAsString(item)
		if err != nil {
			return SignedTx{}, encodingErrorf("transaction field %v: %v", i, err)
		}
	}

	var out SignedTx
	tx := &out.Tx
	for i, dest := range []*U256{&tx.Nonce, &tx.GasPrice, &tx.GasLimit} {
		*dest, err = fields[i].U256()
		if err != nil {
			return SignedTx{}, err
		}
	}
	if tx.To, err = fields[3].Address(); err != nil {
		return SignedTx{}, err
	}
	if tx.Value, err = fields[4].U256(); err != nil {
		return SignedTx{}, err
	}
	tx.Data = HexBytes(fields[5])

	if out.Sig.V, err = fields[6].Uint64(); err != nil {
		return SignedTx{}, err
	}
	if out.Sig.R, err = fields[7].U256(); err != nil {
		return SignedTx{}, err
	}
	if out.Sig.S, err = fields[8].U256(); err != nil {
		return SignedTx{}, err
	}

	if out.Sig.V < 27 {
		return SignedTx{}, signingErrorf("invalid transaction recovery value %v", out.Sig.V)
	}
	_, chainId, err := normalizeRecoveryId(out.Sig.V)
	if err != nil {
		return SignedTx{}, err
	}
	tx.ChainId = U256FromUint64(chainId)
	return out, nil
}

// Version of "DecodeSignedTx" for hex input with an optional "0x" prefix.
func ParseSignedTx(input string) (SignedTx, error) {
	input = strings.TrimSpace(input)
	if !has0x(stringToBytesUnsafe(input)) {
		input = "0x" + input
	}
	raw, err := HexDecode(stringToBytesUnsafe(input))
	if err != nil {
		return SignedTx{}, err
	}
	return DecodeSignedTx(raw)
}

// Address of a contract created by "sender" at "nonce": keccak256(rlp([sender, nonce]))[12:].
func ContractAddress(sender Address, nonce U256) Address {
	hash := Keccak256(RlpEncode(RlpList{RlpString(sender[:]), RlpU256(nonce)}))
	var out Address
	copy(out[:], hash[12:])
	return out
}
