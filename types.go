package ethcore

import (
	"encoding/json"
	"math/big"
	"strconv"

	"golang.org/x/crypto/sha3"
)

var null = []byte{'n', 'u', 'l', 'l'}

// Version of "[]byte" that uses "0x"-prefixed hex encoding and decoding.
type HexBytes []byte

/*
Decodes the provided string. Zero-length input is ok. Otherwise, it must be
prefixed with "0x".
*/
func ParseHexBytes(input string) (HexBytes, error) {
	var out HexBytes
	err := out.UnmarshalText(stringToBytesUnsafe(input))
	return out, err
}

/*
Decodes the provided string. Panics on error. Convenient for initializing global
variables.
*/
func MustParseHexBytes(input string) HexBytes {
	out, err := ParseHexBytes(input)
	if err != nil {
		panic(err)
	}
	return out
}

/*
Implements "encoding.Marshaler". Uses hex encoding prefixed with "0x". Empty
input encodes as "0x".
*/
func (self HexBytes) MarshalText() ([]byte, error) {
	return HexEncode([]byte(self)), nil
}

/*
Implements "encoding.Unmarshaler". Empty input is ok. Otherwise, it must be
prefixed with "0x".
*/
func (self *HexBytes) UnmarshalText(input []byte) error {
	out, err := HexDecode(input)
	if err != nil {
		return err
	}
	*self = HexBytes(out)
	return nil
}

/*
Implements "fmt.Stringer". Follows the same rules as "MarshalText".
*/
func (self HexBytes) String() string {
	return bytesToMutableString(HexEncode([]byte(self)))
}

/*
Version of `big.Int` that encodes/decodes in base 16 with the "0x" prefix. Used
for block fields that don't have a fixed width.
*/
type HexInt big.Int

/*
Implements "encoding.Marshaler". Uses hex encoding prefixed with "0x".
*/
func (self *HexInt) MarshalText() ([]byte, error) {
	num := (*big.Int)(self)
	if num.Sign() < 0 {
		return nil, encodingErrorf("can't encode negative quantity %v", num)
	}
	out := make([]byte, 0, 16)
	out = append(out, '0', 'x')
	return num.Append(out, 16), nil
}

/*
Implements "encoding.Unmarshaler". The input must be a quantity: base 16,
prefixed with "0x", without leading zeros.
*/
func (self *HexInt) UnmarshalText(input []byte) error {
	digits, err := quantityDigits(input)
	if err != nil {
		return err
	}
	_, ok := (*big.Int)(self).SetString(string(digits), 16)
	if !ok {
		return encodingErrorf("failed to decode %q as a hex integer", input)
	}
	return nil
}

/*
Implements "fmt.Stringer". Follows the same rules as "MarshalText".
*/
func (self *HexInt) String() string {
	bytes, _ := self.MarshalText()
	return bytesToMutableString(bytes)
}

// Version of `uint64` that encodes/decodes in base 16 with the "0x" prefix.
type HexUint64 uint64

/*
Implements "encoding.Marshaler". Uses hex encoding prefixed with "0x".
*/
func (self HexUint64) MarshalText() ([]byte, error) {
	return appendQuantity(make([]byte, 0, 18), uint64(self)), nil
}

/*
Implements "encoding.Unmarshaler". The input must be a quantity: base 16,
prefixed with "0x", without leading zeros.
*/
func (self *HexUint64) UnmarshalText(input []byte) error {
	digits, err := quantityDigits(input)
	if err != nil {
		return err
	}
	out, err := strconv.ParseUint(bytesToMutableString(digits), 16, 64)
	if err != nil {
		return encodingErrorf("failed to decode %q as uint64: %v", input, err)
	}
	*self = HexUint64(out)
	return nil
}

/*
Implements "fmt.Stringer". Follows the same rules as "MarshalText".
*/
func (self HexUint64) String() string {
	bytes, _ := self.MarshalText()
	return bytesToMutableString(bytes)
}

/*
Compact representation of an Ethereum address. Text and JSON encoding always
produce "0x" followed by 40 lowercase hex digits; use "Checksum" for the
mixed-case EIP-55 form. The zero address is a regular value.
*/
type Address [20]byte

/*
Decodes the provided string: "0x" followed by 40 hex digits. All-lowercase and
all-uppercase digits are accepted as-is. Mixed case must be a valid EIP-55
checksum.
*/
func ParseAddress(input string) (Address, error) {
	var out Address
	err := out.UnmarshalText(stringToBytesUnsafe(input))
	return out, err
}

/*
Decodes the provided string. Panics on error. Convenient for initializing
global variables.
*/
func MustParseAddress(input string) Address {
	out, err := ParseAddress(input)
	if err != nil {
		panic(err)
	}
	return out
}

/*
Implements "encoding.Marshaler". Uses lowercase hex encoding prefixed with "0x".
*/
func (self Address) MarshalText() ([]byte, error) {
	return HexEncode(self[:]), nil
}

/*
Implements "encoding.Unmarshaler". The input must be "0x" followed by 40 hex
digits; mixed-case input must match its EIP-55 checksum.
*/
func (self *Address) UnmarshalText(input []byte) error {
	var out Address
	err := HexDecodeTo(out[:], input)
	if err != nil {
		return err
	}
	if len(input) != HexEncodedLen(len(out)) {
		return encodingErrorf("address %q must have 40 hex digits", input)
	}
	if isMixedCase(input[2:]) && out.Checksum() != "0x"+string(input[2:]) {
		return encodingErrorf("address %q has an invalid EIP-55 checksum", input)
	}
	*self = out
	return nil
}

/*
Implements "json.Unmarshaler". Like "UnmarshalText", but also accepts "null" as
the zero address.
*/
func (self *Address) UnmarshalJSON(input []byte) error {
	if string(input) == string(null) {
		*self = Address{}
		return nil
	}
	text, err := unquoteJson(input)
	if err != nil {
		return err
	}
	return self.UnmarshalText(text)
}

/*
Implements "fmt.Stringer". Uses lowercase hex encoding prefixed with "0x".
*/
func (self Address) String() string {
	return bytesToMutableString(HexEncode(self[:]))
}

/*
Returns the EIP-55 mixed-case checksum encoding: each hex letter is uppercased
when the matching nibble of keccak256(lowercase hex) is 8 or above.
*/
func (self Address) Checksum() string {
	buf := HexEncode(self[:])
	digits := buf[2:]
	hash := Keccak256(digits)

	for i, char := range digits {
		if char < 'a' || char > 'f' {
			continue
		}
		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			digits[i] = char - ('a' - 'A')
		}
	}
	return string(buf)
}

// Converts into a Word for event log filtering, zero-padded on the left.
func (self Address) Word() Word {
	var out Word
	copy(out[len(out)-len(self):], self[:])
	return out
}

func isMixedCase(digits []byte) bool {
	var lower, upper bool
	for _, char := range digits {
		switch {
		case char >= 'a' && char <= 'f':
			lower = true
		case char >= 'A' && char <= 'F':
			upper = true
		}
	}
	return lower && upper
}

/*
A Word represents the standard memory granularity of the EVM: 32 bytes of
arbitrary content. All EVM types are padded to at least this size when
ABI-encoded. This size is also used for log topics and storage slots.

Note that Hash has exactly the same structure, but a slightly different
interpretation. A Word is not assumed to be a hash.

Always encodes as "0x" followed by 64 hex digits; leading zeros are never
stripped. Decoding accepts "" and JSON null as the zero value.
*/
type Word [32]byte

/*
Decodes the provided string. Zero-length input is ok. Otherwise, it must be
prefixed with "0x".
*/
func ParseWord(input string) (Word, error) {
	var out Word
	err := out.UnmarshalText(stringToBytesUnsafe(input))
	return out, err
}

/*
Decodes the provided string. Panics on error. Convenient for initializing
global variables.
*/
func MustParseWord(input string) Word {
	out, err := ParseWord(input)
	if err != nil {
		panic(err)
	}
	return out
}

// Implements "encoding.Marshaler".
func (self Word) MarshalText() ([]byte, error) {
	return HexEncode(self[:]), nil
}

/*
Implements "encoding.Unmarshaler". Empty input is ok. Otherwise, it must be
prefixed with "0x".
*/
func (self *Word) UnmarshalText(input []byte) error {
	if len(input) == 0 {
		*self = Word{}
		return nil
	}
	return HexDecodeTo(self[:], input)
}

// Implements "json.Unmarshaler". Accepts "null" as the zero value.
func (self *Word) UnmarshalJSON(input []byte) error {
	if string(input) == string(null) {
		*self = Word{}
		return nil
	}
	text, err := unquoteJson(input)
	if err != nil {
		return err
	}
	return self.UnmarshalText(text)
}

// Implements "fmt.Stringer".
func (self Word) String() string {
	return bytesToMutableString(HexEncode(self[:]))
}

/*
Usually represents a block or transaction hash.

Note that while this shares structure and encoding/decoding behavior with Word,
the assumed interpretation is different: a Word is not assumed to be a hash.
*/
type Hash [32]byte

/*
Decodes the provided string. Zero-length input is ok. Otherwise, it must be
prefixed with "0x".
*/
func ParseHash(input string) (Hash, error) {
	hash, err := ParseWord(input)
	return Hash(hash), err
}

/*
Decodes the provided string. Panics on error. Convenient for initializing
global variables.
*/
func MustParseHash(input string) Hash { return Hash(MustParseWord(input)) }

// Implements "encoding.Marshaler".
func (self Hash) MarshalText() ([]byte, error) { return Word(self).MarshalText() }

// Implements "encoding.Unmarshaler".
func (self *Hash) UnmarshalText(input []byte) error { return (*Word)(self).UnmarshalText(input) }

// Implements "json.Unmarshaler".
func (self *Hash) UnmarshalJSON(input []byte) error { return (*Word)(self).UnmarshalJSON(input) }

// Implements "fmt.Stringer".
func (self Hash) String() string { return Word(self).String() }

// Keccak-256 with the original padding, as used throughout Ethereum.
func Keccak256(chunks ...[]byte) Hash {
	var out Hash
	hash := sha3.NewLegacyKeccak256()
	for _, chunk := range chunks {
		hash.Write(chunk)
	}
	hash.Sum(out[:0])
	return out
}

type Bloom [256]byte

// Implements "encoding.Marshaler".
func (self Bloom) MarshalText() ([]byte, error) {
	return HexEncode(self[:]), nil
}

/*
Implements "encoding.Unmarshaler". Empty input is ok. Otherwise, it must be
prefixed with "0x".
*/
func (self *Bloom) UnmarshalText(input []byte) error {
	if len(input) == 0 {
		*self = Bloom{}
		return nil
	}
	return HexDecodeTo(self[:], input)
}

// Implements "fmt.Stringer".
func (self Bloom) String() string {
	return bytesToMutableString(HexEncode(self[:]))
}

func unquoteJson(input []byte) ([]byte, error) {
	if len(input) < 2 || input[0] != '"' || input[len(input)-1] != '"' {
		return nil, encodingErrorf("expected a JSON string, got %s", input)
	}
	return input[1 : len(input)-1], nil
}

type either struct {
	val []byte
	err error
}

// https://www.jsonrpc.org/specification#request_object
type rpcRequest struct {
	Jsonrpc string        `json:"jsonrpc"`
	Id      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// Notification is a variant of rpcRequest without an ID:
// https://www.jsonrpc.org/specification#notification
// Shape used by "eth_subscribe" notifications.
type rpcNotification struct {
	Jsonrpc string              `json:"jsonrpc"`
	Method  string              `json:"method"`
	Params  rpcNotificationBody `json:"params"`
}

type rpcNotificationBody struct {
	Subscription string          `json:"subscription"` // subscription ID
	Result       json.RawMessage `json:"result"`
}

// https://www.jsonrpc.org/specification#response_object
type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Id      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result"` // assign `*someType` to decode as that type
	Error   *RpcError       `json:"error"`
}

/*
Represents an error that arrives over JSON RPC. See
https://www.jsonrpc.org/specification#error_object for details.
*/
type RpcError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Implements "error". Includes the RPC error details if possible.
func (self RpcError) Error() string {
	str := "RPC error " + strconv.FormatInt(self.Code, 10) + ": " + self.Message
	if len(self.Data) > 0 {
		str += " Additional details: " + string(self.Data)
	}
	return str
}

/*
Input to "eth_call" and "eth_estimateGas". Unset fields are omitted and filled
in by the node.
*/
type TxMsg struct {
	From     *Address `json:"from,omitempty"`
	To       *Address `json:"to,omitempty"`
	Data     HexBytes `json:"data,omitempty"`
	Value    *U256    `json:"value,omitempty"`
	GasPrice *U256    `json:"gasPrice,omitempty"`
	GasLimit *U256    `json:"gas,omitempty"`
}

// Represents an Ethereum block without any attached transactions.
type BlockHead struct {
	Difficulty       *HexInt   `json:"difficulty"`
	ExtraData        HexBytes  `json:"extraData"`
	GasLimit         HexUint64 `json:"gasLimit"`
	GasUsed          HexUint64 `json:"gasUsed"`
	BaseFeePerGas    *U256     `json:"baseFeePerGas"`
	Hash             Hash      `json:"hash"`
	LogsBloom        Bloom     `json:"logsBloom"`
	Miner            Address   `json:"miner"`
	MixHash          Hash      `json:"mixHash"`
	Nonce            HexBytes  `json:"nonce"`
	Number           HexUint64 `json:"number"`
	ParentHash       Hash      `json:"parentHash"`
	ReceiptsRoot     Hash      `json:"receiptsRoot"`
	Sha3Uncles       Hash      `json:"sha3Uncles"`
	StateRoot        Hash      `json:"stateRoot"`
	Timestamp        HexUint64 `json:"timestamp"`
	TransactionsRoot Hash      `json:"transactionsRoot"`
}

/*
A transaction as reported by the node. Fields of mined transactions, such as the
block hash, are zero for transactions still in the pool.
*/
type Transaction struct {
	Hash             Hash       `json:"hash"`
	Nonce            U256       `json:"nonce"`
	BlockHash        Hash       `json:"blockHash"`
	BlockNumber      *HexUint64 `json:"blockNumber"`
	TransactionIndex *HexUint64 `json:"transactionIndex"`
	From             Address    `json:"from"`
	To               *Address   `json:"to"`
	Value            U256       `json:"value"`
	GasPrice         *U256      `json:"gasPrice"`
	Gas              U256       `json:"gas"`
	Input            HexBytes   `json:"input"`
	ChainId          *U256      `json:"chainId"`
	V                *U256      `json:"v"`
	R                *U256      `json:"r"`
	S                *U256      `json:"s"`
}

// True if the node reports the transaction as included in a block.
func (self Transaction) IsMined() bool { return self.BlockNumber != nil }

// Represents a transaction receipt.
type TxReceipt struct {
	BlockHash         Hash       `json:"blockHash"`
	BlockNumber       *HexUint64 `json:"blockNumber"`
	ContractAddress   *Address   `json:"contractAddress"`
	GasUsed           U256       `json:"gasUsed"`
	EffectiveGasPrice *U256      `json:"effectiveGasPrice"`
	Logs              []LogEntry `json:"logs"`
	LogsBloom         Bloom      `json:"logsBloom"`
	CumulativeGasUsed U256       `json:"cumulativeGasUsed"`
	Status            *HexUint64 `json:"status"`
	From              Address    `json:"from"`
	To                *Address   `json:"to"`
	TransactionHash   Hash       `json:"transactionHash"`
	TransactionIndex  HexUint64  `json:"transactionIndex"`
}

/*
True if the transaction executed successfully. Receipts from before the
Byzantium fork have no status and are treated as successful.
*/
func (self TxReceipt) Succeeded() bool {
	return self.Status == nil || *self.Status == 1
}

/*
A log entry, typically obtained via "EthGetLogs" or a receipt and used for
contract events. Decode it with "AbiEvent.DecodeLog".
*/
type LogEntry struct {
	Address          Address   `json:"address"`
	Topics           []Word    `json:"topics"`
	Data             HexBytes  `json:"data"`
	BlockHash        Hash      `json:"blockHash"`
	BlockNumber      HexUint64 `json:"blockNumber"`
	TransactionHash  Hash      `json:"transactionHash"`
	TransactionIndex HexUint64 `json:"transactionIndex"`
	LogIndex         HexUint64 `json:"logIndex"`
	Removed          bool      `json:"removed"`
}

/*
Stand-in for anything representing a block number. Makes the signatures of
RPC functions more readable.

RPC methods accept block numbers in several formats: a regular number, a
hex-encoded number, or the magic strings "earliest", "latest", "pending". See
the "BlockNumberX" constants. Plain uint64 values are converted to quantities.
*/
type BlockNumber interface{}

// Converts a block number into its RPC form. Negative numbers are rejected.
func blockNumberParam(num BlockNumber) (interface{}, error) {
	switch num := num.(type) {
	case nil:
		return BlockNumberLatest, nil
	case uint64:
		return HexUint64(num), nil
	case int:
		if num < 0 {
			return nil, encodingErrorf("negative block number %v", num)
		}
		return HexUint64(num), nil
	case *big.Int:
		if num != nil && num.Sign() < 0 {
			return nil, encodingErrorf("negative block number %v", num)
		}
		return (*HexInt)(num), nil
	default:
		return num, nil
	}
}

/*
LogFilter is passed to "EthGetLogs".

"Topics" represent indexed event parameters. For any fixed-size parameter, a
topic is its ABI-encoded representation, which is always Word-sized. For a
variable-sized parameter, a topic is the keccak hash of its packed form; see
"AbiEvent.Topic" and "AbiTopic".
*/
type LogFilter struct {
	FromBlock BlockNumber `json:"fromBlock,omitempty"`
	ToBlock   BlockNumber `json:"toBlock,omitempty"`
	BlockHash *Hash       `json:"blockHash,omitempty"`
	Address   []Address   `json:"address,omitempty"`
	Topics    [][]Word    `json:"topics,omitempty"`
}
