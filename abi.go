package ethcore

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

/*
Decodes output from a Solidity compiler. Expects JSON produced by the following
incantation:

	solc --combined-json=abi,bin --optimize

Maps contract identifiers to decoded "ContractDef" values. Each identifier has
the form "filePath:contractName". Older compilers emit each ABI as a JSON
string, newer ones as an array; both are accepted.

Note: check the "gen_eth" subpackage for a simpler way of dealing with solc.
*/
func ReadContractDefs(src io.Reader) (map[string]ContractDef, error) {
	var input struct {
		Contracts map[string]struct {
			Abi json.RawMessage
			Bin string
		}
	}

	err := json.NewDecoder(src).Decode(&input)
	if err != nil {
		return nil, errors.Wrap(err, `failed to read Solidity output`)
	}

	out := make(map[string]ContractDef, len(input.Contracts))
	for name, inp := range input.Contracts {
		path := strings.SplitN(name, ":", 2)
		if len(path) != 2 {
			return nil, errors.Errorf(`malformed contract identifier %q in Solidity output`, name)
		}

		abiJson := inp.Abi
		if len(abiJson) > 0 && abiJson[0] == '"' {
			var str string
			err := json.Unmarshal(abiJson, &str)
			if err != nil {
				return nil, errors.Wrap(err, `failed to decode Solidity output`)
			}
			abiJson = json.RawMessage(str)
		}

		def := ContractDef{
			FileName:     path[0],
			ContractName: path[1],
			AbiJson:      string(abiJson),
		}

		err := json.Unmarshal(abiJson, &def.Abi)
		if err != nil {
			return nil, errors.Wrapf(err, `failed to decode ABI of %q`, name)
		}

		code, err := hex.DecodeString(strings.TrimPrefix(inp.Bin, "0x"))
		if err != nil {
			return nil, errors.Wrapf(err, `failed to decode code of %q`, name)
		}
		def.Code = HexBytes(code)

		out[name] = def
	}

	return out, nil
}

/*
Decodes output from a Solidity compiler. See ReadContractDefs for details.
*/
func DecodeContractDefs(input []byte) (map[string]ContractDef, error) {
	return ReadContractDefs(bytes.NewReader(input))
}

/*
A structure representing the output of a Solidity compiler for a single
contract. See "ReadContractDefs" for details.
*/
type ContractDef struct {
	FileName     string
	ContractName string
	Abi          Abi
	AbiJson      string
	Code         HexBytes
}

/*
Abi represents the method, event and error definitions of a Solidity contract.
It's parsed from the JSON output of a Solidity compiler. See the "gen_eth"
subpackage for a convenient bridge from Solidity to Go.

Decoding follows the JSON ABI format:
https://docs.soliditylang.org/en/latest/abi-spec.html#json

See the "AbiMethod" definition.
*/
type Abi []AbiMethod

/*
^^^
Implementation note. Defining this type as a slice of definitions is
conceptually simple and corresponds 1-to-1 to the JSON, allowing reversible
deserialization and serialization. Lookups loop through the slice; this is
dominated by the costs of ABI encoding and decoding.
*/

/*
Parses an ABI definition. The input must be JSON from a Solidity compiler.
Panics on failure. Convenient for initializing global variables on startup:

	var TokenAbi = ethcore.MustParseAbiJson(`[{"type": "function", "name": "transfer", ...}]`)
*/
func MustParseAbiJson(input string) Abi {
	var abi Abi
	err := abi.UnmarshalJSON(stringToBytesUnsafe(input))
	if err != nil {
		panic(err)
	}
	return abi
}

// Attempts to find the constructor definition. Boolean indicates success or failure.
func (self Abi) MaybeConstructor() (AbiConstructor, bool) {
	for _, entry := range self {
		switch entry := entry.(type) {
		case AbiConstructor:
			return entry, true
		}
	}
	return AbiConstructor{}, false
}

/*
Returns the constructor definition. Contracts without an explicit constructor
get an implicit one with no inputs.
*/
func (self Abi) Constructor() AbiConstructor {
	out, ok := self.MaybeConstructor()
	if !ok {
		return AbiConstructor{Type: "constructor"}
	}
	return out
}

// Attempts to find the method by name. Boolean indicates success or failure.
func (self Abi) MaybeFunction(name string) (AbiFunction, bool) {
	for _, entry := range self {
		switch entry := entry.(type) {
		case AbiFunction:
			if entry.Name == name {
				return entry, true
			}
		}
	}
	return AbiFunction{}, false
}

// Finds the method by name. Panics if not found.
func (self Abi) Function(name string) AbiFunction {
	out, ok := self.MaybeFunction(name)
	if !ok {
		panic(fmt.Sprintf("function %v not found in ABI definition", name))
	}
	return out
}

// Finds the method whose selector prefixes the call data.
func (self Abi) FunctionBySelector(data []byte) (AbiFunction, bool) {
	if len(data) < 4 {
		return AbiFunction{}, false
	}
	for _, entry := range self {
		switch entry := entry.(type) {
		case AbiFunction:
			if bytes.Equal(entry.Selector[:], data[:4]) {
				return entry, true
			}
		}
	}
	return AbiFunction{}, false
}

// Attempts to find the event by name. Boolean indicates success or failure.
func (self Abi) MaybeEvent(name string) (AbiEvent, bool) {
	for _, entry := range self {
		switch entry := entry.(type) {
		case AbiEvent:
			if entry.Name == name {
				return entry, true
			}
		}
	}
	return AbiEvent{}, false
}

// Finds the event by name. Panics if not found.
func (self Abi) Event(name string) AbiEvent {
	out, ok := self.MaybeEvent(name)
	if !ok {
		panic(fmt.Sprintf("event %v not found in ABI definition", name))
	}
	return out
}

// Finds the non-anonymous event matching the first topic of a log entry.
func (self Abi) EventByTopic(topic Word) (AbiEvent, bool) {
	for _, entry := range self {
		switch entry := entry.(type) {
		case AbiEvent:
			if !entry.Anonymous && entry.Topic == topic {
				return entry, true
			}
		}
	}
	return AbiEvent{}, false
}

// Attempts to find the custom error by name. Boolean indicates success or failure.
func (self Abi) MaybeError(name string) (AbiError, bool) {
	for _, entry := range self {
		switch entry := entry.(type) {
		case AbiError:
			if entry.Name == name {
				return entry, true
			}
		}
	}
	return AbiError{}, false
}

/*
Implements "json.Unmarshaler". Decodes a JSON ABI definition produced by a
Solidity compiler. Automatically selects the appropriate data structures for
constructors, functions, events and errors, based on their type.
*/
func (self *Abi) UnmarshalJSON(input []byte) error {
	var chunks []json.RawMessage

	err := json.Unmarshal(input, &chunks)
	if err != nil {
		return errors.WithStack(err)
	}

	out := make(Abi, 0, len(chunks))
	for _, chunk := range chunks {
		val, err := unmarshalAbiMethod(chunk)
		if err != nil {
			return err
		}
		out = append(out, val)
	}
	*self = out
	return nil
}

func unmarshalAbiMethod(input []byte) (AbiMethod, error) {
	var tag struct{ Type string }

	err := json.Unmarshal(input, &tag)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var out AbiMethod
	switch tag.Type {
	case "constructor":
		var val AbiConstructor
		err = json.Unmarshal(input, &val)
		out = val
	case "function", "":
		var val AbiFunction
		err = json.Unmarshal(input, &val)
		out = val
	case "event":
		var val AbiEvent
		err = json.Unmarshal(input, &val)
		out = val
	case "error":
		var val AbiError
		err = json.Unmarshal(input, &val)
		out = val
	case "fallback", "receive":
		var val AbiFallback
		err = json.Unmarshal(input, &val)
		out = val
	default:
		return nil, errors.Errorf("unknown ABI type: %v", tag.Type)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return out, nil
}

/*
Represents one of several possible ABI definitions. Possible types:

	AbiConstructor
	AbiFunction
	AbiEvent
	AbiError
	AbiFallback
*/
type AbiMethod interface{}

// Represents a contract constructor.
type AbiConstructor struct {
	Type            string     `json:"type"` // "constructor"
	Inputs          []AbiParam `json:"inputs"`
	Payable         bool       `json:"payable,omitempty"`
	StateMutability string     `json:"stateMutability,omitempty"`
}

/*
Produces the payload of a contract creation transaction: the contract code
followed by the ABI-encoded constructor arguments.
*/
func (self AbiConstructor) Deploy(code []byte, args ...interface{}) ([]byte, error) {
	if len(code) == 0 {
		return nil, errors.New("contract deployment requires contract code")
	}
	encoded, err := AbiMarshalTuple(self.Inputs, args...)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(code)+len(encoded))
	out = append(out, code...)
	return append(out, encoded...), nil
}

// Represents the "fallback" and "receive" entries.
type AbiFallback struct {
	Type            string `json:"type"` // "fallback" | "receive"
	Payable         bool   `json:"payable,omitempty"`
	StateMutability string `json:"stateMutability,omitempty"`
}

/*
Represents a contract method. Useful for ABI-encoding arguments and ABI-decoding
return values. Usually obtained via "Abi.Function()".
*/
type AbiFunction struct {
	Type            string     `json:"type"` // "function" | ""
	Name            string     `json:"name"`
	Constant        bool       `json:"constant,omitempty"`
	Inputs          []AbiParam `json:"inputs"`
	Outputs         []AbiParam `json:"outputs"`
	Payable         bool       `json:"payable,omitempty"`
	StateMutability string     `json:"stateMutability,omitempty"`
	Selector        [4]byte    `json:"-"`
}

// Canonical signature such as "transfer(address,uint256)".
func (self AbiFunction) Signature() string { return AbiSignature(self.Name, self.Inputs) }

/*
ABI-encodes the arguments, which must exactly match this method's parameter
signature. Prepends the method's ".Selector". The result should be used as a
transaction payload. Returns an error in case of arity or type mismatch.
*/
func (self AbiFunction) Marshal(args ...interface{}) ([]byte, error) {
	vals, err := abiValuesOf(self.Inputs, args)
	if err != nil {
		return nil, errors.Wrapf(err, `failed to encode arguments of %v`, self.Name)
	}
	return self.EncodeCall(vals)
}

/*
Version of "Marshal" for already-typed values. Each value's type must match the
corresponding input.
*/
func (self AbiFunction) EncodeCall(vals []AbiValue) ([]byte, error) {
	if len(vals) != len(self.Inputs) {
		return nil, encodingErrorf(`arity mismatch in %v: expected %v inputs, got %v`,
			self.Name, len(self.Inputs), len(vals))
	}
	for i, val := range vals {
		if !val.Type.Equal(self.Inputs[i].AbiType) {
			return nil, encodingErrorf(`input %v of %v must be %v, got %v`,
				i, self.Name, self.Inputs[i].AbiType, val.Type)
		}
	}
	return abiAppendTuple(append([]byte(nil), self.Selector[:]...), vals)
}

/*
Decodes call data produced by "Marshal": checks the selector, then strictly
decodes the inputs.
*/
func (self AbiFunction) DecodeInput(data []byte) ([]AbiValue, error) {
	if len(data) < 4 || !bytes.Equal(data[:4], self.Selector[:]) {
		return nil, encodingErrorf(`call data doesn't start with the selector of %v`, self.Signature())
	}
	return AbiDecode(abiParamTypes(self.Inputs), data[4:])
}

// Strictly decodes the return data of a call.
func (self AbiFunction) DecodeOutput(output []byte) ([]AbiValue, error) {
	return AbiDecode(abiParamTypes(self.Outputs), output)
}

/*
ABI-decodes raw bytes into the provided Go values, which must exactly match this
method's return signature. The outputs must be pointers. Returns an error in
case of arity mismatch, type mismatch, or malformed input.
*/
func (self AbiFunction) Unmarshal(input []byte, outs ...interface{}) error {
	return AbiUnmarshalTuple(input, self.Outputs, outs)
}

/*
Implements "json.Unmarshaler". In addition to parsing the JSON structure, this
precomputes the method's ".Selector", which is used when ABI-encoding arguments
for method calls.
*/
func (self *AbiFunction) UnmarshalJSON(input []byte) error {
	type plain AbiFunction
	var out plain
	err := json.Unmarshal(input, &out)
	if err != nil {
		return err
	}
	*self = AbiFunction(out)
	self.Selector = abiSelector(self.Name, self.Inputs)
	return nil
}

/*
Represents a custom error declared with Solidity's "error" keyword. Reverts
carry its selector followed by ABI-encoded inputs.
*/
type AbiError struct {
	Type     string     `json:"type"` // "error"
	Name     string     `json:"name"`
	Inputs   []AbiParam `json:"inputs"`
	Selector [4]byte    `json:"-"`
}

// Implements "json.Unmarshaler", precomputing the ".Selector".
func (self *AbiError) UnmarshalJSON(input []byte) error {
	type plain AbiError
	var out plain
	err := json.Unmarshal(input, &out)
	if err != nil {
		return err
	}
	*self = AbiError(out)
	self.Selector = abiSelector(self.Name, self.Inputs)
	return nil
}

// Decodes revert data carrying this error.
func (self AbiError) Decode(data []byte) ([]AbiValue, error) {
	if len(data) < 4 || !bytes.Equal(data[:4], self.Selector[:]) {
		return nil, encodingErrorf(`revert data doesn't carry error %v`, self.Name)
	}
	return AbiDecode(abiParamTypes(self.Inputs), data[4:])
}

var (
	revertErrorSelector = [4]byte{0x08, 0xc3, 0x79, 0xa0} // Error(string)
	revertPanicSelector = [4]byte{0x4e, 0x48, 0x7b, 0x71} // Panic(uint256)
)

/*
Decodes the standard revert payloads: "Error(string)" yields the message,
"Panic(uint256)" yields "panic: 0x<code>". Anything else is an EncodingError;
decode custom errors with "AbiError.Decode".
*/
func DecodeRevertReason(data []byte) (string, error) {
	if len(data) < 4 {
		return "", encodingErrorf(`revert data has %v bytes, too short for a selector`, len(data))
	}

	switch {
	case bytes.Equal(data[:4], revertErrorSelector[:]):
		vals, err := AbiDecode([]AbiType{AbiTypeString}, data[4:])
		if err != nil {
			return "", err
		}
		return vals[0].Str, nil

	case bytes.Equal(data[:4], revertPanicSelector[:]):
		vals, err := AbiDecode([]AbiType{AbiTypeUint256}, data[4:])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("panic: 0x%x", vals[0].Int), nil

	default:
		return "", encodingErrorf(`unrecognized revert selector %x`, data[:4])
	}
}

/*
Represents a contract event. Useful for filtering and decoding event logs.
Usually obtained via "Abi.Event()".
*/
type AbiEvent struct {
	Type      string     `json:"type"` // "event"
	Name      string     `json:"name"`
	Inputs    []AbiParam `json:"inputs"`
	Anonymous bool       `json:"anonymous"`
	Topic     Word       `json:"-"`
}

// Canonical signature such as "Transfer(address,address,uint256)".
func (self AbiEvent) Signature() string { return AbiSignature(self.Name, self.Inputs) }

/*
Implements "json.Unmarshaler". In addition to parsing the JSON structure, this
precomputes the event's ".Topic", which is used for filtering logs.
*/
func (self *AbiEvent) UnmarshalJSON(input []byte) error {
	type plain AbiEvent
	var out plain
	err := json.Unmarshal(input, &out)
	if err != nil {
		return err
	}
	*self = AbiEvent(out)
	self.Topic = Word(AbiParamsChecksum(self.Name, self.Inputs))
	return nil
}

// Log filter matching this event, optionally restricted to the given contracts.
func (self AbiEvent) Filter(addresses ...Address) LogFilter {
	filter := LogFilter{Address: addresses}
	if !self.Anonymous {
		filter.Topics = [][]Word{{self.Topic}}
	}
	return filter
}

/*
Decodes event parameters from a log entry, in declaration order. Log entries are
usually obtained via "EthGetLogs" or a receipt.

Indexed and non-indexed parameters are stored separately. Non-indexed
parameters are encoded as their own tuple in the log data. Indexed parameters
are stored as topics: value types as their 32-byte encoding, everything else
(bytes, string, arrays, tuples) as a keccak hash, which can't be reversed. The
latter are returned as "bytes32" values holding the hash; see "AbiTopic".
*/
func (self AbiEvent) DecodeLog(entry LogEntry) ([]AbiValue, error) {
	topics := entry.Topics
	if !self.Anonymous {
		if len(topics) == 0 || topics[0] != self.Topic {
			return nil, encodingErrorf(`log entry doesn't contain event %v`, self.Name)
		}
		topics = topics[1:]
	}

	var indexed int
	var dataTypes []AbiType
	for _, param := range self.Inputs {
		if param.Indexed {
			indexed++
		} else {
			dataTypes = append(dataTypes, param.AbiType)
		}
	}
	if len(topics) != indexed {
		return nil, encodingErrorf(`event %v expects %v indexed parameters, log entry has %v`,
			self.Name, indexed, len(topics))
	}

	data, err := AbiDecode(dataTypes, entry.Data)
	if err != nil {
		return nil, errors.Wrapf(err, `failed to decode data of event %v`, self.Name)
	}

	out := make([]AbiValue, len(self.Inputs))
	for i, param := range self.Inputs {
		if !param.Indexed {
			out[i], data = data[0], data[1:]
			continue
		}

		topic := topics[0]
		topics = topics[1:]

		if !abiIsValueType(param.AbiType) {
			out[i] = AbiValue{Type: AbiTypeBytes32, Bytes: append([]byte(nil), topic[:]...)}
			continue
		}

		vals, err := AbiDecode([]AbiType{param.AbiType}, topic[:])
		if err != nil {
			return nil, errors.Wrapf(err, `failed to decode topic %v of event %v`, param.Name, self.Name)
		}
		out[i] = vals[0]
	}
	return out, nil
}

/*
Decodes event parameters from the log entry into the provided outputs, which
must exactly match the event's signature and be pointers. Hashed indexed
parameters can only be decoded into 32-byte outputs such as Word or Hash.
*/
func (self AbiEvent) UnmarshalLogEntry(entry LogEntry, outs ...interface{}) error {
	if len(outs) != len(self.Inputs) {
		return errors.Errorf(`parameter/output mismatch in event %v: have %v parameters, found %v outputs`,
			self.Name, len(self.Inputs), len(outs))
	}

	vals, err := self.DecodeLog(entry)
	if err != nil {
		return err
	}
	for i, val := range vals {
		err := val.Assign(outs[i])
		if err != nil {
			return errors.Wrapf(err, `failed to unmarshal parameter %v of event %v`, i, self.Name)
		}
	}
	return nil
}

// Elementary types stored in topics as-is rather than hashed.
func abiIsValueType(typ AbiType) bool {
	switch typ.Kind {
	case AbiKindBool, AbiKindUint, AbiKindInt, AbiKindAddress, AbiKindFunction, AbiKindFixedBytes:
		return true
	default:
		return false
	}
}

/*
Computes the topic of an indexed event parameter, for log filtering. Value
types are their 32-byte encoding. Bytes and strings are hashed as-is. Arrays
and tuples are hashed over the concatenation of their elements' encodings,
each padded to 32 bytes, without offsets or lengths.
*/
func AbiTopic(val AbiValue) (Word, error) {
	if abiIsValueType(val.Type) {
		buf, err := AbiEncode([]AbiValue{val})
		if err != nil {
			return Word{}, err
		}
		return Word(bytesToWord(buf)), nil
	}

	switch val.Type.Kind {
	case AbiKindBytes:
		return Word(Keccak256(val.Bytes)), nil
	case AbiKindString:
		return Word(Keccak256(stringToBytesUnsafe(val.Str))), nil
	}

	buf, err := abiAppendInPlace(nil, val)
	if err != nil {
		return Word{}, err
	}
	return Word(Keccak256(buf)), nil
}

func abiAppendInPlace(out []byte, val AbiValue) ([]byte, error) {
	switch val.Type.Kind {
	case AbiKindBytes:
		return appendRightPadded(out, val.Bytes), nil
	case AbiKindString:
		return appendRightPadded(out, stringToBytesUnsafe(val.Str)), nil
	case AbiKindFixedArray, AbiKindArray, AbiKindTuple:
		if err := val.checkElems(); err != nil {
			return out, err
		}
		for i, elem := range val.Elems {
			var err error
			out, err = abiAppendInPlace(out, elem)
			if err != nil {
				return out, wrapAbiPath(err, i)
			}
		}
		return out, nil
	default:
		return abiAppendValue(out, val)
	}
}

/*
Represents a method parameter, method return value, or event parameter.
Part of an ABI definition, used for encoding and decoding. For tuples,
"Components" describes the members and ".AbiType" is the assembled tuple type.
*/
type AbiParam struct {
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	InternalType string     `json:"internalType,omitempty"`
	Components   []AbiParam `json:"components,omitempty"` // tuple type only
	Indexed      bool       `json:"indexed,omitempty"`    // event only
	AbiType      AbiType    `json:"-"`
}

// Implements "json.Unmarshaler".
func (self *AbiParam) UnmarshalJSON(input []byte) error {
	type plain AbiParam
	var out plain
	err := json.Unmarshal(input, &out)
	if err != nil {
		return err
	}

	abiType, err := abiParamType(out.Type, out.Components)
	if err != nil {
		return err
	}

	*self = AbiParam(out)
	self.AbiType = abiType
	return nil
}

/*
Canonical signature of a method, event or error: the name followed by the
canonical parameter types, with tuples spelled out.
*/
func AbiSignature(name string, params []AbiParam) string {
	var buf strings.Builder
	buf.WriteString(name)
	buf.WriteByte('(')
	for i, param := range params {
		if i > 0 {
			buf.WriteByte(',')
		}
		param.AbiType.appendName(&buf)
	}
	buf.WriteByte(')')
	return buf.String()
}

/*
Computes the keccak hash of a canonical signature. The first 4 bytes are a
function selector; the full hash is an event topic.
*/
func AbiParamsChecksum(name string, params []AbiParam) Hash {
	return Keccak256([]byte(AbiSignature(name, params)))
}

func abiSelector(name string, params []AbiParam) [4]byte {
	sum := AbiParamsChecksum(name, params)
	return [4]byte{sum[0], sum[1], sum[2], sum[3]}
}

/*
End-biased: if the input is shorter, it's written to the end; if the input is
longer, it's sliced from the end.
*/
func bytesToWord(input []byte) Word {
	var out Word
	if len(input) > len(out) {
		copy(out[:], input[len(input)-len(out):])
	} else {
		copy(out[len(out)-len(input):], input)
	}
	return out
}
