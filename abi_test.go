package ethcore

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var TestAbi = MustParseAbiJson(`[
	{
		"type": "constructor",
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "supply", "type": "uint256"}
		],
		"stateMutability": "nonpayable"
	},
	{
		"type": "function",
		"name": "one",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view"
	},
	{
		"type": "function",
		"name": "two",
		"inputs": [
			{"name": "x", "type": "uint32"},
			{"name": "y", "type": "bool"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "three",
		"inputs": [
			{"name": "name", "type": "bytes"},
			{"name": "flag", "type": "bool"},
			{"name": "nums", "type": "uint256[]"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "four",
		"inputs": [
			{
				"name": "order",
				"type": "tuple",
				"internalType": "struct Exchange.Order",
				"components": [
					{"name": "maker", "type": "address"},
					{"name": "amounts", "type": "uint256[]"}
				]
			}
		],
		"outputs": [
			{"name": "ok", "type": "bool"},
			{"name": "id", "type": "bytes32"}
		]
	},
	{
		"type": "function",
		"name": "transfer",
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"outputs": [{"name": "", "type": "bool"}]
	},
	{
		"type": "function",
		"name": "balanceOf",
		"inputs": [{"name": "owner", "type": "address"}],
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view"
	},
	{
		"type": "event",
		"name": "Transfer",
		"anonymous": false,
		"inputs": [
			{"name": "from", "type": "address", "indexed": true},
			{"name": "to", "type": "address", "indexed": true},
			{"name": "value", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "Note",
		"anonymous": false,
		"inputs": [
			{"name": "tag", "type": "string", "indexed": true},
			{"name": "body", "type": "string", "indexed": false}
		]
	},
	{
		"type": "error",
		"name": "InsufficientBalance",
		"inputs": [
			{"name": "available", "type": "uint256"},
			{"name": "required", "type": "uint256"}
		]
	},
	{"type": "fallback", "stateMutability": "payable"}
]`)

var (
	testAlice = MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	testBob   = MustParseAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
)

type testOrder struct {
	Maker   Address
	Amounts []*big.Int
	note    string
}

func TestAbiParse(t *testing.T) {
	require.Len(t, TestAbi, 11)

	_, ok := TestAbi[len(TestAbi)-1].(AbiFallback)
	require.True(t, ok)

	_, ok = TestAbi.MaybeFunction("missing")
	require.False(t, ok)
	require.Panics(t, func() { TestAbi.Function("missing") })
	require.Panics(t, func() { TestAbi.Event("missing") })

	four := TestAbi.Function("four")
	require.Equal(t, "four((address,uint256[]))", four.Signature())
	require.Equal(t, "(address,uint256[])", four.Inputs[0].AbiType.String())

	require.Equal(t, "Transfer(address,address,uint256)", TestAbi.Event("Transfer").Signature())

	require.Panics(t, func() { MustParseAbiJson(`[{"type": "unknown"}]`) })
	require.Panics(t, func() { MustParseAbiJson(`[{"type": "function", "name": "f", "inputs": [{"type": "uint7"}]}]`) })
}

func TestAbiSelectors(t *testing.T) {
	require.Equal(t, [4]byte{0xa9, 0x05, 0x9c, 0xbb}, TestAbi.Function("transfer").Selector)
	require.Equal(t, [4]byte{0x70, 0xa0, 0x82, 0x31}, TestAbi.Function("balanceOf").Selector)
	require.Equal(t,
		MustParseWord("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"),
		TestAbi.Event("Transfer").Topic,
	)

	data, err := TestAbi.Function("transfer").Marshal(testBob, big.NewInt(1))
	require.NoError(t, err)

	fun, ok := TestAbi.FunctionBySelector(data)
	require.True(t, ok)
	require.Equal(t, "transfer", fun.Name)

	_, ok = TestAbi.FunctionBySelector([]byte{0xa9, 0x05})
	require.False(t, ok)

	event, ok := TestAbi.EventByTopic(TestAbi.Event("Transfer").Topic)
	require.True(t, ok)
	require.Equal(t, "Transfer", event.Name)
}

func TestAbiFunctionMarshal(t *testing.T) {
	three := TestAbi.Function("three")

	data, err := three.Marshal([]byte("dave"), true, []uint64{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, three.Selector[:], data[:4])
	require.Equal(t, words(
		word("60"),
		word("1"),
		word("a0"),
		word("4"),
		rword("64617665"),
		word("3"),
		word("1"),
		word("2"),
		word("3"),
	), data[4:])

	vals, err := three.DecodeInput(data)
	require.NoError(t, err)
	require.Equal(t, []byte("dave"), vals[0].Bytes)
	require.True(t, vals[1].Bool)
	require.Len(t, vals[2].Elems, 3)

	_, err = three.DecodeInput(data[1:])
	requireEncodingError(t, err)

	_, err = three.Marshal([]byte("dave"), true)
	require.Error(t, err)

	_, err = three.Marshal([]byte("dave"), "true", []uint64{})
	require.Error(t, err)

	_, err = TestAbi.Function("two").Marshal(uint64(1<<32), true)
	requireEncodingError(t, err)
}

func TestAbiFunctionEncodeCall(t *testing.T) {
	two := TestAbi.Function("two")

	data, err := two.EncodeCall([]AbiValue{mustAbiUint(32, 69), AbiBool(true)})
	require.NoError(t, err)
	require.Equal(t, words(word("45"), word("1")), data[4:])

	_, err = two.EncodeCall([]AbiValue{mustAbiUint(256, 69), AbiBool(true)})
	requireEncodingError(t, err)

	_, err = two.EncodeCall([]AbiValue{mustAbiUint(32, 69)})
	requireEncodingError(t, err)
}

func TestAbiTupleStruct(t *testing.T) {
	four := TestAbi.Function("four")
	input := testOrder{
		Maker:   testAlice,
		Amounts: []*big.Int{big.NewInt(10), big.NewInt(20)},
		note:    "unexported fields are skipped",
	}

	data, err := four.Marshal(input)
	require.NoError(t, err)

	vals, err := four.DecodeInput(data)
	require.NoError(t, err)

	var output testOrder
	require.NoError(t, vals[0].Assign(&output))
	require.Equal(t, input.Maker, output.Maker)
	require.Equal(t, input.Amounts, output.Amounts)

	var native interface{}
	require.NoError(t, vals[0].Assign(&native))
	require.Equal(t, []interface{}{testAlice, []interface{}{big.NewInt(10), big.NewInt(20)}}, native)

	id := MustParseWord("0x00000000000000000000000000000000000000000000000000000000000000ff")
	returned, err := AbiEncode([]AbiValue{AbiBool(true), {Type: AbiTypeBytes32, Bytes: id[:]}})
	require.NoError(t, err)

	var ok bool
	var outId Word
	require.NoError(t, four.Unmarshal(returned, &ok, &outId))
	require.True(t, ok)
	require.Equal(t, id, outId)

	require.Error(t, four.Unmarshal(returned, &ok))
	require.Error(t, four.Unmarshal(returned, ok, &outId))
}

func TestAbiMarshalNestedArrays(t *testing.T) {
	typ := MustParseAbiType("uint32[2][3][4]")
	input := [4][3][2]uint32{
		{{1, 2}, {3, 4}, {5, 6}},
		{{7, 8}, {9, 10}, {11, 12}},
		{{13, 14}, {15, 16}, {17, 18}},
		{{19, 20}, {21, 22}, {23, 24}},
	}

	encoded, err := AbiMarshal(typ, input)
	require.NoError(t, err)
	require.Len(t, encoded, 24*32)
	require.Equal(t, words(word("1")), encoded[:32])
	require.Equal(t, words(word("18")), encoded[len(encoded)-32:])

	var output [4][3][2]uint32
	require.NoError(t, AbiUnmarshal(encoded, typ, &output))
	require.Equal(t, input, output)

	var short [4][3][1]uint32
	require.Error(t, AbiUnmarshal(encoded, typ, &short))
}

func TestAbiUnmarshalRange(t *testing.T) {
	encoded := words(word("100"))

	var small uint8
	require.Error(t, AbiUnmarshal(encoded, AbiTypeUint256, &small))

	var wide uint16
	require.NoError(t, AbiUnmarshal(encoded, AbiTypeUint256, &wide))
	require.Equal(t, uint16(256), wide)

	var num U256
	require.NoError(t, AbiUnmarshal(encoded, AbiTypeUint256, &num))
	require.Equal(t, "256", num.String())

	var bigNum *big.Int
	require.NoError(t, AbiUnmarshal(encoded, AbiTypeUint256, &bigNum))
	require.Equal(t, int64(256), bigNum.Int64())

	var str string
	require.Error(t, AbiUnmarshal(encoded, AbiTypeUint256, &str))

	_, err := AbiValueOf(AbiTypeBool, "true")
	require.Error(t, err)

	_, err = AbiValueOf(AbiTypeAddress, nil)
	require.Error(t, err)
}

func TestAbiValueOfAddress(t *testing.T) {
	type rawAddress [20]byte

	for _, input := range []interface{}{testAlice, [20]byte(testAlice), rawAddress(testAlice), testAlice[:], &testAlice} {
		val, err := AbiValueOf(AbiTypeAddress, input)
		require.NoError(t, err)
		require.Equal(t, testAlice, val.Addr)
	}

	for _, input := range []interface{}{[]byte{1, 2, 3}, make([]byte, 21), [3]byte{}, []uint16{1}} {
		require.NotPanics(t, func() {
			_, err := AbiValueOf(AbiTypeAddress, input)
			require.Error(t, err)
		})
	}

	_, err := AbiValueOf(AbiTypeAddress, make([]byte, 21))
	requireEncodingError(t, err)
}

func TestAbiEventDecode(t *testing.T) {
	event := TestAbi.Event("Transfer")
	amount, err := AbiEncode([]AbiValue{mustAbiUint(256, 1000)})
	require.NoError(t, err)

	entry := LogEntry{
		Topics: []Word{event.Topic, testAlice.Word(), testBob.Word()},
		Data:   amount,
	}

	var from, to Address
	var value *big.Int
	require.NoError(t, event.UnmarshalLogEntry(entry, &from, &to, &value))
	require.Equal(t, testAlice, from)
	require.Equal(t, testBob, to)
	require.Equal(t, int64(1000), value.Int64())

	require.Error(t, event.UnmarshalLogEntry(entry, &from, &to))

	wrongTopic := entry
	wrongTopic.Topics = []Word{TestAbi.Event("Note").Topic, testAlice.Word(), testBob.Word()}
	_, err = event.DecodeLog(wrongTopic)
	requireEncodingError(t, err)

	missingTopic := entry
	missingTopic.Topics = entry.Topics[:2]
	_, err = event.DecodeLog(missingTopic)
	requireEncodingError(t, err)

	dirtyTopic := entry
	dirtyTopic.Topics = []Word{event.Topic, MustParseWord("0x" + strings.Repeat("ff", 32)), testBob.Word()}
	_, err = event.DecodeLog(dirtyTopic)
	requireEncodingError(t, err)
}

func TestAbiEventHashedTopic(t *testing.T) {
	event := TestAbi.Event("Note")
	tag, err := AbiTopic(AbiString("greeting"))
	require.NoError(t, err)
	require.Equal(t, Word(Keccak256([]byte("greeting"))), tag)

	body, err := AbiEncode([]AbiValue{AbiString("hello")})
	require.NoError(t, err)

	vals, err := event.DecodeLog(LogEntry{Topics: []Word{event.Topic, tag}, Data: body})
	require.NoError(t, err)
	require.True(t, vals[0].Type.Equal(AbiTypeBytes32))
	require.Equal(t, tag[:], vals[0].Bytes)
	require.Equal(t, "hello", vals[1].Str)

	var outTag Hash
	var outBody string
	require.NoError(t, event.UnmarshalLogEntry(LogEntry{Topics: []Word{event.Topic, tag}, Data: body}, &outTag, &outBody))
	require.Equal(t, Hash(tag), outTag)
	require.Equal(t, "hello", outBody)
}

func TestAbiTopic(t *testing.T) {
	topic, err := AbiTopic(AbiAddress(testAlice))
	require.NoError(t, err)
	require.Equal(t, testAlice.Word(), topic)

	topic, err = AbiTopic(mustAbiArray(AbiTypeUint256, mustAbiUint(256, 1), mustAbiUint(256, 2)))
	require.NoError(t, err)
	require.Equal(t, Word(Keccak256(words(word("1"), word("2")))), topic)

	topic, err = AbiTopic(AbiTuple(AbiBool(true), AbiString("ab")))
	require.NoError(t, err)
	require.Equal(t, Word(Keccak256(words(word("1"), rword("6162")))), topic)
}

func TestAbiEventFilter(t *testing.T) {
	event := TestAbi.Event("Transfer")
	filter := event.Filter(testAlice)
	require.Equal(t, []Address{testAlice}, filter.Address)
	require.Equal(t, [][]Word{{event.Topic}}, filter.Topics)
}

func TestAbiCustomError(t *testing.T) {
	abiErr, ok := TestAbi.MaybeError("InsufficientBalance")
	require.True(t, ok)
	require.Equal(t, abiSelector("InsufficientBalance", abiErr.Inputs), abiErr.Selector)

	payload := append(abiErr.Selector[:], words(word("5"), word("a"))...)
	vals, err := abiErr.Decode(payload)
	require.NoError(t, err)
	require.Equal(t, int64(5), vals[0].Int.Int64())
	require.Equal(t, int64(10), vals[1].Int.Int64())

	_, err = abiErr.Decode(payload[1:])
	requireEncodingError(t, err)

	_, err = DecodeRevertReason(payload)
	requireEncodingError(t, err)
}

func TestDecodeRevertReason(t *testing.T) {
	body, err := AbiEncode([]AbiValue{AbiString("Not enough Ether provided.")})
	require.NoError(t, err)

	reason, err := DecodeRevertReason(append(unhex("08c379a0"), body...))
	require.NoError(t, err)
	require.Equal(t, "Not enough Ether provided.", reason)

	reason, err = DecodeRevertReason(append(unhex("4e487b71"), words(word("11"))...))
	require.NoError(t, err)
	require.Equal(t, "panic: 0x11", reason)

	_, err = DecodeRevertReason(unhex("08c3"))
	requireEncodingError(t, err)

	_, err = DecodeRevertReason(append(unhex("08c379a0"), words(word("20"))...))
	requireEncodingError(t, err)
}

func TestAbiConstructorDeploy(t *testing.T) {
	code := unhex("6080604052")

	data, err := TestAbi.Constructor().Deploy(code, testAlice, big.NewInt(1000))
	require.NoError(t, err)
	require.Equal(t, code, data[:len(code)])
	require.Equal(t, words("000000000000000000000000"+strings.TrimPrefix(testAlice.String(), "0x"), word("3e8")), data[len(code):])

	_, err = TestAbi.Constructor().Deploy(nil, testAlice, big.NewInt(1000))
	require.Error(t, err)

	_, err = TestAbi.Constructor().Deploy(code, testAlice)
	require.Error(t, err)

	implicit := Abi{}.Constructor()
	data, err = implicit.Deploy(code)
	require.NoError(t, err)
	require.Equal(t, code, data)
}

func TestReadContractDefs(t *testing.T) {
	input := `{
		"contracts": {
			"a.sol:Old": {
				"abi": "[{\"type\":\"function\",\"name\":\"one\",\"inputs\":[],\"outputs\":[]}]",
				"bin": "6080"
			},
			"b.sol:New": {
				"abi": [{"type": "event", "name": "Ping", "inputs": []}],
				"bin": "0x6001"
			}
		}
	}`

	defs, err := DecodeContractDefs([]byte(input))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	old := defs["a.sol:Old"]
	require.Equal(t, "a.sol", old.FileName)
	require.Equal(t, "Old", old.ContractName)
	require.Equal(t, HexBytes{0x60, 0x80}, old.Code)
	_, ok := old.Abi.MaybeFunction("one")
	require.True(t, ok)

	fresh := defs["b.sol:New"]
	require.Equal(t, HexBytes{0x60, 0x01}, fresh.Code)
	require.Equal(t, Word(Keccak256([]byte("Ping()"))), fresh.Abi.Event("Ping").Topic)

	_, err = DecodeContractDefs([]byte(`{"contracts": {"nocolon": {"abi": [], "bin": ""}}}`))
	require.Error(t, err)

	_, err = DecodeContractDefs([]byte(`{"contracts": {"a.sol:A": {"abi": [], "bin": "zz"}}}`))
	require.Error(t, err)
}
