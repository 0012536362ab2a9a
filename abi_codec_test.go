package ethcore

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustAbiUint(bits int, num int64) AbiValue {
	out, err := AbiUint(bits, big.NewInt(num))
	if err != nil {
		panic(err)
	}
	return out
}

func mustAbiArray(elem AbiType, elems ...AbiValue) AbiValue {
	out, err := AbiArray(elem, elems...)
	if err != nil {
		panic(err)
	}
	return out
}

func TestParseAbiType(t *testing.T) {
	cases := map[string]string{
		"uint":                   "uint256",
		"int":                    "int256",
		"byte":                   "bytes1",
		"uint8":                  "uint8",
		"bytes32":                "bytes32",
		"address[12]":            "address[12]",
		"uint256[][3]":           "uint256[][3]",
		"(uint256,address[])[2]": "(uint256,address[])[2]",
		"()":                     "()",
		"((bool,string),bytes)":  "((bool,string),bytes)",
	}
	for input, expected := range cases {
		typ, err := ParseAbiType(input)
		require.NoError(t, err, input)
		require.Equal(t, expected, typ.String())
	}

	for _, input := range []string{"", "uint7", "uint264", "uint08", "bytes0", "bytes33", "foo", "uint256[", "(uint256", "uint256[0]", "(uint256;bool)", "uint256 "} {
		_, err := ParseAbiType(input)
		require.Error(t, err, input)
	}
}

func TestAbiTypeLayout(t *testing.T) {
	require.False(t, MustParseAbiType("uint256[3]").IsDynamic())
	require.Equal(t, 96, MustParseAbiType("uint256[3]").HeadSize())
	require.Equal(t, 64, MustParseAbiType("(bool,address)").HeadSize())
	require.True(t, MustParseAbiType("(bool,bytes)").IsDynamic())
	require.True(t, MustParseAbiType("string[2]").IsDynamic())
	require.Equal(t, 32, MustParseAbiType("string[2]").HeadSize())
	require.True(t, MustParseAbiType("(uint8,bytes32)[4]").IsStaticallySized())
	require.False(t, MustParseAbiType("(uint8,bytes)").IsStaticallySized())
}

func TestAbiValueConstructors(t *testing.T) {
	_, err := AbiUint(8, big.NewInt(256))
	requireEncodingError(t, err)

	_, err = AbiUint(8, big.NewInt(-1))
	requireEncodingError(t, err)

	_, err = AbiInt(8, big.NewInt(-129))
	requireEncodingError(t, err)

	_, err = AbiInt(8, big.NewInt(-128))
	require.NoError(t, err)

	_, err = AbiUint(7, big.NewInt(1))
	requireEncodingError(t, err)

	_, err = AbiFixedBytes(make([]byte, 33))
	requireEncodingError(t, err)

	_, err = AbiArray(AbiTypeUint256, AbiBool(true))
	requireEncodingError(t, err)

	_, err = AbiFixedArray(AbiTypeUint256)
	requireEncodingError(t, err)
}

func TestAbiEncodeBaz(t *testing.T) {
	encoded, err := AbiEncode([]AbiValue{mustAbiUint(32, 69), AbiBool(true)})
	require.NoError(t, err)
	require.Equal(t, words(word("45"), word("1")), encoded)
}

func TestAbiEncodeSam(t *testing.T) {
	vals := []AbiValue{
		AbiBytes([]byte("dave")),
		AbiBool(true),
		mustAbiArray(AbiTypeUint256, mustAbiUint(256, 1), mustAbiUint(256, 2), mustAbiUint(256, 3)),
	}

	expected := words(
		word("60"),
		word("1"),
		word("a0"),
		word("4"),
		rword("64617665"),
		word("3"),
		word("1"),
		word("2"),
		word("3"),
	)

	encoded, err := AbiEncode(vals)
	require.NoError(t, err)
	require.Equal(t, expected, encoded)

	decoded, err := AbiDecode([]AbiType{AbiTypeBytes, AbiTypeBool, AbiTypeArray(AbiTypeUint256)}, encoded)
	require.NoError(t, err)
	requireAbiValuesEqual(t, vals, decoded)
}

func TestAbiEncodeF(t *testing.T) {
	bytes10, err := AbiFixedBytes([]byte("1234567890"))
	require.NoError(t, err)

	vals := []AbiValue{
		mustAbiUint(256, 0x123),
		mustAbiArray(AbiTypeUint(32), mustAbiUint(32, 0x456), mustAbiUint(32, 0x789)),
		bytes10,
		AbiBytes([]byte("Hello, world!")),
	}

	expected := words(
		word("123"),
		word("80"),
		rword("31323334353637383930"),
		word("e0"),
		word("2"),
		word("456"),
		word("789"),
		word("d"),
		rword("48656c6c6f2c20776f726c6421"),
	)

	encoded, err := AbiEncode(vals)
	require.NoError(t, err)
	require.Equal(t, expected, encoded)

	types := []AbiType{
		AbiTypeUint256,
		MustParseAbiType("uint32[]"),
		MustParseAbiType("bytes10"),
		AbiTypeBytes,
	}
	decoded, err := AbiDecode(types, encoded)
	require.NoError(t, err)
	requireAbiValuesEqual(t, vals, decoded)
}

func TestAbiEncodeG(t *testing.T) {
	inner := AbiTypeArray(AbiTypeUint256)
	vals := []AbiValue{
		mustAbiArray(inner,
			mustAbiArray(AbiTypeUint256, mustAbiUint(256, 1), mustAbiUint(256, 2)),
			mustAbiArray(AbiTypeUint256, mustAbiUint(256, 3)),
		),
		mustAbiArray(AbiTypeString, AbiString("one"), AbiString("two"), AbiString("three")),
	}

	expected := words(
		word("40"),
		word("140"),
		word("2"),
		word("40"),
		word("a0"),
		word("2"),
		word("1"),
		word("2"),
		word("1"),
		word("3"),
		word("3"),
		word("60"),
		word("a0"),
		word("e0"),
		word("3"),
		rword("6f6e65"),
		word("3"),
		rword("74776f"),
		word("5"),
		rword("7468726565"),
	)

	encoded, err := AbiEncode(vals)
	require.NoError(t, err)
	require.Equal(t, expected, encoded)

	decoded, err := AbiDecode([]AbiType{AbiTypeArray(inner), AbiTypeArray(AbiTypeString)}, encoded)
	require.NoError(t, err)
	requireAbiValuesEqual(t, vals, decoded)
}

func TestAbiRoundTripTuples(t *testing.T) {
	typ := MustParseAbiType("(uint256,(bool,string)[],address,int16[2])[]")

	int16s, err := AbiFixedArray(AbiTypeInt(16), mustAbiInt(16, -1), mustAbiInt(16, 300))
	require.NoError(t, err)

	inner := func(flag bool, str string) AbiValue { return AbiTuple(AbiBool(flag), AbiString(str)) }
	innerType := AbiTypeTuple(AbiTypeBool, AbiTypeString)

	elem := func(num int64, strs ...string) AbiValue {
		var elems []AbiValue
		for i, str := range strs {
			elems = append(elems, inner(i%2 == 0, str))
		}
		return AbiTuple(
			mustAbiUint(256, num),
			mustAbiArray(innerType, elems...),
			AbiAddress(MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")),
			int16s,
		)
	}

	val := mustAbiArray(*typ.Elem, elem(1, "a", "bb"), elem(2), elem(3, "ccc"))
	require.True(t, val.Type.Equal(typ))

	encoded, err := AbiEncode([]AbiValue{val, AbiString("tail")})
	require.NoError(t, err)

	decoded, err := AbiDecode([]AbiType{typ, AbiTypeString}, encoded)
	require.NoError(t, err)
	requireAbiValuesEqual(t, []AbiValue{val, AbiString("tail")}, decoded)
}

func mustAbiInt(bits int, num int64) AbiValue {
	out, err := AbiInt(bits, big.NewInt(num))
	if err != nil {
		panic(err)
	}
	return out
}

func TestAbiSignedIntegers(t *testing.T) {
	encoded, err := AbiEncode([]AbiValue{mustAbiInt(8, -1), mustAbiInt(256, -2)})
	require.NoError(t, err)
	require.Equal(t, words(
		"ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
		"fffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffe",
	), encoded)

	decoded, err := AbiDecode([]AbiType{AbiTypeInt(8), AbiTypeInt256}, encoded)
	require.NoError(t, err)
	require.Equal(t, int64(-1), decoded[0].Int.Int64())
	require.Equal(t, int64(-2), decoded[1].Int.Int64())
}

// Zero-length fixed arrays and empty dynamic arrays encode without elements.
func TestAbiEmptyArrays(t *testing.T) {
	encoded, err := AbiEncode([]AbiValue{mustAbiArray(AbiTypeString)})
	require.NoError(t, err)
	require.Equal(t, words(word("20"), word("0")), encoded)

	decoded, err := AbiDecode([]AbiType{AbiTypeArray(AbiTypeString)}, encoded)
	require.NoError(t, err)
	require.Empty(t, decoded[0].Elems)
}

func TestAbiDecodeStrictPadding(t *testing.T) {
	cases := []struct {
		name  string
		typ   AbiType
		input []byte
	}{
		{"bool 2", AbiTypeBool, words(word("2"))},
		{"uint8 high bytes", AbiTypeUint(8), words(word("100"))},
		{"address padding", AbiTypeAddress, words("01" + word("")[2:])},
		{"int8 sign extension", AbiTypeInt(8), words(word("ff"))},
		{"bytes4 padding", MustParseAbiType("bytes4"), words(rword("0102030405"))},
		{"bytes padding", AbiTypeBytes, words(word("20"), word("2"), rword("010203"))},
		{"string utf8", AbiTypeString, words(word("20"), word("2"), rword("fffe"))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := AbiDecode([]AbiType{tc.typ}, tc.input)
			requireEncodingError(t, err)

			_, err = AbiDecodeWith(AbiDecodeOpts{Lenient: true}, []AbiType{tc.typ}, tc.input)
			require.NoError(t, err)
		})
	}
}

func TestAbiDecodeMalformed(t *testing.T) {
	cases := []struct {
		name  string
		types []AbiType
		input []byte
	}{
		{"empty input", []AbiType{AbiTypeUint256}, nil},
		{"short word", []AbiType{AbiTypeUint256}, unhex("0001")},
		{"offset past end", []AbiType{AbiTypeBytes}, words(word("40"))},
		{"huge offset", []AbiType{AbiTypeBytes}, words("ff" + word("")[2:])},
		{"missing length", []AbiType{AbiTypeBytes}, words(word("20"))},
		{"length past end", []AbiType{AbiTypeBytes}, words(word("20"), word("40"), rword("01"))},
		{"huge length", []AbiType{AbiTypeString}, words(word("20"), word("ffffffffffff"))},
		{"huge count", []AbiType{AbiTypeArray(AbiTypeUint256)}, words(word("20"), word("ffffff"), word("1"))},
		{"count past end", []AbiType{AbiTypeArray(AbiTypeUint256)}, words(word("20"), word("3"), word("1"), word("2"))},
		{"nested offset past end", []AbiType{AbiTypeArray(AbiTypeBytes)}, words(word("20"), word("1"), word("1000"))},
		{"static tuple truncated", []AbiType{MustParseAbiType("(uint256,uint256)")}, words(word("1"))},
		{"negative fixed array", []AbiType{AbiTypeFixedArray(AbiTypeUint256, -1)}, words(word("1"), word("2"))},
		{"empty fixed array", []AbiType{AbiTypeFixedArray(AbiTypeUint256, 0)}, words(word("1"))},
		{"oversized fixed array", []AbiType{AbiTypeFixedArray(AbiTypeUint256, 1<<58)}, words(word("1"), word("2"))},
		{"oversized nested array", []AbiType{AbiTypeFixedArray(AbiTypeFixedArray(AbiTypeUint256, 1<<10), 1<<20)}, words(word("1"))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				_, err := AbiDecode(tc.types, tc.input)
				requireEncodingError(t, err)
			})
			require.NotPanics(t, func() {
				_, err := AbiDecodeWith(AbiDecodeOpts{Lenient: true}, tc.types, tc.input)
				requireEncodingError(t, err)
			})
		})
	}
}

func TestAbiEncodeRejectsInvalidValues(t *testing.T) {
	_, err := AbiEncode([]AbiValue{{Type: AbiTypeUint(8), Int: big.NewInt(1000)}})
	requireEncodingError(t, err)

	_, err = AbiEncode([]AbiValue{{Type: MustParseAbiType("bytes4"), Bytes: []byte{1}}})
	requireEncodingError(t, err)

	_, err = AbiEncode([]AbiValue{AbiString("\xff")})
	requireEncodingError(t, err)

	_, err = AbiEncode([]AbiValue{{Type: MustParseAbiType("uint256[2]"), Elems: []AbiValue{mustAbiUint(256, 1)}}})
	requireEncodingError(t, err)

	_, err = AbiEncode([]AbiValue{{Type: AbiTypeFixedArray(AbiTypeUint256, -1)}})
	requireEncodingError(t, err)

	out, err := AbiEncode([]AbiValue{mustAbiUint(256, 1), AbiBytes([]byte{1}), AbiString("\xff")})
	requireEncodingError(t, err)
	require.Nil(t, out)
}

func requireAbiValuesEqual(t *testing.T, expected, actual []AbiValue) {
	t.Helper()
	require.Equal(t, len(expected), len(actual))
	for i := range expected {
		if !expected[i].Equal(actual[i]) {
			requireEqualDump(t, expected[i], actual[i])
		}
	}
}
