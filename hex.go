package ethcore

import (
	"encoding/hex"
	"strconv"
)

/*
Similar to "hex.Encode" from "encoding/hex". Writes a hex-encoded string
representing the input into the output buffer, prepending "0x". Requires the
output size to be exactly "HexEncodedLen(len(input))".
*/
func HexEncodeTo(output []byte, input []byte) error {
	if HexEncodedLen(len(input)) != len(output) {
		return encodingErrorf("hex-encoded output has %d bytes, have space for %d",
			HexEncodedLen(len(input)), len(output))
	}
	output[0] = '0'
	output[1] = 'x'
	hex.Encode(output[2:], input)
	return nil
}

// Version of "HexEncodeTo" that always allocates the output.
func HexEncode(input []byte) []byte {
	out := make([]byte, HexEncodedLen(len(input)))
	err := HexEncodeTo(out, input)
	if err != nil {
		panic(err)
	}
	return out
}

/*
Similar to "hex.Decode" from "encoding/hex". Hex-decodes the input, dropping the
mandatory "0x" prefix, and writes it to the output. Requires the output size to
be exactly "HexDecodedLen(len(input))". Empty or nil input is ok.

The output is left untouched when returning an error.
*/
func HexDecodeTo(output []byte, input []byte) error {
	raw, err := drop0x(input)
	if err != nil {
		return err
	}
	if len(raw)%2 != 0 {
		return encodingErrorf("hex input %q has odd length", input)
	}
	if HexDecodedLen(len(input)) != len(output) {
		return encodingErrorf("hex input %q has %d bytes, want %d",
			input, HexDecodedLen(len(input)), len(output))
	}

	buf := make([]byte, len(output))
	_, err = hex.Decode(buf, raw)
	if err != nil {
		return encodingErrorf("malformed hex input %q: %v", input, err)
	}
	copy(output, buf)
	return nil
}

// Version of "HexDecodeTo" that always allocates the output.
func HexDecode(input []byte) ([]byte, error) {
	output := make([]byte, HexDecodedLen(len(input)))
	err := HexDecodeTo(output, input)
	if err != nil {
		return nil, err
	}
	return output, nil
}

// Version of "HexDecode" that panics on error. Convenient for initializing
// global variables.
func MustHexDecode(input []byte) []byte {
	output, err := HexDecode(input)
	if err != nil {
		panic(err)
	}
	return output
}

// Version of "HexDecode" that accepts a string and panics on error. Convenient
// for initializing global variables.
func MustHexParse(input string) []byte {
	return MustHexDecode(stringToBytesUnsafe(input))
}

func drop0x(input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, nil
	}
	if has0x(input) {
		return input[2:], nil
	}
	return input, encodingErrorf("malformed input %q: missing 0x prefix", input)
}

func has0x(input []byte) bool {
	return len(input) >= 2 && input[0] == '0' && (input[1] == 'x' || input[1] == 'X')
}

/*
Similar to "hex.EncodedLen" from "encoding/hex". Takes an unencoded byte count
and returns how many bytes are needed to hex-encode it with the "0x" prefix.
Namely, it returns "(len * 2) + 2".
*/
func HexEncodedLen(len int) int {
	return (len * 2) + 2
}

/*
Similar to "hex.DecodedLen" from "encoding/hex". Takes an encoded byte count,
which must include the "0x" prefix, and returns how many bytes are necessary to
hold the decoded output. Namely, it returns "(len - 2) / 2". Empty input size is
ok and requires zero output.
*/
func HexDecodedLen(len int) int {
	if len < 2 {
		return 0
	}
	return (len - 2) / 2
}

/*
Validates a hex-encoded quantity: "0x" followed by at least one hex digit, with
no leading zeros other than "0x0" itself. Returns the digits.
*/
func quantityDigits(input []byte) ([]byte, error) {
	if !has0x(input) {
		return nil, encodingErrorf("malformed quantity %q: missing 0x prefix", input)
	}
	digits := input[2:]
	if len(digits) == 0 {
		return nil, encodingErrorf("malformed quantity %q: no digits", input)
	}
	if len(digits) > 1 && digits[0] == '0' {
		return nil, encodingErrorf("malformed quantity %q: leading zero digits", input)
	}
	return digits, nil
}

func appendQuantity(out []byte, num uint64) []byte {
	out = append(out, '0', 'x')
	return strconv.AppendUint(out, num, 16)
}
