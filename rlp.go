package ethcore

/*
Recursive Length Prefix encoding. See
https://ethereum.org/en/developers/docs/data-structures-and-encoding/rlp/
*/

import (
	"encoding/binary"
	"math"
	"math/big"
)

/*
A decoded or to-be-encoded RLP item. Exactly one of:

	RlpString
	RlpList

A nil item encodes as the empty string.
*/
type RlpItem interface {
	rlpItem()
}

// Byte string item.
type RlpString []byte

// List item.
type RlpList []RlpItem

func (RlpString) rlpItem() {}
func (RlpList) rlpItem()   {}

const (
	rlpStringOffset = 0x80
	rlpListOffset   = 0xc0
	rlpShortMax     = 55

	// Decoding refuses to recurse deeper than this.
	rlpMaxDepth = 1024
)

// Produces the canonical encoding of the item. Can't fail.
func RlpEncode(item RlpItem) []byte {
	return rlpAppend(nil, item)
}

func rlpAppend(out []byte, item RlpItem) []byte {
	switch item := item.(type) {
	case RlpList:
		var payload []byte
		for _, elem := range item {
			payload = rlpAppend(payload, elem)
		}
		out = rlpAppendHeader(out, rlpListOffset, len(payload))
		return append(out, payload...)

	case RlpString:
		if len(item) == 1 && item[0] < rlpStringOffset {
			return append(out, item[0])
		}
		out = rlpAppendHeader(out, rlpStringOffset, len(item))
		return append(out, item...)

	default:
		return append(out, rlpStringOffset)
	}
}

func rlpAppendHeader(out []byte, offset byte, length int) []byte {
	if length <= rlpShortMax {
		return append(out, offset+byte(length))
	}
	size := minimalBigEndian(uint64(length))
	out = append(out, offset+rlpShortMax+byte(len(size)))
	return append(out, size...)
}

func minimalBigEndian(num uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], num)
	i := 0
	for i < len(buf) && buf[i] == 0 {
		i++
	}
	return buf[i:]
}

/*
Decodes exactly one item spanning the whole input. Rejects every non-canonical
form: long headers for short payloads, length prefixes with leading zeros, a
single byte below 0x80 wrapped in a header, truncated input and trailing bytes.
The result doesn't share memory with the input.
*/
func RlpDecode(input []byte) (RlpItem, error) {
	item, rest, err := rlpDecodeItem(input, 0)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, encodingErrorf("rlp: %v trailing bytes after top-level item", len(rest))
	}
	return item, nil
}

func rlpDecodeItem(input []byte, depth int) (RlpItem, []byte, error) {
	if depth > rlpMaxDepth {
		return nil, nil, encodingErrorf("rlp: nesting exceeds %v levels", rlpMaxDepth)
	}

	isList, payload, rest, err := rlpSplit(input)
	if err != nil {
		return nil, nil, err
	}

	if !isList {
		out := make(RlpString, len(payload))
		copy(out, payload)
		return out, rest, nil
	}

	out := RlpList{}
	for len(payload) > 0 {
		var elem RlpItem
		elem, payload, err = rlpDecodeItem(payload, depth+1)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, elem)
	}
	return out, rest, nil
}

// Splits off the first item, returning its payload and the remaining input.
func rlpSplit(input []byte) (isList bool, payload []byte, rest []byte, err error) {
	if len(input) == 0 {
		return false, nil, nil, encodingErrorf("rlp: unexpected end of input")
	}

	head := input[0]
	switch {
	case head < rlpStringOffset:
		return false, input[:1], input[1:], nil

	case head <= rlpStringOffset+rlpShortMax:
		size := int(head - rlpStringOffset)
		payload, rest, err = rlpTake(input[1:], size)
		if err != nil {
			return
		}
		if size == 1 && payload[0] < rlpStringOffset {
			err = encodingErrorf("rlp: single byte %#02x must not have a string header", payload[0])
		}
		return false, payload, rest, err

	case head < rlpListOffset:
		payload, rest, err = rlpTakeLong(input[1:], int(head-rlpStringOffset-rlpShortMax))
		return false, payload, rest, err

	case head <= rlpListOffset+rlpShortMax:
		payload, rest, err = rlpTake(input[1:], int(head-rlpListOffset))
		return true, payload, rest, err

	default:
		payload, rest, err = rlpTakeLong(input[1:], int(head-rlpListOffset-rlpShortMax))
		return true, payload, rest, err
	}
}

func rlpTakeLong(input []byte, sizeLen int) ([]byte, []byte, error) {
	if len(input) < sizeLen {
		return nil, nil, encodingErrorf("rlp: truncated length prefix")
	}
	if input[0] == 0 {
		return nil, nil, encodingErrorf("rlp: length prefix has leading zeros")
	}

	var size uint64
	for _, char := range input[:sizeLen] {
		size = size<<8 | uint64(char)
	}
	if size <= rlpShortMax {
		return nil, nil, encodingErrorf("rlp: long form used for a %v-byte payload", size)
	}
	if size > math.MaxInt32 {
		return nil, nil, encodingErrorf("rlp: payload length %v is too large", size)
	}
	return rlpTake(input[sizeLen:], int(size))
}

func rlpTake(input []byte, size int) ([]byte, []byte, error) {
	if size > len(input) {
		return nil, nil, encodingErrorf("rlp: payload of %v bytes truncated to %v", size, len(input))
	}
	return input[:size], input[size:], nil
}

// Minimal big-endian encoding of an unsigned integer. Zero is the empty string.
func RlpUint(num uint64) RlpString {
	return RlpString(minimalBigEndian(num))
}

// Minimal big-endian encoding of a 256-bit unsigned integer.
func RlpU256(num U256) RlpString {
	return RlpString(num.Bytes())
}

/*
Minimal big-endian encoding of a non-negative big integer. Fails on negative
numbers, which RLP can't represent.
*/
func RlpBig(num *big.Int) (RlpString, error) {
	if num == nil || num.Sign() < 0 {
		return nil, encodingErrorf("rlp: can't encode %v as an unsigned integer", num)
	}
	return RlpString(num.Bytes()), nil
}

// Encodes an optional address: 20 bytes, or the empty string when nil.
func RlpAddress(addr *Address) RlpString {
	if addr == nil {
		return RlpString{}
	}
	return RlpString(addr[:])
}

// Reads a canonical unsigned integer: no leading zeros, at most 8 bytes.
func (self RlpString) Uint64() (uint64, error) {
	if err := self.checkInt(8); err != nil {
		return 0, err
	}
	var out uint64
	for _, char := range self {
		out = out<<8 | uint64(char)
	}
	return out, nil
}

// Reads a canonical unsigned integer: no leading zeros, at most 32 bytes.
func (self RlpString) U256() (U256, error) {
	if err := self.checkInt(32); err != nil {
		return U256{}, err
	}
	return U256FromBytes(self)
}

// Reads an optional address: empty for nil, otherwise exactly 20 bytes.
func (self RlpString) Address() (*Address, error) {
	if len(self) == 0 {
		return nil, nil
	}
	var out Address
	if len(self) != len(out) {
		return nil, encodingErrorf("rlp: address must have %v bytes, got %v", len(out), len(self))
	}
	copy(out[:], self)
	return &out, nil
}

func (self RlpString) checkInt(maxLen int) error {
	if len(self) > maxLen {
		return encodingErrorf("rlp: integer of %v bytes exceeds %v bytes", len(self), maxLen)
	}
	if len(self) > 0 && self[0] == 0 {
		return encodingErrorf("rlp: integer has leading zero bytes")
	}
	return nil
}

// Asserts that the item is a string.
func RlpAsString(item RlpItem) (RlpString, error) {
	out, ok := item.(RlpString)
	if !ok {
		return nil, encodingErrorf("rlp: expected a string, got a list")
	}
	return out, nil
}

// Asserts that the item is a list of the given length.
func RlpAsList(item RlpItem, length int) (RlpList, error) {
	out, ok := item.(RlpList)
	if !ok {
		return nil, encodingErrorf("rlp: expected a list, got a string")
	}
	if len(out) != length {
		return nil, encodingErrorf("rlp: expected a list of %v items, got %v", length, len(out))
	}
	return out, nil
}
