package ethcore

/*
See https://docs.soliditylang.org/en/latest/abi-spec.html
*/

import (
	"encoding/binary"
	"math"
	"math/big"
	"strconv"
	"unicode/utf8"
)

/*
ABI-encodes a sequence of values as a tuple: heads first, then the tails of
dynamic values in order, each dynamic head holding the byte offset of its tail
from the start of the tuple. This is the layout of call arguments and return
values, without the 4-byte selector.
*/
func AbiEncode(values []AbiValue) ([]byte, error) {
	return abiAppendTuple(nil, values)
}

// Appends the tuple encoding of "values". Returns nil on failure.
func abiAppendTuple(out []byte, values []AbiValue) ([]byte, error) {
	headSize := 0
	for _, val := range values {
		if err := abiCheckType(val.Type); err != nil {
			return nil, err
		}
		headSize += val.Type.HeadSize()
	}

	var tail []byte
	for i, val := range values {
		var err error
		if val.Type.IsDynamic() {
			out = abiAppendUint64(out, uint64(headSize+len(tail)))
			tail, err = abiAppendValue(tail, val)
		} else {
			out, err = abiAppendValue(out, val)
		}
		if err != nil {
			return nil, wrapAbiPath(err, i)
		}
	}
	return append(out, tail...), nil
}

func abiCheckType(typ AbiType) error {
	switch typ.Kind {
	case AbiKindFixedArray, AbiKindArray:
		if typ.Elem == nil {
			return encodingErrorf("array type without element type")
		}
		if err := abiCheckType(*typ.Elem); err != nil {
			return err
		}
		if typ.Kind == AbiKindArray {
			return nil
		}
		if typ.Size <= 0 {
			return encodingErrorf("invalid fixed array length %v", typ.Size)
		}
		if !typ.Elem.IsDynamic() && typ.Elem.HeadSize() > abiMaxStaticSize/typ.Size {
			return encodingErrorf("fixed array %v[%v] is too large", *typ.Elem, typ.Size)
		}
		return nil
	case AbiKindTuple:
		for _, comp := range typ.Components {
			if err := abiCheckType(comp); err != nil {
				return err
			}
		}
		return nil
	case AbiKindUint, AbiKindInt:
		if !abiValidBits(typ.Size) {
			return encodingErrorf("invalid integer width %v", typ.Size)
		}
		return nil
	case AbiKindFixedBytes:
		if typ.Size < 1 || typ.Size > abiWordSize {
			return encodingErrorf("invalid fixed bytes size %v", typ.Size)
		}
		return nil
	case AbiKindBool, AbiKindAddress, AbiKindFunction, AbiKindBytes, AbiKindString:
		return nil
	default:
		return encodingErrorf("unknown ABI kind %v", typ.Kind)
	}
}

func abiAppendValue(out []byte, val AbiValue) ([]byte, error) {
	switch val.Type.Kind {
	case AbiKindBool:
		if val.Bool {
			return abiAppendUint64(out, 1), nil
		}
		return abiAppendUint64(out, 0), nil

	case AbiKindUint, AbiKindInt:
		if err := val.checkInt(); err != nil {
			return out, err
		}
		return abiAppendBigInt(out, val.Int), nil

	case AbiKindAddress:
		return appendLeftPadded(out, val.Addr[:]), nil

	case AbiKindFunction:
		if len(val.Bytes) != abiFunctionSize {
			return out, encodingErrorf("function reference must have %v bytes, got %v",
				abiFunctionSize, len(val.Bytes))
		}
		return appendRightPadded(out, val.Bytes), nil

	case AbiKindFixedBytes:
		if len(val.Bytes) != val.Type.Size {
			return out, encodingErrorf("%v requires %v bytes, got %v",
				val.Type, val.Type.Size, len(val.Bytes))
		}
		return appendRightPadded(out, val.Bytes), nil

	case AbiKindBytes:
		out = abiAppendUint64(out, uint64(len(val.Bytes)))
		return appendRightPadded(out, val.Bytes), nil

	case AbiKindString:
		if !utf8.ValidString(val.Str) {
			return out, encodingErrorf("string is not valid UTF-8")
		}
		out = abiAppendUint64(out, uint64(len(val.Str)))
		return appendRightPadded(out, stringToBytesUnsafe(val.Str)), nil

	case AbiKindFixedArray, AbiKindTuple:
		if err := val.checkElems(); err != nil {
			return out, err
		}
		return abiAppendTuple(out, val.Elems)

	case AbiKindArray:
		if err := val.checkElems(); err != nil {
			return out, err
		}
		out = abiAppendUint64(out, uint64(len(val.Elems)))
		return abiAppendTuple(out, val.Elems)

	default:
		return out, encodingErrorf("unknown ABI kind %v", val.Type.Kind)
	}
}

const abiFunctionSize = 24

/*
Options for "AbiDecodeWith". The zero value is strict decoding.

"Lenient" skips the checks that well-behaved encoders never trip but some
hand-rolled contracts do: non-zero padding bytes, bools other than 0 and 1,
and invalid UTF-8 in strings. Bounds checks on offsets and lengths are never
skipped.
*/
type AbiDecodeOpts struct {
	Lenient bool
}

/*
Strictly decodes a tuple of the given types. Rejects offsets and lengths
pointing outside the input, non-zero padding, out-of-range bools and integers,
and invalid UTF-8 strings. Never panics on malformed input, and never allocates
more than the input size justifies. Trailing bytes after the encoded values are
ignored.
*/
func AbiDecode(types []AbiType, input []byte) ([]AbiValue, error) {
	return AbiDecodeWith(AbiDecodeOpts{}, types, input)
}

// Version of "AbiDecode" with options. See "AbiDecodeOpts".
func AbiDecodeWith(opts AbiDecodeOpts, types []AbiType, input []byte) ([]AbiValue, error) {
	for _, typ := range types {
		if err := abiCheckType(typ); err != nil {
			return nil, err
		}
	}
	dec := abiDecoder{opts}
	return dec.tuple(input, len(types), func(i int) AbiType { return types[i] })
}

type abiDecoder struct {
	AbiDecodeOpts
}

/*
Decodes "count" values laid out as a tuple at the start of "buf". Offsets of
dynamic members are relative to the start of "buf".
*/
func (self abiDecoder) tuple(buf []byte, count int, typeAt func(int) AbiType) ([]AbiValue, error) {
	out := make([]AbiValue, count)
	pos := 0

	for i := range out {
		typ := typeAt(i)
		var err error

		if typ.IsDynamic() {
			var offset int
			offset, err = abiReadOffset(buf, pos)
			if err == nil {
				out[i], err = self.value(typ, buf[offset:])
			}
			pos += abiWordSize
		} else {
			size := typ.HeadSize()
			if pos > len(buf) || size > len(buf)-pos {
				return nil, encodingErrorf("abi: value %v needs %v bytes at offset %v, input has %v",
					i, size, pos, len(buf))
			}
			out[i], err = self.value(typ, buf[pos:pos+size])
			pos += size
		}

		if err != nil {
			return nil, wrapAbiPath(err, i)
		}
	}
	return out, nil
}

func (self abiDecoder) value(typ AbiType, buf []byte) (AbiValue, error) {
	out := AbiValue{Type: typ}

	switch typ.Kind {
	case AbiKindBool:
		word, err := abiReadWord(buf, 0)
		if err != nil {
			return out, err
		}
		if !self.Lenient && (!isZero(word[:abiWordSize-1]) || word[abiWordSize-1] > 1) {
			return out, encodingErrorf("abi: malformed bool %x", word)
		}
		out.Bool = !isZero(word[:])
		return out, nil

	case AbiKindUint:
		word, err := abiReadWord(buf, 0)
		if err != nil {
			return out, err
		}
		pad := abiWordSize - typ.Size/8
		if !self.Lenient && !isZero(word[:pad]) {
			return out, encodingErrorf("abi: %x overflows %v", word, typ)
		}
		out.Int = new(big.Int).SetBytes(word[pad:])
		return out, nil

	case AbiKindInt:
		word, err := abiReadWord(buf, 0)
		if err != nil {
			return out, err
		}
		pad := abiWordSize - typ.Size/8
		var ext byte
		if word[pad]&0x80 != 0 {
			ext = 0xff
		}
		if !self.Lenient && !isAll(word[:pad], ext) {
			return out, encodingErrorf("abi: %x is not a sign-extended %v", word, typ)
		}
		out.Int = abiSignedInt(word[pad:])
		return out, nil

	case AbiKindAddress:
		word, err := abiReadWord(buf, 0)
		if err != nil {
			return out, err
		}
		pad := abiWordSize - len(out.Addr)
		if !self.Lenient && !isZero(word[:pad]) {
			return out, encodingErrorf("abi: address %x has non-zero padding", word)
		}
		copy(out.Addr[:], word[pad:])
		return out, nil

	case AbiKindFunction, AbiKindFixedBytes:
		word, err := abiReadWord(buf, 0)
		if err != nil {
			return out, err
		}
		size := typ.Size
		if typ.Kind == AbiKindFunction {
			size = abiFunctionSize
		}
		if !self.Lenient && !isZero(word[size:]) {
			return out, encodingErrorf("abi: %v %x has non-zero padding", typ, word)
		}
		out.Bytes = append([]byte(nil), word[:size]...)
		return out, nil

	case AbiKindBytes, AbiKindString:
		body, err := self.dynamicBytes(buf)
		if err != nil {
			return out, err
		}
		if typ.Kind == AbiKindBytes {
			out.Bytes = append([]byte{}, body...)
			return out, nil
		}
		if !self.Lenient && !utf8.Valid(body) {
			return out, encodingErrorf("abi: string is not valid UTF-8")
		}
		out.Str = string(body)
		return out, nil

	case AbiKindFixedArray:
		if err := abiCheckCount(typ.Size, *typ.Elem, len(buf)); err != nil {
			return out, err
		}
		elems, err := self.tuple(buf, typ.Size, func(int) AbiType { return *typ.Elem })
		out.Elems = elems
		return out, err

	case AbiKindArray:
		count, err := abiReadInt(buf, 0)
		if err != nil {
			return out, err
		}
		body := buf[abiWordSize:]
		if err := abiCheckCount(count, *typ.Elem, len(body)); err != nil {
			return out, err
		}
		elems, err := self.tuple(body, count, func(int) AbiType { return *typ.Elem })
		out.Elems = elems
		return out, err

	case AbiKindTuple:
		elems, err := self.tuple(buf, len(typ.Components), func(i int) AbiType { return typ.Components[i] })
		out.Elems = elems
		return out, err

	default:
		return out, encodingErrorf("abi: unknown kind %v", typ.Kind)
	}
}

// Reads a length-prefixed byte string, validating the padding in strict mode.
func (self abiDecoder) dynamicBytes(buf []byte) ([]byte, error) {
	length, err := abiReadInt(buf, 0)
	if err != nil {
		return nil, err
	}
	rest := buf[abiWordSize:]
	if length > len(rest) {
		return nil, encodingErrorf("abi: byte string of %v bytes exceeds the %v remaining", length, len(rest))
	}
	if self.Lenient {
		return rest[:length], nil
	}

	padded := abiPaddedLen(length)
	if padded > len(rest) {
		return nil, encodingErrorf("abi: byte string of %v bytes is missing its padding", length)
	}
	if !isZero(rest[length:padded]) {
		return nil, encodingErrorf("abi: byte string has non-zero padding")
	}
	return rest[:length], nil
}

/*
Every element occupies at least its head size, or one word for dynamic types,
so a count larger than the input permits is malformed. Checked before
allocating.
*/
func abiCheckCount(count int, elem AbiType, available int) error {
	size := elem.HeadSize()
	if size == 0 {
		size = 1
	}
	if count > available/size {
		return encodingErrorf("abi: %v elements of %v can't fit in %v bytes", count, elem, available)
	}
	return nil
}

func abiReadWord(buf []byte, pos int) (Word, error) {
	var out Word
	if pos < 0 || pos > len(buf) || len(buf)-pos < abiWordSize {
		return out, encodingErrorf("abi: need %v bytes at offset %v, input has %v", abiWordSize, pos, len(buf))
	}
	copy(out[:], buf[pos:pos+abiWordSize])
	return out, nil
}

// Reads a word that must be a non-negative integer fitting in an int.
func abiReadInt(buf []byte, pos int) (int, error) {
	word, err := abiReadWord(buf, pos)
	if err != nil {
		return 0, err
	}
	if !isZero(word[:abiWordSize-8]) {
		return 0, encodingErrorf("abi: %x is too large for a length or offset", word)
	}
	num := binary.BigEndian.Uint64(word[abiWordSize-8:])
	if num > math.MaxInt32 {
		return 0, encodingErrorf("abi: %v is too large for a length or offset", num)
	}
	return int(num), nil
}

// Reads an offset that must point inside the buffer.
func abiReadOffset(buf []byte, pos int) (int, error) {
	offset, err := abiReadInt(buf, pos)
	if err != nil {
		return 0, err
	}
	if offset > len(buf) {
		return 0, encodingErrorf("abi: offset %v points past the end of %v bytes", offset, len(buf))
	}
	return offset, nil
}

// Two's complement interpretation of big-endian bytes.
func abiSignedInt(input []byte) *big.Int {
	out := new(big.Int).SetBytes(input)
	if len(input) > 0 && input[0]&0x80 != 0 {
		out.Sub(out, new(big.Int).Lsh(bigOne, uint(len(input)*8)))
	}
	return out
}

func isZero(input []byte) bool {
	return isAll(input, 0)
}

func isAll(input []byte, char byte) bool {
	for _, val := range input {
		if val != char {
			return false
		}
	}
	return true
}

func abiPaddedLen(length int) int {
	return (length + abiWordSize - 1) / abiWordSize * abiWordSize
}

func appendLeftPadded(out []byte, buf []byte) []byte {
	for i := len(buf); i < abiPaddedLen(len(buf)); i++ {
		out = append(out, 0)
	}
	return append(out, buf...)
}

func appendRightPadded(out []byte, buf []byte) []byte {
	out = append(out, buf...)
	for i := len(buf); i < abiPaddedLen(len(buf)); i++ {
		out = append(out, 0)
	}
	return out
}

func abiAppendUint64(out []byte, num uint64) []byte {
	var word Word
	binary.BigEndian.PutUint64(word[abiWordSize-8:], num)
	return append(out, word[:]...)
}

var two256 = new(big.Int).Lsh(bigOne, 256)

// Appends a 256-bit two's complement word. The caller checks the range.
func abiAppendBigInt(out []byte, num *big.Int) []byte {
	if num.Sign() < 0 {
		num = new(big.Int).Add(num, two256)
	}
	var word Word
	num.FillBytes(word[:])
	return append(out, word[:]...)
}

type abiPathError struct {
	index int
	cause error
}

func (self abiPathError) Error() string {
	return "at index " + strconv.Itoa(self.index) + ": " + self.cause.Error()
}

func (self abiPathError) Unwrap() error { return self.cause }

/*
Prefixes the error with the position of the failing value, preserving the
original error type for "errors.As".
*/
func wrapAbiPath(err error, index int) error {
	return abiPathError{index: index, cause: err}
}
