package ethcore

import (
	"bytes"
	"math/big"
)

/*
A typed ABI value: the input of "AbiEncode" and the output of "AbiDecode".
Which field is meaningful depends on "Type.Kind":

	AbiKindBool                    Bool
	AbiKindUint, AbiKindInt        Int
	AbiKindAddress                 Addr
	AbiKindFixedBytes, AbiKindBytes,
	AbiKindFunction                Bytes
	AbiKindString                  Str
	AbiKindFixedArray, AbiKindArray,
	AbiKindTuple                   Elems

Prefer the constructors, which validate ranges and shapes. The encoder checks
values again, so a hand-assembled value can't produce an invalid encoding.
*/
type AbiValue struct {
	Type  AbiType
	Bool  bool
	Int   *big.Int
	Addr  Address
	Bytes []byte
	Str   string
	Elems []AbiValue
}

func AbiBool(val bool) AbiValue {
	return AbiValue{Type: AbiTypeBool, Bool: val}
}

// "uint<bits>". Fails unless 0 <= val < 2^bits.
func AbiUint(bits int, val *big.Int) (AbiValue, error) {
	if !abiValidBits(bits) {
		return AbiValue{}, encodingErrorf("invalid integer width %v", bits)
	}
	out := AbiValue{Type: AbiType{Kind: AbiKindUint, Size: bits}, Int: val}
	return out, out.checkInt()
}

// "uint256" from a U256. Can't fail.
func AbiU256(val U256) AbiValue {
	return AbiValue{Type: AbiTypeUint256, Int: val.Big()}
}

// "uint<bits>" from a uint64. Fails if the value doesn't fit.
func AbiUint64(bits int, val uint64) (AbiValue, error) {
	return AbiUint(bits, new(big.Int).SetUint64(val))
}

// "int<bits>". Fails unless -2^(bits-1) <= val < 2^(bits-1).
func AbiInt(bits int, val *big.Int) (AbiValue, error) {
	if !abiValidBits(bits) {
		return AbiValue{}, encodingErrorf("invalid integer width %v", bits)
	}
	out := AbiValue{Type: AbiType{Kind: AbiKindInt, Size: bits}, Int: val}
	return out, out.checkInt()
}

func AbiAddress(val Address) AbiValue {
	return AbiValue{Type: AbiTypeAddress, Addr: val}
}

// "bytes<len>". Fails unless 1 <= len <= 32.
func AbiFixedBytes(val []byte) (AbiValue, error) {
	if len(val) < 1 || len(val) > abiWordSize {
		return AbiValue{}, encodingErrorf("fixed bytes must have 1 to 32 bytes, got %v", len(val))
	}
	return AbiValue{Type: AbiType{Kind: AbiKindFixedBytes, Size: len(val)}, Bytes: val}, nil
}

func AbiBytes(val []byte) AbiValue {
	return AbiValue{Type: AbiTypeBytes, Bytes: val}
}

func AbiString(val string) AbiValue {
	return AbiValue{Type: AbiTypeString, Str: val}
}

// "T[len(elems)]". Every element must have type "elem".
func AbiFixedArray(elem AbiType, elems ...AbiValue) (AbiValue, error) {
	if len(elems) == 0 {
		return AbiValue{}, encodingErrorf("fixed array %v[0] has no elements", elem)
	}
	out := AbiValue{Type: AbiTypeFixedArray(elem, len(elems)), Elems: elems}
	return out, out.checkElems()
}

// "T[]". Every element must have type "elem".
func AbiArray(elem AbiType, elems ...AbiValue) (AbiValue, error) {
	out := AbiValue{Type: AbiTypeArray(elem), Elems: elems}
	return out, out.checkElems()
}

// "(T1,...,Tn)" with component types taken from the values.
func AbiTuple(elems ...AbiValue) AbiValue {
	types := make([]AbiType, len(elems))
	for i, elem := range elems {
		types[i] = elem.Type
	}
	return AbiValue{Type: AbiTypeTuple(types...), Elems: elems}
}

var bigOne = big.NewInt(1)

func (self AbiValue) checkInt() error {
	if self.Int == nil {
		return encodingErrorf("missing integer for %v", self.Type)
	}
	bits := self.Type.Size
	switch self.Type.Kind {
	case AbiKindUint:
		if self.Int.Sign() < 0 || self.Int.BitLen() > bits {
			return encodingErrorf("%v overflows %v", self.Int, self.Type)
		}
	case AbiKindInt:
		limit := new(big.Int).Lsh(bigOne, uint(bits-1))
		if self.Int.Cmp(limit) >= 0 || self.Int.Cmp(new(big.Int).Neg(limit)) < 0 {
			return encodingErrorf("%v overflows %v", self.Int, self.Type)
		}
	}
	return nil
}

func (self AbiValue) checkElems() error {
	switch self.Type.Kind {
	case AbiKindFixedArray:
		if len(self.Elems) != self.Type.Size {
			return encodingErrorf("%v requires %v elements, got %v",
				self.Type, self.Type.Size, len(self.Elems))
		}
	case AbiKindTuple:
		if len(self.Elems) != len(self.Type.Components) {
			return encodingErrorf("%v requires %v elements, got %v",
				self.Type, len(self.Type.Components), len(self.Elems))
		}
		for i, elem := range self.Elems {
			if !elem.Type.Equal(self.Type.Components[i]) {
				return encodingErrorf("element %v of %v has type %v", i, self.Type, elem.Type)
			}
		}
		return nil
	}

	for i, elem := range self.Elems {
		if !elem.Type.Equal(*self.Type.Elem) {
			return encodingErrorf("element %v of %v has type %v", i, self.Type, elem.Type)
		}
	}
	return nil
}

/*
Deep equality of type and content. Only the field relevant to the kind is
compared; nil and empty byte slices are equal.
*/
func (self AbiValue) Equal(other AbiValue) bool {
	if !self.Type.Equal(other.Type) {
		return false
	}

	switch self.Type.Kind {
	case AbiKindBool:
		return self.Bool == other.Bool
	case AbiKindUint, AbiKindInt:
		if self.Int == nil || other.Int == nil {
			return self.Int == other.Int
		}
		return self.Int.Cmp(other.Int) == 0
	case AbiKindAddress:
		return self.Addr == other.Addr
	case AbiKindFixedBytes, AbiKindBytes, AbiKindFunction:
		return bytes.Equal(self.Bytes, other.Bytes)
	case AbiKindString:
		return self.Str == other.Str
	default:
		if len(self.Elems) != len(other.Elems) {
			return false
		}
		for i := range self.Elems {
			if !self.Elems[i].Equal(other.Elems[i]) {
				return false
			}
		}
		return true
	}
}
