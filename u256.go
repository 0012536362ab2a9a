package ethcore

import (
	"math/big"

	"github.com/holiman/uint256"
)

/*
Unsigned 256-bit integer used for nonces, gas, values and chain ids. A plain
value type: copying is free and the zero value is 0. Arithmetic is checked:
overflow and underflow return an EncodingError instead of wrapping.

Text and JSON encoding use the quantity format: "0x" followed by the minimal
number of hex digits, "0x0" for zero.
*/
type U256 uint256.Int

// Converts a uint64.
func U256FromUint64(num uint64) U256 {
	return U256(*uint256.NewInt(num))
}

// Converts a big integer. Fails for negative numbers and numbers wider than 256 bits.
func U256FromBig(num *big.Int) (U256, error) {
	if num == nil {
		return U256{}, encodingErrorf("nil big integer")
	}
	if num.Sign() < 0 {
		return U256{}, encodingErrorf("%v is negative", num)
	}
	out, overflow := uint256.FromBig(num)
	if overflow {
		return U256{}, encodingErrorf("%v overflows 256 bits", num)
	}
	return U256(*out), nil
}

// Interprets up to 32 big-endian bytes.
func U256FromBytes(input []byte) (U256, error) {
	if len(input) > 32 {
		return U256{}, encodingErrorf("%v bytes overflow 256 bits", len(input))
	}
	var out uint256.Int
	out.SetBytes(input)
	return U256(out), nil
}

/*
Parses a "0x"-prefixed quantity or a decimal string. Hex input follows the
quantity rules: no leading zeros, at least one digit.
*/
func ParseU256(input string) (U256, error) {
	if has0x(stringToBytesUnsafe(input)) {
		_, err := quantityDigits(stringToBytesUnsafe(input))
		if err != nil {
			return U256{}, err
		}
		out, err := uint256.FromHex("0x" + input[2:])
		if err != nil {
			return U256{}, encodingErrorf("malformed quantity %q: %v", input, err)
		}
		return U256(*out), nil
	}

	out, err := uint256.FromDecimal(input)
	if err != nil {
		return U256{}, encodingErrorf("malformed decimal %q: %v", input, err)
	}
	return U256(*out), nil
}

// Version of "ParseU256" that panics on error. Convenient for globals and tests.
func MustParseU256(input string) U256 {
	out, err := ParseU256(input)
	if err != nil {
		panic(err)
	}
	return out
}

func (self *U256) int() *uint256.Int { return (*uint256.Int)(self) }

// Returns the sum or an EncodingError on overflow.
func (self U256) Add(other U256) (U256, error) {
	var out uint256.Int
	_, overflow := out.AddOverflow(self.int(), other.int())
	if overflow {
		return U256{}, encodingErrorf("%v + %v overflows 256 bits", self, other)
	}
	return U256(out), nil
}

// Returns the difference or an EncodingError on underflow.
func (self U256) Sub(other U256) (U256, error) {
	var out uint256.Int
	_, underflow := out.SubOverflow(self.int(), other.int())
	if underflow {
		return U256{}, encodingErrorf("%v - %v underflows zero", self, other)
	}
	return U256(out), nil
}

// Returns the product or an EncodingError on overflow.
func (self U256) Mul(other U256) (U256, error) {
	var out uint256.Int
	_, overflow := out.MulOverflow(self.int(), other.int())
	if overflow {
		return U256{}, encodingErrorf("%v * %v overflows 256 bits", self, other)
	}
	return U256(out), nil
}

// Returns -1, 0 or 1.
func (self U256) Cmp(other U256) int { return self.int().Cmp(other.int()) }

func (self U256) IsZero() bool { return self.int().IsZero() }

// Returns the value as uint64, and false if it doesn't fit.
func (self U256) Uint64() (uint64, bool) {
	return self.int().Uint64(), self.int().IsUint64()
}

// Allocates a big integer with the same value.
func (self U256) Big() *big.Int { return self.int().ToBig() }

// Minimal big-endian bytes. Zero is empty.
func (self U256) Bytes() []byte {
	if self.IsZero() {
		return []byte{}
	}
	return self.int().Bytes()
}

// Left-padded 32 bytes.
func (self U256) Word() Word { return Word(self.int().Bytes32()) }

// Quantity hex: "0x" followed by minimal hex digits.
func (self U256) Hex() string { return self.int().Hex() }

// Implements "fmt.Stringer". Uses base 10.
func (self U256) String() string { return self.int().Dec() }

// Implements "encoding.TextMarshaler". Uses the quantity format.
func (self U256) MarshalText() ([]byte, error) {
	return []byte(self.Hex()), nil
}

/*
Implements "encoding.TextUnmarshaler". Accepts the quantity format, or a decimal
string for convenience in configs.
*/
func (self *U256) UnmarshalText(input []byte) error {
	out, err := ParseU256(string(input))
	if err != nil {
		return err
	}
	*self = out
	return nil
}
