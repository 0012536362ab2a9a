package ethcore

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

/*
Represents a broad category of EVM types. Used for ABI encoding and decoding.
*/
type AbiKind byte

const (
	AbiKindBool AbiKind = iota + 1
	AbiKindUint
	AbiKindInt
	AbiKindAddress
	AbiKindFunction
	AbiKindFixedBytes // bytes1 .. bytes32
	AbiKindBytes
	AbiKindString
	AbiKindFixedArray // T[k]
	AbiKindArray      // T[]
	AbiKindTuple      // (T1,...,Tn)
)

// Implements "fmt.Stringer".
func (self AbiKind) String() string {
	switch self {
	case AbiKindBool:
		return "AbiKindBool"
	case AbiKindUint:
		return "AbiKindUint"
	case AbiKindInt:
		return "AbiKindInt"
	case AbiKindAddress:
		return "AbiKindAddress"
	case AbiKindFunction:
		return "AbiKindFunction"
	case AbiKindFixedBytes:
		return "AbiKindFixedBytes"
	case AbiKindBytes:
		return "AbiKindBytes"
	case AbiKindString:
		return "AbiKindString"
	case AbiKindFixedArray:
		return "AbiKindFixedArray"
	case AbiKindArray:
		return "AbiKindArray"
	case AbiKindTuple:
		return "AbiKindTuple"
	default:
		return ""
	}
}

/*
A parsed EVM type. "Size" depends on the kind: bit width for integers, byte
length for fixed bytes, element count for fixed arrays. "Elem" is set for both
array kinds, "Components" for tuples.
*/
type AbiType struct {
	Kind       AbiKind
	Size       int
	Elem       *AbiType
	Components []AbiType
}

// Largest static encoding we agree to describe, in bytes.
const abiMaxStaticSize = 1 << 24

const abiWordSize = 256 / 8

// Convenience constructors for common types.
var (
	AbiTypeBool    = AbiType{Kind: AbiKindBool}
	AbiTypeAddress = AbiType{Kind: AbiKindAddress}
	AbiTypeUint256 = AbiType{Kind: AbiKindUint, Size: 256}
	AbiTypeInt256  = AbiType{Kind: AbiKindInt, Size: 256}
	AbiTypeBytes32 = AbiType{Kind: AbiKindFixedBytes, Size: 32}
	AbiTypeBytes   = AbiType{Kind: AbiKindBytes}
	AbiTypeString  = AbiType{Kind: AbiKindString}
)

// "uint<bits>". Panics for invalid widths.
func AbiTypeUint(bits int) AbiType {
	if !abiValidBits(bits) {
		panic(errors.Errorf(`invalid integer width %v`, bits))
	}
	return AbiType{Kind: AbiKindUint, Size: bits}
}

// "int<bits>". Panics for invalid widths.
func AbiTypeInt(bits int) AbiType {
	if !abiValidBits(bits) {
		panic(errors.Errorf(`invalid integer width %v`, bits))
	}
	return AbiType{Kind: AbiKindInt, Size: bits}
}

// "T[]".
func AbiTypeArray(elem AbiType) AbiType {
	return AbiType{Kind: AbiKindArray, Elem: &elem}
}

// "T[length]".
func AbiTypeFixedArray(elem AbiType, length int) AbiType {
	return AbiType{Kind: AbiKindFixedArray, Size: length, Elem: &elem}
}

// "(T1,...,Tn)".
func AbiTypeTuple(components ...AbiType) AbiType {
	return AbiType{Kind: AbiKindTuple, Components: components}
}

func abiValidBits(bits int) bool {
	return bits >= 8 && bits <= 256 && bits%8 == 0
}

/*
Canonical type name, as used in function signatures: "uint256", not "uint";
tuples as "(T1,...,Tn)".
*/
func (self AbiType) String() string {
	var buf strings.Builder
	self.appendName(&buf)
	return buf.String()
}

func (self AbiType) appendName(buf *strings.Builder) {
	switch self.Kind {
	case AbiKindBool:
		buf.WriteString("bool")
	case AbiKindUint:
		buf.WriteString("uint")
		buf.WriteString(strconv.Itoa(self.Size))
	case AbiKindInt:
		buf.WriteString("int")
		buf.WriteString(strconv.Itoa(self.Size))
	case AbiKindAddress:
		buf.WriteString("address")
	case AbiKindFunction:
		buf.WriteString("function")
	case AbiKindFixedBytes:
		buf.WriteString("bytes")
		buf.WriteString(strconv.Itoa(self.Size))
	case AbiKindBytes:
		buf.WriteString("bytes")
	case AbiKindString:
		buf.WriteString("string")
	case AbiKindFixedArray:
		self.Elem.appendName(buf)
		buf.WriteByte('[')
		buf.WriteString(strconv.Itoa(self.Size))
		buf.WriteByte(']')
	case AbiKindArray:
		self.Elem.appendName(buf)
		buf.WriteString("[]")
	case AbiKindTuple:
		buf.WriteByte('(')
		for i, comp := range self.Components {
			if i > 0 {
				buf.WriteByte(',')
			}
			comp.appendName(buf)
		}
		buf.WriteByte(')')
	default:
		buf.WriteString("<invalid>")
	}
}

// Structural equality.
func (self AbiType) Equal(other AbiType) bool {
	if self.Kind != other.Kind || self.Size != other.Size ||
		len(self.Components) != len(other.Components) {
		return false
	}
	if (self.Elem == nil) != (other.Elem == nil) {
		return false
	}
	if self.Elem != nil && !self.Elem.Equal(*other.Elem) {
		return false
	}
	for i := range self.Components {
		if !self.Components[i].Equal(other.Components[i]) {
			return false
		}
	}
	return true
}

/*
True if values of this type are encoded out of line, with an offset in the
head: bytes, string, T[], and any T[k] or tuple containing a dynamic type.
*/
func (self AbiType) IsDynamic() bool {
	switch self.Kind {
	case AbiKindBytes, AbiKindString, AbiKindArray:
		return true
	case AbiKindFixedArray:
		return self.Elem.IsDynamic()
	case AbiKindTuple:
		for _, comp := range self.Components {
			if comp.IsDynamic() {
				return true
			}
		}
		return false
	default:
		return false
	}
}

/*
Number of bytes this type occupies in the head of an enclosing tuple: 32 for
dynamic types (the offset), the full inline size for static ones.
*/
func (self AbiType) HeadSize() int {
	if self.IsDynamic() {
		return abiWordSize
	}
	switch self.Kind {
	case AbiKindFixedArray:
		return self.Size * self.Elem.HeadSize()
	case AbiKindTuple:
		size := 0
		for _, comp := range self.Components {
			size += comp.HeadSize()
		}
		return size
	default:
		return abiWordSize
	}
}

// True if a value of this type has a fixed size and is ABI-encoded inline.
func (self AbiType) IsStaticallySized() bool { return !self.IsDynamic() }

/*
Accepts a name of an EVM type, such as "bytes32", "uint", "address[12]" or
"(uint256,bytes)[]", and returns its details as an AbiType. "uint" and "int"
are aliases for their 256-bit variants, "byte" for "bytes1".
*/
func ParseAbiType(typeName string) (AbiType, error) {
	parser := abiTypeParser{input: typeName}
	out, err := parser.parse()
	if err != nil {
		return AbiType{}, errors.Wrapf(err, `failed to parse %q as Solidity type`, typeName)
	}
	if parser.pos != len(parser.input) {
		return AbiType{}, errors.Errorf(`failed to parse %q as Solidity type: unexpected %q`,
			typeName, parser.input[parser.pos:])
	}
	return out, nil
}

// Version of "ParseAbiType" that panics. Convenient for globals and tests.
func MustParseAbiType(typeName string) AbiType {
	out, err := ParseAbiType(typeName)
	if err != nil {
		panic(err)
	}
	return out
}

type abiTypeParser struct {
	input string
	pos   int
	depth int
}

func (self *abiTypeParser) parse() (AbiType, error) {
	self.depth++
	defer func() { self.depth-- }()
	if self.depth > 64 {
		return AbiType{}, errors.New(`type nesting is too deep`)
	}

	var base AbiType
	var err error
	if self.pos < len(self.input) && self.input[self.pos] == '(' {
		base, err = self.parseTuple()
	} else {
		base, err = self.parseElementary()
	}
	if err != nil {
		return base, err
	}
	return self.parseSuffixes(base)
}

func (self *abiTypeParser) parseTuple() (AbiType, error) {
	self.pos++ // '('
	out := AbiType{Kind: AbiKindTuple, Components: []AbiType{}}

	if self.pos < len(self.input) && self.input[self.pos] == ')' {
		self.pos++
		return out, nil
	}

	for {
		comp, err := self.parse()
		if err != nil {
			return out, err
		}
		out.Components = append(out.Components, comp)

		if self.pos >= len(self.input) {
			return out, errors.New(`unterminated tuple`)
		}
		char := self.input[self.pos]
		self.pos++
		if char == ')' {
			return out, nil
		}
		if char != ',' {
			return out, errors.Errorf(`unexpected %q in tuple`, char)
		}
	}
}

func (self *abiTypeParser) parseElementary() (AbiType, error) {
	start := self.pos
	for self.pos < len(self.input) && isAbiNameChar(self.input[self.pos]) {
		self.pos++
	}
	return parseAbiElementary(self.input[start:self.pos])
}

func isAbiNameChar(char byte) bool {
	return (char >= 'a' && char <= 'z') || (char >= '0' && char <= '9')
}

func parseAbiElementary(name string) (AbiType, error) {
	switch name {
	case "bool":
		return AbiTypeBool, nil
	case "address":
		return AbiTypeAddress, nil
	case "function":
		return AbiType{Kind: AbiKindFunction}, nil
	case "string":
		return AbiTypeString, nil
	case "bytes":
		return AbiTypeBytes, nil
	case "byte":
		return AbiType{Kind: AbiKindFixedBytes, Size: 1}, nil
	case "uint":
		return AbiTypeUint256, nil
	case "int":
		return AbiTypeInt256, nil
	case "":
		return AbiType{}, errors.New(`missing type name`)
	}

	switch {
	case strings.HasPrefix(name, "uint"):
		bits, err := parseAbiWidth(name[len("uint"):])
		if err != nil || !abiValidBits(bits) {
			return AbiType{}, errors.Errorf(`invalid integer type %q`, name)
		}
		return AbiType{Kind: AbiKindUint, Size: bits}, nil

	case strings.HasPrefix(name, "int"):
		bits, err := parseAbiWidth(name[len("int"):])
		if err != nil || !abiValidBits(bits) {
			return AbiType{}, errors.Errorf(`invalid integer type %q`, name)
		}
		return AbiType{Kind: AbiKindInt, Size: bits}, nil

	case strings.HasPrefix(name, "bytes"):
		size, err := parseAbiWidth(name[len("bytes"):])
		if err != nil || size < 1 || size > abiWordSize {
			return AbiType{}, errors.Errorf(`invalid fixed bytes type %q`, name)
		}
		return AbiType{Kind: AbiKindFixedBytes, Size: size}, nil
	}

	return AbiType{}, errors.Errorf(`unknown type %q`, name)
}

// Decimal without sign or leading zeros.
func parseAbiWidth(digits string) (int, error) {
	if len(digits) == 0 || len(digits) > 9 || (digits[0] == '0') {
		return 0, errors.Errorf(`invalid size %q`, digits)
	}
	return strconv.Atoi(digits)
}

func (self *abiTypeParser) parseSuffixes(base AbiType) (AbiType, error) {
	for self.pos < len(self.input) && self.input[self.pos] == '[' {
		end := strings.IndexByte(self.input[self.pos:], ']')
		if end < 0 {
			return base, errors.New(`unterminated array suffix`)
		}
		digits := self.input[self.pos+1 : self.pos+end]
		self.pos += end + 1

		if digits == "" {
			base = AbiTypeArray(base)
			continue
		}

		length, err := parseAbiWidth(digits)
		if err != nil {
			return base, err
		}
		if !base.IsDynamic() && base.HeadSize() > abiMaxStaticSize/length {
			return base, errors.Errorf(`fixed array %v[%v] is too large`, base, length)
		}
		base = AbiTypeFixedArray(base, length)
	}
	return base, nil
}

/*
Builds the type of a JSON ABI parameter, substituting components for "tuple":
"tuple[]" with components (uint256,address) becomes "(uint256,address)[]".
*/
func abiParamType(typeName string, components []AbiParam) (AbiType, error) {
	if !strings.HasPrefix(typeName, "tuple") {
		return ParseAbiType(typeName)
	}

	tuple := AbiType{Kind: AbiKindTuple, Components: make([]AbiType, len(components))}
	for i, comp := range components {
		tuple.Components[i] = comp.AbiType
	}

	parser := abiTypeParser{input: typeName, pos: len("tuple")}
	out, err := parser.parseSuffixes(tuple)
	if err != nil {
		return AbiType{}, errors.Wrapf(err, `failed to parse %q as Solidity type`, typeName)
	}
	if parser.pos != len(parser.input) {
		return AbiType{}, errors.Errorf(`failed to parse %q as Solidity type`, typeName)
	}
	return out, nil
}
