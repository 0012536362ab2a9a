package ethcore

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/pkg/errors"
)

/*
Allows a user-defined type to implement its own conversion into an ABI value.
Invoked by "AbiValueOf" and everything built on it.
*/
type AbiMarshaler interface {
	EthAbiMarshal(AbiType) (AbiValue, error)
}

/*
Allows a user-defined type to implement its own conversion from a decoded ABI
value. Invoked by "AbiValue.Assign" and everything built on it.
*/
type AbiUnmarshaler interface {
	EthAbiUnmarshal(AbiValue) error
}

/*
Converts an arbitrary Go value into an ABI value of the given type. Supported
Go types:

	bool                                   bool
	intN, uintN, *big.Int, U256, HexInt    uint<M>, int<M>
	Address, [20]byte, []byte of length 20 address
	[N]byte, []byte of matching length     bytes<N> (Word and Hash for bytes32)
	[]byte, HexBytes, string               bytes, string
	arrays and slices                      T[k], T[]
	structs (exported fields in order),
	[]interface{}                          tuples
	AbiValue                               as-is, when the type matches

Struct fields tagged `abi:"-"` are skipped. Returns an error in case of type
mismatch or out-of-range values.
*/
func AbiValueOf(typ AbiType, input interface{}) (AbiValue, error) {
	return abiValueOf(typ, reflect.ValueOf(input))
}

func abiValueOf(typ AbiType, val reflect.Value) (AbiValue, error) {
	val = deref(val)
	if !val.IsValid() {
		return AbiValue{}, errors.Errorf(`can't convert nil into %v`, typ)
	}

	rtype := val.Type()
	if rtype == abiValueType {
		out := val.Interface().(AbiValue)
		if !out.Type.Equal(typ) {
			return out, errors.Errorf(`type mismatch: expected %v, got value of type %v`, typ, out.Type)
		}
		return out, nil
	}

	if val.CanInterface() {
		if mar, ok := val.Interface().(AbiMarshaler); ok {
			return mar.EthAbiMarshal(typ)
		}
	}

	switch typ.Kind {
	case AbiKindBool:
		if rtype.Kind() == reflect.Bool {
			return AbiBool(val.Bool()), nil
		}

	case AbiKindUint, AbiKindInt:
		num, ok := abiBigIntOf(val)
		if !ok {
			break
		}
		if typ.Kind == AbiKindUint {
			return AbiUint(typ.Size, num)
		}
		return AbiInt(typ.Size, num)

	case AbiKindAddress:
		if isByteArray(rtype, len(Address{})) || isByteSlice(rtype) {
			err := abiCheckLen(typ, val.Len(), len(Address{}))
			if err != nil {
				return AbiValue{}, err
			}
			var addr Address
			copy(addr[:], abiBytesOf(val))
			return AbiAddress(addr), nil
		}

	case AbiKindFunction:
		if isByteArray(rtype, abiFunctionSize) || isByteSlice(rtype) {
			return AbiValue{Type: typ, Bytes: abiBytesOf(val)}, abiCheckLen(typ, val.Len(), abiFunctionSize)
		}

	case AbiKindFixedBytes:
		if isByteArray(rtype, typ.Size) || isByteSlice(rtype) {
			return AbiValue{Type: typ, Bytes: abiBytesOf(val)}, abiCheckLen(typ, val.Len(), typ.Size)
		}

	case AbiKindBytes:
		if rtype.Kind() == reflect.String {
			return AbiBytes([]byte(val.String())), nil
		}
		if isByteSlice(rtype) {
			return AbiBytes(abiBytesOf(val)), nil
		}

	case AbiKindString:
		if rtype.Kind() == reflect.String {
			return AbiString(val.String()), nil
		}
		if isByteSlice(rtype) {
			return AbiString(string(val.Bytes())), nil
		}

	case AbiKindFixedArray, AbiKindArray:
		if rtype.Kind() != reflect.Array && rtype.Kind() != reflect.Slice {
			break
		}
		if typ.Kind == AbiKindFixedArray && val.Len() != typ.Size {
			return AbiValue{}, errors.Errorf(`length mismatch: %v requires %v elements, got %v`,
				typ, typ.Size, val.Len())
		}
		elems := make([]AbiValue, val.Len())
		for i := range elems {
			elem, err := abiValueOf(*typ.Elem, val.Index(i))
			if err != nil {
				return AbiValue{}, wrapAbiPath(err, i)
			}
			elems[i] = elem
		}
		return AbiValue{Type: typ, Elems: elems}, nil

	case AbiKindTuple:
		fields, ok := abiTupleFields(val)
		if !ok {
			break
		}
		if len(fields) != len(typ.Components) {
			return AbiValue{}, errors.Errorf(`arity mismatch: %v has %v components, %v has %v fields`,
				typ, len(typ.Components), rtype, len(fields))
		}
		elems := make([]AbiValue, len(fields))
		for i, field := range fields {
			elem, err := abiValueOf(typ.Components[i], field)
			if err != nil {
				return AbiValue{}, wrapAbiPath(err, i)
			}
			elems[i] = elem
		}
		return AbiValue{Type: typ, Elems: elems}, nil
	}

	return AbiValue{}, errors.New(typeMismatch(typ, rtype))
}

func abiCheckLen(typ AbiType, actual, expected int) error {
	if actual != expected {
		return encodingErrorf("%v requires %v bytes, got %v", typ, expected, actual)
	}
	return nil
}

func abiBigIntOf(val reflect.Value) (*big.Int, bool) {
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(val.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return new(big.Int).SetUint64(val.Uint()), true
	}

	switch input := val.Interface().(type) {
	case *big.Int:
		return input, input != nil
	case big.Int:
		return &input, true
	case U256:
		return input.Big(), true
	case HexInt:
		return (*big.Int)(&input), true
	}

	rtype := val.Type()
	if rtype.ConvertibleTo(bigIntType) {
		num := val.Convert(bigIntType).Interface().(big.Int)
		return &num, true
	}
	return nil, false
}

func abiBytesOf(val reflect.Value) []byte {
	out := make([]byte, val.Len())
	reflect.Copy(reflect.ValueOf(out), val)
	return out
}

// Exported struct fields or the elements of a []interface{}.
func abiTupleFields(val reflect.Value) ([]reflect.Value, bool) {
	switch val.Kind() {
	case reflect.Struct:
		var out []reflect.Value
		rtype := val.Type()
		for i := 0; i < rtype.NumField(); i++ {
			field := rtype.Field(i)
			if field.PkgPath != "" || field.Tag.Get("abi") == "-" {
				continue
			}
			out = append(out, val.Field(i))
		}
		return out, true

	case reflect.Slice, reflect.Array:
		if val.Type().Elem().Kind() != reflect.Interface {
			return nil, false
		}
		out := make([]reflect.Value, val.Len())
		for i := range out {
			out[i] = val.Index(i)
		}
		return out, true

	default:
		return nil, false
	}
}

/*
Copies the value into a Go output, which must be a non-nil pointer. Accepts the
same Go types as "AbiValueOf"; integer outputs are range-checked. An
"interface{}" output receives the result of "Native".
*/
func (self AbiValue) Assign(out interface{}) error {
	if un, ok := out.(AbiUnmarshaler); ok {
		return un.EthAbiUnmarshal(self)
	}

	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return errors.Errorf(`can't unmarshal into non-pointer of type %T`, out)
	}
	return abiAssign(self, val.Elem())
}

func abiAssign(src AbiValue, val reflect.Value) error {
	rtype := val.Type()

	if val.CanAddr() {
		if un, ok := val.Addr().Interface().(AbiUnmarshaler); ok {
			return un.EthAbiUnmarshal(src)
		}
	}

	switch {
	case rtype == abiValueType:
		val.Set(reflect.ValueOf(src))
		return nil

	case rtype.Kind() == reflect.Interface && rtype.NumMethod() == 0:
		native := src.Native()
		if native == nil {
			val.Set(reflect.Zero(rtype))
		} else {
			val.Set(reflect.ValueOf(native))
		}
		return nil

	case rtype.Kind() == reflect.Ptr && rtype != bigIntPtrType && rtype != hexIntPtrType:
		if val.IsNil() {
			val.Set(reflect.New(rtype.Elem()))
		}
		return abiAssign(src, val.Elem())
	}

	switch src.Type.Kind {
	case AbiKindBool:
		if rtype.Kind() == reflect.Bool {
			val.SetBool(src.Bool)
			return nil
		}

	case AbiKindUint, AbiKindInt:
		ok, err := abiSetInt(val, src.Int)
		if ok || err != nil {
			return err
		}

	case AbiKindAddress:
		if addressType.ConvertibleTo(rtype) && rtype.Kind() == reflect.Array {
			val.Set(reflect.ValueOf(src.Addr).Convert(rtype))
			return nil
		}

	case AbiKindFunction, AbiKindFixedBytes, AbiKindBytes:
		if isByteArray(rtype, len(src.Bytes)) {
			reflect.Copy(val, reflect.ValueOf(src.Bytes))
			return nil
		}
		if isByteSlice(rtype) {
			val.SetBytes(append([]byte(nil), src.Bytes...))
			return nil
		}
		if src.Type.Kind == AbiKindBytes && rtype.Kind() == reflect.String {
			val.SetString(string(src.Bytes))
			return nil
		}

	case AbiKindString:
		if rtype.Kind() == reflect.String {
			val.SetString(src.Str)
			return nil
		}
		if isByteSlice(rtype) {
			val.SetBytes([]byte(src.Str))
			return nil
		}

	case AbiKindFixedArray, AbiKindArray:
		var storage reflect.Value
		switch rtype.Kind() {
		case reflect.Array:
			if rtype.Len() != len(src.Elems) {
				return errors.Errorf(`length mismatch: %v has %v elements, %v has %v`,
					src.Type, len(src.Elems), rtype, rtype.Len())
			}
			storage = val
		case reflect.Slice:
			storage = reflect.MakeSlice(rtype, len(src.Elems), len(src.Elems))
		default:
			return errors.New(typeMismatch(src.Type, rtype))
		}
		for i, elem := range src.Elems {
			err := abiAssign(elem, storage.Index(i))
			if err != nil {
				return wrapAbiPath(err, i)
			}
		}
		if storage != val {
			val.Set(storage)
		}
		return nil

	case AbiKindTuple:
		if rtype.Kind() != reflect.Struct {
			break
		}
		fields, _ := abiTupleFields(val)
		if len(fields) != len(src.Elems) {
			return errors.Errorf(`arity mismatch: %v has %v components, %v has %v fields`,
				src.Type, len(src.Elems), rtype, len(fields))
		}
		for i, elem := range src.Elems {
			err := abiAssign(elem, fields[i])
			if err != nil {
				return wrapAbiPath(err, i)
			}
		}
		return nil
	}

	return errors.New(typeMismatch(src.Type, rtype))
}

// Returns false when the output type isn't an integer type.
func abiSetInt(val reflect.Value, num *big.Int) (bool, error) {
	if num == nil {
		return true, errors.New(`missing integer`)
	}
	rtype := val.Type()

	switch rtype.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !num.IsInt64() || val.OverflowInt(num.Int64()) {
			return true, errors.Errorf(`%v overflows %v`, num, rtype)
		}
		val.SetInt(num.Int64())
		return true, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if !num.IsUint64() || val.OverflowUint(num.Uint64()) {
			return true, errors.Errorf(`%v overflows %v`, num, rtype)
		}
		val.SetUint(num.Uint64())
		return true, nil
	}

	switch {
	case rtype == u256Type:
		out, err := U256FromBig(num)
		if err != nil {
			return true, err
		}
		val.Set(reflect.ValueOf(out))
		return true, nil
	case rtype == bigIntPtrType:
		val.Set(reflect.ValueOf(new(big.Int).Set(num)))
		return true, nil
	case rtype == hexIntPtrType:
		val.Set(reflect.ValueOf((*HexInt)(new(big.Int).Set(num))))
		return true, nil
	case bigIntType.ConvertibleTo(rtype):
		val.Set(reflect.ValueOf(*new(big.Int).Set(num)).Convert(rtype))
		return true, nil
	}
	return false, nil
}

/*
Returns the natural Go representation: bool, *big.Int, Address, []byte,
string, or []interface{} for arrays and tuples.
*/
func (self AbiValue) Native() interface{} {
	switch self.Type.Kind {
	case AbiKindBool:
		return self.Bool
	case AbiKindUint, AbiKindInt:
		return self.Int
	case AbiKindAddress:
		return self.Addr
	case AbiKindFunction, AbiKindFixedBytes, AbiKindBytes:
		return self.Bytes
	case AbiKindString:
		return self.Str
	case AbiKindFixedArray, AbiKindArray, AbiKindTuple:
		out := make([]interface{}, len(self.Elems))
		for i, elem := range self.Elems {
			out[i] = elem.Native()
		}
		return out
	default:
		return nil
	}
}

/*
ABI-encodes an arbitrary Go value as a single value of the given type. Returns
an error in case of type mismatch.
*/
func AbiMarshal(typ AbiType, input interface{}) ([]byte, error) {
	val, err := AbiValueOf(typ, input)
	if err != nil {
		return nil, err
	}
	return AbiEncode([]AbiValue{val})
}

/*
ABI-decodes a single value of the given type into a Go output, which must be a
pointer. Returns an error in case of type mismatch or malformed input.
*/
func AbiUnmarshal(input []byte, typ AbiType, out interface{}) error {
	vals, err := AbiDecode([]AbiType{typ}, input)
	if err != nil {
		return err
	}
	return vals[0].Assign(out)
}

/*
ABI-encodes multiple Go values, typically parameters to a method call. Returns
an error in case of arity mismatch, type mismatch, or out-of-range values.
*/
func AbiMarshalTuple(params []AbiParam, args ...interface{}) ([]byte, error) {
	vals, err := abiValuesOf(params, args)
	if err != nil {
		return nil, err
	}
	return AbiEncode(vals)
}

func abiValuesOf(params []AbiParam, args []interface{}) ([]AbiValue, error) {
	if len(params) != len(args) {
		return nil, errors.Errorf(`arity mismatch: expected %v inputs, got %v`, len(params), len(args))
	}
	out := make([]AbiValue, len(params))
	for i, param := range params {
		val, err := AbiValueOf(param.AbiType, args[i])
		if err != nil {
			return nil, errors.Wrapf(err, `failed to encode param %v of type %q`, i, param.AbiType)
		}
		out[i] = val
	}
	return out, nil
}

/*
ABI-decodes multiple values, typically return values from a method call, into
the provided Go outputs, which must be pointers. Returns an error in case of
arity mismatch, type mismatch, or malformed input.
*/
func AbiUnmarshalTuple(input []byte, params []AbiParam, outs []interface{}) error {
	if len(params) != len(outs) {
		return errors.Errorf(`arity mismatch: expected %v outputs, got %v`, len(params), len(outs))
	}
	vals, err := AbiDecode(abiParamTypes(params), input)
	if err != nil {
		return err
	}
	for i, val := range vals {
		err := val.Assign(outs[i])
		if err != nil {
			return errors.Wrapf(err, `failed to unmarshal param %v of type %q`, i, params[i].AbiType)
		}
	}
	return nil
}

func abiParamTypes(params []AbiParam) []AbiType {
	out := make([]AbiType, len(params))
	for i, param := range params {
		out[i] = param.AbiType
	}
	return out
}

var (
	abiValueType  = reflect.TypeOf(AbiValue{})
	bigIntType    = reflect.TypeOf(big.Int{})
	bigIntPtrType = reflect.TypeOf((*big.Int)(nil))
	hexIntPtrType = reflect.TypeOf((*HexInt)(nil))
	u256Type      = reflect.TypeOf(U256{})
	addressType   = reflect.TypeOf(Address{})
)

func isByteArray(rtype reflect.Type, length int) bool {
	return rtype.Kind() == reflect.Array && rtype.Elem().Kind() == reflect.Uint8 && rtype.Len() == length
}

func isByteSlice(rtype reflect.Type) bool {
	return rtype.Kind() == reflect.Slice && rtype.Elem().Kind() == reflect.Uint8
}

func typeMismatch(expected AbiType, actual reflect.Type) string {
	return fmt.Sprintf(`type mismatch: Solidity type %q, Go type %q`, expected, actual)
}

// Dereferences pointers and interfaces, except for the pointer types that
// directly represent ABI values.
func deref(val reflect.Value) reflect.Value {
	for val.IsValid() {
		switch val.Kind() {
		case reflect.Interface:
			val = val.Elem()
		case reflect.Ptr:
			if val.Type() == bigIntPtrType {
				if val.IsNil() {
					return reflect.Value{}
				}
				return val
			}
			val = val.Elem()
		default:
			return val
		}
	}
	return val
}
