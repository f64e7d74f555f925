package evm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"unicode"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/smilemakc/chainflow/pkg/bigmath"
	"github.com/smilemakc/chainflow/pkg/models"
)

// LoadABI parses an ABI definition resolved from a ValueRef. raw may be
// the ABI's JSON text (a string) or an already-decoded []interface{}/
// map-shaped value (e.g. a literal object embedded in the plan); both are
// re-marshaled to JSON and handed to go-ethereum's parser, which is the
// only place selector computation (keccak256 of the canonical signature)
// happens.
func LoadABI(raw interface{}) (*ethabi.ABI, error) {
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, &models.CompileError{Field: "abi", Err: fmt.Errorf("%w: %v", models.ErrCompile, err)}
		}
		data = encoded
	}

	parsed, err := ethabi.JSON(bytes.NewReader(data))
	if err != nil {
		return nil, &models.CompileError{Field: "abi", Err: fmt.Errorf("%w: %v", models.ErrCompile, err)}
	}
	return &parsed, nil
}

// coerceArgs converts resolved ValueRef results (strings, bools, decimal
// strings, nested maps/slices) into the Go-native types go-ethereum's
// abi.Arguments.Pack expects for each argument's Solidity type.
func coerceArgs(args ethabi.Arguments, values []interface{}) ([]interface{}, error) {
	if len(values) != len(args) {
		return nil, fmt.Errorf("%w: args: expected %d argument(s), got %d", models.ErrCompile, len(args), len(values))
	}
	out := make([]interface{}, len(args))
	for i, arg := range args {
		v, err := coerceValue(arg.Type, values[i])
		if err != nil {
			return nil, &models.CompileError{Field: fmt.Sprintf("args.%d", i), Err: err}
		}
		out[i] = v
	}
	return out, nil
}

func coerceValue(t ethabi.Type, v interface{}) (interface{}, error) {
	switch t.T {
	case ethabi.AddressTy:
		s, err := asString(v)
		if err != nil {
			return nil, err
		}
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%w: not a valid address: %q", models.ErrCompile, s)
		}
		return common.HexToAddress(s), nil

	case ethabi.BoolTy:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: expected bool, got %T", models.ErrCompile, v)
		}
		return b, nil

	case ethabi.StringTy:
		return asString(v)

	case ethabi.BytesTy:
		return asBytes(v)

	case ethabi.FixedBytesTy:
		b, err := asBytes(v)
		if err != nil {
			return nil, err
		}
		return padFixedBytes(b, t.Size)

	case ethabi.UintTy, ethabi.IntTy:
		n, err := asBigInt(v)
		if err != nil {
			return nil, err
		}
		return fitIntType(n, t)

	case ethabi.SliceTy, ethabi.ArrayTy:
		list, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: expected array, got %T", models.ErrCompile, v)
		}
		return coerceSlice(t, list)

	case ethabi.TupleTy:
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: expected object for tuple, got %T", models.ErrCompile, v)
		}
		return coerceTuple(t, obj)

	default:
		return nil, fmt.Errorf("%w: unsupported ABI type %s", models.ErrCompile, t.String())
	}
}

func asString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected string, got %T", models.ErrCompile, v)
	}
	return s, nil
}

// asBytes accepts 0x-hex strings or already-decoded byte slices.
func asBytes(v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		return x, nil
	case string:
		if strings.HasPrefix(x, "0x") || strings.HasPrefix(x, "0X") {
			return hexutil.Decode(x)
		}
		return []byte(x), nil
	default:
		return nil, fmt.Errorf("%w: expected hex string or bytes, got %T", models.ErrCompile, v)
	}
}

func padFixedBytes(b []byte, size int) (interface{}, error) {
	if len(b) > size {
		return nil, fmt.Errorf("%w: fixed bytes overflow: got %d bytes, want %d", models.ErrCompile, len(b), size)
	}
	switch size {
	case 32:
		var out [32]byte
		copy(out[:], b)
		return out, nil
	default:
		// go-ethereum's abi.Pack accepts any [N]byte array via reflection;
		// since Go cannot construct an arbitrary-length array type at
		// runtime without reflect.New, only bytes32 is converted to an
		// array; for other sizes a value of exactly that length is passed
		// through as a []byte (left to abi.Pack to accept or reject), and
		// anything shorter is reported as unsupported.
		if size == len(b) {
			return b, nil
		}
		return nil, fmt.Errorf("%w: fixedBytes%d not supported by this compiler", models.ErrCompile, size)
	}
}

func asBigInt(v interface{}) (*big.Int, error) {
	switch x := v.(type) {
	case string:
		d, err := bigmath.Parse(x)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrCompile, err)
		}
		if d.Scale != 0 {
			return nil, fmt.Errorf("%w: expected an integer, got fractional value %q", models.ErrCompile, x)
		}
		return d.Unscaled, nil
	case *big.Int:
		return x, nil
	default:
		return nil, fmt.Errorf("%w: expected integer string, got %T", models.ErrCompile, v)
	}
}

func fitIntType(n *big.Int, t ethabi.Type) (interface{}, error) {
	// go-ethereum's Pack accepts *big.Int for all int/uint widths except
	// uint8/16/32/64 and int8/16/32/64, which it expects as native Go
	// integers.
	switch t.Size {
	case 8, 16, 32:
		if t.T == ethabi.UintTy {
			switch t.Size {
			case 8:
				return uint8(n.Uint64()), nil
			case 16:
				return uint16(n.Uint64()), nil
			default:
				return uint32(n.Uint64()), nil
			}
		}
		switch t.Size {
		case 8:
			return int8(n.Int64()), nil
		case 16:
			return int16(n.Int64()), nil
		default:
			return int32(n.Int64()), nil
		}
	case 64:
		if t.T == ethabi.UintTy {
			return n.Uint64(), nil
		}
		return n.Int64(), nil
	default:
		return n, nil
	}
}

func coerceSlice(t ethabi.Type, list []interface{}) (interface{}, error) {
	elem := *t.Elem
	out := make([]interface{}, len(list))
	for i, v := range list {
		cv, err := coerceValue(elem, v)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = cv
	}
	return out, nil
}

// coerceTuple builds an anonymous Go struct matching the tuple's ABI
// layout field-for-field (go-ethereum's encoder packs tuples from struct
// fields tagged `abi:"name"`, not from maps), populates it from obj, and
// returns the constructed struct value.
func coerceTuple(t ethabi.Type, obj map[string]interface{}) (interface{}, error) {
	fields := make([]reflect.StructField, len(t.TupleRawNames))
	values := make([]interface{}, len(t.TupleRawNames))

	for i, name := range t.TupleRawNames {
		fv, ok := obj[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing tuple field %q", models.ErrCompile, name)
		}
		cv, err := coerceValue(*t.TupleElems[i], fv)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		values[i] = cv
		fields[i] = reflect.StructField{
			Name: exportedFieldName(name, i),
			Type: reflect.TypeOf(cv),
			Tag:  reflect.StructTag(fmt.Sprintf(`abi:"%s"`, name)),
		}
	}

	structType := reflect.StructOf(fields)
	out := reflect.New(structType).Elem()
	for i, v := range values {
		out.Field(i).Set(reflect.ValueOf(v))
	}
	return out.Interface(), nil
}

// exportedFieldName derives a valid, capitalized Go struct field name from
// an ABI tuple component name, falling back to a positional name for
// unnamed or non-identifier components.
func exportedFieldName(name string, i int) string {
	if name == "" {
		return fmt.Sprintf("Field%d", i)
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
