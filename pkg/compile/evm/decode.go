package evm

import (
	"fmt"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/smilemakc/chainflow/pkg/models"
)

// DecodeOutputs unpacks a method's return data. If every output has a
// name and the names are unique, the result is a map keyed by name;
// otherwise it falls back to a positional list, matching spec.md's
// decoding rule.
func DecodeOutputs(method *ethabi.Method, data []byte) (interface{}, error) {
	values, err := method.Outputs.UnpackValues(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s output: %v", models.ErrCompile, method.Name, err)
	}

	if allNamedAndUnique(method.Outputs) {
		out := make(map[string]interface{}, len(values))
		for i, arg := range method.Outputs {
			out[arg.Name] = decodeLeaf(values[i])
		}
		return out, nil
	}

	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = decodeLeaf(v)
	}
	return out, nil
}

// DecodeCallArgs unpacks the ABI-encoded arguments following a method's
// 4-byte selector back into a name-keyed map, for previewing a compiled
// call without re-threading the pre-pack argument values through the
// compiler's return value.
func DecodeCallArgs(method *ethabi.Method, data []byte) (map[string]interface{}, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: calldata shorter than selector", models.ErrCompile)
	}
	values, err := method.Inputs.UnpackValues(data[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s args: %v", models.ErrCompile, method.Name, err)
	}
	out := make(map[string]interface{}, len(values))
	for i, arg := range method.Inputs {
		name := arg.Name
		if name == "" {
			name = fmt.Sprintf("arg%d", i)
		}
		out[name] = decodeLeaf(values[i])
	}
	return out, nil
}

func allNamedAndUnique(args ethabi.Arguments) bool {
	if len(args) == 0 {
		return false
	}
	seen := make(map[string]bool, len(args))
	for _, a := range args {
		if a.Name == "" || seen[a.Name] {
			return false
		}
		seen[a.Name] = true
	}
	return true
}

// decodeLeaf renders go-ethereum's unpacked Go-native values (big.Int,
// common.Address, struct tuples, etc.) into the plain string/bool/map/
// slice shapes the rest of the module exchanges through interface{}, so a
// node's output can flow straight into runtime-tree patches and CEL
// expressions without further type-switching downstream.
func decodeLeaf(v interface{}) interface{} {
	switch x := v.(type) {
	case fmt.Stringer:
		return x.String()
	case []byte:
		return fmt.Sprintf("0x%x", x)
	case [32]byte:
		return fmt.Sprintf("0x%x", x[:])
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = decodeLeaf(e)
		}
		return out
	default:
		return v
	}
}
