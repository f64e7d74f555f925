package solana

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/smilemakc/chainflow/pkg/models"
)

// asBytes materializes a data field as raw bytes: "0x"-prefixed values are
// hex-decoded, everything else is treated as a literal byte sequence.
func asBytes(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return t, nil
	case string:
		if strings.HasPrefix(t, "0x") || strings.HasPrefix(t, "0X") {
			b, err := hex.DecodeString(t[2:])
			if err != nil {
				return nil, fmt.Errorf("%w: invalid hex data %q: %v", models.ErrCompile, t, err)
			}
			return b, nil
		}
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("%w: data field must be a string or byte sequence, got %T", models.ErrCompile, v)
	}
}

// asBool coerces a resolved account flag to a bool, defaulting to false
// when absent.
func asBool(v interface{}) (bool, error) {
	if v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: expected boolean, got %T", models.ErrCompile, v)
	}
	return b, nil
}
