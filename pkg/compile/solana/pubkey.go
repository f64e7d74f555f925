package solana

import (
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/smilemakc/chainflow/pkg/models"
)

// decodePubkey decodes a base58-encoded Solana public key into its
// 32-byte representation.
func decodePubkey(s string) ([32]byte, error) {
	var out [32]byte
	decoded, err := base58.Decode(s)
	if err != nil {
		return out, fmt.Errorf("%w: invalid base58 pubkey %q: %v", models.ErrCompile, s, err)
	}
	if len(decoded) != 32 {
		return out, fmt.Errorf("%w: pubkey %q decodes to %d bytes, want 32", models.ErrCompile, s, len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}
