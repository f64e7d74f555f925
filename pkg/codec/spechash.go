package codec

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// SpecHash computes keccak256(CanonicalJSON(v)) and returns it as a
// "0x"-prefixed lowercase hex string, matching go-ethereum's own hash
// formatting convention. Used to produce ConfirmationSummary.Hash from
// its content with volatile fields already stripped by the caller.
func SpecHash(v interface{}) (string, error) {
	canonical, err := CanonicalJSON(v)
	if err != nil {
		return "", fmt.Errorf("codec: spec hash: %w", err)
	}
	sum := crypto.Keccak256(canonical)
	return "0x" + hex.EncodeToString(sum), nil
}
