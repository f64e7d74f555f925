package solana

import (
	"encoding/binary"
	"fmt"

	"github.com/smilemakc/chainflow/pkg/bigmath"
	"github.com/smilemakc/chainflow/pkg/models"
)

// InstructionEncoder builds an instruction's data bytes from its
// evaluated data fields (the ValueRef-resolved contents of the node's
// `data` object, minus any `discriminator` override).
type InstructionEncoder func(fields map[string]interface{}) ([]byte, error)

// Well-known mainnet program ids the registry dispatches on. These are the
// real SPL Token and Associated Token Account program addresses, not
// placeholders.
const (
	TokenProgramID                   = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenAccountProgramID = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
)

// registryKey identifies a known (program_id, instruction) pair, matching
// how the instruction registry is keyed: by the base58 program address the
// `program` ValueRef resolves to plus the action name the node was expanded
// from (PlanNode.Source.Action).
type registryKey struct {
	ProgramID   string
	Instruction string
}

// registry maps well-known SPL program instructions to their binary layout.
var registry = map[registryKey]InstructionEncoder{
	{TokenProgramID, "transfer"}:                            encodeSPLTransfer,
	{TokenProgramID, "transfer_checked"}:                     encodeSPLTransferChecked,
	{TokenProgramID, "approve"}:                              encodeSPLApprove,
	{AssociatedTokenAccountProgramID, "create_idempotent"}: encodeATACreateIdempotent,
}

// Lookup returns the encoder registered for (programID, instruction), if any.
func Lookup(programID, instruction string) (InstructionEncoder, bool) {
	enc, ok := registry[registryKey{ProgramID: programID, Instruction: instruction}]
	return enc, ok
}

func amountField(fields map[string]interface{}, key string) (uint64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q field", models.ErrCompile, key)
	}
	s, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("%w: %q must be a numeric string", models.ErrCompile, key)
	}
	d, err := bigmath.Parse(s)
	if err != nil || d.Scale != 0 {
		return 0, fmt.Errorf("%w: %q must be an integer amount: %v", models.ErrCompile, key, err)
	}
	return d.Unscaled.Uint64(), nil
}

// encodeSPLTransfer lays out SPL Token's Transfer instruction:
// 1-byte discriminator (3) + little-endian u64 amount.
func encodeSPLTransfer(fields map[string]interface{}) ([]byte, error) {
	amount, err := amountField(fields, "amount")
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 9)
	buf[0] = 3
	binary.LittleEndian.PutUint64(buf[1:], amount)
	return buf, nil
}

// encodeSPLTransferChecked lays out TransferChecked: discriminator (12) +
// u64 amount + u8 decimals.
func encodeSPLTransferChecked(fields map[string]interface{}) ([]byte, error) {
	amount, err := amountField(fields, "amount")
	if err != nil {
		return nil, err
	}
	decimals, err := amountField(fields, "decimals")
	if err != nil {
		return nil, err
	}
	if decimals > 255 {
		return nil, fmt.Errorf("%w: decimals out of range: %d", models.ErrCompile, decimals)
	}
	buf := make([]byte, 10)
	buf[0] = 12
	binary.LittleEndian.PutUint64(buf[1:9], amount)
	buf[9] = byte(decimals)
	return buf, nil
}

// encodeSPLApprove lays out Approve: discriminator (4) + u64 amount.
func encodeSPLApprove(fields map[string]interface{}) ([]byte, error) {
	amount, err := amountField(fields, "amount")
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 9)
	buf[0] = 4
	binary.LittleEndian.PutUint64(buf[1:], amount)
	return buf, nil
}

// encodeATACreateIdempotent lays out the associated-token-account
// program's CreateIdempotent instruction: a single tag byte, no payload.
func encodeATACreateIdempotent(map[string]interface{}) ([]byte, error) {
	return []byte{1}, nil
}
