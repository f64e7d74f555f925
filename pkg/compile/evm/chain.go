package evm

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/smilemakc/chainflow/pkg/models"
)

// ParseChainID parses a CAIP-2 style "eip155:<N>" chain identifier into
// its numeric chain id.
func ParseChainID(chain string) (*big.Int, error) {
	const prefix = "eip155:"
	if !strings.HasPrefix(chain, prefix) {
		return nil, fmt.Errorf("%w: chain: expected %q prefix, got %q", models.ErrCompile, prefix, chain)
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(chain, prefix), 10, 64)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("%w: chain: invalid eip155 chain id %q", models.ErrCompile, chain)
	}
	return big.NewInt(n), nil
}
