package cel

import (
	"fmt"

	"github.com/smilemakc/chainflow/pkg/models"
)

// errTypeMismatch wraps models.ErrCELEval for operand-type failures
// surfaced during evaluation (e.g. comparing a string to a boolean).
var errTypeMismatch = fmt.Errorf("%w: type mismatch", models.ErrCELEval)
