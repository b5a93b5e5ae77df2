package txinclude

import (
	"strings"

	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/txpool"
)

// Errors that cannot be fixed by sending the same transaction again.
var fatalErrs = []error{
	// Nonces
	core.ErrNonceTooLow,
	core.ErrNonceTooHigh,

	// Fees
	txpool.ErrReplaceUnderpriced,
	txpool.ErrUnderpriced,

	// Transaction limits.
	txpool.ErrOversizedData,
	core.ErrMaxInitCodeSizeExceeded,

	// Validity.
	txpool.ErrGasLimit,
	txpool.ErrNegativeValue,
	core.ErrInsufficientFunds,
	core.ErrIntrinsicGas,
	core.ErrTipAboveFeeCap,
}

var recognizedErrs = append([]error{
	txpool.ErrAlreadyKnown,
}, fatalErrs...)

// RecognizeError maps an error returned over RPC back to the geth sentinel it
// was created from. RPC errors lose their identity, so the match is on the
// message text. Unrecognized errors are returned unchanged.
func RecognizeError(err error) error {
	if err == nil {
		return nil
	}
	for _, recognizedErr := range recognizedErrs {
		if strings.Contains(err.Error(), recognizedErr.Error()) {
			return recognizedErr
		}
	}
	return err
}
