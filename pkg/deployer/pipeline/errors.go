package pipeline

import (
	"errors"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/broadcaster"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/confirm"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/linker"
)

type ErrorKind string

const (
	KindDependency          ErrorKind = "dependency"
	KindLinking             ErrorKind = "linking"
	KindDuplicateSubmission ErrorKind = "duplicate_submission"
	KindConfirmationTimeout ErrorKind = "confirmation_timeout"
	// KindPermission is returned when the deployer does not own a contract
	// it has to administer.
	KindPermission ErrorKind = "permission"
	KindReverted   ErrorKind = "reverted"
	KindProvider   ErrorKind = "provider"
)

// Retryable reports whether running the migration again without changes can
// succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindDuplicateSubmission, KindConfirmationTimeout, KindProvider:
		return true
	default:
		return false
	}
}

func Classify(err error) ErrorKind {
	var missing *MissingDependencyError
	switch {
	case errors.As(err, &missing):
		return KindDependency
	case errors.Is(err, linker.ErrMissingLibraryAddress),
		errors.Is(err, linker.ErrUnexpectedLibraryReferences),
		errors.Is(err, linker.ErrInvalidLinkReference):
		return KindLinking
	case errors.Is(err, broadcaster.ErrDuplicateSubmission):
		return KindDuplicateSubmission
	case errors.Is(err, confirm.ErrConfirmationTimeout):
		return KindConfirmationTimeout
	case errors.Is(err, ErrNotOwner):
		return KindPermission
	case errors.Is(err, confirm.ErrTransactionReverted):
		return KindReverted
	default:
		return KindProvider
	}
}
