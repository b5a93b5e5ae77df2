package pipeline

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/state"
)

// StepOutput describes one effect of a step. Hash is set when a transaction
// was sent, Address when a contract address is known.
type StepOutput struct {
	Message string          `json:"message"`
	Hash    *common.Hash    `json:"hash,omitempty"`
	Address *common.Address `json:"address,omitempty"`
}

type StepFunc func(ctx context.Context, env *Env, st *state.State) ([]StepOutput, error)

type Step struct {
	Name string
	Run  StepFunc
}

// MissingDependencyError is returned when a step needs an address that an
// earlier step should have recorded.
type MissingDependencyError struct {
	Key state.Key
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("missing dependency: %s is not in the migration state", e.Key)
}

// RequireAddress reads a dependency from st.
func RequireAddress(st *state.State, key state.Key) (common.Address, error) {
	addr, ok := st.Get(key)
	if !ok {
		return common.Address{}, &MissingDependencyError{Key: key}
	}
	return addr, nil
}

func ptr[T any](v T) *T {
	return &v
}
