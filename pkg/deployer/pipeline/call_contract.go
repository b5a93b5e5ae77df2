package pipeline

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/state"
)

// Call is a state-changing call a step still has to make.
type Call struct {
	Target   common.Address
	Calldata []byte
	// Message describes the effect of the call once included.
	Message string
}

// PlanCallFunc reads the chain and returns the call that is still needed. When
// nothing is left to do it returns a nil call and a message saying so.
type PlanCallFunc func(ctx context.Context, env *Env, st *state.State) (*Call, string, error)

// CallContract returns a step for changes that leave no trace in the
// migration state, such as ownership transfers. Whether the step already ran
// is decided by plan from the chain itself.
func CallContract(plan PlanCallFunc) StepFunc {
	return func(ctx context.Context, env *Env, st *state.State) ([]StepOutput, error) {
		call, msg, err := plan(ctx, env, st)
		if err != nil {
			return nil, err
		}
		if call == nil {
			env.Logger.Info(msg)
			return []StepOutput{{Message: msg}}, nil
		}

		hash, err := env.Chain.Send(ctx, &call.Target, call.Calldata)
		if err != nil {
			return nil, fmt.Errorf("failed to call %s: %w", call.Target, err)
		}
		if _, err := waitSuccess(ctx, env.Chain, hash); err != nil {
			return nil, fmt.Errorf("failed to call %s: %w", call.Target, err)
		}
		env.Logger.Info(call.Message, "hash", hash)
		return []StepOutput{{
			Message: call.Message,
			Hash:    ptr(hash),
		}}, nil
	}
}
