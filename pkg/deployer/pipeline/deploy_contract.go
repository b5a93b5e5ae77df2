package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/confirm"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/create2"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/linker"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/state"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/solc"
)

type Strategy int

const (
	// StrategyCreate2 deploys through the deterministic deployment proxy, so
	// the address depends only on the relay, salt and init code.
	StrategyCreate2 Strategy = iota
	// StrategyCreate deploys with a contract-creation transaction.
	StrategyCreate
)

func (s Strategy) String() string {
	switch s {
	case StrategyCreate2:
		return "create2"
	case StrategyCreate:
		return "create"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

var ErrNoCode = errors.New("no code at deployed address")

type LibrariesFunc func(st *state.State, cfg *Config) (map[string]common.Address, error)

type ArgsFunc func(st *state.State, cfg *Config) ([]any, error)

type DeployContractOpts struct {
	Key      state.Key
	Artifact *solc.HardhatArtifact
	// Libraries resolves the addresses to link. It must be set exactly when
	// the artifact has link references.
	Libraries LibrariesFunc
	Args      ArgsFunc
	Strategy  Strategy
}

// DeployContract returns a step that deploys the artifact once and records
// its address under Key. When Key is already recorded the step does nothing.
func DeployContract(opts DeployContractOpts) (StepFunc, error) {
	if opts.Artifact == nil {
		return nil, fmt.Errorf("no artifact for %s", opts.Key)
	}
	if !opts.Key.Valid() {
		return nil, fmt.Errorf("%w: %s", state.ErrUnknownKey, opts.Key)
	}
	name := opts.Artifact.ContractName
	if err := linker.CheckLinkable(opts.Artifact.LinkReferences, opts.Libraries != nil); err != nil {
		return nil, fmt.Errorf("invalid deploy step for %s: %w", name, err)
	}

	return func(ctx context.Context, env *Env, st *state.State) ([]StepOutput, error) {
		lgr := env.Logger.New("contract", name)
		if addr, ok := st.Get(opts.Key); ok {
			lgr.Info("contract already deployed", "address", addr)
			return []StepOutput{{
				Message: fmt.Sprintf("Contract %s was already deployed", name),
				Address: ptr(addr),
			}}, nil
		}

		initCode, err := buildInitCode(opts, st, &env.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to build init code for %s: %w", name, err)
		}

		var (
			addr common.Address
			hash common.Hash
		)
		switch opts.Strategy {
		case StrategyCreate2:
			relay, salt := env.Config.Relay, env.Config.Salt
			addr = create2.Address(relay, salt, initCode)
			existing, err := env.Chain.CodeAt(ctx, addr)
			if err != nil {
				return nil, fmt.Errorf("failed to check code at %s: %w", addr, err)
			}
			if len(existing) > 0 {
				// sent by an earlier run that stopped before saving state
				lgr.Info("contract found at deterministic address", "address", addr)
				if err := st.Set(opts.Key, addr); err != nil {
					return nil, err
				}
				return []StepOutput{{
					Message: fmt.Sprintf("Contract %s was already deployed", name),
					Address: ptr(addr),
				}}, nil
			}

			lgr.Info("deploying contract", "strategy", opts.Strategy, "address", addr)
			hash, err = env.Chain.Send(ctx, &relay, create2.RelayCalldata(salt, initCode))
			if err != nil {
				return nil, fmt.Errorf("failed to deploy %s: %w", name, err)
			}
			if _, err := waitSuccess(ctx, env.Chain, hash); err != nil {
				return nil, fmt.Errorf("failed to deploy %s: %w", name, err)
			}
			code, err := env.Chain.CodeAt(ctx, addr)
			if err != nil {
				return nil, fmt.Errorf("failed to check code at %s: %w", addr, err)
			}
			if len(code) == 0 {
				return nil, fmt.Errorf("failed to deploy %s: %w: %s", name, ErrNoCode, addr)
			}
		case StrategyCreate:
			lgr.Info("deploying contract", "strategy", opts.Strategy)
			hash, err = env.Chain.Send(ctx, nil, initCode)
			if err != nil {
				return nil, fmt.Errorf("failed to deploy %s: %w", name, err)
			}
			receipt, err := waitSuccess(ctx, env.Chain, hash)
			if err != nil {
				return nil, fmt.Errorf("failed to deploy %s: %w", name, err)
			}
			addr = receipt.ContractAddress
		default:
			return nil, fmt.Errorf("unknown deployment strategy %s", opts.Strategy)
		}

		if err := st.Set(opts.Key, addr); err != nil {
			return nil, err
		}
		lgr.Info("contract deployed", "address", addr, "hash", hash)
		return []StepOutput{{
			Message: fmt.Sprintf("Contract %s deployed", name),
			Hash:    ptr(hash),
			Address: ptr(addr),
		}}, nil
	}, nil
}

// buildInitCode links libraries and appends the ABI-encoded constructor
// arguments. Dependencies are resolved before anything is sent.
func buildInitCode(opts DeployContractOpts, st *state.State, cfg *Config) ([]byte, error) {
	var args []any
	if opts.Args != nil {
		var err error
		if args, err = opts.Args(st, cfg); err != nil {
			return nil, err
		}
	}

	bytecode := opts.Artifact.Bytecode
	if opts.Libraries != nil {
		libs, err := opts.Libraries(st, cfg)
		if err != nil {
			return nil, err
		}
		if bytecode, err = linker.Link(bytecode, opts.Artifact.LinkReferences, libs); err != nil {
			return nil, err
		}
	}

	code, err := hexutil.Decode(bytecode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", create2.ErrInvalidPayloadEncoding, err)
	}
	packed, err := opts.Artifact.Abi.Parsed.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode constructor arguments: %w", err)
	}
	return append(code, packed...), nil
}

func waitSuccess(ctx context.Context, chain Chain, hash common.Hash) (*types.Receipt, error) {
	receipt, err := chain.WaitReceipt(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt for %s: %w", hash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s", confirm.ErrTransactionReverted, hash)
	}
	return receipt, nil
}
