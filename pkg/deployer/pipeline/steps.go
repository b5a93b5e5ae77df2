package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lmittmann/w3"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/state"
)

var (
	PairInitCodeHash = common.HexToHash("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f")
	PoolInitCodeHash = common.HexToHash("0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54")
)

const (
	oneBPFee         = 100
	oneBPTickSpacing = 1
)

var ErrNotOwner = errors.New("deployer is not the owner")

var (
	ownerFunc                = w3.MustNewFunc("owner()", "address")
	setOwnerFunc             = w3.MustNewFunc("setOwner(address)", "")
	transferOwnershipFunc    = w3.MustNewFunc("transferOwnership(address)", "")
	feeAmountTickSpacingFunc = w3.MustNewFunc("feeAmountTickSpacing(uint24)", "int24")
	enableFeeAmountFunc      = w3.MustNewFunc("enableFeeAmount(uint24,int24)", "")
)

// Artifact names, as found in the artifacts directory.
const (
	ArtifactUniswapV3Factory                   = "UniswapV3Factory"
	ArtifactMulticall                          = "UniswapInterfaceMulticall"
	ArtifactProxyAdmin                         = "ProxyAdmin"
	ArtifactTickLens                           = "TickLens"
	ArtifactNFTDescriptor                      = "NFTDescriptor"
	ArtifactNonfungibleTokenPositionDescriptor = "NonfungibleTokenPositionDescriptor"
	ArtifactTransparentUpgradeableProxy        = "TransparentUpgradeableProxy"
	ArtifactNonfungiblePositionManager         = "NonfungiblePositionManager"
	ArtifactQuoterV2                           = "QuoterV2"
	ArtifactSwapRouter02                       = "SwapRouter02"
	ArtifactPermit2                            = "Permit2"
	ArtifactUnsupportedProtocol                = "UnsupportedProtocol"
	ArtifactUniversalRouter                    = "UniversalRouter"
)

// RouterParameters is the UniversalRouter constructor argument.
type RouterParameters struct {
	Permit2                     common.Address `abi:"permit2"`
	Weth9                       common.Address `abi:"weth9"`
	SeaportV15                  common.Address `abi:"seaportV1_5"`
	SeaportV14                  common.Address `abi:"seaportV1_4"`
	OpenseaConduit              common.Address `abi:"openseaConduit"`
	NftxZap                     common.Address `abi:"nftxZap"`
	X2y2                        common.Address `abi:"x2y2"`
	Foundation                  common.Address `abi:"foundation"`
	Sudoswap                    common.Address `abi:"sudoswap"`
	ElementMarket               common.Address `abi:"elementMarket"`
	Nft20Zap                    common.Address `abi:"nft20Zap"`
	Cryptopunks                 common.Address `abi:"cryptopunks"`
	LooksRareV2                 common.Address `abi:"looksRareV2"`
	RouterRewardsDistributor    common.Address `abi:"routerRewardsDistributor"`
	LooksRareRewardsDistributor common.Address `abi:"looksRareRewardsDistributor"`
	LooksRareToken              common.Address `abi:"looksRareToken"`
	V2Factory                   common.Address `abi:"v2Factory"`
	V3Factory                   common.Address `abi:"v3Factory"`
	PairInitCodeHash            [32]byte       `abi:"pairInitCodeHash"`
	PoolInitCodeHash            [32]byte       `abi:"poolInitCodeHash"`
}

type stepDef struct {
	name string
	DeployContractOpts
	artifact string
}

// Contracts that record msg.sender as their owner are created directly, so
// that the deployer and not the relay ends up owning them.
func migrationDefs() []stepDef {
	return []stepDef{
		{
			name:     "DEPLOY_V3_CORE_FACTORY",
			artifact: ArtifactUniswapV3Factory,
			DeployContractOpts: DeployContractOpts{
				Key:      state.V3CoreFactory,
				Strategy: StrategyCreate,
			},
		},
		{name: "ADD_1BP_FEE_TIER"},
		{
			name:     "DEPLOY_MULTICALL2",
			artifact: ArtifactMulticall,
			DeployContractOpts: DeployContractOpts{
				Key: state.Multicall2,
			},
		},
		{
			name:     "DEPLOY_PROXY_ADMIN",
			artifact: ArtifactProxyAdmin,
			DeployContractOpts: DeployContractOpts{
				Key:      state.ProxyAdmin,
				Strategy: StrategyCreate,
			},
		},
		{
			name:     "DEPLOY_TICK_LENS",
			artifact: ArtifactTickLens,
			DeployContractOpts: DeployContractOpts{
				Key: state.TickLens,
			},
		},
		{
			name:     "DEPLOY_NFT_DESCRIPTOR_LIBRARY",
			artifact: ArtifactNFTDescriptor,
			DeployContractOpts: DeployContractOpts{
				Key:      state.NFTDescriptorLibrary,
				Strategy: StrategyCreate,
			},
		},
		{
			name:     "DEPLOY_NFT_POSITION_DESCRIPTOR",
			artifact: ArtifactNonfungibleTokenPositionDescriptor,
			DeployContractOpts: DeployContractOpts{
				Key:      state.NonfungibleTokenPositionDescriptor,
				Strategy: StrategyCreate,
				Libraries: func(st *state.State, _ *Config) (map[string]common.Address, error) {
					lib, err := RequireAddress(st, state.NFTDescriptorLibrary)
					if err != nil {
						return nil, err
					}
					return map[string]common.Address{"NFTDescriptor": lib}, nil
				},
				Args: func(_ *state.State, cfg *Config) ([]any, error) {
					return []any{cfg.WETH9Address, cfg.NativeCurrencyLabelBytes}, nil
				},
			},
		},
		{
			name:     "DEPLOY_TRANSPARENT_PROXY_DESCRIPTOR",
			artifact: ArtifactTransparentUpgradeableProxy,
			DeployContractOpts: DeployContractOpts{
				Key:      state.DescriptorProxy,
				Strategy: StrategyCreate,
				Args: func(st *state.State, _ *Config) ([]any, error) {
					return requireAll(st, []state.Key{state.NonfungibleTokenPositionDescriptor, state.ProxyAdmin}, []byte{})
				},
			},
		},
		{
			name:     "DEPLOY_NONFUNGIBLE_POSITION_MANAGER",
			artifact: ArtifactNonfungiblePositionManager,
			DeployContractOpts: DeployContractOpts{
				Key: state.NonfungibleTokenPositionManager,
				Args: func(st *state.State, cfg *Config) ([]any, error) {
					factory, err := RequireAddress(st, state.V3CoreFactory)
					if err != nil {
						return nil, err
					}
					descriptor, err := RequireAddress(st, state.DescriptorProxy)
					if err != nil {
						return nil, err
					}
					return []any{factory, cfg.WETH9Address, descriptor}, nil
				},
			},
		},
		{name: "TRANSFER_V3_CORE_FACTORY_OWNER"},
		{
			name:     "DEPLOY_QUOTER_V2",
			artifact: ArtifactQuoterV2,
			DeployContractOpts: DeployContractOpts{
				Key: state.QuoterV2,
				Args: func(st *state.State, cfg *Config) ([]any, error) {
					factory, err := RequireAddress(st, state.V3CoreFactory)
					if err != nil {
						return nil, err
					}
					return []any{factory, cfg.WETH9Address}, nil
				},
			},
		},
		{
			name:     "DEPLOY_V3_SWAP_ROUTER_02",
			artifact: ArtifactSwapRouter02,
			DeployContractOpts: DeployContractOpts{
				Key: state.SwapRouter02,
				Args: func(st *state.State, cfg *Config) ([]any, error) {
					factory, err := RequireAddress(st, state.V3CoreFactory)
					if err != nil {
						return nil, err
					}
					manager, err := RequireAddress(st, state.NonfungibleTokenPositionManager)
					if err != nil {
						return nil, err
					}
					return []any{cfg.V2CoreFactoryAddress, factory, manager, cfg.WETH9Address}, nil
				},
			},
		},
		{name: "TRANSFER_PROXY_ADMIN"},
		{
			name:     "DEPLOY_PERMIT2",
			artifact: ArtifactPermit2,
			DeployContractOpts: DeployContractOpts{
				Key: state.Permit2,
			},
		},
		{
			name:     "DEPLOY_UNSUPPORTED",
			artifact: ArtifactUnsupportedProtocol,
			DeployContractOpts: DeployContractOpts{
				Key: state.Unsupported,
			},
		},
		{
			name:     "DEPLOY_UNIVERSAL_ROUTER",
			artifact: ArtifactUniversalRouter,
			DeployContractOpts: DeployContractOpts{
				Key:      state.UniversalRouter,
				Strategy: StrategyCreate,
				Args: func(st *state.State, cfg *Config) ([]any, error) {
					params, err := routerParameters(st, cfg)
					if err != nil {
						return nil, err
					}
					return []any{params}, nil
				},
			},
		},
	}
}

// MigrationSteps loads every artifact and returns the full migration in
// order. Artifact and linking problems are reported here, before anything
// runs.
func MigrationSteps(arts ArtifactSource) ([]Step, error) {
	calls := map[string]StepFunc{
		"ADD_1BP_FEE_TIER":               CallContract(planAddOneBPFeeTier),
		"TRANSFER_V3_CORE_FACTORY_OWNER": CallContract(planTransferFactoryOwner),
		"TRANSFER_PROXY_ADMIN":           CallContract(planTransferProxyAdmin),
	}

	var steps []Step
	for _, def := range migrationDefs() {
		if run, ok := calls[def.name]; ok {
			steps = append(steps, Step{Name: def.name, Run: run})
			continue
		}
		art, err := arts.Read(def.artifact)
		if err != nil {
			return nil, fmt.Errorf("failed to load artifact for %s: %w", def.name, err)
		}
		opts := def.DeployContractOpts
		opts.Artifact = art
		run, err := DeployContract(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create step %s: %w", def.name, err)
		}
		steps = append(steps, Step{Name: def.name, Run: run})
	}
	return steps, nil
}

func routerParameters(st *state.State, cfg *Config) (RouterParameters, error) {
	factory, err := RequireAddress(st, state.V3CoreFactory)
	if err != nil {
		return RouterParameters{}, err
	}
	permit2, err := RequireAddress(st, state.Permit2)
	if err != nil {
		return RouterParameters{}, err
	}
	unsupported, err := RequireAddress(st, state.Unsupported)
	if err != nil {
		return RouterParameters{}, err
	}
	return RouterParameters{
		Permit2:                     permit2,
		Weth9:                       cfg.WETH9Address,
		SeaportV15:                  unsupported,
		SeaportV14:                  unsupported,
		OpenseaConduit:              unsupported,
		NftxZap:                     unsupported,
		X2y2:                        unsupported,
		Foundation:                  unsupported,
		Sudoswap:                    unsupported,
		ElementMarket:               unsupported,
		Nft20Zap:                    unsupported,
		Cryptopunks:                 unsupported,
		LooksRareV2:                 unsupported,
		RouterRewardsDistributor:    unsupported,
		LooksRareRewardsDistributor: unsupported,
		LooksRareToken:              unsupported,
		V2Factory:                   cfg.V2CoreFactoryAddress,
		V3Factory:                   factory,
		PairInitCodeHash:            PairInitCodeHash,
		PoolInitCodeHash:            PoolInitCodeHash,
	}, nil
}

// requireAll resolves keys in order and appends extra to the result.
func requireAll(st *state.State, keys []state.Key, extra ...any) ([]any, error) {
	out := make([]any, 0, len(keys)+len(extra))
	for _, k := range keys {
		addr, err := RequireAddress(st, k)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return append(out, extra...), nil
}

func planAddOneBPFeeTier(ctx context.Context, env *Env, st *state.State) (*Call, string, error) {
	factory, err := RequireAddress(st, state.V3CoreFactory)
	if err != nil {
		return nil, "", err
	}
	input, err := feeAmountTickSpacingFunc.EncodeArgs(big.NewInt(oneBPFee))
	if err != nil {
		return nil, "", err
	}
	output, err := env.Chain.Call(ctx, factory, input)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read fee tier: %w", err)
	}
	var spacing *big.Int
	if err := feeAmountTickSpacingFunc.DecodeReturns(output, &spacing); err != nil {
		return nil, "", fmt.Errorf("failed to decode fee tier: %w", err)
	}
	if spacing.Sign() != 0 {
		return nil, fmt.Sprintf("UniswapV3Factory already has a %d bps fee tier", oneBPFee/100), nil
	}
	// enableFeeAmount is owner only.
	owner, err := readOwner(ctx, env, factory, "UniswapV3Factory")
	if err != nil {
		return nil, "", err
	}
	if owner != env.Chain.From() {
		return nil, "", fmt.Errorf("%w: UniswapV3Factory is owned by %s", ErrNotOwner, owner)
	}
	calldata, err := enableFeeAmountFunc.EncodeArgs(big.NewInt(oneBPFee), big.NewInt(oneBPTickSpacing))
	if err != nil {
		return nil, "", err
	}
	return &Call{
		Target:   factory,
		Calldata: calldata,
		Message:  fmt.Sprintf("UniswapV3Factory added a new fee tier %d bps with tick spacing %d", oneBPFee/100, oneBPTickSpacing),
	}, "", nil
}

func planTransferFactoryOwner(ctx context.Context, env *Env, st *state.State) (*Call, string, error) {
	return planOwnership(ctx, env, st, state.V3CoreFactory, "UniswapV3Factory", setOwnerFunc)
}

func planTransferProxyAdmin(ctx context.Context, env *Env, st *state.State) (*Call, string, error) {
	return planOwnership(ctx, env, st, state.ProxyAdmin, "ProxyAdmin", transferOwnershipFunc)
}

// planOwnership hands ownership of the contract under key to the configured
// owner, unless it already has it.
func planOwnership(ctx context.Context, env *Env, st *state.State, key state.Key, label string, transfer *w3.Func) (*Call, string, error) {
	target, err := RequireAddress(st, key)
	if err != nil {
		return nil, "", err
	}
	owner, err := readOwner(ctx, env, target, label)
	if err != nil {
		return nil, "", err
	}

	want := env.Config.OwnerAddress
	if owner == want {
		return nil, fmt.Sprintf("%s owned by %s already", label, want), nil
	}
	if owner != env.Chain.From() {
		return nil, "", fmt.Errorf("%w: %s is owned by %s", ErrNotOwner, label, owner)
	}
	calldata, err := transfer.EncodeArgs(want)
	if err != nil {
		return nil, "", err
	}
	return &Call{
		Target:   target,
		Calldata: calldata,
		Message:  fmt.Sprintf("%s ownership set to %s", label, want),
	}, "", nil
}

func readOwner(ctx context.Context, env *Env, target common.Address, label string) (common.Address, error) {
	input, err := ownerFunc.EncodeArgs()
	if err != nil {
		return common.Address{}, err
	}
	output, err := env.Chain.Call(ctx, target, input)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to read %s owner: %w", label, err)
	}
	var owner common.Address
	if err := ownerFunc.DecodeReturns(output, &owner); err != nil {
		return common.Address{}, fmt.Errorf("failed to decode %s owner: %w", label, err)
	}
	return owner, nil
}
