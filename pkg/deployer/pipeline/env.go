package pipeline

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/broadcaster"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/create2"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/metrics"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/solc"
)

// Chain is what steps need from the network: submission, inclusion and
// reads. *broadcaster.Broadcaster implements it.
type Chain interface {
	From() common.Address
	Send(ctx context.Context, to *common.Address, data []byte) (common.Hash, error)
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, addr common.Address) ([]byte, error)
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

var _ Chain = (*broadcaster.Broadcaster)(nil)

type ArtifactSource interface {
	Read(name string) (*solc.HardhatArtifact, error)
}

// Config holds the business parameters of a migration. It does not change
// while the migration runs.
type Config struct {
	// Deployer is the account signing every transaction.
	Deployer                 common.Address
	OwnerAddress             common.Address
	GasPrice                 *big.Int
	WETH9Address             common.Address
	V2CoreFactoryAddress     common.Address
	NativeCurrencyLabelBytes [32]byte

	// Relay and Salt select the deterministic deployment proxy.
	Relay common.Address
	Salt  common.Hash
}

// WithDefaults fills in the relay and salt when unset.
func (c Config) WithDefaults() Config {
	if c.Relay == (common.Address{}) {
		c.Relay = create2.DeterministicDeployer
	}
	if c.Salt == (common.Hash{}) {
		c.Salt = create2.DefaultSalt
	}
	return c
}

type Env struct {
	Logger  log.Logger
	Chain   Chain
	Config  Config
	Metrics metrics.Metricer
}
