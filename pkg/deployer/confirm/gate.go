package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/metrics"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/service/txinclude"
)

const (
	DefaultConfirmations = 2
	DefaultTimeout       = 15 * time.Minute
	DefaultPollInterval  = time.Second
)

var (
	ErrConfirmationTimeout = errors.New("timed out waiting for confirmations")
	ErrTransactionReverted = errors.New("transaction reverted")
)

type ConfirmationTimeoutError struct {
	Hash          common.Hash
	Confirmations uint64
	Timeout       time.Duration
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("transaction %s did not reach %d confirmations within %s", e.Hash, e.Confirmations, e.Timeout)
}

func (e *ConfirmationTimeoutError) Unwrap() error {
	return ErrConfirmationTimeout
}

type Client interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

type Config struct {
	// Confirmations is the required depth, counting the inclusion block.
	// Zero means DefaultConfirmations. Use 1 to wait for inclusion only.
	Confirmations uint64
	// Timeout is per transaction. Zero means DefaultTimeout.
	Timeout      time.Duration
	PollInterval time.Duration
	// RequestsPerSecond bounds RPC polling across all concurrent waits.
	RequestsPerSecond float64
	Logger            log.Logger
	Metrics           metrics.Metricer
}

// Gate blocks until every transaction of a step has enough confirmations.
type Gate struct {
	client        Client
	confirmations uint64
	timeout       time.Duration
	interval      time.Duration
	limiter       *rate.Limiter
	lgr           log.Logger
	m             metrics.Metricer
}

func NewGate(client Client, cfg Config) *Gate {
	g := &Gate{
		client:        client,
		confirmations: cfg.Confirmations,
		timeout:       cfg.Timeout,
		interval:      cfg.PollInterval,
		lgr:           cfg.Logger,
		m:             cfg.Metrics,
	}
	if g.confirmations == 0 {
		g.confirmations = DefaultConfirmations
	}
	if g.timeout == 0 {
		g.timeout = DefaultTimeout
	}
	if g.interval == 0 {
		g.interval = DefaultPollInterval
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	g.limiter = rate.NewLimiter(limit, 1)
	if g.lgr == nil {
		g.lgr = log.Root()
	}
	if g.m == nil {
		g.m = metrics.NoopMetrics
	}
	return g
}

func (g *Gate) Confirmations() uint64 {
	return g.confirmations
}

// Wait returns once every hash has reached the configured confirmation depth.
// Zero hashes are skipped.
func (g *Gate) Wait(ctx context.Context, hashes ...common.Hash) error {
	group, gctx := errgroup.WithContext(ctx)
	for _, hash := range hashes {
		if hash == (common.Hash{}) {
			continue
		}
		group.Go(func() error {
			return g.waitOne(gctx, hash)
		})
	}
	return group.Wait()
}

func (g *Gate) waitOne(ctx context.Context, hash common.Hash) error {
	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	lgr := g.lgr.New("hash", hash)
	for {
		done, err := g.check(tctx, hash)
		if err != nil {
			return g.translate(ctx, tctx, hash, err)
		}
		if done {
			g.m.RecordTxConfirmed(time.Since(start))
			lgr.Debug("transaction confirmed", "confirmations", g.confirmations)
			return nil
		}
		select {
		case <-tctx.Done():
			return g.translate(ctx, tctx, hash, tctx.Err())
		case <-time.After(g.interval):
		}
	}
}

func (g *Gate) check(ctx context.Context, hash common.Hash) (bool, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return false, err
	}
	receipt, err := g.client.TransactionReceipt(ctx, hash)
	if txinclude.IsTransient(err) {
		// not mined yet, or dropped by a reorg
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get receipt: %w", err)
	}
	if receipt == nil {
		return false, nil
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return false, fmt.Errorf("%w: %s", ErrTransactionReverted, hash)
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return false, err
	}
	head, err := g.client.BlockNumber(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get block number: %w", err)
	}
	return Satisfied(head, receipt.BlockNumber.Uint64(), g.confirmations), nil
}

// translate turns the expiry of the per-transaction timeout into a
// ConfirmationTimeoutError, leaving cancellation by the caller as is.
func (g *Gate) translate(parent, tctx context.Context, hash common.Hash, err error) error {
	if parent.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return &ConfirmationTimeoutError{Hash: hash, Confirmations: g.confirmations, Timeout: g.timeout}
	}
	return err
}

// Satisfied reports whether a transaction included in block has at least
// confirmations blocks on top of it, counting its own.
func Satisfied(head, block, confirmations uint64) bool {
	if head < block {
		return false
	}
	return head-block+1 >= confirmations
}
