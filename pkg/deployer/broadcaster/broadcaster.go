package broadcaster

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/txpool"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/confirm"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/metrics"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/service/txinclude"
)

const DefaultReceiptPollInterval = 2 * time.Second

var (
	ErrDuplicateSubmission = errors.New("exact same transaction already in the pool, node rejects duplicates")
	ErrNoBaseFee           = errors.New("chain head has no base fee")
)

// Client is the subset of ethclient.Client used to submit and inspect
// transactions.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

type Config struct {
	From   common.Address
	Signer txinclude.Signer
	// GasPrice, when set, is used for every transaction and forces legacy
	// transactions. Otherwise dynamic fee transactions are built from the
	// node's suggestions.
	GasPrice            *big.Int
	ReceiptPollInterval time.Duration
	// ReceiptTimeout bounds WaitReceipt. Zero means confirm.DefaultTimeout.
	ReceiptTimeout time.Duration
	Logger         log.Logger
	Metrics        metrics.Metricer
}

// Broadcaster signs and submits transactions one at a time from a single
// account.
type Broadcaster struct {
	client   Client
	receipts *txinclude.Monitor
	timeout  time.Duration
	from     common.Address
	signer   txinclude.Signer
	gasPrice *big.Int
	lgr      log.Logger
	m        metrics.Metricer
}

func New(client Client, cfg Config) *Broadcaster {
	interval := cfg.ReceiptPollInterval
	if interval == 0 {
		interval = DefaultReceiptPollInterval
	}
	timeout := cfg.ReceiptTimeout
	if timeout == 0 {
		timeout = confirm.DefaultTimeout
	}
	lgr := cfg.Logger
	if lgr == nil {
		lgr = log.Root()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NoopMetrics
	}
	return &Broadcaster{
		client:   client,
		receipts: txinclude.NewMonitor(client, interval),
		timeout:  timeout,
		from:     cfg.From,
		signer:   cfg.Signer,
		gasPrice: cfg.GasPrice,
		lgr:      lgr,
		m:        m,
	}
}

func (b *Broadcaster) From() common.Address {
	return b.from
}

func (b *Broadcaster) Client() Client {
	return b.client
}

// Send builds, signs and submits a transaction. A nil to creates a contract.
func (b *Broadcaster) Send(ctx context.Context, to *common.Address, data []byte) (common.Hash, error) {
	nonce, err := b.client.PendingNonceAt(ctx, b.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gas, err := b.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     b.from,
		To:       to,
		GasPrice: b.gasPrice,
		Data:     data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
	}

	var inner types.TxData
	if b.gasPrice != nil {
		inner = &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: b.gasPrice,
			Gas:      gas,
			To:       to,
			Data:     data,
		}
	} else {
		inner, err = b.dynamicFeeTx(ctx, nonce, gas, to, data)
		if err != nil {
			return common.Hash{}, err
		}
	}

	tx, err := b.signer.Sign(ctx, types.NewTx(inner))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	lgr := b.lgr.New("hash", tx.Hash(), "nonce", nonce)
	lgr.Debug("sending transaction", "to", to, "gas", gas)
	if err := txinclude.RecognizeError(b.client.SendTransaction(ctx, tx)); err != nil {
		if errors.Is(err, txpool.ErrAlreadyKnown) {
			lgr.Error("Exact same transaction already in the pool, node reject duplicates. " +
				"Wait for the pending transaction to resolve, or increase the gas price via --gas-price (this will use the legacy tx type)")
			return common.Hash{}, fmt.Errorf("%w: %w", ErrDuplicateSubmission, err)
		}
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	b.m.RecordNonce(nonce)
	if to == nil {
		b.m.RecordTxSent("create")
	} else {
		b.m.RecordTxSent("call")
	}
	lgr.Info("transaction sent")
	return tx.Hash(), nil
}

func (b *Broadcaster) dynamicFeeTx(ctx context.Context, nonce uint64, gas uint64, to *common.Address, data []byte) (types.TxData, error) {
	chainID, err := b.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	head, err := b.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain head: %w", err)
	}
	if head.BaseFee == nil {
		// pre-London chains only accept legacy transactions
		gasPrice, err := b.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
		return &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       to,
			Data:     data,
		}, nil
	}
	tip, err := b.client.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas tip cap: %w", err)
	}
	return &types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: calcGasFeeCap(head.BaseFee, tip),
		Gas:       gas,
		To:        to,
		Data:      data,
	}, nil
}

// calcGasFeeCap leaves room for the base fee to double before the
// transaction becomes unincludable.
func calcGasFeeCap(baseFee, gasTipCap *big.Int) *big.Int {
	return new(big.Int).Add(gasTipCap, new(big.Int).Mul(baseFee, big.NewInt(2)))
}

// WaitReceipt blocks until the transaction is included or the receipt
// timeout expires, in which case a *confirm.ConfirmationTimeoutError is
// returned.
func (b *Broadcaster) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	tctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	receipt, err := b.receipts.TransactionReceipt(tctx, hash)
	if err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return nil, &confirm.ConfirmationTimeoutError{Hash: hash, Confirmations: 1, Timeout: b.timeout}
	}
	return receipt, err
}

func (b *Broadcaster) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	return b.client.CodeAt(ctx, addr, nil)
}

// Call runs a read-only call against the latest block.
func (b *Broadcaster) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return b.client.CallContract(ctx, ethereum.CallMsg{
		From: b.from,
		To:   &to,
		Data: data,
	}, nil)
}
