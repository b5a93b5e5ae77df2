package confirm

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/service/testlog"
)

type fakeClient struct {
	mu       sync.Mutex
	head     uint64
	autoMine bool
	receipts map[common.Hash]*types.Receipt
	headErr  error
}

func (f *fakeClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return 0, f.headErr
	}
	if f.autoMine {
		f.head++
	}
	return f.head, nil
}

func receiptAt(block uint64, status uint64) *types.Receipt {
	return &types.Receipt{Status: status, BlockNumber: new(big.Int).SetUint64(block)}
}

func newGate(t *testing.T, client Client, confirmations uint64, timeout time.Duration) *Gate {
	return NewGate(client, Config{
		Confirmations: confirmations,
		Timeout:       timeout,
		PollInterval:  time.Millisecond,
		Logger:        testlog.Logger(t, log.LevelDebug),
	})
}

func TestSatisfied(t *testing.T) {
	tests := []struct {
		head, block, confirmations uint64
		want                       bool
	}{
		{head: 10, block: 10, confirmations: 1, want: true},
		{head: 10, block: 10, confirmations: 2, want: false},
		{head: 11, block: 10, confirmations: 2, want: true},
		{head: 9, block: 10, confirmations: 1, want: false},
		{head: 10, block: 10, confirmations: 0, want: true},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Satisfied(tt.head, tt.block, tt.confirmations), "head=%d block=%d confs=%d", tt.head, tt.block, tt.confirmations)
	}
}

func TestDefaults(t *testing.T) {
	g := NewGate(&fakeClient{}, Config{})
	require.Equal(t, uint64(DefaultConfirmations), g.Confirmations())
	require.Equal(t, DefaultTimeout, g.timeout)

	// one confirmation is inclusion only and is kept as is
	g = NewGate(&fakeClient{}, Config{Confirmations: 1})
	require.Equal(t, uint64(1), g.Confirmations())
}

func TestWaitNothing(t *testing.T) {
	g := newGate(t, &fakeClient{}, 2, time.Millisecond)
	require.NoError(t, g.Wait(context.Background()))
	require.NoError(t, g.Wait(context.Background(), common.Hash{}))
}

func TestWaitConfirmed(t *testing.T) {
	a, b := common.HexToHash("0xaa"), common.HexToHash("0xbb")
	client := &fakeClient{
		head:     10,
		autoMine: true,
		receipts: map[common.Hash]*types.Receipt{
			a: receiptAt(10, types.ReceiptStatusSuccessful),
			b: receiptAt(12, types.ReceiptStatusSuccessful),
		},
	}
	g := newGate(t, client, 3, time.Minute)
	require.NoError(t, g.Wait(context.Background(), a, b))
	require.GreaterOrEqual(t, client.head, uint64(14))
}

func TestWaitReceiptAppearsLater(t *testing.T) {
	hash := common.HexToHash("0xaa")
	client := &fakeClient{head: 5, receipts: map[common.Hash]*types.Receipt{}}
	g := newGate(t, client, 1, time.Minute)

	go func() {
		time.Sleep(20 * time.Millisecond)
		client.mu.Lock()
		client.receipts[hash] = receiptAt(5, types.ReceiptStatusSuccessful)
		client.mu.Unlock()
	}()
	require.NoError(t, g.Wait(context.Background(), hash))
}

func TestWaitTimeout(t *testing.T) {
	hash := common.HexToHash("0xaa")
	client := &fakeClient{
		head:     10,
		receipts: map[common.Hash]*types.Receipt{hash: receiptAt(10, types.ReceiptStatusSuccessful)},
	}
	g := newGate(t, client, 5, 30*time.Millisecond)

	err := g.Wait(context.Background(), hash)
	require.ErrorIs(t, err, ErrConfirmationTimeout)
	var timeoutErr *ConfirmationTimeoutError
	require.True(t, errors.As(err, &timeoutErr))
	require.Equal(t, hash, timeoutErr.Hash)
	require.Equal(t, uint64(5), timeoutErr.Confirmations)
}

func TestWaitReverted(t *testing.T) {
	hash := common.HexToHash("0xaa")
	client := &fakeClient{
		head:     10,
		receipts: map[common.Hash]*types.Receipt{hash: receiptAt(10, types.ReceiptStatusFailed)},
	}
	err := newGate(t, client, 1, time.Minute).Wait(context.Background(), hash)
	require.ErrorIs(t, err, ErrTransactionReverted)
}

func TestWaitProviderError(t *testing.T) {
	hash := common.HexToHash("0xaa")
	boom := errors.New("boom")
	client := &fakeClient{
		headErr:  boom,
		receipts: map[common.Hash]*types.Receipt{hash: receiptAt(10, types.ReceiptStatusSuccessful)},
	}
	err := newGate(t, client, 1, time.Minute).Wait(context.Background(), hash)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrConfirmationTimeout)
}

func TestWaitCanceled(t *testing.T) {
	hash := common.HexToHash("0xaa")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newGate(t, &fakeClient{}, 1, time.Minute).Wait(ctx, hash)
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrConfirmationTimeout)
}
