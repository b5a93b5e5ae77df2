package txinclude

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Monitor is a ReceiptGetter that will continue looking for a receipt even when
// it doesn't find it right away.
type Monitor struct {
	inner    ReceiptGetter
	interval time.Duration
}

var _ ReceiptGetter = (*Monitor)(nil)

func NewMonitor(inner ReceiptGetter, interval time.Duration) *Monitor {
	return &Monitor{
		inner:    inner,
		interval: interval,
	}
}

var transientErrs = []error{
	ethereum.NotFound,
	errors.New("transaction indexing in progress"), // Not exported from geth.
}

// IsTransient reports whether err only means the receipt is not available yet.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	return slices.ContainsFunc(transientErrs, func(transientErr error) bool {
		return errors.Is(err, transientErr) || strings.Contains(err.Error(), transientErr.Error())
	})
}

func (m *Monitor) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	for {
		receipt, err := m.inner.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !IsTransient(err) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.interval):
		}
	}
}
