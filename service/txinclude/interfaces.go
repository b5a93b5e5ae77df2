package txinclude

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type ReceiptGetter interface {
	TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error)
}

type Sender interface {
	SendTransaction(context.Context, *types.Transaction) error
}

type Signer interface {
	Sign(context.Context, *types.Transaction) (*types.Transaction, error)
}

type PkSigner struct {
	pk      *ecdsa.PrivateKey
	chainID *big.Int
}

var _ Signer = (*PkSigner)(nil)

func (s *PkSigner) Sign(_ context.Context, tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.pk)
}

func NewPkSigner(pk *ecdsa.PrivateKey, chainID *big.Int) *PkSigner {
	return &PkSigner{
		pk:      pk,
		chainID: chainID,
	}
}
