package testutils

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// FakeChain is an in-memory chain that mines every accepted transaction into
// its own block. Contract creations store the init code as the account code,
// and calls to Create2Relay behave like the deterministic deployment proxy.
type FakeChain struct {
	mu sync.Mutex

	ID           *big.Int
	BaseFee      *big.Int
	Create2Relay common.Address

	// AutoMine advances the head by one block on every BlockNumber call.
	AutoMine bool
	// ReceiptDelay is the number of receipt lookups per tx that report
	// ethereum.NotFound before the receipt is returned.
	ReceiptDelay int

	// OnCall answers eth_call. Unhandled calls return empty data.
	OnCall func(to common.Address, data []byte) ([]byte, error)
	// OnTx is run for every non-creation transaction that is not sent to the
	// relay. A non-nil error reverts the transaction.
	OnTx func(from, to common.Address, data []byte) error

	head      uint64
	nonces    map[common.Address]uint64
	code      map[common.Address][]byte
	creators  map[common.Address]common.Address
	receipts  map[common.Hash]*types.Receipt
	lookups   map[common.Hash]int
	sendErrs  []error
	sent      []*types.Transaction
	codeReads int
}

func NewFakeChain() *FakeChain {
	return &FakeChain{
		ID:       big.NewInt(901),
		BaseFee:  big.NewInt(1_000_000_000),
		head:     1,
		nonces:   make(map[common.Address]uint64),
		code:     make(map[common.Address][]byte),
		creators: make(map[common.Address]common.Address),
		receipts: make(map[common.Hash]*types.Receipt),
		lookups:  make(map[common.Hash]int),
	}
}

// FailNextSend makes the next SendTransaction calls return errs in order. A
// nil entry lets that call through.
func (f *FakeChain) FailNextSend(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErrs = append(f.sendErrs, errs...)
}

func (f *FakeChain) SetCode(addr common.Address, code []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.code[addr] = code
}

func (f *FakeChain) Code(addr common.Address) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code[addr]
}

// Creator returns the msg.sender of the transaction or relay call that
// created addr, which is what an Ownable constructor records as owner.
func (f *FakeChain) Creator(addr common.Address) common.Address {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creators[addr]
}

// Sent returns every accepted transaction in submission order.
func (f *FakeChain) Sent() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

func (f *FakeChain) CodeReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codeReads
}

// Mine advances the head by n empty blocks.
func (f *FakeChain) Mine(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head += n
}

func (f *FakeChain) Head() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head
}

func (f *FakeChain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.ID), nil
}

func (f *FakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[account], nil
}

func (f *FakeChain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 21_000 + uint64(len(msg.Data))*16, nil
}

func (f *FakeChain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000), nil
}

func (f *FakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *FakeChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &types.Header{
		Number:  new(big.Int).SetUint64(f.head),
		BaseFee: f.BaseFee,
	}, nil
}

func (f *FakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AutoMine {
		f.head++
	}
	return f.head, nil
}

func (f *FakeChain) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codeReads++
	return f.code[account], nil
}

func (f *FakeChain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f.OnCall == nil || msg.To == nil {
		return nil, nil
	}
	return f.OnCall(*msg.To, msg.Data)
}

func (f *FakeChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	if f.lookups[txHash] < f.ReceiptDelay {
		f.lookups[txHash]++
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (f *FakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return err
		}
	}
	from, err := types.Sender(types.LatestSignerForChainID(f.ID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if tx.Nonce() != f.nonces[from] {
		return fmt.Errorf("nonce too low: next nonce %d, tx nonce %d", f.nonces[from], tx.Nonce())
	}
	f.nonces[from]++
	f.head++

	receipt := &types.Receipt{
		Type:        tx.Type(),
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(f.head),
		GasUsed:     tx.Gas(),
	}
	switch {
	case tx.To() == nil:
		addr := crypto.CreateAddress(from, tx.Nonce())
		f.code[addr] = tx.Data()
		f.creators[addr] = from
		receipt.ContractAddress = addr
	case *tx.To() == f.Create2Relay && f.Create2Relay != (common.Address{}):
		if err := f.create2(tx.Data()); err != nil {
			receipt.Status = types.ReceiptStatusFailed
		}
	default:
		if f.OnTx != nil {
			// OnTx may call back into the chain.
			f.mu.Unlock()
			txErr := f.OnTx(from, *tx.To(), tx.Data())
			f.mu.Lock()
			if txErr != nil {
				receipt.Status = types.ReceiptStatusFailed
			}
		}
	}
	f.receipts[tx.Hash()] = receipt
	f.sent = append(f.sent, tx)
	return nil
}

var errCreate2Collision = errors.New("create2 collision")

func (f *FakeChain) create2(data []byte) error {
	if len(data) < common.HashLength {
		return errors.New("short calldata")
	}
	salt := common.BytesToHash(data[:common.HashLength])
	initCode := data[common.HashLength:]
	addr := crypto.CreateAddress2(f.Create2Relay, salt, crypto.Keccak256(initCode))
	if len(f.code[addr]) > 0 {
		return errCreate2Collision
	}
	f.code[addr] = common.CopyBytes(initCode)
	f.creators[addr] = f.Create2Relay
	return nil
}
