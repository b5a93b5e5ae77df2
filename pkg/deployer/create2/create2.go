// Package create2 derives the addresses contracts land at when they are
// deployed through the deterministic deployment proxy.
package create2

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// DeterministicDeployer is the keyless deployment proxy present at the same
	// address on most EVM chains. It expects calldata of salt ++ initCode.
	DeterministicDeployer = common.HexToAddress("0x4e59b44847b379578588920ca78fbf26c0b4956c")

	DefaultSalt = common.HexToHash("0x00000000000000000000000000000000000000005eb67581652632000a6cbedf")
)

var ErrInvalidPayloadEncoding = errors.New("invalid payload encoding")

// Address returns keccak256(0xff ++ relay ++ salt ++ keccak256(initCode))[12:].
func Address(relay common.Address, salt common.Hash, initCode []byte) common.Address {
	return crypto.CreateAddress2(relay, salt, crypto.Keccak256(initCode))
}

// AddressFromHex is Address for 0x-prefixed hex inputs.
func AddressFromHex(relay common.Address, salt common.Hash, initCodeHex string) (common.Address, error) {
	initCode, err := hexutil.Decode(initCodeHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrInvalidPayloadEncoding, err)
	}
	return Address(relay, salt, initCode), nil
}

// RelayCalldata builds the transaction data the relay expects.
func RelayCalldata(salt common.Hash, initCode []byte) []byte {
	out := make([]byte, 0, common.HashLength+len(initCode))
	out = append(out, salt.Bytes()...)
	return append(out, initCode...)
}

func SplitRelayCalldata(data []byte) (common.Hash, []byte, error) {
	if len(data) < common.HashLength {
		return common.Hash{}, nil, fmt.Errorf("%w: calldata is %d bytes, need at least %d", ErrInvalidPayloadEncoding, len(data), common.HashLength)
	}
	return common.BytesToHash(data[:common.HashLength]), data[common.HashLength:], nil
}

// AddressFromRelayCalldata derives the address from the full relay transaction
// data. The relay consumes the salt prefix, so only the remainder is hashed.
func AddressFromRelayCalldata(relay common.Address, data []byte) (common.Address, error) {
	salt, initCode, err := SplitRelayCalldata(data)
	if err != nil {
		return common.Address{}, err
	}
	return Address(relay, salt, initCode), nil
}
