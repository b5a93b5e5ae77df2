package create2

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestAddress(t *testing.T) {
	// EIP-1014 example vectors
	tests := []struct {
		deployer string
		salt     string
		initCode []byte
		want     string
	}{
		{
			deployer: "0x0000000000000000000000000000000000000000",
			salt:     "0x0000000000000000000000000000000000000000000000000000000000000000",
			initCode: []byte{0x00},
			want:     "0x4D1A2e2bB4F88F0250f26Ffff098B0b30B26BF38",
		},
		{
			deployer: "0xdeadbeef00000000000000000000000000000000",
			salt:     "0x000000000000000000000000feed000000000000000000000000000000000000",
			initCode: []byte{0x00},
			want:     "0xD04116cDd17beBE565EB2422F2497E06cC1C9833",
		},
		{
			deployer: "0x00000000000000000000000000000000deadbeef",
			salt:     "0x00000000000000000000000000000000000000000000000000000000cafebabe",
			initCode: common.FromHex("0xdeadbeef"),
			want:     "0x60f3f640a8508fC6a86d45DF051962668E1e8AC7",
		},
		{
			deployer: "0x0000000000000000000000000000000000000000",
			salt:     "0x0000000000000000000000000000000000000000000000000000000000000000",
			initCode: []byte{},
			want:     "0xE33C0C7F7df4809055C3ebA6c09CFe4BaF1BD9e0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := Address(common.HexToAddress(tt.deployer), common.HexToHash(tt.salt), tt.initCode)
			require.Equal(t, tt.want, got.Hex())
		})
	}
}

func TestAddressDeterministic(t *testing.T) {
	initCode := common.FromHex("0x6080604052348015600f57600080fd5b50")
	a := Address(DeterministicDeployer, DefaultSalt, initCode)
	b := Address(DeterministicDeployer, DefaultSalt, initCode)
	require.Equal(t, a, b)

	other := Address(DeterministicDeployer, DefaultSalt, append(common.CopyBytes(initCode), 0x00))
	require.NotEqual(t, a, other)

	fromHex, err := AddressFromHex(DeterministicDeployer, DefaultSalt, "0x6080604052348015600f57600080fd5b50")
	require.NoError(t, err)
	require.Equal(t, a, fromHex)
}

func TestAddressFromHexInvalid(t *testing.T) {
	for _, in := range []string{"6080", "0x608", "0xzz", "0x__$abc$__"} {
		_, err := AddressFromHex(DeterministicDeployer, DefaultSalt, in)
		require.ErrorIs(t, err, ErrInvalidPayloadEncoding, in)
	}
}

func TestRelayCalldata(t *testing.T) {
	initCode := common.FromHex("0xdeadbeef")
	data := RelayCalldata(DefaultSalt, initCode)
	require.Len(t, data, 36)
	require.Equal(t, DefaultSalt.Bytes(), data[:32])

	salt, code, err := SplitRelayCalldata(data)
	require.NoError(t, err)
	require.Equal(t, DefaultSalt, salt)
	require.Equal(t, initCode, code)

	addr, err := AddressFromRelayCalldata(DeterministicDeployer, data)
	require.NoError(t, err)
	require.Equal(t, Address(DeterministicDeployer, DefaultSalt, initCode), addr)

	// hashing the whole calldata gives a different, wrong address
	wrong := crypto.CreateAddress2(DeterministicDeployer, DefaultSalt, crypto.Keccak256(data))
	require.NotEqual(t, wrong, addr)

	_, _, err = SplitRelayCalldata(data[:31])
	require.ErrorIs(t, err, ErrInvalidPayloadEncoding)
}
