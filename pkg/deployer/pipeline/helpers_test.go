package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/broadcaster"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/create2"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/state"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/solc"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/service/testlog"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/service/testutils"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/service/txinclude"
)

var (
	testOwner = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	testWETH9 = common.HexToAddress("0x4200000000000000000000000000000000000006")
)

type testEnv struct {
	*Env
	chain *testutils.FakeChain
	logs  *testlog.CapturingHandler
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvReceiptTimeout(t, 0)
}

func newTestEnvReceiptTimeout(t *testing.T, receiptTimeout time.Duration) *testEnv {
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(pk.PublicKey)

	chain := testutils.NewFakeChain()
	chain.Create2Relay = create2.DeterministicDeployer
	lgr, logs := testlog.CaptureLogger(t, log.LevelDebug)

	b := broadcaster.New(chain, broadcaster.Config{
		From:                from,
		Signer:              txinclude.NewPkSigner(pk, chain.ID),
		ReceiptPollInterval: time.Millisecond,
		ReceiptTimeout:      receiptTimeout,
		Logger:              lgr,
	})
	var label [32]byte
	copy(label[:], "ETH")
	return &testEnv{
		Env: &Env{
			Logger: lgr,
			Chain:  b,
			Config: Config{
				Deployer:                 from,
				OwnerAddress:             testOwner,
				WETH9Address:             testWETH9,
				NativeCurrencyLabelBytes: label,
			}.WithDefaults(),
		},
		chain: chain,
		logs:  logs,
	}
}

// ctorABI renders a constructor-only ABI from "type name" pairs.
func ctorABI(inputs ...string) string {
	var parts []string
	for _, in := range inputs {
		typ, name, _ := strings.Cut(in, " ")
		parts = append(parts, fmt.Sprintf(`{"internalType":%q,"name":%q,"type":%q}`, typ, name, typ))
	}
	return fmt.Sprintf(`[{"inputs":[%s],"stateMutability":"nonpayable","type":"constructor"}]`, strings.Join(parts, ","))
}

func newArtifact(t *testing.T, name, abiJSON, bytecode string, refs solc.LinkReferences) *solc.HardhatArtifact {
	refsJSON, err := json.Marshal(refs)
	require.NoError(t, err)
	if abiJSON == "" {
		abiJSON = "[]"
	}
	doc := fmt.Sprintf(`{"contractName":%q,"abi":%s,"bytecode":%q,"linkReferences":%s}`, name, abiJSON, bytecode, refsJSON)
	var art solc.HardhatArtifact
	require.NoError(t, json.Unmarshal([]byte(doc), &art))
	return &art
}

type mapArtifacts map[string]*solc.HardhatArtifact

func (m mapArtifacts) Read(name string) (*solc.HardhatArtifact, error) {
	art, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("no artifact %s", name)
	}
	return art, nil
}

type memStore struct {
	writes []*state.State
	err    error
}

func (m *memStore) persist(_ context.Context, st *state.State) error {
	if m.err != nil {
		return m.err
	}
	m.writes = append(m.writes, st)
	return nil
}

func (m *memStore) last() *state.State {
	if len(m.writes) == 0 {
		return nil
	}
	return m.writes[len(m.writes)-1]
}

func mustStep(t *testing.T, name string, opts DeployContractOpts) Step {
	run, err := DeployContract(opts)
	require.NoError(t, err)
	return Step{Name: name, Run: run}
}
