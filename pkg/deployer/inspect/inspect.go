package inspect

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/addrutil"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/create2"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/state"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/service/cliapp"
	oplog "github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/service/log"
)

const (
	RelayFlagName    = "relay"
	SaltFlagName     = "salt"
	InitCodeFlagName = "init-code"
	FormatFlagName   = "format"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

var (
	RelayFlag = &cli.StringFlag{
		Name:  RelayFlagName,
		Usage: "Address of the deterministic deployment proxy.",
		Value: create2.DeterministicDeployer.Hex(),
	}
	SaltFlag = &cli.StringFlag{
		Name:  SaltFlagName,
		Usage: "CREATE2 salt as 32 bytes of hex.",
		Value: create2.DefaultSalt.Hex(),
	}
	InitCodeFlag = &cli.StringFlag{
		Name:     InitCodeFlagName,
		Usage:    "Contract init code, 0x-prefixed hex.",
		Required: true,
	}
	FormatFlag = &cli.StringFlag{
		Name:  FormatFlagName,
		Usage: "Output format. One of table, json, yaml.",
		Value: FormatTable,
	}
)

var Commands = []*cli.Command{
	{
		Name:   "state",
		Usage:  "prints the addresses recorded in a state file",
		Flags:  cliapp.ProtectFlags([]cli.Flag{deployer.StateFlag, FormatFlag}),
		Action: StateCLI,
	},
	{
		Name:   "address",
		Usage:  "prints the address a CREATE2 deployment through the relay will have",
		Flags:  cliapp.ProtectFlags([]cli.Flag{RelayFlag, SaltFlag, InitCodeFlag}),
		Action: AddressCLI,
	},
}

func StateCLI(cliCtx *cli.Context) error {
	return State(afero.NewOsFs(), cliCtx.String(deployer.StateFlagName), cliCtx.String(FormatFlagName), oplog.AppOut(cliCtx))
}

// State prints the state file at path. A missing file prints an empty state.
func State(fs afero.Fs, path string, format string, w io.Writer) error {
	st, err := state.NewStore(fs, path).Read()
	if err != nil {
		return err
	}
	switch format {
	case FormatTable:
		deployer.RenderState(w, st)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(st); err != nil {
			return fmt.Errorf("failed to encode state: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		if err := enc.Encode(stateNode(st)); err != nil {
			return fmt.Errorf("failed to encode state: %w", err)
		}
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}

// stateNode keeps the entries in migration order.
func stateNode(st *state.State) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, e := range st.Entries() {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: string(e.Key)},
			&yaml.Node{Kind: yaml.ScalarNode, Value: e.Address.Hex(), Style: yaml.DoubleQuotedStyle},
		)
	}
	return node
}

func AddressCLI(cliCtx *cli.Context) error {
	relay, err := addrutil.GetAddress(cliCtx.String(RelayFlagName))
	if err != nil {
		return fmt.Errorf("invalid relay: %w", err)
	}
	salt, err := parseSalt(cliCtx.String(SaltFlagName))
	if err != nil {
		return err
	}
	return Address(oplog.AppOut(cliCtx), relay, salt, cliCtx.String(InitCodeFlagName))
}

// Address prints the CREATE2 address of initCodeHex in hex and ICAP form.
func Address(w io.Writer, relay common.Address, salt common.Hash, initCodeHex string) error {
	addr, err := create2.AddressFromHex(relay, salt, initCodeHex)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n%s\n", addr.Hex(), addrutil.ICAP(addr))
	return err
}

func parseSalt(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid salt %q: must be 32 bytes of hex", s)
	}
	return common.BytesToHash(b), nil
}
