package deployer

import (
	"github.com/urfave/cli/v2"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/confirm"
	oplog "github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/service/log"
)

const EnvVarPrefix = "DEPLOY_V3"

const (
	PrivateKeyFlagName           = "private-key"
	JSONRPCFlagName              = "json-rpc"
	NativeCurrencyLabelFlagName  = "native-currency-label"
	OwnerAddressFlagName         = "owner-address"
	StateFlagName                = "state"
	GasPriceFlagName             = "gas-price"
	ConfirmationsFlagName        = "confirmations"
	ConfirmationTimeoutFlagName  = "confirmation-timeout"
	ArtifactsDirFlagName         = "artifacts-dir"
	WETH9AddressFlagName         = "weth9-address"
	V2CoreFactoryAddressFlagName = "v2-core-factory-address"
	ConfigFlagName               = "config"
	OutfileFlagName              = "outfile"
	MetricsTextfileFlagName      = "metrics.textfile"
)

// DefaultWETH9Address is the WETH predeploy of OP stack chains.
const DefaultWETH9Address = "0x4200000000000000000000000000000000000006"

func PrefixEnvVar(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	PrivateKeyFlag = &cli.StringFlag{
		Name:    PrivateKeyFlagName,
		Usage:   "Private key of the deployer account, 0x-prefixed hex.",
		EnvVars: PrefixEnvVar("PRIVATE_KEY"),
	}
	JSONRPCFlag = &cli.StringFlag{
		Name:    JSONRPCFlagName,
		Usage:   "JSON-RPC URL of the target chain.",
		EnvVars: PrefixEnvVar("JSON_RPC"),
	}
	NativeCurrencyLabelFlag = &cli.StringFlag{
		Name:    NativeCurrencyLabelFlagName,
		Usage:   "Native currency label used by the position descriptor, e.g. ETH.",
		EnvVars: PrefixEnvVar("NATIVE_CURRENCY_LABEL"),
	}
	OwnerAddressFlag = &cli.StringFlag{
		Name:    OwnerAddressFlagName,
		Usage:   "Address that receives ownership of the factory and the proxy admin. Hex or ICAP.",
		EnvVars: PrefixEnvVar("OWNER_ADDRESS"),
	}
	StateFlag = &cli.StringFlag{
		Name:    StateFlagName,
		Usage:   "Path of the migration state file. Created if missing.",
		EnvVars: PrefixEnvVar("STATE"),
		Value:   "./state.json",
	}
	GasPriceFlag = &cli.StringFlag{
		Name:    GasPriceFlagName,
		Usage:   "Fixed gas price in gwei. Sends legacy transactions when set.",
		EnvVars: PrefixEnvVar("GAS_PRICE"),
	}
	ConfirmationsFlag = &cli.Uint64Flag{
		Name:    ConfirmationsFlagName,
		Usage:   "Number of confirmations to wait for after each step, counting the inclusion block. 1 waits for inclusion only.",
		EnvVars: PrefixEnvVar("CONFIRMATIONS"),
		Value:   confirm.DefaultConfirmations,
	}
	ConfirmationTimeoutFlag = &cli.DurationFlag{
		Name:    ConfirmationTimeoutFlagName,
		Usage:   "Maximum time to wait for the receipt and then the confirmations of one transaction.",
		EnvVars: PrefixEnvVar("CONFIRMATION_TIMEOUT"),
		Value:   confirm.DefaultTimeout,
	}
	ArtifactsDirFlag = &cli.StringFlag{
		Name:    ArtifactsDirFlagName,
		Usage:   "Directory holding the compiled contract artifacts.",
		EnvVars: PrefixEnvVar("ARTIFACTS_DIR"),
	}
	WETH9AddressFlag = &cli.StringFlag{
		Name:    WETH9AddressFlagName,
		Usage:   "Address of the wrapped native token.",
		EnvVars: PrefixEnvVar("WETH9_ADDRESS"),
		Value:   DefaultWETH9Address,
	}
	V2CoreFactoryAddressFlag = &cli.StringFlag{
		Name:    V2CoreFactoryAddressFlagName,
		Usage:   "Address of the Uniswap v2 factory, zero when there is none.",
		EnvVars: PrefixEnvVar("V2_CORE_FACTORY_ADDRESS"),
		Value:   "0x0000000000000000000000000000000000000000",
	}
	ConfigFlag = &cli.StringFlag{
		Name:    ConfigFlagName,
		Usage:   "Optional TOML file with any of the apply options. Flags take precedence.",
		EnvVars: PrefixEnvVar("CONFIG"),
	}
	OutfileFlag = &cli.StringFlag{
		Name:    OutfileFlagName,
		Usage:   "Output file for the step results. Use - for stdout.",
		EnvVars: PrefixEnvVar("OUTFILE"),
		Value:   "-",
	}
	MetricsTextfileFlag = &cli.StringFlag{
		Name:    MetricsTextfileFlagName,
		Usage:   "Write run metrics in the Prometheus text format to this file.",
		EnvVars: PrefixEnvVar("METRICS_TEXTFILE"),
	}
)

var GlobalFlags = append([]cli.Flag{}, oplog.CLIFlags(EnvVarPrefix)...)

var ApplyFlags = []cli.Flag{
	PrivateKeyFlag,
	JSONRPCFlag,
	NativeCurrencyLabelFlag,
	OwnerAddressFlag,
	StateFlag,
	GasPriceFlag,
	ConfirmationsFlag,
	ConfirmationTimeoutFlag,
	ArtifactsDirFlag,
	WETH9AddressFlag,
	V2CoreFactoryAddressFlag,
	ConfigFlag,
	OutfileFlag,
	MetricsTextfileFlag,
}
