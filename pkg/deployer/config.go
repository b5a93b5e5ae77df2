package deployer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/addrutil"
	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/pipeline"
)

var (
	ErrInvalidPrivateKey = errors.New("private key must be 0x followed by 64 hex characters")
	ErrInvalidLabel      = errors.New("native currency label must be 1 to 32 ASCII characters")
	ErrInvalidGasPrice   = errors.New("gas price must be a positive decimal amount of gwei")
)

// ApplyConfig is everything the apply command needs. Values come from an
// optional TOML file, then from flags and their env vars.
type ApplyConfig struct {
	PrivateKey           string        `cli:"private-key" toml:"private-key"`
	JSONRPCURL           string        `cli:"json-rpc" toml:"json-rpc"`
	NativeCurrencyLabel  string        `cli:"native-currency-label" toml:"native-currency-label"`
	OwnerAddress         string        `cli:"owner-address" toml:"owner-address"`
	StatePath            string        `cli:"state" toml:"state"`
	GasPrice             string        `cli:"gas-price" toml:"gas-price"`
	Confirmations        uint64        `cli:"confirmations" toml:"confirmations"`
	ConfirmationTimeout  time.Duration `cli:"confirmation-timeout" toml:"confirmation-timeout"`
	ArtifactsDir         string        `cli:"artifacts-dir" toml:"artifacts-dir"`
	WETH9Address         string        `cli:"weth9-address" toml:"weth9-address"`
	V2CoreFactoryAddress string        `cli:"v2-core-factory-address" toml:"v2-core-factory-address"`
	Outfile              string        `cli:"outfile" toml:"outfile"`
	MetricsTextfile      string        `cli:"metrics.textfile" toml:"metrics-textfile"`

	Logger log.Logger `toml:"-"`
	Fs     afero.Fs   `toml:"-"`
}

// LoadConfigFile decodes a TOML file into cfg. Keys that do not map to an
// option are an error.
func LoadConfigFile(fs afero.Fs, path string, cfg *ApplyConfig) error {
	f, err := fs.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	md, err := toml.NewDecoder(f).Decode(cfg)
	if err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys in config file %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *ApplyConfig) Check() error {
	var result *multierror.Error

	if _, err := c.privateKey(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.JSONRPCURL == "" {
		result = multierror.Append(result, errors.New("json-rpc is required"))
	} else if u, err := url.Parse(c.JSONRPCURL); err != nil || u.Scheme == "" || u.Host == "" {
		result = multierror.Append(result, fmt.Errorf("invalid json-rpc url: %q", c.JSONRPCURL))
	}
	if _, err := LabelToBytes32(c.NativeCurrencyLabel); err != nil {
		result = multierror.Append(result, err)
	}
	if c.OwnerAddress == "" {
		result = multierror.Append(result, errors.New("owner-address is required"))
	} else if _, err := addrutil.GetAddress(c.OwnerAddress); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid owner-address: %w", err))
	}
	if c.StatePath == "" {
		result = multierror.Append(result, errors.New("state is required"))
	}
	if c.ArtifactsDir == "" {
		result = multierror.Append(result, errors.New("artifacts-dir is required"))
	}
	if c.GasPrice != "" {
		if _, err := ParseGwei(c.GasPrice); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if c.Confirmations == 0 {
		result = multierror.Append(result, errors.New("confirmations must be at least 1"))
	}
	if c.ConfirmationTimeout <= 0 {
		result = multierror.Append(result, errors.New("confirmation-timeout must be positive"))
	}
	if c.WETH9Address != "" {
		if _, err := addrutil.GetAddress(c.WETH9Address); err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid weth9-address: %w", err))
		}
	}
	if c.V2CoreFactoryAddress != "" {
		if _, err := addrutil.GetAddress(c.V2CoreFactoryAddress); err != nil {
			result = multierror.Append(result, fmt.Errorf("invalid v2-core-factory-address: %w", err))
		}
	}
	if c.Logger == nil {
		result = multierror.Append(result, errors.New("logger must be specified"))
	}
	return result.ErrorOrNil()
}

func (c *ApplyConfig) privateKey() (*ecdsa.PrivateKey, error) {
	hex, ok := strings.CutPrefix(c.PrivateKey, "0x")
	if !ok || len(hex) != 64 {
		return nil, ErrInvalidPrivateKey
	}
	pk, err := crypto.HexToECDSA(hex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}
	return pk, nil
}

// MigrationConfig resolves the business parameters of the migration. Call it
// on a checked config.
func (c *ApplyConfig) MigrationConfig(deployer common.Address) (pipeline.Config, error) {
	owner, err := addrutil.GetAddress(c.OwnerAddress)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("invalid owner-address: %w", err)
	}
	label, err := LabelToBytes32(c.NativeCurrencyLabel)
	if err != nil {
		return pipeline.Config{}, err
	}
	cfg := pipeline.Config{
		Deployer:                 deployer,
		OwnerAddress:             owner,
		NativeCurrencyLabelBytes: label,
	}
	if c.GasPrice != "" {
		if cfg.GasPrice, err = ParseGwei(c.GasPrice); err != nil {
			return pipeline.Config{}, err
		}
	}
	if c.WETH9Address != "" {
		if cfg.WETH9Address, err = addrutil.GetAddress(c.WETH9Address); err != nil {
			return pipeline.Config{}, fmt.Errorf("invalid weth9-address: %w", err)
		}
	}
	if c.V2CoreFactoryAddress != "" {
		if cfg.V2CoreFactoryAddress, err = addrutil.GetAddress(c.V2CoreFactoryAddress); err != nil {
			return pipeline.Config{}, fmt.Errorf("invalid v2-core-factory-address: %w", err)
		}
	}
	return cfg.WithDefaults(), nil
}

// LabelToBytes32 encodes an ASCII label as a right zero-padded bytes32.
func LabelToBytes32(label string) ([32]byte, error) {
	var out [32]byte
	if len(label) == 0 || len(label) > 32 {
		return out, ErrInvalidLabel
	}
	for i := 0; i < len(label); i++ {
		if label[i] == 0 || label[i] > 0x7f {
			return out, ErrInvalidLabel
		}
	}
	copy(out[:], label)
	return out, nil
}

// ParseGwei converts a decimal gwei amount such as "1.5" to wei.
func ParseGwei(s string) (*big.Int, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	if whole == "" && frac == "" {
		return nil, ErrInvalidGasPrice
	}
	if len(frac) > 9 {
		return nil, fmt.Errorf("%w: more than 9 decimals", ErrInvalidGasPrice)
	}
	digits := whole + frac + strings.Repeat("0", 9-len(frac))
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("%w: %q", ErrInvalidGasPrice, s)
		}
	}
	wei, ok := new(big.Int).SetString(digits, 10)
	if !ok || wei.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGasPrice, s)
	}
	return wei, nil
}

// FormatGwei renders a wei amount in gwei.
func FormatGwei(wei *big.Int) string {
	if wei == nil {
		return ""
	}
	q, r := new(big.Int).QuoRem(wei, big.NewInt(params.GWei), new(big.Int))
	if r.Sign() == 0 {
		return q.String()
	}
	return strings.TrimRight(fmt.Sprintf("%s.%09d", q, r.Uint64()), "0")
}
