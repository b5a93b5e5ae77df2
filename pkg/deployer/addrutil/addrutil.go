// Package addrutil parses operator-supplied addresses, accepting plain hex,
// EIP-55 checksummed hex and direct-mode ICAP.
package addrutil

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAddress  = errors.New("invalid address")
	ErrBadChecksum     = errors.New("bad address checksum")
	ErrBadICAPChecksum = errors.New("bad icap checksum")
	hexAddressPattern  = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{40}$`)
	icapAddressPattern = regexp.MustCompile(`^XE[0-9]{2}[0-9A-Za-z]{30,31}$`)
	mixedCasePattern   = regexp.MustCompile(`([A-F].*[a-f])|([a-f].*[A-F])`)
	icapBasicLength    = 30
	ninetySeven        = big.NewInt(97)
)

// GetAddress normalizes s into an address. Mixed-case hex must carry a valid
// EIP-55 checksum; ICAP input must carry a valid IBAN checksum.
func GetAddress(s string) (common.Address, error) {
	switch {
	case hexAddressPattern.MatchString(s):
		if !strings.HasPrefix(s, "0x") {
			s = "0x" + s
		}
		addr := common.HexToAddress(s)
		if mixedCasePattern.MatchString(s) && addr.Hex() != s {
			return common.Address{}, fmt.Errorf("%w: %s", ErrBadChecksum, s)
		}
		return addr, nil
	case icapAddressPattern.MatchString(s):
		if s[2:4] != icapChecksum(s) {
			return common.Address{}, fmt.Errorf("%w: %s", ErrBadICAPChecksum, s)
		}
		n, ok := new(big.Int).SetString(s[4:], 36)
		if !ok || n.BitLen() > 8*common.AddressLength {
			return common.Address{}, fmt.Errorf("%w: %s", ErrInvalidAddress, s)
		}
		return common.BigToAddress(n), nil
	default:
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
}

// MustGetAddress is GetAddress for constants.
func MustGetAddress(s string) common.Address {
	addr, err := GetAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// ICAP renders addr as a direct-mode ICAP string.
func ICAP(addr common.Address) string {
	base36 := strings.ToUpper(new(big.Int).SetBytes(addr.Bytes()).Text(36))
	if len(base36) < icapBasicLength {
		base36 = strings.Repeat("0", icapBasicLength-len(base36)) + base36
	}
	return "XE" + icapChecksum("XE00"+base36) + base36
}

func icapChecksum(icap string) string {
	icap = strings.ToUpper(icap)
	rearranged := icap[4:] + icap[:2] + "00"
	var expanded strings.Builder
	for _, c := range rearranged {
		switch {
		case c >= '0' && c <= '9':
			expanded.WriteRune(c)
		default:
			fmt.Fprintf(&expanded, "%d", c-'A'+10)
		}
	}
	n, _ := new(big.Int).SetString(expanded.String(), 10)
	check := 98 - new(big.Int).Mod(n, ninetySeven).Int64()
	return fmt.Sprintf("%02d", check)
}
