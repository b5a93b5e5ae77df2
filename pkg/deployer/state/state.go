package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/deployer/addrutil"
)

// Key names a deployment result. The string values are the JSON field names
// of the state file.
type Key string

const (
	V3CoreFactory                      Key = "v3CoreFactoryAddress"
	Multicall2                         Key = "multicall2Address"
	ProxyAdmin                         Key = "proxyAdminAddress"
	TickLens                           Key = "tickLensAddress"
	NFTDescriptorLibrary               Key = "nftDescriptorLibraryAddress"
	NonfungibleTokenPositionDescriptor Key = "nonfungibleTokenPositionDescriptorAddress"
	DescriptorProxy                    Key = "descriptorProxyAddress"
	NonfungibleTokenPositionManager    Key = "nonfungibleTokenPositionManagerAddress"
	QuoterV2                           Key = "quoterV2Address"
	SwapRouter02                       Key = "swapRouter02"
	Permit2                            Key = "permit2Address"
	Unsupported                        Key = "unsupportedAddress"
	UniversalRouter                    Key = "universalRouterAddress"
)

// Keys lists every known key in deployment order.
var Keys = []Key{
	V3CoreFactory,
	Multicall2,
	ProxyAdmin,
	TickLens,
	NFTDescriptorLibrary,
	NonfungibleTokenPositionDescriptor,
	DescriptorProxy,
	NonfungibleTokenPositionManager,
	QuoterV2,
	SwapRouter02,
	Permit2,
	Unsupported,
	UniversalRouter,
}

var (
	ErrKeyAlreadySet = errors.New("key already set")
	ErrUnknownKey    = errors.New("unknown state key")
)

func (k Key) Valid() bool {
	return slices.Contains(Keys, k)
}

// State records the address of every component deployed so far. Entries are
// only ever added.
type State struct {
	addrs map[Key]common.Address
}

func New() *State {
	return &State{addrs: make(map[Key]common.Address)}
}

func (s *State) Get(k Key) (common.Address, bool) {
	addr, ok := s.addrs[k]
	return addr, ok
}

func (s *State) Has(k Key) bool {
	_, ok := s.addrs[k]
	return ok
}

func (s *State) Set(k Key, addr common.Address) error {
	if !k.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownKey, k)
	}
	if prev, ok := s.addrs[k]; ok {
		return fmt.Errorf("%w: %s is %s", ErrKeyAlreadySet, k, prev)
	}
	s.addrs[k] = addr
	return nil
}

func (s *State) Len() int {
	return len(s.addrs)
}

// Snapshot returns an independent copy of s.
func (s *State) Snapshot() *State {
	return &State{addrs: maps.Clone(s.addrs)}
}

// Entries returns the recorded keys and addresses in deployment order.
func (s *State) Entries() []Entry {
	out := make([]Entry, 0, len(s.addrs))
	for _, k := range Keys {
		if addr, ok := s.addrs[k]; ok {
			out = append(out, Entry{Key: k, Address: addr})
		}
	}
	return out
}

type Entry struct {
	Key     Key
	Address common.Address
}

func (s *State) MarshalJSON() ([]byte, error) {
	out := make(map[Key]string, len(s.addrs))
	for k, addr := range s.addrs {
		out[k] = addr.Hex()
	}
	return json.Marshal(out)
}

func (s *State) UnmarshalJSON(data []byte) error {
	var raw map[Key]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	addrs := make(map[Key]common.Address, len(raw))
	for k, v := range raw {
		if !k.Valid() {
			return fmt.Errorf("%w: %s", ErrUnknownKey, k)
		}
		addr, err := addrutil.GetAddress(v)
		if err != nil {
			return fmt.Errorf("invalid address for %s: %w", k, err)
		}
		addrs[k] = addr
	}
	s.addrs = addrs
	return nil
}
