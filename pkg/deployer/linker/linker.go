package linker

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tokamak-network/tokamak-deploy-uniswapV3-CLI/pkg/solc"
)

// AddressLength is the byte length of every library placeholder.
const AddressLength = common.AddressLength

var placeholderPrefix = []byte("__$")

var (
	ErrMissingLibraryAddress       = errors.New("missing library address")
	ErrUnexpectedLibraryReferences = errors.New("unexpected library references")
	ErrInvalidLinkReference        = errors.New("invalid link reference")
)

// Link fills every library placeholder in bytecode with the matching address
// from libraries. The input is never modified; on error no bytecode is returned.
func Link(bytecode string, refs solc.LinkReferences, libraries map[string]common.Address) (string, error) {
	prefix := 0
	if strings.HasPrefix(bytecode, "0x") || strings.HasPrefix(bytecode, "0X") {
		prefix = 2
	}
	out := []byte(bytecode)
	size := uint(len(out)-prefix) / 2
	for file, libs := range refs {
		for name, offsets := range libs {
			if len(offsets) == 0 {
				continue
			}
			addr, ok := libraries[name]
			if !ok {
				return "", fmt.Errorf("%w: %s (%s)", ErrMissingLibraryAddress, name, file)
			}
			enc := []byte(strings.ToLower(addr.Hex()[2:]))
			for _, off := range offsets {
				if off.Length != AddressLength {
					return "", fmt.Errorf("%w: %s has length %d", ErrInvalidLinkReference, name, off.Length)
				}
				// checked as uint so that huge offsets cannot wrap when converted
				if off.Start > size || size-off.Start < off.Length {
					return "", fmt.Errorf("%w: %s at %d exceeds bytecode length", ErrInvalidLinkReference, name, off.Start)
				}
				start := prefix + int(off.Start)*2
				end := start + int(off.Length)*2
				if !bytes.HasPrefix(out[start:end], placeholderPrefix) {
					return "", fmt.Errorf("%w: %s at %d is not a library placeholder", ErrInvalidLinkReference, name, off.Start)
				}
				copy(out[start:end], enc)
			}
		}
	}
	return string(out), nil
}

// CheckLinkable reports a mismatch between the placeholders an artifact carries
// and whether the caller will resolve library addresses for it.
func CheckLinkable(refs solc.LinkReferences, hasResolver bool) error {
	empty := refs.Empty()
	switch {
	case !empty && !hasResolver:
		return fmt.Errorf("%w: bytecode references %v but no library resolver is set", ErrUnexpectedLibraryReferences, refs.Libraries())
	case empty && hasResolver:
		return fmt.Errorf("%w: library resolver set but bytecode has no link references", ErrUnexpectedLibraryReferences)
	}
	return nil
}
