package solc

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// AbiType keeps both the parsed ABI and the raw JSON it came from, so that
// artifacts can be re-serialized without loss.
type AbiType struct {
	Parsed abi.ABI
	Raw    interface{}
}

func (a *AbiType) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &a.Raw); err != nil {
		return err
	}
	return json.Unmarshal(data, &a.Parsed)
}

func (a AbiType) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Raw)
}

// LinkReferences maps a source file to the libraries it references, and each
// library to the byte ranges of its placeholders in the bytecode.
type LinkReferences map[string]LinkReference
type LinkReference map[string][]LinkReferenceOffset

type LinkReferenceOffset struct {
	Length uint `json:"length"`
	Start  uint `json:"start"`
}

// Libraries returns the names of every library referenced, across all files.
func (l LinkReferences) Libraries() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, libs := range l {
		for name := range libs {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// Empty is true when there are no placeholders to fill.
func (l LinkReferences) Empty() bool {
	for _, libs := range l {
		for _, offsets := range libs {
			if len(offsets) > 0 {
				return false
			}
		}
	}
	return true
}

// HardhatArtifact is the JSON layout hardhat writes for each compiled contract.
// Bytecode is a string because it is not valid hex until libraries are linked.
type HardhatArtifact struct {
	Format                 string         `json:"_format,omitempty"`
	ContractName           string         `json:"contractName"`
	SourceName             string         `json:"sourceName"`
	Abi                    AbiType        `json:"abi"`
	Bytecode               string         `json:"bytecode"`
	DeployedBytecode       string         `json:"deployedBytecode"`
	LinkReferences         LinkReferences `json:"linkReferences"`
	DeployedLinkReferences LinkReferences `json:"deployedLinkReferences"`
}
